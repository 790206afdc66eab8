package server

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/ValentinKolb/livelock/lib/lockmgr"
	"github.com/ValentinKolb/livelock/rpc/admin"
	"github.com/ValentinKolb/livelock/rpc/common"
	"github.com/ValentinKolb/livelock/rpc/serializer"
	"github.com/ValentinKolb/livelock/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("rpc")

// RPCServer serves a single lock storage over an RPC transport
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	storage    lockmgr.ILockStorage
	adapter    IRPCServerAdapter
	metrics    *metrics.Set
	admin      *admin.Server

	stopCh   chan struct{} // closed when the transport stopped
	stopOnce sync.Once
	jobs     sync.WaitGroup
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		tcp.NewTCPServerTransport(),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	set := metrics.NewSet()
	storage := lockmgr.NewMemoryLockStorage(&lockmgr.Options{
		DumpFile:    config.Storage.DumpFile,
		GracePeriod: config.Storage.GracePeriod,
		Metrics:     set,
	})

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		storage:    storage,
		adapter:    NewLockStorageServerAdapter(storage),
		metrics:    set,
		stopCh:     make(chan struct{}),
	}
}

// Storage returns the lock storage served by the server
func (s *RPCServer) Storage() lockmgr.ILockStorage {
	return s.storage
}

// Serve starts the RPC server and blocks until it is shut down.
// SIGINT and SIGTERM shut the server down gracefully.
func (s *RPCServer) Serve() error {
	s.init()

	// Shutdown on signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			Logger.Infof("Received %s, shutting down", sig)
			if err := s.Shutdown(); err != nil {
				Logger.Errorf("Failed to stop transport: %v", err)
			}
		case <-s.stopCh:
		}
	}()

	err := s.transport.Listen(s.config)
	s.stop()

	if err != nil {
		return fmt.Errorf("transport failed: %w", err)
	}

	// Persist or drop the state, the transport closed all sessions at this point
	if s.config.Storage.DumpOnExit {
		if err := s.storage.Dump(); err != nil {
			return fmt.Errorf("failed to dump lock storage: %w", err)
		}
	} else if s.config.Storage.ClearDumpOnExit {
		if err := s.storage.ClearDump(); err != nil {
			return fmt.Errorf("failed to remove dump file: %w", err)
		}
	}

	Logger.Infof("Server stopped")
	return s.storage.Close()
}

// Shutdown stops the transport, Serve returns after the state was persisted
func (s *RPCServer) Shutdown() error {
	return s.transport.Close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// init restores the state and starts the background jobs
func (s *RPCServer) init() {
	if s.config.Storage.LoadDumpOnStart {
		restored := s.storage.LoadDump()
		Logger.Infof("Restored %d locks from %s", restored, s.storage.Stats().DumpFile)
	}

	// Configure the transport layer
	s.transport.RegisterHandler(&transportHandler{server: s})

	if interval := s.config.Storage.MaintenanceInterval; interval > 0 {
		s.every(interval, func() {
			s.storage.Maintenance(s.config.Storage.MaintenanceBudget)
		})
	}

	if interval := s.config.Storage.DumpInterval; interval > 0 {
		s.every(interval, func() {
			if err := s.storage.Dump(); err != nil {
				Logger.Errorf("Periodic dump failed: %v", err)
			}
		})
	}

	if s.config.AdminEndpoint != "" {
		s.admin = admin.NewAdminServer(s.config.AdminEndpoint, s.metrics, s.storage, s.config.LogLevel == "debug")
		go func() {
			if err := s.admin.ListenAndServe(); err != nil {
				Logger.Errorf("Admin server failed: %v", err)
			}
		}()
	}
}

// every runs job periodically until the server stops
func (s *RPCServer) every(interval time.Duration, job func()) {
	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				job()
			case <-s.stopCh:
				return
			}
		}
	}()
}

// stop ends the background jobs and the admin server
func (s *RPCServer) stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.jobs.Wait()
		if s.admin != nil {
			if err := s.admin.Close(); err != nil {
				Logger.Warningf("Failed to close admin server: %v", err)
			}
		}
	})
}

// --------------------------------------------------------------------------
// Transport Handler
// --------------------------------------------------------------------------

// transportHandler decodes the requests of the transport and passes them to the adapter
type transportHandler struct {
	server *RPCServer
}

func (h *transportHandler) OpenSession(sessionID uint64, remoteAddr string) {
	h.server.adapter.OpenSession(sessionID, remoteAddr)
}

func (h *transportHandler) CloseSession(sessionID uint64) {
	h.server.adapter.CloseSession(sessionID)
}

func (h *transportHandler) Handle(sessionID uint64, req []byte) []byte {
	var msg common.Message
	var respMsg *common.Message

	// Decode the request and let the adapter handle it
	if err := h.server.serializer.Deserialize(req, &msg); err != nil {
		respMsg = errorResponse(common.RetCInvalidOperation, "failed to deserialize request: %s", err)
	} else {
		respMsg = h.server.adapter.Handle(sessionID, &msg)
	}

	// Return result
	val, err := h.server.serializer.Serialize(*respMsg)
	if err != nil {
		Logger.Errorf("Failed to serialize response: %v", err)
		val, _ = h.server.serializer.Serialize(*errorResponse(common.RetCInternalError, "failed to serialize response: %s", err))
	}
	return val
}
