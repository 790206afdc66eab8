package admin

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ValentinKolb/livelock/lib/lockmgr"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("admin")

// Server exposes metrics, statistics and a health check of a lock storage over HTTP
type Server struct {
	endpoint string
	set      *metrics.Set
	storage  lockmgr.ILockStorage
	debug    bool

	mu     sync.Mutex
	server *http.Server
}

// NewAdminServer creates a new admin server for the given storage.
// set holds the storage metrics, process metrics are always added to /metrics.
// With debug enabled every request is logged.
func NewAdminServer(endpoint string, set *metrics.Set, storage lockmgr.ILockStorage, debug bool) *Server {
	return &Server{
		endpoint: endpoint,
		set:      set,
		storage:  storage,
		debug:    debug,
	}
}

// Handler returns the http handler with all admin routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	routes := map[string]http.HandlerFunc{
		"GET /metrics": s.handleMetrics,
		"GET /stats":   s.handleStats,
		"GET /healthz": s.handleHealth,
	}

	for pattern, handler := range routes {
		if s.debug {
			mux.HandleFunc(pattern, loggerMiddleware(handler))
		} else {
			mux.HandleFunc(pattern, handler)
		}
	}

	return mux
}

// ListenAndServe serves the admin routes until Close is called
func (s *Server) ListenAndServe() error {
	listener, err := net.Listen("tcp", s.endpoint)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.server
	s.mu.Unlock()

	Logger.Infof("Starting admin server on %s", listener.Addr())

	if err := server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close stops the admin server
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	return s.server.Close()
}

// --------------------------------------------------------------------------
// Handlers
// --------------------------------------------------------------------------

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	if s.set != nil {
		s.set.WritePrometheus(w)
	}
	metrics.WriteProcessMetrics(w)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.storage.Stats()); err != nil {
		Logger.Errorf("Failed to write stats: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// --------------------------------------------------------------------------
// Middleware (logging)
// --------------------------------------------------------------------------

// responseWriter is a custom ResponseWriter that captures status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing it
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// loggerMiddleware is a middleware that logs HTTP requests
func loggerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create custom response writer to capture status code
		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		// Process request
		next.ServeHTTP(rw, r)

		// Log the request
		Logger.Debugf("%s %s => %d took %s", r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	}
}
