package server

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ValentinKolb/livelock/rpc/client"
	"github.com/ValentinKolb/livelock/rpc/common"
	"github.com/ValentinKolb/livelock/rpc/serializer"
	"github.com/ValentinKolb/livelock/rpc/transport/unix"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() serializer.IRPCSerializer{
	"JSON":   serializer.NewJSONSerializer,
	"GOB":    serializer.NewGOBSerializer,
	"Binary": serializer.NewBinarySerializer,
}

// startTestServer runs a server on a unix socket and returns the socket path
func startTestServer(t *testing.T, config common.ServerConfig, newSerializer func() serializer.IRPCSerializer) (*RPCServer, chan error) {
	t.Helper()

	s := NewRPCServer(config, unix.NewUnixServerTransport(), newSerializer())
	done := make(chan error, 1)
	go func() { done <- s.Serve() }()
	return s, done
}

// connect creates a client, waiting until the server accepts connections
func connect(t *testing.T, socket, clientID string, newSerializer func() serializer.IRPCSerializer) *client.LockClient {
	t.Helper()

	config := common.ClientConfig{ClientID: clientID, TimeoutSecond: 5}
	config.Transport.Endpoints = []string{socket}
	config.Transport.RetryCount = 2

	deadline := time.Now().Add(5 * time.Second)
	for {
		c, err := client.NewRPCLockClient(config, unix.NewUnixClientTransport(), newSerializer())
		if err == nil {
			return c
		}
		if time.Now().After(deadline) {
			t.Fatalf("Failed to connect client %s: %v", clientID, err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func testServerConfig(t *testing.T) common.ServerConfig {
	dir := t.TempDir()

	config := common.ServerConfig{TimeoutSecond: 5, LogLevel: "info"}
	config.Transport.Endpoint = filepath.Join(dir, "livelock.sock")
	config.Transport.WorkersPerConn = 4
	config.Storage.DumpFile = filepath.Join(dir, "dump.bin")
	config.Storage.GracePeriod = time.Minute
	config.Storage.MaintenanceInterval = 50 * time.Millisecond
	return config
}

// waitFor polls cond until it is true or fails the test
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServerEndToEnd(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			config := testServerConfig(t)
			s, done := startTestServer(t, config, factory)

			c1 := connect(t, config.Transport.Endpoint, "c1", factory)
			c2 := connect(t, config.Transport.Endpoint, "c2", factory)
			defer c2.Close()

			if ok, err := c1.Acquire("jobs/1", false); err != nil || !ok {
				t.Fatalf("Expected c1 to acquire jobs/1, got %v %v", ok, err)
			}
			if ok, err := c2.Acquire("jobs/1", false); err != nil || ok {
				t.Errorf("Expected c2 not to acquire jobs/1, got %v %v", ok, err)
			}
			if ok, _ := c2.Locked("jobs/1"); !ok {
				t.Errorf("Expected jobs/1 to be locked")
			}

			items, err := c2.Find("jobs/*")
			if err != nil || len(items) != 1 || items[0].ID != "jobs/1" {
				t.Errorf("Expected to find jobs/1, got %+v %v", items, err)
			}

			if ok, found, err := c2.AddSignal("jobs/1", "stop"); err != nil || !ok || !found {
				t.Errorf("Expected signal to be added, got %v %v %v", ok, found, err)
			}
			if ok, found, _ := c1.HasSignal("jobs/1", "stop"); !ok || !found {
				t.Errorf("Expected signal to be present")
			}
			if _, found, _ := c1.RemoveSignal("missing", "stop"); found {
				t.Errorf("Expected missing lock not to be found")
			}

			if _, found, err := c2.ClientAddress("c1"); err != nil || !found {
				t.Errorf("Expected address of c1, got %v %v", found, err)
			}

			if _, err := c1.Acquire("", false); !errors.Is(err, &common.Error{Code: common.RetCInvalidOperation}) {
				t.Errorf("Expected invalid operation error, got %v", err)
			}

			// Disconnect: the lock stays held for the grace period
			if err := c1.Close(); err != nil {
				t.Errorf("Failed to close client: %v", err)
			}
			waitFor(t, "pending release", func() bool { return s.Storage().Stats().PendingRelease == 1 })
			if ok, _ := c2.Acquire("jobs/1", false); ok {
				t.Errorf("Expected jobs/1 to stay held during the grace period")
			}

			// Reconnect reclaims the lock
			c1 = connect(t, config.Transport.Endpoint, "c1", factory)
			waitFor(t, "reclaim", func() bool { return s.Storage().Stats().PendingRelease == 0 })
			if ok, err := c1.Release("jobs/1"); err != nil || !ok {
				t.Errorf("Expected c1 to release jobs/1, got %v %v", ok, err)
			}
			if err := c1.Close(); err != nil {
				t.Errorf("Failed to close client: %v", err)
			}

			if err := s.Shutdown(); err != nil {
				t.Errorf("Failed to shut down: %v", err)
			}
			if err := <-done; err != nil {
				t.Errorf("Serve returned error: %v", err)
			}
		})
	}
}

func TestServerDumpOnExit(t *testing.T) {
	factory := serializer.NewBinarySerializer
	config := testServerConfig(t)
	config.Storage.DumpOnExit = true
	config.Storage.LoadDumpOnStart = true

	s, done := startTestServer(t, config, factory)
	c := connect(t, config.Transport.Endpoint, "c1", factory)
	if ok, err := c.Acquire("persisted", false); err != nil || !ok {
		t.Fatalf("Expected to acquire lock, got %v %v", ok, err)
	}
	_ = c.Close()

	if err := s.Shutdown(); err != nil {
		t.Errorf("Failed to shut down: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Serve returned error: %v", err)
	}

	// The restarted server restores the lock, the client can reclaim it
	s, done = startTestServer(t, config, factory)
	c = connect(t, config.Transport.Endpoint, "c1", factory)
	waitFor(t, "restored lock", func() bool { return s.Storage().Locked("persisted") })
	if ok, err := c.Acquire("persisted", true); err != nil || !ok {
		t.Errorf("Expected reentrant acquire of the restored lock, got %v %v", ok, err)
	}
	_ = c.Close()

	if err := s.Shutdown(); err != nil {
		t.Errorf("Failed to shut down: %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Serve returned error: %v", err)
	}
}
