package base

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/livelock/rpc/common"
)

// --------------------------------------------------------------------------
// Test connectors (unix sockets in a temp dir)
// --------------------------------------------------------------------------

type testServerConnector struct{}

func (c *testServerConnector) Listen(config common.ServerConfig) (net.Listener, error) {
	return net.Listen("unix", config.Transport.Endpoint)
}
func (c *testServerConnector) GetName() string { return "unix" }
func (c *testServerConnector) UpgradeConnection(net.Conn, common.ServerConfig) error {
	return nil
}

type testClientConnector struct{}

func (c *testClientConnector) Connect(endpoint string) (net.Conn, error) {
	return net.Dial("unix", endpoint)
}
func (c *testClientConnector) GetName() string { return "unix" }
func (c *testClientConnector) UpgradeConnection(net.Conn, common.ClientConfig) error {
	return nil
}

// echoHandler answers every request with its payload and records the session events
type echoHandler struct {
	mu     sync.Mutex
	opened map[uint64]string
	closed map[uint64]bool
}

func newEchoHandler() *echoHandler {
	return &echoHandler{opened: map[uint64]string{}, closed: map[uint64]bool{}}
}

func (h *echoHandler) OpenSession(sessionID uint64, remoteAddr string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opened[sessionID] = remoteAddr
}

func (h *echoHandler) Handle(_ uint64, req []byte) []byte {
	return append([]byte("echo:"), req...)
}

func (h *echoHandler) CloseSession(sessionID uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed[sessionID] = true
}

func (h *echoHandler) counts() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.opened), len(h.closed)
}

// startServer starts a server transport on a fresh unix socket
func startServer(t *testing.T, handler *echoHandler) (string, func()) {
	t.Helper()

	socket := filepath.Join(t.TempDir(), "livelock.sock")
	server := NewBaseServerTransport(&testServerConnector{}, 1024)
	server.RegisterHandler(handler)

	config := common.ServerConfig{TimeoutSecond: 5}
	config.Transport.Endpoint = socket
	config.Transport.WorkersPerConn = 4

	done := make(chan error, 1)
	go func() { done <- server.Listen(config) }()

	// Wait until the socket accepts connections
	deadline := time.Now().Add(5 * time.Second)
	for {
		conn, err := net.Dial("unix", socket)
		if err == nil {
			_ = conn.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Server did not start: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	stop := func() {
		if err := server.Close(); err != nil {
			t.Errorf("Failed to close server: %v", err)
		}
		if err := <-done; err != nil {
			t.Errorf("Listen returned error: %v", err)
		}
	}
	return socket, stop
}

func clientConfig(endpoint string) common.ClientConfig {
	config := common.ClientConfig{ClientID: "test", TimeoutSecond: 5}
	config.Transport.Endpoints = []string{endpoint}
	config.Transport.RetryCount = 3
	return config
}

// --------------------------------------------------------------------------
// Frame tests
// --------------------------------------------------------------------------

func TestFrameRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	payloads := [][]byte{[]byte("hello"), {}, bytes.Repeat([]byte{7}, 4096)}

	go func() {
		for i, p := range payloads {
			if err := writeFrame(client, uint64(i+1), p); err != nil {
				t.Errorf("Failed to write frame: %v", err)
			}
		}
	}()

	buf := make([]byte, 16) // smaller than the last payload
	for i, p := range payloads {
		requestID, data, err := readFrame(server, buf)
		if err != nil {
			t.Fatalf("Failed to read frame %d: %v", i, err)
		}
		if requestID != uint64(i+1) {
			t.Errorf("Expected request ID %d, got %d", i+1, requestID)
		}
		if !bytes.Equal(data, p) {
			t.Errorf("Payload %d does not match", i)
		}
	}
}

func TestFrameTooLarge(t *testing.T) {
	if err := writeFrame(nil, 1, make([]byte, maxPayloadSize+1)); err == nil {
		t.Errorf("Expected error for oversized payload")
	}

	// A header announcing more than the maximum is rejected before reading the payload
	header := []byte{0, 0, 0, 0, 0, 0, 0, 1, 0xff, 0xff, 0xff, 0xff}
	if _, _, err := readFrame(bytes.NewReader(header), nil); err == nil {
		t.Errorf("Expected error for oversized frame")
	}
}

// --------------------------------------------------------------------------
// Transport tests
// --------------------------------------------------------------------------

func TestSendAndSessions(t *testing.T) {
	handler := newEchoHandler()
	socket, stop := startServer(t, handler)

	handshakes := 0
	client := NewBaseClientTransport(&testClientConnector{})
	err := client.Connect(clientConfig(socket), func(roundTrip func([]byte) ([]byte, error)) error {
		handshakes++
		resp, err := roundTrip([]byte("hello"))
		if err != nil {
			return err
		}
		if string(resp) != "echo:hello" {
			return fmt.Errorf("unexpected handshake response %q", resp)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	if handshakes != 1 {
		t.Errorf("Expected 1 handshake, got %d", handshakes)
	}

	// Concurrent requests on one connection are correlated by request ID
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := []byte(fmt.Sprintf("req-%d", i))
			resp, err := client.Send(req)
			if err != nil {
				t.Errorf("Send failed: %v", err)
				return
			}
			if string(resp) != "echo:"+string(req) {
				t.Errorf("Expected %q, got %q", "echo:"+string(req), resp)
			}
		}(i)
	}
	wg.Wait()

	if err := client.Close(); err != nil {
		t.Errorf("Failed to close client: %v", err)
	}
	if _, err := client.Send([]byte("x")); err == nil {
		t.Errorf("Expected error when sending on a closed transport")
	}

	stop()

	opened, closed := handler.counts()
	if opened != closed {
		t.Errorf("Expected all sessions to be closed, opened %d, closed %d", opened, closed)
	}
}

func TestReconnectRunsHandshake(t *testing.T) {
	handler := newEchoHandler()
	socket, stop := startServer(t, handler)
	defer stop()

	var mu sync.Mutex
	handshakes := 0

	tr := NewBaseClientTransport(&testClientConnector{})
	err := tr.Connect(clientConfig(socket), func(roundTrip func([]byte) ([]byte, error)) error {
		mu.Lock()
		handshakes++
		mu.Unlock()
		_, err := roundTrip([]byte("hello"))
		return err
	})
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer tr.Close()

	// Break the connection from the client side
	ct := tr.(*clientTransport)
	ct.connectionsMu.RLock()
	c := ct.connections[0]
	ct.connectionsMu.RUnlock()
	c.connMu.Lock()
	_ = c.conn.Close()
	c.connMu.Unlock()

	// The connection is restored in the background
	deadline := time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		n := handshakes
		mu.Unlock()
		if n >= 2 && c.connected() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Connection was not restored, %d handshakes", n)
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp, err := tr.Send([]byte("after"))
	if err != nil {
		t.Fatalf("Send after reconnect failed: %v", err)
	}
	if string(resp) != "echo:after" {
		t.Errorf("Expected %q, got %q", "echo:after", resp)
	}
}

func TestConnectFailures(t *testing.T) {
	tr := NewBaseClientTransport(&testClientConnector{})

	if err := tr.Connect(common.ClientConfig{}, nil); err == nil {
		t.Errorf("Expected error without endpoints")
	}

	missing := filepath.Join(t.TempDir(), "missing.sock")
	if err := tr.Connect(clientConfig(missing), nil); err == nil {
		t.Errorf("Expected error for unreachable endpoint")
	}

	handler := newEchoHandler()
	socket, stop := startServer(t, handler)
	defer stop()

	rejected := errors.New("rejected")
	err := tr.Connect(clientConfig(socket), func(func([]byte) ([]byte, error)) error { return rejected })
	if err == nil {
		t.Errorf("Expected error when the handshake fails")
	}
}

// slowCloseHandler delays the end of every session
type slowCloseHandler struct {
	*echoHandler
	delay time.Duration
}

func (h *slowCloseHandler) CloseSession(sessionID uint64) {
	time.Sleep(h.delay)
	h.echoHandler.CloseSession(sessionID)
}

func TestListenWaitsForSessions(t *testing.T) {
	handler := &slowCloseHandler{echoHandler: newEchoHandler(), delay: 100 * time.Millisecond}

	socket := filepath.Join(t.TempDir(), "livelock.sock")
	server := NewBaseServerTransport(&testServerConnector{}, 1024)
	server.RegisterHandler(handler)

	config := common.ServerConfig{TimeoutSecond: 5}
	config.Transport.Endpoint = socket

	done := make(chan error, 1)
	go func() { done <- server.Listen(config) }()

	// Open two sessions
	var conns []net.Conn
	deadline := time.Now().Add(5 * time.Second)
	for len(conns) < 2 {
		conn, err := net.Dial("unix", socket)
		if err != nil {
			if time.Now().After(deadline) {
				t.Fatalf("Server did not start: %v", err)
			}
			time.Sleep(10 * time.Millisecond)
			continue
		}
		defer conn.Close()
		conns = append(conns, conn)
	}
	for {
		if opened, _ := handler.counts(); opened == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Expected 2 open sessions")
		}
		time.Sleep(10 * time.Millisecond)
	}

	go func() { _ = server.Close() }()

	if err := <-done; err != nil {
		t.Fatalf("Listen returned error: %v", err)
	}
	if opened, closed := handler.counts(); opened != closed {
		t.Errorf("Expected all %d sessions to be closed when Listen returns, got %d", opened, closed)
	}
}
