package base

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/livelock/rpc/common"
	"github.com/ValentinKolb/livelock/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transport/rpc")

const (
	initialBackoff = 50 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// errNotSent marks failures where the request never reached the server, only these are retried
var errNotSent = errors.New("request not sent")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection based on the provided configuration
	Connect(endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// responseResult contains the result of a request
type responseResult struct {
	data []byte
	err  error
}

// clientConnection represents a single net connection that is restored when it breaks
type clientConnection struct {
	conn         net.Conn // nil while disconnected
	endpoint     string
	requestChans *xsync.MapOf[uint64, chan responseResult]
	connMu       sync.Mutex    // Protects the connection itself and serializes writes
	stopCh       chan struct{} // stopCh of the transport at creation time
	parent       *clientTransport
}

// clientTransport implements the core client transport functionality
// independent of the specific transport medium (unix, tcp, etc.)
type clientTransport struct {
	connector     IClientConnector
	config        common.ClientConfig
	handshake     transport.HandshakeFunc
	connections   []*clientConnection
	connectionsMu sync.RWMutex
	nextConnIndex atomic.Uint64 // Round Robin counter
	nextRequestID atomic.Uint64 // unique request IDs
	stopCh        chan struct{} // closed on Close, stops reconnects
	closed        atomic.Bool
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{
		connector: connector,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig, handshake transport.HandshakeFunc) error {
	if len(config.Transport.Endpoints) == 0 {
		return fmt.Errorf("no endpoints provided")
	}

	// Close all existing connections
	if t.stopCh != nil {
		_ = t.Close()
	}

	// Store the config
	t.config = config
	t.handshake = handshake
	t.stopCh = make(chan struct{})
	t.closed.Store(false)

	// Set default value for ConnectionsPerEndpoint
	connectionsPerEP := max(config.Transport.ConnectionsPerEndpoint, 1)

	connections := make([]*clientConnection, 0, len(config.Transport.Endpoints)*connectionsPerEP)

	// Initialize client connections
	for _, endpoint := range config.Transport.Endpoints {
		// Create multiple connections per endpoint
		for i := 0; i < connectionsPerEP; i++ {
			clientConn := &clientConnection{
				endpoint:     endpoint,
				requestChans: xsync.NewMapOf[uint64, chan responseResult](),
				stopCh:       t.stopCh,
				parent:       t,
			}

			conn, err := clientConn.dial()
			if err != nil {
				Logger.Warningf("Failed to connect to %s (connection %d/%d): %v", endpoint, i+1, connectionsPerEP, err)
				continue
			}
			clientConn.attach(conn)
			connections = append(connections, clientConn)

			Logger.Debugf("Connected to %s (connection %d/%d)", endpoint, i+1, connectionsPerEP)
		}
	}

	// Check if we have at least one connection
	if len(connections) == 0 {
		return fmt.Errorf("failed to connect to any endpoint")
	}

	t.connectionsMu.Lock()
	t.connections = connections
	t.connectionsMu.Unlock()

	Logger.Infof("Connected to %d out of %d connections to %d endpoints using %s transport",
		len(connections), len(config.Transport.Endpoints)*connectionsPerEP, len(config.Transport.Endpoints), t.connector.GetName())

	return nil
}

func (t *clientTransport) Send(req []byte) (resp []byte, err error) {
	if t.closed.Load() {
		return nil, fmt.Errorf("transport is closed")
	}

	// We always try at least once, and up to maxRetries times
	maxRetries := max(t.config.Transport.RetryCount, 1)
	backoff := initialBackoff

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			if !sleep(jitter(backoff), t.stopCh) {
				return nil, fmt.Errorf("transport is closed")
			}
			backoff = min(backoff*2, maxBackoff)
		}

		conn := t.getNextConnection()
		if conn == nil {
			lastErr = fmt.Errorf("%w: no active connections available", errNotSent)
			continue
		}

		data, err := conn.send(req)
		if err == nil {
			return data, nil
		}

		// A request that reached the server must not be repeated, it may have been applied
		if !errors.Is(err, errNotSent) {
			return nil, err
		}

		lastErr = err
		Logger.Debugf("Request attempt %d/%d failed: %v", i+1, maxRetries, err)
	}

	// All attempts failed
	return nil, fmt.Errorf("failed to send request after %d attempts: %w", maxRetries, lastErr)
}

func (t *clientTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	if t.stopCh != nil {
		close(t.stopCh)
	}

	t.connectionsMu.Lock()
	defer t.connectionsMu.Unlock()

	// The readers fail the pending requests once their connection is closed
	for _, c := range t.connections {
		c.connMu.Lock()
		if c.conn != nil {
			_ = c.conn.Close()
			c.conn = nil
		}
		c.connMu.Unlock()
	}
	t.connections = nil

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// timeout returns the configured request timeout, 0 means no timeout
func (t *clientTransport) timeout() time.Duration {
	return time.Duration(t.config.TimeoutSecond) * time.Second
}

// sleep waits for d and returns false if stopCh was closed meanwhile
func sleep(d time.Duration, stopCh <-chan struct{}) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-stopCh:
		return false
	}
}

// getNextConnection selects the next connected connection via Round Robin
func (t *clientTransport) getNextConnection() *clientConnection {
	t.connectionsMu.RLock()
	defer t.connectionsMu.RUnlock()

	n := uint64(len(t.connections))
	if n == 0 {
		return nil
	}

	start := t.nextConnIndex.Add(1)
	for i := uint64(0); i < n; i++ {
		c := t.connections[(start+i)%n]
		if c.connected() {
			return c
		}
	}
	return nil
}

// jitter returns d with a small random jitter (+-10%)
func jitter(d time.Duration) time.Duration {
	return time.Duration(float64(d) * (0.9 + 0.2*rand.Float64()))
}

// stopped reports whether the transport that created the connection was closed
func (c *clientConnection) stopped() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

// connected reports whether the connection is currently usable
func (c *clientConnection) connected() bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn != nil
}

// send writes a single request and waits for the matching response
func (c *clientConnection) send(req []byte) ([]byte, error) {
	requestID := c.parent.nextRequestID.Add(1)
	timeout := c.parent.timeout()

	// Create and register a channel for the response
	respCh := make(chan responseResult, 1)

	c.connMu.Lock()
	conn := c.conn
	if conn == nil {
		c.connMu.Unlock()
		return nil, fmt.Errorf("%w: connection to %s is down", errNotSent, c.endpoint)
	}

	c.requestChans.Store(requestID, respCh)
	defer c.requestChans.Delete(requestID)

	if timeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	err := writeFrame(conn, requestID, req)
	c.connMu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("%w: %v", errNotSent, err)
	}

	// Wait for response or timeout
	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case result := <-respCh:
		return result.data, result.err
	case <-timeoutCh:
		return nil, fmt.Errorf("request timed out")
	}
}

// dial opens a new connection to the endpoint and runs the handshake on it
func (c *clientConnection) dial() (net.Conn, error) {
	conn, err := c.parent.connector.Connect(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", c.endpoint, err)
	}

	// Upgrade the connection with protocol-specific settings
	if err := c.parent.connector.UpgradeConnection(conn, c.parent.config); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to upgrade connection to %s: %w", c.endpoint, err)
	}

	if c.parent.handshake != nil {
		roundTrip := func(req []byte) ([]byte, error) {
			return c.parent.roundTrip(conn, req)
		}
		if err := c.parent.handshake(roundTrip); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("handshake with %s failed: %w", c.endpoint, err)
		}
	}

	return conn, nil
}

// roundTrip sends a request over a connection that has no reader yet
func (t *clientTransport) roundTrip(conn net.Conn, req []byte) ([]byte, error) {
	requestID := t.nextRequestID.Add(1)

	if timeout := t.timeout(); timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(timeout))
		defer conn.SetDeadline(time.Time{})
	}

	if err := writeFrame(conn, requestID, req); err != nil {
		return nil, err
	}

	respID, data, err := readFrame(conn, nil)
	if err != nil {
		return nil, err
	}
	if respID != requestID {
		return nil, fmt.Errorf("received response %d for request %d", respID, requestID)
	}
	return data, nil
}

// attach makes conn the active connection and starts its response reader
func (c *clientConnection) attach(conn net.Conn) bool {
	c.connMu.Lock()
	if c.stopped() {
		c.connMu.Unlock()
		_ = conn.Close()
		return false
	}
	c.conn = conn
	c.connMu.Unlock()

	go c.readResponses(conn)
	return true
}

// readResponses reads responses in a loop and distributes them to waiting requests
func (c *clientConnection) readResponses(conn net.Conn) {
	for {
		// Responses are handed to other goroutines, so every frame gets its own buffer
		requestID, data, err := readFrame(conn, nil)
		if err != nil {
			c.broken(conn, err)
			return
		}

		if respCh, found := c.requestChans.LoadAndDelete(requestID); found {
			respCh <- responseResult{data: data}
		} else {
			Logger.Warningf("Received response for unknown request ID %d", requestID)
		}
	}
}

// broken fails all pending requests of a dead connection and restores it in the background
func (c *clientConnection) broken(conn net.Conn, cause error) {
	c.connMu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.connMu.Unlock()
	_ = conn.Close()

	c.requestChans.Range(func(id uint64, _ chan responseResult) bool {
		if respCh, ok := c.requestChans.LoadAndDelete(id); ok {
			respCh <- responseResult{err: fmt.Errorf("connection to %s lost: %v", c.endpoint, cause)}
		}
		return true
	})

	if c.stopped() {
		return
	}

	Logger.Warningf("Connection to %s lost: %v", c.endpoint, cause)
	c.reconnect()
}

// reconnect restores the connection with exponential backoff until it succeeds or the transport is closed
func (c *clientConnection) reconnect() {
	backoff := initialBackoff
	for attempt := 1; ; attempt++ {
		if !sleep(jitter(backoff), c.stopCh) {
			return
		}

		conn, err := c.dial()
		if err == nil {
			if c.attach(conn) {
				Logger.Infof("Reconnected to %s after %d attempts", c.endpoint, attempt)
			}
			return
		}

		Logger.Debugf("Reconnect attempt %d to %s failed: %v", attempt, c.endpoint, err)
		backoff = min(backoff*2, maxBackoff)
	}
}
