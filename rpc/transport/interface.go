package transport

import (
	"github.com/ValentinKolb/livelock/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// IServerHandler processes the requests received by a server transport.
// Every accepted connection is a session. A session is opened before its first request
// is handled and closed after its last request was handled.
type IServerHandler interface {
	// OpenSession is called when a new connection was accepted
	OpenSession(sessionID uint64, remoteAddr string)
	// Handle processes a single request of a session and returns the response.
	// It may be called concurrently for the same session.
	Handle(sessionID uint64, req []byte) (resp []byte)
	// CloseSession is called when the connection is gone and all of its requests are done
	CloseSession(sessionID uint64)
}

// IRPCServerTransport is the interface for the RPC transport layer
// It must accept a ServerConfig as a parameter
type IRPCServerTransport interface {
	// RegisterHandler registers the handler for the transport layer
	// This handler is called for every session and request
	RegisterHandler(handler IServerHandler)
	// Listen starts the transport layer and listens for incoming requests.
	// It blocks until Close is called and all sessions are closed, or until the listener fails.
	Listen(config common.ServerConfig) error
	// Close stops listening, closes all connections and waits until all sessions are closed
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// HandshakeFunc is executed on every new connection before the connection is used.
// roundTrip sends a request over the new connection and returns the response.
type HandshakeFunc func(roundTrip func(req []byte) (resp []byte, err error)) error

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration.
	// The handshake (may be nil) runs on the initial connection and on every reconnect.
	Connect(config common.ClientConfig, handshake HandshakeFunc) error
	// Send sends a request to the server and returns the response
	Send(req []byte) (resp []byte, err error)
	// Close closes the transport connection
	Close() error
}
