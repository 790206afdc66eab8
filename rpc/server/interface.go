package server

import (
	"github.com/ValentinKolb/livelock/rpc/common"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for handling sessions, requests and responses
type IRPCServerAdapter interface {
	// OpenSession registers a new connection
	OpenSession(sessionID uint64, remoteAddr string)

	// Handle handles a request of a session and returns a response
	// If an error occurs, it should be set in the response
	Handle(sessionID uint64, req *common.Message) (resp *common.Message)

	// CloseSession is called after the last request of a connection was handled
	CloseSession(sessionID uint64)
}
