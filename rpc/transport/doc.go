// Package transport defines the interfaces for the RPC communication of livelock.
// It provides a common contract that all transport implementations must fulfill,
// so the server and client are independent of the network protocol.
//
// Unlike a plain request/response transport, livelock transports are connection
// oriented: every accepted connection is a session, and the lock server releases
// the locks of a client once its last session is gone.
//
// Key Components:
//
//   - IRPCClientTransport: client side, handles connection management, request
//     sending and reconnects. A HandshakeFunc runs on every new connection so the
//     server learns the identity of the client before any other request.
//
//   - IRPCServerTransport: server side, accepts connections and passes their
//     requests to an IServerHandler.
//
//   - IServerHandler: receives session open/close events and requests.
package transport
