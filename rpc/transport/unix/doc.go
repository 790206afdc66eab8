// Package unix implements the livelock RPC transport over Unix domain sockets.
// It is the fastest option when the clients run on the same machine as the server.
//
// This package extends the base transport layer with Unix socket-specific connectors
// while inheriting the framing, request correlation and reconnect handling from the
// base package.
//
// Key Components:
//
//   - clientConnector: Establishes connections using Unix domain sockets
//
//   - serverConnector: Creates Unix socket listeners (an existing socket file is replaced)
//
// The default server buffer size is 64 KB.
package unix
