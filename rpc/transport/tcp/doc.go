// Package tcp implements the TCP socket transport of the livelock RPC system.
// It provides implementations of the base package's connector interfaces, the
// framing, request correlation and reconnect logic is inherited from the base package.
//
// Key Components:
//
//   - clientConnector: TCP implementation of base.IClientConnector
//
//   - serverConnector: TCP implementation of base.IServerConnector
//
// Both connectors apply the same socket options (no delay, buffer sizes, keep-alive,
// linger). Keep-alive matters for a lock server: it is the only way to notice peers
// that vanished without closing their connection.
//
// The default server buffer size is 64 KB.
package tcp
