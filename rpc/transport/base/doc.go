// Package base provides the protocol independent part of the livelock transports.
// Protocol specific packages (tcp, unix) only supply a connector that creates and
// tunes connections.
//
// Frames have the layout
//
//	requestID (uint64, big endian) | length (uint32, big endian) | payload
//
// and payloads larger than 16 MiB are rejected.
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific operations
//
//   - clientTransport: Manages one or more connections per endpoint with round-robin
//     selection. Responses are correlated by request ID so many requests can be in
//     flight on one connection. A broken connection fails its pending requests and is
//     restored in the background with exponential backoff, the handshake runs again
//     on the new connection. Requests are only retried when they never reached the
//     server, lock operations are not idempotent.
//
//   - serverTransport: Accepts connections, assigns every connection a session ID and
//     processes its requests with a bounded number of workers. There is no read
//     deadline: a client holding locks may be idle for a long time.
//
// Thread Safety:
//
//	All public methods are thread-safe. Writes to a connection are serialized with a mutex.
package base
