// Package common provides core data structures and utilities shared across
// the livelock server, client and transports. It defines the protocol
// messages, configuration structures and the logger used by all other packages.
//
// The package focuses on:
//   - Message protocol definition for client/server communication
//   - Configuration structures for client and server components
//   - Custom logging implementation on top of the dragonboat logger facade
//   - Return codes for protocol level errors
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication, with a flexible
//     structure that adapts to different operation types. Includes factory
//     methods for creating the request and response of every operation.
//
//   - MessageType: Enumeration defining all supported operation types: the
//     session handshake (Hello), the lock storage operations and control messages.
//
//   - ServerConfig: Configuration of the server: transport, lock storage
//     (dump file, grace period, background jobs), admin endpoint and logging.
//
//   - ClientConfig: Configuration for client components, controlling the client
//     identity, connection parameters, timeouts and retry behavior.
//
//   - Logger: Custom logging implementation that plugs into dragonboat's
//     logger facade and provides consistent formatting across the application.
package common
