// Package rpc provides the network layer of livelock: it makes the lock storage
// available to clients in other processes and on other machines.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the RPC system,
//     including the Message protocol, configuration structures, errors and logging.
//
//   - transport: Connection oriented network communication with pluggable
//     implementations (TCP, Unix sockets).
//
//   - serializer: Message serialization with multiple format options (Binary, JSON, GOB)
//     for converting between Message objects and byte arrays.
//
//   - client: The lock client, one client id shared by all of its connections.
//
//   - server: The lock server, session handling and the background jobs of the storage.
//
//   - admin: HTTP endpoint with metrics, statistics and a health check.
package rpc
