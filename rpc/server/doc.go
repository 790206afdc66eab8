// Package server implements the livelock RPC server.
//
// The server owns a single in-memory lock storage (see lib/lockmgr) and serves it over
// one RPC transport. Every connection is a session that is bound to a client by its
// first request, a Hello with the client id. Locks belong to the client, not to the
// connection, so one client may use several connections.
//
// Key Components:
//
//   - IRPCServerAdapter: handles the session events and the decoded requests.
//
//   - NewLockStorageServerAdapter: adapter that maps the requests to lockmgr.ILockStorage.
//     A Hello records the address of the client and cancels a pending release of its
//     locks. When the last session of a client is closed, its locks are released after
//     the grace period of the storage.
//
//   - NewRPCServer: creates the storage, the adapter and the optional admin endpoint,
//     and runs the periodic maintenance and dump jobs.
//
// Usage Example:
//
//	config := common.ServerConfig{TimeoutSecond: 5, LogLevel: "info"}
//	config.Transport.Endpoint = "0.0.0.0:5252"
//	config.Storage.DumpFile = "livelock.dump"
//	config.Storage.LoadDumpOnStart = true
//	config.Storage.DumpOnExit = true
//	config.Storage.MaintenanceInterval = time.Second
//
//	s := server.NewRPCServer(config, tcp.NewTCPServerTransport(), serializer.NewBinarySerializer())
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Serve blocks until SIGINT, SIGTERM or Shutdown. On exit the state is dumped or the dump
// file is removed, depending on the configuration.
package server
