// Package cmd implements the command-line interface of livelock. It provides
// a command to run the lock server and one-shot client commands to inspect and
// change locks.
//
// The package is organized into several subpackages:
//
//   - serve: Starts and configures the livelock server
//   - lock: Client commands (acquire, release, release-all, find, signal, ...)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// All flags can also be set as environment variables with the prefix LIVELOCK_
// (e.g. LIVELOCK_GRACE_PERIOD=30s), .env and .env.local files are read as well.
//
// See livelock -help for a list of all commands.
package cmd
