// Package client implements the RPC client of the livelock server.
//
// A LockClient owns one client id. Every connection of its transport sends a Hello
// with this id before any other request, after a reconnect as well. The server uses
// the Hello to cancel the pending release of the client's locks, so a short network
// interruption does not lose them. When the last connection of a client is gone the
// server releases its locks after the grace period.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  ClientID:      "worker-1",
//	  TimeoutSecond: 5,
//	  Transport: common.ClientTransportConfig{
//	    Endpoints:  []string{"localhost:5252"},
//	    RetryCount: 3,
//	  },
//	}
//
//	c, err := client.NewRPCLockClient(config, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
//	if err != nil {
//	  return err
//	}
//	defer c.Close()
//
//	if ok, _ := c.Acquire("jobs/42", false); ok {
//	  defer c.Release("jobs/42")
//	  // ...
//	}
//
// Errors returned by the server keep their return code and can be checked with
// errors.Is(err, common.ErrNoSession).
//
// Thread Safety:
//
//	A LockClient can be used concurrently from multiple goroutines.
package client
