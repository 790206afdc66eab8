package client

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/livelock/rpc/common"
	"github.com/ValentinKolb/livelock/rpc/serializer"
	"github.com/ValentinKolb/livelock/rpc/transport"
)

// LockClient is a client of a livelock server. All of its connections share the client id
// of the configuration, the locks it acquires belong to this id.
type LockClient struct {
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// NewRPCLockClient creates a new lock client and connects the transport
// The function takes a config, a transport and a serializer as parameters
// Every connection of the transport introduces itself with the client id, also after a reconnect
func NewRPCLockClient(
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (*LockClient, error) {
	if config.ClientID == "" {
		return nil, fmt.Errorf("client id must not be empty")
	}

	c := &LockClient{
		config:     config,
		transport:  transport,
		serializer: serializer,
	}

	// Connect the transport
	if err := transport.Connect(config, c.hello); err != nil {
		return nil, err
	}

	return c, nil
}

// --------------------------------------------------------------------------
// Lock Operations
// --------------------------------------------------------------------------

// ClientID returns the identity the client uses on the server
func (c *LockClient) ClientID() string {
	return c.config.ClientID
}

// Acquire tries to take the lock. It returns false if the lock is held by another client,
// or by this client and reentrant is false.
func (c *LockClient) Acquire(lockID string, reentrant bool) (ok bool, err error) {
	resp, err := c.invoke(common.NewAcquireRequest(lockID, reentrant))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

// Release releases the lock if it is held by this client
func (c *LockClient) Release(lockID string) (ok bool, err error) {
	resp, err := c.invoke(common.NewReleaseRequest(lockID))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

// ReleaseAll releases all locks of this client after the timeout (0 = grace period of the server)
func (c *LockClient) ReleaseAll(timeout time.Duration) error {
	_, err := c.invoke(common.NewReleaseAllRequest(timeout))
	return err
}

// UnreleaseAll cancels a pending ReleaseAll
func (c *LockClient) UnreleaseAll() error {
	_, err := c.invoke(common.NewUnreleaseAllRequest())
	return err
}

// Locked returns whether the lock is held by any client
func (c *LockClient) Locked(lockID string) (ok bool, err error) {
	resp, err := c.invoke(common.NewLockedRequest(lockID))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

// Find returns all held locks matching the glob pattern
func (c *LockClient) Find(pattern string) ([]common.LockItem, error) {
	resp, err := c.invoke(common.NewFindRequest(pattern))
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// AddSignal attaches a signal to a lock. found is false if the lock is not held.
func (c *LockClient) AddSignal(lockID, signal string) (ok, found bool, err error) {
	return c.signal(common.MsgTAddSignal, lockID, signal)
}

// HasSignal checks if a signal is attached to a lock. found is false if the lock is not held.
func (c *LockClient) HasSignal(lockID, signal string) (ok, found bool, err error) {
	return c.signal(common.MsgTHasSignal, lockID, signal)
}

// RemoveSignal removes a signal from a lock. found is false if the lock is not held.
func (c *LockClient) RemoveSignal(lockID, signal string) (ok, found bool, err error) {
	return c.signal(common.MsgTRemoveSignal, lockID, signal)
}

// ClientAddress returns the last known address of a client
func (c *LockClient) ClientAddress(clientID string) (address string, found bool, err error) {
	resp, err := c.invoke(common.NewClientAddressRequest(clientID))
	if err != nil {
		return "", false, err
	}
	return resp.Value, resp.Found, nil
}

// Close closes all connections. The server releases the locks of the client after its grace period.
func (c *LockClient) Close() error {
	return c.transport.Close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (c *LockClient) invoke(req *common.Message) (*common.Message, error) {
	return invokeRPCRequest(req, c.transport.Send, c.serializer)
}

func (c *LockClient) signal(msgType common.MessageType, lockID, signal string) (ok, found bool, err error) {
	resp, err := c.invoke(common.NewSignalRequest(msgType, lockID, signal))
	if err != nil {
		return false, false, err
	}
	return resp.Ok, resp.Found, nil
}

// hello binds a new connection to the client id (see transport.HandshakeFunc)
func (c *LockClient) hello(roundTrip func([]byte) ([]byte, error)) error {
	_, err := invokeRPCRequest(common.NewHelloRequest(c.config.ClientID), roundTrip, c.serializer)
	if err != nil {
		Logger.Warningf("Hello of client %s failed: %v", c.config.ClientID, err)
	}
	return err
}
