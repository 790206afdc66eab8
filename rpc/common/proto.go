package common

import (
	"encoding/json"
	"fmt"
	"time"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	ClientID  string `json:"client_id,omitempty"` // Used for: Hello, ClientAddress
	Key       string `json:"key,omitempty"`       // Lock id, or the pattern for Find
	Value     string `json:"value,omitempty"`     // Used for: signal operations (request), ClientAddress (response)
	Timeout   uint64 `json:"timeout,omitempty"`   // Used for: ReleaseAll (in milliseconds, 0 = server default)
	Reentrant bool   `json:"reentrant,omitempty"` // Used for: Acquire

	// Response only fields
	Ok    bool       `json:"ok,omitempty"`    // Boolean result of the operation
	Found bool       `json:"found,omitempty"` // Used for: signal operations, ClientAddress (false = target does not exist)
	Items []LockItem `json:"items,omitempty"` // Used for: Find
	Err   string     `json:"err,omitempty"`   // Empty if no error, otherwise contains the error message
}

// LockItem is a single result of a Find request
type LockItem struct {
	ID         string    `json:"id"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewHelloRequest creates a new Hello request that binds a connection to a client
func NewHelloRequest(clientID string) *Message {
	return &Message{
		MsgType:  MsgTHello,
		ClientID: clientID,
	}
}

// NewHelloResponse creates a new Hello response
func NewHelloResponse(err error) *Message {
	return withErr(&Message{
		MsgType: MsgTHello,
		Ok:      err == nil,
	}, err)
}

// NewAcquireRequest creates a new Acquire request
func NewAcquireRequest(key string, reentrant bool) *Message {
	return &Message{
		MsgType:   MsgTAcquire,
		Key:       key,
		Reentrant: reentrant,
	}
}

// NewAcquireResponse creates a new Acquire response
func NewAcquireResponse(ok bool, err error) *Message {
	return withErr(&Message{
		MsgType: MsgTAcquire,
		Ok:      ok,
	}, err)
}

// NewReleaseRequest creates a new Release request
func NewReleaseRequest(key string) *Message {
	return &Message{
		MsgType: MsgTRelease,
		Key:     key,
	}
}

// NewReleaseResponse creates a new Release response
func NewReleaseResponse(ok bool, err error) *Message {
	return withErr(&Message{
		MsgType: MsgTRelease,
		Ok:      ok,
	}, err)
}

// NewReleaseAllRequest creates a new ReleaseAll request
func NewReleaseAllRequest(timeout time.Duration) *Message {
	return &Message{
		MsgType: MsgTReleaseAll,
		Timeout: uint64(max(timeout, 0).Milliseconds()),
	}
}

// NewReleaseAllResponse creates a new ReleaseAll response
func NewReleaseAllResponse(err error) *Message {
	return withErr(&Message{
		MsgType: MsgTReleaseAll,
		Ok:      err == nil,
	}, err)
}

// NewUnreleaseAllRequest creates a new UnreleaseAll request
func NewUnreleaseAllRequest() *Message {
	return &Message{
		MsgType: MsgTUnreleaseAll,
	}
}

// NewUnreleaseAllResponse creates a new UnreleaseAll response
func NewUnreleaseAllResponse(err error) *Message {
	return withErr(&Message{
		MsgType: MsgTUnreleaseAll,
		Ok:      err == nil,
	}, err)
}

// NewLockedRequest creates a new Locked request
func NewLockedRequest(key string) *Message {
	return &Message{
		MsgType: MsgTLocked,
		Key:     key,
	}
}

// NewLockedResponse creates a new Locked response
func NewLockedResponse(ok bool, err error) *Message {
	return withErr(&Message{
		MsgType: MsgTLocked,
		Ok:      ok,
	}, err)
}

// NewFindRequest creates a new Find request
func NewFindRequest(pattern string) *Message {
	return &Message{
		MsgType: MsgTFind,
		Key:     pattern,
	}
}

// NewFindResponse creates a new Find response
func NewFindResponse(items []LockItem, err error) *Message {
	return withErr(&Message{
		MsgType: MsgTFind,
		Ok:      err == nil,
		Items:   items,
	}, err)
}

// NewSignalRequest creates a new request for one of the signal operations
// (MsgTAddSignal, MsgTHasSignal, MsgTRemoveSignal)
func NewSignalRequest(msgType MessageType, key, signal string) *Message {
	return &Message{
		MsgType: msgType,
		Key:     key,
		Value:   signal,
	}
}

// NewSignalResponse creates a new response for one of the signal operations
func NewSignalResponse(msgType MessageType, ok, found bool, err error) *Message {
	return withErr(&Message{
		MsgType: msgType,
		Ok:      ok,
		Found:   found,
	}, err)
}

// NewClientAddressRequest creates a new request for the last known address of a client
func NewClientAddressRequest(clientID string) *Message {
	return &Message{
		MsgType:  MsgTClientAddress,
		ClientID: clientID,
	}
}

// NewClientAddressResponse creates a new ClientAddress response
func NewClientAddressResponse(address string, found bool, err error) *Message {
	return withErr(&Message{
		MsgType: MsgTClientAddress,
		Value:   address,
		Found:   found,
		Ok:      found,
	}, err)
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
	}
}

// withErr sets the error message of msg if err is not nil
func withErr(msg *Message, err error) *Message {
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// messageTypeNames maps every known message type to its string representation
var messageTypeNames = map[MessageType]string{
	MsgTSuccess:       "success",
	MsgTError:         "error",
	MsgTHello:         "hello",
	MsgTAcquire:       "acquire",
	MsgTRelease:       "release",
	MsgTReleaseAll:    "releaseAll",
	MsgTUnreleaseAll:  "unreleaseAll",
	MsgTLocked:        "locked",
	MsgTFind:          "find",
	MsgTAddSignal:     "addSignal",
	MsgTHasSignal:     "hasSignal",
	MsgTRemoveSignal:  "removeSignal",
	MsgTClientAddress: "clientAddress",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	// Convert string back to MessageType
	for msgType, name := range messageTypeNames {
		if name == s {
			*t = msgType
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// Session

	MsgTHello // Bind the connection to a client id

	// ILockStorage operations

	MsgTAcquire       // Acquire a lock
	MsgTRelease       // Release a lock
	MsgTReleaseAll    // Schedule the release of all locks of the client
	MsgTUnreleaseAll  // Cancel a scheduled release
	MsgTLocked        // Check if a lock is held
	MsgTFind          // Find locks by glob pattern
	MsgTAddSignal     // Attach a signal to a lock
	MsgTHasSignal     // Check if a signal is attached to a lock
	MsgTRemoveSignal  // Remove a signal from a lock
	MsgTClientAddress // Get the last known address of a client
)
