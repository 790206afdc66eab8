package serializer

import (
	"reflect"
	"testing"
	"time"

	"github.com/ValentinKolb/livelock/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	acquiredAt := time.Unix(1_700_000_000, 5).UTC()

	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTSuccess},

		// Hello request
		{
			MsgType:  common.MsgTHello,
			ClientID: "5f0c6c2e-9d2a-4a8e-8f5e-8d3f2b1c0a77",
		},

		// Acquire request
		{
			MsgType:   common.MsgTAcquire,
			Key:       "jobs/42",
			Reentrant: true,
		},

		// ReleaseAll request
		{
			MsgType: common.MsgTReleaseAll,
			Timeout: 5000,
		},

		// Signal response for a missing lock
		{
			MsgType: common.MsgTHasSignal,
			Ok:      false,
			Found:   false,
		},

		// Find response
		{
			MsgType: common.MsgTFind,
			Ok:      true,
			Items: []common.LockItem{
				{ID: "jobs/1", AcquiredAt: acquiredAt},
				{ID: "jobs/2", AcquiredAt: acquiredAt.Add(time.Second)},
			},
		},

		// Error response
		{
			MsgType: common.MsgTError,
			Err:     "test error message",
		},

		// Message with all fields filled
		{
			MsgType:   common.MsgTAddSignal,
			ClientID:  "client",
			Key:       "test-lock-key",
			Value:     "cancel",
			Timeout:   300,
			Reentrant: true,
			Ok:        true,
			Found:     true,
			Items:     []common.LockItem{{ID: "x", AcquiredAt: acquiredAt}},
			Err:       "something",
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				// Compare
				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, msg, result)
				}
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			// Test each message type (don't test for MsgTUnknown since this should raise an error)
			for msgType := common.MsgTSuccess; msgType <= common.MsgTClientAddress; msgType++ {
				msg := common.Message{MsgType: msgType}

				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType.String(), err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType.String(), err)
					continue
				}

				// Check type
				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s",
						msgType.String(), result.MsgType.String())
				}
			}
		})
	}
}

// TestDeserializeResetsFields tests that a reused message does not keep fields of a previous message
func TestDeserializeResetsFields(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			full := testMessages()[len(testMessages())-1]
			data, err := serializer.Serialize(full)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			var result common.Message
			if err := serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			data, err = serializer.Serialize(common.Message{MsgType: common.MsgTLocked, Key: "k"})
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}
			if err := serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			expected := common.Message{MsgType: common.MsgTLocked, Key: "k"}
			if !reflect.DeepEqual(expected, result) {
				t.Errorf("Expected %+v, got %+v", expected, result)
			}
		})
	}
}

// TestBinarySerializerEmptyItems tests that the binary serializer keeps an empty, non nil item list
func TestBinarySerializerEmptyItems(t *testing.T) {
	serializer := NewBinarySerializer()

	data, err := serializer.Serialize(common.Message{MsgType: common.MsgTFind, Items: []common.LockItem{}})
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}

	var result common.Message
	if err := serializer.Deserialize(data, &result); err != nil {
		t.Fatalf("Failed to deserialize: %v", err)
	}
	if result.Items == nil || len(result.Items) != 0 {
		t.Errorf("Expected empty item list, got %v", result.Items)
	}
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectError: true,
		},
		{
			name:        "Too short header",
			data:        []byte{1, 0}, // Message type and half of the flags
			expectError: true,
		},
		{
			name:        "Valid header only",
			data:        []byte{1, 0, 0}, // Message type 1, no flags
			expectError: false,
		},
		{
			name:        "Booleans only",
			data:        []byte{4, 0x01, 0xc0}, // Acquire, reentrant + ok + found
			expectError: false,
		},
		{
			name:        "Invalid length for key",
			data:        []byte{1, 0, 2, 0, 0, 0, 5, 'a', 'b', 'c'}, // Claims key length 5 but only 3 bytes provided
			expectError: true,
		},
		{
			name:        "Invalid length for value",
			data:        []byte{1, 0, 4, 0, 0, 0, 10}, // Claims value length 10 but no bytes provided
			expectError: true,
		},
		{
			name:        "Truncated timeout",
			data:        []byte{1, 0, 8, 0, 0, 0}, // Claims timeout but only 3 bytes provided
			expectError: true,
		},
		{
			name:        "Huge item count",
			data:        []byte{1, 0, 16, 0xff, 0xff, 0xff, 0xff}, // Claims 4 billion items
			expectError: true,
		},
		{
			name:        "Trailing bytes",
			data:        []byte{1, 0, 0, 42},
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}

// TestMessageTypeJSON tests that message types are encoded as strings in JSON
func TestMessageTypeJSON(t *testing.T) {
	serializer := NewJSONSerializer()

	data, err := serializer.Serialize(common.Message{MsgType: common.MsgTReleaseAll})
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}
	if string(data) != `{"msg_type":"releaseAll"}` {
		t.Errorf("Expected message type as string, got %s", data)
	}

	var msg common.Message
	if err := serializer.Deserialize([]byte(`{"msg_type":"doesNotExist"}`), &msg); err == nil {
		t.Errorf("Expected error for unknown message type")
	}
}
