package serializer

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/ValentinKolb/livelock/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present.
// Boolean fields are stored in the flags directly.
const (
	hasClientID  uint16 = 1 << 0
	hasKey       uint16 = 1 << 1
	hasValue     uint16 = 1 << 2
	hasTimeout   uint16 = 1 << 3
	hasItems     uint16 = 1 << 4
	hasErr       uint16 = 1 << 5
	isReentrant  uint16 = 1 << 6
	isOk         uint16 = 1 << 7
	isFound      uint16 = 1 << 8
	headerLength        = 3 // 1 byte MsgType + 2 bytes flags
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	// Calculate total size needed
	totalSize := b.sizeBytes(msg)
	result := make([]byte, totalSize)

	// Write message type
	result[0] = byte(msg.MsgType)

	// Initialize flags
	var flags uint16 = 0

	// Set position for writing
	pos := headerLength

	// Handle ClientID
	if msg.ClientID != "" {
		flags |= hasClientID
		pos = putString(result, pos, msg.ClientID)
	}

	// Handle Key
	if msg.Key != "" {
		flags |= hasKey
		pos = putString(result, pos, msg.Key)
	}

	// Handle Value
	if msg.Value != "" {
		flags |= hasValue
		pos = putString(result, pos, msg.Value)
	}

	// Handle Timeout
	if msg.Timeout > 0 {
		flags |= hasTimeout
		binary.BigEndian.PutUint64(result[pos:pos+8], msg.Timeout)
		pos += 8
	}

	// Handle Items (count + id and acquisition time in unix nanos per item)
	if msg.Items != nil {
		flags |= hasItems
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(len(msg.Items)))
		pos += 4
		for _, item := range msg.Items {
			pos = putString(result, pos, item.ID)
			binary.BigEndian.PutUint64(result[pos:pos+8], uint64(item.AcquiredAt.UnixNano()))
			pos += 8
		}
	}

	// Handle Err
	if msg.Err != "" {
		flags |= hasErr
		pos = putString(result, pos, msg.Err)
	}

	// Handle booleans
	if msg.Reentrant {
		flags |= isReentrant
	}
	if msg.Ok {
		flags |= isOk
	}
	if msg.Found {
		flags |= isFound
	}

	// Set flags after knowing which fields are present
	binary.BigEndian.PutUint16(result[1:3], flags)

	return result[:pos], nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < headerLength {
		return fmt.Errorf("data too short for message header")
	}

	// Read message type
	msg.MsgType = common.MessageType(data[0])

	// Read flags
	flags := binary.BigEndian.Uint16(data[1:3])

	// Initialize read position
	pos := headerLength
	var err error

	// Read ClientID if present
	msg.ClientID = ""
	if flags&hasClientID != 0 {
		if msg.ClientID, pos, err = readString(data, pos, "client id"); err != nil {
			return err
		}
	}

	// Read Key if present
	msg.Key = ""
	if flags&hasKey != 0 {
		if msg.Key, pos, err = readString(data, pos, "key"); err != nil {
			return err
		}
	}

	// Read Value if present
	msg.Value = ""
	if flags&hasValue != 0 {
		if msg.Value, pos, err = readString(data, pos, "value"); err != nil {
			return err
		}
	}

	// Read Timeout if present
	msg.Timeout = 0
	if flags&hasTimeout != 0 {
		if pos+8 > len(data) {
			return fmt.Errorf("data too short for timeout")
		}
		msg.Timeout = binary.BigEndian.Uint64(data[pos : pos+8])
		pos += 8
	}

	// Read Items if present
	msg.Items = nil
	if flags&hasItems != 0 {
		if pos+4 > len(data) {
			return fmt.Errorf("data too short for item count")
		}
		count := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		pos += 4

		// every item takes at least 12 bytes (4 bytes id length + 8 bytes time)
		if count > (len(data)-pos)/12 {
			return fmt.Errorf("data too short for %d items", count)
		}

		msg.Items = make([]common.LockItem, count)
		for i := range msg.Items {
			if msg.Items[i].ID, pos, err = readString(data, pos, "item id"); err != nil {
				return err
			}
			if pos+8 > len(data) {
				return fmt.Errorf("data too short for item time")
			}
			msg.Items[i].AcquiredAt = time.Unix(0, int64(binary.BigEndian.Uint64(data[pos:pos+8]))).UTC()
			pos += 8
		}
	}

	// Read Err if present
	msg.Err = ""
	if flags&hasErr != 0 {
		if msg.Err, pos, err = readString(data, pos, "error"); err != nil {
			return err
		}
	}

	// Read booleans
	msg.Reentrant = flags&isReentrant != 0
	msg.Ok = flags&isOk != 0
	msg.Found = flags&isFound != 0

	if pos != len(data) {
		return fmt.Errorf("%d unexpected trailing bytes", len(data)-pos)
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := headerLength

	// Add sizes for fields that require length encoding
	if msg.ClientID != "" {
		size += 4 + len(msg.ClientID) // 4 bytes for length + client id
	}
	if msg.Key != "" {
		size += 4 + len(msg.Key) // 4 bytes for length + key string
	}
	if msg.Value != "" {
		size += 4 + len(msg.Value) // 4 bytes for length + value string
	}
	if msg.Timeout > 0 {
		size += 8 // uint64
	}
	if msg.Items != nil {
		size += 4 // item count
		for _, item := range msg.Items {
			size += 4 + len(item.ID) + 8 // id + unix nanos
		}
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err) // 4 bytes for length + error string
	}

	return size
}

// putString writes a length prefixed string and returns the new position
func putString(buf []byte, pos int, s string) int {
	binary.BigEndian.PutUint32(buf[pos:pos+4], uint32(len(s)))
	pos += 4
	copy(buf[pos:pos+len(s)], s)
	return pos + len(s)
}

// readString reads a length prefixed string and returns it with the new position
func readString(data []byte, pos int, field string) (string, int, error) {
	if pos+4 > len(data) {
		return "", pos, fmt.Errorf("data too short for %s length", field)
	}
	n := int(binary.BigEndian.Uint32(data[pos : pos+4]))
	pos += 4

	if n > len(data)-pos {
		return "", pos, fmt.Errorf("data too short for %s data", field)
	}
	return string(data[pos : pos+n]), pos + n, nil
}
