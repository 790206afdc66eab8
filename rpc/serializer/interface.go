package serializer

import "github.com/ValentinKolb/livelock/rpc/common"

// IRPCSerializer converts lock protocol messages to and from their wire representation.
// Implementations are stateless and can be shared by all sessions.
type IRPCSerializer interface {
	// Serialize encodes the message
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize decodes b into msg. All fields of msg are overwritten,
	// fields that are absent in b are reset to their zero value.
	Deserialize(b []byte, msg *common.Message) error
}
