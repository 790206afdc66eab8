package serializer

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/livelock/rpc/common"
)

// NewJSONSerializer creates a serializer that encodes messages as JSON objects.
// Message types are written by name (e.g. "acquire"), find results as a list of {id, acquired_at}.
func NewJSONSerializer() IRPCSerializer {
	return jsonSerializerImpl{}
}

type jsonSerializerImpl struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (jsonSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s message as json: %w", msg.MsgType, err)
	}
	return data, nil
}

func (jsonSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	*msg = common.Message{}
	if err := json.Unmarshal(b, msg); err != nil {
		return fmt.Errorf("failed to decode json message: %w", err)
	}
	return nil
}
