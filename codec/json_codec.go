package codec

import (
	"encoding/json"
)

// JSONCodec renders payloads with encoding/json, field names included.
// It never goes on the wire; the CLI uses it to show and accept payloads.
type JSONCodec struct{}

func (c *JSONCodec) Encode(v Traversable) ([]byte, error) {
	return json.Marshal(v)
}

func (c *JSONCodec) Decode(data []byte, v Traversable) error {
	return json.Unmarshal(data, v)
}

func (c *JSONCodec) Type() CodecType {
	return CodecTypeJSON
}
