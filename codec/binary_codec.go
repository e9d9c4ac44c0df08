package codec

// BinaryCodec is the fixed-width little-endian wire encoding.
type BinaryCodec struct{}

func (c *BinaryCodec) Encode(v Traversable) ([]byte, error) {
	return Marshal(v), nil
}

func (c *BinaryCodec) Decode(data []byte, v Traversable) error {
	return Unmarshal(data, v)
}

func (c *BinaryCodec) Type() CodecType {
	return CodecTypeBinary
}
