package codec

type CodecType byte

const (
	CodecTypeBinary CodecType = 0
	CodecTypeJSON   CodecType = 1
)

// Codec renders a payload to bytes and back. The binary codec is the wire
// format; the JSON codec exists for tooling and logs.
type Codec interface {
	Encode(v Traversable) ([]byte, error)
	Decode(data []byte, v Traversable) error
	Type() CodecType // 0=Binary, 1=JSON
}

func GetCodec(codecType CodecType) Codec {
	if codecType == CodecTypeJSON {
		return &JSONCodec{}
	}

	return &BinaryCodec{}
}
