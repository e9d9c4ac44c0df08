// Package codec implements the structural payload codec for p2plink.
//
// A payload describes itself once, as an ordered walk over its primitive fields.
// The same walk is replayed under four policies, so the encoded bytes, the decoder,
// the encoded size and the checksum can never drift apart:
//
//	payload.Traverse(v)
//	   │
//	   ├── write policy     → little-endian bytes to an io.Writer
//	   ├── read policy      → fields filled from a byte cursor
//	   ├── checksum policy  → XOR fold of the bytes write would emit
//	   └── size policy      → number of bytes write would emit
//
// Every primitive is fixed width with no padding: bool/int8/uint8 take 1 byte,
// int16/uint16 take 2, int32/uint32/float32 take 4, int64/uint64/float64 take 8.
// Slices, maps and strings have no Visitor method, so variable-length fields
// cannot be expressed and are rejected by the compiler.
package codec

// Visitor receives every primitive leaf of a payload in declaration order.
// Policies implement it; payloads only call it.
type Visitor interface {
	Bool(p *bool)
	Int8(p *int8)
	Uint8(p *uint8)
	Int16(p *int16)
	Uint16(p *uint16)
	Int32(p *int32)
	Uint32(p *uint32)
	Int64(p *int64)
	Uint64(p *uint64)
	Float32(p *float32)
	Float64(p *float64)
}

// Traversable is implemented by every payload type. Traverse must visit the same
// fields in the same order regardless of the field values. Nested structures are
// visited by calling their own Traverse with the same Visitor.
type Traversable interface {
	Traverse(v Visitor)
}

// Scalar lists the primitive types the codec can encode.
type Scalar interface {
	bool | int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64 | float32 | float64
}

// Field visits a single scalar through the method matching its type.
func Field[T Scalar](v Visitor, p *T) {
	switch x := any(p).(type) {
	case *bool:
		v.Bool(x)
	case *int8:
		v.Int8(x)
	case *uint8:
		v.Uint8(x)
	case *int16:
		v.Int16(x)
	case *uint16:
		v.Uint16(x)
	case *int32:
		v.Int32(x)
	case *uint32:
		v.Uint32(x)
	case *int64:
		v.Int64(x)
	case *uint64:
		v.Uint64(x)
	case *float32:
		v.Float32(x)
	case *float64:
		v.Float64(x)
	}
}

// Array visits every element of a fixed-length array slice in index order.
// Pass arr[:] of a Go array so the length is fixed by the type.
func Array[T Scalar](v Visitor, elems []T) {
	for i := range elems {
		Field(v, &elems[i])
	}
}

// Matrix visits a fixed rows x cols matrix column by column: the outer loop
// walks columns and the inner loop walks rows. at returns the address of the
// element at (row, col); back it with a Go array so the dimensions are fixed.
func Matrix[T Scalar](v Visitor, rows, cols int, at func(row, col int) *T) {
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			Field(v, at(r, c))
		}
	}
}
