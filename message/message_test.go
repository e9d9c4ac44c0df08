package message

import (
	"errors"
	"testing"

	"p2plink/codec"
)

func TestCatalogSizes(t *testing.T) {
	reg := Catalog()
	want := map[uint8]int{
		IDValue:     4,
		IDHeartbeat: 4 + 8 + 1,
		IDTelemetry: 8 + 4 + 4 + 8 + 1 + 1 + 2,
		IDPose:      8 + 3*8 + 9*8,
	}
	for id, size := range want {
		got, err := reg.SizeFor(id)
		if err != nil {
			t.Fatalf("SizeFor(%d): %v", id, err)
		}
		if got != size {
			t.Errorf("SizeFor(%d) = %d, want %d", id, got, size)
		}
	}
	if reg.Len() != 4 {
		t.Fatalf("Len = %d, want 4", reg.Len())
	}
}

func TestValid(t *testing.T) {
	reg := Catalog()
	if reg.Valid(0) {
		t.Error("id 0 must be invalid")
	}
	if reg.Valid(uint8(reg.Len() + 1)) {
		t.Error("id past the end must be invalid")
	}
	for id := 1; id <= reg.Len(); id++ {
		if !reg.Valid(uint8(id)) {
			t.Errorf("id %d must be valid", id)
		}
		// pure: asking twice gives the same answer
		if reg.Valid(uint8(id)) != reg.Valid(uint8(id)) {
			t.Errorf("Valid(%d) not stable", id)
		}
	}
	if reg.Valid(255) {
		t.Error("id 255 must be invalid")
	}
}

func TestNewRegistryRejectsBadIDs(t *testing.T) {
	newValue := func() Payload { return &Value{} }
	cases := []struct {
		name    string
		entries []Entry
	}{
		{"zero id", []Entry{{ID: 0, New: newValue}}},
		{"gap", []Entry{{ID: 1, New: newValue}, {ID: 3, New: newValue}}},
		{"duplicate", []Entry{{ID: 1, New: newValue}, {ID: 1, New: newValue}}},
		{"nil constructor", []Entry{{ID: 1}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRegistry(tc.entries...)
			if !errors.Is(err, ErrInvalidMessageID) {
				t.Fatalf("expected ErrInvalidMessageID, got %v", err)
			}
		})
	}
}

type oversized struct {
	Data [40]float64
}

func (m *oversized) Traverse(v codec.Visitor) {
	codec.Array(v, m.Data[:])
}

func TestNewRegistryRejectsOversize(t *testing.T) {
	_, err := NewRegistry(Entry{ID: 1, New: func() Payload { return &oversized{} }})
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestDecode(t *testing.T) {
	reg := Catalog()
	in := &Heartbeat{Seq: 9, UptimeMillis: 1234, Healthy: true}
	p, err := reg.Decode(IDHeartbeat, codec.Marshal(in))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	out, ok := p.(*Heartbeat)
	if !ok {
		t.Fatalf("Decode returned %T", p)
	}
	if *out != *in {
		t.Fatalf("got %+v, want %+v", *out, *in)
	}

	if _, err := reg.Decode(IDHeartbeat, []byte{1, 2}); !errors.Is(err, codec.ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	if _, err := reg.Decode(0, nil); !errors.Is(err, ErrInvalidMessageID) {
		t.Fatalf("expected ErrInvalidMessageID, got %v", err)
	}
}

func TestCheck(t *testing.T) {
	reg := Catalog()
	if err := reg.Check(IDValue, &Value{X: 1}); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if err := reg.Check(IDValue, &Heartbeat{}); !errors.Is(err, ErrPayloadTypeMismatch) {
		t.Fatalf("expected ErrPayloadTypeMismatch, got %v", err)
	}
	if err := reg.Check(IDValue, nil); !errors.Is(err, ErrPayloadTypeMismatch) {
		t.Fatalf("expected ErrPayloadTypeMismatch for nil, got %v", err)
	}
	if err := reg.Check(9, &Value{}); !errors.Is(err, ErrInvalidMessageID) {
		t.Fatalf("expected ErrInvalidMessageID, got %v", err)
	}
}

func TestEntries(t *testing.T) {
	infos := Catalog().Entries()
	if len(infos) != 4 || infos[0].Name != "value" || infos[3].ID != IDPose {
		t.Fatalf("unexpected entries: %+v", infos)
	}
}
