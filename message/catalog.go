package message

import "p2plink/codec"

// Ids of the built-in catalog.
const (
	IDValue     uint8 = 1
	IDHeartbeat uint8 = 2
	IDTelemetry uint8 = 3
	IDPose      uint8 = 4
)

// Value carries a single signed integer.
type Value struct {
	X int32 `json:"x" yaml:"x"`
}

func (m *Value) Traverse(v codec.Visitor) {
	v.Int32(&m.X)
}

// Heartbeat is sent periodically by each end of a link.
type Heartbeat struct {
	Seq          uint32 `json:"seq" yaml:"seq"`
	UptimeMillis uint64 `json:"uptime_ms" yaml:"uptime_ms"`
	Healthy      bool   `json:"healthy" yaml:"healthy"`
}

func (m *Heartbeat) Traverse(v codec.Visitor) {
	v.Uint32(&m.Seq)
	v.Uint64(&m.UptimeMillis)
	v.Bool(&m.Healthy)
}

// Telemetry is a periodic power and temperature sample.
type Telemetry struct {
	Timestamp   int64   `json:"timestamp" yaml:"timestamp"`
	Voltage     float32 `json:"voltage" yaml:"voltage"`
	Current     float32 `json:"current" yaml:"current"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	Status      uint8   `json:"status" yaml:"status"`
	Errors      int8    `json:"errors" yaml:"errors"`
	Channel     uint16  `json:"channel" yaml:"channel"`
}

func (m *Telemetry) Traverse(v codec.Visitor) {
	v.Int64(&m.Timestamp)
	v.Float32(&m.Voltage)
	v.Float32(&m.Current)
	v.Float64(&m.Temperature)
	v.Uint8(&m.Status)
	v.Int8(&m.Errors)
	v.Uint16(&m.Channel)
}

// Vec3 is a fixed 3-vector.
type Vec3 [3]float64

func (m *Vec3) Traverse(v codec.Visitor) {
	codec.Array(v, m[:])
}

// Pose is a timestamped position and rotation. Rotation is encoded column by column.
type Pose struct {
	Stamp    uint64        `json:"stamp" yaml:"stamp"`
	Position Vec3          `json:"position" yaml:"position"`
	Rotation [3][3]float64 `json:"rotation" yaml:"rotation"`
}

func (m *Pose) Traverse(v codec.Visitor) {
	v.Uint64(&m.Stamp)
	m.Position.Traverse(v)
	codec.Matrix(v, 3, 3, func(r, c int) *float64 { return &m.Rotation[r][c] })
}

// Catalog returns the registry of built-in message types.
func Catalog() *Registry {
	return MustRegistry(
		Entry{ID: IDValue, Name: "value", New: func() Payload { return &Value{} }},
		Entry{ID: IDHeartbeat, Name: "heartbeat", New: func() Payload { return &Heartbeat{} }},
		Entry{ID: IDTelemetry, Name: "telemetry", New: func() Payload { return &Telemetry{} }},
		Entry{ID: IDPose, Name: "pose", New: func() Payload { return &Pose{} }},
	)
}
