package prometheus

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Remote-write 1.0 messages (prometheus/prompb types.proto and remote.proto).
// Only the fields this exporter sends are declared.

// MetricType is MetricMetadata.MetricType.
type MetricType int32

const (
	MetricTypeUnknown MetricType = 0
	MetricTypeCounter MetricType = 1
	MetricTypeGauge   MetricType = 2
)

type WriteRequest struct {
	Timeseries []TimeSeries
	Metadata   []MetricMetadata
}

type TimeSeries struct {
	Labels  []Label
	Samples []Sample
}

type Label struct {
	Name  string
	Value string
}

type Sample struct {
	Value float64
	// Timestamp is in milliseconds since the Unix epoch.
	Timestamp int64
}

type MetricMetadata struct {
	Type             MetricType
	MetricFamilyName string
	Help             string
	Unit             string
}

// Marshal encodes r in protobuf wire format.
func (r *WriteRequest) Marshal() []byte {
	var b []byte
	for i := range r.Timeseries {
		b = appendMessage(b, 1, r.Timeseries[i].marshal())
	}
	for i := range r.Metadata {
		b = appendMessage(b, 3, r.Metadata[i].marshal())
	}

	return b
}

func (ts *TimeSeries) marshal() []byte {
	var b []byte
	for i := range ts.Labels {
		b = appendMessage(b, 1, ts.Labels[i].marshal())
	}
	for i := range ts.Samples {
		b = appendMessage(b, 2, ts.Samples[i].marshal())
	}

	return b
}

func (l *Label) marshal() []byte {
	var b []byte
	b = appendString(b, 1, l.Name)
	b = appendString(b, 2, l.Value)

	return b
}

func (s *Sample) marshal() []byte {
	var b []byte
	if s.Value != 0 {
		b = protowire.AppendTag(b, 1, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(s.Value))
	}
	if s.Timestamp != 0 {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(s.Timestamp))
	}

	return b
}

func (m *MetricMetadata) marshal() []byte {
	var b []byte
	if m.Type != MetricTypeUnknown {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Type))
	}
	b = appendString(b, 2, m.MetricFamilyName)
	b = appendString(b, 4, m.Help)
	b = appendString(b, 5, m.Unit)

	return b
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)

	return protowire.AppendString(b, s)
}
