package prometheus

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

// walkFields calls fn for every top-level field in b. For varint and fixed64
// fields u holds the value; for length-delimited fields v holds the bytes.
func walkFields(t *testing.T, b []byte, fn func(num protowire.Number, v []byte, u uint64)) {
	t.Helper()

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		require.GreaterOrEqual(t, n, 0, "bad tag")
		b = b[n:]

		switch typ {
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			require.GreaterOrEqual(t, n, 0, "bad bytes")
			fn(num, v, 0)
			b = b[n:]
		case protowire.VarintType:
			u, n := protowire.ConsumeVarint(b)
			require.GreaterOrEqual(t, n, 0, "bad varint")
			fn(num, nil, u)
			b = b[n:]
		case protowire.Fixed64Type:
			u, n := protowire.ConsumeFixed64(b)
			require.GreaterOrEqual(t, n, 0, "bad fixed64")
			fn(num, nil, u)
			b = b[n:]
		default:
			t.Fatalf("unexpected wire type %v", typ)
		}
	}
}

func decodeWriteRequest(t *testing.T, b []byte) WriteRequest {
	t.Helper()

	var req WriteRequest
	walkFields(t, b, func(num protowire.Number, v []byte, _ uint64) {
		switch num {
		case 1:
			req.Timeseries = append(req.Timeseries, decodeTimeSeries(t, v))
		case 3:
			req.Metadata = append(req.Metadata, decodeMetadata(t, v))
		}
	})

	return req
}

func decodeTimeSeries(t *testing.T, b []byte) TimeSeries {
	var ts TimeSeries
	walkFields(t, b, func(num protowire.Number, v []byte, _ uint64) {
		switch num {
		case 1:
			var l Label
			walkFields(t, v, func(num protowire.Number, v []byte, _ uint64) {
				switch num {
				case 1:
					l.Name = string(v)
				case 2:
					l.Value = string(v)
				}
			})
			ts.Labels = append(ts.Labels, l)
		case 2:
			var s Sample
			walkFields(t, v, func(num protowire.Number, _ []byte, u uint64) {
				switch num {
				case 1:
					s.Value = math.Float64frombits(u)
				case 2:
					s.Timestamp = int64(u)
				}
			})
			ts.Samples = append(ts.Samples, s)
		}
	})

	return ts
}

func decodeMetadata(t *testing.T, b []byte) MetricMetadata {
	var m MetricMetadata
	walkFields(t, b, func(num protowire.Number, v []byte, u uint64) {
		switch num {
		case 1:
			m.Type = MetricType(u)
		case 2:
			m.MetricFamilyName = string(v)
		case 4:
			m.Help = string(v)
		case 5:
			m.Unit = string(v)
		}
	})

	return m
}

func TestWriteRequestMarshalRoundTrip(t *testing.T) {
	want := WriteRequest{
		Timeseries: []TimeSeries{{
			Labels:  []Label{{Name: "__name__", Value: "up"}, {Name: "job", Value: "x"}},
			Samples: []Sample{{Value: -60, Timestamp: 1700000000123}},
		}},
		Metadata: []MetricMetadata{{
			Type:             MetricTypeGauge,
			MetricFamilyName: "up",
			Help:             "help",
			Unit:             "u",
		}},
	}

	require.Equal(t, want, decodeWriteRequest(t, want.Marshal()))
}

func TestWriteRequestMarshalEmpty(t *testing.T) {
	req := WriteRequest{}
	require.Empty(t, req.Marshal())
}
