package loki

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"codeberg.org/mutker/bluez-monitor/internal/device"
	"codeberg.org/mutker/bluez-monitor/internal/sink"
	"codeberg.org/mutker/bluez-monitor/internal/transport"
	"github.com/klauspost/compress/s2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

var _ sink.Sink = (*Push)(nil)

var captured = time.Date(2024, 3, 1, 12, 0, 0, 500, time.UTC)

func snapshot(addr string, props ...device.Property) device.Device {
	return device.FromProperties(props).
		WithAddress(device.MustParseAddress(addr)).
		WithTimestamp(captured)
}

type field struct {
	num protowire.Number
	raw []byte
	u   uint64
}

func fields(t *testing.T, b []byte) []field {
	t.Helper()

	var out []field
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		require.GreaterOrEqual(t, n, 0)
		b = b[n:]

		f := field{num: num}
		switch typ {
		case protowire.BytesType:
			f.raw, n = protowire.ConsumeBytes(b)
		case protowire.VarintType:
			f.u, n = protowire.ConsumeVarint(b)
		default:
			t.Fatalf("unexpected wire type %v", typ)
		}
		require.GreaterOrEqual(t, n, 0)
		b = b[n:]
		out = append(out, f)
	}

	return out
}

func decodePushRequest(t *testing.T, b []byte) PushRequest {
	t.Helper()

	var req PushRequest
	for _, f := range fields(t, b) {
		require.Equal(t, protowire.Number(1), f.num)

		var s StreamAdapter
		for _, sf := range fields(t, f.raw) {
			switch sf.num {
			case 1:
				s.Labels = string(sf.raw)
			case 2:
				var e EntryAdapter
				var secs, nanos int64
				for _, ef := range fields(t, sf.raw) {
					switch ef.num {
					case 1:
						for _, tf := range fields(t, ef.raw) {
							switch tf.num {
							case 1:
								secs = int64(tf.u)
							case 2:
								nanos = int64(tf.u)
							}
						}
					case 2:
						e.Line = string(ef.raw)
					}
				}
				e.Timestamp = time.Unix(secs, nanos).UTC()
				s.Entries = append(s.Entries, e)
			case 3:
				s.Hash = sf.u
			}
		}
		req.Streams = append(req.Streams, s)
	}

	return req
}

type fakePoster struct {
	calls int
	err   error
}

func (p *fakePoster) Post(context.Context, []byte) error {
	p.calls++
	return p.err
}

func TestLabels(t *testing.T) {
	d := snapshot("AA:BB:CC:DD:EE:FF")

	assert.Equal(t, `{address="AA:BB:CC:DD:EE:FF", host="h1"}`, Labels(d, "h1"))
	assert.Equal(t, Labels(d, "h1"), Labels(d.Clone(), "h1"))
}

func TestLabelsWithName(t *testing.T) {
	d := snapshot("AA:BB:CC:DD:EE:FF", device.NameProperty(`Bob's "Phone"`))

	assert.Equal(t, `{address="AA:BB:CC:DD:EE:FF", host="h1", name="Bob's \"Phone\""}`, Labels(d, "h1"))
}

func TestBuildPushRequest(t *testing.T) {
	d := snapshot("11:22:33:44:55:66", device.RSSIProperty(-60))

	req, err := BuildPushRequest(d, "h1")
	require.NoError(t, err)

	require.Len(t, req.Streams, 1)
	require.Len(t, req.Streams[0].Entries, 1)
	assert.Equal(t, uint64(0), req.Streams[0].Hash)

	entry := req.Streams[0].Entries[0]
	assert.Equal(t, captured, entry.Timestamp)

	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(entry.Line), &line))
	assert.Equal(t, "11:22:33:44:55:66", line["address"])
	assert.Equal(t, float64(-60), line["rssi"])
}

func TestPushEndToEnd(t *testing.T) {
	bodies := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body, err := s2.Decode(nil, raw)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		bodies <- body
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client, err := transport.NewClient(transport.Config{URL: srv.URL})
	require.NoError(t, err)

	d := snapshot("11:22:33:44:55:66", device.NameProperty("Widget"))
	NewPush(client, "h1").Write(context.Background(), d)

	require.Len(t, bodies, 1)
	req := decodePushRequest(t, <-bodies)
	require.Len(t, req.Streams, 1)
	assert.Equal(t, `{address="11:22:33:44:55:66", host="h1", name="Widget"}`, req.Streams[0].Labels)
	require.Len(t, req.Streams[0].Entries, 1)
	assert.Equal(t, captured, req.Streams[0].Entries[0].Timestamp)

	want, err := d.JSON()
	require.NoError(t, err)
	assert.Equal(t, want, req.Streams[0].Entries[0].Line)
}

func TestPushSwallowsFailures(t *testing.T) {
	poster := &fakePoster{err: assert.AnError}

	assert.NotPanics(t, func() {
		NewPush(poster, "h1").Write(context.Background(), snapshot("11:22:33:44:55:66"))
	})
	assert.Equal(t, 1, poster.calls)
}
