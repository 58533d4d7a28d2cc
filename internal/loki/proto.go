package loki

import (
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Push API messages (grafana/loki logproto push.proto).

type PushRequest struct {
	Streams []StreamAdapter
}

type StreamAdapter struct {
	Labels  string
	Entries []EntryAdapter
	Hash    uint64
}

type EntryAdapter struct {
	Timestamp time.Time
	Line      string
}

// Marshal encodes r in protobuf wire format.
func (r *PushRequest) Marshal() []byte {
	var b []byte
	for i := range r.Streams {
		b = appendMessage(b, 1, r.Streams[i].marshal())
	}

	return b
}

func (s *StreamAdapter) marshal() []byte {
	var b []byte
	if s.Labels != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, s.Labels)
	}
	for i := range s.Entries {
		b = appendMessage(b, 2, s.Entries[i].marshal())
	}
	if s.Hash != 0 {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, s.Hash)
	}

	return b
}

func (e *EntryAdapter) marshal() []byte {
	var b []byte
	b = appendMessage(b, 1, marshalTimestamp(e.Timestamp))
	if e.Line != "" {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendString(b, e.Line)
	}

	return b
}

// marshalTimestamp encodes t as a google.protobuf.Timestamp.
func marshalTimestamp(t time.Time) []byte {
	var b []byte
	if secs := t.Unix(); secs != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(secs))
	}
	if nanos := t.Nanosecond(); nanos != 0 {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(nanos)))
	}

	return b
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}
