package loki

import (
	"context"
	"fmt"
	"strings"

	"codeberg.org/mutker/bluez-monitor/internal/device"
	"codeberg.org/mutker/bluez-monitor/internal/errors"
	"codeberg.org/mutker/bluez-monitor/internal/logger"
)

// Poster delivers an encoded request body.
type Poster interface {
	Post(ctx context.Context, body []byte) error
}

// Push is a Sink that sends every snapshot to Loki as a JSON log line.
type Push struct {
	client Poster
	host   string
	log    logger.Logger
}

// NewPush returns a log push sink posting through client. host is the value
// of the host label on every stream.
func NewPush(client Poster, host string) *Push {
	return &Push{
		client: client,
		host:   host,
		log:    logger.New("loki"),
	}
}

func (*Push) Name() string {
	return "loki"
}

// Write sends one stream with a single entry for d. Failures are logged.
func (p *Push) Write(ctx context.Context, d device.Device) {
	req, err := BuildPushRequest(d, p.host)
	if err != nil {
		p.fail(err, d)
		return
	}

	if err := p.client.Post(ctx, req.Marshal()); err != nil {
		p.fail(errors.New().Wrap(ErrDelivery, err), d)
		return
	}

	p.log.Debug().Str("address", d.Address.String()).Msg("Pushed log entry")
}

func (p *Push) fail(err error, d device.Device) {
	p.log.ErrorWithCode(err).
		Str("sink", p.Name()).
		Str("address", d.Address.String()).
		Msg("Loki push request failed")
}

// BuildPushRequest translates d into a push request holding one stream
// with one entry.
func BuildPushRequest(d device.Device, host string) (PushRequest, error) {
	line, err := d.JSON()
	if err != nil {
		return PushRequest{}, errors.New().Wrap(ErrEncode, err)
	}

	return PushRequest{
		Streams: []StreamAdapter{{
			Labels: Labels(d, host),
			Entries: []EntryAdapter{{
				Timestamp: d.Timestamp,
				Line:      line,
			}},
		}},
	}, nil
}

// Labels renders the stream selector for d, for example
// {address="AA:BB:CC:DD:EE:FF", host="h1", name="Widget"}. The name label is
// omitted when d has no name.
func Labels(d device.Device, host string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "{address=%q, host=%q", d.Address.String(), host)
	if name, ok := d.DisplayName(); ok {
		fmt.Fprintf(&sb, ", name=%q", name)
	}
	sb.WriteString("}")

	return sb.String()
}
