package sink

import (
	"context"

	"codeberg.org/mutker/bluez-monitor/internal/device"
)

// Sink is a delivery target for device snapshots.
//
// Write is best effort: implementations log their own failures and never
// report them to the caller. Each call is independent; nothing is retried or
// queued. Write may be called concurrently.
type Sink interface {
	Name() string
	Write(ctx context.Context, d device.Device)
}
