package bluetooth

import (
	"context"
	"time"

	"codeberg.org/mutker/bluez-monitor/internal/device"
)

// Opener opens a session with the radio subsystem.
type Opener interface {
	Open(ctx context.Context) (Session, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context) (Session, error)

func (f OpenerFunc) Open(ctx context.Context) (Session, error) {
	return f(ctx)
}

// Session is a live connection to the radio subsystem.
type Session interface {
	DefaultAdapter(ctx context.Context) (Adapter, error)
	Close() error
}

// Adapter is one local bluetooth controller.
type Adapter interface {
	Name() string
	SetPowered(ctx context.Context, powered bool) error
	// DiscoverDevices starts discovery and returns the change feed. The
	// channel is closed once ctx is done or the session goes away.
	DiscoverDevices(ctx context.Context) (<-chan AdapterEvent, error)
	// DeviceProperties fetches the full current property set of a device.
	DeviceProperties(ctx context.Context, addr device.Address) ([]device.Property, error)
}

// EventKind is the kind of change reported on an adapter's feed.
type EventKind int

const (
	DeviceAdded EventKind = iota
	DeviceRemoved
	PropertyChanged
)

func (k EventKind) String() string {
	switch k {
	case DeviceAdded:
		return "device_added"
	case DeviceRemoved:
		return "device_removed"
	case PropertyChanged:
		return "property_changed"
	default:
		return "unknown"
	}
}

// AdapterEvent is one entry of an adapter's change feed.
type AdapterEvent struct {
	Kind    EventKind
	Address device.Address
}

// Clock supplies capture timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
