package bluetooth

import (
	"context"
	"iter"
	"time"

	"codeberg.org/mutker/bluez-monitor/internal/device"
	"codeberg.org/mutker/bluez-monitor/internal/errors"
	"codeberg.org/mutker/bluez-monitor/internal/logger"
)

// Discoverer turns a radio-stack session into a sequence of device snapshots.
type Discoverer struct {
	opener Opener
	clock  Clock
	log    logger.Logger
}

// Option configures a Discoverer.
type Option func(*Discoverer)

// WithClock replaces the wall clock used to stamp snapshots.
func WithClock(c Clock) Option {
	return func(d *Discoverer) {
		d.clock = c
	}
}

func NewDiscoverer(opener Opener, opts ...Option) *Discoverer {
	d := &Discoverer{
		opener: opener,
		clock:  systemClock{},
		log:    logger.New("discovery"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Discover returns a lazy sequence of snapshots, one per device the adapter
// reports as added. Nothing touches the radio subsystem until iteration
// starts. Every range over the sequence opens a fresh session.
//
// The sequence ends when ctx is done, when the feed closes, or after the
// first error, which is yielded as the final item.
func (d *Discoverer) Discover(ctx context.Context) iter.Seq2[device.Device, error] {
	return func(yield func(device.Device, error) bool) {
		errFactory := errors.New()

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		adapter, closeSession, err := d.start(ctx)
		if err != nil {
			yield(device.Device{}, errFactory.Wrap(ErrSession, err))
			return
		}
		defer closeSession()

		events, err := adapter.DiscoverDevices(ctx)
		if err != nil {
			yield(device.Device{}, errFactory.Wrap(ErrSession, err))
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					d.log.Debug().Str("adapter", adapter.Name()).Msg("Device feed closed")
					return
				}
				if ev.Kind != DeviceAdded {
					continue
				}

				snapshot, err := d.resolve(ctx, adapter, ev.Address)
				if err != nil {
					yield(device.Device{}, err)
					return
				}
				if !yield(snapshot, nil) {
					return
				}
			}
		}
	}
}

func (d *Discoverer) start(ctx context.Context) (Adapter, func(), error) {
	session, err := d.opener.Open(ctx)
	if err != nil {
		return nil, nil, err
	}
	closeSession := func() {
		if err := session.Close(); err != nil {
			d.log.Warn().Err(err).Msg("Failed to close bluetooth session")
		}
	}

	adapter, err := session.DefaultAdapter(ctx)
	if err != nil {
		closeSession()
		return nil, nil, err
	}

	if err := adapter.SetPowered(ctx, true); err != nil {
		closeSession()
		return nil, nil, err
	}

	d.log.Info().Str("adapter", adapter.Name()).Msg("Discovering devices")

	return adapter, closeSession, nil
}

func (d *Discoverer) resolve(ctx context.Context, adapter Adapter, addr device.Address) (device.Device, error) {
	errFactory := errors.New()

	props, err := adapter.DeviceProperties(ctx, addr)
	if err != nil {
		return device.Device{}, errFactory.Wrap(ErrResolve, err).WithMessage("failed to resolve " + addr.String())
	}

	now, err := d.now()
	if err != nil {
		return device.Device{}, err
	}

	snapshot := device.FromProperties(props)
	snapshot.Address = addr
	snapshot.Timestamp = now

	d.log.Trace().Str("address", addr.String()).Int("properties", len(props)).Msg("Device added")

	return snapshot, nil
}

// now reads the clock, rejecting readings before the Unix epoch: sinks
// encode capture time as an offset from it.
func (d *Discoverer) now() (time.Time, error) {
	t := d.clock.Now()
	if t.Before(time.Unix(0, 0)) {
		return time.Time{}, errors.New().WithData(ErrClock, t.UTC().Format(time.RFC3339Nano))
	}
	return t, nil
}
