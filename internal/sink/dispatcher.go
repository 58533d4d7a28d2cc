package sink

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"

	"codeberg.org/mutker/bluez-monitor/internal/device"
	"codeberg.org/mutker/bluez-monitor/internal/errors"
	"codeberg.org/mutker/bluez-monitor/internal/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Dispatcher fans every snapshot out to all configured sinks. Each delivery
// runs in its own goroutine with its own copy of the snapshot, so a slow or
// failing sink never delays the others or the discovery loop.
type Dispatcher struct {
	sinks       []Sink
	maxInFlight int64
	limits      []*semaphore.Weighted
	wg          sync.WaitGroup
	dropped     atomic.Uint64
	log         logger.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMaxInFlight caps concurrent deliveries per sink. When a sink is at its
// cap, new snapshots for that sink are dropped instead of waiting. Zero or
// less means unbounded.
func WithMaxInFlight(n int) Option {
	return func(d *Dispatcher) {
		d.maxInFlight = int64(n)
	}
}

// NewDispatcher returns a Dispatcher for sinks. An empty sink set is a
// configuration error.
func NewDispatcher(sinks []Sink, opts ...Option) (*Dispatcher, error) {
	if len(sinks) == 0 {
		return nil, errors.New().New(ErrNoSinks)
	}

	d := &Dispatcher{
		sinks: append([]Sink(nil), sinks...),
		log:   logger.New("dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.maxInFlight > 0 {
		d.limits = make([]*semaphore.Weighted, len(d.sinks))
		for i := range d.limits {
			d.limits[i] = semaphore.NewWeighted(d.maxInFlight)
		}
	}

	return d, nil
}

// Run pulls snapshots from seq and dispatches each one. A discovery error is
// logged and returned; Run never waits for deliveries to finish.
func (d *Dispatcher) Run(ctx context.Context, seq iter.Seq2[device.Device, error]) error {
	for dev, err := range seq {
		if err != nil {
			d.log.ErrorWithCode(err).Msg("Discovery error")
			return err
		}
		d.Dispatch(ctx, dev)
	}

	return nil
}

// Dispatch starts one delivery per sink for dev and returns immediately.
// Deliveries to a given sink are started in call order.
func (d *Dispatcher) Dispatch(ctx context.Context, dev device.Device) {
	id := uuid.NewString()

	for i, s := range d.sinks {
		release := func() {}
		if d.limits != nil {
			sem := d.limits[i]
			if !sem.TryAcquire(1) {
				d.dropped.Add(1)
				d.log.Warn().
					Str("sink", s.Name()).
					Str("address", dev.Address.String()).
					Int64("max_in_flight", d.maxInFlight).
					Msg("Sink busy, dropping snapshot")
				continue
			}
			release = func() { sem.Release(1) }
		}

		snapshot := dev.Clone()
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			defer release()
			d.deliver(ctx, s, snapshot, id)
		}()
	}
}

func (d *Dispatcher) deliver(ctx context.Context, s Sink, dev device.Device, id string) {
	defer func() {
		if r := recover(); r != nil {
			d.log.ErrorWithCode(errors.New().WithData(ErrDeliveryPanic, r)).
				Str("sink", s.Name()).
				Str("delivery", id).
				Msg("Sink panicked")
		}
	}()

	s.Write(ctx, dev)

	d.log.Trace().
		Str("sink", s.Name()).
		Str("delivery", id).
		Str("address", dev.Address.String()).
		Msg("Wrote device")
}

// Wait blocks until every started delivery has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Dropped returns how many deliveries were skipped because a sink was at
// its in-flight cap.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Sinks returns the configured sinks.
func (d *Dispatcher) Sinks() []Sink {
	return append([]Sink(nil), d.sinks...)
}
