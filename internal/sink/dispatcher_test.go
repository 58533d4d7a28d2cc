package sink_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/bluez-monitor/internal/device"
	"codeberg.org/mutker/bluez-monitor/internal/errors"
	"codeberg.org/mutker/bluez-monitor/internal/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink forwards every snapshot it receives on a channel.
type recordingSink struct {
	name string
	got  chan device.Device
}

func newRecordingSink(name string) *recordingSink {
	return &recordingSink{name: name, got: make(chan device.Device, 64)}
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Write(_ context.Context, d device.Device) {
	s.got <- d
}

// stalledSink blocks every write until release is closed.
type stalledSink struct {
	release chan struct{}
	mu      sync.Mutex
	calls   int
}

func (s *stalledSink) Name() string { return "stalled" }

func (s *stalledSink) Write(context.Context, device.Device) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	<-s.release
}

type panickingSink struct{}

func (panickingSink) Name() string { return "panicking" }

func (panickingSink) Write(context.Context, device.Device) { panic("boom") }

// mutatingSink scribbles over its copy of the snapshot.
type mutatingSink struct{ done chan struct{} }

func (mutatingSink) Name() string { return "mutating" }

func (s mutatingSink) Write(_ context.Context, d device.Device) {
	*d.Name = "mutated"
	d.AdvertisingFlags[0] = 0xFF
	close(s.done)
}

func snapshot(i int) device.Device {
	addr := device.Address{0x11, 0x22, 0x33, 0x44, 0x55, byte(i)}
	return device.FromProperties([]device.Property{
		device.NameProperty(fmt.Sprintf("dev-%d", i)),
		device.AdvertisingFlagsProperty{0x06},
	}).WithAddress(addr)
}

func receive(t *testing.T, ch <-chan device.Device) device.Device {
	t.Helper()
	select {
	case d := <-ch:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
		return device.Device{}
	}
}

func TestNewDispatcherRequiresSinks(t *testing.T) {
	d, err := sink.NewDispatcher(nil)

	assert.Nil(t, d)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, sink.ErrNoSinks))
}

func TestRunFanOutIndependence(t *testing.T) {
	stalled := &stalledSink{release: make(chan struct{})}
	defer close(stalled.release)
	healthy := newRecordingSink("healthy")

	d, err := sink.NewDispatcher([]sink.Sink{stalled, healthy})
	require.NoError(t, err)

	const n = 5
	var received []device.Device
	seq := func(yield func(device.Device, error) bool) {
		for i := 0; i < n; i++ {
			if !yield(snapshot(i), nil) {
				return
			}
			// The next pull only happens once the healthy sink has this one,
			// which proves the stalled sink never holds up the loop.
			received = append(received, receive(t, healthy.got))
		}
	}

	require.NoError(t, d.Run(context.Background(), seq))

	require.Len(t, received, n)
	for i, got := range received {
		assert.Equal(t, snapshot(i).Address, got.Address)
	}

	assert.Eventually(t, func() bool {
		stalled.mu.Lock()
		defer stalled.mu.Unlock()
		return stalled.calls == n
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRunStopsOnDiscoveryError(t *testing.T) {
	rec := newRecordingSink("rec")
	d, err := sink.NewDispatcher([]sink.Sink{rec})
	require.NoError(t, err)

	discoveryErr := fmt.Errorf("adapter gone")
	pulledAfterError := false
	seq := func(yield func(device.Device, error) bool) {
		if !yield(snapshot(1), nil) {
			return
		}
		if !yield(device.Device{}, discoveryErr) {
			return
		}
		pulledAfterError = true
		yield(snapshot(2), nil)
	}

	err = d.Run(context.Background(), seq)
	d.Wait()

	assert.ErrorIs(t, err, discoveryErr)
	assert.False(t, pulledAfterError)
	assert.Equal(t, snapshot(1).Address, receive(t, rec.got).Address)
	assert.Empty(t, rec.got)
}

func TestDispatchGivesEachSinkItsOwnCopy(t *testing.T) {
	mut := mutatingSink{done: make(chan struct{})}
	rec := newRecordingSink("rec")
	d, err := sink.NewDispatcher([]sink.Sink{mut, rec})
	require.NoError(t, err)

	orig := snapshot(1)
	d.Dispatch(context.Background(), orig)
	d.Wait()

	got := receive(t, rec.got)
	assert.Equal(t, "dev-1", *got.Name)
	assert.Equal(t, []byte{0x06}, got.AdvertisingFlags)
	assert.Equal(t, "dev-1", *orig.Name)
}

func TestDispatchRecoversPanickingSink(t *testing.T) {
	rec := newRecordingSink("rec")
	d, err := sink.NewDispatcher([]sink.Sink{panickingSink{}, rec})
	require.NoError(t, err)

	d.Dispatch(context.Background(), snapshot(1))
	d.Wait()

	assert.Equal(t, snapshot(1).Address, receive(t, rec.got).Address)
}

func TestDispatchMaxInFlightDrops(t *testing.T) {
	stalled := &stalledSink{release: make(chan struct{})}
	d, err := sink.NewDispatcher([]sink.Sink{stalled}, sink.WithMaxInFlight(1))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		d.Dispatch(context.Background(), snapshot(i))
	}

	assert.Equal(t, uint64(2), d.Dropped())

	close(stalled.release)
	d.Wait()
	assert.Equal(t, 1, stalled.calls)
}
