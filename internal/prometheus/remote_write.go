package prometheus

import (
	"context"

	"codeberg.org/mutker/bluez-monitor/internal/device"
	"codeberg.org/mutker/bluez-monitor/internal/errors"
	"codeberg.org/mutker/bluez-monitor/internal/logger"
)

const (
	rssiMetric    = "bluetooth_rssi"
	txPowerMetric = "bluetooth_tx_power"

	rssiHelp    = "The Received Signal Strength Indicator value for the bluetooth device."
	txPowerHelp = "The TX Power in dBm for the bluetooth device."
)

// Poster delivers an encoded request body.
type Poster interface {
	Post(ctx context.Context, body []byte) error
}

// RemoteWrite is a Sink that pushes RSSI and TX power samples to a
// Prometheus remote-write endpoint.
type RemoteWrite struct {
	client Poster
	host   string
	log    logger.Logger
}

// NewRemoteWrite returns a remote-write sink posting through client. host is
// the value of the host label on every series.
func NewRemoteWrite(client Poster, host string) *RemoteWrite {
	return &RemoteWrite{
		client: client,
		host:   host,
		log:    logger.New("remote_write"),
	}
}

func (*RemoteWrite) Name() string {
	return "prometheus_remote_write"
}

// Write sends one request holding a series for each metric present on d.
// Failures are logged.
func (w *RemoteWrite) Write(ctx context.Context, d device.Device) {
	req := BuildWriteRequest(d, w.host)

	if err := w.client.Post(ctx, req.Marshal()); err != nil {
		w.log.ErrorWithCode(errors.New().Wrap(ErrDelivery, err)).
			Str("sink", w.Name()).
			Str("address", d.Address.String()).
			Msg("Prometheus remote write request failed")
		return
	}

	w.log.Debug().
		Str("address", d.Address.String()).
		Int("series", len(req.Timeseries)).
		Msg("Sent remote write request")
}

// BuildWriteRequest translates d into a write request. Metrics absent from d
// produce no series, so the result holds zero, one or two series.
func BuildWriteRequest(d device.Device, host string) WriteRequest {
	var req WriteRequest

	if d.RSSI != nil {
		series, meta := gaugeSeries(d, host, rssiMetric, float64(*d.RSSI), rssiHelp, "RSSI")
		req.Timeseries = append(req.Timeseries, series)
		req.Metadata = append(req.Metadata, meta)
	}
	if d.TxPower != nil {
		series, meta := gaugeSeries(d, host, txPowerMetric, float64(*d.TxPower), txPowerHelp, "dBm")
		req.Timeseries = append(req.Timeseries, series)
		req.Metadata = append(req.Metadata, meta)
	}

	return req
}

func gaugeSeries(d device.Device, host, metric string, value float64, help, unit string) (TimeSeries, MetricMetadata) {
	labels := []Label{
		{Name: "address", Value: d.Address.String()},
		{Name: "host", Value: host},
	}
	if name, ok := d.DisplayName(); ok {
		labels = append(labels, Label{Name: "name", Value: name})
	}
	labels = append(labels, Label{Name: "__name__", Value: metric})

	series := TimeSeries{
		Labels: labels,
		Samples: []Sample{{
			Value:     value,
			Timestamp: d.Timestamp.UnixMilli(),
		}},
	}
	meta := MetricMetadata{
		Type:             MetricTypeGauge,
		MetricFamilyName: metric,
		Help:             help,
		Unit:             unit,
	}

	return series, meta
}
