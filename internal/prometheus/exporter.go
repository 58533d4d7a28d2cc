package prometheus

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"codeberg.org/mutker/bluez-monitor/internal/device"
	"codeberg.org/mutker/bluez-monitor/internal/errors"
	"codeberg.org/mutker/bluez-monitor/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var gaugeLabels = []string{"address", "host", "name"}

// Exporter is a Sink that keeps the latest RSSI and TX power per device in
// gauges and serves them for scraping. The HTTP listener starts with the
// first Write.
type Exporter struct {
	addr     string
	host     string
	registry *prometheus.Registry
	rssi     *prometheus.GaugeVec
	txPower  *prometheus.GaugeVec
	log      logger.Logger

	start    sync.Once
	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewExporter returns an exporter that will listen on addr. host is the
// value of the host label on every gauge.
func NewExporter(addr, host string) (*Exporter, error) {
	errFactory := errors.New()

	if addr == "" {
		return nil, errFactory.New(ErrNoExporter)
	}

	e := &Exporter{
		addr:     addr,
		host:     host,
		registry: prometheus.NewRegistry(),
		rssi: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: rssiMetric,
			Help: rssiHelp,
		}, gaugeLabels),
		txPower: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: txPowerMetric,
			Help: "The transmit power of the bluetooth device.",
		}, gaugeLabels),
		log: logger.New("exporter"),
	}

	for _, c := range []prometheus.Collector{e.rssi, e.txPower} {
		if err := e.registry.Register(c); err != nil {
			return nil, errFactory.Wrap(ErrRegister, err)
		}
	}

	return e, nil
}

func (*Exporter) Name() string {
	return "prometheus_exporter"
}

// Write records the metrics present on d. A missing name is exported as
// an empty name label.
func (e *Exporter) Write(_ context.Context, d device.Device) {
	e.start.Do(e.listen)

	name, _ := d.DisplayName()
	labels := prometheus.Labels{
		"address": d.Address.String(),
		"host":    e.host,
		"name":    name,
	}

	if d.RSSI != nil {
		e.rssi.With(labels).Set(float64(*d.RSSI))
	}
	if d.TxPower != nil {
		e.txPower.With(labels).Set(float64(*d.TxPower))
	}
}

// Handler serves the exposition text for every path.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Registry returns the registry holding the exporter's gauges.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Addr returns the bound listener address, or nil before the first Write
// or when listening failed.
func (e *Exporter) Addr() net.Addr {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.listener == nil {
		return nil
	}

	return e.listener.Addr()
}

func (e *Exporter) listen() {
	ln, err := net.Listen("tcp", e.addr)
	if err != nil {
		e.log.ErrorWithCode(errors.New().Wrap(ErrListen, err)).
			Str("host", e.addr).
			Msg("Prometheus exporter failed to listen")
		return
	}

	server := &http.Server{
		Handler:           e.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	e.mu.Lock()
	e.listener = ln
	e.server = server
	e.mu.Unlock()

	e.log.Info().Str("host", ln.Addr().String()).Msg("Prometheus exporter listening")

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.ErrorWithCode(errors.New().Wrap(ErrServe, err)).
				Msg("Prometheus exporter server error")
		}
	}()
}

// Shutdown stops the listener if it was started.
func (e *Exporter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	server := e.server
	e.mu.Unlock()

	if server == nil {
		return nil
	}

	if err := server.Shutdown(ctx); err != nil {
		return errors.New().Wrap(errors.ErrShutdownFailed, err)
	}

	return nil
}
