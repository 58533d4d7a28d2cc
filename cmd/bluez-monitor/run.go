package main

import (
	"context"
	"net/http"
	"time"

	"codeberg.org/mutker/bluez-monitor/internal/bluetooth"
	"codeberg.org/mutker/bluez-monitor/internal/config"
	"codeberg.org/mutker/bluez-monitor/internal/errors"
	"codeberg.org/mutker/bluez-monitor/internal/logger"
	"codeberg.org/mutker/bluez-monitor/internal/loki"
	"codeberg.org/mutker/bluez-monitor/internal/prometheus"
	"codeberg.org/mutker/bluez-monitor/internal/sink"
	"codeberg.org/mutker/bluez-monitor/internal/transport"
	"github.com/cenkalti/backoff/v5"
)

const (
	remoteWriteVersion = "0.1.0"
	httpTimeout        = 30 * time.Second
	shutdownTimeout    = 5 * time.Second
	// A session that ran this long counts as healthy and resets the backoff.
	healthySession = time.Minute
)

// newRestartBackOff is replaced in tests.
var newRestartBackOff = func() backoff.BackOff {
	return backoff.NewExponentialBackOff()
}

// buildSinks creates one sink per configured exporter, remote-write and
// Loki section.
func buildSinks(cfg *config.Config) ([]sink.Sink, error) {
	var sinks []sink.Sink
	httpClient := &http.Client{Timeout: httpTimeout}

	for _, e := range cfg.Prometheus.Exporter {
		exporter, err := prometheus.NewExporter(e.Host, cfg.Hostname)
		if err != nil {
			return nil, err
		}
		logger.Info().Msgf("Enabling Prometheus exporter: http://%s", e.Host)
		sinks = append(sinks, exporter)
	}

	for _, e := range cfg.Prometheus.RemoteWrite {
		client, err := transport.NewClient(transport.Config{
			URL:        e.URL,
			Username:   e.Username,
			Password:   e.Password,
			Headers:    map[string]string{"X-Prometheus-Remote-Write-Version": remoteWriteVersion},
			HTTPClient: httpClient,
		})
		if err != nil {
			return nil, err
		}
		logger.Info().Str("url", e.URL).Msg("Enabling Prometheus remote write")
		sinks = append(sinks, prometheus.NewRemoteWrite(client, cfg.Hostname))
	}

	for _, e := range cfg.Loki {
		client, err := transport.NewClient(transport.Config{
			URL:        e.URL,
			Username:   e.Username,
			Password:   e.Password,
			HTTPClient: httpClient,
		})
		if err != nil {
			return nil, err
		}
		logger.Info().Str("url", e.URL).Msg("Enabling Loki push")
		sinks = append(sinks, loki.NewPush(client, cfg.Hostname))
	}

	return sinks, nil
}

// run drives discovery into the configured sinks until ctx is done or
// discovery fails. Without sinks it returns ErrNoSinks before opener is used.
func run(ctx context.Context, cfg *config.Config, opener bluetooth.Opener) error {
	sinks, err := buildSinks(cfg)
	if err != nil {
		return err
	}
	if len(sinks) == 0 {
		return errors.New().New(errors.ErrNoSinks)
	}
	defer shutdownExporters(sinks)

	dispatcher, err := sink.NewDispatcher(sinks, sink.WithMaxInFlight(cfg.Dispatch.MaxInFlight))
	if err != nil {
		return err
	}
	discoverer := bluetooth.NewDiscoverer(opener)

	if !cfg.Discovery.Restart {
		err := dispatcher.Run(ctx, discoverer.Discover(ctx))
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	return runWithRestart(ctx, cfg.Discovery.MaxRestartElapsed, func() error {
		return dispatcher.Run(ctx, discoverer.Discover(ctx))
	})
}

// runWithRestart reruns session with exponential backoff until ctx is done
// or maxElapsed passes without recovery. Zero maxElapsed never gives up.
func runWithRestart(ctx context.Context, maxElapsed time.Duration, session func() error) error {
	bo := newRestartBackOff()

	operation := func() (struct{}, error) {
		started := time.Now()
		err := session()
		if ctx.Err() != nil {
			return struct{}{}, nil
		}
		if err == nil {
			err = errors.New().WithMessage(errors.ErrDiscovery, "discovery feed closed")
		}
		if time.Since(started) > healthySession {
			bo.Reset()
		}

		return struct{}{}, err
	}

	notify := func(err error, next time.Duration) {
		logger.ErrorWithCode(err).
			Dur("retry_in", next).
			Msg("Discovery stopped, restarting")
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxElapsedTime(maxElapsed),
		backoff.WithNotify(notify),
	)
	if ctx.Err() != nil {
		return nil
	}

	return err
}

func shutdownExporters(sinks []sink.Sink) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for _, s := range sinks {
		exporter, ok := s.(*prometheus.Exporter)
		if !ok {
			continue
		}
		if err := exporter.Shutdown(ctx); err != nil {
			logger.ErrorWithCode(err).Msg("Failed to stop Prometheus exporter")
		}
	}
}
