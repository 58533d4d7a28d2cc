package prometheus

import "codeberg.org/mutker/bluez-monitor/internal/errors"

const (
	ErrDelivery   = errors.ErrDelivery
	ErrListen     = errors.ErrorCode("exporter_listen_failed")
	ErrServe      = errors.ErrorCode("exporter_serve_failed")
	ErrRegister   = errors.ErrorCode("exporter_register_failed")
	ErrNoExporter = errors.ErrorCode("exporter_host_missing")
)
