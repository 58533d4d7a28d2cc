package transport

import "codeberg.org/mutker/bluez-monitor/internal/errors"

const (
	ErrDelivery         = errors.ErrDelivery
	ErrUnexpectedStatus = errors.ErrUnexpectedStatus
)
