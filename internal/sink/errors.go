package sink

import "codeberg.org/mutker/bluez-monitor/internal/errors"

const (
	ErrNoSinks       = errors.ErrNoSinks
	ErrDeliveryPanic = errors.ErrorCode("sink_delivery_panic")
)
