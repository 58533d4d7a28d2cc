package loki

import "codeberg.org/mutker/bluez-monitor/internal/errors"

const (
	ErrDelivery = errors.ErrDelivery
	ErrEncode   = errors.ErrEncode
)
