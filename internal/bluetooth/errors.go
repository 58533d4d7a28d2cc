package bluetooth

import "codeberg.org/mutker/bluez-monitor/internal/errors"

const (
	// Session Errors
	ErrSession         = errors.ErrorCode("bluetooth_session_failed")
	ErrAdapterNotFound = errors.ErrorCode("bluetooth_adapter_not_found")

	// Resolution Errors
	ErrResolve = errors.ErrorCode("bluetooth_resolve_failed")

	// Clock Errors
	ErrClock = errors.ErrorCode("bluetooth_clock_failed")
)
