package errors

// ErrorCode identifies a failure kind. Codes are logged as error_code and
// matched with HasCode.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Error is a coded error. It may wrap a cause and carry data, which is
// appended to the message.
type Error interface {
	error
	Code() ErrorCode
	WithMessage(msg string) Error
	WithData(data any) Error
	GetData() any
	Unwrap() error
}

// Factory creates coded errors.
type Factory interface {
	New(code ErrorCode) Error
	Wrap(code ErrorCode, err error) Error
	WithMessage(code ErrorCode, msg string) Error
	WithData(code ErrorCode, data any) Error
}
