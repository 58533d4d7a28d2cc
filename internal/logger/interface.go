package logger

// Logger defines the interface for logging operations.
type Logger interface {
	Trace() *LogEvent
	Debug() *LogEvent
	Info() *LogEvent
	Warn() *LogEvent
	Error() *LogEvent
	ErrorWithCode(err error) *LogEvent
}

// component is a Logger that tags every event with the component name.
type component struct {
	name string
}

// New returns a Logger for the named component. Events are written through
// the process logger configured by Init, so New may be called before Init.
func New(name string) Logger {
	return component{name: name}
}

func (c component) tag(e *LogEvent) *LogEvent {
	e.Event = e.Str("component", c.name)
	return e
}

func (c component) Trace() *LogEvent { return c.tag(Trace()) }
func (c component) Debug() *LogEvent { return c.tag(Debug()) }
func (c component) Info() *LogEvent  { return c.tag(Info()) }
func (c component) Warn() *LogEvent  { return c.tag(Warn()) }
func (c component) Error() *LogEvent { return c.tag(Error()) }

func (c component) ErrorWithCode(err error) *LogEvent {
	return c.tag(ErrorWithCode(err))
}
