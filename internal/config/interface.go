package config

import "time"

// Prometheus holds the Prometheus sinks. Each section may be written as a
// single table or as an array of tables.
type Prometheus struct {
	Exporter    []Exporter `mapstructure:"exporter"`
	RemoteWrite []Endpoint `mapstructure:"remote_write"`
}

// Exporter configures a scrape endpoint.
type Exporter struct {
	// Host is the listen address, e.g. "0.0.0.0:9099".
	Host string `mapstructure:"host"`
}

// Endpoint configures a push destination. Basic auth is sent when
// Username is set.
type Endpoint struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Discovery configures the radio stack session.
type Discovery struct {
	// Adapter selects an adapter by name (e.g. "hci1"). Empty means the
	// default adapter.
	Adapter string `mapstructure:"adapter"`
	// Restart makes the driver open a new session after a discovery error.
	Restart bool `mapstructure:"restart"`
	// MaxRestartElapsed bounds how long restarts are retried. Zero retries
	// until the process is stopped.
	MaxRestartElapsed time.Duration `mapstructure:"max_restart_elapsed"`
}

// Dispatch configures the fan-out.
type Dispatch struct {
	// MaxInFlight caps concurrent deliveries per sink. Zero is unbounded.
	MaxInFlight int `mapstructure:"max_in_flight"`
}

// LogLevel represents valid logging levels
type LogLevel string

const (
	LogLevelTrace   LogLevel = "trace"
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// String implements the Stringer interface
func (l LogLevel) String() string {
	return string(l)
}
