package config

import (
	"net/url"
	"os"
	"path/filepath"

	"codeberg.org/mutker/bluez-monitor/internal/errors"
	"codeberg.org/mutker/bluez-monitor/internal/logger"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// EnvConfig names an explicit config file.
	EnvConfig = "BLUEZ_MONITOR_CONFIG"

	DefaultLogLevel     = LogLevelInfo
	DefaultExporterHost = "0.0.0.0:9099"
)

type Config struct {
	LogLevel   LogLevel   `mapstructure:"log_level"`
	Prometheus Prometheus `mapstructure:"prometheus"`
	Loki       []Endpoint `mapstructure:"loki"`
	Discovery  Discovery  `mapstructure:"discovery"`
	Dispatch   Dispatch   `mapstructure:"dispatch"`

	// Hostname is the local host name, empty when it cannot be read.
	Hostname string `mapstructure:"-"`
	// File is the config file that was read, empty when defaults are used.
	File string `mapstructure:"-"`
}

// Load parses args and reads the config file. The file is taken from
// --config, then $BLUEZ_MONITOR_CONFIG, then
// $HOME/.config/bluez-monitor/config.toml, then ./config.toml. Without a
// file the exporter is enabled on DefaultExporterHost.
func Load(args []string) (*Config, error) {
	errFactory := errors.New()

	fs := pflag.NewFlagSet("bluez-monitor", pflag.ContinueOnError)
	configFlag := fs.String("config", "", "Path to the config file")
	fs.String("log-level", string(DefaultLogLevel), "Log level (trace, debug, info, warning, error)")
	debugFlag := fs.Bool("debug", false, "Enable debugging mode")
	verboseFlag := fs.Bool("verbose", false, "Enable trace logging")
	fs.String("adapter", "", "Bluetooth adapter to use (default: first adapter)")
	fs.Bool("restart", false, "Restart discovery after an error")
	fs.Int("max-in-flight", 0, "Maximum concurrent deliveries per sink (0: unbounded)")

	if err := fs.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.SetDefault("log_level", string(DefaultLogLevel))

	bindings := map[string]string{
		"log_level":              "log-level",
		"discovery.adapter":      "adapter",
		"discovery.restart":      "restart",
		"dispatch.max_in_flight": "max-in-flight",
	}
	for key, name := range bindings {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	path := findConfigFile(*configFlag)
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if path == "" {
		cfg.Prometheus.Exporter = []Exporter{{Host: DefaultExporterHost}}
	}

	switch {
	case *verboseFlag:
		cfg.LogLevel = LogLevelTrace
	case *debugFlag:
		cfg.LogLevel = LogLevelDebug
	}

	cfg.File = path
	cfg.Hostname = hostname()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// findConfigFile returns the file to read, or "" when none exists. Explicit
// paths are returned even when missing so that reading them fails.
func findConfigFile(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if env := os.Getenv(EnvConfig); env != "" {
		return env
	}

	var candidates []string
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "bluez-monitor", "config.toml"))
	}
	candidates = append(candidates, "config.toml")

	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}

	return ""
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return ""
	}

	return name
}

// Validate checks that every configured sink is usable.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if _, err := logger.ParseLevel(string(c.LogLevel)); err != nil {
		return err
	}

	for _, e := range c.Prometheus.Exporter {
		if e.Host == "" {
			return errFactory.WithMessage(errors.ErrInvalidConfig, "prometheus.exporter: host is required")
		}
	}
	for _, e := range c.Prometheus.RemoteWrite {
		if err := validateURL(e.URL); err != nil {
			return errFactory.WithData(errors.ErrInvalidConfig, "prometheus.remote_write: "+err.Error())
		}
	}
	for _, e := range c.Loki {
		if err := validateURL(e.URL); err != nil {
			return errFactory.WithData(errors.ErrInvalidConfig, "loki: "+err.Error())
		}
	}

	if c.Dispatch.MaxInFlight < 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "dispatch.max_in_flight must not be negative")
	}
	if c.Discovery.MaxRestartElapsed < 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "discovery.max_restart_elapsed must not be negative")
	}

	return nil
}

func validateURL(raw string) error {
	errFactory := errors.New()

	if raw == "" {
		return errFactory.WithMessage(errors.ErrInvalidArgument, "url is required")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return errFactory.Wrap(errors.ErrInvalidArgument, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errFactory.WithMessage(errors.ErrInvalidArgument, "url must be http or https: "+raw)
	}

	return nil
}

// HasSinks reports whether any sink is configured.
func (c *Config) HasSinks() bool {
	return len(c.Prometheus.Exporter) > 0 ||
		len(c.Prometheus.RemoteWrite) > 0 ||
		len(c.Loki) > 0
}
