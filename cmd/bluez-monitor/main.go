package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/bluez-monitor/internal/bluetooth"
	"codeberg.org/mutker/bluez-monitor/internal/config"
	"codeberg.org/mutker/bluez-monitor/internal/errors"
	"codeberg.org/mutker/bluez-monitor/internal/logger"
	"codeberg.org/mutker/bluez-monitor/internal/pid"
)

const (
	exitOK = iota
	exitError
	exitNoSinks
)

func main() {
	os.Exit(realMain(os.Args[1:]))
}

func realMain(args []string) int {
	cfg, err := config.Load(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return exitError
	}

	// Validate already accepted the level
	level, _ := logger.ParseLevel(string(cfg.LogLevel))
	logger.Init(level, logger.IsService())
	logger.Debug().Str("file", cfg.File).Str("hostname", cfg.Hostname).Msg("Config loaded")

	if !cfg.HasSinks() {
		logger.ErrorWithCode(errors.New().New(errors.ErrNoSinks)).Msg("No writers enabled")
		return exitNoSinks
	}

	pidFile := pid.New(pid.DefaultName)
	if err := pidFile.Write(); err != nil {
		logger.ErrorWithCode(err).Msg("Failed to write PID file")
		return exitError
	}
	defer func() {
		if err := pidFile.Remove(); err != nil {
			logger.ErrorWithCode(err).Msg("Failed to remove PID file")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	if err := run(ctx, cfg, bluetooth.NewBlueZ(cfg.Discovery.Adapter)); err != nil {
		if errors.HasCode(err, errors.ErrNoSinks) {
			logger.ErrorWithCode(err).Msg("No writers enabled")
			return exitNoSinks
		}
		logger.ErrorWithCode(err).Msg("Error in main loop")
		return exitError
	}

	logger.Info().Msg("Exiting...")

	return exitOK
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}
