package main

import (
	clts "botconsole/clients"
	"botconsole/config"
	"botconsole/internal/app"
	"botconsole/internal/tui"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Load config from .env and environment variables, then the optional YAML file
	cfg := config.Load()
	if path := os.Getenv("BOTCONSOLE_CONFIG"); path != "" {
		fileCfg, err := config.LoadFile(path, cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = fileCfg
	} else if result := cfg.Validate(); !result.Valid {
		fmt.Fprintln(os.Stderr, &config.ConfigValidationError{Errors: result.Errors})
		os.Exit(1)
	}

	// The terminal belongs to the UI, so logs go to a file.
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	logger.Info("instantiating clients", zap.String("backend", cfg.Dashboard.BaseURL))
	clients := clts.NewClients(logger, cfg)
	defer clients.Close()

	session := app.NewSession(logger, cfg, clients, nil)
	defer session.Close()

	if err := session.Start(ctx); err != nil {
		logger.Fatal("session start failed", zap.Error(err))
	}

	if err := tui.Run(ctx, logger.Named("tui"), session); err != nil {
		logger.Error("ui exited", zap.Error(err))
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{cfg.File}
	zcfg.ErrorOutputPaths = []string{cfg.File}
	return zcfg.Build()
}
