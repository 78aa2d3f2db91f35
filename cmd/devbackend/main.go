package main

import (
	"botconsole/config"
	"botconsole/internal/devserver"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const (
	shutdownTimeout = 5 * time.Second
	simulateEvery   = 3 * time.Second
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	store := devserver.NewStore()
	server := devserver.NewServer(logger, store)
	go server.Simulate(ctx, simulateEvery)

	httpServer := &http.Server{
		Addr:    cfg.DevBackend.Addr,
		Handler: server.Handler(),
	}

	go func() {
		logger.Info("dev backend listening", zap.String("addr", cfg.DevBackend.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("dev backend failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down dev backend")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("dev backend shutdown", zap.Error(err))
	}
}
