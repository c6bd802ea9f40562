package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	appcfg "github.com/park285/chess-room/internal/config"
	"github.com/park285/chess-room/internal/obslog"
	"github.com/park285/chess-room/internal/roombuilder"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	if err := obslog.Init(obslog.Options{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		ToConsole: cfg.Log.ToConsole,
		ToFile:    cfg.Log.ToFile,
		File:      cfg.Log.File,
		Caller:    cfg.Log.Caller,
	}); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	octx, ocancel := context.WithTimeout(ctx, 10*time.Second)
	deps, err := roombuilder.New(octx, cfg, logger)
	ocancel()
	if err != nil {
		logger.Fatal("init_failed", zap.Error(err))
	}

	go deps.Hub.RunTicker(ctx, cfg.TickInterval)

	errCh := make(chan error, 1)
	go func() { errCh <- deps.Server.ListenAndServe() }()

	select {
	case <-ctx.Done():
		logger.Info("shutdown_signal")
	case err := <-errCh:
		if err != nil {
			logger.Error("http_failed", zap.Error(err))
		}
	}
	stop()

	sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer scancel()
	if err := deps.Server.Shutdown(sctx); err != nil {
		logger.Warn("http_shutdown", zap.Error(err))
	}
	if err := deps.Close(sctx); err != nil {
		logger.Warn("deps_close", zap.Error(err))
	}
	logger.Info("bye")
}
