package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/app"
	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/config"
	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/lib/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", "err", err)
	}
	l := logger.New(cfg.Log)

	bootstrap, cleanup, err := app.Bootstrap(cfg, l)
	if err != nil {
		l.Fatal("failed to bootstrap app", "err", err)
	}
	defer func() {
		if err := cleanup(); err != nil {
			l.Error("cleanup error", "err", err)
		}
	}()

	addr, err := app.ListenAddr(cfg.App.HTTPPort)
	if err != nil {
		l.Fatal("invalid HTTP port", "err", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- bootstrap.Fiber.Listen(addr)
	}()
	l.Info("server started", "addr", addr, "env", cfg.App.Environment, "sources", bootstrap.Container.Registry.Sources())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			l.Error("server error", "err", err)
		}
	case <-sigCh:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := bootstrap.Fiber.ShutdownWithContext(ctx); err != nil {
			l.Error("shutdown error", "err", err)
		}
	}
}
