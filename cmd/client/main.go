package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DoyleJ11/voxel-client/internal/config"
	"github.com/DoyleJ11/voxel-client/internal/logging"
	"github.com/DoyleJ11/voxel-client/internal/menu"
	"github.com/DoyleJ11/voxel-client/internal/playstate"
	"github.com/DoyleJ11/voxel-client/internal/roster/sqlite"
	"github.com/DoyleJ11/voxel-client/internal/window"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() (err error) {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.Dev)
	if err != nil {
		return err
	}
	defer log.Sync()

	bindings, err := window.LoadBindings(cfg.KeyBindingsFile)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	store, err := sqlite.Open(filepath.Join(cfg.DataDir, "roster.db"))
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, store.Close()) }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	win := window.NewConsole(os.Stdin, os.Stdout, bindings, log)
	g := &playstate.Global{Window: win, Log: log, Config: cfg}
	defer g.StopSingleplayer()

	log.Info("starting", zap.String("player", cfg.PlayerName), zap.Int("fps", cfg.FPS))
	err = playstate.Run(ctx, g, menu.NewMainMenu(menu.NewDeps(cfg, win.Output(), store, log)))
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}
