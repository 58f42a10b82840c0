package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/DoyleJ11/voxel-client/internal/config"
	"github.com/DoyleJ11/voxel-client/internal/journal"
	"github.com/DoyleJ11/voxel-client/internal/logging"
	"github.com/DoyleJ11/voxel-client/internal/server"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.LogLevel, cfg.Dev)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := server.Options{
		Addr:      cfg.ListenAddr,
		WorldCode: cfg.WorldCode,
		TickHz:    cfg.SimTickHz,
		Wanderers: cfg.Wanderers,
		Logger:    log,
	}
	if cfg.DatabaseURL != "" {
		pg, err := journal.OpenPostgres(ctx, cfg.DatabaseURL, log)
		if err != nil {
			log.Fatal("open chat journal", zap.Error(err))
		}
		opts.Journal = pg
		opts.Chat = pg
	}

	if err := server.Run(ctx, opts); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
