// Package menu holds the states in front of a session: the main menu and
// character selection.
package menu

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/DoyleJ11/voxel-client/internal/client"
	"github.com/DoyleJ11/voxel-client/internal/clock"
	"github.com/DoyleJ11/voxel-client/internal/config"
	"github.com/DoyleJ11/voxel-client/internal/hud"
	"github.com/DoyleJ11/voxel-client/internal/playstate"
	"github.com/DoyleJ11/voxel-client/internal/protocol"
	"github.com/DoyleJ11/voxel-client/internal/roster"
	"github.com/DoyleJ11/voxel-client/internal/scene"
	"github.com/DoyleJ11/voxel-client/internal/server"
	"github.com/DoyleJ11/voxel-client/internal/session"
	"github.com/DoyleJ11/voxel-client/internal/window"
)

const defaultAspect = 16.0 / 9.0

// Client is the network session as the menus use it.
type Client interface {
	session.NetworkSession
	session.Reconnector
	Spawn(ctx context.Context, s protocol.Spawn) error
	Despawn(ctx context.Context) error
	Ping(ctx context.Context) error
	Poll() error
	Alive() error
	Close() error
}

// Deps are the outside pieces the menus start things with.
type Deps struct {
	Out    io.Writer
	Roster roster.Store
	// Connect opens a session to url.
	Connect func(ctx context.Context, url string) (Client, error)
	// StartLocal runs an in-process authority and returns its URL.
	StartLocal func(ctx context.Context) (string, io.Closer, error)
	// NewSession builds the in-game state for a spawned client.
	NewSession func(c Client) playstate.PlayState
}

// NewDeps wires the menus to real network sessions, the in-process server and
// the session state.
func NewDeps(cfg config.Config, out io.Writer, store roster.Store, log *zap.Logger) Deps {
	return Deps{
		Out:    out,
		Roster: store,
		Connect: func(ctx context.Context, url string) (Client, error) {
			c, err := client.Connect(ctx, url, client.Options{
				Name:    cfg.PlayerName,
				Timeout: cfg.ServerTimeout,
				Logger:  log,
			})
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		StartLocal: func(ctx context.Context) (string, io.Closer, error) {
			s, err := server.StartLocal(ctx, server.Options{
				WorldCode: cfg.WorldCode,
				TickHz:    cfg.SimTickHz,
				Wanderers: cfg.Wanderers,
				Logger:    log,
			})
			if err != nil {
				return "", nil, err
			}
			return s.URL(), s, nil
		},
		NewSession: func(c Client) playstate.PlayState {
			return session.New(c, scene.New(defaultAspect), hud.New(out),
				session.WithFPS(cfg.FPS),
				session.WithReconnect(cfg.ReconnectAttempts),
			)
		},
	}
}

func (d Deps) printf(format string, args ...any) {
	fmt.Fprintf(d.Out, format, args...)
}

// frames runs handle once per frame until it returns a result. It owns
// presentation and pacing for the menus.
func frames(ctx context.Context, g *playstate.Global, handle func(line string) (playstate.Result, bool), idle func() (playstate.Result, bool)) playstate.Result {
	fps := g.Config.FPS
	if fps <= 0 {
		fps = 60
	}
	clk := clock.New()
	frame := clock.Frame(fps)

	for {
		if ctx.Err() != nil {
			return playstate.ShutdownResult()
		}
		for ev := range g.Window.FetchEvents() {
			switch ev.Kind {
			case window.EventClose:
				g.StopSingleplayer()
				return playstate.ShutdownResult()
			case window.EventText:
				if res, done := handle(strings.TrimSpace(ev.Text)); done {
					_ = g.Window.SwapBuffers()
					return res
				}
			}
		}
		if idle != nil {
			if res, done := idle(); done {
				_ = g.Window.SwapBuffers()
				return res
			}
		}
		if err := g.Window.SwapBuffers(); err != nil {
			g.Log.Error("failed to present frame", zap.Error(err))
			return playstate.ShutdownResult()
		}
		clk.Tick(frame)
	}
}
