package menu

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/DoyleJ11/voxel-client/internal/playstate"
)

const mainMenuHelp = `commands:
  singleplayer       play on a local server
  connect [url]      join a server
  quit
`

// MainMenu is the root state.
type MainMenu struct {
	deps Deps
}

func NewMainMenu(deps Deps) *MainMenu {
	return &MainMenu{deps: deps}
}

func (m *MainMenu) Name() string { return "MainMenu" }

func (m *MainMenu) Play(ctx context.Context, g *playstate.Global) playstate.Result {
	g.Window.GrabCursor(false)
	if n := g.TakeNotice(); n != "" {
		m.deps.printf("! %s\n", n)
	}
	m.deps.printf("== main menu ==\n%s> ", mainMenuHelp)

	return frames(ctx, g, func(line string) (playstate.Result, bool) {
		return m.command(ctx, g, line)
	}, nil)
}

func (m *MainMenu) command(ctx context.Context, g *playstate.Global, line string) (playstate.Result, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		m.deps.printf("> ")
		return playstate.Result{}, false
	}

	switch strings.ToLower(fields[0]) {
	case "quit", "exit":
		return playstate.ShutdownResult(), true

	case "singleplayer":
		url, stop, err := m.deps.StartLocal(ctx)
		if err != nil {
			g.Log.Error("start local server", zap.Error(err))
			m.deps.printf("could not start a local server: %v\n> ", err)
			return playstate.Result{}, false
		}
		g.Singleplayer = stop
		c, err := m.deps.Connect(ctx, url)
		if err != nil {
			g.StopSingleplayer()
			m.deps.printf("could not join the local server: %v\n> ", err)
			return playstate.Result{}, false
		}
		return playstate.PushResult(NewCharSelection(m.deps, c)), true

	case "connect":
		url := g.Config.ServerURL
		if len(fields) > 1 {
			url = fields[1]
		}
		m.deps.printf("connecting to %s...\n", url)
		c, err := m.deps.Connect(ctx, url)
		if err != nil {
			g.Log.Warn("connect", zap.String("url", url), zap.Error(err))
			m.deps.printf("could not connect: %v\n> ", err)
			return playstate.Result{}, false
		}
		return playstate.PushResult(NewCharSelection(m.deps, c)), true

	default:
		m.deps.printf("%s> ", mainMenuHelp)
		return playstate.Result{}, false
	}
}
