package menu

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/voxel-client/internal/playstate"
	"github.com/DoyleJ11/voxel-client/internal/protocol"
	"github.com/DoyleJ11/voxel-client/internal/roster"
)

const (
	pingInterval = time.Second

	charSelectionHelp = `commands:
  list
  create <name> <race> <weapon>
  delete <n>
  play <n>
  logout
`
)

// CharSelection picks a character on a connected client. It owns the client
// and closes it when it leaves the stack.
type CharSelection struct {
	deps      Deps
	client    Client
	chars     []roster.Character
	inSession bool
	lastPing  time.Time
	now       func() time.Time
}

func NewCharSelection(deps Deps, c Client) *CharSelection {
	return &CharSelection{deps: deps, client: c, now: time.Now}
}

func (s *CharSelection) Name() string { return "CharSelection" }

func (s *CharSelection) Close() error { return s.client.Close() }

func (s *CharSelection) Play(ctx context.Context, g *playstate.Global) playstate.Result {
	g.Window.GrabCursor(false)

	if s.inSession {
		s.inSession = false
		if err := s.client.Alive(); err != nil {
			// the session has already said what happened
			g.StopSingleplayer()
			return playstate.PopResult()
		}
		if err := s.client.Despawn(ctx); err != nil {
			g.Log.Warn("despawn", zap.Error(err))
		}
	}

	if n := g.TakeNotice(); n != "" {
		s.deps.printf("! %s\n", n)
	}
	s.deps.printf("== character selection ==\n%s", charSelectionHelp)
	s.reload(ctx, g)
	s.list()
	s.lastPing = s.now()

	return frames(ctx, g, func(line string) (playstate.Result, bool) {
		return s.command(ctx, g, line)
	}, func() (playstate.Result, bool) {
		return s.keepAlive(ctx, g)
	})
}

// keepAlive drains the connection every frame and pings once per interval.
// Snapshots keep arriving while no character is spawned.
func (s *CharSelection) keepAlive(ctx context.Context, g *playstate.Global) (playstate.Result, bool) {
	err := s.client.Poll()
	if err == nil && s.now().Sub(s.lastPing) >= pingInterval {
		s.lastPing = s.now()
		err = s.client.Ping(ctx)
	}
	if err != nil {
		g.Log.Warn("lost server while selecting a character", zap.Error(err))
		g.SetNotice("Lost connection to the server: " + err.Error())
		g.StopSingleplayer()
		return playstate.PopResult(), true
	}
	return playstate.Result{}, false
}

func (s *CharSelection) command(ctx context.Context, g *playstate.Global, line string) (playstate.Result, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		s.deps.printf("> ")
		return playstate.Result{}, false
	}

	switch strings.ToLower(fields[0]) {
	case "logout":
		g.StopSingleplayer()
		return playstate.PopResult(), true

	case "list":
		s.reload(ctx, g)
		s.list()

	case "create":
		if len(fields) != 4 {
			s.deps.printf("usage: create <name> <race> <weapon>\n> ")
			break
		}
		c, err := roster.NewCharacter(fields[1], fields[2], fields[3])
		if err == nil {
			err = s.deps.Roster.Create(ctx, c)
		}
		if err != nil {
			s.deps.printf("could not create character: %v\n> ", err)
			break
		}
		s.reload(ctx, g)
		s.list()

	case "delete":
		c, ok := s.pick(fields)
		if !ok {
			break
		}
		if err := s.deps.Roster.Delete(ctx, c.ID); err != nil && !errors.Is(err, roster.ErrNotFound) {
			s.deps.printf("could not delete %s: %v\n> ", c.Name, err)
			break
		}
		s.reload(ctx, g)
		s.list()

	case "play":
		c, ok := s.pick(fields)
		if !ok {
			break
		}
		err := s.client.Spawn(ctx, protocol.Spawn{
			Character: c.Name,
			Race:      string(c.Race),
			Weapon:    string(c.Weapon),
		})
		if err != nil {
			g.Log.Warn("spawn", zap.Error(err))
			g.SetNotice("Could not enter the world: " + err.Error())
			g.StopSingleplayer()
			return playstate.PopResult(), true
		}
		s.inSession = true
		return playstate.PushResult(s.deps.NewSession(s.client)), true

	default:
		s.deps.printf("%s> ", charSelectionHelp)
	}
	return playstate.Result{}, false
}

// pick resolves the 1-based character number in fields[1].
func (s *CharSelection) pick(fields []string) (roster.Character, bool) {
	if len(fields) != 2 {
		s.deps.printf("usage: %s <n>\n> ", fields[0])
		return roster.Character{}, false
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil || n < 1 || n > len(s.chars) {
		s.deps.printf("no character %q\n> ", fields[1])
		return roster.Character{}, false
	}
	return s.chars[n-1], true
}

func (s *CharSelection) reload(ctx context.Context, g *playstate.Global) {
	chars, err := s.deps.Roster.List(ctx)
	if err != nil {
		g.Log.Error("list characters", zap.Error(err))
		s.deps.printf("could not read characters: %v\n", err)
		return
	}
	s.chars = chars
}

func (s *CharSelection) list() {
	if len(s.chars) == 0 {
		s.deps.printf("no characters yet\n> ")
		return
	}
	for i, c := range s.chars {
		s.deps.printf("  %d. %s (%s, %s)\n", i+1, c.Name, c.Race, c.Weapon)
	}
	s.deps.printf("> ")
}
