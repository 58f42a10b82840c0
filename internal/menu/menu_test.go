package menu

import (
	"bytes"
	"context"
	"errors"
	"io"
	"iter"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/voxel-client/internal/client"
	"github.com/DoyleJ11/voxel-client/internal/config"
	"github.com/DoyleJ11/voxel-client/internal/playstate"
	"github.com/DoyleJ11/voxel-client/internal/protocol"
	"github.com/DoyleJ11/voxel-client/internal/render"
	"github.com/DoyleJ11/voxel-client/internal/roster"
	"github.com/DoyleJ11/voxel-client/internal/roster/sqlite"
	"github.com/DoyleJ11/voxel-client/internal/window"
)

// scriptWindow plays one line per frame, then closes.
type scriptWindow struct {
	lines []string
	swaps int
}

func (w *scriptWindow) FetchEvents() iter.Seq[window.Event] {
	return func(yield func(window.Event) bool) {
		if len(w.lines) == 0 {
			yield(window.Close())
			return
		}
		line := w.lines[0]
		w.lines = w.lines[1:]
		yield(window.Text(line))
	}
}

func (w *scriptWindow) GrabCursor(bool)           {}
func (w *scriptWindow) IsCursorGrabbed() bool     { return false }
func (w *scriptWindow) Renderer() render.Renderer { return render.NewHeadless(nil) }

func (w *scriptWindow) SwapBuffers() error {
	w.swaps++
	return nil
}

type fakeClient struct {
	spawned  []protocol.Spawn
	despawns int
	pings    int
	polls    int
	closed   int
	aliveErr error
	pingErr  error
	pollErr  error
	spawnErr error
}

func (c *fakeClient) Tick(context.Context, client.Input, time.Duration) ([]client.Event, error) {
	return nil, nil
}
func (c *fakeClient) SendChat(string)                 {}
func (c *fakeClient) View() client.View               { return client.View{} }
func (c *fakeClient) Cleanup()                        {}
func (c *fakeClient) Reconnect(context.Context) error { return nil }
func (c *fakeClient) Despawn(context.Context) error   { c.despawns++; return nil }
func (c *fakeClient) Alive() error                    { return c.aliveErr }
func (c *fakeClient) Close() error                    { c.closed++; return nil }

func (c *fakeClient) Spawn(_ context.Context, s protocol.Spawn) error {
	if c.spawnErr != nil {
		return c.spawnErr
	}
	c.spawned = append(c.spawned, s)
	return nil
}

func (c *fakeClient) Poll() error {
	c.polls++
	return c.pollErr
}

func (c *fakeClient) Ping(context.Context) error {
	c.pings++
	return c.pingErr
}

type stopper struct{ stopped int }

func (s *stopper) Close() error {
	s.stopped++
	return nil
}

type sessionStub struct{ client Client }

func (sessionStub) Name() string { return "Session" }
func (sessionStub) Play(context.Context, *playstate.Global) playstate.Result {
	return playstate.PopResult()
}

type harness struct {
	out       bytes.Buffer
	win       *scriptWindow
	global    *playstate.Global
	client    *fakeClient
	store     *sqlite.Store
	connected []string
	connErr   error
	local     *stopper
	deps      Deps
}

func newHarness(t *testing.T, lines ...string) *harness {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "roster.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	h := &harness{
		win:    &scriptWindow{lines: lines},
		client: &fakeClient{},
		store:  store,
		local:  &stopper{},
	}
	h.global = &playstate.Global{
		Window: h.win,
		Log:    zaptest.NewLogger(t),
		Config: config.Config{FPS: 1000, ServerURL: "ws://default/ws?world=main"},
	}
	h.deps = Deps{
		Out:    &h.out,
		Roster: store,
		Connect: func(_ context.Context, url string) (Client, error) {
			h.connected = append(h.connected, url)
			if h.connErr != nil {
				return nil, h.connErr
			}
			return h.client, nil
		},
		StartLocal: func(context.Context) (string, io.Closer, error) {
			return "ws://local/ws?world=main", h.local, nil
		},
		NewSession: func(c Client) playstate.PlayState { return sessionStub{client: c} },
	}
	return h
}

func TestMainMenuQuit(t *testing.T) {
	h := newHarness(t, "quit")
	res := NewMainMenu(h.deps).Play(context.Background(), h.global)
	assert.Equal(t, playstate.Shutdown, res.Kind)
	assert.Contains(t, h.out.String(), "main menu")
}

func TestMainMenuWindowClose(t *testing.T) {
	h := newHarness(t)
	res := NewMainMenu(h.deps).Play(context.Background(), h.global)
	assert.Equal(t, playstate.Shutdown, res.Kind)
}

func TestMainMenuShowsNotice(t *testing.T) {
	h := newHarness(t, "quit")
	h.global.SetNotice("The server shut down.")
	NewMainMenu(h.deps).Play(context.Background(), h.global)
	assert.Contains(t, h.out.String(), "! The server shut down.")
	assert.Empty(t, h.global.TakeNotice())
}

func TestMainMenuConnect(t *testing.T) {
	h := newHarness(t, "connect")
	res := NewMainMenu(h.deps).Play(context.Background(), h.global)

	require.Equal(t, playstate.Push, res.Kind)
	assert.IsType(t, &CharSelection{}, res.Next)
	assert.Equal(t, []string{"ws://default/ws?world=main"}, h.connected)
}

func TestMainMenuConnectFailureStaysInMenu(t *testing.T) {
	h := newHarness(t, "connect ws://elsewhere/ws", "quit")
	h.connErr = client.NetworkError(errors.New("refused"))

	res := NewMainMenu(h.deps).Play(context.Background(), h.global)

	assert.Equal(t, playstate.Shutdown, res.Kind)
	assert.Equal(t, []string{"ws://elsewhere/ws"}, h.connected)
	assert.Contains(t, h.out.String(), "could not connect")
}

func TestMainMenuSingleplayer(t *testing.T) {
	h := newHarness(t, "singleplayer")
	res := NewMainMenu(h.deps).Play(context.Background(), h.global)

	require.Equal(t, playstate.Push, res.Kind)
	assert.Equal(t, []string{"ws://local/ws?world=main"}, h.connected)
	assert.Same(t, h.local, h.global.Singleplayer)
}

func TestMainMenuSingleplayerConnectFailureStopsServer(t *testing.T) {
	h := newHarness(t, "singleplayer", "quit")
	h.connErr = errors.New("nope")

	NewMainMenu(h.deps).Play(context.Background(), h.global)

	assert.Equal(t, 1, h.local.stopped)
	assert.Nil(t, h.global.Singleplayer)
}

func TestCharSelectionCreateAndPlay(t *testing.T) {
	h := newHarness(t, "create Aria elf bow", "create Bram orc axe", "play 2")
	cs := NewCharSelection(h.deps, h.client)

	res := cs.Play(context.Background(), h.global)

	require.Equal(t, playstate.Push, res.Kind)
	stub, ok := res.Next.(sessionStub)
	require.True(t, ok)
	assert.Same(t, h.client, stub.client)
	assert.Equal(t, []protocol.Spawn{{Character: "Bram", Race: "orc", Weapon: "axe"}}, h.client.spawned)
	assert.Contains(t, h.out.String(), "1. Aria (elf, bow)")
	assert.Contains(t, h.out.String(), "2. Bram (orc, axe)")

	// back from the session: despawn, then log out
	h.win.lines = []string{"logout"}
	h.global.Singleplayer = h.local
	res = cs.Play(context.Background(), h.global)
	assert.Equal(t, playstate.Pop, res.Kind)
	assert.Equal(t, 1, h.client.despawns)
	assert.Equal(t, 1, h.local.stopped)

	require.NoError(t, cs.Close())
	assert.Equal(t, 1, h.client.closed)
}

func TestCharSelectionRejectsBadInput(t *testing.T) {
	h := newHarness(t, "create Aria gnome bow", "create", "play 1", "delete x", "logout")
	res := NewCharSelection(h.deps, h.client).Play(context.Background(), h.global)

	assert.Equal(t, playstate.Pop, res.Kind)
	out := h.out.String()
	assert.Contains(t, out, "unknown race")
	assert.Contains(t, out, "usage: create")
	assert.Contains(t, out, `no character "1"`)
	assert.Contains(t, out, `no character "x"`)
	assert.Empty(t, h.client.spawned)
}

func TestCharSelectionDelete(t *testing.T) {
	h := newHarness(t, "create Aria elf bow", "delete 1", "logout")
	NewCharSelection(h.deps, h.client).Play(context.Background(), h.global)

	chars, err := h.store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, chars)
}

func TestCharSelectionPopsWhenServerIsGone(t *testing.T) {
	h := newHarness(t)
	h.win.lines = make([]string, 200) // blank lines keep the menu idle
	h.client.pingErr = &client.Error{Kind: client.KindServerShutdown}
	h.global.Singleplayer = h.local

	cs := NewCharSelection(h.deps, h.client)
	start := time.Now()
	cs.now = func() time.Time { return start.Add(time.Duration(h.win.swaps) * time.Second) }

	res := cs.Play(context.Background(), h.global)

	assert.Equal(t, playstate.Pop, res.Kind)
	assert.Equal(t, 1, h.client.pings)
	assert.Contains(t, h.global.TakeNotice(), "Lost connection")
	assert.Equal(t, 1, h.local.stopped)
}

func TestCharSelectionResumeAfterFailedSession(t *testing.T) {
	h := newHarness(t, "play 1")
	c, err := roster.NewCharacter("Aria", "elf", "bow")
	require.NoError(t, err)
	require.NoError(t, h.store.Create(context.Background(), c))
	cs := NewCharSelection(h.deps, h.client)
	require.Equal(t, playstate.Push, cs.Play(context.Background(), h.global).Kind)

	h.client.aliveErr = &client.Error{Kind: client.KindNetwork}
	h.global.SetNotice("The connection to the server is gone.")
	res := cs.Play(context.Background(), h.global)

	assert.Equal(t, playstate.Pop, res.Kind)
	assert.Zero(t, h.client.despawns)
	assert.Equal(t, "The connection to the server is gone.", h.global.TakeNotice())
}

func TestCharSelectionDrainsConnectionEveryFrame(t *testing.T) {
	h := newHarness(t)
	h.win.lines = append(make([]string, 20), "logout")

	cs := NewCharSelection(h.deps, h.client)
	start := time.Now()
	cs.now = func() time.Time { return start.Add(time.Duration(h.win.swaps) * 100 * time.Millisecond) }

	res := cs.Play(context.Background(), h.global)

	assert.Equal(t, playstate.Pop, res.Kind)
	assert.GreaterOrEqual(t, h.client.polls, 20)
	assert.Less(t, h.client.pings, h.client.polls)
}

func TestCharSelectionPopsWhenPollFails(t *testing.T) {
	h := newHarness(t)
	h.win.lines = make([]string, 5)
	h.client.pollErr = &client.Error{Kind: client.KindServerTimeout}

	res := NewCharSelection(h.deps, h.client).Play(context.Background(), h.global)

	assert.Equal(t, playstate.Pop, res.Kind)
	assert.Equal(t, 1, h.client.polls)
	assert.Zero(t, h.client.pings)
	assert.Contains(t, h.global.TakeNotice(), "Lost connection")
}
