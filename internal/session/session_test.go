package session

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/voxel-client/internal/client"
	"github.com/DoyleJ11/voxel-client/internal/hud"
	"github.com/DoyleJ11/voxel-client/internal/playstate"
	"github.com/DoyleJ11/voxel-client/internal/render"
	"github.com/DoyleJ11/voxel-client/internal/window"
)

// ---- fakes ----

type fakeWindow struct {
	frames  [][]window.Event // one batch per FetchEvents call
	fetched int
	grabbed bool
	swaps   int
	swapErr error
	r       *render.Headless
}

func (w *fakeWindow) FetchEvents() iter.Seq[window.Event] {
	var batch []window.Event
	if w.fetched < len(w.frames) {
		batch = w.frames[w.fetched]
	}
	w.fetched++
	return func(yield func(window.Event) bool) {
		for _, ev := range batch {
			if !yield(ev) {
				return
			}
		}
	}
}

func (w *fakeWindow) GrabCursor(grab bool)      { w.grabbed = grab }
func (w *fakeWindow) IsCursorGrabbed() bool     { return w.grabbed }
func (w *fakeWindow) Renderer() render.Renderer { return w.r }

func (w *fakeWindow) SwapBuffers() error {
	w.swaps++
	return w.swapErr
}

type tickResult struct {
	events []client.Event
	err    error
}

type tickCall struct {
	in      client.Input
	dt      time.Duration
	pending []string
}

type fakeSession struct {
	trace    *[]string
	script   []tickResult
	ticks    []tickCall
	pending  []string
	cleanups int

	reconnectErrs []error
	reconnects    int
}

func (s *fakeSession) Tick(_ context.Context, in client.Input, dt time.Duration) ([]client.Event, error) {
	s.ticks = append(s.ticks, tickCall{in: in, dt: dt, pending: s.pending})
	s.pending = nil
	*s.trace = append(*s.trace, "tick")
	i := len(s.ticks) - 1
	if i < len(s.script) {
		return s.script[i].events, s.script[i].err
	}
	return nil, nil
}

func (s *fakeSession) SendChat(msg string) { s.pending = append(s.pending, msg) }
func (s *fakeSession) View() client.View   { return client.View{ClientID: "me"} }
func (s *fakeSession) Cleanup()            { s.cleanups++ }

// noReconnect hides Reconnect from the session state.
type noReconnect struct{ *fakeSession }

type reconnectingSession struct{ *fakeSession }

func (s reconnectingSession) Reconnect(context.Context) error {
	s.reconnects++
	if len(s.reconnectErrs) == 0 {
		return nil
	}
	err := s.reconnectErrs[0]
	s.reconnectErrs = s.reconnectErrs[1:]
	return err
}

type fakeScene struct {
	trace   *[]string
	yaw     float32
	handled []window.Event
}

func (s *fakeScene) Orientation() mgl32.Vec3 { return mgl32.Vec3{s.yaw, 0, 0} }

func (s *fakeScene) HandleInputEvent(ev window.Event) bool {
	s.handled = append(s.handled, ev)
	return true
}

func (s *fakeScene) Maintain(render.Renderer, client.View) { *s.trace = append(*s.trace, "scene.maintain") }

func (s *fakeScene) Render(r render.Renderer, _ client.View) {
	*s.trace = append(*s.trace, "scene.render")
	r.Submit(render.DrawCall{Kind: render.DrawFigure})
}

type fakeHud struct {
	trace    *[]string
	claimed  []window.Event
	messages []client.Chat
	emit     map[int][]hud.Event // frame index -> events from Maintain
	frame    int
}

func (h *fakeHud) HandleEvent(ev window.Event) bool {
	if ev.Kind != window.EventText {
		return false
	}
	h.claimed = append(h.claimed, ev)
	return true
}

func (h *fakeHud) NewMessage(msg client.Chat) {
	h.messages = append(h.messages, msg)
	*h.trace = append(*h.trace, "hud.message:"+msg.Text)
}

func (h *fakeHud) Maintain(render.Renderer) []hud.Event {
	*h.trace = append(*h.trace, "hud.maintain")
	evs := h.emit[h.frame]
	h.frame++
	return evs
}

func (h *fakeHud) Render(render.Renderer) { *h.trace = append(*h.trace, "hud.render") }

type closer struct{ closed int }

func (c *closer) Close() error {
	c.closed++
	return nil
}

type harness struct {
	trace  []string
	win    *fakeWindow
	sess   *fakeSession
	scene  *fakeScene
	hud    *fakeHud
	global *playstate.Global
	sp     *closer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{}
	h.win = &fakeWindow{r: render.NewHeadless(nil)}
	h.sess = &fakeSession{trace: &h.trace}
	h.scene = &fakeScene{trace: &h.trace}
	h.hud = &fakeHud{trace: &h.trace, emit: map[int][]hud.Event{}}
	h.sp = &closer{}
	h.global = &playstate.Global{Window: h.win, Log: zaptest.NewLogger(t), Singleplayer: h.sp}
	return h
}

func (h *harness) state(sess NetworkSession) *State {
	if sess == nil {
		sess = noReconnect{h.sess}
	}
	return New(sess, h.scene, h.hud, WithFPS(1000))
}

// quitAfter makes the HUD ask to log out on the given frame so Play returns.
func (h *harness) quitAfter(frame int) {
	h.hud.emit[frame] = append(h.hud.emit[frame], hud.Event{Kind: hud.Logout})
}

// ---- tests ----

func TestCloseEventShutsDownBeforeTick(t *testing.T) {
	h := newHarness(t)
	h.win.frames = [][]window.Event{{
		window.Close(),
		window.CursorMove(1, 1),
	}}

	res := h.state(nil).Play(context.Background(), h.global)

	require.Equal(t, playstate.Shutdown, res.Kind)
	assert.Empty(t, h.sess.ticks, "no network tick after close")
	assert.Zero(t, h.win.swaps, "no frame presented after close")
	assert.Zero(t, h.win.r.Frames())
	assert.Empty(t, h.scene.handled, "events after close are not routed")
	assert.Equal(t, 1, h.sp.closed)
	assert.Nil(t, h.global.Singleplayer)
}

func TestFrameOrder(t *testing.T) {
	h := newHarness(t)
	h.sess.script = []tickResult{{events: []client.Event{
		client.Chat{From: "x", Text: "A"},
		client.Chat{From: "x", Text: "B"},
		client.Chat{From: "x", Text: "C"},
	}}}
	h.quitAfter(1)

	res := h.state(nil).Play(context.Background(), h.global)
	require.Equal(t, playstate.Pop, res.Kind)

	first := []string{
		"tick",
		"hud.message:A", "hud.message:B", "hud.message:C",
		"scene.maintain", "hud.maintain",
		"scene.render", "hud.render",
	}
	require.GreaterOrEqual(t, len(h.trace), len(first))
	assert.Equal(t, first, h.trace[:len(first)])

	assert.Equal(t, 1, h.win.swaps)
	assert.Equal(t, uint64(1), h.win.r.Frames())
	assert.Equal(t, bgColor, h.win.r.LastFrame().Clear)
	assert.Equal(t, 1, h.sess.cleanups, "cleanup runs once per completed frame")
}

func TestChatIsSentOnTheNextTick(t *testing.T) {
	h := newHarness(t)
	h.hud.emit[0] = []hud.Event{{Kind: hud.SendMessage, Text: "hello"}}
	h.quitAfter(1)

	h.state(nil).Play(context.Background(), h.global)

	require.Len(t, h.sess.ticks, 2)
	assert.Empty(t, h.sess.ticks[0].pending)
	assert.Equal(t, []string{"hello"}, h.sess.ticks[1].pending)
}

func TestFirstTickHasZeroDelta(t *testing.T) {
	h := newHarness(t)
	h.quitAfter(2)

	h.state(nil).Play(context.Background(), h.global)

	require.Len(t, h.sess.ticks, 3)
	assert.Zero(t, h.sess.ticks[0].dt)
	assert.Positive(t, h.sess.ticks[1].dt)
}

func TestHudQuitStopsSingleplayer(t *testing.T) {
	h := newHarness(t)
	h.hud.emit[0] = []hud.Event{{Kind: hud.Quit}}

	res := h.state(nil).Play(context.Background(), h.global)

	assert.Equal(t, playstate.Shutdown, res.Kind)
	assert.Equal(t, 1, h.sp.closed)
	assert.Zero(t, h.win.swaps, "quit skips the render")
}

func TestEventRouting(t *testing.T) {
	h := newHarness(t)
	look := window.CursorMove(3, 4)
	h.win.frames = [][]window.Event{{
		window.Text("hi"),
		window.KeyDown(window.KeyToggleCursor),
		window.KeyDown(window.KeyMoveForward),
		look,
		window.KeyUp(window.KeyToggleCursor),
	}}
	h.quitAfter(0)

	h.state(nil).Play(context.Background(), h.global)

	assert.Equal(t, []window.Event{window.Text("hi")}, h.hud.claimed)
	assert.False(t, h.win.grabbed, "toggle flips the grab set on entry")
	assert.Equal(t, []window.Event{look, window.KeyUp(window.KeyToggleCursor)}, h.scene.handled)
	require.Len(t, h.sess.ticks, 1)
	assert.Equal(t, mgl32.Vec2{0, 1}, h.sess.ticks[0].in.MoveDir)
}

func TestMoveDirFollowsCameraYaw(t *testing.T) {
	cases := []struct {
		name string
		yaw  float32
		keys []window.Key
		want mgl32.Vec2
	}{
		{"forward facing north", 0, []window.Key{window.KeyMoveForward}, mgl32.Vec2{0, 1}},
		{"right facing north", 0, []window.Key{window.KeyMoveRight}, mgl32.Vec2{1, 0}},
		{"forward facing east", math.Pi / 2, []window.Key{window.KeyMoveForward}, mgl32.Vec2{1, 0}},
		{"right facing east", math.Pi / 2, []window.Key{window.KeyMoveRight}, mgl32.Vec2{0, -1}},
		{"opposite keys cancel", 1, []window.Key{window.KeyMoveLeft, window.KeyMoveRight}, mgl32.Vec2{0, 0}},
		{"nothing held", 0.3, nil, mgl32.Vec2{0, 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.scene.yaw = tc.yaw
			var batch []window.Event
			for _, k := range tc.keys {
				batch = append(batch, window.KeyDown(k))
			}
			h.win.frames = [][]window.Event{batch}
			h.quitAfter(0)

			h.state(nil).Play(context.Background(), h.global)

			require.Len(t, h.sess.ticks, 1)
			got := h.sess.ticks[0].in.MoveDir
			assert.True(t, got.ApproxEqualThreshold(tc.want, 1e-5), "got %v want %v", got, tc.want)
		})
	}
}

func TestReleasedKeyStopsMovement(t *testing.T) {
	h := newHarness(t)
	h.win.frames = [][]window.Event{
		{window.KeyDown(window.KeyMoveBack)},
		{window.KeyUp(window.KeyMoveBack)},
	}
	h.quitAfter(1)

	h.state(nil).Play(context.Background(), h.global)

	require.Len(t, h.sess.ticks, 2)
	assert.Equal(t, mgl32.Vec2{0, -1}, h.sess.ticks[0].in.MoveDir)
	assert.Equal(t, mgl32.Vec2{0, 0}, h.sess.ticks[1].in.MoveDir)
}

func TestSessionErrorRouting(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		reconnect bool
		want      playstate.Kind
		notice    string
	}{
		{"network", client.NetworkError(errors.New("reset")), false, playstate.Pop, "The connection to the server is gone."},
		{"went mad", &client.Error{Kind: client.KindServerWentMad}, false, playstate.Pop, "The server sent data that makes no sense. The session was closed."},
		{"shutdown", &client.Error{Kind: client.KindServerShutdown}, false, playstate.Pop, "You were disconnected: the server shut down."},
		{"other", client.OtherError("boom"), false, playstate.Pop, "Session ended: other: boom"},
		{"timeout without reconnect", &client.Error{Kind: client.KindServerTimeout}, false, playstate.Pop, "Connection to the server timed out."},
		{"timeout with reconnect", &client.Error{Kind: client.KindServerTimeout}, true, playstate.Switch, "Connection to the server timed out. Reconnecting..."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.sess.script = []tickResult{{err: tc.err}}

			var sess NetworkSession = noReconnect{h.sess}
			if tc.reconnect {
				sess = reconnectingSession{h.sess}
			}
			res := h.state(sess).Play(context.Background(), h.global)

			require.Equal(t, tc.want, res.Kind)
			assert.Equal(t, tc.notice, h.global.TakeNotice())
			assert.Zero(t, h.win.swaps, "failed tick skips the render")
			assert.Zero(t, h.sp.closed, "session errors leave singleplayer running")
			if tc.want == playstate.Switch {
				assert.IsType(t, &Reconnect{}, res.Next)
			}
		})
	}
}

func TestSwapFailureShutsDown(t *testing.T) {
	h := newHarness(t)
	h.win.swapErr = fmt.Errorf("%w: gone", window.ErrPresent)

	res := h.state(nil).Play(context.Background(), h.global)

	assert.Equal(t, playstate.Shutdown, res.Kind)
	assert.Equal(t, 1, h.win.swaps)
	assert.Zero(t, h.sess.cleanups)
}

func TestCancelledContextShutsDown(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := h.state(nil).Play(ctx, h.global)

	assert.Equal(t, playstate.Shutdown, res.Kind)
	assert.Empty(t, h.sess.ticks)
}
