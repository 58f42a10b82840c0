// Package session runs an active game session: one frame loop that ticks
// the network session, feeds the HUD and scene, and renders.
package session

import (
	"context"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/DoyleJ11/voxel-client/internal/client"
	"github.com/DoyleJ11/voxel-client/internal/clock"
	"github.com/DoyleJ11/voxel-client/internal/hud"
	"github.com/DoyleJ11/voxel-client/internal/keystate"
	"github.com/DoyleJ11/voxel-client/internal/playstate"
	"github.com/DoyleJ11/voxel-client/internal/render"
	"github.com/DoyleJ11/voxel-client/internal/window"
)

const defaultFPS = 60

var bgColor = render.Rgba{R: 0, G: 0.3, B: 1, A: 1}

// NetworkSession is the connection to the simulation authority.
type NetworkSession interface {
	Tick(ctx context.Context, in client.Input, dt time.Duration) ([]client.Event, error)
	SendChat(msg string)
	View() client.View
	Cleanup()
}

// Scene owns the visible world. It only reads the session's View.
type Scene interface {
	Orientation() mgl32.Vec3
	HandleInputEvent(ev window.Event) bool
	Maintain(r render.Renderer, view client.View)
	Render(r render.Renderer, view client.View)
}

type Hud interface {
	// HandleEvent reports whether the HUD captured the event.
	HandleEvent(ev window.Event) bool
	NewMessage(msg client.Chat)
	Maintain(r render.Renderer) []hud.Event
	Render(r render.Renderer)
}

var movementKeys = map[window.Key]keystate.Direction{
	window.KeyMoveForward: keystate.Forward,
	window.KeyMoveBack:    keystate.Back,
	window.KeyMoveLeft:    keystate.Left,
	window.KeyMoveRight:   keystate.Right,
}

type Option func(*State)

func WithFPS(fps int) Option {
	return func(s *State) {
		if fps > 0 {
			s.fps = fps
		}
	}
}

// WithReconnect sets how many times a timed-out session tries to reconnect.
func WithReconnect(attempts uint) Option {
	return func(s *State) { s.reconnectAttempts = attempts }
}

// State is the play state of an active session.
type State struct {
	client NetworkSession
	scene  Scene
	hud    Hud

	keys  keystate.KeyState
	clock *clock.Clock
	fps   int

	reconnectAttempts uint
	opts              []Option
}

func New(sess NetworkSession, sc Scene, h Hud, opts ...Option) *State {
	s := &State{
		client:            sess,
		scene:             sc,
		hud:               h,
		fps:               defaultFPS,
		reconnectAttempts: defaultReconnectAttempts,
		opts:              opts,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// resumed returns a fresh session state over the same collaborators.
func (s *State) resumed() *State {
	return New(s.client, s.scene, s.hud, s.opts...)
}

func (s *State) Name() string { return "Session" }

func (s *State) Play(ctx context.Context, g *playstate.Global) playstate.Result {
	g.Window.GrabCursor(true)
	s.clock = clock.New()
	frameLen := clock.Frame(s.fps)

	for {
		if ctx.Err() != nil {
			return playstate.ShutdownResult()
		}
		if res, done := s.frame(ctx, g); done {
			return res
		}

		s.clock.Tick(frameLen)
		s.client.Cleanup()
	}
}

// frame runs one iteration up to presentation. done is set when the session
// is over.
func (s *State) frame(ctx context.Context, g *playstate.Global) (res playstate.Result, done bool) {
	for ev := range g.Window.FetchEvents() {
		if s.hud.HandleEvent(ev) {
			continue
		}
		switch ev.Kind {
		case window.EventClose:
			g.StopSingleplayer()
			return playstate.ShutdownResult(), true
		case window.EventKeyDown, window.EventKeyUp:
			pressed := ev.Kind == window.EventKeyDown
			if dir, ok := movementKeys[ev.Key]; ok {
				s.keys.Set(dir, pressed)
				continue
			}
			if ev.Key == window.KeyToggleCursor && pressed {
				g.Window.GrabCursor(!g.Window.IsCursorGrabbed())
				continue
			}
		}
		s.scene.HandleInputEvent(ev)
	}

	in := client.Input{MoveDir: s.moveDir()}
	events, err := s.client.Tick(ctx, in, s.clock.LastDelta())
	if err != nil {
		return s.onSessionError(g, err), true
	}

	for _, ev := range events {
		switch ev := ev.(type) {
		case client.Chat:
			s.hud.NewMessage(ev)
		}
	}

	r := g.Window.Renderer()
	view := s.client.View()
	s.scene.Maintain(r, view)

	for _, ev := range s.hud.Maintain(r) {
		switch ev.Kind {
		case hud.SendMessage:
			s.client.SendChat(ev.Text)
		case hud.Logout:
			return playstate.PopResult(), true
		case hud.Quit:
			g.StopSingleplayer()
			return playstate.ShutdownResult(), true
		}
	}

	r.Clear(bgColor)
	s.scene.Render(r, view)
	s.hud.Render(r)
	r.Flush()

	if err := g.Window.SwapBuffers(); err != nil {
		g.Log.Error("failed to present frame", zap.Error(err))
		g.SetNotice("The display stopped working.")
		return playstate.ShutdownResult(), true
	}
	return playstate.Result{}, false
}

// moveDir rotates the held direction keys by the camera yaw.
func (s *State) moveDir() mgl32.Vec2 {
	yaw := float64(s.scene.Orientation()[0])
	sin, cos := float32(math.Sin(yaw)), float32(math.Cos(yaw))
	right := mgl32.Vec2{cos, -sin}
	forward := mgl32.Vec2{sin, cos}
	dir := s.keys.DirVec()
	return right.Mul(dir[0]).Add(forward.Mul(dir[1]))
}

// onSessionError decides where a failed session goes. Only a timeout is
// worth retrying; the notice tells the player which failure it was.
func (s *State) onSessionError(g *playstate.Global, err error) playstate.Result {
	kind := client.KindOf(err)
	g.Log.Warn("session ended", zap.Stringer("kind", kind), zap.Error(err))

	switch kind {
	case client.KindServerTimeout:
		if rc, ok := s.client.(Reconnector); ok && s.reconnectAttempts > 0 {
			g.SetNotice("Connection to the server timed out. Reconnecting...")
			return playstate.SwitchResult(NewReconnect(rc, s.resumed, s.reconnectAttempts))
		}
		g.SetNotice("Connection to the server timed out.")
	case client.KindServerShutdown:
		g.SetNotice("You were disconnected: the server shut down.")
	case client.KindNetwork:
		g.SetNotice("The connection to the server is gone.")
	case client.KindServerWentMad:
		g.SetNotice("The server sent data that makes no sense. The session was closed.")
	default:
		g.SetNotice("Session ended: " + err.Error())
	}
	return playstate.PopResult()
}
