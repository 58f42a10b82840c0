// Package playstate runs the stack of application screens.
package playstate

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/DoyleJ11/voxel-client/internal/config"
	"github.com/DoyleJ11/voxel-client/internal/window"
)

type Kind int

const (
	Continue Kind = iota
	Pop
	Push
	Switch
	Shutdown
)

func (k Kind) String() string {
	switch k {
	case Continue:
		return "continue"
	case Pop:
		return "pop"
	case Push:
		return "push"
	case Switch:
		return "switch"
	case Shutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Result tells the runner what to do after a state's loop returns. Next is
// set for Push and Switch only.
type Result struct {
	Kind Kind
	Next PlayState
}

func ContinueResult() Result             { return Result{Kind: Continue} }
func PopResult() Result                  { return Result{Kind: Pop} }
func PushResult(next PlayState) Result   { return Result{Kind: Push, Next: next} }
func SwitchResult(next PlayState) Result { return Result{Kind: Switch, Next: next} }
func ShutdownResult() Result             { return Result{Kind: Shutdown} }

// PlayState is one screen of the application. Play runs the state's own loop
// until it has something to tell the runner.
type PlayState interface {
	Play(ctx context.Context, g *Global) Result
	Name() string
}

// Global is the context shared by every state: the host window, logging,
// configuration and the optional in-process server.
type Global struct {
	Window window.Window
	Log    *zap.Logger
	Config config.Config

	// Singleplayer is the local authority, when one is running.
	Singleplayer io.Closer

	notice string
}

// SetNotice leaves a message for whichever state runs next.
func (g *Global) SetNotice(msg string) { g.notice = msg }

// TakeNotice returns and clears the pending message.
func (g *Global) TakeNotice() string {
	n := g.notice
	g.notice = ""
	return n
}

// StopSingleplayer shuts the local authority down, if any.
func (g *Global) StopSingleplayer() {
	if g.Singleplayer == nil {
		return
	}
	if err := g.Singleplayer.Close(); err != nil {
		g.Log.Warn("stop singleplayer", zap.Error(err))
	}
	g.Singleplayer = nil
}
