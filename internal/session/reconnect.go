package session

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/voxel-client/internal/client"
	"github.com/DoyleJ11/voxel-client/internal/playstate"
	"github.com/DoyleJ11/voxel-client/internal/window"
)

const defaultReconnectAttempts = 5

var errWindowClosed = errors.New("window closed while reconnecting")

// Reconnector is a network session that can re-establish itself.
type Reconnector interface {
	Reconnect(ctx context.Context) error
}

// Reconnect is the state a timed-out session passes through. It retries with
// exponential backoff and resumes the session on success.
type Reconnect struct {
	client   Reconnector
	resume   func() *State
	attempts uint
	backoff  backoff.BackOff
}

func NewReconnect(rc Reconnector, resume func() *State, attempts uint) *Reconnect {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 4 * time.Second
	return &Reconnect{client: rc, resume: resume, attempts: attempts, backoff: b}
}

func (r *Reconnect) Name() string { return "Reconnect" }

func (r *Reconnect) Play(ctx context.Context, g *playstate.Global) playstate.Result {
	attempt := 0
	op := func() (struct{}, error) {
		for ev := range g.Window.FetchEvents() {
			if ev.Kind == window.EventClose {
				return struct{}{}, backoff.Permanent(errWindowClosed)
			}
		}
		attempt++
		err := r.client.Reconnect(ctx)
		switch client.KindOf(err) {
		case 0:
			return struct{}{}, nil
		case client.KindServerWentMad, client.KindOther:
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}
	notify := func(err error, next time.Duration) {
		g.Log.Info("reconnect failed", zap.Int("attempt", attempt), zap.Duration("retry_in", next), zap.Error(err))
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(r.backoff),
		backoff.WithMaxTries(r.attempts),
		backoff.WithNotify(notify),
	)
	switch {
	case errors.Is(err, errWindowClosed):
		g.StopSingleplayer()
		return playstate.ShutdownResult()
	case ctx.Err() != nil:
		return playstate.ShutdownResult()
	case err != nil:
		g.Log.Warn("giving up on reconnect", zap.Int("attempts", attempt), zap.Error(err))
		g.SetNotice("Could not reconnect to the server.")
		return playstate.PopResult()
	}
	g.Log.Info("session resumed", zap.Int("attempts", attempt))
	return playstate.SwitchResult(r.resume())
}
