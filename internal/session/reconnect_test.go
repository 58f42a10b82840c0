package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/voxel-client/internal/client"
	"github.com/DoyleJ11/voxel-client/internal/playstate"
	"github.com/DoyleJ11/voxel-client/internal/window"
)

func newTestReconnect(h *harness, attempts uint) (*Reconnect, reconnectingSession) {
	rs := reconnectingSession{h.sess}
	resume := func() *State { return h.state(rs) }
	r := NewReconnect(rs, resume, attempts)
	r.backoff = &backoff.ConstantBackOff{Interval: time.Millisecond}
	return r, rs
}

func TestReconnectResumesSession(t *testing.T) {
	h := newHarness(t)
	r, rs := newTestReconnect(h, 5)
	rs.reconnectErrs = []error{
		client.NetworkError(errors.New("refused")),
		&client.Error{Kind: client.KindServerTimeout},
	}

	res := r.Play(context.Background(), h.global)

	require.Equal(t, playstate.Switch, res.Kind)
	assert.IsType(t, &State{}, res.Next)
	assert.Equal(t, 3, rs.reconnects)
}

func TestReconnectGivesUp(t *testing.T) {
	h := newHarness(t)
	r, rs := newTestReconnect(h, 3)
	for range 10 {
		rs.reconnectErrs = append(rs.reconnectErrs, client.NetworkError(errors.New("refused")))
	}

	res := r.Play(context.Background(), h.global)

	assert.Equal(t, playstate.Pop, res.Kind)
	assert.Equal(t, 3, rs.reconnects)
	assert.Equal(t, "Could not reconnect to the server.", h.global.TakeNotice())
}

func TestReconnectStopsOnProtocolError(t *testing.T) {
	h := newHarness(t)
	r, rs := newTestReconnect(h, 5)
	rs.reconnectErrs = []error{&client.Error{Kind: client.KindServerWentMad}}

	res := r.Play(context.Background(), h.global)

	assert.Equal(t, playstate.Pop, res.Kind)
	assert.Equal(t, 1, rs.reconnects)
}

func TestReconnectWindowClose(t *testing.T) {
	h := newHarness(t)
	r, rs := newTestReconnect(h, 5)
	h.win.frames = [][]window.Event{{window.Close()}}

	res := r.Play(context.Background(), h.global)

	assert.Equal(t, playstate.Shutdown, res.Kind)
	assert.Zero(t, rs.reconnects)
	assert.Equal(t, 1, h.sp.closed)
}
