// Package client owns the connection to the simulation authority.
package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/DoyleJ11/voxel-client/internal/protocol"
)

const (
	defaultTimeout       = 5 * time.Second
	defaultWriteTimeout  = 3 * time.Second
	defaultInboundBuffer = 256

	// chat lines Poll holds for the next Tick
	maxHeldEvents = 64

	// how long a failed write waits for the reader to report why
	writeFailureGrace = 50 * time.Millisecond
)

// Input is the local player's input for one tick.
type Input struct {
	MoveDir mgl32.Vec2
}

// Event is something the server told us during a tick.
type Event interface{ isEvent() }

type Chat struct {
	From string
	Text string
}

func (Chat) isEvent() {}

type Options struct {
	Name string
	// Timeout is how long the server may stay silent before a tick fails
	// with KindServerTimeout.
	Timeout       time.Duration
	WriteTimeout  time.Duration
	InboundBuffer int
	Logger        *zap.Logger
	// Dial reopens the transport. Required by Reconnect.
	Dial func(ctx context.Context) (Conn, error)
	Now  func() time.Time
}

func (o *Options) setDefaults() {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = defaultWriteTimeout
	}
	if o.InboundBuffer <= 0 {
		o.InboundBuffer = defaultInboundBuffer
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// link is one transport connection and the goroutine reading from it.
type link struct {
	conn    Conn
	inbound chan []byte
	done    chan struct{}
	err     error // set before done is closed
	cancel  context.CancelFunc
}

// Client is a network session. It is not safe for concurrent use; the frame
// loop is its only caller.
type Client struct {
	opts Options
	log  *zap.Logger

	link *link

	clientID    string
	tickHz      int
	inputSeq    uint64
	pingSeq     uint64
	lastVersion uint64
	haveVersion bool
	lastHeard   time.Time
	spawn       *protocol.Spawn

	pendingChat []string
	world       View
	frameEvents []Event
	failed      *Error
}

// Connect dials url and completes the handshake.
func Connect(ctx context.Context, url string, opts Options) (*Client, error) {
	if opts.Dial == nil {
		opts.Dial = func(ctx context.Context) (Conn, error) { return Dial(ctx, url) }
	}
	conn, err := opts.Dial(ctx)
	if err != nil {
		return nil, NetworkError(err)
	}
	c := New(conn, opts)
	if err := c.handshake(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	c.log.Info("connected", zap.String("url", url), zap.String("client_id", c.clientID))
	return c, nil
}

// New wraps an open connection. The handshake is the caller's business;
// Connect does both.
func New(conn Conn, opts Options) *Client {
	opts.setDefaults()
	c := &Client{
		opts: opts,
		log:  opts.Logger.Named("client"),
	}
	c.attach(conn)
	return c
}

func (c *Client) attach(conn Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	l := &link{
		conn:    conn,
		inbound: make(chan []byte, c.opts.InboundBuffer),
		done:    make(chan struct{}),
		cancel:  cancel,
	}
	c.link = l
	c.lastHeard = c.opts.Now()
	go readLoop(ctx, l)
}

func readLoop(ctx context.Context, l *link) {
	defer close(l.done)
	for {
		data, err := l.conn.Read(ctx)
		if err != nil {
			l.err = err
			return
		}
		select {
		case l.inbound <- data:
		case <-ctx.Done():
			l.err = ctx.Err()
			return
		}
	}
}

func (c *Client) handshake(ctx context.Context) error {
	if err := c.send(ctx, protocol.MsgHello, protocol.Hello{V: protocol.Version, Name: c.opts.Name}); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	select {
	case data := <-c.link.inbound:
		c.lastHeard = c.opts.Now()
		env, err := protocol.DecodeEnvelope(data)
		if err != nil {
			return wentMad("handshake: %v", err)
		}
		switch env.T {
		case protocol.MsgWelcome:
		case protocol.MsgError:
			p, _ := protocol.DecodePayload[protocol.Error](env)
			return OtherError(p.Error)
		default:
			return wentMad("handshake: expected %q, got %q", protocol.MsgWelcome, env.T)
		}
		w, err := protocol.DecodePayload[protocol.Welcome](env)
		if err != nil {
			return wentMad("handshake: %v", err)
		}
		if w.V != protocol.Version {
			return wentMad("handshake: protocol version %d, want %d", w.V, protocol.Version)
		}
		if w.ClientID == "" {
			return wentMad("handshake: empty client id")
		}
		c.clientID = w.ClientID
		c.tickHz = w.TickHz
		c.world = View{ClientID: w.ClientID}
		return nil
	case <-c.link.done:
		return classify(c.link.err)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &Error{Kind: KindServerTimeout, Err: fmt.Errorf("handshake: %w", ctx.Err())}
		}
		return OtherError(ctx.Err().Error())
	}
}

// ID is the identifier the server assigned to this client.
func (c *Client) ID() string { return c.clientID }

// ServerTickHz is the simulation rate the server announced.
func (c *Client) ServerTickHz() int { return c.tickHz }

// View returns the world as of the last applied snapshot.
func (c *Client) View() View { return c.world }

// Tick sends local input and applies everything the server sent since the
// previous tick. Events are returned in arrival order and stay valid until
// Cleanup. Once a tick fails, every later tick returns the same error.
func (c *Client) Tick(ctx context.Context, in Input, dt time.Duration) ([]Event, error) {
	if c.failed != nil {
		return nil, c.failed
	}
	if err := c.tick(ctx, in, dt); err != nil {
		c.failed = classify(err)
		c.log.Warn("session failed", zap.Stringer("kind", c.failed.Kind), zap.Error(c.failed))
		return nil, c.failed
	}
	return c.frameEvents, nil
}

func (c *Client) tick(ctx context.Context, in Input, dt time.Duration) error {
	for len(c.pendingChat) > 0 {
		if err := c.send(ctx, protocol.MsgChat, protocol.Chat{Text: c.pendingChat[0]}); err != nil {
			return err
		}
		c.pendingChat = c.pendingChat[1:]
	}

	c.inputSeq++
	input := protocol.Input{
		Seq:     c.inputSeq,
		MoveDir: [2]float32(in.MoveDir),
		DtMs:    float64(dt) / float64(time.Millisecond),
	}
	if err := c.send(ctx, protocol.MsgInput, input); err != nil {
		return err
	}

	received, err := c.drain()
	if err != nil {
		return err
	}
	if !received && c.opts.Now().Sub(c.lastHeard) > c.opts.Timeout {
		return &Error{Kind: KindServerTimeout, Message: fmt.Sprintf("no message for %s", c.opts.Timeout)}
	}
	return nil
}

// drain handles every buffered frame, then reports a reader failure if the
// reader has stopped.
func (c *Client) drain() (bool, error) {
	received := false
	for {
		select {
		case data := <-c.link.inbound:
			received = true
			if err := c.handleFrame(data); err != nil {
				return received, err
			}
			continue
		default:
		}

		select {
		case <-c.link.done:
			// the reader may have queued frames before stopping
			if len(c.link.inbound) > 0 {
				continue
			}
			return received, classify(c.link.err)
		default:
			return received, nil
		}
	}
}

func (c *Client) handleFrame(data []byte) error {
	c.lastHeard = c.opts.Now()

	env, err := protocol.DecodeEnvelope(data)
	if err != nil {
		return wentMad("%v", err)
	}

	switch env.T {
	case protocol.MsgState:
		st, err := protocol.DecodePayload[protocol.State](env)
		if err != nil {
			return wentMad("%v", err)
		}
		if c.haveVersion && st.Version <= c.lastVersion {
			return wentMad("snapshot version %d after %d", st.Version, c.lastVersion)
		}
		c.haveVersion = true
		c.lastVersion = st.Version
		c.world = viewFromState(c.clientID, st)

	case protocol.MsgChat:
		ch, err := protocol.DecodePayload[protocol.Chat](env)
		if err != nil {
			return wentMad("%v", err)
		}
		c.frameEvents = append(c.frameEvents, Chat{From: ch.From, Text: ch.Text})

	case protocol.MsgShutdown:
		sd, _ := protocol.DecodePayload[protocol.Shutdown](env)
		return &Error{Kind: KindServerShutdown, Message: sd.Reason}

	case protocol.MsgError:
		p, err := protocol.DecodePayload[protocol.Error](env)
		if err != nil {
			return wentMad("%v", err)
		}
		return OtherError(p.Error)

	default:
		return wentMad("unexpected %q frame", env.T)
	}
	return nil
}

func (c *Client) send(ctx context.Context, t string, payload any) error {
	b, err := protocol.Encode(t, payload)
	if err != nil {
		return OtherError(err.Error())
	}
	wctx, cancel := context.WithTimeout(ctx, c.opts.WriteTimeout)
	defer cancel()
	if werr := c.link.conn.Write(wctx, b); werr != nil {
		return c.explainWriteFailure(werr)
	}
	return nil
}

// explainWriteFailure prefers the reader's view of a dead connection: a
// server that shut down cleanly also breaks our writes.
func (c *Client) explainWriteFailure(werr error) error {
	select {
	case <-c.link.done:
	case <-time.After(writeFailureGrace):
		return NetworkError(werr)
	}
	if _, err := c.drain(); err != nil {
		return err
	}
	return NetworkError(werr)
}

// Poll applies everything the server sent without sending input. Callers
// that are not ticking a session call it every frame so the inbound stream
// keeps moving. Chat received meanwhile is held for the next Tick; only the
// newest lines are kept.
func (c *Client) Poll() error {
	if c.failed != nil {
		return c.failed
	}
	received, err := c.drain()
	if err == nil && !received && c.opts.Now().Sub(c.lastHeard) > c.opts.Timeout {
		err = &Error{Kind: KindServerTimeout, Message: fmt.Sprintf("no message for %s", c.opts.Timeout)}
	}
	if err != nil {
		c.failed = classify(err)
		c.log.Warn("session failed while idle", zap.Stringer("kind", c.failed.Kind), zap.Error(c.failed))
		return c.failed
	}
	if n := len(c.frameEvents) - maxHeldEvents; n > 0 {
		c.frameEvents = append(c.frameEvents[:0], c.frameEvents[n:]...)
	}
	return nil
}

// SendChat queues msg; it goes out on the next Tick.
func (c *Client) SendChat(msg string) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return
	}
	c.pendingChat = append(c.pendingChat, msg)
}

// PendingChat reports how many chat lines wait for the next Tick.
func (c *Client) PendingChat() int { return len(c.pendingChat) }

// Spawn asks the server to put the chosen character into the world.
func (c *Client) Spawn(ctx context.Context, s protocol.Spawn) error {
	if err := c.Alive(); err != nil {
		return err
	}
	if err := c.send(ctx, protocol.MsgSpawn, s); err != nil {
		return err
	}
	c.spawn = &s
	c.lastHeard = c.opts.Now()
	return nil
}

// Despawn removes our character from the world but keeps the connection.
func (c *Client) Despawn(ctx context.Context) error {
	c.spawn = nil
	if err := c.Alive(); err != nil {
		return err
	}
	return c.send(ctx, protocol.MsgDespawn, protocol.Despawn{})
}

// Ping keeps an idle connection open.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.Alive(); err != nil {
		return err
	}
	c.pingSeq++
	return c.send(ctx, protocol.MsgPing, protocol.Ping{Seq: c.pingSeq})
}

// Alive reports the session's failure without consuming buffered frames.
func (c *Client) Alive() error {
	if c.failed != nil {
		return c.failed
	}
	select {
	case <-c.link.done:
		if len(c.link.inbound) > 0 {
			return nil
		}
		c.failed = classify(c.link.err)
		return c.failed
	default:
		return nil
	}
}

// Cleanup drops per-tick buffers. Events returned by the last Tick are
// invalid afterwards.
func (c *Client) Cleanup() {
	clear(c.frameEvents)
	c.frameEvents = c.frameEvents[:0]
}

// Reconnect replaces the transport, repeats the handshake and respawns the
// character that was in the world.
func (c *Client) Reconnect(ctx context.Context) error {
	if c.opts.Dial == nil {
		return OtherError("reconnect: no dialer configured")
	}
	_ = c.closeLink()

	conn, err := c.opts.Dial(ctx)
	if err != nil {
		return NetworkError(err)
	}
	c.attach(conn)
	c.failed = nil
	c.haveVersion = false
	c.lastVersion = 0
	c.Cleanup()

	if err := c.handshake(ctx); err != nil {
		return err
	}
	if c.spawn != nil {
		if err := c.Spawn(ctx, *c.spawn); err != nil {
			return err
		}
	}
	c.log.Info("reconnected", zap.String("client_id", c.clientID))
	return nil
}

func (c *Client) closeLink() error {
	c.link.cancel()
	return c.link.conn.Close()
}

// Close tears the connection down.
func (c *Client) Close() error {
	if c.failed == nil {
		c.failed = &Error{Kind: KindOther, Message: "session closed"}
	}
	return c.closeLink()
}
