// Package world runs one simulation authority as an actor: a single goroutine
// owns the sim state and talks to connected clients through their outboxes.
package world

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/DoyleJ11/voxel-client/internal/journal"
	"github.com/DoyleJ11/voxel-client/internal/protocol"
	"github.com/DoyleJ11/voxel-client/internal/sim"
)

const (
	DefaultTickHz = 30
	inboxSize     = 256
)

type Msg interface{ isWorldMsg() }

// Join registers a connection. Encoded frames are delivered to Outbox; the
// world closes Outbox when it stops serving the client.
type Join struct {
	ClientID string
	Name     string
	Outbox   chan []byte
}

type Leave struct{ ClientID string }

type Spawn struct {
	ClientID  string
	Character string
	Race      string
	Weapon    string
	Reply     chan error
}

type Despawn struct{ ClientID string }

type Input struct {
	ClientID string
	MoveDir  mgl32.Vec2
}

type Chat struct {
	ClientID string
	Text     string
}

type GetState struct {
	Reply chan View
}

type Shutdown struct {
	Reason string
}

func (Join) isWorldMsg()     {}
func (Leave) isWorldMsg()    {}
func (Spawn) isWorldMsg()    {}
func (Despawn) isWorldMsg()  {}
func (Input) isWorldMsg()    {}
func (Chat) isWorldMsg()     {}
func (GetState) isWorldMsg() {}
func (Shutdown) isWorldMsg() {}

type View struct {
	Version    uint64
	NumClients int
	State      sim.State
}

type Options struct {
	Code      string
	TickHz    int
	Wanderers int
	Journal   journal.Journal
	Logger    *zap.Logger
	Seed      uint64
}

type member struct {
	name string
	out  chan []byte
}

type World struct {
	opts    Options
	log     *zap.Logger
	inbox   chan Msg
	state   sim.State
	version uint64
	clients map[string]*member
	rng     *rand.Rand
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(parent context.Context, opts Options) *World {
	if opts.TickHz <= 0 {
		opts.TickHz = DefaultTickHz
	}
	if opts.Journal == nil {
		opts.Journal = journal.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Seed == 0 {
		opts.Seed = uint64(time.Now().UnixNano())
	}
	ctx, cancel := context.WithCancel(parent)

	w := &World{
		opts:    opts,
		log:     opts.Logger.Named("world").With(zap.String("world", opts.Code)),
		inbox:   make(chan Msg, inboxSize),
		state:   sim.NewState(),
		clients: make(map[string]*member),
		rng:     rand.New(rand.NewPCG(opts.Seed, opts.Seed>>1|1)),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	w.populate()

	go w.loop()
	return w
}

func (w *World) Code() string      { return w.opts.Code }
func (w *World) TickHz() int       { return w.opts.TickHz }
func (w *World) Inbox() chan<- Msg { return w.inbox }

// Done is closed once the world has stopped.
func (w *World) Done() <-chan struct{} { return w.done }

// Send delivers m unless the world has already stopped.
func (w *World) Send(m Msg) bool {
	select {
	case w.inbox <- m:
		return true
	case <-w.done:
		return false
	}
}

func (w *World) populate() {
	for i := range w.opts.Wanderers {
		pos := mgl32.Vec3{float32(w.rng.IntN(40) - 20), float32(w.rng.IntN(40) - 20), 0}
		_, next, err := sim.Apply(w.state, sim.Command{
			Type:     sim.CmdWander,
			EntityID: fmt.Sprintf("npc-%d", i+1),
			Name:     "Wanderer",
			Pos:      pos,
		})
		if err != nil {
			w.log.Warn("spawn wanderer", zap.Error(err))
			continue
		}
		w.state = next
	}
}

func (w *World) loop() {
	defer close(w.done)

	dt := time.Second / time.Duration(w.opts.TickHz)
	ticker := time.NewTicker(dt)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			w.shutdown("server stopping")
			return

		case <-ticker.C:
			w.state = sim.Step(w.state, dt, w.rng)
			w.version++
			w.broadcastState()

		case m := <-w.inbox:
			switch msg := m.(type) {
			case Join:
				w.clients[msg.ClientID] = &member{name: msg.Name, out: msg.Outbox}
				w.deliver(msg.ClientID, w.stateFrame())
				w.log.Info("client joined", zap.String("client_id", msg.ClientID), zap.Int("clients", len(w.clients)))

			case Leave:
				if m := w.clients[msg.ClientID]; m != nil {
					close(m.out)
					delete(w.clients, msg.ClientID)
				}
				w.despawn(msg.ClientID)
				w.log.Info("client left", zap.String("client_id", msg.ClientID), zap.Int("clients", len(w.clients)))

			case Spawn:
				err := w.spawn(msg)
				if msg.Reply != nil {
					msg.Reply <- err
				}

			case Despawn:
				w.despawn(msg.ClientID)

			case Input:
				_, next, err := sim.Apply(w.state, sim.Command{Type: sim.CmdControl, EntityID: msg.ClientID, MoveDir: msg.MoveDir})
				if err != nil {
					// input may race a despawn
					break
				}
				w.state = next

			case Chat:
				w.chat(msg)

			case GetState:
				msg.Reply <- View{Version: w.version, NumClients: len(w.clients), State: w.state}

			case Shutdown:
				w.shutdown(msg.Reason)
				return
			}
		}
	}
}

func (w *World) spawn(msg Spawn) error {
	cmd := sim.Command{
		Type:     sim.CmdSpawn,
		EntityID: msg.ClientID,
		Name:     msg.Character,
		Race:     msg.Race,
		Weapon:   msg.Weapon,
	}
	events, next, err := sim.Apply(w.state, cmd)
	if err != nil {
		return err
	}
	w.state = next
	if sim.ContainsEvent(events, sim.EvtSpawned) {
		w.announce(fmt.Sprintf("%s entered the world.", events[0].Name))
	}
	return nil
}

func (w *World) despawn(clientID string) {
	events, next, err := sim.Apply(w.state, sim.Command{Type: sim.CmdDespawn, EntityID: clientID})
	if err != nil {
		return
	}
	w.state = next
	if len(events) > 0 {
		w.announce(fmt.Sprintf("%s left the world.", events[0].Name))
	}
}

func (w *World) chat(msg Chat) {
	name := ""
	if e, ok := w.state.Entities[msg.ClientID]; ok {
		name = e.Name
	} else if m := w.clients[msg.ClientID]; m != nil {
		name = m.name
	}
	events, _, err := sim.Apply(w.state, sim.Command{Type: sim.CmdChat, EntityID: msg.ClientID, Name: name, Text: msg.Text})
	if err != nil {
		return
	}
	for _, ev := range events {
		w.opts.Journal.Record(journal.Entry{World: w.opts.Code, From: ev.Name, Text: ev.Text, At: time.Now()})
		w.broadcastFrame(protocol.MsgChat, protocol.Chat{From: ev.Name, Text: ev.Text})
	}
}

// announce sends a system line with no sender.
func (w *World) announce(text string) {
	w.broadcastFrame(protocol.MsgChat, protocol.Chat{Text: text})
}

func (w *World) shutdown(reason string) {
	frame, err := protocol.Encode(protocol.MsgShutdown, protocol.Shutdown{Reason: reason})
	for id, m := range w.clients {
		if err == nil {
			select {
			case m.out <- frame:
			default:
			}
		}
		close(m.out) // no more frames
		delete(w.clients, id)
	}
	w.cancel()
	w.log.Info("world stopped", zap.String("reason", reason))
}

func (w *World) stateFrame() []byte {
	st := protocol.State{
		Version:  w.version,
		Tick:     w.state.Tick,
		Entities: make([]protocol.Entity, 0, len(w.state.Entities)),
	}
	for _, e := range w.state.Entities {
		st.Entities = append(st.Entities, protocol.Entity{
			ID:   e.ID,
			Name: e.Name,
			Pos:  [3]float32(e.Pos),
			Vel:  [3]float32(e.Vel),
		})
	}
	sort.Slice(st.Entities, func(i, j int) bool { return st.Entities[i].ID < st.Entities[j].ID })

	frame, err := protocol.Encode(protocol.MsgState, st)
	if err != nil {
		w.log.Error("encode state", zap.Error(err))
		return nil
	}
	return frame
}

func (w *World) broadcastState() {
	if len(w.clients) == 0 {
		return
	}
	if frame := w.stateFrame(); frame != nil {
		w.broadcast(frame)
	}
}

func (w *World) broadcastFrame(t string, payload any) {
	frame, err := protocol.Encode(t, payload)
	if err != nil {
		w.log.Error("encode frame", zap.String("type", t), zap.Error(err))
		return
	}
	w.broadcast(frame)
}

func (w *World) broadcast(frame []byte) {
	for id := range w.clients {
		w.deliver(id, frame)
	}
}

// deliver drops a client whose outbox is full.
func (w *World) deliver(id string, frame []byte) {
	m := w.clients[id]
	if m == nil || frame == nil {
		return
	}
	select {
	case m.out <- frame:
	default:
		w.log.Warn("dropping slow client", zap.String("client_id", id))
		close(m.out)
		delete(w.clients, id)
		w.despawn(id)
	}
}
