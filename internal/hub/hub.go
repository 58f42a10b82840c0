// Package hub tracks the running worlds by code.
package hub

import (
	"context"

	"go.uber.org/zap"

	"github.com/DoyleJ11/voxel-client/internal/journal"
	"github.com/DoyleJ11/voxel-client/internal/world"
)

type HubMsg interface{ isHubMsg() }

type CreateWorld struct {
	Code  string
	Reply chan *world.World
}

type GetWorld struct {
	Code  string
	Reply chan *world.World
}

type RemoveWorld struct {
	Code string
}

type ListWorlds struct {
	Reply chan []string
}

// ShutdownHub stops every world. Done is closed once they have all stopped.
type ShutdownHub struct {
	Reason string
	Done   chan struct{}
}

func (CreateWorld) isHubMsg() {}
func (GetWorld) isHubMsg()    {}
func (RemoveWorld) isHubMsg() {}
func (ListWorlds) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

// Options are applied to every world the hub creates.
type Options struct {
	TickHz    int
	Wanderers int
	Journal   journal.Journal
	Logger    *zap.Logger
}

type Hub struct {
	opts   Options
	inbox  chan HubMsg
	worlds map[string]*world.World
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewHub(parent context.Context, opts Options) *Hub {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		opts:   opts,
		inbox:  make(chan HubMsg, 64),
		worlds: make(map[string]*world.World),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Send delivers m unless the hub has stopped.
func (h *Hub) Send(m HubMsg) bool {
	select {
	case h.inbox <- m:
		return true
	case <-h.done:
		return false
	}
}

// Get returns the world with code, or nil.
func (h *Hub) Get(code string) *world.World {
	reply := make(chan *world.World, 1)
	if !h.Send(GetWorld{Code: code, Reply: reply}) {
		return nil
	}
	return <-reply
}

// Ensure returns the world with code, creating it if needed. It returns nil
// once the hub has stopped.
func (h *Hub) Ensure(code string) *world.World {
	reply := make(chan *world.World, 1)
	if !h.Send(CreateWorld{Code: code, Reply: reply}) {
		return nil
	}
	return <-reply
}

// Shutdown stops every world and waits for them.
func (h *Hub) Shutdown(reason string) {
	done := make(chan struct{})
	if h.Send(ShutdownHub{Reason: reason, Done: done}) {
		<-done
	}
}

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.stopAll("server stopping")
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateWorld:
				if w := h.live(msg.Code); w != nil {
					msg.Reply <- w
					break
				}
				w := world.New(h.ctx, world.Options{
					Code:      msg.Code,
					TickHz:    h.opts.TickHz,
					Wanderers: h.opts.Wanderers,
					Journal:   h.opts.Journal,
					Logger:    h.opts.Logger,
				})
				h.worlds[msg.Code] = w
				h.opts.Logger.Info("world created", zap.String("world", msg.Code))
				msg.Reply <- w

			case GetWorld:
				msg.Reply <- h.live(msg.Code) // may be nil

			case RemoveWorld:
				if w := h.worlds[msg.Code]; w != nil {
					w.Send(world.Shutdown{Reason: "world closed"})
					delete(h.worlds, msg.Code)
				}

			case ListWorlds:
				codes := make([]string, 0, len(h.worlds))
				for code := range h.worlds {
					if h.live(code) != nil {
						codes = append(codes, code)
					}
				}
				msg.Reply <- codes

			case ShutdownHub:
				h.stopAll(msg.Reason)
				h.cancel()
				if msg.Done != nil {
					close(msg.Done)
				}
				return
			}
		}
	}
}

// live returns the world with code if it is still running.
func (h *Hub) live(code string) *world.World {
	w := h.worlds[code]
	if w == nil {
		return nil
	}
	select {
	case <-w.Done():
		delete(h.worlds, code)
		return nil
	default:
		return w
	}
}

func (h *Hub) stopAll(reason string) {
	for _, w := range h.worlds {
		w.Send(world.Shutdown{Reason: reason})
	}
	for code, w := range h.worlds {
		<-w.Done()
		delete(h.worlds, code)
	}
}
