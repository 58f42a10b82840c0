// Package hud is the in-game overlay: chat log, chat input and the session
// menu commands.
package hud

import (
	"fmt"
	"io"
	"strings"

	"github.com/DoyleJ11/voxel-client/internal/client"
	"github.com/DoyleJ11/voxel-client/internal/render"
	"github.com/DoyleJ11/voxel-client/internal/window"
)

const maxChatLines = 50

type EventKind int

const (
	SendMessage EventKind = iota + 1
	Logout
	Quit
)

// Event is something the player asked for through the HUD.
type Event struct {
	Kind EventKind
	Text string // SendMessage only
}

type Hud struct {
	out     io.Writer
	chat    []string
	unseen  int
	pending []Event
}

// New returns a HUD that prints chat to out.
func New(out io.Writer) *Hud {
	if out == nil {
		out = io.Discard
	}
	return &Hud{out: out}
}

// HandleEvent claims typed text. Lines starting with "/" are commands.
func (h *Hud) HandleEvent(ev window.Event) bool {
	if ev.Kind != window.EventText {
		return false
	}
	text := strings.TrimSpace(ev.Text)
	switch {
	case text == "":
	case text == "/logout":
		h.pending = append(h.pending, Event{Kind: Logout})
	case text == "/quit":
		h.pending = append(h.pending, Event{Kind: Quit})
	case strings.HasPrefix(text, "/"):
		h.addLine(fmt.Sprintf("unknown command %s", text))
	default:
		h.pending = append(h.pending, Event{Kind: SendMessage, Text: text})
	}
	return true
}

// NewMessage shows a chat line received from the server.
func (h *Hud) NewMessage(msg client.Chat) {
	if msg.From == "" {
		h.addLine(msg.Text)
		return
	}
	h.addLine(fmt.Sprintf("[%s] %s", msg.From, msg.Text))
}

func (h *Hud) addLine(line string) {
	h.chat = append(h.chat, line)
	h.unseen++
	if over := len(h.chat) - maxChatLines; over > 0 {
		h.chat = append(h.chat[:0], h.chat[over:]...)
	}
	h.unseen = min(h.unseen, len(h.chat))
}

// Maintain returns the player's requests since the last call, in order.
func (h *Hud) Maintain(render.Renderer) []Event {
	events := h.pending
	h.pending = nil
	return events
}

// Render prints lines that arrived since the last frame and submits the
// visible chat log.
func (h *Hud) Render(r render.Renderer) {
	for _, line := range h.chat[len(h.chat)-h.unseen:] {
		fmt.Fprintln(h.out, line)
	}
	h.unseen = 0
	for _, line := range h.chat {
		r.Submit(render.DrawCall{Kind: render.DrawText, Label: line})
	}
}

// Messages returns the chat log, oldest first.
func (h *Hud) Messages() []string {
	out := make([]string, len(h.chat))
	copy(out, h.chat)
	return out
}
