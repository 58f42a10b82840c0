package window

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Key is a semantic key; physical keys are mapped through Bindings.
type Key int

const (
	KeyUnknown Key = iota
	KeyToggleCursor
	KeyMoveForward
	KeyMoveBack
	KeyMoveLeft
	KeyMoveRight
	KeyEscape
)

var keyNames = map[Key]string{
	KeyToggleCursor: "toggle_cursor",
	KeyMoveForward:  "move_forward",
	KeyMoveBack:     "move_back",
	KeyMoveLeft:     "move_left",
	KeyMoveRight:    "move_right",
	KeyEscape:       "escape",
}

func (k Key) String() string {
	if n, ok := keyNames[k]; ok {
		return n
	}
	return "unknown"
}

// ParseKey is the inverse of Key.String.
func ParseKey(name string) (Key, error) {
	for k, n := range keyNames {
		if n == name {
			return k, nil
		}
	}
	return KeyUnknown, fmt.Errorf("unknown key %q", name)
}

type EventKind int

const (
	EventClose EventKind = iota + 1
	EventKeyDown
	EventKeyUp
	EventCursorMove
	EventZoom
	EventText
	EventResize
)

// Event is one host input event. Only the fields of its Kind are set.
type Event struct {
	Kind  EventKind
	Key   Key
	Delta mgl32.Vec2 // cursor move, or new size for resize
	Zoom  float32
	Text  string
}

func Close() Event                    { return Event{Kind: EventClose} }
func KeyDown(k Key) Event             { return Event{Kind: EventKeyDown, Key: k} }
func KeyUp(k Key) Event               { return Event{Kind: EventKeyUp, Key: k} }
func CursorMove(dx, dy float32) Event { return Event{Kind: EventCursorMove, Delta: mgl32.Vec2{dx, dy}} }
func Zoom(d float32) Event            { return Event{Kind: EventZoom, Zoom: d} }
func Text(s string) Event             { return Event{Kind: EventText, Text: s} }
func Resize(w, h float32) Event       { return Event{Kind: EventResize, Delta: mgl32.Vec2{w, h}} }
