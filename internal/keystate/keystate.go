package keystate

import "github.com/go-gl/mathgl/mgl32"

type Direction int

const (
	Forward Direction = iota
	Back
	Left
	Right
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Back:
		return "back"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "unknown"
	}
}

// KeyState tracks which movement keys are currently held.
type KeyState struct {
	Up    bool
	Down  bool
	Left  bool
	Right bool
}

// Set records a press or release of one direction key.
func (k *KeyState) Set(d Direction, pressed bool) {
	switch d {
	case Forward:
		k.Up = pressed
	case Back:
		k.Down = pressed
	case Left:
		k.Left = pressed
	case Right:
		k.Right = pressed
	}
}

// DirVec returns (right-left, forward-back). Components are -1, 0 or 1; the
// vector is not normalised.
func (k KeyState) DirVec() mgl32.Vec2 {
	return mgl32.Vec2{axis(k.Right, k.Left), axis(k.Up, k.Down)}
}

func axis(pos, neg bool) float32 {
	var v float32
	if pos {
		v++
	}
	if neg {
		v--
	}
	return v
}
