// Package sim is the authoritative world simulation. Apply and Step are pure:
// they return a new State and never modify the one they were given.
package sim

import (
	"errors"
	"maps"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	// MoveSpeed is how far a character at full input moves per second.
	MoveSpeed = 6.0
	// WanderSpeed is the walking pace of wanderers.
	WanderSpeed = 2.0
	// WanderRadius bounds how far a wanderer strays from its home.
	WanderRadius = 20.0

	maxChatLen = 256
	maxNameLen = 24
)

var (
	ErrAlreadySpawned     = errors.New("already spawned")
	ErrNotSpawned         = errors.New("not spawned")
	ErrBadName            = errors.New("bad character name")
	ErrBadMoveDir         = errors.New("bad move direction")
	ErrEmptyChat          = errors.New("empty chat message")
	ErrUnsupportedCommand = errors.New("unsupported command")
)

// Control is what an entity is trying to do this tick.
type Control struct {
	MoveDir mgl32.Vec2
}

// Wanderer walks between random points near its home.
type Wanderer struct {
	Home   mgl32.Vec2
	Target mgl32.Vec2
}

type Entity struct {
	ID      string
	Name    string
	Race    string
	Weapon  string
	Pos     mgl32.Vec3
	Vel     mgl32.Vec3
	Control Control
	Agent   *Wanderer // nil for players
}

type State struct {
	Tick     uint64
	Entities map[string]Entity
}

func NewState() State {
	return State{Entities: map[string]Entity{}}
}

type CommandType string

const (
	CmdSpawn   CommandType = "Spawn"
	CmdDespawn CommandType = "Despawn"
	CmdControl CommandType = "Control"
	CmdChat    CommandType = "Chat"
	CmdWander  CommandType = "Wander"
)

type Command struct {
	Type     CommandType
	EntityID string
	Name     string
	Race     string
	Weapon   string
	MoveDir  mgl32.Vec2
	Pos      mgl32.Vec3 // spawn position for CmdWander
	Text     string
}

type EventType string

const (
	EvtSpawned   EventType = "Spawned"
	EvtDespawned EventType = "Despawned"
	EvtChat      EventType = "Chat"
)

type Event struct {
	Type     EventType
	EntityID string
	Name     string
	Text     string
}

func Apply(s State, cmd Command) ([]Event, State, error) {
	ent, spawned := s.Entities[cmd.EntityID]

	switch cmd.Type {
	case CmdSpawn, CmdWander:
		if spawned {
			return nil, s, ErrAlreadySpawned
		}
		name := strings.TrimSpace(cmd.Name)
		if name == "" || len([]rune(name)) > maxNameLen {
			return nil, s, ErrBadName
		}
		e := Entity{
			ID:     cmd.EntityID,
			Name:   name,
			Race:   cmd.Race,
			Weapon: cmd.Weapon,
			Pos:    cmd.Pos,
		}
		if cmd.Type == CmdWander {
			home := cmd.Pos.Vec2()
			e.Agent = &Wanderer{Home: home, Target: home}
		}
		next := s.with(e)
		return []Event{{Type: EvtSpawned, EntityID: e.ID, Name: e.Name}}, next, nil

	case CmdDespawn:
		if !spawned {
			return nil, s, ErrNotSpawned
		}
		next := s.without(cmd.EntityID)
		return []Event{{Type: EvtDespawned, EntityID: ent.ID, Name: ent.Name}}, next, nil

	case CmdControl:
		if !spawned {
			return nil, s, ErrNotSpawned
		}
		dir, ok := clampDir(cmd.MoveDir)
		if !ok {
			return nil, s, ErrBadMoveDir
		}
		ent.Control = Control{MoveDir: dir}
		return nil, s.with(ent), nil

	case CmdChat:
		text := strings.TrimSpace(cmd.Text)
		if text == "" {
			return nil, s, ErrEmptyChat
		}
		if r := []rune(text); len(r) > maxChatLen {
			text = string(r[:maxChatLen])
		}
		return []Event{{Type: EvtChat, EntityID: cmd.EntityID, Name: cmd.Name, Text: text}}, s, nil

	default:
		return nil, s, ErrUnsupportedCommand
	}
}

// Step advances the world by dt. rng drives the wanderers.
func Step(s State, dt time.Duration, rng *rand.Rand) State {
	secs := float32(dt.Seconds())
	next := State{Tick: s.Tick + 1, Entities: make(map[string]Entity, len(s.Entities))}

	for id, e := range s.Entities {
		if e.Agent != nil {
			e = wander(e, rng)
		}
		speed := float32(MoveSpeed)
		if e.Agent != nil {
			speed = WanderSpeed
		}
		v := e.Control.MoveDir.Mul(speed)
		e.Vel = mgl32.Vec3{v[0], v[1], 0}
		e.Pos = e.Pos.Add(e.Vel.Mul(secs))
		next.Entities[id] = e
	}
	return next
}

func wander(e Entity, rng *rand.Rand) Entity {
	agent := *e.Agent
	to := agent.Target.Sub(e.Pos.Vec2())
	if to.Len() < 0.5 {
		angle := rng.Float64() * 2 * math.Pi
		dist := rng.Float64() * WanderRadius
		agent.Target = agent.Home.Add(mgl32.Vec2{
			float32(math.Cos(angle) * dist),
			float32(math.Sin(angle) * dist),
		})
		to = agent.Target.Sub(e.Pos.Vec2())
	}
	e.Agent = &agent
	if to.Len() > 0 {
		e.Control.MoveDir = to.Normalize()
	}
	return e
}

// clampDir limits the input to unit length and rejects non-finite values.
func clampDir(d mgl32.Vec2) (mgl32.Vec2, bool) {
	for _, c := range d {
		if math.IsNaN(float64(c)) || math.IsInf(float64(c), 0) {
			return mgl32.Vec2{}, false
		}
	}
	if d.Len() > 1 {
		return d.Normalize(), true
	}
	return d, true
}

func (s State) with(e Entity) State {
	next := State{Tick: s.Tick, Entities: maps.Clone(s.Entities)}
	if next.Entities == nil {
		next.Entities = map[string]Entity{}
	}
	next.Entities[e.ID] = e
	return next
}

func (s State) without(id string) State {
	next := State{Tick: s.Tick, Entities: maps.Clone(s.Entities)}
	delete(next.Entities, id)
	return next
}

func ContainsEvent(events []Event, t EventType) bool {
	for _, ev := range events {
		if ev.Type == t {
			return true
		}
	}
	return false
}
