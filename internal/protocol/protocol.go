// Package protocol defines the JSON frames exchanged between the client and the
// simulation authority.
package protocol

import "encoding/json"

// Version is bumped whenever a frame shape changes incompatibly.
const Version = 1

const (
	// Client -> Server
	MsgHello   = "hello"
	MsgSpawn   = "spawn"
	MsgDespawn = "despawn"
	MsgInput   = "input"
	MsgPing    = "ping"

	// Server -> Client
	MsgWelcome  = "welcome"
	MsgState    = "state"
	MsgShutdown = "shutdown"
	MsgError    = "error"

	// Both directions
	MsgChat = "chat"
)

type Envelope struct {
	T string          `json:"t"`
	P json.RawMessage `json:"p"`
}

type Hello struct {
	V    int    `json:"v"`
	Name string `json:"name"`
}

type Welcome struct {
	V        int    `json:"v"`
	ClientID string `json:"client_id"`
	TickHz   int    `json:"tick_hz"`
}

type Spawn struct {
	Character string `json:"character"`
	Race      string `json:"race,omitempty"`
	Weapon    string `json:"weapon,omitempty"`
}

type Despawn struct{}

type Ping struct {
	Seq uint64 `json:"seq"`
}

// Input carries the world-space movement direction for one client tick.
type Input struct {
	Seq     uint64     `json:"seq"`
	MoveDir [2]float32 `json:"move_dir"`
	DtMs    float64    `json:"dt_ms"`
}

type Chat struct {
	From string `json:"from,omitempty"`
	Text string `json:"text"`
}

// State is an authoritative world snapshot. Version strictly increases
// across the snapshots sent on one connection.
type State struct {
	Version  uint64   `json:"version"`
	Tick     uint64   `json:"tick"`
	Entities []Entity `json:"entities"`
}

type Entity struct {
	ID   string     `json:"id"`
	Name string     `json:"name"`
	Pos  [3]float32 `json:"pos"`
	Vel  [3]float32 `json:"vel"`
}

type Shutdown struct {
	Reason string `json:"reason,omitempty"`
}

type Error struct {
	Error string `json:"error"`
}
