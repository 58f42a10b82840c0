// Package roster holds the player's characters.
package roster

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const maxNameLen = 24

var (
	ErrNotFound      = errors.New("character not found")
	ErrDuplicateName = errors.New("character name already taken")
	ErrInvalidName   = errors.New("invalid character name")
	ErrUnknownRace   = errors.New("unknown race")
	ErrUnknownWeapon = errors.New("unknown weapon")
)

type Race string

const (
	Human  Race = "human"
	Orc    Race = "orc"
	Elf    Race = "elf"
	Dwarf  Race = "dwarf"
	Undead Race = "undead"
	Danari Race = "danari"
)

var Races = []Race{Human, Orc, Elf, Dwarf, Undead, Danari}

type Weapon string

const (
	Daggers     Weapon = "daggers"
	SwordShield Weapon = "sword_shield"
	Sword       Weapon = "sword"
	Axe         Weapon = "axe"
	Hammer      Weapon = "hammer"
	Bow         Weapon = "bow"
	Staff       Weapon = "staff"
)

var Weapons = []Weapon{Daggers, SwordShield, Sword, Axe, Hammer, Bow, Staff}

func ParseRace(s string) (Race, error) {
	r := Race(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Races {
		if r == known {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRace, s)
}

func ParseWeapon(s string) (Weapon, error) {
	w := Weapon(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Weapons {
		if w == known {
			return w, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownWeapon, s)
}

type Character struct {
	ID        uuid.UUID
	Name      string
	Race      Race
	Weapon    Weapon
	CreatedAt time.Time
}

// NewCharacter validates the fields and assigns a fresh ID.
func NewCharacter(name, race, weapon string) (Character, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLen {
		return Character{}, fmt.Errorf("%w: must be 1 to %d characters", ErrInvalidName, maxNameLen)
	}
	r, err := ParseRace(race)
	if err != nil {
		return Character{}, err
	}
	w, err := ParseWeapon(weapon)
	if err != nil {
		return Character{}, err
	}
	return Character{
		ID:        uuid.New(),
		Name:      name,
		Race:      r,
		Weapon:    w,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Store persists characters. List returns them oldest first.
type Store interface {
	List(ctx context.Context) ([]Character, error)
	Create(ctx context.Context, c Character) error
	Delete(ctx context.Context, id uuid.UUID) error
}
