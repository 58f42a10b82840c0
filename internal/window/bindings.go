package window

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Bindings maps physical key names to semantic keys.
type Bindings map[string]Key

func DefaultBindings() Bindings {
	return Bindings{
		"w":      KeyMoveForward,
		"s":      KeyMoveBack,
		"a":      KeyMoveLeft,
		"d":      KeyMoveRight,
		"tab":    KeyToggleCursor,
		"escape": KeyEscape,
	}
}

type bindingsFile struct {
	Bindings map[string]string `yaml:"bindings"`
}

// LoadBindings reads a YAML bindings file on top of the defaults. An empty
// path yields the defaults.
func LoadBindings(path string) (Bindings, error) {
	b := DefaultBindings()
	if path == "" {
		return b, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bindings: %w", err)
	}
	return parseBindings(raw, b)
}

func parseBindings(raw []byte, base Bindings) (Bindings, error) {
	var f bindingsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse bindings: %w", err)
	}
	for name, keyName := range f.Bindings {
		k, err := ParseKey(keyName)
		if err != nil {
			return nil, fmt.Errorf("binding %q: %w", name, err)
		}
		base[strings.ToLower(name)] = k
	}
	return base, nil
}
