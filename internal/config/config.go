// Package config loads client and server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// Client
	ServerURL         string        `env:"VOXEL_SERVER_URL" envDefault:"ws://127.0.0.1:8080/ws?world=main"`
	PlayerName        string        `env:"VOXEL_PLAYER_NAME" envDefault:"player"`
	FPS               int           `env:"VOXEL_FPS" envDefault:"60"`
	ServerTimeout     time.Duration `env:"VOXEL_SERVER_TIMEOUT" envDefault:"5s"`
	ReconnectAttempts uint          `env:"VOXEL_RECONNECT_ATTEMPTS" envDefault:"5"`
	DataDir           string        `env:"VOXEL_DATA_DIR" envDefault:".voxel"`
	KeyBindingsFile   string        `env:"VOXEL_KEYBINDINGS"`

	// Server
	ListenAddr  string `env:"VOXEL_LISTEN_ADDR" envDefault:":8080"`
	DatabaseURL string `env:"VOXEL_DATABASE_URL"`
	SimTickHz   int    `env:"VOXEL_SIM_TICK_HZ" envDefault:"30"`
	WorldCode   string `env:"VOXEL_WORLD" envDefault:"main"`
	Wanderers   int    `env:"VOXEL_WANDERERS" envDefault:"4"`

	LogLevel string `env:"VOXEL_LOG_LEVEL" envDefault:"info"`
	Dev      bool   `env:"VOXEL_DEV"`
}

// Load reads optional .env files, then the environment.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	if c.FPS <= 0 {
		return fmt.Errorf("VOXEL_FPS must be positive, got %d", c.FPS)
	}
	if c.SimTickHz <= 0 {
		return fmt.Errorf("VOXEL_SIM_TICK_HZ must be positive, got %d", c.SimTickHz)
	}
	if c.Wanderers < 0 {
		return fmt.Errorf("VOXEL_WANDERERS must not be negative, got %d", c.Wanderers)
	}
	if c.ServerTimeout <= 0 {
		return fmt.Errorf("VOXEL_SERVER_TIMEOUT must be positive, got %s", c.ServerTimeout)
	}
	return nil
}
