// Package config loads runtime settings from the environment and the initial
// object layout.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/ayusman/pinchgrab/internal/geom"
)

// EnvPrefix is prepended to every variable name.
const EnvPrefix = "PINCHGRAB_"

// Config is the process configuration.
type Config struct {
	Addr      string `env:"ADDR" envDefault:":8080"`
	DataDir   string `env:"DATA_DIR"`
	StaticDir string `env:"STATIC_DIR"`
	Tray      bool   `env:"TRAY" envDefault:"false"`

	CameraID int `env:"CAMERA_ID" envDefault:"0"`
	MaxHands int `env:"MAX_HANDS" envDefault:"2"`

	PinchThreshold float64 `env:"PINCH_THRESHOLD" envDefault:"0.08"`
	TargetRateHz   float64 `env:"TARGET_RATE_HZ" envDefault:"20"`
	HostRateHz     float64 `env:"HOST_RATE_HZ" envDefault:"60"`

	HitBoxWidth  float64 `env:"HITBOX_WIDTH" envDefault:"80"`
	HitBoxHeight float64 `env:"HITBOX_HEIGHT" envDefault:"80"`
	SpriteWidth  float64 `env:"SPRITE_WIDTH" envDefault:"80"`
	SpriteHeight float64 `env:"SPRITE_HEIGHT" envDefault:"80"`

	LayoutFile string `env:"LAYOUT_FILE"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads an optional .env file from the working directory, then the
// environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}
	return Parse(nil)
}

// Parse builds a Config from environ, or from the process environment when
// environ is nil. Keys in environ carry the PINCHGRAB_ prefix.
func Parse(environ map[string]string) (*Config, error) {
	var cfg Config
	opts := env.Options{Prefix: EnvPrefix, Environment: environ}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".pinchgrab")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.PinchThreshold <= 0 {
		errs = append(errs, fmt.Errorf("%sPINCH_THRESHOLD must be positive, got %v", EnvPrefix, c.PinchThreshold))
	}
	if c.TargetRateHz <= 0 {
		errs = append(errs, fmt.Errorf("%sTARGET_RATE_HZ must be positive, got %v", EnvPrefix, c.TargetRateHz))
	}
	if c.HostRateHz <= 0 {
		errs = append(errs, fmt.Errorf("%sHOST_RATE_HZ must be positive, got %v", EnvPrefix, c.HostRateHz))
	}
	if c.HitBoxWidth <= 0 || c.HitBoxHeight <= 0 {
		errs = append(errs, fmt.Errorf("hit box must be positive, got %vx%v", c.HitBoxWidth, c.HitBoxHeight))
	}
	if c.SpriteWidth <= 0 || c.SpriteHeight <= 0 {
		errs = append(errs, fmt.Errorf("sprite size must be positive, got %vx%v", c.SpriteWidth, c.SpriteHeight))
	}
	if c.MaxHands < 1 {
		errs = append(errs, fmt.Errorf("%sMAX_HANDS must be at least 1, got %d", EnvPrefix, c.MaxHands))
	}
	return errors.Join(errs...)
}

// HitBox is the grab hit-test size.
func (c *Config) HitBox() geom.Size {
	return geom.Size{W: c.HitBoxWidth, H: c.HitBoxHeight}
}

// Sprite is the size objects are drawn at.
func (c *Config) Sprite() geom.Size {
	return geom.Size{W: c.SpriteWidth, H: c.SpriteHeight}
}

// DatabasePath is the sqlite file inside DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "pinchgrab.db")
}
