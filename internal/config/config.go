package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rotisserie/eris"
	"github.com/zeusync/stagehand/internal/core/game"
	"github.com/zeusync/stagehand/internal/core/observability/log"
	"github.com/zeusync/stagehand/internal/core/schema/registry"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported config format")
	ErrInvalid           = errors.New("invalid config")
)

type Config struct {
	Game      GameConfig                     `toml:"game" yaml:"game"`
	Logging   LoggingConfig                  `toml:"logging" yaml:"logging"`
	Inspector InspectorConfig                `toml:"inspector" yaml:"inspector"`
	Scene     SceneConfig                    `toml:"scene" yaml:"scene"`
	Schemas   map[string]registry.Definition `toml:"schemas" yaml:"schemas"`
}

type GameConfig struct {
	Step           time.Duration `toml:"step" yaml:"step"`                       // fixed simulation step
	FrameThreshold time.Duration `toml:"frame_threshold" yaml:"frame_threshold"` // catch-up cap
	HostInterval   time.Duration `toml:"host_interval" yaml:"host_interval"`     // ticker period of the host
}

type LoggingConfig struct {
	Level       string   `toml:"level" yaml:"level"`
	Format      string   `toml:"format" yaml:"format"` // "json" or "console"
	Development bool     `toml:"development" yaml:"development"`
	OutputPaths []string `toml:"output_paths" yaml:"output_paths"`
}

type InspectorConfig struct {
	Enabled      bool          `toml:"enabled" yaml:"enabled"`
	Address      string        `toml:"address" yaml:"address"`
	Path         string        `toml:"path" yaml:"path"`
	WriteTimeout time.Duration `toml:"write_timeout" yaml:"write_timeout"`
	ClientBuffer int           `toml:"client_buffer" yaml:"client_buffer"`
}

type SceneConfig struct {
	Stage string `toml:"stage" yaml:"stage"`
	Path  string `toml:"path" yaml:"path"`
}

func Default() *Config {
	return &Config{
		Game: GameConfig{
			Step:           game.DefaultTargetFrameRate,
			FrameThreshold: game.DefaultThresholdFrames * game.DefaultTargetFrameRate,
			HostInterval:   game.DefaultTargetFrameRate,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Inspector: InspectorConfig{
			Address:      "127.0.0.1:7070",
			Path:         "/inspect",
			WriteTimeout: 5 * time.Second,
			ClientBuffer: 16,
		},
		Scene: SceneConfig{
			Stage: "main",
		},
	}
}

// Load reads path over the defaults. The decoder is picked by extension:
// .toml, .yaml/.yml, or .json (decoded as YAML, of which JSON is a subset).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read config %s", path)
	}
	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, eris.Wrapf(err, "parse config %s", path)
		}
	case ".yaml", ".yml", ".json":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, eris.Wrapf(err, "parse config %s", path)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := c.GameConfig().Validate(); err != nil {
		return err
	}
	if c.Game.HostInterval <= 0 {
		return fmt.Errorf("%w: game.host_interval must be positive", ErrInvalid)
	}
	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: logging.level: %v", ErrInvalid, err)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("%w: logging.format %q", ErrInvalid, c.Logging.Format)
	}
	if c.Inspector.Enabled {
		if c.Inspector.Address == "" {
			return fmt.Errorf("%w: inspector.address is required", ErrInvalid)
		}
		if !strings.HasPrefix(c.Inspector.Path, "/") {
			return fmt.Errorf("%w: inspector.path %q must start with /", ErrInvalid, c.Inspector.Path)
		}
		if c.Inspector.ClientBuffer <= 0 {
			return fmt.Errorf("%w: inspector.client_buffer must be positive", ErrInvalid)
		}
	}
	if c.Scene.Stage == "" {
		return fmt.Errorf("%w: scene.stage is required", ErrInvalid)
	}
	for name, def := range c.Schemas {
		for field, spec := range def.Fields {
			if !spec.Kind.Valid() {
				return fmt.Errorf("%w: schemas.%s.%s: unknown kind %q", ErrInvalid, name, field, spec.Kind)
			}
		}
	}
	return nil
}

// GameConfig maps the game section onto the loop configuration.
func (c *Config) GameConfig() game.Config {
	return game.Config{
		TargetFrameRate: c.Game.Step,
		FrameThreshold:  c.Game.FrameThreshold,
	}
}

// LogOptions maps the logging section onto logger options. The level is
// assumed validated.
func (c *Config) LogOptions() log.Options {
	level, _ := log.ParseLevel(c.Logging.Level)
	return log.Options{
		Level:       level,
		Encoding:    c.Logging.Format,
		Development: c.Logging.Development,
		OutputPaths: c.Logging.OutputPaths,
	}
}

// RegisterSchemas adds the declared struct schemas to r.
func (c *Config) RegisterSchemas(r *registry.Registry) error {
	for _, s := range registry.FromDefinitions(c.Schemas) {
		if err := r.Register(s); err != nil {
			return err
		}
	}
	return nil
}
