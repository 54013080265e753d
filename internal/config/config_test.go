package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/stagehand/internal/core/game"
	"github.com/zeusync/stagehand/internal/core/observability/log"
	"github.com/zeusync/stagehand/internal/core/schema/registry"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, game.DefaultConfig().TargetFrameRate, cfg.GameConfig().TargetFrameRate)
	assert.Equal(t, game.DefaultConfig().FrameThreshold, cfg.GameConfig().FrameThreshold)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "stagehand.yaml", `
game:
  step: 20ms
  frame_threshold: 100ms
logging:
  level: debug
  format: json
inspector:
  enabled: true
  address: ":9000"
schemas:
  health:
    fields:
      hp: {kind: int, default: 100}
      regen: {kind: float}
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 20*time.Millisecond, cfg.Game.Step)
	assert.Equal(t, 100*time.Millisecond, cfg.Game.FrameThreshold)
	assert.Equal(t, game.DefaultTargetFrameRate, cfg.Game.HostInterval)
	assert.Equal(t, "/inspect", cfg.Inspector.Path)
	assert.Equal(t, log.LevelDebug, cfg.LogOptions().Level)
	assert.Equal(t, "json", cfg.LogOptions().Encoding)

	r := registry.New()
	require.NoError(t, cfg.RegisterSchemas(r))
	out, err := r.Validate("health", map[string]any{"regen": 0.5})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"hp": 100, "regen": 0.5}, out)
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "stagehand.toml", `
[game]
step = "10ms"
frame_threshold = "30ms"
host_interval = "5ms"

[scene]
stage = "arena"
path = "arena.yaml"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, cfg.Game.Step)
	assert.Equal(t, 5*time.Millisecond, cfg.Game.HostInterval)
	assert.Equal(t, SceneConfig{Stage: "arena", Path: "arena.yaml"}, cfg.Scene)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "stagehand.json", `{"game": {"step": "25ms", "frame_threshold": "75ms"}, "logging": {"level": "warn"}}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 25*time.Millisecond, cfg.Game.Step)
	assert.Equal(t, log.LevelWarn, cfg.LogOptions().Level)
}

func TestLoadRejects(t *testing.T) {
	_, err := Load(writeFile(t, "stagehand.ini", "step=1"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")

	_, err = Load(writeFile(t, "bad.yaml", "game: [unclosed"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "slow.yaml", "game: {step: 50ms, frame_threshold: 10ms}"))
	assert.ErrorIs(t, err, game.ErrInvalidConfig)

	_, err = Load(writeFile(t, "level.yaml", "logging: {level: loud}"))
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Load(writeFile(t, "kind.yaml", "schemas: {hp: {fields: {v: {kind: vector}}}}"))
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Load(writeFile(t, "inspector.yaml", "inspector: {enabled: true, path: inspect}"))
	assert.ErrorIs(t, err, ErrInvalid)
}
