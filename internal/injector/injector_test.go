package injector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/stagehand/internal/config"
	"github.com/zeusync/stagehand/internal/core/schema/registry"
	"github.com/zeusync/stagehand/internal/core/systems/motion"
)

func TestInitializeRuntime(t *testing.T) {
	cfg := config.Default()
	cfg.Scene.Stage = "arena"
	cfg.Schemas = map[string]registry.Definition{
		"health": {Fields: map[string]registry.FieldSpec{"hp": {Kind: registry.KindInt, Default: 10}}},
	}

	rt, err := InitializeRuntime(cfg)
	require.NoError(t, err)

	assert.Equal(t, "arena", rt.Stage.ID())
	assert.Same(t, rt.Queue, rt.Game.Queue())
	assert.Same(t, rt.Queue, rt.Stage.Queue())
	assert.Equal(t, []string{motion.TypePosition, motion.TypeVelocity, "health"}, rt.Registry.Types())
	assert.Equal(t, cfg.Game.Step, rt.Game.Config().TargetFrameRate)
}

func TestInitializeRuntimeRejectsClashingSchemas(t *testing.T) {
	cfg := config.Default()
	cfg.Schemas = map[string]registry.Definition{motion.TypePosition: {}}

	_, err := InitializeRuntime(cfg)
	assert.ErrorIs(t, err, registry.ErrAlreadyRegistered)
}
