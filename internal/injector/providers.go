package injector

import (
	"github.com/google/wire"
	"github.com/zeusync/stagehand/internal/config"
	"github.com/zeusync/stagehand/internal/core/game"
	"github.com/zeusync/stagehand/internal/core/observability/log"
	"github.com/zeusync/stagehand/internal/core/schema/registry"
	"github.com/zeusync/stagehand/internal/core/stage"
	"github.com/zeusync/stagehand/internal/core/systems/motion"
	"github.com/zeusync/stagehand/internal/core/watch"
	"github.com/zeusync/stagehand/internal/server/inspector"
)

// Runtime is the assembled object graph of the stagehand binary.
type Runtime struct {
	Config    *config.Config
	Logger    *log.Logger
	Registry  *registry.Registry
	Queue     *watch.Queue
	Host      *game.TickerHost
	Game      *game.Game
	Stage     *stage.Stage
	Inspector *inspector.Inspector
}

var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideLog,
	ProvideRegistry,
	ProvideQueue,
	ProvideHost,
	ProvideGame,
	ProvideStage,
	ProvideInspector,
)

func ProvideLogger(cfg *config.Config) (*log.Logger, error) {
	return log.Build(cfg.LogOptions())
}

func ProvideLog(l *log.Logger) log.Log {
	return l
}

// ProvideRegistry registers the built-in motion types, then the schemas
// declared in the config.
func ProvideRegistry(cfg *config.Config) (*registry.Registry, error) {
	r := registry.New()
	for _, s := range motion.Schemas() {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	if err := cfg.RegisterSchemas(r); err != nil {
		return nil, err
	}
	return r, nil
}

func ProvideQueue() *watch.Queue {
	return watch.NewQueue()
}

func ProvideHost(cfg *config.Config) *game.TickerHost {
	return game.NewTickerHost(cfg.Game.HostInterval)
}

func ProvideGame(cfg *config.Config, host *game.TickerHost, queue *watch.Queue, logger log.Log) (*game.Game, error) {
	gc := cfg.GameConfig()
	gc.Queue = queue
	gc.Logger = logger.With(log.String("component", "game"))
	return game.New(gc, host)
}

func ProvideStage(cfg *config.Config, r *registry.Registry, queue *watch.Queue, logger log.Log) *stage.Stage {
	return stage.New(cfg.Scene.Stage, stage.Config{Registry: r, Queue: queue, Logger: logger})
}

func ProvideInspector(cfg *config.Config, logger log.Log) (*inspector.Inspector, error) {
	return inspector.New(inspector.Config{
		Address:      cfg.Inspector.Address,
		Path:         cfg.Inspector.Path,
		WriteTimeout: cfg.Inspector.WriteTimeout,
		ClientBuffer: cfg.Inspector.ClientBuffer,
	}, logger)
}
