package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/profile"
	"github.com/zeusync/stagehand/internal/config"
	"github.com/zeusync/stagehand/internal/core/observability/log"
	"github.com/zeusync/stagehand/internal/core/systems/motion"
	"github.com/zeusync/stagehand/internal/injector"
	"github.com/zeusync/stagehand/internal/scene"
	"github.com/zeusync/stagehand/pkg/concurrent"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "stagehand:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  = flag.String("config", "", "config file (.yaml, .yml, .toml or .json)")
		scenePath   = flag.String("scene", "", "scene file, overrides scene.path")
		profileMode = flag.String("profile", "", "profile the run: cpu, mem, block, mutex or trace")
		duration    = flag.Duration("duration", 0, "stop after this long, 0 runs until interrupted")
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *scenePath != "" {
		cfg.Scene.Path = *scenePath
	}

	if *profileMode != "" {
		mode, err := profileOption(*profileMode)
		if err != nil {
			return err
		}
		defer profile.Start(mode, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	}

	rt, err := injector.InitializeRuntime(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Logger.Sync() }()
	logger := rt.Logger

	if err := rt.Stage.AddSystem(motion.New("motion")); err != nil {
		return err
	}
	if cfg.Scene.Path != "" {
		sc, err := scene.Load(cfg.Scene.Path)
		if err != nil {
			return err
		}
		ids, err := sc.Apply(rt.Stage)
		if err != nil {
			return err
		}
		logger.Info("Scene loaded",
			log.String("path", cfg.Scene.Path),
			log.Int("entities", len(ids)))
	}
	if err := rt.Game.AddStage(rt.Stage); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	tasks := []concurrent.Task{rt.Host.Run}
	if cfg.Inspector.Enabled {
		rt.Inspector.Watch(rt.Game)
		tasks = append(tasks, rt.Inspector.Run)
	}

	logger.Info("Stagehand running",
		log.Float64("rate_hz", float64(time.Second)/float64(rt.Game.Config().TargetFrameRate)),
		log.Bool("inspector", cfg.Inspector.Enabled))
	rt.Game.Start()
	err = concurrent.Run(ctx, tasks...)

	// the host loop has returned, so the game is no longer driven
	st := rt.Game.Stats()
	logger.Info("Stagehand stopped",
		log.Uint64("frames", st.Frames),
		log.Uint64("steps", st.Steps),
		log.Uint64("renders", st.Renders),
		log.Duration("dropped", st.Dropped),
		log.Any("stage", rt.Stage.Stats()),
		log.ErrorWithKey("cause", err))
	return err
}

func profileOption(mode string) (func(*profile.Profile), error) {
	switch mode {
	case "cpu":
		return profile.CPUProfile, nil
	case "mem":
		return profile.MemProfileAllocs, nil
	case "block":
		return profile.BlockProfile, nil
	case "mutex":
		return profile.MutexProfile, nil
	case "trace":
		return profile.TraceProfile, nil
	default:
		return nil, fmt.Errorf("unknown profile mode %q", mode)
	}
}
