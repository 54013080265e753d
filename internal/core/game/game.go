// Package game runs the fixed-timestep loop driving a set of stages.
package game

import (
	"errors"
	"fmt"
	"time"

	"github.com/zeusync/stagehand/internal/core/observability/log"
	"github.com/zeusync/stagehand/internal/core/stage"
	"github.com/zeusync/stagehand/internal/core/watch"
)

// Events emitted on the game notifier.
const (
	EventStart  = "game.start"
	EventPause  = "game.pause"
	EventStep   = "game.step"
	EventRender = "game.render"
)

var (
	ErrStageExists   = errors.New("stage already added")
	ErrStageNotFound = errors.New("stage not found")
)

type Stats struct {
	Frames  uint64        `json:"frames"`
	Steps   uint64        `json:"steps"`
	Renders uint64        `json:"renders"`
	Dropped time.Duration `json:"dropped"`
	Running bool          `json:"running"`
}

// Game advances its stages in lockstep. Every method must be called from the
// goroutine running the host frames, or before the host starts.
type Game struct {
	*watch.Notifier

	cfg    Config
	host   Host
	queue  *watch.Queue
	queues []*watch.Queue
	log    log.Log

	stages []*stage.Stage
	byID   map[string]*stage.Stage

	running   bool
	paused    bool
	lastTime  time.Duration
	frameTime time.Duration
	pausedAt  time.Duration
	stats     Stats
	err       error
}

func New(cfg Config, host Host) (*Game, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if host == nil {
		return nil, fmt.Errorf("%w: nil host", ErrInvalidConfig)
	}
	if cfg.Queue == nil {
		cfg.Queue = watch.NewQueue()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	return &Game{
		Notifier: watch.New(cfg.Queue, cfg.Logger),
		cfg:      cfg,
		host:     host,
		queue:    cfg.Queue,
		queues:   []*watch.Queue{cfg.Queue},
		log:      cfg.Logger,
		byID:     make(map[string]*stage.Stage),
	}, nil
}

func (g *Game) Config() Config      { return g.cfg }
func (g *Game) Queue() *watch.Queue { return g.queue }
func (g *Game) Running() bool       { return g.running }

// Err returns the failure that stopped the loop, if any.
func (g *Game) Err() error { return g.err }

func (g *Game) Stats() Stats {
	st := g.stats
	st.Running = g.running
	return st
}

// AddStage appends s to the update order.
func (g *Game) AddStage(s *stage.Stage) error {
	if _, dup := g.byID[s.ID()]; dup {
		return fmt.Errorf("%w: %s", ErrStageExists, s.ID())
	}
	g.stages = append(g.stages, s)
	g.byID[s.ID()] = s
	g.trackQueue(s.Queue())
	g.log.Debug("stage added", log.String("stage", s.ID()))
	return nil
}

func (g *Game) RemoveStage(id string) error {
	s, ok := g.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrStageNotFound, id)
	}
	delete(g.byID, id)
	for i, cur := range g.stages {
		if cur == s {
			g.stages = append(g.stages[:i], g.stages[i+1:]...)
			break
		}
	}
	g.queues = g.queues[:1]
	for _, cur := range g.stages {
		g.trackQueue(cur.Queue())
	}
	g.log.Debug("stage removed", log.String("stage", id))
	return nil
}

func (g *Game) Stage(id string) (*stage.Stage, bool) {
	s, ok := g.byID[id]
	return s, ok
}

// Stages returns the stages in update order.
func (g *Game) Stages() []*stage.Stage {
	out := make([]*stage.Stage, len(g.stages))
	copy(out, g.stages)
	return out
}

// Start begins or resumes the loop. Time spent paused is not simulated.
func (g *Game) Start() {
	if g.running {
		return
	}
	now := g.host.Now()
	if g.paused {
		g.lastTime += now - g.pausedAt
	} else {
		g.lastTime = now
		g.frameTime = 0
	}
	g.running = true
	g.paused = false
	g.err = nil
	g.host.RequestFrame(g.frame)
	g.log.Info("game started",
		log.Duration("step", g.cfg.TargetFrameRate),
		log.Duration("threshold", g.cfg.FrameThreshold),
		log.Strings("stages", g.stageIDs()),
	)
	g.Notify(EventStart, now)
}

// Pause stops scheduling frames and remembers when it happened.
func (g *Game) Pause() {
	if !g.running {
		return
	}
	g.running = false
	g.paused = true
	g.pausedAt = g.host.Now()
	g.host.CancelFrame()
	g.log.Info("game paused", log.Uint64("steps", g.stats.Steps))
	g.Notify(EventPause, g.pausedAt)
}

func (g *Game) frame(now time.Duration) error {
	if !g.running {
		return nil
	}
	if err := g.Tick(now); err != nil {
		g.running = false
		g.paused = false
		g.err = err
		g.log.Error("game loop stopped", log.Error(err))
		return err
	}
	if g.running {
		g.host.RequestFrame(g.frame)
	}
	return nil
}

// Tick runs one host frame at time now: as many fixed steps as the
// accumulated frame time allows, then a single render if any step ran.
// Queued notifications are drained after every step and again before render.
// A stage failure aborts the rest of the frame and is returned.
func (g *Game) Tick(now time.Duration) error {
	step := g.cfg.TargetFrameRate
	delta := now - g.lastTime
	if delta < 0 {
		delta = 0
	}
	g.lastTime = now
	g.frameTime += delta
	if g.frameTime > g.cfg.FrameThreshold {
		g.stats.Dropped += g.frameTime - g.cfg.FrameThreshold
		g.frameTime = g.cfg.FrameThreshold
	}

	steps := 0
	for g.frameTime >= step {
		for _, s := range g.stages {
			if err := s.Update(step); err != nil {
				return err
			}
		}
		g.frameTime -= step
		steps++
		g.stats.Steps++
		g.Notify(EventStep, g.stats.Steps)
		g.drain()
	}
	g.stats.Frames++

	if steps == 0 {
		return nil
	}
	g.drain()
	for _, s := range g.stages {
		if err := s.Render(); err != nil {
			return err
		}
	}
	g.stats.Renders++
	g.Notify(EventRender, steps)
	return nil
}

func (g *Game) stageIDs() []string {
	ids := make([]string, len(g.stages))
	for i, s := range g.stages {
		ids[i] = s.ID()
	}
	return ids
}

// FrameTime is the accumulated time not yet simulated.
func (g *Game) FrameTime() time.Duration { return g.frameTime }

// drain flushes every tracked queue until a full pass runs nothing, so a
// flush on one queue that notifies onto another settles in the same step.
func (g *Game) drain() {
	for {
		ran := 0
		for _, q := range g.queues {
			ran += q.Drain()
		}
		if ran == 0 {
			return
		}
	}
}

func (g *Game) trackQueue(q *watch.Queue) {
	for _, cur := range g.queues {
		if cur == q {
			return
		}
	}
	g.queues = append(g.queues, q)
}
