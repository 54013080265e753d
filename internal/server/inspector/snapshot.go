package inspector

import (
	"github.com/zeusync/stagehand/internal/core/game"
	"github.com/zeusync/stagehand/internal/core/stage"
)

// Snapshot is the document streamed to debug clients after each render.
type Snapshot struct {
	Game   game.Stats      `json:"game"`
	Stages []StageSnapshot `json:"stages"`
}

type StageSnapshot struct {
	ID      string      `json:"id"`
	Stats   stage.Stats `json:"stats"`
	Systems []string    `json:"systems"`
}

// Capture reads the current state of g. It must run on the goroutine driving
// the game.
func Capture(g *game.Game) Snapshot {
	snap := Snapshot{Game: g.Stats()}
	for _, s := range g.Stages() {
		snap.Stages = append(snap.Stages, StageSnapshot{
			ID:      s.ID(),
			Stats:   s.Stats(),
			Systems: s.SystemIDs(),
		})
	}
	return snap
}
