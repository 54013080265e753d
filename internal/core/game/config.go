package game

import (
	"errors"
	"fmt"
	"time"

	"github.com/zeusync/stagehand/internal/core/observability/log"
	"github.com/zeusync/stagehand/internal/core/watch"
)

var ErrInvalidConfig = errors.New("invalid game config")

const (
	DefaultTargetFrameRate = time.Second / 60
	DefaultThresholdFrames = 3
)

type Config struct {
	// TargetFrameRate is the fixed step handed to every Stage.Update.
	TargetFrameRate time.Duration
	// FrameThreshold caps the accumulated frame time. Anything above it is
	// dropped instead of being caught up.
	FrameThreshold time.Duration

	Queue  *watch.Queue
	Logger log.Log
}

func DefaultConfig() Config {
	return Config{
		TargetFrameRate: DefaultTargetFrameRate,
		FrameThreshold:  DefaultThresholdFrames * DefaultTargetFrameRate,
	}
}

func (c Config) Validate() error {
	if c.TargetFrameRate <= 0 {
		return fmt.Errorf("%w: target frame rate must be positive, got %s", ErrInvalidConfig, c.TargetFrameRate)
	}
	if c.FrameThreshold < c.TargetFrameRate {
		return fmt.Errorf("%w: frame threshold %s is below one step of %s", ErrInvalidConfig, c.FrameThreshold, c.TargetFrameRate)
	}
	return nil
}
