package game

import (
	"context"
	"sync"
	"time"
)

// Frame is the callback a Game hands to its host. now is monotonic time
// since the host started. A returned error ends the loop.
type Frame func(now time.Duration) error

// Host supplies the clock and frame scheduling of a Game. At most one frame
// is pending at a time; requesting a new one replaces it.
type Host interface {
	Now() time.Duration
	RequestFrame(f Frame)
	CancelFrame()
}

// ManualHost is a deterministic host whose clock only moves on Advance.
type ManualHost struct {
	now     time.Duration
	pending Frame
}

func NewManualHost() *ManualHost {
	return &ManualHost{}
}

func (h *ManualHost) Now() time.Duration   { return h.now }
func (h *ManualHost) RequestFrame(f Frame) { h.pending = f }
func (h *ManualHost) CancelFrame()         { h.pending = nil }
func (h *ManualHost) Pending() bool        { return h.pending != nil }

// Skip moves the clock without running the pending frame.
func (h *ManualHost) Skip(d time.Duration) { h.now += d }

// Advance moves the clock by d and runs the pending frame, if any.
func (h *ManualHost) Advance(d time.Duration) (bool, error) {
	h.now += d
	f := h.pending
	h.pending = nil
	if f == nil {
		return false, nil
	}
	return true, f(h.now)
}

// TickerHost runs requested frames on a time.Ticker. Frames run on the
// goroutine calling Run, which therefore owns every stage of the game.
type TickerHost struct {
	interval time.Duration
	start    time.Time

	mu    sync.Mutex
	frame Frame
	calls chan func()
}

func NewTickerHost(interval time.Duration) *TickerHost {
	return &TickerHost{
		interval: interval,
		start:    time.Now(),
		calls:    make(chan func(), 16),
	}
}

func (h *TickerHost) Now() time.Duration {
	return time.Since(h.start)
}

func (h *TickerHost) RequestFrame(f Frame) {
	h.mu.Lock()
	h.frame = f
	h.mu.Unlock()
}

func (h *TickerHost) CancelFrame() {
	h.mu.Lock()
	h.frame = nil
	h.mu.Unlock()
}

// Do runs fn on the loop goroutine between frames. It blocks until fn has
// run or ctx is done.
func (h *TickerHost) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case h.calls <- func() { fn(); close(done) }:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives frames until ctx is cancelled or a frame fails.
func (h *TickerHost) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-h.calls:
			fn()
		case <-ticker.C:
			h.mu.Lock()
			f := h.frame
			h.frame = nil
			h.mu.Unlock()
			if f == nil {
				continue
			}
			if err := f(h.Now()); err != nil {
				return err
			}
		}
	}
}
