// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package typing

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrBusy is returned by Type while another reply is being typed.
var ErrBusy = errors.New("typing already in progress")

const (
	// DefaultCharDelay is the time budget per revealed character.
	DefaultCharDelay = 10 * time.Millisecond

	// CompactCharDelay is used on small terminals.
	CompactCharDelay = 20 * time.Millisecond

	// DefaultFPS is the frame rate of the default ticker source.
	DefaultFPS = 60
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Target receives the progressively revealed markup.
type Target interface {
	// Update shows a partial render. Targets may decorate it with a
	// cursor marker.
	Update(partial string)

	// Finalize shows the complete markup with no cursor marker.
	Finalize(full string)

	// NearBottom reports whether the view is scrolled to (or near) the
	// end of the conversation.
	NearBottom() bool

	// ScrollToBottom follows the newest text.
	ScrollToBottom()
}

// FrameSource delivers frame timestamps.
type FrameSource interface {
	Frames() <-chan time.Time
	Stop()
}

type tickerSource struct {
	ticker *time.Ticker
}

// NewTickerSource returns a FrameSource ticking fps times per second.
func NewTickerSource(fps int) FrameSource {
	if fps <= 0 || fps > 120 {
		fps = DefaultFPS
	}
	return &tickerSource{ticker: time.NewTicker(time.Second / time.Duration(fps))}
}

func (t *tickerSource) Frames() <-chan time.Time { return t.ticker.C }
func (t *tickerSource) Stop()                    { t.ticker.Stop() }

// =============================================================================
// SCHEDULER
// =============================================================================

// Config configures a Scheduler.
type Config struct {
	// CharDelay overrides the per-character budget.
	CharDelay time.Duration

	// Compact selects CompactCharDelay when CharDelay is zero.
	Compact bool

	// Frames creates the frame source for one Type call.
	Frames func() FrameSource
}

// Cursor is a snapshot of the reveal position.
type Cursor struct {
	Offset      int
	Total       int
	Accumulated time.Duration
	Paused      bool
}

type run struct {
	target Target
	markup string
	total  int
	follow bool

	offset int
	acc    time.Duration
	last   time.Time

	cancel     chan struct{}
	cancelOnce sync.Once
}

// Scheduler types one reply at a time. Pause, Resume and Cancel are safe
// to call from any goroutine.
type Scheduler struct {
	budget time.Duration
	frames func() FrameSource
	log    *zap.Logger

	mu     sync.Mutex
	cur    *run
	paused bool
}

// NewScheduler creates a Scheduler.
func NewScheduler(cfg Config, log *zap.Logger) *Scheduler {
	budget := cfg.CharDelay
	if budget <= 0 {
		budget = DefaultCharDelay
		if cfg.Compact {
			budget = CompactCharDelay
		}
	}
	if cfg.Frames == nil {
		cfg.Frames = func() FrameSource { return NewTickerSource(DefaultFPS) }
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		budget: budget,
		frames: cfg.Frames,
		log:    log.With(zap.String("module", "typing")),
	}
}

// CharDelay returns the per-character budget.
func (s *Scheduler) CharDelay() time.Duration { return s.budget }

// Type reveals markup into target and blocks until it is fully shown.
// Cancel finalizes immediately and Type returns nil. When ctx ends the
// target is finalized and ctx's error is returned.
func (s *Scheduler) Type(ctx context.Context, target Target, markup string) error {
	r := &run{
		target: target,
		markup: markup,
		total:  VisibleLen(markup),
		follow: target.NearBottom(),
		cancel: make(chan struct{}),
	}

	s.mu.Lock()
	if s.cur != nil {
		s.mu.Unlock()
		return ErrBusy
	}
	s.cur = r
	s.mu.Unlock()

	if r.total == 0 {
		s.finish(r)
		return nil
	}

	src := s.frames()
	defer src.Stop()
	frames := src.Frames()

	for {
		select {
		case <-ctx.Done():
			s.finish(r)
			return ctx.Err()
		case <-r.cancel:
			s.finish(r)
			return nil
		case now, ok := <-frames:
			if !ok {
				s.finish(r)
				return nil
			}
			partial, changed, done := s.frame(r, now)
			if done {
				s.finish(r)
				return nil
			}
			if changed {
				target.Update(partial)
				if r.follow {
					target.ScrollToBottom()
				}
			}
		}
	}
}

// frame advances r by the time elapsed since the previous frame. The
// first frame after a start or resume only sets the baseline.
func (s *Scheduler) frame(r *run, now time.Time) (string, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		r.last = time.Time{}
		return "", false, false
	}
	if r.last.IsZero() {
		r.last = now
		return "", false, false
	}

	delta := now.Sub(r.last)
	if delta < 0 {
		delta = 0
	}
	r.last = now
	r.acc += delta

	n := int(r.acc / s.budget)
	if rest := r.total - r.offset; n > rest {
		n = rest
	}
	if n == 0 {
		return "", false, false
	}
	r.offset += n
	r.acc -= time.Duration(n) * s.budget

	if r.offset >= r.total {
		return "", true, true
	}
	return Prefix(r.markup, r.offset), true, false
}

func (s *Scheduler) finish(r *run) {
	r.target.Finalize(r.markup)
	if r.follow {
		r.target.ScrollToBottom()
	}

	s.mu.Lock()
	if s.cur == r {
		s.cur = nil
		s.paused = false
	}
	s.mu.Unlock()
}

// Pause freezes the cursor. It is a no-op when nothing is being typed.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur != nil && !s.paused {
		s.paused = true
		s.log.Debug("typing paused", zap.Int("offset", s.cur.offset), zap.Int("total", s.cur.total))
	}
}

// Resume continues from the frozen cursor.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur != nil && s.paused {
		s.paused = false
		s.cur.last = time.Time{}
	}
}

// Cancel finalizes the current reply without animation.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	r := s.cur
	s.mu.Unlock()
	if r != nil {
		r.cancelOnce.Do(func() { close(r.cancel) })
	}
}

// Active reports whether a reply is being typed.
func (s *Scheduler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur != nil
}

// Paused reports whether typing is paused.
func (s *Scheduler) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Cursor returns the current reveal position. ok is false when idle.
func (s *Scheduler) Cursor() (Cursor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return Cursor{}, false
	}
	return Cursor{
		Offset:      s.cur.offset,
		Total:       s.cur.total,
		Accumulated: s.cur.acc,
		Paused:      s.paused,
	}, true
}
