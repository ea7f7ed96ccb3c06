// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package connection

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Pinger checks a single health endpoint. A nil error means reachable.
type Pinger interface {
	Ping(ctx context.Context, endpoint string) error
}

// =============================================================================
// MONITOR CONFIGURATION
// =============================================================================

// Config holds the probe settings.
type Config struct {
	// Endpoints are tried in order; the first success ends the probe.
	// Paths are resolved by the Pinger; absolute URLs must be http(s).
	// (default: /api/health, /health, /)
	Endpoints []string

	// ProbeTimeout bounds each endpoint attempt (default: 10s)
	ProbeTimeout time.Duration

	// Interval between scheduled probes (default: 15s)
	Interval time.Duration

	// MaxFailures consecutive failed probes turn disconnected into
	// offline (default: 5)
	MaxFailures int

	// VisibleDebounce delays the probe triggered by OnVisible (default: 500ms)
	VisibleDebounce time.Duration

	// Disabled puts the monitor in mock mode; nothing is probed.
	Disabled bool
}

// DefaultConfig returns the default probe settings.
func DefaultConfig() *Config {
	return &Config{
		Endpoints:       []string{"/api/health", "/health", "/"},
		ProbeTimeout:    10 * time.Second,
		Interval:        15 * time.Second,
		MaxFailures:     5,
		VisibleDebounce: 500 * time.Millisecond,
	}
}

// Option customizes a Monitor.
type Option func(*Monitor)

// WithVisibility sets the function consulted before each scheduled probe.
// Without it the client is always considered visible.
func WithVisibility(visible func() bool) Option {
	return func(m *Monitor) { m.visible = visible }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// =============================================================================
// MONITOR
// =============================================================================

// Monitor owns the shared connection status. It is safe for concurrent use.
type Monitor struct {
	pinger  Pinger
	config  Config
	log     *zap.Logger
	visible func() bool
	now     func() time.Time

	mu          sync.Mutex
	status      Status
	failures    int
	lastSuccess time.Time
	subs        map[int]func(Status)
	nextSub     int
	debounce    *time.Timer

	// probeMu serializes probes so their results never interleave.
	probeMu sync.Mutex

	runMu   sync.Mutex
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewMonitor creates a monitor. Zero config values take their defaults
// and every endpoint is validated.
func NewMonitor(pinger Pinger, config *Config, log *zap.Logger, opts ...Option) (*Monitor, error) {
	defaults := DefaultConfig()
	if config == nil {
		config = defaults
	}
	cfg := *config
	if len(cfg.Endpoints) == 0 {
		cfg.Endpoints = defaults.Endpoints
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaults.ProbeTimeout
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaults.Interval
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = defaults.MaxFailures
	}
	if cfg.VisibleDebounce <= 0 {
		cfg.VisibleDebounce = defaults.VisibleDebounce
	}
	for _, ep := range cfg.Endpoints {
		if err := validateEndpoint(ep); err != nil {
			return nil, err
		}
	}
	if log == nil {
		log = zap.NewNop()
	}

	m := &Monitor{
		pinger:  pinger,
		config:  cfg,
		log:     log.With(zap.String("module", "connection")),
		visible: func() bool { return true },
		now:     time.Now,
		status:  StatusUnknown,
		subs:    make(map[int]func(Status)),
		baseCtx: context.Background(),
	}
	if cfg.Disabled {
		m.status = StatusMock
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func validateEndpoint(ep string) error {
	if strings.HasPrefix(ep, "/") {
		return nil
	}
	u, err := url.Parse(ep)
	if err != nil {
		return fmt.Errorf("connection: invalid endpoint %q: %w", ep, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("connection: endpoint %q must be a path or an http(s) URL", ep)
	}
	if u.Host == "" {
		return fmt.Errorf("connection: endpoint %q has no host", ep)
	}
	return nil
}

// =============================================================================
// STATUS ACCESS
// =============================================================================

// Current returns the current status.
func (m *Monitor) Current() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Failures returns the number of consecutive failed probes.
func (m *Monitor) Failures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures
}

// MaxFailures returns the failure count at which the monitor goes offline.
func (m *Monitor) MaxFailures() int {
	return m.config.MaxFailures
}

// LastSuccess returns when a probe last succeeded, or the zero time.
func (m *Monitor) LastSuccess() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSuccess
}

// Subscribe registers fn to be called on every status change. The returned
// function removes the subscription. fn must not block.
func (m *Monitor) Subscribe(fn func(Status)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// setStatus updates the status and notifies subscribers when it changed.
// Callers must not hold mu.
func (m *Monitor) setStatus(s Status, update func()) {
	m.mu.Lock()
	if update != nil {
		update()
	}
	changed := m.status != s
	m.status = s
	var subs []func(Status)
	if changed {
		subs = make([]func(Status), 0, len(m.subs))
		for _, fn := range m.subs {
			subs = append(subs, fn)
		}
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
}

// =============================================================================
// PROBING
// =============================================================================

// Probe tries each endpoint in order and returns the resulting status.
// Network errors, timeouts and non-2xx responses all count as failure.
// If ctx is cancelled mid-probe the previous status is restored and no
// failure is counted.
func (m *Monitor) Probe(ctx context.Context) Status {
	if m.config.Disabled {
		m.setStatus(StatusMock, nil)
		return StatusMock
	}

	m.probeMu.Lock()
	defer m.probeMu.Unlock()

	prev := m.Current()
	m.setStatus(StatusRetrying, nil)

	for _, ep := range m.config.Endpoints {
		pctx, cancel := context.WithTimeout(ctx, m.config.ProbeTimeout)
		err := m.pinger.Ping(pctx, ep)
		cancel()

		if err == nil {
			now := m.now()
			m.setStatus(StatusConnected, func() {
				m.failures = 0
				m.lastSuccess = now
			})
			if prev != StatusConnected {
				m.log.Info("backend connected", zap.String("endpoint", ep))
			}
			return StatusConnected
		}
		m.log.Debug("endpoint failed", zap.String("endpoint", ep), zap.Error(err))

		if ctx.Err() != nil {
			m.setStatus(prev, nil)
			return prev
		}
	}

	m.mu.Lock()
	m.failures++
	failures := m.failures
	m.mu.Unlock()

	next := StatusDisconnected
	if failures >= m.config.MaxFailures {
		next = StatusOffline
	}
	m.setStatus(next, nil)

	if prev == StatusConnected {
		m.log.Warn("connection lost, will retry", zap.Int("failures", failures))
	} else if next == StatusOffline && prev != StatusOffline {
		m.log.Warn("backend unreachable, offline mode", zap.Int("failures", failures))
	}
	return next
}

// Retry runs a probe on the user's request. It is the way out of offline.
func (m *Monitor) Retry(ctx context.Context) Status {
	m.log.Info("manual connection retry")
	return m.Probe(ctx)
}

// OnVisible schedules an extra probe after the debounce delay. Calls within
// the delay collapse into one probe. The probe runs even when offline.
func (m *Monitor) OnVisible() {
	if m.config.Disabled {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.debounce != nil {
		m.debounce.Stop()
	}
	m.debounce = time.AfterFunc(m.config.VisibleDebounce, func() {
		if !m.visible() {
			return
		}
		m.Probe(m.context())
	})
}

// =============================================================================
// SCHEDULING
// =============================================================================

// Start probes once and then on every interval until Stop or ctx ends.
// Scheduled probes are skipped while the client is hidden or offline.
func (m *Monitor) Start(ctx context.Context) {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.baseCtx = ctx
	m.cancel = cancel

	m.wg.Add(1)
	go m.loop(ctx)
}

// Stop ends scheduled probing and waits for the loop to exit.
func (m *Monitor) Stop() {
	m.runMu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.runMu.Unlock()

	m.mu.Lock()
	if m.debounce != nil {
		m.debounce.Stop()
	}
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

func (m *Monitor) context() context.Context {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	return m.baseCtx
}

func (m *Monitor) loop(ctx context.Context) {
	defer m.wg.Done()

	m.tick(ctx)

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	if m.config.Disabled {
		m.setStatus(StatusMock, nil)
		return
	}
	if !m.visible() || m.Current() == StatusOffline {
		return
	}
	m.Probe(ctx)
}
