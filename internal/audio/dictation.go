// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package audio

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultSilence is how long dictation waits after the last result
	// before sending.
	DefaultSilence = 2 * time.Second

	// CompactSilence is used on small terminals.
	CompactSilence = 3 * time.Second
)

// DictationConfig configures a Dictation.
type DictationConfig struct {
	Silence time.Duration
	Compact bool

	// OnUpdate receives the text recognised so far (final plus interim).
	OnUpdate func(text string)

	// OnSubmit receives the dictated text after a silence.
	OnSubmit func(text string)

	// OnError receives capture errors. Dictation stops after one.
	OnError func(err error)
}

// Dictation accumulates transcripts from a CaptureSource and submits the
// text once the speaker pauses.
type Dictation struct {
	src     CaptureSource
	silence time.Duration
	cfg     DictationConfig
	log     *zap.Logger

	mu        sync.Mutex
	listening bool
	final     strings.Builder
	interim   string
	timer     *time.Timer
	gen       int
}

// NewDictation creates a Dictation over src.
func NewDictation(src CaptureSource, cfg DictationConfig, log *zap.Logger) *Dictation {
	silence := cfg.Silence
	if silence <= 0 {
		silence = DefaultSilence
		if cfg.Compact {
			silence = CompactSilence
		}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dictation{
		src:     src,
		silence: silence,
		cfg:     cfg,
		log:     log.With(zap.String("module", "audio")),
	}
}

// Available reports whether the source can capture.
func (d *Dictation) Available() bool {
	return d.src != nil && d.src.Available()
}

// SetHandlers replaces the update, submit and error callbacks.
func (d *Dictation) SetHandlers(onUpdate, onSubmit func(string), onError func(error)) {
	d.mu.Lock()
	d.cfg.OnUpdate = onUpdate
	d.cfg.OnSubmit = onSubmit
	d.cfg.OnError = onError
	d.mu.Unlock()
}

func (d *Dictation) handlers() DictationConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// Silence returns the auto-send delay.
func (d *Dictation) Silence() time.Duration { return d.silence }

// Start begins listening. Previous text is discarded.
func (d *Dictation) Start(ctx context.Context) error {
	if !d.Available() {
		return ErrUnavailable
	}

	d.mu.Lock()
	if d.listening {
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	ch, err := d.src.Start(ctx)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.listening = true
	d.final.Reset()
	d.interim = ""
	d.gen++
	gen := d.gen
	d.armLocked(gen)
	d.mu.Unlock()

	d.log.Info("dictation started")
	go d.consume(ch, gen)
	return nil
}

func (d *Dictation) consume(ch <-chan Transcript, gen int) {
	for tr := range ch {
		if tr.Err != nil {
			d.log.Warn("capture error", zap.Error(tr.Err))
			d.Stop()
			if h := d.handlers(); h.OnError != nil {
				h.OnError(tr.Err)
			}
			return
		}

		d.mu.Lock()
		if !d.listening || d.gen != gen {
			d.mu.Unlock()
			return
		}
		if tr.Final {
			d.final.WriteString(tr.Text)
			d.final.WriteString(" ")
			d.interim = ""
		} else {
			d.interim = tr.Text
		}
		text := d.final.String() + d.interim
		d.armLocked(gen)
		d.mu.Unlock()

		if h := d.handlers(); h.OnUpdate != nil {
			h.OnUpdate(text)
		}
	}
}

// armLocked restarts the silence timer. Caller must hold d.mu.
func (d *Dictation) armLocked(gen int) {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.silence, func() { d.onSilence(gen) })
}

func (d *Dictation) onSilence(gen int) {
	d.mu.Lock()
	if !d.listening || d.gen != gen || strings.TrimSpace(d.final.String()) == "" {
		d.mu.Unlock()
		return
	}
	text := strings.TrimSpace(d.final.String() + d.interim)
	d.mu.Unlock()

	d.log.Info("auto-sending after silence", zap.Int("chars", len(text)))
	d.Stop()
	if h := d.handlers(); h.OnSubmit != nil {
		h.OnSubmit(text)
	}
}

// Stop ends listening and returns the text recognised so far.
func (d *Dictation) Stop() string {
	d.mu.Lock()
	if !d.listening {
		text := strings.TrimSpace(d.final.String() + d.interim)
		d.mu.Unlock()
		return text
	}
	d.listening = false
	if d.timer != nil {
		d.timer.Stop()
	}
	text := strings.TrimSpace(d.final.String() + d.interim)
	d.mu.Unlock()

	if err := d.src.Stop(); err != nil {
		d.log.Warn("failed to stop capture", zap.Error(err))
	}
	return text
}

// Listening reports whether dictation is active.
func (d *Dictation) Listening() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.listening
}

// Interim returns the latest non-final result.
func (d *Dictation) Interim() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.interim
}

// Text returns the final text recognised so far.
func (d *Dictation) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return strings.TrimSpace(d.final.String())
}
