// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/efgfdsdfdf/edutrack/internal/audio"
	"github.com/efgfdsdfdf/edutrack/internal/background"
	"github.com/efgfdsdfdf/edutrack/internal/config"
	"github.com/efgfdsdfdf/edutrack/internal/connection"
	"github.com/efgfdsdfdf/edutrack/internal/delivery"
	"github.com/efgfdsdfdf/edutrack/internal/kvstore"
	"github.com/efgfdsdfdf/edutrack/internal/logging"
	"github.com/efgfdsdfdf/edutrack/internal/presence"
	"github.com/efgfdsdfdf/edutrack/internal/prompt"
	"github.com/efgfdsdfdf/edutrack/internal/render"
	"github.com/efgfdsdfdf/edutrack/internal/storage"
	"github.com/efgfdsdfdf/edutrack/internal/transport"
	"github.com/efgfdsdfdf/edutrack/internal/typing"
)

// watchDebounce coalesces bursts of writes by another process.
const watchDebounce = 300 * time.Millisecond

// =============================================================================
// OPTIONS
// =============================================================================

// Overrides are command-line values applied on top of the config file.
type Overrides struct {
	ConfigPath   string
	User         string
	BackendURL   string
	StoreKind    string
	NoBackground bool
	Mock         bool
	Verbose      bool
}

// LoadConfig reads the config file named by o.ConfigPath, or the default
// one, and applies the overrides.
func LoadConfig(o Overrides) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.ConfigPath != "" {
		cfg, err = config.LoadFromPath(o.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if cfg == nil {
		return nil, err
	}
	// A broken default file still yields usable defaults.
	loadErr := err

	if o.User != "" {
		cfg.User.Name = o.User
	}
	if o.BackendURL != "" {
		cfg.Backend.URL = o.BackendURL
	}
	if o.StoreKind != "" && !strings.EqualFold(o.StoreKind, cfg.Store.Kind) {
		cfg.Store.Kind = strings.ToLower(o.StoreKind)
		cfg.Store.Path = ""
	}
	if o.NoBackground {
		cfg.Delivery.BackgroundProcessing = false
	}
	if o.Mock {
		cfg.Backend.Mock = true
	}
	if o.Verbose {
		cfg.Logging.Level = "debug"
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, loadErr
}

// =============================================================================
// APP
// =============================================================================

// App is the assembled engine for one user.
type App struct {
	Config *config.Config
	Log    *zap.Logger

	Store      kvstore.Store
	Codec      *kvstore.Codec
	Messages   *storage.MessageStore
	Notes      *storage.Notebook
	Client     *transport.Client
	Monitor    *connection.Monitor
	Presence   *presence.Tracker
	Registry   *background.Registry
	Typing     *typing.Scheduler
	Markdown   *render.Markdown
	Controller *delivery.Controller
	Dictation  *audio.Dictation

	watcher *kvstore.Watcher
	opts    kvstore.Options

	mu        sync.Mutex
	onChange  func()
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New builds every component from cfg. The logger is built from cfg unless
// log is non-nil. Nothing runs until Start.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
		cfg.SetDefaults()
	}
	if storage.IsGuest(cfg.User.Name) {
		return nil, storage.ErrNoUser
	}
	if log == nil {
		var err error
		log, err = logging.New(logging.FromConfig(cfg.Logging, false))
		if err != nil {
			return nil, err
		}
	}

	a := &App{Config: cfg, Log: log}
	a.opts = kvstore.Options{
		Backend:       cfg.Store.Kind,
		Path:          cfg.Store.Path,
		RedisAddr:     cfg.Store.RedisAddr,
		RedisPassword: cfg.Store.RedisPassword,
		RedisDB:       cfg.Store.RedisDB,
		Namespace:     cfg.Store.Namespace,
	}
	if a.opts.FilePath() != "" {
		if err := config.EnsureConfigDir(); err != nil {
			return nil, err
		}
	}

	store, err := kvstore.Open(ctx, a.opts)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Kind, err)
	}
	a.Store = store
	a.Codec = kvstore.NewCodec(store)

	if err := a.build(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config
	log := a.Log

	msgs, err := storage.NewMessageStore(a.Codec, cfg.User.Name, log)
	if err != nil {
		return err
	}
	if err := msgs.Open(ctx); err != nil {
		return fmt.Errorf("open chat: %w", err)
	}
	a.Messages = msgs

	a.Notes, err = storage.NewNotebook(a.Codec, cfg.User.Name)
	if err != nil {
		return err
	}

	a.Client = transport.NewClientWithConfig(&transport.Config{
		BaseURL:           cfg.Backend.URL,
		ChatTimeout:       cfg.Backend.ChatTimeout(),
		MaxTokens:         cfg.Backend.MaxTokens,
		Temperature:       cfg.Backend.Temperature,
		RequestsPerSecond: cfg.Backend.RequestsPerSecond,
		Burst:             cfg.Backend.Burst,
	}, log)

	a.Presence = presence.NewTracker(presence.Config{
		ActivityWindow:   cfg.Delivery.ActivityWindow(),
		AutoSaveEnabled:  true,
		AutoSaveInterval: 30 * time.Second,
	})
	a.Presence.SetAutoSaveCallback(func() error {
		return msgs.Save(context.Background())
	})

	monCfg := connection.DefaultConfig()
	monCfg.ProbeTimeout = cfg.Backend.ProbeTimeout()
	monCfg.Interval = cfg.Backend.ProbeInterval()
	monCfg.MaxFailures = cfg.Backend.MaxFailures
	monCfg.Disabled = cfg.Backend.Mock
	a.Monitor, err = connection.NewMonitor(a.Client, monCfg, log, connection.WithVisibility(a.Presence.IsVisible))
	if err != nil {
		return err
	}

	a.Registry = background.NewRegistry(background.Config{
		Codec:  a.Codec,
		Scope:  a.scope,
		Active: a.Presence.IsActive,
	}, log)

	a.Typing = typing.NewScheduler(typing.Config{
		CharDelay: cfg.Typing.CharDelay(),
		Compact:   cfg.Typing.Compact,
	}, log)

	a.Markdown = render.NewMarkdown(render.Options{
		Width: cfg.UI.WordWrap,
		Plain: strings.EqualFold(cfg.UI.Theme, "notty"),
		Dark:  themeDark(cfg.UI.Theme),
	}, log)

	a.Controller, err = delivery.New(delivery.Config{
		Store:     msgs,
		Transport: a.Client,
		Monitor:   a.Monitor,
		Presence:  a.Presence,
		Registry:  a.Registry,
		Prompt: prompt.NewBuilder(&prompt.Config{
			HistoryWindow: cfg.Delivery.HistoryWindow,
			Notes:         a.Notes,
		}, log),
		Cache:                delivery.NewAnalysisCache(cfg.Delivery.AnalysisCacheTTL()),
		Settings:             a.Codec,
		BackgroundProcessing: cfg.Delivery.BackgroundProcessing,
		WebSearch:            cfg.Delivery.WebSearch,
	}, log)
	if err != nil {
		return err
	}

	a.Dictation = audio.NewDictation(audio.Unavailable{}, audio.DictationConfig{
		Compact: cfg.Typing.Compact,
	}, log)
	return nil
}

func themeDark(theme string) *bool {
	var dark bool
	switch strings.ToLower(theme) {
	case "dark":
		dark = true
	case "light":
		dark = false
	default:
		return nil
	}
	return &dark
}

func (a *App) scope() background.Scope {
	return background.Scope{User: a.Messages.User(), ChatID: a.Messages.ChatID()}
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// OnExternalChange registers fn to run after the chat was reloaded because
// another process wrote the store.
func (a *App) OnExternalChange(fn func()) {
	a.mu.Lock()
	a.onChange = fn
	a.mu.Unlock()
}

// Start begins connection monitoring and the store watcher, loads the
// persisted toggles and resumes the open chat.
func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()

	if err := a.Controller.LoadSettings(ctx); err != nil {
		a.Log.Warn("settings unreadable", zap.Error(err))
	}
	a.Monitor.Start(runCtx)

	if a.Config.Store.Watch {
		if err := a.startWatcher(runCtx); err != nil {
			a.Log.Warn("store watcher unavailable", zap.Error(err))
		}
	}
	return a.Controller.Resume(ctx)
}

func (a *App) startWatcher(ctx context.Context) error {
	path := a.opts.FilePath()
	if path == "" {
		return errors.New("store has no file to watch")
	}
	w, err := kvstore.NewWatcher(path, a.Store, watchDebounce, a.Log)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		_ = w.Close()
		return err
	}
	a.watcher = w

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case ch, ok := <-w.Changes():
				if !ok {
					return
				}
				a.reload(ctx, ch)
			}
		}
	}()
	return nil
}

// reload picks up another process's writes to the open chat. Sends still
// in flight here keep the in-memory copy.
func (a *App) reload(ctx context.Context, ch kvstore.Change) {
	if a.Controller.Busy() || a.Registry.HasPending() {
		a.Log.Debug("external change ignored while sending", zap.String("path", ch.Path))
		return
	}
	if err := a.Messages.Reload(ctx); err != nil {
		a.Log.Warn("reload after external change failed", zap.Error(err))
		return
	}
	if err := a.Controller.OnForeground(ctx); err != nil {
		a.Log.Warn("background check after reload failed", zap.Error(err))
	}
	a.mu.Lock()
	fn := a.onChange
	a.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// SwitchChat makes chatID the open chat and resumes it.
func (a *App) SwitchChat(ctx context.Context, chatID string) error {
	if err := a.Messages.Save(ctx); err != nil {
		a.Log.Warn("save before switching chats failed", zap.Error(err))
	}
	if err := a.Messages.LoadChat(ctx, chatID); err != nil {
		return err
	}
	return a.Controller.Resume(ctx)
}

// NewChat starts an empty chat.
func (a *App) NewChat(ctx context.Context) (string, error) {
	if err := a.Registry.SavePending(ctx); err != nil {
		a.Log.Warn("pending list not saved", zap.Error(err))
	}
	return a.Messages.NewChat(ctx)
}

// Close records in-flight background sends, saves the chat and releases
// every resource. Tasks keep running until ctx is done.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	a.closeOnce.Do(func() {
		errs = append(errs, a.Controller.BeforeUnload(ctx))

		a.Typing.Cancel()
		a.Dictation.Stop()
		a.Monitor.Stop()

		a.mu.Lock()
		cancel := a.cancel
		a.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		if a.watcher != nil {
			errs = append(errs, a.watcher.Close())
		}
		a.wg.Wait()

		done := make(chan struct{})
		go func() {
			a.Registry.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			a.Log.Info("closing with background sends still running")
		}

		errs = append(errs, a.Store.Close())
		_ = a.Log.Sync()
	})
	return errors.Join(errs...)
}
