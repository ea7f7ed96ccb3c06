// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/efgfdsdfdf/edutrack/internal/background"
	"github.com/efgfdsdfdf/edutrack/internal/connection"
	"github.com/efgfdsdfdf/edutrack/internal/kvstore"
	"github.com/efgfdsdfdf/edutrack/internal/model"
	"github.com/efgfdsdfdf/edutrack/internal/prompt"
	"github.com/efgfdsdfdf/edutrack/internal/storage"
	"github.com/efgfdsdfdf/edutrack/internal/transport"
)

var (
	ErrAlreadySending       = errors.New("this message is already being sent")
	ErrBusy                 = errors.New("already processing a message, please wait")
	ErrEmptyMessage         = errors.New("please enter a message or add an attachment")
	ErrNotFailed            = errors.New("only failed messages can be retried")
	ErrNotUserMessage       = errors.New("not a message you sent")
	ErrNoPendingChoice      = errors.New("no file choice is pending for this message")
	ErrInvalidFileMode      = errors.New("file mode must be separate or join")
	ErrStillProcessing      = errors.New("still processing, please wait")
	ErrNoBackgroundResponse = errors.New("no background response found")
)

// DefaultSearchTimeout bounds the advisory web search of one send.
const DefaultSearchTimeout = 8 * time.Second

// =============================================================================
// COLLABORATORS
// =============================================================================

// Transport is the backend surface used for a send. *transport.Client
// implements it.
type Transport interface {
	Chat(ctx context.Context, req transport.ChatRequest) (transport.Reply, error)
	AnalyzeImage(ctx context.Context, up transport.Upload) (transport.Analysis, error)
	AnalyzeDocument(ctx context.Context, up transport.Upload) (transport.Analysis, error)
	Search(ctx context.Context, query string) ([]transport.SearchResult, error)
}

// Connection is the reachability view. *connection.Monitor implements it.
type Connection interface {
	Current() connection.Status
	Retry(ctx context.Context) connection.Status
}

// Presence reports whether the user is at the keyboard.
// *presence.Tracker implements it.
type Presence interface {
	IsActive() bool
}

type alwaysActive struct{}

func (alwaysActive) IsActive() bool { return true }

// Config holds the controller's collaborators. Store, Transport, Monitor
// and Registry are required.
type Config struct {
	Store     *storage.MessageStore
	Transport Transport
	Monitor   Connection
	Presence  Presence
	Registry  *background.Registry
	Prompt    *prompt.Builder
	Cache     *AnalysisCache

	// Settings persists the feature toggles. May be nil.
	Settings *kvstore.Codec

	UI       UI
	Renderer Renderer

	BackgroundProcessing bool
	WebSearch            bool
	SearchTimeout        time.Duration
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller owns the delivery lifecycle of every message of the active
// chat. It is safe for concurrent use.
type Controller struct {
	store     *storage.MessageStore
	transport Transport
	monitor   Connection
	presence  Presence
	registry  *background.Registry
	prompt    *prompt.Builder
	cache     *AnalysisCache
	settings  *kvstore.Codec
	ui        UI
	renderer  Renderer
	log       *zap.Logger

	searchTimeout time.Duration

	mu             sync.Mutex
	sending        map[string]struct{}
	busy           bool
	awaitingChoice string
	background     bool
	webSearch      bool
	foregroundOnly bool
}

// New creates a controller and registers it as the registry's handler.
func New(cfg Config, log *zap.Logger) (*Controller, error) {
	switch {
	case cfg.Store == nil:
		return nil, errors.New("delivery: message store is required")
	case cfg.Transport == nil:
		return nil, errors.New("delivery: transport is required")
	case cfg.Monitor == nil:
		return nil, errors.New("delivery: connection monitor is required")
	case cfg.Registry == nil:
		return nil, errors.New("delivery: background registry is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Presence == nil {
		cfg.Presence = alwaysActive{}
	}
	if cfg.Prompt == nil {
		cfg.Prompt = prompt.NewBuilder(nil, log)
	}
	if cfg.Cache == nil {
		cfg.Cache = NewAnalysisCache(DefaultAnalysisTTL)
	}
	if cfg.UI == nil {
		cfg.UI = NopUI{}
	}
	if cfg.Renderer == nil {
		cfg.Renderer = nopRenderer{}
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = DefaultSearchTimeout
	}

	c := &Controller{
		store:         cfg.Store,
		transport:     cfg.Transport,
		monitor:       cfg.Monitor,
		presence:      cfg.Presence,
		registry:      cfg.Registry,
		prompt:        cfg.Prompt,
		cache:         cfg.Cache,
		settings:      cfg.Settings,
		ui:            cfg.UI,
		renderer:      cfg.Renderer,
		log:           log.With(zap.String("module", "delivery")),
		searchTimeout: cfg.SearchTimeout,
		sending:       make(map[string]struct{}),
		background:    cfg.BackgroundProcessing,
		webSearch:     cfg.WebSearch,
	}
	cfg.Registry.SetHandler(c)
	return c, nil
}

// SetUI replaces the UI, for front ends built after the controller.
func (c *Controller) SetUI(ui UI) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ui == nil {
		ui = NopUI{}
	}
	c.ui = ui
}

// SetRenderer replaces the renderer.
func (c *Controller) SetRenderer(r Renderer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r == nil {
		r = nopRenderer{}
	}
	c.renderer = r
}

func (c *Controller) view() (UI, Renderer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ui, c.renderer
}

func (c *Controller) scope() background.Scope {
	return background.Scope{User: c.store.User(), ChatID: c.store.ChatID()}
}

// =============================================================================
// GUARDS
// =============================================================================

// acquire takes the composer. Only one send is awaited at a time.
func (c *Controller) acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrBusy
	}
	c.busy = true
	return nil
}

func (c *Controller) release() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

// Busy reports whether a send is being awaited.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

func (c *Controller) beginSending(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sending[id]; ok {
		return false
	}
	c.sending[id] = struct{}{}
	return true
}

func (c *Controller) endSending(id string) {
	c.mu.Lock()
	delete(c.sending, id)
	c.mu.Unlock()
}

// Sending reports whether an attempt for the message is in flight.
func (c *Controller) Sending(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.sending[id]
	return ok
}

// PendingChoice returns the id of the message waiting for a file mode.
func (c *Controller) PendingChoice() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.awaitingChoice
}

// stateOf reads a message's delivery state. Chats saved before states
// were recorded only carry the failed flag.
func stateOf(m model.Message) model.DeliveryState {
	if m.State != "" {
		return m.State
	}
	if m.Failed {
		return model.StateFailed
	}
	return model.StateDelivered
}

// =============================================================================
// SUBMIT
// =============================================================================

// Submit adds a user message and sends it. It returns the message's index.
// Transport failures are not returned; they mark the message failed.
func (c *Controller) Submit(ctx context.Context, content string, atts []model.Attachment) (int, error) {
	content = strings.TrimSpace(content)
	if content == "" && len(atts) == 0 {
		return -1, ErrEmptyMessage
	}

	if pending := c.PendingChoice(); pending != "" {
		if c.store.IndexOf(pending) >= 0 {
			return -1, ErrBusy
		}
		c.clearChoice(pending)
	}
	if err := c.acquire(); err != nil {
		return -1, err
	}
	defer c.release()

	c.ensureConnection(ctx)
	ui, _ := c.view()

	msg := model.NewUserMessage(c.store.User(), content, atts)
	index := c.store.Append(msg)
	ui.MessagesChanged()
	c.log.Info("message submitted",
		zap.String("id", msg.ID),
		zap.Int("index", index),
		zap.Int("attachments", len(atts)),
	)

	if n := model.CountFileLike(atts); n > 1 {
		c.askFileMode(ctx, msg.ID, n)
		return index, nil
	}
	return index, c.dispatch(ctx, msg.ID, model.EventDispatch)
}

// ensureConnection offers a reconnect before sending while the backend is
// not connected. The send goes ahead either way.
func (c *Controller) ensureConnection(ctx context.Context) {
	st := c.monitor.Current()
	if st == connection.StatusMock || st.Connected() {
		return
	}
	ui, _ := c.view()
	if !ui.ConfirmReconnect(ctx) {
		return
	}
	if c.monitor.Retry(ctx).Connected() {
		ui.Toast(ToastSuccess, "Backend connected successfully!")
	} else {
		ui.Toast(ToastWarning, "Still not connected. Sending anyway.")
	}
}

func (c *Controller) askFileMode(ctx context.Context, id string, files int) {
	c.mu.Lock()
	c.awaitingChoice = id
	ui := c.ui
	c.mu.Unlock()

	c.save(ctx)
	ui.AskFileMode(id, files)
}

func (c *Controller) clearChoice(id string) {
	c.mu.Lock()
	if c.awaitingChoice == id {
		c.awaitingChoice = ""
	}
	c.mu.Unlock()
}

// ChooseFileMode answers the file question of a held message and sends it.
func (c *Controller) ChooseFileMode(ctx context.Context, id string, mode model.FileMode) error {
	if !mode.Valid() {
		return ErrInvalidFileMode
	}
	if c.PendingChoice() != id {
		return ErrNoPendingChoice
	}
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()
	c.clearChoice(id)

	if _, err := c.store.Update(id, func(m *model.Message) error {
		m.FileMode = mode
		return nil
	}); err != nil {
		return err
	}
	c.log.Info("file mode chosen", zap.String("id", id), zap.String("mode", string(mode)))
	return c.dispatch(ctx, id, model.EventDispatch)
}

// =============================================================================
// DISPATCH
// =============================================================================

// dispatch runs one attempt for the message with id. ev is EventDispatch
// for a first attempt and EventRetry afterwards.
func (c *Controller) dispatch(ctx context.Context, id string, ev model.DeliveryEvent) error {
	if !c.beginSending(id) {
		return ErrAlreadySending
	}
	handedOff := false
	defer func() {
		if !handedOff {
			c.endSending(id)
		}
	}()

	msg, err := c.store.Update(id, func(m *model.Message) error {
		if m.Role != model.RoleUser {
			return ErrNotUserMessage
		}
		next, err := model.Transition(stateOf(*m), ev)
		if err != nil {
			return err
		}
		m.State = next
		m.Failed = false
		return nil
	})
	if err != nil {
		return err
	}

	snap := c.store.Snapshot()
	index := indexIn(snap, id)
	if index < 0 {
		return storage.ErrMessageNotFound
	}
	scope := c.scope()
	status := c.monitor.Current()
	connected := status.Connected()
	mock := status == connection.StatusMock
	ui, _ := c.view()

	ui.Thinking(true, thinkingLabel(msg, connected))
	ui.MessagesChanged()

	atts := c.analyze(ctx, msg.Attachments, connected)
	if analysisChanged(msg.Attachments, atts) {
		if _, err := c.store.Update(id, func(m *model.Message) error {
			m.Attachments = atts
			return nil
		}); err != nil {
			c.log.Warn("failed to record analyses", zap.String("id", id), zap.Error(err))
		}
	}

	var web []transport.SearchResult
	if c.WebSearch() && !mock && msg.Content != "" {
		web = c.search(ctx, msg.Content)
	}

	built := c.prompt.Build(ctx, prompt.Input{
		History:     snap[:index],
		Text:        msg.Content,
		Attachments: atts,
		FileMode:    msg.FileMode,
		WebResults:  web,
	})
	req := transport.ChatRequest{
		Messages:     built.Messages,
		User:         scope.User,
		NotesContext: built.NotesContext,
		Attachments:  atts,
		Text:         msg.Content,
	}
	fut := func(fctx context.Context) (string, error) {
		if mock {
			return transport.MockReply(scope.User, msg.Content, atts, false), nil
		}
		reply, err := c.transport.Chat(fctx, req)
		if err != nil {
			return "", err
		}
		return reply.Text, nil
	}

	if c.shouldBackground(status) {
		wrapped := func(fctx context.Context) (string, error) {
			defer c.endSending(id)
			return fut(fctx)
		}
		_, err := c.registry.Defer(ctx, index, id, wrapped)
		if err == nil {
			handedOff = true
			c.backgrounded(ctx, id, index)
			return nil
		}
		c.log.Warn("could not defer, sending in foreground", zap.Int("index", index), zap.Error(err))
	}

	text, err := fut(ctx)
	ui.Thinking(false, "")
	if err != nil {
		c.fail(ctx, id, err)
		return nil
	}
	c.deliver(ctx, scope, id, index, text, false)
	return nil
}

// backgrounded records a send handed to the registry. It reports false
// when the task already finished and its reply or failure was shown.
func (c *Controller) backgrounded(ctx context.Context, id string, index int) bool {
	ui, _ := c.view()
	ui.Thinking(false, "")
	defer func() {
		ui.MessagesChanged()
		c.save(ctx)
	}()

	if _, err := c.store.Update(id, transitionTo(model.EventDefer)); err != nil {
		c.log.Debug("defer transition skipped", zap.String("id", id), zap.Error(err))
		return false
	}
	ui.BackgroundStarted(index, id)
	return true
}

func (c *Controller) shouldBackground(status connection.Status) bool {
	c.mu.Lock()
	off := !c.background || c.foregroundOnly
	c.mu.Unlock()
	if off {
		return false
	}
	return !c.presence.IsActive() || status == connection.StatusOffline
}

func (c *Controller) search(ctx context.Context, query string) []transport.SearchResult {
	sctx, cancel := context.WithTimeout(ctx, c.searchTimeout)
	defer cancel()
	results, err := c.transport.Search(sctx, query)
	if err != nil {
		c.log.Warn("web search failed", zap.Error(err))
		return nil
	}
	return results
}

// fail records a failed attempt. There is no automatic retry.
func (c *Controller) fail(ctx context.Context, id string, cause error) {
	if _, err := c.store.Update(id, func(m *model.Message) error {
		next, err := model.Transition(stateOf(*m), model.EventFail)
		if err != nil {
			return err
		}
		m.State = next
		m.Failed = true
		return nil
	}); err != nil {
		c.log.Warn("could not mark message failed", zap.String("id", id), zap.Error(err))
	}
	c.log.Warn("send failed", zap.String("id", id), zap.Error(cause))
	c.save(ctx)

	ui, _ := c.view()
	ui.MessagesChanged()
	ui.Toast(ToastError, failureText(cause))
}

// deliver inserts the reply after its message. When the chat was switched
// while waiting, the reply is kept as a background result of its own chat.
func (c *Controller) deliver(ctx context.Context, scope background.Scope, id string, index int, text string, fromBackground bool) {
	if c.scope() != scope {
		if err := c.registry.SaveResult(ctx, scope, index, id, text); err != nil {
			c.log.Error("failed to keep reply of a closed chat", zap.String("chat", scope.ChatID), zap.Error(err))
		}
		return
	}

	reply := model.NewAssistantMessage(text)
	reply.FromBackground = fromBackground
	if _, err := c.store.InsertAfter(id, reply); err != nil {
		c.log.Warn("reply dropped, its message is gone", zap.String("id", id), zap.Error(err))
		return
	}
	if _, err := c.store.Update(id, transitionTo(model.EventSucceed)); err != nil {
		c.log.Warn("delivered transition skipped", zap.String("id", id), zap.Error(err))
	}
	c.save(ctx)

	ui, renderer := c.view()
	ui.MessagesChanged()
	if fromBackground {
		return
	}
	if err := renderer.Render(ctx, reply); err != nil {
		c.log.Debug("reply render interrupted", zap.Error(err))
	}
}

func (c *Controller) save(ctx context.Context) {
	if err := c.store.Save(ctx); err != nil {
		c.log.Error("failed to save chat", zap.Error(err))
	}
}

func transitionTo(ev model.DeliveryEvent) func(*model.Message) error {
	return func(m *model.Message) error {
		next, err := model.Transition(stateOf(*m), ev)
		if err != nil {
			return err
		}
		m.State = next
		if next == model.StateFailed {
			m.Failed = true
		}
		return nil
	}
}

func indexIn(msgs []model.Message, id string) int {
	for i := range msgs {
		if msgs[i].ID == id {
			return i
		}
	}
	return -1
}

func thinkingLabel(m model.Message, connected bool) string {
	for _, a := range m.Attachments {
		if a.IsFileLike() && !a.Analyzed {
			return "Analyzing files..."
		}
	}
	if !connected {
		return "Processing (offline)..."
	}
	return "Thinking..."
}

func analysisChanged(before, after []model.Attachment) bool {
	for i := range before {
		if before[i].Analyzed != after[i].Analyzed {
			return true
		}
	}
	return false
}

func failureText(err error) string {
	var detail string
	switch {
	case errors.Is(err, transport.ErrAuthFailed):
		detail = "Authentication with the AI service failed."
	case errors.Is(err, transport.ErrInsufficientCredits):
		detail = "The AI service is out of credits."
	case errors.Is(err, transport.ErrRateLimited):
		detail = "Too many requests, wait a moment."
	case errors.Is(err, transport.ErrTimeout):
		detail = "The request timed out."
	case errors.Is(err, transport.ErrAborted):
		detail = "The request was cancelled."
	case errors.Is(err, transport.ErrConnection):
		detail = "The backend could not be reached."
	}
	if detail == "" {
		return "Failed to send. Use /retry to try again."
	}
	return fmt.Sprintf("Failed to send. %s Use /retry to try again.", detail)
}
