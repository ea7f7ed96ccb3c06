// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package background

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/efgfdsdfdf/edutrack/internal/kvstore"
)

var (
	// ErrTaskPending is returned when deferring an index that already has
	// a task in flight.
	ErrTaskPending = errors.New("a background task is already pending for this message")

	// ErrNotFound is returned when no persisted record exists, including
	// on the second consumption of the same record.
	ErrNotFound = kvstore.ErrNotFound

	// ErrNoScope is returned when there is no current user or chat.
	ErrNoScope = errors.New("no active chat")
)

// =============================================================================
// RECORDS
// =============================================================================

// Scope identifies whose chat a task belongs to.
type Scope struct {
	User   string
	ChatID string
}

// Valid reports whether both parts are set.
func (s Scope) Valid() bool {
	return s.User != "" && s.ChatID != ""
}

// Result is the persisted reply of a finished task.
type Result struct {
	MessageIndex int       `json:"messageIndex"`
	MessageID    string    `json:"messageId,omitempty"`
	Response     string    `json:"response"`
	Timestamp    time.Time `json:"timestamp"`
	ChatID       string    `json:"chatId"`
	UserID       string    `json:"userId"`
}

// Failure is the persisted error of a failed task.
type Failure struct {
	MessageIndex int       `json:"messageIndex"`
	MessageID    string    `json:"messageId,omitempty"`
	Error        string    `json:"error"`
	Timestamp    time.Time `json:"timestamp"`
}

// Future is the deferred work. It is started once and never cancelled.
type Future func(ctx context.Context) (string, error)

// Handler surfaces finished tasks.
type Handler interface {
	// Ready is called after a reply was persisted, only when the user is
	// active at that moment.
	Ready(ctx context.Context, scope Scope, index int, messageID string)

	// Failed is called after a failure was persisted.
	Failed(ctx context.Context, scope Scope, f Failure)
}

// Notification reports a task reaching a terminal state.
type Notification struct {
	TaskID       string
	MessageIndex int
	MessageID    string
	Status       TaskStatus
	Error        string
	Duration     time.Duration
}

// Available lists the persisted records of the current chat.
type Available struct {
	Responses []Result
	Failures  []Failure
}

// =============================================================================
// REGISTRY
// =============================================================================

// Config holds the registry's collaborators.
type Config struct {
	// Codec persists results, failures and the pending list.
	Codec *kvstore.Codec

	// Scope returns the user and chat currently open.
	Scope func() Scope

	// Active reports whether the user is active right now.
	Active func() bool

	// Handler may be set later with SetHandler.
	Handler Handler

	// Now replaces time.Now in tests.
	Now func() time.Time
}

type taskKey struct {
	scope Scope
	index int
}

// Registry owns every in-flight background task. It is safe for
// concurrent use.
type Registry struct {
	codec  *kvstore.Codec
	scope  func() Scope
	active func() bool
	now    func() time.Time
	log    *zap.Logger

	mu      sync.Mutex
	tasks   map[taskKey]*Task
	handler Handler

	wg         sync.WaitGroup
	notifyChan chan Notification
}

// NewRegistry creates a registry.
func NewRegistry(cfg Config, log *zap.Logger) *Registry {
	if cfg.Scope == nil {
		cfg.Scope = func() Scope { return Scope{} }
	}
	if cfg.Active == nil {
		cfg.Active = func() bool { return false }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		codec:      cfg.Codec,
		scope:      cfg.Scope,
		active:     cfg.Active,
		now:        cfg.Now,
		log:        log.With(zap.String("module", "background")),
		tasks:      make(map[taskKey]*Task),
		handler:    cfg.Handler,
		notifyChan: make(chan Notification, 100),
	}
}

// SetHandler sets the handler used for tasks finishing from now on.
func (r *Registry) SetHandler(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = h
}

// =============================================================================
// DEFERRING
// =============================================================================

// Defer starts fut for the message at index in the current chat. The
// scope is captured now, so switching chats does not misfile the result.
// fut runs without ctx's cancellation; ctx only carries values.
func (r *Registry) Defer(ctx context.Context, index int, messageID string, fut Future) (*Task, error) {
	scope := r.scope()
	if !scope.Valid() {
		return nil, ErrNoScope
	}
	key := taskKey{scope: scope, index: index}

	r.mu.Lock()
	if _, ok := r.tasks[key]; ok {
		r.mu.Unlock()
		return nil, ErrTaskPending
	}
	task := newTask(scope, index, messageID)
	r.tasks[key] = task
	r.wg.Add(1)
	r.mu.Unlock()

	r.log.Info("task deferred",
		zap.String("task", task.ID),
		zap.String("chat", scope.ChatID),
		zap.Int("index", index),
	)

	go r.run(context.WithoutCancel(ctx), key, task, fut)
	return task.Clone(), nil
}

func (r *Registry) run(ctx context.Context, key taskKey, task *Task, fut Future) {
	defer r.wg.Done()

	_ = task.SetStatus(TaskStatusRunning)
	reply, err := fut(ctx)

	if err != nil {
		r.fail(ctx, key, task, err)
		return
	}
	r.complete(ctx, key, task, reply)
}

func (r *Registry) complete(ctx context.Context, key taskKey, task *Task, reply string) {
	res := Result{
		MessageIndex: key.index,
		MessageID:    task.MessageID,
		Response:     reply,
		Timestamp:    r.now(),
		ChatID:       key.scope.ChatID,
		UserID:       key.scope.User,
	}
	if err := r.codec.Save(ctx, kvstore.BackgroundResponseKey(key.scope.User, key.scope.ChatID, key.index), res); err != nil {
		r.log.Error("failed to persist background result", zap.Int("index", key.index), zap.Error(err))
		r.fail(ctx, key, task, err)
		return
	}

	_ = task.SetStatus(TaskStatusComplete)
	handler := r.finish(key, task)
	r.log.Info("background response ready", zap.Int("index", key.index), zap.Duration("elapsed", task.Duration()))

	if handler != nil && r.active() {
		handler.Ready(ctx, key.scope, key.index, task.MessageID)
	}
}

func (r *Registry) fail(ctx context.Context, key taskKey, task *Task, cause error) {
	f := Failure{
		MessageIndex: key.index,
		MessageID:    task.MessageID,
		Error:        cause.Error(),
		Timestamp:    r.now(),
	}
	if err := r.codec.Save(ctx, kvstore.BackgroundFailedKey(key.scope.User, key.scope.ChatID, key.index), f); err != nil {
		r.log.Error("failed to persist background failure", zap.Int("index", key.index), zap.Error(err))
	}

	task.mu.Lock()
	task.Error = f.Error
	task.mu.Unlock()
	_ = task.SetStatus(TaskStatusFailed)
	handler := r.finish(key, task)
	r.log.Warn("background task failed", zap.Int("index", key.index), zap.Error(cause))

	if handler != nil {
		handler.Failed(ctx, key.scope, f)
	}
}

// finish removes the in-memory entry and queues a notification.
func (r *Registry) finish(key taskKey, task *Task) Handler {
	r.mu.Lock()
	delete(r.tasks, key)
	handler := r.handler
	r.mu.Unlock()

	snap := task.Clone()
	r.notify(Notification{
		TaskID:       snap.ID,
		MessageIndex: snap.MessageIndex,
		MessageID:    snap.MessageID,
		Status:       snap.Status,
		Error:        snap.Error,
		Duration:     task.Duration(),
	})
	return handler
}

// =============================================================================
// QUERIES
// =============================================================================

// HasPending reports whether any task is in flight.
func (r *Registry) HasPending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks) > 0
}

// IsPending reports whether index has a task in flight in the current chat.
func (r *Registry) IsPending(index int) bool {
	key := taskKey{scope: r.scope(), index: index}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tasks[key]
	return ok
}

// Pending returns the in-flight tasks of the current chat ordered by index.
func (r *Registry) Pending() []*Task {
	scope := r.scope()
	r.mu.Lock()
	var out []*Task
	for k, t := range r.tasks {
		if k.scope == scope {
			out = append(out, t.Clone())
		}
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].MessageIndex < out[j].MessageIndex })
	return out
}

// Wait blocks until every started task has finished.
func (r *Registry) Wait() {
	r.wg.Wait()
}

// Notifications returns the notification channel.
func (r *Registry) Notifications() <-chan Notification {
	return r.notifyChan
}

func (r *Registry) notify(n Notification) {
	select {
	case r.notifyChan <- n:
	default:
		r.log.Warn("notification channel full, dropped notification",
			zap.String("task", n.TaskID),
			zap.String("status", n.Status.String()),
		)
	}
}

// =============================================================================
// PERSISTED RECORDS
// =============================================================================

// OnForeground lists the unconsumed results and failures of the current
// chat without consuming them.
func (r *Registry) OnForeground(ctx context.Context) (Available, error) {
	scope := r.scope()
	if !scope.Valid() {
		return Available{}, nil
	}

	var out Available
	keys, err := r.codec.Keys(ctx, kvstore.BackgroundResponsePrefix(scope.User, scope.ChatID))
	if err != nil {
		return out, err
	}
	for _, k := range keys {
		res, err := kvstore.Get[Result](ctx, r.codec, k)
		if err != nil {
			r.log.Warn("unreadable background result", zap.String("key", k), zap.Error(err))
			continue
		}
		out.Responses = append(out.Responses, res)
	}

	keys, err = r.codec.Keys(ctx, kvstore.BackgroundFailedPrefix(scope.User, scope.ChatID))
	if err != nil {
		return out, err
	}
	for _, k := range keys {
		f, err := kvstore.Get[Failure](ctx, r.codec, k)
		if err != nil {
			r.log.Warn("unreadable background failure", zap.String("key", k), zap.Error(err))
			continue
		}
		out.Failures = append(out.Failures, f)
	}

	sort.Slice(out.Responses, func(i, j int) bool { return out.Responses[i].MessageIndex < out.Responses[j].MessageIndex })
	sort.Slice(out.Failures, func(i, j int) bool { return out.Failures[i].MessageIndex < out.Failures[j].MessageIndex })
	return out, nil
}

// SaveResult persists a reply that finished outside the registry, such as
// a foreground send whose chat was closed before the reply arrived.
func (r *Registry) SaveResult(ctx context.Context, scope Scope, index int, messageID, response string) error {
	if !scope.Valid() {
		return ErrNoScope
	}
	res := Result{
		MessageIndex: index,
		MessageID:    messageID,
		Response:     response,
		Timestamp:    r.now(),
		ChatID:       scope.ChatID,
		UserID:       scope.User,
	}
	return r.codec.Save(ctx, kvstore.BackgroundResponseKey(scope.User, scope.ChatID, index), res)
}

// Consume takes the persisted result for index in the current chat. The
// record is deleted; a second call returns ErrNotFound.
func (r *Registry) Consume(ctx context.Context, index int) (Result, error) {
	scope := r.scope()
	if !scope.Valid() {
		return Result{}, ErrNoScope
	}
	return kvstore.Take[Result](ctx, r.codec, kvstore.BackgroundResponseKey(scope.User, scope.ChatID, index))
}

// ConsumeFailure takes the persisted failure for index in the current chat.
func (r *Registry) ConsumeFailure(ctx context.Context, index int) (Failure, error) {
	scope := r.scope()
	if !scope.Valid() {
		return Failure{}, ErrNoScope
	}
	return kvstore.Take[Failure](ctx, r.codec, kvstore.BackgroundFailedKey(scope.User, scope.ChatID, index))
}

// SavePending writes the indices still in flight for every chat that has
// tasks, plus the current chat (an empty list removes its key).
func (r *Registry) SavePending(ctx context.Context) error {
	byScope := make(map[Scope][]int)
	if cur := r.scope(); cur.Valid() {
		byScope[cur] = nil
	}
	r.mu.Lock()
	for k := range r.tasks {
		byScope[k.scope] = append(byScope[k.scope], k.index)
	}
	r.mu.Unlock()

	var errs []error
	for scope, indices := range byScope {
		key := kvstore.PendingTasksKey(scope.User, scope.ChatID)
		if len(indices) == 0 {
			if err := r.codec.Remove(ctx, key); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		sort.Ints(indices)
		if err := r.codec.Save(ctx, key, indices); err != nil {
			errs = append(errs, err)
		}
		r.log.Info("pending tasks saved", zap.String("chat", scope.ChatID), zap.Ints("indices", indices))
	}
	return errors.Join(errs...)
}

// RestorePending takes the pending list saved for the current chat by a
// previous run. Indices still in flight in this process are left out.
func (r *Registry) RestorePending(ctx context.Context) ([]int, error) {
	scope := r.scope()
	if !scope.Valid() {
		return nil, nil
	}
	indices, err := kvstore.Take[[]int](ctx, r.codec, kvstore.PendingTasksKey(scope.User, scope.ChatID))
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	out := indices[:0]
	for _, i := range indices {
		if !r.IsPending(i) {
			out = append(out, i)
		}
	}
	return out, nil
}
