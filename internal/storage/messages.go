// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/efgfdsdfdf/edutrack/internal/kvstore"
	"github.com/efgfdsdfdf/edutrack/internal/model"
)

// GuestUser is the name of the anonymous user, who cannot keep chats.
const GuestUser = "Guest"

// MaxIndexedChats caps the chat index.
const MaxIndexedChats = 20

var (
	// ErrNoUser is returned for the guest or an empty user.
	ErrNoUser = errors.New("please log in to use chats")
	// ErrMessageNotFound is returned when no message has the given ID.
	ErrMessageNotFound = errors.New("message not found")
	// ErrChatNotFound is returned when loading an unknown chat.
	ErrChatNotFound = errors.New("chat not found")
)

// IsGuest reports whether user cannot own chats.
func IsGuest(user string) bool {
	user = strings.TrimSpace(user)
	return user == "" || user == GuestUser
}

// =============================================================================
// MESSAGE STORE
// =============================================================================

// MessageStore is the active chat of one user. All methods are safe for
// concurrent use; Save calls are serialized so an older snapshot never
// overwrites a newer one.
type MessageStore struct {
	codec *kvstore.Codec
	user  string
	log   *zap.Logger
	now   func() time.Time

	mu       sync.RWMutex
	chatID   string
	title    string
	messages []model.Message

	saveMu sync.Mutex
}

// NewMessageStore returns a store for user. Call Open before use.
func NewMessageStore(codec *kvstore.Codec, user string, log *zap.Logger) (*MessageStore, error) {
	if IsGuest(user) {
		return nil, ErrNoUser
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &MessageStore{
		codec: codec,
		user:  strings.TrimSpace(user),
		log:   log,
		now:   time.Now,
	}, nil
}

// User returns the owning user.
func (s *MessageStore) User() string { return s.user }

// ChatID returns the active chat id.
func (s *MessageStore) ChatID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chatID
}

// Title returns the active chat title.
func (s *MessageStore) Title() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.title
}

// =============================================================================
// CHAT LIFECYCLE
// =============================================================================

// Open resumes the chat named by currentChat_{user}, or starts a new one.
func (s *MessageStore) Open(ctx context.Context) error {
	var current string
	err := s.codec.Load(ctx, kvstore.CurrentChatKey(s.user), &current)
	if err != nil && !errors.Is(err, kvstore.ErrNotFound) {
		s.log.Warn("current chat pointer unreadable", zap.Error(err))
	}
	if current != "" {
		if err := s.LoadChat(ctx, current); err == nil {
			return nil
		} else if !errors.Is(err, ErrChatNotFound) {
			return err
		}
	}
	_, err = s.NewChat(ctx)
	return err
}

// NewChat saves the active chat if it has messages and starts an empty one
// titled "Chat HH:MM", indexed right away.
func (s *MessageStore) NewChat(ctx context.Context) (string, error) {
	if s.Len() > 0 {
		if err := s.Save(ctx); err != nil {
			return "", err
		}
	}

	now := s.now()
	id := kvstore.NewChatID(s.user, now)
	title := "Chat " + now.Format("15:04")

	s.mu.Lock()
	s.chatID = id
	s.title = title
	s.messages = nil
	s.mu.Unlock()

	if err := s.codec.Save(ctx, kvstore.CurrentChatKey(s.user), id); err != nil {
		return "", err
	}
	if err := s.upsertIndex(ctx, model.ChatSummary{
		ID:        id,
		Title:     title,
		Timestamp: now,
		UserID:    s.user,
	}); err != nil {
		return "", err
	}
	s.log.Info("new chat", zap.String("chat", id))
	return id, nil
}

// LoadChat makes chatID the active chat. A chat with neither stored
// messages nor an index entry is ErrChatNotFound.
func (s *MessageStore) LoadChat(ctx context.Context, chatID string) error {
	var msgs []model.Message
	err := s.codec.Load(ctx, kvstore.ChatMessagesKey(s.user, chatID), &msgs)
	if err != nil && !errors.Is(err, kvstore.ErrNotFound) {
		return fmt.Errorf("load chat %s: %w", chatID, err)
	}
	missing := errors.Is(err, kvstore.ErrNotFound)

	title := "Chat"
	chats, _ := s.ListChats(ctx)
	indexed := false
	for _, c := range chats {
		if c.ID == chatID {
			title = c.Title
			indexed = true
			break
		}
	}
	if missing && !indexed {
		return ErrChatNotFound
	}

	s.mu.Lock()
	s.chatID = chatID
	s.title = title
	s.messages = msgs
	s.mu.Unlock()

	return s.codec.Save(ctx, kvstore.CurrentChatKey(s.user), chatID)
}

// Reload re-reads the active chat from the store, picking up writes made by
// another process.
func (s *MessageStore) Reload(ctx context.Context) error {
	id := s.ChatID()
	if id == "" {
		return s.Open(ctx)
	}
	return s.LoadChat(ctx, id)
}

// DeleteChat removes a chat and its messages. Deleting the active chat
// starts a new one.
func (s *MessageStore) DeleteChat(ctx context.Context, chatID string) error {
	err := kvstore.Update(ctx, s.codec, kvstore.ChatIndexKey(s.user),
		func(chats []model.ChatSummary, _ bool) ([]model.ChatSummary, error) {
			out := chats[:0]
			for _, c := range chats {
				if c.ID != chatID {
					out = append(out, c)
				}
			}
			return out, nil
		})
	if err != nil {
		return err
	}
	if err := s.codec.Remove(ctx, kvstore.ChatMessagesKey(s.user, chatID)); err != nil {
		return err
	}
	s.log.Info("chat deleted", zap.String("chat", chatID))

	if chatID == s.ChatID() {
		s.mu.Lock()
		s.messages = nil
		s.mu.Unlock()
		_, err := s.NewChat(ctx)
		return err
	}
	return nil
}

// ListChats returns the chat index, newest first.
func (s *MessageStore) ListChats(ctx context.Context) ([]model.ChatSummary, error) {
	var chats []model.ChatSummary
	if err := s.codec.Load(ctx, kvstore.ChatIndexKey(s.user), &chats); err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return chats, nil
}

// Save writes the messages and moves the chat to the front of the index.
// Chats still titled with a default are retitled from their content. An
// empty chat is not written.
func (s *MessageStore) Save(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if len(s.messages) == 0 || s.chatID == "" {
		s.mu.Unlock()
		return nil
	}
	if IsDefaultTitle(s.title) {
		s.title = GenerateTitle(s.messages)
	}
	id, title := s.chatID, s.title
	msgs := make([]model.Message, len(s.messages))
	copy(msgs, s.messages)
	s.mu.Unlock()

	if err := s.codec.Save(ctx, kvstore.ChatMessagesKey(s.user, id), msgs); err != nil {
		return fmt.Errorf("save chat %s: %w", id, err)
	}
	return s.upsertIndex(ctx, model.ChatSummary{
		ID:           id,
		Title:        title,
		Timestamp:    s.now(),
		MessageCount: len(msgs),
		UserID:       s.user,
	})
}

func (s *MessageStore) upsertIndex(ctx context.Context, entry model.ChatSummary) error {
	return kvstore.Update(ctx, s.codec, kvstore.ChatIndexKey(s.user),
		func(chats []model.ChatSummary, _ bool) ([]model.ChatSummary, error) {
			out := make([]model.ChatSummary, 0, len(chats)+1)
			out = append(out, entry)
			for _, c := range chats {
				if c.ID != entry.ID {
					out = append(out, c)
				}
			}
			if len(out) > MaxIndexedChats {
				out = out[:MaxIndexedChats]
			}
			return out, nil
		})
}

// =============================================================================
// MESSAGE ACCESS
// =============================================================================

// Len returns the number of messages.
func (s *MessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Snapshot returns a copy of every message.
func (s *MessageStore) Snapshot() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.Clone()
	}
	return out
}

// At returns the message at index.
func (s *MessageStore) At(index int) (model.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.messages) {
		return model.Message{}, false
	}
	return s.messages[index].Clone(), true
}

// ByID returns the message with id and its current index.
func (s *MessageStore) ByID(id string) (model.Message, int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(id)
	if i < 0 {
		return model.Message{}, -1, false
	}
	return s.messages[i].Clone(), i, true
}

// IndexOf returns the current index of id, or -1.
func (s *MessageStore) IndexOf(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexOf(id)
}

func (s *MessageStore) indexOf(id string) int {
	for i := range s.messages {
		if s.messages[i].ID == id {
			return i
		}
	}
	return -1
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Append adds msg at the end and returns its index.
func (s *MessageStore) Append(msg model.Message) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return len(s.messages) - 1
}

// InsertAfter places msg directly after the message with id and returns
// msg's index.
func (s *MessageStore) InsertAfter(id string, msg model.Message) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return -1, ErrMessageNotFound
	}
	s.messages = append(s.messages, model.Message{})
	copy(s.messages[i+2:], s.messages[i+1:])
	s.messages[i+1] = msg
	return i + 1, nil
}

// Replace swaps the message with id for msg at the same position.
func (s *MessageStore) Replace(id string, msg model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return ErrMessageNotFound
	}
	s.messages[i] = msg
	return nil
}

// Update applies fn to the message with id under the store lock and
// returns the result.
func (s *MessageStore) Update(id string, fn func(*model.Message) error) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return model.Message{}, ErrMessageNotFound
	}
	m := s.messages[i].Clone()
	if err := fn(&m); err != nil {
		return s.messages[i].Clone(), err
	}
	s.messages[i] = m
	return m.Clone(), nil
}

// RemoveFirstAssistantAfter deletes the first assistant reply that follows
// the message with id, looking no further than the next user message. It
// reports whether a reply was removed.
func (s *MessageStore) RemoveFirstAssistantAfter(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	for j := i + 1; j < len(s.messages); j++ {
		switch s.messages[j].Role {
		case model.RoleUser:
			return false
		case model.RoleAssistant:
			s.messages = append(s.messages[:j], s.messages[j+1:]...)
			return true
		}
	}
	return false
}

// Remove deletes the message with id.
func (s *MessageStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.messages = append(s.messages[:i], s.messages[i+1:]...)
	return true
}
