// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/efgfdsdfdf/edutrack/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "EduTrack AI"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// UnmarshalJSON accepts the legacy "ai" role as assistant.
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "ai", string(RoleAssistant):
		*r = RoleAssistant
	case string(RoleUser):
		*r = RoleUser
	case string(RoleSystem):
		*r = RoleSystem
	default:
		return fmt.Errorf("model: unknown role %q", s)
	}
	return nil
}

// =============================================================================
// FILE MODE
// =============================================================================

// FileMode records how several attached files are presented to the model.
type FileMode string

const (
	FileModeNone     FileMode = ""
	FileModeSeparate FileMode = "separate"
	FileModeJoin     FileMode = "join"
)

// Valid reports whether m is a choice a user can make.
func (m FileMode) Valid() bool {
	return m == FileModeSeparate || m == FileModeJoin
}

// =============================================================================
// ATTACHMENT TYPE
// =============================================================================

// AttachmentKind distinguishes notes from uploaded files.
type AttachmentKind string

const (
	KindNote  AttachmentKind = "note"
	KindFile  AttachmentKind = "file"
	KindPhoto AttachmentKind = "photo"
)

// Attachment is something sent along with a user message. Notes carry their
// own text; files and photos are analyzed by the backend before the chat
// call and the analysis is stored back on the attachment.
type Attachment struct {
	ID          string         `json:"id"`
	Kind        AttachmentKind `json:"type"`
	Name        string         `json:"name,omitempty"`
	Path        string         `json:"path,omitempty"`
	MimeType    string         `json:"mimeType,omitempty"`
	Size        int64          `json:"size,omitempty"`
	Description string         `json:"description,omitempty"`

	// Notes
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`

	// Analysis results
	Analyzed     bool   `json:"analyzed,omitempty"`
	Analysis     string `json:"analysis,omitempty"`
	AnalysisText string `json:"analysisText,omitempty"`
}

// NewAttachment returns an attachment with a fresh ID.
func NewAttachment(kind AttachmentKind, name string) Attachment {
	return Attachment{ID: uuid.NewString(), Kind: kind, Name: name}
}

// IsFileLike reports whether the attachment is a file or photo.
func (a Attachment) IsFileLike() bool {
	return a.Kind == KindFile || a.Kind == KindPhoto
}

// IsImage reports whether the attachment should go to image analysis.
func (a Attachment) IsImage() bool {
	if a.Kind == KindPhoto {
		return true
	}
	return len(a.MimeType) > 6 && a.MimeType[:6] == "image/"
}

// Label is the name shown for the attachment.
func (a Attachment) Label() string {
	switch {
	case a.Kind == KindNote && a.Title != "":
		return a.Title
	case a.Name != "":
		return a.Name
	default:
		return string(a.Kind)
	}
}

// CountFileLike returns how many attachments are files or photos.
func CountFileLike(atts []Attachment) int {
	n := 0
	for _, a := range atts {
		if a.IsFileLike() {
			n++
		}
	}
	return n
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single chat entry. ID is stable for the message's lifetime;
// the message's index is its current position in the chat.
type Message struct {
	ID          string       `json:"id"`
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
	CreatedAt   time.Time    `json:"timestamp"`
	UserID      string       `json:"userId,omitempty"`

	State          DeliveryState `json:"deliveryState,omitempty"`
	Failed         bool          `json:"failed,omitempty"`
	FromBackground bool          `json:"fromBackground,omitempty"`
	Edited         bool          `json:"edited,omitempty"`
	FileMode       FileMode      `json:"fileMode,omitempty"`
}

// NewUserMessage creates a composed user message.
func NewUserMessage(user, content string, attachments []Attachment) Message {
	return Message{
		ID:          uuid.NewString(),
		Role:        RoleUser,
		Content:     content,
		Attachments: attachments,
		CreatedAt:   time.Now(),
		UserID:      user,
		State:       StateComposed,
	}
}

// NewAssistantMessage creates a delivered assistant reply.
func NewAssistantMessage(content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Content:   content,
		CreatedAt: time.Now(),
		State:     StateDelivered,
	}
}

// NewSystemMessage creates a local notice that is never sent to the model.
func NewSystemMessage(content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleSystem,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// Clone returns a copy that shares nothing mutable with m.
func (m Message) Clone() Message {
	if m.Attachments != nil {
		m.Attachments = append([]Attachment(nil), m.Attachments...)
	}
	return m
}

// Preview returns a rune-safe truncated preview of the content.
func (m Message) Preview(maxLen int) string {
	return util.Truncate(m.Content, maxLen)
}

// IsEmpty reports whether the message has neither text nor attachments.
func (m Message) IsEmpty() bool {
	return m.Content == "" && len(m.Attachments) == 0
}
