// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import "time"

// Session is a conversational workspace containing zero or more documents.
type Session struct {
	// ID uniquely identifies the session.
	ID string `json:"id"`

	// Title is the user-visible session name.
	Title string `json:"title"`

	// CreatedAt is when the session was created.
	CreatedAt time.Time `json:"created_at"`

	// Documents are the session's documents in creation order.
	Documents []Document `json:"documents"`

	// ActiveDocumentID references the currently active document. Empty when
	// the session has no documents yet.
	ActiveDocumentID string `json:"active_document_id,omitempty"`
}

// SessionSummary is the list-view shape of a session.
type SessionSummary struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	CreatedAt     time.Time `json:"created_at"`
	DocumentCount int       `json:"document_count"`
}

// Document is one generated artifact with its own version history.
type Document struct {
	// ID uniquely identifies the document.
	ID string `json:"id"`

	// SessionID is the owning session.
	SessionID string `json:"session_id"`

	// Title is the user-visible document name.
	Title string `json:"title"`

	// CreatedAt is when the document was created.
	CreatedAt time.Time `json:"created_at"`

	// Active reports whether this is the session's active document.
	// Exactly one document per session is active.
	Active bool `json:"active"`

	// LatestVersion is the highest version number recorded server-side.
	LatestVersion int `json:"latest_version"`
}

// Version is an immutable content snapshot of a document.
//
// Version numbers start at 1 and increase without gaps. Restoring an old
// version appends a new version carrying the old content; history is never
// rewritten.
type Version struct {
	DocumentID string `json:"document_id"`

	// Number is the per-document version number.
	Number int `json:"number"`

	// Content is the full rendered content.
	Content string `json:"content"`

	// Prompt is the user instruction that produced this version.
	Prompt string `json:"prompt,omitempty"`

	// Summary is a human-readable description of the change.
	Summary string `json:"summary,omitempty"`

	// Model is the model that produced this version.
	Model string `json:"model,omitempty"`

	// Usage is the token usage of the producing generation.
	Usage TokenUsage `json:"usage"`

	CreatedAt time.Time `json:"created_at"`
}

// TokenUsage records the token cost of a generation.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// ChatMessage is one turn in a session's conversation.
type ChatMessage struct {
	// ID uniquely identifies the message. User turns carry a
	// client-generated ID assigned before the server acknowledges them.
	ID string `json:"id"`

	SessionID string `json:"session_id"`

	// DocumentID references the document this turn concerned, if any.
	DocumentID string `json:"document_id,omitempty"`

	// Role is "user" or "assistant".
	Role string `json:"role"`

	Content string `json:"content"`

	// TemplateName is set when the user sent a template-backed turn.
	TemplateName string `json:"template_name,omitempty"`

	// UserContent is the free text supplied alongside a template.
	UserContent string `json:"user_content,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// GenerateRequest is the body of a streaming generation request.
type GenerateRequest struct {
	// Message is the user's natural-language instruction.
	Message string `json:"message"`

	// DocumentID targets an existing document. Empty lets the server
	// decide, typically creating a new document.
	DocumentID string `json:"document_id,omitempty"`

	// TemplateName selects a server-side template for this turn.
	TemplateName string `json:"template_name,omitempty"`

	// UserContent is the free text accompanying a template.
	UserContent string `json:"user_content,omitempty"`
}

// DocumentContent is the latest rendered content of a document.
type DocumentContent struct {
	DocumentID string `json:"document_id"`
	Version    int    `json:"version"`
	Content    string `json:"content"`
}

// RestoreResult is the outcome of a restore or manual-edit save: the number
// of the version the operation appended.
type RestoreResult struct {
	Version int `json:"version"`
}
