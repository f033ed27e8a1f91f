// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package events provides the in-process notification bus for Quill.
//
// The engine publishes an event for every observable state change
// (generation lifecycle, session and document mutations, auth resets) so
// that UI layers can react without polling engine state.
package events

import (
	"context"
	"time"
)

// Event represents an immutable event record.
type Event struct {
	ID        string                 `json:"id"`
	Version   string                 `json:"version"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Session   string                 `json:"session"`
	Payload   map[string]interface{} `json:"payload"`
}

// EventHandler processes received events.
type EventHandler func(ctx context.Context, event Event) error

// SubscriptionID uniquely identifies a subscription.
type SubscriptionID string

// EventFilter for querying event history.
type EventFilter struct {
	Types   []string  // Event types to match (supports wildcards)
	Session string    // Filter by session
	Since   time.Time // Events after this time
	Until   time.Time // Events before this time
	Limit   int       // Maximum events to return
}

// EventBus is the core event pub/sub system.
type EventBus interface {
	// Publish emits an event to all matching subscribers.
	Publish(ctx context.Context, event Event) error

	// Subscribe registers a synchronous handler for events matching pattern.
	Subscribe(pattern string, handler EventHandler) (SubscriptionID, error)

	// SubscribeAsync registers an async handler with buffered channel.
	SubscribeAsync(pattern string, handler EventHandler, bufferSize int) (SubscriptionID, error)

	// Unsubscribe removes a subscription.
	Unsubscribe(id SubscriptionID) error

	// History retrieves past events matching filter.
	History(filter EventFilter) ([]Event, error)

	// SetDefaultSession sets the default session for events that don't specify one.
	SetDefaultSession(session string)

	// Close shuts down the event bus gracefully.
	Close() error
}

// Common event types
const (
	// Generation events
	EventGenerationStarted   = "generation.started"
	EventGenerationCompleted = "generation.completed"
	EventGenerationCancelled = "generation.cancelled"
	EventGenerationFailed    = "generation.failed"

	// Session events
	EventSessionCreated = "session.created"
	EventSessionLoaded  = "session.loaded"
	EventSessionRenamed = "session.renamed"
	EventSessionDeleted = "session.deleted"

	// Document events
	EventDocumentSwitched = "document.switched"
	EventDocumentRenamed  = "document.renamed"
	EventDocumentDeleted  = "document.deleted"

	// Version events
	EventVersionRestored = "version.restored"
	EventVersionSaved    = "version.saved"

	// Auth events
	EventAuthSignout = "auth.signout"
)
