// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/quillworks/quill/internal/events"
	"github.com/quillworks/quill/pkg/client"
)

// Registry is the client-side mirror of one session's durable state: its
// documents, the active document, and the active document's latest
// rendered content.
//
// The registry is the only writer of this state, and only through its
// operations. The stream controller never touches it directly; it asks for
// a Refresh after a completed generation. Mutations are request-then-
// refresh: a failed mutation leaves local state untouched, so the mirror
// never drifts from the server's record.
type Registry struct {
	api *client.Client
	bus events.EventBus

	// mu serializes every operation, so a Refresh can never run
	// concurrently with itself or with a mutation for the same session.
	mu               sync.Mutex
	sessionID        string
	title            string
	documents        []client.Document
	activeDocumentID string
	content          string
	contentVersion   int
}

// RegistrySnapshot is a point-in-time copy of the registry's state.
type RegistrySnapshot struct {
	SessionID        string
	Title            string
	Documents        []client.Document
	ActiveDocumentID string
	Content          string
	ContentVersion   int
}

// NewRegistry creates a registry bound to nothing. Load binds it to a
// session.
func NewRegistry(api *client.Client, bus events.EventBus) *Registry {
	return &Registry{api: api, bus: bus}
}

// Load fetches the full state of a session and replaces all local state
// with it. If the session has an active document, its latest content is
// fetched as well.
func (r *Registry) Load(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.loadLocked(ctx, sessionID); err != nil {
		return err
	}

	r.publish(ctx, events.EventSessionLoaded, nil)
	return nil
}

// Refresh re-fetches the tracked session's state. Used after a completed
// generation or a mutation to re-derive the authoritative document and
// version picture.
func (r *Registry) Refresh(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessionID == "" {
		return ErrNoSession
	}
	return r.loadLocked(ctx, r.sessionID)
}

// loadLocked fetches session state and replaces the mirror. Caller holds mu.
func (r *Registry) loadLocked(ctx context.Context, sessionID string) error {
	sess, err := r.api.Sessions.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	var content string
	var contentVersion int
	if sess.ActiveDocumentID != "" {
		dc, err := r.api.Documents.Content(ctx, sess.ActiveDocumentID)
		if err != nil {
			return fmt.Errorf("load content: %w", err)
		}
		content = dc.Content
		contentVersion = dc.Version
	}

	r.sessionID = sess.ID
	r.title = sess.Title
	r.documents = sess.Documents
	r.activeDocumentID = sess.ActiveDocumentID
	r.content = content
	r.contentVersion = contentVersion
	return nil
}

// Switch asks the server to change the active document, then fetches that
// document's latest content. Exactly one document ends up active.
func (r *Registry) Switch(ctx context.Context, documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessionID == "" {
		return ErrNoSession
	}

	if err := r.api.Documents.Switch(ctx, r.sessionID, documentID); err != nil {
		return fmt.Errorf("switch document: %w", err)
	}

	dc, err := r.api.Documents.Content(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load content: %w", err)
	}

	for i := range r.documents {
		r.documents[i].Active = r.documents[i].ID == documentID
	}
	r.activeDocumentID = documentID
	r.content = dc.Content
	r.contentVersion = dc.Version

	r.publish(ctx, events.EventDocumentSwitched, map[string]interface{}{"document": documentID})
	return nil
}

// Rename changes a document's title, then refreshes.
func (r *Registry) Rename(ctx context.Context, documentID, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessionID == "" {
		return ErrNoSession
	}

	if err := r.api.Documents.Rename(ctx, documentID, title); err != nil {
		return fmt.Errorf("rename document: %w", err)
	}

	if err := r.loadLocked(ctx, r.sessionID); err != nil {
		return err
	}

	r.publish(ctx, events.EventDocumentRenamed, map[string]interface{}{"document": documentID, "title": title})
	return nil
}

// Delete removes a document, then refreshes. If the deleted document was
// active, the server picks the new active document (or none).
func (r *Registry) Delete(ctx context.Context, documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessionID == "" {
		return ErrNoSession
	}

	if err := r.api.Documents.Delete(ctx, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	if err := r.loadLocked(ctx, r.sessionID); err != nil {
		return err
	}

	r.publish(ctx, events.EventDocumentDeleted, map[string]interface{}{"document": documentID})
	return nil
}

// RestoreVersion appends a new version carrying the content of version
// number, then refreshes. Returns the new version's number, which is
// strictly greater than any version that existed before the call.
func (r *Registry) RestoreVersion(ctx context.Context, documentID string, number int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessionID == "" {
		return 0, ErrNoSession
	}

	res, err := r.api.Versions.Restore(ctx, documentID, number)
	if err != nil {
		return 0, fmt.Errorf("restore version: %w", err)
	}

	if err := r.loadLocked(ctx, r.sessionID); err != nil {
		return 0, err
	}

	r.publish(ctx, events.EventVersionRestored, map[string]interface{}{
		"document": documentID,
		"restored": number,
		"version":  res.Version,
	})
	return res.Version, nil
}

// SaveEdit stores a manually edited snapshot as a new version, then
// refreshes. Returns the appended version number.
func (r *Registry) SaveEdit(ctx context.Context, documentID, content string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessionID == "" {
		return 0, ErrNoSession
	}

	res, err := r.api.Documents.SaveEdit(ctx, documentID, content)
	if err != nil {
		return 0, fmt.Errorf("save edit: %w", err)
	}

	if err := r.loadLocked(ctx, r.sessionID); err != nil {
		return 0, err
	}

	r.publish(ctx, events.EventVersionSaved, map[string]interface{}{
		"document": documentID,
		"version":  res.Version,
	})
	return res.Version, nil
}

// Versions lists a document's version history.
func (r *Registry) Versions(ctx context.Context, documentID string) ([]client.Version, error) {
	return r.api.Versions.List(ctx, documentID)
}

// SessionID returns the tracked session, or "" when unbound.
func (r *Registry) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionID
}

// Snapshot returns a copy of the current mirror.
func (r *Registry) Snapshot() RegistrySnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	docs := make([]client.Document, len(r.documents))
	copy(docs, r.documents)

	return RegistrySnapshot{
		SessionID:        r.sessionID,
		Title:            r.title,
		Documents:        docs,
		ActiveDocumentID: r.activeDocumentID,
		Content:          r.content,
		ContentVersion:   r.contentVersion,
	}
}

func (r *Registry) publish(ctx context.Context, eventType string, payload map[string]interface{}) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(ctx, events.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Session:   r.sessionID,
		Payload:   payload,
	})
}
