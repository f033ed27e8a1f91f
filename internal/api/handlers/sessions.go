// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package handlers implements the Quill dev-server HTTP handlers.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/quillworks/quill/internal/events"
	"github.com/quillworks/quill/internal/store"
)

// SessionHandler handles session-related API requests.
type SessionHandler struct {
	store *store.Store
	bus   events.EventBus
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(st *store.Store, bus events.EventBus) *SessionHandler {
	return &SessionHandler{store: st, bus: bus}
}

// Create creates a new session.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, ErrInvalidRequest, "invalid request body")
		return
	}
	if body.Title == "" {
		body.Title = "Untitled session"
	}

	sess, err := h.store.CreateSession(r.Context(), body.Title)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}

	h.publish(r.Context(), events.EventSessionCreated, sess.ID, nil)
	WriteJSON(w, http.StatusOK, sess)
}

// List returns summaries of all sessions.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	sums, err := h.store.ListSessions(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, sums)
}

// Get returns one session with its documents.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	sess, err := h.store.GetSession(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, sess)
}

// Rename changes a session's title.
func (h *SessionHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Title == "" {
		WriteError(w, http.StatusBadRequest, ErrInvalidRequest, "title is required")
		return
	}

	if err := h.store.RenameSession(r.Context(), id, body.Title); err != nil {
		writeStoreError(w, err)
		return
	}

	h.publish(r.Context(), events.EventSessionRenamed, id, map[string]interface{}{"title": body.Title})
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Delete removes a session and everything it owns.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.store.DeleteSession(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}

	h.publish(r.Context(), events.EventSessionDeleted, id, nil)
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Messages returns a session's conversation in order.
func (h *SessionHandler) Messages(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	// 404 for unknown sessions rather than an empty list.
	if _, err := h.store.GetSession(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}

	msgs, err := h.store.Messages(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, msgs)
}

// SetActiveDocument changes which of the session's documents is active.
func (h *SessionHandler) SetActiveDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body struct {
		DocumentID string `json:"document_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.DocumentID == "" {
		WriteError(w, http.StatusBadRequest, ErrInvalidRequest, "document_id is required")
		return
	}

	if err := h.store.SetActiveDocument(r.Context(), id, body.DocumentID); err != nil {
		writeStoreError(w, err)
		return
	}

	h.publish(r.Context(), events.EventDocumentSwitched, id, map[string]interface{}{"document": body.DocumentID})
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *SessionHandler) publish(ctx context.Context, eventType, sessionID string, payload map[string]interface{}) {
	publishEvent(ctx, h.bus, eventType, sessionID, payload)
}

// publishEvent emits a bus event; a nil bus is a no-op.
func publishEvent(ctx context.Context, bus events.EventBus, eventType, sessionID string, payload map[string]interface{}) {
	if bus == nil {
		return
	}
	bus.Publish(ctx, events.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Session:   sessionID,
		Payload:   payload,
	})
}

// writeStoreError maps store errors to API responses.
func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		WriteError(w, http.StatusNotFound, ErrNotFound, "not found")
		return
	}
	WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
}
