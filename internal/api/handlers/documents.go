// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/quillworks/quill/internal/events"
	"github.com/quillworks/quill/internal/store"
	"github.com/quillworks/quill/pkg/client"
)

// DocumentHandler handles document-related API requests.
type DocumentHandler struct {
	store *store.Store
	bus   events.EventBus
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(st *store.Store, bus events.EventBus) *DocumentHandler {
	return &DocumentHandler{store: st, bus: bus}
}

// Content returns the latest rendered content of a document.
func (h *DocumentHandler) Content(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	dc, err := h.store.DocumentContent(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, dc)
}

// Rename changes a document's title.
func (h *DocumentHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Title == "" {
		WriteError(w, http.StatusBadRequest, ErrInvalidRequest, "title is required")
		return
	}

	if err := h.store.RenameDocument(r.Context(), id, body.Title); err != nil {
		writeStoreError(w, err)
		return
	}

	publishEvent(r.Context(), h.bus, events.EventDocumentRenamed, "", map[string]interface{}{
		"document": id,
		"title":    body.Title,
	})
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Delete removes a document and its versions.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.store.DeleteDocument(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}

	publishEvent(r.Context(), h.bus, events.EventDocumentDeleted, "", map[string]interface{}{"document": id})
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// SaveEdit stores a manual edit as the document's next version.
func (h *DocumentHandler) SaveEdit(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Content == "" {
		WriteError(w, http.StatusBadRequest, ErrInvalidRequest, "content is required")
		return
	}

	number, err := h.store.AppendVersion(r.Context(), client.Version{
		DocumentID: id,
		Content:    body.Content,
		Summary:    "Manual edit",
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}

	publishEvent(r.Context(), h.bus, events.EventVersionSaved, "", map[string]interface{}{
		"document": id,
		"version":  number,
	})
	WriteJSON(w, http.StatusOK, client.RestoreResult{Version: number})
}
