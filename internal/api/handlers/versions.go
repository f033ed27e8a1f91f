// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/quillworks/quill/internal/api/version"
	"github.com/quillworks/quill/internal/events"
	"github.com/quillworks/quill/internal/store"
	"github.com/quillworks/quill/pkg/client"
)

// VersionHandler handles version history API requests.
type VersionHandler struct {
	store *store.Store
	bus   events.EventBus
}

// NewVersionHandler creates a new version handler.
func NewVersionHandler(st *store.Store, bus events.EventBus) *VersionHandler {
	return &VersionHandler{store: st, bus: bus}
}

// List returns a document's versions in ascending order.
func (h *VersionHandler) List(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	vs, err := h.store.ListVersions(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	v := version.FromContext(r.Context())
	WriteJSON(w, http.StatusOK, version.Transform(v, "versions.list", vs))
}

// Get returns one version of a document.
func (h *VersionHandler) Get(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	number, err := strconv.Atoi(vars["number"])
	if err != nil || number < 1 {
		WriteError(w, http.StatusBadRequest, ErrInvalidRequest, "invalid version number")
		return
	}

	ver, err := h.store.GetVersion(r.Context(), id, number)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	v := version.FromContext(r.Context())
	WriteJSON(w, http.StatusOK, version.Transform(v, "versions.get", ver))
}

// Restore appends a new version carrying the content of an old one.
func (h *VersionHandler) Restore(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	number, err := strconv.Atoi(vars["number"])
	if err != nil || number < 1 {
		WriteError(w, http.StatusBadRequest, ErrInvalidRequest, "invalid version number")
		return
	}

	newNumber, err := h.store.RestoreVersion(r.Context(), id, number)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	publishEvent(r.Context(), h.bus, events.EventVersionRestored, "", map[string]interface{}{
		"document": id,
		"restored": number,
		"version":  newNumber,
	})
	WriteJSON(w, http.StatusOK, client.RestoreResult{Version: newNumber})
}
