// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package api assembles the Quill dev-server HTTP surface.
package api

import (
	"time"

	"github.com/gorilla/mux"

	"github.com/quillworks/quill/internal/api/handlers"
	"github.com/quillworks/quill/internal/api/middleware"
	"github.com/quillworks/quill/internal/api/version"
	"github.com/quillworks/quill/internal/events"
	"github.com/quillworks/quill/internal/store"
)

// Dependencies holds all dependencies for API handlers.
type Dependencies struct {
	Store    *store.Store
	EventBus events.EventBus

	// Token, when non-empty, is required as a bearer token on every
	// request; requests without it get 401.
	Token string

	// Model is the model name recorded on generated versions.
	Model string

	// ChunkDelay is the pause between streamed chunk frames.
	ChunkDelay time.Duration
}

// NewRouter creates a new API router.
func NewRouter(deps Dependencies) *mux.Router {
	r := mux.NewRouter()

	// Apply global middleware
	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)
	r.Use(middleware.CORS)
	r.Use(middleware.Auth(deps.Token))
	r.Use(version.Middleware)

	// Streaming generation sits outside /api/v1: the endpoint speaks
	// event frames, not the JSON envelope.
	chatHandler := handlers.NewChatStreamHandler(deps.Store, deps.EventBus, deps.Model, deps.ChunkDelay)
	r.HandleFunc("/chat-stream/{session}", chatHandler.Stream).Methods("POST")

	// API v1 routes
	api := r.PathPrefix("/api/v1").Subrouter()

	// Session handlers
	sessionHandler := handlers.NewSessionHandler(deps.Store, deps.EventBus)
	api.HandleFunc("/sessions", sessionHandler.Create).Methods("POST")
	api.HandleFunc("/sessions", sessionHandler.List).Methods("GET")
	api.HandleFunc("/sessions/{id}", sessionHandler.Get).Methods("GET")
	api.HandleFunc("/sessions/{id}", sessionHandler.Delete).Methods("DELETE")
	api.HandleFunc("/sessions/{id}/rename", sessionHandler.Rename).Methods("POST")
	api.HandleFunc("/sessions/{id}/messages", sessionHandler.Messages).Methods("GET")
	api.HandleFunc("/sessions/{id}/active-document", sessionHandler.SetActiveDocument).Methods("POST")

	// Document handlers
	documentHandler := handlers.NewDocumentHandler(deps.Store, deps.EventBus)
	api.HandleFunc("/documents/{id}/content", documentHandler.Content).Methods("GET")
	api.HandleFunc("/documents/{id}/rename", documentHandler.Rename).Methods("POST")
	api.HandleFunc("/documents/{id}", documentHandler.Delete).Methods("DELETE")
	api.HandleFunc("/documents/{id}/edit", documentHandler.SaveEdit).Methods("POST")

	// Version handlers
	versionHandler := handlers.NewVersionHandler(deps.Store, deps.EventBus)
	api.HandleFunc("/documents/{id}/versions", versionHandler.List).Methods("GET")
	api.HandleFunc("/documents/{id}/versions/{number}", versionHandler.Get).Methods("GET")
	api.HandleFunc("/documents/{id}/versions/{number}/restore", versionHandler.Restore).Methods("POST")

	// Event handlers
	eventHandler := handlers.NewEventHandler(deps.EventBus)
	api.HandleFunc("/events", eventHandler.History).Methods("GET")
	api.HandleFunc("/events/ws", eventHandler.WebSocket).Methods("GET")

	return r
}
