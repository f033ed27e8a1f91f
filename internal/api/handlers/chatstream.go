// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/quillworks/quill/internal/events"
	"github.com/quillworks/quill/internal/store"
	"github.com/quillworks/quill/internal/stream"
	"github.com/quillworks/quill/pkg/client"
)

// ChatStreamHandler implements the streaming generation endpoint. The dev
// server has no model behind it; it renders a deterministic document from
// the prompt and streams the frames a real backend would produce, which is
// exactly what engine and end-to-end tests need.
type ChatStreamHandler struct {
	store      *store.Store
	bus        events.EventBus
	model      string
	chunkDelay time.Duration
}

// NewChatStreamHandler creates a new chat-stream handler.
func NewChatStreamHandler(st *store.Store, bus events.EventBus, model string, chunkDelay time.Duration) *ChatStreamHandler {
	return &ChatStreamHandler{store: st, bus: bus, model: model, chunkDelay: chunkDelay}
}

// Stream handles POST /chat-stream/{session}.
//
// Nothing is committed until the generation reaches its end: if the client
// disconnects mid-stream, no version and no assistant message are stored,
// and no done frame is ever sent.
func (h *ChatStreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := mux.Vars(r)["session"]

	var req client.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrInvalidRequest, "invalid request body")
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		WriteError(w, http.StatusBadRequest, ErrInvalidRequest, "message is required")
		return
	}

	sess, err := h.store.GetSession(ctx, sessionID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	// The user turn is durable even if the generation aborts.
	userMsg := client.ChatMessage{
		SessionID:    sessionID,
		DocumentID:   req.DocumentID,
		Role:         client.RoleUser,
		Content:      req.Message,
		TemplateName: req.TemplateName,
		UserContent:  req.UserContent,
	}
	if err := h.store.AppendMessage(ctx, userMsg); err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}

	doc, err := h.resolveDocument(r, sess, req)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, "streaming not supported")
		return
	}

	publishEvent(ctx, h.bus, events.EventGenerationStarted, sessionID, map[string]interface{}{
		"document": doc.ID,
	})

	emit := func(ev stream.Event) bool {
		if ctx.Err() != nil {
			return false
		}
		w.Write(stream.EncodeEvent(ev))
		flusher.Flush()
		return true
	}

	if !emit(stream.StatusEvent{Text: "Thinking"}) {
		h.abort(sessionID, doc.ID)
		return
	}

	narration := fmt.Sprintf("Drafting %q based on your instruction. ", doc.Title) +
		"Structuring the content, then rendering the final markup."
	if !emit(stream.StatusEvent{Text: "Writing"}) {
		h.abort(sessionID, doc.ID)
		return
	}
	for _, word := range strings.SplitAfter(narration, " ") {
		if !emit(stream.ChunkEvent{Text: word}) {
			h.abort(sessionID, doc.ID)
			return
		}
		if h.chunkDelay > 0 {
			select {
			case <-time.After(h.chunkDelay):
			case <-ctx.Done():
				h.abort(sessionID, doc.ID)
				return
			}
		}
	}

	content := renderDocument(doc.Title, message)
	summary := fmt.Sprintf("Updated %q from your instruction", doc.Title)

	number, err := h.store.AppendVersion(ctx, client.Version{
		DocumentID: doc.ID,
		Content:    content,
		Prompt:     message,
		Summary:    summary,
		Model:      h.model,
		Usage: client.TokenUsage{
			PromptTokens:     len(strings.Fields(message)),
			CompletionTokens: len(strings.Fields(narration)),
		},
	})
	if err != nil {
		emit(stream.ErrorEvent{Message: "failed to store version: " + err.Error()})
		return
	}

	if err := h.store.AppendMessage(ctx, client.ChatMessage{
		SessionID:  sessionID,
		DocumentID: doc.ID,
		Role:       client.RoleAssistant,
		Content:    summary,
	}); err != nil {
		emit(stream.ErrorEvent{Message: "failed to store message: " + err.Error()})
		return
	}

	if !emit(stream.HTMLEvent{Content: content, Version: number}) {
		return
	}
	if !emit(stream.SummaryEvent{Text: summary}) {
		return
	}
	emit(stream.DoneEvent{})

	publishEvent(ctx, h.bus, events.EventGenerationCompleted, sessionID, map[string]interface{}{
		"document": doc.ID,
		"version":  number,
	})
}

// resolveDocument picks the generation's target: the requested document,
// else the session's active one, else a fresh document titled from the
// message.
func (h *ChatStreamHandler) resolveDocument(r *http.Request, sess *client.Session, req client.GenerateRequest) (*client.Document, error) {
	if req.DocumentID != "" {
		for i := range sess.Documents {
			if sess.Documents[i].ID == req.DocumentID {
				return &sess.Documents[i], nil
			}
		}
		return nil, store.ErrNotFound
	}

	if sess.ActiveDocumentID != "" {
		for i := range sess.Documents {
			if sess.Documents[i].ID == sess.ActiveDocumentID {
				return &sess.Documents[i], nil
			}
		}
	}

	return h.store.CreateDocument(r.Context(), sess.ID, deriveTitle(req.Message))
}

// abort records a cancelled generation. The connection is already gone, so
// there is nobody to write frames to.
func (h *ChatStreamHandler) abort(sessionID, documentID string) {
	publishEvent(context.Background(), h.bus, events.EventGenerationCancelled, sessionID, map[string]interface{}{
		"document": documentID,
	})
}

// deriveTitle produces a document title from the first words of a message.
func deriveTitle(message string) string {
	title := strings.TrimSpace(message)
	if i := strings.IndexAny(title, ".\n"); i > 0 {
		title = title[:i]
	}
	const max = 48
	if len(title) > max {
		if i := strings.LastIndex(title[:max], " "); i > 0 {
			title = title[:i]
		} else {
			title = title[:max]
		}
	}
	return title
}

// renderDocument produces the dev server's deterministic document markup.
func renderDocument(title, message string) string {
	return fmt.Sprintf(
		"<article>\n  <h1>%s</h1>\n  <p>%s</p>\n</article>\n",
		html.EscapeString(title), html.EscapeString(message))
}
