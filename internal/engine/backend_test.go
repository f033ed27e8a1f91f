// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/quillworks/quill/internal/stream"
	"github.com/quillworks/quill/pkg/client"
)

// backend is a scriptable in-memory Quill server for engine tests. It
// speaks the response envelope and the endpoints the engine touches;
// the chat-stream handler is supplied per test.
type backend struct {
	mu          sync.Mutex
	session     client.Session
	messages    []client.ChatMessage
	contents    map[string]client.DocumentContent
	versions    map[string][]client.Version
	stream       http.HandlerFunc
	failRename   bool
	unauthorized bool
	sessionGets  int
	streamCalls  int
}

func newBackend(sess client.Session) *backend {
	return &backend{
		session:  sess,
		contents: make(map[string]client.DocumentContent),
		versions: make(map[string][]client.Version),
	}
}

func writeData(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"data": v})
}

func writeAPIError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{"code": code, "message": message},
	})
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Path

	b.mu.Lock()
	denied := b.unauthorized
	b.mu.Unlock()
	if denied {
		writeAPIError(w, http.StatusUnauthorized, "unauthorized", "token expired")
		return
	}

	switch {
	case p == "/api/v1/sessions" && r.Method == http.MethodPost:
		var body struct {
			Title string `json:"title"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		b.session.Title = body.Title
		sess := b.session
		b.mu.Unlock()
		writeData(w, sess)

	case strings.HasSuffix(p, "/rename") && strings.HasPrefix(p, "/api/v1/sessions/"):
		var body struct {
			Title string `json:"title"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		b.session.Title = body.Title
		b.mu.Unlock()
		writeData(w, map[string]bool{"ok": true})
	case strings.HasPrefix(p, "/chat-stream/"):
		b.mu.Lock()
		b.streamCalls++
		h := b.stream
		b.mu.Unlock()
		h(w, r)

	case strings.HasSuffix(p, "/messages") && strings.HasPrefix(p, "/api/v1/sessions/"):
		b.mu.Lock()
		msgs := b.messages
		b.mu.Unlock()
		writeData(w, msgs)

	case strings.HasSuffix(p, "/active-document") && strings.HasPrefix(p, "/api/v1/sessions/"):
		var body struct {
			DocumentID string `json:"document_id"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		b.session.ActiveDocumentID = body.DocumentID
		for i := range b.session.Documents {
			b.session.Documents[i].Active = b.session.Documents[i].ID == body.DocumentID
		}
		b.mu.Unlock()
		writeData(w, map[string]bool{"ok": true})

	case strings.HasPrefix(p, "/api/v1/sessions/"):
		b.mu.Lock()
		b.sessionGets++
		sess := b.session
		b.mu.Unlock()
		writeData(w, sess)

	case strings.HasSuffix(p, "/content"):
		id := strings.TrimSuffix(strings.TrimPrefix(p, "/api/v1/documents/"), "/content")
		b.mu.Lock()
		dc, ok := b.contents[id]
		b.mu.Unlock()
		if !ok {
			writeAPIError(w, http.StatusNotFound, "not_found", "no content for "+id)
			return
		}
		writeData(w, dc)

	case strings.HasSuffix(p, "/rename"):
		if b.failRename {
			writeAPIError(w, http.StatusInternalServerError, "internal_error", "rename failed")
			return
		}
		var body struct {
			Title string `json:"title"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		id := strings.TrimSuffix(strings.TrimPrefix(p, "/api/v1/documents/"), "/rename")
		b.mu.Lock()
		for i := range b.session.Documents {
			if b.session.Documents[i].ID == id {
				b.session.Documents[i].Title = body.Title
			}
		}
		b.mu.Unlock()
		writeData(w, map[string]bool{"ok": true})

	case strings.HasSuffix(p, "/restore"):
		// /api/v1/documents/{id}/versions/{n}/restore
		trimmed := strings.TrimSuffix(strings.TrimPrefix(p, "/api/v1/documents/"), "/restore")
		parts := strings.Split(trimmed, "/versions/")
		id := parts[0]
		number, _ := strconv.Atoi(parts[1])

		b.mu.Lock()
		defer b.mu.Unlock()
		var source *client.Version
		for i := range b.versions[id] {
			if b.versions[id][i].Number == number {
				source = &b.versions[id][i]
			}
		}
		if source == nil {
			writeAPIError(w, http.StatusNotFound, "not_found", "no such version")
			return
		}
		next := len(b.versions[id]) + 1
		b.versions[id] = append(b.versions[id], client.Version{
			DocumentID: id, Number: next, Content: source.Content,
			Summary: "Restored version " + strconv.Itoa(number),
		})
		b.contents[id] = client.DocumentContent{DocumentID: id, Version: next, Content: source.Content}
		for i := range b.session.Documents {
			if b.session.Documents[i].ID == id {
				b.session.Documents[i].LatestVersion = next
			}
		}
		writeData(w, client.RestoreResult{Version: next})

	case strings.HasSuffix(p, "/versions"):
		id := strings.TrimSuffix(strings.TrimPrefix(p, "/api/v1/documents/"), "/versions")
		b.mu.Lock()
		vs := b.versions[id]
		b.mu.Unlock()
		writeData(w, vs)

	case strings.HasSuffix(p, "/edit"):
		var body struct {
			Content string `json:"content"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		id := strings.TrimSuffix(strings.TrimPrefix(p, "/api/v1/documents/"), "/edit")
		b.mu.Lock()
		next := len(b.versions[id]) + 1
		b.versions[id] = append(b.versions[id], client.Version{
			DocumentID: id, Number: next, Content: body.Content, Summary: "Manual edit",
		})
		b.contents[id] = client.DocumentContent{DocumentID: id, Version: next, Content: body.Content}
		for i := range b.session.Documents {
			if b.session.Documents[i].ID == id {
				b.session.Documents[i].LatestVersion = next
			}
		}
		b.mu.Unlock()
		writeData(w, client.RestoreResult{Version: next})

	default:
		writeAPIError(w, http.StatusNotFound, "not_found", "no route for "+p)
	}
}

// countSessionGets returns how many times the session was fetched.
func (b *backend) countSessionGets() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessionGets
}

func (b *backend) countStreamCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.streamCalls
}

// scriptStream returns a chat-stream handler that emits the given events
// as frames, flushing after each one.
func scriptStream(evs ...stream.Event) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fl := w.(http.Flusher)
		for _, ev := range evs {
			w.Write(stream.EncodeEvent(ev))
			fl.Flush()
		}
	}
}

// errCollector is a concurrency-safe sink for the controller's error
// channel.
type errCollector struct {
	mu   sync.Mutex
	errs []error
}

func (e *errCollector) add(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errs = append(e.errs, err)
}

func (e *errCollector) all() []error {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]error, len(e.errs))
	copy(out, e.errs)
	return out
}

// testRig wires a controller against a backend-backed httptest server.
type testRig struct {
	backend  *backend
	server   *httptest.Server
	api      *client.Client
	guard    *FlightGuard
	timeline *Timeline
	registry *Registry
	ctrl     *Controller
	errs     *errCollector
}

func newTestRig(t *testing.T, b *backend) *testRig {
	t.Helper()

	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)

	api := client.New(srv.URL)
	guard := NewFlightGuard()
	timeline := NewTimeline()
	registry := NewRegistry(api, nil)
	errs := &errCollector{}

	if err := registry.Load(context.Background(), b.session.ID); err != nil {
		t.Fatalf("load registry: %v", err)
	}

	ctrl := NewController(api, nil, guard, timeline, registry, b.session.ID, errs.add)

	return &testRig{
		backend:  b,
		server:   srv,
		api:      api,
		guard:    guard,
		timeline: timeline,
		registry: registry,
		ctrl:     ctrl,
		errs:     errs,
	}
}
