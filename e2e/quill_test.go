// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package e2e

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillworks/quill/internal/api"
	"github.com/quillworks/quill/internal/engine"
	"github.com/quillworks/quill/internal/events"
	"github.com/quillworks/quill/internal/store"
	"github.com/quillworks/quill/internal/watcher"
	"github.com/quillworks/quill/pkg/client"
)

// testStack is a dev server plus a workspace talking to it over HTTP.
type testStack struct {
	server *httptest.Server
	bus    events.EventBus
	ws     *engine.Workspace
	errs   chan error
}

func newTestStack(t *testing.T, token string, chunkDelay time.Duration) *testStack {
	t.Helper()

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	serverBus := events.NewMemoryEventBus(events.MemoryBusConfig{
		HistoryMaxEvents: 1000,
		HistoryMaxAge:    time.Hour,
	})
	t.Cleanup(func() { serverBus.Close() })

	srv := httptest.NewServer(api.NewRouter(api.Dependencies{
		Store:      st,
		EventBus:   serverBus,
		Token:      token,
		Model:      "quill-dev-1",
		ChunkDelay: chunkDelay,
	}))
	t.Cleanup(srv.Close)

	clientBus := events.NewMemoryEventBus(events.MemoryBusConfig{
		HistoryMaxEvents: 1000,
		HistoryMaxAge:    time.Hour,
	})
	t.Cleanup(func() { clientBus.Close() })

	var opts []client.Option
	if token != "" {
		opts = append(opts, client.WithToken(token))
	}

	errs := make(chan error, 16)
	ws := engine.NewWorkspace(client.New(srv.URL, opts...), clientBus, func(err error) {
		errs <- err
	})

	return &testStack{server: srv, bus: clientBus, ws: ws, errs: errs}
}

func TestGenerateEditRestoreRoundTrip(t *testing.T) {
	stack := newTestStack(t, "", 0)
	ws := stack.ws
	ctx := context.Background()

	sess, err := ws.NewSession(ctx, "launch plan")
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)

	// First generation creates a document and commits both turns.
	require.NoError(t, ws.Send(ctx, "Write a launch page", engine.SendOptions{}))

	msgs := ws.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, client.RoleUser, msgs[0].Role)
	assert.Equal(t, client.RoleAssistant, msgs[1].Role)

	snap := ws.Documents()
	require.Len(t, snap.Documents, 1)
	require.NotEmpty(t, snap.ActiveDocumentID)
	assert.Equal(t, 1, snap.ContentVersion)
	assert.Contains(t, snap.Content, "Write a launch page")
	docID := snap.ActiveDocumentID

	// Second generation targets the same active document.
	require.NoError(t, ws.Send(ctx, "Make it shorter", engine.SendOptions{}))
	assert.Equal(t, 2, ws.Documents().ContentVersion)

	// Manual edit appends version 3.
	saved, err := ws.SaveEdit(ctx, docID, "<p>hand tuned</p>")
	require.NoError(t, err)
	assert.Equal(t, 3, saved)

	// Restore version 1 appends version 4 carrying version 1's content.
	restored, err := ws.RestoreVersion(ctx, docID, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, restored)

	vs, err := ws.Versions(ctx, docID)
	require.NoError(t, err)
	require.Len(t, vs, 4)
	assert.Equal(t, vs[0].Content, vs[3].Content)
	assert.Equal(t, "<p>hand tuned</p>", vs[2].Content)

	// The mirror follows the restore.
	assert.Equal(t, 4, ws.Documents().ContentVersion)
	assert.Equal(t, vs[0].Content, ws.Documents().Content)

	select {
	case err := <-stack.errs:
		t.Fatalf("unexpected surfaced error: %v", err)
	default:
	}
}

func TestReopenSessionRestoresState(t *testing.T) {
	stack := newTestStack(t, "", 0)
	ctx := context.Background()

	sess, err := stack.ws.NewSession(ctx, "persist")
	require.NoError(t, err)
	require.NoError(t, stack.ws.Send(ctx, "Draft the intro", engine.SendOptions{}))

	// A fresh workspace against the same server sees the committed state.
	other := engine.NewWorkspace(client.New(stack.server.URL), nil, nil)
	require.NoError(t, other.Open(ctx, sess.ID))

	msgs := other.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Draft the intro", msgs[0].Content)

	snap := other.Documents()
	require.Len(t, snap.Documents, 1)
	assert.Equal(t, 1, snap.ContentVersion)
}

func TestCancelMidStreamCommitsNothing(t *testing.T) {
	stack := newTestStack(t, "", 30*time.Millisecond)
	ws := stack.ws
	ctx := context.Background()

	sess, err := ws.NewSession(ctx, "cancel me")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- ws.Send(ctx, "Write something long", engine.SendOptions{})
	}()

	// Wait until chunks are flowing, then cancel.
	require.Eventually(t, func() bool {
		return ws.State().Accumulated != ""
	}, 5*time.Second, 10*time.Millisecond)
	ws.Cancel()

	require.NoError(t, <-done)
	assert.Equal(t, engine.StatusCancelled, ws.State().Status)
	assert.False(t, ws.Busy())

	// Only the optimistic user message exists locally; the server kept the
	// user turn but committed no assistant message and no version.
	msgs := ws.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, client.RoleUser, msgs[0].Role)

	c := client.New(stack.server.URL)
	serverMsgs, err := c.Sessions.Messages(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, serverMsgs, 1)
	assert.Equal(t, client.RoleUser, serverMsgs[0].Role)

	// The guard is idle again: the next send succeeds and commits.
	require.NoError(t, ws.Send(ctx, "Try again", engine.SendOptions{}))
	assert.Len(t, ws.Messages(), 3)
}

func TestDraftsWatcherSavesThroughWorkspace(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	stack := newTestStack(t, "", 0)
	ws := stack.ws
	ctx := context.Background()

	_, err := ws.NewSession(ctx, "drafts")
	require.NoError(t, err)
	require.NoError(t, ws.Send(ctx, "Draft the page", engine.SendOptions{}))
	docID := ws.Documents().ActiveDocumentID
	require.NotEmpty(t, docID)

	dir := t.TempDir()
	w, err := watcher.NewDraftsWatcher(dir, ws, stack.bus, 50*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, docID+".html"), []byte("<p>edited on disk</p>"), 0644))

	require.Eventually(t, func() bool {
		vs, err := ws.Versions(ctx, docID)
		return err == nil && len(vs) == 2
	}, 5*time.Second, 50*time.Millisecond)

	vs, err := ws.Versions(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, "<p>edited on disk</p>", vs[1].Content)
}

func TestUnauthorizedSignsOutOnce(t *testing.T) {
	stack := newTestStack(t, "secret", 0)
	ctx := context.Background()

	// A workspace with the wrong credentials never binds and publishes
	// exactly one signout signal.
	bus := events.NewMemoryEventBus(events.MemoryBusConfig{
		HistoryMaxEvents: 100,
		HistoryMaxAge:    time.Hour,
	})
	defer bus.Close()

	ws := engine.NewWorkspace(client.New(stack.server.URL), bus, nil)

	_, err := ws.NewSession(ctx, "nope")
	require.ErrorIs(t, err, client.ErrUnauthorized)
	_, err = ws.NewSession(ctx, "still no")
	require.ErrorIs(t, err, client.ErrUnauthorized)

	time.Sleep(50 * time.Millisecond)
	evs, err := bus.History(events.EventFilter{Types: []string{events.EventAuthSignout}})
	require.NoError(t, err)
	assert.Len(t, evs, 1)

	// The correctly authenticated workspace is unaffected.
	_, err = stack.ws.NewSession(ctx, "works")
	require.NoError(t, err)
}
