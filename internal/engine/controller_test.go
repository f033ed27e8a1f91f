// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillworks/quill/internal/stream"
	"github.com/quillworks/quill/pkg/client"
)

func emptySession() client.Session {
	return client.Session{ID: "sess-1", Title: "Draft", CreatedAt: time.Now()}
}

func sessionWithDoc() client.Session {
	sess := emptySession()
	sess.Documents = []client.Document{
		{ID: "doc-1", SessionID: "sess-1", Title: "Landing page", Active: true, LatestVersion: 1},
	}
	sess.ActiveDocumentID = "doc-1"
	return sess
}

func TestController_Send_CompleteGeneration(t *testing.T) {
	b := newBackend(sessionWithDoc())
	b.contents["doc-1"] = client.DocumentContent{DocumentID: "doc-1", Version: 1, Content: "<p>hi</p>"}
	b.stream = scriptStream(
		stream.StatusEvent{Text: "Thinking"},
		stream.ChunkEvent{Text: "Here"},
		stream.ChunkEvent{Text: " you go"},
		stream.HTMLEvent{Content: "<p>hi</p>", Version: 1},
		stream.SummaryEvent{Text: "Created a page"},
		stream.DoneEvent{},
	)

	rig := newTestRig(t, b)
	getsBefore := b.countSessionGets()

	err := rig.ctrl.Send(context.Background(), "make me a page", SendOptions{DocumentID: "doc-1"})
	require.NoError(t, err)

	// One user turn, one assistant turn, in that order.
	msgs := rig.timeline.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, client.RoleUser, msgs[0].Role)
	assert.Equal(t, "make me a page", msgs[0].Content)
	assert.NotEmpty(t, msgs[0].ID)
	assert.Equal(t, client.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Created a page", msgs[1].Content)

	// Transient state cleared, last content snapshot retained.
	state := rig.ctrl.State()
	assert.Empty(t, state.Status)
	assert.Empty(t, state.Accumulated)
	assert.Equal(t, "<p>hi</p>", state.Content)
	assert.Equal(t, 1, state.ContentVersion)
	assert.False(t, state.Busy)

	// Registry refreshed exactly once.
	assert.Equal(t, getsBefore+1, b.countSessionGets())
	assert.False(t, rig.guard.Busy())
	assert.Empty(t, rig.errs.all())
}

func TestController_Send_Rejections(t *testing.T) {
	b := newBackend(emptySession())
	rig := newTestRig(t, b)

	t.Run("empty message", func(t *testing.T) {
		err := rig.ctrl.Send(context.Background(), "   \n\t", SendOptions{})
		assert.ErrorIs(t, err, ErrEmptyMessage)
		assert.Equal(t, 0, rig.timeline.Len())
		assert.Equal(t, 0, b.countStreamCalls())
	})

	t.Run("no session", func(t *testing.T) {
		ctrl := NewController(rig.api, nil, rig.guard, rig.timeline, rig.registry, "", nil)
		err := ctrl.Send(context.Background(), "hello", SendOptions{})
		assert.ErrorIs(t, err, ErrNoSession)
		assert.Equal(t, 0, rig.timeline.Len())
		assert.Equal(t, 0, b.countStreamCalls())
	})
}

func TestController_SecondSendWhileBusyIsNoop(t *testing.T) {
	b := newBackend(emptySession())
	release := make(chan struct{})
	b.stream = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fl := w.(http.Flusher)
		w.Write(stream.EncodeEvent(stream.StatusEvent{Text: "Thinking"}))
		fl.Flush()
		select {
		case <-release:
			w.Write(stream.EncodeEvent(stream.DoneEvent{}))
		case <-r.Context().Done():
		}
	}

	rig := newTestRig(t, b)

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- rig.ctrl.Send(context.Background(), "first", SendOptions{})
	}()

	require.Eventually(t, func() bool {
		return rig.ctrl.State().Status == "Thinking"
	}, time.Second, 5*time.Millisecond)

	// Second send: rejected with no optimistic message and no request.
	err := rig.ctrl.Send(context.Background(), "second", SendOptions{})
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, 1, rig.timeline.Len())
	assert.Equal(t, 1, b.countStreamCalls())

	close(release)
	require.NoError(t, <-firstDone)
	assert.False(t, rig.guard.Busy())
}

func TestController_CancelMidStream(t *testing.T) {
	b := newBackend(emptySession())
	b.stream = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fl := w.(http.Flusher)
		w.Write(stream.EncodeEvent(stream.ChunkEvent{Text: "partial"}))
		fl.Flush()
		<-r.Context().Done()
	}

	rig := newTestRig(t, b)
	getsBefore := b.countSessionGets()

	done := make(chan error, 1)
	go func() {
		done <- rig.ctrl.Send(context.Background(), "write", SendOptions{})
	}()

	require.Eventually(t, func() bool {
		return rig.ctrl.State().Accumulated == "partial"
	}, time.Second, 5*time.Millisecond)

	rig.guard.Cancel()

	// Cancellation is an expected termination, not an error.
	require.NoError(t, <-done)

	state := rig.ctrl.State()
	assert.Equal(t, StatusCancelled, state.Status)
	assert.Empty(t, state.Accumulated)

	// No assistant message, no refresh, guard idle.
	require.Len(t, rig.timeline.Messages(), 1)
	assert.Equal(t, client.RoleUser, rig.timeline.Messages()[0].Role)
	assert.Equal(t, getsBefore, b.countSessionGets())
	assert.False(t, rig.guard.Busy())
}

func TestController_MalformedFramesAreDropped(t *testing.T) {
	b := newBackend(emptySession())
	b.stream = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fl := w.(http.Flusher)
		w.Write(stream.EncodeEvent(stream.StatusEvent{Text: "Working"}))
		w.Write([]byte("data: {not valid json\n\n"))
		w.Write(stream.EncodeEvent(stream.ChunkEvent{Text: "ok"}))
		w.Write(stream.EncodeEvent(stream.SummaryEvent{Text: "Fixed"}))
		w.Write(stream.EncodeEvent(stream.DoneEvent{}))
		fl.Flush()
	}

	rig := newTestRig(t, b)

	err := rig.ctrl.Send(context.Background(), "fix it", SendOptions{})
	require.NoError(t, err)

	msgs := rig.timeline.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Fixed", msgs[1].Content)
	assert.Empty(t, rig.errs.all())
}

func TestController_NoSummaryNoAssistantMessage(t *testing.T) {
	b := newBackend(emptySession())
	b.stream = scriptStream(
		stream.StatusEvent{Text: "Thinking"},
		stream.ChunkEvent{Text: "text"},
		stream.DoneEvent{},
	)

	rig := newTestRig(t, b)

	require.NoError(t, rig.ctrl.Send(context.Background(), "hello", SendOptions{}))

	msgs := rig.timeline.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, client.RoleUser, msgs[0].Role)
}

func TestController_BlankSummaryNotCommitted(t *testing.T) {
	b := newBackend(emptySession())
	b.stream = scriptStream(
		stream.SummaryEvent{Text: "   "},
		stream.DoneEvent{},
	)

	rig := newTestRig(t, b)
	require.NoError(t, rig.ctrl.Send(context.Background(), "hello", SendOptions{}))
	assert.Equal(t, 1, rig.timeline.Len())
}

func TestController_LastSummaryWins(t *testing.T) {
	b := newBackend(emptySession())
	b.stream = scriptStream(
		stream.SummaryEvent{Text: "first draft"},
		stream.SummaryEvent{Text: "final wording"},
		stream.DoneEvent{},
	)

	rig := newTestRig(t, b)
	require.NoError(t, rig.ctrl.Send(context.Background(), "hello", SendOptions{}))

	msgs := rig.timeline.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "final wording", msgs[1].Content)
}

func TestController_LastHTMLSnapshotWins(t *testing.T) {
	b := newBackend(emptySession())
	b.stream = scriptStream(
		stream.HTMLEvent{Content: "<p>v1</p>", Version: 1},
		stream.HTMLEvent{Content: "<p>v2</p>", Version: 2},
		stream.SummaryEvent{Text: "Rewrote it"},
		stream.DoneEvent{},
	)

	rig := newTestRig(t, b)
	require.NoError(t, rig.ctrl.Send(context.Background(), "hello", SendOptions{}))

	state := rig.ctrl.State()
	assert.Equal(t, "<p>v2</p>", state.Content)
	assert.Equal(t, 2, state.ContentVersion)
}

func TestController_ErrorEventSurfacedButNotTerminal(t *testing.T) {
	b := newBackend(emptySession())
	b.stream = scriptStream(
		stream.ErrorEvent{Message: "model overloaded, retrying internally"},
		stream.SummaryEvent{Text: "Recovered"},
		stream.DoneEvent{},
	)

	rig := newTestRig(t, b)
	require.NoError(t, rig.ctrl.Send(context.Background(), "hello", SendOptions{}))

	// The soft error reached the error channel, and the stream still
	// completed and committed.
	errs := rig.errs.all()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "model overloaded")

	msgs := rig.timeline.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Recovered", msgs[1].Content)
}

func TestController_StreamTruncatedBeforeDone(t *testing.T) {
	b := newBackend(emptySession())
	b.stream = scriptStream(
		stream.ChunkEvent{Text: "partial"},
		// No done; the handler returns and the body closes.
	)

	rig := newTestRig(t, b)
	getsBefore := b.countSessionGets()

	err := rig.ctrl.Send(context.Background(), "hello", SendOptions{})
	assert.ErrorIs(t, err, ErrStreamTruncated)

	state := rig.ctrl.State()
	assert.Empty(t, state.Status)

	assert.Equal(t, 1, rig.timeline.Len())
	assert.Equal(t, getsBefore, b.countSessionGets())
	assert.False(t, rig.guard.Busy())
	require.Len(t, rig.errs.all(), 1)
}

func TestController_ChunkAccumulationMonotonic(t *testing.T) {
	b := newBackend(emptySession())
	release := make(chan struct{})
	b.stream = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fl := w.(http.Flusher)
		for _, s := range []string{"a", "b", "c"} {
			w.Write(stream.EncodeEvent(stream.ChunkEvent{Text: s}))
			fl.Flush()
		}
		<-release
		w.Write(stream.EncodeEvent(stream.DoneEvent{}))
		fl.Flush()
	}

	rig := newTestRig(t, b)

	done := make(chan error, 1)
	go func() {
		done <- rig.ctrl.Send(context.Background(), "hello", SendOptions{})
	}()

	require.Eventually(t, func() bool {
		return rig.ctrl.State().Accumulated == "abc"
	}, time.Second, 5*time.Millisecond)

	close(release)
	require.NoError(t, <-done)

	// done resets the accumulator.
	assert.Empty(t, rig.ctrl.State().Accumulated)
}
