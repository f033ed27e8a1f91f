// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillworks/quill/pkg/client"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_SessionLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "Q3 campaign")
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)

	got, err := s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "Q3 campaign", got.Title)
	assert.Empty(t, got.Documents)
	assert.Empty(t, got.ActiveDocumentID)

	require.NoError(t, s.RenameSession(ctx, sess.ID, "Q4 campaign"))
	got, err = s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "Q4 campaign", got.Title)

	sums, err := s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, sess.ID, sums[0].ID)

	require.NoError(t, s.DeleteSession(ctx, sess.ID))
	_, err = s.GetSession(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_GetSession_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetSession(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_CreateDocumentActivates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "s")
	require.NoError(t, err)

	doc1, err := s.CreateDocument(ctx, sess.ID, "Landing page")
	require.NoError(t, err)
	doc2, err := s.CreateDocument(ctx, sess.ID, "Press release")
	require.NoError(t, err)

	got, err := s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, got.Documents, 2)

	// The newest document took the active flag.
	assert.Equal(t, doc2.ID, got.ActiveDocumentID)

	var activeCount int
	for _, d := range got.Documents {
		if d.Active {
			activeCount++
		}
	}
	assert.Equal(t, 1, activeCount)

	require.NoError(t, s.SetActiveDocument(ctx, sess.ID, doc1.ID))
	got, err = s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, doc1.ID, got.ActiveDocumentID)
}

func TestStore_SetActiveDocument_UnknownDocument(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "s")
	require.NoError(t, err)

	err = s.SetActiveDocument(ctx, sess.ID, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_VersionsAppendOnly(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "s")
	require.NoError(t, err)
	doc, err := s.CreateDocument(ctx, sess.ID, "Report")
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		n, err := s.AppendVersion(ctx, client.Version{
			DocumentID: doc.ID,
			Content:    "<p>v" + string(rune('0'+i)) + "</p>",
			Prompt:     "write it",
			Model:      "quill-dev-1",
			Usage:      client.TokenUsage{PromptTokens: 10, CompletionTokens: 20},
		})
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	vs, err := s.ListVersions(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, vs, 3)
	assert.Equal(t, 1, vs[0].Number)
	assert.Equal(t, 3, vs[2].Number)
	assert.Equal(t, 20, vs[0].Usage.CompletionTokens)

	dc, err := s.DocumentContent(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, dc.Version)
	assert.Equal(t, "<p>v3</p>", dc.Content)
}

func TestStore_RestoreVersion(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "s")
	require.NoError(t, err)
	doc, err := s.CreateDocument(ctx, sess.ID, "Report")
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		_, err := s.AppendVersion(ctx, client.Version{
			DocumentID: doc.ID,
			Content:    "<p>v" + string(rune('0'+i)) + "</p>",
		})
		require.NoError(t, err)
	}

	// Restore appends; it never rewrites.
	n, err := s.RestoreVersion(ctx, doc.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	v6, err := s.GetVersion(ctx, doc.ID, 6)
	require.NoError(t, err)
	assert.Equal(t, "<p>v2</p>", v6.Content)

	v2, err := s.GetVersion(ctx, doc.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, "<p>v2</p>", v2.Content)

	_, err = s.RestoreVersion(ctx, doc.ID, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_DeleteDocumentPromotesActive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "s")
	require.NoError(t, err)
	doc1, err := s.CreateDocument(ctx, sess.ID, "first")
	require.NoError(t, err)
	doc2, err := s.CreateDocument(ctx, sess.ID, "second")
	require.NoError(t, err)

	// doc2 is active; deleting it promotes the remaining document.
	require.NoError(t, s.DeleteDocument(ctx, doc2.ID))

	got, err := s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, got.Documents, 1)
	assert.Equal(t, doc1.ID, got.ActiveDocumentID)

	// Deleting the last document leaves the session with no active doc.
	require.NoError(t, s.DeleteDocument(ctx, doc1.ID))
	got, err = s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Documents)
	assert.Empty(t, got.ActiveDocumentID)
}

func TestStore_Messages(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "s")
	require.NoError(t, err)

	require.NoError(t, s.AppendMessage(ctx, client.ChatMessage{
		ID:        "client-uuid-1",
		SessionID: sess.ID,
		Role:      client.RoleUser,
		Content:   "write it",
	}))
	require.NoError(t, s.AppendMessage(ctx, client.ChatMessage{
		SessionID: sess.ID,
		Role:      client.RoleAssistant,
		Content:   "Wrote it",
	}))

	msgs, err := s.Messages(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	// The optimistic client ID survives; the assistant turn got one assigned.
	assert.Equal(t, "client-uuid-1", msgs[0].ID)
	assert.NotEmpty(t, msgs[1].ID)
	assert.Equal(t, client.RoleAssistant, msgs[1].Role)
}
