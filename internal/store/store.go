// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package store provides the SQLite-backed persistence layer for the Quill
// dev server: sessions, documents, versions and chat messages.
//
// Versions are append-only. Every write that produces content (generation,
// restore, manual edit) appends a new version numbered max+1 for its
// document; nothing ever rewrites an existing row.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/quillworks/quill/pkg/client"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// modernc sqlite serializes at the driver level; a single connection
	// avoids table-lock errors under concurrent handlers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		title      TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	CREATE TABLE IF NOT EXISTS documents (
		id         TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		title      TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		active     INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS versions (
		document_id       TEXT NOT NULL REFERENCES documents(id),
		number            INTEGER NOT NULL,
		content           TEXT NOT NULL,
		prompt            TEXT NOT NULL DEFAULT '',
		summary           TEXT NOT NULL DEFAULT '',
		model             TEXT NOT NULL DEFAULT '',
		prompt_tokens     INTEGER NOT NULL DEFAULT 0,
		completion_tokens INTEGER NOT NULL DEFAULT 0,
		created_at        TIMESTAMP NOT NULL,
		PRIMARY KEY (document_id, number)
	);
	CREATE TABLE IF NOT EXISTS messages (
		id            TEXT PRIMARY KEY,
		session_id    TEXT NOT NULL REFERENCES sessions(id),
		document_id   TEXT NOT NULL DEFAULT '',
		role          TEXT NOT NULL,
		content       TEXT NOT NULL,
		template_name TEXT NOT NULL DEFAULT '',
		user_content  TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMP NOT NULL
	);`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// CreateSession inserts a new session and returns it.
func (s *Store) CreateSession(ctx context.Context, title string) (*client.Session, error) {
	sess := &client.Session{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (id, title, created_at) VALUES (?, ?, ?)",
		sess.ID, sess.Title, sess.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

// ListSessions returns summaries of all sessions, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]client.SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.title, s.created_at, COUNT(d.id)
		FROM sessions s LEFT JOIN documents d ON d.session_id = s.id
		GROUP BY s.id ORDER BY s.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []client.SessionSummary
	for rows.Next() {
		var sum client.SessionSummary
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.CreatedAt, &sum.DocumentCount); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// GetSession returns a session with its documents in creation order.
func (s *Store) GetSession(ctx context.Context, id string) (*client.Session, error) {
	var sess client.Session
	err := s.db.QueryRowContext(ctx,
		"SELECT id, title, created_at FROM sessions WHERE id = ?", id).
		Scan(&sess.ID, &sess.Title, &sess.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.title, d.created_at, d.active,
		       COALESCE((SELECT MAX(number) FROM versions v WHERE v.document_id = d.id), 0)
		FROM documents d WHERE d.session_id = ? ORDER BY d.created_at, d.id`, id)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		doc := client.Document{SessionID: id}
		var active int
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.CreatedAt, &active, &doc.LatestVersion); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc.Active = active != 0
		if doc.Active {
			sess.ActiveDocumentID = doc.ID
		}
		sess.Documents = append(sess.Documents, doc)
	}
	return &sess, rows.Err()
}

// RenameSession updates a session's title.
func (s *Store) RenameSession(ctx context.Context, id, title string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE sessions SET title = ? WHERE id = ?", title, id)
	if err != nil {
		return fmt.Errorf("rename session: %w", err)
	}
	return checkAffected(res)
}

// DeleteSession removes a session and everything it owns.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM versions WHERE document_id IN (SELECT id FROM documents WHERE session_id = ?)", id); err != nil {
		return fmt.Errorf("delete versions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE session_id = ?", id); err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE session_id = ?", id); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if err := checkAffected(res); err != nil {
		return err
	}
	return tx.Commit()
}

// SetActiveDocument flips the active flag so that exactly the given document
// is active in its session.
func (s *Store) SetActiveDocument(ctx context.Context, sessionID, documentID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"UPDATE documents SET active = 0 WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("clear active: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		"UPDATE documents SET active = 1 WHERE id = ? AND session_id = ?", documentID, sessionID)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	if err := checkAffected(res); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateDocument inserts a document and marks it active in its session.
func (s *Store) CreateDocument(ctx context.Context, sessionID, title string) (*client.Document, error) {
	doc := &client.Document{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Title:     title,
		CreatedAt: time.Now().UTC(),
		Active:    true,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"UPDATE documents SET active = 0 WHERE session_id = ?", sessionID); err != nil {
		return nil, fmt.Errorf("clear active: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO documents (id, session_id, title, created_at, active) VALUES (?, ?, ?, ?, 1)",
		doc.ID, doc.SessionID, doc.Title, doc.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	return doc, tx.Commit()
}

// RenameDocument updates a document's title.
func (s *Store) RenameDocument(ctx context.Context, id, title string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE documents SET title = ? WHERE id = ?", title, id)
	if err != nil {
		return fmt.Errorf("rename document: %w", err)
	}
	return checkAffected(res)
}

// DeleteDocument removes a document and its versions. If it was active, the
// most recently created remaining document becomes active.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var sessionID string
	var active int
	err = tx.QueryRowContext(ctx,
		"SELECT session_id, active FROM documents WHERE id = ?", id).Scan(&sessionID, &active)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get document: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM versions WHERE document_id = ?", id); err != nil {
		return fmt.Errorf("delete versions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	if active != 0 {
		if _, err := tx.ExecContext(ctx, `
			UPDATE documents SET active = 1 WHERE id = (
				SELECT id FROM documents WHERE session_id = ?
				ORDER BY created_at DESC, id DESC LIMIT 1
			)`, sessionID); err != nil {
			return fmt.Errorf("promote active: %w", err)
		}
	}
	return tx.Commit()
}

// DocumentContent returns the latest version's content for a document.
func (s *Store) DocumentContent(ctx context.Context, id string) (*client.DocumentContent, error) {
	var dc client.DocumentContent
	err := s.db.QueryRowContext(ctx, `
		SELECT document_id, number, content FROM versions
		WHERE document_id = ? ORDER BY number DESC LIMIT 1`, id).
		Scan(&dc.DocumentID, &dc.Version, &dc.Content)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get content: %w", err)
	}
	return &dc, nil
}

// ListVersions returns a document's versions in ascending order.
func (s *Store) ListVersions(ctx context.Context, documentID string) ([]client.Version, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, number, content, prompt, summary, model,
		       prompt_tokens, completion_tokens, created_at
		FROM versions WHERE document_id = ? ORDER BY number`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var out []client.Version
	for rows.Next() {
		var v client.Version
		if err := rows.Scan(&v.DocumentID, &v.Number, &v.Content, &v.Prompt, &v.Summary,
			&v.Model, &v.Usage.PromptTokens, &v.Usage.CompletionTokens, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// GetVersion returns one version of a document.
func (s *Store) GetVersion(ctx context.Context, documentID string, number int) (*client.Version, error) {
	var v client.Version
	err := s.db.QueryRowContext(ctx, `
		SELECT document_id, number, content, prompt, summary, model,
		       prompt_tokens, completion_tokens, created_at
		FROM versions WHERE document_id = ? AND number = ?`, documentID, number).
		Scan(&v.DocumentID, &v.Number, &v.Content, &v.Prompt, &v.Summary,
			&v.Model, &v.Usage.PromptTokens, &v.Usage.CompletionTokens, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get version: %w", err)
	}
	return &v, nil
}

// AppendVersion appends content as the document's next version and returns
// the assigned number.
func (s *Store) AppendVersion(ctx context.Context, v client.Version) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	number, err := appendVersionTx(ctx, tx, v)
	if err != nil {
		return 0, err
	}
	return number, tx.Commit()
}

// RestoreVersion appends a new version carrying the content of version
// number. The source version's row is untouched.
func (s *Store) RestoreVersion(ctx context.Context, documentID string, number int) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var content string
	err = tx.QueryRowContext(ctx,
		"SELECT content FROM versions WHERE document_id = ? AND number = ?",
		documentID, number).Scan(&content)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get version: %w", err)
	}

	newNumber, err := appendVersionTx(ctx, tx, client.Version{
		DocumentID: documentID,
		Content:    content,
		Summary:    fmt.Sprintf("Restored version %d", number),
	})
	if err != nil {
		return 0, err
	}
	return newNumber, tx.Commit()
}

// appendVersionTx inserts v with number max+1 inside tx.
func appendVersionTx(ctx context.Context, tx *sql.Tx, v client.Version) (int, error) {
	var max int
	err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(number), 0) FROM versions WHERE document_id = ?",
		v.DocumentID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max version: %w", err)
	}

	number := max + 1
	_, err = tx.ExecContext(ctx, `
		INSERT INTO versions (document_id, number, content, prompt, summary, model,
		                      prompt_tokens, completion_tokens, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.DocumentID, number, v.Content, v.Prompt, v.Summary, v.Model,
		v.Usage.PromptTokens, v.Usage.CompletionTokens, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("insert version: %w", err)
	}
	return number, nil
}

// Messages returns a session's conversation in chronological order.
func (s *Store) Messages(ctx context.Context, sessionID string) ([]client.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, document_id, role, content, template_name, user_content, created_at
		FROM messages WHERE session_id = ? ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []client.ChatMessage
	for rows.Next() {
		var m client.ChatMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.DocumentID, &m.Role, &m.Content,
			&m.TemplateName, &m.UserContent, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AppendMessage stores one conversation turn. A message arriving with an ID
// (the client's optimistic user turn) keeps it; otherwise one is assigned.
func (s *Store) AppendMessage(ctx context.Context, m client.ChatMessage) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, session_id, document_id, role, content, template_name, user_content, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.SessionID, m.DocumentID, m.Role, m.Content, m.TemplateName, m.UserContent, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
