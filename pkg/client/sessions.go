// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
)

// SessionClient provides access to session operations.
//
// Access this client through [Client.Sessions]:
//
//	sessions, err := client.Sessions.List(ctx)
type SessionClient struct {
	c *Client
}

// Create creates a new session with the given title. An empty title lets
// the server assign one.
func (s *SessionClient) Create(ctx context.Context, title string) (*Session, error) {
	data, err := s.c.postJSON(ctx, "/api/v1/sessions", map[string]string{"title": title})
	if err != nil {
		return nil, err
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}

	return &sess, nil
}

// List returns summaries of all sessions, newest first.
func (s *SessionClient) List(ctx context.Context) ([]SessionSummary, error) {
	data, err := s.c.get(ctx, "/api/v1/sessions")
	if err != nil {
		return nil, err
	}

	var sessions []SessionSummary
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("failed to parse sessions: %w", err)
	}

	return sessions, nil
}

// Get returns a session's full state: its documents and the reference to
// the active document.
func (s *SessionClient) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.c.get(ctx, "/api/v1/sessions/"+id)
	if err != nil {
		return nil, err
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}

	return &sess, nil
}

// Messages returns the session's conversation log in creation order.
func (s *SessionClient) Messages(ctx context.Context, id string) ([]ChatMessage, error) {
	data, err := s.c.get(ctx, "/api/v1/sessions/"+id+"/messages")
	if err != nil {
		return nil, err
	}

	var msgs []ChatMessage
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("failed to parse messages: %w", err)
	}

	return msgs, nil
}

// Rename changes a session's title.
func (s *SessionClient) Rename(ctx context.Context, id, title string) error {
	_, err := s.c.postJSON(ctx, "/api/v1/sessions/"+id+"/rename", map[string]string{"title": title})
	return err
}

// Delete removes a session and everything it owns.
func (s *SessionClient) Delete(ctx context.Context, id string) error {
	_, err := s.c.delete(ctx, "/api/v1/sessions/"+id)
	return err
}

// SetActiveDocument asks the server to change the session's active
// document. Exactly one document per session is active afterwards.
func (s *SessionClient) SetActiveDocument(ctx context.Context, id, documentID string) error {
	_, err := s.c.postJSON(ctx, "/api/v1/sessions/"+id+"/active-document",
		map[string]string{"document_id": documentID})
	return err
}
