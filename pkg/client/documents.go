// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
)

// DocumentClient provides access to document operations.
//
// Access this client through [Client.Documents]:
//
//	content, err := client.Documents.Content(ctx, docID)
type DocumentClient struct {
	c *Client
}

// Switch changes the session's active document server-side. The caller
// follows up with [DocumentClient.Content] to fetch the newly active
// document's latest content.
func (d *DocumentClient) Switch(ctx context.Context, sessionID, documentID string) error {
	return d.c.Sessions.SetActiveDocument(ctx, sessionID, documentID)
}

// Content returns the latest rendered content of a document. Used whenever
// the active document changes outside of a generation: session load,
// document switch, version restore.
func (d *DocumentClient) Content(ctx context.Context, id string) (*DocumentContent, error) {
	data, err := d.c.get(ctx, "/api/v1/documents/"+id+"/content")
	if err != nil {
		return nil, err
	}

	var dc DocumentContent
	if err := json.Unmarshal(data, &dc); err != nil {
		return nil, fmt.Errorf("failed to parse content: %w", err)
	}

	return &dc, nil
}

// Rename changes a document's title.
func (d *DocumentClient) Rename(ctx context.Context, id, title string) error {
	_, err := d.c.postJSON(ctx, "/api/v1/documents/"+id+"/rename", map[string]string{"title": title})
	return err
}

// Delete removes a document and its version history.
func (d *DocumentClient) Delete(ctx context.Context, id string) error {
	_, err := d.c.delete(ctx, "/api/v1/documents/"+id)
	return err
}

// SaveEdit stores a manually edited content snapshot as a new version of
// the document and returns the appended version number.
func (d *DocumentClient) SaveEdit(ctx context.Context, id, content string) (*RestoreResult, error) {
	data, err := d.c.postJSON(ctx, "/api/v1/documents/"+id+"/edit", map[string]string{"content": content})
	if err != nil {
		return nil, err
	}

	var res RestoreResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("failed to parse result: %w", err)
	}

	return &res, nil
}
