// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// VersionClient provides access to version history operations.
//
// Access this client through [Client.Versions]:
//
//	versions, err := client.Versions.List(ctx, docID)
type VersionClient struct {
	c *Client
}

// List returns all versions of a document, oldest first. Listings omit
// content; use [VersionClient.Get] for the full snapshot.
func (v *VersionClient) List(ctx context.Context, documentID string) ([]Version, error) {
	data, err := v.c.get(ctx, "/api/v1/documents/"+documentID+"/versions")
	if err != nil {
		return nil, err
	}

	var versions []Version
	if err := json.Unmarshal(data, &versions); err != nil {
		return nil, fmt.Errorf("failed to parse versions: %w", err)
	}

	return versions, nil
}

// Get returns one version of a document, including its content.
func (v *VersionClient) Get(ctx context.Context, documentID string, number int) (*Version, error) {
	data, err := v.c.get(ctx, "/api/v1/documents/"+documentID+"/versions/"+strconv.Itoa(number))
	if err != nil {
		return nil, err
	}

	var ver Version
	if err := json.Unmarshal(data, &ver); err != nil {
		return nil, fmt.Errorf("failed to parse version: %w", err)
	}

	return &ver, nil
}

// Restore appends a new version carrying the content of version number and
// returns the new version's number. History is never rewritten: restoring
// version 2 of a document at version 5 yields version 6 with version 2's
// content.
func (v *VersionClient) Restore(ctx context.Context, documentID string, number int) (*RestoreResult, error) {
	data, err := v.c.post(ctx, "/api/v1/documents/"+documentID+"/versions/"+strconv.Itoa(number)+"/restore")
	if err != nil {
		return nil, err
	}

	var res RestoreResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("failed to parse result: %w", err)
	}

	return &res, nil
}
