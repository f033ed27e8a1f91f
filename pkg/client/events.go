// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// EventClient provides access to the server's event log.
//
// Access this client through [Client.Events]:
//
//	events, err := client.Events.History(ctx, EventQuery{Limit: 50})
type EventClient struct {
	c *Client
}

// Event is one entry in the server's event log.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Session   string                 `json:"session"`
	Payload   map[string]interface{} `json:"payload"`
}

// EventQuery filters event history requests.
type EventQuery struct {
	// Types restricts results to matching event types. Wildcards are
	// supported ("generation.*").
	Types []string

	// Session restricts results to one session.
	Session string

	// Since restricts results to events after this time.
	Since time.Time

	// Limit caps the number of events returned.
	Limit int
}

// History returns past events matching the query, oldest first.
func (e *EventClient) History(ctx context.Context, q EventQuery) ([]Event, error) {
	params := url.Values{}
	for _, t := range q.Types {
		params.Add("type", t)
	}
	if q.Session != "" {
		params.Set("session", q.Session)
	}
	if !q.Since.IsZero() {
		params.Set("since", q.Since.Format(time.RFC3339))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	path := "/api/v1/events"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	data, err := e.c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var events []Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("failed to parse events: %w", err)
	}

	return events, nil
}
