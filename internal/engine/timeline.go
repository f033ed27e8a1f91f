// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"sync"

	"github.com/quillworks/quill/pkg/client"
)

// Timeline is the ordered, append-only conversation log for one session.
// Appends are the only mutation: entries are never removed or reordered
// once added. A cancelled generation simply appends no assistant entry.
//
// Reset exists solely for whole-session reloads, where the server's record
// replaces the local log wholesale.
type Timeline struct {
	mu   sync.Mutex
	msgs []client.ChatMessage
}

// NewTimeline creates an empty timeline.
func NewTimeline() *Timeline {
	return &Timeline{}
}

// Append adds a message to the end of the log.
func (t *Timeline) Append(msg client.ChatMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.msgs = append(t.msgs, msg)
}

// Messages returns a copy of the log in append order.
func (t *Timeline) Messages() []client.ChatMessage {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]client.ChatMessage, len(t.msgs))
	copy(out, t.msgs)
	return out
}

// Len returns the number of entries.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.msgs)
}

// Reset replaces the whole log with the server's record for a session.
// Only session loads call this; everything else appends.
func (t *Timeline) Reset(msgs []client.ChatMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.msgs = make([]client.ChatMessage, len(msgs))
	copy(t.msgs, msgs)
}
