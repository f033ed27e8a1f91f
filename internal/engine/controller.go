// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quillworks/quill/internal/events"
	"github.com/quillworks/quill/internal/stream"
	"github.com/quillworks/quill/pkg/client"
)

// Transient status indicators shown while a generation runs.
const (
	StatusConnecting = "Connecting"
	StatusCancelled  = "Cancelled"
)

// ErrStreamTruncated is surfaced when the server closes a stream without
// ever sending done.
var ErrStreamTruncated = errors.New("stream ended before done")

// SendOptions carries the optional parameters of a send.
type SendOptions struct {
	// DocumentID targets an existing document.
	DocumentID string

	// TemplateName selects a server-side template for this turn.
	TemplateName string

	// UserContent is the free text accompanying a template.
	UserContent string
}

// Controller drives one generation end-to-end for a session: it admits the
// send through the flight guard, appends the optimistic user message,
// opens the stream, applies events in arrival order to its transient
// state, and on the terminal outcome commits the assistant message,
// triggers a registry refresh and releases the guard.
//
// Transient state (status text, accumulated content, current content
// snapshot) is what a UI renders while a generation runs; durable state
// lives in the Registry and Timeline.
type Controller struct {
	api      *client.Client
	bus      events.EventBus
	guard    *FlightGuard
	timeline *Timeline
	registry *Registry

	sessionID string

	// onError is the caller's error channel. Transport failures and
	// server-reported error events land here; they are never swallowed.
	onError func(error)

	mu             sync.Mutex
	status         string
	accum          strings.Builder
	content        string
	contentVersion int
	pendingSummary string
}

// ControllerState is a point-in-time copy of the controller's transient
// view.
type ControllerState struct {
	// Status is the transient progress text, empty when idle.
	Status string

	// Accumulated is the concatenation of all chunk events of the current
	// generation. It only grows until done or cancellation resets it.
	Accumulated string

	// Content is the last full content snapshot received, with its
	// version number. Survives the end of the generation.
	Content        string
	ContentVersion int

	// Busy reports whether a generation is in flight.
	Busy bool
}

// NewController creates a controller bound to one session. onError may be
// nil when the caller does not consume surfaced errors.
func NewController(api *client.Client, bus events.EventBus, guard *FlightGuard,
	timeline *Timeline, registry *Registry, sessionID string, onError func(error)) *Controller {
	return &Controller{
		api:       api,
		bus:       bus,
		guard:     guard,
		timeline:  timeline,
		registry:  registry,
		sessionID: sessionID,
		onError:   onError,
	}
}

// Send runs one generation to completion, cancellation or failure. It
// blocks until the stream terminates; run it in a goroutine when the
// caller must stay responsive.
//
// Send rejects immediately, with no side effects, when the controller has
// no session, the message is empty after trimming, or a generation is
// already in flight.
//
// Cancellation is an expected termination, not an error: Send returns nil
// and leaves the status at StatusCancelled.
func (c *Controller) Send(ctx context.Context, message string, opts SendOptions) error {
	trimmed := strings.TrimSpace(message)
	if c.sessionID == "" {
		return ErrNoSession
	}
	if trimmed == "" {
		return ErrEmptyMessage
	}

	flightCtx, err := c.guard.Acquire(ctx)
	if err != nil {
		return err
	}
	defer c.guard.release()

	// Optimistic user message, before any network activity. Its client
	// generated ID and local timestamp hold its place in the timeline until
	// the next session reload replaces the log with the server's record.
	userMsg := client.ChatMessage{
		ID:           uuid.NewString(),
		SessionID:    c.sessionID,
		DocumentID:   opts.DocumentID,
		Role:         client.RoleUser,
		Content:      message,
		TemplateName: opts.TemplateName,
		UserContent:  opts.UserContent,
		CreatedAt:    time.Now(),
	}
	c.timeline.Append(userMsg)

	c.beginTransient()
	c.publish(ctx, events.EventGenerationStarted, map[string]interface{}{"message_id": userMsg.ID})

	gs, err := c.api.Generate(flightCtx, c.sessionID, client.GenerateRequest{
		Message:      trimmed,
		DocumentID:   opts.DocumentID,
		TemplateName: opts.TemplateName,
		UserContent:  opts.UserContent,
	})
	if err != nil {
		if flightCtx.Err() != nil {
			c.finishCancelled(ctx)
			return nil
		}
		return c.finishFailed(ctx, err)
	}
	defer gs.Close()

	for {
		ev, err := gs.Recv()
		if err != nil {
			if flightCtx.Err() != nil {
				c.finishCancelled(ctx)
				return nil
			}
			if errors.Is(err, io.EOF) {
				// The server closed the stream without done: a transport
				// level truncation, not a completion.
				return c.finishFailed(ctx, ErrStreamTruncated)
			}
			return c.finishFailed(ctx, err)
		}

		// An abort observed after a read must not apply the event.
		if flightCtx.Err() != nil {
			c.finishCancelled(ctx)
			return nil
		}

		if done := c.apply(ev); done {
			break
		}
	}

	return c.finishDone(ctx, opts.DocumentID)
}

// apply folds one event into the transient state, in arrival order.
// Returns true on the terminal done event.
func (c *Controller) apply(ev stream.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e := ev.(type) {
	case stream.StatusEvent:
		c.status = e.Text
	case stream.ChunkEvent:
		c.accum.WriteString(e.Text)
	case stream.HTMLEvent:
		// Incremental rewrite: the last snapshot wins.
		c.content = e.Content
		c.contentVersion = e.Version
	case stream.SummaryEvent:
		c.pendingSummary = e.Text
	case stream.ErrorEvent:
		// Surfaced, but not terminal: the server may still send done after
		// reporting a soft error.
		c.reportError(fmt.Errorf("server error: %s", e.Message))
	case stream.DoneEvent:
		return true
	}
	return false
}

// finishDone commits the pending summary (if any), clears transient
// status, and triggers a registry refresh so a server-created document
// shows up.
func (c *Controller) finishDone(ctx context.Context, documentID string) error {
	c.mu.Lock()
	summary := strings.TrimSpace(c.pendingSummary)
	c.status = ""
	c.accum.Reset()
	c.pendingSummary = ""
	c.mu.Unlock()

	if summary != "" {
		c.timeline.Append(client.ChatMessage{
			ID:         uuid.NewString(),
			SessionID:  c.sessionID,
			DocumentID: documentID,
			Role:       client.RoleAssistant,
			Content:    summary,
			CreatedAt:  time.Now(),
		})
	}

	if err := c.registry.Refresh(ctx); err != nil {
		c.reportError(err)
	}

	c.publish(ctx, events.EventGenerationCompleted, nil)
	return nil
}

// finishCancelled records the cancellation indicator. Nothing is
// committed and the registry is not refreshed.
func (c *Controller) finishCancelled(ctx context.Context) {
	c.mu.Lock()
	c.status = StatusCancelled
	c.accum.Reset()
	c.pendingSummary = ""
	c.mu.Unlock()

	c.publish(ctx, events.EventGenerationCancelled, nil)
}

// finishFailed surfaces a transport-level failure and clears the
// transient status. No assistant message is committed.
func (c *Controller) finishFailed(ctx context.Context, err error) error {
	c.mu.Lock()
	c.status = ""
	c.pendingSummary = ""
	c.mu.Unlock()

	c.reportError(err)
	c.publish(ctx, events.EventGenerationFailed, map[string]interface{}{"error": err.Error()})
	return err
}

// State returns a copy of the transient view.
func (c *Controller) State() ControllerState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return ControllerState{
		Status:         c.status,
		Accumulated:    c.accum.String(),
		Content:        c.content,
		ContentVersion: c.contentVersion,
		Busy:           c.guard.Busy(),
	}
}

func (c *Controller) beginTransient() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.status = StatusConnecting
	c.accum.Reset()
	c.pendingSummary = ""
}

func (c *Controller) reportError(err error) {
	if c.onError != nil {
		c.onError(err)
	}
}

func (c *Controller) publish(ctx context.Context, eventType string, payload map[string]interface{}) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(ctx, events.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Session:   c.sessionID,
		Payload:   payload,
	})
}
