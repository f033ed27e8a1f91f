// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/quillworks/quill/internal/events"
	"github.com/quillworks/quill/pkg/client"
)

// Workspace is the session-scoped handle for the engine. Every operation
// targets the session the workspace is bound to; there is no ambient
// "current session" variable anywhere. Binding a different session
// replaces the registry, timeline, guard and controller wholesale, so no
// state from the previous session can leak into the next one.
type Workspace struct {
	api     *client.Client
	bus     events.EventBus
	onError func(error)

	mu         sync.Mutex
	sessionID  string
	registry   *Registry
	timeline   *Timeline
	guard      *FlightGuard
	controller *Controller

	signoutOnce sync.Once
}

// NewWorkspace creates an unbound workspace. Open or NewSession binds it.
// onError receives surfaced stream and transport errors; may be nil.
func NewWorkspace(api *client.Client, bus events.EventBus, onError func(error)) *Workspace {
	return &Workspace{api: api, bus: bus, onError: onError}
}

// NewSession creates a session server-side and binds the workspace to it.
func (w *Workspace) NewSession(ctx context.Context, title string) (*client.Session, error) {
	sess, err := w.api.Sessions.Create(ctx, title)
	if err != nil {
		return nil, w.checkAuth(ctx, err)
	}

	if err := w.bind(ctx, sess.ID); err != nil {
		return nil, err
	}

	w.publish(ctx, events.EventSessionCreated, sess.ID, nil)
	return sess, nil
}

// Open binds the workspace to an existing session: it loads the session's
// documents and active content, and replaces the timeline with the
// server's conversation record.
func (w *Workspace) Open(ctx context.Context, sessionID string) error {
	return w.bind(ctx, sessionID)
}

// bind replaces all session-scoped state with freshly loaded state.
func (w *Workspace) bind(ctx context.Context, sessionID string) error {
	registry := NewRegistry(w.api, w.bus)
	if err := registry.Load(ctx, sessionID); err != nil {
		return w.checkAuth(ctx, err)
	}

	msgs, err := w.api.Sessions.Messages(ctx, sessionID)
	if err != nil {
		return w.checkAuth(ctx, err)
	}

	timeline := NewTimeline()
	timeline.Reset(msgs)

	guard := NewFlightGuard()

	w.mu.Lock()
	w.sessionID = sessionID
	w.registry = registry
	w.timeline = timeline
	w.guard = guard
	w.controller = NewController(w.api, w.bus, guard, timeline, registry, sessionID, w.onError)
	w.mu.Unlock()

	return nil
}

// Send runs one generation for the bound session. See [Controller.Send].
func (w *Workspace) Send(ctx context.Context, message string, opts SendOptions) error {
	ctrl := w.ctrl()
	if ctrl == nil {
		return ErrNoSession
	}
	return w.checkAuth(ctx, ctrl.Send(ctx, message, opts))
}

// Cancel signals the in-flight generation, if any. Idempotent.
func (w *Workspace) Cancel() {
	w.mu.Lock()
	guard := w.guard
	w.mu.Unlock()

	if guard != nil {
		guard.Cancel()
	}
}

// Busy reports whether a generation is in flight.
func (w *Workspace) Busy() bool {
	w.mu.Lock()
	guard := w.guard
	w.mu.Unlock()

	return guard != nil && guard.Busy()
}

// SessionID returns the bound session, or "" when unbound.
func (w *Workspace) SessionID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sessionID
}

// State returns the controller's transient view, or the zero value when
// unbound.
func (w *Workspace) State() ControllerState {
	ctrl := w.ctrl()
	if ctrl == nil {
		return ControllerState{}
	}
	return ctrl.State()
}

// Documents returns the registry's current mirror.
func (w *Workspace) Documents() RegistrySnapshot {
	w.mu.Lock()
	registry := w.registry
	w.mu.Unlock()

	if registry == nil {
		return RegistrySnapshot{}
	}
	return registry.Snapshot()
}

// Messages returns a copy of the conversation log.
func (w *Workspace) Messages() []client.ChatMessage {
	w.mu.Lock()
	timeline := w.timeline
	w.mu.Unlock()

	if timeline == nil {
		return nil
	}
	return timeline.Messages()
}

// SwitchDocument changes the active document and loads its content.
func (w *Workspace) SwitchDocument(ctx context.Context, documentID string) error {
	reg := w.reg()
	if reg == nil {
		return ErrNoSession
	}
	return w.checkAuth(ctx, reg.Switch(ctx, documentID))
}

// RenameDocument changes a document's title.
func (w *Workspace) RenameDocument(ctx context.Context, documentID, title string) error {
	reg := w.reg()
	if reg == nil {
		return ErrNoSession
	}
	return w.checkAuth(ctx, reg.Rename(ctx, documentID, title))
}

// DeleteDocument removes a document.
func (w *Workspace) DeleteDocument(ctx context.Context, documentID string) error {
	reg := w.reg()
	if reg == nil {
		return ErrNoSession
	}
	return w.checkAuth(ctx, reg.Delete(ctx, documentID))
}

// RestoreVersion restores an old version as a new one and returns the new
// version number.
func (w *Workspace) RestoreVersion(ctx context.Context, documentID string, number int) (int, error) {
	reg := w.reg()
	if reg == nil {
		return 0, ErrNoSession
	}
	v, err := reg.RestoreVersion(ctx, documentID, number)
	return v, w.checkAuth(ctx, err)
}

// SaveEdit stores a manual edit as a new version and returns its number.
func (w *Workspace) SaveEdit(ctx context.Context, documentID, content string) (int, error) {
	reg := w.reg()
	if reg == nil {
		return 0, ErrNoSession
	}
	v, err := reg.SaveEdit(ctx, documentID, content)
	return v, w.checkAuth(ctx, err)
}

// Versions lists a document's version history.
func (w *Workspace) Versions(ctx context.Context, documentID string) ([]client.Version, error) {
	reg := w.reg()
	if reg == nil {
		return nil, ErrNoSession
	}
	vs, err := reg.Versions(ctx, documentID)
	return vs, w.checkAuth(ctx, err)
}

// RenameSession changes the bound session's title, then refreshes.
func (w *Workspace) RenameSession(ctx context.Context, title string) error {
	w.mu.Lock()
	sessionID := w.sessionID
	reg := w.registry
	w.mu.Unlock()

	if sessionID == "" {
		return ErrNoSession
	}
	if err := w.api.Sessions.Rename(ctx, sessionID, title); err != nil {
		return w.checkAuth(ctx, err)
	}
	if err := reg.Refresh(ctx); err != nil {
		return w.checkAuth(ctx, err)
	}

	w.publish(ctx, events.EventSessionRenamed, sessionID, map[string]interface{}{"title": title})
	return nil
}

// checkAuth maps an unauthorized response to the session-wide sign-out
// signal. The signal fires at most once per workspace; the engine never
// retries the failed request.
func (w *Workspace) checkAuth(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, client.ErrUnauthorized) {
		w.signoutOnce.Do(func() {
			w.publish(ctx, events.EventAuthSignout, w.SessionID(), nil)
		})
	}
	return err
}

func (w *Workspace) ctrl() *Controller {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.controller
}

func (w *Workspace) reg() *Registry {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.registry
}

func (w *Workspace) publish(ctx context.Context, eventType, sessionID string, payload map[string]interface{}) {
	if w.bus == nil {
		return
	}
	w.bus.Publish(ctx, events.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Session:   sessionID,
		Payload:   payload,
	})
}
