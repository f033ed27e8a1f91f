// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package engine implements the streaming-synchronization core of Quill:
// the single-flight guard, the stream session controller, the
// session/document registry and the message timeline.
package engine

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrBusy is returned when a send is attempted while a generation is
	// already in flight for the session.
	ErrBusy = errors.New("generation already in flight")

	// ErrNoSession is returned when an operation requires a bound session.
	ErrNoSession = errors.New("no session loaded")

	// ErrEmptyMessage is returned when the message is empty after trimming.
	ErrEmptyMessage = errors.New("empty message")
)

type flightState int

const (
	stateIdle flightState = iota
	stateBusy
)

// FlightGuard serializes generation attempts for one session. It is an
// explicit two-state machine: Idle or Busy, with a live cancellation handle
// while Busy. All transitions go through the guard; nothing else holds the
// in-flight flag.
//
// Cancel signals the active handle but never releases the guard. Release
// belongs to the controller's exit paths, so a late-arriving event cannot
// be applied after a second generation has been admitted.
type FlightGuard struct {
	mu     sync.Mutex
	state  flightState
	cancel context.CancelFunc
}

// NewFlightGuard creates a guard in the Idle state.
func NewFlightGuard() *FlightGuard {
	return &FlightGuard{}
}

// Acquire transitions Idle -> Busy and returns a context derived from ctx
// whose cancellation is owned by the guard. Returns ErrBusy, with no side
// effects, when a generation is already in flight.
func (g *FlightGuard) Acquire(ctx context.Context) (context.Context, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == stateBusy {
		return nil, ErrBusy
	}

	flightCtx, cancel := context.WithCancel(ctx)
	g.state = stateBusy
	g.cancel = cancel
	return flightCtx, nil
}

// Cancel signals the active generation, if any. Idempotent; a no-op while
// Idle. The guard stays Busy until the controller observes the abort and
// releases.
func (g *FlightGuard) Cancel() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == stateBusy && g.cancel != nil {
		g.cancel()
	}
}

// Busy reports whether a generation is in flight.
func (g *FlightGuard) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == stateBusy
}

// release transitions Busy -> Idle. Called by the controller on every
// terminal outcome: completion, cancellation or failure.
func (g *FlightGuard) release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cancel != nil {
		// Release the derived context's resources.
		g.cancel()
		g.cancel = nil
	}
	g.state = stateIdle
}
