// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package stream implements the generation event-frame protocol.
//
// A generation response body is a sequence of frames. Each frame is a block
// of text terminated by a blank line and carries a single payload line of
// the form "data: <json>", where <json> decodes to a tagged event:
//
//	{"type": "chunk", "content": "..."}
//	{"type": "html", "content": "<p>...</p>", "version": 3}
//	{"type": "done"}
//
// The package converts raw body chunks, arriving at arbitrary boundaries,
// into typed Event values in wire order.
package stream

import (
	"encoding/json"
	"fmt"
)

// Event is one decoded generation event. The concrete types are
// [StatusEvent], [ChunkEvent], [HTMLEvent], [SummaryEvent], [ErrorEvent]
// and [DoneEvent]; consumers dispatch with a type switch so that a new
// event kind is a compile-visible change at every switch site.
type Event interface {
	isEvent()
}

// StatusEvent replaces the transient progress text shown while a
// generation runs ("Thinking", "Writing section 2", ...).
type StatusEvent struct {
	Text string
}

// ChunkEvent appends a fragment to the transient content accumulator.
type ChunkEvent struct {
	Text string
}

// HTMLEvent carries a full rendered-content snapshot and the version
// number it corresponds to. The server may emit several per generation;
// the last one wins.
type HTMLEvent struct {
	Content string
	Version int
}

// SummaryEvent carries the human-readable description of what the
// generation changed. The last summary before done becomes the assistant
// chat message.
type SummaryEvent struct {
	Text string
}

// ErrorEvent is a server-reported soft error. It does not terminate the
// stream; the server may still finish with done after reporting one.
type ErrorEvent struct {
	Message string
}

// DoneEvent is the terminal event of a generation. It is sent exactly once
// per stream that completes; aborted or failed streams never carry it.
type DoneEvent struct{}

func (StatusEvent) isEvent()  {}
func (ChunkEvent) isEvent()   {}
func (HTMLEvent) isEvent()    {}
func (SummaryEvent) isEvent() {}
func (ErrorEvent) isEvent()   {}
func (DoneEvent) isEvent()    {}

// wireEvent is the JSON shape of an event payload on the wire.
type wireEvent struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Version int    `json:"version,omitempty"`
}

// decodeEvent decodes one payload into its Event variant. Unknown types
// are an error so the caller can drop the frame.
func decodeEvent(payload []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	switch w.Type {
	case "status":
		return StatusEvent{Text: w.Content}, nil
	case "chunk":
		return ChunkEvent{Text: w.Content}, nil
	case "html":
		return HTMLEvent{Content: w.Content, Version: w.Version}, nil
	case "summary":
		return SummaryEvent{Text: w.Content}, nil
	case "error":
		return ErrorEvent{Message: w.Content}, nil
	case "done":
		return DoneEvent{}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", w.Type)
	}
}

// EncodeEvent renders an Event as a wire frame, including the trailing
// blank line. Used by the dev server and by tests.
func EncodeEvent(ev Event) []byte {
	var w wireEvent
	switch e := ev.(type) {
	case StatusEvent:
		w = wireEvent{Type: "status", Content: e.Text}
	case ChunkEvent:
		w = wireEvent{Type: "chunk", Content: e.Text}
	case HTMLEvent:
		w = wireEvent{Type: "html", Content: e.Content, Version: e.Version}
	case SummaryEvent:
		w = wireEvent{Type: "summary", Content: e.Text}
	case ErrorEvent:
		w = wireEvent{Type: "error", Content: e.Message}
	case DoneEvent:
		w = wireEvent{Type: "done"}
	}

	payload, _ := json.Marshal(w)
	return []byte("data: " + string(payload) + "\n\n")
}
