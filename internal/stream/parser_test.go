// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(s string) string {
	return "data: " + s + "\n\n"
}

func TestFrameParser_SingleFrame(t *testing.T) {
	p := NewFrameParser()

	events := p.Feed(frame(`{"type":"status","content":"Thinking"}`))
	require.Len(t, events, 1)
	assert.Equal(t, StatusEvent{Text: "Thinking"}, events[0])
	assert.Empty(t, p.Pending())
}

func TestFrameParser_MultipleFramesOneChunk(t *testing.T) {
	p := NewFrameParser()

	chunk := frame(`{"type":"chunk","content":"Here"}`) +
		frame(`{"type":"chunk","content":" you go"}`) +
		frame(`{"type":"done"}`)

	events := p.Feed(chunk)
	require.Len(t, events, 3)
	assert.Equal(t, ChunkEvent{Text: "Here"}, events[0])
	assert.Equal(t, ChunkEvent{Text: " you go"}, events[1])
	assert.Equal(t, DoneEvent{}, events[2])
}

func TestFrameParser_SplitAcrossChunks(t *testing.T) {
	p := NewFrameParser()

	// Frame split at an arbitrary byte boundary, including inside the JSON.
	full := frame(`{"type":"html","content":"<p>hi</p>","version":2}`)
	for _, cut := range []int{1, 5, 12, len(full) - 3} {
		p := NewFrameParser()
		events := p.Feed(full[:cut])
		assert.Empty(t, events, "cut at %d", cut)
		events = p.Feed(full[cut:])
		require.Len(t, events, 1, "cut at %d", cut)
		assert.Equal(t, HTMLEvent{Content: "<p>hi</p>", Version: 2}, events[0])
	}

	// Boundary split exactly between the two newlines.
	events := p.Feed("data: {\"type\":\"done\"}\n")
	assert.Empty(t, events)
	events = p.Feed("\n")
	require.Len(t, events, 1)
	assert.Equal(t, DoneEvent{}, events[0])
}

func TestFrameParser_MalformedFramesDropped(t *testing.T) {
	p := NewFrameParser()

	chunk := frame(`{"type":"status","content":"ok"}`) +
		frame(`{not valid json`) +
		"no payload line here\n\n" +
		frame(`{"type":"chunk","content":"x"}`) +
		frame(`{"type":"done"}`)

	events := p.Feed(chunk)
	require.Len(t, events, 3)
	assert.Equal(t, StatusEvent{Text: "ok"}, events[0])
	assert.Equal(t, ChunkEvent{Text: "x"}, events[1])
	assert.Equal(t, DoneEvent{}, events[2])
}

func TestFrameParser_UnknownTypeDropped(t *testing.T) {
	p := NewFrameParser()

	events := p.Feed(frame(`{"type":"telemetry","content":"ignored"}`) + frame(`{"type":"done"}`))
	require.Len(t, events, 1)
	assert.Equal(t, DoneEvent{}, events[0])
}

func TestFrameParser_ExtraLinesInFrame(t *testing.T) {
	p := NewFrameParser()

	// SSE-style frames may carry event/id lines before the payload.
	events := p.Feed("event: message\nid: 7\ndata: {\"type\":\"summary\",\"content\":\"Created a page\"}\n\n")
	require.Len(t, events, 1)
	assert.Equal(t, SummaryEvent{Text: "Created a page"}, events[0])
}

func TestFrameParser_PendingAfterTruncation(t *testing.T) {
	p := NewFrameParser()

	p.Feed("data: {\"type\":\"chunk\",\"cont")
	assert.NotEmpty(t, p.Pending())
}

func TestFrameParser_OrderPreserved(t *testing.T) {
	p := NewFrameParser()

	chunk := frame(`{"type":"status","content":"a"}`) +
		frame(`{"type":"status","content":"b"}`) +
		frame(`{"type":"status","content":"c"}`)

	events := p.Feed(chunk)
	require.Len(t, events, 3)
	for i, want := range []string{"a", "b", "c"} {
		assert.Equal(t, StatusEvent{Text: want}, events[i])
	}
}

func TestEncodeEvent_RoundTrip(t *testing.T) {
	cases := []Event{
		StatusEvent{Text: "Thinking"},
		ChunkEvent{Text: "Here"},
		HTMLEvent{Content: "<p>hi</p>", Version: 4},
		SummaryEvent{Text: "Created a page"},
		ErrorEvent{Message: "model overloaded"},
		DoneEvent{},
	}

	p := NewFrameParser()
	for _, ev := range cases {
		events := p.Feed(string(EncodeEvent(ev)))
		require.Len(t, events, 1)
		assert.Equal(t, ev, events[0])
	}
}
