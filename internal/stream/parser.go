// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"strings"
)

// dataMarker prefixes the payload line inside a frame.
const dataMarker = "data:"

// FrameParser converts raw body chunks into decoded events. The only state
// it holds is the carry-over buffer: the trailing partial frame left after
// the last Feed. A parser is single-use; create a fresh one per generation
// stream.
type FrameParser struct {
	buf string
}

// NewFrameParser creates a parser with an empty carry-over buffer.
func NewFrameParser() *FrameParser {
	return &FrameParser{}
}

// Feed appends chunk to the carry-over buffer and returns every event whose
// frame completed with this chunk, in wire order. Frames with no payload
// line, or whose payload does not decode, are dropped; they never stop
// processing of the frames after them.
func (p *FrameParser) Feed(chunk string) []Event {
	p.buf += chunk

	segments := strings.Split(p.buf, "\n\n")
	// The final segment is an incomplete frame (often ""); keep it for the
	// next chunk.
	p.buf = segments[len(segments)-1]

	var out []Event
	for _, seg := range segments[:len(segments)-1] {
		if ev, ok := parseFrame(seg); ok {
			out = append(out, ev)
		}
	}
	return out
}

// Pending returns the current carry-over buffer. A non-empty value after
// the stream closes means the server truncated a frame mid-write.
func (p *FrameParser) Pending() string {
	return p.buf
}

// parseFrame extracts and decodes the payload of one complete frame.
func parseFrame(frame string) (Event, bool) {
	for _, line := range strings.Split(frame, "\n") {
		if !strings.HasPrefix(line, dataMarker) {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, dataMarker))
		if payload == "" {
			return nil, false
		}
		ev, err := decodeEvent([]byte(payload))
		if err != nil {
			return nil, false
		}
		return ev, true
	}
	return nil, false
}
