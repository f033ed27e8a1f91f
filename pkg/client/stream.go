// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/quillworks/quill/internal/stream"
)

// Generate opens a streaming generation request for a session and returns
// a [GenerationStream] delivering the server's events in wire order.
//
// The request carries no deadline: the stream ends on a done event, on
// EOF, or when ctx is cancelled. Cancelling ctx aborts the in-flight read
// promptly.
func (c *Client) Generate(ctx context.Context, sessionID string, req GenerateRequest) (*GenerationStream, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat-stream/"+sessionID, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.setHeaders(httpReq)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		return nil, fmt.Errorf("POST /chat-stream/%s: %w", sessionID, ErrUnauthorized)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("stream request failed with status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	return &GenerationStream{
		body:   resp.Body,
		parser: stream.NewFrameParser(),
		ctx:    ctx,
	}, nil
}

// GenerationStream is one generation's event stream. It wraps the response
// body and a single-use frame parser; a fresh GenerationStream is created
// per generation request.
//
// GenerationStream is not safe for concurrent use.
type GenerationStream struct {
	body   io.ReadCloser
	parser *stream.FrameParser
	ctx    context.Context
	queue  []stream.Event
	buf    [4096]byte
}

// Recv returns the next decoded event.
//
// It returns io.EOF when the server closes the stream, and the context's
// error when the request context is cancelled. Malformed frames are
// dropped by the parser and never surface here.
func (gs *GenerationStream) Recv() (stream.Event, error) {
	for {
		if err := gs.ctx.Err(); err != nil {
			return nil, err
		}

		if len(gs.queue) > 0 {
			ev := gs.queue[0]
			gs.queue = gs.queue[1:]
			return ev, nil
		}

		n, err := gs.body.Read(gs.buf[:])
		if n > 0 {
			gs.queue = gs.parser.Feed(string(gs.buf[:n]))
		}
		if err != nil {
			if len(gs.queue) > 0 {
				continue
			}
			// The body read fails with a transport error when the context is
			// cancelled mid-read; report the cancellation, not the read error.
			if ctxErr := gs.ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("stream read: %w", err)
		}
	}
}

// Close releases the underlying response body. Safe to call more than once.
func (gs *GenerationStream) Close() error {
	return gs.body.Close()
}
