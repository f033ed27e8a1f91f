// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package client provides a Go client library for the Quill API.
//
// Quill is an AI-driven document-generation service: each session holds a
// conversation and the documents it produced, and every document carries an
// append-only version history. This client provides typed access to the
// session, document and version endpoints, plus the streaming generation
// call.
//
// # Getting Started
//
// Create a client pointing to your Quill server:
//
//	c := client.New("http://localhost:8080")
//
// The client provides access to different API resources through sub-clients:
//
//	// Create a session
//	sess, err := c.Sessions.Create(ctx, "Q3 report")
//
//	// Switch the active document
//	err = c.Documents.Switch(ctx, sess.ID, docID)
//
//	// Restore an old version
//	res, err := c.Versions.Restore(ctx, docID, 2)
//
// # Streaming Generation
//
// Generate opens a streaming request and returns a [GenerationStream]:
//
//	gs, err := c.Generate(ctx, sess.ID, client.GenerateRequest{Message: "write an intro"})
//	if err != nil { ... }
//	defer gs.Close()
//	for {
//	    ev, err := gs.Recv()
//	    if err != nil { break }
//	    // type-switch on ev
//	}
//
// # Error Handling
//
// API errors are returned as *APIError values, which include an error code
// and message. An unauthorized response from any endpoint is returned as
// [ErrUnauthorized] (wrapped), which callers treat as a global sign-out
// signal; the client never retries it.
//
// # Context Support
//
// All API methods accept a context.Context for cancellation and timeouts.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrUnauthorized is returned when the server answers any request with an
// unauthorized status. Consumers translate it into a session-wide sign-out;
// the client does not retry.
var ErrUnauthorized = errors.New("unauthorized")

// Client is a Quill API client.
//
// A Client provides access to the Quill API through resource-specific
// sub-clients. Use [New] to create a Client instance.
//
// The Client is safe for concurrent use by multiple goroutines.
type Client struct {
	baseURL    string
	version    string
	token      string
	httpClient *http.Client

	// streamClient issues the generation request. It carries no overall
	// timeout: a stream stays open until done, EOF or cancellation, and a
	// stream that never finishes is ended only by the user.
	streamClient *http.Client

	// Sessions provides access to session operations.
	// A session is a conversational workspace holding documents.
	Sessions *SessionClient

	// Documents provides access to document operations.
	// Documents are the generated artifacts inside a session.
	Documents *DocumentClient

	// Versions provides access to version history operations.
	// Versions are append-only content snapshots of a document.
	Versions *VersionClient

	// Events provides access to the server's event log.
	Events *EventClient
}

// Option configures a [Client]. Options are passed to [New] to customize
// client behavior.
type Option func(*Client)

// New creates a new Quill API client with the given base URL and options.
//
// The baseURL should be the root URL of the Quill server (e.g.,
// "http://localhost:8080"). Any trailing slash is automatically removed.
//
// By default, the client uses:
//   - The latest API version ([LatestVersion])
//   - A 30-second HTTP timeout for non-streaming requests
//
// Use options like [WithVersion], [WithToken], [WithTimeout], or
// [WithHTTPClient] to customize.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		version: LatestVersion,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		streamClient: &http.Client{},
	}

	for _, opt := range opts {
		opt(c)
	}

	// Initialize resource clients
	c.Sessions = &SessionClient{c: c}
	c.Documents = &DocumentClient{c: c}
	c.Versions = &VersionClient{c: c}
	c.Events = &EventClient{c: c}

	return c
}

// WithVersion sets the API version to use for all requests.
//
// Quill uses date-based versioning (e.g., "2026-06-02"). Pinning to a
// specific version ensures API compatibility as the server evolves. The
// version is sent via the Quill-Version HTTP header on each request.
func WithVersion(v string) Option {
	return func(c *Client) {
		c.version = v
	}
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient sets a custom HTTP client for non-streaming requests.
//
// This is useful for advanced configurations like custom TLS settings or
// proxy configuration. The streaming client is unaffected.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the HTTP client timeout for non-streaming requests.
//
// The default timeout is 30 seconds. Generation streams are exempt: they
// have no deadline and end only on done, EOF or cancellation.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// Version returns the API version being used.
func (c *Client) Version() string {
	return c.version
}

// BaseURL returns the base URL of the API.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// apiResponse is the standard API response envelope.
type apiResponse struct {
	Data  json.RawMessage `json:"data"`
	Error *APIError       `json:"error"`
}

// APIError represents an error response from the Quill API.
//
// API errors include a machine-readable Code and a human-readable Message.
// Some errors may include additional Details for debugging.
//
// Common error codes include:
//   - "not_found": The requested resource does not exist
//   - "invalid_request": The request was malformed or invalid
//   - "conflict": The operation conflicts with current state
//   - "internal_error": An unexpected server error occurred
type APIError struct {
	// Code is a machine-readable error code (e.g., "not_found", "invalid_request").
	Code string `json:"code"`

	// Message is a human-readable description of the error.
	Message string `json:"message"`

	// Details contains additional error information, if available.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// get performs a GET request to the given path.
func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// post performs a POST request to the given path with no body.
func (c *Client) post(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, path, nil)
}

// postJSON performs a POST request with a JSON body.
func (c *Client) postJSON(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(data))
}

// delete performs a DELETE request to the given path.
func (c *Client) delete(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

// do performs an HTTP request and parses the response.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (json.RawMessage, error) {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.setHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return c.parseResponse(resp)
}

// setHeaders sets the common request headers.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Quill-Version", c.version)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// parseResponse reads and parses an API response.
func (c *Client) parseResponse(resp *http.Response) (json.RawMessage, error) {
	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%s %s: %w", resp.Request.Method, resp.Request.URL.Path, ErrUnauthorized)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// Try to parse as standard envelope
	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		// If we can't parse it and status is bad, return error
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
		}
		// Return raw body for non-envelope responses
		return respBody, nil
	}

	// Check for error in envelope
	if apiResp.Error != nil {
		return nil, apiResp.Error
	}

	// Check for error embedded in data (some endpoints do this)
	if resp.StatusCode >= 400 {
		var errData APIError
		if err := json.Unmarshal(apiResp.Data, &errData); err == nil && errData.Code != "" {
			return nil, &errData
		}
	}

	return apiResp.Data, nil
}
