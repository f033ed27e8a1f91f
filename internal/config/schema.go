// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config handles HJSON configuration loading and validation.
package config

import "time"

// Config is the root configuration structure for Quill.
type Config struct {
	Version    string           `json:"version"`
	Project    ProjectConfig    `json:"project"`
	Server     ServerConfig     `json:"server"`
	Client     ClientConfig     `json:"client"`
	Store      StoreConfig      `json:"store"`
	Drafts     DraftsConfig     `json:"drafts"`
	Events     EventsConfig     `json:"events"`
	Generation GenerationConfig `json:"generation"`
	Logging    LoggingConfig    `json:"logging"`
}

// ProjectConfig contains project metadata.
type ProjectConfig struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ServerConfig configures the dev server's HTTP listener.
type ServerConfig struct {
	Port  int    `json:"port"`
	Host  string `json:"host"`
	Token string `json:"token"` // Optional bearer token; requests without it get 401
}

// ClientConfig configures how the CLI reaches the Quill server.
type ClientConfig struct {
	API     string `json:"api"`     // Base URL, e.g. "http://127.0.0.1:8080"
	Token   string `json:"token"`   // Bearer token sent with every request
	Version string `json:"version"` // API version pin (date-based)
}

// StoreConfig configures the dev server's SQLite store.
type StoreConfig struct {
	Path string `json:"path"`
}

// DraftsConfig configures the manual-edit drafts watcher.
type DraftsConfig struct {
	Dir      string `json:"dir"`      // Directory watched for <documentID>.html edits
	Debounce string `json:"debounce"` // Settle time before an edit is saved
}

// EventsConfig configures the event system.
type EventsConfig struct {
	History EventHistoryConfig `json:"history"`
}

// EventHistoryConfig configures event history retention.
type EventHistoryConfig struct {
	MaxEvents int    `json:"max_events"`
	MaxAge    string `json:"max_age"`
}

// GenerationConfig configures the dev server's scripted generations.
type GenerationConfig struct {
	Model      string `json:"model"`       // Model name reported on versions
	ChunkDelay string `json:"chunk_delay"` // Pause between streamed chunks
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `json:"level"`  // "debug", "info", "warn", "error"
	Format string `json:"format"` // "json" or "text"
}

// ParseDuration parses a duration string, returning defaultVal on empty or
// invalid input.
func ParseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}
