// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Version: "1",
		Project: ProjectConfig{Name: "quill-demo"},
	}
}

func TestValidator_Valid(t *testing.T) {
	cfg := validConfig()
	applyDefaults(cfg)
	assert.NoError(t, NewValidator().Validate(cfg))
}

func TestValidator_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "missing version",
			mutate: func(c *Config) { c.Version = "" },
			field:  "version",
		},
		{
			name:   "missing project name",
			mutate: func(c *Config) { c.Project.Name = "" },
			field:  "project.name",
		},
		{
			name:   "port out of range",
			mutate: func(c *Config) { c.Server.Port = 70000 },
			field:  "server.port",
		},
		{
			name:   "bad api url",
			mutate: func(c *Config) { c.Client.API = "localhost:8080" },
			field:  "client.api",
		},
		{
			name:   "bad logging level",
			mutate: func(c *Config) { c.Logging.Level = "verbose" },
			field:  "logging.level",
		},
		{
			name:   "bad logging format",
			mutate: func(c *Config) { c.Logging.Format = "xml" },
			field:  "logging.format",
		},
		{
			name:   "bad debounce",
			mutate: func(c *Config) { c.Drafts.Debounce = "soon" },
			field:  "drafts.debounce",
		},
		{
			name:   "negative debounce",
			mutate: func(c *Config) { c.Drafts.Debounce = "-5ms" },
			field:  "drafts.debounce",
		},
		{
			name:   "bad history max age",
			mutate: func(c *Config) { c.Events.History.MaxAge = "forever" },
			field:  "events.history.max_age",
		},
		{
			name:   "bad chunk delay",
			mutate: func(c *Config) { c.Generation.ChunkDelay = "quick" },
			field:  "generation.chunk_delay",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := NewValidator().Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestValidator_MaxAgeInDays(t *testing.T) {
	cfg := validConfig()
	cfg.Events.History.MaxAge = "7d"
	assert.NoError(t, NewValidator().Validate(cfg))
}

func TestValidator_CollectsAllErrors(t *testing.T) {
	cfg := &Config{}
	err := NewValidator().Validate(cfg)
	require.Error(t, err)

	// Both missing fields are reported in one pass.
	assert.Equal(t, 2, strings.Count(err.Error(), "is required"))
}
