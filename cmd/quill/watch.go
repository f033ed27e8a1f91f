// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quillworks/quill/internal/config"
	"github.com/quillworks/quill/internal/engine"
	"github.com/quillworks/quill/internal/events"
	"github.com/quillworks/quill/internal/watcher"
)

// cmdWatch binds a workspace to a session and mirrors manual edits from a
// drafts directory into document versions. Saves are held back while a
// generation is streaming for the session.
func cmdWatch(args []string) error {
	if len(args) < 1 || args[0] == "-dir" {
		return fmt.Errorf("usage: quill watch <session> [-dir <dir>]")
	}
	sessionID := args[0]

	dir := "drafts"
	debounce := 100 * time.Millisecond
	loader := config.NewLoader()
	if path, err := loader.FindConfig(); err == nil {
		if cfg, err := loader.LoadWithDefaults(context.Background(), path); err == nil {
			dir = cfg.Drafts.Dir
			debounce = config.ParseDuration(cfg.Drafts.Debounce, debounce)
		}
	}
	for i := 1; i < len(args); i++ {
		if args[i] == "-dir" && i+1 < len(args) {
			dir = args[i+1]
			i++
		}
	}

	bus := events.NewMemoryEventBus(events.MemoryBusConfig{
		HistoryMaxEvents: 1000,
		HistoryMaxAge:    time.Hour,
	})
	defer bus.Close()

	bus.Subscribe(events.EventVersionSaved, func(_ context.Context, e events.Event) error {
		fmt.Printf("Saved %v as version %v\n", e.Payload["document"], e.Payload["version"])
		return nil
	})

	ws := engine.NewWorkspace(apiClient, bus, func(err error) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	})
	if err := ws.Open(context.Background(), sessionID); err != nil {
		return err
	}

	w, err := watcher.NewDraftsWatcher(dir, ws, bus, debounce)
	if err != nil {
		return err
	}
	defer w.Close()

	fmt.Printf("Watching %s for edits to <documentID>.html (Ctrl-C to stop)\n", w.Dir())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	fmt.Println("\nStopping")
	return nil
}
