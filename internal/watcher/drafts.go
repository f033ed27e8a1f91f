// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package watcher persists manual document edits made through the local
// filesystem. Each document in the watched drafts directory is a single
// <documentID>.html file; a settled write to one becomes a new version.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/quillworks/quill/internal/events"
)

// EditSaver persists a manual edit as a new document version. Busy reports
// whether a generation is in flight; edits are held back until it finishes
// so a draft save never races a streaming document update.
type EditSaver interface {
	SaveEdit(ctx context.Context, documentID, content string) (int, error)
	Busy() bool
}

// DraftsWatcher watches a drafts directory and saves edited documents.
type DraftsWatcher struct {
	mu        sync.Mutex
	dir       string
	saver     EditSaver
	bus       events.EventBus
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	closed    bool
	closeCh   chan struct{}
	wg        sync.WaitGroup
}

// NewDraftsWatcher creates a watcher over dir, creating it if missing.
func NewDraftsWatcher(dir string, saver EditSaver, bus events.EventBus, debounce time.Duration) (*DraftsWatcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create drafts directory: %w", err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsWatcher.Add(dir); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch drafts directory: %w", err)
	}

	w := &DraftsWatcher{
		dir:       dir,
		saver:     saver,
		bus:       bus,
		watcher:   fsWatcher,
		debouncer: NewDebouncer(debounce),
		closeCh:   make(chan struct{}),
	}

	w.wg.Add(1)
	go w.processEvents()

	return w, nil
}

// Dir returns the watched drafts directory.
func (w *DraftsWatcher) Dir() string {
	return w.dir
}

// SetDebounce sets the debounce duration.
func (w *DraftsWatcher) SetDebounce(d time.Duration) {
	w.debouncer.SetDuration(d)
}

// Close stops the watcher and releases resources.
func (w *DraftsWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	w.debouncer.Stop()
	w.watcher.Close()
	w.wg.Wait()

	return nil
}

func (w *DraftsWatcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			_ = err
		}
	}
}

func (w *DraftsWatcher) handleEvent(event fsnotify.Event) {
	// Chmod fires on plain opens; only content changes matter.
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	docID, ok := documentID(event.Name)
	if !ok {
		return
	}

	w.debouncer.Debounce(docID, func() {
		w.saveDraft(docID, event.Name)
	})
}

func (w *DraftsWatcher) saveDraft(docID, path string) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	// Hold the edit back while a generation is streaming; the debounce
	// interval doubles as the retry interval.
	if w.saver.Busy() {
		w.debouncer.Debounce(docID, func() {
			w.saveDraft(docID, path)
		})
		return
	}

	content, err := os.ReadFile(path)
	if err != nil {
		// Removed between the event and the save; nothing to persist.
		return
	}

	number, err := w.saver.SaveEdit(context.Background(), docID, string(content))
	if err != nil {
		// Unknown document or server rejection; the draft file stays on
		// disk and the next write retries.
		return
	}

	w.publish(events.EventVersionSaved, map[string]interface{}{
		"document": docID,
		"version":  number,
		"source":   "drafts",
	})
}

func (w *DraftsWatcher) publish(eventType string, payload map[string]interface{}) {
	if w.bus == nil {
		return
	}
	w.bus.Publish(context.Background(), events.Event{
		Type:    eventType,
		Payload: payload,
	})
}

// documentID extracts the document ID from a draft path. Only visible
// .html files qualify; editor temp files are ignored.
func documentID(path string) (string, bool) {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return "", false
	}
	if filepath.Ext(base) != ".html" {
		return "", false
	}
	id := strings.TrimSuffix(base, ".html")
	if id == "" {
		return "", false
	}
	return id, true
}
