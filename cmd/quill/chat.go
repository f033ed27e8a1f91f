// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/quillworks/quill/internal/engine"
	"github.com/quillworks/quill/internal/events"
	"github.com/quillworks/quill/pkg/client"
)

// cmdChat runs an interactive generation session. Each line of input is
// one generation; Ctrl-C during a generation cancels it, a second Ctrl-C
// at the prompt exits.
func cmdChat(args []string) error {
	var sessionID, title string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-session":
			if i+1 < len(args) {
				sessionID = args[i+1]
				i++
			}
		case "-title":
			if i+1 < len(args) {
				title = args[i+1]
				i++
			}
		}
	}

	bus := events.NewMemoryEventBus(events.MemoryBusConfig{
		HistoryMaxEvents: 1000,
		HistoryMaxAge:    time.Hour,
	})
	defer bus.Close()

	ws := engine.NewWorkspace(apiClient, bus, func(err error) {
		fmt.Fprintf(os.Stderr, "\nerror: %v\n", err)
	})

	ctx := context.Background()
	if sessionID != "" {
		if err := ws.Open(ctx, sessionID); err != nil {
			return err
		}
		fmt.Printf("Resumed session %s\n", sessionID)
		printTimeline(ws.Messages())
	} else {
		if title == "" {
			title = "Untitled session"
		}
		sess, err := ws.NewSession(ctx, title)
		if err != nil {
			return err
		}
		fmt.Printf("Created session %s (%q)\n", sess.ID, sess.Title)
	}
	fmt.Println(`Type an instruction and press Enter. "exit" or Ctrl-D quits.`)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		if err := runGeneration(ws, line, sigCh); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
}

// runGeneration sends one message and renders progress until the
// generation terminates. Ctrl-C cancels it.
func runGeneration(ws *engine.Workspace, message string, sigCh <-chan os.Signal) error {
	done := make(chan error, 1)
	go func() {
		done <- ws.Send(context.Background(), message, engine.SendOptions{})
	}()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	var lastStatus string
	var printed int

	render := func() {
		state := ws.State()
		if state.Status != "" && state.Status != lastStatus {
			if printed > 0 {
				fmt.Println()
				printed = 0
			}
			fmt.Printf("[%s]\n", state.Status)
			lastStatus = state.Status
		}
		if len(state.Accumulated) > printed {
			fmt.Print(state.Accumulated[printed:])
			printed = len(state.Accumulated)
		}
	}

	for {
		select {
		case err := <-done:
			render()
			if printed > 0 {
				fmt.Println()
			}
			if err != nil {
				return err
			}
			printOutcome(ws)
			return nil

		case <-sigCh:
			fmt.Println("\nCancelling...")
			ws.Cancel()

		case <-ticker.C:
			render()
		}
	}
}

// printOutcome shows the committed result of a finished generation. The
// cancelled indicator was already rendered as a status line.
func printOutcome(ws *engine.Workspace) {
	state := ws.State()
	if state.Status == engine.StatusCancelled {
		return
	}

	msgs := ws.Messages()
	if len(msgs) > 0 && msgs[len(msgs)-1].Role == client.RoleAssistant {
		fmt.Printf("assistant: %s\n", msgs[len(msgs)-1].Content)
	}

	snap := ws.Documents()
	if snap.ActiveDocumentID != "" {
		fmt.Printf("(document %s at version %d)\n", snap.ActiveDocumentID, snap.ContentVersion)
	}
}

func printTimeline(msgs []client.ChatMessage) {
	for _, m := range msgs {
		fmt.Printf("%s: %s\n", m.Role, m.Content)
	}
}
