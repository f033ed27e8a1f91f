// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// quill is a command-line client for a Quill document-generation server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/quillworks/quill/internal/config"
	"github.com/quillworks/quill/pkg/client"
)

var (
	version    = "0.9"
	apiURL     = "http://localhost:8080"
	apiToken   = ""
	apiVersion = ""
	jsonOutput = false

	// API client instance
	apiClient *client.Client
)

func main() {
	loadClientConfig()

	// Environment overrides
	if env := os.Getenv("QUILL_API"); env != "" {
		apiURL = strings.TrimSuffix(env, "/")
	}
	if env := os.Getenv("QUILL_TOKEN"); env != "" {
		apiToken = env
	}

	// Parse global flags and filter them out
	var filteredArgs []string
	for _, arg := range os.Args[1:] {
		if arg == "-json" {
			jsonOutput = true
		} else {
			filteredArgs = append(filteredArgs, arg)
		}
	}

	var opts []client.Option
	if apiToken != "" {
		opts = append(opts, client.WithToken(apiToken))
	}
	if apiVersion != "" {
		opts = append(opts, client.WithVersion(apiVersion))
	}
	apiClient = client.New(apiURL, opts...)

	if len(filteredArgs) < 1 {
		printUsage()
		os.Exit(1)
	}

	cmd := filteredArgs[0]
	args := filteredArgs[1:]

	var err error
	switch cmd {
	case "chat":
		err = cmdChat(args)
	case "sessions":
		err = cmdSessions(args)
	case "docs":
		err = cmdDocs(args)
	case "versions":
		err = cmdVersions(args)
	case "save":
		err = cmdSave(args)
	case "watch":
		err = cmdWatch(args)
	case "events":
		err = cmdEvents(args)
	case "version", "-v", "--version":
		fmt.Printf("quill %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadClientConfig picks up client settings from quill.hjson when one is
// present. Environment variables and flags still win.
func loadClientConfig() {
	loader := config.NewLoader()
	path, err := loader.FindConfig()
	if err != nil {
		return
	}
	cfg, err := loader.LoadWithDefaults(context.Background(), path)
	if err != nil {
		return
	}
	if cfg.Client.API != "" {
		apiURL = strings.TrimSuffix(cfg.Client.API, "/")
	}
	apiToken = cfg.Client.Token
	apiVersion = cfg.Client.Version
}

func printUsage() {
	fmt.Println(`quill - Command-line client for a Quill server

Usage:
  quill [-json] <command> [arguments]

Global Flags:
  -json          Output in JSON format

Environment:
  QUILL_API      Base URL of the Quill API (default: http://localhost:8080,
                 or client.api from quill.hjson when present)
  QUILL_TOKEN    Bearer token sent with every request

Commands:
  chat [options]           Interactive generation session
    -session <id>          Resume an existing session (default: new session)
    -title <title>         Title for a new session
    Ctrl-C cancels an in-flight generation; a second Ctrl-C exits.

  sessions list            List sessions
  sessions rename <id> <title>  Rename a session
  sessions rm <id>         Delete a session

  docs list <session>      List a session's documents
  docs switch <session> <document>  Make a document active
  docs rename <document> <title>    Rename a document
  docs rm <document>       Delete a document

  versions list <document> Show a document's version history
  versions restore <document> <number>  Restore an old version as a new one

  save <document> <file>   Save a local HTML file as a new version

  watch <session> [options]  Watch a drafts directory for manual edits
    -dir <dir>             Drafts directory (default: drafts)
    Edits to <documentID>.html become new versions once writes settle.

  events [options]         Show recent server events
    -n N                   Number of events (default: 50)
    -type <pattern>        Filter by type (e.g. generation.*)
    -session <id>          Filter by session

  version                  Show version
  help                     Show this help`)
}

// printJSON outputs any value as formatted JSON
func printJSON(v interface{}) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}
