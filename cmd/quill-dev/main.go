// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/quillworks/quill/internal/app"
	"github.com/quillworks/quill/internal/config"
)

var (
	version = "0.9"
)

func main() {
	// Check for subcommands before flag parsing
	if len(os.Args) > 1 && os.Args[1] == "init" {
		if err := runInit(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	var (
		configPath  string
		host        string
		port        int
		token       string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "Path to config file (default: auto-detect)")
	flag.StringVar(&configPath, "c", "", "Path to config file (short)")
	flag.StringVar(&host, "host", "", "HTTP server host (overrides config)")
	flag.IntVar(&port, "port", 0, "HTTP server port (overrides config)")
	flag.StringVar(&token, "token", "", "Require this bearer token on every request (overrides config)")
	flag.BoolVar(&showVersion, "version", false, "Show version")
	flag.BoolVar(&showVersion, "v", false, "Show version (short)")
	flag.Parse()

	if showVersion {
		fmt.Printf("quill-dev %s\n", version)
		os.Exit(0)
	}

	// Find config file if not specified
	if configPath == "" {
		loader := config.NewLoader()
		found, err := loader.FindConfig()
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		configPath = found
	}

	log.Printf("Using config: %s", configPath)

	application, err := app.New(app.Options{
		ConfigPath: configPath,
		Host:       host,
		Port:       port,
		Token:      token,
		Version:    version,
	})
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}

	ctx := context.Background()
	if err := application.Run(ctx); err != nil {
		log.Fatalf("App error: %v", err)
	}
}

// runInit handles the "quill-dev init" command
func runInit() error {
	initFlags := flag.NewFlagSet("init", flag.ExitOnError)
	showHelp := initFlags.Bool("help", false, "Show help for init command")
	initFlags.BoolVar(showHelp, "h", false, "Show help for init command")
	initFlags.Parse(os.Args[2:])

	if *showHelp {
		fmt.Println(`Usage: quill-dev init [options]

Create a new quill.hjson configuration file in the current directory.

This command walks you through setting up a Quill configuration with
interactive prompts. The generated file is fully commented to help you
understand and customize all available options.

Options:
  -h, -help    Show this help message

The command will ask about:
  - Project name (defaults to current directory name)
  - Server port (defaults to 8080)
  - Bearer token (optional, for exercising the 401 signout path)

Examples:
  quill-dev init            Create config with interactive prompts
  cd myproject && quill-dev init

After running init:
  1. Review and edit quill.hjson as needed
  2. Run: ./quill-dev
  3. Point the CLI at it: QUILL_API=http://localhost:8080 quill chat`)
		return nil
	}

	configFile := "quill.hjson"

	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("%s already exists; remove it first or use a different directory", configFile)
	}

	reader := bufio.NewReader(os.Stdin)

	fmt.Println("Quill Configuration Setup")
	fmt.Println("=========================")
	fmt.Println()
	fmt.Println("This will create a quill.hjson configuration file in the current directory.")
	fmt.Println("Press Enter to accept defaults shown in [brackets].")
	fmt.Println()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	defaultName := filepath.Base(cwd)

	projectName := prompt(reader, "Project name", defaultName)

	portStr := prompt(reader, "Server port", "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = 8080
	}

	token := prompt(reader, "Bearer token (empty disables auth)", "")

	configContent := generateConfig(projectName, port, token)

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Println()
	fmt.Printf("Created %s\n", configFile)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Review and edit quill.hjson as needed")
	fmt.Println("  2. Run: ./quill-dev")
	fmt.Println("  3. Chat: QUILL_API=http://localhost:" + strconv.Itoa(port) + " quill chat")
	fmt.Println()

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}

// escapeHJSONValue escapes a string for safe inclusion in an HJSON double-quoted value.
func escapeHJSONValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

func generateConfig(projectName string, port int, token string) string {
	var sb strings.Builder

	sb.WriteString(`{
  // =============================================================================
  // Quill Configuration
  // =============================================================================
  //
  // This is an HJSON file (JSON with comments and relaxed syntax).
  // Used by both the dev server (quill-dev) and the CLI (quill).

  version: "1"

  // ---------------------------------------------------------------------------
  // Project Metadata
  // ---------------------------------------------------------------------------
  project: {
    name: "`)
	sb.WriteString(escapeHJSONValue(projectName))
	sb.WriteString(`"
  }

  // ---------------------------------------------------------------------------
  // Dev Server
  // ---------------------------------------------------------------------------
  server: {
    // Host to bind to (use "0.0.0.0" to allow remote access)
    host: "127.0.0.1"

    // Port for the API
    port: `)
	sb.WriteString(strconv.Itoa(port))
	sb.WriteString(`
`)
	if token != "" {
		sb.WriteString(`
    // Bearer token required on every request; requests without it get 401
    token: "`)
		sb.WriteString(escapeHJSONValue(token))
		sb.WriteString(`"
`)
	} else {
		sb.WriteString(`
    // Uncomment to require a bearer token on every request:
    // token: "dev-secret"
`)
	}
	sb.WriteString(`  }

  // ---------------------------------------------------------------------------
  // CLI Client
  // ---------------------------------------------------------------------------
  //
  // How the quill CLI reaches the server. QUILL_API and QUILL_TOKEN
  // environment variables override these.
  client: {
    api: "http://127.0.0.1:`)
	sb.WriteString(strconv.Itoa(port))
	sb.WriteString(`"

    // Pin the CLI to an API version (date-based). Defaults to latest.
    // version: "2026-06-02"
  }

  // ---------------------------------------------------------------------------
  // Store
  // ---------------------------------------------------------------------------
  //
  // SQLite database holding sessions, documents, versions and messages.
  store: {
    path: "quill.db"
  }

  // ---------------------------------------------------------------------------
  // Drafts
  // ---------------------------------------------------------------------------
  //
  // Directory watched by "quill watch". Editing <documentID>.html there
  // saves the file as a new document version once writes settle.
  drafts: {
    dir: "drafts"
    debounce: "100ms"
  }

  // ---------------------------------------------------------------------------
  // Events
  // ---------------------------------------------------------------------------
  events: {
    history: {
      max_events: 10000
      max_age: "1h"
    }
  }

  // ---------------------------------------------------------------------------
  // Generation
  // ---------------------------------------------------------------------------
  //
  // The dev server streams scripted generations; these control their shape.
  generation: {
    // Model name reported on generated versions
    model: "quill-dev-1"

    // Pause between streamed chunks (0 for instant streams)
    chunk_delay: "25ms"
  }

  // ---------------------------------------------------------------------------
  // Logging
  // ---------------------------------------------------------------------------
  logging: {
    level: "info"
    format: "json"
  }
}
`)

	return sb.String()
}
