// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/quillworks/quill/pkg/client"
)

func cmdSessions(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: quill sessions list|rename|rm")
	}

	ctx := context.Background()

	switch args[0] {
	case "list":
		sessions, err := apiClient.Sessions.List(ctx)
		if err != nil {
			return err
		}

		if jsonOutput {
			printJSON(sessions)
			return nil
		}

		fmt.Printf("%-38s %-30s %-20s %s\n", "ID", "TITLE", "CREATED", "DOCS")
		fmt.Println(strings.Repeat("-", 100))
		for _, s := range sessions {
			fmt.Printf("%-38s %-30s %-20s %d\n",
				s.ID,
				truncate(s.Title, 30),
				s.CreatedAt.Format("2006-01-02 15:04:05"),
				s.DocumentCount,
			)
		}
		return nil

	case "rename":
		if len(args) < 3 {
			return fmt.Errorf("usage: quill sessions rename <id> <title>")
		}
		if err := apiClient.Sessions.Rename(ctx, args[1], strings.Join(args[2:], " ")); err != nil {
			return err
		}
		if !jsonOutput {
			fmt.Println("Session renamed")
		}
		return nil

	case "rm":
		if len(args) < 2 {
			return fmt.Errorf("usage: quill sessions rm <id>")
		}
		if err := apiClient.Sessions.Delete(ctx, args[1]); err != nil {
			return err
		}
		if !jsonOutput {
			fmt.Println("Session deleted")
		}
		return nil

	default:
		return fmt.Errorf("unknown sessions subcommand: %s", args[0])
	}
}

func cmdDocs(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: quill docs list|switch|rename|rm")
	}

	ctx := context.Background()

	switch args[0] {
	case "list":
		if len(args) < 2 {
			return fmt.Errorf("usage: quill docs list <session>")
		}
		sess, err := apiClient.Sessions.Get(ctx, args[1])
		if err != nil {
			return err
		}

		if jsonOutput {
			printJSON(sess.Documents)
			return nil
		}

		fmt.Printf("%-38s %-40s %-8s %s\n", "ID", "TITLE", "ACTIVE", "VERSION")
		fmt.Println(strings.Repeat("-", 95))
		for _, d := range sess.Documents {
			active := ""
			if d.Active {
				active = "*"
			}
			fmt.Printf("%-38s %-40s %-8s %d\n",
				d.ID, truncate(d.Title, 40), active, d.LatestVersion)
		}
		return nil

	case "switch":
		if len(args) < 3 {
			return fmt.Errorf("usage: quill docs switch <session> <document>")
		}
		if err := apiClient.Documents.Switch(ctx, args[1], args[2]); err != nil {
			return err
		}
		if !jsonOutput {
			fmt.Println("Active document switched")
		}
		return nil

	case "rename":
		if len(args) < 3 {
			return fmt.Errorf("usage: quill docs rename <document> <title>")
		}
		if err := apiClient.Documents.Rename(ctx, args[1], strings.Join(args[2:], " ")); err != nil {
			return err
		}
		if !jsonOutput {
			fmt.Println("Document renamed")
		}
		return nil

	case "rm":
		if len(args) < 2 {
			return fmt.Errorf("usage: quill docs rm <document>")
		}
		if err := apiClient.Documents.Delete(ctx, args[1]); err != nil {
			return err
		}
		if !jsonOutput {
			fmt.Println("Document deleted")
		}
		return nil

	default:
		return fmt.Errorf("unknown docs subcommand: %s", args[0])
	}
}

func cmdVersions(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: quill versions list|restore")
	}

	ctx := context.Background()

	switch args[0] {
	case "list":
		if len(args) < 2 {
			return fmt.Errorf("usage: quill versions list <document>")
		}
		versions, err := apiClient.Versions.List(ctx, args[1])
		if err != nil {
			return err
		}

		if jsonOutput {
			printJSON(versions)
			return nil
		}

		fmt.Printf("%-8s %-20s %-20s %s\n", "VERSION", "CREATED", "MODEL", "SUMMARY")
		fmt.Println(strings.Repeat("-", 100))
		for _, v := range versions {
			model := v.Model
			if model == "" {
				model = "-"
			}
			fmt.Printf("%-8d %-20s %-20s %s\n",
				v.Number,
				v.CreatedAt.Format("2006-01-02 15:04:05"),
				model,
				truncate(v.Summary, 50),
			)
		}
		return nil

	case "restore":
		if len(args) < 3 {
			return fmt.Errorf("usage: quill versions restore <document> <number>")
		}
		number, err := strconv.Atoi(args[2])
		if err != nil || number < 1 {
			return fmt.Errorf("invalid version number: %s", args[2])
		}
		res, err := apiClient.Versions.Restore(ctx, args[1], number)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(res)
			return nil
		}
		fmt.Printf("Restored version %d as version %d\n", number, res.Version)
		return nil

	default:
		return fmt.Errorf("unknown versions subcommand: %s", args[0])
	}
}

func cmdSave(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: quill save <document> <file>")
	}

	content, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[1], err)
	}

	res, err := apiClient.Documents.SaveEdit(context.Background(), args[0], string(content))
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(res)
		return nil
	}
	fmt.Printf("Saved as version %d\n", res.Version)
	return nil
}

func cmdEvents(args []string) error {
	query := client.EventQuery{Limit: 50}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-n":
			if i+1 < len(args) {
				n, err := strconv.Atoi(args[i+1])
				if err == nil && n > 0 {
					query.Limit = n
				}
				i++
			}
		case "-type":
			if i+1 < len(args) {
				query.Types = append(query.Types, args[i+1])
				i++
			}
		case "-session":
			if i+1 < len(args) {
				query.Session = args[i+1]
				i++
			}
		}
	}

	events, err := apiClient.Events.History(context.Background(), query)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(events)
		return nil
	}

	fmt.Printf("%-20s %-24s %-38s %s\n", "TIME", "TYPE", "SESSION", "DETAILS")
	fmt.Println(strings.Repeat("-", 110))
	for _, evt := range events {
		details := ""
		if len(evt.Payload) > 0 {
			parts := []string{}
			for k, v := range evt.Payload {
				parts = append(parts, fmt.Sprintf("%s=%v", k, v))
			}
			details = strings.Join(parts, " ")
		}
		session := evt.Session
		if session == "" {
			session = "-"
		}
		fmt.Printf("%-20s %-24s %-38s %s\n",
			evt.Timestamp.Format("2006-01-02 15:04:05"),
			evt.Type,
			session,
			details,
		)
	}

	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
