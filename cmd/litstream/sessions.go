// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shahabnazari/litstream/internal/store"
	"github.com/shahabnazari/litstream/pkg/types"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Browse previously saved search sessions",
	Long: `Sessions manages the local session database. Every finished search is
saved automatically; use list to see them, show to print a saved result
list, and delete to remove one.`,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved search sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		sessions, err := mustOpenSessionStore()
		if err != nil {
			return err
		}
		defer sessions.Close()

		summaries, err := sessions.List()
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Println("No saved sessions.")
			return nil
		}

		fmt.Fprintf(os.Stdout, "%-36s  %-30s  %-9s  %-6s  %-7s  %s\n",
			"Search ID", "Query", "Status", "Papers", "Time", "Started")
		fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))
		for _, s := range summaries {
			query := s.Query
			if len(query) > 30 {
				query = query[:27] + "..."
			}
			fmt.Fprintf(os.Stdout, "%-36s  %-30s  %-9s  %-6d  %-7s  %s\n",
				s.SearchID, query, s.Status, s.PaperCount,
				(time.Duration(s.TimeMs) * time.Millisecond).String(),
				s.StartedAt.Format(time.RFC3339))
		}
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <search-id>",
	Short: "Print the saved result list of one session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessions, err := mustOpenSessionStore()
		if err != nil {
			return err
		}
		defer sessions.Close()

		snap, err := sessions.Get(args[0])
		if err != nil {
			return err
		}
		jsonOutput, _ := cmd.Flags().GetBool("json")
		return renderPapers(os.Stdout, snap, jsonOutput)
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <search-id>",
	Short: "Delete a saved session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessions, err := mustOpenSessionStore()
		if err != nil {
			return err
		}
		defer sessions.Close()

		if err := sessions.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted session %s\n", args[0])
		return nil
	},
}

// mustOpenSessionStore opens the session database or errors. Unlike
// search, the sessions commands have nothing to do without it.
func mustOpenSessionStore() (*store.Store, error) {
	cfg := clientConfig()
	path := cfg.Store.Path
	if path == "" {
		path = defaultStorePath()
	}
	sessions, err := store.Open(types.StoreConfig{Path: path})
	if err != nil {
		return nil, fmt.Errorf("opening session store at %s: %w", path, err)
	}
	return sessions, nil
}

func init() {
	sessionsShowCmd.Flags().Bool("json", false, "output the full snapshot as JSON")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)

	rootCmd.AddCommand(sessionsCmd)
}
