// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shahabnazari/litstream/internal/tiers"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the registered academic sources and their speed tiers",
	Long: `Sources prints the source registry: every academic source the client
knows about, its speed tier (fast, medium, slow), and the expected
response time used by the slow-source skip heuristic, followed by the
semantic re-ranking tiers and their nominal targets.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(os.Stdout, "%-18s  %-8s  %s\n", "Source", "Tier", "Expected")
		fmt.Fprintln(os.Stdout, strings.Repeat("-", 40))
		for _, src := range tiers.Sources() {
			e := tiers.Lookup(src)
			fmt.Fprintf(os.Stdout, "%-18s  %-8s  %dms\n", src, e.Tier, e.ExpectedMs)
		}

		fmt.Fprintf(os.Stdout, "\n%-12s  %-8s  %s\n", "Ranking tier", "Papers", "Target")
		fmt.Fprintln(os.Stdout, strings.Repeat("-", 40))
		for _, tier := range []string{"immediate", "refined", "complete"} {
			tgt := tiers.SemanticTargets[tier]
			budget := "rest"
			if tgt.PaperBudget > 0 {
				budget = fmt.Sprintf("%d", tgt.PaperBudget)
			}
			fmt.Fprintf(os.Stdout, "%-12s  %-8s  %s\n", tier, budget, tgt.Latency)
		}
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}
