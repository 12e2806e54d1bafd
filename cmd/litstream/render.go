// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/shahabnazari/litstream/internal/reconcile"
)

// renderPapers writes the final paper list as a table or JSON. The table
// keeps the session's display order, which is the ranked order after
// semantic tiers and the selected subset after selection.
func renderPapers(w io.Writer, snap reconcile.Snapshot, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	if len(snap.Papers) == 0 {
		fmt.Fprintln(w, "No papers found.")
		return nil
	}

	fmt.Fprintf(w, "%-4s  %-55s  %-25s  %-5s  %-6s  %s\n",
		"Rank", "Title", "Authors", "Year", "Cites", "Score")
	fmt.Fprintln(w, strings.Repeat("-", 110))

	for i, p := range snap.Papers {
		title := p.Title
		if len(title) > 55 {
			title = title[:52] + "..."
		}
		authors := strings.Join(p.Authors, ", ")
		if len(authors) > 25 {
			authors = authors[:22] + "..."
		}
		score := "-"
		if p.CombinedScore != nil || p.SemanticScore != nil {
			score = fmt.Sprintf("%.3f", p.Score())
		}
		fmt.Fprintf(w, "%-4d  %-55s  %-25s  %-5d  %-6d  %s\n",
			i+1, title, authors, p.Year, p.CitationCount, score)
	}

	fmt.Fprintf(w, "\n%d papers", len(snap.Papers))
	if snap.Selection != nil {
		fmt.Fprintf(w, " (selected from %d ranked)", snap.Selection.RankedCount)
	}
	fmt.Fprintln(w)
	return nil
}
