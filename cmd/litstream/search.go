// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shahabnazari/litstream/internal/reconcile"
	"github.com/shahabnazari/litstream/internal/store"
	"github.com/shahabnazari/litstream/internal/stream"
	"github.com/shahabnazari/litstream/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Run a progressive streamed literature search",
	Long: `Search sends a query to the streaming search server and follows the
session until it finishes. Progress is written to stderr as sources and
semantic tiers complete; the final paper list goes to stdout.

Ctrl-C cancels the search server-side before exiting. Use --save to write
the query and results to a YAML file, and --options-file to rerun a saved
search.`,
	Args: cobra.ArbitraryArgs,
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	opts, err := searchOptionsFromFlags(cmd)
	if err != nil {
		return err
	}

	// A saved options file supplies query and options; explicit flags are
	// not merged on top.
	if optionsPath, _ := cmd.Flags().GetString("options-file"); optionsPath != "" {
		sf, err := stream.ReadSearchFile(optionsPath)
		if err != nil {
			return err
		}
		query = sf.Query
		opts = sf.Options
	}
	if query == "" {
		return fmt.Errorf("query required: pass it as arguments or via --options-file")
	}

	cfg := clientConfig()
	log := newLogger(cmd)

	sessions, err := openSessionStore(cfg)
	if err != nil {
		return err
	}
	if sessions != nil {
		defer sessions.Close()
	}

	client := stream.New(cfg, sessions, log)
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := client.Open(ctx); err != nil {
		return fmt.Errorf("connecting to %s: %w", cfg.Stream.ServerURL, err)
	}

	searchID, updates, err := client.Search(query, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "search %s: %q\n", searchID, query)

	timeout, _ := cmd.Flags().GetDuration("timeout")
	final, err := followSearch(ctx, client, searchID, updates, timeout)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if err := renderPapers(os.Stdout, final, jsonOutput); err != nil {
		return err
	}

	if savePath, _ := cmd.Flags().GetString("save"); savePath != "" {
		if err := stream.WriteSearchFile(savePath, opts, final); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Saved to %s\n", savePath)
	}

	if final.Status == types.SessionError {
		return fmt.Errorf("search failed: %s", final.Error)
	}
	return nil
}

// followSearch consumes snapshot updates until the session terminates,
// printing progress transitions to stderr. Interrupt cancels the search
// and waits for the cancelled snapshot.
func followSearch(ctx context.Context, client *stream.Client, searchID string, updates <-chan reconcile.Snapshot, timeout time.Duration) (reconcile.Snapshot, error) {
	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}

	var last reconcile.Snapshot
	interrupted := false
	for {
		select {
		case <-ctx.Done():
			if interrupted {
				return last, ctx.Err()
			}
			interrupted = true
			fmt.Fprintln(os.Stderr, "cancelling search...")
			client.Cancel(searchID)
		case <-deadline:
			client.Cancel(searchID)
			return last, fmt.Errorf("search timed out after %s", timeout)
		case snap, ok := <-updates:
			if !ok {
				return last, fmt.Errorf("search channel closed unexpectedly")
			}
			printProgress(last, snap)
			last = snap
			if snap.Status.Terminal() {
				return snap, nil
			}
		}
	}
}

// printProgress writes stderr lines for stage transitions, source
// completions, semantic tiers, and selection. Intermediate snapshots with
// no visible transition stay silent.
func printProgress(prev, cur reconcile.Snapshot) {
	if cur.Stage != prev.Stage && cur.Stage != "" {
		fmt.Fprintf(os.Stderr, "stage %-14s %3.0f%%\n", cur.Stage, cur.Percent)
	}
	if cur.SourcesComplete != prev.SourcesComplete || cur.PapersFound != prev.PapersFound {
		fmt.Fprintf(os.Stderr, "  sources %d/%d, %d papers\n",
			cur.SourcesComplete, cur.SourcesTotal, cur.PapersFound)
	}
	if cur.Semantic.Version > prev.Semantic.Version {
		fmt.Fprintf(os.Stderr, "  semantic tier %s (v%d): %d papers ranked in %dms\n",
			cur.Semantic.Tier, cur.Semantic.Version,
			cur.Semantic.PapersProcessed, cur.Semantic.LatencyMs)
	}
	if cur.Selection != nil && prev.Selection == nil {
		fmt.Fprintf(os.Stderr, "  selected %d of %d papers\n",
			cur.Selection.SelectedCount, cur.Selection.RankedCount)
	}
	if cur.CorrectedQuery != "" && prev.CorrectedQuery == "" {
		fmt.Fprintf(os.Stderr, "  query corrected to %q\n", cur.CorrectedQuery)
	}
}

func searchOptionsFromFlags(cmd *cobra.Command) (types.SearchOptions, error) {
	opts := types.SearchOptions{}
	opts.Limit, _ = cmd.Flags().GetInt("limit")
	opts.Page, _ = cmd.Flags().GetInt("page")
	opts.YearFrom, _ = cmd.Flags().GetInt("year-from")
	opts.YearTo, _ = cmd.Flags().GetInt("year-to")
	opts.MinCitations, _ = cmd.Flags().GetInt("min-citations")
	opts.PublicationType, _ = cmd.Flags().GetString("publication-type")
	opts.Author, _ = cmd.Flags().GetString("author")
	opts.SortBy, _ = cmd.Flags().GetString("sort-by")
	opts.HasFullTextOnly, _ = cmd.Flags().GetBool("full-text-only")
	opts.ExcludeBooks, _ = cmd.Flags().GetBool("exclude-books")

	purpose, _ := cmd.Flags().GetString("purpose")
	opts.Purpose = types.Purpose(purpose)

	sources, _ := cmd.Flags().GetString("sources")
	if sources != "" {
		for _, s := range strings.Split(sources, ",") {
			if s = strings.TrimSpace(s); s != "" {
				opts.Sources = append(opts.Sources, s)
			}
		}
	}
	return opts, nil
}

// openSessionStore opens the configured session database, falling back to
// the default path. Persistence failures do not block searching.
func openSessionStore(cfg types.ClientConfig) (*store.Store, error) {
	path := cfg.Store.Path
	if path == "" {
		path = defaultStorePath()
	}
	sessions, err := store.Open(types.StoreConfig{Path: path})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: session store unavailable (%v), continuing without persistence\n", err)
		return nil, nil
	}
	return sessions, nil
}

func init() {
	searchCmd.Flags().Int("limit", 0, "maximum papers per source (0 = server default)")
	searchCmd.Flags().Int("page", 0, "result page to request (0 = first)")
	searchCmd.Flags().Int("year-from", 0, "earliest publication year")
	searchCmd.Flags().Int("year-to", 0, "latest publication year")
	searchCmd.Flags().Int("min-citations", 0, "minimum citation count")
	searchCmd.Flags().String("publication-type", "", "filter by publication type")
	searchCmd.Flags().String("author", "", "filter by author name")
	searchCmd.Flags().String("sort-by", "", "server-side sort: relevance, date, citations")
	searchCmd.Flags().String("sources", "", "comma-separated source list (default: all registered sources)")
	searchCmd.Flags().String("purpose", "", "research purpose: q_methodology, qualitative_analysis, literature_synthesis, hypothesis_generation, survey_construction")
	searchCmd.Flags().Bool("full-text-only", false, "only papers with full text available")
	searchCmd.Flags().Bool("exclude-books", false, "exclude books and monographs")
	searchCmd.Flags().Duration("timeout", 2*time.Minute, "overall search timeout (0 = no timeout)")
	searchCmd.Flags().Bool("json", false, "output results as JSON")
	searchCmd.Flags().String("save", "", "write query and results to a YAML file")
	searchCmd.Flags().String("options-file", "", "rerun a search saved with --save")

	rootCmd.AddCommand(searchCmd)
}
