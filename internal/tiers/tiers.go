// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package tiers classifies literature sources into latency tiers. The
// registry is static: it sets display and timeout expectations only, and
// never overrides server-delivered source status.
package tiers

import "time"

// Tier is the latency classification of a source.
type Tier string

const (
	Fast   Tier = "fast"
	Medium Tier = "medium"
	Slow   Tier = "slow"
)

// Entry holds the tier and expected search time for one source.
type Entry struct {
	Tier       Tier
	ExpectedMs int64
}

// registry maps each supported source to its latency classification.
// Expected times are p90 observations against the public endpoints, not
// hard deadlines.
var registry = map[string]Entry{
	"openalex":         {Fast, 1200},
	"crossref":         {Fast, 1500},
	"arxiv":            {Fast, 1000},
	"semantic_scholar": {Fast, 1500},

	"pubmed":    {Medium, 3500},
	"europepmc": {Medium, 3000},
	"core":      {Medium, 4000},
	"doaj":      {Medium, 3000},

	"ieee":           {Slow, 9000},
	"springer":       {Slow, 10000},
	"scopus":         {Slow, 12000},
	"web_of_science": {Slow, 15000},
}

// Lookup returns the registry entry for a source. Unknown sources are
// treated as medium tier so a new server-side source degrades gracefully.
func Lookup(source string) Entry {
	if e, ok := registry[source]; ok {
		return e
	}
	return Entry{Medium, 5000}
}

// Known reports whether the source is in the registry.
func Known(source string) bool {
	_, ok := registry[source]
	return ok
}

// Sources returns all registered sources in a fixed display order: fast
// first, then medium, then slow, alphabetical within a tier.
func Sources() []string {
	return []string{
		"arxiv", "crossref", "openalex", "semantic_scholar",
		"core", "doaj", "europepmc", "pubmed",
		"ieee", "scopus", "springer", "web_of_science",
	}
}

// ForTier returns the registered sources in the given tier, in the same
// order as Sources.
func ForTier(t Tier) []string {
	var out []string
	for _, s := range Sources() {
		if registry[s].Tier == t {
			out = append(out, s)
		}
	}
	return out
}

// SkipDeadline returns when a slow source still pending should be marked
// skipped for display, measured from the end of the fast-sources stage.
// Display heuristic only: a server-delivered status always wins.
func SkipDeadline(fastStageDone time.Time, grace time.Duration) time.Time {
	return fastStageDone.Add(grace)
}

// TierTarget documents one semantic re-ranking tier: nominal paper count
// budget and target latency. Informational, used for progress display.
type TierTarget struct {
	PaperBudget int
	Latency     time.Duration
}

// SemanticTargets maps each semantic tier to its nominal budget: the
// immediate tier covers roughly the first 50 papers in about 500ms, the
// refined tier the next 150 in about 3s, and the complete tier the rest
// in about 12s.
var SemanticTargets = map[string]TierTarget{
	"immediate": {50, 500 * time.Millisecond},
	"refined":   {150, 3 * time.Second},
	"complete":  {0, 12 * time.Second},
}
