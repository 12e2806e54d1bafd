// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the litstream pipeline:
// the search session model, source records, semantic tier state, selection
// results, search options, and configuration.
package types

// Stage is the progress stage of a search session. Stages only advance
// within a session; a terminal error or cancellation is tracked separately
// in SessionStatus.
type Stage string

const (
	StageAnalyzing     Stage = "analyzing"
	StageFastSources   Stage = "fast-sources"
	StageMediumSources Stage = "medium-sources"
	StageSlowSources   Stage = "slow-sources"
	StageRanking       Stage = "ranking"
	StageSelecting     Stage = "selecting"
	StageComplete      Stage = "complete"
)

// stageOrder gives each stage a rank so regressions can be rejected.
var stageOrder = map[Stage]int{
	StageAnalyzing:     0,
	StageFastSources:   1,
	StageMediumSources: 2,
	StageSlowSources:   3,
	StageRanking:       4,
	StageSelecting:     5,
	StageComplete:      6,
}

// Rank returns the ordinal position of the stage, or -1 for an unknown stage.
func (s Stage) Rank() int {
	if r, ok := stageOrder[s]; ok {
		return r
	}
	return -1
}

// Valid reports whether s is one of the defined stages.
func (s Stage) Valid() bool { return s.Rank() >= 0 }

// SessionStatus is the lifecycle status of a search session, orthogonal to
// Stage. Terminal statuses absorb: no further mutating events are applied.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionComplete  SessionStatus = "complete"
	SessionCancelled SessionStatus = "cancelled"
	SessionError     SessionStatus = "error"
)

// Terminal reports whether the session accepts no further mutating events.
func (s SessionStatus) Terminal() bool { return s != SessionActive }

// SourceStatus is the per-source lifecycle status. Transitions are
// monotonic: pending -> searching -> {complete, error, skipped}.
type SourceStatus string

const (
	SourcePending   SourceStatus = "pending"
	SourceSearching SourceStatus = "searching"
	SourceComplete  SourceStatus = "complete"
	SourceError     SourceStatus = "error"
	SourceSkipped   SourceStatus = "skipped"
)

var sourceStatusOrder = map[SourceStatus]int{
	SourcePending:   0,
	SourceSearching: 1,
	SourceComplete:  2,
	SourceError:     2,
	SourceSkipped:   2,
}

// Rank returns the monotonic rank of the status, or -1 for unknown values.
func (s SourceStatus) Rank() int {
	if r, ok := sourceStatusOrder[s]; ok {
		return r
	}
	return -1
}

// Terminal reports whether the status is one of the terminal states.
func (s SourceStatus) Terminal() bool { return s.Rank() == 2 }

// SourceRecord tracks one literature source queried in a session.
type SourceRecord struct {
	// Source is the source identifier (e.g. "openalex", "pubmed").
	Source string `json:"source" yaml:"source"`

	// Tier is the latency tier of the source ("fast", "medium", "slow").
	Tier string `json:"tier" yaml:"tier"`

	// Status is the current lifecycle status.
	Status SourceStatus `json:"status" yaml:"status"`

	// PaperCount is the number of papers this source returned.
	PaperCount int `json:"paper_count" yaml:"paper_count"`

	// TimeMs is the source's reported search duration in milliseconds.
	TimeMs int64 `json:"time_ms,omitempty" yaml:"time_ms,omitempty"`

	// Error holds the source-level error message, if any.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	// LocalSkip marks a skipped status guessed locally by the grace-period
	// heuristic. A server-delivered status always overrides a local skip.
	LocalSkip bool `json:"local_skip,omitempty" yaml:"local_skip,omitempty"`
}

// SemanticTier names a stage of semantic re-ranking.
type SemanticTier string

const (
	TierImmediate SemanticTier = "immediate"
	TierRefined   SemanticTier = "refined"
	TierComplete  SemanticTier = "complete"
)

// Valid reports whether t is a defined semantic tier.
func (t SemanticTier) Valid() bool {
	return t == TierImmediate || t == TierRefined || t == TierComplete
}

// SemanticTierState tracks the highest semantic re-ranking applied to a
// session. Version is a monotonic counter: a tier event whose version is
// not greater than Version is stale and must be ignored.
type SemanticTierState struct {
	Tier    SemanticTier `json:"tier,omitempty" yaml:"tier,omitempty"`
	Version int          `json:"version" yaml:"version"`

	// FinalTierDone is set once the "complete" tier reports isComplete;
	// after that no further semantic events are applied to the session.
	FinalTierDone bool `json:"final_tier_done,omitempty" yaml:"final_tier_done,omitempty"`

	// Observability metadata from the last applied tier event.
	PapersProcessed int   `json:"papers_processed,omitempty" yaml:"papers_processed,omitempty"`
	CacheHits       int   `json:"cache_hits,omitempty" yaml:"cache_hits,omitempty"`
	EmbedGenerated  int   `json:"embed_generated,omitempty" yaml:"embed_generated,omitempty"`
	UsedWorkerPool  bool  `json:"used_worker_pool,omitempty" yaml:"used_worker_pool,omitempty"`
	LatencyMs       int64 `json:"latency_ms,omitempty" yaml:"latency_ms,omitempty"`
}

// SelectionResult records the terminal quality-selection outcome.
type SelectionResult struct {
	RankedCount     int     `json:"ranked_count" yaml:"ranked_count"`
	SelectedCount   int     `json:"selected_count" yaml:"selected_count"`
	TargetCount     int     `json:"target_count" yaml:"target_count"`
	AvgQualityScore float64 `json:"avg_quality_score" yaml:"avg_quality_score"`
}

// PositionChange describes one paper's move between two display orders,
// emitted by the semantic merger for animation purposes.
type PositionChange struct {
	PaperID string `json:"paper_id" yaml:"paper_id"`
	From    int    `json:"from" yaml:"from"`
	To      int    `json:"to" yaml:"to"`
}
