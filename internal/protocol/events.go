// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package protocol defines the wire contract for a litstream search stream:
// one typed event per server event name, the client command set, and the
// parser that validates raw frames before they reach the reconciler.
//
// The protocol is purely descriptive. Events carry a searchId and a
// timestamp; timestamps are diagnostic only. Correctness never depends on
// delivery order: consumers rely on explicit version counters and
// monotonic status enums instead.
package protocol

import (
	"github.com/shahabnazari/litstream/pkg/types"
)

// Event names as they appear in the wire envelope's "event" field.
const (
	EventStarted           = "search:started"
	EventSourceStarted     = "search:source-started"
	EventSourceComplete    = "search:source-complete"
	EventSourceError       = "search:source-error"
	EventPapers            = "search:papers"
	EventProgress          = "search:progress"
	EventEnrichment        = "search:enrichment"
	EventSemanticTier      = "search:semantic-tier"
	EventSemanticProgress  = "search:semantic-progress"
	EventSelectionComplete = "search:selection-complete"
	EventComplete          = "search:complete"
	EventError             = "search:error"
)

// Meta is the envelope portion common to every event.
type Meta struct {
	// SearchID identifies the logical search session this event belongs to.
	SearchID string `json:"searchId"`

	// Timestamp is the server's emission time in Unix milliseconds. It is
	// non-decreasing per session at the emitter but may arrive reordered.
	Timestamp int64 `json:"timestamp"`
}

// Session returns the searchId the event belongs to.
func (m Meta) Session() string { return m.SearchID }

// Time returns the event timestamp in Unix milliseconds.
func (m Meta) Time() int64 { return m.Timestamp }

// Event is any parsed protocol event.
type Event interface {
	// Name returns the wire event name.
	Name() string

	// Session returns the searchId the event belongs to.
	Session() string

	// Time returns the event timestamp in Unix milliseconds.
	Time() int64
}

// Started announces that the server accepted a search. Carries the query
// intelligence output (spell-corrected form) and the planned source set.
type Started struct {
	Meta

	Query          string   `json:"query"`
	CorrectedQuery string   `json:"correctedQuery,omitempty"`
	Sources        []string `json:"sources,omitempty"`
}

func (e *Started) Name() string { return EventStarted }

// SourceStarted marks one source as actively searching.
type SourceStarted struct {
	Meta

	Source string `json:"source"`
}

func (e *SourceStarted) Name() string { return EventSourceStarted }

// SourceComplete marks one source as finished, with its result count and
// elapsed time.
type SourceComplete struct {
	Meta

	Source     string `json:"source"`
	PaperCount int    `json:"paperCount"`
	TimeMs     int64  `json:"timeMs"`
}

func (e *SourceComplete) Name() string { return EventSourceComplete }

// SourceErrored marks one source as failed. Non-fatal to the session.
type SourceErrored struct {
	Meta

	Source  string `json:"source"`
	Message string `json:"error"`
	TimeMs  int64  `json:"timeMs,omitempty"`
}

func (e *SourceErrored) Name() string { return EventSourceError }

// Papers delivers one batch of results from a single source. Batches from
// different sources interleave freely.
type Papers struct {
	Meta

	Source          string        `json:"source"`
	BatchNumber     int           `json:"batchNumber"`
	CumulativeCount int           `json:"cumulativeCount"`
	Papers          []types.Paper `json:"papers"`
}

func (e *Papers) Name() string { return EventPapers }

// Progress reports the session stage and completion percentage.
type Progress struct {
	Meta

	Stage           types.Stage `json:"stage"`
	Percent         float64     `json:"percent"`
	Message         string      `json:"message,omitempty"`
	SourcesComplete int         `json:"sourcesComplete"`
	SourcesTotal    int         `json:"sourcesTotal"`
	PapersFound     int         `json:"papersFound"`
}

func (e *Progress) Name() string { return EventProgress }

// Enrichment patches citation/venue/quartile fields of one known paper.
// Best-effort: an enrichment for an unknown paper id is dropped.
type Enrichment struct {
	Meta

	PaperID       string `json:"paperId"`
	CitationCount int    `json:"citationCount,omitempty"`
	Venue         string `json:"venue,omitempty"`
	Quartile      string `json:"quartile,omitempty"`
}

func (e *Enrichment) Name() string { return EventEnrichment }

// TierPaper is one scored entry of a semantic tier's result ordering.
type TierPaper struct {
	ID            string   `json:"id"`
	SemanticScore float64  `json:"semanticScore"`
	CombinedScore *float64 `json:"combinedScore,omitempty"`
}

// TierMetadata carries observability counters from the ranking backend.
type TierMetadata struct {
	PapersProcessed int  `json:"papersProcessed"`
	CacheHits       int  `json:"cacheHits"`
	EmbedGenerated  int  `json:"embedGenerated"`
	UsedWorkerPool  bool `json:"usedWorkerPool"`
}

// SemanticTier delivers one versioned re-ranking of the result list.
// Version is monotonic per search; a stale version must be ignored.
type SemanticTier struct {
	Meta

	Tier       types.SemanticTier `json:"tier"`
	Version    int                `json:"version"`
	Papers     []TierPaper        `json:"papers"`
	LatencyMs  int64              `json:"latencyMs"`
	IsComplete bool               `json:"isComplete"`
	Metadata   TierMetadata       `json:"metadata"`
}

func (e *SemanticTier) Name() string { return EventSemanticTier }

// SemanticProgress reports intermediate progress of a ranking tier.
type SemanticProgress struct {
	Meta

	Tier      types.SemanticTier `json:"tier"`
	Processed int                `json:"processed"`
	Total     int                `json:"total"`
	Message   string             `json:"message,omitempty"`
}

func (e *SemanticProgress) Name() string { return EventSemanticProgress }

// SelectionComplete announces the terminal quality-selection outcome.
type SelectionComplete struct {
	Meta

	RankedCount     int     `json:"rankedCount"`
	SelectedCount   int     `json:"selectedCount"`
	TargetCount     int     `json:"targetCount"`
	AvgQualityScore float64 `json:"avgQualityScore"`
}

func (e *SelectionComplete) Name() string { return EventSelectionComplete }

// Complete freezes the session with final counts and timing.
type Complete struct {
	Meta

	PapersFound int   `json:"papersFound"`
	TimeMs      int64 `json:"timeMs"`
}

func (e *Complete) Name() string { return EventComplete }

// Errored is a session-level error. Fatal when Recoverable is false;
// partial results stay browsable when it is true.
type Errored struct {
	Meta

	Message     string `json:"error"`
	Recoverable bool   `json:"recoverable"`
}

func (e *Errored) Name() string { return EventError }
