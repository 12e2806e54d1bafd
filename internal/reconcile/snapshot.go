// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reconcile

import (
	"time"

	"github.com/shahabnazari/litstream/pkg/types"
)

// Snapshot is an immutable view of one session. Everything is copied;
// consumers can hold a snapshot across further event application without
// observing mutation.
type Snapshot struct {
	SearchID       string
	Query          string
	CorrectedQuery string

	Status  types.SessionStatus
	Stage   types.Stage
	Percent float64
	Message string

	SourcesComplete int
	SourcesTotal    int
	PapersFound     int

	// Sources in registry display order.
	Sources []types.SourceRecord

	// Papers in the current display order: arrival order until the first
	// semantic tier, then the last applied ranking, then the selected
	// subset after selection-complete.
	Papers []types.Paper

	Semantic  types.SemanticTierState
	LastMoves []types.PositionChange
	Selection *types.SelectionResult

	Error       string
	Recoverable bool

	StartedAt   time.Time
	FinalTimeMs int64
}

// Snapshot returns the current view of a session, or false when the
// searchId is unknown.
func (r *Reconciler) Snapshot(searchID string) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[searchID]
	if !ok {
		return Snapshot{}, false
	}
	return r.snapshotLocked(s), true
}

func (r *Reconciler) snapshotLocked(s *session) Snapshot {
	snap := Snapshot{
		SearchID:        s.id,
		Query:           s.query,
		CorrectedQuery:  s.correctedQuery,
		Status:          s.status,
		Stage:           s.stage,
		Percent:         s.percent,
		Message:         s.message,
		SourcesComplete: s.sourcesComplete,
		SourcesTotal:    s.sourcesTotal,
		PapersFound:     s.papersFound,
		Semantic:        s.semantic,
		Error:           s.errMsg,
		Recoverable:     s.recoverable,
		StartedAt:       s.startedAt,
		FinalTimeMs:     s.finalTimeMs,
	}
	snap.Sources = make([]types.SourceRecord, 0, len(s.sourceOrder))
	for _, src := range s.sourceOrder {
		snap.Sources = append(snap.Sources, *s.sources[src])
	}
	snap.Papers = make([]types.Paper, 0, len(s.order))
	for _, id := range s.order {
		if entry, ok := s.papers[id]; ok {
			snap.Papers = append(snap.Papers, entry.paper.Clone())
		}
	}
	if len(s.lastMoves) > 0 {
		snap.LastMoves = append([]types.PositionChange(nil), s.lastMoves...)
	}
	if s.selection != nil {
		sel := *s.selection
		snap.Selection = &sel
	}
	return snap
}
