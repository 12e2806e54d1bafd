// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package semantic merges versioned re-ranking tiers onto an existing
// display order. The merge computes the minimal position changes needed
// for animation and never drops a paper: entries untouched by a tier keep
// a position after the ranked ones.
package semantic

import (
	"errors"

	"github.com/shahabnazari/litstream/internal/protocol"
	"github.com/shahabnazari/litstream/pkg/types"
)

// ErrStaleVersion marks a tier event whose version is not greater than the
// highest version already applied. Duplicate or out-of-order delivery;
// callers drop the event.
var ErrStaleVersion = errors.New("stale semantic tier version")

// ErrSemanticClosed marks a tier event arriving after the complete tier
// reported isComplete. No further semantic events are applied.
var ErrSemanticClosed = errors.New("semantic ranking already closed")

// MergeResult is the outcome of applying one tier event onto an order.
type MergeResult struct {
	// Order is the merged display order of paper IDs: the tier's ranked
	// papers first, then papers the tier did not cover, in their previous
	// relative order.
	Order []string

	// Moves lists position changes for papers present both before and
	// after the merge, for animation. Papers whose position is unchanged
	// are omitted.
	Moves []types.PositionChange

	// Introduced lists paper IDs ranked by the tier that were not in the
	// previous order. The caller decides whether to admit them.
	Introduced []string
}

// Guard reports whether a tier event may be applied onto state. It
// returns ErrSemanticClosed after the complete tier finished and
// ErrStaleVersion for a version at or below the one already applied.
// Callers that mutate state while preparing an event must check Guard
// first; Merge repeats the check.
func Guard(state types.SemanticTierState, ev *protocol.SemanticTier) error {
	if state.FinalTierDone {
		return ErrSemanticClosed
	}
	if ev.Version <= state.Version {
		return ErrStaleVersion
	}
	return nil
}

// Merge applies a semantic tier event onto the current order of paper IDs.
// state guards against stale versions and post-completion events; Merge
// does not mutate state or current.
func Merge(state types.SemanticTierState, current []string, ev *protocol.SemanticTier) (MergeResult, error) {
	if err := Guard(state, ev); err != nil {
		return MergeResult{}, err
	}

	oldPos := make(map[string]int, len(current))
	for i, id := range current {
		oldPos[id] = i
	}

	order := make([]string, 0, len(current))
	inTier := make(map[string]bool, len(ev.Papers))
	var introduced []string
	for _, tp := range ev.Papers {
		if inTier[tp.ID] {
			continue // duplicate id within one tier event
		}
		inTier[tp.ID] = true
		order = append(order, tp.ID)
		if _, ok := oldPos[tp.ID]; !ok {
			introduced = append(introduced, tp.ID)
		}
	}

	// Papers the tier did not cover keep their relative order, after the
	// ranked ones. They must never disappear between tiers.
	for _, id := range current {
		if !inTier[id] {
			order = append(order, id)
		}
	}

	var moves []types.PositionChange
	for to, id := range order {
		from, ok := oldPos[id]
		if !ok || from == to {
			continue
		}
		moves = append(moves, types.PositionChange{PaperID: id, From: from, To: to})
	}

	return MergeResult{Order: order, Moves: moves, Introduced: introduced}, nil
}

// NextState returns the tier state after applying ev on top of prev.
func NextState(prev types.SemanticTierState, ev *protocol.SemanticTier) types.SemanticTierState {
	next := prev
	next.Tier = ev.Tier
	next.Version = ev.Version
	next.PapersProcessed = ev.Metadata.PapersProcessed
	next.CacheHits = ev.Metadata.CacheHits
	next.EmbedGenerated = ev.Metadata.EmbedGenerated
	next.UsedWorkerPool = ev.Metadata.UsedWorkerPool
	next.LatencyMs = ev.LatencyMs
	if ev.Tier == types.TierComplete && ev.IsComplete {
		next.FinalTierDone = true
	}
	return next
}
