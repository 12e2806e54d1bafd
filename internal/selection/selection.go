// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package selection applies the terminal quality-selection filter: a pure
// truncation of the ranked order to the selected count. It never reorders;
// ties at the cutoff are resolved by the order itself, which the merger
// keeps stable by original insertion index.
package selection

import (
	"github.com/shahabnazari/litstream/internal/protocol"
	"github.com/shahabnazari/litstream/pkg/types"
)

// Apply truncates the current order to the first SelectedCount entries and
// returns the recorded selection result. The order going in is assumed to
// be the last applied semantic ranking.
func Apply(order []string, ev *protocol.SelectionComplete) ([]string, types.SelectionResult) {
	result := types.SelectionResult{
		RankedCount:     ev.RankedCount,
		SelectedCount:   ev.SelectedCount,
		TargetCount:     ev.TargetCount,
		AvgQualityScore: ev.AvgQualityScore,
	}

	n := ev.SelectedCount
	if n > len(order) {
		n = len(order)
	}
	if n < 0 {
		n = 0
	}
	out := make([]string, n)
	copy(out, order[:n])
	return out, result
}
