// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reconcile

import (
	"fmt"

	"github.com/shahabnazari/litstream/internal/protocol"
	"github.com/shahabnazari/litstream/internal/selection"
	"github.com/shahabnazari/litstream/internal/semantic"
	"github.com/shahabnazari/litstream/internal/tiers"
	"github.com/shahabnazari/litstream/pkg/types"
)

// Apply routes one parsed event into its session. Events for unknown
// searchIds return ErrStaleSession; events for terminal sessions return
// ErrSessionTerminal. Both are expected conditions the caller drops.
//
// Each event is fully applied before Apply returns; a consumer reading a
// snapshot never sees a half-applied event.
func (r *Reconciler) Apply(ev protocol.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[ev.Session()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrStaleSession, ev.Session())
	}
	if s.status.Terminal() {
		return fmt.Errorf("%w: %s dropped for %s", ErrSessionTerminal, ev.Name(), s.id)
	}

	switch e := ev.(type) {
	case *protocol.Started:
		r.applyStarted(s, e)
	case *protocol.SourceStarted:
		r.applySourceStatus(s, e.Source, types.SourceSearching, func(*types.SourceRecord) {})
	case *protocol.SourceComplete:
		r.applySourceStatus(s, e.Source, types.SourceComplete, func(rec *types.SourceRecord) {
			rec.PaperCount = e.PaperCount
			rec.TimeMs = e.TimeMs
		})
	case *protocol.SourceErrored:
		r.applySourceError(s, e)
	case *protocol.Papers:
		r.applyPapers(s, e)
	case *protocol.Progress:
		r.applyProgress(s, e)
	case *protocol.Enrichment:
		r.applyEnrichment(s, e)
	case *protocol.SemanticTier:
		r.applySemanticTier(s, e)
	case *protocol.SemanticProgress:
		// Display-only: surface the ranking message without touching stage
		// or percent bookkeeping.
		if e.Message != "" {
			s.message = e.Message
		}
	case *protocol.SelectionComplete:
		s.order, s.selection = applySelection(s, e)
	case *protocol.Complete:
		s.status = types.SessionComplete
		s.stage = types.StageComplete
		s.percent = 100
		s.finalPapers = e.PapersFound
		s.finalTimeMs = e.TimeMs
		r.log.Info("search complete", "search_id", s.id,
			"papers", len(s.order), "time_ms", e.TimeMs)
	case *protocol.Errored:
		s.status = types.SessionError
		s.errMsg = e.Message
		s.recoverable = e.Recoverable
		r.log.Warn("search errored", "search_id", s.id,
			"error", e.Message, "recoverable", e.Recoverable)
	default:
		// Parser grew an event the reconciler does not know yet.
		r.log.Debug("unhandled event", "event", ev.Name(), "search_id", s.id)
	}
	return nil
}

func (r *Reconciler) applyStarted(s *session, e *protocol.Started) {
	if e.Query != "" && s.query == "" {
		s.query = e.Query
	}
	if e.CorrectedQuery != "" {
		s.correctedQuery = e.CorrectedQuery
	}
	// The server's planned source set replaces the registry guess, but
	// only for sources not already reporting.
	if len(e.Sources) > 0 {
		for _, src := range e.Sources {
			if _, ok := s.sources[src]; !ok {
				s.sources[src] = &types.SourceRecord{
					Source: src,
					Tier:   string(tiers.Lookup(src).Tier),
					Status: types.SourcePending,
				}
				s.sourceOrder = append(s.sourceOrder, src)
			}
		}
		s.sourcesTotal = len(e.Sources)
	}
}

// applySourceStatus advances one source record, enforcing monotonic
// transitions. A server-delivered status overrides a local skip guess; a
// regression from any other terminal status is dropped.
func (r *Reconciler) applySourceStatus(s *session, source string, status types.SourceStatus, update func(*types.SourceRecord)) {
	rec, ok := s.sources[source]
	if !ok {
		rec = &types.SourceRecord{
			Source: source,
			Tier:   string(tiers.Lookup(source).Tier),
			Status: types.SourcePending,
		}
		s.sources[source] = rec
		s.sourceOrder = append(s.sourceOrder, source)
		s.sourcesTotal = len(s.sourceOrder)
	}
	if rec.Status.Terminal() && !rec.LocalSkip {
		r.log.Debug("source status regression dropped", "search_id", s.id,
			"source", source, "have", rec.Status, "got", status)
		return
	}
	if !rec.LocalSkip && status.Rank() < rec.Status.Rank() {
		r.log.Debug("source status regression dropped", "search_id", s.id,
			"source", source, "have", rec.Status, "got", status)
		return
	}
	rec.Status = status
	rec.LocalSkip = false
	update(rec)
	s.recomputeSourcesComplete()
}

func (r *Reconciler) applySourceError(s *session, e *protocol.SourceErrored) {
	r.applySourceStatus(s, e.Source, types.SourceError, func(rec *types.SourceRecord) {
		rec.Error = e.Message
		rec.TimeMs = e.TimeMs
	})
	r.log.Debug("source errored", "search_id", s.id, "source", e.Source, "error", e.Message)

	if r.cfg.TierFailure != types.TierFailureFail {
		return
	}
	tier := string(tiers.Lookup(e.Source).Tier)
	if s.tierAllErrored(tier) {
		s.status = types.SessionError
		s.errMsg = fmt.Sprintf("all %s sources failed", tier)
		s.recoverable = true
		r.log.Warn("tier failure", "search_id", s.id, "tier", tier)
	}
}

// applyPapers inserts or merges one batch. New papers append to the end of
// the display order; re-sighted papers merge without reordering. A batch
// is never discarded for arriving late or interleaved.
func (r *Reconciler) applyPapers(s *session, e *protocol.Papers) {
	// Papers arriving from a source implies it is searching.
	if rec, ok := s.sources[e.Source]; ok && rec.Status == types.SourcePending {
		rec.Status = types.SourceSearching
	}
	for i := range e.Papers {
		p := e.Papers[i]
		addSource(&p, e.Source)
		if canonical := s.canonicalFor(&p); canonical != "" {
			s.absorb(canonical, &p)
			continue
		}
		s.admit(p)
	}
	if e.CumulativeCount > s.papersFound {
		s.papersFound = e.CumulativeCount
	}
	if len(s.order) > s.papersFound {
		s.papersFound = len(s.order)
	}
}

// applyProgress advances stage and percent. Stage never regresses; percent
// never regresses within a stage. Regressions are logged and clamped so a
// progress bar never moves backwards.
func (r *Reconciler) applyProgress(s *session, e *protocol.Progress) {
	switch {
	case e.Stage.Rank() > s.stage.Rank():
		if s.fastDone.IsZero() && e.Stage.Rank() > types.StageFastSources.Rank() {
			s.fastDone = r.now()
		}
		s.stage = e.Stage
		s.percent = e.Percent
	case e.Stage.Rank() < s.stage.Rank():
		r.log.Debug("stage regression clamped", "search_id", s.id,
			"have", s.stage, "got", e.Stage)
	default:
		if e.Percent < s.percent {
			r.log.Debug("percent regression clamped", "search_id", s.id,
				"have", s.percent, "got", e.Percent)
		} else {
			s.percent = e.Percent
		}
	}
	if e.Message != "" {
		s.message = e.Message
	}
	if e.SourcesTotal > s.sourcesTotal {
		s.sourcesTotal = e.SourcesTotal
	}
	if e.PapersFound > s.papersFound {
		s.papersFound = e.PapersFound
	}
}

// applyEnrichment patches one known paper. Enrichment is best-effort: an
// unknown paper id is dropped, not buffered.
func (r *Reconciler) applyEnrichment(s *session, e *protocol.Enrichment) {
	canonical, ok := s.aliases["id:"+e.PaperID]
	if !ok {
		canonical, ok = s.aliases["doi:"+normalizeDOI(e.PaperID)]
	}
	if !ok {
		r.log.Debug("enrichment for unknown paper dropped", "search_id", s.id, "paper_id", e.PaperID)
		return
	}
	p := &s.papers[canonical].paper
	if e.CitationCount > p.CitationCount {
		p.CitationCount = e.CitationCount
	}
	if e.Venue != "" && p.Venue == "" {
		p.Venue = e.Venue
	}
	if e.Quartile != "" {
		p.Quartile = e.Quartile
	}
}

// applySemanticTier merges one versioned re-ranking onto the display
// order. Stale versions and post-completion events are dropped; papers the
// tier did not cover keep a position after the ranked ones, so nothing
// ever disappears between tiers.
func (r *Reconciler) applySemanticTier(s *session, e *protocol.SemanticTier) {
	// Guard before translating: admitting placeholders for a tier that is
	// about to be rejected would leave ghost entries in the order.
	if err := semantic.Guard(s.semantic, e); err != nil {
		r.log.Debug("semantic tier dropped", "search_id", s.id,
			"tier", e.Tier, "version", e.Version, "reason", err)
		return
	}

	// Translate server paper ids to canonical ids; rank entries for papers
	// this client has never seen get a placeholder record so the contract
	// that ranked papers appear in the order still holds.
	translated := *e
	translated.Papers = make([]protocol.TierPaper, 0, len(e.Papers))
	for _, tp := range e.Papers {
		canonical, ok := s.aliases["id:"+tp.ID]
		if !ok {
			probe := types.Paper{ID: tp.ID}
			if c := s.canonicalFor(&probe); c != "" {
				canonical, ok = c, true
			}
		}
		if !ok {
			canonical = s.admit(types.Paper{ID: tp.ID})
			// admit appends to order; the merge below will place it.
		}
		translated.Papers = append(translated.Papers, protocol.TierPaper{
			ID:            canonical,
			SemanticScore: tp.SemanticScore,
			CombinedScore: tp.CombinedScore,
		})
	}

	result, err := semantic.Merge(s.semantic, s.order, &translated)
	if err != nil {
		r.log.Debug("semantic tier dropped", "search_id", s.id,
			"tier", e.Tier, "version", e.Version, "reason", err)
		return
	}

	for _, tp := range translated.Papers {
		entry, ok := s.papers[tp.ID]
		if !ok {
			continue
		}
		score := tp.SemanticScore
		entry.paper.SemanticScore = &score
		if tp.CombinedScore != nil {
			combined := *tp.CombinedScore
			entry.paper.CombinedScore = &combined
		}
	}

	s.order = result.Order
	s.lastMoves = result.Moves
	s.semantic = semantic.NextState(s.semantic, &translated)
	r.log.Debug("semantic tier applied", "search_id", s.id, "tier", e.Tier,
		"version", e.Version, "moves", len(result.Moves), "papers", len(s.order))
}

// applySelection truncates the ranked order to the selected subset. Pure
// filter: relative order is preserved, only the tail is dropped.
func applySelection(s *session, e *protocol.SelectionComplete) ([]string, *types.SelectionResult) {
	order, result := selection.Apply(s.order, e)
	return order, &result
}
