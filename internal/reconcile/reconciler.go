// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package reconcile maintains the authoritative client-side view of every
// search session: one deduplicated, consistently ordered paper collection
// per searchId, plus source status, progress stage, semantic tier state,
// and the terminal selection result.
//
// All mutation goes through Apply. Events are applied one at a time under
// a single lock, so a consumer never observes a partially applied event.
// Correctness is order-tolerant: monotonic status transitions and semantic
// version guards make duplicate or reordered delivery harmless.
package reconcile

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/shahabnazari/litstream/internal/tiers"
	"github.com/shahabnazari/litstream/pkg/types"
)

// ErrStaleSession marks an event for a searchId that is not tracked.
// Expected during rapid re-search and reconnect races; callers drop the
// event without surfacing an error.
var ErrStaleSession = errors.New("event for unknown or stale search session")

// ErrSessionTerminal marks an event arriving after its session reached a
// terminal state. The event is dropped.
var ErrSessionTerminal = errors.New("session already terminal")

// paperEntry pairs a paper with its insertion index. The index is the
// stable tie-break everywhere ordering is ambiguous.
type paperEntry struct {
	paper    types.Paper
	inserted int
}

// session is the reconciler-owned state for one searchId.
type session struct {
	id             string
	query          string
	correctedQuery string

	status  types.SessionStatus
	stage   types.Stage
	percent float64
	message string

	sourcesTotal    int
	sourcesComplete int
	papersFound     int

	sources     map[string]*types.SourceRecord
	sourceOrder []string

	papers   map[string]*paperEntry // canonical id -> entry
	aliases  map[string]string      // identity key -> canonical id
	order    []string               // canonical ids in display order
	inserted int                    // monotonically increasing insertion counter

	semantic  types.SemanticTierState
	lastMoves []types.PositionChange
	selection *types.SelectionResult

	errMsg      string
	recoverable bool

	startedAt   time.Time
	fastDone    time.Time // set when the fast-sources stage is left behind
	finalTimeMs int64
	finalPapers int
}

// Reconciler tracks all search sessions for one client. Sessions never
// share state; events are routed by searchId and applied atomically.
type Reconciler struct {
	mu       sync.Mutex
	sessions map[string]*session
	cfg      types.SearchRuntimeConfig
	log      *slog.Logger
	now      func() time.Time
}

// New creates a Reconciler with the given runtime policy. A nil logger
// disables logging.
func New(cfg types.SearchRuntimeConfig, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Reconciler{
		sessions: make(map[string]*session),
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// Register creates the session for a search the client is about to start.
// plannedSources may be nil, in which case the full registry is assumed.
// Registering an id that already exists is a no-op.
func (r *Reconciler) Register(searchID, query string, plannedSources []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[searchID]; ok {
		return
	}
	if len(plannedSources) == 0 {
		plannedSources = tiers.Sources()
	}
	s := &session{
		id:        searchID,
		query:     query,
		status:    types.SessionActive,
		stage:     types.StageAnalyzing,
		sources:   make(map[string]*types.SourceRecord, len(plannedSources)),
		papers:    make(map[string]*paperEntry),
		aliases:   make(map[string]string),
		startedAt: r.now(),
	}
	for _, src := range plannedSources {
		s.sources[src] = &types.SourceRecord{
			Source: src,
			Tier:   string(tiers.Lookup(src).Tier),
			Status: types.SourcePending,
		}
		s.sourceOrder = append(s.sourceOrder, src)
	}
	s.sourcesTotal = len(plannedSources)
	r.sessions[searchID] = s
}

// Cancel marks the session terminal immediately, before the cancel command
// is even sent. Events already in flight are dropped on arrival.
func (r *Reconciler) Cancel(searchID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[searchID]
	if !ok || s.status.Terminal() {
		return false
	}
	s.status = types.SessionCancelled
	r.log.Info("search cancelled", "search_id", searchID)
	return true
}

// Fail records a locally synthesized session error, used when transport
// retries exhaust. No-op for unknown or already terminal sessions.
func (r *Reconciler) Fail(searchID, msg string, recoverable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[searchID]
	if !ok || s.status.Terminal() {
		return
	}
	s.status = types.SessionError
	s.errMsg = msg
	s.recoverable = recoverable
	r.log.Warn("session failed locally", "search_id", searchID, "error", msg)
}

// Forget drops a session entirely. Used once a terminal session has been
// persisted and the UI no longer needs it.
func (r *Reconciler) Forget(searchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, searchID)
}

// ActiveIDs lists sessions that still accept events, for resubscription
// after a reconnect.
func (r *Reconciler) ActiveIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for id, s := range r.sessions {
		if !s.status.Terminal() {
			out = append(out, id)
		}
	}
	return out
}

// MarkOverdueSlowSources applies the local skip heuristic: slow sources
// still pending once the grace period after the fast-sources stage has
// passed are marked skipped for display. Returns the sources marked. A
// later server-delivered status overrides the guess.
func (r *Reconciler) MarkOverdueSlowSources(searchID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[searchID]
	if !ok || s.status.Terminal() || s.fastDone.IsZero() {
		return nil
	}
	if r.now().Before(tiers.SkipDeadline(s.fastDone, r.cfg.SlowSourceGrace)) {
		return nil
	}
	var marked []string
	for _, src := range s.sourceOrder {
		rec := s.sources[src]
		if rec.Tier == string(tiers.Slow) && rec.Status == types.SourcePending {
			rec.Status = types.SourceSkipped
			rec.LocalSkip = true
			marked = append(marked, src)
		}
	}
	if len(marked) > 0 {
		s.recomputeSourcesComplete()
		r.log.Debug("slow sources locally skipped", "search_id", searchID, "sources", marked)
	}
	return marked
}

// canonicalFor resolves an incoming paper to an existing entry's canonical
// id via any of its identity keys, or returns "" when unseen.
func (s *session) canonicalFor(p *types.Paper) string {
	for _, key := range identityKeys(p) {
		if id, ok := s.aliases[key]; ok {
			return id
		}
	}
	return ""
}

// admit inserts a new paper at the end of the display order and registers
// its identity keys. Returns the canonical id.
func (s *session) admit(p types.Paper) string {
	canonical := p.ID
	if canonical == "" {
		canonical = normalizeDOI(p.DOI)
	}
	if canonical == "" {
		canonical = "title:" + normalizeTitle(p.Title)
	}
	p.ID = canonical
	s.papers[canonical] = &paperEntry{paper: p, inserted: s.inserted}
	s.inserted++
	s.order = append(s.order, canonical)
	for _, key := range identityKeys(&p) {
		s.aliases[key] = canonical
	}
	return canonical
}

// absorb merges a re-sighted paper into its existing entry and registers
// any identity keys the new sighting adds.
func (s *session) absorb(canonical string, p *types.Paper) {
	entry := s.papers[canonical]
	mergeInto(&entry.paper, p)
	for _, key := range identityKeys(p) {
		if _, ok := s.aliases[key]; !ok {
			s.aliases[key] = canonical
		}
	}
	// The merge may have added a DOI or title the entry lacked before.
	for _, key := range identityKeys(&entry.paper) {
		if _, ok := s.aliases[key]; !ok {
			s.aliases[key] = canonical
		}
	}
}

// recomputeSourcesComplete refreshes the cumulative terminal-source count.
func (s *session) recomputeSourcesComplete() {
	n := 0
	for _, rec := range s.sources {
		if rec.Status.Terminal() {
			n++
		}
	}
	s.sourcesComplete = n
}

// tierAllErrored reports whether every source in the given tier has
// errored.
func (s *session) tierAllErrored(tier string) bool {
	any := false
	for _, rec := range s.sources {
		if rec.Tier != tier {
			continue
		}
		any = true
		if rec.Status != types.SourceError {
			return false
		}
	}
	return any
}
