// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package stream orchestrates one litstream client: it owns the transport
// channel and the reconciler, routes inbound events, runs the slow-source
// skip heuristic, and persists finished sessions.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shahabnazari/litstream/internal/protocol"
	"github.com/shahabnazari/litstream/internal/reconcile"
	"github.com/shahabnazari/litstream/internal/store"
	"github.com/shahabnazari/litstream/internal/tiers"
	"github.com/shahabnazari/litstream/internal/transport"
	"github.com/shahabnazari/litstream/pkg/types"
)

// skipTickInterval is how often the slow-source grace check runs for an
// active search.
const skipTickInterval = time.Second

// Client is a litstream search client. It supports any number of
// concurrent searches over a single transport channel.
type Client struct {
	cfg types.ClientConfig
	log *slog.Logger

	transport *transport.Client
	rec       *reconcile.Reconciler
	sessions  *store.Store // optional; nil disables persistence

	mu       sync.Mutex
	watchers map[string]chan reconcile.Snapshot
	stopped  map[string]chan struct{} // per-search skip ticker stop
	runCtx   context.Context
	cancel   context.CancelFunc
}

// New builds a client from config. The session store may be nil.
func New(cfg types.ClientConfig, sessions *store.Store, log *slog.Logger) *Client {
	cfg = cfg.WithDefaults()
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := &Client{
		cfg:       cfg,
		log:       log,
		transport: transport.NewClient(cfg.Stream, log),
		rec:       reconcile.New(cfg.Search, log),
		sessions:  sessions,
		watchers:  make(map[string]chan reconcile.Snapshot),
		stopped:   make(map[string]chan struct{}),
	}
	c.transport.OnEvent(c.handleEvent)
	c.transport.OnStateChange(c.handleState)
	c.transport.SetResubscriber(c.rec.ActiveIDs)
	return c
}

// Open establishes the stream channel. Idempotent.
func (c *Client) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.runCtx == nil {
		c.runCtx, c.cancel = context.WithCancel(context.Background())
	}
	c.mu.Unlock()
	return c.transport.Open(ctx)
}

// Close cancels background work and tears the channel down.
func (c *Client) Close() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.transport.Close()
}

// Search starts a new search session and returns its searchId along with
// a snapshot channel. The channel carries the latest view after each
// applied event; the final value has a terminal Status. The caller stops
// reading after that.
func (c *Client) Search(query string, opts types.SearchOptions) (string, <-chan reconcile.Snapshot, error) {
	if query == "" {
		return "", nil, fmt.Errorf("query is empty")
	}
	if !opts.Purpose.Valid() {
		return "", nil, fmt.Errorf("unknown search purpose %q", opts.Purpose)
	}
	for _, src := range opts.Sources {
		if !tiers.Known(src) {
			return "", nil, fmt.Errorf("unknown source %q", src)
		}
	}

	searchID := uuid.NewString()
	c.rec.Register(searchID, query, opts.Sources)

	ch := make(chan reconcile.Snapshot, 1)
	stop := make(chan struct{})
	c.mu.Lock()
	c.watchers[searchID] = ch
	c.stopped[searchID] = stop
	runCtx := c.runCtx
	c.mu.Unlock()
	if runCtx == nil {
		runCtx = context.Background()
	}

	c.transport.Send(protocol.StartSearch{SearchID: searchID, Query: query, Options: opts})
	go c.skipLoop(runCtx, searchID, stop)

	c.log.Info("search started", "search_id", searchID, "query", query)
	return searchID, ch, nil
}

// Cancel terminates a search locally and tells the server to stop. The
// session flips to cancelled before the command is queued, so in-flight
// events are dropped on arrival.
func (c *Client) Cancel(searchID string) {
	if !c.rec.Cancel(searchID) {
		return
	}
	c.transport.Send(protocol.CancelSearch{SearchID: searchID})
	c.publish(searchID)
}

// Snapshot returns the current view of a session.
func (c *Client) Snapshot(searchID string) (reconcile.Snapshot, bool) {
	return c.rec.Snapshot(searchID)
}

// ConnectionState exposes the transport state for display.
func (c *Client) ConnectionState() transport.State {
	return c.transport.State()
}

func (c *Client) handleEvent(ev protocol.Event) {
	if err := c.rec.Apply(ev); err != nil {
		switch {
		case errors.Is(err, reconcile.ErrStaleSession),
			errors.Is(err, reconcile.ErrSessionTerminal):
			c.log.Debug("event dropped", "event", ev.Name(), "reason", err)
		default:
			c.log.Warn("event rejected", "event", ev.Name(), "error", err)
		}
		return
	}
	c.publish(ev.Session())
}

// handleState reacts to transport state changes. Exhausted reconnection
// fails every active session locally; a search cannot finish without a
// channel.
func (c *Client) handleState(s transport.State) {
	if s != transport.StateError {
		return
	}
	for _, id := range c.rec.ActiveIDs() {
		c.rec.Fail(id, "connection lost and reconnect attempts exhausted", false)
		c.publish(id)
	}
}

// publish pushes the latest snapshot to the session watcher. Latest wins:
// a slow consumer only ever misses intermediate views, never the terminal
// one.
func (c *Client) publish(searchID string) {
	snap, ok := c.rec.Snapshot(searchID)
	if !ok {
		return
	}
	c.mu.Lock()
	ch := c.watchers[searchID]
	c.mu.Unlock()
	if ch != nil {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
	if snap.Status.Terminal() {
		c.finish(searchID, snap)
	}
}

// finish persists a terminal session and stops its background work.
func (c *Client) finish(searchID string, snap reconcile.Snapshot) {
	c.mu.Lock()
	stop := c.stopped[searchID]
	delete(c.stopped, searchID)
	c.mu.Unlock()
	if stop != nil {
		close(stop)
	}
	if c.sessions == nil {
		return
	}
	if err := c.sessions.Save(snap); err != nil {
		c.log.Warn("session persist failed", "search_id", searchID, "error", err)
	}
}

// skipLoop periodically applies the slow-source grace heuristic until the
// session terminates.
func (c *Client) skipLoop(ctx context.Context, searchID string, stop <-chan struct{}) {
	ticker := time.NewTicker(skipTickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if marked := c.rec.MarkOverdueSlowSources(searchID); len(marked) > 0 {
				c.publish(searchID)
			}
		}
	}
}
