// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package transport maintains the WebSocket channel carrying search stream
// events. One connection multiplexes any number of concurrent searches;
// events are routed upstream by searchId.
//
// Delivery order across a reconnect is not guaranteed. Consumers must stay
// order-tolerant; the transport's only promises are that frames are parsed
// and validated before delivery and that commands queued while offline are
// sent once the channel is back.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/shahabnazari/litstream/internal/protocol"
	"github.com/shahabnazari/litstream/pkg/types"
)

// State is the connection state of the transport.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateError        State = "error"
)

// ErrClosed is returned by Open after Close has been called.
var ErrClosed = errors.New("transport closed")

// EventHandler receives every parsed inbound event.
type EventHandler func(protocol.Event)

// StateHandler is notified of connection state changes.
type StateHandler func(State)

// Client is a reconnecting WebSocket client. Zero value is not usable;
// construct with NewClient.
type Client struct {
	cfg    types.StreamConfig
	log    *slog.Logger
	dialer *websocket.Dialer

	onEvent EventHandler
	onState StateHandler

	// resubscriber supplies the searchIds still active so they can be
	// re-attached after a reconnect.
	resubscriber func() []string

	limiter *rate.Limiter

	mu     sync.Mutex
	conn   *websocket.Conn
	state  State
	queue  [][]byte
	kick   chan struct{}
	closed bool
	cancel context.CancelFunc

	wmu sync.Mutex // serializes writes to conn

	wg sync.WaitGroup
}

// NewClient builds a transport client. A nil logger disables logging.
func NewClient(cfg types.StreamConfig, log *slog.Logger) *Client {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		cfg:     cfg,
		log:     log,
		dialer:  &websocket.Dialer{HandshakeTimeout: cfg.DialTimeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.CommandRate), 1),
		state:   StateDisconnected,
		kick:    make(chan struct{}, 1),
	}
}

// OnEvent sets the inbound event handler. Must be called before Open.
func (c *Client) OnEvent(h EventHandler) { c.onEvent = h }

// OnStateChange sets the connection state handler. Must be called before
// Open.
func (c *Client) OnStateChange(h StateHandler) { c.onState = h }

// SetResubscriber sets the callback that lists active searchIds for
// post-reconnect resubscription. Must be called before Open.
func (c *Client) SetResubscriber(fn func() []string) { c.resubscriber = fn }

// Open establishes the channel and starts the read and write pumps.
// Idempotent: calling Open while connecting or connected is a no-op.
func (c *Client) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == StateConnecting || c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	c.setState(StateConnecting)
	conn, err := c.dial(ctx)
	if err != nil {
		c.setState(StateError)
		return fmt.Errorf("opening stream to %s: %w", c.cfg.ServerURL, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.conn = conn
	c.cancel = cancel
	c.mu.Unlock()
	c.setState(StateConnected)

	c.wg.Add(2)
	go c.readLoop(runCtx)
	go c.writePump(runCtx)
	c.kickPump()
	return nil
}

// Send queues a command for delivery. It never blocks and never fails
// synchronously: while disconnected the command waits in the queue until
// the channel is back.
func (c *Client) Send(cmd protocol.Command) {
	data, err := protocol.EncodeCommand(cmd)
	if err != nil {
		c.log.Error("dropping unencodable command", "command", cmd.CommandName(), "error", err)
		return
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.queue = append(c.queue, data)
	c.mu.Unlock()
	c.kickPump()
}

// Close tears the channel down and stops reconnection. Safe to call more
// than once.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	cancel := c.cancel
	conn := c.conn
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	c.wg.Wait()
	c.setState(StateDisconnected)
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	handler := c.onState
	c.mu.Unlock()
	c.log.Debug("transport state", "state", s)
	if handler != nil {
		handler(s)
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.ServerURL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, err
}

// stopRun cancels the run context so both pumps exit together once
// reconnection is abandoned.
func (c *Client) stopRun() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// kickPump wakes the write pump without blocking.
func (c *Client) kickPump() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// currentConn returns the connection if connected, else nil.
func (c *Client) currentConn() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected {
		return nil
	}
	return c.conn
}

// writePump drains the command queue whenever the channel is connected,
// rate limiting outbound commands so a reconnect storm cannot flood the
// server.
func (c *Client) writePump(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.kick:
		}
		for {
			conn := c.currentConn()
			if conn == nil {
				break
			}
			c.mu.Lock()
			if len(c.queue) == 0 {
				c.mu.Unlock()
				break
			}
			data := c.queue[0]
			c.queue = c.queue[1:]
			c.mu.Unlock()

			if err := c.limiter.Wait(ctx); err != nil {
				return
			}
			if err := c.write(conn, data); err != nil {
				// Requeue at the head; the read loop will notice the
				// broken connection and reconnect.
				c.log.Debug("command write failed, requeued", "error", err)
				c.mu.Lock()
				c.queue = append([][]byte{data}, c.queue...)
				c.mu.Unlock()
				break
			}
		}
	}
}

func (c *Client) write(conn *websocket.Conn, data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop reads frames until the connection breaks, then runs bounded
// reconnection. Malformed frames are logged and dropped; unknown event
// names are dropped silently for forward compatibility.
func (c *Client) readLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		conn := c.currentConn()
		if conn == nil {
			return
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("stream read failed", "error", err)
			if !c.reconnect(ctx) {
				c.stopRun()
				return
			}
			continue
		}
		c.deliver(data)
	}
}

func (c *Client) deliver(data []byte) {
	ev, err := protocol.Parse(data)
	if err != nil {
		if errors.Is(err, protocol.ErrUnknownEvent) {
			c.log.Debug("unknown event dropped", "error", err)
		} else {
			c.log.Warn("malformed event dropped", "error", err)
		}
		return
	}
	if c.onEvent != nil {
		c.onEvent(ev)
	}
}

// reconnect attempts to restore the channel with bounded exponential
// backoff. On success it resubscribes every search the client still
// considers active. Returns false once attempts exhaust or the transport
// is closed; the caller then stops and the orchestrator fails the active
// sessions.
func (c *Client) reconnect(ctx context.Context) bool {
	c.setState(StateReconnecting)
	for attempt := 0; attempt < c.cfg.MaxReconnectAttempts; attempt++ {
		delay := backoffDelay(c.cfg.ReconnectBaseDelay, attempt)
		c.log.Info("reconnecting", "attempt", attempt+1,
			"max", c.cfg.MaxReconnectAttempts, "delay", delay)
		if !sleep(ctx, delay) {
			return false
		}

		dialCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
		conn, err := c.dial(dialCtx)
		cancel()
		if err != nil {
			c.log.Warn("reconnect attempt failed", "attempt", attempt+1, "error", err)
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			conn.Close()
			return false
		}
		c.conn = conn
		c.mu.Unlock()
		c.setState(StateConnected)

		if c.resubscriber != nil {
			if ids := c.resubscriber(); len(ids) > 0 {
				if data, err := protocol.EncodeCommand(protocol.Resubscribe{SearchIDs: ids}); err == nil {
					if err := c.write(conn, data); err != nil {
						c.log.Warn("resubscribe write failed", "error", err)
						conn.Close()
						c.setState(StateReconnecting)
						continue
					}
				}
			}
		}
		c.kickPump()
		return true
	}
	c.log.Error("reconnect attempts exhausted")
	c.setState(StateError)
	return false
}
