// Package aggregator implements qngin's WebSocket client pool: one
// reconnecting goroutine per configured dequeuer endpoint, each driving the
// per-endpoint state machine described in spec.md §4.1 and reconciling
// health notifications against the shared store (spec.md §4.2).
//
// Grounded on overseer/client.go's persistent reconnect loop (Run, connect,
// dispatch) and on original_source/qngin/src/qngin.c's ev_handler event
// switch for the exact state transitions.
package aggregator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dec112/prf/internal/store"
)

const (
	defaultReconnectDelay = 2 * time.Second
	defaultPollTick       = 500 * time.Millisecond
)

// Client owns one endpoint's connection lifecycle.
type Client struct {
	ep  *Endpoint
	reg *Registry
	st  store.Store

	connMu sync.Mutex
	conn   *websocket.Conn

	verbose bool

	closingRequested chan struct{}
	closedOnce       sync.Once
}

// NewClient constructs a client bound to a registry entry.
func NewClient(ep *Endpoint, reg *Registry, st store.Store, verbose bool) *Client {
	return &Client{
		ep:               ep,
		reg:              reg,
		st:               st,
		verbose:          verbose,
		closingRequested: make(chan struct{}),
	}
}

// Run drives the reconnect loop until ctx is cancelled. It re-initiates a
// connection attempt at every poll tick while the endpoint sits in
// DISCONNECTED or CLOSED, matching spec.md §4.1's supervisor loop.
func (c *Client) Run(ctx context.Context) {
	ticker := time.NewTicker(defaultPollTick)
	defer ticker.Stop()

	c.setState(StatePending)
	c.attempt(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			switch c.state() {
			case StateDisconnected, StateClosed:
				select {
				case <-c.closingRequested:
					// Shutdown was requested and this endpoint has already
					// reached a terminal state; do not reconnect.
					return
				default:
				}
				c.setState(StatePending)
				c.attempt(ctx)
			}
		}
	}
}

func (c *Client) state() State {
	for _, ep := range c.reg.Snapshot() {
		if ep.ID == c.ep.ID {
			return ep.State
		}
	}
	return StateUnknown
}

func (c *Client) setState(s State) {
	c.reg.SetState(c.ep.ID, s)
}

// attempt performs one connect + subscribe + read cycle. On any failure it
// sets DISCONNECTED and purges the dequeuer's rows per spec.md §4.1's
// "Disconnect policy".
func (c *Client) attempt(ctx context.Context) {
	dialer := websocket.Dialer{
		Subprotocols:     []string{Subprotocol},
		HandshakeTimeout: 10 * time.Second,
	}
	conn, resp, err := dialer.DialContext(ctx, c.ep.DialURL, nil)
	if err != nil {
		if c.verbose {
			log.Printf("qngin: %s: connect failed: %v", c.ep.DialURL, err)
		}
		c.fail(ctx)
		return
	}
	if resp.StatusCode != 101 {
		conn.Close()
		c.fail(ctx)
		return
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	c.setState(StateConnected)
	if err := c.send(msgGetHealth); err != nil {
		c.fail(ctx)
		return
	}

	c.readLoop(ctx)
}

func (c *Client) fail(ctx context.Context) {
	c.setState(StateDisconnected)
	if c.ep.Dequeuer != "" {
		if err := Purge(ctx, c.st, c.ep.Dequeuer); err != nil {
			log.Printf("qngin: %s: purge on disconnect: %v", c.ep.Dequeuer, err)
		}
	}
}

func (c *Client) readLoop(ctx context.Context) {
	defer func() {
		c.connMu.Lock()
		if c.conn != nil {
			c.conn.Close()
			c.conn = nil
		}
		c.connMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			// *connection close event*: if state > DISCONNECTED, set CLOSED.
			if c.state() != StateDisconnected {
				c.setState(StateClosed)
			}
			if c.ep.Dequeuer != "" {
				if perr := Purge(context.Background(), c.st, c.ep.Dequeuer); perr != nil {
					log.Printf("qngin: %s: purge on close: %v", c.ep.Dequeuer, perr)
				}
			}
			return
		}

		if err := c.handleFrame(ctx, raw); err != nil {
			log.Printf("qngin: %s: frame handling: %v", c.ep.DialURL, err)
		}
	}
}

func (c *Client) handleFrame(ctx context.Context, raw []byte) error {
	frame, kind, err := parseFrame(raw)
	if err != nil {
		log.Printf("qngin: %s: warning: malformed frame: %v", c.ep.DialURL, err)
		return nil
	}

	switch kind {
	case frameGetHealthResponse, frameHealthNotification:
		if frame.Health == nil {
			log.Printf("qngin: %s: warning: missing health payload", c.ep.DialURL)
			return nil
		}
		dequeuer := frame.Health.Sip.URI
		if dequeuer == "" {
			dequeuer = c.ep.Dequeuer
		}
		if c.ep.Dequeuer == "" && dequeuer != "" {
			c.ep.Dequeuer = dequeuer
			c.reg.SetDequeuer(c.ep.ID, dequeuer)
		}
		checkRegistered(dequeuer, frame.Health.Sip)
		if err := Reconcile(ctx, c.st, dequeuer, frame.Health.Services); err != nil {
			log.Printf("qngin: %s: reconcile: %v", dequeuer, err)
		}
		if kind == frameGetHealthResponse {
			return c.send(msgSubscribeHealth)
		}
		return nil

	case frameSubscribeHealthResponse:
		c.setState(StateSubscribed)
		return nil

	case frameUnsubscribeHealthResponse:
		// if SUBSCRIBED -> CLOSED; if CLOSING -> CLOSED.
		c.setState(StateClosed)
		if c.ep.Dequeuer != "" {
			if err := Purge(ctx, c.st, c.ep.Dequeuer); err != nil {
				log.Printf("qngin: %s: purge on unsubscribe: %v", c.ep.Dequeuer, err)
			}
		}
		return nil

	default:
		log.Printf("qngin: %s: warning: unrecognized frame (method=%q event=%q)", c.ep.DialURL, frame.Method, frame.Event)
		return nil
	}
}

func (c *Client) send(msg []byte) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("send: no connection")
	}
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

// Shutdown sends unsubscribe_health if the endpoint is SUBSCRIBED, marks it
// CLOSING, and signals Run to stop reconnecting once the endpoint settles
// into a terminal state (spec.md §4.1 "shutdown signal").
func (c *Client) Shutdown() {
	c.closedOnce.Do(func() { close(c.closingRequested) })
	if c.state() == StateSubscribed {
		c.setState(StateClosing)
		if err := c.send(msgUnsubscribeHealth); err != nil {
			// No ack will arrive; settle directly.
			c.setState(StateClosed)
		}
	}
}
