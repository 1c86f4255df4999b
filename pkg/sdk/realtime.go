package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/pesabridge/pesabridge/pkg/schema"
)

// frame mirrors the server's realtime wire shape. Data is decoded lazily:
// status frames carry a schema.StatusEvent, error frames an {"error": msg}
// object.
type frame struct {
	Event         string          `json:"event"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Data          json.RawMessage `json:"data,omitempty"`
}

func (f frame) errorMessage() string {
	var failure struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(f.Data, &failure) == nil && failure.Error != "" {
		return failure.Error
	}
	return "connection rejected"
}

// SubscribeToUpdates registers onUpdate for a transaction's status events.
// Registration is fire-and-forget: events arrive asynchronously on a reader
// goroutine. The websocket is dialed on first use.
func (c *Client) SubscribeToUpdates(transactionID string, onUpdate func(schema.StatusEvent)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.conn == nil {
		if err := c.dialLocked(); err != nil {
			return err
		}
	}

	c.handlers[transactionID] = append(c.handlers[transactionID], onUpdate)

	writeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return wsjson.Write(writeCtx, c.conn, frame{Event: "subscribe", TransactionID: transactionID})
}

// Disconnect tears down the realtime channel and its handlers. Safe to call
// repeatedly and before any subscription was made.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.handlers = make(map[string][]func(schema.StatusEvent))

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "disconnect")
		c.conn = nil
	}
	return nil
}

// dialLocked opens the realtime connection and starts the reader loop.
// MUST be called while holding c.mu.
func (c *Client) dialLocked() error {
	ctx, cancel := context.WithCancel(context.Background())

	dialCtx, dialDone := context.WithTimeout(ctx, 10*time.Second)
	defer dialDone()

	conn, _, err := websocket.Dial(dialCtx, c.realtimeURL(), nil)
	if err != nil {
		cancel()
		return fmt.Errorf("realtime dial failed: %w", err)
	}

	// The server's first frame is either "ready" or an auth rejection.
	var first frame
	readCtx, readDone := context.WithTimeout(ctx, 10*time.Second)
	err = wsjson.Read(readCtx, conn, &first)
	readDone()
	if err != nil {
		cancel()
		_ = conn.Close(websocket.StatusNormalClosure, "handshake failed")
		return fmt.Errorf("realtime handshake failed: %w", err)
	}
	if first.Event == "error" {
		cancel()
		_ = conn.Close(websocket.StatusNormalClosure, "rejected")
		return fmt.Errorf("realtime connection rejected: %s", first.errorMessage())
	}

	// A reconnect replaces the previous connection's context; release it so
	// nothing tied to the dead connection lingers.
	if c.cancel != nil {
		c.cancel()
	}
	c.conn = conn
	c.cancel = cancel
	go c.readLoop(ctx, conn)
	return nil
}

// readLoop dispatches incoming status frames to registered handlers. On a
// read failure it attempts to reconnect with backoff and re-subscribe,
// mirroring the retry idiom of the HTTP side; events missed while offline
// are not replayed.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			if ctx.Err() != nil {
				return
			}
			if rerr := c.reconnect(ctx); rerr != nil {
				fmt.Fprintf(os.Stderr, "[PesaBridge SDK] realtime channel lost: %v\n", rerr)
			}
			// On success a fresh readLoop owns the new connection.
			return
		}
		c.dispatch(f)
	}
}

func (c *Client) dispatch(f frame) {
	if !strings.HasPrefix(f.Event, "status:") {
		// Server-side rejections (for example a subscribe to a transaction
		// this key does not own) arrive as error frames with no handler to
		// route to. Surface them rather than dropping them on the floor.
		if f.Event == "error" {
			fmt.Fprintf(os.Stderr, "[PesaBridge SDK] server rejected request: %s\n", f.errorMessage())
		}
		return
	}

	var evt schema.StatusEvent
	if err := json.Unmarshal(f.Data, &evt); err != nil {
		return
	}

	c.mu.Lock()
	handlers := append([]func(schema.StatusEvent){}, c.handlers[f.TransactionID]...)
	c.mu.Unlock()

	for _, handler := range handlers {
		handler(evt)
	}
}

// reconnect redials up to 3 times with exponential backoff and replays the
// current subscription set. Returns nil on success.
func (c *Client) reconnect(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return ErrClosed
		}
		c.conn = nil
		if lastErr = c.dialLocked(); lastErr == nil {
			for txID := range c.handlers {
				writeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				_ = wsjson.Write(writeCtx, c.conn, frame{Event: "subscribe", TransactionID: txID})
				cancel()
			}
			c.mu.Unlock()
			return nil
		}
		c.mu.Unlock()
	}
	return lastErr
}

func (c *Client) realtimeURL() string {
	base := strings.TrimSuffix(c.baseURL, "/")
	return base + "/realtime?key=" + url.QueryEscape(c.apiKey)
}
