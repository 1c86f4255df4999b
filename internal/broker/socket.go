package broker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"

	"github.com/pesabridge/pesabridge/internal/auth"
	"github.com/pesabridge/pesabridge/pkg/schema"
)

const (
	// EventReady is sent once a connection has been admitted.
	EventReady = "ready"
	// EventSubscribed acknowledges a successful subscription.
	EventSubscribed = "subscribed"
	// EventError carries protocol and authorization faults.
	EventError = "error"
	// statusPrefix scopes delivery frames to one transaction.
	statusPrefix = "status:"

	writeTimeout = 5 * time.Second
)

// Frame is the wire shape for every realtime message, both directions.
type Frame struct {
	Event         string `json:"event"`
	TransactionID string `json:"transaction_id,omitempty"`
	Data          any    `json:"data,omitempty"`
}

// Ownership answers whether a project initiated a transaction. Satisfied by
// gateway.Gateway.
type Ownership interface {
	Owns(projectID, transactionID string) (bool, error)
}

// Socket is the websocket frontend of the notification broker. Each accepted
// connection re-runs the access guard with its connection-time credential
// before any subscribe is honored.
type Socket struct {
	Guard    *auth.Guard
	Owner    Ownership
	Registry *Registry
	Log      *slog.Logger
}

func NewSocket(guard *auth.Guard, owner Ownership, registry *Registry, log *slog.Logger) *Socket {
	return &Socket{Guard: guard, Owner: owner, Registry: registry, Log: log}
}

// Handler upgrades GET /realtime. The API key travels as a query parameter,
// the connection-time credential, not a header: browsers cannot set headers
// on websocket dials.
func (s *Socket) Handler(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	authCtx, err := s.Guard.Authenticate(c.Query("key"))
	if err != nil {
		// One error frame, then refuse the connection outright.
		s.write(ctx, conn, Frame{Event: EventError, Data: gin.H{"error": auth.Message(err)}})
		_ = conn.Close(websocket.StatusPolicyViolation, "authentication failed")
		return
	}

	handle := s.Registry.Attach(authCtx.Project.ID)
	defer s.Registry.Drop(handle)

	s.Log.Info("realtime connection opened",
		"connection_id", handle.ID,
		"project_id", authCtx.Project.ID,
	)

	if err := s.write(ctx, conn, Frame{Event: EventReady}); err != nil {
		return
	}

	// Reader goroutine: parses client frames and forwards them for the
	// single writer loop below to act on. A read error means the peer went
	// away; its subscriptions die with the handle.
	frames := make(chan Frame)
	readErr := make(chan error, 1)
	go func() {
		for {
			var f Frame
			if err := wsjson.Read(ctx, conn, &f); err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return

		case <-readErr:
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return

		case f := <-frames:
			if err := s.handleFrame(ctx, conn, authCtx, handle, f); err != nil {
				// Protocol faults close only this connection.
				_ = conn.Close(websocket.StatusProtocolError, "protocol fault")
				return
			}

		case evt, ok := <-handle.Events():
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "closed")
				return
			}
			frame := Frame{Event: statusPrefix + evt.TransactionID, TransactionID: evt.TransactionID, Data: evt}
			if err := s.write(ctx, conn, frame); err != nil {
				_ = conn.Close(websocket.StatusNormalClosure, "write failed")
				return
			}
		}
	}
}

func (s *Socket) handleFrame(ctx context.Context, conn *websocket.Conn, authCtx *auth.Context, handle *Handle, f Frame) error {
	switch f.Event {
	case "subscribe":
		if f.TransactionID == "" {
			return s.reject(ctx, conn, "transaction_id is required")
		}
		owns, err := s.Owner.Owns(authCtx.Project.ID, f.TransactionID)
		if err != nil {
			s.Log.Error("ownership check failed", "transaction_id", f.TransactionID, "error", err)
			return s.reject(ctx, conn, "Service temporarily unavailable")
		}
		if !owns {
			// Foreign or unknown transaction: an explicit rejection, and no
			// subscription is registered.
			return s.write(ctx, conn, Frame{
				Event:         EventError,
				TransactionID: f.TransactionID,
				Data:          gin.H{"error": "Transaction not found"},
			})
		}
		s.Registry.Subscribe(handle, f.TransactionID)
		return s.write(ctx, conn, Frame{Event: EventSubscribed, TransactionID: f.TransactionID})

	case "unsubscribe":
		s.Registry.Unsubscribe(handle, f.TransactionID)
		return s.write(ctx, conn, Frame{Event: "unsubscribed", TransactionID: f.TransactionID})

	default:
		_ = s.reject(ctx, conn, "unknown event "+f.Event)
		return errors.New("unknown client event")
	}
}

// reject sends an error frame but keeps the connection open.
func (s *Socket) reject(ctx context.Context, conn *websocket.Conn, msg string) error {
	return s.write(ctx, conn, Frame{Event: EventError, Data: gin.H{"error": msg}})
}

func (s *Socket) write(ctx context.Context, conn *websocket.Conn, f Frame) error {
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, conn, f)
}

// Publish republishes a provider status event to every entitled subscriber.
// Exposed on Socket so the webhook ingress needs only one collaborator.
func (s *Socket) Publish(transactionID string, evt schema.StatusEvent) int {
	n := s.Registry.Publish(transactionID, evt)
	s.Log.Debug("status event published", "transaction_id", transactionID, "delivered", n)
	return n
}
