// Package provider talks to the upstream mobile-money API that actually
// executes STK pushes. The bridge only orchestrates around it; settlement,
// currency handling and retry tuning all live upstream.
package provider

import (
	"context"
	"errors"

	"github.com/pesabridge/pesabridge/pkg/schema"
)

// ErrUnavailable is returned when the provider cannot be reached at the
// transport level. Retryable with backoff; everything else is terminal.
var ErrUnavailable = errors.New("payment provider unavailable")

// RejectionError is a provider-side decline. The provider's own message is
// carried verbatim so SDK consumers see one stable error shape regardless of
// provider quirks.
type RejectionError struct {
	Message string
}

func (e *RejectionError) Error() string { return e.Message }

// PushRequest is a normalized STK-push initiation.
type PushRequest struct {
	TransactionID string
	Phone         string
	Amount        float64
	Reference     string
	// Sandbox selects the provider's test environment. Set when the caller
	// authenticated with a test key.
	Sandbox bool
}

// PushResponse is the provider's acceptance of an initiation.
type PushResponse struct {
	Status       schema.TxStatus
	Message      string
	ProviderRef  string
	ProviderData map[string]any
}

// Client is the upstream provider contract. Implementations must never be
// called while holding bridge-internal locks.
type Client interface {
	InitiateSTKPush(ctx context.Context, req PushRequest) (PushResponse, error)
	QueryStatus(ctx context.Context, transactionID string, sandbox bool) (map[string]any, error)
}
