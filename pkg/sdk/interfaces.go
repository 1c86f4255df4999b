package sdk

import (
	"errors"

	"github.com/pesabridge/pesabridge/pkg/schema"
)

var (
	// ErrClosed is returned when an operation is attempted on a client whose
	// realtime channel was torn down with Disconnect.
	ErrClosed = errors.New("client disconnected")
)

// PaymentRequest is one STK-push initiation as seen by an integrator.
type PaymentRequest struct {
	Phone     string  `json:"phone" validate:"required"`
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Reference string  `json:"reference,omitempty"`
}

// PaymentResponse is the bridge's normalized answer to Pay.
type PaymentResponse struct {
	Status        schema.TxStatus `json:"status"`
	Message       string          `json:"message"`
	TransactionID string          `json:"transactionId"`
	ProviderData  map[string]any  `json:"providerData,omitempty"`
}

// --- Functional Interfaces (Interface Segregation) ---

// Payer initiates payment requests.
type Payer interface {
	Pay(req PaymentRequest) (PaymentResponse, error)
}

// StatusReader polls transaction status.
type StatusReader interface {
	GetStatus(transactionID string) (map[string]any, error)
}

// UpdateSubscriber manages the realtime channel: fire-and-forget
// registration of per-transaction handlers, delivered asynchronously.
type UpdateSubscriber interface {
	SubscribeToUpdates(transactionID string, onUpdate func(schema.StatusEvent)) error
	// Disconnect tears the realtime channel down. Idempotent.
	Disconnect() error
}

// --- Composite Interface ---

// Bridge is the full client contract against a PesaBridge deployment.
type Bridge interface {
	Payer
	StatusReader
	UpdateSubscriber
}
