package schema

import "time"

// TxStatus is the provider-enumerated state of an STK-push transaction.
type TxStatus string

const (
	TxInitiated TxStatus = "INITIATED"
	TxPending   TxStatus = "PENDING"
	TxSuccess   TxStatus = "SUCCESS"
	TxFailed    TxStatus = "FAILED"
)

// Transaction records one payment request and which project initiated it.
// The bridge owns writes; the notification broker only reads it for fan-out
// filtering.
type Transaction struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Phone     string    `json:"phone"`
	Amount    float64   `json:"amount"`
	Reference string    `json:"reference,omitempty"`
	Status    TxStatus  `json:"status"`
	KeyKind   KeyKind   `json:"key_kind"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusEvent is the payload pushed to realtime subscribers when a
// transaction changes state.
type StatusEvent struct {
	TransactionID string         `json:"transaction_id"`
	Status        TxStatus       `json:"status"`
	Message       string         `json:"message,omitempty"`
	ProviderData  map[string]any `json:"provider_data,omitempty"`
	At            time.Time      `json:"at"`
}
