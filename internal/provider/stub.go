package provider

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/google/uuid"

	"github.com/pesabridge/pesabridge/pkg/schema"
)

var phonePattern = regexp.MustCompile(`^254[0-9]{9}$`)

// Stub is an in-memory provider used in sandbox deployments and tests. It
// accepts any well-formed push, flips it to PENDING, and answers status
// queries from its own memory.
type Stub struct {
	mu       sync.Mutex
	pushes   map[string]PushRequest
	statuses map[string]schema.TxStatus
}

func NewStub() *Stub {
	return &Stub{
		pushes:   make(map[string]PushRequest),
		statuses: make(map[string]schema.TxStatus),
	}
}

func (s *Stub) InitiateSTKPush(_ context.Context, req PushRequest) (PushResponse, error) {
	if !phonePattern.MatchString(req.Phone) {
		return PushResponse{}, &RejectionError{Message: "Invalid phone number format"}
	}
	if req.Amount <= 0 {
		return PushResponse{}, &RejectionError{Message: "Amount must be greater than zero"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushes[req.TransactionID] = req
	s.statuses[req.TransactionID] = schema.TxPending

	return PushResponse{
		Status:      schema.TxPending,
		Message:     "STK push sent to handset",
		ProviderRef: "stub-" + uuid.New().String(),
		ProviderData: map[string]any{
			"CheckoutRequestID": uuid.New().String(),
			"ResponseCode":      "0",
		},
	}, nil
}

func (s *Stub) QueryStatus(_ context.Context, transactionID string, _ bool) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, ok := s.statuses[transactionID]
	if !ok {
		return nil, &RejectionError{Message: fmt.Sprintf("Unknown transaction %s", transactionID)}
	}
	return map[string]any{
		"transaction_id": transactionID,
		"status":         string(status),
	}, nil
}

// SetStatus lets tests and the sandbox webhook simulator move a transaction
// through its lifecycle.
func (s *Stub) SetStatus(transactionID string, status schema.TxStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[transactionID] = status
}
