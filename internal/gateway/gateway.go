// Package gateway orchestrates payment initiation and status reads between
// authenticated clients and the upstream provider. It owns exactly one
// authorization decision beyond the access guard: a transaction may only be
// read by the project that initiated it.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pesabridge/pesabridge/internal/auth"
	"github.com/pesabridge/pesabridge/internal/provider"
	"github.com/pesabridge/pesabridge/internal/store"
	"github.com/pesabridge/pesabridge/pkg/schema"
)

// ErrForeignTransaction is returned when a caller operates on a transaction
// its project does not own. Unknown ids get the same answer so the gateway
// is not an existence oracle for other tenants' transactions.
var ErrForeignTransaction = errors.New("Transaction not found")

// InitiateRequest is a client's payment initiation.
type InitiateRequest struct {
	Phone     string  `json:"phone" binding:"required"`
	Amount    float64 `json:"amount" binding:"required,gt=0"`
	Reference string  `json:"reference"`
}

// InitiateResult is the normalized response shape for an accepted initiation.
type InitiateResult struct {
	Status        schema.TxStatus `json:"status"`
	Message       string          `json:"message"`
	TransactionID string          `json:"transactionId"`
	ProviderData  map[string]any  `json:"providerData,omitempty"`
}

// Gateway forwards initiate/status calls to the provider and keeps the
// ownership ledger current. Stateless per call; safe for concurrent use.
type Gateway struct {
	Provider provider.Client
	Ledger   store.TransactionLedger
	Log      *slog.Logger
}

func New(p provider.Client, ledger store.TransactionLedger, log *slog.Logger) *Gateway {
	return &Gateway{Provider: p, Ledger: ledger, Log: log}
}

// Initiate forwards an STK push to the provider scoped to the caller's
// project and records ownership in the ledger. Provider rejections surface
// the provider's message verbatim inside a RejectionError; transport faults
// surface as provider.ErrUnavailable.
func (g *Gateway) Initiate(ctx context.Context, authCtx *auth.Context, req InitiateRequest) (InitiateResult, error) {
	txID := uuid.New().String()

	// Provider round-trip happens before any ledger write and never under a
	// lock, so a slow provider cannot stall unrelated work.
	resp, err := g.Provider.InitiateSTKPush(ctx, provider.PushRequest{
		TransactionID: txID,
		Phone:         req.Phone,
		Amount:        req.Amount,
		Reference:     req.Reference,
		Sandbox:       authCtx.Kind == schema.KeyTest,
	})
	if err != nil {
		return InitiateResult{}, err
	}

	now := time.Now().UTC()
	tx := schema.Transaction{
		ID:        txID,
		ProjectID: authCtx.Project.ID,
		Phone:     req.Phone,
		Amount:    req.Amount,
		Reference: req.Reference,
		Status:    resp.Status,
		KeyKind:   authCtx.Kind,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := g.Ledger.SaveTransaction(tx); err != nil {
		g.Log.Error("failed to record transaction", "transaction_id", txID, "error", err)
		return InitiateResult{}, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	g.Log.Info("transaction initiated",
		"transaction_id", txID,
		"project_id", authCtx.Project.ID,
		"key_kind", authCtx.Kind,
		"amount", req.Amount,
	)

	return InitiateResult{
		Status:        resp.Status,
		Message:       resp.Message,
		TransactionID: txID,
		ProviderData:  resp.ProviderData,
	}, nil
}

// Status is a read-through to the provider, gated on ownership: a
// transaction initiated by another project yields ErrForeignTransaction and
// never leaks provider state.
func (g *Gateway) Status(ctx context.Context, authCtx *auth.Context, transactionID string) (map[string]any, error) {
	tx, err := g.Ledger.Transaction(transactionID)
	if err != nil {
		if errors.Is(err, store.ErrTransactionNotFound) {
			return nil, ErrForeignTransaction
		}
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	if tx.ProjectID != authCtx.Project.ID {
		return nil, ErrForeignTransaction
	}

	// Transactions initiated with a test key stay in the provider's sandbox
	// for their whole lifecycle, status reads included.
	return g.Provider.QueryStatus(ctx, transactionID, tx.KeyKind == schema.KeyTest)
}

// Owns reports whether transactionID belongs to projectID. The notification
// broker uses this to vet subscriptions before registering them.
func (g *Gateway) Owns(projectID, transactionID string) (bool, error) {
	tx, err := g.Ledger.Transaction(transactionID)
	if err != nil {
		if errors.Is(err, store.ErrTransactionNotFound) {
			return false, nil
		}
		return false, err
	}
	return tx.ProjectID == projectID, nil
}
