// Package store defines the contracts the bridge has with its persistent
// state: the externally provisioned project/user records and the transaction
// ledger the gateway writes.
package store

import (
	"errors"

	"github.com/pesabridge/pesabridge/pkg/schema"
)

var (
	// ErrProjectNotFound is returned when no project matches a lookup.
	ErrProjectNotFound = errors.New("project not found")
	// ErrUserNotFound is returned when a project's owning user record is missing.
	ErrUserNotFound = errors.New("user not found")
	// ErrTransactionNotFound is returned when a transaction id is unknown.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrUnavailable is returned when the backing store cannot be reached.
	// Callers may retry with backoff; every other store error is terminal.
	ErrUnavailable = errors.New("store unavailable")
)

// ProjectStore resolves project records. The account service owns writes;
// the bridge only reads.
type ProjectStore interface {
	// ProjectByKey returns the project whose live or test public key equals
	// rawKey, together with which of the two matched.
	ProjectByKey(rawKey string) (schema.Project, schema.KeyKind, error)
}

// UserStore resolves account holders. Read-only inside the bridge.
type UserStore interface {
	UserByID(id string) (schema.User, error)
}

// TransactionLedger records which project owns which transaction and tracks
// the last provider-reported status. This is the one store the bridge writes.
type TransactionLedger interface {
	SaveTransaction(tx schema.Transaction) error
	Transaction(id string) (schema.Transaction, error)
	// UpdateStatus applies a provider-reported state change and returns the
	// updated record. Unknown ids return ErrTransactionNotFound.
	UpdateStatus(id string, status schema.TxStatus) (schema.Transaction, error)
}
