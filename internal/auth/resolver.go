// Package auth implements API-key resolution and the access guard that gates
// every protected request and realtime connection.
package auth

import (
	"errors"
	"fmt"

	"github.com/pesabridge/pesabridge/internal/store"
	"github.com/pesabridge/pesabridge/pkg/schema"
)

// Sentinel errors for the four rejection reasons plus the one retryable
// failure. The sentinel text is the exact message surfaced to clients.
var (
	// ErrMissingCredential: no API key was supplied at all.
	ErrMissingCredential = errors.New("API key is required")
	// ErrInvalidCredential: the supplied key matches no project.
	ErrInvalidCredential = errors.New("Invalid API key")
	// ErrAccountNotFound: the key resolved to a project with no owning user.
	ErrAccountNotFound = errors.New("Account not found")
	// ErrAccountSuspended: the owning user is banned.
	ErrAccountSuspended = errors.New("Account suspended")
	// ErrUpstreamUnavailable: the account store cannot be reached. The only
	// authentication failure a caller may retry, and only with backoff.
	ErrUpstreamUnavailable = errors.New("account store unavailable")
)

// AccountUnusable reports whether err is a terminal account-state rejection:
// the key is real but the account behind it cannot transact.
func AccountUnusable(err error) bool {
	return errors.Is(err, ErrAccountNotFound) || errors.Is(err, ErrAccountSuspended)
}

// Resolver looks up an API key against the account store. It never mutates
// stored state.
type Resolver struct {
	Projects store.ProjectStore
	Users    store.UserStore
}

// Resolve returns the project matching rawKey (live key first, then test
// key), its owning user, and which key kind matched. The caller must already
// have verified rawKey is non-empty.
func (r *Resolver) Resolve(rawKey string) (schema.Project, schema.User, schema.KeyKind, error) {
	project, kind, err := r.Projects.ProjectByKey(rawKey)
	if err != nil {
		if errors.Is(err, store.ErrProjectNotFound) {
			return schema.Project{}, schema.User{}, "", ErrInvalidCredential
		}
		return schema.Project{}, schema.User{}, "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	user, err := r.Users.UserByID(project.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			// An orphaned project is unusable, not a crash.
			return schema.Project{}, schema.User{}, "", ErrAccountNotFound
		}
		return schema.Project{}, schema.User{}, "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	return project, user, kind, nil
}
