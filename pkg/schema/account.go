// Package schema defines the wire and domain types shared between the
// PesaBridge daemon, its HTTP API, and the client SDK.
package schema

import "time"

// UserStatus is the lifecycle state of an account holder, as maintained by
// the external account store.
type UserStatus string

const (
	UserActive  UserStatus = "ACTIVE"
	UserBanned  UserStatus = "BANNED"
	UserPending UserStatus = "PENDING"
)

// User is the owning account behind a project. It is provisioned out-of-band
// and read-only inside the bridge.
type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Status    UserStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

// Project is a tenant integration record. Each project owns exactly one live
// and one test public key; keys are globally unique across both fields, which
// the account store enforces at write time.
type Project struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Name          string    `json:"name"`
	LivePublicKey string    `json:"live_public_key"`
	TestPublicKey string    `json:"test_public_key"`
	CreatedAt     time.Time `json:"created_at"`
}

// KeyKind tags which of a project's two keys authenticated a request, so
// downstream authorization stays single-pathed.
type KeyKind string

const (
	KeyLive KeyKind = "live"
	KeyTest KeyKind = "test"
)
