package auth

import (
	"github.com/pesabridge/pesabridge/internal/store"
	"github.com/pesabridge/pesabridge/pkg/schema"
)

// Context is the authenticated identity attached to a request or realtime
// connection after the guard admits it. It is request-scoped and never
// persisted.
type Context struct {
	Project schema.Project
	User    schema.User
	Key     string
	Kind    schema.KeyKind
}

// Guard gates every protected entry point. It is stateless per call and safe
// for concurrent use.
type Guard struct {
	Resolver *Resolver
}

func NewGuard(projects store.ProjectStore, users store.UserStore) *Guard {
	return &Guard{Resolver: &Resolver{Projects: projects, Users: users}}
}

// Authenticate runs the full admission sequence for rawKey: missing-key
// check, key resolution, then account-status checks. On success it returns
// the context passed downstream unchanged for the rest of the request or
// connection. Rejections are terminal for the request; only
// ErrUpstreamUnavailable may be retried by the caller.
func (g *Guard) Authenticate(rawKey string) (*Context, error) {
	if rawKey == "" {
		return nil, ErrMissingCredential
	}

	project, user, kind, err := g.Resolver.Resolve(rawKey)
	if err != nil {
		return nil, err
	}

	if user.Status == schema.UserBanned {
		return nil, ErrAccountSuspended
	}

	return &Context{Project: project, User: user, Key: rawKey, Kind: kind}, nil
}
