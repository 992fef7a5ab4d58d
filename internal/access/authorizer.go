package access

import (
	"context"
	"sync"

	"github.com/qanoon-search/qanoon/internal/qerrors"
)

// Identity is a resolved caller: a user ID and the roles granted to it.
type Identity struct {
	UserID string
	Roles  []Role
}

// Authorizer resolves an opaque token into an identity. The retrieval
// engine never parses tokens itself; deployments plug in whatever
// resolution they use.
type Authorizer interface {
	Resolve(ctx context.Context, token string) (*Identity, error)
}

// StaticAuthorizer resolves tokens against a fixed user table from
// configuration. The token is the user ID; there is no credential
// verification, which is all the CLI needs.
type StaticAuthorizer struct {
	mu    sync.RWMutex
	users map[string][]Role
}

var _ Authorizer = (*StaticAuthorizer)(nil)

// NewStaticAuthorizer builds an authorizer from a user -> role names map.
func NewStaticAuthorizer(users map[string][]string) *StaticAuthorizer {
	table := make(map[string][]Role, len(users))
	for user, names := range users {
		table[user] = ParseRoles(names)
	}
	return &StaticAuthorizer{users: table}
}

// Resolve looks the token up in the user table.
func (a *StaticAuthorizer) Resolve(_ context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, qerrors.New(qerrors.ErrCodeUnknownToken, "empty token", nil)
	}

	a.mu.RLock()
	roles, ok := a.users[token]
	a.mu.RUnlock()

	if !ok {
		return nil, qerrors.New(qerrors.ErrCodeUnknownToken, "unknown user: "+token, nil)
	}
	if len(roles) == 0 {
		return nil, qerrors.New(qerrors.ErrCodeNoRoles, "user has no roles: "+token, nil)
	}

	out := make([]Role, len(roles))
	copy(out, roles)
	return &Identity{UserID: token, Roles: out}, nil
}
