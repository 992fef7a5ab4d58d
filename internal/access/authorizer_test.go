package access

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qanoon-search/qanoon/internal/qerrors"
)

func TestStaticAuthorizerResolve(t *testing.T) {
	auth := NewStaticAuthorizer(map[string][]string{
		"u_admin": {"admin"},
		"u_legal": {"legal"},
		"u_multi": {"staff", "legal"},
		"u_none":  {},
	})
	ctx := context.Background()

	t.Run("known user", func(t *testing.T) {
		id, err := auth.Resolve(ctx, "u_admin")
		require.NoError(t, err)
		assert.Equal(t, "u_admin", id.UserID)
		assert.Equal(t, []Role{RoleAdmin}, id.Roles)
	})

	t.Run("multiple roles", func(t *testing.T) {
		id, err := auth.Resolve(ctx, "u_multi")
		require.NoError(t, err)
		assert.Equal(t, []Role{RoleStaff, RoleLegal}, id.Roles)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := auth.Resolve(ctx, "nobody")
		require.Error(t, err)
		assert.True(t, errors.Is(err, &qerrors.QanoonError{Code: qerrors.ErrCodeUnknownToken}))
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := auth.Resolve(ctx, "")
		require.Error(t, err)
		assert.Equal(t, qerrors.ErrCodeUnknownToken, qerrors.GetCode(err))
	})

	t.Run("user without roles", func(t *testing.T) {
		_, err := auth.Resolve(ctx, "u_none")
		require.Error(t, err)
		assert.Equal(t, qerrors.ErrCodeNoRoles, qerrors.GetCode(err))
		assert.True(t, qerrors.IsCategory(err, qerrors.CategoryAuthorization))
	})

	t.Run("returned roles are a copy", func(t *testing.T) {
		id, err := auth.Resolve(ctx, "u_legal")
		require.NoError(t, err)
		id.Roles[0] = "tampered"

		again, err := auth.Resolve(ctx, "u_legal")
		require.NoError(t, err)
		assert.Equal(t, []Role{RoleLegal}, again.Roles)
	})
}
