package qerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDerivesClassification(t *testing.T) {
	tests := []struct {
		code      string
		category  Category
		retryable bool
	}{
		{ErrCodeConfigInvalid, CategoryConfig, false},
		{ErrCodeIndexNotFound, CategoryIndex, false},
		{ErrCodeIndexLocked, CategoryIndex, true},
		{ErrCodeEmbedTimeout, CategoryEmbedding, true},
		{ErrCodeEmbedFailed, CategoryEmbedding, false},
		{ErrCodeQueryEmpty, CategoryValidation, false},
		{ErrCodeDimensionMismatch, CategoryValidation, false},
		{ErrCodeNoRoles, CategoryAuthorization, false},
		{ErrCodeUnknownToken, CategoryAuthorization, false},
		{ErrCodeInternal, CategoryInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "msg", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.retryable, err.Retryable)
		})
	}
}

func TestErrorFormat(t *testing.T) {
	err := New(ErrCodeQueryEmpty, "query is empty", nil)
	assert.Equal(t, "[ERR_401_QUERY_EMPTY] query is empty", err.Error())
}

func TestErrorChain(t *testing.T) {
	root := fmt.Errorf("connection refused")
	err := Wrap(ErrCodeEmbedUnavailable, root)
	require.NotNil(t, err)

	assert.True(t, errors.Is(err, &QanoonError{Code: ErrCodeEmbedUnavailable}))
	assert.False(t, errors.Is(err, &QanoonError{Code: ErrCodeEmbedTimeout}))
	assert.ErrorIs(t, err, root)
	assert.Equal(t, root, err.Unwrap())
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrCodeInvalidParameter, "alpha out of range", nil).
		WithDetail("alpha", "1.5").
		WithSuggestion("use a value in [0,1]")

	assert.Equal(t, "1.5", err.Details["alpha"])
	assert.Equal(t, "use a value in [0,1]", err.Suggestion)
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, ErrCodeInvalidQuery, ValidationError("bad", nil).Code)
	assert.Equal(t, ErrCodeIndexUnavailable, IndexUnavailableError("no index", nil).Code)
	assert.Equal(t, ErrCodeEmbedFailed, EmbeddingError("embed", nil).Code)
	assert.Equal(t, ErrCodeNoRoles, AuthorizationError("roles", nil).Code)
	assert.Equal(t, ErrCodeConfigInvalid, ConfigError("cfg", nil).Code)
}

func TestIsRetryableAndCategory(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrCodeEmbedTimeout, "timeout", nil)))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))

	assert.True(t, IsCategory(New(ErrCodeNoRoles, "x", nil), CategoryAuthorization))
	assert.False(t, IsCategory(errors.New("plain"), CategoryAuthorization))
	assert.Equal(t, "", GetCode(errors.New("plain")))
}
