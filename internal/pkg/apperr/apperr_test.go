package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_WrappedSentinel(t *testing.T) {
	err := fmt.Errorf("list jobs: %w", ErrPermissionDenied)
	assert.Equal(t, KindPermission, KindOf(err))
	assert.Equal(t, "permission_denied", CodeOf(err))
	assert.True(t, errors.Is(err, ErrPermissionDenied))
}

func TestKindOf_PlainError(t *testing.T) {
	err := errors.New("boom")
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, "internal_error", CodeOf(err))
	assert.Equal(t, "Internal Server Error", MessageOf(err))
}

func TestUnavailable_KeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Unavailable(cause)
	assert.Equal(t, KindUnavailable, KindOf(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}
