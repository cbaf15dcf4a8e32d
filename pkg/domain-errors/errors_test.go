package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches direct error", func(t *testing.T) {
		err := New(CodeNotFound, "record missing")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeConflict))
	})

	t.Run("matches wrapped error", func(t *testing.T) {
		inner := New(CodeConflict, "duplicate")
		outer := fmt.Errorf("while creating: %w", inner)
		assert.True(t, HasCode(outer, CodeConflict))
	})

	t.Run("non-domain error has no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("plain"), CodeInternal))
	})
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeInternal, "store unavailable")

	require.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "store unavailable")
	assert.Contains(t, err.Error(), "connection refused")

	loaded, ok := Load(err)
	require.True(t, ok)
	assert.Equal(t, CodeInternal, loaded.Code)
}
