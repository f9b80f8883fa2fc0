package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsIsMatchesKind(t *testing.T) {
	err := New(KindOverlap, "time range overlaps an existing record")
	wrapped := fmt.Errorf("backfill: %w", err)

	assert.True(t, errors.Is(wrapped, ErrOverlap))
	assert.False(t, errors.Is(wrapped, ErrClock))
	assert.Equal(t, KindOverlap, KindOf(wrapped))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Wrap(cause, KindTransientNetwork, "attendance service unreachable")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "attendance service unreachable: dial tcp: connection refused", err.Error())
	assert.Nil(t, Wrap(nil, KindTransientNetwork, "unused"))
}

func TestRecoverable(t *testing.T) {
	assert.True(t, Recoverable(New(KindTransientNetwork, "x")))
	assert.True(t, Recoverable(Rejection(500, "x")))
	assert.True(t, Recoverable(Rejection(401, "x")))
	assert.False(t, Recoverable(Rejection(409, "x")))
	assert.False(t, Recoverable(New(KindDataIntegrity, "x")))
	assert.False(t, Recoverable(errors.New("plain")))
}
