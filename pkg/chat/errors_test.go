package chat

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := newError(KindSessionNotFound, "session ID not found", nil)

	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.NotErrorIs(t, err, ErrMissingDomain)

	wrapped := fmt.Errorf("handling turn: %w", err)
	assert.ErrorIs(t, wrapped, ErrSessionNotFound)
	assert.Equal(t, KindSessionNotFound, KindOf(wrapped))
}

func TestErrorMessageAndUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := newError(KindUpstreamError, "openai API error", cause)

	assert.Equal(t, "openai API error: dial tcp: timeout", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "domain is required", ErrMissingDomain.Error())
}

func TestKindOfUnknownError(t *testing.T) {
	assert.Equal(t, KindInternalError, KindOf(errors.New("boom")))
}

func TestInternal(t *testing.T) {
	cause := errors.New("boom")
	err := Internal(cause)
	assert.Equal(t, KindInternalError, err.Kind)
	assert.ErrorIs(t, err, cause)

	existing := newError(KindMissingUserMessage, "x", nil)
	assert.Same(t, existing, Internal(existing))
}
