package circuitbreaker

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/token-sweeper/internal/apperror"
)

var errUpstream = errors.New("upstream down")

func TestCircuitBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	cfg := DefaultConfig("test")
	cfg.ConsecutiveFailures = 3
	cb := New[int](cfg)

	for i := 0; i < 3; i++ {
		_, err := cb.Execute(func() (int, error) { return 0, errUpstream })
		require.ErrorIs(t, err, errUpstream)
	}

	assert.Equal(t, StateOpen, cb.State())

	called := false
	_, err := cb.Execute(func() (int, error) {
		called = true
		return 1, nil
	})
	assert.False(t, called, "open breaker must not call through")
	assert.Equal(t, apperror.CodeCircuitOpen, apperror.GetCode(err))
}

func TestCircuitBreaker_IsSuccessfulErrorsDoNotTrip(t *testing.T) {
	benign := errors.New("no liquidity")

	cfg := DefaultConfig("benign")
	cfg.ConsecutiveFailures = 2
	cfg.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, benign)
	}
	cb := New[string](cfg)

	for i := 0; i < 5; i++ {
		_, err := cb.Execute(func() (string, error) { return "", benign })
		require.ErrorIs(t, err, benign)
	}

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, "benign", cb.Name())
}

func TestCircuitBreaker_PassesResultThrough(t *testing.T) {
	cb := New[[]byte](DefaultConfig("ok"))

	out, err := cb.Execute(func() ([]byte, error) { return []byte("hi"), nil })
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), out)
}
