package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func testConfig() Config {
	return Config{
		FailureThreshold:    3,
		SuccessThreshold:    2,
		Timeout:             20 * time.Millisecond,
		MaxRequestsHalfOpen: 2,
	}
}

func fail() error    { return errBoom }
func succeed() error { return nil }

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := New(testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := cb.Execute(ctx, fail)
		assert.ErrorIs(t, err, errBoom)
	}
	assert.Equal(t, StateOpen, cb.GetState())

	err := cb.Execute(ctx, succeed)
	assert.ErrorIs(t, err, ErrOpen, "open breaker rejects without calling fn")
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := New(testConfig())
	ctx := context.Background()

	cb.Execute(ctx, fail)
	cb.Execute(ctx, fail)
	require.NoError(t, cb.Execute(ctx, succeed))
	cb.Execute(ctx, fail)
	cb.Execute(ctx, fail)

	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_RecoversThroughHalfOpen(t *testing.T) {
	cb := New(testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		cb.Execute(ctx, fail)
	}
	require.Equal(t, StateOpen, cb.GetState())

	time.Sleep(25 * time.Millisecond)

	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateHalfOpen, cb.GetState())

	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := New(testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		cb.Execute(ctx, fail)
	}
	time.Sleep(25 * time.Millisecond)

	err := cb.Execute(ctx, fail)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := New(testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		cb.Execute(ctx, fail)
	}
	require.Equal(t, StateOpen, cb.GetState())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.GetState())
	assert.NoError(t, cb.Execute(ctx, succeed))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
}
