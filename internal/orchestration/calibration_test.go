package orchestration

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_MaxAttempts(t *testing.T) {
	assert.Equal(t, 1, (&RetryPolicy{}).MaxAttempts())
	assert.Equal(t, 1, (&RetryPolicy{Attempts: 1}).MaxAttempts())
	assert.Equal(t, 4, (&RetryPolicy{Attempts: 4}).MaxAttempts())
}

func TestRetryPolicy_Review(t *testing.T) {
	p := &RetryPolicy{Attempts: 3}
	cause := errors.New("no output file")

	body, retry, err := p.Review(context.Background(), 1, "template", cause)
	require.NoError(t, err)
	assert.True(t, retry)
	assert.Equal(t, "template", body, "deterministic retry never mutates the template")

	_, retry, err = p.Review(context.Background(), 3, "template", cause)
	require.NoError(t, err)
	assert.False(t, retry, "no retry once the attempt budget is spent")
}

func TestInteractivePolicy_MaxAttemptsDefault(t *testing.T) {
	assert.Equal(t, 3, (&InteractivePolicy{}).MaxAttempts())
	assert.Equal(t, 5, (&InteractivePolicy{Attempts: 5}).MaxAttempts())
}

func TestInteractivePolicy_BudgetSpent(t *testing.T) {
	p := &InteractivePolicy{Attempts: 2}
	body, retry, err := p.Review(context.Background(), 2, "template", errors.New("boom"))
	require.NoError(t, err)
	assert.False(t, retry)
	assert.Equal(t, "template", body)
}

func TestCalibrationError_Unwrap(t *testing.T) {
	cause := errors.New("no output file")
	err := &CalibrationError{Attempts: 2, Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "after 2 attempt(s)")
}
