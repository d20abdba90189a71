package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			assert.Equal(t, test.expected, test.class.String())
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection timeout", ErrConnectionTimeout, true},
		{"connection lost", ErrConnectionLost, true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"context canceled", context.Canceled, false},
		{"transport unavailable", ErrTransportUnavailable, false},
		{"threshold", ErrThresholdExceeded, false},
		{"refused in message", fmt.Errorf("dial udp: connection refused"), true},
		{"enobufs", fmt.Errorf("write: no buffer space available"), true},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("x")}, true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("timeout")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, IsTransient(test.err))
		})
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorFatal, Classify(ErrInputMissing))
	assert.Equal(t, ErrorInvalid, Classify(ErrParsingFailed))
	assert.Equal(t, ErrorTransient, Classify(ErrConnectionLost))
	assert.Equal(t, ErrorFatal, Classify(errors.New("something odd")))
}

func TestWrapHelpers(t *testing.T) {
	base := errors.New("boom")

	err := WrapInvalid(base, "Parser", "ParseLine", "token match")
	require.Error(t, err)
	assert.Equal(t, "Parser.ParseLine: token match failed: boom", err.Error())
	assert.True(t, IsInvalid(err))
	assert.ErrorIs(t, err, base)

	err = WrapFatal(base, "Store", "Save", "rename")
	assert.True(t, IsFatal(err))

	err = WrapTransient(base, "UDP", "Send", "write")
	assert.True(t, IsTransient(err))

	assert.NoError(t, Wrap(nil, "a", "b", "c"))
	assert.NoError(t, WrapFatal(nil, "a", "b", "c"))
}

func TestRetryConfig(t *testing.T) {
	rc := DefaultRetryConfig()
	cfg := rc.ToRetryConfig()
	assert.Equal(t, rc.MaxRetries+1, cfg.MaxAttempts)
	assert.Equal(t, rc.InitialDelay, cfg.InitialDelay)
	assert.Equal(t, rc.BackoffFactor, cfg.Multiplier)
	assert.True(t, cfg.AddJitter)
}

func TestAccumulator(t *testing.T) {
	acc := NewAccumulator("Reader", 0)
	assert.Equal(t, DefaultThreshold, acc.Limit())

	for i := 0; i < DefaultThreshold-1; i++ {
		require.NoError(t, acc.Add(fmt.Errorf("bad line %d", i)))
	}
	require.NoError(t, acc.Check())
	assert.Equal(t, 4, acc.Count())

	assert.NoError(t, acc.Add(nil), "nil errors are not counted")
	assert.Equal(t, 4, acc.Count())

	err := acc.Add(errors.New("bad line 4"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrThresholdExceeded)
	assert.True(t, IsFatal(err))
	assert.Contains(t, err.Error(), "bad line 4")
	assert.ErrorIs(t, acc.Check(), ErrThresholdExceeded)
	assert.Len(t, acc.Errors(), 5)
}
