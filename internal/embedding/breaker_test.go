package embedding

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubProvider struct {
	mu    sync.Mutex
	calls int
	err   error
	vec   []float32
}

func (s *stubProvider) Embed(ctx context.Context, _ string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.vec, nil
}

func (s *stubProvider) Dimensions() int { return len(s.vec) }
func (s *stubProvider) Name() string    { return "stub" }
func (s *stubProvider) Close() error   { return nil }

func (s *stubProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestBreaker_PassesThrough(t *testing.T) {
	inner := &stubProvider{vec: []float32{1, 0}}
	b := NewBreaker(inner, BreakerOptions{MaxFailures: 2, Timeout: time.Minute}, nil)

	vec, err := b.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vec)
	assert.Equal(t, "stub", b.Name())
	assert.Equal(t, 2, b.Dimensions())
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	inner := &stubProvider{err: &Error{Provider: "stub", Message: "unauthorized", StatusCode: 401}}
	b := NewBreaker(inner, BreakerOptions{MaxFailures: 2, Timeout: time.Minute}, zap.New(core))

	for i := 0; i < 2; i++ {
		_, err := b.Embed(context.Background(), "text")
		require.Error(t, err)
	}
	assert.Equal(t, 2, inner.callCount())
	assert.Equal(t, "open", b.State())

	_, err := b.Embed(context.Background(), "text")
	var embErr *Error
	require.True(t, errors.As(err, &embErr))
	assert.Contains(t, embErr.Message, "circuit open")
	assert.Equal(t, 2, inner.callCount(), "open circuit must not reach the provider")

	assert.Equal(t, 1, logs.FilterMessage("embedding circuit breaker state change").Len())
}

func TestBreaker_CancellationDoesNotTrip(t *testing.T) {
	inner := &stubProvider{vec: []float32{1}}
	b := NewBreaker(inner, BreakerOptions{MaxFailures: 1, Timeout: time.Minute}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.Embed(ctx, "text")
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, "closed", b.State())
	_, err = b.Embed(context.Background(), "text")
	assert.NoError(t, err)
}
