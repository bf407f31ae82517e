package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadSpec(t *testing.T) {
	_, err := New("not a schedule", func(context.Context) error { return nil }, nil)
	assert.Error(t, err)

	_, err = New("@every 1s", nil, nil)
	assert.Error(t, err)
}

func TestRefreshNowIsExclusive(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var skips atomic.Int32

	s, err := New("@every 1h", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}, nil, WithOnSkip(func() { skips.Add(1) }))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.RefreshNow(context.Background()) }()
	<-started

	assert.ErrorIs(t, s.RefreshNow(context.Background()), ErrRefreshInFlight)
	assert.Equal(t, int32(1), skips.Load())
	assert.Equal(t, int64(1), s.Skipped())

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int64(1), s.Runs())
}

func TestScheduledTickSkipsWhileRefreshInFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var skips atomic.Int32

	s, err := New("@every 1h", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}, nil, WithOnSkip(func() { skips.Add(1) }))
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	done := make(chan error, 1)
	go func() { done <- s.RefreshNow(context.Background()) }()
	<-started

	s.tick()
	assert.Equal(t, int32(1), skips.Load())
	assert.Equal(t, int64(1), s.Skipped())

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int64(1), s.Runs())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestScheduledRefreshRunsAndStops(t *testing.T) {
	var runs atomic.Int32
	s, err := New("@every 1s", func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, nil)
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return runs.Load() >= 1 }, 5*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestStopCancelsRunningRefresh(t *testing.T) {
	started := make(chan struct{})
	result := make(chan error, 1)
	s, err := New("@every 1s", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		result <- ctx.Err()
		return ctx.Err()
	}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("refresh never started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.True(t, errors.Is(<-result, context.Canceled))
}

func TestWithTimeoutBoundsRun(t *testing.T) {
	s, err := New("@every 1h", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, nil, WithTimeout(20*time.Millisecond))
	require.NoError(t, err)
	assert.ErrorIs(t, s.RefreshNow(context.Background()), context.DeadlineExceeded)
}
