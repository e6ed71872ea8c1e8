package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryRun_RecordsStatus(t *testing.T) {
	s := New(t.TempDir(), zerolog.Nop())
	s.Register("coverage", 0, func(ctx context.Context) error { return nil })
	s.Register("acquire", 0, func(ctx context.Context) error { return errors.New("quota") })

	require.NoError(t, s.TryRun(context.Background(), "coverage"))
	assert.EqualError(t, s.TryRun(context.Background(), "acquire"), "quota")

	statuses := s.Statuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, "acquire", statuses[0].Kind)
	assert.Equal(t, "quota", statuses[0].LastError)
	assert.Equal(t, 1, statuses[0].Runs)
	assert.False(t, statuses[0].Running)
	assert.Equal(t, "coverage", statuses[1].Kind)
	assert.Empty(t, statuses[1].LastError)
	assert.False(t, statuses[1].LastFinish.IsZero())

	assert.Equal(t, []string{"acquire", "coverage"}, s.Kinds())
}

func TestTryRun_UnknownJob(t *testing.T) {
	s := New("", zerolog.Nop())
	assert.ErrorIs(t, s.TryRun(context.Background(), "nope"), ErrUnknownJob)
}

func TestTryRun_RejectsOverlap(t *testing.T) {
	s := New(t.TempDir(), zerolog.Nop())
	started := make(chan struct{})
	release := make(chan struct{})
	s.Register("profiles", 0, func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})

	require.NoError(t, s.Launch(context.Background(), "profiles"))
	<-started

	assert.ErrorIs(t, s.TryRun(context.Background(), "profiles"), ErrAlreadyRunning)
	assert.ErrorIs(t, s.Launch(context.Background(), "profiles"), ErrAlreadyRunning)
	assert.True(t, s.Statuses()[0].Running)

	close(release)
	require.Eventually(t, func() bool { return !s.Statuses()[0].Running }, time.Second, 5*time.Millisecond)

	// Free again once the run finished.
	s.Register("profiles", 0, func(ctx context.Context) error { return nil })
	assert.NoError(t, s.TryRun(context.Background(), "profiles"))
}

func TestTryRun_RespectsLockHeldByAnotherProcess(t *testing.T) {
	dir := t.TempDir()
	other := flock.New(filepath.Join(dir, "acquire.lock"))
	locked, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, locked)

	var runs atomic.Int32
	s := New(dir, zerolog.Nop())
	s.Register("acquire", 0, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	assert.ErrorIs(t, s.TryRun(context.Background(), "acquire"), ErrAlreadyRunning)
	assert.Zero(t, runs.Load())
	assert.False(t, s.Statuses()[0].Running)

	require.NoError(t, other.Unlock())
	assert.NoError(t, s.TryRun(context.Background(), "acquire"))
	assert.Equal(t, int32(1), runs.Load())
}

func TestTryRun_RecoversPanics(t *testing.T) {
	s := New("", zerolog.Nop())
	s.Register("tag", 0, func(ctx context.Context) error { panic("boom") })

	err := s.TryRun(context.Background(), "tag")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	assert.False(t, s.Statuses()[0].Running)
}

func TestStart_RunsOnTickerUntilStopped(t *testing.T) {
	s := New("", zerolog.Nop())
	var runs atomic.Int32
	s.Register("coverage", 10*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})
	s.Register("manual", 0, func(ctx context.Context) error {
		t.Error("on-demand job must not run on a ticker")
		return nil
	})

	done := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	s := New("", zerolog.Nop())
	s.Register("coverage", time.Hour, func(ctx context.Context) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
