package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazz-dev/avcheck/internal/runner"
	"github.com/hazz-dev/avcheck/internal/scheduler"
	"github.com/hazz-dev/avcheck/internal/storage"
)

// mockSuite returns a fixed summary and error.
type mockSuite struct {
	calls   int32
	summary runner.Summary
	err     error
}

func (m *mockSuite) Run(_ context.Context, _ time.Time) (runner.Summary, error) {
	atomic.AddInt32(&m.calls, 1)
	return m.summary, m.err
}

// mockStore records inserted runs.
type mockStore struct {
	mu     sync.Mutex
	runs   []runner.Summary
	latest *storage.Run
	err    error
}

func (m *mockStore) InsertRun(_ context.Context, s runner.Summary) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	m.runs = append(m.runs, s)
	m.mu.Unlock()
	return nil
}

func (m *mockStore) LatestRun(_ context.Context, _ string) (*storage.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest, m.err
}

func (m *mockStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runs)
}

func passingSuite() *mockSuite {
	return &mockSuite{summary: runner.Summary{RunID: "r", TeamCode: "TEAM123", Total: 7, Passed: 7}}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestScheduler_RunsImmediately(t *testing.T) {
	store := &mockStore{}
	sched := scheduler.New(passingSuite(), "TEAM123", time.Hour, store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched.Start(ctx)
	waitFor(t, func() bool { return store.count() >= 1 })

	if store.count() < 1 {
		t.Error("expected a run to be stored immediately")
	}
}

func TestScheduler_RunsPeriodically(t *testing.T) {
	store := &mockStore{}
	suite := passingSuite()
	sched := scheduler.New(suite, "TEAM123", 50*time.Millisecond, store, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	sched.Start(ctx)
	<-ctx.Done()
	sched.Wait()

	// 1 immediate + ~5 ticks in 300ms.
	if n := atomic.LoadInt32(&suite.calls); n < 3 {
		t.Errorf("expected at least 3 runs in 300ms, got %d", n)
	}
}

func TestScheduler_ContextCancellation(t *testing.T) {
	sched := scheduler.New(passingSuite(), "TEAM123", time.Hour, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	sched.Start(ctx)

	time.Sleep(50 * time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		sched.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("Wait() did not return within 2s after context cancel")
	}
}

func TestScheduler_OnResultReceivesPreviousOutcome(t *testing.T) {
	store := &mockStore{latest: &storage.Run{ID: "prev", Team: "TEAM123", Total: 7, Passed: 6, Failed: 1}}
	sched := scheduler.New(passingSuite(), "TEAM123", time.Hour, store, nil)

	var (
		mu   sync.Mutex
		prev *bool
		got  int32
	)
	sched.SetOnResult(func(s runner.Summary, previousOK *bool) {
		mu.Lock()
		prev = previousOK
		mu.Unlock()
		atomic.AddInt32(&got, 1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	sched.Start(ctx)
	waitFor(t, func() bool { return atomic.LoadInt32(&got) >= 1 })
	cancel()
	sched.Wait()

	mu.Lock()
	defer mu.Unlock()
	if prev == nil {
		t.Fatal("expected previous outcome from store")
	}
	if *prev {
		t.Error("expected previous outcome to be a failure")
	}
}

func TestScheduler_FailedChecksStillRecorded(t *testing.T) {
	store := &mockStore{}
	suite := &mockSuite{
		summary: runner.Summary{RunID: "r", TeamCode: "TEAM123", Total: 7, Passed: 5, Failed: 2},
		err:     runner.ErrChecksFailed,
	}
	sched := scheduler.New(suite, "TEAM123", time.Hour, store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	sched.Start(ctx)
	waitFor(t, func() bool { return store.count() >= 1 })
	cancel()
	sched.Wait()

	if store.count() != 1 {
		t.Errorf("expected failed run to be stored, got %d runs", store.count())
	}
}

func TestScheduler_FatalRunNotRecorded(t *testing.T) {
	store := &mockStore{}
	suite := &mockSuite{err: errors.New("bad base url")}
	sched := scheduler.New(suite, "TEAM123", time.Hour, store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	sched.Start(ctx)
	waitFor(t, func() bool { return atomic.LoadInt32(&suite.calls) >= 1 })
	cancel()
	sched.Wait()

	if store.count() != 0 {
		t.Errorf("expected no stored runs after fatal error, got %d", store.count())
	}
}

func TestScheduler_StoreErrorDoesNotCrash(t *testing.T) {
	store := &mockStore{err: context.DeadlineExceeded}
	sched := scheduler.New(passingSuite(), "TEAM123", time.Hour, store, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// Should not panic
	sched.Start(ctx)
	<-ctx.Done()
	sched.Wait()
}
