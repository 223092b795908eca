package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRunLimiter_AcquireRelease(t *testing.T) {
	limiter := NewRunLimiter(2, time.Second)
	ctx := context.Background()

	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("second Acquire failed: %v", err)
	}

	st := limiter.Status()
	if st.Active != 2 || st.Available != 0 || st.MaxConcurrent != 2 {
		t.Errorf("Status() = %+v, want 2 active, 0 available, max 2", st)
	}

	limiter.Release()
	if got := limiter.ActiveCount(); got != 1 {
		t.Errorf("after Release, ActiveCount = %d, want 1", got)
	}
	limiter.Release()
	if got := limiter.Status().Available; got != 2 {
		t.Errorf("after second Release, Available = %d, want 2", got)
	}
}

func TestRunLimiter_TimesOutWhenFull(t *testing.T) {
	limiter := NewRunLimiter(1, 50*time.Millisecond)
	ctx := context.Background()

	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer limiter.Release()

	start := time.Now()
	err := limiter.Acquire(ctx)
	if !errors.Is(err, ErrTooManyRuns) {
		t.Errorf("Acquire() error = %v, want ErrTooManyRuns", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("returned after %v, want about 50ms", elapsed)
	}
}

func TestRunLimiter_ContextCancelled(t *testing.T) {
	limiter := NewRunLimiter(1, time.Second)
	if !limiter.TryAcquire() {
		t.Fatal("TryAcquire() = false on empty limiter")
	}
	defer limiter.Release()

	if limiter.TryAcquire() {
		t.Fatal("TryAcquire() = true on full limiter")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := limiter.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire() error = %v, want context.Canceled", err)
	}
}

func TestRunLimiter_NeverExceedsMax(t *testing.T) {
	const maxConcurrent = 3
	limiter := NewRunLimiter(maxConcurrent, time.Second)

	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		maxObserved int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := limiter.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			defer limiter.Release()

			mu.Lock()
			maxObserved = max(maxObserved, limiter.ActiveCount())
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
		}()
	}
	wg.Wait()

	if maxObserved > maxConcurrent {
		t.Errorf("observed %d concurrent runs, max %d", maxObserved, maxConcurrent)
	}
	if got := limiter.ActiveCount(); got != 0 {
		t.Errorf("final ActiveCount = %d, want 0", got)
	}
}

func TestRunLimiter_WaitForDrain(t *testing.T) {
	limiter := NewRunLimiter(1, time.Second)
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		limiter.Release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := limiter.WaitForDrain(ctx); err != nil {
		t.Errorf("WaitForDrain() error = %v", err)
	}
}

func TestNewRunLimiter_Defaults(t *testing.T) {
	limiter := NewRunLimiter(0, 0)
	if got := limiter.Status().MaxConcurrent; got != DefaultMaxConcurrentRuns {
		t.Errorf("MaxConcurrent = %d, want %d", got, DefaultMaxConcurrentRuns)
	}
}
