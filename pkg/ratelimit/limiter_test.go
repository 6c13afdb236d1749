package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestWaitSpacesRequests(t *testing.T) {
	const interval = 30 * time.Millisecond
	l := New(interval)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	elapsed := time.Since(start)

	// Three calls means two enforced gaps.
	if elapsed < 2*interval-5*time.Millisecond {
		t.Errorf("three waits took %v, want at least %v", elapsed, 2*interval)
	}
}

func TestWaitConcurrentCallersSerialize(t *testing.T) {
	const interval = 20 * time.Millisecond
	l := New(interval)
	ctx := context.Background()

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Wait(ctx); err != nil {
				t.Errorf("Wait: %v", err)
			}
		}()
	}
	wg.Wait()

	if elapsed := time.Since(start); elapsed < 3*interval-5*time.Millisecond {
		t.Errorf("four concurrent waits finished in %v, want at least %v", elapsed, 3*interval)
	}
}

func TestWaitCancellation(t *testing.T) {
	l := New(time.Minute)
	ctx := context.Background()
	if err := l.Wait(ctx); err != nil {
		t.Fatalf("first Wait: %v", err)
	}

	cancelled, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if err := l.Wait(cancelled); err == nil {
		t.Error("Wait should fail when the context expires first")
	}
}

func TestDisabledLimiter(t *testing.T) {
	l := New(0)
	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("disabled limiter blocked for %v", elapsed)
	}
}
