package latch

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestTryAcquireIsExclusive(t *testing.T) {
	t.Parallel()

	set := New(nil)
	if !set.TryAcquire(CartLoading) {
		t.Fatal("expected first acquire to succeed")
	}
	if set.TryAcquire(CartLoading) {
		t.Fatal("expected second acquire to be refused")
	}
	if !set.TryAcquire(WishlistLoading) {
		t.Fatal("latches must be independent")
	}
	if !set.Held(CartLoading) {
		t.Fatal("expected cart latch to be held")
	}

	set.Release(CartLoading)
	if set.Held(CartLoading) {
		t.Fatal("expected cart latch to be free after release")
	}
	if !set.TryAcquire(CartLoading) {
		t.Fatal("expected re-acquire after release")
	}
}

func TestReleaseOfFreeLatchIsNoop(t *testing.T) {
	t.Parallel()

	set := New(nil)
	set.Release(MergeInProgress)
	if set.Held(MergeInProgress) {
		t.Fatal("release must not mark a latch as held")
	}
}

func TestConcurrentAcquireHasSingleWinner(t *testing.T) {
	t.Parallel()

	set := New(nil)
	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if set.TryAcquire(BackendSyncRunning) {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	if got := winners.Load(); got != 1 {
		t.Fatalf("expected exactly one winner, got %d", got)
	}

	set.Reset()
	if set.Held(BackendSyncRunning) {
		t.Fatal("reset should free all latches")
	}
}
