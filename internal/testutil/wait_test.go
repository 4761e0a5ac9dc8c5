package testutil

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestWaitForCondition(t *testing.T) {
	t.Parallel()

	var flag atomic.Bool
	go func() {
		time.Sleep(20 * time.Millisecond)
		flag.Store(true)
	}()

	if !WaitFor(t, flag.Load, WithTimeout(time.Second)) {
		t.Error("expected condition to be met")
	}
}

func TestWaitForTimeout(t *testing.T) {
	t.Parallel()

	start := time.Now()
	met := WaitFor(t, func() bool { return false },
		WithTimeout(50*time.Millisecond), WithInterval(5*time.Millisecond))

	if met {
		t.Error("expected timeout")
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Error("returned before the timeout elapsed")
	}
}
