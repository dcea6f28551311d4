package safego

import (
	"testing"
	"time"
)

func waitOrFail(t *testing.T, done <-chan struct{}, msg string) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error(msg)
	}
}

func TestGo_RunsFunction(t *testing.T) {
	done := make(chan struct{})

	Go(func() {
		close(done)
	})

	waitOrFail(t, done, "goroutine did not complete within timeout")
}

func TestGo_RecoversPanic(t *testing.T) {
	done := make(chan struct{})

	// This should not crash the test process; the panic must be recovered.
	Go(func() {
		defer close(done)
		panic("intentional panic in test")
	})

	waitOrFail(t, done, "goroutine did not complete within timeout after panic")
}

func TestGo_PanicDoesNotBlockLaterLaunches(t *testing.T) {
	first := make(chan struct{})
	second := make(chan struct{})

	Go(func() {
		defer close(first)
		panic("first goroutine panics")
	})
	waitOrFail(t, first, "panicking goroutine did not finish")

	Go(func() {
		close(second)
	})
	waitOrFail(t, second, "launcher unusable after a recovered panic")
}
