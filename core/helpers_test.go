package orchestration

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestContextCancelHookFiresOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fired := make(chan struct{})
	release := withContextCancelHook(ctx, func() { close(fired) })
	defer release()

	cancel()
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatalf("expected the hook to fire")
	}
}

func TestContextCancelHookReleased(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var fired atomic.Bool
	release := withContextCancelHook(ctx, func() { fired.Store(true) })

	release()
	release()
	cancel()
	time.Sleep(10 * time.Millisecond)

	if fired.Load() {
		t.Fatalf("expected a released hook not to fire")
	}
}

func TestPanicSafeNamedWorker(t *testing.T) {
	err := panicSafeNamedWorker("speak", func(context.Context) error { panic("boom") })(context.Background())
	if err == nil || !strings.Contains(err.Error(), "speak worker panicked: boom") {
		t.Fatalf("expected panic to be converted, got %v", err)
	}

	err = panicSafeNamedWorker("speak", func(context.Context) error { return errBoom })(context.Background())
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}

	if err := panicSafeNamedWorker("speak", func(context.Context) error { return nil })(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
