package orchestration

import (
	"context"
	"fmt"
	"sync"
)

// withContextCancelHook calls onContextDone once ctx is done, unless the
// returned release function is called first.
func withContextCancelHook(ctx context.Context, onContextDone func()) (release func()) {
	released := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			onContextDone()
		case <-released:
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(released) }) }
}

type workerRun func(context.Context) error

// panicSafeNamedWorker turns a panic in run into an error naming the worker.
func panicSafeNamedWorker(name string, run func(context.Context) error) workerRun {
	return func(ctx context.Context) (err error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				err = fmt.Errorf("%s worker panicked: %v", name, recovered)
			}
		}()

		if err = run(ctx); err != nil {
			return fmt.Errorf("%s worker failed: %w", name, err)
		}
		return nil
	}
}
