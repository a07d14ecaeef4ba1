package client

import (
	"context"
)

// Task is the pending result of an asynchronous request. Callers may ignore
// it entirely; it only gives failures a place to land.
type Task struct {
	done chan struct{}
	err  error
}

func runTask(fn func() error) *Task {
	t := &Task{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		t.err = fn()
	}()
	return t
}

// Resolved returns a Task that has already finished with err.
func Resolved(err error) *Task {
	t := &Task{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

// Done is closed once the request has finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns the request's error, or nil while it is still running.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the request finishes or ctx is done.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitAll waits for every task and returns the first error seen.
func WaitAll(ctx context.Context, tasks ...*Task) error {
	var first error
	for _, t := range tasks {
		if t == nil {
			continue
		}
		if err := t.Wait(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
