package future

import (
	"errors"

	"github.com/mirovis/taskcore/internal/task"
)

// ErrCanceled is returned by Result when the underlying task was canceled
// instead of finishing with a value. Cancellation is a first-class terminal
// state, not a failure; it is reported as a sentinel so callers can
// distinguish "abandoned" from "failed".
var ErrCanceled = errors.New("future: task canceled")

// Future is a consuming, single-owner handle to a task's eventual result.
// It holds a dependency on the task: releasing the last interested handle of
// an unfinished task cancels it. Retrieving the result invalidates the
// future; use SharedFuture for fan-out.
type Future[T any] struct {
	ref *task.Reference
}

// FromTask wraps an existing task in a future, registering interest in it.
func FromTask[T any](t *task.Task) *Future[T] {
	return &Future[T]{ref: task.NewReference(t)}
}

// IsValid reports whether the future still owns its task dependency. A
// future is invalidated by Result, Release, or a transfer into Then.
func (f *Future[T]) IsValid() bool {
	return f.ref != nil && !f.ref.Released()
}

// Task returns the underlying task. Panics on an invalid future.
func (f *Future[T]) Task() *task.Task {
	if f.ref == nil {
		panic("future: use of invalid future")
	}
	return f.ref.Task()
}

// IsFinished reports whether the underlying task reached its terminal state.
func (f *Future[T]) IsFinished() bool { return f.Task().IsFinished() }

// IsCanceled reports whether the underlying task was canceled.
func (f *Future[T]) IsCanceled() bool { return f.Task().IsCanceled() }

// Done exposes the task's completion channel for select-based waits.
func (f *Future[T]) Done() <-chan struct{} { return f.Task().Done() }

// Cancel requests cancellation of the underlying task.
func (f *Future[T]) Cancel() { f.Task().Cancel() }

// Release drops the future's dependency on the task without retrieving a
// result. If this was the last interested party of an unfinished task, the
// task is canceled.
func (f *Future[T]) Release() {
	if f.ref != nil {
		f.ref.Release()
		f.ref = nil
	}
}

// Result retrieves the task's result, consuming the future. The task must
// have finished; calling Result earlier, or twice, is a programming error
// and panics. A canceled task yields ErrCanceled; a failed task yields the
// stored error exactly once.
func (f *Future[T]) Result() (T, error) {
	var zero T
	t := f.Task()
	if !t.IsFinished() {
		panic("future: Result on an unfinished future")
	}
	ref := f.ref
	f.ref = nil
	defer ref.Release()
	if t.IsCanceled() {
		return zero, ErrCanceled
	}
	if err := t.TakeError(); err != nil {
		return zero, err
	}
	if v, ok := t.TakeResults(); ok {
		return v.(T), nil
	}
	// Task without result storage (void operation).
	return zero, nil
}

// Shared converts the future into a shared, copyable handle, consuming the
// original.
func (f *Future[T]) Shared() *SharedFuture[T] {
	return &SharedFuture[T]{ref: f.takeRef()}
}

// takeRef transfers ownership of the task dependency out of the future,
// invalidating it. Then uses this to adopt the antecedent reference.
func (f *Future[T]) takeRef() *task.Reference {
	if f.ref == nil {
		panic("future: use of invalid future")
	}
	ref := f.ref
	f.ref = nil
	return ref
}
