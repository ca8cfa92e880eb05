package future

import "github.com/mirovis/taskcore/internal/task"

// SharedFuture is the copyable counterpart of Future: any number of clones
// may coexist, each holding its own dependency on the task, and Result reads
// the stored value without consuming it, enabling fan-out of one computed
// value to many consumers.
type SharedFuture[T any] struct {
	ref *task.Reference
}

// SharedFromTask wraps an existing task in a shared future.
func SharedFromTask[T any](t *task.Task) *SharedFuture[T] {
	return &SharedFuture[T]{ref: task.NewReference(t)}
}

// Clone registers a new interest in the same task. Each clone must be
// released (or have its result read and then be released) independently.
func (s *SharedFuture[T]) Clone() *SharedFuture[T] {
	return &SharedFuture[T]{ref: task.NewReference(s.Task())}
}

// IsValid reports whether this handle still owns its task dependency.
func (s *SharedFuture[T]) IsValid() bool {
	return s.ref != nil && !s.ref.Released()
}

// Task returns the underlying task. Panics on an invalid handle.
func (s *SharedFuture[T]) Task() *task.Task {
	if s.ref == nil {
		panic("future: use of invalid shared future")
	}
	return s.ref.Task()
}

// IsFinished reports whether the underlying task reached its terminal state.
func (s *SharedFuture[T]) IsFinished() bool { return s.Task().IsFinished() }

// IsCanceled reports whether the underlying task was canceled.
func (s *SharedFuture[T]) IsCanceled() bool { return s.Task().IsCanceled() }

// Done exposes the task's completion channel for select-based waits.
func (s *SharedFuture[T]) Done() <-chan struct{} { return s.Task().Done() }

// Cancel requests cancellation of the underlying task.
func (s *SharedFuture[T]) Cancel() { s.Task().Cancel() }

// Release drops this handle's dependency on the task.
func (s *SharedFuture[T]) Release() {
	if s.ref != nil {
		s.ref.Release()
		s.ref = nil
	}
}

// Result reads the task's result without consuming it, so repeated calls and
// sibling clones all observe the same value. The task must have finished;
// calling Result earlier panics. A canceled task yields ErrCanceled; a
// failed task yields the stored error on every call.
func (s *SharedFuture[T]) Result() (T, error) {
	var zero T
	t := s.Task()
	if !t.IsFinished() {
		panic("future: Result on an unfinished shared future")
	}
	if t.IsCanceled() {
		return zero, ErrCanceled
	}
	if err := t.Err(); err != nil {
		return zero, err
	}
	if v, ok := t.PeekResults(); ok {
		return v.(T), nil
	}
	return zero, nil
}
