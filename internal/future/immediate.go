package future

import "github.com/mirovis/taskcore/internal/task"

// NewImmediate returns a future that is already finished with the given
// value. No scheduling or goroutine is involved; this is the cheap path for
// results known at construction time.
func NewImmediate[T any](v T) *Future[T] {
	return FromTask[T](task.NewImmediate(v))
}

// NewImmediateEmpty returns an already-finished future carrying no value.
func NewImmediateEmpty() *Future[struct{}] {
	return FromTask[struct{}](task.NewImmediateEmpty())
}

// NewFailed returns a future that is already finished with the given error.
func NewFailed[T any](err error) *Future[T] {
	return FromTask[T](task.NewFailed(err))
}

// NewCanceled returns a future whose task is already canceled.
func NewCanceled[T any]() *Future[T] {
	return FromTask[T](task.NewCanceled())
}
