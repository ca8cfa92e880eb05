package future

import (
	"sync/atomic"

	"github.com/mirovis/taskcore/internal/task"
)

// Promise is the producer-side handle of a task: the side that sets results,
// progress, and errors. It is single-owner and must not be copied. Unlike
// futures and continuations, a promise registers no interest in the task:
// the dependents count tracks consumers only, so dropping the last future
// cancels the task even while its producer is still running. Close ensures
// an abandoned promise finishes its task instead of leaving it
// half-completed.
type Promise[T any] struct {
	pt          *task.ProgressingTask
	futureTaken atomic.Bool
}

// NewPromise creates a fresh progressing task and its producer handle. The
// consumer side is extracted once via Future.
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{pt: task.NewProgressingTask(true)}
}

// NewVoidPromise creates a promise for an operation with no result value;
// its task may finish without a result being stored.
func NewVoidPromise() *Promise[struct{}] {
	return &Promise[struct{}]{pt: task.NewProgressingTask(false)}
}

// Future extracts the consumer-side handle. It may be called exactly once
// per promise; a second extraction panics. This is the conventional way to
// hand the result to a caller while the producer retains the promise.
func (p *Promise[T]) Future() *Future[T] {
	if !p.futureTaken.CompareAndSwap(false, true) {
		panic("future: Future extracted twice from one promise")
	}
	return FromTask[T](&p.pt.Task)
}

// Task returns the underlying progressing task, giving worker bodies access
// to the full progress-reporting surface.
func (p *Promise[T]) Task() *task.ProgressingTask {
	return p.pt
}

// SetResult stores the task's result value. Returns false if the task has
// already finished (for example because it was canceled under the producer).
func (p *Promise[T]) SetResult(v T) bool {
	return p.pt.SetResults(v)
}

// Fail stores an error on the task without finishing it. Use FailAndFinish
// for the atomic combination worker bodies need on their error exit path.
func (p *Promise[T]) Fail(err error) bool {
	return p.pt.SetError(err)
}

// FailAndFinish stores the error and finishes the task in one transition.
func (p *Promise[T]) FailAndFinish(err error) {
	p.pt.FailAndFinish(err)
}

// SetStarted marks the task as started.
func (p *Promise[T]) SetStarted() bool { return p.pt.SetStarted() }

// Finish moves the task into its terminal state.
func (p *Promise[T]) Finish() { p.pt.SetFinished() }

// Cancel cancels (and thereby finishes) the task.
func (p *Promise[T]) Cancel() { p.pt.Cancel() }

// IsCanceled reports whether the task was canceled. Producers poll this as
// their cooperative cancellation checkpoint.
func (p *Promise[T]) IsCanceled() bool { return p.pt.IsCanceled() }

// SetProgressMaximum forwards to the task's progress surface.
func (p *Promise[T]) SetProgressMaximum(maximum int64) bool {
	return p.pt.SetProgressMaximum(maximum)
}

// SetProgressValue forwards to the task's progress surface; the return value
// doubles as the cancellation checkpoint.
func (p *Promise[T]) SetProgressValue(value int64) bool {
	return p.pt.SetProgressValue(value)
}

// SetProgressText forwards to the task's progress surface.
func (p *Promise[T]) SetProgressText(text string) bool {
	return p.pt.SetProgressText(text)
}

// Close releases the producer handle. If the task has not finished by now it
// is canceled and finished, guaranteeing no task is abandoned half-completed.
// Close is idempotent and safe to defer alongside the normal fulfillment
// path.
func (p *Promise[T]) Close() {
	if !p.pt.IsFinished() {
		p.pt.Cancel()
	}
}
