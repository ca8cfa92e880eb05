package async

import (
	"fmt"

	"github.com/mirovis/taskcore/internal/future"
	"github.com/mirovis/taskcore/internal/task"
)

// PerformFunc is the body of an asynchronous operation. The progressing task
// handle it receives is the only sanctioned way to touch shared task state
// from inside the body: use the progress setters (whose boolean return
// doubles as the cancellation checkpoint) and IsCanceled, and return early
// when cancellation is observed. Bodies are never preempted.
type PerformFunc[T any] func(op *task.ProgressingTask) (T, error)

// Registrar registers newly created tasks for UI visibility. watch.Manager
// satisfies it; a nil Registrar skips registration.
type Registrar interface {
	RegisterTask(t *task.Task)
}

// Run submits body to the worker pool and registers its task with reg in one
// call, returning the consumer-side future. When the module is built with
// -tags nothreading (or pool is nil) the body executes synchronously in the
// caller's goroutine instead, through the identical lifecycle sequence.
//
// Dropping the returned future before the body observes it cancels the task;
// the body sees that through its cancellation checkpoints and is expected to
// return early.
func Run[T any](pool *Pool, reg Registrar, body PerformFunc[T]) *future.Future[T] {
	prom := future.NewPromise[T]()
	fut := prom.Future()
	if reg != nil {
		reg.RegisterTask(&prom.Task().Task)
	}
	if !threadingEnabled || pool == nil {
		perform(prom, body)
		return fut
	}
	if err := pool.Submit(func() { perform(prom, body) }); err != nil {
		prom.FailAndFinish(fmt.Errorf("async: submitting task: %w", err))
		prom.Close()
	}
	return fut
}

// RunImmediately executes body synchronously in the caller's goroutine. The
// task still goes through the started/error-capture/finished sequence, so
// consumers cannot tell the execution models apart.
func RunImmediately[T any](reg Registrar, body PerformFunc[T]) *future.Future[T] {
	prom := future.NewPromise[T]()
	fut := prom.Future()
	if reg != nil {
		reg.RegisterTask(&prom.Task().Task)
	}
	perform(prom, body)
	return fut
}

// perform drives one operation body through the task lifecycle, capturing
// errors and panics into the task and guaranteeing the task reaches the
// finished state on every exit path.
func perform[T any](prom *future.Promise[T], body PerformFunc[T]) {
	defer prom.Close()

	// A task canceled before its body got a worker never starts.
	if !prom.SetStarted() {
		return
	}

	var v T
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("async: task panicked: %v", r)
			}
		}()
		v, err = body(prom.Task())
	}()

	if err != nil {
		prom.FailAndFinish(err)
		return
	}
	if prom.SetResult(v) {
		prom.Finish()
	}
}
