package watch

import (
	"github.com/mirovis/taskcore/internal/task"
)

// MainThreadOperation tracks a long synchronous job running on the loop
// goroutine itself. Because the job occupies the main thread, no background
// execution is involved; the operation exists so the work shows up in the
// manager like any background task and so its progress updates keep the
// interface alive by draining the event queue. Must be created and driven on
// the loop goroutine.
type MainThreadOperation struct {
	pt   *task.ProgressingTask
	loop *Loop
}

// NewMainThreadOperation creates and registers an operation that is already
// running. The task starts immediately since main-thread work has no queue
// wait.
func NewMainThreadOperation(m *Manager) *MainThreadOperation {
	pt := task.NewProgressingTask(false)
	op := &MainThreadOperation{
		pt:   pt,
		loop: m.loop,
	}
	pt.SetStarted()
	m.RegisterTask(&pt.Task)
	return op
}

// Task returns the underlying progressing task.
func (op *MainThreadOperation) Task() *task.ProgressingTask { return op.pt }

// IsCanceled reports whether the user canceled the operation, typically
// through the manager. Main-thread work polls this between progress updates.
func (op *MainThreadOperation) IsCanceled() bool { return op.pt.IsCanceled() }

// Cancel cancels the operation.
func (op *MainThreadOperation) Cancel() { op.pt.Cancel() }

// SetProgressMaximum forwards to the task and drains pending loop events so
// watchers repaint while the main thread stays busy.
func (op *MainThreadOperation) SetProgressMaximum(maximum int64) bool {
	ok := op.pt.SetProgressMaximum(maximum)
	op.loop.ProcessPending()
	return ok
}

// SetProgressValue forwards to the task and drains pending loop events. The
// return value is the cancellation checkpoint.
func (op *MainThreadOperation) SetProgressValue(value int64) bool {
	ok := op.pt.SetProgressValue(value)
	op.loop.ProcessPending()
	return ok
}

// IncrementProgressValue forwards to the task and drains pending loop events.
func (op *MainThreadOperation) IncrementProgressValue(delta int64) bool {
	ok := op.pt.IncrementProgressValue(delta)
	op.loop.ProcessPending()
	return ok
}

// SetProgressText forwards to the task and drains pending loop events.
func (op *MainThreadOperation) SetProgressText(text string) bool {
	ok := op.pt.SetProgressText(text)
	op.loop.ProcessPending()
	return ok
}

// Close finishes the operation. An operation that has not finished is
// canceled and finished; pending loop events (including the watcher's
// terminal notification) are drained either way. Idempotent, safe to defer.
func (op *MainThreadOperation) Close() {
	if !op.pt.IsFinished() {
		op.pt.Cancel()
	}
	op.loop.ProcessPending()
}

// Finish completes the operation successfully.
func (op *MainThreadOperation) Finish() {
	op.pt.SetFinished()
	op.loop.ProcessPending()
}
