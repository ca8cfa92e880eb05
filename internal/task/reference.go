package task

import "sync/atomic"

// Reference expresses interest in a task's eventual result. Futures and
// continuation tasks hold one; constructing it increments the task's
// dependents count and releasing it decrements the count again. The release
// that drops the count to zero on an unfinished task cancels the task, which
// is how "nobody cares about this result anymore" propagates into "stop
// computing it". Memory lifetime is not Reference's concern; the garbage
// collector keeps the task alive as long as anything points at it.
type Reference struct {
	t        *Task
	released atomic.Bool
}

// NewReference registers interest in the given task.
func NewReference(t *Task) *Reference {
	if t == nil {
		panic("task: NewReference with nil task")
	}
	t.addDependent()
	return &Reference{t: t}
}

// Task returns the referenced task. It panics after Release, since a
// released reference no longer guarantees the task is wanted.
func (r *Reference) Task() *Task {
	if r.released.Load() {
		panic("task: use of released reference")
	}
	return r.t
}

// Release withdraws the interest this reference represents. It is idempotent;
// only the first call decrements the dependents count.
func (r *Reference) Release() {
	if r.released.CompareAndSwap(false, true) {
		r.t.removeDependent()
	}
}

// Released reports whether Release has been called.
func (r *Reference) Released() bool {
	return r.released.Load()
}
