package watch

import (
	"github.com/google/uuid"

	"github.com/mirovis/taskcore/internal/redact"
	"github.com/mirovis/taskcore/internal/task"
)

// EventKind classifies manager notifications.
type EventKind int

// Notification kinds emitted by watchers.
const (
	TaskStarted EventKind = iota + 1
	TaskFinished
	TaskCanceled
	ProgressChanged
	ProgressTextChanged
)

// Event is one loop-thread notification about a watched task.
type Event struct {
	Kind    EventKind
	TaskID  uuid.UUID
	Value   int64
	Maximum int64
	Text    string
}

// Watcher observes one task on behalf of the manager. Task callbacks fire on
// whatever goroutine performs the transition, while the watcher's own state
// is loop-confined; the callbacks therefore do nothing but post closures to
// the loop, which serializes all observation in transition order.
type Watcher struct {
	t *task.Task
	m *Manager

	stateCB    uint64
	progressCB uint64

	// Loop-confined mirrors of the last observed progress, served to
	// snapshot readers without touching the task again.
	started  bool
	finished bool
	canceled bool
	errText  string
	value    int64
	maximum  int64
	text     string
}

// newWatcher subscribes to the task. Must run on the loop goroutine.
func newWatcher(t *task.Task, m *Manager) *Watcher {
	w := &Watcher{t: t, m: m}

	// Replay makes registration on an already-started or already-finished
	// task deliver those transitions instead of missing them.
	w.stateCB = t.AddStateCallback(func(s task.State) bool {
		if s&task.Started != 0 {
			m.loop.Post(w.onStarted)
		}
		if s&task.Finished != 0 {
			canceled := s&task.Canceled != 0
			m.loop.Post(func() { w.onFinished(canceled) })
			// Terminal notification delivered; detach from the task.
			return false
		}
		return true
	}, true)

	if pt := t.Progressing(); pt != nil {
		w.progressCB = pt.AddProgressCallback(func(ev task.ProgressEvent) {
			m.loop.Post(func() { w.onProgress(ev) })
		})
	}
	return w
}

// Task returns the watched task.
func (w *Watcher) Task() *task.Task { return w.t }

// IsStarted reports whether the watcher has observed the started transition.
func (w *Watcher) IsStarted() bool { return w.started }

// IsFinished reports whether the watcher has observed the terminal
// transition.
func (w *Watcher) IsFinished() bool { return w.finished }

// IsCanceled reports whether the terminal transition carried cancellation.
func (w *Watcher) IsCanceled() bool { return w.canceled }

func (w *Watcher) onStarted() {
	if w.started {
		return
	}
	w.started = true
	w.m.watcherStarted(w)
	w.m.publish(Event{Kind: TaskStarted, TaskID: w.t.ID()})
}

func (w *Watcher) onFinished(canceled bool) {
	if w.finished {
		return
	}
	w.finished = true
	w.canceled = canceled
	// Errors can carry paths and connection details from failed task
	// bodies; only the redacted form leaves the framework.
	w.errText = redact.Error(w.t.Err())
	if pt := w.t.Progressing(); pt != nil {
		pt.RemoveProgressCallback(w.progressCB)
	}
	kind := TaskFinished
	if canceled {
		kind = TaskCanceled
	}
	w.m.watcherFinished(w)
	w.m.publish(Event{Kind: kind, TaskID: w.t.ID()})
}

func (w *Watcher) onProgress(ev task.ProgressEvent) {
	if w.finished {
		return
	}
	w.value = ev.Value
	w.maximum = ev.Maximum
	w.text = ev.Text
	kind := ProgressChanged
	if ev.TextChanged {
		kind = ProgressTextChanged
	}
	w.m.publish(Event{
		Kind:    kind,
		TaskID:  w.t.ID(),
		Value:   ev.Value,
		Maximum: ev.Maximum,
		Text:    ev.Text,
	})
}

// detach unsubscribes the watcher from its task. Must run on the loop
// goroutine.
func (w *Watcher) detach() {
	w.t.RemoveStateCallback(w.stateCB)
	if pt := w.t.Progressing(); pt != nil {
		pt.RemoveProgressCallback(w.progressCB)
	}
}
