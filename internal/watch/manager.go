package watch

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/mirovis/taskcore/internal/future"
	"github.com/mirovis/taskcore/internal/task"
)

// Manager is the registry of all in-flight tasks for one application
// instance. Registration entry points are callable from any goroutine and
// marshal onto the loop; everything else (the watcher table, the running
// stack, the local-event-loop counter) is loop-confined and explicitly not
// thread-safe. Other goroutines read it through Snapshot, which uses a
// blocking queued invocation.
type Manager struct {
	loop   *Loop
	logger *slog.Logger

	// Loop-confined state.
	watchers         map[uuid.UUID]*Watcher
	runningTaskStack []*Watcher
	recentlyFinished []TaskInfo
	inLocalEventLoop int

	subMu       sync.Mutex
	subscribers []chan Event
}

// NewManager creates a manager bound to the given loop.
func NewManager(loop *Loop, logger *slog.Logger) *Manager {
	return &Manager{
		loop:     loop,
		logger:   logger.With("component", "task_manager"),
		watchers: make(map[uuid.UUID]*Watcher),
	}
}

// Loop returns the event loop the manager marshals onto.
func (m *Manager) Loop() *Loop { return m.loop }

// RegisterTask makes the task visible to UI observers. Safe to call from
// any goroutine; the watcher is created on the loop goroutine. Registering
// the same task twice is a no-op.
func (m *Manager) RegisterTask(t *task.Task) {
	if t == nil {
		return
	}
	m.loop.Post(func() { m.watchTask(t) })
}

// RegisterFuture registers the task behind a future.
func RegisterFuture[T any](m *Manager, f *future.Future[T]) {
	m.RegisterTask(f.Task())
}

// RegisterPromise registers the task behind a promise.
func RegisterPromise[T any](m *Manager, p *future.Promise[T]) {
	m.RegisterTask(&p.Task().Task)
}

// watchTask runs on the loop goroutine.
func (m *Manager) watchTask(t *task.Task) {
	if _, ok := m.watchers[t.ID()]; ok {
		return
	}
	m.logger.Debug("watching task", "task_id", t.ID())
	m.watchers[t.ID()] = newWatcher(t, m)
}

func (m *Manager) watcherStarted(w *Watcher) {
	m.runningTaskStack = append(m.runningTaskStack, w)
}

func (m *Manager) watcherFinished(w *Watcher) {
	for i, r := range m.runningTaskStack {
		if r == w {
			m.runningTaskStack = append(m.runningTaskStack[:i], m.runningTaskStack[i+1:]...)
			break
		}
	}
	delete(m.watchers, w.t.ID())
	m.recentlyFinished = append(m.recentlyFinished, infoFor(w))
	if n := len(m.recentlyFinished); n > recentFinishedCap {
		m.recentlyFinished = m.recentlyFinished[n-recentFinishedCap:]
	}
	if w.errText != "" {
		m.logger.Warn("task failed",
			"task_id", w.t.ID(),
			"error", w.errText)
	}
	m.logger.Debug("task left registry",
		"task_id", w.t.ID(),
		"canceled", w.canceled,
		"running_count", len(m.runningTaskStack))
}

// RunningTasks returns the watchers of started-but-unfinished tasks, in
// start order. Loop-confined; other goroutines use Snapshot.
func (m *Manager) RunningTasks() []*Watcher {
	return m.runningTaskStack
}

// TaskInfo is a plain snapshot row describing one registered task.
type TaskInfo struct {
	ID              uuid.UUID `json:"id"`
	Started         bool      `json:"started"`
	Finished        bool      `json:"finished"`
	Canceled        bool      `json:"canceled"`
	Error           string    `json:"error,omitempty"`
	ProgressValue   int64     `json:"progress_value"`
	ProgressMaximum int64     `json:"progress_maximum"`
	ProgressText    string    `json:"progress_text"`
}

// Snapshot returns the state of every registered task. It is safe from any
// goroutine except the loop's own (which may read RunningTasks directly)
// and requires the loop to be running.
func (m *Manager) Snapshot() []TaskInfo {
	var infos []TaskInfo
	m.loop.Invoke(func() {
		infos = m.snapshotLocked()
	})
	return infos
}

// recentFinishedCap bounds how many terminal outcomes the snapshot retains.
const recentFinishedCap = 32

func (m *Manager) snapshotLocked() []TaskInfo {
	infos := make([]TaskInfo, 0, len(m.watchers)+len(m.recentlyFinished))
	for _, w := range m.watchers {
		infos = append(infos, infoFor(w))
	}
	infos = append(infos, m.recentlyFinished...)
	return infos
}

func infoFor(w *Watcher) TaskInfo {
	return TaskInfo{
		ID:              w.t.ID(),
		Started:         w.started,
		Finished:        w.finished,
		Canceled:        w.canceled,
		Error:           w.errText,
		ProgressValue:   w.value,
		ProgressMaximum: w.maximum,
		ProgressText:    w.text,
	}
}

// CancelTask cancels the registered task with the given id, reporting
// whether it was found. Safe from any goroutine except the loop's own.
func (m *Manager) CancelTask(id uuid.UUID) bool {
	found := false
	m.loop.Invoke(func() {
		if w, ok := m.watchers[id]; ok {
			found = true
			w.t.Cancel()
		}
	})
	return found
}

// WaitForTask blocks on the loop goroutine until t finishes, pumping the
// event loop so the interface stays responsive. If dependent is non-nil and
// gets canceled meanwhile, the wait aborts. Returns false if t, or the
// dependent, was canceled, so callers can distinguish "finished normally"
// from "abandoned". Must be called on the loop goroutine.
func (m *Manager) WaitForTask(t *task.Task, dependent *task.Task) bool {
	done := make(chan struct{})
	var once sync.Once
	wake := func() { once.Do(func() { close(done) }) }

	cb := t.AddStateCallback(func(s task.State) bool {
		if s&task.Finished != 0 {
			wake()
		}
		return true
	}, true)
	var depCB uint64
	if dependent != nil {
		depCB = dependent.AddStateCallback(func(s task.State) bool {
			if s&(task.Canceled|task.Finished) != 0 {
				wake()
			}
			return true
		}, true)
	}

	m.StartLocalEventHandling()
	m.loop.RunUntil(done)
	m.StopLocalEventHandling()

	t.RemoveStateCallback(cb)
	if dependent != nil {
		dependent.RemoveStateCallback(depCB)
		if dependent.IsCanceled() {
			return false
		}
	}
	return t.IsFinished() && !t.IsCanceled()
}

// WaitForFuture pumps the event loop until the future's task finishes.
// Must be called on the loop goroutine.
func WaitForFuture[T any](m *Manager, f *future.Future[T]) bool {
	return m.WaitForTask(f.Task(), nil)
}

// WaitForAll pumps the event loop until no registered task remains
// unfinished. Must be called on the loop goroutine.
func (m *Manager) WaitForAll() {
	for {
		var next *task.Task
		for _, w := range m.watchers {
			if !w.t.IsFinished() {
				next = w.t
				break
			}
		}
		if next == nil {
			return
		}
		m.WaitForTask(next, nil)
	}
}

// CancelAll requests cancellation of every registered task. Must be called
// on the loop goroutine.
func (m *Manager) CancelAll() {
	for _, w := range m.watchers {
		w.t.Cancel()
	}
}

// CancelAllAndWait cancels every registered task and pumps the event loop
// until all of them have reached their terminal state. Must be called on
// the loop goroutine.
func (m *Manager) CancelAllAndWait() {
	m.CancelAll()
	m.WaitForAll()
}

// Shutdown detaches every watcher and clears the registry, for orderly
// teardown once the loop is about to stop. Must be called on the loop
// goroutine.
func (m *Manager) Shutdown() {
	for id, w := range m.watchers {
		w.detach()
		delete(m.watchers, id)
	}
	m.runningTaskStack = nil
	m.recentlyFinished = nil
}

// StartLocalEventHandling notes entry into a nested local event loop. The
// reentrancy counter lets nested waits compose: an inner wait's pumping does
// not prematurely end an outer wait.
func (m *Manager) StartLocalEventHandling() {
	m.inLocalEventLoop++
}

// StopLocalEventHandling notes exit from a nested local event loop.
func (m *Manager) StopLocalEventHandling() {
	if m.inLocalEventLoop <= 0 {
		panic("watch: StopLocalEventHandling without matching start")
	}
	m.inLocalEventLoop--
}

// InLocalEventLoop returns the current local-event-loop nesting depth.
// Loop-confined.
func (m *Manager) InLocalEventLoop() int {
	return m.inLocalEventLoop
}

// Subscribe returns a channel receiving every manager event. Events are
// dropped, not blocked on, when the subscriber falls behind. Safe from any
// goroutine.
func (m *Manager) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)
	m.subMu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.subMu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscription channel.
func (m *Manager) Unsubscribe(ch <-chan Event) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for i, s := range m.subscribers {
		if s == ch {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			close(s)
			return
		}
	}
}

// publish runs on the loop goroutine.
func (m *Manager) publish(ev Event) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, s := range m.subscribers {
		select {
		case s <- ev:
		default:
			m.logger.Debug("dropping event for slow subscriber",
				"task_id", ev.TaskID, "kind", ev.Kind)
		}
	}
}
