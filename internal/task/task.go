package task

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// liveCount tracks the number of tasks that have been created but have not
// yet reached the finished state. Leak-checking tests use it to verify that
// every task eventually terminates.
var liveCount atomic.Int64

// LiveCount returns the number of tasks currently alive (created and not yet
// finished).
func LiveCount() int64 {
	return liveCount.Load()
}

// StateCallback observes task state transitions. It is invoked while the
// task's internal lock is held, so it must be fast and must not call back
// into the same task. Returning false removes the callback from the task.
type StateCallback func(s State) bool

type stateCallbackEntry struct {
	id uint64
	fn StateCallback
}

// Task is the shared state of one unit of asynchronous work. All mutable
// fields are guarded by a per-task mutex; the state bitmask is additionally
// readable through a lock-free atomic load so worker bodies can poll
// IsCanceled cheaply inside tight loops.
type Task struct {
	id uuid.UUID

	mu    sync.Mutex
	state atomic.Int32

	err        error
	results    any
	resultSet  bool
	hasStorage bool

	// dependents counts outstanding interest (futures, continuations).
	// It is distinct from memory lifetime, which the garbage collector
	// owns. Reaching zero on an unfinished task cancels it.
	dependents int

	// continuations run exactly once, in FIFO registration order, after
	// the task reaches its terminal state. They are invoked outside the
	// task lock because they may be arbitrary user code.
	continuations []func(*Task)

	stateCallbacks []stateCallbackEntry
	nextCallbackID uint64

	done chan struct{}

	// progressing points back to the ProgressingTask embedding this Task,
	// or is nil for plain tasks.
	progressing *ProgressingTask
}

// New creates a task in its initial state. withStorage declares whether the
// task will carry a result value; tasks of void-returning operations are
// created without storage and may finish without a result.
func New(withStorage bool) *Task {
	return newTask(NoState, withStorage)
}

// NewImmediate creates a task that is already started and finished with the
// given result. No goroutine is ever involved.
func NewImmediate(result any) *Task {
	t := newTask(Started|Finished, true)
	t.results = result
	t.resultSet = true
	return t
}

// NewImmediateEmpty creates an already-finished task carrying no result.
func NewImmediateEmpty() *Task {
	return newTask(Started|Finished, false)
}

// NewFailed creates an already-finished task holding the given error.
func NewFailed(err error) *Task {
	if err == nil {
		panic("task: NewFailed with nil error")
	}
	t := newTask(Started|Finished, false)
	t.err = err
	return t
}

// NewCanceled creates an already-canceled (and therefore finished) task.
func NewCanceled() *Task {
	return newTask(Started|Finished|Canceled, false)
}

func newTask(initial State, withStorage bool) *Task {
	t := &Task{}
	initTask(t, initial, withStorage)
	return t
}

// initTask populates a task in place so embedding types can initialize the
// Task they contain without copying its mutex.
func initTask(t *Task, initial State, withStorage bool) {
	t.id = uuid.New()
	t.hasStorage = withStorage
	t.done = make(chan struct{})
	t.state.Store(int32(initial))
	if initial&Finished != 0 {
		close(t.done)
	} else {
		liveCount.Add(1)
	}
}

// ID returns the task's unique identifier.
func (t *Task) ID() uuid.UUID {
	return t.id
}

// CurrentState returns the task's state bitmask via a lock-free load.
func (t *Task) CurrentState() State {
	return State(t.state.Load())
}

// IsStarted reports whether work on the task has begun.
func (t *Task) IsStarted() bool {
	return t.CurrentState()&Started != 0
}

// IsFinished reports whether the task has reached its terminal state.
func (t *Task) IsFinished() bool {
	return t.CurrentState()&Finished != 0
}

// IsCanceled reports whether the task has been canceled. Worker bodies are
// expected to poll this periodically and return early when it becomes true.
func (t *Task) IsCanceled() bool {
	return t.CurrentState()&Canceled != 0
}

// Progressing returns the ProgressingTask this task belongs to, or nil if it
// is a plain task.
func (t *Task) Progressing() *ProgressingTask {
	return t.progressing
}

// Done returns a channel that is closed when the task reaches its terminal
// state, for select-based waits. StartOver replaces the channel, so callers
// holding one across a restart observe only the cycle they subscribed to.
func (t *Task) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

func (t *Task) loadState() State {
	return State(t.state.Load())
}

func (t *Task) orState(s State) {
	for {
		old := t.state.Load()
		if t.state.CompareAndSwap(old, old|int32(s)) {
			return
		}
	}
}

// SetStarted switches the task into the started state. It returns false if
// the task was already started or has already finished.
func (t *Task) SetStarted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startLocked()
}

func (t *Task) startLocked() bool {
	s := t.loadState()
	if s&(Started|Finished) != 0 {
		return false
	}
	t.orState(Started)
	t.callStateCallbacksLocked(Started)
	return true
}

// SetFinished switches the task into the finished state and runs all queued
// continuations. A finished task must carry a result, an error, the canceled
// flag, or no result storage at all; violating that contract panics, since
// proceeding would hand consumers an invalid task.
func (t *Task) SetFinished() {
	t.mu.Lock()
	if t.loadState()&Finished != 0 {
		t.mu.Unlock()
		return
	}
	conts := t.finishLocked()
	t.mu.Unlock()
	runContinuations(t, conts)
}

// finishLocked performs the finished transition and returns the drained
// continuation list. The caller must unlock before running it.
func (t *Task) finishLocked() []func(*Task) {
	s := t.loadState()
	if t.err == nil && s&Canceled == 0 && !t.resultSet && t.hasStorage {
		panic("task: finished without a result, error, or cancellation")
	}
	t.orState(Finished)
	t.callStateCallbacksLocked(Finished)
	close(t.done)
	liveCount.Add(-1)
	conts := t.continuations
	t.continuations = nil
	return conts
}

// Cancel sets the canceled and finished flags in one transition and runs all
// queued continuations. Canceling an already-finished task is a safe no-op.
func (t *Task) Cancel() {
	t.mu.Lock()
	conts := t.cancelLocked()
	t.mu.Unlock()
	runContinuations(t, conts)
}

func (t *Task) cancelLocked() []func(*Task) {
	if t.loadState()&Finished != 0 {
		return nil
	}
	t.orState(Canceled | Finished)
	t.callStateCallbacksLocked(Canceled | Finished)
	close(t.done)
	liveCount.Add(-1)
	conts := t.continuations
	t.continuations = nil
	return conts
}

// SetError stores the task's error. It is a no-op returning false if the
// task has already finished, was canceled, or already carries an error. It
// does not finish the task; use FailAndFinish for the atomic combination.
func (t *Task) SetError(err error) bool {
	if err == nil {
		panic("task: SetError with nil error")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.loadState()&(Canceled|Finished) != 0 || t.err != nil {
		return false
	}
	t.err = err
	return true
}

// FailAndFinish stores the error and finishes the task in one locked
// transition. Worker bodies use it to record a failure on every exit path.
func (t *Task) FailAndFinish(err error) {
	if err == nil {
		panic("task: FailAndFinish with nil error")
	}
	t.mu.Lock()
	if t.loadState()&Finished != 0 {
		t.mu.Unlock()
		return
	}
	if t.err == nil {
		t.err = err
	}
	conts := t.finishLocked()
	t.mu.Unlock()
	runContinuations(t, conts)
}

// Err returns the stored error, if any, without consuming it.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// TakeError moves the stored error out of the task.
func (t *Task) TakeError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	err := t.err
	t.err = nil
	return err
}

// HasResultStorage reports whether the task was created to carry a result.
func (t *Task) HasResultStorage() bool {
	return t.hasStorage
}

// SetResults stores the task's result value. The result may be assigned at
// most once; a second assignment panics. Storing a result into a task that
// already finished (canceled under the producer) is tolerated and discards
// the value, returning false.
func (t *Task) SetResults(v any) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.hasStorage {
		panic("task: SetResults on a task without result storage")
	}
	if t.loadState()&Finished != 0 {
		return false
	}
	if t.resultSet {
		panic("task: result assigned twice")
	}
	t.results = v
	t.resultSet = true
	return true
}

// TakeResults moves the stored result out of the task. The second call, or a
// call before a result was stored, returns ok=false.
func (t *Task) TakeResults() (v any, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.resultSet {
		return nil, false
	}
	v = t.results
	t.results = nil
	t.resultSet = false
	return v, true
}

// PeekResults returns the stored result without consuming it.
func (t *Task) PeekResults() (v any, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.resultSet {
		return nil, false
	}
	return t.results, true
}

// AddStateCallback registers an observer for state transitions. If replay is
// true the callback is immediately invoked with the task's current state, so
// a subscriber attaching to an already-started or already-finished task sees
// those flags instead of missing them. The returned handle removes the
// callback via RemoveStateCallback; the zero handle means the callback
// declined registration during replay.
func (t *Task) AddStateCallback(fn StateCallback, replay bool) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if replay && !fn(t.loadState()) {
		return 0
	}
	t.nextCallbackID++
	id := t.nextCallbackID
	t.stateCallbacks = append(t.stateCallbacks, stateCallbackEntry{id: id, fn: fn})
	return id
}

// RemoveStateCallback unregisters a previously added callback. Removing the
// zero handle or an already-removed handle is a no-op.
func (t *Task) RemoveStateCallback(id uint64) {
	if id == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, e := range t.stateCallbacks {
		if e.id == id {
			t.stateCallbacks = append(t.stateCallbacks[:i], t.stateCallbacks[i+1:]...)
			return
		}
	}
}

func (t *Task) callStateCallbacksLocked(s State) {
	kept := t.stateCallbacks[:0]
	for _, e := range t.stateCallbacks {
		if e.fn(s) {
			kept = append(kept, e)
		}
	}
	t.stateCallbacks = kept
}

// Finally registers a continuation to run exactly once when the task reaches
// its terminal state, whether it finishes normally or is canceled. If the
// task has already finished, the continuation runs synchronously before
// Finally returns, which collapses the subscribe/just-finished race into one
// well-defined behavior. Continuations registered on a live task run in FIFO
// registration order, outside the task lock.
func (t *Task) Finally(fn func(*Task)) {
	t.mu.Lock()
	if t.loadState()&Finished != 0 {
		t.mu.Unlock()
		fn(t)
		return
	}
	t.continuations = append(t.continuations, fn)
	t.mu.Unlock()
}

func runContinuations(t *Task, conts []func(*Task)) {
	for _, fn := range conts {
		fn(t)
	}
}

// StartOver resets a finished task to its initial state so it can be run
// again. Calling it on an unfinished task panics.
func (t *Task) StartOver() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.loadState()&Finished == 0 {
		panic("task: StartOver on an unfinished task")
	}
	t.state.Store(int32(t.loadState() & IsProgressing))
	t.err = nil
	t.results = nil
	t.resultSet = false
	t.done = make(chan struct{})
	liveCount.Add(1)
}

func (t *Task) addDependent() {
	t.mu.Lock()
	t.dependents++
	t.mu.Unlock()
}

// removeDependent decrements the interest count. The decrement that brings
// the count to zero on an unfinished task cancels it: nobody wants the
// result anymore, so the work should stop.
func (t *Task) removeDependent() {
	t.mu.Lock()
	t.dependents--
	if t.dependents > 0 || t.loadState()&Finished != 0 {
		t.mu.Unlock()
		return
	}
	conts := t.cancelLocked()
	t.mu.Unlock()
	runContinuations(t, conts)
}

// Dependents returns the current interest count.
func (t *Task) Dependents() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dependents
}
