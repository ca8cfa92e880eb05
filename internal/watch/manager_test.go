package watch

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirovis/taskcore/internal/task"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestManager returns a manager whose loop is pumped by a background
// goroutine until the returned stop function is called. Tests that need the
// calling goroutine to own the loop (the pumping waits) build their own.
func newTestManager(t *testing.T) (*Manager, func()) {
	t.Helper()
	loop := NewLoop()
	m := NewManager(loop, testLogger())
	stop := make(chan struct{})
	go loop.RunUntil(stop)
	return m, func() { close(stop) }
}

// waitFor polls until cond is true or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestManagerRegistration(t *testing.T) {
	t.Run("registered task appears in the snapshot", func(t *testing.T) {
		m, stop := newTestManager(t)
		defer stop()

		tk := task.New(false)
		m.RegisterTask(tk)
		tk.SetStarted()

		waitFor(t, func() bool {
			for _, info := range m.Snapshot() {
				if info.ID == tk.ID() && info.Started {
					return true
				}
			}
			return false
		}, "registered task never showed up as started")

		tk.SetFinished()
	})

	t.Run("duplicate registration is a no-op", func(t *testing.T) {
		m, stop := newTestManager(t)
		defer stop()

		tk := task.New(false)
		m.RegisterTask(tk)
		m.RegisterTask(tk)
		tk.SetStarted()

		waitFor(t, func() bool {
			count := 0
			for _, info := range m.Snapshot() {
				if info.ID == tk.ID() {
					count++
				}
			}
			return count == 1
		}, "task registered twice should appear once")

		tk.SetFinished()
	})

	t.Run("finished task moves to the recent list with its outcome", func(t *testing.T) {
		m, stop := newTestManager(t)
		defer stop()

		tk := task.New(true)
		m.RegisterTask(tk)
		tk.SetStarted()
		tk.FailAndFinish(errors.New("stage failed"))

		waitFor(t, func() bool {
			for _, info := range m.Snapshot() {
				if info.ID == tk.ID() && info.Finished && info.Error != "" {
					return true
				}
			}
			return false
		}, "terminal outcome never reached the snapshot")
	})

	t.Run("registering an already finished task delivers the terminal event", func(t *testing.T) {
		m, stop := newTestManager(t)
		defer stop()

		events := m.Subscribe(16)
		tk := task.NewCanceled()
		m.RegisterTask(tk)

		deadline := time.After(2 * time.Second)
		for {
			select {
			case ev := <-events:
				if ev.Kind == TaskCanceled && ev.TaskID == tk.ID() {
					m.Unsubscribe(events)
					return
				}
			case <-deadline:
				t.Fatal("terminal event for a pre-finished task never arrived")
			}
		}
	})
}

func TestManagerEvents(t *testing.T) {
	t.Run("state and progress notifications arrive in order", func(t *testing.T) {
		m, stop := newTestManager(t)
		defer stop()

		events := m.Subscribe(64)
		defer m.Unsubscribe(events)

		pt := task.NewProgressingTask(false)
		m.RegisterTask(&pt.Task)
		pt.SetStarted()
		pt.SetProgressText("working")
		pt.SetProgressMaximum(2)
		pt.SetProgressValue(2)
		pt.SetFinished()

		var kinds []EventKind
		deadline := time.After(2 * time.Second)
		for {
			select {
			case ev := <-events:
				if ev.TaskID != pt.ID() {
					continue
				}
				kinds = append(kinds, ev.Kind)
				if ev.Kind == TaskFinished {
					require.Equal(t, TaskStarted, kinds[0], "started must precede everything")
					assert.Contains(t, kinds, ProgressTextChanged)
					return
				}
			case <-deadline:
				t.Fatalf("never saw the finished event, got %v", kinds)
			}
		}
	})

	t.Run("cancellation is reported as canceled", func(t *testing.T) {
		m, stop := newTestManager(t)
		defer stop()

		events := m.Subscribe(16)
		defer m.Unsubscribe(events)

		tk := task.New(true)
		m.RegisterTask(tk)
		tk.SetStarted()
		tk.Cancel()

		deadline := time.After(2 * time.Second)
		for {
			select {
			case ev := <-events:
				if ev.TaskID == tk.ID() && ev.Kind == TaskCanceled {
					return
				}
			case <-deadline:
				t.Fatal("canceled event never arrived")
			}
		}
	})
}

func TestManagerCancelTask(t *testing.T) {
	t.Run("cancels a registered task by id", func(t *testing.T) {
		m, stop := newTestManager(t)
		defer stop()

		tk := task.New(true)
		m.RegisterTask(tk)
		tk.SetStarted()

		waitFor(t, func() bool { return len(m.Snapshot()) > 0 }, "task never registered")
		assert.True(t, m.CancelTask(tk.ID()))
		assert.True(t, tk.IsCanceled())
	})

	t.Run("unknown id reports not found", func(t *testing.T) {
		m, stop := newTestManager(t)
		defer stop()

		tk := task.New(false)
		assert.False(t, m.CancelTask(tk.ID()))
		tk.Cancel()
	})
}

func TestManagerWaits(t *testing.T) {
	t.Run("wait for task pumps the loop until completion", func(t *testing.T) {
		loop := NewLoop()
		m := NewManager(loop, testLogger())

		tk := task.New(false)
		tk.SetStarted()
		go func() {
			time.Sleep(30 * time.Millisecond)
			tk.SetFinished()
		}()

		// The test goroutine owns the loop here.
		ok := m.WaitForTask(tk, nil)
		assert.True(t, ok)
		assert.Zero(t, m.InLocalEventLoop(), "nesting counter must unwind")
	})

	t.Run("wait reports cancellation", func(t *testing.T) {
		loop := NewLoop()
		m := NewManager(loop, testLogger())

		tk := task.New(true)
		go func() {
			time.Sleep(30 * time.Millisecond)
			tk.Cancel()
		}()

		assert.False(t, m.WaitForTask(tk, nil))
	})

	t.Run("dependent cancellation aborts the wait", func(t *testing.T) {
		loop := NewLoop()
		m := NewManager(loop, testLogger())

		awaited := task.New(false)
		dependent := task.New(false)
		dependent.SetStarted()
		go func() {
			time.Sleep(30 * time.Millisecond)
			dependent.Cancel()
		}()

		assert.False(t, m.WaitForTask(awaited, dependent))
		assert.False(t, awaited.IsFinished(), "the awaited task keeps running")
		awaited.Cancel()
	})

	t.Run("cancel all and wait drains the registry", func(t *testing.T) {
		loop := NewLoop()
		m := NewManager(loop, testLogger())

		var tasks []*task.Task
		for i := 0; i < 3; i++ {
			tk := task.New(true)
			tk.SetStarted()
			tasks = append(tasks, tk)
			m.RegisterTask(tk)
		}
		loop.ProcessPending()

		m.CancelAllAndWait()
		loop.ProcessPending()
		for _, tk := range tasks {
			assert.True(t, tk.IsCanceled())
		}
		assert.Empty(t, m.RunningTasks())

		m.Shutdown()
		assert.Empty(t, m.snapshotLocked(), "shutdown clears the registry")
	})
}

func TestLoopExecutor(t *testing.T) {
	loop := NewLoop()
	ex := NewLoopExecutor(loop)

	ran := false
	ex.Execute(func() { ran = true })
	assert.False(t, ran, "execution is deferred to the loop goroutine")
	loop.ProcessPending()
	assert.True(t, ran)
}

func TestMainThreadOperation(t *testing.T) {
	t.Run("registers started and finishes", func(t *testing.T) {
		loop := NewLoop()
		m := NewManager(loop, testLogger())

		op := NewMainThreadOperation(m)
		assert.True(t, op.Task().IsStarted())

		op.SetProgressMaximum(2)
		op.SetProgressValue(1)
		op.SetProgressText("crunching")
		op.SetProgressValue(2)
		op.Finish()

		assert.True(t, op.Task().IsFinished())
		assert.False(t, op.Task().IsCanceled())
		assert.Empty(t, m.RunningTasks(), "the watcher must have seen the finish")
	})

	t.Run("close cancels unfinished work", func(t *testing.T) {
		loop := NewLoop()
		m := NewManager(loop, testLogger())

		op := NewMainThreadOperation(m)
		op.Close()
		assert.True(t, op.IsCanceled())
		op.Close() // idempotent
	})

	t.Run("progress setters fail after user cancellation", func(t *testing.T) {
		loop := NewLoop()
		m := NewManager(loop, testLogger())

		op := NewMainThreadOperation(m)
		op.Cancel()
		assert.False(t, op.SetProgressValue(1))
		assert.False(t, op.IncrementProgressValue(1))
		op.Close()
	})
}
