package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressBasics(t *testing.T) {
	t.Run("maximum resets value", func(t *testing.T) {
		pt := NewProgressingTask(false)
		require.True(t, pt.SetProgressMaximum(100))
		require.True(t, pt.SetProgressValue(40))
		assert.Equal(t, int64(40), pt.ProgressValue())

		require.True(t, pt.SetProgressMaximum(10))
		assert.Equal(t, int64(0), pt.ProgressValue(), "changing the maximum resets the value")
		assert.Equal(t, int64(10), pt.ProgressMaximum())
		pt.Cancel()
	})

	t.Run("increment", func(t *testing.T) {
		pt := NewProgressingTask(false)
		pt.SetProgressMaximum(10)
		require.True(t, pt.IncrementProgressValue(3))
		require.True(t, pt.IncrementProgressValue(4))
		assert.Equal(t, int64(7), pt.ProgressValue())
		pt.Cancel()
	})

	t.Run("text", func(t *testing.T) {
		pt := NewProgressingTask(false)
		require.True(t, pt.SetProgressText("loading"))
		assert.Equal(t, "loading", pt.ProgressText())
		pt.Cancel()
	})

	t.Run("setters return false after cancel", func(t *testing.T) {
		pt := NewProgressingTask(false)
		pt.Cancel()
		assert.False(t, pt.SetProgressValue(1))
		assert.False(t, pt.SetProgressMaximum(10))
		assert.False(t, pt.IncrementProgressValue(1))
		assert.False(t, pt.SetProgressText("late"))
		assert.False(t, pt.SetProgressValueIntermittent(1, 1))
	})

	t.Run("setters tolerate a normally finished task", func(t *testing.T) {
		pt := NewProgressingTask(false)
		pt.SetStarted()
		pt.SetFinished()
		assert.True(t, pt.SetProgressValue(1), "only cancellation makes the checkpoint fail")
		assert.Equal(t, int64(0), pt.ProgressValue(), "updates after finish are discarded")
	})

	t.Run("progressing flag is set", func(t *testing.T) {
		pt := NewProgressingTask(false)
		assert.NotZero(t, pt.CurrentState()&IsProgressing)
		assert.Same(t, pt, pt.Progressing())
		pt.Cancel()
	})
}

func TestProgressSubSteps(t *testing.T) {
	t.Run("weighted nesting folds outer to inner", func(t *testing.T) {
		pt := NewProgressingTask(false)

		pt.BeginProgressSubStepsWithWeights([]int{1, 3})
		pt.BeginProgressSubSteps(2)
		pt.NextProgressSubStep()

		// Inner level: first of two equal steps complete, fraction 0.5.
		// Outer level: still inside the weight-1 step of total weight 4,
		// so the total fraction is (0 + 1*0.5)/4 = 0.125.
		assert.Equal(t, int64(125), pt.TotalProgressValue())
		assert.Equal(t, int64(1000), pt.TotalProgressMaximum())

		pt.EndProgressSubSteps()
		pt.EndProgressSubSteps()
		pt.Cancel()
	})

	t.Run("local progress scales within a sub-step", func(t *testing.T) {
		pt := NewProgressingTask(false)
		pt.BeginProgressSubSteps(2)
		pt.SetProgressMaximum(10)
		pt.SetProgressValue(5)
		// Half of the first of two steps: 0.25.
		assert.Equal(t, int64(250), pt.TotalProgressValue())
		pt.EndProgressSubSteps()
		pt.Cancel()
	})

	t.Run("without sub-steps local numbers pass through", func(t *testing.T) {
		pt := NewProgressingTask(false)
		pt.SetProgressMaximum(200)
		pt.SetProgressValue(50)
		assert.Equal(t, int64(50), pt.TotalProgressValue())
		assert.Equal(t, int64(200), pt.TotalProgressMaximum())
		pt.Cancel()
	})

	t.Run("non-positive weight sum panics", func(t *testing.T) {
		pt := NewProgressingTask(false)
		assert.Panics(t, func() { pt.BeginProgressSubStepsWithWeights([]int{0, 0}) })
		pt.Cancel()
	})

	t.Run("stepping without an open sequence panics", func(t *testing.T) {
		pt := NewProgressingTask(false)
		assert.Panics(t, func() { pt.NextProgressSubStep() })
		assert.Panics(t, func() { pt.EndProgressSubSteps() })
		pt.Cancel()
	})
}

func TestProgressNotifications(t *testing.T) {
	t.Run("reaching the maximum always notifies", func(t *testing.T) {
		pt := NewProgressingTask(false)
		var events []ProgressEvent
		pt.AddProgressCallback(func(ev ProgressEvent) {
			events = append(events, ev)
		})

		pt.SetProgressMaximum(3)
		before := len(events)
		// Rapid updates inside the rate-limit window; only the one hitting
		// the maximum is guaranteed through.
		pt.SetProgressValue(1)
		pt.SetProgressValue(2)
		pt.SetProgressValue(3)

		require.Greater(t, len(events), before)
		last := events[len(events)-1]
		assert.Equal(t, int64(3), last.Value)
		assert.Equal(t, int64(3), last.Maximum)
		pt.Cancel()
	})

	t.Run("text change notifies immediately", func(t *testing.T) {
		pt := NewProgressingTask(false)
		var got ProgressEvent
		n := 0
		pt.AddProgressCallback(func(ev ProgressEvent) {
			got = ev
			n++
		})
		pt.SetProgressText("phase two")
		require.Equal(t, 1, n)
		assert.True(t, got.TextChanged)
		assert.Equal(t, "phase two", got.Text)
		pt.Cancel()
	})

	t.Run("intermittent updates skip notifications", func(t *testing.T) {
		pt := NewProgressingTask(false)
		n := 0
		pt.AddProgressCallback(func(ProgressEvent) { n++ })

		pt.SetProgressMaximum(1000)
		n = 0
		for i := 1; i <= 9; i++ {
			pt.SetProgressValueIntermittent(int64(i), 10)
		}
		assert.Zero(t, n, "below the call threshold nothing is emitted")
		assert.Zero(t, pt.ProgressValue(), "skipped updates do not store the value either")

		pt.SetProgressValueIntermittent(10, 10)
		assert.Equal(t, int64(10), pt.ProgressValue())
		pt.Cancel()
	})

	t.Run("removed callback stops firing", func(t *testing.T) {
		pt := NewProgressingTask(false)
		n := 0
		id := pt.AddProgressCallback(func(ProgressEvent) { n++ })
		pt.RemoveProgressCallback(id)
		pt.SetProgressText("quiet")
		assert.Zero(t, n)
		pt.Cancel()
	})
}
