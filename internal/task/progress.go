package task

import (
	"time"
)

// progressNotifyInterval rate-limits progress notifications so a hot worker
// loop cannot overwhelm the UI thread with cross-thread messages.
const progressNotifyInterval = 50 * time.Millisecond

// totalProgressScale is the integer range the weighted sub-step stack is
// normalized into.
const totalProgressScale = 1000

// ProgressEvent describes one progress notification.
type ProgressEvent struct {
	// Value and Maximum are the normalized totals folded over any open
	// sub-step levels, suitable for a single smooth progress bar.
	Value   int64
	Maximum int64

	// Text is the task's current status text.
	Text string

	// TextChanged distinguishes a status-text update from a numeric one.
	TextChanged bool
}

// ProgressCallback observes progress changes. Like StateCallback it runs
// under the task lock and must be fast and non-reentrant.
type ProgressCallback func(ev ProgressEvent)

type progressCallbackEntry struct {
	id uint64
	fn ProgressCallback
}

type subStepLevel struct {
	weights []int
	index   int
}

// ProgressingTask is a Task that reports hierarchical progress: a local
// value/maximum/text triple plus a stack of weighted sub-step levels that
// fold into one normalized total. Progress values are expected to be
// monotonic non-decreasing within a sub-step unless explicitly reset via
// SetProgressMaximum.
type ProgressingTask struct {
	Task

	value   int64
	maximum int64
	text    string

	totalValue   int64
	totalMaximum int64

	subSteps []subStepLevel

	lastNotify        time.Time
	intermittentCalls int

	progressCallbacks []progressCallbackEntry
}

// NewProgressingTask creates a progress-reporting task in its initial state.
func NewProgressingTask(withStorage bool) *ProgressingTask {
	pt := &ProgressingTask{}
	initTask(&pt.Task, IsProgressing, withStorage)
	pt.Task.progressing = pt
	return pt
}

// ProgressValue returns the task's local progress value.
func (pt *ProgressingTask) ProgressValue() int64 {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	return pt.value
}

// ProgressMaximum returns the task's local progress maximum. Zero means the
// duration of the current step is unknown.
func (pt *ProgressingTask) ProgressMaximum() int64 {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	return pt.maximum
}

// ProgressText returns the task's current status text.
func (pt *ProgressingTask) ProgressText() string {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	return pt.text
}

// TotalProgressValue returns the normalized progress value over all open
// sub-step levels.
func (pt *ProgressingTask) TotalProgressValue() int64 {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	return pt.totalValue
}

// TotalProgressMaximum returns the normalized progress maximum over all open
// sub-step levels. Zero means unknown duration.
func (pt *ProgressingTask) TotalProgressMaximum() int64 {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	return pt.totalMaximum
}

// SetProgressMaximum sets the maximum of the current step, resets the local
// progress value to zero, and recomputes the normalized total. This is the
// one sanctioned way to make progress numbers go backwards. Returns false if
// the task has been canceled.
func (pt *ProgressingTask) SetProgressMaximum(maximum int64) bool {
	pt.mu.Lock()
	if pt.loadState()&Finished != 0 {
		canceled := pt.loadState()&Canceled != 0
		pt.mu.Unlock()
		return !canceled
	}
	pt.maximum = maximum
	pt.value = 0
	pt.updateTotalProgressLocked()
	pt.notifyProgressLocked(false, true)
	pt.mu.Unlock()
	return true
}

// SetProgressValue updates the local progress value and notifies observers,
// rate-limited unless the value reaches the maximum. The boolean return
// doubles as the sanctioned cancellation checkpoint for worker bodies: false
// means the task was canceled and the body should return early.
func (pt *ProgressingTask) SetProgressValue(value int64) bool {
	pt.mu.Lock()
	if pt.loadState()&Finished != 0 {
		canceled := pt.loadState()&Canceled != 0
		pt.mu.Unlock()
		return !canceled
	}
	if value != pt.value {
		pt.value = value
		pt.updateTotalProgressLocked()
		pt.notifyProgressLocked(false, false)
	}
	pt.mu.Unlock()
	return true
}

// IncrementProgressValue adds n to the local progress value. Returns false
// if the task has been canceled.
func (pt *ProgressingTask) IncrementProgressValue(n int64) bool {
	pt.mu.Lock()
	if pt.loadState()&Finished != 0 {
		canceled := pt.loadState()&Canceled != 0
		pt.mu.Unlock()
		return !canceled
	}
	pt.value += n
	pt.updateTotalProgressLocked()
	pt.notifyProgressLocked(false, false)
	pt.mu.Unlock()
	return true
}

// SetProgressValueIntermittent updates the progress value but only emits a
// notification every updateEvery calls (or when the value reaches the
// maximum), for loops too hot even for the time-based rate limit. Returns
// false if the task has been canceled.
func (pt *ProgressingTask) SetProgressValueIntermittent(value int64, updateEvery int) bool {
	if updateEvery <= 0 {
		updateEvery = 2000
	}
	pt.mu.Lock()
	if pt.loadState()&Finished != 0 {
		canceled := pt.loadState()&Canceled != 0
		pt.mu.Unlock()
		return !canceled
	}
	pt.intermittentCalls++
	if pt.intermittentCalls%updateEvery == 0 || value >= pt.maximum {
		pt.value = value
		pt.updateTotalProgressLocked()
		pt.notifyProgressLocked(false, false)
	}
	pt.mu.Unlock()
	return true
}

// SetProgressText changes the status text shown for this task.
func (pt *ProgressingTask) SetProgressText(text string) bool {
	pt.mu.Lock()
	if pt.loadState()&Finished != 0 {
		canceled := pt.loadState()&Canceled != 0
		pt.mu.Unlock()
		return !canceled
	}
	pt.text = text
	pt.notifyProgressLocked(true, true)
	pt.mu.Unlock()
	return true
}

// BeginProgressSubSteps opens a sequence of n equally weighted sub-steps.
func (pt *ProgressingTask) BeginProgressSubSteps(n int) {
	weights := make([]int, n)
	for i := range weights {
		weights[i] = 1
	}
	pt.BeginProgressSubStepsWithWeights(weights)
}

// BeginProgressSubStepsWithWeights opens a sequence of weighted sub-steps in
// the progress range of the current step. Each sub-step then reports its own
// value/maximum, and the open levels fold outer-to-inner into the normalized
// total. The weight sum must be positive.
func (pt *ProgressingTask) BeginProgressSubStepsWithWeights(weights []int) {
	if weightSum(weights) <= 0 {
		panic("task: sub-step weights must sum to a positive value")
	}
	pt.mu.Lock()
	pt.subSteps = append(pt.subSteps, subStepLevel{weights: weights})
	pt.value = 0
	pt.maximum = 0
	pt.updateTotalProgressLocked()
	pt.mu.Unlock()
}

// NextProgressSubStep completes the current sub-step and moves to the next
// one, resetting the local progress range.
func (pt *ProgressingTask) NextProgressSubStep() {
	pt.mu.Lock()
	if len(pt.subSteps) == 0 {
		pt.mu.Unlock()
		panic("task: NextProgressSubStep without an open sub-step sequence")
	}
	level := &pt.subSteps[len(pt.subSteps)-1]
	if level.index >= len(level.weights) {
		pt.mu.Unlock()
		panic("task: NextProgressSubStep past the last sub-step")
	}
	level.index++
	pt.value = 0
	pt.maximum = 0
	pt.updateTotalProgressLocked()
	pt.notifyProgressLocked(false, true)
	pt.mu.Unlock()
}

// EndProgressSubSteps closes the innermost sub-step sequence.
func (pt *ProgressingTask) EndProgressSubSteps() {
	pt.mu.Lock()
	if len(pt.subSteps) == 0 {
		pt.mu.Unlock()
		panic("task: EndProgressSubSteps without an open sub-step sequence")
	}
	pt.subSteps = pt.subSteps[:len(pt.subSteps)-1]
	pt.value = 0
	pt.maximum = 0
	pt.updateTotalProgressLocked()
	pt.mu.Unlock()
}

// updateTotalProgressLocked folds the sub-step stack outer-to-inner into a
// single normalized value. With no open sub-steps the local numbers pass
// through unchanged.
func (pt *ProgressingTask) updateTotalProgressLocked() {
	if len(pt.subSteps) == 0 {
		pt.totalValue = pt.value
		pt.totalMaximum = pt.maximum
		return
	}
	frac := 0.0
	if pt.maximum > 0 {
		frac = float64(pt.value) / float64(pt.maximum)
	}
	for i := len(pt.subSteps) - 1; i >= 0; i-- {
		level := pt.subSteps[i]
		total := weightSum(level.weights)
		completed := weightSum(level.weights[:level.index])
		current := 0
		if level.index < len(level.weights) {
			current = level.weights[level.index]
		}
		frac = (float64(completed) + float64(current)*frac) / float64(total)
	}
	pt.totalMaximum = totalProgressScale
	pt.totalValue = int64(frac*totalProgressScale + 0.5)
}

// notifyProgressLocked invokes progress callbacks, collapsing numeric
// updates to at most one per progressNotifyInterval except when the value
// reaches the maximum. Text changes and resets always notify.
func (pt *ProgressingTask) notifyProgressLocked(textChanged, force bool) {
	if len(pt.progressCallbacks) == 0 {
		return
	}
	now := time.Now()
	if !force && pt.value < pt.maximum && now.Sub(pt.lastNotify) < progressNotifyInterval {
		return
	}
	pt.lastNotify = now
	ev := ProgressEvent{
		Value:       pt.totalValue,
		Maximum:     pt.totalMaximum,
		Text:        pt.text,
		TextChanged: textChanged,
	}
	for _, e := range pt.progressCallbacks {
		e.fn(ev)
	}
}

// AddProgressCallback registers an observer for progress changes and returns
// a removal handle.
func (pt *ProgressingTask) AddProgressCallback(fn ProgressCallback) uint64 {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.nextCallbackID++
	id := pt.nextCallbackID
	pt.progressCallbacks = append(pt.progressCallbacks, progressCallbackEntry{id: id, fn: fn})
	return id
}

// RemoveProgressCallback unregisters a progress observer.
func (pt *ProgressingTask) RemoveProgressCallback(id uint64) {
	if id == 0 {
		return
	}
	pt.mu.Lock()
	defer pt.mu.Unlock()
	for i, e := range pt.progressCallbacks {
		if e.id == id {
			pt.progressCallbacks = append(pt.progressCallbacks[:i], pt.progressCallbacks[i+1:]...)
			return
		}
	}
}

func weightSum(weights []int) int {
	sum := 0
	for _, w := range weights {
		sum += w
	}
	return sum
}
