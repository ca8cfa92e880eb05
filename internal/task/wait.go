package task

// WaitFor blocks the calling worker until the awaited task finishes. It is
// the worker-context flavor of the framework's dual-mode wait: the caller
// must be executing the body of the waiting task on a worker goroutine. The
// UI-context flavor, which pumps the local event loop instead of blocking,
// lives in the watch package.
//
// Returns false if either task is canceled. Cancellation of the awaited task
// propagates to the waiting task.
func WaitFor(waiting, awaited *Task) bool {
	if waiting == nil || awaited == nil {
		panic("task: WaitFor with nil task")
	}
	if waiting.IsCanceled() {
		return false
	}
	if waiting.IsFinished() {
		panic("task: WaitFor called on behalf of a finished task")
	}

	// Quick check before arming any callbacks.
	if awaited.IsFinished() {
		if awaited.IsCanceled() {
			waiting.Cancel()
			return false
		}
		return true
	}

	wake := make(chan struct{}, 1)
	signal := func() {
		select {
		case wake <- struct{}{}:
		default:
		}
	}

	// Temporary callbacks on both tasks: the waiting task's cancellation
	// and the awaited task's completion each end the wait. Replay covers
	// transitions that happened between the checks above and registration.
	waitingCB := waiting.AddStateCallback(func(s State) bool {
		if s&(Canceled|Finished) != 0 {
			signal()
		}
		return true
	}, true)
	awaitedCB := awaited.AddStateCallback(func(s State) bool {
		if s&Finished != 0 {
			signal()
		}
		return true
	}, true)

	// State bits are sticky, so rechecking after every wake-up is safe
	// even if a signal was coalesced.
	for !waiting.IsFinished() && !awaited.IsFinished() {
		<-wake
	}

	waiting.RemoveStateCallback(waitingCB)
	awaited.RemoveStateCallback(awaitedCB)

	if waiting.IsCanceled() {
		return false
	}
	if awaited.IsCanceled() {
		waiting.Cancel()
		return false
	}
	return true
}
