package watch

// LoopExecutor runs continuation bodies on the loop goroutine. Attaching a
// continuation with this executor is how UI code reacts to background task
// completion without taking locks: the body always executes on the main
// thread, in post order.
type LoopExecutor struct {
	loop *Loop
}

// NewLoopExecutor returns an executor posting onto the given loop.
func NewLoopExecutor(loop *Loop) LoopExecutor {
	return LoopExecutor{loop: loop}
}

// Execute posts fn to the loop. Safe to call from any goroutine.
func (e LoopExecutor) Execute(fn func()) {
	e.loop.Post(fn)
}
