package watch

// Loop is a minimal main-thread event loop: a queue of closures executed on
// the single goroutine that drives the loop. It is the cross-thread
// marshaling point of the framework: worker goroutines post closures, the
// owning goroutine runs them in order.
//
// RunUntil may be entered recursively from inside a posted closure; nested
// runs keep draining the same queue, which is what lets a blocking wait on
// the UI thread stay responsive.
type Loop struct {
	posted chan func()
}

// NewLoop creates an event loop. The queue is buffered; Post blocks only
// when the owning goroutine has fallen far behind.
func NewLoop() *Loop {
	return &Loop{posted: make(chan func(), 1024)}
}

// Post enqueues fn for execution on the loop goroutine. Safe to call from
// any goroutine.
func (l *Loop) Post(fn func()) {
	l.posted <- fn
}

// RunUntil executes posted closures on the calling goroutine until done is
// closed. Only the goroutine that owns the loop may call it. A closure may
// itself call RunUntil with a different done channel; the nested run
// services the same queue, so an inner wait never starves an outer one.
func (l *Loop) RunUntil(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case fn := <-l.posted:
			fn()
		}
	}
}

// ProcessPending executes the closures that are already queued and returns
// without blocking. Long synchronous main-thread work calls this from its
// progress updates so the interface keeps repainting.
func (l *Loop) ProcessPending() {
	for {
		select {
		case fn := <-l.posted:
			fn()
		default:
			return
		}
	}
}

// Invoke posts fn and blocks until the loop goroutine has executed it. This
// is the queued blocking invocation used to read loop-confined state from
// other goroutines. Calling Invoke from the loop goroutine itself deadlocks;
// code already on the loop calls fn directly instead.
func (l *Loop) Invoke(fn func()) {
	done := make(chan struct{})
	l.Post(func() {
		fn()
		close(done)
	})
	<-done
}
