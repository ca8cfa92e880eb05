package future

import (
	"fmt"

	"github.com/mirovis/taskcore/internal/task"
)

// Then chains fn onto the antecedent future: it returns immediately with a
// new future whose task is fulfilled by running fn once the antecedent
// finishes. The antecedent future is consumed; the continuation task adopts
// its dependency. Guarantees:
//
//   - fn runs at most once, and exactly once if the antecedent finishes
//     normally and the continuation is still wanted;
//   - an antecedent cancellation cancels the continuation without running fn;
//   - releasing the returned future before fn runs cancels the continuation,
//     and the withdrawal of interest cascades to the antecedent if nothing
//     else references it;
//   - an error returned (or a panic raised) by fn becomes the continuation's
//     stored error, surfaced by the first Result call.
//
// The executor decides which goroutine runs fn; Inline runs it in the
// goroutine that completes the antecedent.
func Then[T, U any](f *Future[T], ex Executor, fn func(T) (U, error)) *Future[U] {
	aref := f.takeRef()
	cont := task.New(true)
	out := FromTask[U](cont)
	attachContinuation(aref, cont, ex, func(at *task.Task) {
		arg, ok := takeArg[T](at, cont)
		if !ok {
			return
		}
		u, err := protect(func() (U, error) { return fn(arg) })
		if err != nil {
			cont.FailAndFinish(err)
			return
		}
		if cont.SetResults(u) {
			cont.SetFinished()
		}
	})
	return out
}

// ThenDo chains a void continuation: fn's only outputs are side effects and
// an error. The returned future finishes empty on success.
func ThenDo[T any](f *Future[T], ex Executor, fn func(T) error) *Future[struct{}] {
	aref := f.takeRef()
	cont := task.New(false)
	out := FromTask[struct{}](cont)
	attachContinuation(aref, cont, ex, func(at *task.Task) {
		arg, ok := takeArg[T](at, cont)
		if !ok {
			return
		}
		_, err := protect(func() (struct{}, error) { return struct{}{}, fn(arg) })
		if err != nil {
			cont.FailAndFinish(err)
			return
		}
		cont.SetFinished()
	})
	return out
}

// ThenFuture chains a continuation that itself returns a future. The result
// is automatically unwrapped: the continuation task attaches itself as a
// further dependency on fn's returned future, so Then never produces a
// future of a future.
func ThenFuture[T, U any](f *Future[T], ex Executor, fn func(T) (*Future[U], error)) *Future[U] {
	aref := f.takeRef()
	cont := task.New(true)
	out := FromTask[U](cont)
	attachContinuation(aref, cont, ex, func(at *task.Task) {
		arg, ok := takeArg[T](at, cont)
		if !ok {
			return
		}
		inner, err := protect(func() (*Future[U], error) { return fn(arg) })
		if err != nil {
			cont.FailAndFinish(err)
			return
		}
		if inner == nil {
			cont.FailAndFinish(fmt.Errorf("future: continuation returned a nil future"))
			return
		}
		adoptInner(cont, inner)
	})
	return out
}

// ThenShared chains fn onto a shared future without consuming it: the
// continuation acquires its own dependency and reads the antecedent's value
// non-destructively, so sibling consumers still see the result.
func ThenShared[T, U any](s *SharedFuture[T], ex Executor, fn func(T) (U, error)) *Future[U] {
	aref := task.NewReference(s.Task())
	cont := task.New(true)
	out := FromTask[U](cont)
	attachContinuation(aref, cont, ex, func(at *task.Task) {
		if at.IsCanceled() {
			cont.Cancel()
			return
		}
		if err := at.Err(); err != nil {
			cont.FailAndFinish(err)
			return
		}
		cont.SetStarted()
		var arg T
		if v, ok := at.PeekResults(); ok {
			arg = v.(T)
		}
		u, err := protect(func() (U, error) { return fn(arg) })
		if err != nil {
			cont.FailAndFinish(err)
			return
		}
		if cont.SetResults(u) {
			cont.SetFinished()
		}
	})
	return out
}

// attachContinuation wires the continuation task to its antecedent: the
// antecedent's completion dispatch schedules body through the executor, and
// cancellation of the continuation withdraws its interest in the antecedent.
// The interest release runs as a continuation (outside the task lock), never
// as a state callback, because releasing can cascade into a cancellation of
// the antecedent that re-enters the framework.
func attachContinuation(aref *task.Reference, cont *task.Task, ex Executor, body func(at *task.Task)) {
	at := aref.Task()
	cont.Finally(func(ct *task.Task) {
		if ct.IsCanceled() {
			aref.Release()
		}
	})
	at.Finally(func(at *task.Task) {
		ex.Execute(func() {
			defer aref.Release()
			if cont.IsCanceled() {
				return
			}
			body(at)
		})
	})
}

// takeArg performs the common head of a consuming continuation body:
// short-circuit on antecedent cancellation or error, transition the
// continuation to started, and move the antecedent's result out. ok=false
// means the continuation was already resolved and fn must not run.
func takeArg[T any](at *task.Task, cont *task.Task) (arg T, ok bool) {
	if at.IsCanceled() {
		cont.Cancel()
		return arg, false
	}
	if err := at.TakeError(); err != nil {
		cont.FailAndFinish(err)
		return arg, false
	}
	cont.SetStarted()
	if v, stored := at.TakeResults(); stored {
		arg = v.(T)
	}
	return arg, true
}

// adoptInner makes cont's completion track the inner future produced by a
// ThenFuture continuation, unwrapping one level of nesting.
func adoptInner[U any](cont *task.Task, inner *Future[U]) {
	iref := inner.takeRef()
	it := iref.Task()
	// cont may already be canceled, in which case this Finally runs
	// synchronously and releases the inner reference right away.
	cont.Finally(func(ct *task.Task) {
		if ct.IsCanceled() {
			iref.Release()
		}
	})
	it.Finally(func(it *task.Task) {
		defer iref.Release()
		if cont.IsCanceled() {
			return
		}
		if it.IsCanceled() {
			cont.Cancel()
			return
		}
		if err := it.TakeError(); err != nil {
			cont.FailAndFinish(err)
			return
		}
		var u U
		if v, ok := it.TakeResults(); ok {
			u = v.(U)
		}
		if cont.SetResults(u) {
			cont.SetFinished()
		}
	})
}

// protect runs fn, converting a panic into a stored error so a failure in
// arbitrary continuation code never crosses goroutine boundaries unrecorded.
func protect[U any](fn func() (U, error)) (u U, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("future: continuation panicked: %v", r)
		}
	}()
	return fn()
}
