// Package future provides the consumer- and producer-side handles of the
// asynchronous task framework: Future and SharedFuture for awaiting and
// retrieving a task's eventual result, Promise for fulfilling it, immediate
// factories for known-at-construction-time values, and the Then family of
// continuation builders that chain work onto a task's completion with
// exactly-once execution, error forwarding, and bidirectional cancellation
// propagation.
package future
