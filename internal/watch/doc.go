// Package watch is the UI-thread-facing side of the task framework. It
// provides the event Loop that stands in for a GUI toolkit's main-thread
// dispatcher, the Manager that registers every in-flight task for display
// and bulk control, per-task Watchers that marshal worker-thread task
// callbacks onto the loop as ordered notifications, and the blocking waits
// that keep pumping the loop so the interface stays responsive while the
// main thread waits on background work.
package watch
