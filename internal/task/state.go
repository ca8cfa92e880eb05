package task

import "strings"

// State is a bitmask describing the lifecycle of a Task.
type State int32

// Possible task state flags.
const (
	// NoState is the initial state of a freshly created task.
	NoState State = 0

	// Started is set when work on the task has begun. It is set at most
	// once and never cleared.
	Started State = 1 << 0

	// Finished is set when the task has reached its terminal state. It is
	// never cleared; a finished task stays finished.
	Finished State = 1 << 1

	// Canceled marks a task whose result is no longer wanted. Observers
	// only ever see Canceled together with Finished.
	Canceled State = 1 << 2

	// IsProgressing is a static type tag identifying tasks that report
	// progress. It is not a lifecycle transition.
	IsProgressing State = 1 << 3
)

// String returns a human-readable rendering of the state flags.
func (s State) String() string {
	if s == NoState {
		return "none"
	}
	var parts []string
	if s&Started != 0 {
		parts = append(parts, "started")
	}
	if s&Finished != 0 {
		parts = append(parts, "finished")
	}
	if s&Canceled != 0 {
		parts = append(parts, "canceled")
	}
	if s&IsProgressing != 0 {
		parts = append(parts, "progressing")
	}
	return strings.Join(parts, "|")
}
