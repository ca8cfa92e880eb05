// Package task implements the shared state object at the center of the
// asynchronous computation framework. A Task carries the lifecycle state of
// one unit of background work (started, finished, canceled), an error slot,
// optional result storage, a registry of synchronous observers, and a queue
// of continuations that run exactly once when the task reaches its terminal
// state. Interest in a task is tracked separately from its memory lifetime
// through Reference handles; when the last interested party releases its
// reference, an unfinished task is canceled automatically.
package task
