// Package async binds the task framework to concrete execution models: a
// fixed-size worker pool for background computation and synchronous
// immediate execution for contexts where threading is unavailable or
// undesired. Both paths drive a task through the identical
// started/error-capture/finished sequence, so callers use one vocabulary
// regardless of where the work runs. Building with -tags nothreading
// removes real concurrency entirely and degrades Run to immediate execution.
package async
