//go:build !nothreading

package async

// threadingEnabled reflects the build-time threading capability. The default
// build runs operation bodies on the worker pool.
const threadingEnabled = true
