//go:build nothreading

package async

// threadingEnabled reflects the build-time threading capability. With the
// nothreading tag every Run degrades to synchronous immediate execution.
const threadingEnabled = false
