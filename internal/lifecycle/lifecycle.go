package lifecycle

import "sync/atomic"

var draining atomic.Bool

// SetShuttingDown marks the process as draining. main sets it on SIGTERM/SIGINT
// before calling Server.Shutdown; /health then answers 503 shutting-down.
func SetShuttingDown(v bool) {
	draining.Store(v)
}

// IsShuttingDown reports whether the process is draining.
func IsShuttingDown() bool {
	return draining.Load()
}
