package constants

import (
	"path/filepath"
	"time"
)

// Remote-side paths for detached executions. These are the only files the
// tool ever writes on the remote, and they are removed once the result has
// been collected.
const (
	DetachedLogDir    = "/tmp"
	DetachedLogPrefix = "vmlink_"
	DetachedIDLength  = 8
)

// Resilient recovery budget. This is distinct from any retry budget the
// caller passes to Reconnect directly.
const (
	RecoveryMaxRetries = 5
	RecoveryDelay      = 2 * time.Second
)

// Long-running execution defaults
const (
	DefaultPollInterval = 1 * time.Second
	DefaultLongTimeout  = 1 * time.Hour
	// LaunchInactivityTimeout bounds the short synchronous launch of the
	// nohup wrapper; only the launch is session-bound, not the work itself.
	LaunchInactivityTimeout = 5 * time.Second
	// StartupGrace is how long to wait after launching before the first poll,
	// giving the detached process time to create its log file.
	StartupGrace = 500 * time.Millisecond
)

// DetachedLogPath returns the remote log file path for a detached execution.
func DetachedLogPath(id string) string {
	return filepath.Join(DetachedLogDir, DetachedLogPrefix+id+".log")
}

// DetachedExitCodePath returns the remote exit-code file path paired with a log file.
func DetachedExitCodePath(logPath string) string {
	return logPath + ".exit"
}
