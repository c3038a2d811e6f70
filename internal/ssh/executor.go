package ssh

import "context"

// Executor abstracts quiet remote command execution for testability. The boot
// identity tracker and the detached executor issue their plumbing commands
// through this seam so they can be tested without a live host.
type Executor interface {
	Exec(ctx context.Context, command string) (*ExecResult, error)
	Close() error
}
