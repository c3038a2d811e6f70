package ssh

import "errors"

// ErrSession is the root of the session error taxonomy. Every error returned
// by this package matches ErrSession via errors.Is, and exactly one of the
// specific kinds below.
var ErrSession = errors.New("ssh session error")

var (
	// ErrKeyNotFound indicates the private key file is missing or unreadable.
	ErrKeyNotFound = newKind("private key not found")

	// ErrAuthFailed indicates the server rejected the credential.
	ErrAuthFailed = newKind("authentication failed")

	// ErrHostUnreachable indicates the TCP connection could not be established.
	ErrHostUnreachable = newKind("host unreachable")

	// ErrSSH covers SSH protocol failures that are none of the other kinds.
	ErrSSH = newKind("ssh protocol error")

	// ErrUnexpected is the catch-all for surprises at connect time.
	ErrUnexpected = newKind("unexpected error")

	// ErrOverallTimeout fires when a command produced no output at all within
	// the overall timeout.
	ErrOverallTimeout = newKind("overall timeout exceeded")

	// ErrLostConnection indicates the transport died while a command was running.
	ErrLostConnection = newKind("lost connection during execution")

	// ErrCommandFailed wraps streaming/execution failures that are not one of
	// the timeout or disconnect kinds.
	ErrCommandFailed = newKind("command execution failed")

	// ErrUnexpectedReboot indicates the boot identity changed between two
	// checkpoints.
	ErrUnexpectedReboot = newKind("unexpected reboot detected")

	// ErrReconnectExhausted indicates all reconnection attempts failed.
	ErrReconnectExhausted = newKind("reconnection attempts exhausted")

	// ErrRecoveryUnavailable indicates a reconnect succeeded but there is no
	// detached execution context to recover a result from.
	ErrRecoveryUnavailable = newKind("no detached execution to recover from")
)

// kindError ties a specific kind back to ErrSession so callers can match
// either the kind or the root with errors.Is.
type kindError struct {
	msg string
}

func newKind(msg string) error {
	return &kindError{msg: msg}
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Is(target error) bool { return target == ErrSession }
