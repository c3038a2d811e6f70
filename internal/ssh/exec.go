package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"
)

// Execution defaults.
const (
	DefaultExecTimeout       = 60 * time.Second
	DefaultInactivityTimeout = 10 * time.Second

	readChunkSize = 4096
	pollInterval  = 100 * time.Millisecond
)

// ExecResult holds the complete capture of one finished command. It is
// produced exactly once per completed command.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// ExecOptions control one streamed execution.
//
// Timeout is the overall/startup timeout: it fires only if the command never
// produced any output at all, not against a long-but-chatty command.
// InactivityTimeout is how long the output may stay quiet before the
// connection is re-verified; a quiet-but-alive command is not aborted.
type ExecOptions struct {
	OnLine            LineFunc
	Timeout           time.Duration
	InactivityTimeout time.Duration
	Verbose           bool
}

// commandChannel is the slice of *ssh.Session the streaming loop needs,
// so the loop can be driven by a fake in tests.
type commandChannel interface {
	StdoutPipe() (io.Reader, error)
	StderrPipe() (io.Reader, error)
	Start(command string) error
	Wait() error
	Close() error
}

// Execute runs one command with real-time streaming, wrapped by the
// resilient protocol: the boot identity is verified around the run, and a
// dropped connection triggers reconnect-then-recover instead of an unsafe
// re-run. See ExecOptions for the dual timeout semantics.
func (c *Client) Execute(ctx context.Context, command string, opts ExecOptions) (*ExecResult, error) {
	return c.runResilient(ctx, func() (*ExecResult, error) {
		return c.executeCore(ctx, command, opts)
	})
}

// executeCore runs one command over a freshly opened channel on the connected
// session, streaming stdout and stderr line by line while accumulating the
// full capture. Plumbing commands (boot snapshots, log polls) use this
// directly to stay outside the resilient wrapper.
func (c *Client) executeCore(ctx context.Context, command string, opts ExecOptions) (*ExecResult, error) {
	if !c.IsConnected() {
		return nil, fmt.Errorf("%w: not connected to remote host", ErrSSH)
	}

	session, err := c.NewSession()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open channel: %w", ErrCommandFailed, err)
	}

	return runCommand(ctx, session, command, opts, c.IsConnected)
}

// Exec implements the Executor seam: a quiet capture-only execution with
// default timeouts, used for remote plumbing commands.
func (c *Client) Exec(ctx context.Context, command string) (*ExecResult, error) {
	return c.executeCore(ctx, command, ExecOptions{})
}

type chunk struct {
	stream StreamName
	data   string
}

// runCommand drives the streaming loop over an open channel. The channel is
// closed on every exit path. connected re-verifies the transport when the
// output has been quiet past the inactivity threshold.
func runCommand(ctx context.Context, ch commandChannel, command string, opts ExecOptions, connected func() bool) (*ExecResult, error) {
	defer ch.Close()

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultExecTimeout
	}
	inactivity := opts.InactivityTimeout
	if inactivity <= 0 {
		inactivity = DefaultInactivityTimeout
	}

	cb := opts.OnLine
	if cb == nil && opts.Verbose {
		cb = DefaultPrinter
	}
	outEm := NewLineEmitter(cb, Stdout)
	errEm := NewLineEmitter(cb, Stderr)

	stdout, err := ch.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %w", ErrCommandFailed, err)
	}
	stderr, err := ch.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stderr pipe: %w", ErrCommandFailed, err)
	}

	if err := ch.Start(command); err != nil {
		return nil, fmt.Errorf("%w: start %q: %w", ErrCommandFailed, command, err)
	}

	quit := make(chan struct{})
	defer close(quit)

	chunks := make(chan chunk, 64)
	readDone := make(chan struct{}, 2)
	drain := func(r io.Reader, stream StreamName) {
		defer func() { readDone <- struct{}{} }()
		buf := make([]byte, readChunkSize)
		for {
			n, rerr := r.Read(buf)
			if n > 0 {
				select {
				case chunks <- chunk{stream: stream, data: string(buf[:n])}:
				case <-quit:
					return
				}
			}
			if rerr != nil {
				return
			}
		}
	}
	go drain(stdout, Stdout)
	go drain(stderr, Stderr)

	// Wait must run only after both pipes are fully read.
	waitErr := make(chan error, 1)
	go func() {
		<-readDone
		<-readDone
		close(chunks)
		waitErr <- ch.Wait()
	}()

	start := time.Now()
	lastActivity := start
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for chunks != nil {
		select {
		case ck, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			if ck.stream == Stdout {
				outEm.Feed(ck.data)
			} else {
				errEm.Feed(ck.data)
			}
			lastActivity = time.Now()

		case <-ticker.C:
			now := time.Now()
			if now.Sub(start) > timeout && lastActivity.Equal(start) {
				return nil, fmt.Errorf("%w: no output within %s", ErrOverallTimeout, timeout)
			}
			if now.Sub(lastActivity) > inactivity && !connected() {
				return nil, fmt.Errorf("%w: transport died while %q was running", ErrLostConnection, command)
			}

		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %q: %w", ErrCommandFailed, command, ctx.Err())
		}
	}

	werr := <-waitErr
	outEm.Flush()
	errEm.Flush()

	exitCode := 0
	if werr != nil {
		var exitErr *ssh.ExitError
		if errors.As(werr, &exitErr) {
			exitCode = exitErr.ExitStatus()
		} else if !connected() {
			return nil, fmt.Errorf("%w: %q: %w", ErrLostConnection, command, werr)
		} else {
			log.Debug().Err(werr).Str("command", command).Msg("streaming exec failed")
			return nil, fmt.Errorf("%w: %q: %w", ErrCommandFailed, command, werr)
		}
	}

	return &ExecResult{
		Stdout:   outEm.Collected(),
		Stderr:   errEm.Collected(),
		ExitCode: exitCode,
	}, nil
}
