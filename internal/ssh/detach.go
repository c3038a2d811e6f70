package ssh

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/yoanbernabeu/vmlink/internal/constants"
)

// DetachedExecutionContext records the remote files a detached execution
// writes, so a result can be recovered after a reconnect by observation
// instead of repetition. At most one per session at a time.
type DetachedExecutionContext struct {
	LogPath      string
	ExitCodePath string
}

// newDetachedContext generates a fresh pair of remote file paths.
func newDetachedContext() *DetachedExecutionContext {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:constants.DetachedIDLength]
	logPath := constants.DetachedLogPath(id)
	return &DetachedExecutionContext{
		LogPath:      logPath,
		ExitCodePath: constants.DetachedExitCodePath(logPath),
	}
}

// wrapDetached wraps a command so it runs detached from the session:
// backgrounded, output to the log file, exit code to the exit-code file on
// completion. Only the launch of this wrapper is session-bound.
func wrapDetached(command string, dctx *DetachedExecutionContext) string {
	return fmt.Sprintf(
		"nohup bash -c '(%s) > %s 2>&1; echo $? > %s' >/dev/null 2>&1 &",
		command, dctx.LogPath, dctx.ExitCodePath,
	)
}

// LongOptions control one detached long-running execution.
type LongOptions struct {
	OnLine       LineFunc
	PollInterval time.Duration
	Timeout      time.Duration
	Verbose      bool
}

// ExecuteLong runs a command expected to outlive the SSH session (long
// durations, or commands that disrupt the network themselves). The command is
// launched detached, then its log file is polled until the exit-code file
// appears. The whole poll loop is wrapped by the resilient protocol, so a
// disconnect mid-poll reconnects and resumes polling rather than restarting
// the command.
func (c *Client) ExecuteLong(ctx context.Context, command string, opts LongOptions) (*ExecResult, error) {
	return c.runResilient(ctx, func() (*ExecResult, error) {
		return c.executeLongCore(ctx, command, opts)
	})
}

func (c *Client) executeLongCore(ctx context.Context, command string, opts LongOptions) (*ExecResult, error) {
	c.detached = newDetachedContext()
	wrapped := wrapDetached(command, c.detached)

	log.Debug().Str("log", c.detached.LogPath).Str("command", command).Msg("launching detached command")
	if _, err := c.executeCore(ctx, wrapped, ExecOptions{InactivityTimeout: constants.LaunchInactivityTimeout}); err != nil {
		return nil, err
	}

	// Give the detached process a moment to create its log file.
	time.Sleep(constants.StartupGrace)

	poller := &logPoller{exec: c, dctx: *c.detached, opts: opts}
	result, err := poller.run(ctx)
	if err == nil {
		c.detached = nil
	}
	return result, err
}

// logPoller streams a detached execution's remote log file until the
// exit-code file contains a value. It runs over the Executor seam so it can
// be tested without a live host, and so recovery after a reconnect can reuse
// it unchanged.
type logPoller struct {
	exec Executor
	dctx DetachedExecutionContext
	opts LongOptions
}

func (p *logPoller) run(ctx context.Context) (*ExecResult, error) {
	interval := p.opts.PollInterval
	if interval <= 0 {
		interval = constants.DefaultPollInterval
	}
	timeout := p.opts.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultLongTimeout
	}

	cb := p.opts.OnLine
	if cb == nil && p.opts.Verbose {
		cb = DefaultPrinter
	}
	em := NewLineEmitter(cb, Stdout)

	start := time.Now()
	lastSize := 0

	for {
		if time.Since(start) > timeout {
			return nil, fmt.Errorf("%w: long command exceeded %s", ErrOverallTimeout, timeout)
		}

		exitCode, ok, err := p.readExitCode(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			// One final read for trailing content written between polls.
			if _, err := p.feedNewContent(ctx, em, &lastSize); err != nil {
				return nil, err
			}
			em.Flush()
			if err := p.cleanup(ctx); err != nil {
				log.Warn().Err(err).Str("log", p.dctx.LogPath).Msg("failed to remove remote log files")
			}
			return &ExecResult{Stdout: em.Collected(), Stderr: "", ExitCode: exitCode}, nil
		}

		if _, err := p.feedNewContent(ctx, em, &lastSize); err != nil {
			return nil, err
		}

		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrCommandFailed, ctx.Err())
		}
	}
}

// readExitCode checks the remote exit-code file. ok is false while the
// detached command is still running.
func (p *logPoller) readExitCode(ctx context.Context) (int, bool, error) {
	res, err := p.exec.Exec(ctx, fmt.Sprintf("cat %s 2>/dev/null || echo ''", p.dctx.ExitCodePath))
	if err != nil {
		return 0, false, err
	}
	raw := strings.TrimSpace(res.Stdout)
	if raw == "" {
		return 0, false, nil
	}
	code, err := strconv.Atoi(raw)
	if err != nil || code < 0 {
		return 0, false, nil
	}
	return code, true, nil
}

// feedNewContent reads the remote log and feeds only the newly appended
// suffix to the emitter.
func (p *logPoller) feedNewContent(ctx context.Context, em *LineEmitter, lastSize *int) (string, error) {
	res, err := p.exec.Exec(ctx, fmt.Sprintf("cat %s 2>/dev/null || echo ''", p.dctx.LogPath))
	if err != nil {
		return "", err
	}
	content := res.Stdout
	if len(content) > *lastSize {
		em.Feed(content[*lastSize:])
		*lastSize = len(content)
	}
	return content, nil
}

func (p *logPoller) cleanup(ctx context.Context) error {
	_, err := p.exec.Exec(ctx, fmt.Sprintf("rm -f %s %s", p.dctx.LogPath, p.dctx.ExitCodePath))
	return err
}
