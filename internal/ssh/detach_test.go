package ssh

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoanbernabeu/vmlink/internal/constants"
)

func TestNewDetachedContext(t *testing.T) {
	a := newDetachedContext()
	b := newDetachedContext()

	assert.True(t, strings.HasPrefix(a.LogPath, "/tmp/"+constants.DetachedLogPrefix))
	assert.True(t, strings.HasSuffix(a.LogPath, ".log"))
	assert.Equal(t, a.LogPath+".exit", a.ExitCodePath)
	assert.NotEqual(t, a.LogPath, b.LogPath, "every invocation gets a fresh suffix")
}

func TestWrapDetached(t *testing.T) {
	dctx := &DetachedExecutionContext{
		LogPath:      "/tmp/vmlink_ab12cd34.log",
		ExitCodePath: "/tmp/vmlink_ab12cd34.log.exit",
	}

	wrapped := wrapDetached("apt-get upgrade -y", dctx)

	assert.Contains(t, wrapped, "nohup bash -c")
	assert.Contains(t, wrapped, "(apt-get upgrade -y) > /tmp/vmlink_ab12cd34.log 2>&1")
	assert.Contains(t, wrapped, "echo $? > /tmp/vmlink_ab12cd34.log.exit")
	assert.True(t, strings.HasSuffix(wrapped, "&"), "the wrapper must background the command")
}

// scriptedHost simulates the remote files a detached execution writes: the
// log grows over successive polls and the exit file appears at the end.
type scriptedHost struct {
	logStates []string // successive contents of the log file
	exitAfter int      // number of polls before the exit file exists
	exitCode  string

	polls   int
	removed bool
}

func (h *scriptedHost) exec(ctx context.Context, command string) (*ExecResult, error) {
	switch {
	case strings.HasPrefix(command, "rm -f"):
		h.removed = true
		return &ExecResult{ExitCode: 0}, nil
	case strings.Contains(command, ".exit"):
		if h.polls >= h.exitAfter {
			return &ExecResult{Stdout: h.exitCode + "\n", ExitCode: 0}, nil
		}
		h.polls++
		return &ExecResult{Stdout: "\n", ExitCode: 0}, nil
	default: // log read
		idx := h.polls
		if idx >= len(h.logStates) {
			idx = len(h.logStates) - 1
		}
		return &ExecResult{Stdout: h.logStates[idx], ExitCode: 0}, nil
	}
}

func TestLogPoller_StreamsUntilExitCode(t *testing.T) {
	host := &scriptedHost{
		logStates: []string{"step 1\n", "step 1\nstep 2\n", "step 1\nstep 2\nstep 3\n"},
		exitAfter: 2,
		exitCode:  "0",
	}
	mock := &MockExecutor{ExecFunc: host.exec}

	var lines []string
	poller := &logPoller{
		exec: mock,
		dctx: DetachedExecutionContext{
			LogPath:      "/tmp/vmlink_test0001.log",
			ExitCodePath: "/tmp/vmlink_test0001.log.exit",
		},
		opts: LongOptions{
			PollInterval: 5 * time.Millisecond,
			Timeout:      5 * time.Second,
			OnLine: func(line string, stream StreamName) {
				lines = append(lines, line)
			},
		},
	}

	res, err := poller.run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "step 1\nstep 2\nstep 3\n", res.Stdout)
	assert.Equal(t, "", res.Stderr)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, []string{"step 1\n", "step 2\n", "step 3\n"}, lines,
		"each poll must feed only the newly appended suffix")
	assert.True(t, host.removed, "remote log files must be cleaned up on success")
}

func TestLogPoller_NonZeroExitCode(t *testing.T) {
	host := &scriptedHost{
		logStates: []string{"boom\n"},
		exitAfter: 0,
		exitCode:  "17",
	}
	mock := &MockExecutor{ExecFunc: host.exec}

	poller := &logPoller{
		exec: mock,
		dctx: DetachedExecutionContext{LogPath: "/tmp/l.log", ExitCodePath: "/tmp/l.log.exit"},
		opts: LongOptions{PollInterval: 5 * time.Millisecond, Timeout: time.Second},
	}

	res, err := poller.run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 17, res.ExitCode)
	assert.Equal(t, "boom\n", res.Stdout)
}

func TestLogPoller_Timeout(t *testing.T) {
	host := &scriptedHost{
		logStates: []string{"\n"},
		exitAfter: 1 << 30, // never
	}
	mock := &MockExecutor{ExecFunc: host.exec}

	poller := &logPoller{
		exec: mock,
		dctx: DetachedExecutionContext{LogPath: "/tmp/l.log", ExitCodePath: "/tmp/l.log.exit"},
		opts: LongOptions{PollInterval: 5 * time.Millisecond, Timeout: 30 * time.Millisecond},
	}

	_, err := poller.run(context.Background())
	assert.ErrorIs(t, err, ErrOverallTimeout)
	assert.False(t, host.removed, "files stay in place so a later recovery can read them")
}
