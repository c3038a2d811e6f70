package ssh

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runnerScript builds a resilientRunner whose collaborators are scripted and
// counted.
type runnerScript struct {
	snapshotErr    error
	assertErrs     []error // consumed per assertBoot call
	reconnectErr   error
	detached       *DetachedExecutionContext
	recovered      *ExecResult
	recoverErr     error
	reconnectCalls int
	recoverCalls   int
	assertCalls    int
}

func (s *runnerScript) runner() *resilientRunner {
	return &resilientRunner{
		snapshot: func(ctx context.Context) (BootIdentity, error) {
			id := "boot-A"
			return BootIdentity{BootID: &id}, s.snapshotErr
		},
		assertBoot: func(ctx context.Context, before BootIdentity) error {
			var err error
			if s.assertCalls < len(s.assertErrs) {
				err = s.assertErrs[s.assertCalls]
			}
			s.assertCalls++
			return err
		},
		reconnect: func() error {
			s.reconnectCalls++
			return s.reconnectErr
		},
		takeDetached: func() *DetachedExecutionContext {
			d := s.detached
			s.detached = nil
			return d
		},
		recover: func(ctx context.Context, dctx DetachedExecutionContext) (*ExecResult, error) {
			s.recoverCalls++
			return s.recovered, s.recoverErr
		},
	}
}

func TestResilient_HappyPath(t *testing.T) {
	script := &runnerScript{}
	want := &ExecResult{Stdout: "ok\n"}

	got, err := script.runner().run(context.Background(), func() (*ExecResult, error) {
		return want, nil
	})

	require.NoError(t, err)
	assert.Same(t, want, got)
	assert.Zero(t, script.reconnectCalls, "no recovery on the happy path")
	assert.Equal(t, 1, script.assertCalls)
}

func TestResilient_RebootDetectedAfterSuccess(t *testing.T) {
	// The operation succeeds but the boot identity changed: the result is
	// untrustworthy. After the reconnect the identity still differs, so the
	// reboot error is what surfaces.
	rebootErr := fmt.Errorf("%w: boot_id A -> B", ErrUnexpectedReboot)
	script := &runnerScript{
		assertErrs: []error{rebootErr, rebootErr},
	}

	_, err := script.runner().run(context.Background(), func() (*ExecResult, error) {
		return &ExecResult{ExitCode: 0}, nil
	})

	assert.ErrorIs(t, err, ErrUnexpectedReboot)
	assert.Equal(t, 1, script.reconnectCalls)
}

func TestResilient_ReconnectExhaustedSurfacesOriginalError(t *testing.T) {
	opErr := fmt.Errorf("%w: transport died", ErrLostConnection)
	script := &runnerScript{
		reconnectErr: fmt.Errorf("%w: 5 attempts", ErrReconnectExhausted),
	}

	_, err := script.runner().run(context.Background(), func() (*ExecResult, error) {
		return nil, opErr
	})

	assert.ErrorIs(t, err, ErrLostConnection, "the original error is re-raised unchanged")
	assert.NotErrorIs(t, err, ErrReconnectExhausted)
}

func TestResilient_RecoveryUnavailableWithoutDetachedContext(t *testing.T) {
	script := &runnerScript{}

	_, err := script.runner().run(context.Background(), func() (*ExecResult, error) {
		return nil, errors.New("channel collapsed")
	})

	assert.ErrorIs(t, err, ErrRecoveryUnavailable)
	assert.Equal(t, 1, script.reconnectCalls)
	assert.Zero(t, script.recoverCalls)
}

func TestResilient_RecoversFromDetachedContext(t *testing.T) {
	recovered := &ExecResult{Stdout: "resumed\n", ExitCode: 0}
	script := &runnerScript{
		detached:  &DetachedExecutionContext{LogPath: "/tmp/vmlink_x.log", ExitCodePath: "/tmp/vmlink_x.log.exit"},
		recovered: recovered,
	}

	got, err := script.runner().run(context.Background(), func() (*ExecResult, error) {
		return nil, errors.New("connection dropped mid-poll")
	})

	require.NoError(t, err)
	assert.Same(t, recovered, got)
	assert.Equal(t, 1, script.recoverCalls, "recovery reads persisted state, it never re-runs the operation")
	assert.Equal(t, 1, script.assertCalls, "boot identity is verified after the reconnect")
	assert.Nil(t, script.detached, "the context is consumed by recovery")
}

func TestResilient_SnapshotFailureTriggersRecoveryPath(t *testing.T) {
	script := &runnerScript{
		snapshotErr:  errors.New("not connected"),
		reconnectErr: fmt.Errorf("%w: 5 attempts", ErrReconnectExhausted),
	}

	opCalls := 0
	_, err := script.runner().run(context.Background(), func() (*ExecResult, error) {
		opCalls++
		return &ExecResult{}, nil
	})

	assert.Error(t, err)
	assert.Zero(t, opCalls, "the operation must not run when the pre-snapshot fails")
	assert.Equal(t, 1, script.reconnectCalls)
}
