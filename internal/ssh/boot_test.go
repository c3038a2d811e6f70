package ssh

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }
func i64ptr(i int64) *int64   { return &i }

func TestCompareBootIdentities(t *testing.T) {
	tests := []struct {
		name       string
		before     BootIdentity
		after      BootIdentity
		wantReboot bool
	}{
		{
			name:   "same boot_id passes",
			before: BootIdentity{BootID: strptr("A")},
			after:  BootIdentity{BootID: strptr("A")},
		},
		{
			name:       "different boot_id is a reboot",
			before:     BootIdentity{BootID: strptr("A")},
			after:      BootIdentity{BootID: strptr("B")},
			wantReboot: true,
		},
		{
			name:   "missing after boot_id is indeterminate",
			before: BootIdentity{BootID: strptr("A")},
			after:  BootIdentity{},
		},
		{
			name:   "boot_id wins over btime even when both differ",
			before: BootIdentity{BootID: strptr("A"), Btime: i64ptr(100)},
			after:  BootIdentity{BootID: strptr("A"), Btime: i64ptr(200)},
		},
		{
			name:   "same btime passes",
			before: BootIdentity{Btime: i64ptr(100)},
			after:  BootIdentity{Btime: i64ptr(100)},
		},
		{
			name:       "different btime is a reboot",
			before:     BootIdentity{Btime: i64ptr(100)},
			after:      BootIdentity{Btime: i64ptr(200)},
			wantReboot: true,
		},
		{
			name:   "missing after btime is indeterminate",
			before: BootIdentity{Btime: i64ptr(100)},
			after:  BootIdentity{},
		},
		{
			name:   "unknown before always passes",
			before: BootIdentity{},
			after:  BootIdentity{BootID: strptr("B"), Btime: i64ptr(200)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CompareBootIdentities(tt.before, tt.after)
			if tt.wantReboot {
				assert.ErrorIs(t, err, ErrUnexpectedReboot)
				assert.ErrorIs(t, err, ErrSession)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSnapshotBootIdentity_BootID(t *testing.T) {
	mock := &MockExecutor{
		ExecFunc: func(ctx context.Context, command string) (*ExecResult, error) {
			return &ExecResult{Stdout: "abcd-1234\n", ExitCode: 0}, nil
		},
	}

	id, err := snapshotBootIdentity(context.Background(), mock)
	require.NoError(t, err)
	require.NotNil(t, id.BootID)
	assert.Equal(t, "abcd-1234", *id.BootID)
	assert.Nil(t, id.Btime, "boot_id snapshot must leave btime unset")
	assert.Len(t, mock.Commands, 1, "btime fallback must not run when boot_id is present")
}

func TestSnapshotBootIdentity_BtimeFallback(t *testing.T) {
	mock := &MockExecutor{
		ExecFunc: func(ctx context.Context, command string) (*ExecResult, error) {
			if command == bootIDCommand {
				return &ExecResult{Stdout: "", ExitCode: 0}, nil
			}
			return &ExecResult{Stdout: "1700000000\n", ExitCode: 0}, nil
		},
	}

	id, err := snapshotBootIdentity(context.Background(), mock)
	require.NoError(t, err)
	assert.Nil(t, id.BootID)
	require.NotNil(t, id.Btime)
	assert.Equal(t, int64(1700000000), *id.Btime)
}

func TestSnapshotBootIdentity_Unknown(t *testing.T) {
	mock := &MockExecutor{
		ExecFunc: func(ctx context.Context, command string) (*ExecResult, error) {
			return &ExecResult{Stdout: "", ExitCode: 0}, nil
		},
	}

	id, err := snapshotBootIdentity(context.Background(), mock)
	require.NoError(t, err)
	assert.False(t, id.Known())
	assert.Equal(t, "unknown", id.String())
}

func TestSnapshotBootIdentity_GarbageBtime(t *testing.T) {
	mock := &MockExecutor{
		ExecFunc: func(ctx context.Context, command string) (*ExecResult, error) {
			if command == bootIDCommand {
				return &ExecResult{Stdout: "", ExitCode: 0}, nil
			}
			return &ExecResult{Stdout: "not-a-number\n", ExitCode: 0}, nil
		},
	}

	id, err := snapshotBootIdentity(context.Background(), mock)
	require.NoError(t, err)
	assert.False(t, id.Known())
}

func TestSnapshotBootIdentity_ExecError(t *testing.T) {
	mock := &MockExecutor{
		ExecFunc: func(ctx context.Context, command string) (*ExecResult, error) {
			return nil, errors.New("channel gone")
		},
	}

	_, err := snapshotBootIdentity(context.Background(), mock)
	assert.Error(t, err)
}
