package ssh

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gossh "golang.org/x/crypto/ssh"
)

func testPrivateKeyPEM(t *testing.T) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := gossh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)
	return string(pem.EncodeToMemory(block))
}

func TestNewClient_DefaultPort(t *testing.T) {
	client := NewClient("host", "user", 0, "/key")
	assert.Equal(t, 22, client.Port)
}

func TestNewClient_CustomPort(t *testing.T) {
	client := NewClient("host", "user", 2222, "/key")
	assert.Equal(t, 2222, client.Port)
}

func TestNewClient_DefaultOptions(t *testing.T) {
	client := NewClient("host", "user", 22, "/key")
	assert.Equal(t, DefaultTimeout, client.opts.timeout)
	assert.Equal(t, DefaultProbePorts, client.opts.probePorts)
	assert.Equal(t, DefaultProbeTimeout, client.opts.probeTimeout)
}

func TestNewClient_WithOptions(t *testing.T) {
	client := NewClient("host", "user", 22, "/key",
		WithTimeout(10*time.Second),
		WithProbePorts([]int{2222}),
		WithProbeTimeout(time.Second),
	)
	assert.Equal(t, 10*time.Second, client.opts.timeout)
	assert.Equal(t, []int{2222}, client.opts.probePorts)
	assert.Equal(t, time.Second, client.opts.probeTimeout)
}

func TestIsConnected_NoHandle(t *testing.T) {
	client := NewClient("host", "user", 22, "/key")
	assert.False(t, client.IsConnected())
}

func TestDisconnect_AlreadyDisconnected(t *testing.T) {
	client := NewClient("host", "user", 22, "/key")
	client.Disconnect() // must be a no-op, not a panic
	assert.False(t, client.IsConnected())
}

func TestConnect_KeyNotFound(t *testing.T) {
	t.Setenv("VMLINK_SSH_KEY", "")
	client := NewClient("host", "user", 22, "/nonexistent/key")
	err := client.Connect()
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.ErrorIs(t, err, ErrSession)
}

func TestExec_NotConnected(t *testing.T) {
	client := NewClient("host", "user", 22, "/key")
	_, err := client.Exec(context.Background(), "true")
	assert.ErrorIs(t, err, ErrSSH)
}

func TestSnapshotBootIdentity_NotConnected(t *testing.T) {
	client := NewClient("host", "user", 22, "/key")
	_, err := client.SnapshotBootIdentity(context.Background())
	assert.ErrorIs(t, err, ErrSSH)
}

func TestReconnect_RetryBound(t *testing.T) {
	t.Setenv("VMLINK_SSH_KEY", testPrivateKeyPEM(t))
	t.Setenv("VMLINK_SKIP_HOST_KEY_CHECK", "true")

	client := NewClient("127.0.0.1", "tester", 22, "",
		WithProbePorts([]int{1}),
		WithProbeTimeout(10*time.Millisecond),
	)

	dialCalls := 0
	client.dial = func(network, addr string, config *gossh.ClientConfig) (*gossh.Client, error) {
		dialCalls++
		return nil, errors.New("connection refused")
	}

	err := client.Reconnect(3, time.Millisecond)

	assert.Equal(t, 3, dialCalls, "exactly maxRetries connect attempts, never one more")
	assert.ErrorIs(t, err, ErrReconnectExhausted)
	assert.ErrorIs(t, err, ErrSession)
}

func TestReconnect_SucceedsAfterFailure(t *testing.T) {
	t.Setenv("VMLINK_SSH_KEY", testPrivateKeyPEM(t))
	t.Setenv("VMLINK_SKIP_HOST_KEY_CHECK", "true")

	client := NewClient("127.0.0.1", "tester", 22, "",
		WithProbePorts([]int{1}),
		WithProbeTimeout(10*time.Millisecond),
	)

	// The dial seam cannot fabricate a live *ssh.Client, so success here is
	// exercised up to the post-connect transport verification.
	dialCalls := 0
	client.dial = func(network, addr string, config *gossh.ClientConfig) (*gossh.Client, error) {
		dialCalls++
		if dialCalls < 2 {
			return nil, errors.New("connection refused")
		}
		return nil, errors.New("still down")
	}

	err := client.Reconnect(2, time.Millisecond)
	assert.Equal(t, 2, dialCalls)
	assert.Error(t, err)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyConnectError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "authentication failure",
			err:  errors.New("ssh: handshake failed: ssh: unable to authenticate, attempted methods [none publickey]"),
			want: ErrAuthFailed,
		},
		{
			name: "no supported methods",
			err:  errors.New("ssh: no supported methods remain"),
			want: ErrAuthFailed,
		},
		{
			name: "dial timeout",
			err:  timeoutErr{},
			want: ErrHostUnreachable,
		},
		{
			name: "network op error",
			err:  &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("no route to host")},
			want: ErrHostUnreachable,
		},
		{
			name: "protocol error",
			err:  errors.New("ssh: handshake failed: EOF"),
			want: ErrSSH,
		},
		{
			name: "anything else",
			err:  errors.New("what even is this"),
			want: ErrUnexpected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyConnectError(tt.err, "host:22")
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, ErrSession, "every typed kind derives from the session root")
		})
	}
}
