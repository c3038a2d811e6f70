package ssh

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"
)

// Defaults for client options.
const (
	DefaultTimeout      = 30 * time.Second
	DefaultProbeTimeout = 300 * time.Millisecond
)

// DefaultProbePorts are the TCP ports scanned by IsAlive when none are configured.
var DefaultProbePorts = []int{22, 80, 443}

type dialFunc func(network, addr string, config *ssh.ClientConfig) (*ssh.Client, error)

type clientOptions struct {
	timeout      time.Duration
	probePorts   []int
	probeTimeout time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*clientOptions)

// WithTimeout sets the connection timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) { o.timeout = d }
}

// WithProbePorts sets the TCP ports scanned by IsAlive.
func WithProbePorts(ports []int) ClientOption {
	return func(o *clientOptions) { o.probePorts = ports }
}

// WithProbeTimeout sets the per-probe timeout used by IsAlive.
func WithProbeTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) { o.probeTimeout = d }
}

// Client manages a single logical SSH session to a remote host. It owns at
// most one live transport handle; a non-nil handle was returned by a
// successful Connect and is nulled again on Disconnect. Not safe for
// concurrent use — one Client per caller.
type Client struct {
	Host    string
	User    string
	Port    int
	KeyPath string

	opts   clientOptions
	client *ssh.Client
	dial   dialFunc

	// at most one outstanding detached execution per session
	detached *DetachedExecutionContext
}

// NewClient creates a new SSH client for host. Port 0 means 22.
func NewClient(host, user string, port int, keyPath string, opts ...ClientOption) *Client {
	if port == 0 {
		port = 22
	}
	o := clientOptions{
		timeout:      DefaultTimeout,
		probePorts:   DefaultProbePorts,
		probeTimeout: DefaultProbeTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Client{
		Host:    host,
		User:    user,
		Port:    port,
		KeyPath: keyPath,
		opts:    o,
		dial:    ssh.Dial,
	}
}

// Connect establishes the SSH connection. An already-connected client is
// disconnected first, so Connect is an idempotent reset rather than an error.
// Transport failures are translated into the typed error kinds; retrying is
// the caller's responsibility.
func (c *Client) Connect() error {
	if c.client != nil {
		c.Disconnect()
	}

	signer, err := c.loadPrivateKey()
	if err != nil {
		return err
	}

	hostKeyCallback, err := c.hostKeyCallback()
	if err != nil {
		return fmt.Errorf("%w: host key verification: %w", ErrSSH, err)
	}

	config := &ssh.ClientConfig{
		User: c.User,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(signer),
		},
		HostKeyCallback: hostKeyCallback,
		Timeout:         c.opts.timeout,
	}

	addr := net.JoinHostPort(c.Host, fmt.Sprintf("%d", c.Port))
	log.Debug().Str("addr", addr).Str("user", c.User).Msg("connecting")

	client, err := c.dial("tcp", addr, config)
	if err != nil {
		return classifyConnectError(err, addr)
	}

	c.client = client
	log.Debug().Str("addr", addr).Msg("connection established")
	return nil
}

// Disconnect closes the transport if present and nulls the handle. Calling it
// while already disconnected is a no-op.
func (c *Client) Disconnect() {
	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
}

// Close implements the Executor interface.
func (c *Client) Close() error {
	c.Disconnect()
	return nil
}

// IsConnected reports whether the transport is live. A handle can look active
// from cached state while the underlying socket is already dead, so beyond
// the nil check this sends a zero-payload keepalive request and treats any
// I/O error as not connected. Probe errors are swallowed, never propagated.
func (c *Client) IsConnected() bool {
	if c.client == nil {
		return false
	}
	_, _, err := c.client.SendRequest("keepalive@openssh.com", true, nil)
	if err != nil {
		log.Debug().Err(err).Msg("keepalive probe failed")
		return false
	}
	return true
}

// IsAlive runs the layered liveness check: session transport state, TCP
// reachability on the configured ports, and a single ICMP echo. Every
// dimension is always evaluated — no early return — so the report carries a
// reason per dimension even when the verdict was already decided. The final
// verdict is the OR of all layers.
func (c *Client) IsAlive() LivenessReport {
	reasons := make(map[string]string)

	sshUp := c.IsConnected()
	if sshUp {
		reasons["ssh"] = "up"
	} else {
		reasons["ssh"] = "down"
	}

	tcpUp := false
	for _, port := range c.opts.probePorts {
		res := TCPProbe(c.Host, port, c.opts.probeTimeout)
		reasons[fmt.Sprintf("tcp:%d", port)] = res.Reason
		if res.OK {
			tcpUp = true
		}
	}

	icmp := ICMPProbe(c.Host, c.opts.probeTimeout)
	reasons["icmp"] = icmp.Reason

	return LivenessReport{
		Alive:   sshUp || tcpUp || icmp.OK,
		Reasons: reasons,
	}
}

// Reconnect attempts to re-establish a lost connection, up to maxRetries
// attempts with delay between them (not after the last). Before each attempt
// the liveness report is consulted for logging only — a negative report does
// not block the attempt. Exhaustion returns ErrReconnectExhausted wrapping
// the last underlying error.
func (c *Client) Reconnect(maxRetries int, delay time.Duration) error {
	log.Info().Str("host", c.Host).Int("max_retries", maxRetries).Msg("reconnecting")

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		report := c.IsAlive()
		if !report.Alive {
			log.Warn().Interface("reasons", report.Reasons).Int("attempt", attempt).
				Msg("host appears unreachable, attempting anyway")
		}

		if err := c.Connect(); err != nil {
			lastErr = err
			log.Warn().Err(err).Int("attempt", attempt).Msg("reconnection attempt failed")
		} else if c.IsConnected() {
			log.Info().Int("attempt", attempt).Msg("reconnection successful")
			return nil
		} else {
			lastErr = fmt.Errorf("%w: transport dead right after connect", ErrSSH)
		}

		if attempt < maxRetries {
			time.Sleep(delay)
		}
	}

	if lastErr != nil {
		return fmt.Errorf("%w: %d attempts: %w", ErrReconnectExhausted, maxRetries, lastErr)
	}
	return fmt.Errorf("%w: %d attempts", ErrReconnectExhausted, maxRetries)
}

// NewSession opens a command channel on the connected transport.
func (c *Client) NewSession() (*ssh.Session, error) {
	if c.client == nil {
		return nil, fmt.Errorf("%w: not connected", ErrSSH)
	}
	return c.client.NewSession()
}

// classifyConnectError maps a transport-level dial failure to the closest
// typed kind. Raw transport errors never leak past this boundary unwrapped.
func classifyConnectError(err error, addr string) error {
	msg := err.Error()
	if strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "no supported methods remain") {
		return fmt.Errorf("%w: %s: %w", ErrAuthFailed, addr, err)
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return fmt.Errorf("%w: %s: %w", ErrHostUnreachable, addr, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Errorf("%w: %s: %w", ErrHostUnreachable, addr, err)
	}

	if strings.Contains(msg, "ssh:") {
		return fmt.Errorf("%w: %s: %w", ErrSSH, addr, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrUnexpected, addr, err)
}
