package ssh

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/yoanbernabeu/vmlink/internal/constants"
)

// resilientOp is one session operation wrapped by the resilient protocol.
type resilientOp func() (*ExecResult, error)

// resilientRunner is the strategy that makes a session operation survive a
// dropped connection:
//
//  1. snapshot the boot identity
//  2. run the operation
//  3. verify the boot identity — a reboot during execution invalidates the
//     result even when the operation itself reported success
//
// On any error in 1–3 a reconnect is attempted with a fixed budget. If the
// reconnect succeeds, the boot identity is re-verified against the snapshot
// and the result is recovered by reading back the remote log and exit-code
// files of the recorded detached execution — never by re-running the
// operation, which may not be idempotent. With no detached context on record
// recovery is impossible. If the reconnect budget is exhausted, the original
// error is returned unchanged.
type resilientRunner struct {
	snapshot     func(ctx context.Context) (BootIdentity, error)
	assertBoot   func(ctx context.Context, before BootIdentity) error
	reconnect    func() error
	takeDetached func() *DetachedExecutionContext
	recover      func(ctx context.Context, dctx DetachedExecutionContext) (*ExecResult, error)
}

func (r *resilientRunner) run(ctx context.Context, op resilientOp) (*ExecResult, error) {
	var result *ExecResult

	before, opErr := r.snapshot(ctx)
	if opErr == nil {
		result, opErr = op()
		if opErr == nil {
			opErr = r.assertBoot(ctx, before)
		}
	}
	if opErr == nil {
		return result, nil
	}

	log.Info().Err(opErr).Msg("connection error detected, attempting to reconnect")
	if rerr := r.reconnect(); rerr != nil {
		log.Error().Err(rerr).Msg("reconnection failed, surfacing original error")
		return nil, opErr
	}

	// Distinguish a network blip from "the remote rebooted, which is why it
	// dropped".
	log.Info().Msg("reconnected, checking for reboot")
	if err := r.assertBoot(ctx, before); err != nil {
		return nil, err
	}

	dctx := r.takeDetached()
	if dctx == nil {
		return nil, fmt.Errorf("%w: nothing was launched detached", ErrRecoveryUnavailable)
	}

	log.Info().Str("log", dctx.LogPath).Msg("recovering result from detached execution")
	return r.recover(ctx, *dctx)
}

// SnapshotBootIdentity captures the remote's boot fingerprint. Requires an
// active session.
func (c *Client) SnapshotBootIdentity(ctx context.Context) (BootIdentity, error) {
	if !c.IsConnected() {
		return BootIdentity{}, fmt.Errorf("%w: not connected", ErrSSH)
	}
	return snapshotBootIdentity(ctx, c)
}

// AssertSameBoot takes a fresh snapshot and returns ErrUnexpectedReboot if
// the identity changed since before.
func (c *Client) AssertSameBoot(ctx context.Context, before BootIdentity) error {
	after, err := c.SnapshotBootIdentity(ctx)
	if err != nil {
		return err
	}
	return CompareBootIdentities(before, after)
}

// runResilient applies the resilient protocol to op on this session.
func (c *Client) runResilient(ctx context.Context, op resilientOp) (*ExecResult, error) {
	r := &resilientRunner{
		snapshot:   c.SnapshotBootIdentity,
		assertBoot: c.AssertSameBoot,
		reconnect: func() error {
			return c.Reconnect(constants.RecoveryMaxRetries, constants.RecoveryDelay)
		},
		takeDetached: func() *DetachedExecutionContext {
			dctx := c.detached
			c.detached = nil
			return dctx
		},
		recover: func(ctx context.Context, dctx DetachedExecutionContext) (*ExecResult, error) {
			poller := &logPoller{exec: c, dctx: dctx, opts: LongOptions{Verbose: true}}
			return poller.run(ctx)
		},
	}
	return r.run(ctx, op)
}
