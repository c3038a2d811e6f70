package ssh

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// BootIdentity is a fingerprint of which boot cycle the remote is in.
// At most one of the two fields is authoritative per snapshot: the kernel's
// per-boot random token when readable, otherwise the boot time from
// /proc/stat. Both nil means the snapshot is unknown.
type BootIdentity struct {
	BootID *string
	Btime  *int64
}

// Known reports whether the snapshot captured anything at all.
func (b BootIdentity) Known() bool {
	return b.BootID != nil || b.Btime != nil
}

func (b BootIdentity) String() string {
	switch {
	case b.BootID != nil:
		return "boot_id=" + *b.BootID
	case b.Btime != nil:
		return fmt.Sprintf("btime=%d", *b.Btime)
	default:
		return "unknown"
	}
}

const (
	bootIDCommand = "cat /proc/sys/kernel/random/boot_id 2>/dev/null || true"
	btimeCommand  = "awk '/^btime /{print $2}' /proc/stat 2>/dev/null || true"
)

// snapshotBootIdentity captures the remote's boot fingerprint, tiered:
// boot_id first, btime as fallback, unknown when neither source yields.
func snapshotBootIdentity(ctx context.Context, exec Executor) (BootIdentity, error) {
	res, err := exec.Exec(ctx, bootIDCommand)
	if err != nil {
		return BootIdentity{}, err
	}
	if id := strings.TrimSpace(res.Stdout); res.ExitCode == 0 && id != "" {
		return BootIdentity{BootID: &id}, nil
	}

	res, err = exec.Exec(ctx, btimeCommand)
	if err != nil {
		return BootIdentity{}, err
	}
	if raw := strings.TrimSpace(res.Stdout); raw != "" {
		if btime, perr := strconv.ParseInt(raw, 10, 64); perr == nil && btime >= 0 {
			return BootIdentity{Btime: &btime}, nil
		}
	}
	return BootIdentity{}, nil
}

// CompareBootIdentities returns ErrUnexpectedReboot when the identity changed
// between before and after. The comparison is tiered with no double-checking:
// when before has a boot_id only boot_id is compared, btime is ignored even if
// populated on both sides. A missing value on the after side is indeterminate
// and passes — a failed read is not proof of reboot. An unknown before always
// passes.
func CompareBootIdentities(before, after BootIdentity) error {
	if before.BootID != nil {
		if after.BootID == nil {
			return nil
		}
		if *before.BootID != *after.BootID {
			return fmt.Errorf("%w: boot_id %s -> %s", ErrUnexpectedReboot, *before.BootID, *after.BootID)
		}
		return nil
	}

	if before.Btime != nil {
		if after.Btime == nil {
			return nil
		}
		if *before.Btime != *after.Btime {
			return fmt.Errorf("%w: btime %d -> %d", ErrUnexpectedReboot, *before.Btime, *after.Btime)
		}
		return nil
	}

	return nil
}
