package ssh

import (
	"errors"
	"fmt"
	"net"
	"os/exec"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

// ProbeResult is the outcome of one liveness probe against one dimension
// (a TCP port, a UDP port, ICMP).
type ProbeResult struct {
	OK      bool
	Reason  string
	Latency time.Duration
	Err     error
}

// LivenessReport aggregates every probe dimension plus the session transport
// state. Reasons always carries one entry per configured port plus "ssh" and
// "icmp", regardless of the verdict.
type LivenessReport struct {
	Alive   bool
	Reasons map[string]string
}

// TCPProbe attempts a TCP connect to host:port.
// OK when the connect succeeds (service listening) or is refused outright —
// a RST proves the remote network stack is up even with nothing listening.
// Timeouts and other socket errors are not OK.
func TCPProbe(host string, port int, timeout time.Duration) ProbeResult {
	start := time.Now()
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, timeout)
	elapsed := time.Since(start)
	if err == nil {
		conn.Close()
		return ProbeResult{OK: true, Reason: fmt.Sprintf("%d ok", port), Latency: elapsed}
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return ProbeResult{OK: true, Reason: fmt.Sprintf("%d refused", port), Latency: elapsed}
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return ProbeResult{OK: false, Reason: fmt.Sprintf("%d timeout", port), Latency: elapsed, Err: err}
	}
	return ProbeResult{OK: false, Reason: fmt.Sprintf("%d error", port), Latency: elapsed, Err: err}
}

// UDPProbe sends an empty datagram to host:port. UDP gives no delivery
// confirmation, so OK only means the send did not fail locally.
func UDPProbe(host string, port int, timeout time.Duration) ProbeResult {
	start := time.Now()
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.DialTimeout("udp", addr, timeout)
	if err != nil {
		return ProbeResult{OK: false, Reason: fmt.Sprintf("%d error", port), Latency: time.Since(start), Err: err}
	}
	defer conn.Close()
	conn.SetWriteDeadline(time.Now().Add(timeout))
	if _, err := conn.Write(nil); err != nil {
		return ProbeResult{OK: false, Reason: fmt.Sprintf("%d error", port), Latency: time.Since(start), Err: err}
	}
	return ProbeResult{OK: true, Reason: fmt.Sprintf("%d ok", port), Latency: time.Since(start)}
}

// ICMPProbe sends a single echo request using the system ping binary, which
// works without raw-socket privileges. OK only on a reply; a missing ping
// binary or no reply is not OK but never an error for the caller.
func ICMPProbe(host string, timeout time.Duration) ProbeResult {
	secs := int(timeout / time.Second)
	if secs < 1 {
		secs = 1
	}
	var cmd *exec.Cmd
	if runtime.GOOS == "darwin" {
		// macOS ping takes the wait in milliseconds
		cmd = exec.Command("ping", "-c", "1", "-W", strconv.Itoa(int(timeout/time.Millisecond)), host)
	} else {
		cmd = exec.Command("ping", "-c", "1", "-W", strconv.Itoa(secs), "-n", host)
	}

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)
	if err == nil {
		return ProbeResult{OK: true, Reason: "icmp ok", Latency: elapsed}
	}
	if errors.Is(err, exec.ErrNotFound) {
		return ProbeResult{OK: false, Reason: "unavailable (no 'ping' command)", Err: err}
	}
	log.Debug().Err(err).Str("host", host).Msg("icmp probe got no reply")
	return ProbeResult{OK: false, Reason: "no reply", Latency: elapsed, Err: err}
}
