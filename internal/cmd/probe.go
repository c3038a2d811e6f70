package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/yoanbernabeu/vmlink/internal/security"
	"github.com/yoanbernabeu/vmlink/internal/ssh"
)

var probeCmd = &cobra.Command{
	Use:   "probe <host>",
	Short: "Probe a host directly (tcp/udp/icmp), no session needed",
	Long: `Runs the raw liveness probes against a host without any configured
target or session: a TCP connect per port, an empty UDP datagram, and a
single ICMP echo.

Example:
  vmlink probe my-vps.com
  vmlink probe 10.0.0.5 --ports 22,8080 --probe-timeout 1s`,
	Args: cobra.ExactArgs(1),
	RunE: runProbe,
}

var (
	probePorts   []int
	probeUDPPort int
	probeTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntSliceVar(&probePorts, "ports", ssh.DefaultProbePorts, "TCP ports to probe")
	probeCmd.Flags().IntVar(&probeUDPPort, "udp-port", 0, "UDP port to probe (0 disables)")
	probeCmd.Flags().DurationVar(&probeTimeout, "probe-timeout", ssh.DefaultProbeTimeout, "Per-probe timeout")
}

func runProbe(cmd *cobra.Command, args []string) error {
	host := args[0]
	if err := security.ValidateHost(host); err != nil {
		return err
	}

	anyOK := false
	for _, port := range probePorts {
		res := ssh.TCPProbe(host, port, probeTimeout)
		printProbe(fmt.Sprintf("tcp:%d", port), res)
		anyOK = anyOK || res.OK
	}

	if probeUDPPort > 0 {
		res := ssh.UDPProbe(host, probeUDPPort, probeTimeout)
		printProbe(fmt.Sprintf("udp:%d", probeUDPPort), res)
		anyOK = anyOK || res.OK
	}

	icmp := ssh.ICMPProbe(host, probeTimeout)
	printProbe("icmp", icmp)
	anyOK = anyOK || icmp.OK

	if !anyOK {
		return fmt.Errorf("%s did not answer on any probe", host)
	}
	return nil
}

func printProbe(dimension string, res ssh.ProbeResult) {
	status := "down"
	if res.OK {
		status = "up"
	}
	if res.Latency > 0 {
		fmt.Printf("  %-10s %-4s %-14s %s\n", dimension, status, res.Reason, res.Latency.Round(time.Millisecond))
	} else {
		fmt.Printf("  %-10s %-4s %s\n", dimension, status, res.Reason)
	}
}
