package cmd

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <target>",
	Short: "Show the layered liveness report for a target",
	Long: `Evaluates every liveness dimension for the target and prints one
reason per dimension: the SSH transport state, TCP reachability on the
configured ports (a refused connection counts as reachable — the
network stack answered), and a single ICMP echo. The target is
considered alive when any layer succeeds.

Example:
  vmlink status prod`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	conn, err := NewTargetClient(args[0])
	if err != nil {
		return err
	}

	// Best effort: a failed connect still leaves the network-level probes.
	if err := conn.Client.Connect(); err != nil {
		log.Debug().Err(err).Msg("connect failed, probing without a session")
	}
	defer conn.Client.Disconnect()

	report := conn.Client.IsAlive()

	keys := make([]string, 0, len(report.Reasons))
	for k := range report.Reasons {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-8s %s\n", k, report.Reasons[k])
	}

	if !report.Alive {
		return fmt.Errorf("%s is not reachable on any layer", conn.Target.Host)
	}
	PrintSuccess("%s is alive", conn.Target.Host)
	return nil
}
