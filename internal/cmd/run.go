package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/yoanbernabeu/vmlink/internal/constants"
	"github.com/yoanbernabeu/vmlink/internal/ssh"
)

var runCmd = &cobra.Command{
	Use:   "run <target> <command...>",
	Short: "Execute a long-running command detached from the session",
	Long: `Launches the command detached on the target so it survives a dropped
SSH session, then follows its output by polling the remote log file.
A disconnect while polling triggers a reconnect and resumes following,
without ever re-running the command.

Use this for commands that take a long time or that disrupt the network
themselves (upgrades, reboots, network reconfiguration).

Example:
  vmlink run prod 'apt-get dist-upgrade -y'
  vmlink run prod --poll-interval 5s --timeout 2h './migrate.sh'`,
	Args: cobra.MinimumNArgs(2),
	RunE: runRun,
}

var (
	runPollInterval time.Duration
	runTimeout      time.Duration
	runQuiet        bool
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().DurationVar(&runPollInterval, "poll-interval", constants.DefaultPollInterval,
		"How often to poll the remote log file")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", constants.DefaultLongTimeout,
		"Maximum time to wait for the command to complete")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Capture output without printing it live")
}

func runRun(cmd *cobra.Command, args []string) error {
	targetName := args[0]
	command := strings.Join(args[1:], " ")

	conn, err := ConnectToTarget(targetName)
	if err != nil {
		return err
	}
	defer conn.Client.Disconnect()

	PrintVerboseCommand(command)

	result, err := conn.Client.ExecuteLong(context.Background(), command, ssh.LongOptions{
		PollInterval: runPollInterval,
		Timeout:      runTimeout,
		Verbose:      !runQuiet,
	})
	if err != nil {
		return err
	}

	if result.ExitCode != 0 {
		return fmt.Errorf("command exited with code %d", result.ExitCode)
	}
	return nil
}
