package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var bootCmd = &cobra.Command{
	Use:   "boot <target>",
	Short: "Show the target's current boot identity",
	Long: `Captures the target's boot fingerprint: the kernel's per-boot random
token when readable, otherwise the boot time from /proc/stat. The
fingerprint changes exactly once per reboot, which is how vmlink
detects reboots that happen during an operation.

Example:
  vmlink boot prod`,
	Args: cobra.ExactArgs(1),
	RunE: runBoot,
}

func init() {
	rootCmd.AddCommand(bootCmd)
}

func runBoot(cmd *cobra.Command, args []string) error {
	conn, err := ConnectToTarget(args[0])
	if err != nil {
		return err
	}
	defer conn.Client.Disconnect()

	identity, err := conn.Client.SnapshotBootIdentity(context.Background())
	if err != nil {
		return err
	}

	fmt.Println(identity.String())
	return nil
}
