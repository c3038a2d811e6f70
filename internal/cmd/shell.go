package cmd

import (
	"github.com/spf13/cobra"
)

var shellCmd = &cobra.Command{
	Use:   "shell <target>",
	Short: "Open an interactive shell on the target",
	Long: `Opens an interactive shell session on the target host.

Example:
  vmlink shell prod`,
	Args: cobra.ExactArgs(1),
	RunE: runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

func runShell(cmd *cobra.Command, args []string) error {
	conn, err := ConnectToTarget(args[0])
	if err != nil {
		return err
	}
	defer conn.Client.Disconnect()

	return conn.Client.Shell()
}
