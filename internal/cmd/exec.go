package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/yoanbernabeu/vmlink/internal/ssh"
)

var execCmd = &cobra.Command{
	Use:   "exec <target> <command...>",
	Short: "Execute a command with reboot detection and recovery",
	Long: `Executes a command on the target over the managed session. The boot
identity is verified around the run, so a reboot that happens while the
command executes is detected even when the command itself reports
success. Output is streamed live and returned as a complete capture.

Example:
  vmlink exec prod 'uname -a'
  vmlink exec prod --timeout 2m 'tar czf /tmp/backup.tgz /var/www'
  vmlink exec prod --script ./provision.sh`,
	Args: execArgsPolicy,
	RunE: runExec,
}

var (
	execTimeout    time.Duration
	execInactivity time.Duration
	execQuiet      bool
	execScript     string
)

func init() {
	rootCmd.AddCommand(execCmd)
	execCmd.Flags().DurationVar(&execTimeout, "timeout", ssh.DefaultExecTimeout,
		"Fail if the command produces no output at all within this duration")
	execCmd.Flags().DurationVar(&execInactivity, "inactivity-timeout", ssh.DefaultInactivityTimeout,
		"Re-verify the connection when output stays quiet this long")
	execCmd.Flags().BoolVarP(&execQuiet, "quiet", "q", false, "Capture output without printing it live")
	execCmd.Flags().StringVar(&execScript, "script", "", "Upload and run a local script instead of a command")
}

func execArgsPolicy(cmd *cobra.Command, args []string) error {
	if execScript != "" {
		return cobra.ExactArgs(1)(cmd, args)
	}
	return cobra.MinimumNArgs(2)(cmd, args)
}

func runExec(cmd *cobra.Command, args []string) error {
	targetName := args[0]

	conn, err := ConnectToTarget(targetName)
	if err != nil {
		return err
	}
	defer conn.Client.Disconnect()

	ctx := context.Background()

	command := strings.Join(args[1:], " ")
	if execScript != "" {
		command, err = uploadScript(ctx, conn.Client, execScript)
		if err != nil {
			return err
		}
	}

	PrintVerboseCommand(command)

	result, err := conn.Client.Execute(ctx, command, ssh.ExecOptions{
		Timeout:           execTimeout,
		InactivityTimeout: execInactivity,
		Verbose:           !execQuiet,
	})
	if err != nil {
		return err
	}

	if result.ExitCode != 0 {
		return fmt.Errorf("command exited with code %d", result.ExitCode)
	}
	return nil
}

// uploadScript pushes a local script to the target and returns the command
// that runs and then removes it.
func uploadScript(ctx context.Context, client *ssh.Client, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read script: %w", err)
	}

	remotePath := fmt.Sprintf("/tmp/vmlink_script_%d.sh", os.Getpid())
	if err := client.UploadContent(ctx, string(content), remotePath); err != nil {
		return "", err
	}

	return fmt.Sprintf("bash %s; rc=$?; rm -f %s; exit $rc", remotePath, remotePath), nil
}
