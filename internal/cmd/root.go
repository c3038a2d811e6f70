package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/yoanbernabeu/vmlink/internal/security"
)

var (
	// Version is set at build time
	Version = "dev"

	// Global flags
	verbose bool
	yesFlag bool // CI/CD: skip confirmations
)

var rootCmd = &cobra.Command{
	Use:   "vmlink",
	Short: "Resilient SSH sessions for remote Linux VMs",
	Long: `VMLink manages a single logical SSH session to a remote machine and
executes commands on it with guarantees a raw shell does not give you:
it detects reboots that happen mid-operation, survives transient
disconnects without re-running commands that may have side effects,
streams output live while still returning a complete capture, and runs
commands that must outlive a dropped connection.

Quick start:
  vmlink target add prod deploy@my-vps.com   # Register a target
  vmlink status prod                         # Layered liveness report
  vmlink exec prod 'uname -a'                # Resilient execution
  vmlink run prod 'apt-get upgrade -y'       # Detached, survives disconnects

Commands:
  target        Manage named targets
  exec          Execute a command with reboot detection and recovery
  run           Execute a long-running command detached from the session
  status        Show the layered liveness report for a target
  boot          Show the target's current boot identity
  probe         Probe a host directly (tcp/udp/icmp), no session needed
  shell         Open an interactive shell

CI/CD Environment Variables:
  VMLINK_SSH_KEY             SSH private key content
  VMLINK_KNOWN_HOSTS         SSH known_hosts content
  VMLINK_SKIP_HOST_KEY_CHECK Skip host key verification (true/false)`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd exposes the root command for documentation generation
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed logs")
	rootCmd.PersistentFlags().BoolVarP(&yesFlag, "yes", "y", false, "Skip confirmations (CI/CD mode)")

	rootCmd.SetVersionTemplate(`VMLink {{.Version}}
`)
}

func setupLogging() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// IsVerbose returns true if verbose mode is enabled
func IsVerbose() bool {
	return verbose
}

// IsYesMode returns true if --yes flag is set (CI/CD mode)
func IsYesMode() bool {
	return yesFlag
}

// PrintError prints a formatted error message
func PrintError(msg string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "❌ "+msg+"\n", args...)
}

// PrintSuccess prints a success message
func PrintSuccess(msg string, args ...interface{}) {
	fmt.Printf("✅ "+msg+"\n", args...)
}

// PrintInfo prints an info message
func PrintInfo(msg string, args ...interface{}) {
	fmt.Printf("ℹ️  "+msg+"\n", args...)
}

// PrintWarning prints a warning message
func PrintWarning(msg string, args ...interface{}) {
	fmt.Printf("⚠️  "+msg+"\n", args...)
}

// PrintVerboseCommand prints a command in verbose mode with sensitive values masked
func PrintVerboseCommand(command string) {
	if verbose {
		fmt.Printf("   Running: %s\n", security.SanitizeCommandForLog(command))
	}
}
