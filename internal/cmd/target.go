package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/yoanbernabeu/vmlink/internal/config"
	"github.com/yoanbernabeu/vmlink/internal/security"
	"github.com/yoanbernabeu/vmlink/internal/ssh"
)

var targetCmd = &cobra.Command{
	Use:   "target",
	Short: "Manage named targets",
	Long:  `Commands to add, list, and manage the remote hosts vmlink connects to.`,
}

var targetAddCmd = &cobra.Command{
	Use:   "add <name> <user@host>",
	Short: "Add a new target",
	Long: `Adds a named target to the configuration.

Example:
  vmlink target add prod deploy@my-vps.com
  vmlink target add staging user@staging.example.com --port 2222 --key ~/.ssh/staging`,
	Args: cobra.ExactArgs(2),
	RunE: runTargetAdd,
}

var targetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured targets",
	RunE:  runTargetList,
}

var targetRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a target",
	Args:  cobra.ExactArgs(1),
	RunE:  runTargetRemove,
}

var targetSetCmd = &cobra.Command{
	Use:   "set <name> <key> <value>",
	Short: "Set a target configuration value",
	Long: `Sets a configuration value for a target.

Available keys: host, user, port, key_path

Example:
  vmlink target set prod port 2222
  vmlink target set prod key_path ~/.ssh/prod_ed25519`,
	Args: cobra.ExactArgs(3),
	RunE: runTargetSet,
}

var (
	targetPort    int
	targetKeyPath string
)

func init() {
	rootCmd.AddCommand(targetCmd)
	targetCmd.AddCommand(targetAddCmd)
	targetCmd.AddCommand(targetListCmd)
	targetCmd.AddCommand(targetRemoveCmd)
	targetCmd.AddCommand(targetSetCmd)

	targetAddCmd.Flags().IntVarP(&targetPort, "port", "p", 22, "SSH port")
	targetAddCmd.Flags().StringVarP(&targetKeyPath, "key", "k", "", "Private key path (default: auto-discover)")
}

func runTargetAdd(cmd *cobra.Command, args []string) error {
	name := args[0]
	if err := security.ValidateTargetName(name); err != nil {
		return fmt.Errorf("invalid target name: %w", err)
	}

	user, host, ok := strings.Cut(args[1], "@")
	if !ok || user == "" || host == "" {
		return fmt.Errorf("expected <user@host>, got %q", args[1])
	}
	if err := security.ValidateUnixUser(user); err != nil {
		return err
	}
	if err := security.ValidateHost(host); err != nil {
		return err
	}

	keyPath := targetKeyPath
	if keyPath == "" && IsInteractive() {
		keyPath = promptKeySelection()
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := cfg.AddTarget(name, config.TargetConfig{
		Host:    host,
		User:    user,
		Port:    targetPort,
		KeyPath: keyPath,
	}); err != nil {
		return err
	}

	if err := config.Save(cfg); err != nil {
		return err
	}

	PrintSuccess("Target '%s' added (%s@%s:%d)", name, user, host, targetPort)
	return nil
}

// promptKeySelection offers the discovered ~/.ssh keys. Empty return means
// rely on the default key locations at connect time.
func promptKeySelection() string {
	keys, err := ssh.DiscoverKeys()
	if err != nil || len(keys) == 0 {
		return ""
	}

	options := make([]string, len(keys))
	for i, k := range keys {
		label := fmt.Sprintf("%s (%s)", k.Name, k.Type)
		if k.IsEncrypted {
			label += " [passphrase-protected]"
		}
		options[i] = label
	}

	idx := PromptSelect("Which SSH key should this target use?", options)
	if idx < 0 {
		return ""
	}
	return keys[idx].Path
}

func runTargetList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if len(cfg.Targets) == 0 {
		PrintInfo("No targets configured. Add one with: vmlink target add <name> <user@host>")
		return nil
	}

	names := make([]string, 0, len(cfg.Targets))
	for name := range cfg.Targets {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		t := cfg.Targets[name]
		key := t.KeyPath
		if key == "" {
			key = "(auto)"
		}
		fmt.Printf("  %-16s %s@%s:%-5d key=%s\n", name, t.User, t.Host, t.Port, key)
	}
	return nil
}

func runTargetRemove(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := cfg.RemoveTarget(args[0]); err != nil {
		return err
	}

	if err := config.Save(cfg); err != nil {
		return err
	}

	PrintSuccess("Target '%s' removed", args[0])
	return nil
}

func runTargetSet(cmd *cobra.Command, args []string) error {
	name, key, value := args[0], args[1], args[2]

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	target, err := cfg.GetTarget(name)
	if err != nil {
		return err
	}

	switch key {
	case "host":
		if err := security.ValidateHost(value); err != nil {
			return err
		}
		target.Host = value
	case "user":
		if err := security.ValidateUnixUser(value); err != nil {
			return err
		}
		target.User = value
	case "port":
		port, err := strconv.Atoi(value)
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("invalid port %q", value)
		}
		target.Port = port
	case "key_path":
		target.KeyPath = value
	default:
		return fmt.Errorf("unknown key %q (available: host, user, port, key_path)", key)
	}

	cfg.Targets[name] = *target
	if err := config.Save(cfg); err != nil {
		return err
	}

	PrintSuccess("Target '%s' updated: %s = %s", name, key, value)
	return nil
}
