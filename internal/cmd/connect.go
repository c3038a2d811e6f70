package cmd

import (
	"fmt"
	"time"

	"github.com/yoanbernabeu/vmlink/internal/config"
	"github.com/yoanbernabeu/vmlink/internal/security"
	"github.com/yoanbernabeu/vmlink/internal/ssh"
)

// TargetConnection holds a connected SSH client along with its target config.
type TargetConnection struct {
	Client *ssh.Client
	Target *config.TargetConfig
	Config *config.Config
}

// NewTargetClient validates the target name, loads the config, and builds an
// SSH client for it without connecting.
func NewTargetClient(targetName string, opts ...ssh.ClientOption) (*TargetConnection, error) {
	if err := security.ValidateTargetName(targetName); err != nil {
		return nil, fmt.Errorf("invalid target name: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	target, err := cfg.GetTarget(targetName)
	if err != nil {
		return nil, err
	}

	allOpts := sshOptsFromConfig(cfg, opts)

	client := ssh.NewClient(target.Host, target.User, target.Port, target.KeyPath, allOpts...)
	return &TargetConnection{
		Client: client,
		Target: target,
		Config: cfg,
	}, nil
}

// ConnectToTarget builds a client for the named target and establishes the
// SSH connection. The caller must defer conn.Client.Disconnect().
func ConnectToTarget(targetName string, opts ...ssh.ClientOption) (*TargetConnection, error) {
	conn, err := NewTargetClient(targetName, opts...)
	if err != nil {
		return nil, err
	}
	if err := conn.Client.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return conn, nil
}

// sshOptsFromConfig prepends options derived from the global config.
func sshOptsFromConfig(cfg *config.Config, opts []ssh.ClientOption) []ssh.ClientOption {
	var prefix []ssh.ClientOption
	if cfg.SSHTimeout > 0 {
		prefix = append(prefix, ssh.WithTimeout(time.Duration(cfg.SSHTimeout)*time.Second))
	}
	if len(cfg.ProbePorts) > 0 {
		prefix = append(prefix, ssh.WithProbePorts(cfg.ProbePorts))
	}
	return append(prefix, opts...)
}
