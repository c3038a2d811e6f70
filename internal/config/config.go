package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigDir is the configuration directory name
	ConfigDir = "vmlink"
	// ConfigFile is the config filename
	ConfigFile = "config.yaml"
)

// Config is the global vmlink configuration.
type Config struct {
	// SSHTimeout is the connection timeout in seconds
	SSHTimeout int `mapstructure:"ssh_timeout" yaml:"ssh_timeout,omitempty"`
	// ProbePorts are the TCP ports scanned by liveness checks
	ProbePorts []int `mapstructure:"probe_ports" yaml:"probe_ports,omitempty"`
	// Targets are the named remote hosts
	Targets map[string]TargetConfig `mapstructure:"targets" yaml:"targets"`
}

// TargetConfig describes one remote host.
type TargetConfig struct {
	Host    string `mapstructure:"host" yaml:"host"`
	User    string `mapstructure:"user" yaml:"user"`
	Port    int    `mapstructure:"port" yaml:"port,omitempty"`
	KeyPath string `mapstructure:"key_path" yaml:"key_path,omitempty"`
}

// DefaultConfig returns the configuration used when no file exists yet.
func DefaultConfig() *Config {
	return &Config{
		SSHTimeout: 30,
		Targets:    make(map[string]TargetConfig),
	}
}

// Dir returns the vmlink configuration directory.
func Dir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		home, herr := homedir.Dir()
		if herr != nil {
			return "", fmt.Errorf("failed to get home directory: %w", herr)
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, ConfigDir), nil
}

// Path returns the path to the config file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFile), nil
}

// Load reads the configuration from the default directory, with VMLINK_*
// environment variables taking precedence over file values.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return LoadFrom(dir)
}

// LoadFrom reads the configuration from dir. A missing file yields defaults.
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.SetEnvPrefix("VMLINK")
	v.AutomaticEnv()

	v.SetDefault("ssh_timeout", 30)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Targets == nil {
		cfg.Targets = make(map[string]TargetConfig)
	}
	return cfg, nil
}

// Save writes the configuration back to the default location.
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	return SaveTo(path, cfg)
}

// SaveTo writes the configuration to path.
func SaveTo(path string, cfg *Config) error {
	// SECURITY: 0700/0600 restrict access to the owner, the file names hosts
	// and key paths
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// GetTarget retrieves a target configuration by name
func (c *Config) GetTarget(name string) (*TargetConfig, error) {
	target, ok := c.Targets[name]
	if !ok {
		return nil, fmt.Errorf("target '%s' not found", name)
	}
	return &target, nil
}

// AddTarget adds a new target to the configuration
func (c *Config) AddTarget(name string, target TargetConfig) error {
	if _, exists := c.Targets[name]; exists {
		return fmt.Errorf("target '%s' already exists", name)
	}
	if target.Port == 0 {
		target.Port = 22
	}
	c.Targets[name] = target
	return nil
}

// RemoveTarget removes a target from the configuration
func (c *Config) RemoveTarget(name string) error {
	if _, exists := c.Targets[name]; !exists {
		return fmt.Errorf("target '%s' not found", name)
	}
	delete(c.Targets, name)
	return nil
}
