package ssh

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mitchellh/go-homedir"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/term"
)

// KeyInfo contains information about an SSH private key
type KeyInfo struct {
	Path        string // Full path to the key file
	Name        string // Key filename (e.g., "id_ed25519")
	Type        string // Key type (e.g., "ed25519", "rsa", "ecdsa")
	IsEncrypted bool   // True if key is passphrase-protected
}

// DiscoverKeys scans ~/.ssh/ for private keys.
// Returns keys sorted by preference: ed25519 first, then rsa, then others.
func DiscoverKeys() ([]KeyInfo, error) {
	home, err := homedir.Dir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine home directory: %w", err)
	}

	sshDir := filepath.Join(home, ".ssh")
	entries, err := os.ReadDir(sshDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read .ssh directory: %w", err)
	}

	var keys []KeyInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if strings.HasSuffix(name, ".pub") ||
			name == "known_hosts" ||
			name == "authorized_keys" ||
			name == "config" {
			continue
		}
		if !strings.HasPrefix(name, "id_") && !strings.HasSuffix(name, ".pem") {
			continue
		}

		keyPath := filepath.Join(sshDir, name)
		keyInfo, err := ValidateKey(keyPath)
		if err != nil {
			// Skip invalid key files
			continue
		}

		keys = append(keys, *keyInfo)
	}

	sort.Slice(keys, func(i, j int) bool {
		return keyTypePriority(keys[i].Type) < keyTypePriority(keys[j].Type)
	})

	return keys, nil
}

func keyTypePriority(keyType string) int {
	switch keyType {
	case "ed25519":
		return 0
	case "rsa":
		return 1
	case "ecdsa":
		return 2
	default:
		return 3
	}
}

// ValidateKey validates a key file and returns its info
func ValidateKey(path string) (*KeyInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	keyInfo := &KeyInfo{
		Path: path,
		Name: filepath.Base(path),
	}

	_, err = ssh.ParsePrivateKey(data)
	if err != nil {
		if isPassphraseError(err) {
			keyInfo.IsEncrypted = true
			keyInfo.Type = detectKeyType(data)
			return keyInfo, nil
		}
		return nil, fmt.Errorf("invalid SSH key: %w", err)
	}

	keyInfo.Type = detectKeyType(data)
	return keyInfo, nil
}

// isPassphraseError checks if the error indicates a passphrase-protected key
func isPassphraseError(err error) bool {
	errStr := err.Error()
	return strings.Contains(errStr, "passphrase") ||
		strings.Contains(errStr, "encrypted") ||
		strings.Contains(errStr, "ENCRYPTED")
}

// detectKeyType attempts to detect the key type from the key data
func detectKeyType(data []byte) string {
	content := string(data)

	if strings.Contains(content, "OPENSSH PRIVATE KEY") {
		if strings.Contains(strings.ToLower(content), "ed25519") {
			return "ed25519"
		}
		// Modern OpenSSH format defaults to ed25519 when no type hint is found
		return "ed25519"
	}
	if strings.Contains(content, "RSA PRIVATE KEY") {
		return "rsa"
	}
	if strings.Contains(content, "EC PRIVATE KEY") {
		return "ecdsa"
	}
	if strings.Contains(content, "DSA PRIVATE KEY") {
		return "dsa"
	}

	return "unknown"
}

// loadPrivateKey loads the configured SSH private key. A missing or
// unreadable file surfaces as ErrKeyNotFound, distinct from authentication
// and network failures at connect time. Encrypted keys prompt for a
// passphrase when stdin is a terminal.
func (c *Client) loadPrivateKey() (ssh.Signer, error) {
	// CI/CD: Check for SSH key in environment variable first
	if envKey := os.Getenv("VMLINK_SSH_KEY"); envKey != "" {
		signer, err := ssh.ParsePrivateKey([]byte(envKey))
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse VMLINK_SSH_KEY: %w", ErrKeyNotFound, err)
		}
		return signer, nil
	}

	keyPath := c.KeyPath
	if keyPath == "" {
		home, err := homedir.Dir()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrKeyNotFound, err)
		}
		// Try common key locations
		keyPaths := []string{
			filepath.Join(home, ".ssh", "id_ed25519"),
			filepath.Join(home, ".ssh", "id_rsa"),
		}
		for _, p := range keyPaths {
			if _, err := os.Stat(p); err == nil {
				keyPath = p
				break
			}
		}
		if keyPath == "" {
			return nil, fmt.Errorf("%w: no SSH key found (set VMLINK_SSH_KEY for CI/CD)", ErrKeyNotFound)
		}
	}

	keyPath, err := homedir.Expand(keyPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyNotFound, err)
	}

	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrKeyNotFound, keyPath, err)
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		if isPassphraseError(err) {
			return parseEncryptedKey(key, keyPath)
		}
		return nil, fmt.Errorf("%w: failed to parse %s: %w", ErrKeyNotFound, keyPath, err)
	}

	return signer, nil
}

// parseEncryptedKey prompts for the key passphrase. Without a terminal the
// key is unusable and surfaces as a key error.
func parseEncryptedKey(key []byte, keyPath string) (ssh.Signer, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, fmt.Errorf("%w: %s is passphrase-protected and stdin is not a terminal", ErrKeyNotFound, keyPath)
	}

	fmt.Fprintf(os.Stderr, "Enter passphrase for %s: ", keyPath)
	passphrase, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read passphrase: %w", ErrKeyNotFound, err)
	}

	signer, err := ssh.ParsePrivateKeyWithPassphrase(key, passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: wrong passphrase for %s: %w", ErrKeyNotFound, keyPath, err)
	}
	return signer, nil
}

// hostKeyCallback returns the host key callback function.
// SECURITY: a valid known_hosts file is required by default. In CI/CD, set
// VMLINK_KNOWN_HOSTS with the content of known_hosts or
// VMLINK_SKIP_HOST_KEY_CHECK=true to skip verification (not recommended).
func (c *Client) hostKeyCallback() (ssh.HostKeyCallback, error) {
	// CI/CD: Check for known_hosts content in environment variable
	if knownHostsContent := os.Getenv("VMLINK_KNOWN_HOSTS"); knownHostsContent != "" {
		tmpFile, err := os.CreateTemp("", "known_hosts")
		if err != nil {
			return nil, fmt.Errorf("failed to create temp known_hosts: %w", err)
		}
		defer os.Remove(tmpFile.Name())

		if _, err := tmpFile.WriteString(knownHostsContent); err != nil {
			return nil, fmt.Errorf("failed to write temp known_hosts: %w", err)
		}
		tmpFile.Close()

		callback, err := knownhosts.New(tmpFile.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to parse VMLINK_KNOWN_HOSTS: %w", err)
		}
		return callback, nil
	}

	// CI/CD: Option to skip host key verification (use with caution)
	if os.Getenv("VMLINK_SKIP_HOST_KEY_CHECK") == "true" {
		return ssh.InsecureIgnoreHostKey(), nil
	}

	home, err := homedir.Dir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine home directory: %w", err)
	}

	knownHostsPath := filepath.Join(home, ".ssh", "known_hosts")

	if _, err := os.Stat(knownHostsPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("SSH known_hosts file not found at %s. "+
			"Please connect to the host manually first with: ssh %s@%s -p %d\n"+
			"For CI/CD, set VMLINK_KNOWN_HOSTS or VMLINK_SKIP_HOST_KEY_CHECK=true",
			knownHostsPath, c.User, c.Host, c.Port)
	}

	callback, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read known_hosts: %w", err)
	}

	return callback, nil
}
