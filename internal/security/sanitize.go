package security

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// targetNameRegex validates target configuration names
	// Allows: letters, numbers, underscores, hyphens
	// Length: 1-64 characters
	targetNameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9_-]{0,62}[a-zA-Z0-9])?$`)

	// hostRegex validates hostnames and IPv4/IPv6 literals
	hostRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9.:_-]{0,252}[a-zA-Z0-9])?$`)

	// unixUserRegex validates Unix usernames, standard POSIX rules
	unixUserRegex = regexp.MustCompile(`^[a-z_][a-z0-9_-]{0,31}$`)

	// sensitivePatterns used by SanitizeCommandForLog to mask secrets
	sensitiveLogPatterns = []string{
		"PASSWORD=",
		"PASSPHRASE=",
		"TOKEN=",
		"SECRET=",
		"DATABASE_URL=",
	}
)

// ValidateTargetName validates a target configuration name
func ValidateTargetName(name string) error {
	if name == "" {
		return fmt.Errorf("target name cannot be empty")
	}
	if len(name) > 64 {
		return fmt.Errorf("target name too long (max 64 characters)")
	}
	if !targetNameRegex.MatchString(name) {
		return fmt.Errorf("target name must contain only letters, numbers, underscores, and hyphens")
	}
	return nil
}

// ValidateHost validates a hostname or IP literal
func ValidateHost(host string) error {
	if host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if !hostRegex.MatchString(host) {
		return fmt.Errorf("invalid host %q", host)
	}
	return nil
}

// ValidateUnixUser validates a remote username
func ValidateUnixUser(user string) error {
	if user == "" {
		return fmt.Errorf("user cannot be empty")
	}
	if !unixUserRegex.MatchString(user) {
		return fmt.Errorf("invalid user %q", user)
	}
	return nil
}

// ShellEscape wraps a string in single quotes for safe use in a shell command
func ShellEscape(s string) string {
	// Replace single quotes with the POSIX escape sequence: end quote, escaped quote, start quote
	escaped := strings.ReplaceAll(s, "'", "'\\''")
	return "'" + escaped + "'"
}

// SanitizeCommandForLog masks sensitive values in a command before logging
func SanitizeCommandForLog(cmd string) string {
	result := cmd

	for _, pattern := range sensitiveLogPatterns {
		searchFrom := 0
		for {
			idx := strings.Index(result[searchFrom:], pattern)
			if idx == -1 {
				break
			}
			absIdx := searchFrom + idx
			// Find the end of the value (next space or end of string)
			valueStart := absIdx + len(pattern)
			valueEnd := findValueEnd(result, valueStart)
			masked := "****"
			result = result[:valueStart] + masked + result[valueEnd:]
			// Advance past the replacement to avoid infinite loop
			searchFrom = valueStart + len(masked)
		}
	}

	return result
}

// findValueEnd finds where a shell value ends (handles quoted and unquoted values)
func findValueEnd(s string, start int) int {
	if start >= len(s) {
		return len(s)
	}

	if s[start] == '\'' || s[start] == '"' {
		quote := s[start]
		for i := start + 1; i < len(s); i++ {
			if s[i] == quote {
				return i + 1
			}
		}
		return len(s)
	}

	for i := start; i < len(s); i++ {
		if s[i] == ' ' {
			return i
		}
	}
	return len(s)
}
