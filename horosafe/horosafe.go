// Package horosafe provides the file-system and I/O guards used when audit
// names and remote script sources reach the disk or the network: path
// traversal checks, file-name sanitisation, and bounded reads.
package horosafe

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// MaxNameLen bounds sanitised file names (before the extension).
const MaxNameLen = 128

// DefaultName replaces names that sanitise to nothing.
const DefaultName = "axe-results"

// ErrPathTraversal is returned when a user-supplied path escapes its base.
var ErrPathTraversal = errors.New("horosafe: path traversal detected")

// SafePath validates that joining base and userInput does not escape base.
// Returns the cleaned path or ErrPathTraversal.
func SafePath(base, userInput string) (string, error) {
	if strings.Contains(userInput, "..") {
		return "", ErrPathTraversal
	}
	cleaned := filepath.Join(base, filepath.Clean("/"+userInput))
	if !strings.HasPrefix(cleaned, filepath.Clean(base)+string(filepath.Separator)) &&
		cleaned != filepath.Clean(base) {
		return "", ErrPathTraversal
	}
	return cleaned, nil
}

// SanitizeName maps an arbitrary label (a test name such as
// "TestAudit/include exclude") to a file-name stem. Runs of characters
// outside ValidateIdentifier's set collapse to one underscore; leading and
// trailing separators and dots are trimmed. The mapping is deterministic.
func SanitizeName(name string) string {
	var sb strings.Builder
	sb.Grow(len(name))
	pendingSep := false
	for _, r := range name {
		if isIdentChar(r) {
			if pendingSep && sb.Len() > 0 {
				sb.WriteByte('_')
			}
			pendingSep = false
			sb.WriteRune(r)
			continue
		}
		pendingSep = true
	}

	out := strings.Trim(sb.String(), "._-")
	// ".." inside a stem would trip SafePath.
	for strings.Contains(out, "..") {
		out = strings.ReplaceAll(out, "..", ".")
	}
	if len(out) > MaxNameLen {
		out = strings.TrimRight(out[:MaxNameLen], "._-")
	}
	if out == "" {
		return DefaultName
	}
	return out
}

// ValidateIdentifier rejects identifiers that contain characters unsuitable
// for file names or URL path segments. Allows alphanumeric, underscore,
// hyphen, and dot.
func ValidateIdentifier(s string) error {
	if s == "" {
		return fmt.Errorf("horosafe: identifier must not be empty")
	}
	if len(s) > 256 {
		return fmt.Errorf("horosafe: identifier too long (max 256)")
	}
	if strings.Contains(s, "..") {
		return ErrPathTraversal
	}
	for _, r := range s {
		if !isIdentChar(r) {
			return fmt.Errorf("horosafe: invalid character %q in identifier", r)
		}
	}
	return nil
}

// LimitedReadAll reads at most maxBytes from r. Returns an error if the
// limit is exceeded.
func LimitedReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	lr := io.LimitReader(r, maxBytes+1)
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("horosafe: response exceeds %d bytes", maxBytes)
	}
	return data, nil
}

func isIdentChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_' || r == '-' || r == '.'
}
