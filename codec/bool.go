package codec

import (
	"fmt"
	"strings"
)

// ParseBool accepts true/false, 1/0, t/f, yes/no, y/n and on/off, case-insensitively.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "t", "yes", "y", "on":
		return true, nil
	case "false", "0", "f", "no", "n", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}

// FormatBool renders the canonical "true"/"false".
func FormatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
