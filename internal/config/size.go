package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseSize parses a human-readable size string into bytes.
// Supports: 100, 100B, 100K, 100M, 100G, 100T (case-insensitive), in powers
// of 1024.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	multiplier := int64(1)
	numStr := s[:len(s)-1]
	switch strings.ToUpper(s[len(s)-1:]) {
	case "B":
	case "K":
		multiplier = 1 << 10
	case "M":
		multiplier = 1 << 20
	case "G":
		multiplier = 1 << 30
	case "T":
		multiplier = 1 << 40
	default:
		numStr = s
	}

	if numStr == "" {
		return 0, fmt.Errorf("invalid size: %q", s)
	}

	var n int64
	if i, err := strconv.ParseInt(numStr, 10, 64); err == nil {
		n = i * multiplier
	} else {
		f, err := strconv.ParseFloat(numStr, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid size: %q", s)
		}
		n = int64(f * float64(multiplier))
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid size: %q is negative", s)
	}
	return n, nil
}
