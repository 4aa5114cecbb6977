package assembler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var sizePattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([KMGT]?B?)$`)

// ParseSize parses a human-readable size such as "10MB", "1.5 GB" or
// "2048" (plain bytes). Units are case-insensitive and binary
// (1 KB = 1024 bytes).
func ParseSize(input string) (int64, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(input))
	match := sizePattern.FindStringSubmatch(trimmed)
	if match == nil {
		return 0, fmt.Errorf("invalid size %q", input)
	}

	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %v", input, err)
	}

	var multiplier float64
	switch strings.TrimSuffix(match[2], "B") {
	case "":
		multiplier = 1
	case "K":
		multiplier = 1 << 10
	case "M":
		multiplier = 1 << 20
	case "G":
		multiplier = 1 << 30
	case "T":
		multiplier = 1 << 40
	}
	return int64(value * multiplier), nil
}
