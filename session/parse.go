package session

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Input validation errors.
var (
	ErrInvalidBreakpoint = errors.New("invalid breakpoint")
	ErrInvalidTraceCount = errors.New("invalid trace count")
)

// ParseBreakpoint parses a hexadecimal address with an optional 0x prefix.
func ParseBreakpoint(text string) (uint32, error) {
	s := strings.TrimSpace(text)
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}

	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w %q: %w", ErrInvalidBreakpoint, text, err)
	}
	return uint32(v), nil
}

// ParseTraceCount parses a decimal instruction count.
func ParseTraceCount(text string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w %q: %w", ErrInvalidTraceCount, text, err)
	}
	return v, nil
}
