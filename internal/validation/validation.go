// Package validation checks values received from untrusted callers before
// they are joined into content paths or used as output locations.
package validation

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/FocuswithJustin/JuniperReader/core/errors"
)

// Limits on caller-supplied values.
const (
	// MaxSegmentLength is the maximum length of one path segment, in bytes.
	MaxSegmentLength = 255
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
)

// ValidateSegment checks that value can be used as a single path segment:
// non-empty, at most MaxSegmentLength bytes, not "." or "..", and free of
// path separators, NUL and control characters.
func ValidateSegment(field, value string) error {
	invalid := func(msg string) error {
		return &errors.ValidationError{Field: field, Value: value, Message: msg}
	}

	if value == "" {
		return invalid("must not be empty")
	}

	if len(value) > MaxSegmentLength {
		return invalid(fmt.Sprintf("longer than %d bytes", MaxSegmentLength))
	}

	if value == "." || value == ".." {
		return invalid("reserved name")
	}

	if strings.ContainsAny(value, "/\\") {
		return invalid("path separator not allowed")
	}

	for _, r := range value {
		if r == 0 {
			return invalid("null byte not allowed")
		}
		if unicode.IsControl(r) {
			return invalid("control character not allowed")
		}
	}

	return nil
}

// ValidateSegments checks field/value pairs in order and returns the first failure.
func ValidateSegments(pairs ...[2]string) error {
	for _, p := range pairs {
		if err := ValidateSegment(p[0], p[1]); err != nil {
			return err
		}
	}
	return nil
}

// ParseChapterNumber parses a positive decimal chapter number.
func ParseChapterNumber(field, value string) (uint32, error) {
	n, err := strconv.ParseUint(value, 10, 32)
	if err != nil || n == 0 {
		return 0, &errors.ValidationError{
			Field:   field,
			Value:   value,
			Message: "must be a positive integer",
		}
	}
	return uint32(n), nil
}

// ValidatePath performs path validation without requiring a base directory.
// It checks length limits and rejects NUL and control characters.
func ValidatePath(path string) error {
	if path == "" {
		return errors.NewValidation("path", "path cannot be empty")
	}

	if len(path) > MaxPathLength {
		return errors.NewValidation("path", "path too long")
	}

	for _, r := range path {
		if unicode.IsControl(r) {
			return errors.NewValidation("path", "control character not allowed")
		}
	}

	return nil
}
