package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bytedance/sonic"
)

// Input limits
const (
	MaxIDLength    = 128
	MaxTitleLength = 256
	MaxContentSize = 1 << 20 // panel source
	MaxDataSize    = 4 << 20 // one data push, frames included
	MaxDataDepth   = 32
	MaxMessageSize = MaxDataSize + 64<<10 // websocket frame around a data push
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// InvalidError rejects one input field
type InvalidError struct {
	Field  string
	Reason string
}

func (e *InvalidError) Error() string {
	return e.Field + " " + e.Reason
}

func invalid(field, format string, args ...interface{}) error {
	return &InvalidError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsInvalid reports whether err rejects client input
func IsInvalid(err error) bool {
	var e *InvalidError
	return errors.As(err, &e)
}

// ValidateID checks a panel id. Empty passes unless required.
func ValidateID(v, field string, required bool) error {
	switch {
	case v == "" && required:
		return invalid(field, "is required")
	case v == "":
		return nil
	case len(v) > MaxIDLength:
		return invalid(field, "exceeds %d characters", MaxIDLength)
	case !idPattern.MatchString(v):
		return invalid(field, "may only contain letters, digits, '-' and '_'")
	}
	return nil
}

// ValidateTitle checks a panel title. Empty passes.
func ValidateTitle(title string) error {
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return invalid("title", "exceeds %d characters", MaxTitleLength)
	}
	return checkText("title", title)
}

// ValidateContent checks panel source. Empty passes.
func ValidateContent(content string) error {
	if len(content) > MaxContentSize {
		return invalid("content", "is %d bytes, limit %d", len(content), MaxContentSize)
	}
	return checkText("content", content)
}

// ValidateJSON checks a raw payload before decoding: size, syntax and
// nesting depth
func ValidateJSON(field string, raw []byte, maxSize int) error {
	if len(raw) > maxSize {
		return invalid(field, "is %d bytes, limit %d", len(raw), maxSize)
	}
	if !sonic.Valid(raw) {
		return invalid(field, "is not valid JSON")
	}
	if d := jsonDepth(raw); d > MaxDataDepth {
		return invalid(field, "nests %d levels, limit %d", d, MaxDataDepth)
	}
	return nil
}

func checkText(field, v string) error {
	if !utf8.ValidString(v) || strings.ContainsRune(v, 0) {
		return invalid(field, "contains invalid characters")
	}
	return nil
}

// jsonDepth returns the deepest object or array nesting in raw, skipping
// string contents
func jsonDepth(raw []byte) int {
	var depth, deepest int
	var inString, escaped bool
	for _, b := range raw {
		switch {
		case escaped:
			escaped = false
		case inString:
			if b == '\\' {
				escaped = true
			} else if b == '"' {
				inString = false
			}
		case b == '"':
			inString = true
		case b == '{' || b == '[':
			depth++
			if depth > deepest {
				deepest = depth
			}
		case b == '}' || b == ']':
			depth--
		}
	}
	return deepest
}
