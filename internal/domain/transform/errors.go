package transform

import (
	"errors"
	"fmt"
)

// ParseError reports source whose export could not be identified or
// which failed to parse or transpile
type ParseError struct {
	Message string
	Line    int
	Column  int
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error at %d:%d: %s", e.Line, e.Column, e.Message)
	}
	return "parse error: " + e.Message
}

// IsParseError reports whether err wraps a *ParseError
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
