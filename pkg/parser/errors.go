package parser

import (
	"fmt"

	"github.com/leapstack-labs/sqlgate/pkg/token"
)

// ParseError represents a parsing error with position information.
type ParseError struct {
	Pos     token.Position
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// Common error messages
const (
	ErrUnexpectedToken = "unexpected token %s, expected %s"
	ErrEmptyStatement  = "empty statement"
	ErrTrailingInput   = "unexpected %s after end of statement"
	ErrUnsupported     = "%s is not supported"
)
