package rewrite

import (
	"errors"
	"fmt"

	"github.com/dop251/goja/parser"
)

// ParseError reports input the JavaScript parser rejected. Line and Column
// are 1-based and refer to the first error the parser found.
type ParseError struct {
	Err     error
	Message string
	Line    int
	Column  int
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("SyntaxError: %s (line %d, column %d)", e.Message, e.Line, e.Column)
	}
	return "SyntaxError: " + e.Message
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func newParseError(err error) *ParseError {
	pe := &ParseError{Err: err, Message: err.Error()}
	var list parser.ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		pe.Message = list[0].Message
		pe.Line = list[0].Position.Line
		pe.Column = list[0].Position.Column
		return pe
	}
	var single *parser.Error
	if errors.As(err, &single) {
		pe.Message = single.Message
		pe.Line = single.Position.Line
		pe.Column = single.Position.Column
	}
	return pe
}
