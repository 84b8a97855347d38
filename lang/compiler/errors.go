package compiler

import (
	"errors"
	"fmt"

	"github.com/mna/tether/lang/token"
)

// ErrEndOfInput signals that compilation stopped because the token stream
// ran out mid-construct (e.g. an unclosed block or a dangling operator). A
// REPL treats this as "keep buffering, prompt for continuation"; a batch
// run treats it as a fatal syntax error like any other.
var ErrEndOfInput = errors.New("unexpected end of input")

// InvalidInputError is a syntax error at a specific byte offset into the
// source the Compiler was given. Line/column are not computed eagerly —
// callers that want to pretty-print the location call token.PositionOf on
// demand (§7: "line/col computed on demand only for pretty-printing").
type InvalidInputError struct {
	Offset int
	Msg    string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input at offset %d: %s", e.Offset, e.Msg)
}

func invalidInput(tok token.Token, format string, args ...any) error {
	return &InvalidInputError{Offset: tok.Offset, Msg: fmt.Sprintf(format, args...)}
}
