// Package repl implements the stateful read-eval-print loop's turn
// buffering: accumulating continuation lines until a turn compiles, then
// running it against a Machine that persists across turns. The prompt
// strings are defined here; the actual line-reading loop lives in
// internal/maincmd, which is the external collaborator that owns stdio (§1 Non-goals:
// "REPL input loop ... not part of the core").
package repl

import (
	"errors"
	"io"
	"strings"

	"github.com/mna/tether/lang/compiler"
	"github.com/mna/tether/lang/machine"
)

// Prompt strings, grounded on the teacher's CLI conventions.
const (
	PromptMain         = ">>> "
	PromptContinuation = "... "
)

// REPL holds the one Compiler and one Machine that live for the whole
// session: top-level locals, the program's function/symbol tables, and
// the data stack all persist from turn to turn (§ "REPL" in
// SPEC_FULL.md). A turn spanning multiple input lines (e.g. an unclosed
// block) is buffered until it compiles or is rejected outright.
type REPL struct {
	comp *compiler.Compiler
	mach *machine.Machine

	buf     strings.Builder
	lastSrc string
}

// New returns a REPL whose output goes to stdout.
func New(stdout io.Writer) *REPL {
	comp := compiler.New()
	m := machine.New(comp.Program())
	m.Stdout = stdout
	return &REPL{comp: comp, mach: m}
}

// Feed appends line to the current turn's buffered source and attempts to
// compile and run it. continuing is true when the turn is valid so far
// but incomplete (an unclosed block or a dangling operator): the caller
// should prompt for another line and call Feed again, which will retry
// the whole accumulated buffer — this is what the "REPL idempotence"
// property (§8) requires: compiling the complete input in one shot must
// behave identically to compiling it across however many continuation
// lines it took to arrive.
//
// On any other error the turn is dropped (the buffer resets) and the
// caller should report err. After a compile error, compiler.CompileTurn
// has already rolled back any partial state, so the Program/Machine are
// exactly as they were before this turn began. A runtime error is fatal
// to the Machine: every later turn that compiles returns that same error
// without running.
func (r *REPL) Feed(line string) (continuing bool, err error) {
	if r.buf.Len() > 0 {
		r.buf.WriteByte('\n')
	}
	r.buf.WriteString(line)
	src := r.buf.String()

	if err := r.comp.CompileTurn(src); err != nil {
		if errors.Is(err, compiler.ErrEndOfInput) {
			return true, nil
		}
		r.lastSrc = src
		r.buf.Reset()
		return false, err
	}
	r.buf.Reset()
	if err := r.mach.Resume(); err != nil {
		return false, err
	}
	return false, nil
}

// LastSource returns the buffered source of the most recent turn that
// failed with a non-continuable error, for translating an
// InvalidInputError's byte offset into a line/column.
func (r *REPL) LastSource() string { return r.lastSrc }
