package bytecode

import "github.com/mna/tether/lang/symbol"

// CaptureKind distinguishes the two ways a nested function's upvalue may
// be sourced, resolved once at compile time (§3 "Capture descriptor").
type CaptureKind uint8

const (
	// FromOuterLocal: the captured variable lives as a local in the
	// immediately enclosing function at frame-relative slot Index.
	FromOuterLocal CaptureKind = iota
	// FromOuterCapture: the captured variable is itself a capture of the
	// enclosing function, at capture index Index.
	FromOuterCapture
)

func (k CaptureKind) String() string {
	if k == FromOuterCapture {
		return "outer_capture"
	}
	return "outer_local"
}

// CaptureDescriptor records how a nested function's i-th upvalue is
// sourced from its enclosing function.
type CaptureDescriptor struct {
	Kind  CaptureKind
	Index int
}

// Function is a compiled function. A nested function is complete once the
// compiler has compiled its body; the entry function's Code is extended by
// each later REPL turn. ParamCount is the function's arity; Params names the
// parameter symbols for disassembly/reflection only.
type Function struct {
	Name       string
	Code       Code
	ParamCount int
	Captures   []CaptureDescriptor
	Params     []symbol.Symbol
}

// Program is the compiled artifact: an ordered, append-only table of
// compiled functions plus the symbol table they share. Function index 0 is
// the entry ("top-level") function. Indices are stable: later compilations
// (subsequent REPL turns) only ever append.
type Program struct {
	Functions []*Function
	Symbols   *symbol.Table
}

// NewProgram returns a Program with an (empty, unbuilt) entry function
// already reserved at index 0.
func NewProgram() *Program {
	return &Program{
		Functions: []*Function{{Name: "toplevel"}},
		Symbols:   symbol.NewTable(),
	}
}
