package compiler

import (
	"fmt"

	"github.com/mna/tether/lang/bytecode"
	"github.com/mna/tether/lang/symbol"
)

// varKind is the result of resolve: where (if anywhere) a name is bound.
type varKind int

const (
	varUnresolved varKind = iota
	varLocal
	varCapture
)

// funcBuilder is the per-function compile-time state (§4.D): the local
// scope vector, the lazily-built capture descriptor list, and a
// back-reference to the immediately enclosing builder (nil for the
// top-level function). It resolves names to stack slots or upvalue
// indices and owns the bytes emitted for its function.
type funcBuilder struct {
	fn    *bytecode.Function
	index int

	locals       []symbol.Symbol // index into this == the runtime slot
	captureNames []symbol.Symbol // parallel to fn.Captures, compile-time only

	outer *funcBuilder
}

func newFuncBuilder(fn *bytecode.Function, index int, outer *funcBuilder) *funcBuilder {
	return &funcBuilder{
		fn:     fn,
		index:  index,
		locals: []symbol.Symbol{symbol.Return},
		outer:  outer,
	}
}

func (fb *funcBuilder) emitOp(op bytecode.Op) int      { return fb.fn.Code.EmitOp(op) }
func (fb *funcBuilder) emitU8(op bytecode.Op, v int) int {
	return fb.fn.Code.EmitU8(op, uint8(v))
}
func (fb *funcBuilder) emitU32(op bytecode.Op, v uint32) int { return fb.fn.Code.EmitU32(op, v) }
func (fb *funcBuilder) emitI64(v int64)                      { fb.fn.Code.EmitI64(bytecode.PushInt, v) }
func (fb *funcBuilder) emitF64(v float64)                    { fb.fn.Code.EmitF64(bytecode.PushFloat, v) }
func (fb *funcBuilder) here() uint32                         { return fb.fn.Code.Here() }
func (fb *funcBuilder) patch(at int, target uint32)          { fb.fn.Code.Patch(at, target) }

// resolveLocal scans most-recent-first so shadowing resolves to the
// innermost definition.
func (fb *funcBuilder) resolveLocal(sym symbol.Symbol) (int, bool) {
	for i := len(fb.locals) - 1; i >= 0; i-- {
		if fb.locals[i] == sym {
			return i, true
		}
	}
	return 0, false
}

func (fb *funcBuilder) resolveCapture(sym symbol.Symbol) (int, bool) {
	for i, n := range fb.captureNames {
		if n == sym {
			return i, true
		}
	}
	return 0, false
}

// resolve is the key algorithm of §4.D: it mutates each enclosing builder
// that didn't already see sym, threading a capture descriptor chain
// through every intermediate closure. It is late-binding by slot (the
// descriptor records a slot/index number, not a name) but early-binding by
// path (once recorded, later references in the same builder reuse it).
func (fb *funcBuilder) resolve(sym symbol.Symbol) (varKind, int) {
	if i, ok := fb.resolveLocal(sym); ok {
		return varLocal, i
	}
	if i, ok := fb.resolveCapture(sym); ok {
		return varCapture, i
	}
	if fb.outer == nil {
		return varUnresolved, 0
	}
	kind, idx := fb.outer.resolve(sym)
	var desc bytecode.CaptureDescriptor
	switch kind {
	case varUnresolved:
		return varUnresolved, 0
	case varLocal:
		desc = bytecode.CaptureDescriptor{Kind: bytecode.FromOuterLocal, Index: idx}
	case varCapture:
		desc = bytecode.CaptureDescriptor{Kind: bytecode.FromOuterCapture, Index: idx}
	default:
		panic("unreachable resolve kind")
	}
	fb.fn.Captures = append(fb.fn.Captures, desc)
	fb.captureNames = append(fb.captureNames, sym)
	return varCapture, len(fb.fn.Captures) - 1
}

// defineLocal appends a new local binding and returns its slot.
func (fb *funcBuilder) defineLocal(sym symbol.Symbol) (int, error) {
	if len(fb.locals) >= 256 {
		return 0, fmt.Errorf("too many locals in function (limit 255)")
	}
	fb.locals = append(fb.locals, sym)
	return len(fb.locals) - 1, nil
}

// freeLocals truncates the n most recently defined locals and emits the
// Drop that performs upvalue promotion for any of them captured by a
// nested closure (§4.F).
func (fb *funcBuilder) freeLocals(n int) {
	fb.locals = fb.locals[:len(fb.locals)-n]
	fb.emitU8(bytecode.Drop, n)
}

// pushVar emits the load instruction appropriate to how sym resolved.
func (fb *funcBuilder) pushVar(kind varKind, idx int) {
	if kind == varLocal {
		fb.emitU8(bytecode.PushLoad, idx)
	} else {
		fb.emitU8(bytecode.PushClosureLoad, idx)
	}
}

// popVar emits the store instruction appropriate to how sym resolved.
func (fb *funcBuilder) popVar(kind varKind, idx int) {
	if kind == varLocal {
		fb.emitU8(bytecode.PopStore, idx)
	} else {
		fb.emitU8(bytecode.PopClosureStore, idx)
	}
}
