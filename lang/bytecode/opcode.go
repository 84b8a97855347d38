// Package bytecode defines the instruction set, the linear code layout and
// its jump-patching protocol, and the compiled function/program shapes
// (§4.C). It is the wire format the compiler emits and the machine
// executes; it holds no compile-time or run-time state of its own.
package bytecode

import "fmt"

// Op is a single bytecode instruction opcode.
type Op uint8

//nolint:revive
const (
	Nop Op = iota

	Add
	Sub
	Mul
	Div
	Mod

	Eq
	NotEq
	Lt
	Gt
	Le
	Ge

	PushInt
	PushFloat
	PushTrue
	PushFalse
	PushNone

	PushLoad
	PopStore
	PushClosureLoad
	PopClosureStore
	PushPropLoad
	PopPropStore

	PushFunc
	PushList

	Call
	Return

	Jump
	JumpIfNot

	Drop
	PopPrint

	Finish
)

var opNames = [...]string{
	Nop:             "nop",
	Add:             "add",
	Sub:             "sub",
	Mul:             "mul",
	Div:             "div",
	Mod:             "mod",
	Eq:              "eq",
	NotEq:           "noteq",
	Lt:              "lt",
	Gt:              "gt",
	Le:              "le",
	Ge:              "ge",
	PushInt:         "push_int",
	PushFloat:       "push_float",
	PushTrue:        "push_true",
	PushFalse:       "push_false",
	PushNone:        "push_none",
	PushLoad:        "push_load",
	PopStore:        "pop_store",
	PushClosureLoad: "push_closure_load",
	PopClosureStore: "pop_closure_store",
	PushPropLoad:    "push_prop_load",
	PopPropStore:    "pop_prop_store",
	PushFunc:        "push_func",
	PushList:        "push_list",
	Call:            "call",
	Return:          "return",
	Jump:            "jump",
	JumpIfNot:       "jump_if_not",
	Drop:            "drop",
	PopPrint:        "pop_print",
	Finish:          "finish",
}

func (op Op) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return fmt.Sprintf("illegal op (%d)", op)
}

// Operand widths in bytes, as returned by OperandWidth: none, a u8, a u32,
// and the 8-byte operand of PushInt/PushFloat.
const (
	widthNone  = 0
	widthU8    = 1
	widthU32   = 4
	widthFixed = 8
)

// OperandWidth returns how many operand bytes follow op's opcode byte.
func OperandWidth(op Op) int {
	switch op {
	case PushInt, PushFloat:
		return widthFixed
	case PushLoad, PopStore, PushClosureLoad, PopClosureStore,
		PushPropLoad, PopPropStore, Call, Drop:
		return widthU8
	case PushFunc, PushList, Jump, JumpIfNot:
		return widthU32
	default:
		return widthNone
	}
}
