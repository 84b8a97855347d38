package compiler

import (
	"fmt"
	"strings"

	"github.com/mna/tether/lang/bytecode"
	"github.com/mna/tether/lang/symbol"
)

// Disassemble renders every function in prog as human-readable text, one
// instruction per line prefixed with its byte offset. It is a pure
// function of prog's data, so calling it twice on the same Program yields
// byte-identical output, and every offset it prints is an instruction
// boundary of the function's code (the round-trip disassembly property,
// checked by TestDisassembleOffsetsMatchInstructionBoundaries).
//
// Grounded on original_source/src/func.rs's Display impl, which walks a
// single function's bytecode printing one opcode (plus decoded operand)
// per line; generalized here to prog's whole function table and to the
// fixed-width operand encoding of §4.C.
func Disassemble(prog *bytecode.Program) string {
	var b strings.Builder
	for i, fn := range prog.Functions {
		fmt.Fprintf(&b, "func %d %s(params=%d, captures=%d)\n", i, fn.Name, fn.ParamCount, len(fn.Captures))
		disassembleFunc(&b, prog, fn)
	}
	return b.String()
}

func disassembleFunc(b *strings.Builder, prog *bytecode.Program, fn *bytecode.Function) {
	code := fn.Code
	for pc := 0; pc < len(code); {
		op := bytecode.Op(code[pc])
		width := bytecode.OperandWidth(op)
		switch op {
		case bytecode.PushInt:
			v := bytecode.ReadI64(code, pc+1)
			fmt.Fprintf(b, "  %04d %-18s %d\n", pc, op, v)
			pc += 9
			continue
		case bytecode.PushFloat:
			v := bytecode.ReadF64(code, pc+1)
			fmt.Fprintf(b, "  %04d %-18s %g\n", pc, op, v)
			pc += 9
			continue
		}
		switch width {
		case 0:
			fmt.Fprintf(b, "  %04d %s\n", pc, op)
			pc++
		case 1:
			v := code[pc+1]
			if op == bytecode.PushPropLoad || op == bytecode.PopPropStore {
				fmt.Fprintf(b, "  %04d %-18s %d (%s)\n", pc, op, v, prog.Symbols.Name(symbol.Symbol(v)))
			} else {
				fmt.Fprintf(b, "  %04d %-18s %d\n", pc, op, v)
			}
			pc += 2
		case 4:
			v := bytecode.ReadU32(code, pc+1)
			if op == bytecode.PushFunc {
				fmt.Fprintf(b, "  %04d %-18s #%d\n", pc, op, v)
			} else {
				fmt.Fprintf(b, "  %04d %-18s -> %04d\n", pc, op, v)
			}
			pc += 5
		default:
			fmt.Fprintf(b, "  %04d %-18s <unknown width>\n", pc, op)
			pc++
		}
	}
}
