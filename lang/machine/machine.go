package machine

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/mna/tether/lang/bytecode"
	"github.com/mna/tether/lang/heap"
	"github.com/mna/tether/lang/symbol"
)

// Machine is the stack-based virtual machine (§4.F): the data stack, the
// call-frame stack, the bump heap, and the upvalue registry used to
// promote captured stack slots to the heap as scopes close. A Machine is
// reusable across Resume calls, which is how the REPL keeps top-level
// locals alive between turns: CompileTurn only ever appends bytecode
// after the position Resume last halted at.
type Machine struct {
	prog *bytecode.Program

	stack  []Value
	frames []frame
	cur    frame

	finished bool

	// err is the fatal error a previous Resume returned, if any; once set,
	// every later Resume returns it without executing anything.
	err error

	// Stdout receives PopPrint output; it defaults to os.Stdout but tests
	// substitute a buffer.
	Stdout io.Writer

	closures *heap.Arena[Closure]
	cells    *heap.Arena[UpvalueCell]
	lists    *heap.Arena[List]

	// openCells maps an absolute data-stack index to every still-open
	// UpvalueCell aliasing it (§3 "Upvalue registry"). An index with no
	// entry here has nothing capturing it.
	openCells map[int][]*UpvalueCell
}

// New returns a Machine positioned at the start of prog's entry function
// (index 0), with its data stack holding only the entry frame's reserved
// return slot.
func New(prog *bytecode.Program) *Machine {
	return &Machine{
		prog:      prog,
		stack:     []Value{None},
		cur:       frame{pc: 0, frameBase: 0, funcIndex: 0},
		Stdout:    os.Stdout,
		closures:  heap.NewArena[Closure](0),
		cells:     heap.NewArena[UpvalueCell](0),
		lists:     heap.NewArena[List](0),
		openCells: make(map[int][]*UpvalueCell),
	}
}

// Run executes prog's entry function from the beginning. It is sugar for
// batch (single-shot, non-REPL) execution.
func Run(prog *bytecode.Program) (*Machine, error) {
	m := New(prog)
	return m, m.Resume()
}

// Resume executes instructions starting at the machine's current program
// counter until a Finish instruction halts it or a fatal error occurs.
// Once Resume returns a non-nil error the machine is dead: every runtime
// error in this language is fatal (§7 "Error handling"), there is no
// try/catch to recover into.
func (m *Machine) Resume() error {
	if m.err != nil {
		return m.err
	}
	m.finished = false
	for !m.finished {
		if err := m.step(); err != nil {
			m.finished = true
			m.err = err
			return err
		}
	}
	return nil
}

func (m *Machine) fn() *bytecode.Function {
	return m.prog.Functions[m.cur.funcIndex]
}

func (m *Machine) step() error {
	code := m.fn().Code
	if m.cur.pc >= len(code) {
		return fmt.Errorf("program counter ran off the end of function %d", m.cur.funcIndex)
	}
	start := m.cur.pc
	op := bytecode.Op(code[m.cur.pc])
	operandAt := m.cur.pc + 1
	m.cur.pc += 1 + bytecode.OperandWidth(op)

	switch op {
	case bytecode.Nop:
		return nil

	case bytecode.Add, bytecode.Sub, bytecode.Mul, bytecode.Div, bytecode.Mod:
		return m.binaryArith(op)
	case bytecode.Eq:
		rhs, lhs := m.pop(), m.pop()
		m.push(Bool(equalValues(lhs, rhs)))
		return nil
	case bytecode.NotEq:
		rhs, lhs := m.pop(), m.pop()
		m.push(Bool(!equalValues(lhs, rhs)))
		return nil
	case bytecode.Lt, bytecode.Gt, bytecode.Le, bytecode.Ge:
		return m.orderCompare(op)

	case bytecode.PushInt:
		m.push(Int(bytecode.ReadI64(code, operandAt)))
		return nil
	case bytecode.PushFloat:
		m.push(Float(bytecode.ReadF64(code, operandAt)))
		return nil
	case bytecode.PushTrue:
		m.push(Bool(true))
		return nil
	case bytecode.PushFalse:
		m.push(Bool(false))
		return nil
	case bytecode.PushNone:
		m.push(None)
		return nil

	case bytecode.PushLoad:
		m.push(m.stack[m.cur.frameBase+int(code[operandAt])])
		return nil
	case bytecode.PopStore:
		m.stack[m.cur.frameBase+int(code[operandAt])] = m.pop()
		return nil
	case bytecode.PushClosureLoad:
		cell := m.cur.closure.Upvalues[code[operandAt]]
		m.push(cell.Get(m.stack))
		return nil
	case bytecode.PopClosureStore:
		cell := m.cur.closure.Upvalues[code[operandAt]]
		cell.Set(m.stack, m.pop())
		return nil

	case bytecode.PushPropLoad:
		return m.propLoad(code[operandAt])

	case bytecode.PopPropStore:
		return fmt.Errorf("pop_prop_store executed: unimplemented opcode, the compiler must never emit it")

	case bytecode.PushFunc:
		return m.pushFunc(bytecode.ReadU32(code, operandAt))
	case bytecode.PushList:
		return m.pushList(int(bytecode.ReadU32(code, operandAt)))

	case bytecode.Call:
		return m.call(int(code[operandAt]))
	case bytecode.Return:
		return m.ret()

	case bytecode.Jump:
		m.cur.pc = int(bytecode.ReadU32(code, operandAt))
		return nil
	case bytecode.JumpIfNot:
		v := m.pop()
		cond, ok := v.(Bool)
		if !ok {
			return fmt.Errorf("if/while condition must be bool, got %s", v.Type())
		}
		if !bool(cond) {
			m.cur.pc = int(bytecode.ReadU32(code, operandAt))
		}
		return nil

	case bytecode.Drop:
		return m.drop(int(code[operandAt]))
	case bytecode.PopPrint:
		fmt.Fprintln(m.Stdout, m.pop().String())
		return nil

	case bytecode.Finish:
		// Leave pc pointing at Finish's own byte, not past it: a REPL turn
		// truncates exactly that trailing byte and appends the next turn's
		// bytecode starting at this same offset, so Resume picks up right
		// where the previous turn left off instead of skipping a byte.
		m.finished = true
		m.cur.pc = start
		return nil

	default:
		return fmt.Errorf("illegal opcode %d at pc %d", op, m.cur.pc)
	}
}

func (m *Machine) push(v Value) { m.stack = append(m.stack, v) }

func (m *Machine) pop() Value {
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v
}

// binaryArith implements §4.F's arithmetic rule: Int op Int stays Int
// (with integer division/mod by zero a fatal error); mixing with a Float
// operand promotes the whole operation to Float, following IEEE 754 (so
// float division by zero yields Inf/NaN rather than erroring). The
// compiler never type-checks operands, so a non-numeric pair (e.g. Add
// Bool None) is only caught here, at run time.
func (m *Machine) binaryArith(op bytecode.Op) error {
	rhs, lhs := m.pop(), m.pop()
	li, liInt := lhs.(Int)
	ri, riInt := rhs.(Int)
	if liInt && riInt {
		v, err := intArith(op, int64(li), int64(ri))
		if err != nil {
			return err
		}
		m.push(Int(v))
		return nil
	}
	lf, lok := numeric(lhs)
	rf, rok := numeric(rhs)
	if !lok || !rok {
		return fmt.Errorf("cannot apply %s to %s and %s", op, lhs.Type(), rhs.Type())
	}
	m.push(Float(floatArith(op, lf, rf)))
	return nil
}

func intArith(op bytecode.Op, l, r int64) (int64, error) {
	switch op {
	case bytecode.Add:
		return l + r, nil
	case bytecode.Sub:
		return l - r, nil
	case bytecode.Mul:
		return l * r, nil
	case bytecode.Div:
		if r == 0 {
			return 0, fmt.Errorf("integer division by zero")
		}
		return l / r, nil
	case bytecode.Mod:
		if r == 0 {
			return 0, fmt.Errorf("integer modulo by zero")
		}
		return l % r, nil
	default:
		panic("unreachable int arith op")
	}
}

func floatArith(op bytecode.Op, l, r float64) float64 {
	switch op {
	case bytecode.Add:
		return l + r
	case bytecode.Sub:
		return l - r
	case bytecode.Mul:
		return l * r
	case bytecode.Div:
		return l / r
	case bytecode.Mod:
		return math.Mod(l, r)
	default:
		panic("unreachable float arith op")
	}
}

// orderCompare implements the ordered comparisons (Lt/Gt/Le/Ge): only
// Int/Float operands are ordered (mixed pairs promote to Float exactly
// like arithmetic); any other pairing is a runtime error, unlike ==/!=
// which simply report false across types (§4.F).
func (m *Machine) orderCompare(op bytecode.Op) error {
	rhs, lhs := m.pop(), m.pop()
	if li, ok := lhs.(Int); ok {
		if ri, ok := rhs.(Int); ok {
			m.push(Bool(intCompare(op, int64(li), int64(ri))))
			return nil
		}
	}
	lf, lok := numeric(lhs)
	rf, rok := numeric(rhs)
	if !lok || !rok {
		return fmt.Errorf("cannot order-compare %s and %s", lhs.Type(), rhs.Type())
	}
	m.push(Bool(floatCompare(op, lf, rf)))
	return nil
}

func intCompare(op bytecode.Op, l, r int64) bool {
	switch op {
	case bytecode.Lt:
		return l < r
	case bytecode.Gt:
		return l > r
	case bytecode.Le:
		return l <= r
	case bytecode.Ge:
		return l >= r
	default:
		panic("unreachable int compare op")
	}
}

func floatCompare(op bytecode.Op, l, r float64) bool {
	switch op {
	case bytecode.Lt:
		return l < r
	case bytecode.Gt:
		return l > r
	case bytecode.Le:
		return l <= r
	case bytecode.Ge:
		return l >= r
	default:
		panic("unreachable float compare op")
	}
}

// propLoad implements PushPropLoad: the popped receiver must be an
// Extension; its GetProperty is the only place host code may run during
// execution, and it must not mutate the data stack beyond returning its
// result (§5 "Concurrency").
func (m *Machine) propLoad(symOperand byte) error {
	recv := m.pop()
	ext, ok := recv.(Extension)
	if !ok {
		return fmt.Errorf("cannot access property on a %s", recv.Type())
	}
	v, err := ext.GetProperty(m, symbol.Symbol(symOperand))
	if err != nil {
		return err
	}
	m.push(v)
	return nil
}

// pushFunc implements PushFunc: it builds a new Closure for the target
// function, resolving each capture descriptor against the CURRENT frame
// (§4.F). FromOuterCapture reuses — by pointer — the current closure's own
// cell. FromOuterLocal reuses whatever Open cell is already registered for
// that stack slot, if any (another sibling closure may have captured the
// same local first), and only allocates a fresh one otherwise; this is
// what gives two closures capturing the same enclosing local a single
// shared cell that survives the local's promotion to the heap.
func (m *Machine) pushFunc(index uint32) error {
	target := m.prog.Functions[index]
	upvalues := make([]*UpvalueCell, len(target.Captures))
	for i, desc := range target.Captures {
		switch desc.Kind {
		case bytecode.FromOuterLocal:
			abs := m.cur.frameBase + desc.Index
			if cells := m.openCells[abs]; len(cells) > 0 {
				upvalues[i] = cells[0]
				break
			}
			cell := m.cells.Alloc(UpvalueCell{stackIndex: abs})
			m.openCells[abs] = append(m.openCells[abs], cell)
			upvalues[i] = cell
		case bytecode.FromOuterCapture:
			upvalues[i] = m.cur.closure.Upvalues[desc.Index]
		default:
			return fmt.Errorf("illegal capture descriptor kind %d", desc.Kind)
		}
	}
	closure := m.closures.Alloc(Closure{FuncIndex: int(index), Upvalues: upvalues})
	m.push(closure)
	return nil
}

func (m *Machine) pushList(n int) error {
	items := m.lists.Alloc(List{Items: append([]Value(nil), m.stack[len(m.stack)-n:]...)})
	m.stack = m.stack[:len(m.stack)-n]
	m.push(items)
	return nil
}

// call implements Call (§4.F): the closure is on top, argc arguments
// below it, and the pre-pushed return slot below those. argc must equal
// the callee's declared arity or it's a fatal runtime error (invariant 4).
func (m *Machine) call(argc int) error {
	v := m.pop()
	closure, ok := v.(*Closure)
	if !ok {
		return fmt.Errorf("cannot call a %s", v.Type())
	}
	target := m.prog.Functions[closure.FuncIndex]
	if argc != target.ParamCount {
		return fmt.Errorf("call to %s expected %d argument(s), got %d", target.Name, target.ParamCount, argc)
	}
	m.frames = append(m.frames, m.cur)
	m.cur = frame{
		pc:        0,
		frameBase: len(m.stack) - argc - 1,
		funcIndex: closure.FuncIndex,
		closure:   closure,
	}
	return nil
}

// ret implements Return. By the time Return executes, the compiler has
// already emitted a Drop clearing every local above the return slot
// (params for a fall-through synthesized Return, or the statically-known
// in-scope count for an explicit `return`), so exactly one value — the
// result — remains above frameBase.
func (m *Machine) ret() error {
	if len(m.frames) == 0 {
		return fmt.Errorf("return from the entry frame")
	}
	result := m.pop()
	m.stack = m.stack[:m.cur.frameBase]
	m.push(result)
	m.cur = m.frames[len(m.frames)-1]
	m.frames = m.frames[:len(m.frames)-1]
	return nil
}

// drop implements Drop n: the upvalue promotion protocol (§4.F). For each
// of the top n stack slots, top to bottom, any open cells registered
// against it are closed over a heap-allocated copy of its current value
// and removed from the registry; the slot is then popped. A slot with no
// open cells is simply popped.
func (m *Machine) drop(n int) error {
	base := len(m.stack) - n
	if base < 0 {
		return fmt.Errorf("stack underflow on drop %d: impossible with a correct compiler", n)
	}
	for i := len(m.stack) - 1; i >= base; i-- {
		if cells, ok := m.openCells[i]; ok {
			v := m.stack[i]
			for _, cell := range cells {
				cell.Close(v)
			}
			delete(m.openCells, i)
		}
	}
	m.stack = m.stack[:base]
	return nil
}
