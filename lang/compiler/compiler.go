// Package compiler implements the single-pass compiler (§4.E): a
// recursive-descent, one-token-lookahead parser that resolves lexical
// scope and synthesizes upvalue capture chains while emitting bytecode
// directly, with no intermediate AST or resolver pass.
package compiler

import (
	"strconv"

	"github.com/mna/tether/lang/bytecode"
	"github.com/mna/tether/lang/scanner"
	"github.com/mna/tether/lang/symbol"
	"github.com/mna/tether/lang/token"
)

// Compiler drives a Scanner directly into a Program. It is stateful and
// reusable across turns: a REPL keeps one Compiler alive so that the
// top-level function's locals, and the program's function/symbol tables,
// persist between lines (§ "REPL" in SPEC_FULL.md).
type Compiler struct {
	prog *bytecode.Program
	fb   *funcBuilder

	sc  *scanner.Scanner
	cur token.Token
	src string
}

// New returns a Compiler over a fresh Program, ready to compile either a
// whole file (CompileFile) or a sequence of REPL turns (CompileTurn).
func New() *Compiler {
	prog := bytecode.NewProgram()
	return &Compiler{
		prog: prog,
		fb:   newFuncBuilder(prog.Functions[0], 0, nil),
	}
}

// Program returns the Program built so far.
func (c *Compiler) Program() *bytecode.Program { return c.prog }

// CompileFile compiles an entire source string as a one-shot batch
// program: statements up to end of input, followed by a synthesized
// Finish. It never treats ErrEndOfInput as continuable.
func (c *Compiler) CompileFile(src string) error {
	c.reset(src)
	for {
		c.skipSemis()
		if c.cur.Kind == token.EOF {
			break
		}
		if err := c.stmt(); err != nil {
			return err
		}
	}
	c.fb.emitOp(bytecode.Finish)
	return nil
}

// skipSemis consumes zero or more ';' tokens. Statements are separated by
// layout, not by a terminator token (§4.E "Source language"), but ';' is
// still valid punctuation for putting more than one statement on a line,
// so it is accepted and ignored wherever a statement may start.
func (c *Compiler) skipSemis() {
	for c.eat(token.SEMI) {
	}
}

// turnSnapshot captures everything CompileTurn needs to roll back if a
// turn's input turns out invalid, satisfying the "REPL idempotence"
// property: compiling an incomplete turn's continuation must behave as if
// the whole, now-complete input had been compiled in one turn.
type turnSnapshot struct {
	code         int
	locals       int
	captures     int
	captureNames int
	functions    int
	symbols      int
	hadFinish    bool
}

func (c *Compiler) snapshot() turnSnapshot {
	code := c.fb.fn.Code
	hadFinish := len(code) > 0 && bytecode.Op(code[len(code)-1]) == bytecode.Finish
	n := len(code)
	if hadFinish {
		n--
	}
	return turnSnapshot{
		code:         n,
		locals:       len(c.fb.locals),
		captures:     len(c.fb.fn.Captures),
		captureNames: len(c.fb.captureNames),
		functions:    len(c.prog.Functions),
		symbols:      c.prog.Symbols.Len(),
		hadFinish:    hadFinish,
	}
}

func (c *Compiler) rollback(snap turnSnapshot) {
	c.fb.fn.Code = c.fb.fn.Code[:snap.code]
	c.fb.locals = c.fb.locals[:snap.locals]
	c.fb.fn.Captures = c.fb.fn.Captures[:snap.captures]
	c.fb.captureNames = c.fb.captureNames[:snap.captureNames]
	c.prog.Functions = c.prog.Functions[:snap.functions]
	if snap.hadFinish {
		c.fb.emitOp(bytecode.Finish)
	}
	// Symbols is append-only by design (§4.A); a rolled-back turn leaves
	// any interned-but-unused names in the table, which is harmless since
	// they're never referenced by surviving bytecode.
	_ = snap.symbols
}

// CompileTurn compiles one REPL turn's source against the persistent
// top-level function. On ErrEndOfInput the caller should request a
// continuation line, append it, and call CompileTurn again with the full
// accumulated buffer — compilation rolls back to the pre-turn state first,
// so retrying is always against a clean base. On success the turn's
// statements are appended immediately before a (re-synthesized) trailing
// Finish.
func (c *Compiler) CompileTurn(src string) error {
	snap := c.snapshot()
	if snap.hadFinish {
		c.fb.fn.Code = c.fb.fn.Code[:len(c.fb.fn.Code)-1]
	}
	c.reset(src)
	for {
		c.skipSemis()
		if c.cur.Kind == token.EOF {
			break
		}
		if err := c.stmt(); err != nil {
			c.rollback(snap)
			return err
		}
	}
	c.fb.emitOp(bytecode.Finish)
	return nil
}

func (c *Compiler) reset(src string) {
	c.src = src
	c.sc = scanner.New(src)
	c.next()
}

func (c *Compiler) next() {
	c.cur = c.sc.Next()
}

// eat consumes cur if it matches kind, reporting whether it did.
func (c *Compiler) eat(kind token.Kind) bool {
	if c.cur.Kind == kind {
		c.next()
		return true
	}
	return false
}

func (c *Compiler) expect(kind token.Kind) error {
	if c.cur.Kind == kind {
		c.next()
		return nil
	}
	if c.cur.Kind == token.EOF {
		return ErrEndOfInput
	}
	return invalidInput(c.cur, "expected %s, found %s", kind, c.cur.Kind)
}

func (c *Compiler) identSym() (symbol.Symbol, error) {
	if c.cur.Kind == token.EOF {
		return 0, ErrEndOfInput
	}
	if c.cur.Kind != token.IDENT {
		return 0, invalidInput(c.cur, "expected identifier, found %s", c.cur.Kind)
	}
	sym := c.prog.Symbols.Intern(c.cur.Lit)
	c.next()
	return sym, nil
}

// resolveOrError looks a name up via the active funcBuilder chain,
// reporting an InvalidInputError for names that never resolve anywhere.
func (c *Compiler) resolveOrError(tok token.Token, sym symbol.Symbol) (varKind, int, error) {
	kind, idx := c.fb.resolve(sym)
	if kind == varUnresolved {
		return 0, 0, invalidInput(tok, "undefined variable %q", c.prog.Symbols.Name(sym))
	}
	return kind, idx, nil
}

// ---- precedence climbing (§4.E) ----

type prec int

const (
	precProduct prec = iota
	precSum
	precRelational
	precEquality
	precTop
)

type opInfo struct {
	prec prec
	op   bytecode.Op
}

var binOps = map[token.Kind]opInfo{
	token.STAR:    {precProduct, bytecode.Mul},
	token.SLASH:   {precProduct, bytecode.Div},
	token.PERCENT: {precProduct, bytecode.Mod},
	token.PLUS:    {precSum, bytecode.Add},
	token.MINUS:   {precSum, bytecode.Sub},
	token.LT:      {precRelational, bytecode.Lt},
	token.GT:      {precRelational, bytecode.Gt},
	token.LE:      {precRelational, bytecode.Le},
	token.GE:      {precRelational, bytecode.Ge},
	token.EQ:      {precEquality, bytecode.Eq},
	token.NEQ:     {precEquality, bytecode.NotEq},
}

// expr compiles a full expression: one operand followed by as much infix
// chaining as binds at precTop (i.e. everything).
func (c *Compiler) expr() error {
	if err := c.operand(); err != nil {
		return err
	}
	return c.infix(precTop)
}

// infix implements the precedence-climbing loop. Recursing on the right
// operand with prec equal to the matched operator's own precedence (rather
// than one tighter) is what makes every operator left-associative: a
// further operator of the SAME precedence fails the strict "<" test at the
// recursive level and is instead picked up by this same loop iterating
// again, so "a+b+c" emits push a; push b; add; push c; add, i.e. (a+b)+c.
func (c *Compiler) infix(threshold prec) error {
	for {
		info, ok := binOps[c.cur.Kind]
		if !ok || !(info.prec < threshold) {
			return nil
		}
		c.next()
		if err := c.operand(); err != nil {
			return err
		}
		if err := c.infix(info.prec); err != nil {
			return err
		}
		c.fb.emitOp(info.op)
	}
}

// operand compiles a primary value followed by any postfix .name chain
// (§4.E: "Property access .name is postfix, chains").
func (c *Compiler) operand() error {
	if err := c.value(); err != nil {
		return err
	}
	for c.cur.Kind == token.DOT {
		dot := c.cur
		c.next()
		sym, err := c.identSym()
		if err != nil {
			return err
		}
		if sym > 255 {
			return invalidInput(dot, "too many distinct identifiers for a property symbol id (limit 255)")
		}
		c.fb.emitU8(bytecode.PushPropLoad, int(sym))
	}
	return nil
}

func (c *Compiler) value() error {
	tok := c.cur
	switch tok.Kind {
	case token.EOF:
		return ErrEndOfInput
	case token.INT:
		n, err := strconv.ParseInt(tok.Lit, 10, 64)
		if err != nil {
			return invalidInput(tok, "invalid integer literal %q", tok.Lit)
		}
		c.next()
		c.fb.emitI64(n)
		return nil
	case token.FLOAT:
		f, err := strconv.ParseFloat(tok.Lit, 64)
		if err != nil {
			return invalidInput(tok, "invalid float literal %q", tok.Lit)
		}
		c.next()
		c.fb.emitF64(f)
		return nil
	case token.TRUE:
		c.next()
		c.fb.emitOp(bytecode.PushTrue)
		return nil
	case token.FALSE:
		c.next()
		c.fb.emitOp(bytecode.PushFalse)
		return nil
	case token.NONE:
		c.next()
		c.fb.emitOp(bytecode.PushNone)
		return nil
	case token.STRING:
		// §9 Open Question (c): string values have no runtime representation
		// yet, so a string literal in expression position is a syntax error
		// at emission time, not a runtime one.
		return invalidInput(tok, "string literals are not yet a runtime value")
	case token.LPAREN:
		c.next()
		if err := c.expr(); err != nil {
			return err
		}
		return c.expect(token.RPAREN)
	case token.LIST:
		return c.listLiteral()
	case token.FUNC:
		return c.funcLiteral()
	case token.IDENT:
		sym := c.prog.Symbols.Intern(tok.Lit)
		c.next()
		if c.cur.Kind == token.LPAREN {
			return c.call(tok, sym)
		}
		kind, idx, err := c.resolveOrError(tok, sym)
		if err != nil {
			return err
		}
		c.fb.pushVar(kind, idx)
		return nil
	default:
		return invalidInput(tok, "unexpected token %s", tok.Kind)
	}
}

// listLiteral compiles the list(e1, ..., en) keyword-literal (not a
// function call, despite the syntax — §7 "External interfaces").
func (c *Compiler) listLiteral() error {
	c.next() // consume 'list'
	if err := c.expect(token.LPAREN); err != nil {
		return err
	}
	n, err := c.exprList(token.RPAREN)
	if err != nil {
		return err
	}
	c.fb.emitU32(bytecode.PushList, uint32(n))
	return nil
}

// exprList compiles a comma-separated list of expressions up to (and
// consuming) the closing token, returning how many were compiled.
func (c *Compiler) exprList(closing token.Kind) (int, error) {
	n := 0
	if c.cur.Kind != closing {
		for {
			if err := c.expr(); err != nil {
				return 0, err
			}
			n++
			if !c.eat(token.COMMA) {
				break
			}
		}
	}
	if err := c.expect(closing); err != nil {
		return 0, err
	}
	return n, nil
}

// call compiles a call expression: a return-slot placeholder, the
// arguments left to right, the callee load, then Call argc (§4.E "f(a,b,…)
// → push None (return slot); push args left-to-right; push-load f; Call
// argc"). tok/sym name the callee, already consumed by the caller; cur is
// positioned at the '(' on entry.
func (c *Compiler) call(tok token.Token, sym symbol.Symbol) error {
	c.next() // consume '('
	c.fb.emitOp(bytecode.PushNone)
	n, err := c.exprList(token.RPAREN)
	if err != nil {
		return err
	}
	if n > 255 {
		return invalidInput(tok, "too many call arguments (limit 255)")
	}
	kind, idx, err := c.resolveOrError(tok, sym)
	if err != nil {
		return err
	}
	c.fb.pushVar(kind, idx)
	c.fb.emitU8(bytecode.Call, n)
	return nil
}

// funcLiteral compiles a `func` literal (§4.E): it reserves the next
// function index immediately — before the body is compiled — so that
// nested functions referencing themselves or each other by later use get
// stable indices (reserve-by-push, §9 Open Question (b)).
func (c *Compiler) funcLiteral() error {
	c.next() // consume 'func'
	if err := c.expect(token.LPAREN); err != nil {
		return err
	}

	fn := &bytecode.Function{}
	index := len(c.prog.Functions)
	c.prog.Functions = append(c.prog.Functions, fn)

	child := newFuncBuilder(fn, index, c.fb)
	var params []symbol.Symbol
	if c.cur.Kind != token.RPAREN {
		for {
			sym, err := c.identSym()
			if err != nil {
				return err
			}
			if _, err := child.defineLocal(sym); err != nil {
				return invalidInput(c.cur, "%s", err)
			}
			params = append(params, sym)
			if !c.eat(token.COMMA) {
				break
			}
		}
	}
	if err := c.expect(token.RPAREN); err != nil {
		return err
	}
	if len(params) > 255 {
		return invalidInput(c.cur, "too many parameters (limit 255)")
	}
	fn.ParamCount = len(params)
	fn.Params = params

	parent := c.fb
	c.fb = child
	if c.cur.Kind == token.LBRACE {
		if err := c.block(); err != nil {
			c.fb = parent
			return err
		}
	} else {
		// Expression body compiles as `expr; PopStore 0` (§4.E).
		if err := c.expr(); err != nil {
			c.fb = parent
			return err
		}
		c.fb.emitU8(bytecode.PopStore, int(symbol.Return))
	}
	// By construction the body's own block (or the lack of one, for an
	// expression body) has already freed every local it defined, so only
	// the return slot and the parameters remain in scope here — Drop them
	// before the synthesized Return, promoting any captured parameter.
	if n := len(c.fb.locals) - 1; n > 0 {
		c.fb.emitU8(bytecode.Drop, n)
	}
	c.fb.emitOp(bytecode.Return)
	c.fb = parent

	c.fb.emitU32(bytecode.PushFunc, uint32(index))
	return nil
}

// block compiles a `{ stmt* }`, tracking and then freeing any locals
// defined directly inside it (emitting the Drop that performs upvalue
// promotion for ones captured by a nested closure). cur must be LBRACE.
func (c *Compiler) block() error {
	if err := c.expect(token.LBRACE); err != nil {
		return err
	}
	start := len(c.fb.locals)
	for {
		c.skipSemis()
		if c.cur.Kind == token.RBRACE {
			break
		}
		if c.cur.Kind == token.EOF {
			return ErrEndOfInput
		}
		if err := c.stmt(); err != nil {
			return err
		}
	}
	c.next() // consume '}'
	if n := len(c.fb.locals) - start; n > 0 {
		c.fb.freeLocals(n)
	}
	return nil
}

// ---- statements (§4.E statement table) ----

func (c *Compiler) stmt() error {
	switch c.cur.Kind {
	case token.VAR:
		return c.varStmt()
	case token.PRINT:
		return c.printStmt()
	case token.RETURN:
		return c.returnStmt()
	case token.IF:
		return c.ifStmt()
	case token.WHILE:
		return c.whileStmt()
	case token.LBRACE:
		return c.block()
	case token.IDENT:
		return c.identStmt()
	case token.EOF:
		return ErrEndOfInput
	default:
		return invalidInput(c.cur, "unexpected token %s at start of statement", c.cur.Kind)
	}
}

func (c *Compiler) varStmt() error {
	c.next() // consume 'var'
	sym, err := c.identSym()
	if err != nil {
		return err
	}
	if err := c.expect(token.ASSIGN); err != nil {
		return err
	}
	if err := c.expr(); err != nil {
		return err
	}
	if _, err := c.fb.defineLocal(sym); err != nil {
		return invalidInput(c.cur, "%s", err)
	}
	return nil
}

func (c *Compiler) printStmt() error {
	c.next() // consume 'print'
	if err := c.expr(); err != nil {
		return err
	}
	c.fb.emitOp(bytecode.PopPrint)
	return nil
}

// returnStmt compiles `return e`. The literal §4.E rule is `compile e;
// PopStore 0; Return`, which is exactly right when return is the
// function's last statement with no block-local still in scope beyond its
// parameters. A return from inside a nested if/while block must also
// unwind that block's locals — including promoting any of them captured
// by a closure — before the frame is torn down: Return itself drops
// nothing and takes the top of the stack as the result, so any local left
// above the return slot would be returned in its place.
// This emits Drop(locals_in_scope - 1) between PopStore 0 and Return to
// cover that general case; it does not truncate the compile-time locals
// vector, since those locals remain in scope for any statement following
// this one in the same source block.
func (c *Compiler) returnStmt() error {
	c.next() // consume 'return'
	if err := c.expr(); err != nil {
		return err
	}
	c.fb.emitU8(bytecode.PopStore, int(symbol.Return))
	if n := len(c.fb.locals) - 1; n > 0 {
		c.fb.emitU8(bytecode.Drop, n)
	}
	c.fb.emitOp(bytecode.Return)
	return nil
}

func (c *Compiler) ifStmt() error {
	c.next() // consume 'if'
	if err := c.expr(); err != nil {
		return err
	}
	elseJump := c.fb.emitU32(bytecode.JumpIfNot, 0)
	if err := c.block(); err != nil {
		return err
	}
	endJump := c.fb.emitU32(bytecode.Jump, 0)
	c.fb.patch(elseJump, c.fb.here())
	if c.cur.Kind == token.ELSE {
		c.next()
		if c.cur.Kind == token.IF {
			if err := c.ifStmt(); err != nil {
				return err
			}
		} else if err := c.block(); err != nil {
			return err
		}
	}
	c.fb.patch(endJump, c.fb.here())
	return nil
}

func (c *Compiler) whileStmt() error {
	c.next() // consume 'while'
	top := c.fb.here()
	if err := c.expr(); err != nil {
		return err
	}
	endJump := c.fb.emitU32(bytecode.JumpIfNot, 0)
	if err := c.block(); err != nil {
		return err
	}
	c.fb.emitU32(bytecode.Jump, top)
	c.fb.patch(endJump, c.fb.here())
	return nil
}

// identStmt disambiguates the four statement forms that start with an
// identifier: a bare call (as an expression statement), a plain
// assignment, a compound assignment, and (falling through from none of
// those) a syntax error. One token of extra lookahead past the identifier
// decides which.
func (c *Compiler) identStmt() error {
	tok := c.cur
	sym := c.prog.Symbols.Intern(tok.Lit)
	c.next()

	switch c.cur.Kind {
	case token.LPAREN:
		if err := c.call(tok, sym); err != nil {
			return err
		}
		c.fb.emitU8(bytecode.Drop, 1)
		return nil
	case token.ASSIGN:
		c.next()
		if err := c.expr(); err != nil {
			return err
		}
		kind, idx, err := c.resolveOrError(tok, sym)
		if err != nil {
			return err
		}
		c.fb.popVar(kind, idx)
		return nil
	default:
		if op, ok := compoundOps[c.cur.Kind]; ok {
			c.next()
			kind, idx, err := c.resolveOrError(tok, sym)
			if err != nil {
				return err
			}
			// x op= e compiles e first, then pushes x, which as the top of
			// the stack is the right operand of (left OP right), giving
			// e OP x — matching the statement
			// table's "compile e; push-load x; OP; pop-store x" order.
			if err := c.expr(); err != nil {
				return err
			}
			c.fb.pushVar(kind, idx)
			c.fb.emitOp(op)
			c.fb.popVar(kind, idx)
			return nil
		}
		return invalidInput(c.cur, "unexpected token %s after identifier", c.cur.Kind)
	}
}

var compoundOps = map[token.Kind]bytecode.Op{
	token.PLUS_EQ:    bytecode.Add,
	token.MINUS_EQ:   bytecode.Sub,
	token.STAR_EQ:    bytecode.Mul,
	token.SLASH_EQ:   bytecode.Div,
	token.PERCENT_EQ: bytecode.Mod,
}
