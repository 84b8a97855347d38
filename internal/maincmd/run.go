package maincmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/mna/tether/lang/compiler"
	"github.com/mna/tether/lang/machine"
	"github.com/mna/tether/lang/token"
)

// Run compiles and executes a single source file as a one-shot batch
// program (§1 "batch file-run mode"). With --disasm it prints the
// compiled bytecode to stdout before running it.
func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return RunFile(ctx, stdio, args[0], c.flags["disasm"])
}

// RunFile is the reusable implementation behind the run command, split out
// so it can be driven directly by tests without going through Cmd.
func RunFile(_ context.Context, stdio mainer.Stdio, path string, disasm bool) error {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s\n", err)
		return err
	}

	comp := compiler.New()
	if err := comp.CompileFile(string(src)); err != nil {
		printCompileError(stdio, path, string(src), err)
		return err
	}

	prog := comp.Program()
	if disasm {
		fmt.Fprint(stdio.Stdout, compiler.Disassemble(prog))
	}

	m := machine.New(prog)
	m.Stdout = stdio.Stdout
	if err := m.Resume(); err != nil {
		fmt.Fprintf(stdio.Stderr, "%s: runtime error: %s\n", path, err)
		return err
	}
	return nil
}

func printCompileError(stdio mainer.Stdio, path, src string, err error) {
	var invalid *compiler.InvalidInputError
	if errors.As(err, &invalid) {
		pos := token.PositionOf(src, invalid.Offset)
		fmt.Fprintf(stdio.Stderr, "%s:%s: %s\n", path, pos, invalid.Msg)
		return
	}
	fmt.Fprintf(stdio.Stderr, "%s: %s\n", path, err)
}
