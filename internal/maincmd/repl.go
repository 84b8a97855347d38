package maincmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"

	"github.com/mna/mainer"

	"github.com/mna/tether/internal/repl"
	"github.com/mna/tether/lang/compiler"
	"github.com/mna/tether/lang/token"
)

// Repl starts an interactive read-eval-print loop over stdio (§1 "stateful
// REPL"). Top-level locals and the program/machine state persist across
// turns; see internal/repl for the turn-buffering and continuation logic.
func (c *Cmd) Repl(ctx context.Context, stdio mainer.Stdio, _ []string) error {
	return RunRepl(ctx, stdio)
}

// RunRepl is the reusable implementation behind the repl command.
func RunRepl(ctx context.Context, stdio mainer.Stdio) error {
	r := repl.New(stdio.Stdout)
	scanner := bufio.NewScanner(stdio.Stdin)

	fmt.Fprint(stdio.Stdout, repl.PromptMain)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		continuing, err := r.Feed(scanner.Text())
		if err != nil {
			printReplError(stdio, r.LastSource(), err)
			fmt.Fprint(stdio.Stdout, repl.PromptMain)
			continue
		}
		if continuing {
			fmt.Fprint(stdio.Stdout, repl.PromptContinuation)
			continue
		}
		fmt.Fprint(stdio.Stdout, repl.PromptMain)
	}
	return scanner.Err()
}

func printReplError(stdio mainer.Stdio, src string, err error) {
	var invalid *compiler.InvalidInputError
	if errors.As(err, &invalid) {
		pos := token.PositionOf(src, invalid.Offset)
		fmt.Fprintf(stdio.Stderr, "%s: %s\n", pos, invalid.Msg)
		return
	}
	fmt.Fprintf(stdio.Stderr, "%s\n", err)
}
