package machine

import (
	"fmt"
	"strings"

	"github.com/mna/tether/lang/symbol"
)

// List is the one built-in Extension value (§7): a fixed-length, heap
// allocated payload constructed by PushList. It exposes a single
// property, len, and is otherwise opaque — there is no index operator in
// this language's grammar.
type List struct {
	Items []Value
}

func (l *List) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range l.Items {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(v.String())
	}
	b.WriteByte(']')
	return b.String()
}

func (l *List) Type() string { return "list" }

// GetProperty implements Extension. The property name is looked up by
// string rather than by a hardcoded symbol id, since symbol ids are
// assigned by first-use order and so aren't stable across programs.
func (l *List) GetProperty(m *Machine, sym symbol.Symbol) (Value, error) {
	name := m.prog.Symbols.Name(sym)
	if name == "len" {
		return Int(len(l.Items)), nil
	}
	return nil, fmt.Errorf("list has no property %q", name)
}
