// Package symbol implements the append-only identifier interner (§4.A).
package symbol

// Symbol is an opaque small integer identifying an interned name. Return is
// reserved for the synthetic "return slot" pseudo-name present in every
// function frame.
type Symbol uint32

// Return is the reserved symbol for the per-frame return slot; it is
// interned first by every new Table so it is always id 0.
const Return Symbol = 0

const returnName = "return"

// Table is an append-only interner: Intern(s) == Intern(s) for the whole
// lifetime of the Table, and names are never removed or renumbered, so
// Symbols stay valid across every REPL turn that shares the same Table.
type Table struct {
	names []string
	ids   map[string]Symbol
}

// NewTable returns a Table with the reserved Return symbol already interned.
func NewTable() *Table {
	t := &Table{ids: make(map[string]Symbol)}
	t.Intern(returnName)
	return t
}

// Intern returns the Symbol for name, assigning the next free id the first
// time name is seen. Interning is exact byte equality, not case-folding.
func (t *Table) Intern(name string) Symbol {
	if id, ok := t.ids[name]; ok {
		return id
	}
	id := Symbol(len(t.names))
	t.names = append(t.names, name)
	t.ids[name] = id
	return id
}

// Name reverses Intern: it returns the name behind a Symbol.
func (t *Table) Name(s Symbol) string {
	return t.names[s]
}

// Len returns the number of interned names.
func (t *Table) Len() int {
	return len(t.names)
}
