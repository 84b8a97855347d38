package symbol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mna/tether/lang/symbol"
)

func TestNewTableReservesReturn(t *testing.T) {
	tbl := symbol.NewTable()
	assert.Equal(t, symbol.Return, symbol.Symbol(0))
	assert.Equal(t, "return", tbl.Name(symbol.Return))
	assert.Equal(t, 1, tbl.Len())
}

func TestInternIsStableAndByteExact(t *testing.T) {
	tbl := symbol.NewTable()

	a := tbl.Intern("foo")
	b := tbl.Intern("foo")
	assert.Equal(t, a, b, "interning the same name twice must return the same symbol")

	c := tbl.Intern("Foo")
	assert.NotEqual(t, a, c, "interning is byte-exact, no case folding")

	assert.Equal(t, "foo", tbl.Name(a))
	assert.Equal(t, "Foo", tbl.Name(c))
}

func TestInternAppendOnly(t *testing.T) {
	tbl := symbol.NewTable()
	tbl.Intern("a")
	tbl.Intern("b")
	assert.Equal(t, 3, tbl.Len()) // return, a, b
}
