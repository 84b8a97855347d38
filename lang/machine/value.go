// Package machine implements the stack-based virtual machine (§4.F) and its
// runtime value model (§4.G): call frames, the data stack, the bump heap,
// and the upvalue promotion protocol that migrates captured stack slots to
// the heap when they go out of scope.
package machine

import (
	"strconv"

	"github.com/mna/tether/lang/symbol"
)

// Value is any runtime value the machine can hold: a primitive (Int,
// Float, Bool, None), a Closure, or an Extension (§4.G "heap extension
// values like lists"). Grounded on the teacher's machine.Value interface
// (lang/machine/value.go) but reduced to this language's much smaller
// tagged set — no Sequence/Indexable/Mapping capability interfaces, since
// the only extension type is List and it exposes exactly one property.
type Value interface {
	String() string
	Type() string
}

// Int is a 64-bit signed integer value.
type Int int64

func (v Int) String() string { return strconv.FormatInt(int64(v), 10) }
func (v Int) Type() string   { return "int" }

// Float is a 64-bit IEEE-754 floating point value.
type Float float64

func (v Float) String() string { return strconv.FormatFloat(float64(v), 'g', -1, 64) }
func (v Float) Type() string   { return "float" }

// Bool is a boolean value.
type Bool bool

func (v Bool) String() string {
	if v {
		return "true"
	}
	return "false"
}
func (v Bool) Type() string { return "bool" }

type noneType struct{}

func (noneType) String() string { return "none" }
func (noneType) Type() string   { return "none" }

// None is the sole value of the none type.
var None Value = noneType{}

// Extension is a heap value exposing named properties to PushPropLoad,
// without otherwise being able to mutate the data stack (§7 "Extension
// interface"). List is the only built-in implementation.
type Extension interface {
	Value
	GetProperty(m *Machine, sym symbol.Symbol) (Value, error)
}

// numeric reports v's float64 value and whether v is Int or Float.
func numeric(v Value) (float64, bool) {
	switch n := v.(type) {
	case Int:
		return float64(n), true
	case Float:
		return float64(n), true
	}
	return 0, false
}

// equalValues implements §3's equality rule: defined within primitives
// (Int/Float compared numerically across the two, Bool and None only
// against their own kind) and by identity for Closure/Extension; any
// other cross-type pairing is unequal, never an error — that asymmetry
// (ordered comparison errors cross-type, equality doesn't) is deliberate
// per §4.F.
func equalValues(a, b Value) bool {
	switch av := a.(type) {
	case Int:
		switch bv := b.(type) {
		case Int:
			return av == bv
		case Float:
			return float64(av) == float64(bv)
		}
		return false
	case Float:
		switch bv := b.(type) {
		case Int:
			return float64(av) == float64(bv)
		case Float:
			return av == bv
		}
		return false
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case noneType:
		_, ok := b.(noneType)
		return ok
	default:
		return a == b
	}
}
