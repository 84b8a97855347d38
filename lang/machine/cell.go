package machine

// UpvalueCell is a heap-allocated mutable cell an upvalue indexes into
// (§3 "Upvalue cell"). It starts Open, aliasing a live stack slot, and
// transitions to Closed — holding its own copy of the value — at most
// once, when the stack slot it aliases goes out of scope. It never
// transitions back.
type UpvalueCell struct {
	closed     bool
	stackIndex int // valid while !closed: the absolute data-stack index aliased
	value      Value
}

// Get reads the cell's current value, indirecting through stack if still
// open.
func (c *UpvalueCell) Get(stack []Value) Value {
	if c.closed {
		return c.value
	}
	return stack[c.stackIndex]
}

// Set writes through the cell, to the aliased stack slot if still open.
func (c *UpvalueCell) Set(stack []Value, v Value) {
	if c.closed {
		c.value = v
		return
	}
	stack[c.stackIndex] = v
}

// Close promotes the cell from Open to Closed, copying in its final
// value. Calling Close on an already-closed cell would violate the
// promotion-once invariant (§8) and never happens: the registry removes
// a stack index's entries the moment they're closed.
func (c *UpvalueCell) Close(v Value) {
	c.closed = true
	c.value = v
}
