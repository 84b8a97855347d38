package machine

import "fmt"

// Closure is a heap record: a function index plus one upvalue-cell
// pointer per capture descriptor the function declares, built when
// PushFunc executes (§3 "Closure record").
type Closure struct {
	FuncIndex int
	Upvalues  []*UpvalueCell
}

func (c *Closure) String() string { return fmt.Sprintf("<closure #%d>", c.FuncIndex) }
func (c *Closure) Type() string   { return "closure" }
