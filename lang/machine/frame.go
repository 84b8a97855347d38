package machine

// frame is a call frame (§3 "Call frame"): the resume point, the base
// stack index its locals are relative to, and — for any frame entered via
// Call — the closure providing PushClosureLoad/PopClosureStore's
// upvalues. The initial (top-level) frame has a nil closure: it is never
// constructed by PushFunc/Call, only by the machine's own setup.
type frame struct {
	pc        int
	frameBase int
	funcIndex int
	closure   *Closure
}
