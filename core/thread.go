package core

import "github.com/sarchlab/pando/corestate"

// ThreadFrontend is the resumable execution surface a hart runs on: either
// a Coroutine or a RISC-V Hart (§4.4, "a core is configured with exactly
// one front-end"). Resume executes at most one operation — one coroutine
// yield or one RISC-V instruction — and returns the state the thread
// yielded.
type ThreadFrontend interface {
	Resume() *corestate.State
}

// Thread is one hart: a front-end plus the state it last yielded.
type Thread struct {
	ID       int
	Frontend ThreadFrontend
	State    *corestate.State
}

// ready reports whether the thread is eligible to be scheduled this tick
// (§3 "A thread is ready iff its state's completed_flag is true, or it has
// no outstanding request").
func (t *Thread) ready() bool {
	if t.State == nil {
		return true
	}
	if t.State.Kind == corestate.KindTerminated {
		return false
	}
	return t.State.Ready()
}
