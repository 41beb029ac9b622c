// Package core implements the per-core scheduler and thread execution
// surfaces described in §4.3/§4.4: a round-robin scheduler driving either
// a coroutine front-end or a RISC-V hart front-end per thread, dispatching
// memory requests to the backend named in §4.5.
package core

import "github.com/sarchlab/pando/corestate"

// Coroutine is the coroutine front-end (§4.4): a cooperative goroutine
// with its own stack, resumed one yield at a time. This is the idiomatic
// Go shape of a stackful coroutine — two unbuffered channels handing
// control back and forth — rather than a hand-rolled state machine, since
// Go (unlike the systems languages §9's design note is written for) has
// native support for exactly this pattern via goroutines.
type Coroutine struct {
	resume chan struct{}
	yield  chan *corestate.State
}

// Yielder is handed to the workload function; it is the only way user
// code running inside a Coroutine can publish a state and suspend.
type Yielder struct {
	co *Coroutine
}

// Yield publishes s and blocks until the scheduler resumes this thread
// again.
func (y *Yielder) Yield(s *corestate.State) {
	y.co.yield <- s
	<-y.co.resume
}

// StartCoroutine launches fn in its own goroutine, suspended until the
// first Resume call. The thread yields Terminated only once fn returns; if
// fn never returns, the thread keeps running (a legitimate workload state,
// per §7 "Non-errors").
func StartCoroutine(fn func(y *Yielder)) *Coroutine {
	co := &Coroutine{
		resume: make(chan struct{}),
		yield:  make(chan *corestate.State),
	}

	go func() {
		<-co.resume
		fn(&Yielder{co: co})
		co.yield <- &corestate.State{Kind: corestate.KindTerminated}
	}()

	return co
}

// Resume runs the coroutine until its next yield (or until it
// terminates), implementing ThreadFrontend.
func (c *Coroutine) Resume() *corestate.State {
	c.resume <- struct{}{}
	return <-c.yield
}
