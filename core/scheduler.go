package core

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/pando/addr"
	"github.com/sarchlab/pando/corestate"
	"github.com/sarchlab/pando/memory"
	"github.com/sarchlab/pando/stats"
)

// advancer is implemented by any backend whose in-flight requests need a
// per-cycle clock pushed into them to complete (§4.5: self-link and
// standard-memory-hierarchy backings both resolve on a delay rather than
// synchronously). Matched structurally rather than by concrete type so a
// backend that wraps a *memory.SelfLinkBackend (e.g. system.standardBackend)
// is still ticked correctly.
type advancer interface {
	Advance(now int64)
}

// realTimeAdvancer is implemented by a backend whose in-flight requests
// complete against a real, separately-clocked akita component (the standard
// backend's wired idealmemcontroller) rather than a synthetic per-cycle
// delay. Core forwards the engine's own VTimeInSec — the same value its own
// Tick receives — so such a backend can drain an akita sim.Port using the
// time domain that type expects, mirroring the teacher's own
// `core.Core.Tick`/`MemPort.Retrieve(now)` pairing.
type realTimeAdvancer interface {
	AdvanceRealTime(now sim.VTimeInSec)
}

// Core is one PANDO core: a round-robin scheduler over a fixed set of
// hardware threads, each resumed at most once per tick (§4.3).
type Core struct {
	*sim.TickingComponent

	Site addr.Site

	Threads []*Thread

	backend  memory.Backend
	selfLink advancer

	stats *stats.CoreStats
	ctrl  CtrlSink

	cycle         int64
	lastScheduled int
	liveThreads   int
	onEnd         func()

	nopQ   nopQueue
	nopSeq int64

	maxIdle     int64
	idleCycles  int64
	outstanding int

	reset bool
}

// Tick implements sim.Tickable: it advances the self-link backend (if
// configured), wakes any Nop whose delay has elapsed, selects the next
// ready thread round-robin, resumes it once, and dispatches the state it
// yields (§4.3).
//
// The return value is the engine's cue to keep scheduling this core's
// ticks: it stays true for as long as there is a thread to resume, a Nop
// timer pending, or memory traffic in flight, so those can still complete
// even on a tick where no thread happened to be ready. Only once genuinely
// idle for more than maxIdle consecutive cycles does it return false,
// parking the clock (§4.3 point 4). A core parks only when no Nop timer
// and no memory request is outstanding, so no response is left pending
// for it; Core itself never re-schedules a tick after parking.
func (c *Core) Tick(now sim.VTimeInSec) (madeProgress bool) {
	if c.reset {
		return true
	}

	c.cycle++

	if c.selfLink != nil {
		c.selfLink.Advance(c.cycle)
	}
	if rt, ok := c.backend.(realTimeAdvancer); ok {
		rt.AdvanceRealTime(now)
	}
	c.wakeDueNops()

	idx := c.selectReady()
	if idx < 0 {
		c.idleCycles++
		c.stats.RecordStallCycle()
		return c.hasOutstandingWork() || c.idleCycles <= c.maxIdle
	}

	c.idleCycles = 0
	c.stats.RecordBusyCycle()
	c.lastScheduled = idx

	thread := c.Threads[idx]
	state := thread.Frontend.Resume()
	thread.State = state

	c.dispatch(thread, state)

	return true
}

// hasOutstandingWork reports whether anything could still wake this core
// up on its own (a pending Nop timer or in-flight memory request) even
// though no thread is ready to run right now.
func (c *Core) hasOutstandingWork() bool {
	return c.nopQ.Len() > 0 || c.outstanding > 0
}

// selectReady picks the next ready thread starting just after the last
// one scheduled (round robin, §4.3 point 1), and charges one stall cycle
// to every other thread that was ready but bypassed this tick.
func (c *Core) selectReady() int {
	n := len(c.Threads)
	chosen := -1
	for i := 1; i <= n; i++ {
		idx := (c.lastScheduled + i) % n
		if c.Threads[idx].ready() {
			chosen = idx
			break
		}
	}
	if chosen < 0 {
		return -1
	}

	for i, t := range c.Threads {
		if i != chosen && t.ready() {
			c.stats.Threads[i].AddStallCycle()
		}
	}
	return chosen
}

func (c *Core) dispatch(t *Thread, s *corestate.State) {
	switch s.Kind {
	case corestate.KindRunning:
		// Already ready; nothing to dispatch.

	case corestate.KindTerminated:
		c.liveThreads--
		if c.liveThreads == 0 && c.onEnd != nil {
			c.onEnd()
		}

	case corestate.KindNop:
		c.scheduleNop(t.ID, s.CyclesRemaining)

	case corestate.KindSetStage:
		c.stats.Threads[t.ID].SetStage(s.NewStage)
		s.Complete()

	case corestate.KindMemRead, corestate.KindMemWrite,
		corestate.KindMemAtomic, corestate.KindToNativePointer:
		c.submitMemory(t, s)

	default:
		panic(c.fatalf("thread %d yielded unknown state kind %d", t.ID, s.Kind))
	}
}

// submitMemory routes a memory-touching state either to the CTRL MMIO
// window or to the configured Backend, completing it asynchronously via
// the backend's own completion callback (§4.5).
func (c *Core) submitMemory(t *Thread, s *corestate.State) {
	if addr.MemoryTypeOf(s.Addr) == addr.KindCTRL {
		c.handleCtrl(t, s)
		return
	}

	dest := c.destinationOf(s.Addr)
	req := memory.Request{Site: c.Site, Addr: s.Addr, Size: s.Size}

	switch s.Kind {
	case corestate.KindMemRead:
		req.Kind = memory.RequestRead
		req.OnComplete = func(r memory.Result) {
			c.requireOK(t, s, r.Err)
			copy(s.Result, r.ReadData)
			c.stats.Threads[t.ID].RecordLoad(dest)
			s.Complete()
		}

	case corestate.KindMemWrite:
		req.Kind = memory.RequestWrite
		req.WriteData = s.WritePayload
		req.OnComplete = func(r memory.Result) {
			c.requireOK(t, s, r.Err)
			c.stats.Threads[t.ID].RecordStore(dest)
			s.Complete()
		}

	case corestate.KindMemAtomic:
		req.Kind = memory.RequestAtomic
		req.Op, req.WriteOperand = s.Op, s.WriteOperand
		req.ExtOperand, req.HasExtOperand = s.ExtOperand, s.HasExtOperand
		req.OnComplete = func(r memory.Result) {
			c.requireOK(t, s, r.Err)
			s.AtomicResult = r.AtomicResult
			c.stats.Threads[t.ID].RecordAtomic(dest)
			s.Complete()
		}

	case corestate.KindToNativePointer:
		req.Kind = memory.RequestTranslate
		req.OnComplete = func(r memory.Result) {
			c.requireOK(t, s, r.Err)
			s.NativePtr = r.NativePtr
			s.BytesToStripeEnd = r.BytesToStripeEnd
			s.Complete()
		}
	}

	c.outstanding++
	onComplete := req.OnComplete
	req.OnComplete = func(r memory.Result) {
		c.outstanding--
		onComplete(r)
	}

	c.backend.Submit(req)
}

func (c *Core) requireOK(t *Thread, s *corestate.State, err error) {
	if err != nil {
		panic(c.fatalf("thread %d: address 0x%x: %v", t.ID, uint64(s.Addr), err))
	}
}

// destinationOf buckets a virtual address by where, relative to this
// core's own site, the access lands (§4.6).
func (c *Core) destinationOf(v addr.VAddr) stats.Destination {
	p := addr.ToPhysical(v, c.Site)
	if p.PXN() != c.Site.PXN {
		return stats.DestRemotePXN
	}
	switch p.Type() {
	case addr.TypeL1SP:
		return stats.DestL1SP
	case addr.TypeL2SP:
		return stats.DestL2SP
	default:
		return stats.DestDRAM
	}
}

func (c *Core) fatalf(format string, args ...any) string {
	return fmt.Sprintf("core pxn=%d pod=%d core=(%d,%d): "+format,
		append([]any{c.Site.PXN, c.Site.Pod, c.Site.CoreX, c.Site.CoreY}, args...)...)
}
