package core_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/pando/addr"
	"github.com/sarchlab/pando/core"
	"github.com/sarchlab/pando/corestate"
	"github.com/sarchlab/pando/memory"
	"github.com/sarchlab/pando/stats"
	"github.com/sarchlab/pando/util"
)

// scriptedFrontend yields one scripted corestate.State per Resume call,
// in order, implementing core.ThreadFrontend (§4.4: "at most one
// operation... before yielding").
type scriptedFrontend struct {
	script []*corestate.State
	next   int
}

func (f *scriptedFrontend) Resume() *corestate.State {
	s := f.script[f.next]
	if f.next < len(f.script)-1 {
		f.next++
	}
	return s
}

// fakeBackend completes every request synchronously against no real
// backing store, isolating the scheduler's dispatch/completion wiring
// from the routing and atomic-semantics already covered by
// memory/memory_test.go.
type fakeBackend struct {
	writes []addr.VAddr
}

func (b *fakeBackend) Submit(req memory.Request) {
	if req.Kind == memory.RequestWrite {
		b.writes = append(b.writes, req.Addr)
	}
	req.OnComplete(memory.Result{ReadData: make([]byte, req.Size)})
}

type fakeCtrl struct{}

func (fakeCtrl) PrintInt(int64)                  {}
func (fakeCtrl) PrintHex(uint64)                 {}
func (fakeCtrl) PrintChar(byte)                  {}
func (fakeCtrl) PrintTime(int64)                 {}
func (fakeCtrl) ResetCore(addr.Site, bool) error { return nil }

func buildTestCore(frontends []core.ThreadFrontend, backend memory.Backend, onEnd func()) *core.Core {
	engine := sim.NewSerialEngine()
	cstats := stats.NewCoreStats(0, 0, 2, 1, len(frontends))
	return core.NewBuilder().
		WithEngine(engine).
		WithFreq(1 * sim.GHz).
		WithSite(addr.Site{PXN: 0, Pod: 0, CoreX: 2, CoreY: 1}).
		WithBackend(backend).
		WithCtrlSink(fakeCtrl{}).
		WithStats(cstats).
		WithOnEnd(onEnd).
		Build("TestCore", frontends)
}

var _ = Describe("Scheduler", func() {
	It("resumes four threads that each store once then terminate (§8 scenario 7)", func() {
		backend := &fakeBackend{}
		frontends := make([]core.ThreadFrontend, 4)
		nextVal := valgen.MakeSequenceGen(100)
		for i := 0; i < 4; i++ {
			v := nextVal()
			frontends[i] = &scriptedFrontend{script: []*corestate.State{
				corestate.MemWrite(addr.VAddr(uint64(i)*8), encodeU64(v)),
				terminatedPtr(),
			}}
		}

		ended := false
		c := buildTestCore(frontends, backend, func() { ended = true })

		for i := 0; i < 20 && !ended; i++ {
			c.Tick(0)
		}

		Expect(ended).To(BeTrue())
		Expect(backend.writes).To(HaveLen(4))
		for _, th := range c.Threads {
			Expect(th.State.Kind).To(Equal(corestate.KindTerminated))
		}
	})

	It("visits every ready thread exactly once per lap, round robin", func() {
		backend := &fakeBackend{}
		order := []int{}
		frontends := make([]core.ThreadFrontend, 3)
		for i := 0; i < 3; i++ {
			idx := i
			frontends[i] = trackingFrontend(func() *corestate.State {
				order = append(order, idx)
				return runningPtr()
			})
		}
		c := buildTestCore(frontends, backend, nil)

		for i := 0; i < 6; i++ {
			c.Tick(0)
		}

		// lastScheduled starts at 0, so the first lap begins at index 1
		// and wraps back through 0 (§4.3 point 1: round robin from just
		// after the last-scheduled thread).
		Expect(order).To(Equal([]int{1, 2, 0, 1, 2, 0}))
	})

	It("becomes resumable no earlier than its Nop delay (§8 scenario 6)", func() {
		backend := &fakeBackend{}
		frontend := &scriptedFrontend{script: []*corestate.State{
			corestate.Nop(100),
			terminatedPtr(),
		}}
		c := buildTestCore([]core.ThreadFrontend{frontend}, backend, nil)

		c.Tick(0) // cycle 1: issues Nop(100), wakes at cycle 101
		for i := 0; i < 99; i++ {
			c.Tick(0) // cycles 2..100: still waiting
			Expect(c.Threads[0].State.Kind).To(Equal(corestate.KindNop))
		}
		c.Tick(0) // cycle 101: wakes and retires via Terminated
		Expect(c.Threads[0].State.Kind).To(Equal(corestate.KindTerminated))
	})

	It("parks after max_idle_cycles with no outstanding work, un-parking never needed once idle forever", func() {
		backend := &fakeBackend{}
		frontend := trackingFrontend(func() *corestate.State { return terminatedPtrOnce() })
		c := core.NewBuilder().
			WithEngine(sim.NewSerialEngine()).
			WithFreq(1 * sim.GHz).
			WithSite(addr.Site{PXN: 0, Pod: 0, CoreX: 0, CoreY: 0}).
			WithBackend(backend).
			WithCtrlSink(fakeCtrl{}).
			WithStats(stats.NewCoreStats(0, 0, 0, 0, 1)).
			WithMaxIdle(5).
			Build("IdleCore", []core.ThreadFrontend{frontend})

		c.Tick(0) // terminates the only thread immediately
		var last bool
		for i := 0; i < 5; i++ {
			last = c.Tick(0) // idle cycles 1..5, still within grace period
		}
		Expect(last).To(BeTrue())

		last = c.Tick(0) // idle cycle 6: beyond max_idle_cycles, park
		Expect(last).To(BeFalse())
	})
})

func terminatedPtr() *corestate.State {
	s := corestate.Terminated()
	return &s
}

// terminatedPtrOnce always yields Terminated; the thread never becomes
// ready again after its first resume, so only the very first Tick call
// resumes it.
func terminatedPtrOnce() *corestate.State {
	s := corestate.Terminated()
	return &s
}

func runningPtr() *corestate.State {
	s := corestate.Running()
	return &s
}

type trackingFrontend func() *corestate.State

func (f trackingFrontend) Resume() *corestate.State { return f() }

func encodeU64(v uint64) []byte {
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	return buf
}
