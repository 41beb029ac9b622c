package system

import (
	"fmt"

	"github.com/sarchlab/akita/v4/mem/idealmemcontroller"
	"github.com/sarchlab/akita/v4/mem/mem"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/akita/v4/sim/directconnection"

	"github.com/sarchlab/pando/addr"
	"github.com/sarchlab/pando/memory"
)

const standardMemSize = 1 * mem.GB

// backendClient is a minimal akita component whose only role is to own the
// port the standard backend's real read/write traffic flows through
// (`zeonica/core.Core.MemPort` is the same "a component owns a Mem port"
// idiom). It is never itself scheduled by the engine — nothing ever calls
// sim.MakeTickEvent for it — since draining its port happens synchronously
// from standardBackend.AdvanceRealTime, driven by the owning Core's own
// Tick; its Tick method exists only to satisfy sim.NewTickingComponent's
// constructor and is never invoked.
type backendClient struct {
	*sim.TickingComponent
}

func (c *backendClient) Tick(now sim.VTimeInSec) bool { return false }

// pxnMemory is the real akita component topology wired for one PXN's
// standard-backend traffic: an idealmemcontroller.Comp reachable over a
// directconnection.Comp from backendClient's port.
type pxnMemory struct {
	ctrl *idealmemcontroller.Comp
	port sim.Port
	dst  sim.RemotePort
}

// standardTopology builds one akita idealmemcontroller + directconnection
// pair per PXN, mirroring zeonica/config.DeviceBuilder's "local" memory
// mode (one idealmemcontroller.Comp wired through a directconnection.Comp
// per tile, both ends of the connection plugged in exactly as
// `createSharedMemory` does).
type standardTopology struct {
	engine sim.Engine
	byPXN  map[int]*pxnMemory
}

func newStandardTopology(engine sim.Engine) *standardTopology {
	return &standardTopology{engine: engine, byPXN: make(map[int]*pxnMemory)}
}

func (t *standardTopology) memoryFor(pxn int, freq sim.Freq, size uint64, latency int) *pxnMemory {
	if m, ok := t.byPXN[pxn]; ok {
		return m
	}

	name := fmt.Sprintf("PXN%dStandardMem", pxn)
	ctrl := idealmemcontroller.MakeBuilder().
		WithEngine(t.engine).
		WithNewStorage(size).
		WithLatency(latency).
		Build(name)

	client := &backendClient{}
	client.TickingComponent = sim.NewTickingComponent(name+"Client", t.engine, freq, client)
	port := sim.NewLimitNumMsgPort(client, 64, name+"Client.Mem")
	client.AddPort("Mem", port)

	conn := directconnection.MakeBuilder().
		WithEngine(t.engine).
		WithFreq(freq).
		Build(name + "Conn")
	conn.PlugIn(ctrl.GetPortByName("Top"))
	conn.PlugIn(port)

	m := &pxnMemory{
		ctrl: ctrl,
		port: port,
		dst:  ctrl.GetPortByName("Top").AsRemote(),
	}
	t.byPXN[pxn] = m
	return m
}

// backendFor returns a Backend for the core's owning PXN, building the
// akita topology for that PXN the first time it's requested.
func (t *standardTopology) backendFor(pxn int, router *memory.Router, delay int64) memory.Backend {
	// The topology is built lazily per PXN (default 1GB/5-cycle akita
	// controller, matching zeonica's own default) the first time any core
	// in that PXN asks for a standard backend.
	m := t.memoryFor(pxn, sim.Freq(1e9), standardMemSize, 5)

	return &standardBackend{
		SelfLinkBackend: memory.NewSelfLinkBackend(router, delay),
		mem:             m,
	}
}

// standardBackend is §4.5's "standard-memory-hierarchy" backing: a read or
// write request is translated into a real akita mem.ReadReq/WriteReq,
// sent over backendClient's port to a genuinely wired idealmemcontroller,
// and the response that arrives on that port is what drives completion —
// there is no separate completion path for those two kinds running
// alongside it. idealmemcontroller has no notion of PANDO's own
// L1SP/L2SP/DRAM banking or atomic read-modify-write, so once the real
// round trip finishes, the actual PANDO effect is still applied against
// the already-tested Router/Controller path (reusing memory.SimpleBackend's
// synchronous execute-then-complete) — the wired component supplies the
// request/response event that triggers completion, the Router/Controller
// supplies the bytes. Atomic and translate-to-native requests, which have
// no akita idealmemcontroller equivalent at all, fall back directly to the
// embedded SelfLinkBackend.
type standardBackend struct {
	*memory.SelfLinkBackend

	mem *pxnMemory

	now     sim.VTimeInSec
	pending []memory.Request // FIFO: requests in the order they were sent
}

// Submit implements memory.Backend.
func (b *standardBackend) Submit(req memory.Request) {
	switch req.Kind {
	case memory.RequestRead:
		b.send(req, false)
	case memory.RequestWrite:
		b.send(req, true)
	default:
		// idealmemcontroller exposes only plain read/write semantics; §4.5's
		// atomic RMW and translate-to-native have no akita-native
		// equivalent, so they still resolve through the Router/Controller
		// path directly (see DESIGN.md).
		b.SelfLinkBackend.Submit(req)
	}
}

// tracingAddress folds a PANDO physical address into the idealmemcontroller's
// own flat byte range. The controller exists to exercise a real akita
// request/response round trip, not to hold PANDO's own bytes — it has no
// concept of L1SP/L2SP/DRAM banking — so only a stable, in-range address is
// needed; the actual data effect is always applied against Router/Controller
// once the real response arrives (completeOne).
func (b *standardBackend) tracingAddress(req memory.Request) uint64 {
	p := addr.ToPhysical(req.Addr, req.Site)
	return uint64(p) % standardMemSize
}

func (b *standardBackend) send(req memory.Request, isWrite bool) {
	var msg sim.Msg
	if isWrite {
		msg = mem.WriteReqBuilder{}.
			WithSrc(b.mem.port).
			WithDst(b.mem.dst).
			WithAddress(b.tracingAddress(req)).
			WithData(req.WriteData).
			WithPID(0).
			WithSendTime(b.now).
			Build()
	} else {
		msg = mem.ReadReqBuilder{}.
			WithSrc(b.mem.port).
			WithDst(b.mem.dst).
			WithAddress(b.tracingAddress(req)).
			WithByteSize(req.Size).
			WithPID(0).
			WithSendTime(b.now).
			Build()
	}

	if err := b.mem.port.Send(msg); err != nil {
		panic(fmt.Sprintf("system: standard backend: sending to PXN memory: %v", err))
	}
	b.pending = append(b.pending, req)
}

// AdvanceRealTime drains backendClient's port: each response that has
// arrived completes the oldest in-flight read/write request, FIFO (§4.3's
// "threads enter the ready queue FIFO in the order their completion events
// fire" applies equally here, since a single directconnection preserves
// send order).
func (b *standardBackend) AdvanceRealTime(now sim.VTimeInSec) {
	b.now = now

	for {
		msg := b.mem.port.Peek()
		if msg == nil {
			return
		}

		switch msg.(type) {
		case *mem.DataReadyRsp, *mem.WriteDoneRsp:
		default:
			panic(fmt.Sprintf("system: standard backend: unexpected response %T from PXN memory", msg))
		}
		b.mem.port.Retrieve(now)

		if len(b.pending) == 0 {
			panic("system: standard backend: response with no in-flight request")
		}
		b.completeOne()
	}
}

func (b *standardBackend) completeOne() {
	req := b.pending[0]
	b.pending = b.pending[1:]
	(&memory.SimpleBackend{Router: b.Router}).Submit(req)
}
