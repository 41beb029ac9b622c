// Package system is the top-level wiring named in SPEC_FULL.md's MODULE
// BREAKDOWN: it builds every PXN/Pod/Core and its controllers from a
// config.System, freezes the address-range router, selects a memory
// backend, and drives the end-of-simulation signal (§4.3 point 4).
package system

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/pando/addr"
	"github.com/sarchlab/pando/config"
	"github.com/sarchlab/pando/core"
	"github.com/sarchlab/pando/memory"
	"github.com/sarchlab/pando/stats"
	"github.com/sarchlab/pando/trace"
)

// BackendKind selects one of §4.5's three interchangeable memory backends.
// A closed enum with a dispatch switch in Build is preferred here over an
// open registry, matching the memory package's own Backend dispatch design
// (§9 design note).
type BackendKind int

const (
	// BackendSimple completes every request immediately, in-process.
	BackendSimple BackendKind = iota
	// BackendSelfLink completes every request a fixed number of cycles
	// after submission, driven by the issuing core's own tick.
	BackendSelfLink
	// BackendStandard wires an akita idealmemcontroller/directconnection
	// topology per PXN alongside the functional Router path (see
	// backend_standard.go and DESIGN.md).
	BackendStandard
)

// ThreadFactory builds the ThreadFrontend for hart hartID of the core
// described by cfg. System never constructs a workload directly — it asks
// the caller (cmd/pando, or a test) for one frontend per hart — keeping
// ELF/host-library loading (the workload package) decoupled from wiring.
type ThreadFactory func(cfg config.CoreConfig, hartID int) core.ThreadFrontend

// Options configures Build.
type Options struct {
	Backend         BackendKind
	SelfLinkDelay   int64 // cycles; only consulted for BackendSelfLink/BackendStandard
	StatsDir        string
	Threads         ThreadFactory
}

// System owns every core, the frozen address-range router, and the
// statistics collector for one simulation run.
type System struct {
	cfg    config.System
	engine sim.Engine

	router *memory.Router
	cores  map[addr.Site]*core.Core

	collector *stats.Collector

	remaining int
	done      chan struct{}
}

var _ core.CtrlSink = (*System)(nil)

// Build constructs a System from cfg, scheduling every core's first tick
// on engine. The returned System is ready to Run once its caller has
// finished inspecting it (e.g. to grab StatsCollector for a post-run
// dump).
func Build(cfg config.System, engine sim.Engine, opt Options) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("system: %w", err)
	}

	router, err := buildRouter(cfg)
	if err != nil {
		return nil, err
	}

	collector, err := stats.NewCollector(opt.StatsDir)
	if err != nil {
		return nil, fmt.Errorf("system: %w", err)
	}
	atexit.Register(func() { collector.Close() })

	s := &System{
		cfg:       cfg,
		engine:    engine,
		router:    router,
		cores:     make(map[addr.Site]*core.Core),
		collector: collector,
		done:      make(chan struct{}),
	}

	standard := newStandardTopology(engine)

	for _, cc := range cfg.Cores {
		x, y := config.CoreCoord(cc.ID)
		site := addr.Site{PXN: uint32(cc.PXN), Pod: uint32(cc.Pod), CoreX: x, CoreY: y}

		be, err := s.buildBackend(opt, cc, standard)
		if err != nil {
			return nil, err
		}

		cstats := stats.NewCoreStats(cc.PXN, cc.Pod, x, y, cc.Threads)
		collector.Register(cstats)

		if opt.Threads == nil {
			return nil, fmt.Errorf("system: no ThreadFactory supplied for core pxn=%d pod=%d id=%d", cc.PXN, cc.Pod, cc.ID)
		}
		frontends := make([]core.ThreadFrontend, cc.Threads)
		for h := 0; h < cc.Threads; h++ {
			frontends[h] = opt.Threads(cc, h)
		}

		name := fmt.Sprintf("PXN%d.Pod%d.Core%d", cc.PXN, cc.Pod, cc.ID)
		builder := core.NewBuilder().
			WithEngine(engine).
			WithFreq(cc.Freq()).
			WithSite(site).
			WithBackend(be).
			WithCtrlSink(s).
			WithStats(cstats).
			WithOnEnd(s.coreFinished)
		if cc.MaxIdle > 0 {
			builder = builder.WithMaxIdle(int64(cc.MaxIdle))
		}
		c := builder.Build(name, frontends)

		s.cores[site] = c
		s.remaining++

		engine.Schedule(sim.MakeTickEvent(c.TickingComponent, 0))

		trace.Trace("system core registered", "name", name, "threads", cc.Threads)
	}

	return s, nil
}

func (s *System) buildBackend(opt Options, cc config.CoreConfig, standard *standardTopology) (memory.Backend, error) {
	switch opt.Backend {
	case BackendSimple:
		return &memory.SimpleBackend{Router: s.router}, nil
	case BackendSelfLink:
		return memory.NewSelfLinkBackend(s.router, opt.SelfLinkDelay), nil
	case BackendStandard:
		return standard.backendFor(cc.PXN, s.router, opt.SelfLinkDelay), nil
	default:
		return nil, fmt.Errorf("system: unknown backend kind %v", opt.Backend)
	}
}

func buildRouter(cfg config.System) (*memory.Router, error) {
	rb := memory.NewBuilder(cfg)

	l2il := cfg.L2SPInterleave()
	dramil := cfg.DRAMInterleave()

	for pxn := 0; pxn < cfg.NumPXN; pxn++ {
		for pod := 0; pod < cfg.PodsPerPXN; pod++ {
			for id := 0; id < cfg.CoresPerPod; id++ {
				x, y := config.CoreCoord(id)
				site := addr.Site{PXN: uint32(pxn), Pod: uint32(pod), CoreX: x, CoreY: y}
				ctrl := memory.NewController(addr.KindL1SP, site, id, cfg.CoreL1SPSize, config.Interleave{})
				rb.RegisterL1SP(pxn, pod, ctrl)
			}
			for bank := 0; bank < cfg.PodL2SPBanks; bank++ {
				site := addr.Site{PXN: uint32(pxn), Pod: uint32(pod)}
				ctrl := memory.NewController(addr.KindL2SP, site, bank, cfg.PodL2SPSize/uint64(cfg.PodL2SPBanks), l2il)
				rb.RegisterL2SP(pxn, pod, ctrl)
			}
		}
		for port := 0; port < cfg.PXNDRAMPorts; port++ {
			site := addr.Site{PXN: uint32(pxn)}
			ctrl := memory.NewController(addr.KindDRAM, site, port, cfg.PXNDRAMSize/uint64(cfg.PXNDRAMPorts), dramil)
			rb.RegisterDRAM(pxn, ctrl)
		}
	}

	return rb.Freeze()
}

func (s *System) coreFinished() {
	s.remaining--
	if s.remaining == 0 {
		close(s.done)
	}
}

// Run drives the simulation engine to completion. The engine itself
// decides when no further events remain (§9 design note: ticking
// components unregister their own clock once idle), so a single call is
// sufficient — matching the teacher testbenches' single driver.Run().
func (s *System) Run() error {
	if err := s.engine.Run(); err != nil {
		return fmt.Errorf("system: engine run: %w", err)
	}
	return nil
}

// AllTerminated reports whether every core's live-thread count has
// reached zero (§4.3 point 4, §7 "exit is success iff").
func (s *System) AllTerminated() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// StatsCollector exposes the collector so a caller can render or persist
// final statistics after Run returns.
func (s *System) StatsCollector() *stats.Collector { return s.collector }

// PrintInt implements core.CtrlSink.
func (s *System) PrintInt(v int64) { fmt.Println(v) }

// PrintHex implements core.CtrlSink.
func (s *System) PrintHex(v uint64) { fmt.Printf("0x%x\n", v) }

// PrintChar implements core.CtrlSink.
func (s *System) PrintChar(c byte) { fmt.Printf("%c", c) }

// PrintTime implements core.CtrlSink.
func (s *System) PrintTime(cycle int64) { fmt.Println(cycle) }

// ResetCore implements core.CtrlSink: it resolves the target core by site
// and forwards the assert/deassert edge to it. An unknown site is a
// misconfigured CTRL_CORE_RESET write and reported as an error rather than
// silently ignored, matching the core package's own "unknown CTRL offset
// is fatal" stance.
func (s *System) ResetCore(site addr.Site, assert bool) error {
	c, ok := s.cores[site]
	if !ok {
		return fmt.Errorf("system: CTRL_CORE_RESET target pxn=%d pod=%d core=(%d,%d) has no core",
			site.PXN, site.Pod, site.CoreX, site.CoreY)
	}
	c.ApplyReset(assert)
	return nil
}
