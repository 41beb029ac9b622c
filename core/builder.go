package core

import (
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/pando/addr"
	"github.com/sarchlab/pando/memory"
	"github.com/sarchlab/pando/stats"
)

// Builder constructs a Core, mirroring the teacher's fluent core.Builder.
type Builder struct {
	engine  sim.Engine
	freq    sim.Freq
	site    addr.Site
	backend memory.Backend
	ctrl    CtrlSink
	stats   *stats.CoreStats
	onEnd   func()
	maxIdle int64
}

// NewBuilder returns a Builder defaulting maxIdle to 1000 cycles, the
// teacher testbenches' usual idle-park grace period.
func NewBuilder() Builder { return Builder{maxIdle: 1000} }

func (b Builder) WithEngine(engine sim.Engine) Builder       { b.engine = engine; return b }
func (b Builder) WithFreq(freq sim.Freq) Builder             { b.freq = freq; return b }
func (b Builder) WithSite(site addr.Site) Builder            { b.site = site; return b }
func (b Builder) WithBackend(backend memory.Backend) Builder { b.backend = backend; return b }
func (b Builder) WithCtrlSink(ctrl CtrlSink) Builder         { b.ctrl = ctrl; return b }
func (b Builder) WithStats(cs *stats.CoreStats) Builder      { b.stats = cs; return b }
func (b Builder) WithOnEnd(fn func()) Builder                { b.onEnd = fn; return b }
func (b Builder) WithMaxIdle(n int64) Builder                { b.maxIdle = n; return b }

// Build constructs one hart per entry of frontends, entry i being the
// ThreadFrontend driving hart i, and registers the Core with the engine.
func (b Builder) Build(name string, frontends []ThreadFrontend) *Core {
	c := &Core{
		Site:        b.site,
		backend:     b.backend,
		ctrl:        b.ctrl,
		stats:       b.stats,
		onEnd:       b.onEnd,
		liveThreads: len(frontends),
		maxIdle:     b.maxIdle,
	}
	if sl, ok := b.backend.(advancer); ok {
		c.selfLink = sl
	}

	c.Threads = make([]*Thread, len(frontends))
	for i, fe := range frontends {
		c.Threads[i] = &Thread{ID: i, Frontend: fe}
	}

	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)
	return c
}
