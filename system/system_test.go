package system_test

import (
	"testing"

	. "github.com/onsi/gomega"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/pando/addr"
	"github.com/sarchlab/pando/config"
	"github.com/sarchlab/pando/core"
	"github.com/sarchlab/pando/corestate"
	"github.com/sarchlab/pando/system"
)

// terminateImmediately is a ThreadFrontend that terminates on its very
// first Resume, enough to exercise System's wiring/termination signal
// without a real workload.
type terminateImmediately struct{}

func (terminateImmediately) Resume() *corestate.State {
	s := corestate.Terminated()
	return &s
}

func testSystemConfig() config.System {
	sys, err := config.NewBuilder().
		WithNumPXN(1).
		WithPodsPerPXN(1).
		WithCoresPerPod(64).
		WithThreadsPerCore(1).
		WithCoreL1SPSize(1 << 16).
		WithPodL2SP(1<<20, 4, 64).
		WithPXNDRAM(1<<24, 4, 256).
		Build()
	if err != nil {
		panic(err)
	}
	sys.Cores = []config.CoreConfig{
		{PXN: 0, Pod: 0, ID: 0, Clock: 1_000_000_000, Threads: 1},
	}
	return sys
}

func TestSystemBuildRunsToCompletion(t *testing.T) {
	g := NewGomegaWithT(t)

	engine := sim.NewSerialEngine()
	s, err := system.Build(testSystemConfig(), engine, system.Options{
		Backend:  system.BackendSimple,
		StatsDir: t.TempDir(),
		Threads: func(cfg config.CoreConfig, hartID int) core.ThreadFrontend {
			return terminateImmediately{}
		},
	})
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(s.Run()).To(Succeed())
	g.Expect(s.AllTerminated()).To(BeTrue())
}

func TestSystemBuildRejectsInvalidConfig(t *testing.T) {
	g := NewGomegaWithT(t)

	cfg := testSystemConfig()
	cfg.CoresPerPod = 8 // invalid

	_, err := system.Build(cfg, sim.NewSerialEngine(), system.Options{StatsDir: t.TempDir()})
	g.Expect(err).To(HaveOccurred())
}

func TestSystemBuildRejectsMissingThreadFactory(t *testing.T) {
	g := NewGomegaWithT(t)

	_, err := system.Build(testSystemConfig(), sim.NewSerialEngine(), system.Options{StatsDir: t.TempDir()})
	g.Expect(err).To(HaveOccurred())
}

func TestSystemResetCoreRejectsUnknownSite(t *testing.T) {
	g := NewGomegaWithT(t)

	engine := sim.NewSerialEngine()
	s, err := system.Build(testSystemConfig(), engine, system.Options{
		Backend:  system.BackendSimple,
		StatsDir: t.TempDir(),
		Threads: func(cfg config.CoreConfig, hartID int) core.ThreadFrontend {
			return terminateImmediately{}
		},
	})
	g.Expect(err).NotTo(HaveOccurred())

	err = s.ResetCore(addr.Site{PXN: 0, Pod: 0, CoreX: 7, CoreY: 7}, true)
	g.Expect(err).To(HaveOccurred())
}
