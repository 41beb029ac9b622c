package memory

import (
	"sort"
	"sync"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/sarchlab/pando/addr"
	"github.com/sarchlab/pando/config"
	"github.com/sarchlab/pando/corestate"
)

func buildSystem(t *testing.T) (config.System, *Router) {
	t.Helper()
	g := NewGomegaWithT(t)

	sys, err := config.NewBuilder().
		WithNumPXN(1).
		WithPodsPerPXN(1).
		WithCoresPerPod(64).
		WithThreadsPerCore(4).
		WithCoreL1SPSize(1 << 17).
		WithPodL2SP(32<<20, 4, 64).
		WithPXNDRAM(256<<20, 4, 64).
		Build()
	g.Expect(err).NotTo(HaveOccurred())

	b := NewBuilder(sys)
	for id := 0; id < 64; id++ {
		x, y := config.CoreCoord(id)
		site := addr.Site{PXN: 0, Pod: 0, CoreX: x, CoreY: y}
		b.RegisterL1SP(0, 0, NewController(addr.KindL1SP, site, id, sys.CoreL1SPSize, config.Interleave{}))
	}
	for bank := 0; bank < sys.PodL2SPBanks; bank++ {
		site := addr.Site{PXN: 0, Pod: 0}
		b.RegisterL2SP(0, 0, NewController(addr.KindL2SP, site, bank,
			sys.PodL2SPSize/uint64(sys.PodL2SPBanks), sys.L2SPInterleave()))
	}
	for port := 0; port < sys.PXNDRAMPorts; port++ {
		site := addr.Site{PXN: 0}
		b.RegisterDRAM(0, NewController(addr.KindDRAM, site, port,
			sys.PXNDRAMSize/uint64(sys.PXNDRAMPorts), sys.DRAMInterleave()))
	}

	r, err := b.Freeze()
	g.Expect(err).NotTo(HaveOccurred())
	return sys, r
}

func TestL1SPStoreLoadRoundTrip(t *testing.T) {
	g := NewGomegaWithT(t)
	_, router := buildSystem(t)

	site := addr.Site{PXN: 0, Pod: 0, CoreY: 1, CoreX: 2}
	v := addr.VAddr(0x100)
	backend := &SimpleBackend{Router: router}

	want := []byte{0xBE, 0xBA, 0xFE, 0xCA, 0xEF, 0xBE, 0xAD, 0xDE} // little-endian 0xDEADBEEFCAFEBABE

	var writeResult Result
	backend.Submit(Request{Kind: RequestWrite, Site: site, Addr: v, WriteData: want, OnComplete: func(r Result) { writeResult = r }})
	g.Expect(writeResult.Err).NotTo(HaveOccurred())

	var readResult Result
	backend.Submit(Request{Kind: RequestRead, Site: site, Addr: v, Size: 8, OnComplete: func(r Result) { readResult = r }})
	g.Expect(readResult.Err).NotTo(HaveOccurred())
	g.Expect(readResult.ReadData).To(Equal(want))
}

func TestDRAMInterleaveRouting(t *testing.T) {
	g := NewGomegaWithT(t)
	_, router := buildSystem(t)

	offsets := []uint64{0, 64, 128, 192, 256}
	wantPorts := []int{0, 1, 2, 3, 0}

	for i, off := range offsets {
		v := addr.MainMemBase(0)
		v = addr.VAddr(uint64(v) | off) // offset fits entirely in the low 33-bit DRAM field
		site := addr.Site{PXN: 0}
		p := addr.ToPhysical(v, site)
		ctrl, _, err := router.Route(p)
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(ctrl.Index).To(Equal(wantPorts[i]), "offset %d", off)
	}
}

func TestL2SPLocalRoutingHitsOwningController(t *testing.T) {
	g := NewGomegaWithT(t)
	_, router := buildSystem(t)

	site := addr.Site{PXN: 0, Pod: 0}
	local := addr.MyL2Base()
	p := addr.ToPhysical(local, site)
	ctrl, _, err := router.Route(p)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(ctrl.Owns(p)).To(BeTrue())
}

func TestAtomicCASSuccessThenFailure(t *testing.T) {
	g := NewGomegaWithT(t)
	_, router := buildSystem(t)

	ctrl := router.dram[dramKey{0}][0]

	seven := make([]byte, 8)
	seven[0] = 7
	g.Expect(ctrl.Write(0, seven)).To(Succeed())

	r1, err := ctrl.AtomicRMW(0, 8, corestate.AtomicCAS, 42, 7)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(r1).To(Equal(uint64(7)))

	got, err := ctrl.Read(0, 8)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(getUint(got, 8)).To(Equal(uint64(42)))

	r2, err := ctrl.AtomicRMW(0, 8, corestate.AtomicCAS, 99, 7)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(r2).To(Equal(uint64(42)))

	got, _ = ctrl.Read(0, 8)
	g.Expect(getUint(got, 8)).To(Equal(uint64(42)))
}

func TestConcurrentAtomicAddLinearizes(t *testing.T) {
	g := NewGomegaWithT(t)
	_, router := buildSystem(t)
	ctrl := router.dram[dramKey{0}][1]

	const n = 2000
	results := make([]uint64, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			r, err := ctrl.AtomicRMW(0, 8, corestate.AtomicAdd, 1, 0)
			if err != nil {
				panic(err)
			}
			results[i] = r
		}(i)
	}
	wg.Wait()

	final, err := ctrl.Read(0, 8)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(getUint(final, 8)).To(Equal(uint64(n)))

	sort.Slice(results, func(i, j int) bool { return results[i] < results[j] })
	for i, r := range results {
		g.Expect(r).To(Equal(uint64(i)))
	}
}

func TestInvalidAtomicWidthIsError(t *testing.T) {
	g := NewGomegaWithT(t)
	_, router := buildSystem(t)
	ctrl := router.dram[dramKey{0}][0]

	_, err := ctrl.AtomicRMW(0, 3, corestate.AtomicAdd, 1, 0)
	g.Expect(err).To(HaveOccurred())
}

func TestSelfLinkBackendDelaysCompletion(t *testing.T) {
	g := NewGomegaWithT(t)
	_, router := buildSystem(t)

	backend := NewSelfLinkBackend(router, 100)
	site := addr.Site{PXN: 0, Pod: 0, CoreY: 0, CoreX: 0}

	completed := false
	backend.Submit(Request{
		Kind: RequestWrite, Site: site, Addr: addr.VAddr(0),
		WriteData: []byte{1, 2, 3, 4},
		OnComplete: func(r Result) { completed = true },
	})

	backend.Advance(50)
	g.Expect(completed).To(BeFalse())

	backend.Advance(100)
	g.Expect(completed).To(BeTrue())
}
