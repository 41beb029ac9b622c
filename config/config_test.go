package config

import (
	"testing"

	. "github.com/onsi/gomega"
)

func baseSystem() System {
	sys, err := NewBuilder().
		WithNumPXN(1).
		WithPodsPerPXN(1).
		WithCoresPerPod(64).
		WithThreadsPerCore(4).
		WithCoreL1SPSize(1 << 16).
		WithPodL2SP(1<<20, 4, 64).
		WithPXNDRAM(1<<30, 4, 256).
		Build()
	if err != nil {
		panic(err)
	}
	return sys
}

func TestValidateAcceptsWellFormedSystem(t *testing.T) {
	g := NewGomegaWithT(t)

	sys := baseSystem()
	sys.Cores = []CoreConfig{{PXN: 0, Pod: 0, ID: 0, Clock: 1e9, Threads: 4}}

	g.Expect(sys.Validate()).To(Succeed())
}

func TestValidateRejectsWrongCoresPerPod(t *testing.T) {
	g := NewGomegaWithT(t)

	sys := baseSystem()
	sys.CoresPerPod = 32

	g.Expect(sys.Validate()).To(MatchError(ContainSubstring("sys_pod_cores must be 64")))
}

func TestValidateRejectsNonPowerOfTwoBanks(t *testing.T) {
	g := NewGomegaWithT(t)

	sys := baseSystem()
	sys.PodL2SPBanks = 3

	g.Expect(sys.Validate()).To(MatchError(ContainSubstring("sys_pod_l2sp_banks must be a power of two")))
}

func TestValidateRejectsOutOfRangeCoreReference(t *testing.T) {
	g := NewGomegaWithT(t)

	sys := baseSystem()
	sys.Cores = []CoreConfig{{PXN: 5, Pod: 0, ID: 0}}

	g.Expect(sys.Validate()).To(MatchError(ContainSubstring("out-of-range pxn")))
}

func TestCoreCoordRowMajor(t *testing.T) {
	g := NewGomegaWithT(t)

	x, y := CoreCoord(9)
	g.Expect(x).To(Equal(uint32(1)))
	g.Expect(y).To(Equal(uint32(1)))

	x, y = CoreCoord(0)
	g.Expect(x).To(Equal(uint32(0)))
	g.Expect(y).To(Equal(uint32(0)))

	x, y = CoreCoord(63)
	g.Expect(x).To(Equal(uint32(7)))
	g.Expect(y).To(Equal(uint32(7)))
}

func TestInterleaveBankAndLocalOffset(t *testing.T) {
	g := NewGomegaWithT(t)

	il := Interleave{StripeBytes: 64, NumBanks: 4}

	g.Expect(il.Bank(0)).To(Equal(0))
	g.Expect(il.Bank(64)).To(Equal(1))
	g.Expect(il.Bank(128)).To(Equal(2))
	g.Expect(il.Bank(256)).To(Equal(0))

	// The second stripe on bank 0 (global offset 256..319) maps back down
	// to local offset 64..127 within that bank's contiguous backing.
	g.Expect(il.LocalOffset(256)).To(Equal(uint64(64)))
	g.Expect(il.LocalOffset(0)).To(Equal(uint64(0)))
}

func TestBuilderRejectsInvalidSystem(t *testing.T) {
	g := NewGomegaWithT(t)

	_, err := NewBuilder().WithNumPXN(0).Build()
	g.Expect(err).To(HaveOccurred())
}
