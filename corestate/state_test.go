package corestate

import (
	"testing"

	. "github.com/onsi/gomega"

	"github.com/sarchlab/pando/addr"
)

func TestRunningIsAlwaysReady(t *testing.T) {
	g := NewGomegaWithT(t)

	s := Running()
	g.Expect(s.Ready()).To(BeTrue())
}

func TestNopIsNotReadyUntilComplete(t *testing.T) {
	g := NewGomegaWithT(t)

	s := Nop(100)
	g.Expect(s.Ready()).To(BeFalse())

	s.Complete()
	g.Expect(s.Ready()).To(BeTrue())
}

func TestMemWriteCopiesPayload(t *testing.T) {
	g := NewGomegaWithT(t)

	payload := []byte{1, 2, 3}
	s := MemWrite(addr.VAddr(0x1000), payload)
	payload[0] = 0xff // mutating the caller's slice must not alias the state

	g.Expect(s.WritePayload).To(Equal([]byte{1, 2, 3}))
	g.Expect(s.Ready()).To(BeFalse())
}

func TestNilStateIsReady(t *testing.T) {
	g := NewGomegaWithT(t)

	var s *State
	g.Expect(s.Ready()).To(BeTrue())
}

func TestMemAtomicCarriesOperands(t *testing.T) {
	g := NewGomegaWithT(t)

	s := MemAtomic(addr.VAddr(0x40), 8, AtomicCAS, 7, 42, true)
	g.Expect(s.Op).To(Equal(AtomicCAS))
	g.Expect(s.WriteOperand).To(Equal(uint64(7)))
	g.Expect(s.ExtOperand).To(Equal(uint64(42)))
	g.Expect(s.HasExtOperand).To(BeTrue())
	g.Expect(s.Ready()).To(BeFalse())
}
