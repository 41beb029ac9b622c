package workload

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega"
)

func TestHostSyscallsOpenWriteReadCloseRoundTrip(t *testing.T) {
	g := NewGomegaWithT(t)

	sys := NewHostSyscalls(0x1000, nil)
	path := filepath.Join(t.TempDir(), "out.txt")

	const oCreat, oWrOnly, oTrunc = 0x40, 0x1, 0x200
	fd, err := sys.Open(path, oWrOnly|oCreat|oTrunc, 0o644)
	g.Expect(err).NotTo(HaveOccurred())

	n, err := sys.Write(fd, []byte("hello"))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(n).To(Equal(int64(5)))

	g.Expect(sys.Close(fd)).To(Succeed())

	raw, err := os.ReadFile(path)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(string(raw)).To(Equal("hello"))

	fd2, err := sys.Open(path, 0, 0)
	g.Expect(err).NotTo(HaveOccurred())
	buf := make([]byte, 5)
	n, err = sys.Read(fd2, buf)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(n).To(Equal(int64(5)))
	g.Expect(string(buf)).To(Equal("hello"))
}

func TestHostSyscallsFstatReportsSize(t *testing.T) {
	g := NewGomegaWithT(t)

	sys := NewHostSyscalls(0, nil)
	path := filepath.Join(t.TempDir(), "sized.txt")
	g.Expect(os.WriteFile(path, []byte("abcde"), 0o644)).To(Succeed())

	fd, err := sys.Open(path, 0, 0)
	g.Expect(err).NotTo(HaveOccurred())

	statOut := make([]byte, 64)
	g.Expect(sys.Fstat(fd, statOut)).To(Succeed())

	var size uint64
	for i := 0; i < 8; i++ {
		size |= uint64(statOut[48+i]) << (8 * i)
	}
	g.Expect(size).To(Equal(uint64(5)))
}

func TestHostSyscallsBrkGrowsOnlyForward(t *testing.T) {
	g := NewGomegaWithT(t)

	sys := NewHostSyscalls(0x1000, nil)
	g.Expect(sys.Brk(0x2000)).To(Equal(uint64(0x2000)))
	g.Expect(sys.Brk(0x1800)).To(Equal(uint64(0x2000))) // shrink is ignored
}

func TestHostSyscallsExitInvokesCallback(t *testing.T) {
	g := NewGomegaWithT(t)

	var gotCode int
	called := false
	sys := NewHostSyscalls(0, func(code int) { called = true; gotCode = code })

	sys.Exit(42)
	g.Expect(called).To(BeTrue())
	g.Expect(gotCode).To(Equal(42))
}

func TestHostSyscallsWriteToUnknownFdErrors(t *testing.T) {
	g := NewGomegaWithT(t)

	sys := NewHostSyscalls(0, nil)
	_, err := sys.Write(99, []byte("x"))
	g.Expect(err).To(HaveOccurred())
}
