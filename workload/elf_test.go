package workload

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega"
)

const (
	elfMachineRISCV = 243
	elfClass64      = 2
	elfDataLSB      = 1
)

// buildMinimalELF assembles the smallest valid 64-bit little-endian
// RISC-V ET_EXEC with one PT_LOAD segment holding code, for exercising
// LoadELF without shelling out to a real toolchain.
func buildMinimalELF(t *testing.T, entry, vaddr uint64, code []byte) string {
	t.Helper()

	const ehdrSize = 64
	const phdrSize = 56
	dataOff := uint64(ehdrSize + phdrSize)

	buf := make([]byte, dataOff+uint64(len(code)))

	buf[0], buf[1], buf[2], buf[3] = 0x7f, 'E', 'L', 'F'
	buf[4] = elfClass64
	buf[5] = elfDataLSB
	buf[6] = 1 // EI_VERSION

	le := binary.LittleEndian
	le.PutUint16(buf[16:], 2)               // e_type = ET_EXEC
	le.PutUint16(buf[18:], elfMachineRISCV) // e_machine
	le.PutUint32(buf[20:], 1)               // e_version
	le.PutUint64(buf[24:], entry)           // e_entry
	le.PutUint64(buf[32:], ehdrSize)        // e_phoff
	le.PutUint64(buf[40:], 0)               // e_shoff
	le.PutUint32(buf[48:], 0)               // e_flags
	le.PutUint16(buf[52:], ehdrSize)        // e_ehsize
	le.PutUint16(buf[54:], phdrSize)        // e_phentsize
	le.PutUint16(buf[56:], 1)               // e_phnum
	le.PutUint16(buf[58:], 0)               // e_shentsize
	le.PutUint16(buf[60:], 0)               // e_shnum
	le.PutUint16(buf[62:], 0)               // e_shstrndx

	ph := buf[ehdrSize:]
	le.PutUint32(ph[0:], 1)               // p_type = PT_LOAD
	le.PutUint32(ph[4:], 5)               // p_flags = PF_R | PF_X
	le.PutUint64(ph[8:], dataOff)         // p_offset
	le.PutUint64(ph[16:], vaddr)          // p_vaddr
	le.PutUint64(ph[24:], vaddr)          // p_paddr
	le.PutUint64(ph[32:], uint64(len(code))) // p_filesz
	le.PutUint64(ph[40:], uint64(len(code))) // p_memsz
	le.PutUint64(ph[48:], 0x1000)         // p_align

	copy(buf[dataOff:], code)

	path := filepath.Join(t.TempDir(), "prog.elf")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("writing test ELF: %v", err)
	}
	return path
}

func TestLoadELFReadsEntryAndSegment(t *testing.T) {
	g := NewGomegaWithT(t)

	code := []byte{0x13, 0x00, 0x00, 0x00, 0x73, 0x00, 0x00, 0x00} // ADDI x0,x0,0 ; ECALL
	path := buildMinimalELF(t, 0x10000, 0x10000, code)

	img, err := LoadELF(path)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(img.Entry).To(Equal(uint64(0x10000)))

	w0, err := img.FetchWord(0x10000)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(w0).To(Equal(uint32(0x13)))

	w1, err := img.FetchWord(0x10004)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(w1).To(Equal(uint32(0x73)))
}

func TestLoadELFComputesPageAlignedBreak(t *testing.T) {
	g := NewGomegaWithT(t)

	code := make([]byte, 10)
	path := buildMinimalELF(t, 0x1000, 0x1000, code)

	img, err := LoadELF(path)
	g.Expect(err).NotTo(HaveOccurred())

	// segment spans [0x1000, 0x100a); break rounds up to the next 4K page.
	g.Expect(img.InitialBreak()).To(Equal(uint64(0x2000)))
}

func TestFetchWordOutsideSegmentIsError(t *testing.T) {
	g := NewGomegaWithT(t)

	path := buildMinimalELF(t, 0x1000, 0x1000, make([]byte, 4))
	img, err := LoadELF(path)
	g.Expect(err).NotTo(HaveOccurred())

	_, err = img.FetchWord(0x9999)
	g.Expect(err).To(HaveOccurred())
}

func TestLoadELFRejectsMissingFile(t *testing.T) {
	g := NewGomegaWithT(t)

	_, err := LoadELF(filepath.Join(t.TempDir(), "missing.elf"))
	g.Expect(err).To(HaveOccurred())
}

func TestLoadELFRejectsWrongMachine(t *testing.T) {
	g := NewGomegaWithT(t)

	path := buildMinimalELF(t, 0x1000, 0x1000, make([]byte, 4))

	raw, err := os.ReadFile(path)
	g.Expect(err).NotTo(HaveOccurred())
	binary.LittleEndian.PutUint16(raw[18:], 0x3e) // EM_X86_64, not EM_RISCV
	g.Expect(os.WriteFile(path, raw, 0o644)).To(Succeed())

	_, err = LoadELF(path)
	g.Expect(err).To(HaveOccurred())
}
