// Package workload implements the two out-of-scope collaborators named in
// §1's narrow-contract boundary: loading a RISC-V ELF binary into
// host-addressable instruction/data images for the riscv front-end, and
// resolving a host-native shared library's coroutine entry point for the
// coroutine front-end. Everything else about running a workload (argv,
// syscall emulation, the coroutine protocol itself) lives in riscv and
// core; this package only answers "how do the bytes get off disk".
package workload

import (
	"debug/elf"
	"fmt"
)

// ELFImage is the host-addressable memory image decoded from a RISC-V
// ELF binary: one byte slice per loadable segment, plus the entry point a
// Hart resets to and the initial program break (the end of the highest
// loaded segment, rounded up to a page).
type ELFImage struct {
	Entry uint64

	segments []segment
	brk      uint64
}

type segment struct {
	vaddr uint64
	data  []byte // length == memsz; filesz bytes copied from the file, the rest left zero (.bss)
}

// LoadELF parses path with the standard library's debug/elf reader — the
// only ELF producers in the retrieval pack are compiler backends writing
// object files, not loaders for arbitrary pre-built workloads, so
// adapting one of those would not save code over the purpose-built
// stdlib reader (see DESIGN.md).
func LoadELF(path string) (*ELFImage, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("workload: opening ELF %s: %w", path, err)
	}
	defer f.Close()

	if f.Class != elf.ELFCLASS64 || f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("workload: %s is not a 64-bit RISC-V ELF (class=%v machine=%v)",
			path, f.Class, f.Machine)
	}

	img := &ELFImage{Entry: f.Entry}

	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}

		data := make([]byte, prog.Memsz)
		n, err := prog.ReadAt(data[:prog.Filesz], 0)
		if err != nil && n != int(prog.Filesz) {
			return nil, fmt.Errorf("workload: reading PT_LOAD segment at vaddr=0x%x: %w", prog.Vaddr, err)
		}

		img.segments = append(img.segments, segment{vaddr: prog.Vaddr, data: data})

		if end := prog.Vaddr + prog.Memsz; end > img.brk {
			img.brk = end
		}
	}

	if len(img.segments) == 0 {
		return nil, fmt.Errorf("workload: %s has no PT_LOAD segments", path)
	}

	// Round the initial break up to a page boundary, matching the typical
	// RISC-V Linux ABI's post-load heap start.
	const pageSize = 4096
	img.brk = (img.brk + pageSize - 1) &^ (pageSize - 1)

	return img, nil
}

// InitialBreak returns the heap start a sys_brk(0) call should report
// before any allocation has grown it.
func (img *ELFImage) InitialBreak() uint64 { return img.brk }

// FetchWord implements riscv.CodeMemory: it returns the little-endian
// 32-bit instruction word at pc, treating any address outside a loaded
// segment as a fatal fetch (§7 "the simulator or workload is broken").
func (img *ELFImage) FetchWord(pc uint64) (uint32, error) {
	seg, off, err := img.locate(pc, 4)
	if err != nil {
		return 0, err
	}
	b := seg.data[off : off+4]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

func (img *ELFImage) locate(vaddr uint64, size uint64) (*segment, uint64, error) {
	for i := range img.segments {
		seg := &img.segments[i]
		if vaddr >= seg.vaddr && vaddr+size <= seg.vaddr+uint64(len(seg.data)) {
			return seg, vaddr - seg.vaddr, nil
		}
	}
	return nil, 0, fmt.Errorf("workload: address 0x%x (size %d) is outside every loaded segment", vaddr, size)
}
