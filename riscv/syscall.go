package riscv

import (
	"fmt"

	"github.com/sarchlab/pando/addr"
	"github.com/sarchlab/pando/corestate"
)

// Syscalls is the host-side backend a Hart's ECALL dispatches into (§4.4:
// "exit, brk, write, read, open, close, fstat"). Every method operates on
// host-native byte slices; the chunked traffic between those slices and
// simulated PGAS memory is handled entirely inside Hart, so a Syscalls
// implementation never has to know it is fed one chunk at a time.
type Syscalls interface {
	Exit(code int)
	Brk(newBreak uint64) (result uint64)
	Open(path string, flags int64, mode int64) (fd int64, err error)
	Close(fd int64) error
	Write(fd int64, data []byte) (n int64, err error)
	Read(fd int64, buf []byte) (n int64, err error)
	Fstat(fd int64, statOut []byte) error
}

// Linux RISC-V64 syscall ABI numbers carried in a7.
const (
	sysRead  = 63
	sysWrite = 64
	sysOpen  = 1024 // simplified single-path open, no *at variant
	sysClose = 57
	sysFstat = 80
	sysBrk   = 214
	sysExit  = 93
)

const (
	chunkSize  = 64  // bytes moved per MemRead/MemWrite chunk against PGAS memory
	maxPathLen = 4096 // cap on a chunked path-string read, same as Linux PATH_MAX
	statSize   = 128  // simplified struct stat payload this interpreter emulates
)

// syscallDir is which direction a multi-chunk syscall moves bytes between
// a host buffer and simulated PGAS memory.
type syscallDir int

const (
	dirReadPath syscallDir = iota // read a NUL-terminated path string out of PGAS memory
	dirReadBuf                    // read a write()-source buffer out of PGAS memory
	dirWriteBuf                   // write a read()/fstat()-result buffer into PGAS memory
	dirDone                       // every chunk moved; invoke the host call and retire
)

// pendingSyscall drives a syscall's chunked traffic against simulated
// memory. Resume() moves at most one chunk per call (§4.4 "chunked reads/
// writes... with a coalescing handler that invokes a continuation only
// after the last chunk's response"); the host-side Syscalls method runs
// exactly once, either before chunking starts (read, fstat: the host call
// produces the bytes that get written out to PGAS memory) or after the
// last chunk completes (write, open: the host call consumes bytes already
// collected from PGAS memory).
type pendingSyscall struct {
	which int64 // the a7 syscall number this state machine is servicing
	dir   syscallDir

	vaddr     uint64 // next PGAS address to touch
	remaining int64  // bytes left to move; -1 means "until NUL" (dirReadPath)
	buf       []byte // bytes collected from, or staged to go into, PGAS memory

	fd    int64
	flags int64
	mode  int64

	readResult int64 // sysRead's already-computed return value, reported once dirDone

	last *corestate.State // the chunk state most recently issued, awaiting completion
}

func (h *Hart) doSyscall() {
	num := int64(h.reg(17)) // a7

	switch num {
	case sysExit:
		h.terminated = true
		h.exitCode = int(h.reg(10))
		h.Sys.Exit(h.exitCode)

	case sysBrk:
		h.setReg(10, h.Sys.Brk(h.reg(10)))

	case sysWrite:
		h.sc = &pendingSyscall{
			which: num, dir: dirReadBuf,
			vaddr: h.reg(11), remaining: int64(h.reg(12)), fd: int64(h.reg(10)),
		}

	case sysRead:
		count := int64(h.reg(12))
		hostBuf := make([]byte, count)
		n, err := h.Sys.Read(int64(h.reg(10)), hostBuf)
		if err != nil {
			n = -1
		}
		buf := make([]byte, 0)
		if n > 0 {
			buf = hostBuf[:n]
		}
		h.sc = &pendingSyscall{
			which: num, dir: dirWriteBuf,
			vaddr: h.reg(11), remaining: int64(len(buf)), buf: buf,
		}
		h.sc.readResult = n

	case sysOpen:
		h.sc = &pendingSyscall{
			which: num, dir: dirReadPath,
			vaddr: h.reg(10), remaining: -1,
			flags: int64(h.reg(11)), mode: int64(h.reg(12)),
		}

	case sysClose:
		var rc int64
		if err := h.Sys.Close(int64(h.reg(10))); err != nil {
			rc = -1
		}
		h.setReg(10, uint64(rc))

	case sysFstat:
		fd := int64(h.reg(10))
		buf := make([]byte, statSize)
		if err := h.Sys.Fstat(fd, buf); err != nil {
			h.setReg(10, ^uint64(0)) // -1
			return
		}
		h.sc = &pendingSyscall{
			which: num, dir: dirWriteBuf,
			vaddr: h.reg(11), remaining: int64(len(buf)), buf: buf,
		}

	default:
		panic(fmt.Sprintf("riscv: unknown syscall number a7=%d at pc=0x%x", num, h.PC))
	}
}

// stepSyscall advances a chunked syscall by exactly one chunk per call,
// consuming the previous chunk's result first if one is outstanding.
func (h *Hart) stepSyscall() *corestate.State {
	sc := h.sc

	if sc.last != nil {
		h.consumeChunk(sc)
	}

	if sc.dir == dirDone {
		h.finalizeSyscall(sc)
		h.sc = nil
		h.PC += 4
		return running()
	}

	n := sc.remaining
	if n < 0 || n > chunkSize {
		n = chunkSize
	}
	if n == 0 {
		sc.dir = dirDone
		return h.stepSyscall()
	}

	switch sc.dir {
	case dirReadPath, dirReadBuf:
		s := corestate.MemRead(addr.VAddr(sc.vaddr), int(n))
		sc.last = s
		return s

	case dirWriteBuf:
		start := int64(len(sc.buf)) - sc.remaining
		s := corestate.MemWrite(addr.VAddr(sc.vaddr), sc.buf[start:start+n])
		sc.last = s
		return s

	default:
		panic("riscv: unreachable syscall step")
	}
}

func (h *Hart) consumeChunk(sc *pendingSyscall) {
	s := sc.last
	sc.last = nil

	switch sc.dir {
	case dirReadPath:
		nul := -1
		for i, b := range s.Result {
			if b == 0 {
				nul = i
				break
			}
		}
		if nul >= 0 {
			sc.buf = append(sc.buf, s.Result[:nul]...)
			sc.dir = dirDone
			return
		}
		sc.buf = append(sc.buf, s.Result...)
		sc.vaddr += uint64(len(s.Result))
		if len(sc.buf) >= maxPathLen {
			sc.dir = dirDone
		}

	case dirReadBuf:
		sc.buf = append(sc.buf, s.Result...)
		sc.vaddr += uint64(len(s.Result))
		sc.remaining -= int64(len(s.Result))
		if sc.remaining <= 0 {
			sc.dir = dirDone
		}

	case dirWriteBuf:
		sc.vaddr += uint64(len(s.WritePayload))
		sc.remaining -= int64(len(s.WritePayload))
		if sc.remaining <= 0 {
			sc.dir = dirDone
		}
	}
}

func (h *Hart) finalizeSyscall(sc *pendingSyscall) {
	switch sc.which {
	case sysWrite:
		n, err := h.Sys.Write(sc.fd, sc.buf)
		h.setReg(10, syscallReturn(n, err))

	case sysRead:
		h.setReg(10, syscallReturn(sc.readResult, nil))

	case sysOpen:
		fd, err := h.Sys.Open(string(sc.buf), sc.flags, sc.mode)
		h.setReg(10, syscallReturn(fd, err))

	case sysFstat:
		h.setReg(10, 0)
	}
}

func syscallReturn(n int64, err error) uint64 {
	if err != nil {
		return ^uint64(0) // -1
	}
	return uint64(n)
}
