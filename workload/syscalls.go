package workload

import (
	"fmt"
	"os"

	"github.com/sarchlab/pando/riscv"
)

// HostSyscalls implements riscv.Syscalls by forwarding to the real host
// OS (§1 "host OS syscall emulation for the RISC-V interpreter" is named
// as out of scope for the core, but a concrete implementation has to
// exist somewhere for a workload to run to completion against real
// files; this is that narrow, host-facing edge).
type HostSyscalls struct {
	onExit func(code int)
	brk    uint64

	files map[int64]*os.File
	next  int64
}

// NewHostSyscalls creates a Syscalls backend whose break starts at
// initialBreak (typically ELFImage.InitialBreak()) and which invokes
// onExit when the workload calls sys_exit.
func NewHostSyscalls(initialBreak uint64, onExit func(code int)) *HostSyscalls {
	return &HostSyscalls{
		onExit: onExit,
		brk:    initialBreak,
		files:  make(map[int64]*os.File),
		next:   3, // fds 0-2 are stdin/stdout/stderr, never allocated here
	}
}

var _ riscv.Syscalls = (*HostSyscalls)(nil)

func (s *HostSyscalls) Exit(code int) {
	if s.onExit != nil {
		s.onExit(code)
	}
}

func (s *HostSyscalls) Brk(newBreak uint64) uint64 {
	if newBreak > s.brk {
		s.brk = newBreak
	}
	return s.brk
}

func (s *HostSyscalls) Open(path string, flags int64, mode int64) (int64, error) {
	f, err := os.OpenFile(path, hostFlags(flags), os.FileMode(mode))
	if err != nil {
		return -1, err
	}
	fd := s.next
	s.next++
	s.files[fd] = f
	return fd, nil
}

func (s *HostSyscalls) Close(fd int64) error {
	switch fd {
	case 0, 1, 2:
		return nil
	}
	f, ok := s.files[fd]
	if !ok {
		return fmt.Errorf("workload: close of unknown fd %d", fd)
	}
	delete(s.files, fd)
	return f.Close()
}

func (s *HostSyscalls) Write(fd int64, data []byte) (int64, error) {
	switch fd {
	case 1:
		n, err := os.Stdout.Write(data)
		return int64(n), err
	case 2:
		n, err := os.Stderr.Write(data)
		return int64(n), err
	}
	f, ok := s.files[fd]
	if !ok {
		return 0, fmt.Errorf("workload: write to unknown fd %d", fd)
	}
	n, err := f.Write(data)
	return int64(n), err
}

func (s *HostSyscalls) Read(fd int64, buf []byte) (int64, error) {
	if fd == 0 {
		n, err := os.Stdin.Read(buf)
		return int64(n), err
	}
	f, ok := s.files[fd]
	if !ok {
		return 0, fmt.Errorf("workload: read from unknown fd %d", fd)
	}
	n, err := f.Read(buf)
	return int64(n), err
}

// Fstat fills statOut with a simplified struct stat: only the size field
// (bytes 48..55 in the RISC-V Linux ABI layout) is populated; every other
// field is left zero. No workload in the retrieval pack's testbenches
// inspects anything beyond file size.
func (s *HostSyscalls) Fstat(fd int64, statOut []byte) error {
	var info os.FileInfo
	var err error
	switch fd {
	case 0, 1, 2:
		info, err = os.Stdout.Stat()
	default:
		f, ok := s.files[fd]
		if !ok {
			return fmt.Errorf("workload: fstat of unknown fd %d", fd)
		}
		info, err = f.Stat()
	}
	if err != nil {
		return err
	}
	if len(statOut) >= 56 {
		size := uint64(info.Size())
		for i := 0; i < 8; i++ {
			statOut[48+i] = byte(size >> (8 * i))
		}
	}
	return nil
}

func hostFlags(flags int64) int {
	// Linux RISC-V O_* bit values, translated to the host's os package
	// constants rather than passed through raw (they are not portable
	// across GOOS).
	const (
		oRdOnly = 0x0
		oWrOnly = 0x1
		oRdWr   = 0x2
		oCreat  = 0x40
		oTrunc  = 0x200
		oAppend = 0x400
	)

	var out int
	switch flags & 0x3 {
	case oWrOnly:
		out = os.O_WRONLY
	case oRdWr:
		out = os.O_RDWR
	default:
		out = os.O_RDONLY
	}
	if flags&oCreat != 0 {
		out |= os.O_CREATE
	}
	if flags&oTrunc != 0 {
		out |= os.O_TRUNC
	}
	if flags&oAppend != 0 {
		out |= os.O_APPEND
	}
	return out
}
