// Package riscv implements the RISC-V hart front-end (§4.4): a
// step-at-a-time RV64IA decoder/executor that, on any instruction
// touching PGAS memory, suspends by yielding a corestate.State exactly
// like the coroutine front-end does, and resumes once the memory
// subsystem completes the request.
//
// The decode/execute shape (flat opcode switch over a fetch-decode-
// execute loop, small Decode helpers, sign-extension helpers) follows
// bassosimone-risc32's vm.VM; the instruction set itself is RV64IA
// rather than RiSC-32.
package riscv

import (
	"fmt"

	"github.com/sarchlab/pando/addr"
	"github.com/sarchlab/pando/corestate"
)

const numRegs = 32

// CodeMemory is host-addressable, read-only instruction memory a Hart
// fetches from directly rather than through the PGAS memory subsystem:
// instruction fetch does not participate in the per-(thread,stage)
// memory statistics (§4.6 only buckets data loads/stores/atomics), so
// there is no reason to round-trip it through a Backend.
type CodeMemory interface {
	FetchWord(pc uint64) (uint32, error)
}

// pendingMem remembers the register-level effect of a suspended memory
// instruction until its corestate.State reports Completed.
type pendingMem struct {
	kind       corestate.Kind
	destReg    int
	isFloat    bool // destReg names an F register (execFLoad) rather than X
	width      int
	signExtend bool

	isSC bool
}

// Hart is one RISC-V hardware thread: register file, program counter,
// and the single in-flight memory request (if any) it is waiting on.
type Hart struct {
	X  [numRegs]uint64
	F  [numRegs]uint64
	PC uint64

	Code CodeMemory
	Sys  Syscalls

	terminated bool
	exitCode   int

	pending   *pendingMem
	lastState *corestate.State

	sc *pendingSyscall

	reservationValid bool
	reservationAddr  uint64
}

// NewHart creates a hart with PC set to resetPC, fetching from code and
// emulating syscalls via sys.
func NewHart(resetPC uint64, code CodeMemory, sys Syscalls) *Hart {
	return &Hart{PC: resetPC, Code: code, Sys: sys}
}

// ExitCode returns the argument passed to the hart's last exit syscall.
func (h *Hart) ExitCode() int { return h.exitCode }

// Resume implements core.ThreadFrontend: apply the previous instruction's
// deferred register write-back (if it suspended on memory), then fetch
// and execute exactly one instruction (§4.4).
func (h *Hart) Resume() *corestate.State {
	if h.terminated {
		return &corestate.State{Kind: corestate.KindTerminated}
	}

	if h.pending != nil {
		h.applyPending()
	}

	if h.sc != nil {
		if s := h.stepSyscall(); s != nil {
			return s
		}
	}

	word, err := h.Code.FetchWord(h.PC)
	if err != nil {
		panic(fmt.Sprintf("riscv: hart fetch at pc=0x%x: %v", h.PC, err))
	}

	return h.execute(word)
}

func (h *Hart) reg(i int) uint64 {
	if i == 0 {
		return 0
	}
	return h.X[i]
}

func (h *Hart) setReg(i int, v uint64) {
	if i != 0 {
		h.X[i] = v
	}
}

func bits(v uint32, hi, lo uint) uint32 {
	return (v >> lo) & ((1 << (hi - lo + 1)) - 1)
}

func signExtend(v uint32, width uint) int64 {
	shift := 32 - width
	return int64(int32(v<<shift) >> shift)
}

type decoded struct {
	opcode, funct3, funct7, funct5 uint32
	rd, rs1, rs2                   int
	immI, immS, immB, immU, immJ   int64
}

func decode(word uint32) decoded {
	d := decoded{
		opcode: word & 0x7f,
		rd:     int(bits(word, 11, 7)),
		funct3: bits(word, 14, 12),
		rs1:    int(bits(word, 19, 15)),
		rs2:    int(bits(word, 24, 20)),
		funct7: bits(word, 31, 25),
		funct5: bits(word, 31, 27),
	}
	d.immI = int64(int32(word) >> 20)
	d.immS = signExtend(bits(word, 31, 25)<<5|bits(word, 11, 7), 12)
	d.immB = signExtend(bits(word, 31, 31)<<12|bits(word, 7, 7)<<11|bits(word, 30, 25)<<5|bits(word, 11, 8)<<1, 13)
	d.immU = int64(int32(word & 0xfffff000))
	d.immJ = signExtend(bits(word, 31, 31)<<20|bits(word, 19, 12)<<12|bits(word, 20, 20)<<11|bits(word, 30, 21)<<1, 21)
	return d
}

// execute decodes and runs one instruction, returning either
// corestate.Running() (pure compute, already ready again) or a
// suspending state for a memory-touching or terminal instruction.
func (h *Hart) execute(word uint32) *corestate.State {
	d := decode(word)

	switch d.opcode {
	case 0x33: // R-type (32/64-bit integer register-register)
		h.execR(d)
		h.PC += 4
		return running()

	case 0x3b: // R-type, word-width (ADDW/SUBW/SLLW/SRLW/SRAW)
		h.execRW(d)
		h.PC += 4
		return running()

	case 0x13: // I-type ALU
		h.execIALU(d)
		h.PC += 4
		return running()

	case 0x1b: // I-type ALU, word-width (ADDIW/SLLIW/SRLIW/SRAIW)
		h.execIALUW(d)
		h.PC += 4
		return running()

	case 0x37: // LUI
		h.setReg(d.rd, uint64(d.immU))
		h.PC += 4
		return running()

	case 0x17: // AUIPC
		h.setReg(d.rd, h.PC+uint64(d.immU))
		h.PC += 4
		return running()

	case 0x6f: // JAL
		h.setReg(d.rd, h.PC+4)
		h.PC = h.PC + uint64(d.immJ)
		return running()

	case 0x67: // JALR
		next := h.PC + 4
		target := (h.reg(d.rs1) + uint64(d.immI)) &^ 1
		h.setReg(d.rd, next)
		h.PC = target
		return running()

	case 0x63: // Branch
		if h.branchTaken(d) {
			h.PC = h.PC + uint64(d.immB)
		} else {
			h.PC += 4
		}
		return running()

	case 0x03: // Load (integer)
		return h.execLoad(d)

	case 0x07: // Load (float)
		return h.execFLoad(d)

	case 0x23: // Store (int)
		return h.execStore(d)

	case 0x27: // Store (float)
		return h.execFStore(d)

	case 0x2f: // AMO
		return h.execAMO(d)

	case 0x73: // ECALL / EBREAK
		return h.execSystem(d)

	default:
		panic(fmt.Sprintf("riscv: unsupported opcode 0x%02x at pc=0x%x", d.opcode, h.PC))
	}
}

func running() *corestate.State {
	s := corestate.Running()
	return &s
}

func (h *Hart) branchTaken(d decoded) bool {
	a, b := h.reg(d.rs1), h.reg(d.rs2)
	switch d.funct3 {
	case 0x0: // BEQ
		return a == b
	case 0x1: // BNE
		return a != b
	case 0x4: // BLT
		return int64(a) < int64(b)
	case 0x5: // BGE
		return int64(a) >= int64(b)
	case 0x6: // BLTU
		return a < b
	case 0x7: // BGEU
		return a >= b
	default:
		panic(fmt.Sprintf("riscv: unknown branch funct3 %d at pc=0x%x", d.funct3, h.PC))
	}
}

func (h *Hart) execR(d decoded) {
	a, b := h.reg(d.rs1), h.reg(d.rs2)
	var v uint64
	switch {
	case d.funct3 == 0x0 && d.funct7 == 0x00:
		v = a + b
	case d.funct3 == 0x0 && d.funct7 == 0x20:
		v = a - b
	case d.funct3 == 0x1:
		v = a << (b & 0x3f)
	case d.funct3 == 0x2:
		v = boolToU64(int64(a) < int64(b))
	case d.funct3 == 0x3:
		v = boolToU64(a < b)
	case d.funct3 == 0x4:
		v = a ^ b
	case d.funct3 == 0x5 && d.funct7 == 0x00:
		v = a >> (b & 0x3f)
	case d.funct3 == 0x5 && d.funct7 == 0x20:
		v = uint64(int64(a) >> (b & 0x3f))
	case d.funct3 == 0x6:
		v = a | b
	case d.funct3 == 0x7:
		v = a & b
	default:
		panic(fmt.Sprintf("riscv: unknown R-type funct3=%d funct7=%d at pc=0x%x", d.funct3, d.funct7, h.PC))
	}
	h.setReg(d.rd, v)
}

func (h *Hart) execRW(d decoded) {
	a, b := uint32(h.reg(d.rs1)), uint32(h.reg(d.rs2))
	var v int32
	switch {
	case d.funct3 == 0x0 && d.funct7 == 0x00:
		v = int32(a + b)
	case d.funct3 == 0x0 && d.funct7 == 0x20:
		v = int32(a - b)
	case d.funct3 == 0x1:
		v = int32(a << (b & 0x1f))
	case d.funct3 == 0x5 && d.funct7 == 0x00:
		v = int32(a >> (b & 0x1f))
	case d.funct3 == 0x5 && d.funct7 == 0x20:
		v = int32(a) >> (b & 0x1f)
	default:
		panic(fmt.Sprintf("riscv: unknown RW-type funct3=%d funct7=%d at pc=0x%x", d.funct3, d.funct7, h.PC))
	}
	h.setReg(d.rd, uint64(int64(v)))
}

func (h *Hart) execIALU(d decoded) {
	a, imm := h.reg(d.rs1), uint64(d.immI)
	var v uint64
	switch d.funct3 {
	case 0x0:
		v = a + imm
	case 0x2:
		v = boolToU64(int64(a) < d.immI)
	case 0x3:
		v = boolToU64(a < imm)
	case 0x4:
		v = a ^ imm
	case 0x6:
		v = a | imm
	case 0x7:
		v = a & imm
	case 0x1:
		v = a << (imm & 0x3f)
	case 0x5:
		if (uint32(imm)>>10)&1 == 1 { // funct7 upper bits = 0b010000 -> arithmetic
			v = uint64(int64(a) >> (imm & 0x3f))
		} else {
			v = a >> (imm & 0x3f)
		}
	default:
		panic(fmt.Sprintf("riscv: unknown I-ALU funct3=%d at pc=0x%x", d.funct3, h.PC))
	}
	h.setReg(d.rd, v)
}

func (h *Hart) execIALUW(d decoded) {
	a := uint32(h.reg(d.rs1))
	shamt := uint32(d.immI) & 0x1f
	var v int32
	switch d.funct3 {
	case 0x0:
		v = int32(a) + int32(d.immI)
	case 0x1:
		v = int32(a << shamt)
	case 0x5:
		if (uint32(d.immI)>>10)&1 == 1 {
			v = int32(a) >> shamt
		} else {
			v = int32(a >> shamt)
		}
	default:
		panic(fmt.Sprintf("riscv: unknown IW-ALU funct3=%d at pc=0x%x", d.funct3, h.PC))
	}
	h.setReg(d.rd, uint64(int64(v)))
}

func boolToU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// loadWidth decodes funct3 of an integer load (opcode 0x03) into byte width
// and sign-extension.
func loadWidth(funct3 uint32) (width int, signExtend bool) {
	switch funct3 {
	case 0x0:
		return 1, true // LB
	case 0x1:
		return 2, true // LH
	case 0x2:
		return 4, true // LW
	case 0x3:
		return 8, false // LD
	case 0x4:
		return 1, false // LBU
	case 0x5:
		return 2, false // LHU
	case 0x6:
		return 4, false // LWU
	default:
		return 0, false
	}
}

func (h *Hart) execLoad(d decoded) *corestate.State {
	width, signExtend := loadWidth(d.funct3)
	if width == 0 {
		panic(fmt.Sprintf("riscv: unknown load funct3=%d at pc=0x%x", d.funct3, h.PC))
	}
	ea := h.reg(d.rs1) + uint64(d.immI)
	s := corestate.MemRead(addr.VAddr(ea), width)

	h.lastState = s
	h.pending = &pendingMem{kind: corestate.KindMemRead, destReg: d.rd, width: width, signExtend: signExtend}
	h.PC += 4
	return s
}

// floatLoadWidth decodes funct3 of a float load (opcode 0x07, LOAD-FP) into
// byte width. FLW/FLD never sign-extend: the raw bit pattern is the value.
func floatLoadWidth(funct3 uint32) (width int, ok bool) {
	switch funct3 {
	case 0x2:
		return 4, true // FLW
	case 0x3:
		return 8, true // FLD
	default:
		return 0, false
	}
}

// execFLoad handles FLW/FLD (opcode 0x07): same shape as an integer load,
// writing into an F register instead of an X register (§4.4 lists FLW among
// the mandatory memory-touching opcodes).
func (h *Hart) execFLoad(d decoded) *corestate.State {
	width, ok := floatLoadWidth(d.funct3)
	if !ok {
		panic(fmt.Sprintf("riscv: unknown float load funct3=%d at pc=0x%x", d.funct3, h.PC))
	}
	ea := h.reg(d.rs1) + uint64(d.immI)
	s := corestate.MemRead(addr.VAddr(ea), width)

	h.lastState = s
	h.pending = &pendingMem{kind: corestate.KindMemRead, destReg: d.rd, width: width, isFloat: true}
	h.PC += 4
	return s
}

func storeWidth(funct3 uint32) int {
	switch funct3 {
	case 0x0:
		return 1
	case 0x1:
		return 2
	case 0x2:
		return 4
	case 0x3:
		return 8
	default:
		return 0
	}
}

func (h *Hart) execStore(d decoded) *corestate.State {
	width := storeWidth(d.funct3)
	if width == 0 {
		panic(fmt.Sprintf("riscv: unknown store funct3=%d at pc=0x%x", d.funct3, h.PC))
	}
	ea := h.reg(d.rs1) + uint64(d.immS)
	payload := encodeWidth(h.reg(d.rs2), width)
	s := corestate.MemWrite(addr.VAddr(ea), payload)

	h.lastState = s
	h.pending = &pendingMem{kind: corestate.KindMemWrite}
	h.PC += 4
	return s
}

// execFStore handles FSW/FSD (opcode 0x27): same shape as an integer
// store, sourced from an F register.
func (h *Hart) execFStore(d decoded) *corestate.State {
	width := storeWidth(d.funct3)
	if width != 4 && width != 8 {
		panic(fmt.Sprintf("riscv: unknown float store funct3=%d at pc=0x%x", d.funct3, h.PC))
	}
	ea := h.reg(d.rs1) + uint64(d.immS)
	payload := encodeWidth(h.F[d.rs2], width)
	s := corestate.MemWrite(addr.VAddr(ea), payload)

	h.lastState = s
	h.pending = &pendingMem{kind: corestate.KindMemWrite}
	h.PC += 4
	return s
}

func encodeWidth(v uint64, width int) []byte {
	buf := make([]byte, width)
	for i := 0; i < width; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	return buf
}

func decodeWidth(b []byte, width int, signExtend bool) uint64 {
	var v uint64
	for i := width - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	if signExtend {
		shift := 64 - uint(width*8)
		return uint64(int64(v<<shift) >> shift)
	}
	return v
}

// execAMO implements the RV64A subset PANDO's memory controllers can
// actually serve: LR/SC, AMOSWAP, AMOADD and AMOOR (§4.5 only defines
// CAS/SWAP/ADD/OR). AMOAND/AMOXOR/AMOMIN/AMOMAX have no PANDO atomic
// primitive to lower onto and are intentionally unsupported.
func (h *Hart) execAMO(d decoded) *corestate.State {
	width := 4
	if d.funct3 == 0x3 {
		width = 8
	}
	ea := h.reg(d.rs1)

	switch d.funct5 {
	case 0b00010: // LR
		s := corestate.MemRead(addr.VAddr(ea), width)
		h.reservationValid = true
		h.reservationAddr = ea
		h.lastState = s
		h.pending = &pendingMem{kind: corestate.KindMemRead, destReg: d.rd, width: width, signExtend: true}
		h.PC += 4
		return s

	case 0b00011: // SC
		if !h.reservationValid || h.reservationAddr != ea {
			h.setReg(d.rd, 1) // failure, no memory access performed
			h.reservationValid = false
			h.PC += 4
			return running()
		}
		// The reservation is tracked entirely Hart-side (PANDO's memory
		// controllers have no LR/SC reservation state of their own), so by
		// the time the check above passes, success is already decided: an
		// unconditional SWAP stores rs2 and the old value is discarded.
		h.reservationValid = false
		s := corestate.MemAtomic(addr.VAddr(ea), width, corestate.AtomicSwap, h.reg(d.rs2), 0, false)
		h.lastState = s
		h.pending = &pendingMem{kind: corestate.KindMemAtomic, destReg: d.rd, width: width, isSC: true}
		h.PC += 4
		return s

	default:
		var op corestate.AtomicOp
		switch d.funct5 {
		case 0b00001:
			op = corestate.AtomicSwap
		case 0b00000:
			op = corestate.AtomicAdd
		case 0b01000:
			op = corestate.AtomicOr
		default:
			panic(fmt.Sprintf("riscv: unsupported AMO funct5=%b at pc=0x%x (PANDO exposes only CAS/SWAP/ADD/OR)", d.funct5, h.PC))
		}
		s := corestate.MemAtomic(addr.VAddr(ea), width, op, h.reg(d.rs2), 0, false)
		h.lastState = s
		h.pending = &pendingMem{kind: corestate.KindMemAtomic, destReg: d.rd, width: width, signExtend: true}
		h.PC += 4
		return s
	}
}

func (h *Hart) applyPending() {
	p := h.pending
	s := h.lastState
	h.pending, h.lastState = nil, nil

	switch p.kind {
	case corestate.KindMemRead:
		v := decodeWidth(s.Result, p.width, p.signExtend)
		if p.isFloat {
			h.F[p.destReg] = v
		} else {
			h.setReg(p.destReg, v)
		}

	case corestate.KindMemAtomic:
		if p.isSC {
			// Reservation validity was already checked before the SWAP was
			// issued, so reaching here always means success: rd receives 0,
			// the RISC-V SC success code.
			h.setReg(p.destReg, 0)
			return
		}
		old := decodeWidth(intToBytes(s.AtomicResult, p.width), p.width, p.signExtend)
		h.setReg(p.destReg, old)
	}
}

func intToBytes(v uint64, width int) []byte {
	return encodeWidth(v, width)
}

// execSystem handles ECALL (funct3==0, imm==0) and EBREAK (imm==1),
// dispatching the former to Sys per the a7/a0-a5 Linux RISC-V syscall
// ABI convention.
func (h *Hart) execSystem(d decoded) *corestate.State {
	switch d.immI {
	case 0: // ECALL
		h.doSyscall()
		if h.sc != nil {
			// A chunked syscall (read/write/open/fstat) is under way; its
			// own completion (stepSyscall's dirDone branch) advances the
			// PC once the last chunk lands, not here.
			if h.terminated {
				return &corestate.State{Kind: corestate.KindTerminated}
			}
			return h.stepSyscall()
		}
		h.PC += 4
		if h.terminated {
			return &corestate.State{Kind: corestate.KindTerminated}
		}
		return running()
	case 1: // EBREAK
		h.terminated = true
		h.exitCode = 0
		return &corestate.State{Kind: corestate.KindTerminated}
	default:
		panic(fmt.Sprintf("riscv: unknown SYSTEM immediate %d at pc=0x%x", d.immI, h.PC))
	}
}
