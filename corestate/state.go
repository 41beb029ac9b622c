// Package corestate defines the thread-state tagged variant (§3) that a
// hart publishes when it suspends, and the request payloads that carry
// memory operations between a thread and the memory subsystem.
package corestate

import "github.com/sarchlab/pando/addr"

// AtomicOp is the opcode set a memory controller understands for a
// request-type atomic read-modify-write (§4.5).
type AtomicOp int

const (
	AtomicCAS AtomicOp = iota
	AtomicSwap
	AtomicAdd
	AtomicOr
)

func (op AtomicOp) String() string {
	switch op {
	case AtomicCAS:
		return "CAS"
	case AtomicSwap:
		return "SWAP"
	case AtomicAdd:
		return "ADD"
	case AtomicOr:
		return "OR"
	default:
		return "Unknown"
	}
}

// Stage is the application-declared phase tag used to bucket statistics
// (§4.6, GLOSSARY).
type Stage int

const (
	StageInit Stage = iota
	StageExecComp
	StageExecComm
	StageOther
)

func (s Stage) String() string {
	switch s {
	case StageInit:
		return "INIT"
	case StageExecComp:
		return "EXEC_COMP"
	case StageExecComm:
		return "EXEC_COMM"
	case StageOther:
		return "OTHER"
	default:
		return "Unknown"
	}
}

// Kind tags which variant a State value holds.
type Kind int

const (
	KindRunning Kind = iota
	KindTerminated
	KindNop
	KindMemRead
	KindMemWrite
	KindMemAtomic
	KindSetStage
	KindToNativePointer
)

// State is the tagged variant a hart publishes to yield control back to
// the scheduler (§3 "Thread state variant"). Only the fields relevant to
// Kind are meaningful; Completed governs readiness for every suspending
// kind. A zero-value State is KindRunning.
type State struct {
	Kind Kind

	// Nop
	CyclesRemaining int64

	// MemRead / MemWrite / MemAtomic / ToNativePointer
	Addr   addr.VAddr
	Size   int
	Result []byte // MemRead writes here; ToNativePointer unused

	// MemWrite
	WritePayload []byte

	// MemAtomic
	Op            AtomicOp
	WriteOperand  uint64
	ExtOperand    uint64
	HasExtOperand bool
	AtomicResult  uint64

	// SetStage
	NewStage Stage

	// ToNativePointer
	NativePtr      []byte // host-addressable backing slice, if available
	BytesToStripeEnd uint64

	Completed bool
}

// Running is the state a hart is in while it has not yet suspended.
func Running() State { return State{Kind: KindRunning, Completed: true} }

// Terminated is a terminal state: never resumable.
func Terminated() State { return State{Kind: KindTerminated, Completed: false} }

// Nop publishes a timed no-op for the given number of cycles.
func Nop(cycles int64) *State {
	return &State{Kind: KindNop, CyclesRemaining: cycles}
}

// MemRead publishes a pending load request.
func MemRead(a addr.VAddr, size int) *State {
	return &State{Kind: KindMemRead, Addr: a, Size: size, Result: make([]byte, size)}
}

// MemWrite publishes a pending store request.
func MemWrite(a addr.VAddr, payload []byte) *State {
	buf := make([]byte, len(payload))
	copy(buf, payload)
	return &State{Kind: KindMemWrite, Addr: a, Size: len(payload), WritePayload: buf}
}

// MemAtomic publishes a pending atomic RMW request.
func MemAtomic(a addr.VAddr, size int, op AtomicOp, w uint64, ext uint64, hasExt bool) *State {
	return &State{
		Kind: KindMemAtomic, Addr: a, Size: size,
		Op: op, WriteOperand: w, ExtOperand: ext, HasExtOperand: hasExt,
	}
}

// SetStage requests a synchronous stage transition (completes immediately
// once observed by the scheduler, §4.3 point 3).
func SetStage(stage Stage) *State {
	return &State{Kind: KindSetStage, NewStage: stage}
}

// ToNativePointer requests the host-native pointer and remaining
// bytes-until-stripe-end for a physical address (§4.5 "Translate-to-native").
func ToNativePointer(a addr.VAddr) *State {
	return &State{Kind: KindToNativePointer, Addr: a}
}

// Ready reports whether the state is resumable: Completed is true, or the
// state carries no outstanding request (Running).
func (s *State) Ready() bool {
	if s == nil {
		return true
	}
	return s.Kind == KindRunning || s.Completed
}

// Complete marks a suspended state resumable. It is the memory subsystem's
// and the Nop timer's sole mutation point on a State once published.
func (s *State) Complete() {
	s.Completed = true
}
