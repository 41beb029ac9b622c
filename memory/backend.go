package memory

import (
	"fmt"

	"github.com/sarchlab/pando/addr"
	"github.com/sarchlab/pando/corestate"
)

// RequestKind tags which operation a Request carries (§4.5).
type RequestKind int

const (
	RequestRead RequestKind = iota
	RequestWrite
	RequestAtomic
	RequestTranslate
)

// Request is the memory subsystem's request interface: submit accepts
// read, write, atomic, or translate-to-native variants (§4.5).
type Request struct {
	Kind RequestKind
	Site addr.Site // the issuing thread's executing site, to resolve local vaddrs
	Addr addr.VAddr
	Size int

	WriteData []byte

	Op            corestate.AtomicOp
	WriteOperand  uint64
	ExtOperand    uint64
	HasExtOperand bool

	// OnComplete is invoked exactly once, synchronously or from a later
	// tick depending on the backend, with the result of the request.
	OnComplete func(Result)
}

// Result carries every request kind's possible output back to the caller.
type Result struct {
	ReadData         []byte
	AtomicResult     uint64
	NativePtr        []byte
	BytesToStripeEnd uint64
	Err              error
}

// Backend is the memory subsystem's request interface (§4.5). Three
// interchangeable backends implement it, chosen at configuration; a
// closed variant type with a dispatch switch is preferred over open
// polymorphism per §9's design note, so System selects one of
// SimpleBackend (below), SelfLinkBackend (selflink.go) or the system
// package's standardBackend at build time rather than exposing arbitrary
// third-party implementations.
type Backend interface {
	Submit(req Request)
}

// execute performs the routed operation against a controller and returns
// its Result. Shared by every backend so latency modeling stays decoupled
// from request semantics.
func execute(router *Router, req Request) Result {
	paddr := addr.ToPhysical(req.Addr, req.Site)

	ctrl, local, err := router.Route(paddr)
	if err != nil {
		return Result{Err: fmt.Errorf("memory: invalid address: %w", err)}
	}

	switch req.Kind {
	case RequestRead:
		data, err := ctrl.Read(local, req.Size)
		return Result{ReadData: data, Err: err}

	case RequestWrite:
		err := ctrl.Write(local, req.WriteData)
		return Result{Err: err}

	case RequestAtomic:
		r, err := ctrl.AtomicRMW(local, req.Size, req.Op, req.WriteOperand, req.ExtOperand)
		return Result{AtomicResult: r, Err: err}

	case RequestTranslate:
		ptr, remain := ctrl.NativePointer(paddr)
		return Result{NativePtr: ptr, BytesToStripeEnd: remain}

	default:
		return Result{Err: fmt.Errorf("memory: unknown request kind %v", req.Kind)}
	}
}

// SimpleBackend is the zero-latency in-process backing (§4.5): a request
// completes immediately against the routed controller's local byte
// buffer, synchronously within Submit.
type SimpleBackend struct {
	Router *Router
}

// Submit implements Backend.
func (b *SimpleBackend) Submit(req Request) {
	result := execute(b.Router, req)
	if req.OnComplete != nil {
		req.OnComplete(result)
	}
}
