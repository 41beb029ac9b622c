// Package memory implements the per-bank/per-port memory controllers, the
// interleave-aware router that dispatches a physical address to its owning
// controller, and the atomic read-modify-write semantics at a controller
// (§4.2, §4.5).
package memory

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/sarchlab/pando/addr"
	"github.com/sarchlab/pando/config"
	"github.com/sarchlab/pando/corestate"
)

// Controller owns one contiguous backing buffer and serves every request
// routed to it (§3 "Memory controller record"). A Controller with a
// zero-value Interleave is not striped (L1SP); one with NumBanks > 0
// translates a global, interleaved physical offset to a contiguous local
// offset via TranslateToLocal.
type Controller struct {
	Kind   addr.Kind
	PXN    int
	Pod    int
	CoreY  int
	CoreX  int
	Index  int // bank index (L2SP), port index (DRAM), or core index (L1SP)

	Interleave config.Interleave

	mu      sync.Mutex
	backing []byte
}

// NewController allocates a controller with a zero-initialized backing
// buffer of the given size.
func NewController(kind addr.Kind, site addr.Site, index int, size uint64, il config.Interleave) *Controller {
	return &Controller{
		Kind: kind,
		PXN:  int(site.PXN), Pod: int(site.Pod), CoreY: int(site.CoreY), CoreX: int(site.CoreX),
		Index:      index,
		Interleave: il,
		backing:    make([]byte, size),
	}
}

// TranslateToLocal computes the contiguous local offset a physical address
// maps to within this controller's backing buffer.
func (c *Controller) TranslateToLocal(p addr.PAddr) uint64 {
	off := p.Offset()
	if c.Interleave.NumBanks == 0 {
		return off
	}
	return c.Interleave.LocalOffset(off)
}

// Owns reports whether a physical address belongs to this controller's
// address range (§8 routing invariant).
func (c *Controller) Owns(p addr.PAddr) bool {
	switch c.Kind {
	case addr.KindL1SP:
		return p.Type() == addr.TypeL1SP &&
			int(p.PXN()) == c.PXN && int(p.Pod()) == c.Pod &&
			int(p.CoreY()) == c.CoreY && int(p.CoreX()) == c.CoreX
	case addr.KindL2SP:
		return p.Type() == addr.TypeL2SP && int(p.PXN()) == c.PXN && int(p.Pod()) == c.Pod
	case addr.KindDRAM:
		return p.Type() == addr.TypeDRAM && int(p.PXN()) == c.PXN
	default:
		return false
	}
}

func validWidth(size int) bool {
	switch size {
	case 1, 2, 4, 8:
		return true
	default:
		return false
	}
}

func getUint(b []byte, size int) uint64 {
	switch size {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	case 8:
		return binary.LittleEndian.Uint64(b)
	default:
		panic("memory: unreachable width")
	}
}

func putUint(b []byte, size int, v uint64) {
	switch size {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(b, v)
	default:
		panic("memory: unreachable width")
	}
}

// Read copies size bytes starting at localOffset out of the backing buffer.
func (c *Controller) Read(localOffset uint64, size int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if localOffset+uint64(size) > uint64(len(c.backing)) {
		return nil, fmt.Errorf("memory: read out of range: offset %d size %d buffer %d",
			localOffset, size, len(c.backing))
	}
	out := make([]byte, size)
	copy(out, c.backing[localOffset:localOffset+uint64(size)])
	return out, nil
}

// Write copies data into the backing buffer starting at localOffset.
func (c *Controller) Write(localOffset uint64, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if localOffset+uint64(len(data)) > uint64(len(c.backing)) {
		return fmt.Errorf("memory: write out of range: offset %d size %d buffer %d",
			localOffset, len(data), len(c.backing))
	}
	copy(c.backing[localOffset:localOffset+uint64(len(data))], data)
	return nil
}

// AtomicRMW performs the read-modify-write described in §4.5 under the
// controller's lock, so it is linearizable with respect to every other
// read, write, and atomic to the same controller (§5, §9 design note).
func (c *Controller) AtomicRMW(
	localOffset uint64, size int, op corestate.AtomicOp, w uint64, ext uint64,
) (uint64, error) {
	if !validWidth(size) {
		return 0, fmt.Errorf("memory: invalid atomic width %d", size)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if localOffset+uint64(size) > uint64(len(c.backing)) {
		return 0, fmt.Errorf("memory: atomic out of range: offset %d size %d buffer %d",
			localOffset, size, len(c.backing))
	}

	region := c.backing[localOffset : localOffset+uint64(size)]
	r := getUint(region, size)

	var wNew, rOut uint64
	switch op {
	case corestate.AtomicSwap:
		wNew, rOut = w, r
	case corestate.AtomicAdd:
		wNew, rOut = maskWidth(w+r, size), r
	case corestate.AtomicOr:
		wNew, rOut = w|r, r
	case corestate.AtomicCAS:
		if r == ext {
			wNew = w
		} else {
			wNew = r
		}
		rOut = r
	default:
		return 0, fmt.Errorf("memory: invalid atomic opcode %v", op)
	}

	putUint(region, size, wNew)
	return rOut, nil
}

func maskWidth(v uint64, size int) uint64 {
	if size >= 8 {
		return v
	}
	return v & ((uint64(1) << (uint(size) * 8)) - 1)
}

// NativePointer returns the host-addressable backing slice for a physical
// address's controller, along with the number of bytes remaining until the
// next interleave stripe boundary (§4.5 "Translate-to-native"). This only
// works because Controller always backs memory with an in-process buffer;
// callers must not retain the slice past the current operation.
func (c *Controller) NativePointer(p addr.PAddr) ([]byte, uint64) {
	local := c.TranslateToLocal(p)

	var bytesToStripeEnd uint64
	if c.Interleave.NumBanks > 0 {
		within := c.Interleave.OffsetWithinStripe(p.Offset())
		bytesToStripeEnd = c.Interleave.StripeBytes - within
	} else {
		bytesToStripeEnd = uint64(len(c.backing)) - local
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backing[local:], bytesToStripeEnd
}
