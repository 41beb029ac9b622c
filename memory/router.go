package memory

import (
	"fmt"
	"sort"

	"github.com/sarchlab/pando/addr"
	"github.com/sarchlab/pando/config"
)

type l1Key struct{ pxn, pod int }
type dramKey struct{ pxn int }

// Builder threads controller registration through construction and
// freezes the address-range tables at simulation setup (§9 design note:
// "a safer re-architecture threads a builder object through controller
// construction and freezes it at simulation setup"). Setup is
// single-threaded, so no internal locking is needed.
type Builder struct {
	sys config.System

	l1   map[l1Key][]*Controller
	l2   map[l1Key][]*Controller
	dram map[dramKey][]*Controller
}

// NewBuilder creates a Builder for the given system configuration.
func NewBuilder(sys config.System) *Builder {
	return &Builder{
		sys:  sys,
		l1:   make(map[l1Key][]*Controller),
		l2:   make(map[l1Key][]*Controller),
		dram: make(map[dramKey][]*Controller),
	}
}

// RegisterL1SP registers a core's L1SP controller.
func (b *Builder) RegisterL1SP(pxn, pod int, c *Controller) {
	key := l1Key{pxn, pod}
	b.l1[key] = append(b.l1[key], c)
}

// RegisterL2SP registers a pod's L2SP bank controller.
func (b *Builder) RegisterL2SP(pxn, pod int, c *Controller) {
	key := l1Key{pxn, pod}
	b.l2[key] = append(b.l2[key], c)
}

// RegisterDRAM registers a PXN's DRAM port controller.
func (b *Builder) RegisterDRAM(pxn int, c *Controller) {
	key := dramKey{pxn}
	b.dram[key] = append(b.dram[key], c)
}

// Freeze validates controller counts against the system configuration
// (§4.2 "Counts must match configuration") and returns an immutable
// Router. Each controller slice is sorted by Index so lookups are O(1)
// slice indexing rather than a scan.
func (b *Builder) Freeze() (*Router, error) {
	for pxn := 0; pxn < b.sys.NumPXN; pxn++ {
		for pod := 0; pod < b.sys.PodsPerPXN; pod++ {
			key := l1Key{pxn, pod}

			l1 := b.l1[key]
			if len(l1) != b.sys.CoresPerPod {
				return nil, fmt.Errorf(
					"memory: config mismatch: pxn %d pod %d has %d L1SP controllers, want %d",
					pxn, pod, len(l1), b.sys.CoresPerPod)
			}
			sortByIndex(l1)

			l2 := b.l2[key]
			if len(l2) != b.sys.PodL2SPBanks {
				return nil, fmt.Errorf(
					"memory: config mismatch: pxn %d pod %d has %d L2SP banks, want %d",
					pxn, pod, len(l2), b.sys.PodL2SPBanks)
			}
			sortByIndex(l2)
		}

		dram := b.dram[dramKey{pxn}]
		if len(dram) != b.sys.PXNDRAMPorts {
			return nil, fmt.Errorf(
				"memory: config mismatch: pxn %d has %d DRAM ports, want %d",
				pxn, len(dram), b.sys.PXNDRAMPorts)
		}
		sortByIndex(dram)
	}

	return &Router{
		sys:            b.sys,
		l1:             b.l1,
		l2:             b.l2,
		dram:           b.dram,
		l2Interleave:   b.sys.L2SPInterleave(),
		dramInterleave: b.sys.DRAMInterleave(),
	}, nil
}

func sortByIndex(cs []*Controller) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].Index < cs[j].Index })
}

// Router holds the write-once, read-only address-range tables built at
// setup and resolves a physical address to its owning controller plus the
// local offset within it (§4.2).
type Router struct {
	sys config.System

	l1   map[l1Key][]*Controller
	l2   map[l1Key][]*Controller
	dram map[dramKey][]*Controller

	l2Interleave   config.Interleave
	dramInterleave config.Interleave
}

// Route decodes a physical address's type, PXN, and pod, selects the
// owning controller, and returns it along with the local offset within its
// backing buffer. A paddr whose (pxn, pod, core) is unpopulated is fatal:
// it represents a misrouted request and signals a bug upstream (§4.2).
func (r *Router) Route(p addr.PAddr) (*Controller, uint64, error) {
	switch p.Type() {
	case addr.TypeL1SP:
		key := l1Key{int(p.PXN()), int(p.Pod())}
		cs, ok := r.l1[key]
		if !ok {
			return nil, 0, fmt.Errorf("memory: no L1SP controllers for pxn %d pod %d", key.pxn, key.pod)
		}
		coreIdx := coreIndex(p.CoreX(), p.CoreY())
		if coreIdx < 0 || coreIdx >= len(cs) {
			return nil, 0, fmt.Errorf("memory: L1SP core index %d out of range at pxn %d pod %d", coreIdx, key.pxn, key.pod)
		}
		c := cs[coreIdx]
		return c, c.TranslateToLocal(p), nil

	case addr.TypeL2SP:
		key := l1Key{int(p.PXN()), int(p.Pod())}
		cs, ok := r.l2[key]
		if !ok {
			return nil, 0, fmt.Errorf("memory: no L2SP controllers for pxn %d pod %d", key.pxn, key.pod)
		}
		bank := r.l2Interleave.Bank(p.Offset())
		if bank < 0 || bank >= len(cs) {
			return nil, 0, fmt.Errorf("memory: L2SP bank %d out of range at pxn %d pod %d", bank, key.pxn, key.pod)
		}
		c := cs[bank]
		return c, c.TranslateToLocal(p), nil

	case addr.TypeDRAM:
		key := dramKey{int(p.PXN())}
		cs, ok := r.dram[key]
		if !ok {
			return nil, 0, fmt.Errorf("memory: no DRAM controllers for pxn %d", key.pxn)
		}
		port := r.dramInterleave.Bank(p.Offset())
		if port < 0 || port >= len(cs) {
			return nil, 0, fmt.Errorf("memory: DRAM port %d out of range at pxn %d", port, key.pxn)
		}
		c := cs[port]
		return c, c.TranslateToLocal(p), nil

	default:
		return nil, 0, fmt.Errorf("memory: unknown physical address type field %d", p.Type())
	}
}

// coreIndex maps a core's (x, y) coordinate in its 8x8 pod grid to a
// row-major index, matching config.CoreCoord's inverse.
func coreIndex(x, y uint32) int {
	return int(y)*8 + int(x)
}
