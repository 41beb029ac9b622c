// Package addr implements the PGAS address codec: encoding and decoding of
// PANDO virtual and physical addresses, and the translation between them.
//
// Every function here is pure: given the same inputs they always return the
// same outputs, and none of them touch any backing memory. The bit layouts
// below are bit-exact with the PANDO ABI and must not be changed without
// breaking binary compatibility with compiled workloads.
package addr

// Kind identifies which memory space a virtual address names.
type Kind int

const (
	KindL1SP Kind = iota
	KindL2SP
	KindDRAM
	KindCTRL
)

func (k Kind) String() string {
	switch k {
	case KindL1SP:
		return "L1SP"
	case KindL2SP:
		return "L2SP"
	case KindDRAM:
		return "DRAM"
	case KindCTRL:
		return "CTRL"
	default:
		return "Unknown"
	}
}

// Physical address type-field values. Six bits wide; only these four values
// are legal. Callers must never fabricate any other value (§3 invariant).
const (
	TypeL1SP uint8 = 0
	TypeL2SP uint8 = 1
	TypeDRAM uint8 = 4
	TypeCTRL uint8 = 8
)

// Site identifies the core a request is issued from or targets: the PXN,
// pod and (x, y) core coordinate that a local ("not global") virtual
// address is interpreted relative to.
type Site struct {
	PXN   uint32
	Pod   uint32
	CoreY uint32
	CoreX uint32
}

// Virtual address bit layout (§3).
const (
	vBitCtrl          = 63
	vBitNotScratchpad = 47
	vShiftPXN, vWidthPXN = 33, 14
	vBitGlobal        = 32
	vShiftPod, vWidthPod = 26, 6
	vBitL2NotL1       = 25
	vShiftCoreY, vWidthCoreY = 20, 3
	vShiftCoreX, vWidthCoreX = 17, 3
	vWidthOffsetL1    = 17 // bits 16..0
	vWidthOffsetL2    = 25 // bits 24..0
	vShiftDRAMHi, vWidthDRAMHi = 48, 10 // bits 57..48
	vWidthDRAMLo      = 33               // bits 32..0
)

// Physical address bit layout (§3).
const (
	pShiftType, pWidthType = 58, 6
	pShiftPXN, pWidthPXN   = 44, 14
	pShiftPod, pWidthPod   = 34, 6
	pShiftCoreY, pWidthCoreY = 28, 3
	pShiftCoreX, pWidthCoreX = 22, 3
	pWidthOffsetDRAM = 44 // bits 43..0
	pWidthOffsetL2   = 25 // bits 24..0
	pWidthOffsetL1   = 17 // bits 16..0
	pWidthOffsetCTRL = 18 // bits 17..0
)

func mask(width uint) uint64 {
	return (uint64(1) << width) - 1
}

func extract(v uint64, shift, width uint) uint64 {
	return (v >> shift) & mask(width)
}

func insert(v uint64, shift, width uint, val uint64) uint64 {
	return (v &^ (mask(width) << shift)) | ((val & mask(width)) << shift)
}

func bit(v uint64, pos uint) bool {
	return (v>>pos)&1 != 0
}

func setBit(v uint64, pos uint, set bool) uint64 {
	if set {
		return v | (uint64(1) << pos)
	}
	return v &^ (uint64(1) << pos)
}

// VAddr is a 64-bit PANDO virtual address.
type VAddr uint64

func (v VAddr) Ctrl() bool          { return bit(uint64(v), vBitCtrl) }
func (v VAddr) NotScratchpad() bool { return bit(uint64(v), vBitNotScratchpad) }
func (v VAddr) Global() bool        { return bit(uint64(v), vBitGlobal) }
func (v VAddr) L2NotL1() bool       { return bit(uint64(v), vBitL2NotL1) }

func (v VAddr) PXN() uint32 { return uint32(extract(uint64(v), vShiftPXN, vWidthPXN)) }
func (v VAddr) Pod() uint32 { return uint32(extract(uint64(v), vShiftPod, vWidthPod)) }
func (v VAddr) CoreY() uint32 {
	return uint32(extract(uint64(v), vShiftCoreY, vWidthCoreY))
}
func (v VAddr) CoreX() uint32 {
	return uint32(extract(uint64(v), vShiftCoreX, vWidthCoreX))
}

// OffsetL1 returns the 17-bit L1SP/CTRL offset field (bits 16..0).
func (v VAddr) OffsetL1() uint32 { return uint32(extract(uint64(v), 0, vWidthOffsetL1)) }

// OffsetL2 returns the 25-bit L2SP offset field (bits 24..0).
func (v VAddr) OffsetL2() uint32 { return uint32(extract(uint64(v), 0, vWidthOffsetL2)) }

// OffsetDRAM reconstructs the 43-bit, non-contiguous DRAM offset from bits
// [57:48] (high 10 bits) concatenated with bits [32:0] (low 33 bits). Bits
// [47:33] are skipped entirely; their purpose is unknown upstream and this
// implementation never repurposes them (§9, open question).
func (v VAddr) OffsetDRAM() uint64 {
	hi := extract(uint64(v), vShiftDRAMHi, vWidthDRAMHi)
	lo := extract(uint64(v), 0, vWidthDRAMLo)
	return (hi << vWidthDRAMLo) | lo
}

// Kind reports which memory space v addresses.
func (v VAddr) Kind() Kind {
	switch {
	case v.Ctrl():
		return KindCTRL
	case v.NotScratchpad():
		return KindDRAM
	case v.L2NotL1():
		return KindL2SP
	default:
		return KindL1SP
	}
}

func withPXN(v uint64, pxn uint32) uint64 {
	return insert(v, vShiftPXN, vWidthPXN, uint64(pxn))
}
func withPod(v uint64, pod uint32) uint64 {
	return insert(v, vShiftPod, vWidthPod, uint64(pod))
}
func withCoreY(v uint64, y uint32) uint64 {
	return insert(v, vShiftCoreY, vWidthCoreY, uint64(y))
}
func withCoreX(v uint64, x uint32) uint64 {
	return insert(v, vShiftCoreX, vWidthCoreX, uint64(x))
}

// MyL1Base returns the canonical zero-offset local L1SP virtual address.
func MyL1Base() VAddr { return VAddr(0) }

// MyL2Base returns the canonical zero-offset local L2SP virtual address.
func MyL2Base() VAddr { return VAddr(setBit(0, vBitL2NotL1, true)) }

// MainMemBase returns the canonical zero-offset DRAM virtual address for
// the given PXN.
func MainMemBase(pxn uint32) VAddr {
	v := setBit(0, vBitNotScratchpad, true)
	v = withPXN(v, pxn)
	return VAddr(v)
}

// CoreCtrlBase returns the canonical zero-offset CTRL virtual address
// addressing the given core.
func CoreCtrlBase(pxn, pod, coreY, coreX uint32) VAddr {
	v := setBit(0, vBitCtrl, true)
	v = withPXN(v, pxn)
	v = withPod(v, pod)
	v = withCoreY(v, coreY)
	v = withCoreX(v, coreX)
	return VAddr(v)
}

// PAddr is a 64-bit PANDO physical address.
type PAddr uint64

func (p PAddr) Type() uint8 { return uint8(extract(uint64(p), pShiftType, pWidthType)) }
func (p PAddr) PXN() uint32 { return uint32(extract(uint64(p), pShiftPXN, pWidthPXN)) }
func (p PAddr) Pod() uint32 { return uint32(extract(uint64(p), pShiftPod, pWidthPod)) }
func (p PAddr) CoreY() uint32 {
	return uint32(extract(uint64(p), pShiftCoreY, pWidthCoreY))
}
func (p PAddr) CoreX() uint32 {
	return uint32(extract(uint64(p), pShiftCoreX, pWidthCoreX))
}

// Offset returns the physical offset field, whose width depends on Type().
// Passing a Type() other than the four legal values is a caller bug; the
// width defaults to the DRAM (widest) field in that case so the value is
// never silently truncated to zero.
func (p PAddr) Offset() uint64 {
	switch p.Type() {
	case TypeDRAM:
		return extract(uint64(p), 0, pWidthOffsetDRAM)
	case TypeL2SP:
		return extract(uint64(p), 0, pWidthOffsetL2)
	case TypeL1SP:
		return extract(uint64(p), 0, pWidthOffsetL1)
	case TypeCTRL:
		return extract(uint64(p), 0, pWidthOffsetCTRL)
	default:
		return extract(uint64(p), 0, pWidthOffsetDRAM)
	}
}

func newPAddr(typ uint8, pxn, pod, coreY, coreX uint32, offset uint64) PAddr {
	v := insert(0, pShiftType, pWidthType, uint64(typ))
	v = insert(v, pShiftPXN, pWidthPXN, uint64(pxn))
	v = insert(v, pShiftPod, pWidthPod, uint64(pod))
	v = insert(v, pShiftCoreY, pWidthCoreY, uint64(coreY))
	v = insert(v, pShiftCoreX, pWidthCoreX, uint64(coreX))

	var offWidth uint = pWidthOffsetDRAM
	switch typ {
	case TypeL2SP:
		offWidth = pWidthOffsetL2
	case TypeL1SP:
		offWidth = pWidthOffsetL1
	case TypeCTRL:
		offWidth = pWidthOffsetCTRL
	}
	v = insert(v, 0, offWidth, offset)

	return PAddr(v)
}

// ToPhysical resolves a virtual address against the executing site into a
// physical address (§4.1).
func ToPhysical(v VAddr, site Site) PAddr {
	switch {
	case v.Ctrl():
		return newPAddr(TypeCTRL, v.PXN(), v.Pod(), v.CoreY(), v.CoreX(), uint64(v.OffsetL1()))

	case v.NotScratchpad():
		return newPAddr(TypeDRAM, v.PXN(), 0, 0, 0, v.OffsetDRAM())

	case v.L2NotL1():
		pxn, pod := site.PXN, site.Pod
		if v.Global() {
			pxn, pod = v.PXN(), v.Pod()
		}
		return newPAddr(TypeL2SP, pxn, pod, 0, 0, uint64(v.OffsetL2()))

	default: // L1SP
		pxn, pod, cy, cx := site.PXN, site.Pod, site.CoreY, site.CoreX
		if v.Global() {
			pxn, pod, cy, cx = v.PXN(), v.Pod(), v.CoreY(), v.CoreX()
		}
		return newPAddr(TypeL1SP, pxn, pod, cy, cx, uint64(v.OffsetL1()))
	}
}

// ToGlobal imprints the given site's coordinates into a local virtual
// address, returning an equivalent global address. CTRL addresses (which
// already carry explicit coordinates), DRAM addresses and already-global
// addresses are returned unchanged (§4.1).
func ToGlobal(v VAddr, site Site) VAddr {
	if v.Ctrl() || v.NotScratchpad() || v.Global() {
		return v
	}

	raw := setBit(uint64(v), vBitGlobal, true)
	if v.L2NotL1() {
		raw = withPXN(raw, site.PXN)
		raw = withPod(raw, site.Pod)
	} else {
		raw = withPXN(raw, site.PXN)
		raw = withPod(raw, site.Pod)
		raw = withCoreY(raw, site.CoreY)
		raw = withCoreX(raw, site.CoreX)
	}
	return VAddr(raw)
}

// LocalityOf decodes the site a virtual address targets once resolved
// against the executing site (client-facing contract, §6).
func LocalityOf(v VAddr, site Site) Site {
	p := ToPhysical(v, site)
	return Site{PXN: p.PXN(), Pod: p.Pod(), CoreY: p.CoreY(), CoreX: p.CoreX()}
}

// MemoryTypeOf reports which memory space a virtual address names
// (client-facing contract, §6). Main memory is reported as KindDRAM, and a
// CTRL address as KindCTRL.
func MemoryTypeOf(v VAddr) Kind {
	return v.Kind()
}
