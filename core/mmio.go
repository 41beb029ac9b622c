package core

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sarchlab/pando/addr"
	"github.com/sarchlab/pando/corestate"
	"github.com/sarchlab/pando/trace"
)

// CTRL offsets within the 17-bit CTRL offset field (§4.4 "debug
// primitives"). The spec names the primitives but not their register
// layout, so these are an implementer's choice, documented here rather
// than scattered across call sites.
const (
	ctrlPrintInt  = 0x00
	ctrlPrintHex  = 0x04
	ctrlPrintChar = 0x08
	ctrlPrintTime = 0x0C
	ctrlCoreReset = 0x10
)

var ctrlTitleCaser = cases.Title(language.English)

// ctrlRegisterName returns a canonical, title-cased name for a CTRL
// offset, used only in trace/error output — the dispatch switch below
// still keys off the numeric offset, matching the teacher's own
// toTitleCase use for display strings rather than control flow.
func ctrlRegisterName(offset uint64) string {
	var raw string
	switch offset {
	case ctrlPrintInt:
		raw = "print int"
	case ctrlPrintHex:
		raw = "print hex"
	case ctrlPrintChar:
		raw = "print char"
	case ctrlPrintTime:
		raw = "print time"
	case ctrlCoreReset:
		raw = "core reset"
	default:
		raw = "unknown ctrl register"
	}
	return ctrlTitleCaser.String(strings.ToLower(raw))
}

// CtrlSink is where a core's CTRL-kind memory operations land: the debug
// print primitives, and the cross-core reset register (§4.4). Kept as an
// interface so the core package never needs to know how System resolves
// a remote core.
type CtrlSink interface {
	PrintInt(v int64)
	PrintHex(v uint64)
	PrintChar(c byte)
	PrintTime(cycle int64)

	// ResetCore asserts or deasserts the hart reset flag of every hart on
	// the core identified by site.
	ResetCore(site addr.Site, assert bool) error
}

// handleCtrl services a memory state whose address resolves to the CTRL
// memory space. A MemWrite is dispatched and completed synchronously: CTRL
// accesses never cross the memory backend, since they have no backing
// byte buffer (§4.4). A MemRead, or any other kind, is fatal.
func (c *Core) handleCtrl(t *Thread, s *corestate.State) {
	p := addr.ToPhysical(s.Addr, c.Site)
	offset := p.Offset()
	target := addr.Site{PXN: p.PXN(), Pod: p.Pod(), CoreY: p.CoreY(), CoreX: p.CoreX()}

	switch s.Kind {
	case corestate.KindMemWrite:
		c.dispatchCtrlWrite(target, offset, s.WritePayload)
	case corestate.KindMemRead:
		// No CTRL register is currently defined as readable.
		panic(c.fatalf("thread %d: read from CTRL offset 0x%x is not a defined register", t.ID, offset))
	default:
		panic(c.fatalf("thread %d: unsupported operation kind %d against CTRL offset 0x%x", t.ID, s.Kind, offset))
	}

	s.Complete()
}

func (c *Core) dispatchCtrlWrite(target addr.Site, offset uint64, payload []byte) {
	trace.Trace("ctrl write", "register", ctrlRegisterName(offset), "site", c.Site)

	switch offset {
	case ctrlPrintInt:
		c.ctrl.PrintInt(int64(getUint(payload)))
	case ctrlPrintHex:
		c.ctrl.PrintHex(getUint(payload))
	case ctrlPrintChar:
		if len(payload) > 0 {
			c.ctrl.PrintChar(payload[0])
		}
	case ctrlPrintTime:
		c.ctrl.PrintTime(c.cycle)
	case ctrlCoreReset:
		assert := getUint(payload) != 0
		if err := c.ctrl.ResetCore(target, assert); err != nil {
			panic(c.fatalf("CTRL_CORE_RESET targeting pxn=%d pod=%d core=(%d,%d): %v",
				target.PXN, target.Pod, target.CoreX, target.CoreY, err))
		}
	default:
		// §9 open question: the source treats some unknown CTRL writes as
		// silent no-ops. This implementation takes the spec's stated
		// default and treats an unrecognized offset as fatal.
		panic(c.fatalf("write to unknown CTRL offset 0x%x (%s)", offset, ctrlRegisterName(offset)))
	}
}

func getUint(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// ApplyReset implements the receiving side of CTRL_CORE_RESET: asserting
// holds every hart on this core at reset (no progress, no dispatch);
// deasserting releases them back into the scheduler's rotation.
func (c *Core) ApplyReset(assert bool) {
	c.reset = assert
}
