// Package config provides the read-only system configuration record for a
// PANDO simulation, a fluent builder for assembling one programmatically,
// and a YAML loader for the on-disk configuration surface (§3, §6).
package config

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"
)

// Interleave describes a striping policy: stripe_bytes contiguous bytes
// belong to one bank before wrapping to the next of num_banks banks (§3).
type Interleave struct {
	StripeBytes uint64
	NumBanks    int
}

// BankShift is log2(StripeBytes).
func (i Interleave) BankShift() uint {
	return log2(i.StripeBytes)
}

// BankMask is NumBanks-1.
func (i Interleave) BankMask() uint64 {
	return uint64(i.NumBanks) - 1
}

// Bank returns which bank a byte offset falls in.
func (i Interleave) Bank(offset uint64) int {
	return int((offset >> i.BankShift()) & i.BankMask())
}

// OffsetWithinStripe returns the offset of a byte within its stripe.
func (i Interleave) OffsetWithinStripe(offset uint64) uint64 {
	return offset & (i.StripeBytes - 1)
}

// SegmentShift is the shift that isolates which stripe-sized segment (across
// all banks combined) a global offset falls in.
func (i Interleave) SegmentShift() uint {
	return i.BankShift() + log2(uint64(i.NumBanks))
}

// LocalOffset maps a global, interleaved offset to the contiguous local
// offset within the bank that owns it.
func (i Interleave) LocalOffset(offset uint64) uint64 {
	segment := offset >> i.SegmentShift()
	within := i.OffsetWithinStripe(offset)
	return segment*i.StripeBytes + within
}

func log2(v uint64) uint {
	var n uint
	for v > 1 {
		v >>= 1
		n++
	}
	return n
}

// CoreConfig describes one core's per-run parameters (§6).
type CoreConfig struct {
	PXN          int    `yaml:"pxn"`
	Pod          int    `yaml:"pod"`
	ID           int    `yaml:"id"` // encodes (core_y, core_x); see CoreCoord
	Clock        uint64 `yaml:"clock"`   // Hz
	Threads      int    `yaml:"threads"` // harts per core
	MaxIdle      int    `yaml:"max_idle"`
	StackInL1SP  bool   `yaml:"stack_in_l1sp"`
	Executable   string `yaml:"executable"`
	Argv         []string `yaml:"argv"`
}

// System is the read-only record of a PANDO system's dimensions. It is
// created once at simulator construction and never mutated afterward
// (§3 "System configuration").
type System struct {
	NumPXN        int `yaml:"sys_num_pxn"`
	PodsPerPXN    int `yaml:"sys_pxn_pods"`
	CoresPerPod   int `yaml:"sys_pod_cores"` // must be 64 (8x8 grid)
	ThreadsPerCore int `yaml:"sys_core_threads"`

	CoreL1SPSize uint64 `yaml:"sys_core_l1sp_size"`

	PodL2SPSize            uint64 `yaml:"sys_pod_l2sp_size"`
	PodL2SPBanks           int    `yaml:"sys_pod_l2sp_banks"`
	PodL2SPInterleaveBytes uint64 `yaml:"sys_pod_l2sp_interleave_size"`

	PXNDRAMSize            uint64 `yaml:"sys_pxn_dram_size"`
	PXNDRAMPorts           int    `yaml:"sys_pxn_dram_ports"`
	PXNDRAMInterleaveBytes uint64 `yaml:"sys_pxn_dram_interleave_size"`

	Cores []CoreConfig `yaml:"cores"`
}

// L2SPInterleave derives the pod-level L2SP interleave descriptor.
func (s System) L2SPInterleave() Interleave {
	return Interleave{StripeBytes: s.PodL2SPInterleaveBytes, NumBanks: s.PodL2SPBanks}
}

// DRAMInterleave derives the PXN-level DRAM interleave descriptor.
func (s System) DRAMInterleave() Interleave {
	return Interleave{StripeBytes: s.PXNDRAMInterleaveBytes, NumBanks: s.PXNDRAMPorts}
}

// CoreCoord decodes a core's (x, y) coordinate within its 8x8 pod grid from
// its configured ID (row-major: id = y*8 + x).
func CoreCoord(id int) (x, y uint32) {
	return uint32(id % 8), uint32(id / 8)
}

// Validate checks that the configuration describes a legal PANDO system
// topology (§4.2 "Counts must match configuration"). Returns a
// ConfigMismatch-flavored error; the caller is expected to treat this as
// fatal per §7.
func (s System) Validate() error {
	if s.NumPXN <= 0 {
		return fmt.Errorf("config: sys_num_pxn must be positive, got %d", s.NumPXN)
	}
	if s.PodsPerPXN <= 0 {
		return fmt.Errorf("config: sys_pxn_pods must be positive, got %d", s.PodsPerPXN)
	}
	if s.CoresPerPod != 64 {
		return fmt.Errorf("config: sys_pod_cores must be 64 (8x8 grid), got %d", s.CoresPerPod)
	}
	if s.ThreadsPerCore <= 0 {
		return fmt.Errorf("config: sys_core_threads must be positive, got %d", s.ThreadsPerCore)
	}
	if s.PodL2SPBanks <= 0 || (s.PodL2SPBanks&(s.PodL2SPBanks-1)) != 0 {
		return fmt.Errorf("config: sys_pod_l2sp_banks must be a power of two, got %d", s.PodL2SPBanks)
	}
	if s.PXNDRAMPorts <= 0 || (s.PXNDRAMPorts&(s.PXNDRAMPorts-1)) != 0 {
		return fmt.Errorf("config: sys_pxn_dram_ports must be a power of two, got %d", s.PXNDRAMPorts)
	}
	if s.PodL2SPInterleaveBytes == 0 || (s.PodL2SPInterleaveBytes&(s.PodL2SPInterleaveBytes-1)) != 0 {
		return fmt.Errorf("config: sys_pod_l2sp_interleave_size must be a power of two, got %d", s.PodL2SPInterleaveBytes)
	}
	if s.PXNDRAMInterleaveBytes == 0 || (s.PXNDRAMInterleaveBytes&(s.PXNDRAMInterleaveBytes-1)) != 0 {
		return fmt.Errorf("config: sys_pxn_dram_interleave_size must be a power of two, got %d", s.PXNDRAMInterleaveBytes)
	}
	for _, c := range s.Cores {
		if c.PXN < 0 || c.PXN >= s.NumPXN {
			return fmt.Errorf("config: core references out-of-range pxn %d", c.PXN)
		}
		if c.Pod < 0 || c.Pod >= s.PodsPerPXN {
			return fmt.Errorf("config: core references out-of-range pod %d", c.Pod)
		}
		if c.ID < 0 || c.ID >= s.CoresPerPod {
			return fmt.Errorf("config: core references out-of-range id %d", c.ID)
		}
	}
	return nil
}

// Builder assembles a System fluently, mirroring the teacher's
// DeviceBuilder With* chain.
type Builder struct {
	sys System
}

func NewBuilder() Builder { return Builder{} }

func (b Builder) WithNumPXN(n int) Builder             { b.sys.NumPXN = n; return b }
func (b Builder) WithPodsPerPXN(n int) Builder         { b.sys.PodsPerPXN = n; return b }
func (b Builder) WithCoresPerPod(n int) Builder        { b.sys.CoresPerPod = n; return b }
func (b Builder) WithThreadsPerCore(n int) Builder     { b.sys.ThreadsPerCore = n; return b }
func (b Builder) WithCoreL1SPSize(n uint64) Builder     { b.sys.CoreL1SPSize = n; return b }
func (b Builder) WithPodL2SP(size uint64, banks int, interleave uint64) Builder {
	b.sys.PodL2SPSize = size
	b.sys.PodL2SPBanks = banks
	b.sys.PodL2SPInterleaveBytes = interleave
	return b
}
func (b Builder) WithPXNDRAM(size uint64, ports int, interleave uint64) Builder {
	b.sys.PXNDRAMSize = size
	b.sys.PXNDRAMPorts = ports
	b.sys.PXNDRAMInterleaveBytes = interleave
	return b
}
func (b Builder) WithCores(cores []CoreConfig) Builder { b.sys.Cores = cores; return b }

// Build returns the assembled System, validated.
func (b Builder) Build() (System, error) {
	if err := b.sys.Validate(); err != nil {
		return System{}, err
	}
	return b.sys, nil
}

// Freq converts Hz to an akita sim.Freq, for components built from a
// CoreConfig's Clock field.
func (c CoreConfig) Freq() sim.Freq {
	return sim.Freq(float64(c.Clock))
}
