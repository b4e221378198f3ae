package core

import (
	"github.com/ashgrove-dev/dmgcore/core/addr"
	"github.com/ashgrove-dev/dmgcore/core/cpu"
	"github.com/ashgrove-dev/dmgcore/core/memory"
	"github.com/ashgrove-dev/dmgcore/core/video"
)

// BusInterface defines the interface for component communication
type BusInterface interface {
	Read(address uint16) byte
	Write(address uint16, value byte)
	RequestInterrupt(interrupt addr.Interrupt)
}

// Bus aggregates the CPU, MMU and GPU that the Emulator drives together,
// one CPU M-cycle at a time.
type Bus struct {
	CPU *cpu.CPU
	MMU *memory.MMU
	GPU *video.GPU
}

// NewBus wires a fresh CPU and GPU to mem.
func NewBus(mem *memory.MMU) *Bus {
	return &Bus{
		CPU: cpu.New(mem, mem.Interrupts()),
		GPU: video.NewGpu(mem),
		MMU: mem,
	}
}

func (b *Bus) Read(address uint16) byte {
	return b.MMU.Read(address)
}

func (b *Bus) Write(address uint16, value byte) {
	b.MMU.Write(address, value)
}

func (b *Bus) RequestInterrupt(interrupt addr.Interrupt) {
	b.MMU.RequestInterrupt(interrupt)
}

func (b *Bus) ReadBit(index uint8, address uint16) bool {
	return b.MMU.ReadBit(index, address)
}

// Step advances the CPU by exactly one M-cycle and everything else (timer,
// serial, DMA, APU, GPU) by the T-cycles in that M-cycle.
func (b *Bus) Step() {
	b.CPU.Step()
	b.MMU.Tick(tCyclesPerMCycle)
	b.GPU.Tick(tCyclesPerMCycle)
}
