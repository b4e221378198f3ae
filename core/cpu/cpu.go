// Package cpu implements the SM83 CPU as a micro-op engine: each opcode is
// decoded once, at fetch time, into a queue of closures that each perform
// exactly one M-cycle's worth of work (at most one bus transaction plus
// whatever register/ALU state that cycle touches).
package cpu

import "github.com/ashgrove-dev/dmgcore/core/memory"

// Flag is a bit in the F register.
type Flag uint8

const (
	flagZero      Flag = 0x80
	flagSub       Flag = 0x40
	flagHalfCarry Flag = 0x20
	flagCarry     Flag = 0x10
)

// Bus is the memory interface the CPU reads and writes through.
type Bus interface {
	Read(addr uint16) uint8
	Write(addr uint16, value uint8)
}

// Interrupts is the dispatch-priority surface the CPU drives when servicing
// an interrupt: pending resolution, priority, acknowledgement and vector
// lookup. memory.InterruptController implements this directly, so dispatch
// never re-implements IE/IF bit-scanning of its own.
type Interrupts interface {
	Pending() uint8
	HighestPriority() (memory.InterruptKind, bool)
	Ack(kind memory.InterruptKind)
	Vector(kind memory.InterruptKind) uint16
}

// microOp performs one M-cycle's worth of work for the instruction
// currently executing.
type microOp func(c *CPU)

// CPU holds SM83 register state and the micro-op engine driving it.
type CPU struct {
	a, f       uint8
	b, c       uint8
	d, e       uint8
	h, l       uint8
	sp, pc     uint16

	bus        Bus
	interrupts Interrupts

	queue []microOp

	ime        bool
	imePending bool

	halted  bool
	haltBug bool
	stopped bool

	locked bool
	lockPC uint16

	// scratch used by in-flight micro-op sequences (e.g. the low byte of a
	// 16-bit immediate read across two cycles, or the resolved interrupt
	// vector during dispatch).
	tmp8  uint8
	tmp16 uint16
}

// New creates a CPU wired to bus and interrupts, with registers in their
// documented post-boot-ROM state.
func New(bus Bus, interrupts Interrupts) *CPU {
	c := &CPU{bus: bus, interrupts: interrupts}
	c.a, c.f = 0x01, 0xB0
	c.b, c.c = 0x00, 0x13
	c.d, c.e = 0x00, 0xD8
	c.h, c.l = 0x01, 0x4D
	c.sp = 0xFFFE
	c.pc = 0x0100
	return c
}

// PC returns the program counter.
func (c *CPU) PC() uint16 { return c.pc }

// SP returns the stack pointer.
func (c *CPU) SP() uint16 { return c.sp }

// Registers returns the 8-bit register file (a, f, b, c, d, e, h, l) for
// inspection by debuggers and tests.
func (c *CPU) Registers() (a, f, b, cc, d, e, h, l uint8) {
	return c.a, c.f, c.b, c.c, c.d, c.e, c.h, c.l
}

// Halted reports whether the CPU is in the HALT low-power state.
func (c *CPU) Halted() bool { return c.halted }

// Locked reports whether the CPU has executed an invalid opcode and is
// permanently frozen, and if so at what address.
func (c *CPU) Locked() (uint16, bool) { return c.lockPC, c.locked }

// IME reports the interrupt master enable flag.
func (c *CPU) IME() bool { return c.ime }

// AtInstructionBoundary reports whether the next Step call will begin a
// fresh fetch-and-decode rather than continue an in-flight instruction.
func (c *CPU) AtInstructionBoundary() bool { return len(c.queue) == 0 }

func (c *CPU) getFlag(f Flag) bool { return c.f&uint8(f) != 0 }

func (c *CPU) setFlag(f Flag, set bool) {
	if set {
		c.f |= uint8(f)
	} else {
		c.f &^= uint8(f)
	}
	c.f &= 0xF0
}

func (c *CPU) bc() uint16 { return uint16(c.b)<<8 | uint16(c.c) }
func (c *CPU) de() uint16 { return uint16(c.d)<<8 | uint16(c.e) }
func (c *CPU) hl() uint16 { return uint16(c.h)<<8 | uint16(c.l) }
func (c *CPU) af() uint16 { return uint16(c.a)<<8 | uint16(c.f&0xF0) }

func (c *CPU) setBC(v uint16) { c.b, c.c = uint8(v>>8), uint8(v) }
func (c *CPU) setDE(v uint16) { c.d, c.e = uint8(v>>8), uint8(v) }
func (c *CPU) setHL(v uint16) { c.h, c.l = uint8(v>>8), uint8(v) }
func (c *CPU) setAF(v uint16) { c.a, c.f = uint8(v>>8), uint8(v)&0xF0 }

// Step advances the CPU by exactly one M-cycle: either it runs the next
// queued micro-op of the instruction in flight, or (queue empty) it fetches
// and decodes the next opcode, which itself consumes the M-cycle normally
// spent prefetching.
func (c *CPU) Step() {
	if len(c.queue) > 0 {
		op := c.queue[0]
		c.queue = c.queue[1:]
		op(c)
		return
	}
	c.fetchAndDecode()
}

func (c *CPU) pendingInterrupt() uint8 {
	return c.interrupts.Pending()
}

func (c *CPU) fetchAndDecode() {
	if c.locked {
		return
	}

	if c.halted {
		if c.pendingInterrupt() != 0 {
			c.halted = false
		} else {
			return
		}
	}

	if c.ime && c.pendingInterrupt() != 0 {
		c.ime = false
		c.queue = append(c.queue, dispatchIdle, dispatchWriteHigh, dispatchWriteLow, dispatchSetPC)
		return
	}

	// EI's delayed enable takes effect here, at the fetch of the instruction
	// following EI: the dispatch check above has already run with the old
	// IME value, so that instruction always executes before an interrupt
	// can be taken.
	if c.imePending {
		c.imePending = false
		c.ime = true
	}

	opcode := c.bus.Read(c.pc)
	if c.haltBug {
		c.haltBug = false
	} else {
		c.pc++
	}

	if opcode == 0xCB {
		c.queue = append(c.queue, cbFetch)
		return
	}

	ops, ok := decode(c, opcode)
	if !ok {
		c.locked = true
		c.lockPC = c.pc - 1
		return
	}
	c.queue = append(c.queue, ops...)
}

// dispatchIdle, dispatchWriteHigh, dispatchWriteLow and dispatchSetPC are
// the 2nd-5th M-cycles of the 5-M-cycle interrupt dispatch sequence (the
// 1st is the fetchAndDecode call that started it, matching the CPU's
// normal opcode-fetch slot).
func dispatchIdle(c *CPU) {}

func dispatchWriteHigh(c *CPU) {
	c.sp--
	c.bus.Write(c.sp, uint8(c.pc>>8))
}

func dispatchWriteLow(c *CPU) {
	c.sp--
	c.bus.Write(c.sp, uint8(c.pc))
}

func dispatchSetPC(c *CPU) {
	// Re-resolve the highest-priority interrupt now: software may have
	// cleared IF during the idle/push cycles, in which case dispatch is
	// cancelled and PC is simply set to 0x0000.
	kind, ok := c.interrupts.HighestPriority()
	if !ok {
		c.pc = 0x0000
		return
	}
	c.interrupts.Ack(kind)
	c.pc = c.interrupts.Vector(kind)
}

func cbFetch(c *CPU) {
	opcode := c.bus.Read(c.pc)
	c.pc++
	decodeCB(c, opcode)
}
