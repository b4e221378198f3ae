package core

import (
	"fmt"
	"io/ioutil"
	"log/slog"
	"sync"

	"github.com/ashgrove-dev/dmgcore/core/addr"
	"github.com/ashgrove-dev/dmgcore/core/cpu"
	"github.com/ashgrove-dev/dmgcore/core/debug"
	"github.com/ashgrove-dev/dmgcore/core/memory"
	"github.com/ashgrove-dev/dmgcore/core/timing"
	"github.com/ashgrove-dev/dmgcore/core/video"
)

// debugSnapshotWindow is the number of bytes ExtractDebugData reads starting
// at PC for disassembly views.
const debugSnapshotWindow = 200

// tCyclesPerMCycle is the fixed ratio between T-cycles (4.194304 MHz, the
// rate everything but the CPU's instruction engine is clocked at) and
// M-cycles (the CPU's own unit of work, one microOp per Step call).
const tCyclesPerMCycle = 4

// tCyclesPerFrame is the number of T-cycles in one 59.7 Hz frame (154
// scanlines of 456 T-cycles each).
const tCyclesPerFrame = 70224

// DebuggerState represents the current debugger mode
type DebuggerState int

const (
	DebuggerRunning   DebuggerState = iota // Normal execution
	DebuggerPaused                         // Paused, waiting for commands
	DebuggerStep                           // Execute one instruction then pause
	DebuggerStepFrame                      // Execute one frame then pause
)

// Emulator represents the root struct and entry point for running the emulation
type Emulator struct {
	bus *Bus

	// Debugger state
	debuggerState    DebuggerState
	debuggerMutex    sync.RWMutex
	stepRequested    bool
	frameRequested   bool
	instructionCount uint64
	frameCount       uint64

	limiter timing.Limiter
}

func (e *Emulator) init(mem *memory.MMU) {
	e.bus = NewBus(mem)
	e.limiter = timing.NewAdaptiveLimiter()
}

// SetFrameLimiter installs the pacing strategy RunUntilFrame uses to throttle
// to real Game Boy frame rate. A nil limiter disables pacing entirely, for
// headless/benchmark use.
func (e *Emulator) SetFrameLimiter(limiter timing.Limiter) {
	if limiter == nil {
		e.limiter = timing.NewNoOpLimiter()
		return
	}
	e.limiter = limiter
}

// ResetFrameTiming clears accumulated pacing drift, useful after a debugger
// pause resumes real-time playback.
func (e *Emulator) ResetFrameTiming() {
	if e.limiter != nil {
		e.limiter.Reset()
	}
}

// ExtractDebugData builds a snapshot of CPU and memory state for debug UIs.
// Returns nil if the emulator has no bus wired up yet.
func (e *Emulator) ExtractDebugData() *debug.CompleteDebugData {
	if e.bus == nil {
		return nil
	}

	a, f, b, c, d, ee, h, l := e.bus.CPU.Registers()
	pc := e.bus.CPU.PC()

	size := debugSnapshotWindow
	if uint32(pc)+uint32(size) > 0x10000 {
		size = int(0x10000 - uint32(pc))
	}
	bytes := make([]byte, size)
	for i := 0; i < size; i++ {
		bytes[i] = e.bus.MMU.Read(pc + uint16(i))
	}

	return &debug.CompleteDebugData{
		CPU: &debug.CPUState{
			A: a, F: f, B: b, C: c, D: d, E: ee, H: h, L: l,
			SP:     e.bus.CPU.SP(),
			PC:     pc,
			IME:    e.bus.CPU.IME(),
			Cycles: e.instructionCount,
		},
		Memory:          &debug.MemorySnapshot{StartAddr: pc, Bytes: bytes},
		DebuggerState:   e.debugDataState(),
		InterruptEnable: e.bus.MMU.Read(addr.IE),
		InterruptFlags:  e.bus.MMU.Read(addr.IF),
	}
}

func (e *Emulator) debugDataState() debug.DebuggerState {
	switch e.GetDebuggerState() {
	case DebuggerPaused:
		return debug.DebuggerPaused
	case DebuggerStep:
		return debug.DebuggerStepInstruction
	case DebuggerStepFrame:
		return debug.DebuggerStepFrame
	default:
		return debug.DebuggerRunning
	}
}

// New creates a new emulator instance with no cartridge loaded.
func New() *Emulator {
	e := &Emulator{}
	e.init(memory.New())

	return e
}

// NewWithFile creates a new emulator instance and loads the ROM file at path
// into it.
func NewWithFile(path string) (*Emulator, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}

	slog.Debug("Loaded ROM data", "size", len(data))

	cart, err := memory.NewCartridge(data)
	if err != nil {
		return nil, fmt.Errorf("parsing cartridge: %w", err)
	}

	mem, err := memory.NewWithCartridge(cart)
	if err != nil {
		return nil, fmt.Errorf("initializing mmu: %w", err)
	}

	e := &Emulator{}
	e.init(mem)

	return e, nil
}

// step advances the emulator by exactly one CPU M-cycle.
func (e *Emulator) step() {
	e.bus.Step()
}

func (e *Emulator) RunUntilFrame() {
	e.debuggerMutex.RLock()
	state := e.debuggerState
	e.debuggerMutex.RUnlock()

	// Handle paused state - don't execute anything
	if state == DebuggerPaused {
		return
	}

	// Handle step instruction - execute one instruction then pause
	if state == DebuggerStep {
		e.debuggerMutex.Lock()
		if e.stepRequested {
			e.stepRequested = false
			e.debuggerMutex.Unlock()

			oldPC := e.bus.CPU.PC()
			e.runOneInstruction()
			e.instructionCount++

			slog.Debug("Step executed", "pc", fmt.Sprintf("0x%04X", oldPC), "new_pc", fmt.Sprintf("0x%04X", e.bus.CPU.PC()))

			e.SetDebuggerState(DebuggerPaused)
		} else {
			e.debuggerMutex.Unlock()
		}
		return
	}

	// Handle step frame - execute one frame then pause
	if state == DebuggerStepFrame {
		e.debuggerMutex.Lock()
		frameRequested := e.frameRequested
		if frameRequested {
			e.frameRequested = false
		}
		e.debuggerMutex.Unlock()

		if frameRequested {
			e.runFrame()
			e.frameCount++
			slog.Debug("Frame step completed", "frame", e.frameCount, "instructions", e.instructionCount)
			e.SetDebuggerState(DebuggerPaused)
		}
		return
	}

	// Normal execution (DebuggerRunning)
	e.runFrame()
	e.frameCount++
	e.limiter.WaitForNextFrame()
	if e.frameCount%60 == 0 {
		slog.Debug("Frame completed", "frame", e.frameCount, "pc", fmt.Sprintf("0x%04X", e.bus.CPU.PC()))
	}
}

// runOneInstruction advances the emulator through exactly one CPU
// instruction: one M-cycle to begin it (possibly itself a complete
// single-cycle instruction), then as many more as the decoded instruction
// queued.
func (e *Emulator) runOneInstruction() {
	e.step()
	for !e.bus.CPU.AtInstructionBoundary() {
		e.step()
	}
}

// runFrame advances the emulator by one frame's worth of T-cycles,
// rounded up to the instruction boundary in flight when the budget is hit.
func (e *Emulator) runFrame() {
	total := 0
	for total < tCyclesPerFrame {
		e.step()
		total += tCyclesPerMCycle
		e.instructionCount++
		for !e.bus.CPU.AtInstructionBoundary() {
			e.step()
			total += tCyclesPerMCycle
		}
	}
}

func (e *Emulator) GetCurrentFrame() *video.FrameBuffer {
	return e.bus.GPU.GetFrameBuffer()
}

func (e *Emulator) HandleKeyPress(key memory.JoypadKey) {
	e.bus.MMU.HandleKeyPress(key)
}

func (e *Emulator) HandleKeyRelease(key memory.JoypadKey) {
	e.bus.MMU.HandleKeyRelease(key)
}

func (e *Emulator) GetCPU() *cpu.CPU {
	return e.bus.CPU
}

// Debugger control methods
func (e *Emulator) SetDebuggerState(state DebuggerState) {
	e.debuggerMutex.Lock()
	defer e.debuggerMutex.Unlock()
	e.debuggerState = state
	slog.Debug("Debugger state changed", "state", state)
}

func (e *Emulator) GetDebuggerState() DebuggerState {
	e.debuggerMutex.RLock()
	defer e.debuggerMutex.RUnlock()
	return e.debuggerState
}

func (e *Emulator) DebuggerPause() {
	e.SetDebuggerState(DebuggerPaused)
	slog.Info("Emulator paused")
}

func (e *Emulator) DebuggerResume() {
	e.SetDebuggerState(DebuggerRunning)
	slog.Info("Emulator resumed")
}

func (e *Emulator) DebuggerStepInstruction() {
	e.debuggerMutex.Lock()
	defer e.debuggerMutex.Unlock()
	e.stepRequested = true
	e.debuggerState = DebuggerStep
	slog.Info("Step instruction requested")
}

func (e *Emulator) DebuggerStepFrame() {
	e.debuggerMutex.Lock()
	defer e.debuggerMutex.Unlock()
	e.frameRequested = true
	e.debuggerState = DebuggerStepFrame
	slog.Info("Step frame requested")
}

func (e *Emulator) GetInstructionCount() uint64 {
	return e.instructionCount
}

func (e *Emulator) GetFrameCount() uint64 {
	return e.frameCount
}

func (e *Emulator) GetMMU() *memory.MMU {
	return e.bus.MMU
}

