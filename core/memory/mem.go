package memory

import (
	"fmt"
	"log/slog"

	"github.com/ashgrove-dev/dmgcore/core/addr"
	"github.com/ashgrove-dev/dmgcore/core/audio"
	"github.com/ashgrove-dev/dmgcore/core/bit"
	"github.com/ashgrove-dev/dmgcore/core/serial"
)

type memRegion uint8

const (
	regionROM memRegion = iota
	regionVRAM
	regionExtRAM
	regionWRAM
	regionEcho
	regionOAM
	regionUnused
	regionIO
	regionHRAM
)

// dmaBytesTotal is the number of bytes an OAM DMA transfer copies, one per
// M-cycle (4 T-cycles). Read and Write do not restrict CPU access to other
// regions while a transfer runs.
const dmaBytesTotal = 160
const dmaTCyclesTotal = dmaBytesTotal * 4

// SerialPort is the minimal interface for a serial device connected to SB/SC.
// Implementations MUST only accept reads/writes to addr.SB and addr.SC.
type SerialPort interface {
	Write(address uint16, value byte)
	Read(address uint16) byte
	Tick(cycles int)
	Reset()
}

// MMU allows access to all memory mapped I/O and data/registers
type MMU struct {
	cart      *Cartridge
	mbc       MBC
	memory    []byte
	APU       *audio.APU
	regionMap [256]memRegion

	interrupts *InterruptController
	joypad     *Joypad

	serial SerialPort
	timer  Timer

	dmaRemaining  int
	dmaSourceHigh uint8

	// vramLocked/oamLocked mirror the PPU's current mode: the PPU calls
	// SetVRAMLocked/SetOAMLocked on every mode transition so the MMU can
	// return 0xFF and drop writes exactly as real hardware does.
	vramLocked bool
	oamLocked  bool
}

// SetVRAMLocked marks VRAM as PPU-owned (Drawing mode): reads return 0xFF
// and writes are dropped until unlocked.
func (m *MMU) SetVRAMLocked(locked bool) {
	m.vramLocked = locked
}

// SetOAMLocked marks OAM as PPU-owned (OAMScan and Drawing modes).
func (m *MMU) SetOAMLocked(locked bool) {
	m.oamLocked = locked
}

// New creates a new memory unit with default data, i.e. nothing cartridge loaded.
// Equivalent to turning on a Gameboy without a cartridge in.
func New() *MMU {
	mmu := &MMU{
		memory:     make([]byte, 0x10000),
		APU:        audio.New(),
		interrupts: NewInterruptController(),
	}
	mmu.joypad = NewJoypad(func() { mmu.interrupts.Request(JoypadInterrupt) })
	mmu.serial = serial.NewLogSink(func() { mmu.interrupts.Request(SerialInterrupt) })
	mmu.timer.TimerInterruptHandler = func() { mmu.interrupts.Request(TimerInterrupt) }
	initRegionMap(mmu)
	return mmu
}

// Tick advances any i/o that needs it by the given number of T-cycles.
//
// The timer is ticked one T-cycle at a time so the APU's frame sequencer can
// be stepped on the exact T-cycle its driving signal (DIV bit 4, i.e. bit 12
// of the internal counter) falls, rather than on a free-running local counter.
func (m *MMU) Tick(cycles int) {
	for i := 0; i < cycles; i++ {
		wasHigh := m.timer.DivBit4()
		m.timer.Tick(1)
		if wasHigh && !m.timer.DivBit4() {
			m.APU.StepFrameSequencer()
		}
	}

	m.APU.Tick(cycles)
	if m.serial != nil {
		m.serial.Tick(cycles)
	}
	for i := 0; i < cycles && m.dmaRemaining > 0; i++ {
		m.dmaRemaining--
		if m.dmaRemaining%4 == 0 {
			m.stepDMA()
		}
	}
}

// stepDMA copies a single byte of a pending OAM DMA transfer.
func (m *MMU) stepDMA() {
	idx := (dmaTCyclesTotal-m.dmaRemaining)/4 - 1
	if idx < 0 || idx >= dmaBytesTotal {
		return
	}
	src := uint16(m.dmaSourceHigh)<<8 + uint16(idx)
	m.memory[0xFE00+idx] = m.readRaw(src)
}

// DMAInProgress reports whether an OAM DMA transfer is still copying bytes.
// Read and Write do not consult it: CPU accesses outside HRAM still reach
// memory during a transfer.
func (m *MMU) DMAInProgress() bool {
	return m.dmaRemaining > 0
}

// SetTimerSeed initializes the internal timer divider seed and DIV register.
func (m *MMU) SetTimerSeed(seed uint16) {
	m.timer.SetSeed(seed)
}

// Joypad returns the joypad owned by this MMU, for input backends to drive.
func (m *MMU) Joypad() *Joypad {
	return m.joypad
}

// Interrupts returns the interrupt controller owned by this MMU.
func (m *MMU) Interrupts() *InterruptController {
	return m.interrupts
}

// NewWithCartridge creates a new memory unit with the provided cartridge descriptor loaded.
// Equivalent to turning on a Gameboy with a cartridge in.
func NewWithCartridge(cart *Cartridge) (*MMU, error) {
	mmu := New()
	mmu.cart = cart

	switch cart.mbcType {
	case NoMBCType:
		mmu.mbc = NewNoMBC(cart.data)
	case MBC1Type:
		mmu.mbc = NewMBC1(cart.data, cart.hasBattery, cart.ramBankCount)
	case MBC1MultiType:
		mmu.mbc = NewMBC1M(cart.data, cart.hasBattery, cart.ramBankCount)
	case MBC3Type:
		mmu.mbc = NewMBC3(cart.data, cart.hasRTC, cart.ramBankCount)
	case MBC5Type:
		mmu.mbc = NewMBC5(cart.data, cart.hasRumble, cart.ramBankCount)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedMbc, cart.mbcType)
	}

	return mmu, nil
}

func initRegionMap(m *MMU) {
	// ROM: 0x0000-0x7FFF
	for i := 0x00; i <= 0x7F; i++ {
		m.regionMap[i] = regionROM
	}
	// VRAM: 0x8000-0x9FFF
	for i := 0x80; i <= 0x9F; i++ {
		m.regionMap[i] = regionVRAM
	}
	// External RAM: 0xA000-0xBFFF
	for i := 0xA0; i <= 0xBF; i++ {
		m.regionMap[i] = regionExtRAM
	}
	// Work RAM: 0xC000-0xDFFF
	for i := 0xC0; i <= 0xDF; i++ {
		m.regionMap[i] = regionWRAM
	}
	// Echo RAM: 0xE000-0xFDFF
	for i := 0xE0; i <= 0xFD; i++ {
		m.regionMap[i] = regionEcho
	}
	// OAM: 0xFE00-0xFE9F, Unused: 0xFEA0-0xFEFF
	m.regionMap[0xFE] = regionOAM
	// IO + HRAM: 0xFF00-0xFFFF
	m.regionMap[0xFF] = regionIO
}

// RequestInterrupt sets the interrupt flag (IF register) of the chosen interrupt to 1.
func (m *MMU) RequestInterrupt(interrupt addr.Interrupt) {
	var kind InterruptKind
	switch interrupt {
	case addr.VBlankInterrupt:
		kind = VBlankInterrupt
	case addr.LCDSTATInterrupt:
		kind = LCDSTATInterrupt
	case addr.TimerInterrupt:
		kind = TimerInterrupt
	case addr.SerialInterrupt:
		kind = SerialInterrupt
	case addr.JoypadInterrupt:
		kind = JoypadInterrupt
	default:
		panic(fmt.Sprintf("Unknown interrupt: 0x%02X", uint8(interrupt)))
	}
	m.interrupts.Request(kind)
}

func (m *MMU) ReadBit(index uint8, address uint16) bool {
	return bit.IsSet(index, m.Read(address))
}

func (m *MMU) SetBit(index uint8, address uint16, set bool) {
	value := m.Read(address)
	if set {
		value = bit.Set(index, value)
	} else {
		value = bit.Reset(index, value)
	}
	m.Write(address, value)
}

// readRaw reads a byte without Read's VRAM/OAM lock checks and no-cartridge
// warning, for internal use by the DMA engine itself; unmapped addresses read
// 0xFF instead of panicking.
func (m *MMU) readRaw(address uint16) byte {
	switch m.regionMap[address>>8] {
	case regionROM, regionExtRAM:
		if m.mbc == nil {
			return 0xFF
		}
		return m.mbc.Read(address)
	case regionVRAM, regionWRAM:
		return m.memory[address]
	case regionEcho:
		return m.memory[address-0x2000]
	case regionOAM:
		return m.memory[address]
	case regionIO:
		return m.readIO(address)
	default:
		return 0xFF
	}
}

func (m *MMU) readIO(address uint16) byte {
	switch {
	case address == addr.P1:
		return m.joypad.ReadRegister()
	case address == addr.SB || address == addr.SC:
		return m.serial.Read(address)
	case address == addr.DIV || address == addr.TIMA || address == addr.TMA || address == addr.TAC:
		return m.timer.Read(address)
	case address >= 0xFF10 && address <= 0xFF3F:
		return m.APU.ReadRegister(address)
	case address == addr.IF:
		return m.interrupts.ReadIF()
	case address == addr.IE:
		return m.interrupts.ReadIE()
	case address >= 0xFF80:
		return m.memory[address]
	default:
		return m.memory[address]
	}
}

func (m *MMU) Read(address uint16) byte {
	switch m.regionMap[address>>8] {
	case regionROM, regionExtRAM:
		if m.mbc == nil {
			slog.Warn("Reading from ROM/external RAM with no cartridge", "addr", fmt.Sprintf("0x%04X", address))
			return 0xFF
		}
		return m.mbc.Read(address)
	case regionVRAM:
		if m.vramLocked {
			return 0xFF
		}
		return m.memory[address]
	case regionWRAM:
		return m.memory[address]
	case regionEcho:
		return m.memory[address-0x2000]
	case regionOAM:
		if m.oamLocked {
			return 0xFF
		}
		return m.memory[address]
	case regionIO:
		return m.readIO(address)
	default:
		panic(fmt.Sprintf("Attempted read at unmapped address: 0x%X", address))
	}
}

func (m *MMU) Write(address uint16, value byte) {
	switch m.regionMap[address>>8] {
	case regionROM:
		if m.mbc == nil {
			slog.Warn("Writing to ROM with no cartridge", "addr", fmt.Sprintf("0x%04X", address), "value", fmt.Sprintf("0x%02X", value))
			return
		}
		m.mbc.Write(address, value)
	case regionVRAM:
		if m.vramLocked {
			return
		}
		m.memory[address] = value
	case regionExtRAM:
		if m.mbc == nil {
			slog.Warn("Writing to external RAM with no cartridge", "addr", fmt.Sprintf("0x%04X", address), "value", fmt.Sprintf("0x%02X", value))
			return
		}
		m.mbc.Write(address, value)
	case regionWRAM:
		m.memory[address] = value
	case regionEcho:
		m.memory[address-0x2000] = value
	case regionOAM:
		if m.oamLocked {
			return
		}
		m.memory[address] = value
	case regionIO:
		switch {
		case address == addr.P1:
			m.joypad.WriteRegister(value)
		case address == addr.SB || address == addr.SC:
			m.serial.Write(address, value)
		case address == addr.DIV || address == addr.TIMA || address == addr.TMA || address == addr.TAC:
			m.timer.Write(address, value)
		case address >= 0xFF10 && address <= 0xFF3F:
			m.APU.WriteRegister(address, value)
		case address == addr.IF:
			m.interrupts.WriteIF(value)
		case address == addr.IE:
			m.interrupts.WriteIE(value)
		case address == addr.DMA:
			m.dmaSourceHigh = value
			m.dmaRemaining = dmaTCyclesTotal
			m.memory[address] = value
		default:
			m.memory[address] = value
		}
	default:
		panic(fmt.Sprintf("Attempted write at unmapped address: 0x%X", address))
	}
}

// HandleKeyPress forwards a button press to the joypad.
func (m *MMU) HandleKeyPress(key JoypadKey) {
	m.joypad.Press(key)
}

// HandleKeyRelease forwards a button release to the joypad.
func (m *MMU) HandleKeyRelease(key JoypadKey) {
	m.joypad.Release(key)
}
