package memory

import "github.com/ashgrove-dev/dmgcore/core/bit"

// JoypadKey represents a key on the Gameboy joypad
type JoypadKey uint8

const (
	JoypadRight JoypadKey = iota
	JoypadLeft
	JoypadUp
	JoypadDown
	JoypadA
	JoypadB
	JoypadSelect
	JoypadStart
)

// Joypad represents the Gameboy joypad
type Joypad struct {
	buttons   uint8
	dpad      uint8
	line      uint8
	requestIRQ func()
}

// NewJoypad creates a new Joypad instance. requestIRQ, if non-nil, is
// called whenever a button press pulls a previously-high input line low,
// matching the Joypad interrupt's edge-triggered hardware behavior.
func NewJoypad(requestIRQ func()) *Joypad {
	return &Joypad{
		buttons:    0x0F,
		dpad:       0x0F,
		requestIRQ: requestIRQ,
	}
}

// ReadRegister returns the full P1 register value: bits 6-7 always read as
// 1, bits 4-5 echo the current selection, and bits 0-3 reflect whichever
// button group(s) are selected (active low; both groups selected ANDs
// them together, neither selected reads all-released).
func (j *Joypad) ReadRegister() uint8 {
	selectDpad := !bit.IsSet(4, j.line)
	selectButtons := !bit.IsSet(5, j.line)

	var low uint8
	switch {
	case selectDpad && selectButtons:
		low = j.dpad & j.buttons & 0x0F
	case selectDpad:
		low = j.dpad & 0x0F
	case selectButtons:
		low = j.buttons & 0x0F
	default:
		low = 0x0F
	}
	return 0b11000000 | j.line | low
}

// WriteRegister sets the joypad's button-group selection bits (4-5); the
// other bits of P1 are read-only.
func (j *Joypad) WriteRegister(value uint8) {
	j.line = value & 0x30
}

// Press updates the joypad state when a key is pressed, requesting the
// Joypad interrupt if this press pulls a previously-released line low.
func (j *Joypad) Press(key JoypadKey) {
	var reg *uint8
	var bitIndex uint8
	switch key {
	case JoypadRight:
		reg, bitIndex = &j.dpad, 0
	case JoypadLeft:
		reg, bitIndex = &j.dpad, 1
	case JoypadUp:
		reg, bitIndex = &j.dpad, 2
	case JoypadDown:
		reg, bitIndex = &j.dpad, 3
	case JoypadA:
		reg, bitIndex = &j.buttons, 0
	case JoypadB:
		reg, bitIndex = &j.buttons, 1
	case JoypadSelect:
		reg, bitIndex = &j.buttons, 2
	case JoypadStart:
		reg, bitIndex = &j.buttons, 3
	default:
		return
	}
	wasHigh := bit.IsSet(bitIndex, *reg)
	*reg = bit.Reset(bitIndex, *reg)
	if wasHigh && j.requestIRQ != nil {
		j.requestIRQ()
	}
}

// Release updates the joypad state when a key is released
func (j *Joypad) Release(key JoypadKey) {
	switch key {
	case JoypadRight:
		j.dpad = bit.Set(0, j.dpad)
	case JoypadLeft:
		j.dpad = bit.Set(1, j.dpad)
	case JoypadUp:
		j.dpad = bit.Set(2, j.dpad)
	case JoypadDown:
		j.dpad = bit.Set(3, j.dpad)
	case JoypadA:
		j.buttons = bit.Set(0, j.buttons)
	case JoypadB:
		j.buttons = bit.Set(1, j.buttons)
	case JoypadSelect:
		j.buttons = bit.Set(2, j.buttons)
	case JoypadStart:
		j.buttons = bit.Set(3, j.buttons)
	}
}
