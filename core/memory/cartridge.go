package memory

import (
	"errors"
	"fmt"
)

// MBCKind identifies which memory bank controller a cartridge header asks for.
type MBCKind uint8

const (
	NoMBCType MBCKind = iota
	MBC1Type
	MBC1MultiType
	MBC2Type
	MBC3Type
	MBC5Type
	MBCUnknownType
)

// ErrCartridgeHeader is returned when a ROM is too small to contain a
// header, or the header's declared ROM size disagrees with the actual
// image length.
var ErrCartridgeHeader = errors.New("memory: invalid cartridge header")

// ErrUnsupportedMbc is returned for a recognized-but-unimplemented MBC kind
// (MBC2, MBC6, MBC7, MMM01, HuC1/HuC3, Pocket Camera, TAMA5). MBC3 variants
// with RTC hardware are accepted; their clock is not emulated.
var ErrUnsupportedMbc = errors.New("memory: unsupported MBC type")

const (
	headerTitleStart    = 0x0134
	headerTitleEnd      = 0x0144
	headerCartType      = 0x0147
	headerROMSize       = 0x0148
	headerRAMSize       = 0x0149
	headerSize          = 0x0150
	nintendoLogoStart   = 0x0104
	nintendoLogoEnd     = 0x0134
	multicartRegionSize = 0x40000 // 256 KiB
)

var nintendoLogo = [48]byte{
	0xCE, 0xED, 0x66, 0x66, 0xCC, 0x0D, 0x00, 0x0B, 0x03, 0x73, 0x00, 0x83,
	0x00, 0x0C, 0x00, 0x0D, 0x00, 0x08, 0x11, 0x1F, 0x88, 0x89, 0x00, 0x0E,
	0xDC, 0xCC, 0x6E, 0xE6, 0xDD, 0xDD, 0xD9, 0x99, 0xBB, 0xBB, 0x67, 0x63,
	0x6E, 0x0E, 0xEC, 0xCC, 0xDD, 0xDC, 0x99, 0x9F, 0xBB, 0xB9, 0x33, 0x3E,
}

// Cartridge is the header descriptor and raw ROM image parsed from a ROM
// file. It carries no banking state itself; NewWithCartridge uses it to
// construct the right MBC.
type Cartridge struct {
	Title        string
	mbcType      MBCKind
	hasBattery   bool
	hasRTC       bool
	hasRumble    bool
	ramBankCount uint8
	data         []uint8
}

// NewCartridge parses a raw ROM image into a Cartridge descriptor.
func NewCartridge(data []uint8) (*Cartridge, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: ROM is %d bytes, shorter than the 0x150-byte header", ErrCartridgeHeader, len(data))
	}

	kind, hasBattery, hasRTC, hasRumble, err := decodeCartridgeType(data[headerCartType])
	if err != nil {
		return nil, err
	}

	romBanks := 2 << data[headerROMSize]
	wantLen := romBanks * 0x4000
	if len(data) < wantLen {
		return nil, fmt.Errorf("%w: header declares %d ROM banks (%d bytes) but image is %d bytes", ErrCartridgeHeader, romBanks, wantLen, len(data))
	}

	if kind == MBC1Type && isMulticart(data) {
		kind = MBC1MultiType
	}

	return &Cartridge{
		Title:        cleanGameboyTitle(data[headerTitleStart:headerTitleEnd]),
		mbcType:      kind,
		hasBattery:   hasBattery,
		hasRTC:       hasRTC,
		hasRumble:    hasRumble,
		ramBankCount: ramBankCount(data[headerRAMSize]),
		data:         data,
	}, nil
}

func ramBankCount(code uint8) uint8 {
	switch code {
	case 0x02:
		return 1
	case 0x03:
		return 4
	case 0x04:
		return 16
	case 0x05:
		return 8
	default:
		return 0
	}
}

// decodeCartridgeType maps the 0x0147 header byte to an MBC kind and the
// battery/RTC/rumble flags bundled into the same cartridge-type code.
func decodeCartridgeType(code uint8) (kind MBCKind, battery, rtc, rumble bool, err error) {
	switch code {
	case 0x00:
		return NoMBCType, false, false, false, nil
	case 0x01:
		return MBC1Type, false, false, false, nil
	case 0x02:
		return MBC1Type, false, false, false, nil
	case 0x03:
		return MBC1Type, true, false, false, nil
	case 0x05:
		return MBC2Type, false, false, false, nil
	case 0x06:
		return MBC2Type, true, false, false, nil
	case 0x0F:
		return MBC3Type, true, true, false, nil
	case 0x10:
		return MBC3Type, true, true, false, nil
	case 0x11:
		return MBC3Type, false, false, false, nil
	case 0x12:
		return MBC3Type, false, false, false, nil
	case 0x13:
		return MBC3Type, true, false, false, nil
	case 0x19:
		return MBC5Type, false, false, false, nil
	case 0x1A:
		return MBC5Type, false, false, false, nil
	case 0x1B:
		return MBC5Type, true, false, false, nil
	case 0x1C:
		return MBC5Type, false, false, true, nil
	case 0x1D:
		return MBC5Type, false, false, true, nil
	case 0x1E:
		return MBC5Type, true, false, true, nil
	default:
		return MBCUnknownType, false, false, false, fmt.Errorf("%w: cartridge type 0x%02X", ErrUnsupportedMbc, code)
	}
}

// isMulticart detects the MBC1M layout used by multi-game compilation
// carts: the Nintendo logo is repeated at the start of each of the four
// 256KiB quadrants instead of just at 0x0104.
func isMulticart(data []uint8) bool {
	if len(data) < 4*multicartRegionSize {
		return false
	}
	matches := 0
	for region := 0; region < 4; region++ {
		base := region * multicartRegionSize
		if matchesLogo(data[base+nintendoLogoStart : base+nintendoLogoEnd]) {
			matches++
		}
	}
	return matches >= 3
}

func matchesLogo(region []byte) bool {
	if len(region) != len(nintendoLogo) {
		return false
	}
	for i, b := range nintendoLogo {
		if region[i] != b {
			return false
		}
	}
	return true
}
