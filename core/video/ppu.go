package video

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/ashgrove-dev/dmgcore/core/addr"
	"github.com/ashgrove-dev/dmgcore/core/bit"
	"github.com/ashgrove-dev/dmgcore/core/memory"
)

// GpuMode represents the PPU's current rendering stage.
// These values match the STAT register bits 1-0.
type GpuMode int

const (
	// hblankMode (Mode 0): Horizontal blank period, CPU can access VRAM/OAM
	hblankMode GpuMode = 0
	// vblankMode (Mode 1): Vertical blank period, CPU can access VRAM/OAM
	vblankMode GpuMode = 1
	// oamReadMode (Mode 2): PPU is scanning OAM, CPU cannot access OAM
	oamReadMode GpuMode = 2
	// vramReadMode (Mode 3): PPU is running the pixel pipeline (Drawing)
	vramReadMode GpuMode = 3
)

const (
	oamScanCycles  = 80
	tCyclesPerLine = 456
	linesPerFrame  = 154
	visibleLines   = 144
)

// GPU is the DMG pixel processing unit: OAM scan feeds a sorted sprite
// buffer to Drawing, where a BG/Win fetcher and a sprite fetcher push rows
// into an 8-entry FIFO that Drawing drains one pixel per T-cycle.
type GPU struct {
	memory        *memory.MMU
	framebuffer   *FrameBuffer
	bgPixelBuffer []byte // last-drawn BG/Win color id per pixel, for sprite BG-priority checks
	oam           *OAM

	mode      GpuMode
	line      int // internal scanline counter, 0-153 (LY mirrors this except the line-153 quirk)
	lineCycle int // T-cycles elapsed on the current line, 0-455

	lx int // Drawing pixel cursor, 0-159

	bg      bgFetcher
	bgFIFO  pixelFIFO
	discard int // pending SCX%8 pixels to drop without emitting, at line start

	scanlineSprites []Sprite
	spriteConsumed  []bool
	sprite          spriteFetcher
	spriteActive    bool
	spriteOwner     *Sprite
	spriteRow       [8]byte

	spriteOverlayColor    [FramebufferWidth]byte
	spriteOverlayBehindBG [FramebufferWidth]bool
	spriteOverlayOBP1     [FramebufferWidth]bool
	spriteOverlayOwned    [FramebufferWidth]bool

	windowActive bool
	windowLine   int
	windowYLatch bool

	lcdWasEnabled bool
	skipFrame     bool
}

func NewGpu(mem *memory.MMU) *GPU {
	gpu := &GPU{
		framebuffer:   NewFrameBuffer(),
		memory:        mem,
		oam:           NewOAM(mem),
		bgPixelBuffer: make([]byte, FramebufferSize),
		mode:          hblankMode,
	}

	lcdc := mem.Read(addr.LCDC)
	bgp := mem.Read(addr.BGP)
	slog.Debug("GPU initialized", "LCDC", fmt.Sprintf("0x%02X", lcdc), "LCD_enabled", (lcdc&0x80) != 0, "BGP", fmt.Sprintf("0x%02X", bgp))

	return gpu
}

func (g *GPU) GetFrameBuffer() *FrameBuffer {
	return g.framebuffer
}

// Tick advances the PPU by the given number of T-cycles, one at a time.
func (g *GPU) Tick(cycles int) {
	for i := 0; i < cycles; i++ {
		g.tickOneCycle()
	}
}

func (g *GPU) tickOneCycle() {
	if !g.lcdEnabled() {
		g.tickLCDDisabled()
		return
	}

	if !g.lcdWasEnabled {
		g.onLCDEnable()
	}

	switch g.mode {
	case oamReadMode:
		g.tickOAMScan()
	case vramReadMode:
		g.tickDrawing()
	case hblankMode:
		g.tickHBlank()
	case vblankMode:
		g.tickVBlank()
	}
}

// onLCDEnable implements spec's "writing LCDC.7=1 resets the mode to OAMScan
// and sets a skip_frame flag so the first rendered frame is discarded."
func (g *GPU) onLCDEnable() {
	g.lcdWasEnabled = true
	g.line = 0
	g.lineCycle = 0
	g.skipFrame = true
	g.setMode(oamReadMode)
	g.memory.SetOAMLocked(true)
	g.memory.SetVRAMLocked(false)
}

// tickLCDDisabled implements "writing LCDC.7=0 blanks the screen, forces
// HBlank mode with LY=0, coincidence=1."
func (g *GPU) tickLCDDisabled() {
	if !g.lcdWasEnabled {
		return
	}
	g.lcdWasEnabled = false
	g.line = 0
	g.lineCycle = 0
	g.lx = 0
	g.memory.SetVRAMLocked(false)
	g.memory.SetOAMLocked(false)
	g.setMode(hblankMode)
	g.memory.Write(addr.LY, 0)
	stat := bit.Set(uint8(statLycCondition), g.memory.Read(addr.STAT))
	g.memory.Write(addr.STAT, stat)

	for i := range g.framebuffer.buffer {
		g.framebuffer.buffer[i] = uint32(WhiteColor)
	}
}

func (g *GPU) tickOAMScan() {
	if g.lineCycle == 0 {
		g.scanlineSprites = g.oam.GetSpritesForScanline(g.line)
		sort.SliceStable(g.scanlineSprites, func(i, j int) bool {
			if g.scanlineSprites[i].X != g.scanlineSprites[j].X {
				return g.scanlineSprites[i].X < g.scanlineSprites[j].X
			}
			return g.scanlineSprites[i].OAMIndex < g.scanlineSprites[j].OAMIndex
		})
		g.spriteConsumed = make([]bool, len(g.scanlineSprites))

		if g.windowEnabled() && int(g.memory.Read(addr.WY)) == g.line {
			g.windowYLatch = true
		}
	}

	g.lineCycle++
	if g.lineCycle >= oamScanCycles {
		g.beginDrawing()
	}
}

func (g *GPU) beginDrawing() {
	g.setMode(vramReadMode)
	g.memory.SetVRAMLocked(true)
	g.lx = 0
	g.windowActive = false
	g.spriteActive = false
	g.bgFIFO.Clear()
	for i := range g.spriteOverlayOwned {
		g.spriteOverlayOwned[i] = false
	}

	scx := g.memory.Read(addr.SCX)
	g.discard = int(scx) % 8

	mapAddr, dataAddr, signed := g.bgTileSource()
	scy := g.memory.Read(addr.SCY)
	scrolledLine := (g.line + int(scy)) & 0xFF
	tileCol := int(scx) / 8
	g.bg.reset(mapAddr+uint16((scrolledLine/8)*32), dataAddr, signed, tileCol, scrolledLine%8)
}

func (g *GPU) tickDrawing() {
	g.lineCycle++

	if !g.windowActive && g.windowEnabled() && g.windowYLatch {
		wx := int(g.memory.Read(addr.WX)) - 7
		if wx < 0 {
			wx = 0
		}
		if g.lx == wx {
			g.activateWindow()
		}
	}

	if !g.spriteActive && g.spriteEnabled() {
		if idx := g.findSpriteAt(g.lx); idx >= 0 {
			g.beginSpriteFetch(&g.scanlineSprites[idx])
			g.spriteConsumed[idx] = true
		}
	}

	if g.spriteActive {
		if g.sprite.tick(g.memory, &g.spriteRow) {
			g.mergeSpriteRow()
			g.spriteActive = false
			// Hardware restarts the BG/Win fetch of the interrupted tile.
			g.bg.state = fetchGetTile
			g.bg.subCycle = 0
		}
		if g.lineCycle >= tCyclesPerLine {
			g.finishDrawingLine()
		}
		return
	}

	g.bg.tick(g.memory, &g.bgFIFO)

	if g.bgFIFO.Len() > 0 {
		px := g.bgFIFO.Pop()
		if g.discard > 0 {
			g.discard--
		} else {
			g.emitPixel(px)
			g.lx++
		}
	}

	if g.lx >= FramebufferWidth || g.lineCycle >= tCyclesPerLine {
		g.finishDrawingLine()
	}
}

func (g *GPU) activateWindow() {
	g.windowActive = true
	mapAddr := addr.TileMap0
	if g.lcdcBit(windowTileMapSelect) {
		mapAddr = addr.TileMap1
	}
	dataAddr, signed := g.bgWindowTileData()
	row := g.windowLine
	g.bg.reset(mapAddr+uint16((row/8)*32), dataAddr, signed, 0, row%8)
	g.bgFIFO.Clear()
	g.windowLine++
}

// findSpriteAt returns the index of the first not-yet-fetched scanline
// sprite whose on-screen start column equals lx, or -1.
func (g *GPU) findSpriteAt(lx int) int {
	for i := range g.scanlineSprites {
		if g.spriteConsumed[i] {
			continue
		}
		if int(g.scanlineSprites[i].X) == lx {
			return i
		}
	}
	return -1
}

func (g *GPU) beginSpriteFetch(sp *Sprite) {
	height := sp.Height
	mask := byte(0xFF)
	if height == 16 {
		mask = 0xFE
	}
	tileNum := sp.TileIndex & mask

	// Sprite.Y is stored mod 256 (see OAM.GetSpritesForScanline); recover the
	// true row-within-sprite via modular subtraction rather than treating it
	// as a signed value.
	pixelY := (g.line - int(sp.Y) + 256) % 256
	if sp.FlipY {
		pixelY = height - 1 - pixelY
	}

	tileOffset := 0
	rowOffset := pixelY * 2
	if height == 16 && pixelY >= 8 {
		tileOffset = 16
		rowOffset = (pixelY - 8) * 2
	}

	tileAddr := addr.TileData0 + uint16(int(tileNum)*16+tileOffset+rowOffset)
	g.sprite.start(tileAddr, sp.FlipX)
	g.spriteActive = true
	g.spriteOwner = sp
}

// mergeSpriteRow writes the fetched sprite's owned, non-transparent pixels
// into the scanline's sprite overlay, composited against at emitPixel time.
func (g *GPU) mergeSpriteRow() {
	sp := g.spriteOwner
	for i := 0; i < 8; i++ {
		x := int(sp.X) + i
		if x < 0 || x >= FramebufferWidth {
			continue
		}
		if !sp.HasPriorityForPixel(i) {
			continue
		}
		color := g.spriteRow[i]
		if color == 0 {
			continue
		}
		g.spriteOverlayColor[x] = color
		g.spriteOverlayBehindBG[x] = sp.BehindBG
		g.spriteOverlayOBP1[x] = sp.PaletteOBP1
		g.spriteOverlayOwned[x] = true
	}
}

func (g *GPU) emitPixel(px pixel) {
	idx := g.line*FramebufferWidth + g.lx

	if g.skipFrame {
		// LCD was just re-enabled: the first frame is discarded per hardware
		// behavior, so this scanline renders blank rather than stale data.
		g.framebuffer.buffer[idx] = uint32(WhiteColor)
		g.bgPixelBuffer[idx] = 0
		return
	}

	color := px.color
	if !g.bgEnabled() {
		color = 0
	}

	g.bgPixelBuffer[idx] = color

	final := color
	fromSprite := false
	if g.spriteEnabled() && g.spriteOverlayOwned[g.lx] {
		sc := g.spriteOverlayColor[g.lx]
		if sc != 0 && (!g.spriteOverlayBehindBG[g.lx] || color == 0) {
			final = sc
			fromSprite = true
		}
	}

	paletteAddr := addr.BGP
	if fromSprite {
		if g.spriteOverlayOBP1[g.lx] {
			paletteAddr = addr.OBP1
		} else {
			paletteAddr = addr.OBP0
		}
	}

	palette := g.memory.Read(paletteAddr)
	shade := (palette >> (final * 2)) & 0x03
	g.framebuffer.buffer[idx] = uint32(ByteToColor(shade))
}

func (g *GPU) finishDrawingLine() {
	g.memory.SetVRAMLocked(false)
	g.memory.SetOAMLocked(false)
	g.setMode(hblankMode)
	if g.memory.ReadBit(uint8(statHblankIrq), addr.STAT) {
		g.memory.RequestInterrupt(addr.LCDSTATInterrupt)
	}
}

func (g *GPU) tickHBlank() {
	g.lineCycle++
	if g.lineCycle < tCyclesPerLine {
		return
	}

	g.lineCycle = 0
	g.line++

	if g.line == visibleLines {
		g.setLY(g.line)
		g.setMode(vblankMode)
		g.windowLine = 0
		g.windowYLatch = false
		g.skipFrame = false
		g.memory.RequestInterrupt(addr.VBlankInterrupt)
		if g.memory.ReadBit(uint8(statVblankIrq), addr.STAT) {
			g.memory.RequestInterrupt(addr.LCDSTATInterrupt)
		}
		return
	}

	g.setLY(g.line)
	g.setMode(oamReadMode)
	g.memory.SetOAMLocked(true)
	if g.memory.ReadBit(uint8(statOamIrq), addr.STAT) {
		g.memory.RequestInterrupt(addr.LCDSTATInterrupt)
	}
}

func (g *GPU) tickVBlank() {
	g.lineCycle++

	// Hardware quirk: LY flips to 0 four T-cycles into the last VBlank line,
	// well before the line (and VBlank itself) actually ends.
	if g.line == linesPerFrame-1 && g.lineCycle == 4 {
		g.memory.Write(addr.LY, 0)
		g.compareLYToLYC()
	}

	if g.lineCycle < tCyclesPerLine {
		return
	}

	g.lineCycle = 0
	g.line++

	if g.line >= linesPerFrame {
		g.line = 0
		g.setLY(g.line)
		g.setMode(oamReadMode)
		g.memory.SetOAMLocked(true)
		if g.memory.ReadBit(uint8(statOamIrq), addr.STAT) {
			g.memory.RequestInterrupt(addr.LCDSTATInterrupt)
		}
		return
	}

	g.setLY(g.line)
}

// --- LCDC/STAT register helpers ---

// LCD Stat (Status) Register bit values
// Bit 7 - unused
// Bit 6 - Interrupt based on LYC to LY comparison (based on bit 2)
// Bit 5 - Interrupt when Mode 10 (oamReadMode)
// Bit 4 - Interrupt when Mode 01 (vblankMode)
// Bit 3 - Interrupt when Mode 00 (hblankMode)
// Bit 2 - condition for triggering LYC/LY (0=LYC != LY, 1=LYC == LY)
// Bit 1,0 - represents the current GPU mode
type statFlag uint8

const (
	statLycIrq       statFlag = 6
	statOamIrq       statFlag = 5
	statVblankIrq    statFlag = 4
	statHblankIrq    statFlag = 3
	statLycCondition statFlag = 2
)

// LCDC (LCD Control) Register bit values
// Bit 7 - LCD Display Enable (0=Off, 1=On)
// Bit 6 - Window Tile Map Display Select (0=9800-9BFF, 1=9C00-9FFF)
// Bit 5 - Window Display Enable (0=Off, 1=On)
// Bit 4 - BG & Window Tile Data Select (0=8800-97FF, 1=8000-8FFF)
// Bit 3 - BG Tile Map Display Select (0=9800-9BFF, 1=9C00-9FFF)
// Bit 2 - OBJ (Sprite) Size (0=8x8, 1=8x16)
// Bit 1 - OBJ (Sprite) Display Enable (0=Off, 1=On)
// Bit 0 - BG Display (0=Off, 1=On)
type lcdcFlag uint8

const (
	lcdDisplayEnable       lcdcFlag = 7
	windowTileMapSelect    lcdcFlag = 6
	windowDisplayEnable    lcdcFlag = 5
	bgWindowTileDataSelect lcdcFlag = 4
	bgTileMapDisplaySelect lcdcFlag = 3
	spriteSize             lcdcFlag = 2
	spriteDisplayEnable    lcdcFlag = 1
	bgDisplay              lcdcFlag = 0
)

func (g *GPU) lcdcBit(flag lcdcFlag) bool {
	return bit.IsSet(uint8(flag), g.memory.Read(addr.LCDC))
}

func (g *GPU) readLCDCVariable(flag lcdcFlag) byte {
	if g.lcdcBit(flag) {
		return 1
	}
	return 0
}

func (g *GPU) lcdEnabled() bool    { return g.lcdcBit(lcdDisplayEnable) }
func (g *GPU) bgEnabled() bool     { return g.lcdcBit(bgDisplay) }
func (g *GPU) spriteEnabled() bool { return g.lcdcBit(spriteDisplayEnable) }

// windowEnabled mirrors DMG hardware: the window is only rendered when the
// BG/window master bit (LCDC.0) is also set.
func (g *GPU) windowEnabled() bool {
	return g.bgEnabled() && g.lcdcBit(windowDisplayEnable)
}

func (g *GPU) bgWindowTileData() (dataAddr uint16, signed bool) {
	if g.lcdcBit(bgWindowTileDataSelect) {
		return addr.TileData0, false
	}
	return addr.TileData2, true
}

func (g *GPU) bgTileSource() (mapAddr, dataAddr uint16, signed bool) {
	dataAddr, signed = g.bgWindowTileData()
	mapAddr = addr.TileMap0
	if g.lcdcBit(bgTileMapDisplaySelect) {
		mapAddr = addr.TileMap1
	}
	return mapAddr, dataAddr, signed
}

func (g *GPU) compareLYToLYC() {
	ly := g.memory.Read(addr.LY)
	lyc := g.memory.Read(addr.LYC)
	stat := g.memory.Read(addr.STAT)

	if ly == lyc {
		stat = bit.Set(uint8(statLycCondition), stat)
		if bit.IsSet(uint8(statLycIrq), stat) {
			g.memory.RequestInterrupt(addr.LCDSTATInterrupt)
		}
	} else {
		stat = bit.Reset(uint8(statLycCondition), stat)
	}

	g.memory.Write(addr.STAT, stat)
}

// setMode sets the two bits (1,0) in the STAT register according to the
// selected GPU mode.
func (g *GPU) setMode(mode GpuMode) {
	g.mode = mode
	stat := g.memory.Read(addr.STAT)
	stat = stat&0xFC | byte(mode)
	g.memory.Write(addr.STAT, stat)
}

// setLY updates the current scanline (LY register) and re-runs the LYC
// comparison, which can itself request a STAT interrupt.
func (g *GPU) setLY(line int) {
	g.memory.Write(addr.LY, byte(line))
	g.compareLYToLYC()
}
