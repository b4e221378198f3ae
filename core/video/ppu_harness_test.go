package video

// runLine drives the PPU through one complete OAM scan + Drawing pass for
// the given scanline, bypassing HBlank/VBlank timing and the LCD-enable
// skip-frame quirk so unit tests can render a single line directly. The
// caller is responsible for writing VRAM/registers (including LCDC) before
// calling this.
func (g *GPU) runLine(line int) {
	g.line = line
	g.drawScanline()
}

// drawScanline renders the scanline currently in g.line through the OAM
// scan + Drawing pipeline, without advancing to HBlank/VBlank timing.
func (g *GPU) drawScanline() {
	g.lineCycle = 0
	g.setMode(oamReadMode)
	g.memory.SetOAMLocked(true)

	for g.mode == oamReadMode {
		g.tickOAMScan()
	}
	for g.lx < FramebufferWidth {
		g.tickDrawing()
	}
}
