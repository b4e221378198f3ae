package video

// fetcherState enumerates the BG/window pixel fetcher's states. GetTile,
// GetDataLow and GetDataHigh each take two T-cycles; Push attempts to flush a
// full 8-pixel tile row into the FIFO and stalls one T-cycle at a time while
// the FIFO still holds pixels from the previous tile.
type fetcherState int

const (
	fetchGetTile fetcherState = iota
	fetchGetDataLow
	fetchGetDataHigh
	fetchPush
)

// bgFetcher walks a tile map one column at a time, producing 8-pixel rows
// into the BG/Win FIFO. The same fetcher drives background and window
// fetching; reset selects which tile map and row it reads from.
type bgFetcher struct {
	state    fetcherState
	subCycle int // 0 or 1; GetTile/GetDataLow/GetDataHigh last two T-cycles each

	mapAddr   uint16 // tile map base: addr.TileMap0 or addr.TileMap1
	dataAddr  uint16 // tile data base: addr.TileData0 (unsigned) or addr.TileData2 (signed)
	signed    bool
	tileCol   int // tile column within the 32-wide map, wraps mod 32
	rowInTile int // pixel row within the tile, 0-7

	tileID    byte
	low, high byte
}

func (f *bgFetcher) reset(mapAddr, dataAddr uint16, signed bool, tileCol, rowInTile int) {
	f.state = fetchGetTile
	f.subCycle = 0
	f.mapAddr = mapAddr
	f.dataAddr = dataAddr
	f.signed = signed
	f.tileCol = tileCol
	f.rowInTile = rowInTile
}

func (f *bgFetcher) tileDataAddr() uint16 {
	if f.signed {
		return uint16(int(f.dataAddr) + int(int8(f.tileID))*16 + f.rowInTile*2)
	}
	return f.dataAddr + uint16(f.tileID)*16 + uint16(f.rowInTile*2)
}

// tick advances the fetcher by one T-cycle against the given bus and FIFO.
// Returns true the T-cycle a tile row was successfully pushed.
func (f *bgFetcher) tick(bus MemoryReader, fifo *pixelFIFO) bool {
	switch f.state {
	case fetchGetTile:
		if f.subCycle == 0 {
			f.subCycle = 1
			return false
		}
		f.subCycle = 0
		f.tileID = bus.Read(f.mapAddr + uint16(f.tileCol&0x1F))
		f.state = fetchGetDataLow
	case fetchGetDataLow:
		if f.subCycle == 0 {
			f.subCycle = 1
			return false
		}
		f.subCycle = 0
		f.low = bus.Read(f.tileDataAddr())
		f.state = fetchGetDataHigh
	case fetchGetDataHigh:
		if f.subCycle == 0 {
			f.subCycle = 1
			return false
		}
		f.subCycle = 0
		f.high = bus.Read(f.tileDataAddr() + 1)
		f.state = fetchPush
	case fetchPush:
		if fifo.Len() > 0 {
			return false // previous tile's pixels still queued; stall
		}
		row := TileRow{Low: f.low, High: f.high}
		for x := 0; x < 8; x++ {
			fifo.Push(pixel{color: byte(row.GetPixel(x))})
		}
		f.tileCol++
		f.state = fetchGetTile
		return true
	}
	return false
}

// spriteFetcher mirrors bgFetcher's states for a single sprite tile row. It
// always reads unsigned tile data from addr.TileData0 (sprites never use
// signed addressing) and applies the sprite's X-flip attribute.
type spriteFetcher struct {
	state     fetcherState
	subCycle  int
	tileAddr  uint16
	flipX     bool
	low, high byte
}

func (f *spriteFetcher) start(tileAddr uint16, flipX bool) {
	f.state = fetchGetTile
	f.subCycle = 0
	f.tileAddr = tileAddr
	f.flipX = flipX
}

// tick advances the sprite fetch by one T-cycle; returns true once the row's
// 8 colors (index 0 = leftmost on-screen pixel) are ready in out.
func (f *spriteFetcher) tick(bus MemoryReader, out *[8]byte) bool {
	switch f.state {
	case fetchGetTile:
		// Real hardware re-reads the OAM byte here; we already have it, so
		// this state is a pure 2-cycle delay matching the BG fetcher's cadence.
		if f.subCycle == 0 {
			f.subCycle = 1
			return false
		}
		f.subCycle = 0
		f.state = fetchGetDataLow
	case fetchGetDataLow:
		if f.subCycle == 0 {
			f.subCycle = 1
			return false
		}
		f.subCycle = 0
		f.low = bus.Read(f.tileAddr)
		f.state = fetchGetDataHigh
	case fetchGetDataHigh:
		if f.subCycle == 0 {
			f.subCycle = 1
			return false
		}
		f.subCycle = 0
		f.high = bus.Read(f.tileAddr + 1)
		f.state = fetchPush
	case fetchPush:
		row := TileRow{Low: f.low, High: f.high}
		for x := 0; x < 8; x++ {
			if f.flipX {
				out[x] = byte(row.GetPixelFlipped(x))
			} else {
				out[x] = byte(row.GetPixel(x))
			}
		}
		return true
	}
	return false
}
