package ppu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakeBus is a flat 16KiB PPU address space, good enough to exercise
// register behavior without dragging in internal/cartridge.
type fakeBus struct {
	mem [0x4000]uint8
}

func (b *fakeBus) ReadPPU(address uint16) uint8         { return b.mem[address&0x3FFF] }
func (b *fakeBus) WritePPU(address uint16, value uint8) { b.mem[address&0x3FFF] = value }

func newTestPPU() (*PPU, *fakeBus) {
	bus := &fakeBus{}
	p := New(bus)
	p.Reset()
	return p, bus
}

func runCycles(p *PPU, n int) {
	for i := 0; i < n; i++ {
		p.Step()
	}
}

func TestResetSetsVBlankAndClearsRegisters(t *testing.T) {
	p, _ := newTestPPU()
	assert.True(t, p.IsVBlank())
	assert.Equal(t, -1, p.Scanline())
}

func TestPPUCtrlWriteSetsNametableBitsInT(t *testing.T) {
	p, _ := newTestPPU()
	p.Write(0x2000, 0x03)
	assert.Equal(t, uint16(0x0C00), p.t&0x0C00)
}

func TestPPUStatusReadClearsVBlankAndLatch(t *testing.T) {
	p, _ := newTestPPU()
	p.w = true
	status := p.Read(0x2002)
	assert.NotZero(t, status&0x80)
	assert.False(t, p.IsVBlank())
	assert.False(t, p.w)
}

func TestPPUScrollWriteSequence(t *testing.T) {
	p, _ := newTestPPU()
	p.Write(0x2005, 0x7D) // X scroll: coarse 15, fine 5
	assert.True(t, p.w)
	assert.Equal(t, uint8(5), p.x)

	p.Write(0x2005, 0x5E) // Y scroll
	assert.False(t, p.w)
}

func TestPPUAddrWriteSetsVRAMAddress(t *testing.T) {
	p, _ := newTestPPU()
	p.Write(0x2006, 0x23)
	p.Write(0x2006, 0xC0)
	assert.Equal(t, uint16(0x23C0), p.v)
}

func TestPPUDataReadIsBufferedBelowPalette(t *testing.T) {
	p, bus := newTestPPU()
	bus.mem[0x2000] = 0x42
	p.Write(0x2006, 0x20)
	p.Write(0x2006, 0x00)

	first := p.Read(0x2007)
	assert.NotEqual(t, uint8(0x42), first, "first read returns stale buffer contents")

	second := p.Read(0x2007)
	assert.Equal(t, uint8(0x42), second)
}

func TestPPUDataWriteIncrementsByRowWhenCtrlBitSet(t *testing.T) {
	p, bus := newTestPPU()
	p.Write(0x2000, 0x04) // VRAM increment = 32
	p.Write(0x2006, 0x20)
	p.Write(0x2006, 0x00)
	p.Write(0x2007, 0x99)
	assert.Equal(t, uint8(0x99), bus.mem[0x2000])
	assert.Equal(t, uint16(0x2020), p.v)
}

func TestPaletteWriteReadRoundTripAndMirroring(t *testing.T) {
	p, _ := newTestPPU()
	p.Write(0x2006, 0x3F)
	p.Write(0x2006, 0x00)
	p.Write(0x2007, 0x0F)

	p.Write(0x2006, 0x3F)
	p.Write(0x2006, 0x10) // mirrors $3F00
	readBack := p.busRead(0x3F00)
	assert.Equal(t, uint8(0x0F), readBack)
	assert.Equal(t, p.palette[0], p.palette[paletteIndex(0x3F10)])
}

func TestOAMDataReadWrite(t *testing.T) {
	p, _ := newTestPPU()
	p.Write(0x2003, 0x05) // OAMADDR
	p.Write(0x2004, 0xAB) // OAMDATA
	assert.Equal(t, uint8(0xAB), p.oam[5])
	assert.Equal(t, uint8(6), p.oamAddr)
}

func TestWriteOAMForDMA(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteOAM(0x10, 0x7A)
	assert.Equal(t, uint8(0x7A), p.oam[0x10])
}

func TestNMILineFollowsVBlankAndCtrlEnable(t *testing.T) {
	p, _ := newTestPPU()
	assert.True(t, p.IsVBlank())
	assert.False(t, p.NMILine(), "NMI not enabled in PPUCTRL yet")

	p.Write(0x2000, 0x80)
	assert.True(t, p.NMILine())

	p.Read(0x2002) // clears VBlank
	assert.False(t, p.NMILine())
}

func TestVBlankSetsAtScanline241Cycle1(t *testing.T) {
	p, _ := newTestPPU()
	p.Read(0x2002) // clear the power-on VBlank so the transition is observable
	assert.False(t, p.IsVBlank())

	// From scanline -1 cycle 0 to scanline 241 cycle 1 is 242*341+1 dots.
	target := 242*341 + 1
	runCycles(p, target)
	assert.True(t, p.IsVBlank())
	assert.Equal(t, 241, p.Scanline())
}

func TestSpriteEvaluationFindsVisibleSpritesAndSetsOverflow(t *testing.T) {
	p, _ := newTestPPU()
	p.Write(0x2001, 0x18) // enable background + sprites

	for i := 0; i < 9; i++ {
		base := i * 4
		p.oam[base] = 10 // Y=10, visible on scanline 11..18
		p.oam[base+1] = uint8(i)
		p.oam[base+2] = 0
		p.oam[base+3] = uint8(i * 8)
	}

	p.scanline = 11
	p.evaluateSprites()

	assert.Equal(t, uint8(8), p.spriteCount)
	assert.True(t, p.spriteOverflow)
	assert.NotZero(t, p.ppuStatus&0x20)
}

func TestSpriteZeroHitDetection(t *testing.T) {
	p, bus := newTestPPU()
	p.Write(0x2001, 0x1E) // background + sprites, no left-edge clipping

	// Background tile 1 at nametable (0,0), fully opaque (pattern all-1 bits).
	bus.mem[0x2000] = 1
	patternBase := uint16(1) * 16
	for row := uint16(0); row < 8; row++ {
		bus.mem[patternBase+row] = 0xFF
		bus.mem[patternBase+8+row] = 0x00
	}

	// Sprite 0 at (0,0), opaque tile 2.
	p.oam[0] = 0 // Y
	p.oam[1] = 2 // tile
	p.oam[2] = 0 // attr
	p.oam[3] = 0 // X
	spritePatternBase := uint16(2) * 16
	for row := uint16(0); row < 8; row++ {
		bus.mem[spritePatternBase+row] = 0xFF
		bus.mem[spritePatternBase+8+row] = 0x00
	}

	p.scanline = 0
	p.evaluateSprites()

	assert.False(t, p.sprite0Hit)
	p.cycle = 10 // hit detection only latches after cycle 2
	p.checkSprite0Hit(4, true, 1)
	assert.True(t, p.sprite0Hit)
	assert.NotZero(t, p.ppuStatus&0x40)
}

func TestIncrementCoarseXWrapsIntoNextNametable(t *testing.T) {
	p, _ := newTestPPU()
	p.v = 31 // coarse X at the last tile of nametable 0
	p.incrementCoarseX()
	assert.Equal(t, uint16(0x0400), p.v, "coarse X wraps to 0 and flips the horizontal nametable")

	p.v = 5
	p.incrementCoarseX()
	assert.Equal(t, uint16(6), p.v)
}

func TestIncrementFineYCarriesIntoCoarseY(t *testing.T) {
	p, _ := newTestPPU()

	p.v = 0x7000 | (29 << 5) // fine Y 7, coarse Y 29: bottom visible row
	p.incrementFineY()
	assert.Equal(t, uint16(0x0800), p.v, "coarse Y wraps at 29 and flips the vertical nametable")

	p.v = 0x7000 | (31 << 5) // coarse Y 31: attribute rows wrap without flipping
	p.incrementFineY()
	assert.Equal(t, uint16(0x0000), p.v)

	p.v = 0x2000 // fine Y 2
	p.incrementFineY()
	assert.Equal(t, uint16(0x3000), p.v)
}

func TestHorizontalBitsCopyAtCycle257(t *testing.T) {
	p, _ := newTestPPU()
	p.Write(0x2001, 0x08) // enable background rendering
	p.t = 0x041F          // nametable X set, coarse X 31
	p.v = 0x7BE0          // every vertical bit set, horizontal clear

	p.scanline = 10
	p.cycle = 256
	p.Step() // lands on cycle 257
	assert.Equal(t, uint16(0x7FFF), p.v, "horizontal bits of t copied into v, vertical bits untouched")
}

func TestVerticalBitsCopyOnPreRenderScanline(t *testing.T) {
	p, _ := newTestPPU()
	p.Write(0x2001, 0x08)
	p.t = 0x7BE0 // every vertical bit set
	p.v = 0x0000

	p.scanline = -1
	p.cycle = 279
	p.Step() // cycle 280: first vertical-copy dot
	assert.Equal(t, uint16(0x7BE0), p.v&0x7BE0)
}

func TestFineYIncrementsAtCycle256DuringRendering(t *testing.T) {
	p, _ := newTestPPU()
	p.Write(0x2001, 0x08)
	p.v = 0
	p.scanline = 20
	p.cycle = 255
	p.Step() // cycle 256
	assert.Equal(t, uint16(0x1000), p.v&0x7000, "fine Y incremented at end of visible cycles")
}

func TestCoarseXIncrementsEveryEightFetchCycles(t *testing.T) {
	p, _ := newTestPPU()
	p.Write(0x2001, 0x08)
	p.v = 0
	p.scanline = 20
	p.cycle = 0
	// Cycles 1..16 cover two full tile fetches (coarse X bumps at 8 and 16).
	runCycles(p, 16)
	assert.Equal(t, uint16(2), p.v&0x001F)
}

func TestOddFrameSkipsIdleDotWhenRenderingEnabled(t *testing.T) {
	p, _ := newTestPPU()
	p.Write(0x2001, 0x08)
	p.oddFrame = true
	p.scanline = -1
	p.cycle = 340
	p.Step()
	assert.Equal(t, 0, p.Scanline())
	assert.Equal(t, 1, p.Cycle(), "the (0,0) idle dot is dropped on odd rendering frames")
}

func TestSpriteFlagsClearOnPreRenderScanline(t *testing.T) {
	p, _ := newTestPPU()
	p.ppuStatus |= 0xE0 // VBlank, sprite-0-hit, overflow all set
	p.sprite0Hit = true
	p.spriteOverflow = true

	p.scanline = -1
	p.cycle = 0
	p.Step() // cycle 1 of the pre-render scanline
	assert.Zero(t, p.ppuStatus&0xE0)
	assert.False(t, p.sprite0Hit)
	assert.False(t, p.spriteOverflow)
}

func TestNESColorToRGBIsStableAndMasksIndex(t *testing.T) {
	assert.Equal(t, nesPalette[0x21], NESColorToRGB(0x21))
	assert.Equal(t, nesPalette[0x21], NESColorToRGB(0x21|0x40)) // only 6 bits significant
}

func TestFrameCompleteCallbackFiresOncePerFrame(t *testing.T) {
	p, _ := newTestPPU()
	count := 0
	p.SetFrameCompleteCallback(func() { count++ })

	runCycles(p, 262*341+1)
	assert.Equal(t, 1, count)
}
