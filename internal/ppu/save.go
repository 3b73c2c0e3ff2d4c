package ppu

import "nesdis/internal/binio"

// Save writes the PPU's complete visible state: registers, scroll latches,
// OAM, palette RAM, the scanline/cycle/frame counters (the raster
// position), the background fetch/shifter pipeline, and the framebuffer
// itself, so a restored instance can resume mid-frame with no visible seam.
func (p *PPU) Save(w *binio.Writer) {
	w.WriteByte(p.ppuCtrl)
	w.WriteByte(p.ppuMask)
	w.WriteByte(p.ppuStatus)
	w.WriteByte(p.oamAddr)

	w.WriteVarUint(uint64(p.v))
	w.WriteVarUint(uint64(p.t))
	w.WriteByte(p.x)
	w.WriteBool(p.w)

	w.WriteBytes(p.palette[:])
	w.WriteByte(p.readBuffer)

	w.WriteVarInt(int64(p.scanline))
	w.WriteVarUint(uint64(p.cycle))
	w.WriteVarUint(p.frame)
	w.WriteBool(p.oddFrame)

	w.WriteBytes(p.oam[:])
	w.WriteBytes(p.secondaryOAM[:])
	w.WriteBytes(p.spriteIndexes[:])
	w.WriteByte(p.spriteCount)
	w.WriteBool(p.sprite0OnScanline)
	w.WriteBool(p.sprite0Hit)
	w.WriteBool(p.spriteOverflow)
	w.WriteVarInt(int64(p.lastEvalScanline))

	w.WriteBool(p.backgroundEnabled)
	w.WriteBool(p.spritesEnabled)
	w.WriteBool(p.renderingEnabled)

	w.WriteByte(p.ntLatch)
	w.WriteByte(p.atLatch)
	w.WriteByte(p.ptLoLatch)
	w.WriteByte(p.ptHiLatch)
	w.WriteVarUint(uint64(p.bgPatternLo))
	w.WriteVarUint(uint64(p.bgPatternHi))
	w.WriteVarUint(uint64(p.bgAttrLo))
	w.WriteVarUint(uint64(p.bgAttrHi))

	w.WriteVarUint(p.cycleCount)

	for _, pixel := range p.frameBuffer {
		w.WriteVarUint(uint64(pixel))
	}
}

// Load restores a PPU previously captured with Save. bus must be reattached
// by the caller (New's constructor argument); frameCompleteCallback is not
// part of the saved state and is left untouched.
func (p *PPU) Load(r *binio.Reader) {
	p.ppuCtrl = r.ReadByte()
	p.ppuMask = r.ReadByte()
	p.ppuStatus = r.ReadByte()
	p.oamAddr = r.ReadByte()

	p.v = uint16(r.ReadVarUint())
	p.t = uint16(r.ReadVarUint())
	p.x = r.ReadByte()
	p.w = r.ReadBool()

	copy(p.palette[:], r.ReadBytes())
	p.readBuffer = r.ReadByte()

	p.scanline = int(r.ReadVarInt())
	p.cycle = int(r.ReadVarUint())
	p.frame = r.ReadVarUint()
	p.oddFrame = r.ReadBool()

	copy(p.oam[:], r.ReadBytes())
	copy(p.secondaryOAM[:], r.ReadBytes())
	copy(p.spriteIndexes[:], r.ReadBytes())
	p.spriteCount = r.ReadByte()
	p.sprite0OnScanline = r.ReadBool()
	p.sprite0Hit = r.ReadBool()
	p.spriteOverflow = r.ReadBool()
	p.lastEvalScanline = int(r.ReadVarInt())

	p.backgroundEnabled = r.ReadBool()
	p.spritesEnabled = r.ReadBool()
	p.renderingEnabled = r.ReadBool()

	p.ntLatch = r.ReadByte()
	p.atLatch = r.ReadByte()
	p.ptLoLatch = r.ReadByte()
	p.ptHiLatch = r.ReadByte()
	p.bgPatternLo = uint16(r.ReadVarUint())
	p.bgPatternHi = uint16(r.ReadVarUint())
	p.bgAttrLo = uint16(r.ReadVarUint())
	p.bgAttrHi = uint16(r.ReadVarUint())

	p.cycleCount = r.ReadVarUint()

	for i := range p.frameBuffer {
		p.frameBuffer[i] = uint32(r.ReadVarUint())
	}
}
