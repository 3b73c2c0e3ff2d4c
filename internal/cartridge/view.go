package cartridge

import "nesdis/internal/addr"

// CartridgeView pairs a loaded Cartridge with its live Mapper, exposing the
// CPU ($6000-$FFFF) and PPU ($0000-$1FFF CHR) halves of the cartridge's bus
// presence plus the two bits of per-cartridge state a caller needs outside
// of plain byte access: current nametable mirroring and which ROM bank sits
// behind a given CPU address (for the disassembler's banked addressing).
type CartridgeView struct {
	Cart   *Cartridge
	Mapper Mapper
}

// NewCartridgeView builds a view with a freshly reset mapper over cart.
func NewCartridgeView(cart *Cartridge) *CartridgeView {
	return &CartridgeView{Cart: cart, Mapper: cart.NewMapper()}
}

func (v *CartridgeView) Peek(address uint16) uint8         { return v.Mapper.ReadPRG(address) }
func (v *CartridgeView) Read(address uint16) uint8         { return v.Mapper.ReadPRG(address) }
func (v *CartridgeView) Write(address uint16, value uint8) { v.Mapper.WritePRG(address, value) }

func (v *CartridgeView) PeekPPU(address uint16) uint8         { return v.Mapper.ReadCHR(address) }
func (v *CartridgeView) ReadPPU(address uint16) uint8         { return v.Mapper.ReadCHR(address) }
func (v *CartridgeView) WritePPU(address uint16, value uint8) { v.Mapper.WriteCHR(address, value) }

func (v *CartridgeView) NametableMirroring() addr.Mirroring { return v.Mapper.Mirroring() }
func (v *CartridgeView) RomBank(address uint16) int         { return v.Mapper.RomBank(address) }

// RegisterView is the narrow interface SystemView expects of its PPU and
// APU/IO register sub-views -- implemented elsewhere (internal/ppu,
// internal/apuio) so this package has no dependency on either.
type RegisterView interface {
	Peek(address uint16) uint8
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// SystemView composes the whole 64KiB CPU address space plus the 16KiB PPU
// address space: internal RAM (mirrored every $0800), PPU
// registers (mirrored every 8 bytes, delegated to PPURegs), APU/IO registers
// ($4000-$5FFF, no mirroring, delegated to APUIO), and the cartridge for
// everything from $6000 up. VRAM holds the 2KiB of on-console nametable RAM
// (4KiB when four-screen mirroring needs the cartridge's extra VRAM, which
// none of the three supported mappers provides a separate source for).
type SystemView struct {
	RAM       [0x800]uint8
	VRAM      [0x800]uint8
	PPURegs   RegisterView
	APUIO     RegisterView
	Cartridge *CartridgeView
}

func NewSystemView(ppuRegs, apuio RegisterView, cart *CartridgeView) *SystemView {
	return &SystemView{PPURegs: ppuRegs, APUIO: apuio, Cartridge: cart}
}

func (s *SystemView) Peek(address uint16) uint8 {
	switch {
	case address < 0x2000:
		return s.RAM[address&0x7FF]
	case address < 0x4000:
		return s.PPURegs.Peek(address & 0x1FFF)
	case address < 0x6000:
		return s.APUIO.Peek(address)
	default:
		return s.Cartridge.Peek(address)
	}
}

func (s *SystemView) Read(address uint16) uint8 {
	switch {
	case address < 0x2000:
		return s.RAM[address&0x7FF]
	case address < 0x4000:
		return s.PPURegs.Read(address & 0x1FFF)
	case address < 0x6000:
		return s.APUIO.Read(address)
	default:
		return s.Cartridge.Read(address)
	}
}

func (s *SystemView) Write(address uint16, value uint8) {
	switch {
	case address < 0x2000:
		s.RAM[address&0x7FF] = value
	case address < 0x4000:
		s.PPURegs.Write(address&0x1FFF, value)
	case address < 0x6000:
		s.APUIO.Write(address, value)
	default:
		s.Cartridge.Write(address, value)
	}
}

// nametableOffset resolves a PPU-bus nametable address ($2000-$3EFF range,
// pre-masked to 16 bits so callers can pass the raw address) down to an
// offset into the 2KiB physical VRAM array, per mirroring mode. The
// horizontal case's bit-shuffle is intentional, not a typo: it folds bit
// 0x800 down onto bit 0x400 while always clearing 0xC00.
func nametableOffset(mirror addr.Mirroring, address uint16) uint16 {
	switch mirror {
	case addr.MirrorVertical:
		address &^= 0x800
	case addr.MirrorHorizontal:
		address = ((address & 0x800) >> 1) | (address &^ 0xC00)
	case addr.MirrorSingleScreen0:
		address &^= 0xC00
	case addr.MirrorSingleScreen1:
		address = (address &^ 0xC00) | 0x400
	}
	return address & 0x7FF
}

func (s *SystemView) PeekPPU(address uint16) uint8 {
	switch {
	case address < 0x2000:
		return s.Cartridge.PeekPPU(address)
	case address < 0x4000:
		return s.VRAM[nametableOffset(s.Cartridge.NametableMirroring(), address)]
	default:
		return 0
	}
}

func (s *SystemView) ReadPPU(address uint16) uint8 {
	switch {
	case address < 0x2000:
		return s.Cartridge.ReadPPU(address)
	case address < 0x4000:
		return s.VRAM[nametableOffset(s.Cartridge.NametableMirroring(), address)]
	default:
		return 0
	}
}

func (s *SystemView) WritePPU(address uint16, value uint8) {
	switch {
	case address < 0x2000:
		s.Cartridge.WritePPU(address, value)
	case address < 0x4000:
		s.VRAM[nametableOffset(s.Cartridge.NametableMirroring(), address)] = value
	}
}
