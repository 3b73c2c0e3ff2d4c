package cartridge

import (
	"nesdis/internal/addr"
	"nesdis/internal/binio"
)

// uxromMapper implements mapper 2: an 8-bit PRG bank latch selects the bank
// visible at $8000-$BFFF; $C000-$FFFF is permanently wired to the last PRG
// bank. CHR is always RAM (no CHR-ROM banking).
type uxromMapper struct {
	*baseMapper
	prgBank uint8
}

func newUxROM(c *Cartridge) *uxromMapper {
	return &uxromMapper{baseMapper: &baseMapper{cart: c}}
}

func (m *uxromMapper) lastBank() int { return int(m.cart.Header.PRGROMBanks) - 1 }

func (m *uxromMapper) RomBank(address uint16) int {
	if address&0x4000 != 0 {
		return m.lastBank()
	}
	return int(m.prgBank)
}

func (m *uxromMapper) ReadPRG(address uint16) uint8 {
	if address < 0x8000 {
		return m.readSRAM(address)
	}
	return m.cart.PRG[m.RomBank(address)*prgBankSize+int(address&0x3FFF)]
}

func (m *uxromMapper) WritePRG(address uint16, value uint8) {
	if address < 0x8000 {
		m.writeSRAM(address, value)
		return
	}
	bank := value
	if int(bank) >= int(m.cart.Header.PRGROMBanks) {
		bank = m.cart.Header.PRGROMBanks - 1
	}
	m.prgBank = bank
}

func (m *uxromMapper) ReadCHR(address uint16) uint8         { return m.readCHRRAM(address) }
func (m *uxromMapper) WriteCHR(address uint16, value uint8) { m.writeCHRRAM(address, value) }

func (m *uxromMapper) Mirroring() addr.Mirroring { return m.cart.Header.Mirroring }

func (m *uxromMapper) Save(w *binio.Writer) {
	m.saveSRAM(w)
	w.WriteByte(m.prgBank)
}

func (m *uxromMapper) Load(r *binio.Reader) {
	m.loadSRAM(r)
	m.prgBank = r.ReadByte()
}
