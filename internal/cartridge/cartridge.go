// Package cartridge implements iNES ROM loading, the three supported bank
// switching mappers (NROM/MMC1/UxROM), and the memory-view composition
// that turns CPU/PPU addresses into bus accesses.
package cartridge

import (
	"bufio"
	"errors"
	"io"
	"os"

	"nesdis/internal/addr"
	"nesdis/internal/binio"
)

// Header is the parsed iNES file header (bytes 0-15 of the file).
type Header struct {
	PRGROMBanks uint8 // 16KiB units
	CHRROMBanks uint8 // 8KiB units
	Mapper      addr.MapperID
	Mirroring   addr.Mirroring
	HasSRAM     bool
	HasTrainer  bool
}

const (
	prgBankSize = 16 * 1024
	chrBankSize = 8 * 1024
)

// Cartridge holds a loaded ROM's raw PRG/CHR data and header, independent
// of any particular mapper's banking state: the ROM data is immutable once
// loaded, the mapper's registers are the part a save state captures.
type Cartridge struct {
	Header    Header
	PRG       []uint8
	CHR       []uint8 // CHR-RAM when Header.CHRROMBanks == 0
	hasCHRRAM bool
}

// LoadFile reads an iNES ROM image from disk.
func LoadFile(filename string) (*Cartridge, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// ParseHeader decodes the 16-byte iNES header, rejecting a missing magic
// or a zero-sized PRG ROM.
func ParseHeader(raw [16]byte) (Header, error) {
	if string(raw[0:4]) != "NES\x1A" {
		return Header{}, errors.New("cartridge: missing iNES magic")
	}

	h := Header{
		PRGROMBanks: raw[4],
		CHRROMBanks: raw[5],
		Mapper:      addr.MapperID((raw[6]>>4)&0x0F | raw[7]&0xF0),
		HasSRAM:     raw[6]&0x02 != 0,
		HasTrainer:  raw[6]&0x04 != 0,
	}
	switch {
	case raw[6]&0x08 != 0:
		h.Mirroring = addr.MirrorFourScreen
	case raw[6]&0x01 != 0:
		h.Mirroring = addr.MirrorVertical
	default:
		h.Mirroring = addr.MirrorHorizontal
	}
	if h.PRGROMBanks == 0 {
		return Header{}, errors.New("cartridge: PRG ROM size cannot be zero")
	}
	return h, nil
}

// FromParts assembles a Cartridge from an already-parsed header and raw
// bank data. The project-creation wizard uses this after reading banks one
// at a time for progress reporting; Load uses it for whole-stream reads.
// A header with zero CHR banks gets a fresh 8KiB CHR-RAM buffer regardless
// of chr's contents.
func FromParts(h Header, prg, chr []uint8) *Cartridge {
	c := &Cartridge{Header: h, PRG: prg, CHR: chr}
	if h.CHRROMBanks == 0 {
		c.CHR = make([]uint8, chrBankSize)
		c.hasCHRRAM = true
	}
	return c
}

// Load parses an iNES image from r into a Cartridge.
func Load(r io.Reader) (*Cartridge, error) {
	br := bufio.NewReader(r)
	var raw [16]byte
	if _, err := io.ReadFull(br, raw[:]); err != nil {
		return nil, err
	}
	h, err := ParseHeader(raw)
	if err != nil {
		return nil, err
	}

	if h.HasTrainer {
		trainer := make([]byte, 512)
		if _, err := io.ReadFull(br, trainer); err != nil {
			return nil, err
		}
	}

	prg := make([]uint8, int(h.PRGROMBanks)*prgBankSize)
	if _, err := io.ReadFull(br, prg); err != nil {
		return nil, err
	}

	var chr []uint8
	if h.CHRROMBanks > 0 {
		chr = make([]uint8, int(h.CHRROMBanks)*chrBankSize)
		if _, err := io.ReadFull(br, chr); err != nil {
			return nil, err
		}
	}

	return FromParts(h, prg, chr), nil
}

// NewMapper constructs the Mapper implementation appropriate for the
// cartridge's header, falling back to NROM for anything unrecognized.
func (c *Cartridge) NewMapper() Mapper {
	switch c.Header.Mapper {
	case addr.MapperMMC1:
		return newMMC1(c)
	case addr.MapperUxROM:
		return newUxROM(c)
	default:
		return newNROM(c)
	}
}

// Save writes the cartridge's ROM image (not any mapper's live register
// state -- that's Mapper.Save's job) so a project file can be verified
// against the ROM it was built from without re-reading the original file.
func (c *Cartridge) Save(w *binio.Writer) {
	w.WriteByte(c.Header.PRGROMBanks)
	w.WriteByte(c.Header.CHRROMBanks)
	w.WriteVarUint(uint64(c.Header.Mapper))
	w.WriteVarUint(uint64(c.Header.Mirroring))
	w.WriteBool(c.Header.HasSRAM)
	w.WriteBool(c.Header.HasTrainer)
	w.WriteBytes(c.PRG)
	w.WriteBool(c.hasCHRRAM)
	w.WriteBytes(c.CHR)
}

// LoadCartridge is the inverse of Cartridge.Save.
func LoadCartridge(r *binio.Reader) *Cartridge {
	c := &Cartridge{}
	c.Header.PRGROMBanks = r.ReadByte()
	c.Header.CHRROMBanks = r.ReadByte()
	c.Header.Mapper = addr.MapperID(r.ReadVarUint())
	c.Header.Mirroring = addr.Mirroring(r.ReadVarUint())
	c.Header.HasSRAM = r.ReadBool()
	c.Header.HasTrainer = r.ReadBool()
	c.PRG = r.ReadBytes()
	c.hasCHRRAM = r.ReadBool()
	c.CHR = r.ReadBytes()
	return c
}
