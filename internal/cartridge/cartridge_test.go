package cartridge

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nesdis/internal/addr"
	"nesdis/internal/binio"
)

func buildINES(mapper int, prgBanks, chrBanks int, flags6extra byte) []byte {
	header := make([]byte, 16)
	copy(header[0:4], "NES\x1A")
	header[4] = byte(prgBanks)
	header[5] = byte(chrBanks)
	header[6] = byte((mapper&0x0F)<<4) | flags6extra
	header[7] = byte(mapper & 0xF0)
	buf := append([]byte{}, header...)
	buf = append(buf, make([]byte, prgBanks*prgBankSize)...)
	buf = append(buf, make([]byte, chrBanks*chrBankSize)...)
	return buf
}

func TestLoadRejectsMissingMagic(t *testing.T) {
	_, err := Load(bytes.NewReader(make([]byte, 16)))
	assert.Error(t, err)
}

func TestLoadParsesNROMHeader(t *testing.T) {
	data := buildINES(0, 2, 1, 0x01) // vertical mirroring
	cart, err := Load(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, addr.MapperNROM, cart.Header.Mapper)
	assert.Equal(t, addr.MirrorVertical, cart.Header.Mirroring)
	assert.Len(t, cart.PRG, 2*prgBankSize)
	assert.Len(t, cart.CHR, chrBankSize)
	assert.False(t, cart.hasCHRRAM)
}

func TestLoadAllocatesCHRRAMWhenNoCHRBanks(t *testing.T) {
	data := buildINES(0, 1, 0, 0)
	cart, err := Load(bytes.NewReader(data))
	require.NoError(t, err)
	assert.True(t, cart.hasCHRRAM)
	assert.Len(t, cart.CHR, chrBankSize)
}

func TestNROMMirrorsSingleBankAcrossBothHalves(t *testing.T) {
	data := buildINES(0, 1, 1, 0)
	cart, err := Load(bytes.NewReader(data))
	require.NoError(t, err)
	cart.PRG[0x10] = 0x42
	m := cart.NewMapper()
	assert.Equal(t, uint8(0x42), m.ReadPRG(0x8010))
	assert.Equal(t, uint8(0x42), m.ReadPRG(0xC010))
}

func TestNROMTwoBanksAreDistinct(t *testing.T) {
	data := buildINES(0, 2, 1, 0)
	cart, err := Load(bytes.NewReader(data))
	require.NoError(t, err)
	cart.PRG[0x10] = 0x11
	cart.PRG[prgBankSize+0x10] = 0x22
	m := cart.NewMapper()
	assert.Equal(t, uint8(0x11), m.ReadPRG(0x8010))
	assert.Equal(t, uint8(0x22), m.ReadPRG(0xC010))
}

func TestUxROMSwitchesLowBankAndFixesHighBank(t *testing.T) {
	data := buildINES(2, 4, 0, 0)
	cart, err := Load(bytes.NewReader(data))
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		cart.PRG[i*prgBankSize] = byte(0x10 + i)
	}
	m := cart.NewMapper()
	assert.Equal(t, uint8(0x13), m.ReadPRG(0xC000), "high bank fixed to last bank")

	m.WritePRG(0x8000, 2)
	assert.Equal(t, uint8(0x12), m.ReadPRG(0x8000))
	assert.Equal(t, uint8(0x13), m.ReadPRG(0xC000), "high bank stays fixed after switch")
}

func mmc1Write(m Mapper, address uint16, value uint8) {
	for i := 0; i < 5; i++ {
		m.WritePRG(address, (value>>uint(i))&1)
	}
}

func TestMMC1ControlRegisterSelectsMirroring(t *testing.T) {
	data := buildINES(1, 16, 0, 0)
	cart, err := Load(bytes.NewReader(data))
	require.NoError(t, err)
	m := cart.NewMapper()

	mmc1Write(m, 0x8000, 0x02) // mirroring bits = 10 -> vertical
	assert.Equal(t, addr.MirrorVertical, m.Mirroring())

	mmc1Write(m, 0x8000, 0x03) // mirroring bits = 11 -> horizontal
	assert.Equal(t, addr.MirrorHorizontal, m.Mirroring())
}

func TestMMC1ResetBitForcesBankMode3(t *testing.T) {
	data := buildINES(1, 16, 0, 0)
	cart, err := Load(bytes.NewReader(data))
	require.NoError(t, err)
	m := cart.NewMapper()
	m.WritePRG(0x8000, 0x80)
	mmc1, ok := m.(*mmc1Mapper)
	require.True(t, ok)
	assert.EqualValues(t, 3, mmc1.prgRomBankMode)
	assert.EqualValues(t, 0, mmc1.shiftRegisterCount)
}

func TestMMC1PRGBankSwitchInMode3(t *testing.T) {
	data := buildINES(1, 16, 0, 0)
	cart, err := Load(bytes.NewReader(data))
	require.NoError(t, err)
	for i := 0; i < 16; i++ {
		cart.PRG[i*prgBankSize] = byte(i)
	}
	m := cart.NewMapper()
	// default mode is 3: $C000 fixed to reset_vector_bank (15 here), $8000 swappable
	mmc1Write(m, 0xE000, 5)
	assert.Equal(t, uint8(5), m.ReadPRG(0x8000))
	assert.Equal(t, uint8(15), m.ReadPRG(0xC000))
}

func TestMapperSaveLoadRoundTrip(t *testing.T) {
	data := buildINES(2, 4, 0, 0)
	cart, err := Load(bytes.NewReader(data))
	require.NoError(t, err)
	m := cart.NewMapper()
	m.WritePRG(0x8000, 3)

	var buf bytes.Buffer
	w := binio.NewWriter(&buf)
	m.Save(w)
	require.NoError(t, w.Flush())

	m2 := cart.NewMapper()
	r := binio.NewReader(&buf)
	m2.Load(r)
	require.NoError(t, r.Err())
	assert.Equal(t, m.ReadPRG(0x8000), m2.ReadPRG(0x8000))
}

type fakeRegisterView struct {
	last uint16
}

func (f *fakeRegisterView) Peek(address uint16) uint8         { return uint8(address) }
func (f *fakeRegisterView) Read(address uint16) uint8         { f.last = address; return uint8(address) }
func (f *fakeRegisterView) Write(address uint16, value uint8) { f.last = address }

func TestSystemViewMirrorsRAMAndRoutesRanges(t *testing.T) {
	data := buildINES(0, 1, 1, 0)
	cart, err := Load(bytes.NewReader(data))
	require.NoError(t, err)
	ppu := &fakeRegisterView{}
	apu := &fakeRegisterView{}
	sv := NewSystemView(ppu, apu, NewCartridgeView(cart))

	sv.Write(0x0000, 0x99)
	assert.Equal(t, uint8(0x99), sv.Read(0x0800), "RAM mirrors every 0x800")

	sv.Read(0x2005)
	assert.Equal(t, uint16(0x0005), ppu.last, "PPU regs mirror every 8 bytes")

	sv.Read(0x4015)
	assert.Equal(t, uint16(0x4015), apu.last, "APU/IO is not mirrored")
}

func TestNametableOffsetVerticalAndHorizontal(t *testing.T) {
	assert.Equal(t, uint16(0x000), nametableOffset(addr.MirrorVertical, 0x2000))
	assert.Equal(t, uint16(0x000), nametableOffset(addr.MirrorVertical, 0x2800))
	assert.Equal(t, uint16(0x400), nametableOffset(addr.MirrorVertical, 0x2400))

	assert.Equal(t, uint16(0x000), nametableOffset(addr.MirrorHorizontal, 0x2000))
	assert.Equal(t, uint16(0x000), nametableOffset(addr.MirrorHorizontal, 0x2400))
	assert.Equal(t, uint16(0x400), nametableOffset(addr.MirrorHorizontal, 0x2800))
	assert.Equal(t, uint16(0x400), nametableOffset(addr.MirrorHorizontal, 0x2C00))
}
