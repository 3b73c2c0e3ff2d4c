package apuio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoypadStrobeHighAlwaysReturnsButtonA(t *testing.T) {
	a := New()
	a.Joypad1.SetButton(ButtonA, true)
	a.Joypad1.SetButton(ButtonB, true)
	a.Write(0x4016, 1) // strobe high

	assert.Equal(t, uint8(1), a.Read(0x4016)&1)
	assert.Equal(t, uint8(1), a.Read(0x4016)&1, "strobe high reloads every read")
}

func TestJoypadShiftsOutButtonsInOrder(t *testing.T) {
	a := New()
	a.Joypad1.SetButton(ButtonA, true)
	a.Joypad1.SetButton(ButtonSelect, true)
	a.Write(0x4016, 1)
	a.Write(0x4016, 0) // strobe low: latch snapshot, begin shifting

	var bits []uint8
	for i := 0; i < 8; i++ {
		bits = append(bits, a.Read(0x4016)&1)
	}
	assert.Equal(t, uint8(1), bits[0], "A first")
	assert.Equal(t, uint8(0), bits[1], "B not pressed")
	assert.Equal(t, uint8(1), bits[2], "Select pressed")
}

func TestJoypad2ReadHasBit6Set(t *testing.T) {
	a := New()
	result := a.Read(0x4017)
	assert.NotZero(t, result&0x40)
}

func TestOAMDMAWriteLatchesPendingRequest(t *testing.T) {
	a := New()
	_, ok := a.TakeOAMDMA()
	assert.False(t, ok)

	a.Write(0x4014, 0x02)
	source, ok := a.TakeOAMDMA()
	assert.True(t, ok)
	assert.Equal(t, uint16(0x0200), source)

	_, ok = a.TakeOAMDMA()
	assert.False(t, ok, "pending flag clears after being taken")
}

func TestChannelEnableRoundTrips(t *testing.T) {
	a := New()
	a.Write(0x4015, 0x1F)
	assert.Equal(t, uint8(0x1F), a.Read(0x4015))
	assert.Equal(t, uint8(0x1F), a.Peek(0x4015))
}

func TestRegisterLatchRoundTrips(t *testing.T) {
	a := New()
	a.Write(0x4000, 0xAA)
	a.Write(0x4005, 0xBB)
	a.Write(0x400D, 0xCC)
	a.Write(0x4012, 0xDD)
	assert.Equal(t, uint8(0xAA), a.Peek(0x4000))
	assert.Equal(t, uint8(0xBB), a.Peek(0x4005))
	assert.Equal(t, uint8(0xCC), a.Peek(0x400D))
	assert.Equal(t, uint8(0xDD), a.Peek(0x4012))
}

func TestResetClearsJoypadsAndPendingDMA(t *testing.T) {
	a := New()
	a.Joypad1.SetButton(ButtonStart, true)
	a.Write(0x4014, 0x07)
	a.Reset()
	assert.Equal(t, uint8(0), a.Joypad1.Buttons())
	_, ok := a.TakeOAMDMA()
	assert.False(t, ok)
}
