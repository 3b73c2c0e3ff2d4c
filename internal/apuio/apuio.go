// Package apuio implements the $4000-$5FFF register surface of the NES bus:
// the two joypad ports and the APU's register latches. Audio synthesis
// itself is an explicit Non-goal, so the pulse/triangle/noise/DMC registers
// here only latch the byte a real cartridge/program would expect to read
// back or rely on for bus behavior (open-bus-ish default reads, $4015
// status bits) rather than driving any channel's waveform generator.
package apuio

// Button is one of the eight NES controller buttons, ordered to match the
// shift register's read order (A first, Right last).
type Button uint8

const (
	ButtonA Button = 1 << iota
	ButtonB
	ButtonSelect
	ButtonStart
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
)

// Joypad is one NES controller port's strobe/shift-register protocol.
type Joypad struct {
	buttons       uint8
	shiftRegister uint8
	strobe        bool
}

// SetButton sets or clears one button's live state. Live state snapshots
// into the shift register on strobe writes, and immediately here while
// strobe is held high.
func (j *Joypad) SetButton(b Button, pressed bool) {
	if pressed {
		j.buttons |= uint8(b)
	} else {
		j.buttons &^= uint8(b)
	}
	if j.strobe {
		j.shiftRegister = j.buttons
	}
}

// Buttons returns the raw live button bitmask.
func (j *Joypad) Buttons() uint8 { return j.buttons }

func (j *Joypad) writeStrobe(value uint8) {
	wasStrobe := j.strobe
	j.strobe = value&1 != 0
	if j.strobe || wasStrobe {
		j.shiftRegister = j.buttons
	}
}

// read pops the next bit off the shift register. While strobe is held high
// the register is continuously reloaded, so every read returns button A's
// state regardless of how many reads have happened (real 2A03 behavior).
func (j *Joypad) read() uint8 {
	if j.strobe {
		return j.buttons & 1
	}
	bit := j.shiftRegister & 1
	j.shiftRegister = j.shiftRegister>>1 | 0x80
	return bit
}

func (j *Joypad) reset() {
	j.buttons = 0
	j.shiftRegister = 0
	j.strobe = false
}

// APUIO composes the two joypad ports and the APU's register latches behind
// the single RegisterView cartridge.SystemView expects for $4000-$5FFF.
type APUIO struct {
	Joypad1, Joypad2 Joypad

	pulse1, pulse2 [4]uint8
	triangle       [4]uint8
	noise          [4]uint8
	dmc            [4]uint8
	channelEnable  uint8
	frameCounter   uint8

	oamDMAPage    uint8
	oamDMAPending bool
}

// New returns a fresh register bank with both joypads idle.
func New() *APUIO {
	return &APUIO{}
}

// Reset restores power-on state.
func (a *APUIO) Reset() {
	a.Joypad1.reset()
	a.Joypad2.reset()
	a.pulse1, a.pulse2, a.triangle, a.noise, a.dmc = [4]uint8{}, [4]uint8{}, [4]uint8{}, [4]uint8{}, [4]uint8{}
	a.channelEnable = 0
	a.frameCounter = 0
	a.oamDMAPending = false
}

// Peek is the side-effect-free read the disassembler/breakpoint predicates
// use: joypad reads never consume a shift-register bit, $4015 never clears
// a latched IRQ flag (there isn't one modeled, since synthesis is out of
// scope), everything else returns the last latched write.
func (a *APUIO) Peek(address uint16) uint8 {
	switch address {
	case 0x4016:
		return a.Joypad1.buttons & 1
	case 0x4017:
		return a.Joypad2.buttons&1 | 0x40
	case 0x4015:
		return a.channelEnable
	default:
		return a.latched(address)
	}
}

// Read performs a real, side-effecting read: joypad reads consume one bit
// of shift-register state; everything else is write-only on real hardware
// and reads back as the register file's last-latched byte, which is the
// simplification this module settles for given synthesis is a Non-goal.
func (a *APUIO) Read(address uint16) uint8 {
	switch address {
	case 0x4016:
		return a.Joypad1.read()
	case 0x4017:
		return a.Joypad2.read() | 0x40
	case 0x4015:
		return a.channelEnable
	default:
		return a.latched(address)
	}
}

// Write stores into the addressed register, specially handling joypad
// strobe ($4016, which per hardware also strobes $4017) and OAMDMA's
// trigger ($4014, latched here for the instance loop's execution scheduler
// to notice and service as a 256-iteration DMA burst).
func (a *APUIO) Write(address uint16, value uint8) {
	switch address {
	case 0x4014:
		a.oamDMAPage = value
		a.oamDMAPending = true
	case 0x4015:
		a.channelEnable = value
	case 0x4016:
		a.Joypad1.writeStrobe(value)
		a.Joypad2.writeStrobe(value)
	case 0x4017:
		a.frameCounter = value
	default:
		a.latch(address, value)
	}
}

// latch stores value into the register file backing the pulse/triangle/
// noise/DMC address ranges, for round-trip Peek/Read even though nothing
// consumes it for sound generation.
func (a *APUIO) latch(address uint16, value uint8) {
	switch {
	case address >= 0x4000 && address <= 0x4003:
		a.pulse1[address-0x4000] = value
	case address >= 0x4004 && address <= 0x4007:
		a.pulse2[address-0x4004] = value
	case address >= 0x4008 && address <= 0x400B:
		a.triangle[address-0x4008] = value
	case address >= 0x400C && address <= 0x400F:
		a.noise[address-0x400C] = value
	case address >= 0x4010 && address <= 0x4013:
		a.dmc[address-0x4010] = value
	}
}

func (a *APUIO) latched(address uint16) uint8 {
	switch {
	case address >= 0x4000 && address <= 0x4003:
		return a.pulse1[address-0x4000]
	case address >= 0x4004 && address <= 0x4007:
		return a.pulse2[address-0x4004]
	case address >= 0x4008 && address <= 0x400B:
		return a.triangle[address-0x4008]
	case address >= 0x400C && address <= 0x400F:
		return a.noise[address-0x400C]
	case address >= 0x4010 && address <= 0x4013:
		return a.dmc[address-0x4010]
	case address == 0x4017:
		return a.frameCounter
	default:
		return 0
	}
}

// TakeOAMDMA reports a pending OAMDMA request (the source page shifted
// left 8) and clears the pending flag. The instance loop polls
// this once per CPU cycle the same way it polls ppu.NMILine.
func (a *APUIO) TakeOAMDMA() (source uint16, ok bool) {
	if !a.oamDMAPending {
		return 0, false
	}
	a.oamDMAPending = false
	return uint16(a.oamDMAPage) << 8, true
}
