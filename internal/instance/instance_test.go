package instance

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nesdis/internal/binio"
	"nesdis/internal/cartridge"
	"nesdis/internal/system"
)

const prgBankSize = 16 * 1024

func buildINES(prgBanks, chrBanks int) []byte {
	header := make([]byte, 16)
	copy(header[0:4], "NES\x1A")
	header[4] = byte(prgBanks)
	header[5] = byte(chrBanks)
	buf := append([]byte{}, header...)
	buf = append(buf, make([]byte, prgBanks*prgBankSize)...)
	buf = append(buf, make([]byte, chrBanks*8*1024)...)
	return buf
}

// newTestInstance builds a single-bank (PRG mapped at $C000-$FFFF) NROM
// instance with program placed at $C000 and the reset vector pointed at it.
func newTestInstance(t *testing.T, program []uint8) *Instance {
	t.Helper()
	data := buildINES(1, 1)
	prgStart := 16
	copy(data[prgStart:], program)
	data[prgStart+0x3FFC] = 0x00 // reset vector low -> $C000
	data[prgStart+0x3FFD] = 0xC0 // reset vector high

	cart, err := cartridge.Load(bytes.NewReader(data))
	require.NoError(t, err)
	sys := system.New(cart)
	in := New(sys, zap.NewNop())
	in.Reset()
	// Reset() only starts the reset microcode stream; drain it the same way
	// internal/cpu's own tests do, via direct CPU.Step (no PPU/phase
	// interleave needed yet -- nothing else is observing bus traffic during
	// the 7-cycle reset sequence).
	for !in.CPU.AtInstructionBoundary() {
		in.CPU.Step()
	}
	return in
}

func TestNewInstanceStartsInInit(t *testing.T) {
	data := buildINES(1, 1)
	cart, err := cartridge.Load(bytes.NewReader(data))
	require.NoError(t, err)
	sys := system.New(cart)
	in := New(sys, nil)
	assert.Equal(t, StateInit, in.State())
}

func TestResetTransitionsToPausedAndLoadsVector(t *testing.T) {
	in := newTestInstance(t, nil)
	assert.Equal(t, StatePaused, in.State())
	assert.Equal(t, uint16(0xC000), in.CPU.PC)
}

func TestRequestRunRefusedAfterCrash(t *testing.T) {
	in := newTestInstance(t, nil)
	in.state.Store(int32(StateCrashed))
	in.RequestRun()
	assert.Equal(t, StateCrashed, in.State())
}

func TestRequestPauseOnlyAppliesWhileRunning(t *testing.T) {
	in := newTestInstance(t, nil)
	in.RequestPause() // already Paused, no-op
	assert.Equal(t, StatePaused, in.State())

	in.RequestRun()
	assert.Equal(t, StateRunning, in.State())
	in.RequestPause()
	assert.Equal(t, StatePaused, in.State())
}

func TestStepCycleReturnsToPaused(t *testing.T) {
	in := newTestInstance(t, []uint8{0xEA, 0xEA, 0xEA}) // NOP NOP NOP
	in.StepCycle()
	assert.Equal(t, StatePaused, in.State())
	assert.False(t, in.running.Load())
}

func TestStepInstructionAdvancesExactlyOneInstruction(t *testing.T) {
	in := newTestInstance(t, []uint8{0xEA, 0xEA, 0xEA}) // NOP NOP NOP
	startPC := in.CPU.PC
	in.StepInstruction()
	assert.Equal(t, StatePaused, in.State())
	assert.True(t, in.CPU.AtInstructionBoundary())
	assert.Equal(t, startPC+1, in.CPU.PC)
}

func TestRunStopsOnCrash(t *testing.T) {
	in := newTestInstance(t, []uint8{0x02}) // illegal opcode
	in.RequestRun()
	in.Run()
	assert.Equal(t, StateCrashed, in.State())
	assert.True(t, in.CPU.Crashed())
}

func TestOAMDMATransfersSourcePageIntoOAM(t *testing.T) {
	in := newTestInstance(t, nil)
	for i := 0; i < 256; i++ {
		in.View.RAM[0x200+i] = uint8(i ^ 0x55)
	}
	in.APUIO.Write(0x4014, 0x02) // page $02 -> source $0200

	// Halt cycle, then 256 read/write pairs: 1 + 256*2 = 513 CPU cycles.
	for i := 0; i < 513; i++ {
		in.stepCPUCycle()
	}

	assert.False(t, in.dma.active)
	for i := 0; i < 256; i++ {
		in.PPU.Write(3, uint8(i)) // OAMADDR
		assert.Equal(t, uint8(i^0x55), in.PPU.Peek(4), "oam byte %d", i)
	}
}

func TestOAMDMAHaltCycleDoesNotDropACPUStep(t *testing.T) {
	in := newTestInstance(t, []uint8{0xEA, 0xEA, 0xEA, 0xEA}) // NOP NOP NOP NOP
	startPC := in.CPU.PC
	in.APUIO.Write(0x4014, 0x02)

	in.stepCPUCycle() // consumes the halt cycle, no NOP executed
	assert.Equal(t, startPC, in.CPU.PC)

	// Drain the remaining 512 DMA cycles; PC must still not have moved.
	for i := 0; i < 512; i++ {
		in.stepCPUCycle()
	}
	assert.Equal(t, startPC, in.CPU.PC)

	in.stepCPUCycle() // first real CPU step after DMA completes
	assert.Equal(t, startPC+1, in.CPU.PC)
}

func TestCheckAccessSkipsQuickBitmapWhenNoBreakpoints(t *testing.T) {
	in := newTestInstance(t, nil)
	assert.Nil(t, in.checkAccess(0x10, AccessWrite))
}

func TestAddBreakpointFiresOnMatchingWrite(t *testing.T) {
	// LDA #$42 ; STA $0010
	in := newTestInstance(t, []uint8{0xA9, 0x42, 0x85, 0x10})
	bp, err := in.AddBreakpoint(0x0010, false, 0, false, true, false, "")
	require.NoError(t, err)
	assert.True(t, in.breakpoints.quickTest(0x0010))

	// LDA #$42 is 2 cycles, STA $10 is 3 cycles -- run exactly that many to
	// land just past the STA write that should trip the breakpoint.
	for i := 0; i < 5; i++ {
		in.stepCPUCycle()
	}

	assert.Equal(t, StatePaused, in.State())
	events := in.Events()
	select {
	case ev := <-events:
		assert.Equal(t, EventBreakpointHit, ev.Kind)
		assert.Equal(t, bp.ID, ev.Breakpoint.ID)
	default:
		t.Fatal("expected a breakpoint_hit event")
	}
}

func TestConditionalBreakpointGatesOnRegisterValue(t *testing.T) {
	// LDA #$41 ; STA $0010 ; LDA #$42 ; STA $0010
	in := newTestInstance(t, []uint8{0xA9, 0x41, 0x85, 0x10, 0xA9, 0x42, 0x85, 0x10})
	bp, err := in.AddBreakpoint(0x0010, false, 0, false, true, false, "a == $42")
	require.NoError(t, err)

	// First store happens with A == $41: the condition gates the hit.
	for i := 0; i < 5; i++ {
		in.stepCPUCycle()
	}
	select {
	case <-in.Events():
		t.Fatal("breakpoint fired while its condition was false")
	default:
	}

	// Second store with A == $42 trips it.
	for i := 0; i < 5; i++ {
		in.stepCPUCycle()
	}
	select {
	case ev := <-in.Events():
		assert.Equal(t, EventBreakpointHit, ev.Kind)
		assert.Equal(t, bp.ID, ev.Breakpoint.ID)
	default:
		t.Fatal("expected a breakpoint_hit event once the condition held")
	}
	assert.Equal(t, StatePaused, in.State())
}

func TestExecuteBreakpointIgnoresDataReadOfSameAddress(t *testing.T) {
	// LDA $C003 reads $C003 as data; the byte there (NOP) is then executed
	// when the program falls through to it. An execute-only breakpoint must
	// let the data read pass and fire on the opcode fetch.
	in := newTestInstance(t, []uint8{0xAD, 0x03, 0xC0, 0xEA})
	bp, err := in.AddBreakpoint(0xC003, false, 0, false, false, true, "")
	require.NoError(t, err)

	// Run the LDA to completion, including its data read of $C003.
	for !in.CPU.AtInstructionBoundary() || in.CPU.PC == 0xC000 {
		in.stepCPUCycle()
	}
	select {
	case <-in.Events():
		t.Fatal("execute breakpoint fired on a data read")
	default:
	}

	// The next cycle fetches the NOP opcode at $C003.
	in.stepCPUCycle()
	select {
	case ev := <-in.Events():
		assert.Equal(t, EventBreakpointHit, ev.Kind)
		assert.Equal(t, bp.ID, ev.Breakpoint.ID)
	default:
		t.Fatal("expected the opcode fetch to trip the execute breakpoint")
	}
}

func TestReadBreakpointIgnoresOpcodeFetch(t *testing.T) {
	// The inverse of the execute case: a read-only breakpoint at an address
	// that is only ever fetched as an opcode must stay silent.
	in := newTestInstance(t, []uint8{0xEA, 0xEA}) // NOP NOP
	_, err := in.AddBreakpoint(0xC000, false, 0, true, false, false, "")
	require.NoError(t, err)

	in.stepCPUCycle() // fetches the NOP at $C000
	select {
	case <-in.Events():
		t.Fatal("read breakpoint fired on an opcode fetch")
	default:
	}
}

func TestRemoveBreakpointClearsQuickBit(t *testing.T) {
	in := newTestInstance(t, nil)
	bp, err := in.AddBreakpoint(0x20, false, 0, true, false, false, "")
	require.NoError(t, err)
	assert.True(t, in.breakpoints.quickTest(0x20))
	in.RemoveBreakpoint(bp.ID)
	assert.False(t, in.breakpoints.quickTest(0x20))
}

func TestFixupConditionBindsStateNames(t *testing.T) {
	in := newTestInstance(t, nil)
	cond, err := in.FixupCondition("a == 5")
	require.NoError(t, err)
	in.CPU.A = 5
	assert.True(t, in.evalCondition(cond))
	in.CPU.A = 6
	assert.False(t, in.evalCondition(cond))
}

func TestAddBreakpointRejectsUnparsableCondition(t *testing.T) {
	in := newTestInstance(t, nil)
	_, err := in.AddBreakpoint(0x10, false, 0, false, true, false, "((")
	assert.Error(t, err)
}

func TestSaveStateRoundTrip(t *testing.T) {
	in := newTestInstance(t, []uint8{0xEA, 0xEA})
	in.CPU.A = 0x42
	in.View.RAM[0x10] = 0x99

	info := in.CaptureSaveState("checkpoint")
	assert.Equal(t, "checkpoint", info.Name)
	assert.Same(t, info, in.CurrentSaveState())

	in.CPU.A = 0x00
	in.View.RAM[0x10] = 0x00

	require.NoError(t, in.RestoreSaveState(info))
	assert.Equal(t, uint8(0x42), in.CPU.A)
	assert.Equal(t, uint8(0x99), in.View.RAM[0x10])
}

func TestDeleteSaveStateClearsCurrentIfMatched(t *testing.T) {
	in := newTestInstance(t, nil)
	info := in.CaptureSaveState("only")
	in.DeleteSaveState(info.ID)
	assert.Empty(t, in.SaveStates())
	assert.Nil(t, in.CurrentSaveState())
}

func TestInstanceSaveLoadRoundTrip(t *testing.T) {
	in := newTestInstance(t, []uint8{0xEA, 0xEA})
	_, err := in.AddBreakpoint(0x10, false, 0, false, true, false, "a == 1")
	require.NoError(t, err)
	in.CaptureSaveState("first")

	var buf bytes.Buffer
	w := binio.NewWriter(&buf)
	in.Save(w)
	w.Flush()

	loaded := Load(binio.NewReader(&buf), in.sys, zap.NewNop())
	require.Len(t, loaded.Breakpoints(), 1)
	bp := loaded.Breakpoints()[0]
	assert.Equal(t, uint16(0x10), bp.Address)
	assert.Equal(t, "a == 1", bp.ConditionSrc)
	assert.NotNil(t, bp.Condition)

	require.Len(t, loaded.SaveStates(), 1)
	assert.Equal(t, "first", loaded.SaveStates()[0].Name)
	require.NotNil(t, loaded.CurrentSaveState())
	assert.Equal(t, "first", loaded.CurrentSaveState().Name)
}
