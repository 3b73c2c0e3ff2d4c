// Package instance implements the emulation worker: the CPU/PPU/APU_IO
// clock-phase scheduler, OAMDMA, the breakpoint fast path, and save
// states. It is the dynamic half of a loaded cartridge -- internal/system
// owns the static program database an Instance reads but never writes. One
// goroutine owns the bus at a time, the same discipline internal/system's
// disassembly worker follows.
package instance

import (
	"sync/atomic"

	"github.com/davecgh/go-spew/spew"
	"go.uber.org/zap"

	"nesdis/internal/apuio"
	"nesdis/internal/cartridge"
	"nesdis/internal/cpu"
	"nesdis/internal/ppu"
	"nesdis/internal/system"
)

// State is the instance's execution state machine: Init, then Paused and
// Running, with transient StepCycle/StepInstruction and a terminal
// Crashed.
type State int32

const (
	StateInit State = iota
	StatePaused
	StateRunning
	StateStepCycle
	StateStepInstruction
	StateCrashed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StatePaused:
		return "Paused"
	case StateRunning:
		return "Running"
	case StateStepCycle:
		return "StepCycle"
	case StateStepInstruction:
		return "StepInstruction"
	case StateCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

// dma tracks the OAMDMA transfer in progress: one halt cycle,
// then 256 iterations of a two-cycle read/write pair, source page fixed for
// the whole transfer.
type dma struct {
	active  bool
	halted  bool
	source  uint16
	index   int
	readHi  bool // true: this cycle reads; false: this cycle writes the byte just read
	readVal uint8
}

// Instance is one running cartridge: the live CPU/PPU/APU-IO cores, the
// dynamic bus they share, and the breakpoint/save-state bookkeeping a host
// UI drives from a separate goroutine. sys is read-only from Instance's
// point of view -- only System's own methods mutate it.
type Instance struct {
	sys *system.System

	CPU   *cpu.CPU
	PPU   *ppu.PPU
	APUIO *apuio.APUIO
	Cart  *cartridge.CartridgeView
	View  *cartridge.SystemView

	phase int // rotating CPU/PPU interleave phase
	dma   dma

	breakpoints *breakpointSet
	saveStates  []*SaveStateInfo
	current     *SaveStateInfo

	events chan Event

	state   atomic.Int32
	running atomic.Bool

	log *zap.Logger
}

// New builds an Instance over sys's cartridge with its own, independent
// mapper state -- execution never mutates sys.CartView, which belongs to
// the static program database.
func New(sys *system.System, log *zap.Logger) *Instance {
	if log == nil {
		log = zap.NewNop()
	}
	in := &Instance{
		sys:         sys,
		APUIO:       apuio.New(),
		Cart:        cartridge.NewCartridgeView(sys.Cartridge),
		breakpoints: newBreakpointSet(),
		events:      make(chan Event, 64),
		log:         log,
	}
	in.PPU = ppu.New(in)
	in.View = cartridge.NewSystemView(in.PPU, in.APUIO, in.Cart)
	in.CPU = cpu.New(&breakpointBus{in: in})
	in.state.Store(int32(StateInit))
	return in
}

// ReadPPU/WritePPU satisfy ppu.Bus, delegating to View -- the PPU needs to
// read/write the cartridge's CHR and the instance's own VRAM, both of which
// live behind View rather than being exposed on Instance directly.
func (in *Instance) ReadPPU(address uint16) uint8         { return in.View.ReadPPU(address) }
func (in *Instance) WritePPU(address uint16, value uint8) { in.View.WritePPU(address, value) }

// Reset restores power-on state across every sub-core and clears DMA/phase
// bookkeeping, leaving breakpoints and save states untouched.
func (in *Instance) Reset() {
	in.CPU.Reset()
	in.PPU.Reset()
	in.APUIO.Reset()
	in.phase = 0
	in.dma = dma{}
	in.state.Store(int32(StatePaused))
}

// State reports the instance's current state, safe to call from any
// goroutine.
func (in *Instance) State() State { return State(in.state.Load()) }

// RequestRun, RequestPause, RequestStepCycle, and RequestStepInstruction
// set the desired next state; the worker goroutine running Run observes
// the change at the next cycle-group boundary and yields.
func (in *Instance) RequestRun() {
	if in.State() != StateCrashed {
		in.state.Store(int32(StateRunning))
	}
}

func (in *Instance) RequestPause() {
	if in.State() == StateRunning {
		in.state.Store(int32(StatePaused))
	}
}

// WaitUntilIdle busy-waits until no worker goroutine is inside Run.
// The UI must call this before reading or mutating dynamic state directly.
func (in *Instance) WaitUntilIdle() {
	for in.running.Load() {
	}
}

// Run executes CPU/PPU cycle groups until the state is no longer Running,
// or the CPU crashes. Callers that want Running to proceed on its own
// goroutine call RequestRun then launch Run in a new goroutine; Run returns
// (rather than looping forever across Paused<->Running transitions) so that
// launching it is always an explicit, observable act by the caller.
func (in *Instance) Run() {
	in.running.Store(true)
	defer in.running.Store(false)
	for in.State() == StateRunning {
		in.stepGroup()
		if in.CPU.Crashed() {
			in.log.Error("cpu crashed",
				zap.String("registers", in.CPU.String()),
				zap.String("dump", spew.Sdump(in.CPU)))
			in.state.Store(int32(StateCrashed))
			return
		}
	}
}

// StepCycle executes exactly one CPU-cycle group synchronously and
// returns to Paused.
func (in *Instance) StepCycle() {
	in.running.Store(true)
	defer in.running.Store(false)
	in.state.Store(int32(StateStepCycle))
	in.stepGroup()
	if in.CPU.Crashed() {
		in.state.Store(int32(StateCrashed))
		return
	}
	in.state.Store(int32(StatePaused))
}

// StepInstruction runs cycle groups until the CPU reaches its next
// instruction boundary, then returns to Paused.
func (in *Instance) StepInstruction() {
	in.running.Store(true)
	defer in.running.Store(false)
	in.state.Store(int32(StateStepInstruction))
	in.stepGroup()
	for !in.CPU.AtInstructionBoundary() && !in.CPU.Crashed() {
		in.stepGroup()
	}
	if in.CPU.Crashed() {
		in.state.Store(int32(StateCrashed))
		return
	}
	in.state.Store(int32(StatePaused))
}

// cyclePattern gives the (P=PPU step, C=CPU step) pattern for each of the
// three rotating phases; across one rotation the ratio is exactly 3:1.
var cyclePattern = [3]string{"PCPP", "PCPPP", "CPP"}

// stepGroup runs one full CPU-cycle group: the PPU/CPU interleave pattern
// for the current phase, then advances phase. DMA's per-cycle bookkeeping
// is folded into the CPU ('C') steps, since only CPU cycles move bytes;
// the PPU ('P') sub-steps do no DMA work.
func (in *Instance) stepGroup() {
	pattern := cyclePattern[in.phase]
	for _, c := range pattern {
		switch c {
		case 'P':
			in.PPU.Step()
		case 'C':
			in.stepCPUCycle()
		}
	}
	in.phase = (in.phase + 1) % 3
}

// stepCPUCycle runs exactly one CPU bus cycle: NMI-line sampling, then
// either DMA's own bus traffic (while a transfer is in progress the cycle
// is counted but no instruction work happens) or a normal CPU.Step.
func (in *Instance) stepCPUCycle() {
	in.CPU.SetNMI(in.PPU.NMILine())

	if in.dma.active {
		in.stepDMA()
		return
	}

	if source, ok := in.APUIO.TakeOAMDMA(); ok {
		in.dma = dma{active: true, halted: true, source: source, readHi: true}
		in.stepDMA()
		return
	}

	in.CPU.Step()
}

// stepDMA advances one CPU cycle's worth of OAMDMA bus traffic: the halt
// cycle, then 256 read/write pairs, wrapping the source's low byte as the
// transfer's index.
func (in *Instance) stepDMA() {
	if in.dma.halted {
		in.dma.halted = false
		return
	}
	if in.dma.readHi {
		in.dma.readVal = in.View.Read(in.dma.source + uint16(in.dma.index))
		in.dma.readHi = false
		return
	}
	in.PPU.WriteOAM(uint8(in.dma.index), in.dma.readVal)
	in.dma.readHi = true
	in.dma.index++
	if in.dma.index >= 256 {
		in.dma = dma{}
	}
}
