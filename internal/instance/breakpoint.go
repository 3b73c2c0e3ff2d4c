package instance

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"nesdis/internal/addr"
	"nesdis/internal/db"
)

// AccessKind classifies one bus access: a data read, a write, or an opcode
// fetch (execute). Every access is exactly one of the three; which of them
// a Breakpoint fires on is the breakpoint's own three independent flags.
type AccessKind uint8

const (
	AccessRead AccessKind = iota
	AccessWrite
	AccessExecute
)

// Breakpoint is one watchpoint on the CPU's address bus, keyed either
// bank-specifically or bank-agnostically. BankSpecific breakpoints only
// fire while the cartridge's live mapper has Bank paged in at Address;
// bank-agnostic ones fire regardless (RAM, PPU/IO registers, or a ROM
// address the user wants to watch across every bank). BreakRead,
// BreakWrite, and BreakExecute select independently which access kinds
// trip it -- an address used both as a jump target and as data can carry
// an execute-only breakpoint that data reads sail past.
type Breakpoint struct {
	ID           uuid.UUID
	Address      uint16
	BankSpecific bool
	Bank         uint16
	BreakRead    bool
	BreakWrite   bool
	BreakExecute bool
	Enabled      bool

	Condition    db.Node
	ConditionSrc string
}

// matches reports whether this breakpoint fires on the given access kind.
func (bp *Breakpoint) matches(kind AccessKind) bool {
	switch kind {
	case AccessRead:
		return bp.BreakRead
	case AccessWrite:
		return bp.BreakWrite
	case AccessExecute:
		return bp.BreakExecute
	}
	return false
}

// breakpointSet is the instance's breakpoint bookkeeping: the 64Ki-bit
// quick-reject bitmap plus the two keyed lists the fast path falls
// through to once a bit is set.
type breakpointSet struct {
	quick     [8192]uint8
	byBank    map[uint64][]*Breakpoint
	byAddress map[uint16][]*Breakpoint
	all       map[uuid.UUID]*Breakpoint
}

func newBreakpointSet() *breakpointSet {
	return &breakpointSet{
		byBank:    make(map[uint64][]*Breakpoint),
		byAddress: make(map[uint16][]*Breakpoint),
		all:       make(map[uuid.UUID]*Breakpoint),
	}
}

func bankKey(address, bank uint16) uint64 {
	return addr.GlobalMemoryLocation{Address: address, PRGROMBank: bank}.Key()
}

func (s *breakpointSet) quickSet(address uint16) {
	s.quick[address>>3] |= 1 << (address & 7)
}

func (s *breakpointSet) quickTest(address uint16) bool {
	return s.quick[address>>3]&(1<<(address&7)) != 0
}

func (s *breakpointSet) quickClearIfEmpty(address uint16) {
	if len(s.byAddress[address]) > 0 {
		return
	}
	for _, list := range s.byBank {
		for _, bp := range list {
			if bp.Address == address {
				return
			}
		}
	}
	s.quick[address>>3] &^= 1 << (address & 7)
}

// Add registers bp, setting its quick-reject bit.
func (s *breakpointSet) Add(bp *Breakpoint) {
	s.all[bp.ID] = bp
	if bp.BankSpecific {
		key := bankKey(bp.Address, bp.Bank)
		s.byBank[key] = append(s.byBank[key], bp)
	} else {
		s.byAddress[bp.Address] = append(s.byAddress[bp.Address], bp)
	}
	s.quickSet(bp.Address)
}

// Remove deletes the breakpoint with id, if any, and recomputes its
// quick-reject bit.
func (s *breakpointSet) Remove(id uuid.UUID) {
	bp, ok := s.all[id]
	if !ok {
		return
	}
	delete(s.all, id)
	if bp.BankSpecific {
		key := bankKey(bp.Address, bp.Bank)
		s.byBank[key] = removeByID(s.byBank[key], id)
	} else {
		s.byAddress[bp.Address] = removeByID(s.byAddress[bp.Address], id)
	}
	s.quickClearIfEmpty(bp.Address)
}

func (s *breakpointSet) All() []*Breakpoint {
	out := make([]*Breakpoint, 0, len(s.all))
	for _, bp := range s.all {
		out = append(out, bp)
	}
	return out
}

func removeByID(list []*Breakpoint, id uuid.UUID) []*Breakpoint {
	out := list[:0]
	for _, bp := range list {
		if bp.ID != id {
			out = append(out, bp)
		}
	}
	return out
}

// candidates reports every breakpoint registered at address under bank,
// both bank-agnostic and bank-specific -- the "two keys" scan.
func (s *breakpointSet) candidates(address, bank uint16) []*Breakpoint {
	var out []*Breakpoint
	out = append(out, s.byAddress[address]...)
	out = append(out, s.byBank[bankKey(address, bank)]...)
	return out
}

// checkAccess is the bus-access fast path: the quick bitmap is probed
// first (the common case, no breakpoint anywhere near this address), and
// only on a hit does the list get scanned and conditions evaluated.
// Returns the first enabled, kind-matching, true/absent-condition
// breakpoint, or nil.
func (in *Instance) checkAccess(address uint16, kind AccessKind) *Breakpoint {
	if !in.breakpoints.quickTest(address) {
		return nil
	}
	bank := uint16(0)
	if address >= 0x8000 {
		bank = uint16(in.Cart.RomBank(address))
	}
	for _, bp := range in.breakpoints.candidates(address, bank) {
		if !bp.Enabled || !bp.matches(kind) {
			continue
		}
		if bp.Condition == nil {
			return bp
		}
		if in.evalCondition(bp.Condition) {
			return bp
		}
	}
	return nil
}

// evalCondition evaluates a breakpoint's condition expression against the
// instance's live state. A condition that errors (an unresolved Name, a
// dereference of an address the Deref function rejects) is treated as
// false rather than panicking -- evaluation errors are a display concern
// elsewhere, not a reason to stop the CPU.
func (in *Instance) evalCondition(n db.Node) bool {
	ctx := &db.EvalContext{
		Deref: func(address int64) (int64, error) {
			return int64(in.View.Peek(uint16(address))), nil
		},
	}
	v, err := n.Evaluate(ctx)
	return err == nil && v != 0
}

// stateGetter resolves an instance state name
// (a,x,y,s,p,pc,istep,scanline,ppucycle,frame) to a live getter, for
// FixupCondition / db.FixupContext.StateGetter.
func (in *Instance) stateGetter(name string) (func() int64, bool) {
	switch name {
	case "a":
		return func() int64 { return int64(in.CPU.A) }, true
	case "x":
		return func() int64 { return int64(in.CPU.X) }, true
	case "y":
		return func() int64 { return int64(in.CPU.Y) }, true
	case "s":
		return func() int64 { return int64(in.CPU.S) }, true
	case "p":
		return func() int64 { return int64(in.CPU.P) }, true
	case "pc":
		return func() int64 { return int64(in.CPU.PC) }, true
	case "istep":
		return func() int64 { return int64(in.CPU.IStep()) }, true
	case "scanline":
		return func() int64 { return int64(in.PPU.Scanline()) }, true
	case "ppucycle":
		return func() int64 { return int64(in.PPU.Cycle()) }, true
	case "frame":
		return func() int64 { return int64(in.PPU.FrameCount()) }, true
	default:
		return nil, false
	}
}

// FixupCondition parses and resolves a breakpoint condition's source text
// against this instance's state-name table and memory: Name nodes matching
// the state table become SystemInstanceState leaves with bound getters. A
// narrower pass than db.Fixup's full label/define/enum resolution, since a
// breakpoint condition has no business naming a label (conditions are not
// part of the program database's reference graph).
func (in *Instance) FixupCondition(src string) (db.Node, error) {
	root, err := db.Parse(src)
	if err != nil {
		return nil, err
	}
	return db.Explore(root, func(n db.Node) (db.Node, bool) {
		name, ok := n.(*db.Name)
		if ok {
			if getter, ok := in.stateGetter(name.Text); ok {
				return &db.SystemInstanceState{Name: name.Text, Getter: getter}, true
			}
			return n, true
		}
		if deref, ok := n.(*db.DereferenceOp); ok {
			deref.Deref = func(address int64) (int64, error) {
				return int64(in.View.Peek(uint16(address))), nil
			}
		}
		return n, true
	}), nil
}

// AddBreakpoint parses conditionSrc (empty for an unconditional breakpoint)
// and registers a new, enabled breakpoint firing on whichever of the three
// access kinds the read/write/execute flags select.
func (in *Instance) AddBreakpoint(address uint16, bankSpecific bool, bank uint16, read, write, execute bool, conditionSrc string) (*Breakpoint, error) {
	bp := &Breakpoint{
		ID:           uuid.New(),
		Address:      address,
		BankSpecific: bankSpecific,
		Bank:         bank,
		BreakRead:    read,
		BreakWrite:   write,
		BreakExecute: execute,
		Enabled:      true,
		ConditionSrc: conditionSrc,
	}
	if conditionSrc != "" {
		cond, err := in.FixupCondition(conditionSrc)
		if err != nil {
			return nil, err
		}
		bp.Condition = cond
	}
	in.breakpoints.Add(bp)
	return bp, nil
}

// RemoveBreakpoint deletes the breakpoint with id, if present.
func (in *Instance) RemoveBreakpoint(id uuid.UUID) { in.breakpoints.Remove(id) }

// Breakpoints returns every registered breakpoint, in no particular order.
func (in *Instance) Breakpoints() []*Breakpoint { return in.breakpoints.All() }

// breakpointBus wraps Instance's dynamic SystemView with the breakpoint
// fast path: every CPU bus access is probed against the quick-reject
// bitmap before reaching View.
type breakpointBus struct {
	in *Instance
}

func (b *breakpointBus) Read(address uint16) uint8 {
	// A read issued while the CPU is between micro-op sequences is the
	// opcode fetch itself -- that is the execute access kind. Every other
	// read is a data read.
	kind := AccessRead
	if b.in.CPU.AtInstructionBoundary() {
		kind = AccessExecute
	}
	if bp := b.in.checkAccess(address, kind); bp != nil {
		b.in.hitBreakpoint(bp)
	}
	return b.in.View.Read(address)
}

func (b *breakpointBus) Write(address uint16, value uint8) {
	if bp := b.in.checkAccess(address, AccessWrite); bp != nil {
		b.in.hitBreakpoint(bp)
	}
	b.in.View.Write(address, value)
}

// hitBreakpoint transitions the instance to Paused and emits
// breakpoint_hit -- non-blocking, so a host that isn't currently listening
// never stalls the worker goroutine. Handlers must only flag state, never
// mutate the program database from the worker's context.
func (in *Instance) hitBreakpoint(bp *Breakpoint) {
	in.state.Store(int32(StatePaused))
	in.log.Info("breakpoint hit", zap.String("id", bp.ID.String()), zap.Uint16("address", bp.Address))
	select {
	case in.events <- Event{Kind: EventBreakpointHit, Breakpoint: bp}:
	default:
	}
}
