// Package system is the orchestrator: it owns the program database's
// memory regions and default symbol table for one loaded cartridge, and
// drives the disassembly worker that walks code reachable from a seed
// address.
package system

import (
	"fmt"
	"sync/atomic"

	"nesdis/internal/addr"
	"nesdis/internal/cartridge"
	"nesdis/internal/db"
	"nesdis/internal/disasm"
)

const (
	prgBankSize = 16 * 1024
	chrBankSize = 8 * 1024
	ramSize     = 0x0800
)

// System bundles one cartridge's loaded memory regions and symbol table: the
// static program-database half of the emulator, as opposed to the live
// running state internal/instance owns.
type System struct {
	Cartridge *cartridge.Cartridge
	CartView  *cartridge.CartridgeView

	Symbols *db.SymbolTable

	RAM          *db.MemoryRegion
	PPURegisters *db.MemoryRegion
	IORegisters  *db.MemoryRegion
	PRGBanks     []*db.MemoryRegion
	CHRBanks     []*db.MemoryRegion

	// DisassemblyStopped fires (on the caller's goroutine, via a buffered
	// channel) once a DisassembleFrom walk's queue empties or the walk is
	// cancelled.
	DisassemblyStopped chan struct{}

	// disassembling is the walk's cancellation flag: DisassembleFrom sets
	// it on entry and checks it before decoding each instruction, so a
	// CancelDisassembly from another goroutine stops the walk after the
	// instruction in flight.
	disassembling atomic.Bool
}

// New builds a System over cart: default memory regions, default labels
// for the CPU vectors and PPU/APU/joypad registers, and the three
// interrupt vectors marked as words.
func New(cart *cartridge.Cartridge) *System {
	s := &System{
		Cartridge:          cart,
		CartView:           cartridge.NewCartridgeView(cart),
		Symbols:            db.NewSymbolTable(),
		RAM:                db.InitializeEmpty("RAM", 0x0000, ramSize),
		PPURegisters:       db.InitializeEmpty("PPU Registers", 0x2000, 8),
		IORegisters:        db.InitializeEmpty("IO Registers", 0x4000, 0x20),
		DisassemblyStopped: make(chan struct{}, 1),
	}

	bankCount := len(cart.PRG) / prgBankSize
	if bankCount == 0 {
		bankCount = 1
	}
	s.PRGBanks = make([]*db.MemoryRegion, bankCount)
	for i := 0; i < bankCount; i++ {
		base := uint16(0x8000)
		if i == bankCount-1 {
			base = 0xC000 // the last bank sits in the fixed $C000 window; a single 16KiB bank mirrors into both halves
		}
		data := cart.PRG[i*prgBankSize : (i+1)*prgBankSize]
		region := db.InitializeFromData(fmt.Sprintf("PRG Bank %d", i), base, data)
		region.Bank = uint16(i)
		s.PRGBanks[i] = region
	}

	// CHR-ROM banks get database regions too (pattern data can carry labels
	// and comments the same as code). CHR-RAM does not: its contents are
	// runtime state owned by the instance, not part of the program database.
	if cart.Header.CHRROMBanks > 0 {
		s.CHRBanks = make([]*db.MemoryRegion, cart.Header.CHRROMBanks)
		for i := range s.CHRBanks {
			data := cart.CHR[i*chrBankSize : (i+1)*chrBankSize]
			region := db.InitializeFromData(fmt.Sprintf("CHR Bank %d", i), 0x0000, data)
			region.Bank = uint16(i)
			region.IsCHR = true
			s.CHRBanks[i] = region
		}
	}

	s.createDefaultLabels()
	return s
}

// NumMemoryRegions counts every region the database holds: the three fixed
// windows plus one per PRG and CHR-ROM bank.
func (s *System) NumMemoryRegions() int {
	return 3 + len(s.PRGBanks) + len(s.CHRBanks)
}

func (s *System) addLabel(name string, where addr.GlobalMemoryLocation) {
	l := &db.Label{Name: name, Where: where}
	// Names collide across runs only if called twice on the same System;
	// a duplicate here is a programming error in New, not a user-facing one.
	_ = s.Symbols.AddLabelWithOrigin(l, false)
}

// createDefaultLabels seeds the well-known PPU/APU/joypad register names
// and marks the three interrupt vectors as words: _nmi/_reset/_irqbrk at
// $FFFA/$FFFC/$FFFE, PPUCONT..PPUDATA at $2000-$2007, and the APU/joypad
// registers at $4000-$4017.
func (s *System) createDefaultLabels() {
	ppuNames := []string{"PPUCONT", "PPUMASK", "PPUSTAT", "OAMADDR", "OAMDATA", "PPUSCRL", "PPUADDR", "PPUDATA"}
	for i, name := range ppuNames {
		s.addLabel(name, addr.GlobalMemoryLocation{Address: 0x2000 + uint16(i)})
	}

	ioNames := map[uint16]string{
		0x4000: "SQ1_VOL", 0x4001: "SQ1_SWEEP", 0x4002: "SQ1_LO", 0x4003: "SQ1_HI",
		0x4004: "SQ2_VOL", 0x4005: "SQ2_SWEEP", 0x4006: "SQ2_LO", 0x4007: "SQ2_HI",
		0x4008: "TRI_LINEAR", 0x400A: "TRI_LO", 0x400B: "TRI_HI",
		0x400C: "NOISE_VOL", 0x400E: "NOISE_LO", 0x400F: "NOISE_HI",
		0x4010: "DMC_FREQ", 0x4011: "DMC_RAW", 0x4012: "DMC_START", 0x4013: "DMC_LEN",
		0x4014: "OAMDMA", 0x4015: "SND_CHN", 0x4016: "JOY1", 0x4017: "JOY2",
	}
	for address, name := range ioNames {
		s.addLabel(name, addr.GlobalMemoryLocation{Address: address})
	}

	lastBank := uint16(len(s.PRGBanks) - 1)
	vectorBank := s.PRGBanks[lastBank]
	vectors := map[uint16]string{0xFFFA: "_nmi", 0xFFFC: "_reset", 0xFFFE: "_irqbrk"}
	for address, name := range vectors {
		offset := int(address - vectorBank.Base)
		if offset < 0 || offset+2 > vectorBank.Size {
			continue
		}
		if err := vectorBank.MarkAsWords(offset, 1); err == nil {
			s.addLabel(name, vectorBank.Where(offset))
		}
	}
}

// BankForAddress finds the PRG bank region whose address window contains
// address, returning (region, offset, true), or (nil, 0, false) if none
// does — e.g. the address falls in RAM or register space instead.
func (s *System) BankForAddress(bank uint16, address uint16) (*db.MemoryRegion, int, bool) {
	if int(bank) >= len(s.PRGBanks) {
		return nil, 0, false
	}
	region := s.PRGBanks[bank]
	if address < region.Base || int(address-region.Base) >= region.Size {
		return nil, 0, false
	}
	return region, int(address - region.Base), true
}

// disassembleQueueEntry is one pending seed for the disassembly worker.
type disassembleQueueEntry struct {
	bank    uint16
	address uint16
}

// DisassembleFrom runs the disassembly worker starting at the given
// bank/address, synchronously on the calling goroutine -- callers that
// want it off the UI thread run DisassembleFrom itself inside a goroutine,
// same as the single-goroutine-owns-bus convention elsewhere in this
// module. DisassemblyStopped fires when the walk finishes, whether the
// queue drained or CancelDisassembly cut it short.
func (s *System) DisassembleFrom(bank uint16, address uint16) {
	s.disassembling.Store(true)
	defer s.disassembling.Store(false)

	queue := []disassembleQueueEntry{{bank, address}}
	visited := make(map[uint64]bool)

	for len(queue) > 0 && s.disassembling.Load() {
		entry := queue[0]
		queue = queue[1:]

		region, offset, ok := s.BankForAddress(entry.bank, entry.address)
		if !ok {
			continue
		}
		where := region.Where(offset)
		key := where.Key()
		if visited[key] {
			continue
		}
		visited[key] = true

		obj, _, err := region.GetObject(offset)
		if err != nil || obj.Type != db.Undefined {
			continue // already decoded, or something else already claimed these bytes
		}

		opcodeByte, err := region.ReadByte(offset)
		if err != nil {
			continue
		}
		op := disasm.Table[opcodeByte]
		if op.Illegal || offset+op.Size() > region.Size {
			continue
		}

		value, target, hasTarget := s.decodeOperand(region, offset, op, entry.bank)
		codeObj, err := region.MarkAsCode(offset, op.Size())
		if err != nil {
			continue
		}
		codeObj.OperandExpression = disasm.DefaultOperandExpression(op.Mode, value)

		if hasTarget {
			s.labelTarget(entry.bank, target)
			if expr := s.labelOperand(entry.bank, target, where); expr != nil {
				codeObj.OperandExpression = expr
			}
		}

		nextAddress := entry.address + uint16(op.Size())
		terminal := op.Mnemonic == "RTS" || op.Mnemonic == "RTI" ||
			(op.Mnemonic == "JMP" && op.Mode == addr.Indirect)
		if !terminal && int(offset+op.Size()) < region.Size {
			queue = append(queue, disassembleQueueEntry{entry.bank, nextAddress})
		}
		if hasTarget && (op.Mnemonic == "JMP" || op.Mnemonic == "JSR" || isBranch(op.Mnemonic)) {
			queue = append(queue, disassembleQueueEntry{entry.bank, target})
		}
	}

	select {
	case s.DisassemblyStopped <- struct{}{}:
	default:
	}
}

// CancelDisassembly asks a running DisassembleFrom walk to stop. The
// worker finishes the instruction it is decoding, then exits (emitting
// DisassemblyStopped as usual). Safe to call from any goroutine, and a
// no-op when no walk is running.
func (s *System) CancelDisassembly() {
	s.disassembling.Store(false)
}

// Disassembling reports whether a DisassembleFrom walk is currently
// running.
func (s *System) Disassembling() bool {
	return s.disassembling.Load()
}

func isBranch(mnemonic string) bool {
	switch mnemonic {
	case "BCC", "BCS", "BEQ", "BMI", "BNE", "BPL", "BVC", "BVS":
		return true
	}
	return false
}

// decodeOperand reads op's operand bytes out of region at offset and, for
// addressing modes with a resolvable address operand, computes the target
// address within bank. A default label is only ever created when the
// target resolves to a unique bank.
func (s *System) decodeOperand(region *db.MemoryRegion, offset int, op disasm.Opcode, bank uint16) (value int64, target uint16, hasTarget bool) {
	switch op.Mode {
	case addr.Implied, addr.Accumulator:
		return 0, 0, false
	case addr.Immediate, addr.ZeroPage, addr.ZeroPageX, addr.ZeroPageY, addr.IndexedIndirect, addr.IndirectIndexed:
		b, _ := region.ReadByte(offset + 1)
		return int64(b), 0, false
	case addr.Relative:
		b, _ := region.ReadByte(offset + 1)
		nextPC := region.Base + uint16(offset) + 2
		t := disasm.BranchTarget(nextPC, int8(b))
		return int64(t), t, true
	case addr.Absolute, addr.AbsoluteX, addr.AbsoluteY, addr.Indirect:
		lo, _ := region.ReadByte(offset + 1)
		hi, _ := region.ReadByte(offset + 2)
		t := uint16(hi)<<8 | uint16(lo)
		resolvable := op.Mode == addr.Absolute // indexed/indirect targets aren't a fixed code address
		return int64(t), t, resolvable
	default:
		return 0, 0, false
	}
}

// labelTarget creates a default label at (bank, target) if the address maps
// into that bank's region and no label already exists there.
func (s *System) labelTarget(bank uint16, target uint16) {
	region, offset, ok := s.BankForAddress(bank, target)
	if !ok {
		return
	}
	where := region.Where(offset)
	if len(s.Symbols.LabelsAt(where)) > 0 {
		return
	}
	name := fmt.Sprintf("L_%04X", target)
	l := &db.Label{Name: name, Where: where}
	if err := s.Symbols.AddLabelWithOrigin(l, false); err != nil {
		return
	}
	region.ApplyLabel(offset, l)
}

// locationOf maps (bank, target) to the global location a label at that
// address would carry: bank-qualified when the address falls in a PRG bank,
// plain otherwise (RAM and register space, where the pre-seeded names like
// PPUCONT live).
func (s *System) locationOf(bank uint16, target uint16) addr.GlobalMemoryLocation {
	if region, offset, ok := s.BankForAddress(bank, target); ok {
		return region.Where(offset)
	}
	return addr.GlobalMemoryLocation{Address: target}
}

// labelOperand builds the resolved label-reference expression for a
// decoded instruction whose target carries at least one label (the default
// operand for absolute/relative with a labeled target refers to the first
// label there). Returns nil when the target is unlabeled, in
// which case the plain numeric operand stands. Going through ResolveAll
// rather than constructing a LabelNode directly is what registers the
// operand's reverse reference on the label.
func (s *System) labelOperand(bank uint16, target uint16, owner addr.GlobalMemoryLocation) db.Node {
	loc := s.locationOf(bank, target)
	labels := s.Symbols.LabelsAt(loc)
	if len(labels) == 0 {
		return nil
	}
	ref := db.ReverseReference{Kind: db.RefOperand, Where: owner}
	return db.ResolveAll(&db.Name{Text: labels[0].Name}, &db.FixupContext{Symbols: s.Symbols}, ref)
}
