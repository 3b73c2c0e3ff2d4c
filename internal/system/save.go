package system

import (
	"fmt"

	"nesdis/internal/addr"
	"nesdis/internal/binio"
	"nesdis/internal/cartridge"
	"nesdis/internal/db"
)

// Save writes the System block of the project file: its own
// copy of the format version, the symbol table (labels/defines/enums), the three
// fixed memory regions, every PRG bank's program database (code/data
// markings, labels, comments -- the disassembly graph itself), and the
// cartridge plus its mapper's live bank state.
func (s *System) Save(w *binio.Writer) {
	w.WriteFixedUint32(addr.CurrentSaveFileVersion)

	s.Symbols.Save(w)

	s.RAM.Save(w)
	s.PPURegisters.Save(w)
	s.IORegisters.Save(w)

	w.WriteVarUint(uint64(len(s.PRGBanks)))
	for _, bank := range s.PRGBanks {
		bank.Save(w)
	}
	w.WriteVarUint(uint64(len(s.CHRBanks)))
	for _, bank := range s.CHRBanks {
		bank.Save(w)
	}

	s.Cartridge.Save(w)
	s.CartView.Mapper.Save(w)
}

// Load reads a System block previously written by Save, resolving every
// region's and symbol's cross-references only after all of it is in memory
// (db.Fixup needs the whole SymbolTable populated before any label/define
// name can resolve). A version newer than this build understands is
// rejected outright; 0x00000101 is this format's first released version,
// so there are no older layouts to branch for yet -- a future
// older-version case slots in right after the version read without
// disturbing the happy path.
func Load(r *binio.Reader) (*System, error) {
	version := r.ReadFixedUint32()
	if version > addr.CurrentSaveFileVersion {
		return nil, fmt.Errorf("system: save file version %#x is newer than this build supports (%#x)", version, addr.CurrentSaveFileVersion)
	}

	symbols := db.LoadSymbolTable(r)

	ram, ramPending := db.LoadRegion(r)
	ppuRegs, ppuPending := db.LoadRegion(r)
	ioRegs, ioPending := db.LoadRegion(r)

	bankCount := int(r.ReadVarUint())
	banks := make([]*db.MemoryRegion, bankCount)
	for i := range banks {
		region, pending := db.LoadRegion(r)
		banks[i] = region
		db.ResolveLabelsAndEnums(pending, symbols)
	}

	chrCount := int(r.ReadVarUint())
	chrBanks := make([]*db.MemoryRegion, chrCount)
	for i := range chrBanks {
		region, pending := db.LoadRegion(r)
		chrBanks[i] = region
		db.ResolveLabelsAndEnums(pending, symbols)
	}

	cart := cartridge.LoadCartridge(r)
	cartView := cartridge.NewCartridgeView(cart)
	cartView.Mapper.Load(r)

	db.ResolveLabelsAndEnums(ramPending, symbols)
	db.ResolveLabelsAndEnums(ppuPending, symbols)
	db.ResolveLabelsAndEnums(ioPending, symbols)

	ctx := &db.FixupContext{Symbols: symbols}
	symbols.ResolveSymbolExpressions(ctx)
	ram.ResolveExpressions(ctx)
	ppuRegs.ResolveExpressions(ctx)
	ioRegs.ResolveExpressions(ctx)
	for _, bank := range banks {
		bank.ResolveExpressions(ctx)
	}
	for _, bank := range chrBanks {
		bank.ResolveExpressions(ctx)
	}

	if err := r.Err(); err != nil {
		return nil, err
	}

	return &System{
		Cartridge:          cart,
		CartView:           cartView,
		Symbols:            symbols,
		RAM:                ram,
		PPURegisters:       ppuRegs,
		IORegisters:        ioRegs,
		PRGBanks:           banks,
		CHRBanks:           chrBanks,
		DisassemblyStopped: make(chan struct{}, 1),
	}, nil
}
