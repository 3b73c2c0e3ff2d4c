package project

import (
	"bufio"
	"fmt"
	"io"

	"nesdis/internal/cartridge"
	"nesdis/internal/system"
)

// CreateProgress receives project-creation progress updates:
// the project under construction, whether this update reports a failure,
// the total step count once known (0 while still reading the header), the
// current step, and a human-readable message. Called synchronously on the
// creating goroutine.
type CreateProgress func(p *Project, failed bool, total, current int, message string)

// Create builds a new Project from an iNES ROM stream, reading one bank at
// a time so progress can name each PRG/CHR bank as it loads — the
// project-creation wizard's signal contract. On failure the last emitted
// update carries failed=true and the error message; no partially-built
// System is ever published onto the returned Project.
func Create(rd io.Reader, id uint64, abbreviation string, progress CreateProgress) (*Project, error) {
	p := &Project{ID: id, Abbreviation: abbreviation}
	emit := func(failed bool, total, current int, message string) {
		if progress != nil {
			progress(p, failed, total, current, message)
		}
	}

	emit(false, 0, 0, "Loading file...")

	br := bufio.NewReader(rd)
	var raw [16]byte
	if _, err := io.ReadFull(br, raw[:]); err != nil {
		emit(true, 0, 0, "Error: Not an NES ROM file")
		return nil, fmt.Errorf("project: reading iNES header: %w", err)
	}
	header, err := cartridge.ParseHeader(raw)
	if err != nil {
		emit(true, 0, 0, "Error: Not an NES ROM file")
		return nil, err
	}

	if header.HasTrainer {
		if _, err := io.CopyN(io.Discard, br, 512); err != nil {
			emit(true, 0, 0, "Error: file too short when reading trainer")
			return nil, fmt.Errorf("project: skipping trainer: %w", err)
		}
	}

	totalSteps := int(header.PRGROMBanks) + int(header.CHRROMBanks) + 1
	step := 0

	prg := make([]uint8, 0, int(header.PRGROMBanks)*16*1024)
	for i := 0; i < int(header.PRGROMBanks); i++ {
		step++
		emit(false, totalSteps, step, fmt.Sprintf("Loading PRG ROM bank %d", i))
		bank := make([]uint8, 16*1024)
		if _, err := io.ReadFull(br, bank); err != nil {
			emit(true, totalSteps, step, "Error: file too short when reading PRG-ROM")
			return nil, fmt.Errorf("project: reading PRG bank %d: %w", i, err)
		}
		prg = append(prg, bank...)
	}

	chr := make([]uint8, 0, int(header.CHRROMBanks)*8*1024)
	for i := 0; i < int(header.CHRROMBanks); i++ {
		step++
		emit(false, totalSteps, step, fmt.Sprintf("Loading CHR ROM bank %d", i))
		bank := make([]uint8, 8*1024)
		if _, err := io.ReadFull(br, bank); err != nil {
			emit(true, totalSteps, step, "Error: file too short when reading CHR-ROM")
			return nil, fmt.Errorf("project: reading CHR bank %d: %w", i, err)
		}
		chr = append(chr, bank...)
	}

	p.System = system.New(cartridge.FromParts(header, prg, chr))

	step++
	emit(false, totalSteps, step, "Done")
	return p, nil
}
