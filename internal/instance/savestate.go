package instance

import (
	"bytes"
	"time"

	"github.com/google/uuid"

	"nesdis/internal/binio"
)

// SaveStateInfo is one captured snapshot of an instance's dynamic state:
// CPU, PPU, APU_IO, the memory view (RAM, VRAM, mapper bank-switch state),
// DMA bookkeeping, a copy of the frame buffer, and the raster position.
// The blob is opaque to everything outside Capture/
// Restore; Name and CreatedAt are the only fields a host UI inspects
// directly (a save-state picker list). ID uses github.com/google/uuid for
// stable identity independent of display name or position in the list.
type SaveStateInfo struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
	blob      []byte
}

// CaptureSaveState serializes the instance's complete dynamic state --
// every sub-core plus DMA bookkeeping and the live mapper's bank-switch
// state -- into a new named SaveStateInfo, and registers it in SaveStates.
// Phase (the rotating CPU/PPU interleave) rides along too, so the exact
// CPU/PPU alignment survives a restore.
func (in *Instance) CaptureSaveState(name string) *SaveStateInfo {
	var buf bytes.Buffer
	w := binio.NewWriter(&buf)

	in.CPU.Save(w)
	in.PPU.Save(w)
	in.APUIO.Save(w)
	w.WriteBytes(in.View.RAM[:])
	w.WriteBytes(in.View.VRAM[:])
	in.Cart.Mapper.Save(w)
	in.saveDMA(w)
	w.WriteVarUint(uint64(in.phase))
	w.Flush()

	info := &SaveStateInfo{ID: uuid.New(), Name: name, CreatedAt: time.Now(), blob: buf.Bytes()}
	in.saveStates = append(in.saveStates, info)
	in.current = info
	return info
}

// RestoreSaveState replaces the instance's entire dynamic state with info's
// captured blob. The CPU/PPU/APU-IO/Cart instances themselves are reused
// (not reallocated), so any outstanding references a host UI holds to them
// stay valid across a restore.
func (in *Instance) RestoreSaveState(info *SaveStateInfo) error {
	r := binio.NewReader(bytes.NewReader(info.blob))

	in.CPU.Load(r)
	in.PPU.Load(r)
	in.APUIO.Load(r)
	copy(in.View.RAM[:], r.ReadBytes())
	copy(in.View.VRAM[:], r.ReadBytes())
	in.Cart.Mapper.Load(r)
	in.loadDMA(r)
	in.phase = int(r.ReadVarUint())

	if err := r.Err(); err != nil {
		return err
	}
	in.current = info
	return nil
}

func (in *Instance) saveDMA(w *binio.Writer) {
	w.WriteBool(in.dma.active)
	w.WriteBool(in.dma.halted)
	w.WriteVarUint(uint64(in.dma.source))
	w.WriteVarUint(uint64(in.dma.index))
	w.WriteBool(in.dma.readHi)
	w.WriteByte(in.dma.readVal)
}

func (in *Instance) loadDMA(r *binio.Reader) {
	in.dma.active = r.ReadBool()
	in.dma.halted = r.ReadBool()
	in.dma.source = uint16(r.ReadVarUint())
	in.dma.index = int(r.ReadVarUint())
	in.dma.readHi = r.ReadBool()
	in.dma.readVal = r.ReadByte()
}

// SaveStates returns every captured snapshot, oldest first.
func (in *Instance) SaveStates() []*SaveStateInfo { return in.saveStates }

// CurrentSaveState returns the most recently captured or restored snapshot,
// or nil if none has happened yet this session.
func (in *Instance) CurrentSaveState() *SaveStateInfo { return in.current }

// DeleteSaveState removes the snapshot with id, if present.
func (in *Instance) DeleteSaveState(id uuid.UUID) {
	for i, s := range in.saveStates {
		if s.ID == id {
			in.saveStates = append(in.saveStates[:i], in.saveStates[i+1:]...)
			if in.current == s {
				in.current = nil
			}
			return
		}
	}
}
