package instance

import (
	"time"

	"github.com/google/uuid"

	"go.uber.org/zap"

	"nesdis/internal/binio"
	"nesdis/internal/system"
)

func readUnixTime(r *binio.Reader) time.Time { return time.Unix(r.ReadVarInt(), 0).UTC() }

// Save writes this instance's per-instance project block: breakpoints,
// the save-state list, and the current save state. Breakpoints
// persist their condition as source text (re-parsed and re-fixed-up on
// Load, same as every other expression in the project) rather than the
// resolved db.Node tree, since SystemInstanceState getters only exist once
// an Instance is constructed -- there is nothing to bind them to before
// Load returns one.
func (in *Instance) Save(w *binio.Writer) {
	breakpoints := in.Breakpoints()
	w.WriteVarUint(uint64(len(breakpoints)))
	for _, bp := range breakpoints {
		w.WriteString(bp.ID.String())
		w.WriteVarUint(uint64(bp.Address))
		w.WriteBool(bp.BankSpecific)
		w.WriteVarUint(uint64(bp.Bank))
		w.WriteBool(bp.BreakRead)
		w.WriteBool(bp.BreakWrite)
		w.WriteBool(bp.BreakExecute)
		w.WriteBool(bp.Enabled)
		w.WriteString(bp.ConditionSrc)
	}

	w.WriteVarUint(uint64(len(in.saveStates)))
	for _, s := range in.saveStates {
		w.WriteString(s.ID.String())
		w.WriteString(s.Name)
		w.WriteVarInt(s.CreatedAt.Unix())
		w.WriteBytes(s.blob)
	}

	w.WriteBool(in.current != nil)
	if in.current != nil {
		w.WriteString(in.current.ID.String())
	}
}

// Load reads a per-instance project block back, constructing a fresh
// Instance over sys and re-fixing-up every breakpoint condition against it.
// A condition that fails to re-parse (a hand-edited project file, or a
// state name this version no longer recognizes) is kept as ConditionSrc
// but left with a nil Condition -- the breakpoint becomes unconditional
// rather than the whole project load failing.
func Load(r *binio.Reader, sys *system.System, log *zap.Logger) *Instance {
	in := New(sys, log)

	breakpointCount := int(r.ReadVarUint())
	for i := 0; i < breakpointCount; i++ {
		id, _ := uuid.Parse(r.ReadString())
		bp := &Breakpoint{
			ID:           id,
			Address:      uint16(r.ReadVarUint()),
			BankSpecific: r.ReadBool(),
			Bank:         uint16(r.ReadVarUint()),
			BreakRead:    r.ReadBool(),
			BreakWrite:   r.ReadBool(),
			BreakExecute: r.ReadBool(),
			Enabled:      r.ReadBool(),
			ConditionSrc: r.ReadString(),
		}
		if bp.ConditionSrc != "" {
			if cond, err := in.FixupCondition(bp.ConditionSrc); err == nil {
				bp.Condition = cond
			}
		}
		in.breakpoints.Add(bp)
	}

	stateCount := int(r.ReadVarUint())
	for i := 0; i < stateCount; i++ {
		id, _ := uuid.Parse(r.ReadString())
		name := r.ReadString()
		createdAt := readUnixTime(r)
		blob := r.ReadBytes()
		in.saveStates = append(in.saveStates, &SaveStateInfo{ID: id, Name: name, CreatedAt: createdAt, blob: blob})
	}

	if r.ReadBool() {
		currentID, _ := uuid.Parse(r.ReadString())
		for _, s := range in.saveStates {
			if s.ID == currentID {
				in.current = s
				break
			}
		}
	}

	return in
}
