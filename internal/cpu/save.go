package cpu

import (
	"nesdis/internal/addr"
	"nesdis/internal/binio"
)

// Save writes the CPU's entire architectural and machine state:
// registers as a packed record, the machine-state fields as varints, and
// ops_pointer as {base_index, offset_from_base} (opsBase, iStep here) rather
// than a raw slice pointer, since opsBase plus the opcode it was fetched for
// is everything beginInstruction needs to regenerate the same []MicroOp.
func (c *CPU) Save(w *binio.Writer) {
	w.WriteByte(c.A)
	w.WriteByte(c.X)
	w.WriteByte(c.Y)
	w.WriteByte(c.S)
	w.WriteByte(c.P)
	w.WriteVarUint(uint64(c.PC))

	w.WriteBool(c.nmiLine)
	w.WriteBool(c.nmiDetected)
	w.WriteBool(c.doNMI)
	w.WriteBool(c.didNMI)
	w.WriteVarUint(uint64(c.iStep))
	w.WriteByte(c.opcode)
	w.WriteVarUint(uint64(c.mode))
	w.WriteVarUint(uint64(c.aluOp))
	w.WriteByte(c.intermediate)
	w.WriteByte(c.eaddrLow)
	w.WriteBool(c.eaddrCarry)
	w.WriteVarUint(uint64(c.eaddr))
	w.WriteByte(c.ptr)
	w.WriteByte(c.ptrLow)

	w.WriteVarUint(uint64(c.opsBase))
	w.WriteBool(c.crashed)
	w.WriteVarUint(c.cycleCount)

	// seq is written out whole as Encode()d words and Load decodes it back.
	// That also covers branchSequence's runtime-extended tail (stepBranch
	// appends 1-2 cycles once a taken branch's offset is known), which
	// regenerating from (opsBase, opcode, mode, aluOp) alone could not
	// reproduce.
	w.WriteVarUint(uint64(len(c.seq)))
	for _, op := range c.seq {
		w.WriteVarUint(op.Encode())
	}
}

// Load restores a CPU previously captured with Save. mem must be reattached
// by the caller (New's constructor argument) before or after Load -- Load
// only touches the fields Save wrote.
func (c *CPU) Load(r *binio.Reader) {
	c.A = r.ReadByte()
	c.X = r.ReadByte()
	c.Y = r.ReadByte()
	c.S = r.ReadByte()
	c.P = r.ReadByte()
	c.PC = uint16(r.ReadVarUint())

	c.nmiLine = r.ReadBool()
	c.nmiDetected = r.ReadBool()
	c.doNMI = r.ReadBool()
	c.didNMI = r.ReadBool()
	c.iStep = int(r.ReadVarUint())
	c.opcode = r.ReadByte()
	c.mode = addr.AddressingMode(r.ReadVarUint())
	c.aluOp = ALUOp(r.ReadVarUint())
	c.intermediate = r.ReadByte()
	c.eaddrLow = r.ReadByte()
	c.eaddrCarry = r.ReadBool()
	c.eaddr = uint16(r.ReadVarUint())
	c.ptr = r.ReadByte()
	c.ptrLow = r.ReadByte()

	c.opsBase = seqBase(r.ReadVarUint())
	c.crashed = r.ReadBool()
	c.cycleCount = r.ReadVarUint()

	count := int(r.ReadVarUint())
	if count == 0 {
		c.seq = nil
		return
	}
	c.seq = make([]MicroOp, count)
	for i := range c.seq {
		c.seq[i] = Decode(r.ReadVarUint())
	}
}
