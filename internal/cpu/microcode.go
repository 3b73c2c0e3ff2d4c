package cpu

import "nesdis/internal/addr"

// MicroOp is one bus cycle's worth of CPU work: which bus the address
// comes from, whether it is a read or a write, what (if anything) gets
// latched out of the bus byte, and what source drives a write's data byte.
// The field layout bit-packs into a 64-bit word; Encode/Decode preserve
// that shape for persistence and inspection, while the struct form is what
// Step actually switches on.
//
// Field widths, low bit first: AddrBus(3) RW(1) PCIncr(2) EAddrIncr(3)
// Latch(5) DataSrc(3) Branch(4) ALU(6) — 27 of the 64 bits used; the rest is
// reserved the way the original table leaves headroom for undocumented
// opcodes it never implements.
type MicroOp struct {
	AddrBus AddrBusSel
	RW      BusOp
	PCIncr  PCAdjust
	EAddr   EAddrAdjust
	Latch   LatchTarget
	DataSrc DataBusSel
	Branch  BranchCheck
	ALU     ALUOp
}

type AddrBusSel uint8

const (
	BusPC AddrBusSel = iota
	BusEAddr
	BusStack
	BusIntermediate     // zero-page pointer byte, address = Ptr (wraps within $00-$FF)
	BusIntermediateNext // Ptr+1, wrapping within the zero page (not a real carry)
	BusEAddrWrap        // EAddr+1 with the high byte held fixed (JMP indirect's page-wrap bug)
)

type BusOp uint8

const (
	BusRead BusOp = iota
	BusWrite
)

type PCAdjust uint8

const (
	PCHold PCAdjust = iota
	PCInc
)

type EAddrAdjust uint8

const (
	EAddrHold EAddrAdjust = iota
	EAddrIncNoCarry
	EAddrIncCarry // add the carry from a prior low-byte fetch (page-cross)
)

// LatchTarget names what a read cycle's byte gets stored into.
type LatchTarget uint8

const (
	LatchNone LatchTarget = iota
	LatchOpcode
	LatchPCLow
	LatchPCHigh
	LatchEAddrLow
	LatchEAddrHigh
	LatchEAddrHighCarry // add pending carry from the low-byte read
	LatchIntermediate
	LatchFlagsFromStack
	LatchA
	LatchX
	LatchY
	LatchS
	LatchPFromStack
	LatchPCJump // commit Intermediate(low)/EAddr(high) into PC (JMP/JSR/RTS/RTI/branch/NMI vector)
	LatchNZFromIntermediate
	LatchCompareFromIntermediate // CMP/CPX/CPY: subtract without storing
	LatchBITFromIntermediate
	LatchPtr         // zero-page pointer byte (ZeroPageX/Y, (zp,X), (zp),Y)
	LatchPtrAddIndex // add the opcode's index register to Ptr, wrapping in the zero page
	LatchPtrLow      // Ptr-relative low byte of the eventual effective address
	LatchPtrHigh     // Ptr+1-relative high byte; combines with PtrLow into EAddr
	LatchPtrHighAddY // like LatchPtrHigh but also adds Y with page-cross carry detection
)

// DataBusSel selects what byte a write cycle puts on the bus.
type DataBusSel uint8

const (
	DataNone DataBusSel = iota
	DataA
	DataX
	DataY
	DataP
	DataPCHigh
	DataPCLow
	DataIntermediate // RMW dummy-write-then-real-write and ALU-op cycles
)

type BranchCheck uint8

const (
	BranchNone BranchCheck = iota
	BranchCarryClear
	BranchCarrySet
	BranchZeroClear
	BranchZeroSet
	BranchNegClear
	BranchNegSet
	BranchOverflowClear
	BranchOverflowSet
)

// ALUOp tags what Step's ALU switch does with Intermediate/A on the cycle
// this micro-op fires. Category, not a specific opcode: the same ALUOp
// serves every addressing mode an opcode family supports, which is what
// lets the sequence generator key purely off (AddressingMode, ALUOp)
// instead of one array per opcode.
type ALUOp uint8

const (
	ALUNone ALUOp = iota
	ALULoadA
	ALULoadX
	ALULoadY
	ALUStoreA
	ALUStoreX
	ALUStoreY
	ALUAdc
	ALUSbc
	ALUAnd
	ALUOra
	ALUEor
	ALUBit
	ALUCmp
	ALUCpx
	ALUCpy
	ALUAsl
	ALULsr
	ALURol
	ALURor
	ALUInc
	ALUDec
	ALUInx
	ALUIny
	ALUDex
	ALUDey
	ALUTax
	ALUTay
	ALUTxa
	ALUTya
	ALUTsx
	ALUTxs
	ALUClc
	ALUSec
	ALUCli
	ALUSei
	ALUClv
	ALUCld
	ALUSed
	ALUNop
	ALUPha
	ALUPhp
	ALUPla
	ALUPlp
	ALUBrkPushFlags
)

// Encode packs a MicroOp into the documented 64-bit layout. CPU.Save writes
// the active micro-op sequence as Encode()d words and CPU.Load rebuilds it
// with Decode, so a save state taken mid-instruction resumes from the
// decoded micro-ops.
func (m MicroOp) Encode() uint64 {
	var v uint64
	v |= uint64(m.AddrBus) << 0
	v |= uint64(m.RW) << 3
	v |= uint64(m.PCIncr) << 4
	v |= uint64(m.EAddr) << 6
	v |= uint64(m.Latch) << 9
	v |= uint64(m.DataSrc) << 14
	v |= uint64(m.Branch) << 17
	v |= uint64(m.ALU) << 21
	return v
}

func Decode(v uint64) MicroOp {
	return MicroOp{
		AddrBus: AddrBusSel(v>>0) & 0x7,
		RW:      BusOp(v>>3) & 0x1,
		PCIncr:  PCAdjust(v>>4) & 0x3,
		EAddr:   EAddrAdjust(v>>6) & 0x7,
		Latch:   LatchTarget(v>>9) & 0x1F,
		DataSrc: DataBusSel(v>>14) & 0x7,
		Branch:  BranchCheck(v>>17) & 0xF,
		ALU:     ALUOp(v>>21) & 0x3F,
	}
}

// seqKey groups opcodes that share a micro-op sequence shape: every opcode
// with the same addressing mode and ALU category steps through bus cycles
// identically, only the ALU's effect on registers/flags differs per-ALUOp
// (which Step reads straight off the current MicroOp, not off the key).
type seqKey struct {
	mode addr.AddressingMode
	alu  ALUOp
}

var sequences = map[seqKey][]MicroOp{}

func sequenceFor(mode addr.AddressingMode, op ALUOp) []MicroOp {
	k := seqKey{mode, op}
	if seq, ok := sequences[k]; ok {
		return seq
	}
	seq := buildSequence(mode, op)
	sequences[k] = seq
	return seq
}

func isWrite(op ALUOp) bool {
	switch op {
	case ALUStoreA, ALUStoreX, ALUStoreY:
		return true
	}
	return false
}

func isRMW(op ALUOp) bool {
	switch op {
	case ALUAsl, ALULsr, ALURol, ALURor, ALUInc, ALUDec:
		return true
	}
	return false
}

func isBranch(op ALUOp) bool {
	return false // branches are generated directly; never reach sequenceFor
}

// buildSequence produces the bus-cycle shape for one (addressing mode, ALU
// category) pair. The opcode-fetch cycle itself is not part of this slice —
// Step always spends cycle 0 of an instruction fetching the opcode and
// advancing PC; these sequences pick up from cycle 1 (the first operand
// fetch), matching the real 6502's T1 state machine.
func buildSequence(mode addr.AddressingMode, op ALUOp) []MicroOp {
	read := func(bus AddrBusSel, latch LatchTarget, pcIncr PCAdjust) MicroOp {
		return MicroOp{AddrBus: bus, RW: BusRead, Latch: latch, PCIncr: pcIncr}
	}
	switch mode {
	case addr.Implied, addr.Accumulator:
		// One idle bus read of the next opcode byte (without consuming it,
		// matching real hardware's "spurious fetch"), then the ALU cycle.
		return []MicroOp{
			read(BusPC, LatchNone, PCHold),
			{AddrBus: BusPC, RW: BusRead, ALU: op},
		}
	case addr.Immediate:
		return []MicroOp{
			{AddrBus: BusPC, RW: BusRead, Latch: LatchIntermediate, PCIncr: PCInc, ALU: op},
		}
	case addr.ZeroPage:
		seq := []MicroOp{read(BusPC, LatchEAddrLow, PCInc)}
		return appendEffective(seq, op, false)
	case addr.ZeroPageX, addr.ZeroPageY:
		seq := []MicroOp{
			read(BusPC, LatchPtr, PCInc),
			{AddrBus: BusIntermediate, RW: BusRead, Latch: LatchPtrAddIndex}, // dummy read at the un-indexed pointer
			{AddrBus: BusIntermediate, RW: BusRead, Latch: LatchEAddrLow},    // real read at the indexed (wrapped) pointer
		}
		return appendEffective(seq, op, false)
	case addr.Absolute:
		seq := []MicroOp{
			read(BusPC, LatchEAddrLow, PCInc),
			read(BusPC, LatchEAddrHigh, PCInc),
		}
		return appendEffective(seq, op, false)
	case addr.AbsoluteX, addr.AbsoluteY:
		seq := []MicroOp{
			read(BusPC, LatchEAddrLow, PCInc),
			read(BusPC, LatchEAddrHighCarry, PCInc),
			{AddrBus: BusEAddr, RW: BusRead}, // extra cycle a page-crossing index always spends, even on a read that turns out unneeded
		}
		return appendEffective(seq, op, true)
	case addr.IndexedIndirect:
		seq := []MicroOp{
			read(BusPC, LatchPtr, PCInc),
			{AddrBus: BusIntermediate, RW: BusRead, Latch: LatchPtrAddIndex}, // dummy read, X added to pointer
			{AddrBus: BusIntermediate, RW: BusRead, Latch: LatchPtrLow},
			{AddrBus: BusIntermediateNext, RW: BusRead, Latch: LatchPtrHigh},
		}
		return appendEffective(seq, op, false)
	case addr.IndirectIndexed:
		seq := []MicroOp{
			read(BusPC, LatchPtr, PCInc),
			{AddrBus: BusIntermediate, RW: BusRead, Latch: LatchPtrLow},
			{AddrBus: BusIntermediateNext, RW: BusRead, Latch: LatchPtrHighAddY},
			{AddrBus: BusEAddr, RW: BusRead}, // extra cycle a page-crossing index always spends
		}
		return appendEffective(seq, op, true)
	default:
		return nil
	}
}

// appendEffective adds the cycle(s) that actually touch the operand once
// EAddr is resolved: loads/read-modify-writes read at EAddr (RMW adds a
// dummy write-back of the unmodified value before the real one, matching
// real 6502 RMW timing), stores write directly.
func appendEffective(seq []MicroOp, op ALUOp, hadPageCrossGuess bool) []MicroOp {
	switch {
	case isWrite(op):
		return append(seq, MicroOp{AddrBus: BusEAddr, RW: BusWrite, DataSrc: storeSource(op)})
	case isRMW(op):
		return append(seq,
			MicroOp{AddrBus: BusEAddr, RW: BusRead, Latch: LatchIntermediate},
			MicroOp{AddrBus: BusEAddr, RW: BusWrite, DataSrc: DataIntermediate}, // dummy write-back
			MicroOp{AddrBus: BusEAddr, RW: BusWrite, DataSrc: DataIntermediate, ALU: op},
		)
	default:
		return append(seq, MicroOp{AddrBus: BusEAddr, RW: BusRead, Latch: LatchIntermediate, ALU: op})
	}
}

func storeSource(op ALUOp) DataBusSel {
	switch op {
	case ALUStoreA:
		return DataA
	case ALUStoreX:
		return DataX
	case ALUStoreY:
		return DataY
	default:
		return DataNone
	}
}
