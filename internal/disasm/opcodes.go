// Package disasm holds the static 6502 opcode table and operand-formatting
// helpers the disassembly worker and the instance's
// instruction-step decoder consult. The micro-op cycle sequencing that
// actually drives a running CPU lives in internal/cpu; this table only
// describes how one opcode byte maps to a mnemonic, an addressing mode, and
// a default cycle count.
package disasm

import "nesdis/internal/addr"

// Opcode describes one of the 256 possible opcode bytes.
type Opcode struct {
	Mnemonic       string
	Mode           addr.AddressingMode
	BaseCycles     int
	PageCrossExtra bool // an extra cycle is spent if indexing crosses a page
	Illegal        bool // undocumented/unimplemented on the NES's 2A03
}

// Size is the instruction's total encoded length in bytes.
func (o Opcode) Size() int { return o.Mode.Size() }

// Table maps every opcode byte to its Opcode. Illegal/undocumented opcodes
// are present as entries with Illegal=true and BaseCycles=2 so the CPU core
// can still detect and fault on them rather than indexing out of bounds.
var Table [256]Opcode

func init() {
	for i := range Table {
		Table[i] = Opcode{Mnemonic: "???", Mode: addr.Implied, BaseCycles: 2, Illegal: true}
	}
	for _, e := range officialOpcodes {
		Table[e.code] = Opcode{Mnemonic: e.mnemonic, Mode: e.mode, BaseCycles: e.cycles, PageCrossExtra: e.pageCross}
	}
}

type opcodeEntry struct {
	code      byte
	mnemonic  string
	mode      addr.AddressingMode
	cycles    int
	pageCross bool
}

var officialOpcodes = []opcodeEntry{
	// ADC
	{0x69, "ADC", addr.Immediate, 2, false}, {0x65, "ADC", addr.ZeroPage, 3, false},
	{0x75, "ADC", addr.ZeroPageX, 4, false}, {0x6D, "ADC", addr.Absolute, 4, false},
	{0x7D, "ADC", addr.AbsoluteX, 4, true}, {0x79, "ADC", addr.AbsoluteY, 4, true},
	{0x61, "ADC", addr.IndexedIndirect, 6, false}, {0x71, "ADC", addr.IndirectIndexed, 5, true},
	// AND
	{0x29, "AND", addr.Immediate, 2, false}, {0x25, "AND", addr.ZeroPage, 3, false},
	{0x35, "AND", addr.ZeroPageX, 4, false}, {0x2D, "AND", addr.Absolute, 4, false},
	{0x3D, "AND", addr.AbsoluteX, 4, true}, {0x39, "AND", addr.AbsoluteY, 4, true},
	{0x21, "AND", addr.IndexedIndirect, 6, false}, {0x31, "AND", addr.IndirectIndexed, 5, true},
	// ASL
	{0x0A, "ASL", addr.Accumulator, 2, false}, {0x06, "ASL", addr.ZeroPage, 5, false},
	{0x16, "ASL", addr.ZeroPageX, 6, false}, {0x0E, "ASL", addr.Absolute, 6, false},
	{0x1E, "ASL", addr.AbsoluteX, 7, false},
	// Branches
	{0x90, "BCC", addr.Relative, 2, false}, {0xB0, "BCS", addr.Relative, 2, false},
	{0xF0, "BEQ", addr.Relative, 2, false}, {0x30, "BMI", addr.Relative, 2, false},
	{0xD0, "BNE", addr.Relative, 2, false}, {0x10, "BPL", addr.Relative, 2, false},
	{0x50, "BVC", addr.Relative, 2, false}, {0x70, "BVS", addr.Relative, 2, false},
	// BIT
	{0x24, "BIT", addr.ZeroPage, 3, false}, {0x2C, "BIT", addr.Absolute, 4, false},
	// BRK
	{0x00, "BRK", addr.Implied, 7, false},
	// Flag clear/set
	{0x18, "CLC", addr.Implied, 2, false}, {0xD8, "CLD", addr.Implied, 2, false},
	{0x58, "CLI", addr.Implied, 2, false}, {0xB8, "CLV", addr.Implied, 2, false},
	{0x38, "SEC", addr.Implied, 2, false}, {0xF8, "SED", addr.Implied, 2, false},
	{0x78, "SEI", addr.Implied, 2, false},
	// CMP
	{0xC9, "CMP", addr.Immediate, 2, false}, {0xC5, "CMP", addr.ZeroPage, 3, false},
	{0xD5, "CMP", addr.ZeroPageX, 4, false}, {0xCD, "CMP", addr.Absolute, 4, false},
	{0xDD, "CMP", addr.AbsoluteX, 4, true}, {0xD9, "CMP", addr.AbsoluteY, 4, true},
	{0xC1, "CMP", addr.IndexedIndirect, 6, false}, {0xD1, "CMP", addr.IndirectIndexed, 5, true},
	// CPX / CPY
	{0xE0, "CPX", addr.Immediate, 2, false}, {0xE4, "CPX", addr.ZeroPage, 3, false}, {0xEC, "CPX", addr.Absolute, 4, false},
	{0xC0, "CPY", addr.Immediate, 2, false}, {0xC4, "CPY", addr.ZeroPage, 3, false}, {0xCC, "CPY", addr.Absolute, 4, false},
	// DEC
	{0xC6, "DEC", addr.ZeroPage, 5, false}, {0xD6, "DEC", addr.ZeroPageX, 6, false},
	{0xCE, "DEC", addr.Absolute, 6, false}, {0xDE, "DEC", addr.AbsoluteX, 7, false},
	// DEX / DEY / INX / INY
	{0xCA, "DEX", addr.Implied, 2, false}, {0x88, "DEY", addr.Implied, 2, false},
	{0xE8, "INX", addr.Implied, 2, false}, {0xC8, "INY", addr.Implied, 2, false},
	// EOR
	{0x49, "EOR", addr.Immediate, 2, false}, {0x45, "EOR", addr.ZeroPage, 3, false},
	{0x55, "EOR", addr.ZeroPageX, 4, false}, {0x4D, "EOR", addr.Absolute, 4, false},
	{0x5D, "EOR", addr.AbsoluteX, 4, true}, {0x59, "EOR", addr.AbsoluteY, 4, true},
	{0x41, "EOR", addr.IndexedIndirect, 6, false}, {0x51, "EOR", addr.IndirectIndexed, 5, true},
	// INC
	{0xE6, "INC", addr.ZeroPage, 5, false}, {0xF6, "INC", addr.ZeroPageX, 6, false},
	{0xEE, "INC", addr.Absolute, 6, false}, {0xFE, "INC", addr.AbsoluteX, 7, false},
	// JMP / JSR
	{0x4C, "JMP", addr.Absolute, 3, false}, {0x6C, "JMP", addr.Indirect, 5, false},
	{0x20, "JSR", addr.Absolute, 6, false},
	// LDA
	{0xA9, "LDA", addr.Immediate, 2, false}, {0xA5, "LDA", addr.ZeroPage, 3, false},
	{0xB5, "LDA", addr.ZeroPageX, 4, false}, {0xAD, "LDA", addr.Absolute, 4, false},
	{0xBD, "LDA", addr.AbsoluteX, 4, true}, {0xB9, "LDA", addr.AbsoluteY, 4, true},
	{0xA1, "LDA", addr.IndexedIndirect, 6, false}, {0xB1, "LDA", addr.IndirectIndexed, 5, true},
	// LDX
	{0xA2, "LDX", addr.Immediate, 2, false}, {0xA6, "LDX", addr.ZeroPage, 3, false},
	{0xB6, "LDX", addr.ZeroPageY, 4, false}, {0xAE, "LDX", addr.Absolute, 4, false},
	{0xBE, "LDX", addr.AbsoluteY, 4, true},
	// LDY
	{0xA0, "LDY", addr.Immediate, 2, false}, {0xA4, "LDY", addr.ZeroPage, 3, false},
	{0xB4, "LDY", addr.ZeroPageX, 4, false}, {0xAC, "LDY", addr.Absolute, 4, false},
	{0xBC, "LDY", addr.AbsoluteX, 4, true},
	// LSR
	{0x4A, "LSR", addr.Accumulator, 2, false}, {0x46, "LSR", addr.ZeroPage, 5, false},
	{0x56, "LSR", addr.ZeroPageX, 6, false}, {0x4E, "LSR", addr.Absolute, 6, false},
	{0x5E, "LSR", addr.AbsoluteX, 7, false},
	// NOP
	{0xEA, "NOP", addr.Implied, 2, false},
	// ORA
	{0x09, "ORA", addr.Immediate, 2, false}, {0x05, "ORA", addr.ZeroPage, 3, false},
	{0x15, "ORA", addr.ZeroPageX, 4, false}, {0x0D, "ORA", addr.Absolute, 4, false},
	{0x1D, "ORA", addr.AbsoluteX, 4, true}, {0x19, "ORA", addr.AbsoluteY, 4, true},
	{0x01, "ORA", addr.IndexedIndirect, 6, false}, {0x11, "ORA", addr.IndirectIndexed, 5, true},
	// Stack
	{0x48, "PHA", addr.Implied, 3, false}, {0x08, "PHP", addr.Implied, 3, false},
	{0x68, "PLA", addr.Implied, 4, false}, {0x28, "PLP", addr.Implied, 4, false},
	// ROL / ROR
	{0x2A, "ROL", addr.Accumulator, 2, false}, {0x26, "ROL", addr.ZeroPage, 5, false},
	{0x36, "ROL", addr.ZeroPageX, 6, false}, {0x2E, "ROL", addr.Absolute, 6, false},
	{0x3E, "ROL", addr.AbsoluteX, 7, false},
	{0x6A, "ROR", addr.Accumulator, 2, false}, {0x66, "ROR", addr.ZeroPage, 5, false},
	{0x76, "ROR", addr.ZeroPageX, 6, false}, {0x6E, "ROR", addr.Absolute, 6, false},
	{0x7E, "ROR", addr.AbsoluteX, 7, false},
	// RTI / RTS
	{0x40, "RTI", addr.Implied, 6, false}, {0x60, "RTS", addr.Implied, 6, false},
	// SBC
	{0xE9, "SBC", addr.Immediate, 2, false}, {0xE5, "SBC", addr.ZeroPage, 3, false},
	{0xF5, "SBC", addr.ZeroPageX, 4, false}, {0xED, "SBC", addr.Absolute, 4, false},
	{0xFD, "SBC", addr.AbsoluteX, 4, true}, {0xF9, "SBC", addr.AbsoluteY, 4, true},
	{0xE1, "SBC", addr.IndexedIndirect, 6, false}, {0xF1, "SBC", addr.IndirectIndexed, 5, true},
	// STA
	{0x85, "STA", addr.ZeroPage, 3, false}, {0x95, "STA", addr.ZeroPageX, 4, false},
	{0x8D, "STA", addr.Absolute, 4, false}, {0x9D, "STA", addr.AbsoluteX, 5, false},
	{0x99, "STA", addr.AbsoluteY, 5, false}, {0x81, "STA", addr.IndexedIndirect, 6, false},
	{0x91, "STA", addr.IndirectIndexed, 6, false},
	// STX / STY
	{0x86, "STX", addr.ZeroPage, 3, false}, {0x96, "STX", addr.ZeroPageY, 4, false}, {0x8E, "STX", addr.Absolute, 4, false},
	{0x84, "STY", addr.ZeroPage, 3, false}, {0x94, "STY", addr.ZeroPageX, 4, false}, {0x8C, "STY", addr.Absolute, 4, false},
	// Transfers
	{0xAA, "TAX", addr.Implied, 2, false}, {0xA8, "TAY", addr.Implied, 2, false},
	{0xBA, "TSX", addr.Implied, 2, false}, {0x8A, "TXA", addr.Implied, 2, false},
	{0x9A, "TXS", addr.Implied, 2, false}, {0x98, "TYA", addr.Implied, 2, false},
}
