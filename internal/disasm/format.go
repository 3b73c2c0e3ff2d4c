package disasm

import (
	"fmt"

	"nesdis/internal/addr"
	"nesdis/internal/db"
)

// BranchTarget computes the target address of a relative branch: the signed
// 8-bit offset is added to the address of the instruction immediately
// following the branch (PC already past both opcode and operand bytes).
func BranchTarget(nextPC uint16, offset int8) uint16 {
	return uint16(int32(nextPC) + int32(offset))
}

func hexConstant(value int64, digits int) *db.Constant {
	return &db.Constant{Value: value, Display: fmt.Sprintf("$%0*X", digits, value)}
}

func digitsFor(mode addr.AddressingMode) int {
	switch mode {
	case addr.ZeroPage, addr.ZeroPageX, addr.ZeroPageY, addr.IndexedIndirect, addr.IndirectIndexed, addr.Relative, addr.Immediate:
		return 2
	default:
		return 4
	}
}

// DefaultOperandExpression builds the expression tree a freshly decoded
// instruction gets before any label fixup runs: a bare constant wrapped in
// whatever Immediate/IndexedX/IndexedY/Parens shape the addressing mode
// implies. value is the
// raw operand (already assembled from its 1 or 2 little-endian bytes; for
// Relative mode it is the already-resolved branch target, not the raw
// signed offset).
func DefaultOperandExpression(mode addr.AddressingMode, value int64) db.Node {
	digits := digitsFor(mode)
	switch mode {
	case addr.Implied:
		return nil
	case addr.Accumulator:
		return &db.Accum{}
	case addr.Immediate:
		return &db.Immediate{Value: hexConstant(value, digits)}
	case addr.ZeroPage, addr.Absolute, addr.Relative:
		return hexConstant(value, digits)
	case addr.ZeroPageX, addr.AbsoluteX:
		return &db.IndexedX{Value: hexConstant(value, digits)}
	case addr.ZeroPageY, addr.AbsoluteY:
		return &db.IndexedY{Value: hexConstant(value, digits)}
	case addr.Indirect:
		return &db.Parens{Inner: hexConstant(value, digits)}
	case addr.IndexedIndirect:
		return &db.Parens{Inner: &db.IndexedX{Value: hexConstant(value, digits)}}
	case addr.IndirectIndexed:
		return &db.IndexedY{Value: &db.Parens{Inner: hexConstant(value, digits)}}
	default:
		return hexConstant(value, digits)
	}
}

// FormatInstruction renders a plain-text mnemonic + operand pair without
// going through the expression tree, used when the disassembler only needs
// a quick preview (e.g. during the successor-address discovery walk) rather
// than a fully fixed-up listing row.
func FormatInstruction(op Opcode, value int64) string {
	expr := DefaultOperandExpression(op.Mode, value)
	if expr == nil {
		return op.Mnemonic
	}
	return op.Mnemonic + " " + db.Sprint(expr)
}
