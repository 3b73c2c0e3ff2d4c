package disasm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"nesdis/internal/addr"
)

func TestTableCoversLDAImmediate(t *testing.T) {
	op := Table[0xA9]
	assert.Equal(t, "LDA", op.Mnemonic)
	assert.Equal(t, addr.Immediate, op.Mode)
	assert.Equal(t, 2, op.Size())
	assert.False(t, op.Illegal)
}

func TestIllegalOpcodeMarked(t *testing.T) {
	op := Table[0x02]
	assert.True(t, op.Illegal)
}

func TestBranchTargetForwardAndBackward(t *testing.T) {
	assert.Equal(t, uint16(0x8010), BranchTarget(0x8000, 0x10))
	assert.Equal(t, uint16(0x7FF0), BranchTarget(0x8000, -16))
}

func TestFormatInstructionImmediate(t *testing.T) {
	s := FormatInstruction(Table[0xA9], 0x01)
	assert.Equal(t, "LDA #$01", s)
}

func TestFormatInstructionIndexedIndirect(t *testing.T) {
	s := FormatInstruction(Table[0x61], 0x20)
	assert.Equal(t, "ADC ($20,X)", s)
}

func TestFormatInstructionAbsoluteY(t *testing.T) {
	s := FormatInstruction(Table[0x39], 0x2000)
	assert.Equal(t, "AND $2000,Y", s)
}
