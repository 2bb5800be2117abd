package bytecode

import (
	"testing"

	"github.com/nalgeon/be"
)

func TestOpcodeByteValuesMatchContract(t *testing.T) {
	be.Equal(t, byte(PUSH), byte(0x01))
	be.Equal(t, byte(CALL), byte(0x18))
	be.Equal(t, byte(PUSH_BP), byte(0x24))
	be.Equal(t, byte(ALLOC), byte(0x29))
	be.Equal(t, byte(FPUSH), byte(0x30))
	be.Equal(t, byte(INT_TO_FP), byte(0x3C))
	be.Equal(t, byte(HALT), byte(0xFF))
}

func TestOperandSizes(t *testing.T) {
	be.Equal(t, OperandSize(PUSH), 4)
	be.Equal(t, OperandSize(CALL), 4)
	be.Equal(t, OperandSize(POP), 0)
	be.Equal(t, HasOperand(JZ), true)
	be.Equal(t, HasOperand(HALT), false)
}

func TestUnknownOpcodeString(t *testing.T) {
	got := Op(0x99).String()
	be.Equal(t, got, "UNKNOWN(0x99)")
}
