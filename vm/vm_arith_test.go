package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embedvm/corevm/class"
	"github.com/embedvm/corevm/irep"
	"github.com/embedvm/corevm/mem"
	"github.com/embedvm/corevm/opcode"
	"github.com/embedvm/corevm/symbol"
	"github.com/embedvm/corevm/value"
)

func newTestVM() (*VM, *symbol.Table) {
	syms := symbol.New(0)
	rt := class.NewRuntime(syms)
	arena := mem.NewArena(1 << 16)
	return New(rt, arena, syms, 0, nil), syms
}

func u16(v int) [2]byte { return [2]byte{byte(v >> 8), byte(v)} }

func TestOpArithFixnumFastPath(t *testing.T) {
	v, _ := newTestVM()
	var code []byte
	code = append(code, byte(opcode.LOADI), 0)
	b := u16(10)
	code = append(code, b[0], b[1])
	code = append(code, byte(opcode.LOADI), 1)
	b = u16(20)
	code = append(code, b[0], b[1])
	code = append(code, byte(opcode.ADD), 0)
	code = append(code, byte(opcode.RETURN), 0)

	v.Load(&irep.IREP{NumRegisters: 4, Code: code})
	require.NoError(t, v.Run(-1))
	assert.True(t, v.Preempted())
	assert.Equal(t, int64(30), v.reg(0).Int())
}

func TestOpArithDivisionByZero(t *testing.T) {
	v, _ := newTestVM()
	var code []byte
	code = append(code, byte(opcode.LOADI), 0)
	b := u16(10)
	code = append(code, b[0], b[1])
	code = append(code, byte(opcode.LOADI), 1)
	b = u16(0)
	code = append(code, b[0], b[1])
	code = append(code, byte(opcode.DIV), 0)
	code = append(code, byte(opcode.RETURN), 0)

	v.Load(&irep.IREP{NumRegisters: 4, Code: code})
	err := v.Run(-1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestOpCompareLessThan(t *testing.T) {
	v, _ := newTestVM()
	var code []byte
	code = append(code, byte(opcode.LOADI), 0)
	b := u16(3)
	code = append(code, b[0], b[1])
	code = append(code, byte(opcode.LOADI), 1)
	b = u16(5)
	code = append(code, b[0], b[1])
	code = append(code, byte(opcode.LT), 0)
	code = append(code, byte(opcode.RETURN), 0)

	v.Load(&irep.IREP{NumRegisters: 4, Code: code})
	require.NoError(t, v.Run(-1))
	assert.Equal(t, value.TRUE, v.reg(0).Tag)
}
