package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embedvm/corevm/class"
	"github.com/embedvm/corevm/irep"
	"github.com/embedvm/corevm/opcode"
	"github.com/embedvm/corevm/value"
)

// s16 big-endian encodes a 16-bit operand, matching fetch16's byte order.
func s16(v int) [2]byte { return [2]byte{byte(v >> 8), byte(v)} }

func TestRescueCatchesMatchingRaise(t *testing.T) {
	v, syms := newTestVM()
	errCls := v.RT.DefineClass(syms.MustIntern("MyError"), nil)
	exc := class.NewInstance(errCls)

	var code []byte
	// ip0: ONERR -> handler (patched below)
	onerrAt := len(code)
	code = append(code, byte(opcode.ONERR), 0, 0)
	// ip3: RAISE r0
	code = append(code, byte(opcode.RAISE), 0)
	// ip5: LOADI r3, 999 (skipped by the unwind; proves control doesn't fall through)
	code = append(code, byte(opcode.LOADI), 3)
	b := u16(999)
	code = append(code, b[0], b[1])
	// ip9: RETURN r3 (dead code, same reason)
	code = append(code, byte(opcode.RETURN), 3)

	handlerPC := len(code)
	hb := s16(handlerPC)
	code[onerrAt+1], code[onerrAt+2] = hb[0], hb[1]

	// handler: RESCUE r1,r2 ; RETURN r2
	code = append(code, byte(opcode.RESCUE), 1, 2)
	code = append(code, byte(opcode.RETURN), 2)

	v.Load(&irep.IREP{NumRegisters: 4, Code: code})
	v.setReg(0, exc)
	v.setReg(1, class.NewClassValue(errCls))

	require.NoError(t, v.Run(-1))
	assert.Equal(t, value.TRUE, v.reg(2).Tag)
	assert.Equal(t, value.NIL, v.pending.Tag, "matched rescue clears the pending exception")
}

func TestRescueDoesNotCatchUnrelatedClass(t *testing.T) {
	v, syms := newTestVM()
	errCls := v.RT.DefineClass(syms.MustIntern("MyError"), nil)
	otherCls := v.RT.DefineClass(syms.MustIntern("OtherError"), nil)
	exc := class.NewInstance(errCls)

	var code []byte
	onerrAt := len(code)
	code = append(code, byte(opcode.ONERR), 0, 0)
	code = append(code, byte(opcode.RAISE), 0)

	handlerPC := len(code)
	hb := s16(handlerPC)
	code[onerrAt+1], code[onerrAt+2] = hb[0], hb[1]

	code = append(code, byte(opcode.RESCUE), 1, 2)
	code = append(code, byte(opcode.RETURN), 2)

	v.Load(&irep.IREP{NumRegisters: 4, Code: code})
	v.setReg(0, exc)
	v.setReg(1, class.NewClassValue(otherCls))

	require.NoError(t, v.Run(-1))
	assert.Equal(t, value.FALSE, v.reg(2).Tag)
	assert.Equal(t, value.OBJECT, v.pending.Tag, "unmatched rescue leaves the exception pending")
}

func TestRaiseWithNoRescueFramePropagates(t *testing.T) {
	v, syms := newTestVM()
	errCls := v.RT.DefineClass(syms.MustIntern("MyError"), nil)
	exc := class.NewInstance(errCls)

	code := []byte{byte(opcode.RAISE), 0, byte(opcode.RETURN), 0}
	v.Load(&irep.IREP{NumRegisters: 2, Code: code})
	v.setReg(0, exc)

	err := v.Run(-1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUncaught)
}
