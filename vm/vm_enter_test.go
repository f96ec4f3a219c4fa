package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embedvm/corevm/value"
)

// packEnter builds the raw operand opEnter expects, mirroring its own
// bit-for-bit unpacking order (b, d, k, m2, r, o, m1 from the LSB up).
func packEnter(m1, o, r, m2, k, d, b int) int {
	return b | d<<1 | k<<2 | m2<<7 | r<<12 | o<<13 | m1<<18
}

func TestOpEnterRequiredOnly(t *testing.T) {
	v, _ := newTestVM()
	v.ci = &CallInfo{NumArgs: 2}
	v.regs[1] = value.Fixnum(10)
	v.regs[2] = value.Fixnum(20)
	v.regs[3] = value.Nil()

	require.NoError(t, v.opEnter(packEnter(2, 0, 0, 0, 0, 0, 0), 0))
	assert.Equal(t, int64(10), v.reg(1).Int())
	assert.Equal(t, int64(20), v.reg(2).Int())
}

func TestOpEnterOptionalDefaultsToNil(t *testing.T) {
	v, _ := newTestVM()
	v.ci = &CallInfo{NumArgs: 1}
	v.regs[1] = value.Fixnum(7)
	v.regs[2] = value.Nil()

	require.NoError(t, v.opEnter(packEnter(1, 1, 0, 0, 0, 0, 0), 0))
	assert.Equal(t, int64(7), v.reg(1).Int())
	assert.Equal(t, value.NIL, v.reg(2).Tag)
}

func TestOpEnterRestCollectsExtraArgs(t *testing.T) {
	v, _ := newTestVM()
	v.ci = &CallInfo{NumArgs: 3}
	v.regs[1] = value.Fixnum(1)
	v.regs[2] = value.Fixnum(2)
	v.regs[3] = value.Fixnum(3)
	v.regs[4] = value.Nil()

	require.NoError(t, v.opEnter(packEnter(1, 0, 1, 0, 0, 0, 0), 0))
	assert.Equal(t, int64(1), v.reg(1).Int())
	rest := value.ArrayOf(v.reg(2))
	require.Len(t, rest.Elems, 2)
	assert.Equal(t, int64(2), rest.Elems[0].Int())
	assert.Equal(t, int64(3), rest.Elems[1].Int())
}

func TestOpEnterTooFewArgumentsErrors(t *testing.T) {
	v, _ := newTestVM()
	v.ci = &CallInfo{NumArgs: 0}
	v.regs[1] = value.Nil()

	err := v.opEnter(packEnter(1, 0, 0, 0, 0, 0, 0), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrArgumentError)
}

func TestOpEnterTooManyArgumentsErrorsWithoutRest(t *testing.T) {
	v, _ := newTestVM()
	v.ci = &CallInfo{NumArgs: 2}
	v.regs[1] = value.Fixnum(1)
	v.regs[2] = value.Fixnum(2)
	v.regs[3] = value.Nil()

	err := v.opEnter(packEnter(1, 0, 0, 0, 0, 0, 0), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrArgumentError)
}
