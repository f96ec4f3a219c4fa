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

func TestOpSendDispatchesNativeMethod(t *testing.T) {
	v, syms := newTestVM()
	cls := v.RT.DefineClass(syms.MustIntern("Greeter"), nil)
	cls.DefineMethod(syms.MustIntern("hello"), &class.Method{
		Kind: class.Native,
		Fn: func(h class.Host, recv value.Value, args []value.Value) (value.Value, error) {
			return value.Fixnum(42), nil
		},
	})
	inst := class.NewInstance(cls)

	code := []byte{byte(opcode.SEND), 0, 0, 0, byte(opcode.RETURN), 0}
	root := &irep.IREP{NumRegisters: 4, Locals: []string{"hello"}, Code: code}
	v.Load(root)
	v.setReg(0, inst)

	require.NoError(t, v.Run(-1))
	assert.Equal(t, int64(42), v.reg(0).Int())
}

func TestOpSendMissingMethodErrors(t *testing.T) {
	v, syms := newTestVM()
	cls := v.RT.DefineClass(syms.MustIntern("Empty"), nil)
	inst := class.NewInstance(cls)

	code := []byte{byte(opcode.SEND), 0, 0, 0, byte(opcode.RETURN), 0}
	root := &irep.IREP{NumRegisters: 4, Locals: []string{"missing"}, Code: code}
	v.Load(root)
	v.setReg(0, inst)

	err := v.Run(-1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMethodNotFound)
}

func TestOpSendWithArguments(t *testing.T) {
	v, syms := newTestVM()
	cls := v.RT.DefineClass(syms.MustIntern("Adder"), nil)
	cls.DefineMethod(syms.MustIntern("add"), &class.Method{
		Kind: class.Native,
		Fn: func(h class.Host, recv value.Value, args []value.Value) (value.Value, error) {
			return value.Fixnum(args[0].Int() + args[1].Int()), nil
		},
	})
	inst := class.NewInstance(cls)

	code := []byte{byte(opcode.SEND), 0, 0, 2, byte(opcode.RETURN), 0}
	root := &irep.IREP{NumRegisters: 4, Locals: []string{"add"}, Code: code}
	v.Load(root)
	v.setReg(0, inst)
	v.setReg(1, value.Fixnum(4))
	v.setReg(2, value.Fixnum(5))

	require.NoError(t, v.Run(-1))
	assert.Equal(t, int64(9), v.reg(0).Int())
}
