package kernel

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
	"github.com/embedvm/corevm/vm"
)

func newHost(t *testing.T) (*vm.VM, *class.Runtime, func() string) {
	syms := symbol.New(0)
	rt := class.NewRuntime(syms)
	arena := mem.NewArena(1 << 16)
	var out string
	Register(rt, func(s string) { out += s })
	v := vm.New(rt, arena, syms, 0, nil)
	return v, rt, func() string { return out }
}

func TestPutsWritesEachArgumentWithNewline(t *testing.T) {
	v, rt, out := newHost(t)
	syms := v.Symbols()
	puts, _ := rt.Object().Lookup(syms.MustIntern("puts"))
	require.NotNil(t, puts)

	s := value.NewString(v.Arena(), v.VMID(), "hi")
	_, err := puts.Fn(v, value.Nil(), []value.Value{s})
	require.NoError(t, err)
	assert.Equal(t, "hi\n", out())
}

func TestPutsWithNoArgumentsWritesBlankLine(t *testing.T) {
	v, rt, out := newHost(t)
	syms := v.Symbols()
	puts, _ := rt.Object().Lookup(syms.MustIntern("puts"))
	require.NotNil(t, puts)

	_, err := puts.Fn(v, value.Nil(), nil)
	require.NoError(t, err)
	assert.Equal(t, "\n", out())
}

func TestPNativeInspectsAndRetainsSingleArg(t *testing.T) {
	v, rt, out := newHost(t)
	syms := v.Symbols()
	p, _ := rt.Object().Lookup(syms.MustIntern("p"))
	require.NotNil(t, p)

	s := value.NewString(v.Arena(), v.VMID(), "hi")
	result, err := p.Fn(v, value.Nil(), []value.Value{s})
	require.NoError(t, err)
	assert.Equal(t, "\"hi\"\n", out())
	assert.Equal(t, value.STRING, result.Tag)
	assert.Equal(t, int32(2), s.Ref().Count())
}

func TestPNativeReturnsArrayForMultipleArgs(t *testing.T) {
	v, rt, _ := newHost(t)
	syms := v.Symbols()
	p, _ := rt.Object().Lookup(syms.MustIntern("p"))
	require.NotNil(t, p)

	result, err := p.Fn(v, value.Nil(), []value.Value{value.Fixnum(1), value.Fixnum(2)})
	require.NoError(t, err)
	require.Equal(t, value.ARRAY, result.Tag)
	assert.Len(t, value.ArrayOf(result).Elems, 2)
}

func TestSprintfFormatsUsingFormatPackage(t *testing.T) {
	v, rt, _ := newHost(t)
	syms := v.Symbols()
	sprintf, _ := rt.Object().Lookup(syms.MustIntern("sprintf"))
	require.NotNil(t, sprintf)

	spec := value.NewString(v.Arena(), v.VMID(), "%d-%s")
	result, err := sprintf.Fn(v, value.Nil(), []value.Value{spec, value.Fixnum(7), value.NewString(v.Arena(), v.VMID(), "x")})
	require.NoError(t, err)
	assert.Equal(t, "7-x", value.StrOf(result).Go())
}

func TestIntegerTimesReturnsReceiver(t *testing.T) {
	v, rt, _ := newHost(t)
	syms := v.Symbols()
	intCls, ok := rt.LookupClass(syms.MustIntern("Integer"))
	require.True(t, ok)
	timesM, _ := intCls.Lookup(syms.MustIntern("times"))
	require.NotNil(t, timesM)

	blk := capturedBlock(t, v)

	result, err := timesM.Fn(v, value.Fixnum(3), []value.Value{blk})
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Int())
}

// capturedBlock drives a BLOCK opcode through a real VM run to obtain a
// PROC value, the only way to construct one from outside the vm package.
func capturedBlock(t *testing.T, v *vm.VM) value.Value {
	t.Helper()
	var childCode []byte
	childCode = append(childCode, byte(opcode.RETURN), 1)
	child := &irep.IREP{NumRegisters: 4, Code: childCode}

	code := []byte{byte(opcode.BLOCK), 5, 0, byte(opcode.STOP)}
	root := &irep.IREP{NumRegisters: 8, Children: []*irep.IREP{child}, Code: code}
	v.Load(root)
	require.NoError(t, v.Run(-1))
	return v.Window(6)[5]
}

func TestArrayEachReturnsReceiver(t *testing.T) {
	v, rt, _ := newHost(t)
	syms := v.Symbols()
	arrCls, ok := rt.LookupClass(syms.MustIntern("Array"))
	require.True(t, ok)
	eachM, _ := arrCls.Lookup(syms.MustIntern("each"))
	require.NotNil(t, eachM)

	arr := value.NewArray([]value.Value{value.Fixnum(1), value.Fixnum(2), value.Fixnum(3)})
	blk := capturedBlock(t, v)

	result, err := eachM.Fn(v, arr, []value.Value{blk})
	require.NoError(t, err)
	assert.Equal(t, value.ARRAY, result.Tag)
}
