package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embedvm/corevm/irep"
	"github.com/embedvm/corevm/opcode"
	"github.com/embedvm/corevm/value"
)

// TestOpBlockCapturesAndCallBlockInvokes builds a child IREP that adds one
// to its sole argument, captures it as a Proc via BLOCK, then drives it
// through CallBlock the way a native iterator method does.
func TestOpBlockCapturesAndCallBlockInvokes(t *testing.T) {
	v, _ := newTestVM()

	var childCode []byte
	childCode = append(childCode, byte(opcode.LOADI), 2)
	b := u16(1)
	childCode = append(childCode, b[0], b[1])
	childCode = append(childCode, byte(opcode.ADD), 1)
	childCode = append(childCode, byte(opcode.RETURN), 1)
	child := &irep.IREP{NumRegisters: 4, Code: childCode}

	root := &irep.IREP{NumRegisters: 8, Children: []*irep.IREP{child}}
	v.Load(root)

	require.NoError(t, v.opBlock(5, 0, 0))
	assert.Equal(t, value.PROC, v.reg(5).Tag)

	result, err := v.CallBlock(v.reg(5), []value.Value{value.Fixnum(41)})
	require.NoError(t, err)
	assert.Equal(t, int64(42), result.Int())
}
