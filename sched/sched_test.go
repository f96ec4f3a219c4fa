package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embedvm/corevm/class"
	"github.com/embedvm/corevm/irep"
	"github.com/embedvm/corevm/mem"
	"github.com/embedvm/corevm/opcode"
	"github.com/embedvm/corevm/symbol"
	"github.com/embedvm/corevm/vm"
)

func stopOnlyIREP() *irep.IREP {
	return &irep.IREP{NumRegisters: 1, Code: []byte{byte(opcode.STOP)}}
}

func newTask(rt *class.Runtime, a *mem.Arena, syms *symbol.Table, id int32) *vm.VM {
	v := vm.New(rt, a, syms, id, nil)
	v.Load(stopOnlyIREP())
	return v
}

func TestSchedulerRunsEveryTaskToCompletion(t *testing.T) {
	syms := symbol.New(0)
	rt := class.NewRuntime(syms)
	arena := mem.NewArena(4096)

	s := New(10)
	id1 := s.Spawn(newTask(rt, arena, syms, 1))
	id2 := s.Spawn(newTask(rt, arena, syms, 2))

	assert.Equal(t, 2, s.Runnable())
	require.NoError(t, s.RunUntilDone())
	assert.Equal(t, 0, s.Runnable())
	assert.NoError(t, s.Err(id1))
	assert.NoError(t, s.Err(id2))
}

func TestSchedulerSleepWake(t *testing.T) {
	syms := symbol.New(0)
	rt := class.NewRuntime(syms)
	arena := mem.NewArena(4096)

	s := New(10)
	id := s.Spawn(newTask(rt, arena, syms, 1))

	require.NoError(t, s.Sleep(id))
	assert.Equal(t, 0, s.Runnable())
	require.NoError(t, s.Wake(id))
	assert.Equal(t, 1, s.Runnable())
}

func TestSchedulerUnknownTaskErrors(t *testing.T) {
	s := New(10)
	assert.ErrorIs(t, s.Sleep(TaskID{}), ErrUnknownTask)
}
