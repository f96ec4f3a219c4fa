package vm

import (
	"github.com/embedvm/corevm/class"
	"github.com/embedvm/corevm/opcode"
	"github.com/embedvm/corevm/symbol"
	"github.com/embedvm/corevm/value"
)

// pushCallInfo records the caller's snapshot and shifts the current-regs
// base, per spec §4.7's push_callinfo(method-id, reg_offset, n_args).
func (v *VM) pushCallInfo(regOffset int, methodID symbol.ID, nargs int, target, owner *class.Class, proc *Proc) *CallInfo {
	ci := &CallInfo{
		CallerIREP:  v.cur,
		CallerIP:    v.ip,
		RegOffset:   regOffset,
		MethodID:    methodID,
		NumArgs:     nargs,
		TargetClass: target,
		OwnerClass:  owner,
		Proc:        proc,
		Prev:        v.ci,
	}
	v.base += regOffset
	v.ci = ci
	return ci
}

// popCallInfo restores IREP, PC, and register base from the top callinfo
// frame, per spec §4.7's pop_callinfo.
func (v *VM) popCallInfo() *CallInfo {
	ci := v.ci
	if ci == nil {
		return nil
	}
	v.cur = ci.CallerIREP
	v.ip = ci.CallerIP
	v.base -= ci.RegOffset
	v.ci = ci.Prev
	return ci
}

// callBytecode pushes a frame for body, installs self/args/block into the
// new window, and runs to completion via nested step() calls, returning
// the value left in the new window's register 0 by RETURN. Used by
// SEND/SUPER for bytecode methods and by CallBlock for invoking a Proc.
func (v *VM) callBytecode(body *class.Method, owner, target *class.Class, self value.Value, args []value.Value, block value.Value, proc *Proc, regOffset int) (value.Value, error) {
	ci := v.pushCallInfo(regOffset, body.Name, len(args), target, owner, proc)
	resultIdx := v.base

	v.cur = body.Body
	v.ip = 0

	v.setReg(0, self.Retain())
	for i, arg := range args {
		v.setReg(1+i, arg.Retain())
	}
	v.setReg(len(args)+1, block)

	for v.ci == ci && !v.preempt {
		if err := v.step(); err != nil {
			return value.Nil(), err
		}
	}
	return v.regs[resultIdx], nil
}

// CallBlock implements class.Host: invoke a PROC value synchronously,
// the mechanism native iteration methods (Array#each and similar) use to
// run a caller-supplied block.
func (v *VM) CallBlock(blk value.Value, args []value.Value) (value.Value, error) {
	if blk.Tag != value.PROC {
		return value.Nil(), newError(ErrBadOperand, opcode.SEND, v.ip, "CallBlock on a non-proc value")
	}
	proc := blk.Ref().Data.(*Proc)
	m := &class.Method{Kind: class.Bytecode, Body: proc.Body}
	var owner *class.Class
	if proc.Captured != nil {
		owner = proc.Captured.OwnerClass
	}
	return v.callBytecode(m, owner, proc.DefiningClass, proc.CallinfoSelf, args, value.Nil(), proc, v.cur.NumRegisters)
}

// gatherArgs collects argc consecutive argument registers starting at
// a+1, expanding a trailing splat array when argc == opcode.SplatArg
// (spec §4.6: "caller passed a single splat value").
func (v *VM) gatherArgs(a, argc int) ([]value.Value, error) {
	if argc == opcode.SplatArg {
		arg0 := v.reg(a + 1)
		if arg0.Tag != value.ARRAY {
			return nil, newError(ErrBadOperand, opcode.SEND, v.ip, "splat send argument is not an array")
		}
		elems := value.ArrayOf(arg0).Elems
		out := make([]value.Value, len(elems))
		copy(out, elems)
		return out, nil
	}
	out := make([]value.Value, argc)
	for i := 0; i < argc; i++ {
		out[i] = v.reg(a + 1 + i)
	}
	return out, nil
}

// invoke resolves name on cls and executes it against the receiver
// sitting in register a, placing the result back in register a. argc is
// the declared (pre-splat-expansion) argument count, used only to locate
// the block operand at a+argc+2 when hasBlock is set.
func (v *VM) invoke(a int, name symbol.ID, cls *class.Class, argc int, hasBlock bool, ip int) error {
	m, foundOn := cls.Lookup(name)
	if m == nil {
		return newError(ErrMethodNotFound, opcode.SEND, ip, "no method for selector")
	}
	args, err := v.gatherArgs(a, argc)
	if err != nil {
		return err
	}
	block := value.Nil()
	if hasBlock {
		block = v.reg(a + argc + 2)
	}
	recv := v.reg(a)

	if m.Kind == class.Native {
		result, err := m.Fn(v, recv, args)
		if err != nil {
			return err
		}
		v.setReg(a, result)
		return nil
	}
	result, err := v.callBytecode(m, foundOn, cls, recv, args, block, nil, a)
	if err != nil {
		return err
	}
	v.setReg(a, result)
	return nil
}

// opSend implements SEND/SENDB/SENDV/SENDVB (spec §4.6).
func (v *VM) opSend(a, b, argc int, hasBlock, isSplat bool, ip int) error {
	name, err := v.symAt(b)
	if err != nil {
		return err
	}
	recv := v.reg(a)
	cls, ok := v.classOf(recv)
	if !ok {
		return newError(ErrClassNotFound, opcode.SEND, ip, "receiver has no resolvable class")
	}
	if isSplat {
		argc = opcode.SplatArg
	}
	return v.invoke(a, name, cls, argc, hasBlock, ip)
}

// opSuper implements SUPER: resolve on the owning class's super rather
// than the receiver's own class (spec §4.6).
func (v *VM) opSuper(a, argc, ip int) error {
	if v.ci == nil || v.ci.OwnerClass == nil {
		return newError(ErrMethodNotFound, opcode.SUPER, ip, "SUPER outside a method body")
	}
	name := v.ci.MethodID
	m, foundOn := class.SuperLookup(v.ci.OwnerClass, name)
	if m == nil {
		return newError(ErrMethodNotFound, opcode.SUPER, ip, "no super method for selector")
	}
	if argc == opcode.SplatSuper {
		argc = opcode.SplatArg
	}
	args, err := v.gatherArgs(a, argc)
	if err != nil {
		return err
	}
	recv := v.reg(0)
	if m.Kind == class.Native {
		result, err := m.Fn(v, recv, args)
		if err != nil {
			return err
		}
		v.setReg(a, result)
		return nil
	}
	result, err := v.callBytecode(m, foundOn, v.ci.TargetClass, recv, args, value.Nil(), nil, a)
	if err != nil {
		return err
	}
	v.setReg(a, result)
	return nil
}

// opArgAry implements ARGARY: synthesize a splat array from the current
// frame's declared arguments, for forwarding to SUPER (spec §4.6).
func (v *VM) opArgAry(a, _ int, ip int) error {
	if v.ci == nil {
		v.setReg(a, value.NewArray(nil))
		return nil
	}
	n := v.ci.NumArgs
	elems := make([]value.Value, n)
	for i := 0; i < n; i++ {
		elems[i] = v.reg(1 + i).Retain()
	}
	v.setReg(a, value.NewArray(elems))
	return nil
}

// opReturn implements RETURN: pop one frame, place the result in the
// caller's register window; a top-level return sets preemption (spec
// §4.6).
func (v *VM) opReturn(a, ip int) error {
	result := v.reg(a).Retain()
	if v.ci == nil {
		v.setReg(a, result)
		v.preempt = true
		return nil
	}
	popped := v.popCallInfo()
	v.setReg(popped.RegOffset, result)
	return nil
}

// opReturnBlock implements RETURN_BLK: unwind through every frame down to
// the one that created the active proc (non-local return).
func (v *VM) opReturnBlock(a, ip int) error {
	result := v.reg(a).Retain()
	for v.ci != nil && v.ci.Proc == nil {
		v.popCallInfo()
	}
	if v.ci == nil {
		v.preempt = true
		v.setReg(a, result)
		return nil
	}
	popped := v.popCallInfo()
	v.setReg(popped.RegOffset, result)
	return nil
}

// opBreak implements BREAK: unwind to the caller that passed the active
// block, one frame short of opReturnBlock's full non-local unwind.
func (v *VM) opBreak(a, ip int) error {
	result := v.reg(a).Retain()
	if v.ci == nil {
		v.preempt = true
		v.setReg(a, result)
		return nil
	}
	popped := v.popCallInfo()
	v.setReg(popped.RegOffset, result)
	return nil
}
