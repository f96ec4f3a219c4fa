package vm

import (
	"github.com/embedvm/corevm/class"
	"github.com/embedvm/corevm/opcode"
	"github.com/embedvm/corevm/value"
)

// isAncestor reports whether ancestor appears in cls's own super chain
// (inclusive of cls itself), the "is-a" test RESCUE needs to match a
// pending exception's class against a rescue clause's class.
func isAncestor(ancestor, cls *class.Class) bool {
	for c := cls; c != nil; c = c.Super {
		if c == ancestor {
			return true
		}
	}
	return false
}

// opRescue implements RESCUE: test the pending exception's class against
// the class in register a, set register b to the boolean result, and
// clear the pending exception on a match (spec §4.6).
func (v *VM) opRescue(a, b, ip int) error {
	if v.pending.Tag != value.OBJECT {
		v.setReg(b, value.False())
		return nil
	}
	testCls := class.ClassOf(v.reg(a))
	pendingCls := class.InstanceOf(v.pending).Class
	matched := testCls != nil && isAncestor(testCls, pendingCls)
	v.setReg(b, value.Bool(matched))
	if matched {
		v.pending.Release()
		v.pending = value.Nil()
	}
	return nil
}

// opRaise implements RAISE: set the pending exception from register a
// and signal an unwind (spec §4.6). The unwind itself happens in
// handleError, which consults the rescue stack this error bubbles past.
func (v *VM) opRaise(a, ip int) error {
	exc := v.reg(a).Retain()
	v.pending.Release()
	v.pending = exc
	return newError(ErrUncaught, opcode.RAISE, ip, "raised")
}

// opEpop implements EPOP: pop a ensure frames, running each one's ensure
// block as if by EXEC before discarding it (spec §4.6).
func (v *VM) opEpop(a, ip int) error {
	for i := 0; i < a && v.rescue != nil; i++ {
		top := v.rescue
		v.rescue = top.Prev
		if top.IsEnsure {
			if err := v.runChild(top.ChildIdx); err != nil {
				return err
			}
		}
	}
	return nil
}

// runChild executes child IREP idx of the current IREP to completion
// against the current self, in a fresh register window — the "as if by
// EXEC" semantics EPOP and CLASS/MODULE bodies need.
func (v *VM) runChild(idx int) error {
	child, err := v.cur.Child(idx)
	if err != nil {
		return newError(ErrBadChildIndex, opcode.EPOP, v.ip, err.Error())
	}
	m := &class.Method{Kind: class.Bytecode, Body: child}
	var owner *class.Class
	if v.ci != nil {
		owner = v.ci.TargetClass
	}
	_, err = v.callBytecode(m, owner, owner, v.selfValue(), nil, value.Nil(), nil, v.cur.NumRegisters)
	return err
}

// unwindToRescue implements RAISE's unwind: pop call-stack frames down to
// the depth the nearest rescue/ensure frame was pushed at, running ensure
// blocks along the way, until a genuine rescue frame is reached (control
// transfers to its handler PC) or the handler stack is exhausted (the
// exception propagates out of Run), per spec §4.6.
func (v *VM) unwindToRescue() error {
	for v.rescue != nil {
		top := v.rescue
		v.rescue = top.Prev

		for v.depth() > top.CallDepth {
			v.popCallInfo()
		}

		if top.IsEnsure {
			if err := v.runChild(top.ChildIdx); err != nil {
				return err
			}
			continue
		}
		v.ip = top.HandlerPC
		return nil
	}
	return &Error{Kind: ErrUncaught, Detail: "no matching rescue frame"}
}
