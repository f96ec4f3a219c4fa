package vm

import (
	"github.com/embedvm/corevm/class"
	"github.com/embedvm/corevm/irep"
	"github.com/embedvm/corevm/value"
)

// opLoadL implements LOADL: dest register a gets a copy of literal pool
// entry b (spec §4.6: "LOADL (pool)").
func (v *VM) opLoadL(a, poolIdx, ip int) error {
	if poolIdx < 0 || poolIdx >= len(v.cur.Pool) {
		return newError(ErrBadOperand, 0, ip, "literal pool index out of range")
	}
	lit := v.cur.Pool[poolIdx]
	var val value.Value
	switch lit.Kind {
	case irep.LitInt:
		val = value.Fixnum(lit.I)
	case irep.LitFloat:
		val = value.Float(lit.F)
	case irep.LitString:
		val = value.NewString(v.arena, v.id, lit.S)
	default:
		return newError(ErrBadOperand, 0, ip, "unknown literal kind in pool")
	}
	v.setReg(a, val)
	return nil
}

// opLoadSym implements LOADSYM: dest register a gets the interned symbol
// named by the string literal at pool index b.
func (v *VM) opLoadSym(a, poolIdx, ip int) error {
	if poolIdx < 0 || poolIdx >= len(v.cur.Pool) {
		return newError(ErrBadOperand, 0, ip, "literal pool index out of range")
	}
	lit := v.cur.Pool[poolIdx]
	if lit.Kind != irep.LitString {
		return newError(ErrBadOperand, 0, ip, "LOADSYM pool entry is not a string")
	}
	v.setReg(a, value.Sym(v.syms.MustIntern(lit.S)))
	return nil
}

// opGetGV implements GETGV: dest register a gets global named by symbol
// table index b.
func (v *VM) opGetGV(a, symIdx, ip int) error {
	id, err := v.symAt(symIdx)
	if err != nil {
		return err
	}
	v.setReg(a, v.RT.GetGlobal(id).Retain())
	return nil
}

// opSetGV implements SETGV: global named by symbol index b gets the
// value currently in register a.
func (v *VM) opSetGV(a, symIdx, ip int) error {
	id, err := v.symAt(symIdx)
	if err != nil {
		return err
	}
	v.RT.SetGlobal(id, v.reg(a))
	return nil
}

// opGetIV implements GETIV against self (register 0 of the active
// window).
func (v *VM) opGetIV(a, symIdx, ip int) error {
	id, err := v.symAt(symIdx)
	if err != nil {
		return err
	}
	self := v.selfValue()
	if self.Tag != value.OBJECT {
		v.setReg(a, value.Nil())
		return nil
	}
	v.setReg(a, class.InstanceOf(self).GetIVar(id).Retain())
	return nil
}

// opSetIV implements SETIV against self.
func (v *VM) opSetIV(a, symIdx, ip int) error {
	id, err := v.symAt(symIdx)
	if err != nil {
		return err
	}
	self := v.selfValue()
	if self.Tag != value.OBJECT {
		return newError(ErrNotClassOrObject, 0, ip, "SETIV on a non-object self")
	}
	class.InstanceOf(self).SetIVar(id, v.reg(a))
	return nil
}

// opGetConst implements GETCONST: resolve symbol index b against the
// current owning class (if any), falling back to globals (spec §4.6).
func (v *VM) opGetConst(a, symIdx, ip int) error {
	id, err := v.symAt(symIdx)
	if err != nil {
		return err
	}
	var owner *class.Class
	if v.ci != nil {
		owner = v.ci.TargetClass
	}
	val, err := v.RT.ResolveConstant(owner, id)
	if err != nil {
		return err
	}
	v.setReg(a, val.Retain())
	return nil
}

// opSetConst implements SETCONST: installs register a's value as a
// constant on the current owning class, or globally if there is none.
func (v *VM) opSetConst(a, symIdx, ip int) error {
	id, err := v.symAt(symIdx)
	if err != nil {
		return err
	}
	var owner *class.Class
	if v.ci != nil {
		owner = v.ci.TargetClass
	}
	if owner != nil {
		owner.DefineConstant(id, v.reg(a))
	} else {
		v.RT.SetConstant(id, v.reg(a))
	}
	return nil
}

// opGetMConst implements GETMCNST: resolve symbol index b by walking the
// super chain of the class in register a (spec §4.6).
func (v *VM) opGetMConst(a, symIdx, ip int) error {
	id, err := v.symAt(symIdx)
	if err != nil {
		return err
	}
	recv := v.reg(a)
	cls, ok := v.classOf(recv)
	if !ok {
		return newError(ErrClassNotFound, 0, ip, "GETMCNST receiver has no class")
	}
	val, ok := cls.ConstantChain(id)
	if !ok {
		return newError(ErrClassNotFound, 0, ip, "uninitialized constant")
	}
	v.setReg(a, val.Retain())
	return nil
}

// opGetUpvar implements GETUPVAR: walk c callinfo frames back along the
// call stack (see upvarFrame), then index b into that frame's window.
func (v *VM) opGetUpvar(a, b, c, ip int) error {
	ci, base, err := v.upvarFrame(c, ip)
	if err != nil {
		return err
	}
	idx := base + b
	if idx < 0 || idx >= len(v.regs) {
		return newError(ErrRegisterOOB, 0, ip, "GETUPVAR register out of range")
	}
	_ = ci
	v.setReg(a, v.regs[idx].Retain())
	return nil
}

// opSetUpvar implements SETUPVAR, the mirror of opGetUpvar.
func (v *VM) opSetUpvar(a, b, c, ip int) error {
	_, base, err := v.upvarFrame(c, ip)
	if err != nil {
		return err
	}
	idx := base + b
	if idx < 0 || idx >= len(v.regs) {
		return newError(ErrRegisterOOB, 0, ip, "SETUPVAR register out of range")
	}
	v.regs[idx].Release()
	v.regs[idx] = v.reg(a).Retain()
	return nil
}

// upvarFrame walks depth callinfo frames back along the dynamic Prev
// chain and returns that frame's register-window base. A proc's Captured
// callinfo is not consulted: the frame reached is the one that called
// into the block, which is the creating frame only when the block is
// invoked from the frame that created it.
func (v *VM) upvarFrame(depth, ip int) (*CallInfo, int, error) {
	ci := v.ci
	base := v.base
	for i := 0; i < depth; i++ {
		if ci == nil {
			return nil, 0, newError(ErrStackUnderflow, 0, ip, "upvar depth exceeds call stack")
		}
		base -= ci.RegOffset
		ci = ci.Prev
	}
	return ci, base, nil
}
