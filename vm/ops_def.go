package vm

import (
	"github.com/embedvm/corevm/class"
	"github.com/embedvm/corevm/opcode"
	"github.com/embedvm/corevm/value"
)

// opBlock implements BLOCK/METHOD: create a Proc wrapping child IREP b,
// capturing the active callinfo and lexical self so GETUPVAR/SETUPVAR and
// a later non-local RETURN_BLK can find their way back (spec §4.6/§4.7).
func (v *VM) opBlock(a, childIdx, ip int) error {
	child, err := v.cur.Child(childIdx)
	if err != nil {
		return newError(ErrBadChildIndex, opcode.BLOCK, ip, err.Error())
	}
	var defining *class.Class
	if v.ci != nil {
		defining = v.ci.TargetClass
	}
	proc := &Proc{
		Body:          child,
		Captured:      v.ci,
		CallinfoSelf:  v.selfValue(),
		DefiningClass: defining,
	}
	ref := value.NewRef(proc, func() {})
	v.setReg(a, value.FromRef(value.PROC, ref))
	return nil
}

// opDef implements DEF: install the Proc in register a as a method named
// by symbol index b on the current target class (spec §4.6).
func (v *VM) opDef(a, symIdx, ip int) error {
	name, err := v.symAt(symIdx)
	if err != nil {
		return err
	}
	procVal := v.reg(a)
	if procVal.Tag != value.PROC {
		return newError(ErrBadOperand, opcode.DEF, ip, "DEF register does not hold a proc")
	}
	proc := procVal.Ref().Data.(*Proc)
	target := v.targetClass()
	target.DefineMethod(name, &class.Method{Kind: class.Bytecode, Body: proc.Body})
	return nil
}

// opAlias implements ALIAS: install a second method record for the
// existing method named by symbol index b under the new name at symbol
// index a (spec §4.6).
func (v *VM) opAlias(a, b, ip int) error {
	newName, err := v.symAt(a)
	if err != nil {
		return err
	}
	oldName, err := v.symAt(b)
	if err != nil {
		return err
	}
	target := v.targetClass()
	m, _ := target.Lookup(oldName)
	if m == nil {
		return newError(ErrMethodNotFound, opcode.ALIAS, ip, "ALIAS source method not found")
	}
	alias := *m
	alias.Next = nil
	target.DefineMethod(newName, &alias)
	return nil
}

// opClass implements CLASS/MODULE: define (or re-open) the class named by
// symbol index b, optionally under the superclass in register a, and
// leave the class value in register a for the following EXEC to run the
// body against (spec §4.6).
func (v *VM) opClass(a, symIdx, ip int) error {
	name, err := v.symAt(symIdx)
	if err != nil {
		return err
	}
	var super *class.Class
	if v.reg(a).Tag == value.CLASS {
		super = class.ClassOf(v.reg(a))
	}
	cls := v.RT.DefineClass(name, super)
	v.setReg(a, class.NewClassValue(cls))
	return nil
}

// opExec implements EXEC: run child IREP b as the class/module body, with
// self and the target-class register both set to the class value sitting
// in register a (spec §4.6).
func (v *VM) opExec(a, childIdx, ip int) error {
	child, err := v.cur.Child(childIdx)
	if err != nil {
		return newError(ErrBadChildIndex, opcode.EXEC, ip, err.Error())
	}
	clsVal := v.reg(a)
	cls := class.ClassOf(clsVal)
	m := &class.Method{Kind: class.Bytecode, Body: child}
	result, err := v.callBytecode(m, cls, cls, clsVal, nil, value.Nil(), nil, v.cur.NumRegisters)
	if err != nil {
		return err
	}
	v.setReg(a, result)
	return nil
}

// targetClass returns the class new methods/constants install onto: the
// active frame's target class, or the runtime's root Object class at
// top level.
func (v *VM) targetClass() *class.Class {
	if v.ci != nil && v.ci.TargetClass != nil {
		return v.ci.TargetClass
	}
	return v.RT.Object()
}
