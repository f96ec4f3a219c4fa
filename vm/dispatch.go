package vm

import (
	"github.com/embedvm/corevm/class"
	"github.com/embedvm/corevm/opcode"
	"github.com/embedvm/corevm/symbol"
	"github.com/embedvm/corevm/value"
)

// dispatch executes one already-decoded instruction. a/b/c are the raw
// operand fields per op's Pattern (unused fields are 0); startIP is the
// instruction's starting offset, recorded into Error for diagnostics.
func (v *VM) dispatch(op opcode.Op, a, b, c, startIP int) error {
	switch op {
	case opcode.NOP:
		return nil
	case opcode.STOP:
		v.preempt = true
		return nil

	case opcode.MOVE:
		v.setReg(a, v.reg(b).Retain())
		return nil
	case opcode.LOADL:
		return v.opLoadL(a, b, startIP)
	case opcode.LOADI:
		v.setReg(a, value.Fixnum(int64(b)))
		return nil
	case opcode.LOADINEG:
		v.setReg(a, value.Fixnum(-int64(b)))
		return nil
	case opcode.LOADSYM:
		return v.opLoadSym(a, b, startIP)
	case opcode.LOADNIL:
		v.setReg(a, value.Nil())
		return nil
	case opcode.LOADSELF:
		v.setReg(a, v.selfValue().Retain())
		return nil
	case opcode.LOADT:
		v.setReg(a, value.True())
		return nil
	case opcode.LOADF:
		v.setReg(a, value.False())
		return nil

	case opcode.GETGV:
		return v.opGetGV(a, b, startIP)
	case opcode.SETGV:
		return v.opSetGV(a, b, startIP)
	case opcode.GETIV:
		return v.opGetIV(a, b, startIP)
	case opcode.SETIV:
		return v.opSetIV(a, b, startIP)
	case opcode.GETCONST:
		return v.opGetConst(a, b, startIP)
	case opcode.SETCONST:
		return v.opSetConst(a, b, startIP)
	case opcode.GETMCNST:
		return v.opGetMConst(a, b, startIP)
	case opcode.GETUPVAR:
		return v.opGetUpvar(a, b, c, startIP)
	case opcode.SETUPVAR:
		return v.opSetUpvar(a, b, c, startIP)

	case opcode.JMP:
		v.ip = a
		return nil
	case opcode.JMPIF:
		if v.reg(a).Truthy() {
			v.ip = b
		}
		return nil
	case opcode.JMPNOT:
		if !v.reg(a).Truthy() {
			v.ip = b
		}
		return nil
	case opcode.JMPNIL:
		if v.reg(a).Tag == value.NIL {
			v.ip = b
		}
		return nil

	case opcode.ONERR:
		v.rescue = &RescueFrame{HandlerPC: a, CallDepth: v.depth(), Prev: v.rescue}
		return nil
	case opcode.EXCEPT:
		v.setReg(a, v.pending.Retain())
		return nil
	case opcode.RESCUE:
		return v.opRescue(a, b, startIP)
	case opcode.POPERR:
		for i := 0; i < a && v.rescue != nil; i++ {
			v.rescue = v.rescue.Prev
		}
		return nil
	case opcode.RAISE:
		return v.opRaise(a, startIP)
	case opcode.EPUSH:
		v.rescue = &RescueFrame{IsEnsure: true, ChildIdx: a, CallDepth: v.depth(), Prev: v.rescue}
		return nil
	case opcode.EPOP:
		return v.opEpop(a, startIP)

	case opcode.SEND:
		return v.opSend(a, b, c, false, false, startIP)
	case opcode.SENDB:
		return v.opSend(a, b, c, true, false, startIP)
	case opcode.SENDV:
		return v.opSend(a, b, opcode.SplatArg, false, true, startIP)
	case opcode.SENDVB:
		return v.opSend(a, b, opcode.SplatArg, true, true, startIP)
	case opcode.SUPER:
		return v.opSuper(a, b, startIP)
	case opcode.CALL:
		return nil // reserved, per spec §4.6
	case opcode.ARGARY:
		return v.opArgAry(a, b, startIP)
	case opcode.ENTER:
		return v.opEnter(a, startIP)

	case opcode.RETURN:
		return v.opReturn(a, startIP)
	case opcode.RETURNBLK:
		return v.opReturnBlock(a, startIP)
	case opcode.BREAK:
		return v.opBreak(a, startIP)

	case opcode.BLOCK:
		return v.opBlock(a, b, startIP)
	case opcode.METHOD:
		return v.opBlock(a, b, startIP)
	case opcode.DEF:
		return v.opDef(a, b, startIP)
	case opcode.ALIAS:
		return v.opAlias(a, b, startIP)
	case opcode.CLASS:
		return v.opClass(a, b, startIP)
	case opcode.MODULE:
		return v.opClass(a, b, startIP)
	case opcode.EXEC:
		return v.opExec(a, b, startIP)
	case opcode.SCLASS:
		// Singleton/meta-class scopes are out of scope for this core (no
		// per-object method tables); resolved as a no-op that leaves the
		// receiver's own class as the definition target.
		return nil

	case opcode.ADD:
		return v.opArith(a, addOp, startIP)
	case opcode.SUB:
		return v.opArith(a, subOp, startIP)
	case opcode.MUL:
		return v.opArith(a, mulOp, startIP)
	case opcode.DIV:
		return v.opArith(a, divOp, startIP)
	case opcode.ADDI:
		return v.opArithI(a, b, addOp, startIP)
	case opcode.SUBI:
		return v.opArithI(a, b, subOp, startIP)
	case opcode.EQ:
		return v.opCompare(a, eqOp, startIP)
	case opcode.LT:
		return v.opCompare(a, ltOp, startIP)
	case opcode.LE:
		return v.opCompare(a, leOp, startIP)
	case opcode.GT:
		return v.opCompare(a, gtOp, startIP)
	case opcode.GE:
		return v.opCompare(a, geOp, startIP)

	case opcode.ARRAY:
		return v.opArray(a, a, b, startIP)
	case opcode.ARRAY2:
		return v.opArray(a, b, c, startIP)
	case opcode.ARYCAT:
		return v.opAryCat(a, b, startIP)
	case opcode.ARYDUP:
		return v.opAryDup(a, b, startIP)
	case opcode.AREF:
		return v.opAref(a, b, c, startIP)
	case opcode.APOST:
		return v.opApost(a, b, c, startIP)
	case opcode.HASH:
		return v.opHash(a, b, startIP)
	case opcode.STRING:
		return v.opString(a, b, startIP)
	case opcode.STRCAT:
		return v.opStrCat(a, b, startIP)
	case opcode.INTERN:
		return v.opIntern(a, startIP)
	case opcode.RANGEINC:
		return v.opRange(a, b, false, startIP)
	case opcode.RANGEEXC:
		return v.opRange(a, b, true, startIP)
	}
	return newError(ErrBadOperand, op, startIP, "unrecognized opcode")
}

// depth reports the current call-stack depth, used to tie a rescue/ensure
// frame to the call-stack height it was pushed at.
func (v *VM) depth() int {
	n := 0
	for ci := v.ci; ci != nil; ci = ci.Prev {
		n++
	}
	return n
}

// selfValue returns the receiver bound to the current frame: register 0
// of the active window, per spec §4.7 ("the receiver is placed at the
// new window's register 0").
func (v *VM) selfValue() value.Value {
	return v.reg(0)
}

// symNameAt resolves index idx in the current IREP's local symbol table
// to a name string. A single per-IREP name table (IREP.Locals) does
// double duty here as both the local-variable name table and the
// method/constant selector table SEND/GETCONST/GETIV reference by index —
// a simplification documented in DESIGN.md.
func (v *VM) symNameAt(idx int) (string, error) {
	if idx < 0 || idx >= len(v.cur.Locals) {
		return "", newError(ErrBadOperand, opcode.NOP, v.ip, "symbol table index out of range")
	}
	return v.cur.Locals[idx], nil
}

func (v *VM) symAt(idx int) (symbol.ID, error) {
	name, err := v.symNameAt(idx)
	if err != nil {
		return 0, err
	}
	return v.syms.MustIntern(name), nil
}

// classOf returns the class that should be consulted to resolve a method
// send against recv: the instance's own class for OBJECT, the wrapped
// class itself for CLASS, and a host-registered plugin class (Integer,
// String, Array, Hash, Range, Symbol, Proc, NilClass, TrueClass,
// FalseClass) for every scalar/collection tag, per spec §1's "plugin
// classes, specified only by the method-registration contract".
func (v *VM) classOf(recv value.Value) (*class.Class, bool) {
	switch recv.Tag {
	case value.OBJECT:
		return class.InstanceOf(recv).Class, true
	case value.CLASS:
		return class.ClassOf(recv), true
	}
	var name string
	switch recv.Tag {
	case value.FIXNUM:
		name = "Integer"
	case value.FLOAT:
		name = "Float"
	case value.STRING:
		name = "String"
	case value.SYMBOL:
		name = "Symbol"
	case value.ARRAY:
		name = "Array"
	case value.HASH:
		name = "Hash"
	case value.RANGE:
		name = "Range"
	case value.PROC:
		name = "Proc"
	case value.NIL:
		name = "NilClass"
	case value.TRUE:
		name = "TrueClass"
	case value.FALSE:
		name = "FalseClass"
	default:
		return nil, false
	}
	return v.RT.LookupClass(v.syms.MustIntern(name))
}
