package vm

import (
	"github.com/embedvm/corevm/opcode"
	"github.com/embedvm/corevm/value"
)

type arithKind uint8

const (
	addOp arithKind = iota
	subOp
	mulOp
	divOp
)

func (k arithKind) selector() string {
	switch k {
	case addOp:
		return "+"
	case subOp:
		return "-"
	case mulOp:
		return "*"
	default:
		return "/"
	}
}

// opArith implements ADD/SUB/MUL/DIV: register a holds the left operand
// and the result destination, a+1 the right operand. The FIXNUM/FIXNUM,
// FIXNUM/FLOAT, FLOAT/FIXNUM, FLOAT/FLOAT fast paths are inlined; any
// other tag combination falls back to a symbol-method dispatch (spec
// §4.6).
func (v *VM) opArith(a int, kind arithKind, ip int) error {
	lhs, rhs := v.reg(a), v.reg(a+1)
	if lhs.IsNumeric() && rhs.IsNumeric() {
		result, err := numericArith(lhs, rhs, kind, ip)
		if err != nil {
			return err
		}
		v.setReg(a, result)
		return nil
	}
	name := v.syms.MustIntern(kind.selector())
	cls, ok := v.classOf(lhs)
	if !ok {
		return newError(ErrClassNotFound, opcode.ADD, ip, "arithmetic operand has no resolvable class")
	}
	return v.invoke(a, name, cls, 1, false, ip)
}

func numericArith(lhs, rhs value.Value, kind arithKind, ip int) (value.Value, error) {
	bothInt := lhs.Tag == value.FIXNUM && rhs.Tag == value.FIXNUM
	if bothInt {
		l, r := lhs.Int(), rhs.Int()
		switch kind {
		case addOp:
			return value.Fixnum(l + r), nil
		case subOp:
			return value.Fixnum(l - r), nil
		case mulOp:
			return value.Fixnum(l * r), nil
		case divOp:
			if r == 0 {
				return value.Nil(), newError(ErrDivisionByZero, opcode.DIV, ip, "")
			}
			return value.Fixnum(l / r), nil
		}
	}
	l, r := lhs.AsFloat(), rhs.AsFloat()
	switch kind {
	case addOp:
		return value.Float(l + r), nil
	case subOp:
		return value.Float(l - r), nil
	case mulOp:
		return value.Float(l * r), nil
	default:
		return value.Float(l / r), nil
	}
}

// opArithI implements ADDI/SUBI: register a holds the left operand and
// destination; b is a small signed-as-unsigned immediate right operand.
func (v *VM) opArithI(a, imm int, kind arithKind, ip int) error {
	lhs := v.reg(a)
	if lhs.Tag == value.FIXNUM {
		switch kind {
		case addOp:
			v.setReg(a, value.Fixnum(lhs.Int()+int64(imm)))
		default:
			v.setReg(a, value.Fixnum(lhs.Int()-int64(imm)))
		}
		return nil
	}
	if lhs.Tag == value.FLOAT {
		switch kind {
		case addOp:
			v.setReg(a, value.Float(lhs.Float64()+float64(imm)))
		default:
			v.setReg(a, value.Float(lhs.Float64()-float64(imm)))
		}
		return nil
	}
	name := v.syms.MustIntern(kind.selector())
	cls, ok := v.classOf(lhs)
	if !ok {
		return newError(ErrClassNotFound, opcode.ADDI, ip, "arithmetic operand has no resolvable class")
	}
	v.setReg(a+1, value.Fixnum(int64(imm)))
	return v.invoke(a, name, cls, 1, false, ip)
}

type compareKind uint8

const (
	eqOp compareKind = iota
	ltOp
	leOp
	gtOp
	geOp
)

// opCompare implements EQ/LT/LE/GT/GE: delegate to value.Compare (or
// value.Equal for EQ, which also covers non-ordered types) and store a
// TRUE/FALSE result (spec §4.6).
func (v *VM) opCompare(a int, kind compareKind, ip int) error {
	lhs, rhs := v.reg(a), v.reg(a+1)
	if kind == eqOp {
		v.setReg(a, value.Bool(value.Equal(lhs, rhs)))
		return nil
	}
	cmp, ok := value.Compare(lhs, rhs)
	if !ok {
		return newError(ErrBadOperand, opcode.LT, ip, "operands are not comparable")
	}
	var result bool
	switch kind {
	case ltOp:
		result = cmp < 0
	case leOp:
		result = cmp <= 0
	case gtOp:
		result = cmp > 0
	case geOp:
		result = cmp >= 0
	}
	v.setReg(a, value.Bool(result))
	return nil
}
