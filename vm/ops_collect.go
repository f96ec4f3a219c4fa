package vm

import (
	"github.com/embedvm/corevm/class"
	"github.com/embedvm/corevm/opcode"
	"github.com/embedvm/corevm/value"
)

// opArray implements ARRAY/ARRAY2: build an array from count consecutive
// registers starting at start, move semantics (the source registers
// become EMPTY — their one owned reference each transfers into the new
// array rather than being retained a second time), storing the result in
// dest (spec §4.6).
func (v *VM) opArray(dest, start, count, ip int) error {
	elems := make([]value.Value, count)
	base := v.base + start
	for i := 0; i < count; i++ {
		if base+i < 0 || base+i >= len(v.regs) {
			return newError(ErrRegisterOOB, opcode.ARRAY, ip, "ARRAY register range out of bounds")
		}
		elems[i] = v.regs[base+i]
		v.regs[base+i] = value.Empty()
	}
	v.setReg(dest, value.NewArray(elems))
	return nil
}

// opAryCat implements ARYCAT: concatenate the arrays in registers a and
// b, leaving a new array in a. Both source arrays keep their own
// elements (retained copies populate the result).
func (v *VM) opAryCat(a, b, ip int) error {
	left := value.ArrayOf(v.reg(a)).Elems
	right := value.ArrayOf(v.reg(b)).Elems
	out := make([]value.Value, 0, len(left)+len(right))
	for _, e := range left {
		out = append(out, e.Retain())
	}
	for _, e := range right {
		out = append(out, e.Retain())
	}
	v.setReg(a, value.NewArray(out))
	return nil
}

// opAryDup implements ARYDUP: shallow-copy the array in register b into
// register a.
func (v *VM) opAryDup(a, b, ip int) error {
	src := value.ArrayOf(v.reg(b)).Elems
	out := make([]value.Value, len(src))
	for i, e := range src {
		out[i] = e.Retain()
	}
	v.setReg(a, value.NewArray(out))
	return nil
}

// opAref implements AREF: index the array in register b at immediate
// position c, storing the element (or NIL, if out of range) in a.
func (v *VM) opAref(a, b, c, ip int) error {
	elems := value.ArrayOf(v.reg(b)).Elems
	if c < 0 || c >= len(elems) {
		v.setReg(a, value.Nil())
		return nil
	}
	v.setReg(a, elems[c].Retain())
	return nil
}

// opApost implements APOST: destructure the tail of the array in
// register a into a rest array (back in a) plus c fixed trailing
// registers, having already consumed b elements from the front
// elsewhere (spec §4.6).
func (v *VM) opApost(a, pre, post, ip int) error {
	elems := value.ArrayOf(v.reg(a)).Elems
	var tail []value.Value
	if pre < len(elems) {
		tail = elems[pre:]
	}
	restLen := len(tail) - post
	if restLen < 0 {
		restLen = 0
	}
	rest := make([]value.Value, restLen)
	for i := 0; i < restLen; i++ {
		rest[i] = tail[i].Retain()
	}
	v.setReg(a, value.NewArray(rest))
	for i := 0; i < post; i++ {
		idx := restLen + i
		if idx < len(tail) {
			v.setReg(a+1+i, tail[idx].Retain())
		} else {
			v.setReg(a+1+i, value.Nil())
		}
	}
	return nil
}

// opHash implements HASH: build a hash from n consecutive key/value
// register pairs starting at a, move semantics as in opArray.
func (v *VM) opHash(a, n, ip int) error {
	h := value.NewHash()
	hob := value.HashOf(h)
	base := v.base + a
	for i := 0; i < n; i++ {
		ki, vi := base+2*i, base+2*i+1
		if vi < 0 || vi >= len(v.regs) {
			return newError(ErrRegisterOOB, opcode.HASH, ip, "HASH register range out of bounds")
		}
		key, val := v.regs[ki], v.regs[vi]
		hob.Set(key, val)
		key.Release()
		val.Release()
		v.regs[ki] = value.Empty()
		v.regs[vi] = value.Empty()
	}
	v.setReg(a, h)
	return nil
}

// opString implements STRING: duplicate the string literal at pool index
// poolIdx into a fresh arena-backed STRING value.
func (v *VM) opString(a, poolIdx, ip int) error {
	if poolIdx < 0 || poolIdx >= len(v.cur.Pool) {
		return newError(ErrBadOperand, opcode.STRING, ip, "literal pool index out of range")
	}
	lit := v.cur.Pool[poolIdx]
	v.setReg(a, value.NewString(v.arena, v.id, lit.S))
	return nil
}

// opStrCat implements STRCAT: append the textual form of register b onto
// the string in register a, applying a to_s coercion when b is not
// itself a STRING (spec §4.6).
func (v *VM) opStrCat(a, b, ip int) error {
	lhs := value.StrOf(v.reg(a)).Go()
	rhs := v.reg(b)
	var rhsStr string
	if rhs.Tag == value.STRING {
		rhsStr = value.StrOf(rhs).Go()
	} else if cls, ok := v.classOf(rhs); ok {
		if m, _ := cls.Lookup(v.syms.MustIntern("to_s")); m != nil && m.Kind == class.Native {
			if res, err := m.Fn(v, rhs, nil); err == nil && res.Tag == value.STRING {
				rhsStr = value.StrOf(res).Go()
			} else {
				rhsStr = rhs.GoString()
			}
		} else {
			rhsStr = rhs.GoString()
		}
	} else {
		rhsStr = rhs.GoString()
	}
	v.setReg(a, value.NewString(v.arena, v.id, lhs+rhsStr))
	return nil
}

// opIntern implements INTERN: convert the string in register a to a
// symbol, in place.
func (v *VM) opIntern(a, ip int) error {
	s := value.StrOf(v.reg(a)).Go()
	v.setReg(a, value.Sym(v.syms.MustIntern(s)))
	return nil
}

// opRange implements RANGE_INC/RANGE_EXC: build a range from registers a
// (low) and b (high), storing it in a. setReg's release-old-value step
// correctly drops a's pre-range reference to low, since NewRange already
// retained its own independent copy.
func (v *VM) opRange(a, b int, exclusive bool, ip int) error {
	v.setReg(a, value.NewRange(v.reg(a), v.reg(b), exclusive))
	return nil
}
