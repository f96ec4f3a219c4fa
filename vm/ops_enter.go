package vm

import (
	"github.com/embedvm/corevm/opcode"
	"github.com/embedvm/corevm/value"
)

// opEnter implements ENTER, the argument reshaper (spec §4.6). raw is the
// 23-bit packed pattern m1:o:r:m2:k:d:b (required, optional, rest,
// post-required, keyword, dict, block), LSB-first as decoded below.
//
// Keyword arguments (k) are not separately modeled: a caller-supplied
// trailing hash is folded into the dict slot regardless of whether it
// carries declared keywords or an arbitrary **rest hash, which is the
// only form of "keyword argument" this core's Kernel-level methods
// exercise.
func (v *VM) opEnter(raw, ip int) error {
	b := raw & 1
	raw >>= 1
	d := raw & 1
	raw >>= 1
	k := raw & 0x1F
	raw >>= 5
	m2 := raw & 0x1F
	raw >>= 5
	r := raw & 1
	raw >>= 1
	o := raw & 0x1F
	raw >>= 5
	m1 := raw & 0x1F

	origArgc, origBlockSlot := 0, 0
	if v.ci != nil {
		origArgc = v.ci.NumArgs
		origBlockSlot = origArgc + 1
	}

	args := make([]value.Value, origArgc)
	for i := 0; i < origArgc; i++ {
		args[i] = v.regs[v.base+1+i]
	}
	blockVal := value.Nil()
	if origBlockSlot < len(v.regs)-v.base {
		blockVal = v.regs[v.base+origBlockSlot]
	}

	// Clear the original argument+block window directly: these slots'
	// single owned reference each is now tracked by args/blockVal, about
	// to be re-homed into their reshaped positions below, so no Release
	// is due here (spec §3: EMPTY marks a slot "currently being rebuilt").
	for i := 1; i <= origBlockSlot && v.base+i < len(v.regs); i++ {
		v.regs[v.base+i] = value.Empty()
	}

	argc := len(args)
	if argc == 1 && args[0].Tag == value.ARRAY && (m1+o+m2+k > 1 || r == 1) {
		elems := value.ArrayOf(args[0]).Elems
		expanded := append([]value.Value(nil), elems...)
		for _, e := range expanded {
			e.Retain()
		}
		args[0].Release()
		args = expanded
		argc = len(args)
	}

	var dict value.Value
	haveDict := false
	if d == 1 && argc > m1+m2 && args[argc-1].Tag == value.HASH {
		dict = args[argc-1]
		args = args[:argc-1]
		argc--
		haveDict = true
	}

	var post []value.Value
	if m2 > 0 {
		postStart := argc - m2
		if postStart < m1 {
			postStart = argc
		}
		if postStart < 0 {
			postStart = 0
		}
		post = args[postStart:]
		args = args[:postStart]
		argc = len(args)
	}

	reqN := m1
	if reqN > argc {
		reqN = argc
	}
	optAvail := argc - reqN
	optN := o
	if optN > optAvail {
		optN = optAvail
	}
	restN := argc - reqN - optN

	tolerant := v.ci != nil && v.ci.Proc != nil
	if argc < m1 && !tolerant {
		return newError(ErrArgumentError, opcode.ENTER, ip, "too few arguments")
	}
	if r == 0 && restN > 0 {
		if !tolerant {
			return newError(ErrArgumentError, opcode.ENTER, ip, "too many arguments")
		}
		for _, extra := range args[reqN+optN:] {
			extra.Release()
		}
	}

	slot := 1
	for i := 0; i < m1; i++ {
		if i < reqN {
			v.regs[v.base+slot] = args[i]
		} else {
			v.regs[v.base+slot] = value.Nil()
		}
		slot++
	}
	providedOpt := 0
	for i := 0; i < o; i++ {
		if i < optN {
			v.regs[v.base+slot] = args[reqN+i]
			providedOpt++
		} else {
			v.regs[v.base+slot] = value.Nil()
		}
		slot++
	}
	if r == 1 {
		var restElems []value.Value
		if restN > 0 {
			restElems = append([]value.Value(nil), args[reqN+optN:reqN+optN+restN]...)
		}
		v.regs[v.base+slot] = value.NewArray(restElems)
		slot++
	}
	for i := 0; i < m2; i++ {
		if i < len(post) {
			v.regs[v.base+slot] = post[i]
		} else {
			v.regs[v.base+slot] = value.Nil()
		}
		slot++
	}
	if d == 1 {
		if haveDict {
			v.regs[v.base+slot] = dict
		} else {
			v.regs[v.base+slot] = value.NewHash()
		}
		slot++
	}
	if b == 1 {
		v.regs[v.base+slot] = blockVal
	}

	// Skip min(extra, o) 3-byte default-value jump stubs: one per
	// optional parameter that actually received a caller-supplied value,
	// so its default-value initializer in the bytecode is not re-run.
	skip := providedOpt
	if skip > o {
		skip = o
	}
	v.ip += skip * 3
	return nil
}
