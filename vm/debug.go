package vm

import "github.com/embedvm/corevm/value"

// IP returns the current instruction pointer, for crash reports and the
// stepper REPL (spec SPEC_FULL.md §4.6: "the VM renders the failing
// frame/opcode/register window").
func (v *VM) IP() int { return v.ip }

// Depth returns the current call-stack depth.
func (v *VM) Depth() int { return v.depth() }

// Window returns a copy of the n live registers of the active window,
// starting at register 0 (self), for diagnostics only — callers must not
// mutate reference counts through the returned slice.
func (v *VM) Window(n int) []value.Value {
	out := make([]value.Value, n)
	for i := 0; i < n; i++ {
		out[i] = v.reg(i)
	}
	return out
}

// Backtrace returns one summary line per active call frame, outermost
// first, for the stepper REPL's "bt" command.
func (v *VM) Backtrace() []string {
	var frames []string
	for ci := v.ci; ci != nil; ci = ci.Prev {
		name, _ := v.syms.NameOf(ci.MethodID)
		frames = append([]string{name}, frames...)
	}
	return frames
}
