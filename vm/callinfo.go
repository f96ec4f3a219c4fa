package vm

import (
	"github.com/embedvm/corevm/class"
	"github.com/embedvm/corevm/irep"
	"github.com/embedvm/corevm/symbol"
	"github.com/embedvm/corevm/value"
)

// Two reserved method-ids mark non-method callinfo frames on the
// exception-handler stack (spec §3: "Two special method-ids mark
// non-method frames: one for rescue handlers, one for ensure handlers").
const (
	methodIDRescue symbol.ID = 0xFFFFFFFF
	methodIDEnsure symbol.ID = 0xFFFFFFFE
)

// CallInfo is one frame of the call/resume stack (spec §3/§4.7): a
// snapshot of the caller's execution state plus the bookkeeping needed to
// resolve super and upvars, grounded on wudi-hey/vm/call_stack.go's
// CallFrame but reshaped around register windows over a flat array
// instead of a list of locals.
type CallInfo struct {
	CallerIREP  *irep.IREP
	CallerIP    int
	RegOffset   int // new window's base, relative to caller's base
	MethodID    symbol.ID
	NumArgs     int
	TargetClass *class.Class // receiver's class at the call site
	OwnerClass  *class.Class // class that actually defines the method (for super)
	Proc        *Proc        // non-nil when this frame was entered via a block/proc call
	Prev        *CallInfo
}

// isHandlerFrame reports whether ci marks a rescue or ensure frame rather
// than a genuine method call.
func (ci *CallInfo) isHandlerFrame() bool {
	return ci != nil && (ci.MethodID == methodIDRescue || ci.MethodID == methodIDEnsure)
}

// Proc is a closure: an IREP body plus the callinfo active when it was
// created, captured by reference so GETUPVAR/SETUPVAR can walk outward
// through nested blocks (spec §3, §4.7).
type Proc struct {
	Body          *irep.IREP
	Captured      *CallInfo
	CallinfoSelf  value.Value  // lexical self at creation time
	DefiningClass *class.Class // target class new methods/DEF install onto
}

// RescueFrame is one entry of the parallel exception-handler stack (spec
// §3/§4.6): a rescue frame names a handler PC in the owning IREP; an
// ensure frame names a child IREP index to EXEC on unwind.
type RescueFrame struct {
	HandlerPC int
	IsEnsure  bool
	ChildIdx  int // valid when IsEnsure
	CallDepth int // call-stack depth this frame was pushed at, for unwind targeting
	Prev      *RescueFrame
}
