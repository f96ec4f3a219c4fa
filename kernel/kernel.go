// Package kernel registers the minimal set of native methods spec §4.11
// calls for: Kernel#puts/print/p, plus the plugin classes (Integer,
// Float, String, Symbol, Array, Hash, Range, Proc, NilClass, TrueClass,
// FalseClass) spec §1 describes as "specified only by the
// method-registration contract" — the VM core never defines their
// bodies itself. Grounded on wudi-hey's registry bootstrap (a flat list
// of name -> Go-function registrations run once at process start)
// narrowed to class.Runtime.DefineClass/DefineMethod instead of a
// PHP-shaped function table.
package kernel

import (
	"fmt"
	"strings"

	"github.com/embedvm/corevm/class"
	"github.com/embedvm/corevm/format"
	"github.com/embedvm/corevm/value"
)

// Register installs Kernel and every plugin class onto rt, writing
// puts/print/p output through sink.
func Register(rt *class.Runtime, sink func(s string)) {
	obj := rt.Object()
	registerKernel(rt, obj, sink)
	registerInteger(rt)
	registerFloat(rt)
	registerString(rt)
	registerSymbol(rt)
	registerArray(rt)
	registerHash(rt)
	registerRange(rt)
	registerProc(rt)
	registerNilClass(rt)
	registerBoolClasses(rt)
}

// toDisplayString renders v the way puts/print present it: a STRING's raw
// bytes, empty for NIL, an ARRAY as its inspected elements in brackets, a
// SYMBOL as its bare name, and GoString's compact form for everything else.
// Native to_s overrides (registered per plugin class below) are what
// SEND actually dispatches to from bytecode; this helper only backs
// Kernel's own natively-implemented puts/print/p, which cannot re-enter
// SEND from inside a native method body without recursing into the
// dispatch core.
func toDisplayString(h class.Host, v value.Value) string {
	switch v.Tag {
	case value.STRING:
		return value.StrOf(v).Go()
	case value.NIL:
		return ""
	case value.ARRAY:
		elems := value.ArrayOf(v).Elems
		parts := make([]string, len(elems))
		for i, e := range elems {
			parts[i] = inspectString(h, e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case value.SYMBOL:
		name, _ := h.Symbols().NameOf(v.SymbolID())
		return name
	default:
		return v.GoString()
	}
}

func inspectString(h class.Host, v value.Value) string {
	switch v.Tag {
	case value.STRING:
		return fmt.Sprintf("%q", value.StrOf(v).Go())
	case value.SYMBOL:
		name, _ := h.Symbols().NameOf(v.SymbolID())
		return ":" + name
	case value.ARRAY:
		elems := value.ArrayOf(v).Elems
		parts := make([]string, len(elems))
		for i, e := range elems {
			parts[i] = inspectString(h, e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return toDisplayString(h, v)
	}
}

func registerKernel(rt *class.Runtime, obj *class.Class, sink func(s string)) {
	syms := rt.Symbols
	obj.DefineMethod(syms.MustIntern("puts"), &class.Method{Kind: class.Native, Fn: func(h class.Host, recv value.Value, args []value.Value) (value.Value, error) {
		if len(args) == 0 {
			sink("\n")
			return value.Nil(), nil
		}
		for _, a := range args {
			sink(toDisplayString(h, a) + "\n")
		}
		return value.Nil(), nil
	}})
	obj.DefineMethod(syms.MustIntern("print"), &class.Method{Kind: class.Native, Fn: func(h class.Host, recv value.Value, args []value.Value) (value.Value, error) {
		for _, a := range args {
			sink(toDisplayString(h, a))
		}
		return value.Nil(), nil
	}})
	obj.DefineMethod(syms.MustIntern("p"), &class.Method{Kind: class.Native, Fn: func(h class.Host, recv value.Value, args []value.Value) (value.Value, error) {
		for _, a := range args {
			sink(inspectString(h, a) + "\n")
		}
		if len(args) == 1 {
			return args[0].Retain(), nil
		}
		if len(args) == 0 {
			return value.Nil(), nil
		}
		retained := make([]value.Value, len(args))
		for i, a := range args {
			retained[i] = a.Retain()
		}
		return value.NewArray(retained), nil
	}})
	obj.DefineMethod(syms.MustIntern("to_s"), &class.Method{Kind: class.Native, Fn: func(h class.Host, recv value.Value, args []value.Value) (value.Value, error) {
		return value.NewString(h.Arena(), h.VMID(), recv.GoString()), nil
	}})
	obj.DefineMethod(syms.MustIntern("sprintf"), &class.Method{Kind: class.Native, Fn: func(h class.Host, recv value.Value, args []value.Value) (value.Value, error) {
		if len(args) == 0 || args[0].Tag != value.STRING {
			return value.Nil(), fmt.Errorf("kernel: sprintf requires a format string")
		}
		spec := value.StrOf(args[0]).Go()
		return value.NewString(h.Arena(), h.VMID(), defPrintf(h, spec, args[1:])), nil
	}})
	obj.DefineMethod(syms.MustIntern("printf"), &class.Method{Kind: class.Native, Fn: func(h class.Host, recv value.Value, args []value.Value) (value.Value, error) {
		if len(args) == 0 || args[0].Tag != value.STRING {
			return value.Nil(), fmt.Errorf("kernel: printf requires a format string")
		}
		spec := value.StrOf(args[0]).Go()
		sink(defPrintf(h, spec, args[1:]))
		return value.Nil(), nil
	}})
}

func defPrintf(h class.Host, spec string, vargs []value.Value) string {
	fargs := make([]format.Arg, len(vargs))
	for i, a := range vargs {
		switch a.Tag {
		case value.FIXNUM:
			fargs[i] = format.Arg{Kind: format.KindInt, I: a.Int()}
		case value.FLOAT:
			fargs[i] = format.Arg{Kind: format.KindFloat, F: a.Float64()}
		case value.STRING:
			fargs[i] = format.Arg{Kind: format.KindString, S: value.StrOf(a).Go()}
		default:
			fargs[i] = format.Arg{Kind: format.KindString, S: toDisplayString(h, a)}
		}
	}
	var sb strings.Builder
	format.Fprintf(&sb, spec, fargs)
	return sb.String()
}
