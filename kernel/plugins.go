package kernel

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/embedvm/corevm/class"
	"github.com/embedvm/corevm/value"
)

func native(fn class.NativeFn) *class.Method {
	return &class.Method{Kind: class.Native, Fn: fn}
}

func registerInteger(rt *class.Runtime) {
	syms := rt.Symbols
	cls := rt.DefineClass(syms.MustIntern("Integer"), rt.Object())
	cls.DefineMethod(syms.MustIntern("to_s"), native(func(h class.Host, recv value.Value, args []value.Value) (value.Value, error) {
		return value.NewString(h.Arena(), h.VMID(), strconv.FormatInt(recv.Int(), 10)), nil
	}))
	cls.DefineMethod(syms.MustIntern("to_f"), native(func(h class.Host, recv value.Value, args []value.Value) (value.Value, error) {
		return value.Float(float64(recv.Int())), nil
	}))
	cls.DefineMethod(syms.MustIntern("times"), native(func(h class.Host, recv value.Value, args []value.Value) (value.Value, error) {
		if len(args) == 0 || args[0].Tag != value.PROC {
			return recv.Retain(), nil
		}
		n := recv.Int()
		for i := int64(0); i < n; i++ {
			if _, err := h.CallBlock(args[0], []value.Value{value.Fixnum(i)}); err != nil {
				return value.Nil(), err
			}
		}
		return recv.Retain(), nil
	}))
}

func registerFloat(rt *class.Runtime) {
	syms := rt.Symbols
	cls := rt.DefineClass(syms.MustIntern("Float"), rt.Object())
	cls.DefineMethod(syms.MustIntern("to_s"), native(func(h class.Host, recv value.Value, args []value.Value) (value.Value, error) {
		return value.NewString(h.Arena(), h.VMID(), strconv.FormatFloat(recv.Float64(), 'g', -1, 64)), nil
	}))
	cls.DefineMethod(syms.MustIntern("to_i"), native(func(h class.Host, recv value.Value, args []value.Value) (value.Value, error) {
		return value.Fixnum(int64(recv.Float64())), nil
	}))
}

func registerString(rt *class.Runtime) {
	syms := rt.Symbols
	cls := rt.DefineClass(syms.MustIntern("String"), rt.Object())
	cls.DefineMethod(syms.MustIntern("to_s"), native(func(h class.Host, recv value.Value, args []value.Value) (value.Value, error) {
		return recv.Retain(), nil
	}))
	cls.DefineMethod(syms.MustIntern("length"), native(func(h class.Host, recv value.Value, args []value.Value) (value.Value, error) {
		return value.Fixnum(int64(value.StrOf(recv).Len())), nil
	}))
	cls.DefineMethod(syms.MustIntern("+"), native(func(h class.Host, recv value.Value, args []value.Value) (value.Value, error) {
		if len(args) != 1 || args[0].Tag != value.STRING {
			return value.Nil(), fmt.Errorf("kernel: String#+ expects a string argument")
		}
		s := value.StrOf(recv).Go() + value.StrOf(args[0]).Go()
		return value.NewString(h.Arena(), h.VMID(), s), nil
	}))
	cls.DefineMethod(syms.MustIntern("upcase"), native(func(h class.Host, recv value.Value, args []value.Value) (value.Value, error) {
		return value.NewString(h.Arena(), h.VMID(), strings.ToUpper(value.StrOf(recv).Go())), nil
	}))
	cls.DefineMethod(syms.MustIntern("downcase"), native(func(h class.Host, recv value.Value, args []value.Value) (value.Value, error) {
		return value.NewString(h.Arena(), h.VMID(), strings.ToLower(value.StrOf(recv).Go())), nil
	}))
	cls.DefineMethod(syms.MustIntern("split"), native(func(h class.Host, recv value.Value, args []value.Value) (value.Value, error) {
		sep := " "
		if len(args) == 1 && args[0].Tag == value.STRING {
			sep = value.StrOf(args[0]).Go()
		}
		parts := strings.Split(value.StrOf(recv).Go(), sep)
		elems := make([]value.Value, len(parts))
		for i, p := range parts {
			elems[i] = value.NewString(h.Arena(), h.VMID(), p)
		}
		return value.NewArray(elems), nil
	}))
}

func registerSymbol(rt *class.Runtime) {
	syms := rt.Symbols
	cls := rt.DefineClass(syms.MustIntern("Symbol"), rt.Object())
	cls.DefineMethod(syms.MustIntern("to_s"), native(func(h class.Host, recv value.Value, args []value.Value) (value.Value, error) {
		name, _ := h.Symbols().NameOf(recv.SymbolID())
		return value.NewString(h.Arena(), h.VMID(), name), nil
	}))
}

func registerArray(rt *class.Runtime) {
	syms := rt.Symbols
	cls := rt.DefineClass(syms.MustIntern("Array"), rt.Object())
	cls.DefineMethod(syms.MustIntern("length"), native(func(h class.Host, recv value.Value, args []value.Value) (value.Value, error) {
		return value.Fixnum(int64(len(value.ArrayOf(recv).Elems))), nil
	}))
	cls.DefineMethod(syms.MustIntern("each"), native(func(h class.Host, recv value.Value, args []value.Value) (value.Value, error) {
		if len(args) == 0 || args[0].Tag != value.PROC {
			return recv.Retain(), nil
		}
		for _, e := range value.ArrayOf(recv).Elems {
			if _, err := h.CallBlock(args[0], []value.Value{e}); err != nil {
				return value.Nil(), err
			}
		}
		return recv.Retain(), nil
	}))
	cls.DefineMethod(syms.MustIntern("push"), native(func(h class.Host, recv value.Value, args []value.Value) (value.Value, error) {
		arr := value.ArrayOf(recv)
		for _, a := range args {
			arr.Elems = append(arr.Elems, a.Retain())
		}
		return recv.Retain(), nil
	}))
	cls.DefineMethod(syms.MustIntern("to_s"), native(func(h class.Host, recv value.Value, args []value.Value) (value.Value, error) {
		return value.NewString(h.Arena(), h.VMID(), inspectString(h, recv)), nil
	}))
}

func registerHash(rt *class.Runtime) {
	syms := rt.Symbols
	cls := rt.DefineClass(syms.MustIntern("Hash"), rt.Object())
	cls.DefineMethod(syms.MustIntern("length"), native(func(h class.Host, recv value.Value, args []value.Value) (value.Value, error) {
		return value.Fixnum(int64(value.HashOf(recv).Len())), nil
	}))
	cls.DefineMethod(syms.MustIntern("each"), native(func(h class.Host, recv value.Value, args []value.Value) (value.Value, error) {
		if len(args) == 0 || args[0].Tag != value.PROC {
			return recv.Retain(), nil
		}
		var callErr error
		value.HashOf(recv).Each(func(k, v value.Value) {
			if callErr != nil {
				return
			}
			_, callErr = h.CallBlock(args[0], []value.Value{k, v})
		})
		if callErr != nil {
			return value.Nil(), callErr
		}
		return recv.Retain(), nil
	}))
	cls.DefineMethod(syms.MustIntern("[]"), native(func(h class.Host, recv value.Value, args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Nil(), nil
		}
		v, ok := value.HashOf(recv).Get(args[0])
		if !ok {
			return value.Nil(), nil
		}
		return v.Retain(), nil
	}))
	cls.DefineMethod(syms.MustIntern("[]="), native(func(h class.Host, recv value.Value, args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Nil(), fmt.Errorf("kernel: Hash#[]= expects 2 arguments")
		}
		value.HashOf(recv).Set(args[0], args[1])
		return args[1].Retain(), nil
	}))
}

func registerRange(rt *class.Runtime) {
	syms := rt.Symbols
	cls := rt.DefineClass(syms.MustIntern("Range"), rt.Object())
	cls.DefineMethod(syms.MustIntern("each"), native(func(h class.Host, recv value.Value, args []value.Value) (value.Value, error) {
		if len(args) == 0 || args[0].Tag != value.PROC {
			return recv.Retain(), nil
		}
		r := value.RangeOf(recv)
		if r.Low.Tag != value.FIXNUM || r.High.Tag != value.FIXNUM {
			return value.Nil(), fmt.Errorf("kernel: Range#each only supports integer bounds")
		}
		hi := r.High.Int()
		if !r.Exclusive {
			hi++
		}
		for i := r.Low.Int(); i < hi; i++ {
			if _, err := h.CallBlock(args[0], []value.Value{value.Fixnum(i)}); err != nil {
				return value.Nil(), err
			}
		}
		return recv.Retain(), nil
	}))
}

func registerProc(rt *class.Runtime) {
	syms := rt.Symbols
	cls := rt.DefineClass(syms.MustIntern("Proc"), rt.Object())
	cls.DefineMethod(syms.MustIntern("call"), native(func(h class.Host, recv value.Value, args []value.Value) (value.Value, error) {
		result, err := h.CallBlock(recv, args)
		if err != nil {
			return value.Nil(), err
		}
		return result.Retain(), nil
	}))
}

func registerNilClass(rt *class.Runtime) {
	syms := rt.Symbols
	cls := rt.DefineClass(syms.MustIntern("NilClass"), rt.Object())
	cls.DefineMethod(syms.MustIntern("to_s"), native(func(h class.Host, recv value.Value, args []value.Value) (value.Value, error) {
		return value.NewString(h.Arena(), h.VMID(), ""), nil
	}))
}

func registerBoolClasses(rt *class.Runtime) {
	syms := rt.Symbols
	t := rt.DefineClass(syms.MustIntern("TrueClass"), rt.Object())
	f := rt.DefineClass(syms.MustIntern("FalseClass"), rt.Object())
	t.DefineMethod(syms.MustIntern("to_s"), native(func(h class.Host, recv value.Value, args []value.Value) (value.Value, error) {
		return value.NewString(h.Arena(), h.VMID(), "true"), nil
	}))
	f.DefineMethod(syms.MustIntern("to_s"), native(func(h class.Host, recv value.Value, args []value.Value) (value.Value, error) {
		return value.NewString(h.Arena(), h.VMID(), "false"), nil
	}))
}
