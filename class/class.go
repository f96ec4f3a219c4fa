// Package class implements the VM's object model: classes with a single
// superclass chain, LIFO-ordered method tables, per-class and global
// constants, and sparse-map instance variables. Grounded on
// wudi-hey/registry.go's Function/Class/Property records and
// wudi-hey/vm/class_manager.go's EnsureClass/define-method flow, adapted
// from wudi-hey's PHP-shaped metadata (visibility, abstract/final,
// interfaces/traits) down to the smaller surface spec.md §4.4 actually
// requires: a method is either a native Go function or a bytecode IREP,
// looked up by a linear scan of the owning class then its superclass chain.
package class

import (
	"fmt"
	"sync"

	"github.com/hashicorp/golang-lru"

	"github.com/embedvm/corevm/irep"
	"github.com/embedvm/corevm/mem"
	"github.com/embedvm/corevm/symbol"
	"github.com/embedvm/corevm/value"
)

// Host is the narrow surface of the VM that native (C-style) methods and
// the object model need, kept as an interface here so this package never
// imports the dispatch core (which in turn imports this package to resolve
// SEND) — the two would otherwise form an import cycle.
type Host interface {
	Symbols() *symbol.Table
	Arena() *mem.Arena
	VMID() int32
	// Raise sets the host VM's pending-exception slot to an instance of
	// cls carrying message, mirroring spec §4.6's RAISE opcode semantics
	// when invoked from inside a native method body.
	Raise(cls *Class, message string) error
	// CallBlock invokes a PROC-tagged value with args, synchronously
	// running its bytecode to completion and returning its result. Native
	// methods implementing iteration (Array#each, Hash#each, ...) call
	// back into the block's IREP through this hook.
	CallBlock(blk value.Value, args []value.Value) (value.Value, error)
}

// NativeFn is the Go-native analogue of the C-method signature in spec §6:
// fn(vm, value-window, argc). recv is value-window[0]; args is
// value-window[1:argc+1].
type NativeFn func(h Host, recv value.Value, args []value.Value) (value.Value, error)

// MethodKind distinguishes a natively implemented method from one compiled
// to bytecode (spec §3: Method record kind ∈ {C-native, bytecode}).
type MethodKind uint8

const (
	Native MethodKind = iota
	Bytecode
)

// Method is one link in a class's method list.
type Method struct {
	Name symbol.ID
	Kind MethodKind
	Fn   NativeFn   // valid when Kind == Native
	Body *irep.IREP // valid when Kind == Bytecode
	Next *Method    // next (older) definition under the same name, or nil
}

// Class is a single-inheritance class record. Classes are themselves
// values (spec §3): a *Class is what a CLASS-tagged value.Value wraps.
type Class struct {
	Name    symbol.ID
	Super   *Class
	methods map[symbol.ID]*Method // head of each name's LIFO chain
	consts  map[symbol.ID]value.Value
	mu      sync.RWMutex
}

// NewClass creates a class named name under super (nil for the root
// Object class).
func NewClass(name symbol.ID, super *Class) *Class {
	return &Class{
		Name:    name,
		Super:   super,
		methods: make(map[symbol.ID]*Method),
		consts:  make(map[symbol.ID]value.Value),
	}
}

// DefineMethod links a new method at the head of the class's list for
// name, per spec §4.4: "links a C-native method at the head of the method
// list" — overrides therefore naturally win by insertion order (LIFO).
func (c *Class) DefineMethod(name symbol.ID, m *Method) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m.Name = name
	m.Next = c.methods[name]
	c.methods[name] = m
	invalidateMethodCache(c, name)
}

// DefineConstant installs a per-class constant, retaining its value.
func (c *Class) DefineConstant(name symbol.ID, v value.Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.consts[name]; ok {
		old.Release()
	}
	c.consts[name] = v.Retain()
}

// OwnConstant looks up a constant defined directly on c (no super walk).
func (c *Class) OwnConstant(name symbol.ID) (value.Value, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.consts[name]
	return v, ok
}

// ConstantChain implements GETMCNST: walk from c up its super chain,
// stopping at the first class that defines name.
func (c *Class) ConstantChain(name symbol.ID) (value.Value, bool) {
	for cls := c; cls != nil; cls = cls.Super {
		if v, ok := cls.OwnConstant(name); ok {
			return v, true
		}
	}
	return value.Nil(), false
}

// ownMethod returns the head of this class's own (non-inherited) method
// chain for name, without consulting the cache.
func (c *Class) ownMethod(name symbol.ID) *Method {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.methods[name]
}

// Lookup resolves name by scanning c's own method list, then walking
// Super on miss, per spec §4.4 ("linear scan ... then follow super on
// miss; stop at root"). owner reports the class where the method was
// actually found, needed by SUPER to resolve relative to the *defining*
// class rather than the receiver's class.
func (c *Class) Lookup(name symbol.ID) (m *Method, owner *Class) {
	if cached, cachedOwner, ok := lookupCache(c, name); ok {
		return cached, cachedOwner
	}
	for cls := c; cls != nil; cls = cls.Super {
		if m := cls.ownMethod(name); m != nil {
			storeLookupCache(c, name, m, cls)
			return m, cls
		}
	}
	return nil, nil
}

// SuperLookup resolves name starting from owner.Super, for the SUPER
// opcode (spec §4.6).
func SuperLookup(owner *Class, name symbol.ID) (m *Method, foundOn *Class) {
	if owner == nil || owner.Super == nil {
		return nil, nil
	}
	for cls := owner.Super; cls != nil; cls = cls.Super {
		if m := cls.ownMethod(name); m != nil {
			return m, cls
		}
	}
	return nil, nil
}

// methodCacheKey identifies a memoized (class, selector) resolution.
type methodCacheKey struct {
	cls  *Class
	name symbol.ID
}

type methodCacheEntry struct {
	m     *Method
	owner *Class
}

// methodCache memoizes Lookup results; the teacher's opcache keeps a
// content-hash cache of whole compiled scripts (wudi-hey/pkg/fpm/opcache),
// the same bounded-LRU idea scaled down to per-selector resolution here.
var methodCache, _ = lru.New(4096)

func lookupCache(c *Class, name symbol.ID) (*Method, *Class, bool) {
	v, ok := methodCache.Get(methodCacheKey{c, name})
	if !ok {
		return nil, nil, false
	}
	e := v.(methodCacheEntry)
	return e.m, e.owner, true
}

func storeLookupCache(c *Class, name symbol.ID, m *Method, owner *Class) {
	methodCache.Add(methodCacheKey{c, name}, methodCacheEntry{m: m, owner: owner})
}

// invalidateMethodCache drops every cached resolution: a subclass's
// (subclass, name) entry may have resolved through c or through one of
// c's ancestors, so removing only c's own key would leave it stale.
func invalidateMethodCache(c *Class, name symbol.ID) {
	methodCache.Purge()
}

// Instance is an object: a class pointer plus a sparse ivar map (spec §3).
// Exclusively owned by its value.Ref handle.
type Instance struct {
	Class *Class
	ivars map[symbol.ID]value.Value
	mu    sync.Mutex
}

// NewInstance allocates a bare instance of cls with no ivars set.
func NewInstance(cls *Class) value.Value {
	inst := &Instance{Class: cls, ivars: make(map[symbol.ID]value.Value)}
	ref := value.NewRef(inst, func() {
		inst.mu.Lock()
		defer inst.mu.Unlock()
		for _, v := range inst.ivars {
			v.Release()
		}
	})
	return value.FromRef(value.OBJECT, ref)
}

// GetIVar returns the instance variable named name, or NIL if unset (spec
// §4.4: "getting an unset ivar returns NIL").
func (o *Instance) GetIVar(name symbol.ID) value.Value {
	o.mu.Lock()
	defer o.mu.Unlock()
	if v, ok := o.ivars[name]; ok {
		return v
	}
	return value.Nil()
}

// SetIVar stores v under name, retaining it and releasing whatever was
// previously stored there (spec §4.4: "setting increments the stored
// value's refcount").
func (o *Instance) SetIVar(name symbol.ID, v value.Value) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if old, ok := o.ivars[name]; ok {
		old.Release()
	}
	o.ivars[name] = v.Retain()
}

// InstanceOf extracts the *Instance payload from an OBJECT-tagged Value.
func InstanceOf(v value.Value) *Instance {
	return v.Ref().Data.(*Instance)
}

// ClassOf extracts the *Class payload from a CLASS-tagged Value.
func ClassOf(v value.Value) *Class {
	return v.Ref().Data.(*Class)
}

// NewClassValue wraps cls as a CLASS-tagged Value with a fresh refcount of
// 1. Classes are long-lived (process-wide), so in practice this ref is
// retained for the process lifetime once installed in a Runtime's class
// table.
func NewClassValue(cls *Class) value.Value {
	return value.FromRef(value.CLASS, value.NewRef(cls, func() {}))
}

// Runtime is the object model's process-wide (or, embedded, VM-wide) state:
// the class registry, global variables, and global constants. Spec §9
// design notes call for "an explicit Runtime object threaded into every API
// call rather than ambient singletons" — this is that object.
type Runtime struct {
	Symbols *symbol.Table

	mu        sync.RWMutex
	classes   map[symbol.ID]*Class
	globals   map[symbol.ID]value.Value
	constants map[symbol.ID]value.Value
	object    *Class // the implicit root superclass
}

// NewRuntime creates a Runtime with a root Object class already installed.
func NewRuntime(symbols *symbol.Table) *Runtime {
	rt := &Runtime{
		Symbols:   symbols,
		classes:   make(map[symbol.ID]*Class),
		globals:   make(map[symbol.ID]value.Value),
		constants: make(map[symbol.ID]value.Value),
	}
	objName := symbols.MustIntern("Object")
	rt.object = NewClass(objName, nil)
	rt.classes[objName] = rt.object
	return rt
}

// Object returns the implicit root class every class ultimately descends
// from when no explicit superclass is given.
func (rt *Runtime) Object() *Class { return rt.object }

// DefineClass installs name under super (Object if nil), idempotently:
// re-defining an existing class returns the class already on file rather
// than replacing it (spec §4.4: "idempotent on re-definition").
func (rt *Runtime) DefineClass(name symbol.ID, super *Class) *Class {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if existing, ok := rt.classes[name]; ok {
		return existing
	}
	if super == nil {
		super = rt.object
	}
	cls := NewClass(name, super)
	rt.classes[name] = cls
	return cls
}

// LookupClass returns the installed class named name, if any.
func (rt *Runtime) LookupClass(name symbol.ID) (*Class, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	c, ok := rt.classes[name]
	return c, ok
}

// SetGlobal stores v under the $-stripped global name, retaining it and
// releasing any previous occupant.
func (rt *Runtime) SetGlobal(name symbol.ID, v value.Value) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if old, ok := rt.globals[name]; ok {
		old.Release()
	}
	rt.globals[name] = v.Retain()
}

// GetGlobal returns the global named name, or NIL if unset.
func (rt *Runtime) GetGlobal(name symbol.ID) value.Value {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	if v, ok := rt.globals[name]; ok {
		return v
	}
	return value.Nil()
}

// SetConstant installs a global (non-class-scoped) constant.
func (rt *Runtime) SetConstant(name symbol.ID, v value.Value) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if old, ok := rt.constants[name]; ok {
		old.Release()
	}
	rt.constants[name] = v.Retain()
}

// ResolveConstant implements GETCONST: walk owner's class chain first (if
// owner is non-nil), then fall back to the global constant table.
func (rt *Runtime) ResolveConstant(owner *Class, name symbol.ID) (value.Value, error) {
	if owner != nil {
		if v, ok := owner.ConstantChain(name); ok {
			return v, nil
		}
	}
	rt.mu.RLock()
	v, ok := rt.constants[name]
	rt.mu.RUnlock()
	if !ok {
		nm, _ := rt.Symbols.NameOf(name)
		return value.Nil(), fmt.Errorf("class: uninitialized constant %s", nm)
	}
	return v, nil
}
