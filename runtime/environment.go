package runtime

import (
	"fmt"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Var is a mutable top-level binding cell: a root value plus an optional
// thread-local dynamic binding stack (spec §3.4 "Vars/Namespaces").
type Var struct {
	NS   string
	Name string

	mu      sync.RWMutex
	root    Value
	dynamic bool
	macro   bool
	meta    *ArrayMap
}

func newVar(ns, name string, root Value) *Var {
	return &Var{NS: ns, Name: name, root: root}
}

func (v *Var) Type() ValueType { return VarType }
func (v *Var) String() string  { return fmt.Sprintf("#'%s/%s", v.NS, v.Name) }

// Get resolves the current value: the top of this goroutine's dynamic
// binding stack if one exists, else the root binding.
func (v *Var) Get() Value {
	if v.dynamic {
		if val, ok := currentThread().dynamicBinding(v); ok {
			return val
		}
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.root
}

// SetRoot replaces the root binding (def, or top-level set! outside a
// dynamic binding frame).
func (v *Var) SetRoot(val Value) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.root = val
}

// Set mutates the innermost dynamic binding if one is pushed for this
// goroutine, else the root (spec §4.3 set!).
func (v *Var) Set(val Value) *Error {
	if v.dynamic {
		if currentThread().setDynamicBinding(v, val) {
			return nil
		}
	}
	v.SetRoot(val)
	return nil
}

func (v *Var) IsMacro() bool { return v.macro }
func (v *Var) IsDynamic() bool { return v.dynamic }
func (v *Var) SetDynamic(b bool) { v.dynamic = b }
func (v *Var) SetMacro(b bool)   { v.macro = b }

// Namespace is a mutable registry of Vars, plus alias/refer tables for
// symbol resolution (spec §3.4).
type Namespace struct {
	Name string

	mu     sync.RWMutex
	vars   map[string]*Var
	refers map[string]*Var        // name -> var referred in from another namespace
	aliases map[string]*Namespace // alias -> namespace
}

func NewNamespace(name string) *Namespace {
	return &Namespace{
		Name:    name,
		vars:    make(map[string]*Var),
		refers:  make(map[string]*Var),
		aliases: make(map[string]*Namespace),
	}
}

// Intern returns the Var for name, creating an unbound one if absent.
func (ns *Namespace) Intern(name string) *Var {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if v, ok := ns.vars[name]; ok {
		return v
	}
	v := newVar(ns.Name, name, TheNil)
	ns.vars[name] = v
	return v
}

// Define interns name bound to val, returning the Var (def's primitive).
func (ns *Namespace) Define(name string, val Value) *Var {
	v := ns.Intern(name)
	v.SetRoot(val)
	return v
}

// Resolve looks up name: own vars first, then referred vars. It does not
// consult other namespaces by NS-qualification — that is VarRef's job.
func (ns *Namespace) Resolve(name string) (*Var, bool) {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	if v, ok := ns.vars[name]; ok {
		return v, true
	}
	if v, ok := ns.refers[name]; ok {
		return v, true
	}
	return nil, false
}

func (ns *Namespace) Refer(name string, v *Var) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	ns.refers[name] = v
}

func (ns *Namespace) AddAlias(alias string, target *Namespace) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	ns.aliases[alias] = target
}

func (ns *Namespace) Alias(alias string) (*Namespace, bool) {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	n, ok := ns.aliases[alias]
	return n, ok
}

// OwnNames returns every name ns interns directly (excluding referred-in
// vars), sorted — used by `ns-publics`-style introspection.
func (ns *Namespace) OwnNames() []string {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	names := maps.Keys(ns.vars)
	slices.Sort(names)
	return names
}

// ReferredNames returns the names ns has referred in from other
// namespaces, sorted (spec §3.4 "refer").
func (ns *Namespace) ReferredNames() []string {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	names := maps.Keys(ns.refers)
	slices.Sort(names)
	return names
}

// AliasNames returns every alias ns has registered, sorted.
func (ns *Namespace) AliasNames() []string {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	names := make([]string, 0, len(ns.aliases))
	for a := range ns.aliases {
		names = append(names, a)
	}
	slices.Sort(names)
	return names
}

// NamespaceRegistry owns every namespace that has ever been created,
// keyed by name (spec §3.4/§5 "global mutable state").
type NamespaceRegistry struct {
	mu         sync.RWMutex
	namespaces map[string]*Namespace
}

func NewNamespaceRegistry() *NamespaceRegistry {
	return &NamespaceRegistry{namespaces: make(map[string]*Namespace)}
}

func (r *NamespaceRegistry) FindOrCreate(name string) *Namespace {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ns, ok := r.namespaces[name]; ok {
		return ns
	}
	ns := NewNamespace(name)
	r.namespaces[name] = ns
	return ns
}

func (r *NamespaceRegistry) Find(name string) (*Namespace, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ns, ok := r.namespaces[name]
	return ns, ok
}

// Names returns every registered namespace's name, sorted (backs
// `all-ns`).
func (r *NamespaceRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := maps.Keys(r.namespaces)
	slices.Sort(names)
	return names
}
