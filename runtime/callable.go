package runtime

import (
	"clj-core/ast"

	"golang.org/x/exp/slices"
)

// TreeClosure is a tree-walk-backend closure: the analyzed fn node plus the
// values captured at closure-creation time, resolved against the
// namespace the fn was defined in (spec §4.1 Fn, §3.3 "closure capture").
type TreeClosure struct {
	Node     *ast.Fn
	Captures []Value
	DefNS    *Namespace
}

func (c *TreeClosure) Type() ValueType { return FnType }
func (c *TreeClosure) String() string {
	if c.Node.Name != "" {
		return "#<fn " + c.Node.Name + ">"
	}
	return "#<fn>"
}

// SelectArity picks the ast.Arity matching argc, honoring a trailing
// variadic arity the way Clojure's multi-arity fns do (spec §4.1 item 7).
func (c *TreeClosure) SelectArity(argc int) (*ast.Arity, bool) {
	var variadic *ast.Arity
	for i := range c.Node.Arities {
		a := &c.Node.Arities[i]
		if a.Variadic {
			variadic = a
			continue
		}
		if a.ParamCount == argc {
			return a, true
		}
	}
	if variadic != nil && argc >= variadic.ParamCount-1 {
		return variadic, true
	}
	return nil, false
}

// VMClosure is a bytecode-backend closure: the compiled prototype plus the
// upvalues captured at MAKE_CLOSURE time (spec §4.2/§4.3).
type VMClosure struct {
	Proto    *FnProto
	Captures []Value
}

func (c *VMClosure) Type() ValueType { return FnType }
func (c *VMClosure) String() string {
	if c.Proto.Name != "" {
		return "#<fn " + c.Proto.Name + ">"
	}
	return "#<fn>"
}

// BuiltinFn is a native Go function exposed as a callable value, the
// bottom of both evaluators' dispatch chain (spec §4.4 call-value).
type BuiltinFn struct {
	Name string
	Fn   func(args []Value) (Value, *Error)
}

func (b *BuiltinFn) Type() ValueType { return BuiltinType }
func (b *BuiltinFn) String() string  { return "#<builtin-fn " + b.Name + ">" }

// Protocol is a named set of method signatures dispatched on the runtime
// type of the first argument (spec §4.1 DefProtocol, §4.5).
type Protocol struct {
	Name    string
	Methods []string
}

func (p *Protocol) Type() ValueType { return ProtocolType }
func (p *Protocol) String() string  { return "#<protocol " + p.Name + ">" }

// ProtocolFn is the callable a protocol method name resolves to: dispatch
// looks up the implementation registered for the first argument's type key.
type ProtocolFn struct {
	Protocol *Protocol
	Method   string
	Impls    map[string]Value // type key -> implementing fn
}

func (f *ProtocolFn) Type() ValueType { return ProtoFnType }
func (f *ProtocolFn) String() string  { return "#<protocol-fn " + f.Protocol.Name + "/" + f.Method + ">" }

func (f *ProtocolFn) Extend(typeKey string, impl Value) {
	if f.Impls == nil {
		f.Impls = make(map[string]Value)
	}
	f.Impls[typeKey] = impl
}

// MultiFn is a defmulti/defmethod dispatch table keyed by the value the
// dispatch function returns, falling back to :default (spec §4.1
// DefMulti/DefMethod, §4.5 "polymorphism").
type MultiFn struct {
	Name       string
	DispatchFn Value
	Methods    map[string]Value // keyed by dispatchKey: type name + ":" + printed dispatch value
	Default    Value
	Hierarchy  *Hierarchy
}

func (m *MultiFn) Type() ValueType { return MultiFnType }
func (m *MultiFn) String() string  { return "#<multi-fn " + m.Name + ">" }

func dispatchKey(v Value) string {
	if v == nil {
		v = TheNil
	}
	return v.Type().String() + ":" + v.String()
}

func (m *MultiFn) AddMethod(dispatchVal Value, isDefault bool, fn Value) {
	if isDefault {
		m.Default = fn
		return
	}
	if m.Methods == nil {
		m.Methods = make(map[string]Value)
	}
	m.Methods[dispatchKey(dispatchVal)] = fn
}

// Hierarchy is the ad-hoc type-relationship graph `derive`/`isa?` build
// (spec §4.5 "polymorphism" — ancestor search for multimethods).
type Hierarchy struct {
	parents map[string][]string
}

func NewHierarchy() *Hierarchy { return &Hierarchy{parents: make(map[string][]string)}}

// Derive adds a child->parent edge, a no-op if it's already present —
// `derive` is idempotent in Clojure, so repeated calls from re-evaluated
// top-level forms must not pile up duplicate edges.
func (h *Hierarchy) Derive(child, parent string) {
	if slices.Contains(h.parents[child], parent) {
		return
	}
	h.parents[child] = append(h.parents[child], parent)
}

func (h *Hierarchy) IsA(child, ancestor string) bool {
	if child == ancestor {
		return true
	}
	for _, p := range h.parents[child] {
		if h.IsA(p, ancestor) {
			return true
		}
	}
	return false
}
