package runtime

import (
	"fmt"
	"strings"
	"sync"

	"clj-core/ast"
)

var protocolRegistry = struct {
	mu     sync.RWMutex
	byName map[string]*Protocol
}{byName: make(map[string]*Protocol)}

func registerProtocol(p *Protocol) {
	protocolRegistry.mu.Lock()
	defer protocolRegistry.mu.Unlock()
	protocolRegistry.byName[p.Name] = p
}

func findProtocol(name string) (*Protocol, bool) {
	protocolRegistry.mu.RLock()
	defer protocolRegistry.mu.RUnlock()
	p, ok := protocolRegistry.byName[name]
	return p, ok
}

// protocolFns maps protocol name -> method name -> the live ProtocolFn,
// so multiple `extend-type` forms (possibly in different namespaces) all
// extend the very same dispatch table (spec §4.1 DefProtocol/ExtendType,
// §4.5 "polymorphism").
var protocolFns = struct {
	mu  sync.RWMutex
	tbl map[string]map[string]*ProtocolFn
}{tbl: make(map[string]map[string]*ProtocolFn)}

func defProtocol(n *ast.DefProtocol, ns *Namespace) Value {
	methodNames := make([]string, len(n.Sigs))
	for i, s := range n.Sigs {
		methodNames[i] = s.Method
	}
	p := &Protocol{Name: n.Name, Methods: methodNames}
	registerProtocol(p)

	protocolFns.mu.Lock()
	fns := make(map[string]*ProtocolFn, len(n.Sigs))
	for _, s := range n.Sigs {
		pf := &ProtocolFn{Protocol: p, Method: s.Method, Impls: make(map[string]Value)}
		fns[s.Method] = pf
		ns.Define(s.Method, pf)
	}
	protocolFns.tbl[n.Name] = fns
	protocolFns.mu.Unlock()

	ns.Define(n.Name, p)
	return p
}

func extendType(n *ast.ExtendType, locals []Value, ns *Namespace) (Value, *Error) {
	protocolFns.mu.RLock()
	fns, ok := protocolFns.tbl[n.Protocol]
	protocolFns.mu.RUnlock()
	if !ok {
		return nil, NewError(UndefinedVarKind, fmt.Sprintf("undefined protocol: %s", n.Protocol), toPos(n.Position()))
	}
	for _, m := range n.Methods {
		pf, ok := fns[m.Name]
		if !ok {
			return nil, NewError(UndefinedVarKind, fmt.Sprintf("protocol %s has no method %s", n.Protocol, m.Name), toPos(n.Position()))
		}
		fnNode, ok := m.Fn.(*ast.Fn)
		if !ok {
			return nil, NewError(TypeErrorKind, "extend-type method body must be a fn", toPos(n.Position()))
		}
		closure := makeClosure(fnNode, locals, ns)
		pf.Extend(n.TypeKey, closure)
	}
	return TheNil, nil
}

// TypeKey returns the short canonical type tag extend-type dispatches on
// (spec §4.1 item 15).
func TypeKey(v Value) string {
	if v == nil {
		return string(NilType)
	}
	return string(v.Type())
}

func defMulti(n *ast.DefMulti, locals []Value, ns *Namespace) (Value, *Error) {
	dispatchFn, err := Evaluate(n.DispatchFn, locals, ns)
	if err != nil {
		return nil, err
	}
	mf := &MultiFn{Name: n.Name, DispatchFn: dispatchFn, Methods: make(map[string]Value), Hierarchy: globalHierarchy}
	ns.Define(n.Name, mf)
	return mf, nil
}

func defMethod(n *ast.DefMethod, locals []Value, ns *Namespace) (Value, *Error) {
	v, ok := ns.Resolve(n.MultiName)
	if !ok {
		return nil, NewError(UndefinedVarKind, fmt.Sprintf("undefined multimethod: %s", n.MultiName), toPos(n.Position()))
	}
	mf, ok := v.Get().(*MultiFn)
	if !ok {
		return nil, NewError(TypeErrorKind, fmt.Sprintf("%s is not a multi-fn", n.MultiName), toPos(n.Position()))
	}
	fnNode, ok := n.Fn.(*ast.Fn)
	if !ok {
		return nil, NewError(TypeErrorKind, "defmethod body must be a fn", toPos(n.Position()))
	}
	closure := makeClosure(fnNode, locals, ns)

	if s, ok := n.DispatchValue.(string); ok && s == ":default" {
		mf.AddMethod(nil, true, closure)
		return mf, nil
	}
	mf.AddMethod(constToValue(n.DispatchValue), false, closure)
	return mf, nil
}

// globalHierarchy is the shared derive/isa? graph every defmulti consults
// when an exact dispatch-value match misses (spec §4.5).
var globalHierarchy = NewHierarchy()

// DispatchMultiFn resolves and invokes the method a multi-fn's dispatch
// value selects, falling back through the hierarchy to :default.
func DispatchMultiFn(mf *MultiFn, args []Value) (Value, *Error) {
	dispatchVal, err := CallValue(mf.DispatchFn, args)
	if err != nil {
		return nil, err
	}
	key := dispatchKey(dispatchVal)
	if impl, ok := mf.Methods[key]; ok {
		return CallValue(impl, args)
	}
	if mf.Hierarchy != nil {
		// method keys are "type:printed value"; derive records printed values
		printed := key[strings.Index(key, ":")+1:]
		for k, impl := range mf.Methods {
			if mf.Hierarchy.IsA(printed, k[strings.Index(k, ":")+1:]) {
				return CallValue(impl, args)
			}
		}
	}
	if mf.Default != nil {
		return CallValue(mf.Default, args)
	}
	return nil, NewError(ValueErrorKind, fmt.Sprintf("no method in multi-fn %s for dispatch value %s", mf.Name, dispatchVal.String()), Pos{})
}
