package runtime

import (
	"fmt"
	"sync"

	"clj-core/ast"
)

// Fast-allocation pools for the two boxed-immediate variants that get
// created on every arithmetic step; mirrors the teacher's numberPool
// approach but sized to this core's Int/Float split instead of a single
// NumberVal.
var (
	intPool   = sync.Pool{New: func() interface{} { return &Int{} }}
	floatPool = sync.Pool{New: func() interface{} { return &Float{} }}
)

func fastInt(v int64) *Int {
	i := intPool.Get().(*Int)
	i.Value = v
	return i
}

func fastFloat(v float64) *Float {
	f := floatPool.Get().(*Float)
	f.Value = v
	return f
}

// recurSignal is the tail-position sentinel Evaluate returns to unwind up
// to the nearest Loop/Fn call frame instead of growing the Go stack (spec
// §4.1 Recur, §3.3 "tail-loop rebinding").
type recurSignal struct{ Args []Value }

func (*recurSignal) Type() ValueType { return "recur-signal" }
func (*recurSignal) String() string  { return "#<recur>" }

// Evaluate walks an already-analyzed ast.Node, dispatching on its
// concrete type. locals is the current call frame's flat slot array:
// captures first, then parameters (and the self-reference slot, and any
// let/loop bindings the analyzer folded into the same frame).
func Evaluate(node ast.Node, locals []Value, ns *Namespace) (Value, *Error) {
	switch n := node.(type) {
	case *ast.Const:
		return constToValue(n.Value), nil

	case *ast.Quote:
		return constToValue(n.Value), nil

	case *ast.LocalRef:
		if n.Idx < 0 || n.Idx >= len(locals) {
			return nil, NewError(ValueErrorKind, fmt.Sprintf("local slot %d (%s) out of range", n.Idx, n.Name), toPos(n.Position()))
		}
		return locals[n.Idx], nil

	case *ast.VarRef:
		v, err := resolveVar(n.NS, n.Name, ns, toPos(n.Position()))
		if err != nil {
			return nil, err
		}
		return v.Get(), nil

	case *ast.If:
		test, err := Evaluate(n.Test, locals, ns)
		if err != nil {
			return nil, err
		}
		if Truthy(test) {
			return Evaluate(n.Then, locals, ns)
		}
		if n.Else == nil {
			return TheNil, nil
		}
		return Evaluate(n.Else, locals, ns)

	case *ast.Do:
		if len(n.Stmts) == 0 {
			return TheNil, nil
		}
		for _, s := range n.Stmts[:len(n.Stmts)-1] {
			if _, err := Evaluate(s, locals, ns); err != nil {
				return nil, err
			}
		}
		return Evaluate(n.Stmts[len(n.Stmts)-1], locals, ns)

	case *ast.Let:
		for _, b := range n.Bindings {
			v, err := Evaluate(b.Init, locals, ns)
			if err != nil {
				return nil, err
			}
			locals[b.Slot] = v
		}
		return Evaluate(n.Body, locals, ns)

	case *ast.Loop:
		for _, b := range n.Bindings {
			v, err := Evaluate(b.Init, locals, ns)
			if err != nil {
				return nil, err
			}
			locals[b.Slot] = v
		}
		for {
			res, err := Evaluate(n.Body, locals, ns)
			if err != nil {
				return nil, err
			}
			recur, ok := res.(*recurSignal)
			if !ok {
				return res, nil
			}
			if len(recur.Args) != len(n.Bindings) {
				return nil, NewError(ArityErrorKind, "recur argument count does not match loop bindings", toPos(n.Position()))
			}
			for i, b := range n.Bindings {
				locals[b.Slot] = recur.Args[i]
			}
		}

	case *ast.Recur:
		args := make([]Value, len(n.Args))
		for i, a := range n.Args {
			v, err := Evaluate(a, locals, ns)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return &recurSignal{Args: args}, nil

	case *ast.Fn:
		return makeClosure(n, locals, ns), nil

	case *ast.Call:
		callee, err := Evaluate(n.Callee, locals, ns)
		if err != nil {
			return nil, err
		}
		args := make([]Value, len(n.Args))
		for i, a := range n.Args {
			v, err := Evaluate(a, locals, ns)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return CallValue(callee, args)

	case *ast.Def:
		target := ns
		var val Value = TheNil
		if n.Init != nil {
			v, err := Evaluate(n.Init, locals, ns)
			if err != nil {
				return nil, err
			}
			val = v
		}
		v := target.Define(n.Name, val)
		v.SetDynamic(n.Flags.Dynamic)
		v.SetMacro(n.Flags.Macro)
		return v, nil

	case *ast.SetBang:
		v, err := Evaluate(n.Expr, locals, ns)
		if err != nil {
			return nil, err
		}
		varNS := n.VarNS
		if varNS == "" {
			varNS = ns.Name
		}
		target, err2 := resolveVar(n.VarNS, n.VarName, ns, toPos(n.Position()))
		if err2 != nil {
			return nil, err2
		}
		if serr := target.Set(v); serr != nil {
			return nil, serr
		}
		return v, nil

	case *ast.Throw:
		v, err := Evaluate(n.Expr, locals, ns)
		if err != nil {
			return nil, err
		}
		return nil, &Error{Kind: UserExceptionKind, Message: "user exception", Pos: toPos(n.Position()), Thrown: v}

	case *ast.Try:
		res, err := Evaluate(n.Body, locals, ns)
		if err != nil && (!n.HasCatch || isUncatchable(err)) {
			if n.Finally != nil {
				if _, ferr := Evaluate(n.Finally, locals, ns); ferr != nil {
					return nil, ferr
				}
			}
			return nil, err
		}
		if err != nil {
			setCurrentException(errAsCaughtValue(err))
			locals[n.CatchSlot] = errAsCaughtValue(err)
			res, err = Evaluate(n.CatchBody, locals, ns)
			setCurrentException(TheNil)
		}
		if n.Finally != nil {
			if _, ferr := Evaluate(n.Finally, locals, ns); ferr != nil {
				return nil, ferr
			}
		}
		return res, err

	case *ast.DefProtocol:
		return defProtocol(n, ns), nil

	case *ast.ExtendType:
		return extendType(n, locals, ns)

	case *ast.DefMulti:
		return defMulti(n, locals, ns)

	case *ast.DefMethod:
		return defMethod(n, locals, ns)

	case *ast.LazySeq:
		closureNode := n.Body.(*ast.Fn)
		capturedLocals := append([]Value(nil), locals...)
		return NewLazySeq(func() (Value, *Error) {
			closure := makeClosure(closureNode, capturedLocals, ns)
			return CallValue(closure, nil)
		}), nil

	default:
		return nil, NewError(ValueErrorKind, fmt.Sprintf("unhandled node kind %T", n), toPos(node.Position()))
	}
}

func toPos(p ast.Pos) Pos { return Pos{File: p.File, Line: p.Line, Column: p.Column} }

// constToValue adapts a Const/Quote payload (stored as interface{} to
// avoid an ast<->runtime import cycle) back into a Value.
func constToValue(raw interface{}) Value {
	if raw == nil {
		return TheNil
	}
	if v, ok := raw.(Value); ok {
		return v
	}
	return TheNil
}

// errAsCaughtValue is what a `catch` clause's binding sees: the exact
// thrown value for a user (throw ...), or an ex-info-shaped wrapping of a
// native failure (spec §7 "native errors crossing into catch").
func errAsCaughtValue(err *Error) Value {
	if err.Kind == UserExceptionKind && err.Thrown != nil {
		return err.Thrown
	}
	return err.AsValue()
}

func resolveVar(nsName, name string, current *Namespace, pos Pos) (*Var, *Error) {
	if nsName != "" {
		ns, ok := GlobalRegistry.Find(nsName)
		if !ok {
			return nil, NewError(UndefinedVarKind, fmt.Sprintf("no such namespace: %s", nsName), pos)
		}
		v, ok := ns.Resolve(name)
		if !ok {
			return nil, NewError(UndefinedVarKind, fmt.Sprintf("undefined var: %s/%s", nsName, name), pos)
		}
		return v, nil
	}
	v, ok := current.Resolve(name)
	if !ok {
		return nil, NewError(UndefinedVarKind, fmt.Sprintf("undefined var: %s", name), pos)
	}
	return v, nil
}

// makeClosure captures the parent frame's free local slots into a fresh
// TreeClosure (spec §3.3, §4.1 Fn.CaptureIdx).
func makeClosure(n *ast.Fn, locals []Value, ns *Namespace) *TreeClosure {
	captures := make([]Value, len(n.CaptureIdx))
	for i, idx := range n.CaptureIdx {
		captures[i] = locals[idx]
	}
	return &TreeClosure{Node: n, Captures: captures, DefNS: ns}
}
