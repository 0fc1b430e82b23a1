package runtime

import (
	"fmt"

	"clj-core/ast"
)

// CallValue is the single entry point every higher-order builtin, the
// macroexpander, and both evaluators route calls through (spec §4.4
// "cross-backend dispatcher"). It unifies tree-walk closures, compiled
// closures, native builtins, and the "collections as functions" idiom
// (keywords, maps, sets, vectors) into one call surface.
func CallValue(fn Value, args []Value) (Value, *Error) {
	switch f := fn.(type) {
	case *TreeClosure:
		return callTreeClosure(f, args)
	case *VMClosure:
		return callVMClosure(f, args)
	case *BuiltinFn:
		return f.Fn(args)
	case *ProtocolFn:
		return callProtocolFn(f, args)
	case *MultiFn:
		return DispatchMultiFn(f, args)
	case *Var:
		return CallValue(f.Get(), args)
	case *Keyword:
		return callKeywordAsFn(f, args)
	case *ArrayMap:
		return callMapAsFn(f, args)
	case *HashMap:
		return callMapAsFn(f, args)
	case *Set:
		return callSetAsFn(f, args)
	case *Vector:
		return callVectorAsFn(f, args)
	default:
		return nil, NewError(TypeErrorKind, fmt.Sprintf("%s is not callable", fn.Type()), Pos{})
	}
}

// treeMaxDepth bounds tree-walk call depth the same way vmMaxFrames
// bounds the VM's, surfaced as an uncatchable stack-overflow error instead of
// a fatal Go stack-growth crash (spec §4.1 "Call depth: a counter
// increments on function entry and decrements on exit... Exceeding a
// fixed maximum (e.g., 512) raises stack-overflow").
const treeMaxDepth = 512

func callTreeClosure(c *TreeClosure, args []Value) (Value, *Error) {
	arity, ok := c.SelectArity(len(args))
	if !ok {
		return nil, NewError(ArityErrorKind, fmt.Sprintf("wrong number of args (%d) to %s", len(args), c.String()), Pos{})
	}

	ts := currentThread()
	if len(ts.frames) >= treeMaxDepth {
		return nil, NewError(StackOverflowKind, "call depth exceeded", Pos{})
	}

	locals := make([]Value, arity.LocalCount)
	copy(locals, c.Captures)
	base := len(c.Captures)
	if arity.HasSelfRef {
		locals[arity.SelfRefSlot] = c
	}
	bindTreeArgs(locals, base, arity, args)

	ts.PushFrame(Frame{FnName: c.Node.Name})
	defer ts.PopFrame()

	for {
		res, err := Evaluate(arity.Body, locals, c.DefNS)
		if err != nil {
			return nil, err
		}
		recur, ok := res.(*recurSignal)
		if !ok {
			return res, nil
		}
		bindTreeArgs(locals, base, arity, recur.Args)
	}
}

// bindTreeArgs fills locals[base:] with the call's arguments, packing any
// trailing arguments into a List for a variadic arity's rest parameter
// (spec §4.1 Arity.Variadic).
func bindTreeArgs(locals []Value, base int, arity *ast.Arity, args []Value) {
	fixed := arity.ParamCount
	if arity.Variadic {
		fixed = arity.ParamCount - 1
	}
	for i := 0; i < fixed; i++ {
		if i < len(args) {
			locals[base+i] = args[i]
		} else {
			locals[base+i] = TheNil
		}
	}
	if arity.Variadic {
		var rest []Value
		if len(args) > fixed {
			rest = args[fixed:]
		}
		if ConsumeApplyRestIsSeq() {
			locals[base+fixed] = &List{Items: rest}
		} else {
			locals[base+fixed] = NewList(rest...)
		}
	}
}

func callVMClosure(c *VMClosure, args []Value) (Value, *Error) {
	return DefaultHybridEngine.CallCompiled(c, args)
}

func callProtocolFn(f *ProtocolFn, args []Value) (Value, *Error) {
	if len(args) == 0 {
		return nil, NewError(ArityErrorKind, "protocol method called with no arguments", Pos{})
	}
	key := TypeKey(args[0])
	impl, ok := f.Impls[key]
	if !ok {
		return nil, NewError(TypeErrorKind, fmt.Sprintf("no implementation of %s for type %s", f.Method, key), Pos{})
	}
	return CallValue(impl, args)
}

func callKeywordAsFn(k *Keyword, args []Value) (Value, *Error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, NewError(ArityErrorKind, "keyword-as-fn takes 1 or 2 arguments", Pos{})
	}
	m, ok := args[0].(MapLike)
	if !ok {
		if len(args) == 2 {
			return args[1], nil
		}
		return TheNil, nil
	}
	if v, found := m.Get(k); found {
		return v, nil
	}
	if len(args) == 2 {
		return args[1], nil
	}
	return TheNil, nil
}

func callMapAsFn(m MapLike, args []Value) (Value, *Error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, NewError(ArityErrorKind, "map-as-fn takes 1 or 2 arguments", Pos{})
	}
	if v, found := m.Get(args[0]); found {
		return v, nil
	}
	if len(args) == 2 {
		return args[1], nil
	}
	return TheNil, nil
}

func callSetAsFn(s *Set, args []Value) (Value, *Error) {
	if len(args) != 1 {
		return nil, NewError(ArityErrorKind, "set-as-fn takes 1 argument", Pos{})
	}
	if s.Contains(args[0]) {
		return args[0], nil
	}
	return TheNil, nil
}

func callVectorAsFn(v *Vector, args []Value) (Value, *Error) {
	if len(args) != 1 {
		return nil, NewError(ArityErrorKind, "vector-as-fn takes 1 argument", Pos{})
	}
	idx, ok := args[0].(*Int)
	if !ok {
		return nil, NewError(TypeErrorKind, "vector-as-fn index must be an integer", Pos{})
	}
	return v.Nth(int(idx.Value))
}
