package runtime

import (
	"fmt"
	"log"
	"strings"
)

// builtinLogger is the process-lifecycle logger the ambient stack's
// "Logging" section calls for: bootstrap, AOT cache load/save, and an
// uncaught top-level error's stack trace all print through it (spec's
// AMBIENT STACK section, grounded on the teacher's use of the bare `log`
// package).
var builtinLogger = log.New(log.Writer(), "clj-core: ", log.LstdFlags)

func def(name string, fn func(args []Value) (Value, *Error)) {
	CoreNamespace.Define(name, &BuiltinFn{Name: name, Fn: fn})
}

func arityErr(name string, args []Value) *Error {
	return NewError(ArityErrorKind, fmt.Sprintf("wrong number of args (%d) to %s", len(args), name), Pos{})
}

func typeErr(name, want string, got Value) *Error {
	return NewError(TypeErrorKind, fmt.Sprintf("%s expects %s, got %s", name, want, got.Type()), Pos{})
}

func asSeqItems(v Value) ([]Value, *Error) {
	switch t := v.(type) {
	case *NilVal:
		return nil, nil
	case *List:
		return t.Items, nil
	case *Vector:
		return t.items(), nil
	case *Set:
		return t.items, nil
	case *Cons:
		var out []Value
		var cur Value = t
		for {
			switch c := cur.(type) {
			case *Cons:
				out = append(out, c.Head)
				cur = c.Tail
			case *NilVal:
				return out, nil
			default:
				items, err := asSeqItems(cur)
				if err != nil {
					return nil, err
				}
				return append(out, items...), nil
			}
		}
	case *LazySeq:
		realized, err := t.Realize()
		if err != nil {
			return nil, err
		}
		return asSeqItems(realized)
	case MapLike:
		var out []Value
		t.Each(func(k, val Value) bool {
			out = append(out, NewVector(k, val))
			return true
		})
		return out, nil
	}
	return nil, typeErr("seq", "a collection", v)
}

func init() {
	registerArithBuiltins()
	registerCompareBuiltins()
	registerCollectionBuiltins()
	registerIOBuiltins()
	registerRefBuiltins()
	registerMiscBuiltins()

	// user starts with every clj.core public var referred in, the way
	// Clojure's `user` ns auto-refers `clojure.core` (spec §3.4).
	userNS := GlobalRegistry.FindOrCreate("user")
	CoreNamespace.mu.RLock()
	for name, v := range CoreNamespace.vars {
		userNS.Refer(name, v)
	}
	CoreNamespace.mu.RUnlock()
}

func registerArithBuiltins() {
	reduceArith := func(name string, op func(a, b Value) (Value, *Error), identity Value) func([]Value) (Value, *Error) {
		return func(args []Value) (Value, *Error) {
			if len(args) == 0 {
				return identity, nil
			}
			acc := args[0]
			if !isNumber(acc) {
				return nil, typeErr(name, "a number", acc)
			}
			for _, a := range args[1:] {
				var err *Error
				acc, err = op(acc, a)
				if err != nil {
					return nil, err
				}
			}
			return acc, nil
		}
	}
	def("+", reduceArith("+", Add, &Int{Value: 0}))
	def("*", reduceArith("*", Mul, &Int{Value: 1}))
	def("-", func(args []Value) (Value, *Error) {
		if len(args) == 0 {
			return nil, arityErr("-", args)
		}
		if len(args) == 1 {
			return Sub(&Int{Value: 0}, args[0])
		}
		acc := args[0]
		for _, a := range args[1:] {
			var err *Error
			acc, err = Sub(acc, a)
			if err != nil {
				return nil, err
			}
		}
		return acc, nil
	})
	def("/", func(args []Value) (Value, *Error) {
		if len(args) == 0 {
			return nil, arityErr("/", args)
		}
		if len(args) == 1 {
			return Div(&Int{Value: 1}, args[0])
		}
		acc := args[0]
		for _, a := range args[1:] {
			var err *Error
			acc, err = Div(acc, a)
			if err != nil {
				return nil, err
			}
		}
		return acc, nil
	})

	// The auto-promoting siblings of +,-,* (spec §3.1/§4.3): they widen to
	// BigInteger on overflow instead of raising ArithmeticErrorKind.
	def("+'", reduceArith("+'", AddPromoting, &Int{Value: 0}))
	def("*'", reduceArith("*'", MulPromoting, &Int{Value: 1}))
	def("-'", func(args []Value) (Value, *Error) {
		if len(args) == 0 {
			return nil, arityErr("-'", args)
		}
		if len(args) == 1 {
			return SubPromoting(&Int{Value: 0}, args[0])
		}
		acc := args[0]
		for _, a := range args[1:] {
			var err *Error
			acc, err = SubPromoting(acc, a)
			if err != nil {
				return nil, err
			}
		}
		return acc, nil
	})
}

func chainCompare(args []Value, holds func(cmp int) bool) (Value, *Error) {
	for i := 0; i+1 < len(args); i++ {
		cmp, err := Compare(args[i], args[i+1])
		if err != nil {
			return nil, err
		}
		if !holds(cmp) {
			return BoolOf(false), nil
		}
	}
	return BoolOf(true), nil
}

func registerCompareBuiltins() {
	def("=", func(args []Value) (Value, *Error) {
		if len(args) < 2 {
			return BoolOf(true), nil
		}
		for i := 0; i+1 < len(args); i++ {
			if !valuesEqual(args[i], args[i+1]) {
				return BoolOf(false), nil
			}
		}
		return BoolOf(true), nil
	})
	def("<", func(args []Value) (Value, *Error) { return chainCompare(args, func(c int) bool { return c < 0 }) })
	def("<=", func(args []Value) (Value, *Error) { return chainCompare(args, func(c int) bool { return c <= 0 }) })
	def(">", func(args []Value) (Value, *Error) { return chainCompare(args, func(c int) bool { return c > 0 }) })
	def(">=", func(args []Value) (Value, *Error) { return chainCompare(args, func(c int) bool { return c >= 0 }) })
}

func registerCollectionBuiltins() {
	def("conj", func(args []Value) (Value, *Error) {
		if len(args) == 0 {
			return NewList(), nil
		}
		coll, rest := args[0], args[1:]
		switch c := coll.(type) {
		case *NilVal:
			out := NewList()
			for _, x := range rest {
				out = out.Cons(x)
			}
			return out, nil
		case *List:
			out := c
			for _, x := range rest {
				out = out.Cons(x)
			}
			return out, nil
		case *Vector:
			out := c
			for _, x := range rest {
				out = out.Conj(x)
			}
			return out, nil
		case *Set:
			out := c
			for _, x := range rest {
				out = out.Conj(x)
			}
			return out, nil
		case *ArrayMap:
			var out MapLike = c
			for _, x := range rest {
				entry, err := mapEntryOf(x)
				if err != nil {
					return nil, err
				}
				out = out.Assoc(entry.Key, entry.Val)
			}
			return out, nil
		case *HashMap:
			out := c
			for _, x := range rest {
				entry, err := mapEntryOf(x)
				if err != nil {
					return nil, err
				}
				out = out.Assoc(entry.Key, entry.Val)
			}
			return out, nil
		}
		return nil, typeErr("conj", "a collection", coll)
	})

	def("assoc", func(args []Value) (Value, *Error) {
		if len(args) < 1 || len(args)%2 != 1 {
			return nil, arityErr("assoc", args)
		}
		switch c := args[0].(type) {
		case *NilVal:
			var m MapLike = NewArrayMap()
			for i := 1; i < len(args); i += 2 {
				m = m.Assoc(args[i], args[i+1])
			}
			return m, nil
		case *ArrayMap:
			var m MapLike = c
			for i := 1; i < len(args); i += 2 {
				m = m.Assoc(args[i], args[i+1])
			}
			return m, nil
		case *HashMap:
			m := c
			for i := 1; i < len(args); i += 2 {
				m = m.Assoc(args[i], args[i+1])
			}
			return m, nil
		case *Vector:
			v := c
			for i := 1; i < len(args); i += 2 {
				idx, ok := args[i].(*Int)
				if !ok {
					return nil, typeErr("assoc", "an integer index", args[i])
				}
				nv, err := v.Assoc(int(idx.Value), args[i+1])
				if err != nil {
					return nil, err
				}
				v = nv
			}
			return v, nil
		}
		return nil, typeErr("assoc", "an associative collection", args[0])
	})

	def("dissoc", func(args []Value) (Value, *Error) {
		if len(args) == 0 {
			return nil, arityErr("dissoc", args)
		}
		switch c := args[0].(type) {
		case *NilVal:
			return TheNil, nil
		case *ArrayMap:
			m := c
			for _, k := range args[1:] {
				m = m.Dissoc(k)
			}
			return m, nil
		case *HashMap:
			m := c
			for _, k := range args[1:] {
				m = m.Dissoc(k)
			}
			return m, nil
		}
		return nil, typeErr("dissoc", "a map", args[0])
	})

	def("get", func(args []Value) (Value, *Error) {
		if len(args) < 2 || len(args) > 3 {
			return nil, arityErr("get", args)
		}
		notFound := Value(TheNil)
		if len(args) == 3 {
			notFound = args[2]
		}
		switch c := args[0].(type) {
		case *NilVal:
			return notFound, nil
		case MapLike:
			if v, ok := c.Get(args[1]); ok {
				return v, nil
			}
			return notFound, nil
		case *Vector:
			idx, ok := args[1].(*Int)
			if !ok || idx.Value < 0 || int(idx.Value) >= c.Count() {
				return notFound, nil
			}
			return c.MustNth(int(idx.Value)), nil
		case *Set:
			if c.Contains(args[1]) {
				return args[1], nil
			}
			return notFound, nil
		}
		return notFound, nil
	})

	def("nth", func(args []Value) (Value, *Error) {
		if len(args) < 2 || len(args) > 3 {
			return nil, arityErr("nth", args)
		}
		idx, ok := args[1].(*Int)
		if !ok {
			return nil, typeErr("nth", "an integer index", args[1])
		}
		switch c := args[0].(type) {
		case *Vector:
			v, err := c.Nth(int(idx.Value))
			if err != nil {
				if len(args) == 3 {
					return args[2], nil
				}
				return nil, err
			}
			return v, nil
		case *List:
			if idx.Value < 0 || int(idx.Value) >= len(c.Items) {
				if len(args) == 3 {
					return args[2], nil
				}
				return nil, NewError(IndexErrorKind, "index out of range", Pos{})
			}
			return c.Items[idx.Value], nil
		}
		return nil, typeErr("nth", "a vector or list", args[0])
	})

	def("first", func(args []Value) (Value, *Error) {
		if len(args) != 1 {
			return nil, arityErr("first", args)
		}
		items, err := asSeqItems(args[0])
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return TheNil, nil
		}
		return items[0], nil
	})

	def("rest", func(args []Value) (Value, *Error) {
		if len(args) != 1 {
			return nil, arityErr("rest", args)
		}
		items, err := asSeqItems(args[0])
		if err != nil {
			return nil, err
		}
		if len(items) <= 1 {
			return NewList(), nil
		}
		return NewList(items[1:]...), nil
	})

	def("cons", func(args []Value) (Value, *Error) {
		if len(args) != 2 {
			return nil, arityErr("cons", args)
		}
		return &Cons{Head: args[0], Tail: args[1]}, nil
	})

	def("seq", func(args []Value) (Value, *Error) {
		if len(args) != 1 {
			return nil, arityErr("seq", args)
		}
		items, err := asSeqItems(args[0])
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return TheNil, nil
		}
		return NewList(items...), nil
	})

	def("count", func(args []Value) (Value, *Error) {
		if len(args) != 1 {
			return nil, arityErr("count", args)
		}
		switch c := args[0].(type) {
		case *NilVal:
			return &Int{Value: 0}, nil
		case *List:
			return &Int{Value: int64(c.Count())}, nil
		case *Vector:
			return &Int{Value: int64(c.Count())}, nil
		case *Set:
			return &Int{Value: int64(c.Count())}, nil
		case MapLike:
			return &Int{Value: int64(c.Count())}, nil
		case *Str:
			return &Int{Value: int64(len([]rune(c.Value)))}, nil
		}
		return nil, typeErr("count", "a countable collection", args[0])
	})

	def("empty?", func(args []Value) (Value, *Error) {
		if len(args) != 1 {
			return nil, arityErr("empty?", args)
		}
		items, err := asSeqItems(args[0])
		if err != nil {
			return nil, err
		}
		return BoolOf(len(items) == 0), nil
	})

	def("apply", func(args []Value) (Value, *Error) {
		if len(args) < 2 {
			return nil, arityErr("apply", args)
		}
		fn := args[0]
		tail, err := asSeqItems(args[len(args)-1])
		if err != nil {
			return nil, err
		}
		flat := append(append([]Value{}, args[1:len(args)-1]...), tail...)
		// flat's trailing portion is already realized seq items, not
		// per-call-site literal args; tell the variadic packer so it
		// doesn't copy them a second time into a fresh persistent list.
		SetApplyRestIsSeq(true)
		return CallValue(fn, flat)
	})

	def("map", func(args []Value) (Value, *Error) {
		if len(args) != 2 {
			return nil, arityErr("map", args)
		}
		items, err := asSeqItems(args[1])
		if err != nil {
			return nil, err
		}
		out := make([]Value, len(items))
		for i, it := range items {
			v, err := CallValue(args[0], []Value{it})
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return NewList(out...), nil
	})

	def("filter", func(args []Value) (Value, *Error) {
		if len(args) != 2 {
			return nil, arityErr("filter", args)
		}
		items, err := asSeqItems(args[1])
		if err != nil {
			return nil, err
		}
		var out []Value
		for _, it := range items {
			v, err := CallValue(args[0], []Value{it})
			if err != nil {
				return nil, err
			}
			if Truthy(v) {
				out = append(out, it)
			}
		}
		return NewList(out...), nil
	})

	def("reduce", func(args []Value) (Value, *Error) {
		if len(args) != 2 && len(args) != 3 {
			return nil, arityErr("reduce", args)
		}
		fn := args[0]
		var acc Value
		var items []Value
		var err *Error
		if len(args) == 3 {
			acc = args[1]
			items, err = asSeqItems(args[2])
		} else {
			items, err = asSeqItems(args[1])
			if err == nil && len(items) > 0 {
				acc, items = items[0], items[1:]
			} else if len(items) == 0 {
				return CallValue(fn, nil)
			}
		}
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			res, cerr := CallValue(fn, []Value{acc, it})
			if cerr != nil {
				return nil, cerr
			}
			if red, ok := res.(*Reduced); ok {
				return red.Val, nil
			}
			acc = res
		}
		return acc, nil
	})

	def("vector", func(args []Value) (Value, *Error) { return NewVector(args...), nil })
	def("list", func(args []Value) (Value, *Error) { return NewList(args...), nil })
	def("hash-set", func(args []Value) (Value, *Error) { return NewSet(args...), nil })
	def("hash-map", func(args []Value) (Value, *Error) {
		if len(args)%2 != 0 {
			return nil, arityErr("hash-map", args)
		}
		entries := make([]MapEntry, len(args)/2)
		for i := 0; i < len(args); i += 2 {
			entries[i/2] = MapEntry{Key: args[i], Val: args[i+1]}
		}
		return NewArrayMap(entries...), nil
	})
}

func mapEntryOf(v Value) (MapEntry, *Error) {
	vec, ok := v.(*Vector)
	if !ok || vec.Count() != 2 {
		return MapEntry{}, NewError(TypeErrorKind, "conj onto a map requires a [k v] pair", Pos{})
	}
	return MapEntry{Key: vec.MustNth(0), Val: vec.MustNth(1)}, nil
}

func registerIOBuiltins() {
	def("str", func(args []Value) (Value, *Error) {
		var b strings.Builder
		for _, a := range args {
			if _, ok := a.(*NilVal); ok {
				continue
			}
			b.WriteString(a.String())
		}
		return &Str{Value: b.String()}, nil
	})
	def("pr-str", func(args []Value) (Value, *Error) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = Pretty(a)
		}
		return &Str{Value: strings.Join(parts, " ")}, nil
	})
	def("println", func(args []Value) (Value, *Error) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = a.String()
		}
		fmt.Println(strings.Join(parts, " "))
		return TheNil, nil
	})
	def("print", func(args []Value) (Value, *Error) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = a.String()
		}
		fmt.Print(strings.Join(parts, " "))
		return TheNil, nil
	})
}

func registerRefBuiltins() {
	def("atom", func(args []Value) (Value, *Error) {
		if len(args) != 1 {
			return nil, arityErr("atom", args)
		}
		return NewAtom(args[0]), nil
	})
	def("deref", func(args []Value) (Value, *Error) {
		if len(args) != 1 {
			return nil, arityErr("deref", args)
		}
		switch r := args[0].(type) {
		case *Atom:
			return r.Deref(), nil
		case *Volatile:
			return r.Deref(), nil
		case *Delay:
			return r.Force()
		case *Future:
			return r.Deref()
		case *Agent:
			return r.Deref(), nil
		}
		return nil, typeErr("deref", "a ref type", args[0])
	})
	def("reset!", func(args []Value) (Value, *Error) {
		if len(args) != 2 {
			return nil, arityErr("reset!", args)
		}
		switch r := args[0].(type) {
		case *Atom:
			return r.Reset(args[1]), nil
		case *Volatile:
			return r.Reset(args[1]), nil
		}
		return nil, typeErr("reset!", "an atom or volatile", args[0])
	})
	def("swap!", func(args []Value) (Value, *Error) {
		if len(args) < 2 {
			return nil, arityErr("swap!", args)
		}
		a, ok := args[0].(*Atom)
		if !ok {
			return nil, typeErr("swap!", "an atom", args[0])
		}
		fn, extra := args[1], args[2:]
		var callErr *Error
		result := a.Swap(func(cur Value) Value {
			callArgs := append([]Value{cur}, extra...)
			v, err := CallValue(fn, callArgs)
			if err != nil {
				callErr = err
				return cur
			}
			return v
		})
		if callErr != nil {
			return nil, callErr
		}
		return result, nil
	})
	def("volatile!", func(args []Value) (Value, *Error) {
		if len(args) != 1 {
			return nil, arityErr("volatile!", args)
		}
		return NewVolatile(args[0]), nil
	})
	def("future-call", func(args []Value) (Value, *Error) {
		if len(args) != 1 {
			return nil, arityErr("future-call", args)
		}
		fn := args[0]
		return DefaultFutureExecutor.Submit(func() (Value, *Error) { return CallValue(fn, nil) }), nil
	})
	def("agent", func(args []Value) (Value, *Error) {
		if len(args) != 1 {
			return nil, arityErr("agent", args)
		}
		return NewAgent(args[0]), nil
	})
	def("send", func(args []Value) (Value, *Error) {
		if len(args) < 2 {
			return nil, arityErr("send", args)
		}
		a, ok := args[0].(*Agent)
		if !ok {
			return nil, typeErr("send", "an agent", args[0])
		}
		fn, extra := args[1], args[2:]
		a.Send(func(cur Value) Value {
			v, err := CallValue(fn, append([]Value{cur}, extra...))
			if err != nil {
				return cur
			}
			return v
		})
		return a, nil
	})
}

func registerMiscBuiltins() {
	def("gensym", func(args []Value) (Value, *Error) {
		prefix := ""
		if len(args) == 1 {
			s, ok := args[0].(*Str)
			if !ok {
				return nil, typeErr("gensym", "a string prefix", args[0])
			}
			prefix = s.Value
		}
		return Gensym(prefix), nil
	})
	def("throw", func(args []Value) (Value, *Error) {
		if len(args) != 1 {
			return nil, arityErr("throw", args)
		}
		return nil, &Error{Kind: UserExceptionKind, Message: "user exception", Thrown: args[0]}
	})
	def("ex-info", func(args []Value) (Value, *Error) {
		if len(args) != 2 {
			return nil, arityErr("ex-info", args)
		}
		msg, ok := args[0].(*Str)
		if !ok {
			return nil, typeErr("ex-info", "a string message", args[0])
		}
		data, ok := args[1].(*ArrayMap)
		if !ok {
			return nil, typeErr("ex-info", "a map of data", args[1])
		}
		return (&Error{Kind: UserExceptionKind, Message: msg.Value, Data: data}).AsValue(), nil
	})

	def("all-ns", func(args []Value) (Value, *Error) {
		if len(args) != 0 {
			return nil, arityErr("all-ns", args)
		}
		names := GlobalRegistry.Names()
		out := make([]Value, len(names))
		for i, n := range names {
			out[i] = &Str{Value: n}
		}
		return NewList(out...), nil
	})
	def("ns-publics", func(args []Value) (Value, *Error) {
		if len(args) != 1 {
			return nil, arityErr("ns-publics", args)
		}
		ns, err := resolveNSArg("ns-publics", args[0])
		if err != nil {
			return nil, err
		}
		return stringsToList(ns.OwnNames()), nil
	})
	def("ns-refers", func(args []Value) (Value, *Error) {
		if len(args) != 1 {
			return nil, arityErr("ns-refers", args)
		}
		ns, err := resolveNSArg("ns-refers", args[0])
		if err != nil {
			return nil, err
		}
		return stringsToList(ns.ReferredNames()), nil
	})
	def("ns-aliases", func(args []Value) (Value, *Error) {
		if len(args) != 1 {
			return nil, arityErr("ns-aliases", args)
		}
		ns, err := resolveNSArg("ns-aliases", args[0])
		if err != nil {
			return nil, err
		}
		return stringsToList(ns.AliasNames()), nil
	})

	def("derive", func(args []Value) (Value, *Error) {
		if len(args) != 2 {
			return nil, arityErr("derive", args)
		}
		globalHierarchy.Derive(args[0].String(), args[1].String())
		return TheNil, nil
	})
	def("isa?", func(args []Value) (Value, *Error) {
		if len(args) != 2 {
			return nil, arityErr("isa?", args)
		}
		return BoolOf(globalHierarchy.IsA(args[0].String(), args[1].String())), nil
	})
}

func resolveNSArg(name string, v Value) (*Namespace, *Error) {
	s, ok := v.(*Str)
	if !ok {
		return nil, typeErr(name, "a namespace name string", v)
	}
	ns, ok := GlobalRegistry.Find(s.Value)
	if !ok {
		return nil, NewError(UndefinedVarKind, fmt.Sprintf("no such namespace: %s", s.Value), Pos{})
	}
	return ns, nil
}

func stringsToList(names []string) *List {
	out := make([]Value, len(names))
	for i, n := range names {
		out[i] = &Str{Value: n}
	}
	return NewList(out...)
}
