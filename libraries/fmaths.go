package libraries

import (
	"math"

	rt "clj-core/runtime"
)

// asFloat widens an Int or Float to a float64 argument for the math
// package; any other value, BigInteger, Ratio and BigDecimal included, is
// a type error. fmaths functions always return a Float, matching how clj.math behaves
// as a thin wrapper over Go's math package rather than a tower-aware
// arithmetic op (contrast with runtime/arithmetic.go's +/-/*//).
func asFloat(name string, v rt.Value) (float64, *rt.Error) {
	switch n := v.(type) {
	case *rt.Int:
		return float64(n.Value), nil
	case *rt.Float:
		return n.Value, nil
	}
	return 0, rt.NewError(rt.TypeErrorKind, name+" requires a number", rt.Pos{})
}

func f1(name string, fn func(float64) float64) *rt.BuiltinFn {
	return &rt.BuiltinFn{Name: name, Fn: func(args []rt.Value) (rt.Value, *rt.Error) {
		if len(args) != 1 {
			return nil, rt.NewError(rt.ArityErrorKind, name+" requires 1 argument", rt.Pos{})
		}
		x, err := asFloat(name, args[0])
		if err != nil {
			return nil, err
		}
		return &rt.Float{Value: fn(x)}, nil
	}}
}

func f2(name string, fn func(a, b float64) float64) *rt.BuiltinFn {
	return &rt.BuiltinFn{Name: name, Fn: func(args []rt.Value) (rt.Value, *rt.Error) {
		if len(args) != 2 {
			return nil, rt.NewError(rt.ArityErrorKind, name+" requires 2 arguments", rt.Pos{})
		}
		a, err := asFloat(name, args[0])
		if err != nil {
			return nil, err
		}
		b, err := asFloat(name, args[1])
		if err != nil {
			return nil, err
		}
		return &rt.Float{Value: fn(a, b)}, nil
	}}
}

// RegisterFMaths installs clj.math's transcendental and rounding
// functions into their own namespace, grounded on the teacher's
// RegisterFMaths but re-expressed as Vars bound in a real Namespace
// rather than a standalone map, matching how every other builtin module
// in this tree attaches to the runtime (spec SUPPLEMENTED FEATURES,
// DOMAIN STACK "fmaths").
func RegisterFMaths(registry *rt.NamespaceRegistry) *rt.Namespace {
	ns := registry.FindOrCreate("clj.math")

	define := func(b *rt.BuiltinFn) { ns.Define(b.Name, b) }

	define(f2("pow", math.Pow))
	define(f1("sqrt", math.Sqrt))
	define(f1("cbrt", math.Cbrt))
	define(f1("log", math.Log))
	define(f1("log10", math.Log10))
	define(f1("log2", math.Log2))
	define(f1("exp", math.Exp))
	define(f1("exp2", math.Exp2))
	define(f1("sin", math.Sin))
	define(f1("cos", math.Cos))
	define(f1("tan", math.Tan))
	define(f1("asin", math.Asin))
	define(f1("acos", math.Acos))
	define(f1("atan", math.Atan))
	define(f2("atan2", math.Atan2))
	define(f1("sinh", math.Sinh))
	define(f1("cosh", math.Cosh))
	define(f1("tanh", math.Tanh))
	define(f1("abs", math.Abs))
	define(f1("ceil", math.Ceil))
	define(f1("floor", math.Floor))
	define(f1("round", math.Round))
	define(f1("gamma", math.Gamma))

	ns.Define("min", &rt.BuiltinFn{Name: "min", Fn: func(args []rt.Value) (rt.Value, *rt.Error) {
		if len(args) < 2 {
			return nil, rt.NewError(rt.ArityErrorKind, "min requires at least 2 arguments", rt.Pos{})
		}
		m := math.Inf(1)
		for _, a := range args {
			x, err := asFloat("min", a)
			if err != nil {
				return nil, err
			}
			if x < m {
				m = x
			}
		}
		return &rt.Float{Value: m}, nil
	}})
	ns.Define("max", &rt.BuiltinFn{Name: "max", Fn: func(args []rt.Value) (rt.Value, *rt.Error) {
		if len(args) < 2 {
			return nil, rt.NewError(rt.ArityErrorKind, "max requires at least 2 arguments", rt.Pos{})
		}
		m := math.Inf(-1)
		for _, a := range args {
			x, err := asFloat("max", a)
			if err != nil {
				return nil, err
			}
			if x > m {
				m = x
			}
		}
		return &rt.Float{Value: m}, nil
	}})
	ns.Define("factorial", &rt.BuiltinFn{Name: "factorial", Fn: func(args []rt.Value) (rt.Value, *rt.Error) {
		if len(args) != 1 {
			return nil, rt.NewError(rt.ArityErrorKind, "factorial requires 1 argument", rt.Pos{})
		}
		i, ok := args[0].(*rt.Int)
		if !ok || i.Value < 0 {
			return nil, rt.NewError(rt.TypeErrorKind, "factorial requires a non-negative integer", rt.Pos{})
		}
		result := int64(1)
		for k := int64(2); k <= i.Value; k++ {
			result *= k
		}
		return &rt.Int{Value: result}, nil
	}})

	ns.Define("pi", &rt.Float{Value: math.Pi})
	ns.Define("e", &rt.Float{Value: math.E})
	ns.Define("phi", &rt.Float{Value: 1.618033988749894})
	ns.Define("sqrt2", &rt.Float{Value: math.Sqrt2})
	ns.Define("ln2", &rt.Float{Value: math.Ln2})
	ns.Define("ln10", &rt.Float{Value: math.Ln10})

	return ns
}
