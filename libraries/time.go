package libraries

import (
	"time"

	rt "clj-core/runtime"
)

// RegisterTime installs clj.time's wall-clock and sleep builtins into
// their own namespace, grounded on the teacher's RegisterTime but
// rebuilt against the Value/Namespace API (DOMAIN STACK "time").
func RegisterTime(registry *rt.NamespaceRegistry) *rt.Namespace {
	ns := registry.FindOrCreate("clj.time")

	ns.Define("now", &rt.BuiltinFn{Name: "now", Fn: func(args []rt.Value) (rt.Value, *rt.Error) {
		return &rt.Float{Value: float64(time.Now().UnixNano()) / 1e9}, nil
	}})
	ns.Define("millis", &rt.BuiltinFn{Name: "millis", Fn: func(args []rt.Value) (rt.Value, *rt.Error) {
		return &rt.Int{Value: time.Now().UnixMilli()}, nil
	}})
	ns.Define("nanos", &rt.BuiltinFn{Name: "nanos", Fn: func(args []rt.Value) (rt.Value, *rt.Error) {
		return &rt.Int{Value: time.Now().UnixNano()}, nil
	}})
	ns.Define("sleep", &rt.BuiltinFn{Name: "sleep", Fn: func(args []rt.Value) (rt.Value, *rt.Error) {
		if len(args) != 1 {
			return nil, rt.NewError(rt.ArityErrorKind, "sleep requires 1 argument", rt.Pos{})
		}
		switch ms := args[0].(type) {
		case *rt.Int:
			time.Sleep(time.Duration(ms.Value) * time.Millisecond)
		case *rt.Float:
			time.Sleep(time.Duration(ms.Value * float64(time.Millisecond)))
		default:
			return nil, rt.NewError(rt.TypeErrorKind, "sleep requires a number of milliseconds", rt.Pos{})
		}
		return rt.TheNil, nil
	}})

	return ns
}
