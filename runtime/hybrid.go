package runtime

import (
	"sync"

	"clj-core/ast"
)

// FnStats tracks a compiled fn's call history so the hybrid engine can
// keep preferring whichever backend has been working for it, the same
// adaptive idea as the teacher's HybridEngine.FunctionStats (spec §4.4
// "cross-backend dispatcher", §9 Open Question "compile eagerly or
// adaptively").
type FnStats struct {
	CallCount     int
	FallbackCount int // times a call dropped to the interpreter (argc outside the compiled arity, or PreferInterp set)
	PreferInterp  bool
}

// HybridEngine owns the policy for choosing, per call, between the
// compiled VM path and the tree-walk interpreter: compile once, run
// compiled when the call's arity matches what got compiled, and fall
// back to a fresh TreeClosure over the full multi-arity Fn node
// otherwise (spec §4.2 "compileFnProto compiles only the first arity",
// §4.4).
type HybridEngine struct {
	mu    sync.Mutex
	stats map[*FnProto]*FnStats
}

// DefaultHybridEngine is the single shared instance every CallValue of a
// *VMClosure routes calls through, mirroring the teacher's one
// process-wide HybridEngine plugged into the VM's call opcode.
var DefaultHybridEngine = &HybridEngine{stats: make(map[*FnProto]*FnStats)}

func (h *HybridEngine) statsFor(proto *FnProto) *FnStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.stats[proto]
	if !ok {
		s = &FnStats{}
		h.stats[proto] = s
	}
	return s
}

// CallCompiled is callVMClosure's decision point: run the compiled chunk
// when argc selects the one arity that got compiled, else fall back to
// interpreting the original (possibly multi-arity) Fn node directly,
// rebuilding a TreeClosure from OrigNode and the closure's captures
// (spec §4.2 "multi-arity compiled fns route through the hybrid
// dispatcher's interpreter fallback").
func (h *HybridEngine) CallCompiled(c *VMClosure, args []Value) (Value, *Error) {
	proto := c.Proto
	stats := h.statsFor(proto)
	stats.CallCount++

	argcMatches := len(args) == proto.ParamCount ||
		(proto.Variadic && len(args) >= proto.ParamCount-1)

	if argcMatches && !stats.PreferInterp {
		return RunClosure(c, args)
	}

	fnNode, ok := proto.OrigNode.(*ast.Fn)
	if !ok || len(fnNode.Arities) == 0 {
		// no original node to fall back to (a proto built without one,
		// e.g. CompileTopLevel's synthetic wrapper) — the mismatch is
		// a genuine arity error, let RunClosure report it.
		return RunClosure(c, args)
	}

	stats.FallbackCount++
	if stats.FallbackCount > 2 {
		// this fn is repeatedly called at arities the compiled proto
		// doesn't cover; stop paying the failed-match cost on every call.
		stats.PreferInterp = true
	}

	// A VMClosure records no defining namespace, so the fallback closure
	// resolves vars in the calling frame's current namespace.
	tc := &TreeClosure{Node: fnNode, Captures: c.Captures, DefNS: CurrentNamespace()}
	return callTreeClosure(tc, args)
}
