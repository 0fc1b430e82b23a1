package runtime

import (
	"sync"

	"github.com/petermattis/goid"
)

// threadState is the per-goroutine mutable state spec §3.6/§9 calls out as
// "global" but which must not leak across goroutines: the current
// exception inside a catch body, the current namespace, the "apply rest
// is already a seq" flag the `apply` builtin sets, the dynamic Var
// binding stack, and the call-frame log used for stack traces.
type threadState struct {
	currentException Value
	currentNS        *Namespace
	applyRestIsSeq   bool

	bindings []map[*Var]Value // one map per nested `binding` frame
	frames   []Frame
}

// Frame is one entry of a call-stack trace (spec §7 "call-stack frames").
type Frame struct {
	FnName string
	Pos    Pos
}

var (
	threadsMu sync.Mutex
	threads   = make(map[int64]*threadState)
)

func currentThread() *threadState {
	id := goid.Get()
	threadsMu.Lock()
	defer threadsMu.Unlock()
	ts, ok := threads[id]
	if !ok {
		ts = &threadState{}
		threads[id] = ts
	}
	return ts
}

// dropThread releases this goroutine's thread state; call when a worker
// goroutine (future/agent task) finishes, so the registry does not grow
// without bound (spec §5 resource model).
func dropThread() {
	id := goid.Get()
	threadsMu.Lock()
	defer threadsMu.Unlock()
	delete(threads, id)
}

func (ts *threadState) dynamicBinding(v *Var) (Value, bool) {
	for i := len(ts.bindings) - 1; i >= 0; i-- {
		if val, ok := ts.bindings[i][v]; ok {
			return val, true
		}
	}
	return nil, false
}

func (ts *threadState) setDynamicBinding(v *Var, val Value) bool {
	for i := len(ts.bindings) - 1; i >= 0; i-- {
		if _, ok := ts.bindings[i][v]; ok {
			ts.bindings[i][v] = val
			return true
		}
	}
	return false
}

// PushBindings opens a new `binding` frame.
func (ts *threadState) PushBindings(frame map[*Var]Value) {
	ts.bindings = append(ts.bindings, frame)
}

func (ts *threadState) PopBindings() {
	if len(ts.bindings) > 0 {
		ts.bindings = ts.bindings[:len(ts.bindings)-1]
	}
}

func (ts *threadState) PushFrame(f Frame) { ts.frames = append(ts.frames, f) }
func (ts *threadState) PopFrame() {
	if len(ts.frames) > 0 {
		ts.frames = ts.frames[:len(ts.frames)-1]
	}
}

// StackTrace renders the current goroutine's call frames, deepest first,
// for inclusion in an uncaught-exception report (spec §7).
func StackTrace() []Frame {
	ts := currentThread()
	out := make([]Frame, len(ts.frames))
	for i, f := range ts.frames {
		out[len(ts.frames)-1-i] = f
	}
	return out
}

// CurrentNamespace/SetCurrentNamespace expose the per-goroutine "current
// namespace" cell that `in-ns`/`ns` mutate (spec §3.4).
func CurrentNamespace() *Namespace       { return currentThread().currentNS }
func SetCurrentNamespace(ns *Namespace)  { currentThread().currentNS = ns }

func CurrentException() Value      { return currentThread().currentException }
func setCurrentException(v Value)  { currentThread().currentException = v }

// SetApplyRestIsSeq marks that the next variadic call's trailing arguments
// came from `apply` flattening an already-realized seq, so the variadic
// packer that binds them can skip copying them into a brand new
// persistent list (spec §4.5/§9: "essential for correctness... for a very
// large lazy sequence").
func SetApplyRestIsSeq(b bool) { currentThread().applyRestIsSeq = b }

// ConsumeApplyRestIsSeq reads and clears the flag in one step, so only the
// one variadic bind immediately following an `apply` call observes it —
// never a call nested further inside the applied fn's own body.
func ConsumeApplyRestIsSeq() bool {
	ts := currentThread()
	b := ts.applyRestIsSeq
	ts.applyRestIsSeq = false
	return b
}
