package runtime

import (
	"regexp"
	"sync"
)

// Atom is a synchronous, CAS-based mutable reference cell (spec §5
// "concurrency model"): the mutex guards only reading the value and the
// compare-and-swap itself, never a call to an update function, so readers
// never wait on a writer's update.
type Atom struct {
	mu  sync.Mutex
	val Value
}

func NewAtom(v Value) *Atom { return &Atom{val: v} }

func (a *Atom) Type() ValueType { return AtomType }
func (a *Atom) String() string  { return "#<atom " + a.Deref().String() + ">" }

func (a *Atom) Deref() Value {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.val
}

func (a *Atom) Reset(v Value) Value {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.val = v
	return v
}

// Swap applies fn to the current value outside the lock and stores the
// result only if the atom still holds the value fn was given, retrying
// with the newer value otherwise; it returns the value it stored.
func (a *Atom) Swap(fn func(Value) Value) Value {
	for {
		old := a.Deref()
		nv := fn(old)
		a.mu.Lock()
		if a.val == old {
			a.val = nv
			a.mu.Unlock()
			return nv
		}
		a.mu.Unlock()
	}
}

// CompareAndSet is the primitive spec §5 says the whole atom API rests on.
func (a *Atom) CompareAndSet(old, new Value) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !Eql(a.val, old) {
		return false
	}
	a.val = new
	return true
}

// Volatile is a plain mutable cell with no compare-and-swap guarantee,
// intended for single-threaded hot loops (spec §3.1 "volatile").
type Volatile struct {
	val Value
}

func NewVolatile(v Value) *Volatile { return &Volatile{val: v} }
func (v *Volatile) Type() ValueType { return VolatileType }
func (v *Volatile) String() string  { return "#<volatile " + v.val.String() + ">" }
func (v *Volatile) Deref() Value    { return v.val }
func (v *Volatile) Reset(x Value) Value {
	v.val = x
	return x
}

// Delay realizes its thunk at most once, caching the result (spec §3.1
// "delay").
type Delay struct {
	once  sync.Once
	thunk func() (Value, *Error)
	val   Value
	err   *Error
}

func NewDelay(thunk func() (Value, *Error)) *Delay { return &Delay{thunk: thunk} }

func (d *Delay) Type() ValueType { return DelayType }
func (d *Delay) String() string  { return "#<delay>" }

func (d *Delay) Force() (Value, *Error) {
	d.once.Do(func() { d.val, d.err = d.thunk() })
	return d.val, d.err
}

// Reduced wraps a value signalling early termination of a reduce (spec
// §3.1 "reduced").
type Reduced struct{ Val Value }

func (r *Reduced) Type() ValueType { return ReducedType }
func (r *Reduced) String() string  { return "#<reduced " + r.Val.String() + ">" }

// Regex wraps a compiled pattern.
type Regex struct {
	Source string
	re     *regexp.Regexp
}

func CompileRegex(src string) (*Regex, error) {
	re, err := regexp.Compile(src)
	if err != nil {
		return nil, err
	}
	return &Regex{Source: src, re: re}, nil
}

func (r *Regex) Type() ValueType        { return RegexType }
func (r *Regex) String() string         { return "#\"" + r.Source + "\"" }
func (r *Regex) Compiled() *regexp.Regexp { return r.re }

// Cons is a single prepended element in front of a lazily-realized tail
// seq (spec §3.1 "cons").
type Cons struct {
	Head Value
	Tail Value // another seq-producing Value: *Cons, *List, *LazySeq, TheNil, ...
}

func (c *Cons) Type() ValueType { return ConsType }
func (c *Cons) String() string  { return "(" + seqString(c) + ")" }

// ArrayChunk is a fixed window into a backing array, the unit
// chunked-seq traversal moves in (spec §3.1 "array-chunk").
type ArrayChunk struct {
	Items []Value
	Off   int
}

func (a *ArrayChunk) Type() ValueType { return ArrayChunkType }
func (a *ArrayChunk) String() string  { return joinPretty(a.Items[a.Off:], "#chunk[", "]") }
func (a *ArrayChunk) Count() int      { return len(a.Items) - a.Off }
func (a *ArrayChunk) Nth(i int) Value { return a.Items[a.Off+i] }

func (a *ArrayChunk) DropFirst() *ArrayChunk {
	return &ArrayChunk{Items: a.Items, Off: a.Off + 1}
}

// ChunkedCons pairs a realized ArrayChunk with the (possibly still lazy)
// remainder of the sequence (spec §3.1 "chunked-cons").
type ChunkedCons struct {
	Chunk *ArrayChunk
	Rest  Value
}

func (c *ChunkedCons) Type() ValueType { return ChunkedConsType }
func (c *ChunkedCons) String() string  { return "(" + seqString(c) + ")" }

// ChunkBuffer accumulates elements until Chunk() materializes them into an
// immutable ArrayChunk (spec §3.1 "chunk-buffer").
type ChunkBuffer struct {
	items []Value
}

func NewChunkBuffer() *ChunkBuffer { return &ChunkBuffer{} }

func (b *ChunkBuffer) Type() ValueType { return ChunkBufferType }
func (b *ChunkBuffer) String() string  { return joinPretty(b.items, "#chunk-buffer[", "]") }

func (b *ChunkBuffer) Add(v Value) { b.items = append(b.items, v) }

func (b *ChunkBuffer) Chunk() *ArrayChunk {
	out := make([]Value, len(b.items))
	copy(out, b.items)
	return &ArrayChunk{Items: out}
}

// LazySeq defers computing its head/tail pair until first forced, caching
// the result exactly once (spec §3.1 "lazy-seq", §4.1 LazySeq node).
type LazySeq struct {
	once  sync.Once
	thunk func() (Value, *Error) // returns the realized seq: nil/TheNil, *Cons, *List, ...
	val   Value
	err   *Error
}

func NewLazySeq(thunk func() (Value, *Error)) *LazySeq { return &LazySeq{thunk: thunk} }

func (l *LazySeq) Type() ValueType { return LazySeqType }
func (l *LazySeq) String() string  { return "(" + seqString(l) + ")" }

// Realize forces the thunk at most once and returns the underlying seq.
func (l *LazySeq) Realize() (Value, *Error) {
	l.once.Do(func() { l.val, l.err = l.thunk() })
	if l.err != nil {
		return nil, l.err
	}
	if l.val == nil {
		return TheNil, nil
	}
	return l.val, nil
}

// seqString renders any seq-shaped Value's elements space-joined, forcing
// laziness as it walks — used only for display (`str`, `pr-str`), never
// on the evaluation hot path.
func seqString(v Value) string {
	var parts []string
	cur := v
	for {
		switch t := cur.(type) {
		case *NilVal:
			goto done
		case *Cons:
			parts = append(parts, t.Head.String())
			cur = t.Tail
		case *ChunkedCons:
			for i := 0; i < t.Chunk.Count(); i++ {
				parts = append(parts, t.Chunk.Nth(i).String())
			}
			cur = t.Rest
		case *List:
			for _, it := range t.Items {
				parts = append(parts, it.String())
			}
			goto done
		case *LazySeq:
			realized, err := t.Realize()
			if err != nil {
				parts = append(parts, "#<error>")
				goto done
			}
			cur = realized
		default:
			goto done
		}
	}
done:
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " "
		}
		out += p
	}
	return out
}

// WasmModule/WasmFn are opaque placeholders: the evaluation core only
// needs these two variants to exist as dispatchable Value kinds so a host
// embedding a real wasm runtime can populate them; executing wasm code is
// outside this module's scope (spec §1 Non-goals).
type WasmModule struct{ Name string }

func (m *WasmModule) Type() ValueType { return WasmModuleType }
func (m *WasmModule) String() string  { return "#<wasm-module " + m.Name + ">" }

type WasmFn struct {
	Module *WasmModule
	Export string
}

func (f *WasmFn) Type() ValueType { return WasmFnType }
func (f *WasmFn) String() string  { return "#<wasm-fn " + f.Export + ">" }
