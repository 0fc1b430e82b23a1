package runtime

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// ValueType tags the closed set of runtime value variants (spec §3.1).
type ValueType string

func (t ValueType) String() string { return string(t) }

const (
	NilType     ValueType = "nil"
	BoolType    ValueType = "boolean"
	IntType     ValueType = "integer"
	FloatType   ValueType = "float"
	CharType    ValueType = "char"
	StringType  ValueType = "string"
	SymbolType  ValueType = "symbol"
	KeywordType ValueType = "keyword"

	ListType    ValueType = "list"
	VectorType  ValueType = "vector"
	MapType     ValueType = "map"     // small array map
	HashMapType ValueType = "hashmap" // HAMT, promoted from MapType above 8 entries
	SetType     ValueType = "set"

	FnType       ValueType = "fn"
	BuiltinType  ValueType = "builtin-fn"
	ProtocolType ValueType = "protocol"
	ProtoFnType  ValueType = "protocol-fn"
	MultiFnType  ValueType = "multi-fn"
	VarType      ValueType = "var-ref"
	AtomType     ValueType = "atom"
	VolatileType ValueType = "volatile"

	LazySeqType     ValueType = "lazy-seq"
	ConsType        ValueType = "cons"
	ChunkedConsType ValueType = "chunked-cons"
	ArrayChunkType  ValueType = "array-chunk"
	ChunkBufferType ValueType = "chunk-buffer"

	TransientVectorType ValueType = "transient-vector"
	TransientMapType    ValueType = "transient-map"
	TransientSetType    ValueType = "transient-set"

	BigIntType     ValueType = "big-integer"
	RatioType      ValueType = "ratio"
	BigDecimalType ValueType = "big-decimal"

	DelayType   ValueType = "delay"
	ReducedType ValueType = "reduced"
	RegexType   ValueType = "regex"

	WasmModuleType ValueType = "wasm-module"
	WasmFnType     ValueType = "wasm-fn"
)

// Value is the sum type every evaluator operation is total over; a type
// mismatch at a call site raises a type-error (spec §3.1, §4.6).
type Value interface {
	Type() ValueType
	String() string
}

// ---- nil / boolean ----

type NilVal struct{}

func (*NilVal) Type() ValueType { return NilType }
func (*NilVal) String() string  { return "nil" }

// TheNil is the single distinguished falsy nil singleton.
var TheNil = &NilVal{}

type Bool struct{ Value bool }

func (b *Bool) Type() ValueType { return BoolType }
func (b *Bool) String() string  { return fmt.Sprintf("%v", b.Value) }

var (
	True  = &Bool{Value: true}
	False = &Bool{Value: false}
)

func BoolOf(b bool) *Bool {
	if b {
		return True
	}
	return False
}

// Truthy reports whether v counts as true: only nil and false are falsy
// (spec §3.1 "truthiness").
func Truthy(v Value) bool {
	switch t := v.(type) {
	case nil:
		return false
	case *NilVal:
		return false
	case *Bool:
		return t.Value
	default:
		return true
	}
}

// ---- numeric immediates ----

type Int struct{ Value int64 }

func (i *Int) Type() ValueType { return IntType }
func (i *Int) String() string  { return fmt.Sprintf("%d", i.Value) }

type Float struct{ Value float64 }

func (f *Float) Type() ValueType { return FloatType }
func (f *Float) String() string  { return fmt.Sprintf("%v", f.Value) }

type Char struct{ Value rune }

func (c *Char) Type() ValueType { return CharType }
func (c *Char) String() string  { return string(c.Value) }

// ---- string / symbol / keyword ----

type Str struct{ Value string }

func (s *Str) Type() ValueType { return StringType }
func (s *Str) String() string  { return s.Value }

type Symbol struct {
	NS   string
	Name string
}

func (s *Symbol) Type() ValueType { return SymbolType }
func (s *Symbol) String() string {
	if s.NS == "" {
		return s.Name
	}
	return s.NS + "/" + s.Name
}

// Keyword is interned by (ns,name); its hash is cached at intern time so
// HAMT lookups never recompute it (spec §3.1/§3.2).
type Keyword struct {
	NS   string
	Name string
	h    uint32
}

func (k *Keyword) Type() ValueType { return KeywordType }
func (k *Keyword) String() string {
	if k.NS == "" {
		return ":" + k.Name
	}
	return ":" + k.NS + "/" + k.Name
}

var keywordTable = newInternTable()

// InternKeyword returns the canonical *Keyword for (ns,name); pointer
// equality holds for any two keywords with the same (ns,name) afterwards.
func InternKeyword(ns, name string) *Keyword {
	key := ns + "\x00" + name
	return keywordTable.intern(key, func() *Keyword {
		k := &Keyword{NS: ns, Name: name}
		k.h = finalizeHash(fnv32(key) ^ 0x6b657977)
		return k
	})
}

// ---- equality & hashing (spec §3.1 invariants) ----

// Eql is full structural equality across every variant. Int and Float
// compare across kind by numeric value, matching the user-visible `=`.
func Eql(a, b Value) bool {
	if a == nil {
		a = TheNil
	}
	if b == nil {
		b = TheNil
	}
	switch av := a.(type) {
	case *NilVal:
		_, ok := b.(*NilVal)
		return ok
	case *Bool:
		bv, ok := b.(*Bool)
		return ok && av.Value == bv.Value
	case *Int:
		switch bv := b.(type) {
		case *Int:
			return av.Value == bv.Value
		case *Float:
			return float64(av.Value) == bv.Value
		case *BigInteger:
			return bv.Cmp(NewBigIntegerFromInt64(av.Value)) == 0
		}
		return false
	case *Float:
		switch bv := b.(type) {
		case *Float:
			return av.Value == bv.Value
		case *Int:
			return av.Value == float64(bv.Value)
		}
		return false
	case *Char:
		bv, ok := b.(*Char)
		return ok && av.Value == bv.Value
	case *Str:
		bv, ok := b.(*Str)
		return ok && av.Value == bv.Value
	case *Symbol:
		bv, ok := b.(*Symbol)
		return ok && av.NS == bv.NS && av.Name == bv.Name
	case *Keyword:
		if bv, ok := b.(*Keyword); ok {
			return av == bv || (av.NS == bv.NS && av.Name == bv.Name)
		}
		return false
	case *BigInteger:
		switch bv := b.(type) {
		case *BigInteger:
			return av.Cmp(bv) == 0
		case *Int:
			return av.Cmp(NewBigIntegerFromInt64(bv.Value)) == 0
		}
		return false
	case *Ratio:
		bv, ok := b.(*Ratio)
		return ok && av.Cmp(bv) == 0
	case *BigDecimal:
		bv, ok := b.(*BigDecimal)
		return ok && av.Cmp(bv) == 0
	case *List:
		return eqlSeq(av.Items, b)
	case *Vector:
		bv, ok := b.(*Vector)
		if !ok || av.Count() != bv.Count() {
			return false
		}
		for i := 0; i < av.Count(); i++ {
			if !Eql(av.MustNth(i), bv.MustNth(i)) {
				return false
			}
		}
		return true
	case MapLike:
		return eqlMap(av, b)
	case *Set:
		bv, ok := b.(*Set)
		if !ok || av.Count() != bv.Count() {
			return false
		}
		for _, item := range av.items {
			if !bv.Contains(item) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func eqlSeq(items []Value, b Value) bool {
	bl, ok := b.(*List)
	if !ok || len(items) != len(bl.Items) {
		return false
	}
	for i := range items {
		if !Eql(items[i], bl.Items[i]) {
			return false
		}
	}
	return true
}

func eqlMap(a MapLike, b Value) bool {
	bm, ok := b.(MapLike)
	if !ok || a.Count() != bm.Count() {
		return false
	}
	eq := true
	a.Each(func(k, v Value) bool {
		bv, found := bm.Get(k)
		if !found || !Eql(v, bv) {
			eq = false
			return false
		}
		return true
	})
	return eq
}

// Hash computes a value such that Eql(a,b) implies Hash(a)==Hash(b).
func Hash(v Value) uint32 {
	if v == nil {
		v = TheNil
	}
	switch t := v.(type) {
	case *NilVal:
		return 0
	case *Bool:
		if t.Value {
			return 1231
		}
		return 1237
	case *Int:
		return finalizeHash(uint32(t.Value) ^ uint32(t.Value>>32))
	case *Float:
		if f := t.Value; f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
			return Hash(&Int{Value: int64(f)})
		}
		bits := math.Float64bits(t.Value)
		return finalizeHash(uint32(bits) ^ uint32(bits>>32))
	case *Char:
		return finalizeHash(uint32(t.Value))
	case *Str:
		return finalizeHash(fnv32(t.Value))
	case *Symbol:
		return finalizeHash(fnv32(t.NS + "/" + t.Name))
	case *Keyword:
		if t.h == 0 {
			return finalizeHash(fnv32(t.NS+"\x00"+t.Name) ^ 0x6b657977)
		}
		return t.h
	case *BigInteger:
		if t.v.IsInt64() {
			return Hash(&Int{Value: t.v.Int64()})
		}
		return finalizeHash(fnv32(t.String()))
	case *Ratio:
		return finalizeHash(fnv32(t.String()))
	case *BigDecimal:
		return finalizeHash(fnv32(t.String()))
	case *List:
		h := uint32(1)
		for _, it := range t.Items {
			h = h*31 + Hash(it)
		}
		return finalizeHash(h)
	case *Vector:
		h := uint32(1)
		for i := 0; i < t.Count(); i++ {
			h = h*31 + Hash(t.MustNth(i))
		}
		return finalizeHash(h)
	case MapLike:
		var h uint32
		t.Each(func(k, v Value) bool {
			h += Hash(k) ^ Hash(v)
			return true
		})
		return finalizeHash(h)
	case *Set:
		var h uint32
		for _, it := range t.items {
			h += Hash(it)
		}
		return finalizeHash(h)
	default:
		return finalizeHash(fnv32(fmt.Sprintf("%p", v)))
	}
}

func fnv32(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// finalizeHash applies Murmur3's integer finalizer, the same spreading
// step Clojure's own HAMT runs on object hashCodes before dispatch.
func finalizeHash(h uint32) uint32 {
	h ^= h >> 16
	h *= 0x85ebca6b
	h ^= h >> 13
	h *= 0xc2b2ae35
	h ^= h >> 16
	return h
}

// MapLike unifies ArrayMap and HashMap for equality, hashing, and dispatch.
type MapLike interface {
	Value
	Count() int
	Get(k Value) (Value, bool)
	Each(fn func(k, v Value) bool)
}

func joinPretty(vals []Value, open, close string) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = v.String()
	}
	return open + strings.Join(parts, " ") + close
}

func sortedPairsString(keys []Value, get func(Value) Value, open, sep, close string) string {
	strs := make([]string, len(keys))
	for i, k := range keys {
		strs[i] = k.String() + " " + get(k).String()
	}
	sort.Strings(strs)
	return open + strings.Join(strs, sep) + close
}
