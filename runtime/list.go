package runtime

// List is a persistent singly-linked-feeling sequence, represented here as
// an immutable slice (spec §3.2 "persistent list"). Growth always
// allocates a new backing slice; lists are expected to be built via cons
// from the empty list rather than conj'd onto repeatedly.
type List struct {
	Items []Value
}

var EmptyList = &List{Items: nil}

func NewList(items ...Value) *List {
	cp := make([]Value, len(items))
	copy(cp, items)
	return &List{Items: cp}
}

func (l *List) Type() ValueType { return ListType }
func (l *List) String() string  { return joinPretty(l.Items, "(", ")") }
func (l *List) Count() int      { return len(l.Items) }
func (l *List) IsEmpty() bool   { return len(l.Items) == 0 }

// First returns the head or TheNil for an empty list (spec §3.2 seq ops).
func (l *List) First() Value {
	if len(l.Items) == 0 {
		return TheNil
	}
	return l.Items[0]
}

// Rest returns the tail, or the empty list if there is no tail.
func (l *List) Rest() *List {
	if len(l.Items) <= 1 {
		return EmptyList
	}
	return &List{Items: l.Items[1:]}
}

// Cons prepends x, allocating a new backing slice.
func (l *List) Cons(x Value) *List {
	out := make([]Value, len(l.Items)+1)
	out[0] = x
	copy(out[1:], l.Items)
	return &List{Items: out}
}
