package runtime

import "math/bits"

// hamtBits is the branching factor exponent: 32-way nodes, 5 bits of hash
// consumed per level (spec §3.2 "32-way HAMT map").
const hamtBits = 5
const hamtMask = 1<<hamtBits - 1
const hamtMaxLevels = 7 // ceil(32/5); the last level has only 2 live bits

// hamtNode is either a bitmap-indexed branch (dataMap/nodeMap + kvs/children)
// or, once the 32-bit hash is fully consumed at depth hamtMaxLevels, a flat
// collision bucket of colliding entries.
type hamtNode struct {
	dataMap uint32
	nodeMap uint32
	kvs     []Value     // interleaved key0, val0, key1, val1, ... (popcount(dataMap) pairs)
	children []*hamtNode // popcount(nodeMap) entries, parallel to nodeMap's set bits

	collision []Value // interleaved k,v pairs; non-nil only at a terminal collision node
}

func bitpos(frag uint32) uint32 { return 1 << frag }
func popcount(x uint32) int     { return bits.OnesCount32(x) }

func hashFragment(hash uint32, shift uint) uint32 {
	return (hash >> shift) & hamtMask
}

// HashMap is the 32-way HAMT persistent map (spec §3.2).
type HashMap struct {
	root  *hamtNode
	count int
}

func NewHashMap() *HashMap { return &HashMap{root: &hamtNode{}, count: 0} }

func (m *HashMap) Type() ValueType { return HashMapType }
func (m *HashMap) Count() int      { return m.count }

func (m *HashMap) String() string {
	keys := make([]Value, 0, m.count)
	m.Each(func(k, v Value) bool { keys = append(keys, k); return true })
	return sortedPairsString(keys, func(k Value) Value {
		v, _ := m.Get(k)
		return v
	}, "{", ", ", "}")
}

func (m *HashMap) Get(k Value) (Value, bool) {
	return hamtGet(m.root, Hash(k), 0, k)
}

func hamtGet(n *hamtNode, hash uint32, shift uint, k Value) (Value, bool) {
	if n == nil {
		return nil, false
	}
	if n.collision != nil {
		for i := 0; i < len(n.collision); i += 2 {
			if Eql(n.collision[i], k) {
				return n.collision[i+1], true
			}
		}
		return nil, false
	}
	frag := hashFragment(hash, shift)
	bp := bitpos(frag)
	if n.dataMap&bp != 0 {
		idx := popcount(n.dataMap & (bp - 1))
		if Eql(n.kvs[2*idx], k) {
			return n.kvs[2*idx+1], true
		}
		return nil, false
	}
	if n.nodeMap&bp != 0 {
		idx := popcount(n.nodeMap & (bp - 1))
		return hamtGet(n.children[idx], hash, shift+hamtBits, k)
	}
	return nil, false
}

// Assoc returns a new HashMap with k bound to v, copying every node on the
// path from the root (spec §3.2 structural sharing).
func (m *HashMap) Assoc(k, v Value) *HashMap {
	newRoot, added := hamtAssoc(m.root, Hash(k), 0, k, v)
	count := m.count
	if added {
		count++
	}
	return &HashMap{root: newRoot, count: count}
}

func hamtAssoc(n *hamtNode, hash uint32, shift uint, k, v Value) (*hamtNode, bool) {
	if n == nil {
		n = &hamtNode{}
	}
	if n.collision != nil {
		for i := 0; i < len(n.collision); i += 2 {
			if Eql(n.collision[i], k) {
				out := append([]Value(nil), n.collision...)
				out[i+1] = v
				return &hamtNode{collision: out}, false
			}
		}
		out := append(append([]Value(nil), n.collision...), k, v)
		return &hamtNode{collision: out}, true
	}

	if shift >= hamtBits*hamtMaxLevels {
		// hash fully consumed: degrade to a collision bucket
		out := []Value{k, v}
		return &hamtNode{collision: out}, true
	}

	frag := hashFragment(hash, shift)
	bp := bitpos(frag)

	if n.dataMap&bp != 0 {
		idx := popcount(n.dataMap & (bp - 1))
		exKey, exVal := n.kvs[2*idx], n.kvs[2*idx+1]
		if Eql(exKey, k) {
			kvs := append([]Value(nil), n.kvs...)
			kvs[2*idx+1] = v
			return &hamtNode{dataMap: n.dataMap, nodeMap: n.nodeMap, kvs: kvs, children: n.children}, false
		}
		// collision at this slot: push both down into a child node
		child, _ := hamtAssoc(&hamtNode{}, Hash(exKey), shift+hamtBits, exKey, exVal)
		child, _ = hamtAssoc(child, hash, shift+hamtBits, k, v)

		kvs := removePair(n.kvs, idx)
		newDataMap := n.dataMap &^ bp
		newNodeMap := n.nodeMap | bp
		childIdx := popcount(newNodeMap & (bp - 1))
		children := insertChild(n.children, childIdx, child)
		return &hamtNode{dataMap: newDataMap, nodeMap: newNodeMap, kvs: kvs, children: children}, true
	}

	if n.nodeMap&bp != 0 {
		idx := popcount(n.nodeMap & (bp - 1))
		newChild, added := hamtAssoc(n.children[idx], hash, shift+hamtBits, k, v)
		children := append([]*hamtNode(nil), n.children...)
		children[idx] = newChild
		return &hamtNode{dataMap: n.dataMap, nodeMap: n.nodeMap, kvs: n.kvs, children: children}, added
	}

	// empty slot: insert a new data entry
	idx := popcount(n.dataMap & (bp - 1))
	kvs := insertPair(n.kvs, idx, k, v)
	return &hamtNode{dataMap: n.dataMap | bp, nodeMap: n.nodeMap, kvs: kvs, children: n.children}, true
}

func insertPair(kvs []Value, idx int, k, v Value) []Value {
	out := make([]Value, len(kvs)+2)
	copy(out, kvs[:2*idx])
	out[2*idx] = k
	out[2*idx+1] = v
	copy(out[2*idx+2:], kvs[2*idx:])
	return out
}

func removePair(kvs []Value, idx int) []Value {
	out := make([]Value, 0, len(kvs)-2)
	out = append(out, kvs[:2*idx]...)
	out = append(out, kvs[2*idx+2:]...)
	return out
}

func insertChild(children []*hamtNode, idx int, child *hamtNode) []*hamtNode {
	out := make([]*hamtNode, len(children)+1)
	copy(out, children[:idx])
	out[idx] = child
	copy(out[idx+1:], children[idx:])
	return out
}

func removeChild(children []*hamtNode, idx int) []*hamtNode {
	out := make([]*hamtNode, 0, len(children)-1)
	out = append(out, children[:idx]...)
	out = append(out, children[idx+1:]...)
	return out
}

// Dissoc returns a HashMap without k, canonicalizing any node left with a
// single data entry and no children back into its parent's data slot
// (spec §3.2 "node canonicalization on dissoc").
func (m *HashMap) Dissoc(k Value) *HashMap {
	newRoot, removed := hamtDissoc(m.root, Hash(k), 0, k)
	if !removed {
		return m
	}
	if newRoot == nil {
		newRoot = &hamtNode{}
	}
	return &HashMap{root: newRoot, count: m.count - 1}
}

// hamtDissoc returns (nil, true) when the node becomes empty and should be
// removed from its parent entirely.
func hamtDissoc(n *hamtNode, hash uint32, shift uint, k Value) (*hamtNode, bool) {
	if n == nil {
		return nil, false
	}
	if n.collision != nil {
		for i := 0; i < len(n.collision); i += 2 {
			if Eql(n.collision[i], k) {
				out := append(append([]Value(nil), n.collision[:i]...), n.collision[i+2:]...)
				if len(out) == 0 {
					return nil, true
				}
				return &hamtNode{collision: out}, true
			}
		}
		return n, false
	}

	frag := hashFragment(hash, shift)
	bp := bitpos(frag)

	if n.dataMap&bp != 0 {
		idx := popcount(n.dataMap & (bp - 1))
		if !Eql(n.kvs[2*idx], k) {
			return n, false
		}
		kvs := removePair(n.kvs, idx)
		newDataMap := n.dataMap &^ bp
		if newDataMap == 0 && n.nodeMap == 0 {
			return nil, true
		}
		return &hamtNode{dataMap: newDataMap, nodeMap: n.nodeMap, kvs: kvs, children: n.children}, true
	}

	if n.nodeMap&bp != 0 {
		idx := popcount(n.nodeMap & (bp - 1))
		newChild, removed := hamtDissoc(n.children[idx], hash, shift+hamtBits, k)
		if !removed {
			return n, false
		}
		if newChild == nil {
			children := removeChild(n.children, idx)
			newNodeMap := n.nodeMap &^ bp
			if newNodeMap == 0 && n.dataMap == 0 {
				return nil, true
			}
			return &hamtNode{dataMap: n.dataMap, nodeMap: newNodeMap, kvs: n.kvs, children: children}, true
		}
		// canonicalize: a child left with exactly one data entry and no
		// children of its own gets inlined back into this node's data slot
		if newChild.collision == nil && len(newChild.children) == 0 && popcount(newChild.dataMap) == 1 {
			children := removeChild(n.children, idx)
			newNodeMap := n.nodeMap &^ bp
			newDataMap := n.dataMap | bp
			dataIdx := popcount(newDataMap & (bp - 1))
			kvs := insertPair(n.kvs, dataIdx, newChild.kvs[0], newChild.kvs[1])
			return &hamtNode{dataMap: newDataMap, nodeMap: newNodeMap, kvs: kvs, children: children}, true
		}
		children := append([]*hamtNode(nil), n.children...)
		children[idx] = newChild
		return &hamtNode{dataMap: n.dataMap, nodeMap: n.nodeMap, kvs: n.kvs, children: children}, true
	}

	return n, false
}

func (m *HashMap) Each(fn func(k, v Value) bool) {
	hamtEach(m.root, fn)
}

func hamtEach(n *hamtNode, fn func(k, v Value) bool) bool {
	if n == nil {
		return true
	}
	if n.collision != nil {
		for i := 0; i < len(n.collision); i += 2 {
			if !fn(n.collision[i], n.collision[i+1]) {
				return false
			}
		}
		return true
	}
	for i := 0; i < len(n.kvs); i += 2 {
		if !fn(n.kvs[i], n.kvs[i+1]) {
			return false
		}
	}
	for _, c := range n.children {
		if !hamtEach(c, fn) {
			return false
		}
	}
	return true
}
