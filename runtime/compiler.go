package runtime

import "clj-core/ast"

// NodeConst wraps an ast.Node so the compiler can park an unsupported
// analyzed form in a chunk's constant pool and hand it back to the
// tree-walk evaluator at run time via OpInterpretNode — the same "fall back
// to the interpreter for reliability" policy the teacher's HybridEngine
// uses, scoped here to the declarative forms that gain little from
// compilation (spec §4.2, §4.4).
type NodeConst struct{ Node ast.Node }

func (n *NodeConst) Type() ValueType { return "node-const" }
func (n *NodeConst) String() string  { return "#<node>" }

type compileScope struct {
	locals     map[string]int
	localCount int
	loopStart  []int   // stack of loop-head ips, for Recur (FnLevel=false)
	loopSlots  [][]int // parallel stack of each loop's binding slots

	fnParamBase  int // first param slot = len(Fn.CaptureIdx); 0 at top level
	fnParamCount int
	fnVariadic   bool
}

// Compiler lowers an already-analyzed ast.Node tree into a Chunk (spec
// §4.2 "Compiler").
type Compiler struct {
	chunk *Chunk
	scope *compileScope
	proto *FnProto // set while compiling a Fn's own chunk, for self-captures
}

func NewCompiler(file string) *Compiler {
	return &Compiler{chunk: NewChunk(file), scope: &compileScope{locals: map[string]int{}}}
}

// CompileTopLevel compiles one top-level form into a zero-argument
// FnProto, the unit SaveBundle/LoadBundle exchange. Its locals are sized
// to the highest slot the chunk's own instructions touch.
func CompileTopLevel(node ast.Node, file string) *FnProto {
	c := NewCompiler(file)
	c.compileNode(node)
	c.emit(OpReturn, 0, node.Position())
	localCount := c.scope.localCount
	if n := countLocals(c.chunk); n > localCount {
		localCount = n
	}
	return &FnProto{Name: "<toplevel>", LocalCount: localCount, Chunk: c.chunk}
}

func (c *Compiler) emit(op OpCode, operand uint16, pos ast.Pos) int {
	return c.chunk.Emit(op, operand, pos.Line, pos.Column)
}

func (c *Compiler) ensureLocal(name string) int {
	if slot, ok := c.scope.locals[name]; ok {
		return slot
	}
	slot := c.scope.localCount
	c.scope.locals[name] = slot
	c.scope.localCount++
	return slot
}

func (c *Compiler) compileNode(node ast.Node) {
	pos := node.Position()
	switch n := node.(type) {
	case *ast.Const:
		idx := c.chunk.AddConst(constToValue(n.Value))
		c.emit(OpConst, uint16(idx), pos)

	case *ast.Quote:
		idx := c.chunk.AddConst(constToValue(n.Value))
		c.emit(OpConst, uint16(idx), pos)

	case *ast.LocalRef:
		c.emit(OpLoadLocal, uint16(n.Idx), pos)

	case *ast.VarRef:
		idx := c.chunk.AddConst(&VarRefConst{NS: n.NS, Name: n.Name})
		c.emit(OpLoadVar, uint16(idx), pos)

	case *ast.If:
		c.compileNode(n.Test)
		jf := c.emit(OpJumpIfFalse, 0, pos)
		if n.Then != nil {
			c.compileNode(n.Then)
		}
		jend := c.emit(OpJump, 0, pos)
		c.chunk.PatchOperand(jf, uint16(len(c.chunk.Code)))
		if n.Else != nil {
			c.compileNode(n.Else)
		} else {
			idx := c.chunk.AddConst(TheNil)
			c.emit(OpConst, uint16(idx), pos)
		}
		c.chunk.PatchOperand(jend, uint16(len(c.chunk.Code)))

	case *ast.Do:
		if len(n.Stmts) == 0 {
			idx := c.chunk.AddConst(TheNil)
			c.emit(OpConst, uint16(idx), pos)
			return
		}
		for _, s := range n.Stmts[:len(n.Stmts)-1] {
			c.compileNode(s)
			c.emit(OpPop, 0, pos)
		}
		c.compileNode(n.Stmts[len(n.Stmts)-1])

	case *ast.Let:
		for _, b := range n.Bindings {
			c.compileNode(b.Init)
			c.emit(OpStoreLocal, uint16(b.Slot), pos)
		}
		c.compileNode(n.Body)

	case *ast.Loop:
		for _, b := range n.Bindings {
			c.compileNode(b.Init)
			c.emit(OpStoreLocal, uint16(b.Slot), pos)
		}
		slots := make([]int, len(n.Bindings))
		for i, b := range n.Bindings {
			slots[i] = b.Slot
		}
		start := len(c.chunk.Code)
		c.scope.loopStart = append(c.scope.loopStart, start)
		c.scope.loopSlots = append(c.scope.loopSlots, slots)
		c.compileNode(n.Body)
		c.scope.loopStart = c.scope.loopStart[:len(c.scope.loopStart)-1]
		c.scope.loopSlots = c.scope.loopSlots[:len(c.scope.loopSlots)-1]

	case *ast.Recur:
		for _, a := range n.Args {
			c.compileNode(a)
		}
		if n.FnLevel {
			// store args (in reverse, since the stack pops LIFO) into the
			// fn's own parameter slots, then jump back to the fn's entry
			// point — ip 0 of its own chunk, always, by construction.
			for i := len(n.Args) - 1; i >= 0; i-- {
				c.emit(OpStoreLocal, uint16(c.scope.fnParamBase+i), pos)
			}
			c.emit(OpJump, 0, pos)
		} else {
			slots := c.scope.loopSlots[len(c.scope.loopSlots)-1]
			for i := len(n.Args) - 1; i >= 0; i-- {
				c.emit(OpStoreLocal, uint16(slots[i]), pos)
			}
			c.emit(OpJump, uint16(c.scope.loopStart[len(c.scope.loopStart)-1]), pos)
		}

	case *ast.Fn:
		proto := compileFnProto(n, c.chunk.File)
		protoIdx := c.chunk.AddConst(&fnProtoConst{proto})
		for _, idx := range n.CaptureIdx {
			c.emit(OpLoadLocal, uint16(idx), pos)
		}
		c.emit(OpMakeClosure, uint16(protoIdx), pos)

	case *ast.Call:
		c.compileNode(n.Callee)
		for _, a := range n.Args {
			c.compileNode(a)
		}
		c.emit(OpCall, uint16(len(n.Args)), pos)

	case *ast.Def:
		if n.Init != nil {
			c.compileNode(n.Init)
		} else {
			idx := c.chunk.AddConst(TheNil)
			c.emit(OpConst, uint16(idx), pos)
		}
		idx := c.chunk.AddConst(&VarRefConst{Name: n.Name})
		c.emit(OpDefVar, uint16(idx), pos)

	case *ast.SetBang:
		c.compileNode(n.Expr)
		idx := c.chunk.AddConst(&VarRefConst{NS: n.VarNS, Name: n.VarName})
		c.emit(OpStoreVar, uint16(idx), pos)

	default:
		// Declarative/rare forms (Throw, Try, DefProtocol, ExtendType,
		// DefMulti, DefMethod, LazySeq) fall back to the tree-walk
		// evaluator at run time instead of being lowered to bytecode.
		idx := c.chunk.AddConst(&NodeConst{Node: node})
		c.emit(OpInterpretNode, uint16(idx), pos)
	}
}

// fnProtoConst parks a nested FnProto in the enclosing chunk's constant
// pool for OpMakeClosure to read.
type fnProtoConst struct{ proto *FnProto }

func (p *fnProtoConst) Type() ValueType { return "fn-proto-const" }
func (p *fnProtoConst) String() string  { return "#<fn-proto>" }

// compileFnProto compiles only the first (and, in the common case, only)
// arity of a Fn node into one FnProto; a call whose argc does not match
// that arity routes through the hybrid dispatcher's interpreter fallback
// over the whole Fn node (see hybrid.go).
func compileFnProto(n *ast.Fn, file string) *FnProto {
	arity := n.Arities[0]
	c := NewCompiler(file)
	c.scope.localCount = arity.LocalCount
	c.scope.fnParamBase = len(n.CaptureIdx)
	c.scope.fnParamCount = arity.ParamCount
	c.scope.fnVariadic = arity.Variadic
	c.compileNode(arity.Body)
	c.emit(OpReturn, 0, arity.Body.Position())
	return &FnProto{
		Name:       n.Name,
		ParamCount: arity.ParamCount,
		Variadic:   arity.Variadic,
		LocalCount: arity.LocalCount,
		Chunk:      c.chunk,
		CaptureIdx: n.CaptureIdx,
		OrigNode:   n,
	}
}
