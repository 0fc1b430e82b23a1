package runtime

import "fmt"

// vmFrame is one call's activation record on the VM's frame stack: the
// executing closure, the chunk it runs, its instruction pointer, and its
// own locals slice (spec §4.3).
type vmFrame struct {
	closure *VMClosure
	chunk   *Chunk
	ip      int
	locals  []Value
}

type handlerFrame struct {
	catchIP     int
	frameDepth  int
	stackHeight int
}

// vmMaxFrames bounds VM call depth, surfaced as an uncatchable
// stack-overflow error instead of a Go panic (spec §4.6
// StackOverflowKind); the tree-walk evaluator has its own, smaller bound,
// treeMaxDepth.
const vmMaxFrames = 4096

// RunClosure executes a compiled closure's own chunk to completion,
// starting a fresh value stack and frame stack (spec §4.3 "stack VM").
func RunClosure(c *VMClosure, args []Value) (Value, *Error) {
	locals := make([]Value, c.Proto.LocalCount)
	copy(locals, c.Captures)
	base := len(c.Captures)
	bindVMArgs(locals, base, c.Proto, args)

	vm := &vm{stack: make([]Value, 0, 256)}
	fr := vmFrame{closure: c, chunk: c.Proto.Chunk, locals: locals}
	vm.frames = append(vm.frames, fr)

	ts := currentThread()
	ts.PushFrame(Frame{FnName: c.Proto.Name})
	defer ts.PopFrame()

	return vm.run()
}

// bindVMArgs mirrors bindTreeArgs for the compiled backend: fixed params
// first, trailing args packed into a List for a variadic rest param.
func bindVMArgs(locals []Value, base int, proto *FnProto, args []Value) {
	fixed := proto.ParamCount
	if proto.Variadic {
		fixed = proto.ParamCount - 1
	}
	for i := 0; i < fixed; i++ {
		if i < len(args) {
			locals[base+i] = args[i]
		} else {
			locals[base+i] = TheNil
		}
	}
	if proto.Variadic {
		var rest []Value
		if len(args) > fixed {
			rest = args[fixed:]
		}
		if ConsumeApplyRestIsSeq() {
			locals[base+fixed] = &List{Items: rest}
		} else {
			locals[base+fixed] = NewList(rest...)
		}
	}
}

// vm is one bytecode-execution activation: a shared value stack across
// nested calls (so OpCall doesn't need to copy operands into a separate
// sub-stack) plus a frame stack and a handler stack for try/catch (spec
// §4.3).
type vm struct {
	stack    []Value
	frames   []vmFrame
	handlers []handlerFrame
}

func (m *vm) push(v Value) { m.stack = append(m.stack, v) }

func (m *vm) pop() Value {
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v
}

func (m *vm) top() *vmFrame { return &m.frames[len(m.frames)-1] }

func (m *vm) run() (Value, *Error) {
	for {
		fr := m.top()
		if fr.ip >= len(fr.chunk.Code) {
			return nil, NewError(ValueErrorKind, "chunk fell off the end without OpReturn", Pos{})
		}
		op := fr.chunk.ReadOp(fr.ip)
		operand := fr.chunk.ReadOperand(fr.ip)
		pos := Pos{File: fr.chunk.File, Line: fr.chunk.Lines[fr.ip/InstrSize], Column: fr.chunk.Columns[fr.ip/InstrSize]}
		fr.ip += InstrSize

		switch op {
		case OpConst:
			m.push(fr.chunk.Constants[operand])

		case OpLoadLocal:
			m.push(fr.locals[operand])

		case OpStoreLocal:
			fr.locals[operand] = m.pop()

		case OpLoadUpvalue:
			m.push(fr.closure.Captures[operand])

		case OpLoadVar:
			ref := fr.chunk.Constants[operand].(*VarRefConst)
			v, err := m.resolveVarRef(ref, pos)
			if err != nil {
				if handled, hv, herr := m.handle(err); handled {
					if herr != nil {
						return nil, herr
					}
					_ = hv
					continue
				}
				return nil, err
			}
			m.push(v.Get())

		case OpStoreVar:
			ref := fr.chunk.Constants[operand].(*VarRefConst)
			val := m.pop()
			v, err := m.resolveVarRef(ref, pos)
			if err != nil {
				return nil, err
			}
			if serr := v.Set(val); serr != nil {
				return nil, serr
			}
			m.push(val)

		case OpDefVar:
			ref := fr.chunk.Constants[operand].(*VarRefConst)
			val := m.pop()
			ns := CurrentNamespace()
			m.push(ns.Define(ref.Name, val))

		case OpPop:
			m.pop()

		case OpDup:
			m.push(m.stack[len(m.stack)-1])

		case OpAdd, OpSub, OpMul, OpDiv:
			b, a := m.pop(), m.pop()
			res, aerr := applyArith(op, a, b)
			if aerr != nil {
				if handled, hv, herr := m.handleThrow(aerr); handled {
					if herr != nil {
						return nil, herr
					}
					m.push(hv)
					continue
				}
				return nil, aerr
			}
			m.push(res)

		case OpEq:
			b, a := m.pop(), m.pop()
			m.push(BoolOf(valuesEqual(a, b)))

		case OpLt, OpLe, OpGt, OpGe:
			b, a := m.pop(), m.pop()
			cmp, cerr := Compare(a, b)
			if cerr != nil {
				if handled, hv, herr := m.handleThrow(cerr); handled {
					if herr != nil {
						return nil, herr
					}
					m.push(hv)
					continue
				}
				return nil, cerr
			}
			m.push(BoolOf(compareHolds(op, cmp)))

		case OpJump:
			fr.ip = int(operand)

		case OpJumpIfFalse:
			if !Truthy(m.pop()) {
				fr.ip = int(operand)
			}

		case OpMakeClosure:
			proto := fr.chunk.Constants[operand].(*fnProtoConst).proto
			captures := make([]Value, len(proto.CaptureIdx))
			for i := len(proto.CaptureIdx) - 1; i >= 0; i-- {
				captures[i] = m.pop()
			}
			m.push(&VMClosure{Proto: proto, Captures: captures})

		case OpCall, OpTailCall:
			argc := int(operand)
			args := make([]Value, argc)
			for i := argc - 1; i >= 0; i-- {
				args[i] = m.pop()
			}
			callee := m.pop()
			if vc, ok := callee.(*VMClosure); ok {
				if len(m.frames) >= vmMaxFrames {
					return nil, NewError(StackOverflowKind, "call depth exceeded", pos)
				}
				locals := make([]Value, vc.Proto.LocalCount)
				copy(locals, vc.Captures)
				bindVMArgs(locals, len(vc.Captures), vc.Proto, args)
				if op == OpTailCall {
					m.frames[len(m.frames)-1] = vmFrame{closure: vc, chunk: vc.Proto.Chunk, locals: locals}
				} else {
					m.frames = append(m.frames, vmFrame{closure: vc, chunk: vc.Proto.Chunk, locals: locals})
				}
				continue
			}
			res, cerr := CallValue(callee, args)
			if cerr != nil {
				if handled, hv, herr := m.handleThrow(cerr); handled {
					if herr != nil {
						return nil, herr
					}
					m.push(hv)
					continue
				}
				return nil, cerr
			}
			m.push(res)

		case OpReturn:
			ret := m.pop()
			m.frames = m.frames[:len(m.frames)-1]
			if len(m.frames) == 0 {
				return ret, nil
			}
			m.push(ret)

		case OpMakeList:
			n := int(operand)
			items := make([]Value, n)
			for i := n - 1; i >= 0; i-- {
				items[i] = m.pop()
			}
			m.push(NewList(items...))

		case OpMakeVector:
			n := int(operand)
			items := make([]Value, n)
			for i := n - 1; i >= 0; i-- {
				items[i] = m.pop()
			}
			m.push(NewVector(items...))

		case OpMakeMap:
			n := int(operand) // pairs*2
			entries := make([]MapEntry, n/2)
			for i := n/2 - 1; i >= 0; i-- {
				v := m.pop()
				k := m.pop()
				entries[i] = MapEntry{Key: k, Val: v}
			}
			m.push(NewArrayMap(entries...))

		case OpMakeSet:
			n := int(operand)
			items := make([]Value, n)
			for i := n - 1; i >= 0; i-- {
				items[i] = m.pop()
			}
			m.push(NewSet(items...))

		case OpPushHandler:
			m.handlers = append(m.handlers, handlerFrame{
				catchIP:     int(operand),
				frameDepth:  len(m.frames),
				stackHeight: len(m.stack),
			})

		case OpPopHandler:
			if len(m.handlers) > 0 {
				m.handlers = m.handlers[:len(m.handlers)-1]
			}

		case OpThrow:
			v := m.pop()
			terr := &Error{Kind: UserExceptionKind, Message: "user exception", Pos: pos, Thrown: v}
			if handled, hv, herr := m.handleThrow(terr); handled {
				if herr != nil {
					return nil, herr
				}
				m.push(hv)
				continue
			}
			return nil, terr

		case OpInterpretNode:
			nc := fr.chunk.Constants[operand].(*NodeConst)
			res, ierr := Evaluate(nc.Node, fr.locals, CurrentNamespace())
			if ierr != nil {
				if handled, hv, herr := m.handleThrow(ierr); handled {
					if herr != nil {
						return nil, herr
					}
					m.push(hv)
					continue
				}
				return nil, ierr
			}
			m.push(res)

		case OpLoadLocalAdd:
			b := m.pop()
			res, aerr := Add(fr.locals[operand], b)
			if aerr != nil {
				return nil, aerr
			}
			m.push(res)

		case OpConstAdd:
			b := m.pop()
			res, aerr := Add(fr.chunk.Constants[operand], b)
			if aerr != nil {
				return nil, aerr
			}
			m.push(res)

		case OpIncLocal:
			res, aerr := Add(fr.locals[operand], &Int{Value: 1})
			if aerr != nil {
				return nil, aerr
			}
			fr.locals[operand] = res

		default:
			return nil, NewError(ValueErrorKind, fmt.Sprintf("unknown opcode %d", op), pos)
		}
	}
}

func (m *vm) resolveVarRef(ref *VarRefConst, pos Pos) (*Var, *Error) {
	if ref.NS != "" {
		ns, ok := GlobalRegistry.Find(ref.NS)
		if !ok {
			return nil, NewError(UndefinedVarKind, fmt.Sprintf("no such namespace: %s", ref.NS), pos)
		}
		v, ok := ns.Resolve(ref.Name)
		if !ok {
			return nil, NewError(UndefinedVarKind, fmt.Sprintf("undefined var: %s/%s", ref.NS, ref.Name), pos)
		}
		return v, nil
	}
	v, ok := CurrentNamespace().Resolve(ref.Name)
	if !ok {
		return nil, NewError(UndefinedVarKind, fmt.Sprintf("undefined var: %s", ref.Name), pos)
	}
	return v, nil
}

// handleThrow unwinds to the nearest pushed handler frame, truncating the
// frame and value stacks to match and jumping the resuming frame's ip to
// the catch block (spec §4.3/§4.6 "VM-level try/catch").
func (m *vm) handleThrow(err *Error) (handled bool, caught Value, fatal *Error) {
	if isUncatchable(err) {
		return false, nil, nil
	}
	if len(m.handlers) == 0 {
		return false, nil, nil
	}
	h := m.handlers[len(m.handlers)-1]
	m.handlers = m.handlers[:len(m.handlers)-1]
	m.frames = m.frames[:h.frameDepth]
	if len(m.frames) == 0 {
		return false, nil, nil
	}
	m.stack = m.stack[:h.stackHeight]
	fr := m.top()
	fr.ip = h.catchIP
	caughtVal := errAsCaughtValue(err)
	setCurrentException(caughtVal)
	return true, caughtVal, nil
}

// handle is the OpLoadVar error path's alias for handleThrow, named
// separately since that site doesn't push a value on catch.
func (m *vm) handle(err *Error) (handled bool, caught Value, fatal *Error) {
	return m.handleThrow(err)
}

func applyArith(op OpCode, a, b Value) (Value, *Error) {
	switch op {
	case OpAdd:
		return Add(a, b)
	case OpSub:
		return Sub(a, b)
	case OpMul:
		return Mul(a, b)
	case OpDiv:
		return Div(a, b)
	}
	return nil, NewError(ValueErrorKind, "not an arithmetic opcode", Pos{})
}

func compareHolds(op OpCode, cmp int) bool {
	switch op {
	case OpLt:
		return cmp < 0
	case OpLe:
		return cmp <= 0
	case OpGt:
		return cmp > 0
	case OpGe:
		return cmp >= 0
	}
	return false
}

// valuesEqual is `=`: numeric-tower-aware across Int/Float/BigInteger/
// Ratio/BigDecimal, else Eql's structural comparison (spec §3.2).
func valuesEqual(a, b Value) bool {
	if isNumber(a) && isNumber(b) {
		return NumEql(a, b)
	}
	return Eql(a, b)
}
