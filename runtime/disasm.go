package runtime

import (
	"fmt"
	"strings"
)

var opNames = map[OpCode]string{
	OpConst:          "CONST",
	OpLoadLocal:      "LOAD_LOCAL",
	OpStoreLocal:     "STORE_LOCAL",
	OpLoadUpvalue:    "LOAD_UPVALUE",
	OpLoadVar:        "LOAD_VAR",
	OpStoreVar:       "STORE_VAR",
	OpDefVar:         "DEF_VAR",
	OpPop:            "POP",
	OpDup:            "DUP",
	OpAdd:            "ADD",
	OpSub:            "SUB",
	OpMul:            "MUL",
	OpDiv:            "DIV",
	OpEq:             "EQ",
	OpLt:             "LT",
	OpLe:             "LE",
	OpGt:             "GT",
	OpGe:             "GE",
	OpJump:           "JUMP",
	OpJumpIfFalse:    "JUMP_IF_FALSE",
	OpMakeClosure:    "MAKE_CLOSURE",
	OpCall:           "CALL",
	OpTailCall:       "TAIL_CALL",
	OpReturn:         "RETURN",
	OpMakeList:       "MAKE_LIST",
	OpMakeVector:     "MAKE_VECTOR",
	OpMakeMap:        "MAKE_MAP",
	OpMakeSet:        "MAKE_SET",
	OpPushHandler:    "PUSH_HANDLER",
	OpPopHandler:     "POP_HANDLER",
	OpThrow:          "THROW",
	OpInterpretNode:  "INTERPRET_NODE",
	OpLoadLocalAdd:   "LOAD_LOCAL_ADD",
	OpConstAdd:       "CONST_ADD",
	OpIncLocal:       "INC_LOCAL",
}

// Disassemble renders a Chunk's instruction stream as human-readable
// text, one instruction per line with its source position and (for
// instructions that index into the constant pool) the constant's printed
// form, grounded on funvibe-funxy's disasm.go as the standard shape a
// bytecode VM's tooling takes (SUPPLEMENTED FEATURES).
func Disassemble(c *Chunk, name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s ==\n", name)
	for ip := 0; ip < len(c.Code); ip += InstrSize {
		b.WriteString(disassembleOne(c, ip))
		b.WriteString("\n")
	}
	return b.String()
}

func disassembleOne(c *Chunk, ip int) string {
	op := c.ReadOp(ip)
	operand := c.ReadOperand(ip)
	name, ok := opNames[op]
	if !ok {
		name = fmt.Sprintf("?%d", op)
	}
	line := 0
	if idx := ip / InstrSize; idx < len(c.Lines) {
		line = c.Lines[idx]
	}
	switch op {
	case OpConst, OpConstAdd:
		if int(operand) < len(c.Constants) {
			return fmt.Sprintf("%04d  L%-4d %-16s %4d  ; %s", ip, line, name, operand, c.Constants[operand].String())
		}
	case OpLoadVar, OpStoreVar, OpDefVar:
		if int(operand) < len(c.Constants) {
			if vr, ok := c.Constants[operand].(*VarRefConst); ok {
				return fmt.Sprintf("%04d  L%-4d %-16s %4d  ; %s", ip, line, name, operand, vr.String())
			}
		}
	case OpMakeClosure:
		if int(operand) < len(c.Constants) {
			if pc, ok := c.Constants[operand].(*fnProtoConst); ok && pc.proto != nil {
				return fmt.Sprintf("%04d  L%-4d %-16s %4d  ; fn %s", ip, line, name, operand, pc.proto.Name)
			}
		}
	}
	return fmt.Sprintf("%04d  L%-4d %-16s %4d", ip, line, name, operand)
}

// DisassembleRecursive dumps a chunk and every nested FnProto reachable
// from its constant pool, depth-first, so a whole compiled program's
// bytecode is visible from one call (main.go's demo prints it).
func DisassembleRecursive(c *Chunk, name string) string {
	var b strings.Builder
	b.WriteString(Disassemble(c, name))
	for _, v := range c.Constants {
		if pc, ok := v.(*fnProtoConst); ok && pc.proto != nil {
			b.WriteString(DisassembleRecursive(pc.proto.Chunk, "fn "+pc.proto.Name))
		}
	}
	return b.String()
}
