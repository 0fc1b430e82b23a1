package runtime

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
)

// bundleMagic tags an AOT-compiled module file, the way funvibe-funxy
// tags its own bundle format with "FXYS" (spec §6.4 "Bytecode module
// format").
const bundleMagic = "CLJC"

func init() {
	// Every concrete Value variant that can end up in a Chunk's constant
	// pool must be gob-registered so SaveBundle/LoadBundle can round-trip
	// it through the interface-typed Constants slice.
	gob.Register(&NilVal{})
	gob.Register(&Bool{})
	gob.Register(&Int{})
	gob.Register(&Float{})
	gob.Register(&Char{})
	gob.Register(&Str{})
	gob.Register(&Symbol{})
	gob.Register(&Keyword{})
	gob.Register(&VarRefConst{})
	gob.Register(&fnProtoConst{})
}

// bundleChunk is Chunk's gob-friendly shadow: the real Chunk carries a
// constKey dedup map that is pure compile-time bookkeeping and is dropped
// from the serialized form, rebuilt (empty; harmless, since AddConst is
// never called again post-load) on load.
type bundleChunk struct {
	Code      []byte
	Constants []Value
	Lines     []int
	Columns   []int
	File      string
}

// bundleProto is FnProto's gob-friendly shadow: OrigNode (an *ast.Fn) is
// dropped since the AST package isn't gob-registered here and an AOT
// bundle's whole point is to skip re-analysis; a bundle-loaded fn that
// needs the hybrid engine's multi-arity fallback simply won't have one
// (single-arity fns, the common case for compiled output, are unaffected).
type bundleProto struct {
	Name       string
	ParamCount int
	Variadic   bool
	LocalCount int
	Chunk      bundleChunk
	CaptureIdx []int
}

// gob rejects a struct with no exported fields, so fnProtoConst encodes
// as an empty payload and every decoded *fnProtoConst starts out with a
// nil proto; relinkProtos below re-attaches the real FnProto in the same
// pre-order it was walked off in during collectProtos, restoring the
// link without needing proto itself to be gob-visible.
func (p *fnProtoConst) GobEncode() ([]byte, error) { return []byte{}, nil }
func (p *fnProtoConst) GobDecode([]byte) error     { return nil }

// Bundles containing a NodeConst constant (an OpInterpretNode target,
// i.e. a chunk that fell back to the tree-walk evaluator for a
// declarative form) cannot round-trip through gob, since ast.Node isn't
// gob-registered; AOT-saving is only meaningful for chunks compiled
// entirely to bytecode in the first place.
//
// Bundle is the on-disk unit SaveBundle/LoadBundle exchange: the
// top-level chunk plus every nested FnProto it was compiled with,
// flattened out of the constant pool so gob doesn't have to chase
// *Chunk-in-Value-in-Chunk cycles through an interface.
type Bundle struct {
	TopLevel bundleChunk
	Protos   []bundleProto
}

func chunkToBundle(c *Chunk) bundleChunk {
	return bundleChunk{Code: c.Code, Constants: c.Constants, Lines: c.Lines, Columns: c.Columns, File: c.File}
}

func bundleToChunk(b bundleChunk) *Chunk {
	return &Chunk{Code: b.Code, Constants: b.Constants, Lines: b.Lines, Columns: b.Columns, File: b.File, constKey: map[string]int{}}
}

// SaveBundle serializes a compiled top-level FnProto and every FnProto
// reachable from its constant pool into the AOT module format (spec §6.4).
func SaveBundle(w io.Writer, top *FnProto) error {
	if _, err := w.Write([]byte(bundleMagic)); err != nil {
		return err
	}
	b := Bundle{TopLevel: chunkToBundle(top.Chunk)}
	collectProtos(top.Chunk, &b.Protos, map[*Chunk]bool{})
	return gob.NewEncoder(w).Encode(b)
}

func collectProtos(c *Chunk, out *[]bundleProto, seen map[*Chunk]bool) {
	if seen[c] {
		return
	}
	seen[c] = true
	for _, v := range c.Constants {
		pc, ok := v.(*fnProtoConst)
		if !ok {
			continue
		}
		*out = append(*out, bundleProto{
			Name:       pc.proto.Name,
			ParamCount: pc.proto.ParamCount,
			Variadic:   pc.proto.Variadic,
			LocalCount: pc.proto.LocalCount,
			Chunk:      chunkToBundle(pc.proto.Chunk),
			CaptureIdx: pc.proto.CaptureIdx,
		})
		collectProtos(pc.proto.Chunk, out, seen)
	}
}

// LoadBundle deserializes an AOT module, reconnecting each nested
// FnProto's Chunk back into its enclosing chunk's constant pool so
// OpMakeClosure's operand still resolves correctly (spec §6.4 "(a)
// deserialization yields a valid Chunk with valid constant-pool
// references").
func LoadBundle(r io.Reader) (*FnProto, error) {
	magic := make([]byte, len(bundleMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, err
	}
	if string(magic) != bundleMagic {
		return nil, fmt.Errorf("bundle: bad magic %q, want %q", magic, bundleMagic)
	}
	var b Bundle
	if err := gob.NewDecoder(r).Decode(&b); err != nil {
		return nil, err
	}
	top := bundleToChunk(b.TopLevel)
	protoIdx := 0
	relinkProtos(top, b.Protos, &protoIdx)
	return &FnProto{Name: "<toplevel>", LocalCount: countLocals(top), Chunk: top}, nil
}

func relinkProtos(c *Chunk, protos []bundleProto, idx *int) {
	for i, v := range c.Constants {
		pc, ok := v.(*fnProtoConst)
		if !ok {
			continue
		}
		if *idx >= len(protos) {
			continue
		}
		bp := protos[*idx]
		*idx++
		sub := bundleToChunk(bp.Chunk)
		pc.proto = &FnProto{
			Name:       bp.Name,
			ParamCount: bp.ParamCount,
			Variadic:   bp.Variadic,
			LocalCount: bp.LocalCount,
			Chunk:      sub,
			CaptureIdx: bp.CaptureIdx,
		}
		c.Constants[i] = pc
		relinkProtos(sub, protos, idx)
	}
}

// countLocals sizes a top-level chunk's locals from the highest slot its
// own OpLoadLocal/OpStoreLocal instructions touch; CompileTopLevel and
// LoadBundle both use it.
func countLocals(c *Chunk) int {
	max := -1
	for ip := 0; ip+InstrSize <= len(c.Code); ip += InstrSize {
		op := OpCode(c.Code[ip])
		if op == OpStoreLocal || op == OpLoadLocal {
			operand := int(c.ReadOperand(ip))
			if operand > max {
				max = operand
			}
		}
	}
	return max + 1
}

// BundleToBytes/BundleFromBytes are convenience wrappers over
// SaveBundle/LoadBundle for callers that want an in-memory round trip
// (main.go's demo uses them).
func BundleToBytes(top *FnProto) ([]byte, error) {
	var buf bytes.Buffer
	if err := SaveBundle(&buf, top); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func BundleFromBytes(data []byte) (*FnProto, error) {
	return LoadBundle(bytes.NewReader(data))
}
