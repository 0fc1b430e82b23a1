package main

import (
	"fmt"
	"os"

	"clj-core/ast"
	"clj-core/libraries"
	"clj-core/runtime"
)

// buildDemoProgram hand-assembles the analyzed form of:
//
//	(defn add [a b] (+ a b))
//	(add 2 3)
//
// as a single top-level Do, standing in for the reader/analyzer
// pipeline, which is out of scope for this module (spec §1 Non-goals) —
// main.go's job is to exercise the evaluators and AOT pipeline on
// whatever Node tree a caller hands it.
func buildDemoProgram() ast.Node {
	addFn := &ast.Fn{
		Name: "add",
		Arities: []ast.Arity{{
			ParamNames: []string{"a", "b"},
			ParamCount: 2,
			LocalCount: 2,
			Body: &ast.Call{
				Callee: &ast.VarRef{Name: "+"},
				Args: []ast.Node{
					&ast.LocalRef{Idx: 0, Name: "a"},
					&ast.LocalRef{Idx: 1, Name: "b"},
				},
			},
		}},
	}
	return &ast.Do{
		Stmts: []ast.Node{
			&ast.Def{Name: "add", Init: addFn},
			&ast.Call{
				Callee: &ast.VarRef{Name: "add"},
				Args: []ast.Node{
					&ast.Const{Value: &runtime.Int{Value: 2}},
					&ast.Const{Value: &runtime.Int{Value: 3}},
				},
			},
		},
	}
}

func runDemo() {
	program := buildDemoProgram()
	ns := runtime.CurrentNamespace()

	fmt.Println("-- tree-walk evaluator --")
	treeResult, terr := runtime.Evaluate(program, nil, ns)
	if terr != nil {
		fmt.Fprintln(os.Stderr, terr.Message)
		os.Exit(1)
	}
	fmt.Println(runtime.Pretty(treeResult))

	fmt.Println("-- bytecode VM --")
	proto := runtime.CompileTopLevel(program, "demo")
	vmClosure := &runtime.VMClosure{Proto: proto}
	vmResult, verr := runtime.RunClosure(vmClosure, nil)
	if verr != nil {
		fmt.Fprintln(os.Stderr, verr.Message)
		os.Exit(1)
	}
	fmt.Println(runtime.Pretty(vmResult))

	fmt.Println("-- disassembly --")
	fmt.Println(runtime.Disassemble(proto.Chunk, proto.Name))

	fmt.Println("-- AOT round trip --")
	data, berr := runtime.BundleToBytes(proto)
	if berr != nil {
		fmt.Fprintln(os.Stderr, berr.Error())
		os.Exit(1)
	}
	reloaded, berr := runtime.BundleFromBytes(data)
	if berr != nil {
		fmt.Fprintln(os.Stderr, berr.Error())
		os.Exit(1)
	}
	reloadedClosure := &runtime.VMClosure{Proto: reloaded}
	reloadedResult, rerr := runtime.RunClosure(reloadedClosure, nil)
	if rerr != nil {
		fmt.Fprintln(os.Stderr, rerr.Message)
		os.Exit(1)
	}
	fmt.Println(runtime.Pretty(reloadedResult))
}

func runDisasm(path string) {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer f.Close()
	proto, derr := runtime.LoadBundle(f)
	if derr != nil {
		fmt.Fprintln(os.Stderr, derr)
		os.Exit(1)
	}
	fmt.Println(runtime.DisassembleRecursive(proto.Chunk, proto.Name))
}

func main() {
	libraries.RegisterFMaths(runtime.GlobalRegistry)
	libraries.RegisterTime(runtime.GlobalRegistry)

	if len(os.Args) < 2 {
		runDemo()
		return
	}

	switch os.Args[1] {
	case "disasm":
		if len(os.Args) != 3 {
			fmt.Fprintln(os.Stderr, "usage: clj-core disasm <bundle-file>")
			os.Exit(1)
		}
		runDisasm(os.Args[2])
	case "demo":
		runDemo()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (want: demo, disasm)\n", os.Args[1])
		os.Exit(1)
	}
}
