package runtime

import (
	"testing"

	"clj-core/ast"

	"github.com/stretchr/testify/require"
)

// testNS returns a fresh namespace with clj.core referred in, mirroring
// how `user` is set up at boot (builtins.go's init), so hand-built programs can
// resolve unqualified builtins like `+` the same way real analyzed code
// does.
func testNS(t *testing.T, name string) *Namespace {
	t.Helper()
	ns := NewNamespace(name)
	CoreNamespace.mu.RLock()
	for n, v := range CoreNamespace.vars {
		ns.Refer(n, v)
	}
	CoreNamespace.mu.RUnlock()
	return ns
}

func constInt(n int64) *ast.Const { return &ast.Const{Value: &Int{Value: n}} }

func vref(name string) *ast.VarRef { return &ast.VarRef{Name: name} }

// runBoth evaluates node through the tree-walk interpreter (with a
// caller-sized locals slice) and through the VM by compiling it with
// CompileTopLevel, asserting both backends agree (spec §4.4 "cross-backend
// dispatcher": both evaluators must observe the same program the same way).
func runBoth(t *testing.T, node ast.Node, ns *Namespace, localCount int) (Value, Value) {
	t.Helper()
	treeResult, err := Evaluate(node, make([]Value, localCount), ns)
	require.Nil(t, err, "tree-walk eval failed: %v", err)

	SetCurrentNamespace(ns)
	proto := CompileTopLevel(node, "equivalence-test")
	vmResult, err := RunClosure(&VMClosure{Proto: proto}, nil)
	require.Nil(t, err, "vm eval failed: %v", err)

	return treeResult, vmResult
}

func TestArithmeticCallAgreesAcrossBackends(t *testing.T) {
	ns := testNS(t, "equiv.arith")
	node := &ast.Call{Callee: vref("+"), Args: []ast.Node{constInt(1), constInt(2), constInt(3)}}

	tree, vm := runBoth(t, node, ns, 0)
	require.Equal(t, int64(6), tree.(*Int).Value)
	require.Equal(t, int64(6), vm.(*Int).Value)
}

func TestIfAgreesAcrossBackends(t *testing.T) {
	ns := testNS(t, "equiv.if")
	node := &ast.If{
		Test: &ast.Call{Callee: vref("<"), Args: []ast.Node{constInt(1), constInt(2)}},
		Then: constInt(100),
		Else: constInt(200),
	}

	tree, vm := runBoth(t, node, ns, 0)
	require.Equal(t, int64(100), tree.(*Int).Value)
	require.Equal(t, int64(100), vm.(*Int).Value)
}

func TestLetAgreesAcrossBackends(t *testing.T) {
	ns := testNS(t, "equiv.let")
	node := &ast.Let{
		Bindings: []ast.Binding{
			{Name: "x", Init: constInt(10), Slot: 0},
			{Name: "y", Init: constInt(20), Slot: 1},
		},
		Body: &ast.Call{Callee: vref("+"), Args: []ast.Node{
			&ast.LocalRef{Idx: 0, Name: "x"},
			&ast.LocalRef{Idx: 1, Name: "y"},
		}},
	}

	tree, vm := runBoth(t, node, ns, 2)
	require.Equal(t, int64(30), tree.(*Int).Value)
	require.Equal(t, int64(30), vm.(*Int).Value)
}

// TestLoopRecurAgreesAcrossBackends sums 1..5 via a loop/recur accumulator,
// exercising the tail-rebinding path both evaluators must implement
// identically (spec §4.1 Recur, §3.3 "tail-loop rebinding").
func TestLoopRecurAgreesAcrossBackends(t *testing.T) {
	ns := testNS(t, "equiv.loop")
	// (loop [i 1 acc 0]
	//   (if (< 5 i) acc (recur (+ i 1) (+ acc i))))
	node := &ast.Loop{
		Bindings: []ast.Binding{
			{Name: "i", Init: constInt(1), Slot: 0},
			{Name: "acc", Init: constInt(0), Slot: 1},
		},
		Body: &ast.If{
			Test: &ast.Call{Callee: vref("<"), Args: []ast.Node{
				constInt(5),
				&ast.LocalRef{Idx: 0, Name: "i"},
			}},
			Then: &ast.LocalRef{Idx: 1, Name: "acc"},
			Else: &ast.Recur{Args: []ast.Node{
				&ast.Call{Callee: vref("+"), Args: []ast.Node{&ast.LocalRef{Idx: 0, Name: "i"}, constInt(1)}},
				&ast.Call{Callee: vref("+"), Args: []ast.Node{&ast.LocalRef{Idx: 1, Name: "acc"}, &ast.LocalRef{Idx: 0, Name: "i"}}},
			}},
		},
	}

	tree, vm := runBoth(t, node, ns, 2)
	require.Equal(t, int64(15), tree.(*Int).Value)
	require.Equal(t, int64(15), vm.(*Int).Value)
}

// TestDefAndFnCallAgreeAcrossBackends mirrors main.go's demo program:
// (defn add [a b] (+ a b)) (add 2 3).
func TestDefAndFnCallAgreeAcrossBackends(t *testing.T) {
	ns := testNS(t, "equiv.defn")
	addFn := &ast.Fn{
		Name: "add",
		Arities: []ast.Arity{{
			ParamNames: []string{"a", "b"},
			ParamCount: 2,
			LocalCount: 2,
			Body: &ast.Call{Callee: vref("+"), Args: []ast.Node{
				&ast.LocalRef{Idx: 0, Name: "a"},
				&ast.LocalRef{Idx: 1, Name: "b"},
			}},
		}},
	}
	node := &ast.Do{Stmts: []ast.Node{
		&ast.Def{Name: "add", Init: addFn},
		&ast.Call{Callee: vref("add"), Args: []ast.Node{constInt(2), constInt(3)}},
	}}

	tree, vm := runBoth(t, node, ns, 0)
	require.Equal(t, int64(5), tree.(*Int).Value)
	require.Equal(t, int64(5), vm.(*Int).Value)
}

func TestUndefinedVarErrorsIdenticallyAcrossBackends(t *testing.T) {
	ns := testNS(t, "equiv.undef")
	node := vref("does-not-exist")

	_, err := Evaluate(node, nil, ns)
	require.NotNil(t, err)
	require.Equal(t, UndefinedVarKind, err.Kind)

	SetCurrentNamespace(ns)
	proto := CompileTopLevel(node, "equivalence-test")
	_, err = RunClosure(&VMClosure{Proto: proto}, nil)
	require.NotNil(t, err)
	require.Equal(t, UndefinedVarKind, err.Kind)
}
