package vm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"jargon/slang"
	"jargon/vm"
)

func TestCompileUnknownIdentifier(t *testing.T) {
	_, err := vm.Compile(&slang.Var{Name: "ghost"})
	require.Error(t, err)
	require.ErrorIs(t, err, vm.ErrUnknownIdentifier)
}

func TestCompileHasExactlyOneTopLevelHalt(t *testing.T) {
	listing, err := vm.Compile(&slang.Integer{Value: 1})
	require.NoError(t, err)
	require.Len(t, listing, 2)
	require.Equal(t, vm.OpPush, listing[0].Op)
	require.Equal(t, vm.OpHalt, listing[1].Op)
}

func TestLambdaEmitsExactlyOneDef(t *testing.T) {
	listing, err := vm.Compile(&slang.Lambda{Param: "x", Body: &slang.Var{Name: "x"}})
	require.NoError(t, err)

	labels := 0
	for _, instr := range listing {
		if instr.Op == vm.OpLabel {
			labels++
		}
	}
	require.Equal(t, 1, labels, "one closure body should emit exactly one LABEL in defs")
}

func TestRecursiveClosureCanReferenceItself(t *testing.T) {
	// let rec f n = f n in 0 should compile without an unknown
	// identifier error — f must resolve inside its own body.
	e := &slang.LetRecFun{
		Fun: "f",
		Def: slang.Binding{
			Param: "n",
			Body:  &slang.App{Fun: &slang.Var{Name: "f"}, Arg: &slang.Var{Name: "n"}},
		},
		Body: &slang.Integer{Value: 0},
	}
	_, err := vm.Compile(e)
	require.NoError(t, err)
}
