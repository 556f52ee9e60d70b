package slang_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"jargon/slang"
)

func TestFreeVarsLambdaBindsParam(t *testing.T) {
	e := &slang.Lambda{Param: "x", Body: &slang.BinExpr{Op: slang.Add, E1: &slang.Var{Name: "x"}, E2: &slang.Var{Name: "y"}}}
	free := slang.FreeVars(nil, e)
	require.ElementsMatch(t, []string{"y"}, free)
}

func TestFreeVarsCaseScopesEachArmIndependently(t *testing.T) {
	e := &slang.Case{
		E: &slang.Var{Name: "s"},
		InL: slang.Arm{
			Var:  "x",
			Body: &slang.Var{Name: "x"},
		},
		InR: slang.Arm{
			Var:  "y",
			Body: &slang.BinExpr{Op: slang.Add, E1: &slang.Var{Name: "y"}, E2: &slang.Var{Name: "x"}},
		},
	}
	free := slang.FreeVars(nil, e)
	require.ElementsMatch(t, []string{"s", "x"}, free)
}

func TestFreeVarsLetRecFunBindsFunNameInDef(t *testing.T) {
	e := &slang.LetRecFun{
		Fun:  "f",
		Def:  slang.Binding{Param: "n", Body: &slang.App{Fun: &slang.Var{Name: "f"}, Arg: &slang.Var{Name: "n"}}},
		Body: &slang.Var{Name: "f"},
	}
	free := slang.FreeVars(nil, e)
	require.Empty(t, free)
}

func TestFreeVarsTryScopesHandlerParam(t *testing.T) {
	e := &slang.Try{
		E1:      &slang.Raise{E: &slang.Var{Name: "a"}},
		Param:   "x",
		Handler: &slang.BinExpr{Op: slang.Add, E1: &slang.Var{Name: "x"}, E2: &slang.Var{Name: "b"}},
	}
	free := slang.FreeVars(nil, e)
	require.ElementsMatch(t, []string{"a", "b"}, free)
}

func TestFreeVarsRespectsAlreadyBoundSet(t *testing.T) {
	e := &slang.Var{Name: "x"}
	free := slang.FreeVars(map[string]bool{"x": true}, e)
	require.Empty(t, free)
}

func TestFreeVarsDedupesAndPreservesFirstOccurrenceOrder(t *testing.T) {
	e := &slang.BinExpr{
		Op: slang.Add,
		E1: &slang.Var{Name: "a"},
		E2: &slang.BinExpr{Op: slang.Add, E1: &slang.Var{Name: "b"}, E2: &slang.Var{Name: "a"}},
	}
	free := slang.FreeVars(nil, e)
	require.Equal(t, []string{"a", "b"}, free)
}
