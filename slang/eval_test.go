package slang_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"jargon/slang"
)

func TestEvalArithmetic(t *testing.T) {
	e := &slang.BinExpr{Op: slang.Mul, E1: &slang.Integer{Value: 6}, E2: &slang.Integer{Value: 7}}
	v, err := slang.Eval(nil, e)
	require.NoError(t, err)
	require.Equal(t, 42, v)
}

func TestEvalPairProjection(t *testing.T) {
	e := &slang.Fst{E: &slang.Pair{E1: &slang.Integer{Value: 1}, E2: &slang.Boolean{Value: true}}}
	v, err := slang.Eval(nil, e)
	require.NoError(t, err)
	require.Equal(t, 1, v)
}

func TestEvalRefsMutate(t *testing.T) {
	e := &slang.App{
		Fun: &slang.Lambda{
			Param: "r",
			Body: &slang.Seq{Es: []slang.Expr{
				&slang.Assign{Target: &slang.Var{Name: "r"}, Value: &slang.Integer{Value: 9}},
				&slang.Deref{E: &slang.Var{Name: "r"}},
			}},
		},
		Arg: &slang.Ref{E: &slang.Integer{Value: 0}},
	}
	v, err := slang.Eval(nil, e)
	require.NoError(t, err)
	require.Equal(t, 9, v)
}

func TestEvalTryRaiseRecovers(t *testing.T) {
	e := &slang.Try{
		E1:      &slang.Raise{E: &slang.Integer{Value: 4}},
		Param:   "x",
		Handler: &slang.BinExpr{Op: slang.Add, E1: &slang.Var{Name: "x"}, E2: &slang.Integer{Value: 1}},
	}
	v, err := slang.Eval(nil, e)
	require.NoError(t, err)
	require.Equal(t, 5, v)
}

func TestEvalUnhandledRaiseIsAnError(t *testing.T) {
	_, err := slang.Eval(nil, &slang.Raise{E: &slang.Integer{Value: 1}})
	require.Error(t, err)
}

func TestEvalRecursiveClosure(t *testing.T) {
	e := &slang.LetRecFun{
		Fun: "fact",
		Def: slang.Binding{
			Param: "n",
			Body: &slang.If{
				Cond: &slang.BinExpr{Op: slang.EqI, E1: &slang.Var{Name: "n"}, E2: &slang.Integer{Value: 0}},
				Then: &slang.Integer{Value: 1},
				Else: &slang.BinExpr{
					Op: slang.Mul,
					E1: &slang.Var{Name: "n"},
					E2: &slang.App{Fun: &slang.Var{Name: "fact"}, Arg: &slang.BinExpr{Op: slang.Sub, E1: &slang.Var{Name: "n"}, E2: &slang.Integer{Value: 1}}},
				},
			},
		},
		Body: &slang.App{Fun: &slang.Var{Name: "fact"}, Arg: &slang.Integer{Value: 5}},
	}
	v, err := slang.Eval(nil, e)
	require.NoError(t, err)
	require.Equal(t, 120, v)
}

func TestEvalWhileLoop(t *testing.T) {
	e := &slang.App{
		Fun: &slang.Lambda{
			Param: "i",
			Body: &slang.Seq{Es: []slang.Expr{
				&slang.While{
					Cond: &slang.BinExpr{Op: slang.Lt, E1: &slang.Deref{E: &slang.Var{Name: "i"}}, E2: &slang.Integer{Value: 3}},
					Body: &slang.Assign{
						Target: &slang.Var{Name: "i"},
						Value:  &slang.BinExpr{Op: slang.Add, E1: &slang.Deref{E: &slang.Var{Name: "i"}}, E2: &slang.Integer{Value: 1}},
					},
				},
				&slang.Deref{E: &slang.Var{Name: "i"}},
			}},
		},
		Arg: &slang.Ref{E: &slang.Integer{Value: 0}},
	}
	v, err := slang.Eval(nil, e)
	require.NoError(t, err)
	require.Equal(t, 3, v)
}
