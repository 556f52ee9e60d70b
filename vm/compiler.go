package vm

import (
	"fmt"

	"github.com/pkg/errors"

	"jargon/slang"
)

/*
	The compiler (spec §4.2): comp(vmap, e) -> (defs, code), where vmap is an
	ordered associative list binding identifiers to value paths, code is the
	main stream (evaluated in order), and defs is the accumulated
	function-body stream emitted after HALT. See the translation table in
	spec §4.2 and closure construction in §4.2.1; this file implements both
	verbatim.
*/

// varBinding is one entry of a VarMap.
type varBinding struct {
	name string
	path ValuePath
}

// VarMap is the ordered associative list spec §4.2 describes: lookup scans
// from the most recently added binding so inner scopes shadow outer ones.
type VarMap []varBinding

func (vm VarMap) lookup(name string) (ValuePath, bool) {
	for i := len(vm) - 1; i >= 0; i-- {
		if vm[i].name == name {
			return vm[i].path, true
		}
	}
	return ValuePath{}, false
}

func (vm VarMap) extend(name string, path ValuePath) VarMap {
	out := make(VarMap, len(vm)+1)
	copy(out, vm)
	out[len(vm)] = varBinding{name: name, path: path}
	return out
}

// compiler carries the label generator and accumulates the defs stream
// (spec §2: "the label counter is process-wide mutable state" — here
// scoped to one compilation session instead of a true global).
type compiler struct {
	gen  *LabelGen
	defs []Instruction
}

// Compile translates a closed Slang expression into a flat listing:
// code_of_e ++ [HALT] ++ defs (spec §4.2.2). The label counter is reset
// first, since callers are expected to reset it before each independent
// top-level compilation.
func Compile(e slang.Expr) (Listing, error) {
	c := &compiler{gen: NewLabelGen()}
	c.gen.Reset()

	code, err := c.compile(nil, e)
	if err != nil {
		return nil, err
	}

	listing := make(Listing, 0, len(code)+1+len(c.defs))
	listing = append(listing, code...)
	listing = append(listing, Instruction{Op: OpHalt})
	listing = append(listing, c.defs...)
	return listing, nil
}

func (c *compiler) compile(vmap VarMap, e slang.Expr) ([]Instruction, error) {
	switch n := e.(type) {
	case *slang.UnitExpr:
		return []Instruction{{Op: OpPush, Lit: UnitItem()}}, nil

	case *slang.Boolean:
		return []Instruction{{Op: OpPush, Lit: BoolItem(n.Value)}}, nil

	case *slang.Integer:
		return []Instruction{{Op: OpPush, Lit: IntItem(n.Value)}}, nil

	case *slang.Var:
		path, ok := vmap.lookup(n.Name)
		if !ok {
			return nil, errUnknownIdentifier(n.Name)
		}
		return []Instruction{{Op: OpLookup, Path: path}}, nil

	case *slang.UnaryExpr:
		sub, err := c.compile(vmap, n.E)
		if err != nil {
			return nil, err
		}
		return append(sub, Instruction{Op: OpUnary, UOp: toUnaryOp(n.Op)}), nil

	case *slang.BinExpr:
		c1, err := c.compile(vmap, n.E1)
		if err != nil {
			return nil, err
		}
		c2, err := c.compile(vmap, n.E2)
		if err != nil {
			return nil, err
		}
		return join(c1, c2, []Instruction{{Op: OpOper, BOp: toBinOp(n.Op)}}), nil

	case *slang.Pair:
		c1, err := c.compile(vmap, n.E1)
		if err != nil {
			return nil, err
		}
		c2, err := c.compile(vmap, n.E2)
		if err != nil {
			return nil, err
		}
		return join(c1, c2, []Instruction{{Op: OpMkPair}}), nil

	case *slang.Fst:
		return c.compileWrap(vmap, n.E, OpFst)
	case *slang.Snd:
		return c.compileWrap(vmap, n.E, OpSnd)
	case *slang.Inl:
		return c.compileWrap(vmap, n.E, OpMkInl)
	case *slang.Inr:
		return c.compileWrap(vmap, n.E, OpMkInr)
	case *slang.Ref:
		return c.compileWrap(vmap, n.E, OpMkRef)
	case *slang.Deref:
		return c.compileWrap(vmap, n.E, OpDeref)

	case *slang.Assign:
		c1, err := c.compile(vmap, n.Target)
		if err != nil {
			return nil, err
		}
		c2, err := c.compile(vmap, n.Value)
		if err != nil {
			return nil, err
		}
		return join(c1, c2, []Instruction{{Op: OpAssign}}), nil

	case *slang.Seq:
		return c.compileSeq(vmap, n)

	case *slang.If:
		return c.compileIf(vmap, n)

	case *slang.While:
		return c.compileWhile(vmap, n)

	case *slang.Case:
		return c.compileCase(vmap, n)

	case *slang.App:
		argCode, err := c.compile(vmap, n.Arg)
		if err != nil {
			return nil, err
		}
		funCode, err := c.compile(vmap, n.Fun)
		if err != nil {
			return nil, err
		}
		return join(argCode, funCode, []Instruction{{Op: OpApply}}), nil

	case *slang.Lambda:
		return c.emitClosure(vmap, n.Param, "", n.Body)

	case *slang.LetFun:
		desugared := &slang.App{
			Tag: n.Tag,
			Fun: &slang.Lambda{Tag: n.Tag, Param: n.Fun, Body: n.Body},
			Arg: &slang.Lambda{Tag: n.Tag, Param: n.Def.Param, Body: n.Def.Body},
		}
		return c.compile(vmap, desugared)

	case *slang.LetRecFun:
		c1, err := c.emitClosure(vmap, n.Fun, "", n.Body)
		if err != nil {
			return nil, err
		}
		c2, err := c.emitClosure(vmap, n.Def.Param, n.Fun, n.Def.Body)
		if err != nil {
			return nil, err
		}
		return join(c2, c1, []Instruction{{Op: OpApply}}), nil

	case *slang.Try:
		return c.compileTry(vmap, n)

	case *slang.Raise:
		sub, err := c.compile(vmap, n.E)
		if err != nil {
			return nil, err
		}
		return append(sub, Instruction{Op: OpRaise}), nil

	default:
		return nil, errors.Wrapf(ErrMalformedAST, "unhandled node %T", e)
	}
}

func (c *compiler) compileWrap(vmap VarMap, e slang.Expr, op Op) ([]Instruction, error) {
	sub, err := c.compile(vmap, e)
	if err != nil {
		return nil, err
	}
	return append(sub, Instruction{Op: op}), nil
}

func (c *compiler) compileSeq(vmap VarMap, n *slang.Seq) ([]Instruction, error) {
	if len(n.Es) == 0 {
		return []Instruction{{Op: OpPush, Lit: UnitItem()}}, nil
	}

	var code []Instruction
	for i, sub := range n.Es {
		subCode, err := c.compile(vmap, sub)
		if err != nil {
			return nil, err
		}
		code = append(code, subCode...)
		if i < len(n.Es)-1 {
			code = append(code, Instruction{Op: OpPop})
		}
	}
	return code, nil
}

func (c *compiler) compileIf(vmap VarMap, n *slang.If) ([]Instruction, error) {
	condCode, err := c.compile(vmap, n.Cond)
	if err != nil {
		return nil, err
	}
	thenCode, err := c.compile(vmap, n.Then)
	if err != nil {
		return nil, err
	}
	elseCode, err := c.compile(vmap, n.Else)
	if err != nil {
		return nil, err
	}

	lElse, lEnd := c.gen.Fresh(), c.gen.Fresh()

	code := append([]Instruction{}, condCode...)
	code = append(code, Instruction{Op: OpTest, Target: unresolved(lElse)})
	code = append(code, thenCode...)
	code = append(code, Instruction{Op: OpGoto, Target: unresolved(lEnd)})
	code = append(code, Instruction{Op: OpLabel, Here: lElse})
	code = append(code, elseCode...)
	code = append(code, Instruction{Op: OpLabel, Here: lEnd})
	return code, nil
}

func (c *compiler) compileWhile(vmap VarMap, n *slang.While) ([]Instruction, error) {
	condCode, err := c.compile(vmap, n.Cond)
	if err != nil {
		return nil, err
	}
	bodyCode, err := c.compile(vmap, n.Body)
	if err != nil {
		return nil, err
	}

	lTop, lEnd := c.gen.Fresh(), c.gen.Fresh()

	code := []Instruction{{Op: OpLabel, Here: lTop}}
	code = append(code, condCode...)
	code = append(code, Instruction{Op: OpTest, Target: unresolved(lEnd)})
	code = append(code, bodyCode...)
	code = append(code, Instruction{Op: OpPop})
	code = append(code, Instruction{Op: OpGoto, Target: unresolved(lTop)})
	code = append(code, Instruction{Op: OpLabel, Here: lEnd})
	code = append(code, Instruction{Op: OpPush, Lit: UnitItem()})
	return code, nil
}

func (c *compiler) compileCase(vmap VarMap, n *slang.Case) ([]Instruction, error) {
	scrutCode, err := c.compile(vmap, n.E)
	if err != nil {
		return nil, err
	}
	inlCode, err := c.emitClosure(vmap, n.InL.Var, "", n.InL.Body)
	if err != nil {
		return nil, err
	}
	inrCode, err := c.emitClosure(vmap, n.InR.Var, "", n.InR.Body)
	if err != nil {
		return nil, err
	}

	lInr, lAfter := c.gen.Fresh(), c.gen.Fresh()

	code := append([]Instruction{}, scrutCode...)
	code = append(code, Instruction{Op: OpCase, Target: unresolved(lInr)})
	code = append(code, inlCode...)
	code = append(code, Instruction{Op: OpApply})
	code = append(code, Instruction{Op: OpGoto, Target: unresolved(lAfter)})
	code = append(code, Instruction{Op: OpLabel, Here: lInr})
	code = append(code, inrCode...)
	code = append(code, Instruction{Op: OpApply})
	code = append(code, Instruction{Op: OpLabel, Here: lAfter})
	return code, nil
}

func (c *compiler) compileTry(vmap VarMap, n *slang.Try) ([]Instruction, error) {
	e1Code, err := c.compile(vmap, n.E1)
	if err != nil {
		return nil, err
	}
	handlerCode, err := c.emitClosure(vmap, n.Param, "", n.Handler)
	if err != nil {
		return nil, err
	}

	lExc, lEnd := c.gen.Fresh(), c.gen.Fresh()

	code := []Instruction{{Op: OpTry, Target: unresolved(lExc)}}
	code = append(code, e1Code...)
	code = append(code, Instruction{Op: OpUntry})
	code = append(code, Instruction{Op: OpGoto, Target: unresolved(lEnd)})
	code = append(code, Instruction{Op: OpLabel, Here: lExc})
	code = append(code, handlerCode...)
	code = append(code, Instruction{Op: OpApply})
	code = append(code, Instruction{Op: OpLabel, Here: lEnd})
	return code, nil
}

// emitClosure implements spec §4.2.1 closure construction for a (possibly
// recursive) lambda: param is the argument name, recName is non-empty only
// for a recursive binding (LetRecFun), and body is compiled under a vmap
// that binds exactly param, recName (if any), and body's free variables —
// nothing else, since those are the only names body can mention. It
// returns the main-stream closure-construction code (the free-variable
// LOOKUPs plus MK_CLOSURE); the function body itself is appended to the
// defs stream as a side effect.
func (c *compiler) emitClosure(vmap VarMap, param, recName string, body slang.Expr) ([]Instruction, error) {
	bound := map[string]bool{param: true}
	if recName != "" {
		bound[recName] = true
	}
	free := slang.FreeVars(bound, body)

	entry := c.gen.Fresh()

	main := make([]Instruction, 0, len(free)+1)
	for i := len(free) - 1; i >= 0; i-- {
		path, ok := vmap.lookup(free[i])
		if !ok {
			return nil, errUnknownIdentifier(free[i])
		}
		main = append(main, Instruction{Op: OpLookup, Path: path})
	}
	main = append(main, Instruction{Op: OpMkClosure, Entry: unresolved(entry), NumFree: len(free)})

	var extended VarMap
	extended = extended.extend(param, StackLocation(-2))
	if recName != "" {
		extended = extended.extend(recName, StackLocation(-1))
	}
	for i, fv := range free {
		extended = extended.extend(fv, HeapLocation(i+1))
	}

	bodyCode, err := c.compile(extended, body)
	if err != nil {
		return nil, err
	}

	defs := make([]Instruction, 0, len(bodyCode)+2)
	defs = append(defs, Instruction{Op: OpLabel, Here: entry})
	defs = append(defs, bodyCode...)
	defs = append(defs, Instruction{Op: OpReturn})
	c.defs = append(c.defs, defs...)

	return main, nil
}

func toUnaryOp(op slang.UnaryOp) UnaryOp {
	switch op {
	case slang.Not:
		return UNot
	case slang.Neg:
		return UNeg
	case slang.Read:
		return URead
	default:
		panic(fmt.Sprintf("vm: unknown slang.UnaryOp %v", op))
	}
}

func toBinOp(op slang.BinOp) BinOp {
	switch op {
	case slang.And:
		return BAnd
	case slang.Or:
		return BOr
	case slang.EqB:
		return BEqB
	case slang.Lt:
		return BLt
	case slang.EqI:
		return BEqI
	case slang.Add:
		return BAdd
	case slang.Sub:
		return BSub
	case slang.Mul:
		return BMul
	case slang.Div:
		return BDiv
	default:
		panic(fmt.Sprintf("vm: unknown slang.BinOp %v", op))
	}
}

func join(parts ...[]Instruction) []Instruction {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]Instruction, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
