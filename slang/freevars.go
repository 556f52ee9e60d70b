package slang

// FreeVars returns the free variables of e, in first-occurrence order, given
// a set of names already considered bound. This is the free-variables
// analyzer spec §1 treats as an external collaborator; Jargon's compiler
// calls it once per Lambda/LetRecFun to size and order each closure's
// captured environment (spec §4.2.1).
func FreeVars(bound map[string]bool, e Expr) []string {
	c := &collector{bound: cloneSet(bound), seen: map[string]bool{}}
	c.walk(e)
	return c.order
}

type collector struct {
	bound map[string]bool
	seen  map[string]bool
	order []string
}

func cloneSet(s map[string]bool) map[string]bool {
	out := make(map[string]bool, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

func (c *collector) use(name string) {
	if c.bound[name] || c.seen[name] {
		return
	}
	c.seen[name] = true
	c.order = append(c.order, name)
}

// withBound runs f against a copy of the collector's bound set extended with
// extra, then restores the original set. The seen/order accumulators are
// shared so free variables found inside nested scopes still surface.
func (c *collector) withBound(extra []string, f func()) {
	saved := c.bound
	c.bound = cloneSet(saved)
	for _, name := range extra {
		c.bound[name] = true
	}
	f()
	c.bound = saved
}

func (c *collector) walk(e Expr) {
	switch n := e.(type) {
	case *UnitExpr, *Boolean, *Integer:
		// no variables
	case *Var:
		c.use(n.Name)
	case *UnaryExpr:
		c.walk(n.E)
	case *BinExpr:
		c.walk(n.E1)
		c.walk(n.E2)
	case *Pair:
		c.walk(n.E1)
		c.walk(n.E2)
	case *Fst:
		c.walk(n.E)
	case *Snd:
		c.walk(n.E)
	case *Inl:
		c.walk(n.E)
	case *Inr:
		c.walk(n.E)
	case *Case:
		c.walk(n.E)
		c.withBound([]string{n.InL.Var}, func() { c.walk(n.InL.Body) })
		c.withBound([]string{n.InR.Var}, func() { c.walk(n.InR.Body) })
	case *If:
		c.walk(n.Cond)
		c.walk(n.Then)
		c.walk(n.Else)
	case *Seq:
		for _, sub := range n.Es {
			c.walk(sub)
		}
	case *Ref:
		c.walk(n.E)
	case *Deref:
		c.walk(n.E)
	case *Assign:
		c.walk(n.Target)
		c.walk(n.Value)
	case *While:
		c.walk(n.Cond)
		c.walk(n.Body)
	case *App:
		c.walk(n.Fun)
		c.walk(n.Arg)
	case *Lambda:
		c.withBound([]string{n.Param}, func() { c.walk(n.Body) })
	case *LetFun:
		c.withBound([]string{n.Def.Param}, func() { c.walk(n.Def.Body) })
		c.withBound([]string{n.Fun}, func() { c.walk(n.Body) })
	case *LetRecFun:
		c.withBound([]string{n.Fun, n.Def.Param}, func() { c.walk(n.Def.Body) })
		c.withBound([]string{n.Fun}, func() { c.walk(n.Body) })
	case *Try:
		c.walk(n.E1)
		c.withBound([]string{n.Param}, func() { c.walk(n.Handler) })
	case *Raise:
		c.walk(n.E)
	}
}
