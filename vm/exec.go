package vm

// Step executes exactly one instruction, per spec §4.1/§4.4. It returns a
// non-nil error only for the "malformed state" class (spec §7.3) — a
// precondition violation Raise can never catch; an unresolved jump or
// closure target reached at run time is reported the same way. Every other
// terminal condition (stack/heap bounds, underflow, RAISE finding no
// handler) is communicated by setting Status and returning nil; Run's loop
// stops as soon as Status leaves StatusRunning.
func (vm *VM) Step() error {
	if vm.Status != StatusRunning {
		return nil
	}
	if vm.CP < 0 || vm.CP >= len(vm.Code) {
		vm.Status = StatusCodeIndexOutOfBound
		return nil
	}

	instr := vm.Code[vm.CP]
	cp := vm.CP
	vm.Trace.Instr(cp, instr)
	defer vm.Trace.State(vm)
	vm.CP++ // default fallthrough; control-transfer cases overwrite this

	switch instr.Op {
	case OpPush:
		vm.pushStack(instr.Lit)

	case OpUnary:
		v, ok := vm.popStack()
		if !ok {
			return nil
		}
		result, err := vm.applyUnary(cp, instr.UOp, v)
		if err != nil {
			return err
		}
		vm.pushStack(result)

	case OpOper:
		right, ok := vm.popStack()
		if !ok {
			return nil
		}
		left, ok := vm.popStack()
		if !ok {
			return nil
		}
		result, err := vm.applyBin(cp, instr.BOp, left, right)
		if err != nil {
			return err
		}
		vm.pushStack(result)

	case OpSwap:
		top, ok := vm.popStack()
		if !ok {
			return nil
		}
		below, ok := vm.popStack()
		if !ok {
			return nil
		}
		vm.pushStack(top)
		vm.pushStack(below)

	case OpPop:
		vm.popStack()

	case OpLabel:
		// runtime no-op; a pure addressing fixture for the loader.

	case OpMkPair:
		right, ok := vm.popStack()
		if !ok {
			return nil
		}
		left, ok := vm.popStack()
		if !ok {
			return nil
		}
		hLeft, err := stackToHeap(left)
		if err != nil {
			return fault(cp, instr.Op, "%s", err)
		}
		hRight, err := stackToHeap(right)
		if err != nil {
			return fault(cp, instr.Op, "%s", err)
		}
		addr, ok := vm.allocate(3)
		if !ok {
			return nil
		}
		vm.setHeapAt(addr, Header(3, HeaderPair))
		vm.setHeapAt(addr+1, hLeft)
		vm.setHeapAt(addr+2, hRight)
		vm.pushStack(HeapRefItem(addr))

	case OpFst, OpSnd:
		top, ok := vm.popStack()
		if !ok {
			return nil
		}
		if top.Tag != SHeapRef {
			return fault(cp, instr.Op, "expected HI, got %s", top.Tag)
		}
		header, ok := vm.heapAt(top.N)
		if !ok {
			return nil
		}
		if header.Tag != HHeader || header.Header != HeaderPair {
			return fault(cp, instr.Op, "expected a PAIR block, got %s", header)
		}
		offset := 1
		if instr.Op == OpSnd {
			offset = 2
		}
		cell, ok := vm.heapAt(top.N + offset)
		if !ok {
			return nil
		}
		sv, err := heapToStack(cell)
		if err != nil {
			return fault(cp, instr.Op, "%s", err)
		}
		vm.pushStack(sv)

	case OpMkInl, OpMkInr:
		v, ok := vm.popStack()
		if !ok {
			return nil
		}
		hv, err := stackToHeap(v)
		if err != nil {
			return fault(cp, instr.Op, "%s", err)
		}
		ht := HeaderInl
		if instr.Op == OpMkInr {
			ht = HeaderInr
		}
		addr, ok := vm.allocate(2)
		if !ok {
			return nil
		}
		vm.setHeapAt(addr, Header(2, ht))
		vm.setHeapAt(addr+1, hv)
		vm.pushStack(HeapRefItem(addr))

	case OpCase:
		top, ok := vm.popStack()
		if !ok {
			return nil
		}
		if top.Tag != SHeapRef {
			return fault(cp, instr.Op, "expected HI, got %s", top.Tag)
		}
		header, ok := vm.heapAt(top.N)
		if !ok {
			return nil
		}
		if header.Tag != HHeader || (header.Header != HeaderInl && header.Header != HeaderInr) {
			return fault(cp, instr.Op, "expected an INL/INR block, got %s", header)
		}
		payload, ok := vm.heapAt(top.N + 1)
		if !ok {
			return nil
		}
		sv, err := heapToStack(payload)
		if err != nil {
			return fault(cp, instr.Op, "%s", err)
		}
		vm.pushStack(sv)
		if header.Header == HeaderInr {
			if !instr.Target.Resolved {
				return fault(cp, instr.Op, "unresolved jump target %s", instr.Target.Label)
			}
			vm.CP = instr.Target.Addr
		}
		// INL falls through to the arm already laid out in line.

	case OpMkRef:
		v, ok := vm.popStack()
		if !ok {
			return nil
		}
		hv, err := stackToHeap(v)
		if err != nil {
			return fault(cp, instr.Op, "%s", err)
		}
		addr, ok := vm.allocate(1)
		if !ok {
			return nil
		}
		vm.setHeapAt(addr, hv)
		vm.pushStack(HeapRefItem(addr))

	case OpDeref:
		top, ok := vm.popStack()
		if !ok {
			return nil
		}
		if top.Tag != SHeapRef {
			return fault(cp, instr.Op, "expected HI, got %s", top.Tag)
		}
		cell, ok := vm.heapAt(top.N)
		if !ok {
			return nil
		}
		sv, err := heapToStack(cell)
		if err != nil {
			return fault(cp, instr.Op, "%s", err)
		}
		vm.pushStack(sv)

	case OpAssign:
		v, ok := vm.popStack()
		if !ok {
			return nil
		}
		target, ok := vm.popStack()
		if !ok {
			return nil
		}
		if target.Tag != SHeapRef {
			return fault(cp, instr.Op, "assignment target is not HI, got %s", target.Tag)
		}
		hv, err := stackToHeap(v)
		if err != nil {
			return fault(cp, instr.Op, "%s", err)
		}
		if !vm.setHeapAt(target.N, hv) {
			return nil
		}
		vm.pushStack(UnitItem())

	case OpTest:
		v, ok := vm.popStack()
		if !ok {
			return nil
		}
		if v.Tag != SBool {
			return fault(cp, instr.Op, "expected BOOL, got %s", v.Tag)
		}
		if !v.Bool {
			if !instr.Target.Resolved {
				return fault(cp, instr.Op, "unresolved jump target %s", instr.Target.Label)
			}
			vm.CP = instr.Target.Addr
		}

	case OpGoto:
		if !instr.Target.Resolved {
			return fault(cp, instr.Op, "unresolved jump target %s", instr.Target.Label)
		}
		vm.CP = instr.Target.Addr

	case OpHalt:
		vm.Status = StatusHalted

	case OpMkClosure:
		if !instr.Entry.Resolved {
			return fault(cp, instr.Op, "unresolved closure entry %s", instr.Entry.Label)
		}
		n := instr.NumFree
		cells := make([]HeapItem, n)
		for i := 0; i < n; i++ {
			v, ok := vm.peekStack(i)
			if !ok {
				return nil
			}
			hv, err := stackToHeap(v)
			if err != nil {
				return fault(cp, instr.Op, "%s", err)
			}
			cells[i] = hv
		}
		for i := 0; i < n; i++ {
			if _, ok := vm.popStack(); !ok {
				return nil
			}
		}
		addr, ok := vm.allocate(2 + n)
		if !ok {
			return nil
		}
		vm.setHeapAt(addr, Header(2+n, HeaderClosure))
		vm.setHeapAt(addr+1, HeapCodeRef(instr.Entry.Addr))
		for i := 0; i < n; i++ {
			vm.setHeapAt(addr+2+i, cells[i])
		}
		vm.pushStack(HeapRefItem(addr))

	case OpApply:
		closure, ok := vm.peekStack(0)
		if !ok {
			return nil
		}
		if closure.Tag != SHeapRef {
			return fault(cp, instr.Op, "APPLY expects a closure on top, got %s", closure.Tag)
		}
		header, ok := vm.heapAt(closure.N)
		if !ok {
			return nil
		}
		if header.Tag != HHeader || header.Header != HeaderClosure {
			return fault(cp, instr.Op, "APPLY target is not a closure")
		}
		entryCell, ok := vm.heapAt(closure.N + 1)
		if !ok {
			return nil
		}
		if entryCell.Tag != HCodeRef {
			return fault(cp, instr.Op, "closure entry is not a code reference")
		}
		if _, ok := vm.peekStack(1); !ok { // the argument must exist below the closure
			return nil
		}
		newFP := vm.SP
		vm.pushStack(FramePtrItem(vm.FP))
		vm.pushStack(ReturnAddrItem(vm.CP))
		vm.FP = newFP
		vm.CP = entryCell.N

	case OpReturn:
		retVal, ok := vm.popStack()
		if !ok {
			return nil
		}
		savedFP, ok := vm.stackAt(vm.FP)
		if !ok {
			return nil
		}
		savedRA, ok := vm.stackAt(vm.FP + 1)
		if !ok {
			return nil
		}
		if savedFP.Tag != SFramePtr || savedRA.Tag != SReturnAddr {
			return fault(cp, instr.Op, "frame at %d is not a well-formed (FP, RA) pair", vm.FP)
		}
		fpEntry := vm.FP
		vm.CP = savedRA.N
		vm.FP = savedFP.N
		vm.SP = fpEntry - 2
		vm.pushStack(retVal)

	case OpLookup:
		switch instr.Path.Kind {
		case PathStack:
			v, ok := vm.stackAt(vm.FP + instr.Path.Offset)
			if !ok {
				return nil
			}
			vm.pushStack(v)
		case PathHeap:
			closureCell, ok := vm.stackAt(vm.FP - 1)
			if !ok {
				return nil
			}
			if closureCell.Tag != SHeapRef {
				return fault(cp, instr.Op, "HEAP_LOCATION needs a closure at fp-1, got %s", closureCell.Tag)
			}
			hv, ok := vm.heapAt(closureCell.N + instr.Path.Offset + 1)
			if !ok {
				return nil
			}
			sv, err := heapToStack(hv)
			if err != nil {
				return fault(cp, instr.Op, "%s", err)
			}
			vm.pushStack(sv)
		default:
			return fault(cp, instr.Op, "unknown value path kind")
		}

	case OpTry:
		if !instr.Target.Resolved {
			return fault(cp, instr.Op, "unresolved try target %s", instr.Target.Label)
		}
		vm.pushStack(IntItem(vm.EP))
		vm.pushStack(IntItem(vm.FP))
		vm.pushStack(IntItem(instr.Target.Addr))

	case OpUntry:
		v, ok := vm.popStack()
		if !ok {
			return nil
		}
		for i := 0; i < 3; i++ {
			if _, ok := vm.popStack(); !ok {
				return nil
			}
		}
		vm.pushStack(v)

	case OpRaise:
		x, ok := vm.popStack()
		if !ok {
			return nil
		}
		for {
			if vm.SP < 3 {
				vm.Status = StatusNoHandler
				return nil
			}
			c0, _ := vm.peekStack(0)
			c1, _ := vm.peekStack(1)
			c2, _ := vm.peekStack(2)
			if c0.Tag == SInt && c1.Tag == SInt && c2.Tag == SInt {
				vm.SP -= 3
				vm.CP = c0.N
				vm.FP = c1.N
				vm.EP = c2.N
				vm.pushStack(x)
				return nil
			}
			vm.SP -= 3
		}

	default:
		return fault(cp, instr.Op, "unknown opcode")
	}

	return nil
}

func (vm *VM) applyUnary(cp int, op UnaryOp, v StackItem) (StackItem, error) {
	switch op {
	case UNot:
		if v.Tag != SBool {
			return StackItem{}, fault(cp, OpUnary, "NOT expects BOOL, got %s", v.Tag)
		}
		return BoolItem(!v.Bool), nil
	case UNeg:
		if v.Tag != SInt {
			return StackItem{}, fault(cp, OpUnary, "NEG expects INT, got %s", v.Tag)
		}
		return IntItem(-v.N), nil
	case URead:
		n, err := vm.Input.ReadInt()
		if err != nil {
			return StackItem{}, fault(cp, OpUnary, "READ failed: %v", err)
		}
		return IntItem(n), nil
	default:
		return StackItem{}, fault(cp, OpUnary, "unknown unary operator")
	}
}

func (vm *VM) applyBin(cp int, op BinOp, left, right StackItem) (StackItem, error) {
	switch op {
	case BAnd:
		if left.Tag != SBool || right.Tag != SBool {
			return StackItem{}, fault(cp, OpOper, "AND expects BOOL operands, got %s/%s", left.Tag, right.Tag)
		}
		return BoolItem(left.Bool && right.Bool), nil
	case BOr:
		if left.Tag != SBool || right.Tag != SBool {
			return StackItem{}, fault(cp, OpOper, "OR expects BOOL operands, got %s/%s", left.Tag, right.Tag)
		}
		return BoolItem(left.Bool || right.Bool), nil
	case BEqB:
		if left.Tag != SBool || right.Tag != SBool {
			return StackItem{}, fault(cp, OpOper, "EQB expects BOOL operands, got %s/%s", left.Tag, right.Tag)
		}
		return BoolItem(left.Bool == right.Bool), nil
	case BLt:
		if left.Tag != SInt || right.Tag != SInt {
			return StackItem{}, fault(cp, OpOper, "LT expects INT operands, got %s/%s", left.Tag, right.Tag)
		}
		return BoolItem(left.N < right.N), nil
	case BEqI:
		if left.Tag != SInt || right.Tag != SInt {
			return StackItem{}, fault(cp, OpOper, "EQI expects INT operands, got %s/%s", left.Tag, right.Tag)
		}
		return BoolItem(left.N == right.N), nil
	case BAdd:
		if left.Tag != SInt || right.Tag != SInt {
			return StackItem{}, fault(cp, OpOper, "ADD expects INT operands, got %s/%s", left.Tag, right.Tag)
		}
		return IntItem(left.N + right.N), nil
	case BSub:
		if left.Tag != SInt || right.Tag != SInt {
			return StackItem{}, fault(cp, OpOper, "SUB expects INT operands, got %s/%s", left.Tag, right.Tag)
		}
		return IntItem(left.N - right.N), nil
	case BMul:
		if left.Tag != SInt || right.Tag != SInt {
			return StackItem{}, fault(cp, OpOper, "MUL expects INT operands, got %s/%s", left.Tag, right.Tag)
		}
		return IntItem(left.N * right.N), nil
	case BDiv:
		if left.Tag != SInt || right.Tag != SInt {
			return StackItem{}, fault(cp, OpOper, "DIV expects INT operands, got %s/%s", left.Tag, right.Tag)
		}
		if right.N == 0 {
			return StackItem{}, fault(cp, OpOper, "division by zero")
		}
		return IntItem(left.N / right.N), nil
	default:
		return StackItem{}, fault(cp, OpOper, "unknown binary operator")
	}
}
