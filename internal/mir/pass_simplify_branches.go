package mir

// SimplifyBranches collapses a terminator whose condition is a literal
// into an unconditional Jump, dropping the untaken edge. This covers
// both If (boolean literal condition) and BranchCmp
// (like-typed literal operands). A BranchCmp only exists once
// FuseCmpBranch has run, which StandardPipeline schedules after this
// pass, so the BranchCmp case applies when this pass runs on
// already-fused MIR.
type SimplifyBranches struct{}

func (*SimplifyBranches) Name() string        { return "SimplifyBranches" }
func (*SimplifyBranches) Description() string { return "collapses literal-condition branches into jumps" }

func (p *SimplifyBranches) Run(fn *Function) bool {
	changed := false
	for _, id := range fn.BlockOrder() {
		block := fn.Blocks[id]
		if target, ok := p.evaluate(block.Terminator); ok {
			oldTargets := block.Terminator.TargetBlocks()
			fn.SetTerminatorWithEdges(id, &Jump{Target: target})
			// The untaken successor lost this block as a predecessor; its
			// phis must not keep a source for the removed edge.
			for _, t := range oldTargets {
				if s := fn.Blocks[t]; s != nil && !s.HasPred(id) {
					s.PrunePhiSources()
				}
			}
			changed = true
		}
	}
	return changed
}

func (p *SimplifyBranches) evaluate(term Terminator) (BlockId, bool) {
	switch t := term.(type) {
	case *If:
		if !t.Cond.IsLiteral() {
			return 0, false
		}
		if t.Cond.Literal().BoolValue() {
			return t.Then, true
		}
		return t.Else, true
	case *BranchCmp:
		if !t.L.IsLiteral() || !t.R.IsLiteral() {
			return 0, false
		}
		taken, ok := evalCompare(t.Op, t.L.Literal(), t.R.Literal())
		if !ok {
			return 0, false
		}
		if taken {
			return t.Then, true
		}
		return t.Else, true
	}
	return 0, false
}

// evalCompare evaluates a like-typed comparison between two literals.
func evalCompare(op BinaryOp, l, r Literal) (bool, bool) {
	if l.Kind != r.Kind {
		return false, false
	}
	switch l.Kind {
	case LitFelt:
		a, b := l.FeltValue(), r.FeltValue()
		return compareOrdered(op, a, b)
	case LitU32:
		a, b := l.U32Value(), r.U32Value()
		return compareOrdered(op, a, b)
	case LitBool:
		a, b := l.BoolValue(), r.BoolValue()
		switch op {
		case OpEq, OpU32Eq:
			return a == b, true
		case OpNeq, OpU32Neq:
			return a != b, true
		}
	}
	return false, false
}

func compareOrdered(op BinaryOp, a, b uint32) (bool, bool) {
	switch op {
	case OpEq, OpU32Eq:
		return a == b, true
	case OpNeq, OpU32Neq:
		return a != b, true
	case OpLess, OpU32Less:
		return a < b, true
	case OpLessEq, OpU32LessEq:
		return a <= b, true
	case OpGreater, OpU32Greater:
		return a > b, true
	case OpGreaterEq, OpU32GreaterEq:
		return a >= b, true
	}
	return false, false
}
