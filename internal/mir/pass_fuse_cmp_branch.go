package mir

// FuseCmpBranch fuses a comparison whose only use is an If terminator
// into a single BranchCmp, avoiding materializing the boolean result.
// The comparison may live in the branching block itself or in that
// block's sole predecessor (a condition computed just before an
// unconditional jump into the block that branches on it) — the single
// predecessor guarantees the compare dominates the branch, so moving
// the operands into the terminator is safe. The comparison instruction
// is deleted once fused; if it had any other use the fusion does not
// apply.
type FuseCmpBranch struct{}

func (*FuseCmpBranch) Name() string        { return "FuseCmpBranch" }
func (*FuseCmpBranch) Description() string { return "fuses a single-use comparison into its branch" }

func (p *FuseCmpBranch) Run(fn *Function) bool {
	changed := false
	useCounts := countUses(fn)
	for _, id := range fn.BlockOrder() {
		block := fn.Blocks[id]
		ifTerm, ok := block.Terminator.(*If)
		if !ok || !ifTerm.Cond.IsOperand() {
			continue
		}
		condId := ifTerm.Cond.Operand()
		if useCounts[condId] != 1 {
			continue
		}
		defBlock := block
		cmp, cmpIdx, found := findComparisonDef(block, condId)
		if !found && len(block.Preds) == 1 {
			defBlock = fn.Blocks[block.Preds[0]]
			cmp, cmpIdx, found = findComparisonDef(defBlock, condId)
		}
		if !found {
			continue
		}
		fn.SetTerminatorWithEdges(id, &BranchCmp{
			Op:   cmp.Op,
			L:    cmp.L,
			R:    cmp.R,
			Then: ifTerm.Then,
			Else: ifTerm.Else,
		})
		defBlock.RemoveInstructionAt(cmpIdx)
		changed = true
	}
	return changed
}

// countUses tallies every operand reference across the function: each
// instruction's UsedValues, each terminator's UsedValues, and return
// values/parameters are excluded since they are never candidates for
// fusion (a comparison feeding a return is never an If condition).
func countUses(fn *Function) map[ValueId]int {
	counts := make(map[ValueId]int)
	for _, id := range fn.BlockOrder() {
		block := fn.Blocks[id]
		for _, instr := range block.Instructions {
			for _, v := range instr.UsedValues() {
				if v.IsOperand() {
					counts[v.Operand()]++
				}
			}
		}
		if block.Terminator != nil {
			for _, v := range block.Terminator.UsedValues() {
				if v.IsOperand() {
					counts[v.Operand()]++
				}
			}
		}
	}
	return counts
}

func findComparisonDef(block *BasicBlock, dest ValueId) (*Binary, int, bool) {
	for idx, instr := range block.Instructions {
		bin, ok := instr.(*Binary)
		if !ok || bin.Dest != dest {
			continue
		}
		if bin.Op.IsComparison() {
			return bin, idx, true
		}
	}
	return nil, 0, false
}
