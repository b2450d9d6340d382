package mir

// DeadCodeElimination iteratively removes pure instructions whose
// destination is never used, and blocks unreachable from the entry
// block. Runs to fixpoint within a single call since
// removing one dead instruction can make its operands' producers dead
// in turn.
type DeadCodeElimination struct{}

func (*DeadCodeElimination) Name() string        { return "DeadCodeElimination" }
func (*DeadCodeElimination) Description() string { return "removes unused pure instructions and unreachable blocks" }

func (p *DeadCodeElimination) Run(fn *Function) bool {
	changed := false
	if removeUnreachableBlocks(fn) {
		changed = true
	}
	for removeDeadInstructions(fn) {
		changed = true
	}
	return changed
}

func removeDeadInstructions(fn *Function) bool {
	used := liveValues(fn)
	removed := false
	for _, id := range fn.BlockOrder() {
		block := fn.Blocks[id]
		kept := block.Instructions[:0]
		for _, instr := range block.Instructions {
			dest, hasDest := instr.Destination()
			// Phis report impure (they are merges, not computations and
			// must never be CSE'd or hoisted), but an unused one is still
			// dead: deleting it cannot change any observable behavior.
			_, isPhi := instr.(*Phi)
			if hasDest && (instr.IsPure() || isPhi) && !used[dest] {
				removed = true
				continue
			}
			kept = append(kept, instr)
		}
		block.Instructions = kept
	}
	return removed
}

func liveValues(fn *Function) map[ValueId]bool {
	used := make(map[ValueId]bool)
	for _, id := range fn.BlockOrder() {
		block := fn.Blocks[id]
		for _, instr := range block.Instructions {
			for _, v := range instr.UsedValues() {
				if v.IsOperand() {
					used[v.Operand()] = true
				}
			}
		}
		if block.Terminator != nil {
			for _, v := range block.Terminator.UsedValues() {
				if v.IsOperand() {
					used[v.Operand()] = true
				}
			}
		}
	}
	for _, r := range fn.ReturnValues {
		used[r] = true
	}
	return used
}

// removeUnreachableBlocks deletes every block not reachable from the
// entry block by a forward walk of Succs, cleaning up the predecessor
// bookkeeping of any surviving successors.
func removeUnreachableBlocks(fn *Function) bool {
	reachable := map[BlockId]bool{fn.EntryBlock: true}
	queue := []BlockId{fn.EntryBlock}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		block := fn.Blocks[id]
		if block == nil {
			continue
		}
		for _, succ := range block.Succs {
			if !reachable[succ] {
				reachable[succ] = true
				queue = append(queue, succ)
			}
		}
	}

	removed := false
	for _, id := range fn.BlockOrder() {
		if reachable[id] {
			continue
		}
		block := fn.Blocks[id]
		for _, succ := range block.Succs {
			if s := fn.Blocks[succ]; s != nil {
				s.RemovePred(id)
			}
		}
		fn.RemoveBlock(id)
		removed = true
	}
	if removed {
		for _, id := range fn.BlockOrder() {
			fn.Blocks[id].PrunePhiSources()
		}
	}
	return removed
}
