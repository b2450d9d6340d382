package mir

// BasicBlock is a straight-line sequence of instructions — phis first,
// then the rest — ending in exactly one terminator, with explicit
// (ordered, duplicate-free) predecessor/successor lists.
type BasicBlock struct {
	ID           BlockId
	Name         string // optional debug name, e.g. "then", "loop_header"
	Instructions []Instruction
	Terminator   Terminator
	Preds        []BlockId
	Succs        []BlockId
	sealed       bool
	filled       bool
}

func newBasicBlock(id BlockId, name string) *BasicBlock {
	return &BasicBlock{ID: id, Name: name}
}

func (b *BasicBlock) Sealed() bool { return b.sealed }
func (b *BasicBlock) Filled() bool { return b.filled }
func (b *BasicBlock) Seal()        { b.sealed = true }
func (b *BasicBlock) MarkFilled()  { b.filled = true }

// PhiRange returns the half-open index range [0, end) of phi instructions
// at the front of the block.
func (b *BasicBlock) PhiRange() (int, int) {
	end := 0
	for end < len(b.Instructions) {
		if _, ok := b.Instructions[end].(*Phi); !ok {
			break
		}
		end++
	}
	return 0, end
}

// Phis returns the block's phi instructions, in order.
func (b *BasicBlock) Phis() []*Phi {
	_, end := b.PhiRange()
	phis := make([]*Phi, 0, end)
	for i := 0; i < end; i++ {
		phis = append(phis, b.Instructions[i].(*Phi))
	}
	return phis
}

// PushPhiFront inserts a phi at the end of the phi range. It panics if
// instr is not a *Phi — phis may never be interleaved with other
// instructions.
func (b *BasicBlock) PushPhiFront(instr *Phi) {
	_, end := b.PhiRange()
	b.Instructions = append(b.Instructions, nil)
	copy(b.Instructions[end+1:], b.Instructions[end:])
	b.Instructions[end] = instr
}

// Push appends a non-phi instruction after the phi range.
func (b *BasicBlock) Push(instr Instruction) {
	b.Instructions = append(b.Instructions, instr)
}

// RemoveInstructionAt deletes the instruction at index idx.
func (b *BasicBlock) RemoveInstructionAt(idx int) {
	b.Instructions = append(b.Instructions[:idx], b.Instructions[idx+1:]...)
}

// AddPred appends pred to the predecessor list if not already present.
// Adding a predecessor to a sealed block is a construction-discipline
// violation — the caller must seal only once all predecessors are known.
func (b *BasicBlock) AddPred(pred BlockId) {
	if b.sealed {
		panic("mir: add_pred on sealed block " + b.ID.String())
	}
	for _, p := range b.Preds {
		if p == pred {
			return
		}
	}
	b.Preds = append(b.Preds, pred)
}

func (b *BasicBlock) AddSucc(succ BlockId) {
	for _, s := range b.Succs {
		if s == succ {
			return
		}
	}
	b.Succs = append(b.Succs, succ)
}

func (b *BasicBlock) RemovePred(pred BlockId) {
	for idx, p := range b.Preds {
		if p == pred {
			b.Preds = append(b.Preds[:idx], b.Preds[idx+1:]...)
			return
		}
	}
}

func (b *BasicBlock) RemoveSucc(succ BlockId) {
	for idx, s := range b.Succs {
		if s == succ {
			b.Succs = append(b.Succs[:idx], b.Succs[idx+1:]...)
			return
		}
	}
}

// PrunePhiSources drops every phi source whose predecessor is no longer
// in the block's pred list. Passes that remove an incoming edge
// (SimplifyBranches collapsing a literal branch, DCE deleting an
// unreachable predecessor) must call this on the affected successor so
// the one-operand-per-predecessor invariant keeps holding.
func (b *BasicBlock) PrunePhiSources() {
	for _, phi := range b.Phis() {
		kept := phi.Sources[:0]
		for _, src := range phi.Sources {
			if b.HasPred(src.Pred) {
				kept = append(kept, src)
			}
		}
		phi.Sources = kept
	}
}

// HasPred reports whether pred is already recorded as a predecessor.
func (b *BasicBlock) HasPred(pred BlockId) bool {
	for _, p := range b.Preds {
		if p == pred {
			return true
		}
	}
	return false
}
