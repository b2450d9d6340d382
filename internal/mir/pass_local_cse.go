package mir

// LocalCSE deduplicates syntactically identical pure computations within
// a single block, reusing the same PureKey machinery Lowering's
// InstrBuilder uses to avoid ever emitting the duplicate in the first
// place. This pass catches duplicates that arise later, after
// other rewrites (e.g. two instructions becoming equivalent once
// ArithmeticSimplify or ConstantFolding has run).
type LocalCSE struct{}

func (*LocalCSE) Name() string        { return "LocalCSE" }
func (*LocalCSE) Description() string { return "removes duplicate pure computations within a block" }

func (p *LocalCSE) Run(fn *Function) bool {
	changed := false
	for _, id := range fn.BlockOrder() {
		if p.runOnBlock(fn, id) {
			changed = true
		}
	}
	return changed
}

func (p *LocalCSE) runOnBlock(fn *Function, id BlockId) bool {
	table := NewLocalValueTable()
	changed := false

	// Collect (duplicate, survivor) pairs first: mutating
	// ReplaceAllUses mid-scan is safe since it only rewrites operand
	// references, never instruction identities, but we still want the
	// full duplicate list decided against the table's original state.
	type dup struct {
		dest ValueId
		keep ValueId
	}
	var dups []dup

	for _, instr := range fn.Blocks[id].Instructions {
		key, ok := pureKeyOf(instr)
		if !ok {
			continue
		}
		dest, hasDest := instr.Destination()
		if !hasDest {
			continue
		}
		if existing, found := table.Lookup(key); found {
			dups = append(dups, dup{dest: dest, keep: existing})
			continue
		}
		table.Record(key, dest)
	}

	for _, d := range dups {
		fn.ReplaceAllUses(d.dest, d.keep)
		changed = true
	}
	if changed {
		pruneInstructionsWithNoDef(fn, id)
	}
	return changed
}

// pruneInstructionsWithNoDef removes instructions whose destination was
// folded away by ReplaceAllUses (it deletes the ValueId from
// DefinedValues but leaves the now-redundant instruction in place).
func pruneInstructionsWithNoDef(fn *Function, id BlockId) {
	block := fn.Blocks[id]
	kept := block.Instructions[:0]
	for _, instr := range block.Instructions {
		if dest, ok := instr.Destination(); ok {
			if !fn.DefinedValues[dest] && instr.IsPure() {
				continue
			}
		}
		kept = append(kept, instr)
	}
	block.Instructions = kept
}
