package mir

// CopyPropagation replaces every use of a copy's destination with its
// source and deletes the copy: an Assign whose source is itself an SSA
// operand (not a literal materialization) of the same type is a pure
// rename and can always be eliminated this way, since
// single-assignment form guarantees the source dominates every use the
// destination could reach.
type CopyPropagation struct{}

func (*CopyPropagation) Name() string        { return "CopyPropagation" }
func (*CopyPropagation) Description() string { return "replaces copy destinations with their source operand" }

func (p *CopyPropagation) Run(fn *Function) bool {
	changed := false
	for {
		blockID, copyInstr, dest, src, ok := findCopy(fn)
		if !ok {
			break
		}
		fn.ReplaceAllUses(dest, src)
		fn.RemoveInstruction(blockID, copyInstr)
		changed = true
	}
	return changed
}

// findCopy locates one Assign{dest, Operand(src)} where src and dest
// share a type, i.e. a renaming copy rather than a literal materialization
// or a narrowing/widening cast masquerading as Assign.
func findCopy(fn *Function) (BlockId, Instruction, ValueId, ValueId, bool) {
	for _, id := range fn.BlockOrder() {
		for _, instr := range fn.Blocks[id].Instructions {
			a, ok := instr.(*Assign)
			if !ok || !a.Src.IsOperand() {
				continue
			}
			srcId := a.Src.Operand()
			destTy, destOk := fn.TypeOf(a.Dest)
			srcTy, srcOk := fn.TypeOf(srcId)
			if !destOk || !srcOk || !TypesEqual(destTy, srcTy) {
				continue
			}
			return id, instr, a.Dest, srcId, true
		}
	}
	return 0, nil, 0, 0, false
}
