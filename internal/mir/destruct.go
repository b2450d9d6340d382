package mir

// DestructSSA rewrites every phi in fn into parallel-copy-correct
// assignments placed in predecessor blocks. After this runs, fn is no
// longer in SSA form: a former phi's destination may be assigned in
// more than one predecessor block.
func DestructSSA(fn *Function) {
	for _, blockID := range fn.BlockOrder() {
		block := fn.Blocks[blockID]
		phis := block.Phis()
		if len(phis) == 0 {
			continue
		}
		for _, pred := range append([]BlockId(nil), block.Preds...) {
			insertParallelCopy(fn, pred, blockID, phis)
		}
		removePhis(fn, blockID)
	}
}

// insertParallelCopy builds the (dest <- value-from-pred) pairs implied by
// phis for one predecessor edge, splitting the edge first if critical,
// sequences them to respect dependencies, and appends the resulting plain
// assignments to the block that ends up owning the edge.
func insertParallelCopy(fn *Function, pred, succ BlockId, phis []*Phi) {
	copies := make([]parallelCopy, 0, len(phis))
	for _, phi := range phis {
		for _, src := range phi.Sources {
			if src.Pred == pred {
				copies = append(copies, parallelCopy{dest: phi.Dest, src: src.Value, ty: phi.Ty})
			}
		}
	}
	if len(copies) == 0 {
		return
	}

	target := pred
	if isCriticalEdge(fn, pred, succ) {
		target = splitCriticalEdge(fn, pred, succ)
	}

	assigns := sequenceParallelCopy(fn, copies)
	block := fn.Blocks[target]
	// Parallel-copy assignments must run before the terminator, which is
	// already installed; insert them just before it by appending then
	// relying on the block's instruction list (terminator is a separate
	// field, not part of Instructions), so a simple append is correct.
	for _, a := range assigns {
		block.Push(a)
	}
}

// isCriticalEdge reports whether pred has >=2 successors and succ has
// >=2 predecessors — the edge a parallel copy has no unambiguous home
// on until it is split.
func isCriticalEdge(fn *Function, pred, succ BlockId) bool {
	return len(fn.Blocks[pred].Succs) >= 2 && len(fn.Blocks[succ].Preds) >= 2
}

// splitCriticalEdge inserts a fresh block E with Jump(succ), redirects
// pred's terminator to target E instead of succ, and returns E's id.
func splitCriticalEdge(fn *Function, pred, succ BlockId) BlockId {
	e := fn.NewBlock("crit_edge")
	fn.SetTerminatorWithEdges(e.ID, &Jump{Target: succ})

	predBlock := fn.Blocks[pred]
	predBlock.Terminator.ReplaceTarget(succ, e.ID)
	fn.Disconnect(pred, succ)
	fn.Connect(pred, e.ID)
	return e.ID
}

type parallelCopy struct {
	dest ValueId
	src  Value
	ty   MirType
}

// sequenceParallelCopy decomposes a set of copies meant to execute
// simultaneously into a correct sequential order: non-cyclic dependency
// chains are topologically sorted (Kahn's algorithm) and emitted as plain
// assignments; any cycle is broken with exactly one fresh temporary per
// cycle (save the first source, rotate through the cycle, restore from
// the temporary last) so that no source is read after it has already
// been overwritten.
func sequenceParallelCopy(fn *Function, copies []parallelCopy) []Instruction {
	var out []Instruction

	// Run Kahn-style emission repeatedly: a copy is ready once no other
	// still-pending copy needs to read its destination as a source
	// (running it otherwise overwrites a value another copy still needs
	// the old value of); whatever remains once no further progress is
	// possible is a set of cycles, broken below with one temporary per
	// cycle.
	remaining := make(map[ValueId]bool, len(copies))
	for i := range copies {
		remaining[copies[i].dest] = true
	}

	progress := true
	for len(remaining) > 0 && progress {
		progress = false
		for i := range copies {
			cp := &copies[i]
			if !remaining[cp.dest] {
				continue
			}
			// cp is ready only once no other still-pending copy still
			// needs to read cp.dest as its source — running cp first
			// would otherwise overwrite the value that other copy's
			// assignment depends on.
			blocked := false
			for j := range copies {
				if j == i || !remaining[copies[j].dest] {
					continue
				}
				if src := copies[j].src; src.IsOperand() && src.Operand() == cp.dest {
					blocked = true
					break
				}
			}
			if blocked {
				continue
			}
			out = append(out, &Assign{Dest: cp.dest, Src: cp.src, Ty: cp.ty})
			delete(remaining, cp.dest)
			progress = true
		}
	}

	if len(remaining) == 0 {
		return out
	}

	// Whatever is left forms one or more cycles. Break each by rotating
	// through a single fresh temporary.
	cycleCopies := make([]parallelCopy, 0, len(remaining))
	for i := range copies {
		if remaining[copies[i].dest] {
			cycleCopies = append(cycleCopies, copies[i])
		}
	}
	out = append(out, breakCycles(fn, cycleCopies)...)
	return out
}

// breakCycles assumes every copy in cycleCopies is on exactly one simple
// cycle dest_0 <- dest_1 <- ... <- dest_n <- dest_0 (parallel-copy cycles
// from phi elimination are always simple permutation cycles). It emits:
// t = dest_0; dest_0 = src(dest_0); dest_1 = src(dest_1); ...; finally the
// copy that originally read dest_0 is rewritten to read t instead.
func breakCycles(fn *Function, cycleCopies []parallelCopy) []Instruction {
	byDest := make(map[ValueId]parallelCopy, len(cycleCopies))
	for _, c := range cycleCopies {
		byDest[c.dest] = c
	}

	var out []Instruction
	handled := make(map[ValueId]bool)

	for start := range byDest {
		if handled[start] {
			continue
		}
		// Walk the cycle starting at `start`.
		order := []ValueId{start}
		handled[start] = true
		cur := byDest[start]
		for cur.src.IsOperand() {
			next := cur.src.Operand()
			if next == start {
				break
			}
			nc, ok := byDest[next]
			if !ok {
				break
			}
			order = append(order, next)
			handled[next] = true
			cur = nc
		}
		if len(order) == 1 {
			// Not actually cyclic (shouldn't happen given how we got
			// here, but fall back to a direct assignment defensively).
			c := byDest[start]
			out = append(out, &Assign{Dest: c.dest, Src: c.src, Ty: c.ty})
			continue
		}

		tmp := fn.NewValue(byDest[start].ty)
		out = append(out, &Assign{Dest: tmp, Src: OperandValue(start), Ty: byDest[start].ty})
		for i := 0; i < len(order)-1; i++ {
			dest := order[i]
			srcDest := order[i+1]
			out = append(out, &Assign{Dest: dest, Src: OperandValue(srcDest), Ty: byDest[dest].ty})
		}
		last := order[len(order)-1]
		out = append(out, &Assign{Dest: last, Src: OperandValue(tmp), Ty: byDest[last].ty})
	}
	return out
}

func removePhis(fn *Function, blockID BlockId) {
	block := fn.Blocks[blockID]
	_, end := block.PhiRange()
	block.Instructions = block.Instructions[end:]
}
