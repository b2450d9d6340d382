package mir

// Mem2Reg promotes scalar FrameAlloc slots whose address never escapes
// (only ever used as the Ptr operand of a Load or Store) into direct SSA
// values, using the same Braun-Buchwald-Hack write/read/seal machinery
// as Lowering. Array allocations are never promoted — the memory
// path is their only representation in this MIR (GetElementPtr's Offset
// is a static slot count, so array elements have no SSA identity of
// their own).
//
// Since Mem2Reg runs over an already-complete CFG (unlike Lowering,
// which builds the CFG incrementally), sealing order can't simply follow
// creation order: a loop header must stay unsealed until every
// predecessor, including its back edge, has been visited. This pass
// computes that directly by counting down each block's remaining
// unvisited predecessors during a reverse-postorder walk, sealing a
// block exactly when that count reaches zero.
type Mem2Reg struct{}

func (*Mem2Reg) Name() string        { return "Mem2Reg" }
func (*Mem2Reg) Description() string { return "promotes non-escaping scalar stack slots to SSA values" }

func (p *Mem2Reg) Run(fn *Function) bool {
	slots := promotableSlots(fn)
	if len(slots) == 0 {
		return false
	}

	defOf := make(map[ValueId]DefinitionId, len(slots))
	for _, slot := range slots {
		defOf[slot] = DefinitionId(-1 - int(slot))
	}

	order := reversePostorder(fn)
	builder := NewSSABuilder(fn)

	remaining := make(map[BlockId]int, len(fn.Blocks))
	for id, block := range fn.Blocks {
		remaining[id] = len(block.Preds)
	}
	for id, n := range remaining {
		if n == 0 {
			builder.SealBlock(id)
		}
	}

	removeInstr := make(map[Instruction]bool)

	for _, id := range order {
		block := fn.Blocks[id]
		for _, instr := range block.Instructions {
			switch in := instr.(type) {
			case *FrameAlloc:
				if _, ok := defOf[in.Dest]; ok {
					removeInstr[instr] = true
				}
			case *Store:
				if !in.Ptr.IsOperand() {
					continue
				}
				def, ok := defOf[in.Ptr.Operand()]
				if !ok {
					continue
				}
				val := materializeValue(fn, block, in)
				builder.WriteVariable(def, id, val)
				removeInstr[instr] = true
			case *Load:
				if !in.Ptr.IsOperand() {
					continue
				}
				def, ok := defOf[in.Ptr.Operand()]
				if !ok {
					continue
				}
				val := builder.ReadVariable(def, id)
				fn.ReplaceAllUses(in.Dest, val)
				removeInstr[instr] = true
			}
		}
		for _, succ := range block.Succs {
			remaining[succ]--
			if remaining[succ] == 0 {
				builder.SealBlock(succ)
			}
		}
	}

	for id := range remaining {
		if !builder.IsSealed(id) {
			builder.SealBlock(id)
		}
	}

	for _, id := range fn.BlockOrder() {
		block := fn.Blocks[id]
		kept := block.Instructions[:0]
		for _, instr := range block.Instructions {
			if removeInstr[instr] {
				continue
			}
			kept = append(kept, instr)
		}
		block.Instructions = kept
	}

	return true
}

// materializeValue returns a ValueId carrying store's value: the operand
// id directly if it is already one, otherwise a fresh Assign that binds
// the literal and takes the Store's place in block.
func materializeValue(fn *Function, block *BasicBlock, store *Store) ValueId {
	if store.Value.IsOperand() {
		return store.Value.Operand()
	}
	dest := fn.NewValue(store.Ty)
	for idx, in := range block.Instructions {
		if in == store {
			block.Instructions[idx] = &Assign{Dest: dest, Src: store.Value, Ty: store.Ty}
			break
		}
	}
	return dest
}

// promotableSlots finds every FrameAlloc of a non-array type whose
// address is used only as the Ptr operand of a Load or Store, never
// passed to GetElementPtr, a Call, Debug, or returned.
func promotableSlots(fn *Function) []ValueId {
	candidates := make(map[ValueId]bool)
	for _, id := range fn.BlockOrder() {
		for _, instr := range fn.Blocks[id].Instructions {
			alloc, ok := instr.(*FrameAlloc)
			if !ok {
				continue
			}
			if _, isArray := alloc.Ty.(ArrayType); isArray {
				continue
			}
			candidates[alloc.Dest] = true
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	escaped := make(map[ValueId]bool)
	for _, id := range fn.BlockOrder() {
		block := fn.Blocks[id]
		for _, instr := range block.Instructions {
			switch in := instr.(type) {
			case *Load:
				markEscapesExcept(in.UsedValues(), []Value{in.Ptr}, candidates, escaped)
			case *Store:
				markEscapesExcept(in.UsedValues(), []Value{in.Ptr}, candidates, escaped)
			default:
				markEscapesExcept(instr.UsedValues(), nil, candidates, escaped)
			}
		}
		if block.Terminator != nil {
			markEscapesExcept(block.Terminator.UsedValues(), nil, candidates, escaped)
		}
	}
	for _, r := range fn.ReturnValues {
		if candidates[r] {
			escaped[r] = true
		}
	}

	var slots []ValueId
	for id := range candidates {
		if !escaped[id] {
			slots = append(slots, id)
		}
	}
	return slots
}

func markEscapesExcept(used []Value, allowed []Value, candidates, escaped map[ValueId]bool) {
	for _, v := range used {
		if !v.IsOperand() || !candidates[v.Operand()] {
			continue
		}
		if containsValue(allowed, v) {
			continue
		}
		escaped[v.Operand()] = true
	}
}

func containsValue(vs []Value, target Value) bool {
	for _, v := range vs {
		if v.IsOperand() && target.IsOperand() && v.Operand() == target.Operand() {
			return true
		}
	}
	return false
}

// reversePostorder walks fn's CFG from its entry block via Succs,
// returning block ids in reverse-postorder. Blocks unreachable from the
// entry are appended afterward in BlockOrder so they are still visited
// (DeadCodeElimination is responsible for discarding them).
func reversePostorder(fn *Function) []BlockId {
	visited := make(map[BlockId]bool)
	var post []BlockId

	var visit func(id BlockId)
	visit = func(id BlockId) {
		if visited[id] {
			return
		}
		visited[id] = true
		block := fn.Blocks[id]
		if block == nil {
			return
		}
		for _, succ := range block.Succs {
			visit(succ)
		}
		post = append(post, id)
	}
	visit(fn.EntryBlock)

	order := make([]BlockId, 0, len(post))
	for i := len(post) - 1; i >= 0; i-- {
		order = append(order, post[i])
	}
	for _, id := range fn.BlockOrder() {
		if !visited[id] {
			order = append(order, id)
		}
	}
	return order
}
