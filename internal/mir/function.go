package mir

// Function exclusively owns its blocks, its ValueId -> MirType map, and
// its set of defined values. Passes take *Function and must not retain
// references to it across calls — the value-id counter is per-function.
type Function struct {
	Name          string
	EntryBlock    BlockId
	Blocks        map[BlockId]*BasicBlock
	blockOrder    []BlockId
	Parameters    []ValueId
	ReturnValues  []ValueId
	ValueTypes    map[ValueId]MirType
	DefinedValues map[ValueId]bool

	nextValue ValueId
	nextBlock BlockId

	// Invalid is set by Lowering when construction of this function failed;
	// invalid functions are excluded from the optimization pipeline and
	// from the module's output set, but remain present for diagnostics.
	Invalid bool
}

func NewFunction(name string) *Function {
	return &Function{
		Name:          name,
		Blocks:        make(map[BlockId]*BasicBlock),
		ValueTypes:    make(map[ValueId]MirType),
		DefinedValues: make(map[ValueId]bool),
	}
}

// BlockOrder returns block ids in the order they were created — the
// canonical iteration order used by pretty-printing and passes that need
// deterministic traversal.
func (f *Function) BlockOrder() []BlockId {
	return append([]BlockId(nil), f.blockOrder...)
}

func (f *Function) Block(id BlockId) *BasicBlock { return f.Blocks[id] }

// NewBlock allocates and registers a fresh, empty, unsealed block.
func (f *Function) NewBlock(name string) *BasicBlock {
	id := f.nextBlock
	f.nextBlock++
	b := newBasicBlock(id, name)
	f.Blocks[id] = b
	f.blockOrder = append(f.blockOrder, id)
	return b
}

// NewValue allocates a fresh ValueId of the given type and records it as
// defined by this function.
func (f *Function) NewValue(ty MirType) ValueId {
	id := f.nextValue
	f.nextValue++
	f.ValueTypes[id] = ty
	f.DefinedValues[id] = true
	return id
}

func (f *Function) TypeOf(id ValueId) (MirType, bool) {
	t, ok := f.ValueTypes[id]
	return t, ok
}

// NewPhi allocates a new typed value, inserts an empty phi at the front
// of block, and returns the phi's destination ValueId.
func (f *Function) NewPhi(blockID BlockId, ty MirType) ValueId {
	dest := f.NewValue(ty)
	block := f.Blocks[blockID]
	block.PushPhiFront(&Phi{Dest: dest, Ty: ty})
	return dest
}

// Connect adds succ to pred's successor list and pred to succ's
// predecessor list, if not already present in either direction.
func (f *Function) Connect(predID, succID BlockId) {
	pred, succ := f.Blocks[predID], f.Blocks[succID]
	if pred == nil || succ == nil {
		return
	}
	pred.AddSucc(succID)
	succ.AddPred(predID)
}

// Disconnect removes the edge in both directions.
func (f *Function) Disconnect(predID, succID BlockId) {
	pred, succ := f.Blocks[predID], f.Blocks[succID]
	if pred == nil || succ == nil {
		return
	}
	pred.RemoveSucc(succID)
	succ.RemovePred(predID)
}

func (f *Function) ReplaceEdge(predID, oldSucc, newSucc BlockId) {
	f.Disconnect(predID, oldSucc)
	f.Connect(predID, newSucc)
}

// SetTerminatorWithEdges disconnects the edges implied by the block's
// current terminator (if any), installs newTerm, and connects the edges
// it implies. This is the only sanctioned way to change a terminator —
// callers must never assign block.Terminator directly.
func (f *Function) SetTerminatorWithEdges(blockID BlockId, newTerm Terminator) {
	block := f.Blocks[blockID]
	if block.Terminator != nil {
		for _, t := range block.Terminator.TargetBlocks() {
			f.Disconnect(blockID, t)
		}
	}
	block.Terminator = newTerm
	for _, t := range newTerm.TargetBlocks() {
		f.Connect(blockID, t)
	}
}

// ReplaceAllUses rewrites every occurrence of Operand(from) to Operand(to)
// across every instruction, terminator, parameter, and return value in the
// function; propagates from's type to to when to has none yet; and drops
// from out of the defined-values/type bookkeeping.
func (f *Function) ReplaceAllUses(from, to ValueId) {
	if from == to {
		return
	}
	for _, id := range f.blockOrder {
		block := f.Blocks[id]
		for _, instr := range block.Instructions {
			instr.ReplaceValueUses(from, to)
		}
		if block.Terminator != nil {
			block.Terminator.ReplaceValueUses(from, to)
		}
	}
	for idx, p := range f.Parameters {
		if p == from {
			f.Parameters[idx] = to
		}
	}
	for idx, r := range f.ReturnValues {
		if r == from {
			f.ReturnValues[idx] = to
		}
	}
	if _, hasTo := f.ValueTypes[to]; !hasTo {
		if fromTy, ok := f.ValueTypes[from]; ok {
			f.ValueTypes[to] = fromTy
		}
	}
	delete(f.DefinedValues, from)
	delete(f.ValueTypes, from)
}

// RemoveInstruction deletes instr (compared by identity) from block, if
// present, without disturbing the rest of the block's order. Used by
// CopyPropagation and by the SSA builder's trivial-phi removal.
func (f *Function) RemoveInstruction(blockID BlockId, instr Instruction) {
	block := f.Blocks[blockID]
	for idx, in := range block.Instructions {
		if in == instr {
			block.RemoveInstructionAt(idx)
			return
		}
	}
}

// RemoveBlock deletes a block entirely (used by DCE once a block is proven
// unreachable from the entry). Any dangling predecessor/successor
// bookkeeping left by the caller must already have been cleaned up.
func (f *Function) RemoveBlock(id BlockId) {
	delete(f.Blocks, id)
	for idx, b := range f.blockOrder {
		if b == id {
			f.blockOrder = append(f.blockOrder[:idx], f.blockOrder[idx+1:]...)
			return
		}
	}
}

// UsesMemory reports whether the function contains any memory operation,
// which gates scheduling of Mem2Reg and SROA's memory fallback path.
func (f *Function) UsesMemory() bool {
	for _, id := range f.blockOrder {
		for _, instr := range f.Blocks[id].Instructions {
			switch instr.(type) {
			case *FrameAlloc, *Load, *Store, *GetElementPtr:
				return true
			}
		}
	}
	return false
}

// InstructionCount returns the total instruction count across all blocks,
// used for pass-statistics reporting.
func (f *Function) InstructionCount() int {
	n := 0
	for _, id := range f.blockOrder {
		n += len(f.Blocks[id].Instructions)
	}
	return n
}
