package mir

import "strconv"

// SROA simplifies chains of value-aggregate construction and access:
// extracting an element/field out of a MakeTuple/MakeStruct resolves
// directly to the constructing element, and extracting through an
// InsertTuple/InsertField resolves to the new value (if the accessed
// index/field was the one just replaced) or forwards to the underlying
// aggregate otherwise. Unlike Mem2Reg this never touches memory — it
// operates purely on the value-based aggregate instructions Lowering
// emits for tuples and structs. Runs to a local fixpoint so that chains
// of several Insert/Extract pairs collapse in one pass.
//
// When an Extract's operand resolves to a Phi (an aggregate merged
// across a branch), SROA decomposes that phi into a per-field phi for
// the demanded field only, sourced by a per-predecessor Extract against each
// incoming value. The per-field phi is cached per (phi, field) so
// repeated extracts of the same field against the same phi share one
// decomposition. Once every extract against the original aggregate phi
// has been rewired this way, the phi itself becomes dead and is removed
// by DeadCodeElimination — SROA does not need its own escape analysis
// to get that effect for the non-escaping case; a field that does
// escape (read as the whole aggregate, e.g. passed to Call/Return/
// Store) simply never triggers decomposition for that use, and the
// original phi survives to serve it.
type SROA struct{}

func (*SROA) Name() string        { return "SROA" }
func (*SROA) Description() string { return "resolves aggregate extracts against their constructing value" }

// fieldPhiKey identifies one already-materialized per-field phi,
// keyed by the aggregate phi it was decomposed from plus the demanded
// field ("t<index>" for a tuple element, "f<name>" for a struct field —
// a phi is never both, so the prefix only guards against accidental
// string collisions).
type fieldPhiKey struct {
	phi   ValueId
	field string
}

func (p *SROA) Run(fn *Function) bool {
	changed := false
	fieldPhis := map[fieldPhiKey]ValueId{}
	for {
		defInstr, defBlock := indexDefinitionsAndBlocks(fn)

		// Phase 1: materialize any not-yet-decomposed phi-aggregate
		// field demanded by some Extract in the function. This only
		// appends new instructions (a new per-field phi, a new
		// per-predecessor Extract in each of that phi's predecessors)
		// and never rewrites an existing one, so it is safe to run
		// before the in-place resolution phase below touches indices.
		roundChanged := p.decomposeDemandedPhis(fn, defInstr, defBlock, fieldPhis)

		for _, id := range fn.BlockOrder() {
			block := fn.Blocks[id]
			for idx, instr := range block.Instructions {
				if repl, ok := p.simplify(instr, defInstr, fieldPhis); ok {
					block.Instructions[idx] = repl
					roundChanged = true
				}
			}
		}
		if !roundChanged {
			break
		}
		changed = true
	}
	return changed
}

func indexDefinitionsAndBlocks(fn *Function) (map[ValueId]Instruction, map[ValueId]BlockId) {
	instrs := make(map[ValueId]Instruction)
	blocks := make(map[ValueId]BlockId)
	for _, id := range fn.BlockOrder() {
		for _, instr := range fn.Blocks[id].Instructions {
			if dest, ok := instr.Destination(); ok {
				instrs[dest] = instr
				blocks[dest] = id
			}
		}
	}
	return instrs, blocks
}

func phiByDest(block *BasicBlock, dest ValueId) *Phi {
	for _, ph := range block.Phis() {
		if ph.Dest == dest {
			return ph
		}
	}
	return nil
}

// decomposeDemandedPhis scans every Extract in fn; for each one whose
// operand is defined by a Phi and whose (phi, field) pair has not yet
// been decomposed, it creates the per-field phi and records it in
// fieldPhis. Returns whether anything new was created.
func (p *SROA) decomposeDemandedPhis(fn *Function, defInstr map[ValueId]Instruction, defBlock map[ValueId]BlockId, fieldPhis map[fieldPhiKey]ValueId) bool {
	created := false
	for _, id := range fn.BlockOrder() {
		for _, instr := range fn.Blocks[id].Instructions {
			switch in := instr.(type) {
			case *ExtractTupleElement:
				if !in.Src.IsOperand() {
					continue
				}
				prod, ok := defInstr[in.Src.Operand()].(*Phi)
				if !ok {
					continue
				}
				key := fieldPhiKey{phi: prod.Dest, field: "t" + strconv.Itoa(in.Index)}
				if _, exists := fieldPhis[key]; exists {
					continue
				}
				fieldPhis[key] = p.decomposeTuplePhi(fn, prod, defBlock[prod.Dest], in.Index, in.Ty)
				created = true

			case *ExtractStructField:
				if !in.Src.IsOperand() {
					continue
				}
				prod, ok := defInstr[in.Src.Operand()].(*Phi)
				if !ok {
					continue
				}
				key := fieldPhiKey{phi: prod.Dest, field: "f" + in.Field}
				if _, exists := fieldPhis[key]; exists {
					continue
				}
				fieldPhis[key] = p.decomposeStructPhi(fn, prod, defBlock[prod.Dest], in.Field, in.Ty)
				created = true
			}
		}
	}
	return created
}

// decomposeTuplePhi builds a new phi, in the same block as prod, whose
// sources are the demanded element extracted from each of prod's own
// sources in their originating predecessor block.
func (p *SROA) decomposeTuplePhi(fn *Function, prod *Phi, block BlockId, index int, ty MirType) ValueId {
	dest := fn.NewPhi(block, ty)
	newPhi := phiByDest(fn.Blocks[block], dest)
	sources := make([]PhiSource, 0, len(prod.Sources))
	for _, src := range prod.Sources {
		extracted := fn.NewValue(ty)
		fn.Blocks[src.Pred].Push(&ExtractTupleElement{Dest: extracted, Src: src.Value, Index: index, Ty: ty})
		sources = append(sources, PhiSource{Pred: src.Pred, Value: OperandValue(extracted)})
	}
	newPhi.Sources = sources
	return dest
}

// decomposeStructPhi is decomposeTuplePhi's struct-field counterpart.
func (p *SROA) decomposeStructPhi(fn *Function, prod *Phi, block BlockId, field string, ty MirType) ValueId {
	dest := fn.NewPhi(block, ty)
	newPhi := phiByDest(fn.Blocks[block], dest)
	sources := make([]PhiSource, 0, len(prod.Sources))
	for _, src := range prod.Sources {
		extracted := fn.NewValue(ty)
		fn.Blocks[src.Pred].Push(&ExtractStructField{Dest: extracted, Src: src.Value, Field: field, Ty: ty})
		sources = append(sources, PhiSource{Pred: src.Pred, Value: OperandValue(extracted)})
	}
	newPhi.Sources = sources
	return dest
}

func (p *SROA) simplify(instr Instruction, defInstr map[ValueId]Instruction, fieldPhis map[fieldPhiKey]ValueId) (Instruction, bool) {
	switch in := instr.(type) {
	case *ExtractTupleElement:
		return p.simplifyExtractTuple(in, defInstr, fieldPhis)
	case *ExtractStructField:
		return p.simplifyExtractField(in, defInstr, fieldPhis)
	}
	return nil, false
}

func (p *SROA) simplifyExtractTuple(in *ExtractTupleElement, defInstr map[ValueId]Instruction, fieldPhis map[fieldPhiKey]ValueId) (Instruction, bool) {
	if !in.Src.IsOperand() {
		return nil, false
	}
	producer, ok := defInstr[in.Src.Operand()]
	if !ok {
		return nil, false
	}
	switch prod := producer.(type) {
	case *MakeTuple:
		if in.Index < 0 || in.Index >= len(prod.Elems) {
			return nil, false
		}
		return asAssign(in.Dest, prod.Elems[in.Index], in.Ty), true
	case *InsertTuple:
		if in.Index == prod.Index {
			return asAssign(in.Dest, prod.New, in.Ty), true
		}
		return &ExtractTupleElement{Dest: in.Dest, Src: prod.Src, Index: in.Index, Ty: in.Ty}, true
	case *Phi:
		key := fieldPhiKey{phi: prod.Dest, field: "t" + strconv.Itoa(in.Index)}
		fieldDest, ok := fieldPhis[key]
		if !ok {
			return nil, false
		}
		return asAssign(in.Dest, OperandValue(fieldDest), in.Ty), true
	}
	return nil, false
}

func (p *SROA) simplifyExtractField(in *ExtractStructField, defInstr map[ValueId]Instruction, fieldPhis map[fieldPhiKey]ValueId) (Instruction, bool) {
	if !in.Src.IsOperand() {
		return nil, false
	}
	producer, ok := defInstr[in.Src.Operand()]
	if !ok {
		return nil, false
	}
	switch prod := producer.(type) {
	case *MakeStruct:
		for _, f := range prod.Fields {
			if f.Name == in.Field {
				return asAssign(in.Dest, f.Value, in.Ty), true
			}
		}
		return nil, false
	case *InsertField:
		if in.Field == prod.Field {
			return asAssign(in.Dest, prod.New, in.Ty), true
		}
		return &ExtractStructField{Dest: in.Dest, Src: prod.Src, Field: in.Field, Ty: in.Ty}, true
	case *Phi:
		key := fieldPhiKey{phi: prod.Dest, field: "f" + in.Field}
		fieldDest, ok := fieldPhis[key]
		if !ok {
			return nil, false
		}
		return asAssign(in.Dest, OperandValue(fieldDest), in.Ty), true
	}
	return nil, false
}
