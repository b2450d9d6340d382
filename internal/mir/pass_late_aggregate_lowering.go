package mir

// LateAggregateLowering converts value-based aggregate construction and
// access back into FrameAlloc+Store+GetElementPtr+Load sequences, for a
// backend that declared (via BackendInfo, or PipelineConfig's
// ForceLateAggregateLowering override) that it cannot consume
// MakeTuple/MakeStruct/Extract*/Insert* directly. It is never part of
// StandardPipeline: RunBackendStage applies it when
// NeedsLateAggregateLowering reports true, and lowering.Compile applies
// it to every function before the standard pipeline when
// PipelineConfig.AggregateMIR is off.
//
// Each aggregate value gets exactly one stack slot, allocated the first
// time any instruction touching it is rewritten. MakeTuple/MakeStruct
// become a slot allocation followed by one Store per element/field.
// Extract* become a GetElementPtr+Load pair. Insert* become a fresh
// slot, a bulk copy of the old slot's contents, then a single
// overwriting Store — functional-update semantics preserved through
// memory rather than through value rebinding.
type LateAggregateLowering struct{}

func (*LateAggregateLowering) Name() string { return "LateAggregateLowering" }
func (*LateAggregateLowering) Description() string {
	return "rewrites value-based aggregates into FrameAlloc/Store/GEP/Load sequences"
}

func (p *LateAggregateLowering) Run(fn *Function) bool {
	changed := false
	slots := make(map[ValueId]ValueId) // aggregate value -> its backing FrameAlloc pointer

	for _, id := range fn.BlockOrder() {
		block := fn.Blocks[id]
		var out []Instruction
		for _, instr := range block.Instructions {
			rewritten := p.lower(fn, block, &out, instr, slots)
			if rewritten {
				changed = true
				continue
			}
			out = append(out, instr)
		}
		block.Instructions = out
	}
	return changed
}

// lower appends the memory-based replacement for instr to out and
// reports true if a rewrite happened; the original instr is dropped in
// that case.
func (p *LateAggregateLowering) lower(fn *Function, block *BasicBlock, out *[]Instruction, instr Instruction, slots map[ValueId]ValueId) bool {
	switch in := instr.(type) {
	case *MakeTuple:
		ptr := p.allocSlot(fn, out, in.Ty)
		slots[in.Dest] = ptr
		offset := 0
		for i, elem := range in.Elems {
			elemTy := in.Ty.Elems[i]
			ep := fn.NewValue(PointerType{Elem: elemTy})
			*out = append(*out, &GetElementPtr{Dest: ep, Base: OperandValue(ptr), Offset: offset, Ty: elemTy})
			*out = append(*out, &Store{Ptr: OperandValue(ep), Value: elem, Ty: elemTy})
			offset += elemTy.Slots()
		}
		*out = append(*out, &Load{Dest: in.Dest, Ptr: OperandValue(ptr), Ty: in.Ty})
		return true

	case *MakeStruct:
		ptr := p.allocSlot(fn, out, in.Ty)
		slots[in.Dest] = ptr
		offset := 0
		for _, f := range in.Fields {
			fieldTy, _ := in.Ty.FieldType(f.Name)
			ep := fn.NewValue(PointerType{Elem: fieldTy})
			*out = append(*out, &GetElementPtr{Dest: ep, Base: OperandValue(ptr), Offset: offset, Ty: fieldTy})
			*out = append(*out, &Store{Ptr: OperandValue(ep), Value: f.Value, Ty: fieldTy})
			offset += fieldTy.Slots()
		}
		*out = append(*out, &Load{Dest: in.Dest, Ptr: OperandValue(ptr), Ty: in.Ty})
		return true

	case *ExtractTupleElement:
		ptr, ok2 := p.slotFor(fn, out, in.Src, slots)
		if !ok2 {
			return false
		}
		offset, ok3 := tupleOffset(in.Src, in.Index, fn)
		if !ok3 {
			return false
		}
		ep := fn.NewValue(PointerType{Elem: in.Ty})
		*out = append(*out, &GetElementPtr{Dest: ep, Base: OperandValue(ptr), Offset: offset, Ty: in.Ty})
		*out = append(*out, &Load{Dest: in.Dest, Ptr: OperandValue(ep), Ty: in.Ty})
		return true

	case *ExtractStructField:
		ptr, ok := p.slotFor(fn, out, in.Src, slots)
		if !ok {
			return false
		}
		offset, ok2 := structFieldOffset(in.Src, in.Field, fn)
		if !ok2 {
			return false
		}
		ep := fn.NewValue(PointerType{Elem: in.Ty})
		*out = append(*out, &GetElementPtr{Dest: ep, Base: OperandValue(ptr), Offset: offset, Ty: in.Ty})
		*out = append(*out, &Load{Dest: in.Dest, Ptr: OperandValue(ep), Ty: in.Ty})
		return true

	case *InsertTuple:
		srcPtr, ok := p.slotFor(fn, out, in.Src, slots)
		if !ok {
			return false
		}
		newPtr := p.allocSlot(fn, out, in.Ty)
		slots[in.Dest] = newPtr
		p.copySlot(fn, out, srcPtr, newPtr, in.Ty)
		offset, ok2 := tupleOffset(in.Src, in.Index, fn)
		if !ok2 {
			return false
		}
		elemTy := in.Ty.Elems[in.Index]
		ep := fn.NewValue(PointerType{Elem: elemTy})
		*out = append(*out, &GetElementPtr{Dest: ep, Base: OperandValue(newPtr), Offset: offset, Ty: elemTy})
		*out = append(*out, &Store{Ptr: OperandValue(ep), Value: in.New, Ty: elemTy})
		*out = append(*out, &Load{Dest: in.Dest, Ptr: OperandValue(newPtr), Ty: in.Ty})
		return true

	case *InsertField:
		srcPtr, ok := p.slotFor(fn, out, in.Src, slots)
		if !ok {
			return false
		}
		newPtr := p.allocSlot(fn, out, in.Ty)
		slots[in.Dest] = newPtr
		p.copySlot(fn, out, srcPtr, newPtr, in.Ty)
		offset, ok2 := structFieldOffset(in.Src, in.Field, fn)
		if !ok2 {
			return false
		}
		fieldTy, _ := in.Ty.FieldType(in.Field)
		ep := fn.NewValue(PointerType{Elem: fieldTy})
		*out = append(*out, &GetElementPtr{Dest: ep, Base: OperandValue(newPtr), Offset: offset, Ty: fieldTy})
		*out = append(*out, &Store{Ptr: OperandValue(ep), Value: in.New, Ty: fieldTy})
		*out = append(*out, &Load{Dest: in.Dest, Ptr: OperandValue(newPtr), Ty: in.Ty})
		return true
	}
	return false
}

func (p *LateAggregateLowering) allocSlot(fn *Function, out *[]Instruction, ty MirType) ValueId {
	ptr := fn.NewValue(PointerType{Elem: ty})
	*out = append(*out, &FrameAlloc{Dest: ptr, Ty: ty})
	return ptr
}

// slotFor returns the backing pointer for an already-lowered aggregate
// value. Aggregates this pass has not yet seen (e.g. a function
// parameter) are left alone — the rewrite only applies to aggregates it
// itself constructed.
func (p *LateAggregateLowering) slotFor(fn *Function, out *[]Instruction, v Value, slots map[ValueId]ValueId) (ValueId, bool) {
	if !v.IsOperand() {
		return 0, false
	}
	ptr, ok := slots[v.Operand()]
	return ptr, ok
}

// copySlot emits one Load+Store pair per slot position, bulk-copying an
// aggregate's backing memory from src to dst ahead of a functional
// update's single overwriting Store.
func (p *LateAggregateLowering) copySlot(fn *Function, out *[]Instruction, src, dst ValueId, ty MirType) {
	offset := 0
	for _, slotTy := range slotTypes(ty) {
		srcEp := fn.NewValue(PointerType{Elem: slotTy})
		dstEp := fn.NewValue(PointerType{Elem: slotTy})
		tmp := fn.NewValue(slotTy)
		*out = append(*out, &GetElementPtr{Dest: srcEp, Base: OperandValue(src), Offset: offset, Ty: slotTy})
		*out = append(*out, &Load{Dest: tmp, Ptr: OperandValue(srcEp), Ty: slotTy})
		*out = append(*out, &GetElementPtr{Dest: dstEp, Base: OperandValue(dst), Offset: offset, Ty: slotTy})
		*out = append(*out, &Store{Ptr: OperandValue(dstEp), Value: OperandValue(tmp), Ty: slotTy})
		offset += slotTy.Slots()
	}
}

// slotTypes flattens an aggregate type into its leaf scalar slots, in
// layout order, matching how Slots() concatenates fields.
func slotTypes(ty MirType) []MirType {
	switch t := ty.(type) {
	case TupleType:
		var out []MirType
		for _, e := range t.Elems {
			out = append(out, slotTypes(e)...)
		}
		return out
	case StructType:
		var out []MirType
		for _, f := range t.Fields {
			out = append(out, slotTypes(f.Type)...)
		}
		return out
	default:
		return []MirType{ty}
	}
}

func tupleOffset(v Value, index int, fn *Function) (int, bool) {
	ty, ok := operandType(v, fn)
	if !ok {
		return 0, false
	}
	tup, ok := ty.(TupleType)
	if !ok || index < 0 || index >= len(tup.Elems) {
		return 0, false
	}
	offset := 0
	for i := 0; i < index; i++ {
		offset += tup.Elems[i].Slots()
	}
	return offset, true
}

func structFieldOffset(v Value, field string, fn *Function) (int, bool) {
	ty, ok := operandType(v, fn)
	if !ok {
		return 0, false
	}
	st, ok := ty.(StructType)
	if !ok {
		return 0, false
	}
	offset := 0
	for _, f := range st.Fields {
		if f.Name == field {
			return offset, true
		}
		offset += f.Type.Slots()
	}
	return 0, false
}

func operandType(v Value, fn *Function) (MirType, bool) {
	if v.IsLiteral() {
		return v.Literal().Type(), true
	}
	if v.IsOperand() {
		return fn.TypeOf(v.Operand())
	}
	return nil, false
}
