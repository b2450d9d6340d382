package mir

import "strconv"

// PureKey identifies a pure expression by operation + typed operand ids +
// result type, used both by Lowering's local value-numbering table and
// by the LocalCSE pass to recognize syntactically identical pure
// computations.
type PureKey struct {
	Op     string
	Args   [3]Value // up to 3 operands is enough for every pure instruction kind
	NArgs  int
	Result string // MirType.String()
	Extra  string // discriminator for index/field/name where relevant
}

func keyOf(op string, ty MirType, extra string, args ...Value) PureKey {
	var a [3]Value
	n := copy(a[:], args)
	return PureKey{Op: op, Args: a, NArgs: n, Result: ty.String(), Extra: extra}
}

// pureKeyOf computes the PureKey for an instruction if it is eligible for
// local value numbering (pure and non-aggregating over an unbounded
// operand list). Call/Load/Store and multi-destination instructions are
// never keyed.
func pureKeyOf(instr Instruction) (PureKey, bool) {
	switch in := instr.(type) {
	case *Binary:
		return keyOf("bin:"+in.Op.String(), in.Ty, "", in.L, in.R), true
	case *Unary:
		return keyOf("un:"+in.Op.String(), in.Ty, "", in.Src), true
	case *ExtractTupleElement:
		return keyOf("extracttuple", in.Ty, strconv.Itoa(in.Index), in.Src), true
	case *ExtractStructField:
		return keyOf("extractfield", in.Ty, in.Field, in.Src), true
	case *Cast:
		return keyOf("cast:"+in.To.String(), in.To, in.From.String(), in.Src), true
	case *GetElementPtr:
		return keyOf("gep", in.Ty, strconv.Itoa(in.Offset), in.Base), true
	default:
		return PureKey{}, false
	}
}

// LocalValueTable memoizes pure instructions within a single block. The
// InstrBuilder's Binary, Unary, ExtractTupleElement and ExtractStructField
// methods consult it and return the existing ValueId for a repeated
// PureKey instead of emitting a duplicate; GetElementPtr and Cast are
// emitted without a lookup, so duplicates of those are left for LocalCSE.
// The table is cleared on every block transition; there is no cross-block
// memoization during lowering.
type LocalValueTable struct {
	table map[PureKey]ValueId
}

func NewLocalValueTable() *LocalValueTable {
	return &LocalValueTable{table: make(map[PureKey]ValueId)}
}

func (t *LocalValueTable) Clear() { t.table = make(map[PureKey]ValueId) }

func (t *LocalValueTable) Lookup(key PureKey) (ValueId, bool) {
	id, ok := t.table[key]
	return id, ok
}

func (t *LocalValueTable) Record(key PureKey, id ValueId) {
	t.table[key] = id
}

// InstrBuilder appends typed instructions to the CFG builder's current
// block. It follows the method()/method_to()/method_with() convention:
// a plain method allocates its own destination, a "To" variant uses a
// caller-supplied destination, and With... attaches a comment.
type InstrBuilder struct {
	CFG    *CFGBuilder
	Values *LocalValueTable
}

func NewInstrBuilder(cfg *CFGBuilder) *InstrBuilder {
	return &InstrBuilder{CFG: cfg, Values: NewLocalValueTable()}
}

// ResetValueNumbering clears the local value table; call when moving the
// CFG builder's cursor to a new block.
func (b *InstrBuilder) ResetValueNumbering() { b.Values.Clear() }

func (b *InstrBuilder) emit(instr Instruction) {
	b.CFG.Fn.Blocks[b.CFG.CurrentBlock].Push(instr)
}

func (b *InstrBuilder) Binary(op BinaryOp, l, r Value, ty MirType) Value {
	key := keyOf("bin:"+op.String(), ty, "", l, r)
	if id, ok := b.Values.Lookup(key); ok {
		return OperandValue(id)
	}
	dest := b.CFG.Fn.NewValue(ty)
	b.emit(&Binary{Dest: dest, Op: op, L: l, R: r, Ty: ty})
	b.Values.Record(key, dest)
	return OperandValue(dest)
}

func (b *InstrBuilder) Unary(op UnaryOp, src Value, ty MirType) Value {
	key := keyOf("un:"+op.String(), ty, "", src)
	if id, ok := b.Values.Lookup(key); ok {
		return OperandValue(id)
	}
	dest := b.CFG.Fn.NewValue(ty)
	b.emit(&Unary{Dest: dest, Op: op, Src: src, Ty: ty})
	b.Values.Record(key, dest)
	return OperandValue(dest)
}

func (b *InstrBuilder) Assign(src Value, ty MirType) Value {
	dest := b.CFG.Fn.NewValue(ty)
	b.emit(&Assign{Dest: dest, Src: src, Ty: ty})
	return OperandValue(dest)
}

func (b *InstrBuilder) AssignTo(dest ValueId, src Value, ty MirType) {
	b.emit(&Assign{Dest: dest, Src: src, Ty: ty})
}

func (b *InstrBuilder) MakeTuple(elems []Value, ty TupleType) Value {
	dest := b.CFG.Fn.NewValue(ty)
	b.emit(&MakeTuple{Dest: dest, Elems: elems, Ty: ty})
	return OperandValue(dest)
}

func (b *InstrBuilder) MakeStruct(fields []FieldInit, ty StructType) Value {
	dest := b.CFG.Fn.NewValue(ty)
	b.emit(&MakeStruct{Dest: dest, Fields: fields, Ty: ty})
	return OperandValue(dest)
}

func (b *InstrBuilder) ExtractTupleElement(src Value, index int, ty MirType) Value {
	key := keyOf("extracttuple", ty, strconv.Itoa(index), src)
	if id, ok := b.Values.Lookup(key); ok {
		return OperandValue(id)
	}
	dest := b.CFG.Fn.NewValue(ty)
	b.emit(&ExtractTupleElement{Dest: dest, Src: src, Index: index, Ty: ty})
	b.Values.Record(key, dest)
	return OperandValue(dest)
}

func (b *InstrBuilder) ExtractStructField(src Value, field string, ty MirType) Value {
	key := keyOf("extractfield", ty, field, src)
	if id, ok := b.Values.Lookup(key); ok {
		return OperandValue(id)
	}
	dest := b.CFG.Fn.NewValue(ty)
	b.emit(&ExtractStructField{Dest: dest, Src: src, Field: field, Ty: ty})
	b.Values.Record(key, dest)
	return OperandValue(dest)
}

func (b *InstrBuilder) InsertTuple(src Value, index int, newVal Value, ty TupleType) Value {
	dest := b.CFG.Fn.NewValue(ty)
	b.emit(&InsertTuple{Dest: dest, Src: src, Index: index, New: newVal, Ty: ty})
	return OperandValue(dest)
}

func (b *InstrBuilder) InsertField(src Value, field string, newVal Value, ty StructType) Value {
	dest := b.CFG.Fn.NewValue(ty)
	b.emit(&InsertField{Dest: dest, Src: src, Field: field, New: newVal, Ty: ty})
	return OperandValue(dest)
}

// Call emits a call with n destinations (n == len(sig.Returns)), returning
// the destination ValueIds in order.
func (b *InstrBuilder) Call(callee string, args []Value, sig FunctionType) []ValueId {
	dests := make([]ValueId, len(sig.Returns))
	for i, rty := range sig.Returns {
		dests[i] = b.CFG.Fn.NewValue(rty)
	}
	b.emit(&Call{Dests: dests, Callee: callee, Args: args, Signature: sig})
	return dests
}

func (b *InstrBuilder) FrameAlloc(ty MirType) Value {
	dest := b.CFG.Fn.NewValue(PointerType{Elem: ty})
	b.emit(&FrameAlloc{Dest: dest, Ty: ty})
	return OperandValue(dest)
}

func (b *InstrBuilder) Load(ptr Value, ty MirType) Value {
	dest := b.CFG.Fn.NewValue(ty)
	b.emit(&Load{Dest: dest, Ptr: ptr, Ty: ty})
	return OperandValue(dest)
}

// Store never defines a value.
func (b *InstrBuilder) Store(ptr, value Value, ty MirType) {
	b.emit(&Store{Ptr: ptr, Value: value, Ty: ty})
}

func (b *InstrBuilder) GetElementPtr(base Value, offset int, ty MirType) Value {
	dest := b.CFG.Fn.NewValue(PointerType{Elem: ty})
	b.emit(&GetElementPtr{Dest: dest, Base: base, Offset: offset, Ty: ty})
	return OperandValue(dest)
}

func (b *InstrBuilder) Cast(src Value, from, to MirType) Value {
	dest := b.CFG.Fn.NewValue(to)
	b.emit(&Cast{Dest: dest, Src: src, From: from, To: to})
	return OperandValue(dest)
}

func (b *InstrBuilder) Debug(label string, values []Value) {
	b.emit(&Debug{Label: label, Values: values})
}

// WithComment attaches a comment to the last instruction pushed to the
// current block, completing the method/MethodTo/WithComment trio.
func (b *InstrBuilder) WithComment(comment string) {
	block := b.CFG.Fn.Blocks[b.CFG.CurrentBlock]
	if len(block.Instructions) == 0 {
		return
	}
	block.Instructions[len(block.Instructions)-1].SetComment(comment)
}
