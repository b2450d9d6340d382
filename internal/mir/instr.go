package mir

import (
	"strconv"
	"strings"
)

// Span is an optional, opaque source-location marker instructions and
// diagnostics may carry. The MIR never interprets it beyond carrying it
// through passes for later diagnostic rendering.
type Span struct {
	File        string
	Line, Col   int
	valid       bool
}

func NewSpan(file string, line, col int) Span { return Span{File: file, Line: line, Col: col, valid: true} }
func (s Span) Valid() bool                    { return s.valid }

// BinaryOp is the closed set of two-operand operations. Each carries its
// own semantic domain (felt arithmetic, u32 arithmetic, or boolean logic)
// so that ConstantFolding and validation never have to guess the intended
// domain from operand types alone.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpEq
	OpNeq
	OpLess
	OpLessEq
	OpGreater
	OpGreaterEq

	OpU32Add
	OpU32Sub
	OpU32Mul
	OpU32Div
	OpU32Rem
	OpU32And
	OpU32Or
	OpU32Xor
	OpU32Shl
	OpU32Shr
	OpU32Eq
	OpU32Neq
	OpU32Less
	OpU32LessEq
	OpU32Greater
	OpU32GreaterEq

	OpAnd
	OpOr
)

var binaryOpNames = map[BinaryOp]string{
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div",
	OpEq: "eq", OpNeq: "neq", OpLess: "lt", OpLessEq: "le", OpGreater: "gt", OpGreaterEq: "ge",
	OpU32Add: "u32add", OpU32Sub: "u32sub", OpU32Mul: "u32mul", OpU32Div: "u32div", OpU32Rem: "u32rem",
	OpU32And: "u32and", OpU32Or: "u32or", OpU32Xor: "u32xor", OpU32Shl: "u32shl", OpU32Shr: "u32shr",
	OpU32Eq: "u32eq", OpU32Neq: "u32neq", OpU32Less: "u32lt", OpU32LessEq: "u32le",
	OpU32Greater: "u32gt", OpU32GreaterEq: "u32ge",
	OpAnd: "and", OpOr: "or",
}

func (op BinaryOp) String() string { return binaryOpNames[op] }

// IsComparison reports whether op produces a Bool result.
func (op BinaryOp) IsComparison() bool {
	switch op {
	case OpEq, OpNeq, OpLess, OpLessEq, OpGreater, OpGreaterEq,
		OpU32Eq, OpU32Neq, OpU32Less, OpU32LessEq, OpU32Greater, OpU32GreaterEq:
		return true
	}
	return false
}

func (op BinaryOp) IsU32() bool {
	return op >= OpU32Add && op <= OpU32GreaterEq
}

func (op BinaryOp) IsBoolLogic() bool { return op == OpAnd || op == OpOr }

func (op BinaryOp) IsFelt() bool {
	return op >= OpAdd && op <= OpGreaterEq
}

// ResultType returns the statically-known result type of the operation
// given its operand type (operands of a binary op always share a type
// except comparisons, whose operands share a type and whose result is
// always Bool).
func (op BinaryOp) ResultType(operandType MirType) MirType {
	if op.IsComparison() || op.IsBoolLogic() {
		return BoolType{}
	}
	return operandType
}

// UnaryOp is the closed set of one-operand operations.
type UnaryOp int

const (
	OpNeg UnaryOp = iota
	OpNot
)

func (op UnaryOp) String() string {
	if op == OpNeg {
		return "neg"
	}
	return "not"
}

// Instruction is a single three-address operation. Every concrete kind
// below implements this interface.
type Instruction interface {
	// Destination returns the single defined ValueId, or (0, false) for
	// instructions with zero or more-than-one destination.
	Destination() (ValueId, bool)
	// Destinations returns every ValueId this instruction defines (0..n,
	// only Call can define more than one).
	Destinations() []ValueId
	UsedValues() []Value
	ReplaceValueUses(from, to ValueId)
	// IsPure reports whether the instruction is free of observable side
	// effects and safe to delete when its result is unused or to
	// de-duplicate via common-subexpression elimination.
	IsPure() bool
	Comment() string
	SetComment(string)
	Span() Span
	String() string
}

type instrBase struct {
	comment string
	span    Span
}

func (b *instrBase) Comment() string    { return b.comment }
func (b *instrBase) SetComment(c string) { b.comment = c }
func (b *instrBase) Span() Span          { return b.span }

// Assign rebinds dest to src — either an SSA copy (used heavily by
// CopyPropagation and phi elimination) or literal materialization.
type Assign struct {
	instrBase
	Dest ValueId
	Src  Value
	Ty   MirType
}

// Binary computes l <op> r.
type Binary struct {
	instrBase
	Dest  ValueId
	Op    BinaryOp
	L, R  Value
	Ty    MirType
}

// Unary computes <op> src.
type Unary struct {
	instrBase
	Dest ValueId
	Op   UnaryOp
	Src  Value
	Ty   MirType
}

// MakeTuple constructs a tuple value from its elements (value semantics:
// no memory is touched).
type MakeTuple struct {
	instrBase
	Dest  ValueId
	Elems []Value
	Ty    TupleType
}

// MakeStruct constructs a struct value from ordered field values.
type MakeStruct struct {
	instrBase
	Dest   ValueId
	Fields []FieldInit
	Ty     StructType
}

type FieldInit struct {
	Name  string
	Value Value
}

// ExtractTupleElement reads one element out of a tuple value.
type ExtractTupleElement struct {
	instrBase
	Dest  ValueId
	Src   Value
	Index int
	Ty    MirType
}

// ExtractStructField reads one field out of a struct value.
type ExtractStructField struct {
	instrBase
	Dest  ValueId
	Src   Value
	Field string
	Ty    MirType
}

// InsertTuple performs a functional update: produces a new tuple value
// equal to src except index is replaced with New.
type InsertTuple struct {
	instrBase
	Dest  ValueId
	Src   Value
	Index int
	New   Value
	Ty    TupleType
}

// InsertField performs a functional update on a struct value.
type InsertField struct {
	instrBase
	Dest  ValueId
	Src   Value
	Field string
	New   Value
	Ty    StructType
}

// Call invokes a function, optionally producing 0..n results (>1 only for
// multi-return functions).
type Call struct {
	instrBase
	Dests     []ValueId
	Callee    string
	Args      []Value
	Signature FunctionType
}

// FrameAlloc reserves a stack slot and yields its address.
type FrameAlloc struct {
	instrBase
	Dest ValueId
	Ty   MirType
}

// Load reads the value stored at Ptr.
type Load struct {
	instrBase
	Dest ValueId
	Ptr  Value
	Ty   MirType
}

// Store writes Value to the address Ptr. Stores never define a value.
type Store struct {
	instrBase
	Ptr   Value
	Value Value
	Ty    MirType
}

// GetElementPtr computes a derived address at a constant slot offset.
type GetElementPtr struct {
	instrBase
	Dest   ValueId
	Base   Value
	Offset int
	Ty     MirType
}

// PhiSource is one (predecessor, incoming value) pair of a Phi.
type PhiSource struct {
	Pred  BlockId
	Value Value
}

// Phi merges values from predecessor blocks. Must be the first
// instructions in its block (push_phi_front / phi_range enforce this).
type Phi struct {
	instrBase
	Dest    ValueId
	Ty      MirType
	Sources []PhiSource
}

// Cast performs an explicit, defined type conversion.
type Cast struct {
	instrBase
	Dest     ValueId
	Src      Value
	From, To MirType
}

// Debug is a compiler-observable marker instruction (e.g. for trace
// dumps); it is never pure since it is intentionally excluded from DCE.
type Debug struct {
	instrBase
	Label  string
	Values []Value
}

// Nop is an explicit placeholder left behind by passes that rewrite an
// instruction to "do nothing" without immediately compacting the block.
type Nop struct {
	instrBase
}

// --- Destination / Destinations ---

func (i *Assign) Destination() (ValueId, bool)              { return i.Dest, true }
func (i *Binary) Destination() (ValueId, bool)               { return i.Dest, true }
func (i *Unary) Destination() (ValueId, bool)                { return i.Dest, true }
func (i *MakeTuple) Destination() (ValueId, bool)            { return i.Dest, true }
func (i *MakeStruct) Destination() (ValueId, bool)           { return i.Dest, true }
func (i *ExtractTupleElement) Destination() (ValueId, bool)  { return i.Dest, true }
func (i *ExtractStructField) Destination() (ValueId, bool)   { return i.Dest, true }
func (i *InsertTuple) Destination() (ValueId, bool)          { return i.Dest, true }
func (i *InsertField) Destination() (ValueId, bool)          { return i.Dest, true }
func (i *FrameAlloc) Destination() (ValueId, bool)           { return i.Dest, true }
func (i *Load) Destination() (ValueId, bool)                 { return i.Dest, true }
func (i *GetElementPtr) Destination() (ValueId, bool)        { return i.Dest, true }
func (i *Phi) Destination() (ValueId, bool)                  { return i.Dest, true }
func (i *Cast) Destination() (ValueId, bool)                 { return i.Dest, true }
func (i *Call) Destination() (ValueId, bool) {
	if len(i.Dests) == 1 {
		return i.Dests[0], true
	}
	return 0, false
}
func (i *Store) Destination() (ValueId, bool) { return 0, false }
func (i *Debug) Destination() (ValueId, bool) { return 0, false }
func (i *Nop) Destination() (ValueId, bool)   { return 0, false }

func single(id ValueId) []ValueId { return []ValueId{id} }

func (i *Assign) Destinations() []ValueId             { return single(i.Dest) }
func (i *Binary) Destinations() []ValueId              { return single(i.Dest) }
func (i *Unary) Destinations() []ValueId               { return single(i.Dest) }
func (i *MakeTuple) Destinations() []ValueId           { return single(i.Dest) }
func (i *MakeStruct) Destinations() []ValueId          { return single(i.Dest) }
func (i *ExtractTupleElement) Destinations() []ValueId { return single(i.Dest) }
func (i *ExtractStructField) Destinations() []ValueId  { return single(i.Dest) }
func (i *InsertTuple) Destinations() []ValueId         { return single(i.Dest) }
func (i *InsertField) Destinations() []ValueId         { return single(i.Dest) }
func (i *FrameAlloc) Destinations() []ValueId          { return single(i.Dest) }
func (i *Load) Destinations() []ValueId                { return single(i.Dest) }
func (i *GetElementPtr) Destinations() []ValueId       { return single(i.Dest) }
func (i *Phi) Destinations() []ValueId                 { return single(i.Dest) }
func (i *Cast) Destinations() []ValueId                { return single(i.Dest) }
func (i *Call) Destinations() []ValueId                { return i.Dests }
func (i *Store) Destinations() []ValueId               { return nil }
func (i *Debug) Destinations() []ValueId               { return nil }
func (i *Nop) Destinations() []ValueId                 { return nil }

// --- UsedValues / ReplaceValueUses ---

func (i *Assign) UsedValues() []Value { return []Value{i.Src} }
func (i *Assign) ReplaceValueUses(from, to ValueId) {
	i.Src = i.Src.replaceIfOperand(from, to)
}

func (i *Binary) UsedValues() []Value { return []Value{i.L, i.R} }
func (i *Binary) ReplaceValueUses(from, to ValueId) {
	i.L = i.L.replaceIfOperand(from, to)
	i.R = i.R.replaceIfOperand(from, to)
}

func (i *Unary) UsedValues() []Value { return []Value{i.Src} }
func (i *Unary) ReplaceValueUses(from, to ValueId) {
	i.Src = i.Src.replaceIfOperand(from, to)
}

func (i *MakeTuple) UsedValues() []Value { return append([]Value(nil), i.Elems...) }
func (i *MakeTuple) ReplaceValueUses(from, to ValueId) {
	for idx := range i.Elems {
		i.Elems[idx] = i.Elems[idx].replaceIfOperand(from, to)
	}
}

func (i *MakeStruct) UsedValues() []Value {
	vs := make([]Value, len(i.Fields))
	for idx, f := range i.Fields {
		vs[idx] = f.Value
	}
	return vs
}
func (i *MakeStruct) ReplaceValueUses(from, to ValueId) {
	for idx := range i.Fields {
		i.Fields[idx].Value = i.Fields[idx].Value.replaceIfOperand(from, to)
	}
}

func (i *ExtractTupleElement) UsedValues() []Value { return []Value{i.Src} }
func (i *ExtractTupleElement) ReplaceValueUses(from, to ValueId) {
	i.Src = i.Src.replaceIfOperand(from, to)
}

func (i *ExtractStructField) UsedValues() []Value { return []Value{i.Src} }
func (i *ExtractStructField) ReplaceValueUses(from, to ValueId) {
	i.Src = i.Src.replaceIfOperand(from, to)
}

func (i *InsertTuple) UsedValues() []Value { return []Value{i.Src, i.New} }
func (i *InsertTuple) ReplaceValueUses(from, to ValueId) {
	i.Src = i.Src.replaceIfOperand(from, to)
	i.New = i.New.replaceIfOperand(from, to)
}

func (i *InsertField) UsedValues() []Value { return []Value{i.Src, i.New} }
func (i *InsertField) ReplaceValueUses(from, to ValueId) {
	i.Src = i.Src.replaceIfOperand(from, to)
	i.New = i.New.replaceIfOperand(from, to)
}

func (i *Call) UsedValues() []Value { return append([]Value(nil), i.Args...) }
func (i *Call) ReplaceValueUses(from, to ValueId) {
	for idx := range i.Args {
		i.Args[idx] = i.Args[idx].replaceIfOperand(from, to)
	}
}

func (i *FrameAlloc) UsedValues() []Value               {
	return nil
}
func (i *FrameAlloc) ReplaceValueUses(from, to ValueId) {}

func (i *Load) UsedValues() []Value { return []Value{i.Ptr} }
func (i *Load) ReplaceValueUses(from, to ValueId) {
	i.Ptr = i.Ptr.replaceIfOperand(from, to)
}

func (i *Store) UsedValues() []Value { return []Value{i.Ptr, i.Value} }
func (i *Store) ReplaceValueUses(from, to ValueId) {
	i.Ptr = i.Ptr.replaceIfOperand(from, to)
	i.Value = i.Value.replaceIfOperand(from, to)
}

func (i *GetElementPtr) UsedValues() []Value { return []Value{i.Base} }
func (i *GetElementPtr) ReplaceValueUses(from, to ValueId) {
	i.Base = i.Base.replaceIfOperand(from, to)
}

func (i *Phi) UsedValues() []Value {
	vs := make([]Value, len(i.Sources))
	for idx, s := range i.Sources {
		vs[idx] = s.Value
	}
	return vs
}
func (i *Phi) ReplaceValueUses(from, to ValueId) {
	for idx := range i.Sources {
		i.Sources[idx].Value = i.Sources[idx].Value.replaceIfOperand(from, to)
	}
}

func (i *Cast) UsedValues() []Value { return []Value{i.Src} }
func (i *Cast) ReplaceValueUses(from, to ValueId) {
	i.Src = i.Src.replaceIfOperand(from, to)
}

func (i *Debug) UsedValues() []Value { return append([]Value(nil), i.Values...) }
func (i *Debug) ReplaceValueUses(from, to ValueId) {
	for idx := range i.Values {
		i.Values[idx] = i.Values[idx].replaceIfOperand(from, to)
	}
}

func (i *Nop) UsedValues() []Value               { return nil }
func (i *Nop) ReplaceValueUses(from, to ValueId) {}

// --- IsPure ---

func (i *Assign) IsPure() bool              { return true }
func (i *Binary) IsPure() bool              { return true }
func (i *Unary) IsPure() bool               { return true }
func (i *MakeTuple) IsPure() bool           { return true }
func (i *MakeStruct) IsPure() bool          { return true }
func (i *ExtractTupleElement) IsPure() bool { return true }
func (i *ExtractStructField) IsPure() bool  { return true }
func (i *InsertTuple) IsPure() bool         { return true }
func (i *InsertField) IsPure() bool         { return true }
func (i *Cast) IsPure() bool                { return true }
func (i *Phi) IsPure() bool                 { return false } // merges, not a pure computation
func (i *Call) IsPure() bool                { return false }
func (i *FrameAlloc) IsPure() bool          { return false }
func (i *Load) IsPure() bool                { return false } // conservative: may alias a Store
func (i *Store) IsPure() bool               { return false }
func (i *GetElementPtr) IsPure() bool       { return true }
func (i *Debug) IsPure() bool               { return false }
func (i *Nop) IsPure() bool                 { return true }

// --- String ---

func (i *Assign) String() string {
	return i.Dest.String() + " = assign " + i.Src.String() + " : " + i.Ty.String()
}
func (i *Binary) String() string {
	return i.Dest.String() + " = " + i.L.String() + " " + i.Op.String() + " " + i.R.String() + " : " + i.Ty.String()
}
func (i *Unary) String() string {
	return i.Dest.String() + " = " + i.Op.String() + " " + i.Src.String() + " : " + i.Ty.String()
}
func (i *MakeTuple) String() string {
	parts := make([]string, len(i.Elems))
	for idx, e := range i.Elems {
		parts[idx] = e.String()
	}
	return i.Dest.String() + " = maketuple " + strings.Join(parts, ", ")
}
func (i *MakeStruct) String() string {
	parts := make([]string, len(i.Fields))
	for idx, f := range i.Fields {
		parts[idx] = f.Name + ": " + f.Value.String()
	}
	return i.Dest.String() + " = makestruct { " + strings.Join(parts, ", ") + " }"
}
func (i *ExtractTupleElement) String() string {
	return i.Dest.String() + " = extracttuple " + i.Src.String() + ", " + strings.TrimSpace(strconv.Itoa(i.Index))
}
func (i *ExtractStructField) String() string {
	return i.Dest.String() + " = extractfield " + i.Src.String() + ", \"" + i.Field + "\""
}
func (i *InsertTuple) String() string {
	return i.Dest.String() + " = inserttuple " + i.Src.String() + ", " + strconv.Itoa(i.Index) + ", " + i.New.String()
}
func (i *InsertField) String() string {
	return i.Dest.String() + " = insertfield " + i.Src.String() + ", \"" + i.Field + "\", " + i.New.String()
}
func (i *Call) String() string {
	dests := make([]string, len(i.Dests))
	for idx, d := range i.Dests {
		dests[idx] = d.String()
	}
	args := make([]string, len(i.Args))
	for idx, a := range i.Args {
		args[idx] = a.String()
	}
	prefix := ""
	if len(dests) > 0 {
		prefix = strings.Join(dests, ", ") + " = "
	}
	return prefix + "call " + i.Callee + "(" + strings.Join(args, ", ") + ")"
}
func (i *FrameAlloc) String() string {
	return i.Dest.String() + " = framealloc " + i.Ty.String()
}
func (i *Load) String() string {
	return i.Dest.String() + " = load " + i.Ptr.String() + " : " + i.Ty.String()
}
func (i *Store) String() string {
	return "store " + i.Ptr.String() + ", " + i.Value.String() + " : " + i.Ty.String()
}
func (i *GetElementPtr) String() string {
	return i.Dest.String() + " = gep " + i.Base.String() + ", " + strconv.Itoa(i.Offset)
}
func (i *Phi) String() string {
	parts := make([]string, len(i.Sources))
	for idx, s := range i.Sources {
		parts[idx] = "[" + s.Pred.String() + ", " + s.Value.String() + "]"
	}
	return i.Dest.String() + " = phi " + strings.Join(parts, ", ") + " : " + i.Ty.String()
}
func (i *Cast) String() string {
	return i.Dest.String() + " = cast " + i.Src.String() + " : " + i.From.String() + " -> " + i.To.String()
}
func (i *Debug) String() string {
	parts := make([]string, len(i.Values))
	for idx, v := range i.Values {
		parts[idx] = v.String()
	}
	return "debug \"" + i.Label + "\" " + strings.Join(parts, ", ")
}
func (i *Nop) String() string { return "nop" }

