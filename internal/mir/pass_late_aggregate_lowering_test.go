package mir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLateAggregateLoweringMakeTupleAndExtract checks that a value-based
// tuple construction followed by an element extraction is rewritten into
// a FrameAlloc/Store/GetElementPtr/Load sequence with no MakeTuple or
// ExtractTupleElement left behind.
func TestLateAggregateLoweringMakeTupleAndExtract(t *testing.T) {
	fn := NewFunction("pair")
	entry := fn.NewBlock("entry")
	fn.EntryBlock = entry.ID

	tupTy := TupleType{Elems: []MirType{FeltType{}, U32Type{}}}
	tup := fn.NewValue(tupTy)
	entry.Push(&MakeTuple{Dest: tup, Elems: []Value{LiteralValue(NewFelt(1)), LiteralValue(NewU32(2))}, Ty: tupTy})

	elem := fn.NewValue(U32Type{})
	entry.Push(&ExtractTupleElement{Dest: elem, Src: OperandValue(tup), Index: 1, Ty: U32Type{}})

	fn.SetTerminatorWithEdges(entry.ID, &Return{Values: []Value{OperandValue(elem)}})

	changed := (&LateAggregateLowering{}).Run(fn)
	require.True(t, changed)

	for _, instr := range entry.Instructions {
		switch instr.(type) {
		case *MakeTuple, *ExtractTupleElement:
			t.Fatalf("value-based aggregate instruction %T should have been lowered away", instr)
		}
	}

	var sawAlloc, sawGEP, sawStore, sawLoad int
	for _, instr := range entry.Instructions {
		switch instr.(type) {
		case *FrameAlloc:
			sawAlloc++
		case *GetElementPtr:
			sawGEP++
		case *Store:
			sawStore++
		case *Load:
			sawLoad++
		}
	}
	assert.Equal(t, 1, sawAlloc, "one stack slot for the tuple")
	assert.GreaterOrEqual(t, sawGEP, 2, "one GEP per stored element plus one for the extraction")
	assert.Equal(t, 2, sawStore, "one store per tuple element")
	assert.GreaterOrEqual(t, sawLoad, 2, "a reload of the whole tuple plus the extracted element")
}

// TestLateAggregateLoweringInsertFieldCopiesThenOverwrites exercises the
// functional-update path: InsertField must copy every field of the source
// struct into a fresh slot before overwriting the updated field, so
// fields other than the updated one are preserved.
func TestLateAggregateLoweringInsertFieldCopiesThenOverwrites(t *testing.T) {
	fn := NewFunction("update")
	entry := fn.NewBlock("entry")
	fn.EntryBlock = entry.ID

	structTy := StructType{Name: "Point", Fields: []StructField{
		{Name: "x", Type: FeltType{}},
		{Name: "y", Type: FeltType{}},
	}}

	p := fn.NewValue(structTy)
	entry.Push(&MakeStruct{Dest: p, Fields: []FieldInit{
		{Name: "x", Value: LiteralValue(NewFelt(1))},
		{Name: "y", Value: LiteralValue(NewFelt(2))},
	}, Ty: structTy})

	updated := fn.NewValue(structTy)
	entry.Push(&InsertField{Dest: updated, Src: OperandValue(p), Field: "y", New: LiteralValue(NewFelt(9)), Ty: structTy})

	fn.SetTerminatorWithEdges(entry.ID, &Return{Values: []Value{OperandValue(updated)}})

	changed := (&LateAggregateLowering{}).Run(fn)
	require.True(t, changed)

	for _, instr := range entry.Instructions {
		switch instr.(type) {
		case *MakeStruct, *InsertField:
			t.Fatalf("value-based aggregate instruction %T should have been lowered away", instr)
		}
	}

	// Two allocations: one backing the original struct, one for the
	// updated copy.
	allocs := 0
	for _, instr := range entry.Instructions {
		if _, ok := instr.(*FrameAlloc); ok {
			allocs++
		}
	}
	assert.Equal(t, 2, allocs)
}
