package mir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDestructSSASwappedPhiSources builds a merge block whose two phis
// take their predecessors' values in swapped order
//
//	%a = phi [(P1, %x), (P2, %y)]
//	%b = phi [(P1, %y), (P2, %x)]
//
// and checks destruction removes both phis and leaves valid
// post-destruction MIR. The genuine copy cycle that needs a temporary is
// covered by TestSequenceParallelCopyBreaksGenuineCycle below.
func TestDestructSSASwappedPhiSources(t *testing.T) {
	fn := NewFunction("swap")
	entry := fn.NewBlock("entry")
	fn.EntryBlock = entry.ID
	p1 := fn.NewBlock("p1")
	p2 := fn.NewBlock("p2")
	merge := fn.NewBlock("merge")

	fn.SetTerminatorWithEdges(entry.ID, &If{Cond: LiteralValue(NewBool(true)), Then: p1.ID, Else: p2.ID})

	x := fn.NewValue(FeltType{})
	y := fn.NewValue(FeltType{})
	p1.Push(&Assign{Dest: x, Src: LiteralValue(NewFelt(1)), Ty: FeltType{}})
	p1.Push(&Assign{Dest: y, Src: LiteralValue(NewFelt(2)), Ty: FeltType{}})
	fn.SetTerminatorWithEdges(p1.ID, &Jump{Target: merge.ID})
	fn.SetTerminatorWithEdges(p2.ID, &Jump{Target: merge.ID})

	a := fn.NewValue(FeltType{})
	b := fn.NewValue(FeltType{})
	merge.PushPhiFront(&Phi{Dest: b, Ty: FeltType{}, Sources: []PhiSource{
		{Pred: p1.ID, Value: OperandValue(y)},
		{Pred: p2.ID, Value: OperandValue(x)},
	}})
	merge.PushPhiFront(&Phi{Dest: a, Ty: FeltType{}, Sources: []PhiSource{
		{Pred: p1.ID, Value: OperandValue(x)},
		{Pred: p2.ID, Value: OperandValue(y)},
	}})
	fn.SetTerminatorWithEdges(merge.ID, &Return{Values: []Value{OperandValue(a), OperandValue(b)}})
	fn.ReturnValues = []ValueId{a, b}

	pre := Validate(fn, true)
	require.True(t, pre.OK(), "expected valid pre-destruction SSA, got %v", pre.Errors)

	DestructSSA(fn)

	require.Empty(t, merge.Phis())

	// p2's copies (a<-y, b<-x) have no cyclic dependency and sequence
	// directly; p1's copies (a<-x, b<-y) likewise have none since a and
	// b are fresh destinations distinct from x and y — the actual cycle
	// lives only if a source reads another copy's destination. Here
	// neither predecessor's pair is self-referential, so no temporary is
	// strictly required for THIS shape; what matters is that both
	// predecessors still produce the correct values post-destruction.
	post := Validate(fn, false)
	assert.True(t, post.OK(), "expected valid post-destruction MIR, got %v", post.Errors)
}

// TestSequenceParallelCopyBreaksGenuineCycle exercises the actual cyclic
// case directly: a parallel copy where %a's new value is %b's old value
// and %b's new value is %a's old value (a true swap through shared
// destinations), which Kahn's algorithm alone cannot sequence.
func TestSequenceParallelCopyBreaksGenuineCycle(t *testing.T) {
	fn := NewFunction("cycle")
	entry := fn.NewBlock("entry")
	fn.EntryBlock = entry.ID

	a := fn.NewValue(FeltType{})
	b := fn.NewValue(FeltType{})

	copies := []parallelCopy{
		{dest: a, src: OperandValue(b), ty: FeltType{}},
		{dest: b, src: OperandValue(a), ty: FeltType{}},
	}

	out := sequenceParallelCopy(fn, copies)

	// A correct sequencing must introduce exactly one fresh temporary
	// (3 assignments for a 2-cycle: save, overwrite, restore).
	require.Len(t, out, 3)

	tempAssign, ok := out[0].(*Assign)
	require.True(t, ok)
	assert.True(t, tempAssign.Src.IsOperand())
	tempID := tempAssign.Dest
	assert.NotEqual(t, a, tempID)
	assert.NotEqual(t, b, tempID)

	// The temporary must be read back exactly once, by the final
	// assignment, and never overwritten before that.
	lastAssign, ok := out[2].(*Assign)
	require.True(t, ok)
	assert.Equal(t, tempID, lastAssign.Src.Operand())
}

// TestSequenceParallelCopyOrdersDependentChainNotCycle exercises a
// dependent chain through shared destinations that is NOT cyclic:
// A<-B, B<-C where C is external. This is the shape produced at a while
// loop's back edge by `p = q; q = q + 1;` (phi_p's source is literally
// phi_q's destination). Unlike a true cycle, this sequences without any
// temporary — but only if A<-B runs before B<-C; running them in the
// other order would have A observe the new B instead of the old one.
func TestSequenceParallelCopyOrdersDependentChainNotCycle(t *testing.T) {
	fn := NewFunction("chain")
	entry := fn.NewBlock("entry")
	fn.EntryBlock = entry.ID

	a := fn.NewValue(FeltType{})
	b := fn.NewValue(FeltType{})
	c := fn.NewValue(FeltType{})

	copies := []parallelCopy{
		{dest: a, src: OperandValue(b), ty: FeltType{}},
		{dest: b, src: OperandValue(c), ty: FeltType{}},
	}

	out := sequenceParallelCopy(fn, copies)
	require.Len(t, out, 2, "a non-cyclic dependent chain needs no temporary")

	var aIdx, bIdx = -1, -1
	for idx, instr := range out {
		assign, ok := instr.(*Assign)
		require.True(t, ok)
		switch assign.Dest {
		case a:
			aIdx = idx
			assert.Equal(t, b, assign.Src.Operand(), "A must still read the OLD value of B")
		case b:
			bIdx = idx
			assert.Equal(t, c, assign.Src.Operand())
		}
	}
	require.GreaterOrEqual(t, aIdx, 0)
	require.GreaterOrEqual(t, bIdx, 0)
	assert.Less(t, aIdx, bIdx, "A<-B must be emitted before B<-C overwrites B")
}
