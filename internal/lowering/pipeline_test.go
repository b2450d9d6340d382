package lowering

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feltmir/internal/mir"
	"feltmir/internal/mir/source"
)

// addProgram builds a single function `add(a, b felt) -> felt { return a
// + b }` as a source.Program, the smallest program that exercises
// lowering, the standard pipeline, and SSA destruction end to end.
func addProgram() *source.Program {
	const a mir.DefinitionId = 0
	const b mir.DefinitionId = 1

	fn := &source.Function{
		Name: "add",
		Params: []source.Param{
			{Def: a, Name: "a", Type: mir.FeltType{}},
			{Def: b, Name: "b", Type: mir.FeltType{}},
		},
		ReturnType: mir.FeltType{},
		Body: []source.Stmt{
			&source.Return{Values: []source.Expr{
				&source.BinaryExpr{
					Op:    mir.OpAdd,
					Left:  &source.Ident{Def: a, Name: "a"},
					Right: &source.Ident{Def: b, Name: "b"},
				},
			}},
		},
	}
	return &source.Program{Name: "arith", Functions: []*source.Function{fn}}
}

func TestCompileLowersOptimizesAndDestructs(t *testing.T) {
	tq := source.NewStaticTypeQuery()

	mod, lowerErrs, err := Compile(context.Background(), addProgram(), tq, mir.DefaultPipelineConfig())
	require.NoError(t, err)
	require.Empty(t, lowerErrs, "expected no lowering/validation errors, got %v", lowerErrs)

	require.Len(t, mod.Valid(), 1)
	fn := mod.Valid()[0]
	assert.Equal(t, "add", fn.Name)

	// Post-destruction: the pipeline must have already produced valid,
	// non-SSA MIR.
	result := mir.Validate(fn, false)
	assert.True(t, result.OK(), "expected valid post-destruction MIR, got %v", result.Errors)

	// The entry block's single Binary should have folded away if both
	// operands were literal — here they are parameters, so a real Binary
	// add must remain exactly once.
	var binaries int
	for _, id := range fn.BlockOrder() {
		for _, instr := range fn.Blocks[id].Instructions {
			if b, ok := instr.(*mir.Binary); ok && b.Op == mir.OpAdd {
				binaries++
			}
		}
	}
	assert.Equal(t, 1, binaries)
}

// TestIfMergePhiScenario builds the canonical if-merge program:
//
//	fn f(c: bool) -> felt { let x; if c { x = 1 } else { x = 2 }; return x }
//
// and checks the merge block holds exactly one felt phi sourced from both
// branches pre-destruction, and that destruction replaces it with a plain
// assignment in each predecessor.
func TestIfMergePhiScenario(t *testing.T) {
	const c mir.DefinitionId = 0
	const x mir.DefinitionId = 1

	fn := &source.Function{
		Name:       "f",
		Params:     []source.Param{{Def: c, Name: "c", Type: mir.BoolType{}}},
		ReturnType: mir.FeltType{},
		Body: []source.Stmt{
			&source.If{
				Cond: &source.Ident{Def: c, Name: "c"},
				Then: []source.Stmt{&source.Assign{Def: x, Value: &source.LiteralExpr{Value: mir.NewFelt(1)}}},
				Else: []source.Stmt{&source.Assign{Def: x, Value: &source.LiteralExpr{Value: mir.NewFelt(2)}}},
			},
			&source.Return{Values: []source.Expr{&source.Ident{Def: x, Name: "x"}}},
		},
	}
	prog := &source.Program{Name: "ifmerge", Functions: []*source.Function{fn}}
	tq := source.NewStaticTypeQuery()

	lowered, errs := LowerFunction(fn, tq)
	require.Empty(t, errs)

	var mergeBlock *mir.BasicBlock
	for _, id := range lowered.BlockOrder() {
		b := lowered.Blocks[id]
		if len(b.Phis()) > 0 {
			mergeBlock = b
		}
	}
	require.NotNil(t, mergeBlock)
	require.Len(t, mergeBlock.Phis(), 1)
	phi := mergeBlock.Phis()[0]
	assert.IsType(t, mir.FeltType{}, phi.Ty)
	assert.Len(t, phi.Sources, 2)

	pre := mir.Validate(lowered, true)
	require.True(t, pre.OK(), "%v", pre.Errors)

	mod, lowerErrs, err := Compile(context.Background(), prog, tq, mir.PipelineConfig{OptimizationLevel: 0, AggregateMIR: true, MaxFixedPointIterations: 10})
	require.NoError(t, err)
	require.Empty(t, lowerErrs)
	destructed := mod.Valid()[0]

	for _, id := range destructed.BlockOrder() {
		assert.Empty(t, destructed.Blocks[id].Phis())
	}
	var directAssigns int
	for _, id := range destructed.BlockOrder() {
		for _, instr := range destructed.Blocks[id].Instructions {
			if a, ok := instr.(*mir.Assign); ok && a.Src.IsLiteral() {
				directAssigns++
			}
		}
	}
	assert.GreaterOrEqual(t, directAssigns, 2)
}

// TestWhileLoopPhiScenario builds a counting loop:
//
//	fn sum(n: felt) -> felt { let s = 0; let i = 0; while i < n { s = s + i; i = i + 1 }; return s }
//
// and checks the loop header carries two phis (for s and i), sealed only
// after the body has been lowered (header -> body -> header -> exit).
func TestWhileLoopPhiScenario(t *testing.T) {
	const n mir.DefinitionId = 0
	const s mir.DefinitionId = 1
	const i mir.DefinitionId = 2

	fn := &source.Function{
		Name:       "sum",
		Params:     []source.Param{{Def: n, Name: "n", Type: mir.FeltType{}}},
		ReturnType: mir.FeltType{},
		Body: []source.Stmt{
			&source.Let{Def: s, Value: &source.LiteralExpr{Value: mir.NewFelt(0)}},
			&source.Let{Def: i, Value: &source.LiteralExpr{Value: mir.NewFelt(0)}},
			&source.While{
				Cond: &source.BinaryExpr{Op: mir.OpLess, Left: &source.Ident{Def: i, Name: "i"}, Right: &source.Ident{Def: n, Name: "n"}},
				Body: []source.Stmt{
					&source.Assign{Def: s, Value: &source.BinaryExpr{Op: mir.OpAdd, Left: &source.Ident{Def: s, Name: "s"}, Right: &source.Ident{Def: i, Name: "i"}}},
					&source.Assign{Def: i, Value: &source.BinaryExpr{Op: mir.OpAdd, Left: &source.Ident{Def: i, Name: "i"}, Right: &source.LiteralExpr{Value: mir.NewFelt(1)}}},
				},
			},
			&source.Return{Values: []source.Expr{&source.Ident{Def: s, Name: "s"}}},
		},
	}
	tq := source.NewStaticTypeQuery()

	lowered, errs := LowerFunction(fn, tq)
	require.Empty(t, errs)

	pre := mir.Validate(lowered, true)
	require.True(t, pre.OK(), "%v", pre.Errors)

	var headerPhis int
	for _, id := range lowered.BlockOrder() {
		b := lowered.Blocks[id]
		if b.Name == "loop_header" {
			headerPhis = len(b.Phis())
		}
	}
	assert.Equal(t, 2, headerPhis)
}

// TestValueBasedAggregateNoMemoryOps builds a struct-update program:
//
//	fn g() -> felt { let p = Point{x: 10, y: 20}; p.x = 15; return p.x + p.y }
//
// and checks the result contains MakeStruct/InsertField/two
// ExtractStructField/one Binary Add and no memory instructions at all.
func TestValueBasedAggregateNoMemoryOps(t *testing.T) {
	const p mir.DefinitionId = 0

	tq := source.NewStaticTypeQuery()
	tq.DefineField("Point", "x", mir.FeltType{})
	tq.DefineField("Point", "y", mir.FeltType{})

	fn := &source.Function{
		Name:       "g",
		ReturnType: mir.FeltType{},
		Body: []source.Stmt{
			&source.Let{Def: p, Value: &source.StructLitExpr{
				TypeName: "Point",
				Fields: []source.FieldValue{
					{Name: "x", Value: &source.LiteralExpr{Value: mir.NewFelt(10)}},
					{Name: "y", Value: &source.LiteralExpr{Value: mir.NewFelt(20)}},
				},
			}},
			&source.FieldAssign{Def: p, Field: "x", Value: &source.LiteralExpr{Value: mir.NewFelt(15)}},
			&source.Return{Values: []source.Expr{
				&source.BinaryExpr{
					Op:    mir.OpAdd,
					Left:  &source.FieldAccessExpr{Target: &source.Ident{Def: p, Name: "p"}, Field: "x"},
					Right: &source.FieldAccessExpr{Target: &source.Ident{Def: p, Name: "p"}, Field: "y"},
				},
			}},
		},
	}

	lowered, errs := LowerFunction(fn, tq)
	require.Empty(t, errs)

	var makeStructs, insertFields, extractFields, binaryAdds, memOps int
	for _, id := range lowered.BlockOrder() {
		for _, instr := range lowered.Blocks[id].Instructions {
			switch v := instr.(type) {
			case *mir.MakeStruct:
				makeStructs++
			case *mir.InsertField:
				insertFields++
			case *mir.ExtractStructField:
				extractFields++
			case *mir.Binary:
				if v.Op == mir.OpAdd {
					binaryAdds++
				}
			case *mir.FrameAlloc, *mir.Store, *mir.Load, *mir.GetElementPtr:
				memOps++
			}
		}
	}
	assert.Equal(t, 1, makeStructs)
	assert.Equal(t, 1, insertFields)
	assert.Equal(t, 2, extractFields)
	assert.Equal(t, 1, binaryAdds)
	assert.Equal(t, 0, memOps)
	assert.False(t, lowered.UsesMemory())
}

// TestMultiReturnTupleContext builds a multi-return call used in
// tuple context:
//
//	fn pair() -> (felt, felt) { return (42, 84) }
//	fn main() -> felt { let p = pair(); return p.0 + p.1 }
//
// and checks a Call with two destinations feeds a synthesized MakeTuple,
// with ExtractTupleElement reading back each half.
func TestMultiReturnTupleContext(t *testing.T) {
	const p mir.DefinitionId = 0

	pairFn := &source.Function{
		Name:       "pair",
		ReturnType: mir.TupleType{Elems: []mir.MirType{mir.FeltType{}, mir.FeltType{}}},
		Body: []source.Stmt{
			&source.Return{Values: []source.Expr{&source.TupleExpr{Elements: []source.Expr{
				&source.LiteralExpr{Value: mir.NewFelt(42)},
				&source.LiteralExpr{Value: mir.NewFelt(84)},
			}}}},
		},
	}
	mainFn := &source.Function{
		Name:       "main",
		ReturnType: mir.FeltType{},
		Body: []source.Stmt{
			&source.Let{Def: p, Value: &source.CallExpr{Callee: "pair"}},
			&source.Return{Values: []source.Expr{
				&source.BinaryExpr{
					Op:    mir.OpAdd,
					Left:  &source.TupleIndexExpr{Target: &source.Ident{Def: p, Name: "p"}, Index: 0},
					Right: &source.TupleIndexExpr{Target: &source.Ident{Def: p, Name: "p"}, Index: 1},
				},
			}},
		},
	}
	prog := &source.Program{Name: "pairprog", Functions: []*source.Function{pairFn, mainFn}}

	tq := source.NewStaticTypeQuery()
	tq.DefineSignature("pair", mir.FunctionType{Returns: []mir.MirType{mir.FeltType{}, mir.FeltType{}}})

	mod, errs := LowerProgram(prog, tq)
	require.Empty(t, errs)

	var mirMain *mir.Function
	for _, f := range mod.Functions {
		if f.Name == "main" {
			mirMain = f
		}
	}
	require.NotNil(t, mirMain)

	var calls, tuples, extracts int
	for _, id := range mirMain.BlockOrder() {
		for _, instr := range mirMain.Blocks[id].Instructions {
			switch instr.(type) {
			case *mir.Call:
				calls++
			case *mir.MakeTuple:
				tuples++
			case *mir.ExtractTupleElement:
				extracts++
			}
		}
	}
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, tuples)
	assert.Equal(t, 2, extracts)

	pre := mir.Validate(mirMain, true)
	assert.True(t, pre.OK(), "%v", pre.Errors)
}

// TestCompileWithAggregateMIROff compiles the scenario-4 shape with the
// aggregate-MIR toggle off: every value-based aggregate instruction must
// have been rewritten through memory before the pipeline ran, and the
// result must still validate post-destruction. Together with
// TestValueBasedAggregateNoMemoryOps (the toggle's on side) this covers
// the aggregate on/off round trip: both forms compile the same source
// cleanly, differing only in representation.
func TestCompileWithAggregateMIROff(t *testing.T) {
	const p mir.DefinitionId = 0

	tq := source.NewStaticTypeQuery()
	tq.DefineField("Point", "x", mir.FeltType{})
	tq.DefineField("Point", "y", mir.FeltType{})

	fn := &source.Function{
		Name:       "g",
		ReturnType: mir.FeltType{},
		Body: []source.Stmt{
			&source.Let{Def: p, Value: &source.StructLitExpr{
				TypeName: "Point",
				Fields: []source.FieldValue{
					{Name: "x", Value: &source.LiteralExpr{Value: mir.NewFelt(10)}},
					{Name: "y", Value: &source.LiteralExpr{Value: mir.NewFelt(20)}},
				},
			}},
			&source.FieldAssign{Def: p, Field: "x", Value: &source.LiteralExpr{Value: mir.NewFelt(15)}},
			&source.Return{Values: []source.Expr{
				&source.BinaryExpr{
					Op:    mir.OpAdd,
					Left:  &source.FieldAccessExpr{Target: &source.Ident{Def: p, Name: "p"}, Field: "x"},
					Right: &source.FieldAccessExpr{Target: &source.Ident{Def: p, Name: "p"}, Field: "y"},
				},
			}},
		},
	}
	prog := &source.Program{Name: "memform", Functions: []*source.Function{fn}}

	cfg := mir.DefaultPipelineConfig()
	cfg.AggregateMIR = false

	mod, lowerErrs, err := Compile(context.Background(), prog, tq, cfg)
	require.NoError(t, err)
	require.Empty(t, lowerErrs)
	require.Len(t, mod.Valid(), 1)

	compiled := mod.Valid()[0]
	for _, id := range compiled.BlockOrder() {
		for _, instr := range compiled.Blocks[id].Instructions {
			switch instr.(type) {
			case *mir.MakeStruct, *mir.InsertField, *mir.ExtractStructField, *mir.MakeTuple, *mir.InsertTuple, *mir.ExtractTupleElement:
				t.Fatalf("aggregate instruction %T survived with aggregate MIR off", instr)
			}
		}
	}

	post := mir.Validate(compiled, false)
	assert.True(t, post.OK(), "%v", post.Errors)
}

// TestIfBothBranchesReturn lowers a function whose if-statement returns
// out of both branches, leaving the merge block with no predecessors.
// That dead merge must be terminated (Unreachable) rather than reported
// as a missing return, and the pipeline must compile the function
// cleanly with DCE discarding the block.
func TestIfBothBranchesReturn(t *testing.T) {
	const c mir.DefinitionId = 0

	fn := &source.Function{
		Name:       "pick",
		Params:     []source.Param{{Def: c, Name: "c", Type: mir.BoolType{}}},
		ReturnType: mir.FeltType{},
		Body: []source.Stmt{
			&source.If{
				Cond: &source.Ident{Def: c, Name: "c"},
				Then: []source.Stmt{&source.Return{Values: []source.Expr{&source.LiteralExpr{Value: mir.NewFelt(1)}}}},
				Else: []source.Stmt{&source.Return{Values: []source.Expr{&source.LiteralExpr{Value: mir.NewFelt(2)}}}},
			},
		},
	}
	prog := &source.Program{Name: "pickprog", Functions: []*source.Function{fn}}
	tq := source.NewStaticTypeQuery()

	lowered, errs := LowerFunction(fn, tq)
	require.Empty(t, errs, "a both-branches-return body is complete, not a missing return")

	var unreachables int
	for _, id := range lowered.BlockOrder() {
		if _, ok := lowered.Blocks[id].Terminator.(*mir.Unreachable); ok {
			unreachables++
		}
	}
	assert.Equal(t, 1, unreachables, "the dead merge block should be explicitly unreachable")

	mod, lowerErrs, err := Compile(context.Background(), prog, tq, mir.DefaultPipelineConfig())
	require.NoError(t, err)
	require.Empty(t, lowerErrs)
	require.Len(t, mod.Valid(), 1)

	compiled := mod.Valid()[0]
	for _, id := range compiled.BlockOrder() {
		_, dead := compiled.Blocks[id].Terminator.(*mir.Unreachable)
		assert.False(t, dead, "DCE should have removed the unreachable merge block")
	}
}

func TestLowerProgramIsolatesPerFunctionFailures(t *testing.T) {
	tq := source.NewStaticTypeQuery()

	good := addProgram().Functions[0]
	bad := &source.Function{
		Name:       "broken",
		ReturnType: mir.FeltType{},
		Body:       []source.Stmt{}, // falls off the end without a return
	}
	prog := &source.Program{Name: "mixed", Functions: []*source.Function{good, bad}}

	mod, errs, err := Compile(context.Background(), prog, tq, mir.DefaultPipelineConfig())
	require.NoError(t, err)

	assert.Contains(t, errs, "broken")
	assert.NotContains(t, errs, "add")

	valid := mod.Valid()
	require.Len(t, valid, 1)
	assert.Equal(t, "add", valid[0].Name)
}

// TestWhileLoopDependentChainDestructionOrder builds
//
//	fn shift(n: felt) -> felt { let p = 0; let q = 0; while q < n { p = q; q = q + 1 }; return p }
//
// Lowering `p = q` binds p directly to q's existing ValueId (materialize,
// lowering.go) with no intervening Assign, so at the loop's back edge
// phi_p's incoming value literally *is* phi_q's destination — a
// non-cyclic dependent chain (phi_p <- phi_q, phi_q <- q+1), not a swap.
// Destruction must sequence the copy that reads the old phi_q value
// before the copy that overwrites it: emitting them in the other
// order would make p observe
// q's already-incremented value instead of its pre-increment value.
func TestWhileLoopDependentChainDestructionOrder(t *testing.T) {
	const n mir.DefinitionId = 0
	const p mir.DefinitionId = 1
	const q mir.DefinitionId = 2

	fn := &source.Function{
		Name:       "shift",
		Params:     []source.Param{{Def: n, Name: "n", Type: mir.FeltType{}}},
		ReturnType: mir.FeltType{},
		Body: []source.Stmt{
			&source.Let{Def: p, Value: &source.LiteralExpr{Value: mir.NewFelt(0)}},
			&source.Let{Def: q, Value: &source.LiteralExpr{Value: mir.NewFelt(0)}},
			&source.While{
				Cond: &source.BinaryExpr{Op: mir.OpLess, Left: &source.Ident{Def: q, Name: "q"}, Right: &source.Ident{Def: n, Name: "n"}},
				Body: []source.Stmt{
					&source.Assign{Def: p, Value: &source.Ident{Def: q, Name: "q"}},
					&source.Assign{Def: q, Value: &source.BinaryExpr{Op: mir.OpAdd, Left: &source.Ident{Def: q, Name: "q"}, Right: &source.LiteralExpr{Value: mir.NewFelt(1)}}},
				},
			},
			&source.Return{Values: []source.Expr{&source.Ident{Def: p, Name: "p"}}},
		},
	}
	tq := source.NewStaticTypeQuery()

	lowered, errs := LowerFunction(fn, tq)
	require.Empty(t, errs)

	pre := mir.Validate(lowered, true)
	require.True(t, pre.OK(), "%v", pre.Errors)

	var header, body *mir.BasicBlock
	for _, id := range lowered.BlockOrder() {
		b := lowered.Blocks[id]
		switch b.Name {
		case "loop_header":
			header = b
		case "loop_body":
			body = b
		}
	}
	require.NotNil(t, header)
	require.NotNil(t, body)
	require.Len(t, header.Phis(), 2, "header should carry phis for both p and q")

	// Find the phi whose back-edge (body) source is the *other* phi's
	// destination — that is phi_p, dependent on phi_q.
	var dependent, independent *mir.Phi
	for _, candidate := range header.Phis() {
		for _, other := range header.Phis() {
			if other == candidate {
				continue
			}
			for _, src := range candidate.Sources {
				if src.Pred == body.ID && src.Value.IsOperand() && src.Value.Operand() == other.Dest {
					dependent, independent = candidate, other
				}
			}
		}
	}
	require.NotNil(t, dependent, "expected a dependent-chain phi whose back-edge value is another phi's destination")
	require.NotNil(t, independent)

	mir.DestructSSA(lowered)
	post := mir.Validate(lowered, false)
	require.True(t, post.OK(), "%v", post.Errors)
	require.Empty(t, header.Phis())

	// The parallel copy for the back edge was appended to body. The copy
	// writing dependent.Dest (which reads old independent.Dest) must come
	// before the copy writing independent.Dest (which overwrites it).
	var dependentIdx, independentIdx = -1, -1
	for idx, instr := range body.Instructions {
		a, ok := instr.(*mir.Assign)
		if !ok {
			continue
		}
		if a.Dest == dependent.Dest {
			dependentIdx = idx
		}
		if a.Dest == independent.Dest {
			independentIdx = idx
		}
	}
	require.GreaterOrEqual(t, dependentIdx, 0, "expected an assignment to the dependent phi's destination")
	require.GreaterOrEqual(t, independentIdx, 0, "expected an assignment to the independent phi's destination")
	assert.Less(t, dependentIdx, independentIdx,
		"the copy reading the old shared value must be sequenced before the copy that overwrites it")
}
