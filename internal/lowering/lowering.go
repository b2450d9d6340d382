// Package lowering implements AST -> MIR lowering: it walks a
// source.Function's statements, threading a CFG builder and an SSA
// builder, and produces a mir.Function. This package is the one place
// that imports both internal/mir and internal/mir/source — source uses
// only mir's data model, and mir never imports source.
package lowering

import (
	"feltmir/internal/mir"
	"feltmir/internal/mir/source"
)

type loopFrame struct {
	continueTarget mir.BlockId
	breakTarget    mir.BlockId
}

// Lowering holds the per-function state threaded through statement and
// expression lowering: the function under construction, its CFG/SSA/
// instruction builders, the active loop stack for break/continue, and
// accumulated errors.
type Lowering struct {
	tq    source.TypeQuery
	fn    *mir.Function
	cfg   *mir.CFGBuilder
	ssa   *mir.SSABuilder
	instr *mir.InstrBuilder

	loopStack []loopFrame
	errors    []*mir.MIRError
}

// LowerFunction lowers one source function into a mir.Function. On
// failure the returned function has Invalid set and the errors slice is
// non-empty; the caller should exclude it from subsequent passes but
// continue lowering other functions.
func LowerFunction(src *source.Function, tq source.TypeQuery) (*mir.Function, []*mir.MIRError) {
	fn := mir.NewFunction(src.Name)
	entry := fn.NewBlock("entry")
	fn.EntryBlock = entry.ID

	l := &Lowering{
		tq:    tq,
		fn:    fn,
		cfg:   mir.NewCFGBuilder(fn),
		ssa:   mir.NewSSABuilder(fn),
		instr: nil,
	}
	l.cfg.SetBlock(entry.ID)
	l.instr = mir.NewInstrBuilder(l.cfg)

	// Entry has no predecessors, ever: seal it immediately.
	l.ssa.SealBlock(entry.ID)

	for _, p := range src.Params {
		id := fn.NewValue(p.Type)
		fn.Parameters = append(fn.Parameters, id)
		l.ssa.WriteVariable(p.Def, entry.ID, id)
	}

	l.lowerStmts(src.Body)

	if !l.cfg.IsTerminated() {
		// A merge block that never gained a predecessor (both branches of
		// the last statement returned or broke out) is dead, not a missing
		// return — terminate it explicitly and let DCE drop it.
		cur := fn.Block(l.currentBlock())
		if cur.ID != fn.EntryBlock && len(cur.Preds) == 0 {
			l.cfg.Terminate(&mir.Unreachable{})
		} else {
			l.fail(mir.ErrUnsupportedConstruct, "function body falls off the end without a return", src.Span)
		}
	}

	if len(l.errors) > 0 {
		fn.Invalid = true
	}
	return fn, l.errors
}

func (l *Lowering) fail(code, message string, span source.Span) {
	l.errors = append(l.errors, mir.LoweringError(code, message, toMirSpan(span)).Build())
}

func toMirSpan(s source.Span) mir.Span {
	if s.File == "" {
		return mir.Span{}
	}
	return mir.NewSpan(s.File, s.Line, s.Col)
}

// materialize forces v to a concrete ValueId, emitting an Assign to
// bind a bare literal if necessary. write_variable always needs a
// ValueId, never a raw literal Value.
func (l *Lowering) materialize(v mir.Value, ty mir.MirType) mir.ValueId {
	if v.IsOperand() {
		return v.Operand()
	}
	if v.IsLiteral() {
		return l.instr.Assign(v, ty).Operand()
	}
	return l.fn.NewValue(ty)
}

func (l *Lowering) valueType(v mir.Value) (mir.MirType, bool) {
	if v.IsLiteral() {
		return v.Literal().Type(), true
	}
	if v.IsOperand() {
		return l.fn.TypeOf(v.Operand())
	}
	return nil, false
}

func (l *Lowering) currentBlock() mir.BlockId { return l.cfg.CurrentBlock }

// lowerStmts lowers a statement list in the current block, stopping
// early (without error) if a nested terminator (return/break/continue)
// already ended the block — trailing statements after one are
// unreachable and the semantic analyzer's problem, not lowering's.
func (l *Lowering) lowerStmts(stmts []source.Stmt) {
	for _, s := range stmts {
		if l.cfg.IsTerminated() {
			return
		}
		l.lowerStmt(s)
	}
}

func (l *Lowering) lowerStmt(s source.Stmt) {
	switch st := s.(type) {
	case *source.Let:
		val, ty := l.lowerExpr(st.Value)
		id := l.materialize(val, ty)
		l.ssa.WriteVariable(st.Def, l.currentBlock(), id)

	case *source.LetTuple:
		val, ty := l.lowerExpr(st.Value)
		tup, ok := ty.(mir.TupleType)
		if !ok {
			l.fail(mir.ErrBadStructLiteral, "tuple pattern destructures a non-tuple value", st.Span)
			return
		}
		for idx, elem := range st.Pattern.Elements {
			if elem.Ignored || idx >= len(tup.Elems) {
				continue
			}
			extracted := l.instr.ExtractTupleElement(val, idx, tup.Elems[idx])
			l.ssa.WriteVariable(elem.Def, l.currentBlock(), extracted.Operand())
		}

	case *source.Assign:
		val, ty := l.lowerExpr(st.Value)
		id := l.materialize(val, ty)
		l.ssa.WriteVariable(st.Def, l.currentBlock(), id)

	case *source.FieldAssign:
		cur := l.ssa.ReadVariable(st.Def, l.currentBlock())
		curTy, ok := l.fn.TypeOf(cur)
		st2, isStruct := curTy.(mir.StructType)
		if !ok || !isStruct {
			l.fail(mir.ErrBadStructLiteral, "field assignment target is not a struct", st.Span)
			return
		}
		newVal, _ := l.lowerExpr(st.Value)
		updated := l.instr.InsertField(mir.OperandValue(cur), st.Field, newVal, st2)
		l.ssa.WriteVariable(st.Def, l.currentBlock(), updated.Operand())

	case *source.IndexAssign:
		cur := l.ssa.ReadVariable(st.Def, l.currentBlock())
		curTy, ok := l.fn.TypeOf(cur)
		tup, isTuple := curTy.(mir.TupleType)
		if !ok || !isTuple {
			l.fail(mir.ErrBadStructLiteral, "index assignment target is not a tuple", st.Span)
			return
		}
		newVal, _ := l.lowerExpr(st.Value)
		updated := l.instr.InsertTuple(mir.OperandValue(cur), st.Index, newVal, tup)
		l.ssa.WriteVariable(st.Def, l.currentBlock(), updated.Operand())

	case *source.StoreAssign:
		target, targetTy := l.lowerExpr(st.Target)
		ptrTy, ok := targetTy.(mir.PointerType)
		if !ok {
			l.fail(mir.ErrUnsupportedConstruct, "store target is not a pointer lvalue", st.Span)
			return
		}
		val, _ := l.lowerExpr(st.Value)
		l.instr.Store(target, val, ptrTy.Elem)

	case *source.LetAlloc:
		ptr := l.instr.FrameAlloc(st.Type)
		l.ssa.WriteVariable(st.Def, l.currentBlock(), ptr.Operand())

	case *source.ArrayIndexAssign:
		arrPtr, arrPtrTy := l.lowerExpr(st.Array)
		ptrTy, ok := arrPtrTy.(mir.PointerType)
		if !ok {
			l.fail(mir.ErrUnsupportedConstruct, "array index assignment target is not an array pointer", st.Span)
			return
		}
		arrTy, ok := ptrTy.Elem.(mir.ArrayType)
		if !ok {
			l.fail(mir.ErrUnsupportedConstruct, "array index assignment target does not point to an array", st.Span)
			return
		}
		elemPtr := l.instr.GetElementPtr(arrPtr, st.Index, arrTy.Elem)
		val, _ := l.lowerExpr(st.Value)
		l.instr.Store(elemPtr, val, arrTy.Elem)

	case *source.If:
		l.lowerIf(st)

	case *source.While:
		l.lowerWhile(st)

	case *source.Break:
		if len(l.loopStack) == 0 {
			l.fail(mir.ErrUnsupportedConstruct, "break outside of a loop", st.Span)
			return
		}
		top := l.loopStack[len(l.loopStack)-1]
		l.cfg.Terminate(&mir.Jump{Target: top.breakTarget})

	case *source.Continue:
		if len(l.loopStack) == 0 {
			l.fail(mir.ErrUnsupportedConstruct, "continue outside of a loop", st.Span)
			return
		}
		top := l.loopStack[len(l.loopStack)-1]
		l.cfg.Terminate(&mir.Jump{Target: top.continueTarget})

	case *source.Return:
		l.lowerReturn(st)

	case *source.ExprStmt:
		l.lowerExpr(st.Value)

	default:
		l.fail(mir.ErrUnsupportedConstruct, "unrecognized statement kind", source.Span{})
	}
}

func (l *Lowering) lowerIf(st *source.If) {
	cond, _ := l.lowerExpr(st.Cond)
	skel := l.cfg.NewIfSkeleton()
	l.cfg.Terminate(&mir.If{Cond: cond, Then: skel.Then, Else: skel.Else})

	// Both branches' predecessor sets are final the instant the edges
	// above are installed.
	l.ssa.SealBlock(skel.Then)
	l.ssa.SealBlock(skel.Else)

	l.cfg.SetBlock(skel.Then)
	l.instr.ResetValueNumbering()
	l.lowerStmts(st.Then)
	if !l.cfg.IsTerminated() {
		l.cfg.Terminate(&mir.Jump{Target: skel.Merge})
	}

	l.cfg.SetBlock(skel.Else)
	l.instr.ResetValueNumbering()
	l.lowerStmts(st.Else)
	if !l.cfg.IsTerminated() {
		l.cfg.Terminate(&mir.Jump{Target: skel.Merge})
	}

	// merge's predecessor set is final only once both branches' jumps
	// (or break/continue/return substitutes) are installed.
	l.ssa.SealBlock(skel.Merge)
	l.cfg.SetBlock(skel.Merge)
	l.instr.ResetValueNumbering()
}

func (l *Lowering) lowerWhile(st *source.While) {
	skel := l.cfg.NewLoopSkeleton()
	l.cfg.Terminate(&mir.Jump{Target: skel.Header})

	l.cfg.SetBlock(skel.Header)
	l.instr.ResetValueNumbering()
	// header's predecessor set (entry jump + eventual back-edge) is not
	// final until the body has been lowered: do not seal yet.
	cond, _ := l.lowerExpr(st.Cond)
	l.cfg.Terminate(&mir.If{Cond: cond, Then: skel.Body, Else: skel.Exit})

	// body's sole predecessor is the header, known immediately.
	l.ssa.SealBlock(skel.Body)

	l.loopStack = append(l.loopStack, loopFrame{continueTarget: skel.Header, breakTarget: skel.Exit})
	l.cfg.SetBlock(skel.Body)
	l.instr.ResetValueNumbering()
	l.lowerStmts(st.Body)
	if !l.cfg.IsTerminated() {
		l.cfg.Terminate(&mir.Jump{Target: skel.Header})
	}
	l.loopStack = l.loopStack[:len(l.loopStack)-1]

	// header's preds are now final: entry jump plus the back-edge.
	l.ssa.SealBlock(skel.Header)
	l.ssa.SealBlock(skel.Exit)
	l.cfg.SetBlock(skel.Exit)
	l.instr.ResetValueNumbering()
}

func (l *Lowering) lowerReturn(st *source.Return) {
	if len(st.Values) == 1 {
		val, ty := l.lowerExpr(st.Values[0])
		if tup, ok := ty.(mir.TupleType); ok {
			elems := make([]mir.Value, len(tup.Elems))
			for i, et := range tup.Elems {
				elems[i] = l.instr.ExtractTupleElement(val, i, et)
			}
			l.cfg.Terminate(&mir.Return{Values: elems})
			return
		}
		l.cfg.Terminate(&mir.Return{Values: []mir.Value{val}})
		return
	}

	vals := make([]mir.Value, len(st.Values))
	for i, e := range st.Values {
		v, _ := l.lowerExpr(e)
		vals[i] = v
	}
	l.cfg.Terminate(&mir.Return{Values: vals})
}

// lowerExpr lowers e to a Value plus its statically known type. On
// failure it records a LoweringError and returns a poison Value paired
// with UnknownType so the caller can keep going without a nil check at
// every step.
func (l *Lowering) lowerExpr(e source.Expr) (mir.Value, mir.MirType) {
	switch ex := e.(type) {
	case *source.LiteralExpr:
		return mir.LiteralValue(ex.Value), ex.Value.Type()

	case *source.Ident:
		id := l.ssa.ReadVariable(ex.Def, l.currentBlock())
		ty, _ := l.fn.TypeOf(id)
		return mir.OperandValue(id), ty

	case *source.BinaryExpr:
		left, leftTy := l.lowerExpr(ex.Left)
		right, _ := l.lowerExpr(ex.Right)
		resultTy := ex.Op.ResultType(leftTy)
		return l.instr.Binary(ex.Op, left, right, resultTy), resultTy

	case *source.UnaryExpr:
		src, srcTy := l.lowerExpr(ex.Operand)
		return l.instr.Unary(ex.Op, src, srcTy), srcTy

	case *source.TupleExpr:
		vals := make([]mir.Value, len(ex.Elements))
		elemTypes := make([]mir.MirType, len(ex.Elements))
		for i, el := range ex.Elements {
			v, ty := l.lowerExpr(el)
			vals[i] = v
			elemTypes[i] = ty
		}
		ty := mir.TupleType{Elems: elemTypes}
		return l.instr.MakeTuple(vals, ty), ty

	case *source.StructLitExpr:
		return l.lowerStructLit(ex)

	case *source.TupleIndexExpr:
		target, targetTy := l.lowerExpr(ex.Target)
		tup, ok := targetTy.(mir.TupleType)
		if !ok || ex.Index < 0 || ex.Index >= len(tup.Elems) {
			l.fail(mir.ErrMissingTypeInfo, "tuple index on a non-tuple or out-of-range value", ex.Span)
			return mir.ErrorValue(), mir.UnknownType{}
		}
		ty := tup.Elems[ex.Index]
		return l.instr.ExtractTupleElement(target, ex.Index, ty), ty

	case *source.FieldAccessExpr:
		target, targetTy := l.lowerExpr(ex.Target)
		st, ok := targetTy.(mir.StructType)
		if !ok {
			l.fail(mir.ErrMissingTypeInfo, "field access on a non-struct value", ex.Span)
			return mir.ErrorValue(), mir.UnknownType{}
		}
		ty, ok := st.FieldType(ex.Field)
		if !ok {
			l.fail(mir.ErrMissingTypeInfo, "struct "+st.Name+" has no field "+ex.Field, ex.Span)
			return mir.ErrorValue(), mir.UnknownType{}
		}
		return l.instr.ExtractStructField(target, ex.Field, ty), ty

	case *source.CallExpr:
		return l.lowerCall(ex)

	case *source.ArrayIndexExpr:
		arrPtr, arrPtrTy := l.lowerExpr(ex.Array)
		ptrTy, ok := arrPtrTy.(mir.PointerType)
		if !ok {
			l.fail(mir.ErrUnsupportedConstruct, "array index target is not an array pointer", ex.Span)
			return mir.ErrorValue(), mir.UnknownType{}
		}
		arrTy, ok := ptrTy.Elem.(mir.ArrayType)
		if !ok {
			l.fail(mir.ErrUnsupportedConstruct, "array index target does not point to an array", ex.Span)
			return mir.ErrorValue(), mir.UnknownType{}
		}
		elemPtr := l.instr.GetElementPtr(arrPtr, ex.Index, arrTy.Elem)
		return l.instr.Load(elemPtr, arrTy.Elem), arrTy.Elem

	default:
		l.fail(mir.ErrUnsupportedConstruct, "unrecognized expression kind", source.Span{})
		return mir.ErrorValue(), mir.UnknownType{}
	}
}

// lowerStructLit resolves the literal's field types, preferring the
// semantic layer's recorded type for the literal expression itself (so
// field order matches the declared struct) and falling back to
// per-field lookups when that's unavailable. A struct literal whose
// field type cannot be found fails lowering outright — it never
// silently defaults to felt.
func (l *Lowering) lowerStructLit(ex *source.StructLitExpr) (mir.Value, mir.MirType) {
	var st mir.StructType
	if ty, ok := l.tq.ExpressionType(ex.Span); ok {
		if s, isStruct := ty.(mir.StructType); isStruct {
			st = s
		}
	}
	if st.Name == "" {
		fields := make([]mir.StructField, len(ex.Fields))
		for i, f := range ex.Fields {
			ty, ok := l.tq.StructFieldType(ex.TypeName, f.Name)
			if !ok {
				l.fail(mir.ErrMissingTypeInfo, "no recorded type for field "+f.Name+" of struct "+ex.TypeName, ex.Span)
				return mir.ErrorValue(), mir.UnknownType{}
			}
			fields[i] = mir.StructField{Name: f.Name, Type: ty}
		}
		st = mir.StructType{Name: ex.TypeName, Fields: fields}
	}

	inits := make([]mir.FieldInit, len(ex.Fields))
	for i, f := range ex.Fields {
		v, _ := l.lowerExpr(f.Value)
		inits[i] = mir.FieldInit{Name: f.Name, Value: v}
	}
	return l.instr.MakeStruct(inits, st), st
}

func (l *Lowering) lowerCall(ex *source.CallExpr) (mir.Value, mir.MirType) {
	sig, ok := l.tq.FunctionSignature(ex.Callee)
	if !ok {
		l.fail(mir.ErrUnresolvedName, "call to unresolved function "+ex.Callee, ex.Span)
		return mir.ErrorValue(), mir.UnknownType{}
	}
	args := make([]mir.Value, len(ex.Args))
	for i, a := range ex.Args {
		v, _ := l.lowerExpr(a)
		args[i] = v
	}
	dests := l.instr.Call(ex.Callee, args, sig)
	switch len(dests) {
	case 0:
		return mir.LiteralValue(mir.NewUnit()), mir.UnitType{}
	case 1:
		return mir.OperandValue(dests[0]), sig.Returns[0]
	default:
		vals := make([]mir.Value, len(dests))
		for i, d := range dests {
			vals[i] = mir.OperandValue(d)
		}
		ty := mir.TupleType{Elems: append([]mir.MirType(nil), sig.Returns...)}
		return l.instr.MakeTuple(vals, ty), ty
	}
}
