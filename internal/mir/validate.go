package mir

import "fmt"

// ValidationResult collects every diagnostic produced by a Validate call.
// A function with len(Errors) == 0 is safe to hand to the next pipeline
// stage; warnings never block progress.
type ValidationResult struct {
	Errors   []*MIRError
	Warnings []*MIRError
}

func (r *ValidationResult) OK() bool { return len(r.Errors) == 0 }

func (r *ValidationResult) addError(b *MIRErrorBuilder) {
	r.Errors = append(r.Errors, b.Build())
}

func (r *ValidationResult) addWarning(b *MIRErrorBuilder) {
	r.Warnings = append(r.Warnings, b.Build())
}

// Validate runs the structural, SSA-form (or post-destruction), typing,
// CFG, and phi-invariant checks. preDestruction selects
// which of the two modes applies: true requires single-definition and
// fully-formed phis; false (post-destruction) relaxes single-definition
// and requires phis to be entirely absent.
func Validate(fn *Function, preDestruction bool) *ValidationResult {
	r := &ValidationResult{}
	if fn == nil {
		r.addError(InternalError("nil function passed to Validate", Span{}))
		return r
	}

	validateStructure(fn, r)
	validateCFG(fn, r)
	if preDestruction {
		validateSSAForm(fn, r)
		validatePhis(fn, r)
	} else {
		validateNoPhis(fn, r)
	}
	validateTypes(fn, r)
	validateUnusedAndUnreachable(fn, r)

	return r
}

func validateStructure(fn *Function, r *ValidationResult) {
	if len(fn.Blocks) == 0 {
		r.addError(ValidationError(ErrMissingTerminator, fmt.Sprintf("function %q has no blocks", fn.Name), Span{}))
		return
	}
	if _, ok := fn.Blocks[fn.EntryBlock]; !ok {
		r.addError(ValidationError(ErrMissingTerminator, fmt.Sprintf("function %q: entry block %s does not exist", fn.Name, fn.EntryBlock), Span{}))
	}
	for _, id := range fn.BlockOrder() {
		block := fn.Blocks[id]
		if block.Terminator == nil {
			r.addError(ValidationError(ErrMissingTerminator,
				fmt.Sprintf("block %s in function %q has no terminator", id, fn.Name), Span{}))
		}
	}
}

// validateCFG checks terminator targets exist, bidirectional pred/succ
// consistency, and that every successor-implied edge matches the
// terminator's own target list.
func validateCFG(fn *Function, r *ValidationResult) {
	for _, id := range fn.BlockOrder() {
		block := fn.Blocks[id]

		if block.Terminator != nil {
			for _, target := range block.Terminator.TargetBlocks() {
				if _, ok := fn.Blocks[target]; !ok {
					r.addError(ValidationError(ErrDanglingEdge,
						fmt.Sprintf("block %s terminator targets nonexistent block %s", id, target), Span{}))
					continue
				}
				if !fn.Blocks[target].HasPred(id) {
					r.addError(ValidationError(ErrDanglingEdge,
						fmt.Sprintf("block %s -> %s: terminator target missing from successor's pred list", id, target), Span{}))
				}
			}
		}

		for _, succ := range block.Succs {
			s, ok := fn.Blocks[succ]
			if !ok {
				r.addError(ValidationError(ErrDanglingEdge,
					fmt.Sprintf("block %s has successor %s which does not exist", id, succ), Span{}))
				continue
			}
			if !s.HasPred(id) {
				r.addError(ValidationError(ErrDanglingEdge,
					fmt.Sprintf("block %s -> %s: succ recorded without matching pred", id, succ), Span{}))
			}
		}
		for _, pred := range block.Preds {
			p, ok := fn.Blocks[pred]
			if !ok {
				r.addError(ValidationError(ErrDanglingEdge,
					fmt.Sprintf("block %s has predecessor %s which does not exist", id, pred), Span{}))
				continue
			}
			if !hasSucc(p, id) {
				r.addError(ValidationError(ErrDanglingEdge,
					fmt.Sprintf("block %s -> %s: pred recorded without matching succ", pred, id), Span{}))
			}
		}
	}
}

func hasSucc(b *BasicBlock, id BlockId) bool {
	for _, s := range b.Succs {
		if s == id {
			return true
		}
	}
	return false
}

// validateSSAForm enforces, in pre-destruction mode, single definition and
// that every used operand is defined somewhere in the function or is a
// parameter. The position of a definition relative to its uses is not
// checked.
func validateSSAForm(fn *Function, r *ValidationResult) {
	definedAt := make(map[ValueId]BlockId)
	for _, id := range fn.BlockOrder() {
		block := fn.Blocks[id]
		for _, instr := range block.Instructions {
			for _, dest := range instr.Destinations() {
				if other, seen := definedAt[dest]; seen {
					r.addError(ValidationError(ErrUseBeforeDef,
						fmt.Sprintf("value %s defined in both %s and %s", dest, other, id), instr.Span()))
					continue
				}
				definedAt[dest] = id
			}
		}
	}

	for _, p := range fn.Parameters {
		definedAt[p] = fn.EntryBlock
	}

	for _, id := range fn.BlockOrder() {
		block := fn.Blocks[id]
		for _, instr := range block.Instructions {
			for _, used := range instr.UsedValues() {
				if !used.IsOperand() {
					continue
				}
				if _, ok := definedAt[used.Operand()]; !ok {
					r.addError(ValidationError(ErrUseBeforeDef,
						fmt.Sprintf("use of undefined value %s in block %s", used.Operand(), id), instr.Span()))
				}
			}
		}
		if block.Terminator != nil {
			for _, used := range block.Terminator.UsedValues() {
				if !used.IsOperand() {
					continue
				}
				if _, ok := definedAt[used.Operand()]; !ok {
					r.addError(ValidationError(ErrUseBeforeDef,
						fmt.Sprintf("terminator of block %s uses undefined value %s", id, used.Operand()), Span{}))
				}
			}
		}
	}
}

// validatePhis enforces phi-first ordering and, for every sealed block,
// exactly-one-operand-per-predecessor with matching source blocks.
func validatePhis(fn *Function, r *ValidationResult) {
	for _, id := range fn.BlockOrder() {
		block := fn.Blocks[id]
		_, end := block.PhiRange()
		for i := end; i < len(block.Instructions); i++ {
			if _, isPhi := block.Instructions[i].(*Phi); isPhi {
				r.addError(ValidationError(ErrPhiNotLeading,
					fmt.Sprintf("block %s: phi instruction found after non-phi instructions", id), Span{}))
				break
			}
		}

		if !block.Sealed() {
			continue
		}
		for _, phi := range block.Phis() {
			if len(phi.Sources) != len(block.Preds) {
				r.addError(ValidationError(ErrPhiArityMismatch,
					fmt.Sprintf("block %s: phi %s has %d sources but block has %d predecessors",
						id, phi.Dest, len(phi.Sources), len(block.Preds)), Span{}))
				continue
			}
			seen := make(map[BlockId]bool, len(phi.Sources))
			for _, src := range phi.Sources {
				if !block.HasPred(src.Pred) {
					r.addError(ValidationError(ErrPhiArityMismatch,
						fmt.Sprintf("block %s: phi %s has a source from %s, which is not a predecessor", id, phi.Dest, src.Pred), Span{}))
				}
				seen[src.Pred] = true
			}
			for _, pred := range block.Preds {
				if !seen[pred] {
					r.addError(ValidationError(ErrPhiArityMismatch,
						fmt.Sprintf("block %s: phi %s is missing a source for predecessor %s", id, phi.Dest, pred), Span{}))
				}
			}
		}
	}
}

// validateNoPhis enforces the post-destruction invariant that no phi
// instructions remain anywhere in the function.
func validateNoPhis(fn *Function, r *ValidationResult) {
	for _, id := range fn.BlockOrder() {
		for _, instr := range fn.Blocks[id].Instructions {
			if _, isPhi := instr.(*Phi); isPhi {
				r.addError(ValidationError(ErrPhiAfterDestruct,
					fmt.Sprintf("block %s still contains a phi after SSA destruction", id), instr.Span()))
			}
		}
	}
}

// validateTypes checks operand/result type rules for every instruction
// whose operand types are statically known, plus aggregate-specific
// bounds (tuple index arity, struct field existence).
func validateTypes(fn *Function, r *ValidationResult) {
	typeOf := func(v Value) (MirType, bool) {
		if v.IsLiteral() {
			return v.Literal().Type(), true
		}
		if v.IsOperand() {
			return fn.TypeOf(v.Operand())
		}
		return nil, false
	}

	for _, id := range fn.BlockOrder() {
		block := fn.Blocks[id]
		for _, instr := range block.Instructions {
			switch in := instr.(type) {
			case *Binary:
				lt, lok := typeOf(in.L)
				rt, rok := typeOf(in.R)
				if lok && rok && !TypesEqual(lt, rt) {
					r.addError(ValidationError(ErrTypeMismatch,
						fmt.Sprintf("binary %s operand type mismatch: %s vs %s", in.Op, lt.String(), rt.String()), in.Span()))
				}
			case *ExtractTupleElement:
				if srcTy, ok := typeOf(in.Src); ok {
					if tup, isTuple := srcTy.(TupleType); isTuple {
						if in.Index < 0 || in.Index >= len(tup.Elems) {
							r.addError(ValidationError(ErrTypeMismatch,
								fmt.Sprintf("extracttuple index %d out of range for tuple of arity %d", in.Index, len(tup.Elems)), in.Span()))
						}
					}
				}
			case *ExtractStructField:
				if srcTy, ok := typeOf(in.Src); ok {
					if st, isStruct := srcTy.(StructType); isStruct {
						if _, ok := st.FieldIndex(in.Field); !ok {
							r.addError(ValidationError(ErrTypeMismatch,
								fmt.Sprintf("struct %s has no field %q", st.Name, in.Field), in.Span()))
						}
					}
				}
			case *InsertTuple:
				if in.Index < 0 || in.Index >= len(in.Ty.Elems) {
					r.addError(ValidationError(ErrTypeMismatch,
						fmt.Sprintf("inserttuple index %d out of range for tuple of arity %d", in.Index, len(in.Ty.Elems)), in.Span()))
				}
			case *InsertField:
				if _, ok := in.Ty.FieldIndex(in.Field); !ok {
					r.addError(ValidationError(ErrTypeMismatch,
						fmt.Sprintf("struct %s has no field %q", in.Ty.Name, in.Field), in.Span()))
				}
			case *MakeTuple:
				if len(in.Elems) != len(in.Ty.Elems) {
					r.addError(ValidationError(ErrTypeMismatch,
						fmt.Sprintf("maketuple supplies %d elements for a %d-element tuple type", len(in.Elems), len(in.Ty.Elems)), in.Span()))
				}
			case *MakeStruct:
				if len(in.Fields) != len(in.Ty.Fields) {
					r.addError(ValidationError(ErrTypeMismatch,
						fmt.Sprintf("makestruct supplies %d fields for struct %s with %d fields", len(in.Fields), in.Ty.Name, len(in.Ty.Fields)), in.Span()))
				}
			}
		}
	}
}

// validateUnusedAndUnreachable produces warnings (never errors): defined
// values that are never read, and blocks unreachable from the entry.
func validateUnusedAndUnreachable(fn *Function, r *ValidationResult) {
	used := make(map[ValueId]bool)
	markUsed := func(v Value) {
		if v.IsOperand() {
			used[v.Operand()] = true
		}
	}
	for _, id := range fn.BlockOrder() {
		block := fn.Blocks[id]
		for _, instr := range block.Instructions {
			for _, v := range instr.UsedValues() {
				markUsed(v)
			}
		}
		if block.Terminator != nil {
			for _, v := range block.Terminator.UsedValues() {
				markUsed(v)
			}
		}
	}
	for _, r2 := range fn.ReturnValues {
		used[r2] = true
	}
	for _, id := range fn.BlockOrder() {
		for _, instr := range fn.Blocks[id].Instructions {
			for _, dest := range instr.Destinations() {
				if !used[dest] {
					r.addWarning(ValidationWarning("", fmt.Sprintf("value %s is defined but never used", dest), instr.Span()))
				}
			}
		}
	}

	reachable := map[BlockId]bool{fn.EntryBlock: true}
	worklist := []BlockId{fn.EntryBlock}
	for len(worklist) > 0 {
		cur := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		block := fn.Blocks[cur]
		if block == nil {
			continue
		}
		for _, succ := range block.Succs {
			if !reachable[succ] {
				reachable[succ] = true
				worklist = append(worklist, succ)
			}
		}
	}
	for _, id := range fn.BlockOrder() {
		if !reachable[id] {
			r.addWarning(ValidationWarning("", fmt.Sprintf("block %s is unreachable from the entry", id), Span{}))
		}
	}
}
