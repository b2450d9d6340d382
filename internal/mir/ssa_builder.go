package mir

// SSABuilder implements the Braun-Buchwald-Hack on-the-fly SSA
// construction algorithm: writeVariable/readVariable/sealBlock maintain
// per-(DefinitionId, BlockId) current-value bindings, an incomplete-phi
// table for blocks whose predecessor set is not yet final, and trivial
// phi removal. Construction is strictly single-threaded and deterministic:
// iteration over a block's predecessors always uses block.Preds' stable
// insertion order.
type SSABuilder struct {
	fn *Function

	currentDef     map[defKey]ValueId
	incompletePhis map[BlockId]map[DefinitionId]ValueId
	sealed         map[BlockId]bool

	// phiBlock maps a phi's destination ValueId back to the block that
	// owns it, needed by tryRemoveTrivialPhi to locate and delete it.
	phiBlock map[ValueId]BlockId
	// phiUsers tracks, for each phi destination, which other phi
	// destinations use it as a source — needed to recursively retry
	// simplification of users when a phi is proven trivial.
	phiUsers map[ValueId]map[ValueId]bool

	// defTypes remembers the MirType of each DefinitionId once a concrete
	// (non-phi) value has been written for it, so that a freshly created
	// phi can be given its real type immediately instead of waiting on
	// best-effort inference from its operands.
	defTypes map[DefinitionId]MirType
}

type defKey struct {
	def   DefinitionId
	block BlockId
}

func NewSSABuilder(fn *Function) *SSABuilder {
	return &SSABuilder{
		fn:             fn,
		currentDef:     make(map[defKey]ValueId),
		incompletePhis: make(map[BlockId]map[DefinitionId]ValueId),
		sealed:         make(map[BlockId]bool),
		phiBlock:       make(map[ValueId]BlockId),
		phiUsers:       make(map[ValueId]map[ValueId]bool),
		defTypes:       make(map[DefinitionId]MirType),
	}
}

func (s *SSABuilder) IsSealed(block BlockId) bool { return s.sealed[block] }

// WriteVariable records value as the current SSA value of var within
// block.
func (s *SSABuilder) WriteVariable(v DefinitionId, block BlockId, value ValueId) {
	s.currentDef[defKey{v, block}] = value
	if _, isPhi := s.phiBlock[value]; !isPhi {
		if ty, ok := s.fn.ValueTypes[value]; ok {
			if _, unknown := ty.(UnknownType); !unknown {
				s.defTypes[v] = ty
			}
		}
	}
}

// ReadVariable returns the current SSA value of var visible at the end of
// block, recursing through predecessors (and inserting phis) if no local
// definition exists yet.
func (s *SSABuilder) ReadVariable(v DefinitionId, block BlockId) ValueId {
	if val, ok := s.currentDef[defKey{v, block}]; ok {
		return val
	}
	return s.readVariableRecursive(v, block)
}

func (s *SSABuilder) readVariableRecursive(v DefinitionId, block BlockId) ValueId {
	var value ValueId
	ty := s.phiType(v)

	if !s.sealed[block] {
		// Predecessor set not final yet: leave an incomplete phi to be
		// resolved when the block is sealed.
		value = s.fn.NewPhi(block, ty)
		s.phiBlock[value] = block
		s.recordIncompletePhi(block, v, value)
	} else if preds := s.fn.Blocks[block].Preds; len(preds) == 1 {
		value = s.ReadVariable(v, preds[0])
	} else {
		value = s.fn.NewPhi(block, ty)
		s.phiBlock[value] = block
		// Write before recursing so that a cycle through this variable
		// resolves back to this same phi instead of infinitely recursing.
		s.WriteVariable(v, block, value)
		value = s.addPhiOperands(v, value)
	}

	s.WriteVariable(v, block, value)
	return value
}

func (s *SSABuilder) phiType(v DefinitionId) MirType {
	if ty, ok := s.defTypes[v]; ok {
		return ty
	}
	return UnknownType{}
}

func (s *SSABuilder) recordIncompletePhi(block BlockId, v DefinitionId, phi ValueId) {
	m, ok := s.incompletePhis[block]
	if !ok {
		m = make(map[DefinitionId]ValueId)
		s.incompletePhis[block] = m
	}
	m[v] = phi
}

// addPhiOperands fills in phi's sources from every predecessor of its
// block, then attempts trivial-phi removal.
func (s *SSABuilder) addPhiOperands(v DefinitionId, phi ValueId) ValueId {
	block := s.phiBlock[phi]
	instr := s.phiInstr(phi)
	for _, pred := range s.fn.Blocks[block].Preds {
		val := s.ReadVariable(v, pred)
		instr.Sources = append(instr.Sources, PhiSource{Pred: pred, Value: OperandValue(val)})
		s.recordPhiUser(val, phi)
		if _, isUnknown := instr.Ty.(UnknownType); isUnknown {
			if valTy, ok := s.fn.ValueTypes[val]; ok {
				if _, stillUnknown := valTy.(UnknownType); !stillUnknown {
					instr.Ty = valTy
					s.fn.ValueTypes[phi] = valTy
				}
			}
		}
	}
	return s.tryRemoveTrivialPhi(phi)
}

func (s *SSABuilder) recordPhiUser(used, user ValueId) {
	if _, isPhi := s.phiBlock[used]; !isPhi {
		return
	}
	m, ok := s.phiUsers[used]
	if !ok {
		m = make(map[ValueId]bool)
		s.phiUsers[used] = m
	}
	m[user] = true
}

func (s *SSABuilder) phiInstr(dest ValueId) *Phi {
	block := s.fn.Blocks[s.phiBlock[dest]]
	for _, instr := range block.Instructions {
		if p, ok := instr.(*Phi); ok && p.Dest == dest {
			return p
		}
	}
	panic("mir: phi value not found in its recorded block")
}

// tryRemoveTrivialPhi deletes phi and replaces all its uses with its
// single distinct non-self operand, if one exists (self-references never
// disqualify triviality). If the phi has no operands at all (unreachable
// block, or the function's start block), it is replaced by a fresh undef
// placeholder of its own type instead. Deleting a phi may make one of its
// users trivial in turn, so those are retried recursively.
func (s *SSABuilder) tryRemoveTrivialPhi(phi ValueId) ValueId {
	block := s.phiBlock[phi]
	instr := s.phiInstr(phi)

	var same ValueId
	haveSame := false
	for _, src := range instr.Sources {
		if src.Value.IsOperand() && src.Value.Operand() == phi {
			continue // self-reference: ignore
		}
		opVal, isOperand := src.Value, src.Value.IsOperand()
		if haveSame && (!isOperand || opVal.Operand() != same) {
			// More than one distinct operand: not trivial.
			return phi
		}
		if isOperand {
			same = opVal.Operand()
			haveSame = true
		} else {
			// A literal operand also disqualifies trivial-via-operand
			// unless it's the only source; treat non-uniform literal vs
			// operand mixes as non-trivial too, conservatively.
			return phi
		}
	}

	if !haveSame {
		// No usable operand at all: undef of the phi's type.
		same = s.fn.NewValue(instr.Ty)
		s.fn.Blocks[block].Push(&Assign{Dest: same, Src: LiteralValue(undefLiteral(instr.Ty)), Ty: instr.Ty})
	}

	users := s.phiUsers[phi]
	delete(s.phiUsers, phi)
	delete(s.phiBlock, phi)
	s.fn.RemoveInstruction(block, instr)
	s.fn.ReplaceAllUses(phi, same)

	// Fix up any cached current-def entries that still point at the
	// deleted phi so later reads see the replacement.
	for k, v := range s.currentDef {
		if v == phi {
			s.currentDef[k] = same
		}
	}

	for user := range users {
		if user == phi {
			continue
		}
		if _, stillPhi := s.phiBlock[user]; stillPhi {
			s.tryRemoveTrivialPhi(user)
		}
	}

	return same
}

// undefLiteral returns a zero-value literal used to materialize a phi
// that turned out to have no real operand (e.g. the entry block, or an
// unreachable block seen only during construction).
func undefLiteral(ty MirType) Literal {
	switch ty.(type) {
	case FeltType:
		return NewFelt(0)
	case U32Type:
		return NewU32(0)
	case BoolType:
		return NewBool(false)
	default:
		return NewUnit()
	}
}

// SealBlock marks block's predecessor set as final, resolving every
// incomplete phi recorded for it.
func (s *SSABuilder) SealBlock(block BlockId) {
	for v, phi := range s.incompletePhis[block] {
		resolved := s.addPhiOperands(v, phi)
		if resolved != phi {
			s.WriteVariable(v, block, resolved)
		}
	}
	delete(s.incompletePhis, block)
	s.sealed[block] = true
	s.fn.Blocks[block].Seal()
}
