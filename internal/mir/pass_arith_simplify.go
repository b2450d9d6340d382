package mir

// ArithmeticSimplify applies the per-instruction algebraic identities:
// additive/multiplicative identities, self-subtraction,
// boolean-logic identities, double negation, and reflexive comparisons.
// Each rewrite replaces the instruction in place with an Assign (or a
// literal Assign) carrying the same destination, so downstream uses
// never need to be touched.
type ArithmeticSimplify struct{}

func (*ArithmeticSimplify) Name() string { return "ArithmeticSimplify" }
func (*ArithmeticSimplify) Description() string {
	return "rewrites trivial algebraic and boolean identities"
}

func (p *ArithmeticSimplify) Run(fn *Function) bool {
	defInstr := indexDefinitions(fn)
	changed := false
	for _, id := range fn.BlockOrder() {
		block := fn.Blocks[id]
		for idx, instr := range block.Instructions {
			if repl, ok := p.simplify(instr, defInstr); ok {
				block.Instructions[idx] = repl
				changed = true
			}
		}
	}
	return changed
}

func indexDefinitions(fn *Function) map[ValueId]Instruction {
	m := make(map[ValueId]Instruction)
	for _, id := range fn.BlockOrder() {
		for _, instr := range fn.Blocks[id].Instructions {
			if dest, ok := instr.Destination(); ok {
				m[dest] = instr
			}
		}
	}
	return m
}

func zeroLiteralFor(ty MirType) (Literal, bool) {
	switch ty.(type) {
	case FeltType:
		return NewFelt(0), true
	case U32Type:
		return NewU32(0), true
	}
	return Literal{}, false
}

func oneLiteralFor(ty MirType) (Literal, bool) {
	switch ty.(type) {
	case FeltType:
		return NewFelt(1), true
	case U32Type:
		return NewU32(1), true
	}
	return Literal{}, false
}

func isLiteralEqualTo(v Value, want Literal, ok bool) bool {
	if !ok || !v.IsLiteral() {
		return false
	}
	return v.Literal().Equal(want)
}

// sameValue reports whether a and b are provably the same SSA value:
// identical operand ids, or literals comparing equal.
func sameValue(a, b Value) bool {
	if a.IsOperand() && b.IsOperand() {
		return a.Operand() == b.Operand()
	}
	if a.IsLiteral() && b.IsLiteral() {
		return a.Literal().Equal(b.Literal())
	}
	return false
}

func asAssign(dest ValueId, src Value, ty MirType) Instruction {
	return &Assign{Dest: dest, Src: src, Ty: ty}
}

func asLiteralAssign(dest ValueId, lit Literal, ty MirType) Instruction {
	return &Assign{Dest: dest, Src: LiteralValue(lit), Ty: ty}
}

func (p *ArithmeticSimplify) simplify(instr Instruction, defInstr map[ValueId]Instruction) (Instruction, bool) {
	switch in := instr.(type) {
	case *Binary:
		return p.simplifyBinary(in)
	case *Unary:
		return p.simplifyUnary(in, defInstr)
	}
	return nil, false
}

func (p *ArithmeticSimplify) simplifyBinary(in *Binary) (Instruction, bool) {
	zero, hasZero := zeroLiteralFor(in.Ty)
	one, hasOne := oneLiteralFor(in.Ty)

	switch in.Op {
	case OpAdd, OpU32Add:
		if isLiteralEqualTo(in.R, zero, hasZero) {
			return asAssign(in.Dest, in.L, in.Ty), true
		}
		if isLiteralEqualTo(in.L, zero, hasZero) {
			return asAssign(in.Dest, in.R, in.Ty), true
		}
	case OpSub, OpU32Sub:
		if isLiteralEqualTo(in.R, zero, hasZero) {
			return asAssign(in.Dest, in.L, in.Ty), true
		}
		if sameValue(in.L, in.R) && hasZero {
			return asLiteralAssign(in.Dest, zero, in.Ty), true
		}
	case OpMul, OpU32Mul:
		if isLiteralEqualTo(in.R, one, hasOne) {
			return asAssign(in.Dest, in.L, in.Ty), true
		}
		if isLiteralEqualTo(in.L, one, hasOne) {
			return asAssign(in.Dest, in.R, in.Ty), true
		}
		if (isLiteralEqualTo(in.R, zero, hasZero) || isLiteralEqualTo(in.L, zero, hasZero)) && hasZero {
			return asLiteralAssign(in.Dest, zero, in.Ty), true
		}
	case OpDiv, OpU32Div:
		if isLiteralEqualTo(in.R, one, hasOne) {
			return asAssign(in.Dest, in.L, in.Ty), true
		}
	case OpAnd:
		if isLiteralEqualTo(in.R, NewBool(true), true) {
			return asAssign(in.Dest, in.L, in.Ty), true
		}
		if isLiteralEqualTo(in.L, NewBool(true), true) {
			return asAssign(in.Dest, in.R, in.Ty), true
		}
		if isLiteralEqualTo(in.R, NewBool(false), true) || isLiteralEqualTo(in.L, NewBool(false), true) {
			return asLiteralAssign(in.Dest, NewBool(false), in.Ty), true
		}
	case OpOr:
		if isLiteralEqualTo(in.R, NewBool(false), true) {
			return asAssign(in.Dest, in.L, in.Ty), true
		}
		if isLiteralEqualTo(in.L, NewBool(false), true) {
			return asAssign(in.Dest, in.R, in.Ty), true
		}
		if isLiteralEqualTo(in.R, NewBool(true), true) || isLiteralEqualTo(in.L, NewBool(true), true) {
			return asLiteralAssign(in.Dest, NewBool(true), in.Ty), true
		}
	case OpEq, OpU32Eq:
		if sameValue(in.L, in.R) {
			return asLiteralAssign(in.Dest, NewBool(true), in.Ty), true
		}
	case OpNeq, OpU32Neq:
		if sameValue(in.L, in.R) {
			return asLiteralAssign(in.Dest, NewBool(false), in.Ty), true
		}
	case OpLess, OpU32Less:
		if sameValue(in.L, in.R) {
			return asLiteralAssign(in.Dest, NewBool(false), in.Ty), true
		}
	case OpLessEq, OpU32LessEq:
		if sameValue(in.L, in.R) {
			return asLiteralAssign(in.Dest, NewBool(true), in.Ty), true
		}
	}
	return nil, false
}

func (p *ArithmeticSimplify) simplifyUnary(in *Unary, defInstr map[ValueId]Instruction) (Instruction, bool) {
	if in.Op != OpNot || !in.Src.IsOperand() {
		return nil, false
	}
	producer, ok := defInstr[in.Src.Operand()]
	if !ok {
		return nil, false
	}
	inner, ok := producer.(*Unary)
	if !ok || inner.Op != OpNot {
		return nil, false
	}
	return asAssign(in.Dest, inner.Src, in.Ty), true
}
