package mir

// ConstantFolding evaluates instructions whose operands are all
// Literal: felt arithmetic folds modulo 2^31-1 (division
// via modular inverse, never folding a division by zero), u32 arithmetic
// folds with native wrapping/shift semantics (division/remainder by
// zero also never folds), boolean ops and like-typed comparisons
// evaluate directly.
type ConstantFolding struct{}

func (*ConstantFolding) Name() string        { return "ConstantFolding" }
func (*ConstantFolding) Description() string { return "evaluates instructions with all-literal operands" }

func (p *ConstantFolding) Run(fn *Function) bool {
	changed := false
	for _, id := range fn.BlockOrder() {
		block := fn.Blocks[id]
		for idx, instr := range block.Instructions {
			if repl, ok := p.fold(instr); ok {
				block.Instructions[idx] = repl
				changed = true
			}
		}
	}
	return changed
}

func (p *ConstantFolding) fold(instr Instruction) (Instruction, bool) {
	switch in := instr.(type) {
	case *Binary:
		return p.foldBinary(in)
	case *Unary:
		return p.foldUnary(in)
	case *Cast:
		return p.foldCast(in)
	}
	return nil, false
}

func (p *ConstantFolding) foldBinary(in *Binary) (Instruction, bool) {
	if !in.L.IsLiteral() || !in.R.IsLiteral() {
		return nil, false
	}
	l, r := in.L.Literal(), in.R.Literal()

	switch {
	case in.Op.IsFelt():
		return p.foldFelt(in, l, r)
	case in.Op.IsU32():
		return p.foldU32(in, l, r)
	case in.Op.IsBoolLogic():
		return p.foldBoolLogic(in, l, r)
	}
	return nil, false
}

func (p *ConstantFolding) foldFelt(in *Binary, l, r Literal) (Instruction, bool) {
	a, b := l.FeltValue(), r.FeltValue()
	switch in.Op {
	case OpAdd:
		return asLiteralAssign(in.Dest, NewFelt(uint64(feltAdd(a, b))), in.Ty), true
	case OpSub:
		return asLiteralAssign(in.Dest, NewFelt(uint64(feltSub(a, b))), in.Ty), true
	case OpMul:
		return asLiteralAssign(in.Dest, NewFelt(uint64(feltMul(a, b))), in.Ty), true
	case OpDiv:
		q, ok := feltDiv(a, b)
		if !ok {
			return nil, false
		}
		return asLiteralAssign(in.Dest, NewFelt(uint64(q)), in.Ty), true
	case OpEq:
		return asLiteralAssign(in.Dest, NewBool(a == b), in.Ty), true
	case OpNeq:
		return asLiteralAssign(in.Dest, NewBool(a != b), in.Ty), true
	case OpLess:
		return asLiteralAssign(in.Dest, NewBool(a < b), in.Ty), true
	case OpLessEq:
		return asLiteralAssign(in.Dest, NewBool(a <= b), in.Ty), true
	case OpGreater:
		return asLiteralAssign(in.Dest, NewBool(a > b), in.Ty), true
	case OpGreaterEq:
		return asLiteralAssign(in.Dest, NewBool(a >= b), in.Ty), true
	}
	return nil, false
}

func (p *ConstantFolding) foldU32(in *Binary, l, r Literal) (Instruction, bool) {
	a, b := l.U32Value(), r.U32Value()
	switch in.Op {
	case OpU32Add:
		return asLiteralAssign(in.Dest, NewU32(a+b), in.Ty), true
	case OpU32Sub:
		return asLiteralAssign(in.Dest, NewU32(a-b), in.Ty), true
	case OpU32Mul:
		return asLiteralAssign(in.Dest, NewU32(a*b), in.Ty), true
	case OpU32Div:
		if b == 0 {
			return nil, false
		}
		return asLiteralAssign(in.Dest, NewU32(a/b), in.Ty), true
	case OpU32Rem:
		if b == 0 {
			return nil, false
		}
		return asLiteralAssign(in.Dest, NewU32(a%b), in.Ty), true
	case OpU32And:
		return asLiteralAssign(in.Dest, NewU32(a&b), in.Ty), true
	case OpU32Or:
		return asLiteralAssign(in.Dest, NewU32(a|b), in.Ty), true
	case OpU32Xor:
		return asLiteralAssign(in.Dest, NewU32(a^b), in.Ty), true
	case OpU32Shl:
		return asLiteralAssign(in.Dest, NewU32(a<<(b&31)), in.Ty), true
	case OpU32Shr:
		return asLiteralAssign(in.Dest, NewU32(a>>(b&31)), in.Ty), true
	case OpU32Eq:
		return asLiteralAssign(in.Dest, NewBool(a == b), in.Ty), true
	case OpU32Neq:
		return asLiteralAssign(in.Dest, NewBool(a != b), in.Ty), true
	case OpU32Less:
		return asLiteralAssign(in.Dest, NewBool(a < b), in.Ty), true
	case OpU32LessEq:
		return asLiteralAssign(in.Dest, NewBool(a <= b), in.Ty), true
	case OpU32Greater:
		return asLiteralAssign(in.Dest, NewBool(a > b), in.Ty), true
	case OpU32GreaterEq:
		return asLiteralAssign(in.Dest, NewBool(a >= b), in.Ty), true
	}
	return nil, false
}

func (p *ConstantFolding) foldBoolLogic(in *Binary, l, r Literal) (Instruction, bool) {
	a, b := l.BoolValue(), r.BoolValue()
	switch in.Op {
	case OpAnd:
		return asLiteralAssign(in.Dest, NewBool(a && b), in.Ty), true
	case OpOr:
		return asLiteralAssign(in.Dest, NewBool(a || b), in.Ty), true
	}
	return nil, false
}

func (p *ConstantFolding) foldUnary(in *Unary) (Instruction, bool) {
	if !in.Src.IsLiteral() {
		return nil, false
	}
	lit := in.Src.Literal()
	switch in.Op {
	case OpNot:
		return asLiteralAssign(in.Dest, NewBool(!lit.BoolValue()), in.Ty), true
	case OpNeg:
		switch lit.Kind {
		case LitFelt:
			return asLiteralAssign(in.Dest, NewFelt(uint64(feltSub(0, lit.FeltValue()))), in.Ty), true
		case LitU32:
			return asLiteralAssign(in.Dest, NewU32(-lit.U32Value()), in.Ty), true
		}
	}
	return nil, false
}

func (p *ConstantFolding) foldCast(in *Cast) (Instruction, bool) {
	if !in.Src.IsLiteral() {
		return nil, false
	}
	lit := in.Src.Literal()
	switch in.To.(type) {
	case FeltType:
		switch lit.Kind {
		case LitU32:
			return asLiteralAssign(in.Dest, NewFelt(uint64(lit.U32Value())), in.To), true
		}
	case U32Type:
		switch lit.Kind {
		case LitFelt:
			return asLiteralAssign(in.Dest, NewU32(uint32(lit.FeltValue())), in.To), true
		}
	}
	return nil, false
}
