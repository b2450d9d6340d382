package mir

import "strings"

// Terminator ends a basic block. Every block has exactly one.
type Terminator interface {
	TargetBlocks() []BlockId
	ReplaceTarget(old, new BlockId)
	UsedValues() []Value
	ReplaceValueUses(from, to ValueId)
	String() string
	isTerminator()
}

type Jump struct{ Target BlockId }

type If struct {
	Cond       Value
	Then, Else BlockId
}

// BranchCmp fuses a comparison with a branch, avoiding materializing the
// boolean result when it has no other use (see the FuseCmpBranch pass).
type BranchCmp struct {
	Op         BinaryOp
	L, R       Value
	Then, Else BlockId
}

type Return struct{ Values []Value }

type Unreachable struct{}

func (Jump) isTerminator()        {}
func (If) isTerminator()          {}
func (BranchCmp) isTerminator()   {}
func (Return) isTerminator()      {}
func (Unreachable) isTerminator() {}

func (j Jump) TargetBlocks() []BlockId { return []BlockId{j.Target} }
func (i If) TargetBlocks() []BlockId   { return []BlockId{i.Then, i.Else} }
func (b BranchCmp) TargetBlocks() []BlockId { return []BlockId{b.Then, b.Else} }
func (Return) TargetBlocks() []BlockId      { return nil }
func (Unreachable) TargetBlocks() []BlockId { return nil }

func (j *Jump) ReplaceTarget(old, new BlockId) {
	if j.Target == old {
		j.Target = new
	}
}
func (i *If) ReplaceTarget(old, new BlockId) {
	if i.Then == old {
		i.Then = new
	}
	if i.Else == old {
		i.Else = new
	}
}
func (b *BranchCmp) ReplaceTarget(old, new BlockId) {
	if b.Then == old {
		b.Then = new
	}
	if b.Else == old {
		b.Else = new
	}
}
func (*Return) ReplaceTarget(old, new BlockId)      {}
func (*Unreachable) ReplaceTarget(old, new BlockId) {}

func (j Jump) UsedValues() []Value { return nil }
func (i If) UsedValues() []Value   { return []Value{i.Cond} }
func (b BranchCmp) UsedValues() []Value { return []Value{b.L, b.R} }
func (r Return) UsedValues() []Value    { return append([]Value(nil), r.Values...) }
func (Unreachable) UsedValues() []Value { return nil }

func (*Jump) ReplaceValueUses(from, to ValueId) {}
func (i *If) ReplaceValueUses(from, to ValueId) {
	i.Cond = i.Cond.replaceIfOperand(from, to)
}
func (b *BranchCmp) ReplaceValueUses(from, to ValueId) {
	b.L = b.L.replaceIfOperand(from, to)
	b.R = b.R.replaceIfOperand(from, to)
}
func (r *Return) ReplaceValueUses(from, to ValueId) {
	for idx := range r.Values {
		r.Values[idx] = r.Values[idx].replaceIfOperand(from, to)
	}
}
func (*Unreachable) ReplaceValueUses(from, to ValueId) {}

func (j Jump) String() string { return "jump " + j.Target.String() }
func (i If) String() string {
	return "if " + i.Cond.String() + " then " + i.Then.String() + " else " + i.Else.String()
}
func (b BranchCmp) String() string {
	return "branchcmp " + b.Op.String() + " " + b.L.String() + " " + b.R.String() +
		" then " + b.Then.String() + " else " + b.Else.String()
}
func (r Return) String() string {
	parts := make([]string, len(r.Values))
	for idx, v := range r.Values {
		parts[idx] = v.String()
	}
	return "return " + strings.Join(parts, ", ")
}
func (Unreachable) String() string { return "unreachable" }
