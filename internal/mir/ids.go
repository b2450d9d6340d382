// Package mir implements the middle-end intermediate representation: a
// SSA-based instruction stream lowered from a typed AST, optimized by a
// fixed-point pass pipeline, and rewritten into non-SSA form before being
// handed to a code-generation backend.
package mir

import "fmt"

// ValueId identifies a value produced by exactly one instruction while the
// function is in SSA form. ValueIds are allocated by a Function and are
// never reused.
type ValueId int

func (v ValueId) String() string { return fmt.Sprintf("%%%d", int(v)) }

// BlockId identifies a basic block within a function. BlockIds are dense
// and allocated by the function's builder; blocks are never deleted during
// lowering (DeadCodeElimination removes unreachable ones later).
type BlockId int

func (b BlockId) String() string { return fmt.Sprintf("b%d", int(b)) }

// FunctionId identifies a function within a Module.
type FunctionId int

// DefinitionId is the stable semantic identity of a source-level variable,
// assigned by the semantic analyzer. The SSA builder never tracks
// variables by name — only by DefinitionId — so shadowing and scoping are
// the front end's problem, not the MIR's.
type DefinitionId int

const invalidValueId ValueId = -1
