package mir

// CFGBuilder owns a *Function and a cursor (CurrentBlock) and keeps
// terminators and edges consistent: every terminator is installed through
// Terminate, which always routes through Function.SetTerminatorWithEdges.
type CFGBuilder struct {
	Fn           *Function
	CurrentBlock BlockId
	terminated   map[BlockId]bool
}

func NewCFGBuilder(fn *Function) *CFGBuilder {
	return &CFGBuilder{Fn: fn, terminated: make(map[BlockId]bool)}
}

// SetBlock moves the cursor to an existing block.
func (c *CFGBuilder) SetBlock(id BlockId) { c.CurrentBlock = id }

// NewBlock allocates a fresh block without moving the cursor.
func (c *CFGBuilder) NewBlock(name string) BlockId {
	return c.Fn.NewBlock(name).ID
}

// IsTerminated reports whether CurrentBlock already has a terminator.
func (c *CFGBuilder) IsTerminated() bool {
	return c.terminated[c.CurrentBlock]
}

// Terminate installs term on CurrentBlock. Panics if the block is already
// terminated — every block gets exactly one terminator. A terminated
// block has no statements left to lower, so it is also marked filled.
func (c *CFGBuilder) Terminate(term Terminator) {
	if c.terminated[c.CurrentBlock] {
		panic("mir: block " + c.CurrentBlock.String() + " already terminated")
	}
	c.Fn.SetTerminatorWithEdges(c.CurrentBlock, term)
	c.terminated[c.CurrentBlock] = true
	c.Fn.Blocks[c.CurrentBlock].MarkFilled()
}

// IfSkeleton creates the then/else/merge triple for an if-expression and
// returns their ids with debug names preserved for dumps.
type IfSkeleton struct {
	Then, Else, Merge BlockId
}

func (c *CFGBuilder) NewIfSkeleton() IfSkeleton {
	return IfSkeleton{
		Then:  c.NewBlock("then"),
		Else:  c.NewBlock("else"),
		Merge: c.NewBlock("merge"),
	}
}

// LoopSkeleton creates the header/body/exit triple for a while-loop.
type LoopSkeleton struct {
	Header, Body, Exit BlockId
}

func (c *CFGBuilder) NewLoopSkeleton() LoopSkeleton {
	return LoopSkeleton{
		Header: c.NewBlock("loop_header"),
		Body:   c.NewBlock("loop_body"),
		Exit:   c.NewBlock("loop_exit"),
	}
}
