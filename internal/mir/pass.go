package mir

import (
	"sync"
	"time"
)

// Pass is a single optimization transform over a function. Run reports
// whether it changed anything — the PassManager's fixed-point groups use
// this to detect convergence.
type Pass interface {
	Name() string
	Description() string
	Run(fn *Function) bool
}

// PassStat records one pass invocation's before/after statistics, used
// for optional structured diagnostics gated by PipelineConfig.PassTiming.
type PassStat struct {
	Name               string
	Duration           time.Duration
	InstructionsBefore int
	InstructionsAfter  int
	BlocksBefore       int
	BlocksAfter        int
	Changed            bool
}

// PassGroup is either a single-shot stage (passes run once, in order) or
// a fixed-point stage (passes run repeatedly until none changes
// anything or MaxIterations is reached).
type PassGroup struct {
	Passes      []Pass
	FixedPoint  bool
	MaxIterations int
}

// PassManager runs an ordered sequence of PassGroups over one function,
// recording per-pass statistics when requested. A single PassManager may
// be shared across the per-function goroutines RunPipeline spawns — the
// groups themselves are read-only during Run, so only the stats list
// needs the mutex.
type PassManager struct {
	Groups []PassGroup
	Stats  []PassStat
	Timing bool

	statsMu sync.Mutex
}

func NewPassManager() *PassManager { return &PassManager{} }

func (pm *PassManager) AddSingleShot(passes ...Pass) {
	pm.Groups = append(pm.Groups, PassGroup{Passes: passes})
}

func (pm *PassManager) AddFixedPoint(maxIterations int, passes ...Pass) {
	if maxIterations <= 0 {
		maxIterations = 10
	}
	pm.Groups = append(pm.Groups, PassGroup{Passes: passes, FixedPoint: true, MaxIterations: maxIterations})
}

// Run executes every group in order against fn, recording statistics.
func (pm *PassManager) Run(fn *Function) {
	for _, group := range pm.Groups {
		if group.FixedPoint {
			pm.runFixedPoint(fn, group)
		} else {
			pm.runSingleShot(fn, group)
		}
	}
}

func (pm *PassManager) runSingleShot(fn *Function, group PassGroup) {
	for _, p := range group.Passes {
		pm.runOne(fn, p)
	}
}

func (pm *PassManager) runFixedPoint(fn *Function, group PassGroup) {
	max := group.MaxIterations
	if max <= 0 {
		max = 10
	}
	for iter := 0; iter < max; iter++ {
		changed := false
		for _, p := range group.Passes {
			if pm.runOne(fn, p) {
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

func (pm *PassManager) runOne(fn *Function, p Pass) bool {
	start := time.Now()
	instrBefore := fn.InstructionCount()
	blocksBefore := len(fn.Blocks)

	changed := p.Run(fn)

	if pm.Timing {
		pm.statsMu.Lock()
		defer pm.statsMu.Unlock()
		pm.Stats = append(pm.Stats, PassStat{
			Name:               p.Name(),
			Duration:           time.Since(start),
			InstructionsBefore: instrBefore,
			InstructionsAfter:  fn.InstructionCount(),
			BlocksBefore:       blocksBefore,
			BlocksAfter:        len(fn.Blocks),
			Changed:            changed,
		})
	}
	return changed
}

// StandardPipeline builds the standard optimization pipeline: a
// fixed-point group of the value-level passes, then the structural
// single-shot stages:
//
//	(ArithSimplify, ConstFold, CopyProp, LocalCSE)* fixed-point
//	  -> SimplifyBranches -> FuseCmpBranch -> SROA
//	  -> [if memory] Mem2Reg -> DCE
//
// SSA destruction and validation run outside the PassManager (they are
// not themselves Passes — destruction ends SSA form, and validation
// produces diagnostics rather than a transform).
func StandardPipeline(cfg PipelineConfig) *PassManager {
	pm := NewPassManager()
	pm.Timing = cfg.PassTiming

	maxIter := cfg.MaxFixedPointIterations
	if maxIter <= 0 {
		maxIter = 10
	}
	pm.AddFixedPoint(maxIter,
		&ArithmeticSimplify{},
		&ConstantFolding{},
		&CopyPropagation{},
		&LocalCSE{},
	)
	pm.AddSingleShot(&SimplifyBranches{})
	pm.AddSingleShot(&FuseCmpBranch{})
	pm.AddSingleShot(&SROA{})
	pm.AddSingleShot(&memoryGatedPass{inner: &Mem2Reg{}})
	pm.AddSingleShot(&DeadCodeElimination{})
	return pm
}

// memoryGatedPass runs inner only when the function actually uses
// memory (contains a FrameAlloc, Load, Store, or GetElementPtr).
type memoryGatedPass struct {
	inner Pass
}

func (m *memoryGatedPass) Name() string        { return m.inner.Name() }
func (m *memoryGatedPass) Description() string { return m.inner.Description() }
func (m *memoryGatedPass) Run(fn *Function) bool {
	if !fn.UsesMemory() {
		return false
	}
	return m.inner.Run(fn)
}
