package mir

import (
	"context"
	"os"
	"runtime"
	"strconv"

	"golang.org/x/sync/errgroup"
)

// Module owns every Function produced by lowering a compilation unit.
type Module struct {
	Name      string
	Functions []*Function
}

func NewModule(name string) *Module { return &Module{Name: name} }

func (m *Module) AddFunction(f *Function) { m.Functions = append(m.Functions, f) }

// Valid returns the functions that lowered successfully, in original
// order — the set a Backend actually receives.
func (m *Module) Valid() []*Function {
	out := make([]*Function, 0, len(m.Functions))
	for _, f := range m.Functions {
		if !f.Invalid {
			out = append(out, f)
		}
	}
	return out
}

// PipelineConfig configures both the standard optimization pipeline and
// whatever backend-specific pass group runs after it.
type PipelineConfig struct {
	OptimizationLevel          int // 0..3
	DebugInfo                  bool
	Options                    map[string]string
	ForceLateAggregateLowering bool

	// AggregateMIR, when false, disables value-based aggregate lowering
	// (MakeTuple/MakeStruct/Extract*/Insert*) in favor of always lowering
	// aggregates through memory, for round-trip equivalence testing.
	AggregateMIR bool

	VerboseDiagnostics bool
	PassTiming         bool
	DumpMIR            bool

	// MaxParallelism bounds how many functions RunPipeline processes
	// concurrently. Functions are independent of each other; 0 means
	// runtime.GOMAXPROCS(0).
	MaxParallelism int

	MaxFixedPointIterations int
}

func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		OptimizationLevel:       2,
		AggregateMIR:            true,
		MaxFixedPointIterations: 10,
	}
}

// envBool parses the "1"/"true" convention every optional environment
// override follows.
func envBool(name string, fallback bool) bool {
	v, ok := os.LookupEnv(name)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return v == "1"
	}
	return b
}

// ConfigFromEnv starts from DefaultPipelineConfig and applies the
// environment-variable overrides: aggregate-MIR on/off, late aggregate
// lowering, verbose pass diagnostics, pass timing, MIR dumping.
func ConfigFromEnv() PipelineConfig {
	cfg := DefaultPipelineConfig()
	cfg.AggregateMIR = envBool("MIR_AGGREGATE", cfg.AggregateMIR)
	cfg.ForceLateAggregateLowering = envBool("MIR_LATE_AGGREGATE_LOWERING", cfg.ForceLateAggregateLowering)
	cfg.VerboseDiagnostics = envBool("MIR_VERBOSE", cfg.VerboseDiagnostics)
	cfg.PassTiming = envBool("MIR_PASS_TIMING", cfg.PassTiming)
	cfg.DumpMIR = envBool("MIR_DUMP", cfg.DumpMIR)
	return cfg
}

// BackendInfo describes a code-generation backend's identity and the MIR
// features it requires or can optionally consume.
type BackendInfo struct {
	Name               string
	Version            string
	RequiredFeatures   []string
	OptionalFeatures   []string
}

// Backend is the contract the finished, validated, non-SSA MIR module is
// handed to. The core never names its target: a backend only declares
// required features and may request LateAggregateLowering if it cannot
// consume value-based aggregates directly.
type Backend interface {
	Info() BackendInfo
	ValidateModule(m *Module) *ValidationResult
	BackendPasses() *PassManager
	GenerateCode(m *Module, cfg PipelineConfig) ([]byte, error)
}

// NeedsLateAggregateLowering reports whether backend requires value-based
// aggregates to be eliminated before GenerateCode runs: either cfg forces
// the override, or the backend declares at least one feature (required
// or optional) and none of its declared features is "aggregates". A
// backend that declares no features at all is treated as able to consume
// aggregates.
func NeedsLateAggregateLowering(backend Backend, cfg PipelineConfig) bool {
	if cfg.ForceLateAggregateLowering {
		return true
	}
	info := backend.Info()
	for _, f := range info.OptionalFeatures {
		if f == "aggregates" {
			return false
		}
	}
	for _, f := range info.RequiredFeatures {
		if f == "aggregates" {
			return false
		}
	}
	return len(info.RequiredFeatures) > 0 || len(info.OptionalFeatures) > 0
}

// RunBackendStage applies LateAggregateLowering (if needed), then the
// backend's own post-standard-pipeline passes, to every valid function —
// the last stage before GenerateCode.
func (m *Module) RunBackendStage(backend Backend, cfg PipelineConfig) {
	late := NeedsLateAggregateLowering(backend, cfg)
	bp := backend.BackendPasses()
	for _, fn := range m.Valid() {
		if late {
			(&LateAggregateLowering{}).Run(fn)
		}
		bp.Run(fn)
	}
}

// RunPipeline runs pm over every valid function in m. Independent
// functions run concurrently, bounded by cfg.MaxParallelism. Backend
// passes and LateAggregateLowering are not run here (see
// RunBackendStage), and cancellation of ctx is not observed.
func (m *Module) RunPipeline(ctx context.Context, pm *PassManager, cfg PipelineConfig) error {
	limit := cfg.MaxParallelism
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, fn := range m.Valid() {
		fn := fn
		g.Go(func() error {
			pm.Run(fn)
			return nil
		})
	}
	return g.Wait()
}
