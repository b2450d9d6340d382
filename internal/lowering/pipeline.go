package lowering

import (
	"context"
	"os"

	"feltmir/internal/mir"
	"feltmir/internal/mir/source"
)

// LowerProgram lowers every function in src independently: a failure in
// one function excludes only that function, per-function errors are
// collected under their function's name, and the rest of the program
// continues lowering.
func LowerProgram(src *source.Program, tq source.TypeQuery) (*mir.Module, map[string][]*mir.MIRError) {
	mod := mir.NewModule(src.Name)
	errs := make(map[string][]*mir.MIRError)
	for _, fn := range src.Functions {
		lowered, fnErrs := LowerFunction(fn, tq)
		mod.AddFunction(lowered)
		if len(fnErrs) > 0 {
			errs[fn.Name] = fnErrs
		}
	}
	return mod, errs
}

// Compile runs the full MIR pipeline: lowering, the standard
// optimization pipeline (fanned out across valid functions, which are
// independent of each other), SSA destruction, and post-destruction
// validation.
// It stops short of handing the module to a Backend — that remains the
// caller's choice of target.
func Compile(ctx context.Context, src *source.Program, tq source.TypeQuery, cfg mir.PipelineConfig) (*mir.Module, map[string][]*mir.MIRError, error) {
	mod, lowerErrs := LowerProgram(src, tq)
	reporter := mir.NewReporter(cfg, os.Stderr)

	// Aggregate MIR off: rewrite value-based aggregates into memory form
	// up front. The rewrite preserves SSA (every destination is still
	// defined exactly once, by the reloading Load), so the standard
	// pipeline runs unchanged — the memory-gated passes simply see a
	// function that now uses memory.
	if !cfg.AggregateMIR {
		late := &mir.LateAggregateLowering{}
		for _, fn := range mod.Valid() {
			late.Run(fn)
		}
	}

	pm := mir.StandardPipeline(cfg)
	if err := mod.RunPipeline(ctx, pm, cfg); err != nil {
		return mod, lowerErrs, err
	}

	// Stats accumulate across every function the shared PassManager ran
	// over, so they are reported once for the whole module.
	reporter.ReportPassStats(mod.Name, pm.Stats)

	for _, fn := range mod.Valid() {
		pre := mir.Validate(fn, true)
		reporter.ReportValidation(fn.Name, pre)
		if !pre.OK() {
			lowerErrs[fn.Name] = append(lowerErrs[fn.Name], pre.Errors...)
			fn.Invalid = true
			continue
		}
		mir.DestructSSA(fn)
		post := mir.Validate(fn, false)
		reporter.ReportValidation(fn.Name, post)
		if !post.OK() {
			lowerErrs[fn.Name] = append(lowerErrs[fn.Name], post.Errors...)
			fn.Invalid = true
			continue
		}
		reporter.DumpFunction("post-destruction", fn)
	}

	return mod, lowerErrs, nil
}
