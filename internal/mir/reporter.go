package mir

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
)

// Reporter renders validation results, pass statistics, and MIR dumps to
// a writer, gated by the PipelineConfig verbosity switches. Hard errors
// are always emitted; warnings, pass timing, and function dumps only
// appear when the corresponding flag (or its environment override) is
// set.
type Reporter struct {
	cfg PipelineConfig
	out io.Writer
}

func NewReporter(cfg PipelineConfig, out io.Writer) *Reporter {
	return &Reporter{cfg: cfg, out: out}
}

// ReportValidation emits every error in result, and — only when verbose
// diagnostics are on — every warning, each rendered through FormatError.
func (r *Reporter) ReportValidation(fnName string, result *ValidationResult) {
	if result == nil {
		return
	}
	if len(result.Errors) > 0 {
		header := color.New(color.Bold).SprintFunc()
		fmt.Fprintf(r.out, "%s\n", header(fmt.Sprintf("validation failed for %q:", fnName)))
		for _, e := range result.Errors {
			fmt.Fprint(r.out, FormatError(e))
		}
	}
	if !r.cfg.VerboseDiagnostics {
		return
	}
	for _, w := range result.Warnings {
		fmt.Fprint(r.out, FormatError(w))
	}
}

// ReportPassStats emits one line per recorded pass invocation, gated by
// the pass-timing flag. Unchanged passes render dimmed so the passes
// that actually did work stand out.
func (r *Reporter) ReportPassStats(fnName string, stats []PassStat) {
	if !r.cfg.PassTiming || len(stats) == 0 {
		return
	}
	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	fmt.Fprintf(r.out, "%s\n", bold(fmt.Sprintf("pass statistics for %q:", fnName)))
	for _, s := range stats {
		line := fmt.Sprintf("  %-20s %10s  instrs %d -> %d  blocks %d -> %d",
			s.Name, s.Duration.Round(time.Microsecond),
			s.InstructionsBefore, s.InstructionsAfter,
			s.BlocksBefore, s.BlocksAfter)
		if s.Changed {
			fmt.Fprintln(r.out, line)
		} else {
			fmt.Fprintln(r.out, dim(line))
		}
	}
}

// DumpFunction emits fn's canonical textual form when MIR dumping is
// enabled, framed by a dimmed stage label so successive dumps (post-
// lowering, post-optimization, post-destruction) are distinguishable.
func (r *Reporter) DumpFunction(stage string, fn *Function) {
	if !r.cfg.DumpMIR {
		return
	}
	dim := color.New(color.Faint).SprintFunc()
	fmt.Fprintf(r.out, "%s\n%s", dim(fmt.Sprintf("; --- %s: %s ---", stage, fn.Name)), PrintFunction(fn))
}
