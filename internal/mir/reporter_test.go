package mir

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reporterFixture() (*ValidationResult, []PassStat, *Function) {
	result := &ValidationResult{
		Errors:   []*MIRError{ValidationError(ErrMissingTerminator, "block b0 has no terminator", Span{}).Build()},
		Warnings: []*MIRError{ValidationWarning("", "value %3 is defined but never used", Span{}).Build()},
	}
	stats := []PassStat{
		{Name: "ConstantFolding", Duration: 42 * time.Microsecond, InstructionsBefore: 5, InstructionsAfter: 3, BlocksBefore: 1, BlocksAfter: 1, Changed: true},
		{Name: "LocalCSE", Duration: 7 * time.Microsecond, InstructionsBefore: 3, InstructionsAfter: 3, BlocksBefore: 1, BlocksAfter: 1},
	}
	fn := NewFunction("probe")
	fn.EntryBlock = fn.NewBlock("entry").ID
	fn.SetTerminatorWithEdges(fn.EntryBlock, &Return{Values: nil})
	return result, stats, fn
}

// TestReporterAlwaysEmitsErrors checks hard validation errors render even
// with every verbosity switch off — errors are never gated.
func TestReporterAlwaysEmitsErrors(t *testing.T) {
	result, _, _ := reporterFixture()
	var buf bytes.Buffer

	NewReporter(PipelineConfig{}, &buf).ReportValidation("probe", result)

	out := buf.String()
	require.Contains(t, out, "validation failed for \"probe\"")
	assert.Contains(t, out, "block b0 has no terminator")
	assert.NotContains(t, out, "never used", "warnings must stay silent without VerboseDiagnostics")
}

// TestReporterGatesWarningsOnVerbose checks warnings only render when
// verbose diagnostics are enabled.
func TestReporterGatesWarningsOnVerbose(t *testing.T) {
	result, _, _ := reporterFixture()
	var buf bytes.Buffer

	NewReporter(PipelineConfig{VerboseDiagnostics: true}, &buf).ReportValidation("probe", result)
	assert.Contains(t, buf.String(), "never used")
}

// TestReporterGatesPassStatsOnTiming checks pass statistics render only
// under PassTiming, one line per recorded pass.
func TestReporterGatesPassStatsOnTiming(t *testing.T) {
	_, stats, _ := reporterFixture()

	var silent bytes.Buffer
	NewReporter(PipelineConfig{}, &silent).ReportPassStats("mod", stats)
	assert.Zero(t, silent.Len())

	var buf bytes.Buffer
	NewReporter(PipelineConfig{PassTiming: true}, &buf).ReportPassStats("mod", stats)
	out := buf.String()
	assert.Contains(t, out, "ConstantFolding")
	assert.Contains(t, out, "LocalCSE")
	assert.Contains(t, out, "instrs 5 -> 3")
}

// TestReporterGatesDumpOnDumpMIR checks DumpFunction is silent unless
// MIR dumping was requested, and frames the dump with its stage label.
func TestReporterGatesDumpOnDumpMIR(t *testing.T) {
	_, _, fn := reporterFixture()

	var silent bytes.Buffer
	NewReporter(PipelineConfig{}, &silent).DumpFunction("post-destruction", fn)
	assert.Zero(t, silent.Len())

	var buf bytes.Buffer
	NewReporter(PipelineConfig{DumpMIR: true}, &buf).DumpFunction("post-destruction", fn)
	out := buf.String()
	assert.Contains(t, out, "post-destruction: probe")
	assert.Contains(t, out, "fn probe(")
}
