package mir

import "fmt"

// NullBackend is a reference Backend implementation: it validates and
// pretty-prints a module without generating any real machine code,
// useful for exercising the pipeline end-to-end (tests, golden-file
// tooling) without a real code-generation collaborator attached.
type NullBackend struct{}

func (NullBackend) Info() BackendInfo {
	return BackendInfo{
		Name:    "null",
		Version: "0.1.0",
	}
}

func (NullBackend) ValidateModule(m *Module) *ValidationResult {
	result := &ValidationResult{}
	for _, fn := range m.Valid() {
		r := Validate(fn, false)
		result.Errors = append(result.Errors, r.Errors...)
		result.Warnings = append(result.Warnings, r.Warnings...)
	}
	return result
}

// BackendPasses returns an empty pipeline: the null backend consumes
// whatever form the core pipeline already left the module in.
func (NullBackend) BackendPasses() *PassManager { return NewPassManager() }

// GenerateCode "generates" the module's pretty-printed text form, so the
// backend contract can be exercised without a real target.
func (NullBackend) GenerateCode(m *Module, cfg PipelineConfig) ([]byte, error) {
	if len(m.Valid()) == 0 {
		return nil, fmt.Errorf("mir: module %q has no valid functions to emit", m.Name)
	}
	return []byte(PrintModule(m)), nil
}
