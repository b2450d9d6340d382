package mir

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// ErrorLevel mirrors the source-diagnostics taxonomy at this level: every
// MIR diagnostic is either a hard failure or a warning surfaced alongside
// a valid result.
type ErrorLevel string

const (
	Error   ErrorLevel = "error"
	Warning ErrorLevel = "warning"
)

// ErrorKind distinguishes where in the pipeline a MIRError originated,
// since the three stages fail for structurally different reasons.
type ErrorKind string

const (
	// LoweringErrorKind covers failures turning a typed source AST into
	// MIR: missing type information, unsupported source constructs, a
	// TypeQuery that can't answer a question lowering needs.
	LoweringErrorKind ErrorKind = "lowering"

	// ValidationErrorKind covers an invariant violated in constructed
	// MIR: phi-not-first, dangling edge, sealed-block mutation, a type
	// mismatch between a definition and a use.
	ValidationErrorKind ErrorKind = "validation"

	// BackendErrorKind covers a backend rejecting an otherwise-valid
	// module: a required feature the backend declared it needs but the
	// module doesn't provide, or code generation itself failing.
	BackendErrorKind ErrorKind = "backend"

	// InternalErrorKind covers a condition that should be impossible
	// given a correct lowering/optimizer: a PureKey collision across
	// mismatched types, a phi with no sources post-sealing, and similar.
	// Encountering one means a bug in this package, not in caller input.
	InternalErrorKind ErrorKind = "internal"
)

// MIRError is a structured diagnostic produced anywhere in this package.
// It deliberately mirrors the source-side CompilerError shape (level,
// code, message, span, notes, help) rather than returning bare strings,
// so a caller can render MIR diagnostics next to parser/semantic ones
// with the same formatting.
type MIRError struct {
	Level   ErrorLevel
	Kind    ErrorKind
	Code    string
	Message string
	Span    Span
	Notes   []string
	Help    string
}

func (e *MIRError) Error() string {
	if e.Span.Valid() {
		return fmt.Sprintf("%s: %s (%s:%d:%d)", e.Level, e.Message, e.Span.File, e.Span.Line, e.Span.Col)
	}
	return fmt.Sprintf("%s: %s", e.Level, e.Message)
}

// MIRErrorBuilder is the fluent constructor for MIRError, following the
// builder convention used for source-side diagnostics.
type MIRErrorBuilder struct {
	err MIRError
}

func newError(level ErrorLevel, kind ErrorKind, code, message string, span Span) *MIRErrorBuilder {
	return &MIRErrorBuilder{err: MIRError{Level: level, Kind: kind, Code: code, Message: message, Span: span}}
}

func (b *MIRErrorBuilder) WithNote(note string) *MIRErrorBuilder {
	b.err.Notes = append(b.err.Notes, note)
	return b
}

func (b *MIRErrorBuilder) WithHelp(help string) *MIRErrorBuilder {
	b.err.Help = help
	return b
}

func (b *MIRErrorBuilder) Build() *MIRError {
	built := b.err
	return &built
}

// Lowering error codes (M0001-M0099).
const (
	ErrMissingTypeInfo     = "M0001"
	ErrUnsupportedConstruct = "M0002"
	ErrUnresolvedName      = "M0003"
	ErrBadStructLiteral    = "M0004"
)

func LoweringError(code, message string, span Span) *MIRErrorBuilder {
	return newError(Error, LoweringErrorKind, code, message, span)
}

// Validation error codes (M0100-M0199).
const (
	ErrPhiNotLeading     = "M0100"
	ErrDanglingEdge      = "M0101"
	ErrSealedMutation    = "M0102"
	ErrTypeMismatch      = "M0103"
	ErrMissingTerminator = "M0104"
	ErrPhiArityMismatch  = "M0105"
	ErrUseBeforeDef      = "M0106"
	ErrPhiAfterDestruct  = "M0107"
)

func ValidationError(code, message string, span Span) *MIRErrorBuilder {
	return newError(Error, ValidationErrorKind, code, message, span)
}

func ValidationWarning(code, message string, span Span) *MIRErrorBuilder {
	return newError(Warning, ValidationErrorKind, code, message, span)
}

// Backend error codes (M0200-M0299).
const (
	ErrMissingFeature  = "M0200"
	ErrCodeGenFailed   = "M0201"
	ErrBackendRejected = "M0202"
)

func BackendError(code, message string, span Span) *MIRErrorBuilder {
	return newError(Error, BackendErrorKind, code, message, span)
}

// Internal error codes (M0900-M0999) — reaching one of these is this
// package's own bug, not malformed caller input.
const (
	ErrInternalInvariant = "M0900"
)

func InternalError(message string, span Span) *MIRErrorBuilder {
	return newError(Error, InternalErrorKind, ErrInternalInvariant, message, span).
		WithHelp("this indicates a bug in the MIR construction or optimization pipeline")
}

// FormatError renders err in the same colorized, leveled style as the
// source-side diagnostics, minus the source-line context the MIR layer
// does not keep access to.
func FormatError(err *MIRError) string {
	var b strings.Builder

	levelColor := color.New(color.FgRed, color.Bold).SprintFunc()
	if err.Level == Warning {
		levelColor = color.New(color.FgYellow, color.Bold).SprintFunc()
	}
	dim := color.New(color.Faint).SprintFunc()

	if err.Code != "" {
		fmt.Fprintf(&b, "%s[%s]: %s\n", levelColor(string(err.Level)), err.Code, err.Message)
	} else {
		fmt.Fprintf(&b, "%s: %s\n", levelColor(string(err.Level)), err.Message)
	}

	if err.Span.Valid() {
		fmt.Fprintf(&b, "  %s %s:%d:%d\n", dim("-->"), err.Span.File, err.Span.Line, err.Span.Col)
	}

	for _, note := range err.Notes {
		noteColor := color.New(color.FgBlue).SprintFunc()
		fmt.Fprintf(&b, "  %s %s\n", noteColor("note:"), note)
	}

	if err.Help != "" {
		helpColor := color.New(color.FgGreen).SprintFunc()
		fmt.Fprintf(&b, "  %s %s\n", helpColor("help:"), err.Help)
	}

	return b.String()
}
