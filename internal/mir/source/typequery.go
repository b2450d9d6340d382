package source

import "feltmir/internal/mir"

// TypeQuery is the contract Lowering uses to ask the semantic layer
// questions it cannot answer from the AST alone. Nothing in mir ever
// constructs one directly — it is supplied by the caller (a real
// front end, or StaticTypeQuery for tests and reference use).
type TypeQuery interface {
	// DefinitionType returns the declared/inferred type of a DefinitionId.
	DefinitionType(def mir.DefinitionId) (mir.MirType, bool)

	// ExpressionType returns the type of the expression located at span,
	// used when an expression's type cannot be derived structurally
	// (e.g. a struct literal's field types).
	ExpressionType(span Span) (mir.MirType, bool)

	// StructFieldType resolves a field's type given the struct type's
	// name and the field name.
	StructFieldType(structName, field string) (mir.MirType, bool)

	// TupleElementType resolves one positional element's type given a
	// TupleType and an index.
	TupleElementType(ty mir.TupleType, index int) (mir.MirType, bool)

	// ResolveName maps a source identifier, within a lexical scope, to
	// the DefinitionId the semantic analyzer assigned it.
	ResolveName(scope, name string) (mir.DefinitionId, bool)

	// FunctionSignature resolves a callee name to its MIR-level
	// FunctionType (param/return types), needed to allocate the right
	// number and type of Call destinations.
	FunctionSignature(callee string) (mir.FunctionType, bool)
}

// StaticTypeQuery is a map-backed, in-memory reference implementation of
// TypeQuery: every question is answered out of tables built ahead of
// time rather than by consulting a live semantic analyzer. It exists for
// tests and for any future static/offline front end that already has
// all types resolved before lowering begins.
type StaticTypeQuery struct {
	Definitions []mir.MirType
	Expressions map[Span]mir.MirType
	Fields      map[string]map[string]mir.MirType
	Scopes      map[string]map[string]mir.DefinitionId
	Signatures  map[string]mir.FunctionType
}

func NewStaticTypeQuery() *StaticTypeQuery {
	return &StaticTypeQuery{
		Expressions: make(map[Span]mir.MirType),
		Fields:      make(map[string]map[string]mir.MirType),
		Scopes:      make(map[string]map[string]mir.DefinitionId),
		Signatures:  make(map[string]mir.FunctionType),
	}
}

// DefineVariable registers def's type, growing Definitions as needed
// (DefinitionIds are assumed dense and allocated in order by the
// semantic analyzer, matching the rest of this package's conventions).
func (q *StaticTypeQuery) DefineVariable(def mir.DefinitionId, ty mir.MirType) {
	idx := int(def)
	for len(q.Definitions) <= idx {
		q.Definitions = append(q.Definitions, nil)
	}
	q.Definitions[idx] = ty
}

func (q *StaticTypeQuery) DefineField(structName, field string, ty mir.MirType) {
	m, ok := q.Fields[structName]
	if !ok {
		m = make(map[string]mir.MirType)
		q.Fields[structName] = m
	}
	m[field] = ty
}

func (q *StaticTypeQuery) DefineScopedName(scope, name string, def mir.DefinitionId) {
	m, ok := q.Scopes[scope]
	if !ok {
		m = make(map[string]mir.DefinitionId)
		q.Scopes[scope] = m
	}
	m[name] = def
}

func (q *StaticTypeQuery) DefineSignature(callee string, sig mir.FunctionType) {
	q.Signatures[callee] = sig
}

func (q *StaticTypeQuery) DefinitionType(def mir.DefinitionId) (mir.MirType, bool) {
	idx := int(def)
	if idx < 0 || idx >= len(q.Definitions) || q.Definitions[idx] == nil {
		return nil, false
	}
	return q.Definitions[idx], true
}

func (q *StaticTypeQuery) ExpressionType(span Span) (mir.MirType, bool) {
	ty, ok := q.Expressions[span]
	return ty, ok
}

func (q *StaticTypeQuery) StructFieldType(structName, field string) (mir.MirType, bool) {
	fields, ok := q.Fields[structName]
	if !ok {
		return nil, false
	}
	ty, ok := fields[field]
	return ty, ok
}

func (q *StaticTypeQuery) TupleElementType(ty mir.TupleType, index int) (mir.MirType, bool) {
	if index < 0 || index >= len(ty.Elems) {
		return nil, false
	}
	return ty.Elems[index], true
}

func (q *StaticTypeQuery) ResolveName(scope, name string) (mir.DefinitionId, bool) {
	names, ok := q.Scopes[scope]
	if !ok {
		return 0, false
	}
	def, ok := names[name]
	return def, ok
}

func (q *StaticTypeQuery) FunctionSignature(callee string) (mir.FunctionType, bool) {
	sig, ok := q.Signatures[callee]
	return sig, ok
}
