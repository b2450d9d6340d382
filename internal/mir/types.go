package mir

import (
	"strconv"
	"strings"
)

// MirType is the closed set of types the MIR can assign to a value.
// Types are immutable once assigned to a ValueId.
type MirType interface {
	String() string
	// Slots returns the abstract slot-based layout size of the type.
	// Scalars occupy one slot; aggregates concatenate their fields.
	// Current alignment is always 1-slot.
	Slots() int
	isMirType()
}

type FeltType struct{}
type U32Type struct{}
type BoolType struct{}
type UnitType struct{}

// PointerType is the type of a FrameAlloc/GetElementPtr result.
type PointerType struct{ Elem MirType }

type TupleType struct{ Elems []MirType }

type StructField struct {
	Name string
	Type MirType
}

type StructType struct {
	Name   string
	Fields []StructField
}

type ArrayType struct {
	Elem   MirType
	Length int
}

type FunctionType struct {
	Params  []MirType
	Returns []MirType
}

// UnknownType marks a value whose type could not be determined. Validate
// does not check for it.
type UnknownType struct{}

func (FeltType) isMirType()     {}
func (U32Type) isMirType()      {}
func (BoolType) isMirType()     {}
func (UnitType) isMirType()     {}
func (PointerType) isMirType()  {}
func (TupleType) isMirType()    {}
func (StructType) isMirType()   {}
func (ArrayType) isMirType()    {}
func (FunctionType) isMirType() {}
func (UnknownType) isMirType()  {}

func (FeltType) String() string { return "felt" }
func (U32Type) String() string  { return "u32" }
func (BoolType) String() string { return "bool" }
func (UnitType) String() string { return "()" }
func (p PointerType) String() string {
	if p.Elem == nil {
		return "ptr<?>"
	}
	return "ptr<" + p.Elem.String() + ">"
}
func (t TupleType) String() string {
	parts := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		parts[i] = e.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
func (s StructType) String() string {
	parts := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		parts[i] = f.Name + ": " + f.Type.String()
	}
	return s.Name + " { " + strings.Join(parts, ", ") + " }"
}
func (a ArrayType) String() string {
	if a.Elem == nil {
		return "[?; ?]"
	}
	return "[" + a.Elem.String() + "; " + strconv.Itoa(a.Length) + "]"
}
func (f FunctionType) String() string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.String()
	}
	returns := make([]string, len(f.Returns))
	for i, r := range f.Returns {
		returns[i] = r.String()
	}
	return "fn(" + strings.Join(params, ", ") + ") -> (" + strings.Join(returns, ", ") + ")"
}
func (UnknownType) String() string { return "?" }

func (FeltType) Slots() int { return 1 }
func (U32Type) Slots() int  { return 1 }
func (BoolType) Slots() int { return 1 }
func (UnitType) Slots() int { return 0 }
func (PointerType) Slots() int { return 1 }
func (t TupleType) Slots() int {
	n := 0
	for _, e := range t.Elems {
		n += e.Slots()
	}
	return n
}
func (s StructType) Slots() int {
	n := 0
	for _, f := range s.Fields {
		n += f.Type.Slots()
	}
	return n
}
func (a ArrayType) Slots() int {
	if a.Elem == nil {
		return 0
	}
	return a.Elem.Slots() * a.Length
}
func (FunctionType) Slots() int { return 1 }
func (UnknownType) Slots() int  { return 0 }

// TypesEqual performs a structural equality check between two MirTypes.
func TypesEqual(a, b MirType) bool {
	if a == nil || b == nil {
		return a == b
	}
	switch at := a.(type) {
	case FeltType:
		_, ok := b.(FeltType)
		return ok
	case U32Type:
		_, ok := b.(U32Type)
		return ok
	case BoolType:
		_, ok := b.(BoolType)
		return ok
	case UnitType:
		_, ok := b.(UnitType)
		return ok
	case PointerType:
		bt, ok := b.(PointerType)
		return ok && TypesEqual(at.Elem, bt.Elem)
	case TupleType:
		bt, ok := b.(TupleType)
		if !ok || len(at.Elems) != len(bt.Elems) {
			return false
		}
		for i := range at.Elems {
			if !TypesEqual(at.Elems[i], bt.Elems[i]) {
				return false
			}
		}
		return true
	case StructType:
		bt, ok := b.(StructType)
		if !ok || at.Name != bt.Name || len(at.Fields) != len(bt.Fields) {
			return false
		}
		for i := range at.Fields {
			if at.Fields[i].Name != bt.Fields[i].Name || !TypesEqual(at.Fields[i].Type, bt.Fields[i].Type) {
				return false
			}
		}
		return true
	case ArrayType:
		bt, ok := b.(ArrayType)
		return ok && at.Length == bt.Length && TypesEqual(at.Elem, bt.Elem)
	case FunctionType:
		bt, ok := b.(FunctionType)
		if !ok || len(at.Params) != len(bt.Params) || len(at.Returns) != len(bt.Returns) {
			return false
		}
		for i := range at.Params {
			if !TypesEqual(at.Params[i], bt.Params[i]) {
				return false
			}
		}
		for i := range at.Returns {
			if !TypesEqual(at.Returns[i], bt.Returns[i]) {
				return false
			}
		}
		return true
	case UnknownType:
		_, ok := b.(UnknownType)
		return ok
	}
	return false
}

// FieldType looks up a field's type by name within a struct type.
func (s StructType) FieldType(name string) (MirType, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Type, true
		}
	}
	return nil, false
}

// FieldIndex returns the ordinal position of a named field.
func (s StructType) FieldIndex(name string) (int, bool) {
	for i, f := range s.Fields {
		if f.Name == name {
			return i, true
		}
	}
	return 0, false
}
