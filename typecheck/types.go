// Package typecheck implements Luma's single-pass, lexically-scoped type
// checker. It walks the AST with the same VisitBinary/VisitUnary/...
// visitor dispatch the compiler uses, but computes a Type instead of
// emitting bytecode, and collects diagnostics instead of failing fast.
package typecheck

import "fmt"

// Kind enumerates the shapes a Luma type can take. Unknown and Any extend
// the surface syntax with internal bookkeeping types that short-circuit
// every compatibility check.
type Kind int

const (
	KindNumber Kind = iota
	KindString
	KindBoolean
	KindNull
	KindList
	KindTable
	KindTableWithFields
	KindFunction
	KindRecord
	KindAny
	KindUnknown
)

// Type is the checker's internal representation of a Luma type.
type Type struct {
	Kind     Kind
	Elem     *Type            // List element type
	Fields   map[string]*Type // TableWithFields / Record field types
	Params   []*Type          // Function parameter types
	Return   *Type            // Function return type
	Variadic bool             // Function: last param absorbs remaining args
	Name     string           // Record: the declared type name
}

var (
	Number  = &Type{Kind: KindNumber}
	String  = &Type{Kind: KindString}
	Boolean = &Type{Kind: KindBoolean}
	Null    = &Type{Kind: KindNull}
	Any     = &Type{Kind: KindAny}
	Unknown = &Type{Kind: KindUnknown}
)

func ListOf(elem *Type) *Type { return &Type{Kind: KindList, Elem: elem} }

func TableWithFields(fields map[string]*Type) *Type {
	return &Type{Kind: KindTableWithFields, Fields: fields}
}

func FunctionOf(params []*Type, ret *Type, variadic bool) *Type {
	return &Type{Kind: KindFunction, Params: params, Return: ret, Variadic: variadic}
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case KindNumber:
		return "Number"
	case KindString:
		return "String"
	case KindBoolean:
		return "Boolean"
	case KindNull:
		return "Null"
	case KindList:
		return fmt.Sprintf("List<%s>", t.Elem)
	case KindTable:
		return "Table"
	case KindTableWithFields:
		return "Table{...}"
	case KindFunction:
		return "Function"
	case KindRecord:
		return t.Name
	case KindAny:
		return "Any"
	case KindUnknown:
		return "Unknown"
	default:
		return "?"
	}
}

// Compatible reports whether a value of type b may be used where a is
// expected. Any and Unknown are compatible with everything in either
// direction.
func Compatible(a, b *Type) bool {
	if a == nil || b == nil {
		return true
	}
	if a.Kind == KindAny || b.Kind == KindAny || a.Kind == KindUnknown || b.Kind == KindUnknown {
		return true
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindList:
		return Compatible(a.Elem, b.Elem)
	case KindFunction:
		if len(a.Params) != len(b.Params) || a.Variadic != b.Variadic {
			return false
		}
		for i := range a.Params {
			if !Compatible(a.Params[i], b.Params[i]) {
				return false
			}
		}
		return Compatible(a.Return, b.Return)
	case KindTableWithFields:
		for name, ft := range a.Fields {
			bft, ok := b.Fields[name]
			if !ok || !Compatible(ft, bft) {
				return false
			}
		}
		return true
	case KindRecord:
		return a.Name == b.Name
	default:
		return true
	}
}
