package ast

import "luma/diag"

// NamedType references a type by name, e.g. "Number", "Point".
type NamedType struct {
	Name       string
	SourceSpan diag.Span
}

func (t *NamedType) Span() diag.Span { return t.SourceSpan }
func (t *NamedType) typeNode()       {}

// GenericType applies type arguments to a named type, e.g. "List<Number>".
type GenericType struct {
	Name       string
	Arguments  []TypeAnnotation
	SourceSpan diag.Span
}

func (t *GenericType) Span() diag.Span { return t.SourceSpan }
func (t *GenericType) typeNode()       {}

// FunctionType is a function signature written as a type, e.g.
// "(Number, Number) => Number".
type FunctionType struct {
	Params     []TypeAnnotation
	Return     TypeAnnotation
	SourceSpan diag.Span
}

func (t *FunctionType) Span() diag.Span { return t.SourceSpan }
func (t *FunctionType) typeNode()       {}

// AnyType is the "Any" escape hatch that is compatible with every type.
type AnyType struct {
	SourceSpan diag.Span
}

func (t *AnyType) Span() diag.Span { return t.SourceSpan }
func (t *AnyType) typeNode()       {}
