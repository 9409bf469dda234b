package ast

import "luma/diag"

// IdentifierPattern binds the matched value to a name.
type IdentifierPattern struct {
	Name       string
	SourceSpan diag.Span
}

func (p *IdentifierPattern) Span() diag.Span { return p.SourceSpan }
func (p *IdentifierPattern) patternNode()    {}

// WildcardPattern ("_") matches anything and binds nothing.
type WildcardPattern struct {
	SourceSpan diag.Span
}

func (p *WildcardPattern) Span() diag.Span { return p.SourceSpan }
func (p *WildcardPattern) patternNode()    {}

// LiteralPattern matches a value equal to a constant.
type LiteralPattern struct {
	Value      any
	SourceSpan diag.Span
}

func (p *LiteralPattern) Span() diag.Span { return p.SourceSpan }
func (p *LiteralPattern) patternNode()    {}

// ListPattern destructures a list. Rest, if non-empty, binds the remaining
// tail elements after Elements have matched positionally: "[a, b, ...rest]".
type ListPattern struct {
	Elements   []Pattern
	Rest       string // "" if there is no rest binding
	SourceSpan diag.Span
}

func (p *ListPattern) Span() diag.Span { return p.SourceSpan }
func (p *ListPattern) patternNode()    {}

// TableFieldPattern binds one field of a table pattern, optionally to a
// nested sub-pattern (defaulting to a same-named identifier binding).
type TableFieldPattern struct {
	Name    string
	Binding Pattern // nil means bind Name itself
}

// TablePattern destructures a table by field name: "{ x, y: yCoord }".
type TablePattern struct {
	Fields     []TableFieldPattern
	SourceSpan diag.Span
}

func (p *TablePattern) Span() diag.Span { return p.SourceSpan }
func (p *TablePattern) patternNode()    {}
