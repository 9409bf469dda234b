package ast

import (
	"luma/diag"
	"luma/token"
)

// Literal is a number, string, boolean, or null constant.
type Literal struct {
	Value      any // float64, string, bool, or nil
	SourceSpan diag.Span
}

func (l *Literal) Span() diag.Span          { return l.SourceSpan }
func (l *Literal) Accept(v ExpressionVisitor) any { return v.VisitLiteral(l) }
func (l *Literal) exprNode()                {}

// Identifier references a bound name.
type Identifier struct {
	Name       string
	SourceSpan diag.Span
}

func (i *Identifier) Span() diag.Span          { return i.SourceSpan }
func (i *Identifier) Accept(v ExpressionVisitor) any { return v.VisitIdentifier(i) }
func (i *Identifier) exprNode()                {}

// Binary is a two-operand operator expression, e.g. "a + b", "a == b".
type Binary struct {
	Left       Expression
	Operator   token.Token
	Right      Expression
	SourceSpan diag.Span
}

func (b *Binary) Span() diag.Span          { return b.SourceSpan }
func (b *Binary) Accept(v ExpressionVisitor) any { return v.VisitBinary(b) }
func (b *Binary) exprNode()                {}

// Unary is a prefix operator expression, e.g. "-a", "!a".
type Unary struct {
	Operator   token.Token
	Operand    Expression
	SourceSpan diag.Span
}

func (u *Unary) Span() diag.Span          { return u.SourceSpan }
func (u *Unary) Accept(v ExpressionVisitor) any { return v.VisitUnary(u) }
func (u *Unary) exprNode()                {}

// Call invokes a callee expression with a list of argument expressions.
type Call struct {
	Callee     Expression
	Arguments  []Expression
	SourceSpan diag.Span
}

func (c *Call) Span() diag.Span          { return c.SourceSpan }
func (c *Call) Accept(v ExpressionVisitor) any { return v.VisitCall(c) }
func (c *Call) exprNode()                {}

// Index is a subscript expression, e.g. "xs[0]".
type Index struct {
	Receiver   Expression
	Key        Expression
	SourceSpan diag.Span
}

func (ix *Index) Span() diag.Span          { return ix.SourceSpan }
func (ix *Index) Accept(v ExpressionVisitor) any { return v.VisitIndex(ix) }
func (ix *Index) exprNode()                {}

// Field is a dotted field-access expression, e.g. "point.x".
type Field struct {
	Receiver   Expression
	Name       string
	SourceSpan diag.Span
}

func (f *Field) Span() diag.Span          { return f.SourceSpan }
func (f *Field) Accept(v ExpressionVisitor) any { return v.VisitField(f) }
func (f *Field) exprNode()                {}

// ListLiteral is a "[a, b, c]" expression.
type ListLiteral struct {
	Elements   []Expression
	SourceSpan diag.Span
}

func (l *ListLiteral) Span() diag.Span          { return l.SourceSpan }
func (l *ListLiteral) Accept(v ExpressionVisitor) any { return v.VisitListLiteral(l) }
func (l *ListLiteral) exprNode()                {}

// TableField is one "name: value" entry of a table literal.
type TableField struct {
	Name  string
	Value Expression
}

// TableLiteral is a "{ name: value, ... }" expression.
type TableLiteral struct {
	Fields     []TableField
	SourceSpan diag.Span
}

func (t *TableLiteral) Span() diag.Span          { return t.SourceSpan }
func (t *TableLiteral) Accept(v ExpressionVisitor) any { return v.VisitTableLiteral(t) }
func (t *TableLiteral) exprNode()                {}

// Param is one formal parameter of a function literal: a name, an optional
// declared type, and an optional default-value expression.
type Param struct {
	Name       string
	Type       TypeAnnotation // nil if untyped
	Default    Expression     // nil if required
	SourceSpan diag.Span
}

// FunctionLiteral is a "fn(params) [=> ReturnType] do ... end" expression.
type FunctionLiteral struct {
	Params     []Param
	ReturnType TypeAnnotation // nil if undeclared
	Body       *Block
	SourceSpan diag.Span
}

func (f *FunctionLiteral) Span() diag.Span          { return f.SourceSpan }
func (f *FunctionLiteral) Accept(v ExpressionVisitor) any { return v.VisitFunctionLiteral(f) }
func (f *FunctionLiteral) exprNode()                {}

// ElifClause is one "elif cond do ... end" arm of an If expression.
type ElifClause struct {
	Condition Expression
	Body      *Block
}

// If is an "if cond do ... [elif cond do ... ]* [else ... end]" expression.
// Like the rest of Luma's block forms, it is an expression: its value is
// the last expression of whichever branch executed, or null if none did.
type If struct {
	Condition  Expression
	Then       *Block
	Elifs      []ElifClause
	Else       *Block // nil if absent
	SourceSpan diag.Span
}

func (i *If) Span() diag.Span          { return i.SourceSpan }
func (i *If) Accept(v ExpressionVisitor) any { return v.VisitIf(i) }
func (i *If) exprNode()                {}

// Block is a "do ... end" sequence of statements, optionally ending in a
// trailing expression that becomes the block's value.
type Block struct {
	Statements []Statement
	Tail       Expression // nil if the block has no trailing value
	SourceSpan diag.Span
}

func (b *Block) Span() diag.Span          { return b.SourceSpan }
func (b *Block) Accept(v ExpressionVisitor) any { return v.VisitBlock(b) }
func (b *Block) exprNode()                {}

// MatchArm is one "pattern [with guard] => body" arm of a match expression.
type MatchArm struct {
	Pattern Pattern
	Guard   Expression // nil if absent
	Body    Expression
}

// Match is a "match subject do arm* end" expression.
type Match struct {
	Subject    Expression
	Arms       []MatchArm
	SourceSpan diag.Span
}

func (m *Match) Span() diag.Span          { return m.SourceSpan }
func (m *Match) Accept(v ExpressionVisitor) any { return v.VisitMatch(m) }
func (m *Match) exprNode()                {}

// AssignTarget is the left-hand side of an Assign expression: a bare name,
// an index expression, or a field expression.
type AssignTarget interface {
	Expression
	assignTargetNode()
}

func (i *Identifier) assignTargetNode() {}
func (ix *Index) assignTargetNode()     {}
func (f *Field) assignTargetNode()      {}

// Assign is a "target = value" expression. Assignment is itself an
// expression in Luma, evaluating to the assigned value.
type Assign struct {
	Target     AssignTarget
	Value      Expression
	SourceSpan diag.Span
}

func (a *Assign) Span() diag.Span          { return a.SourceSpan }
func (a *Assign) Accept(v ExpressionVisitor) any { return v.VisitAssign(a) }
func (a *Assign) exprNode()                {}
