package ast

import "luma/diag"

// LetStatement binds an immutable name (or destructures a pattern) to the
// value of an expression: "let name = expr" or "let [a, b] = expr".
type LetStatement struct {
	Target     Pattern
	Type       TypeAnnotation // nil if undeclared
	Value      Expression
	SourceSpan diag.Span
}

func (s *LetStatement) Span() diag.Span              { return s.SourceSpan }
func (s *LetStatement) Accept(v StatementVisitor) any { return v.VisitLetStatement(s) }
func (s *LetStatement) stmtNode()                     {}

// VarStatement binds a mutable name: "var name = expr".
type VarStatement struct {
	Name       string
	Type       TypeAnnotation // nil if undeclared
	Value      Expression
	SourceSpan diag.Span
}

func (s *VarStatement) Span() diag.Span              { return s.SourceSpan }
func (s *VarStatement) Accept(v StatementVisitor) any { return v.VisitVarStatement(s) }
func (s *VarStatement) stmtNode()                     {}

// ExpressionStatement evaluates an expression and discards its value,
// except when it is the final statement of a Block, where the block
// represents it as a tail expression instead (see ast.Block.Tail).
type ExpressionStatement struct {
	Expression Expression
	SourceSpan diag.Span
}

func (s *ExpressionStatement) Span() diag.Span              { return s.SourceSpan }
func (s *ExpressionStatement) Accept(v StatementVisitor) any { return v.VisitExpressionStatement(s) }
func (s *ExpressionStatement) stmtNode()                     {}

// WhileStatement is "while cond do ... end".
type WhileStatement struct {
	Condition  Expression
	Body       *Block
	SourceSpan diag.Span
}

func (s *WhileStatement) Span() diag.Span              { return s.SourceSpan }
func (s *WhileStatement) Accept(v StatementVisitor) any { return v.VisitWhileStatement(s) }
func (s *WhileStatement) stmtNode()                     {}

// ForInStatement is "for name in iterable do ... end". The compiler lowers
// iteration through the host-provided iterator protocol (see stdlib.Iter).
type ForInStatement struct {
	Name       string
	Iterable   Expression
	Body       *Block
	SourceSpan diag.Span
}

func (s *ForInStatement) Span() diag.Span              { return s.SourceSpan }
func (s *ForInStatement) Accept(v StatementVisitor) any { return v.VisitForInStatement(s) }
func (s *ForInStatement) stmtNode()                     {}

// BreakStatement exits the nearest enclosing loop.
type BreakStatement struct {
	SourceSpan diag.Span
}

func (s *BreakStatement) Span() diag.Span              { return s.SourceSpan }
func (s *BreakStatement) Accept(v StatementVisitor) any { return v.VisitBreakStatement(s) }
func (s *BreakStatement) stmtNode()                     {}

// ContinueStatement skips to the next iteration of the nearest enclosing loop.
type ContinueStatement struct {
	SourceSpan diag.Span
}

func (s *ContinueStatement) Span() diag.Span              { return s.SourceSpan }
func (s *ContinueStatement) Accept(v StatementVisitor) any { return v.VisitContinueStatement(s) }
func (s *ContinueStatement) stmtNode()                     {}

// ReturnStatement exits the enclosing function, optionally with a value.
type ReturnStatement struct {
	Value      Expression // nil for a bare "return"
	SourceSpan diag.Span
}

func (s *ReturnStatement) Span() diag.Span              { return s.SourceSpan }
func (s *ReturnStatement) Accept(v StatementVisitor) any { return v.VisitReturnStatement(s) }
func (s *ReturnStatement) stmtNode()                     {}

// RecordField is one named, typed field of a record type declaration.
type RecordField struct {
	Name string
	Type TypeAnnotation
}

// TypeDeclStatement declares a named type: either an alias ("type Id = Number")
// or a record ("type Point = { x: Number, y: Number }").
type TypeDeclStatement struct {
	Name       string
	Alias      TypeAnnotation // set when this is an alias declaration
	Fields     []RecordField  // set when this is a record declaration
	SourceSpan diag.Span
}

func (s *TypeDeclStatement) Span() diag.Span              { return s.SourceSpan }
func (s *TypeDeclStatement) Accept(v StatementVisitor) any { return v.VisitTypeDeclStatement(s) }
func (s *TypeDeclStatement) stmtNode()                     {}
