// Package ast defines Luma's abstract syntax tree. Every node follows a
// visitor pattern: a node implements Accept, dispatching to one method of
// a Visitor interface, so behavior (type checking, compiling, printing)
// stays decoupled from the node types themselves.
//
// Every node also carries a diag.Span, since every later stage (type
// checker, compiler, VM) needs a source location to attach diagnostics
// to. Child spans are always contained within their parent's span.
package ast

import "luma/diag"

// Node is implemented by every AST node, expression, statement, pattern or
// type annotation alike.
type Node interface {
	Span() diag.Span
}

// Expression is the base interface for all expression nodes. Expressions
// produce a value when evaluated.
type Expression interface {
	Node
	Accept(v ExpressionVisitor) any
	exprNode()
}

// Statement is the base interface for all statement nodes. Statements do
// not themselves produce a value.
type Statement interface {
	Node
	Accept(v StatementVisitor) any
	stmtNode()
}

// Pattern is the base interface for destructuring patterns used in let
// bindings and match arms. Pattern nodes are dispatched with a type switch
// rather than a visitor, a deliberate simplification: there are far fewer
// pattern shapes than expression shapes, and every consumer (type checker,
// compiler) already needs the concrete shape to bind names correctly, so a
// visitor interface would only add boilerplate.
type Pattern interface {
	Node
	patternNode()
}

// TypeAnnotation is the base interface for the type-annotation surface
// syntax written by users (e.g. "Number", "List<Number>", "(Number) => Bool").
// Like Pattern, it is consumed through a type switch.
type TypeAnnotation interface {
	Node
	typeNode()
}

// ExpressionVisitor operates over every Expression node. Implemented by the
// type checker, the bytecode compiler, and the AST printer.
type ExpressionVisitor interface {
	VisitLiteral(e *Literal) any
	VisitIdentifier(e *Identifier) any
	VisitBinary(e *Binary) any
	VisitUnary(e *Unary) any
	VisitCall(e *Call) any
	VisitIndex(e *Index) any
	VisitField(e *Field) any
	VisitListLiteral(e *ListLiteral) any
	VisitTableLiteral(e *TableLiteral) any
	VisitFunctionLiteral(e *FunctionLiteral) any
	VisitIf(e *If) any
	VisitBlock(e *Block) any
	VisitMatch(e *Match) any
	VisitAssign(e *Assign) any
}

// StatementVisitor operates over every Statement node.
type StatementVisitor interface {
	VisitLetStatement(s *LetStatement) any
	VisitVarStatement(s *VarStatement) any
	VisitExpressionStatement(s *ExpressionStatement) any
	VisitWhileStatement(s *WhileStatement) any
	VisitForInStatement(s *ForInStatement) any
	VisitBreakStatement(s *BreakStatement) any
	VisitContinueStatement(s *ContinueStatement) any
	VisitReturnStatement(s *ReturnStatement) any
	VisitTypeDeclStatement(s *TypeDeclStatement) any
}

// Program is the root of a parsed Luma source file: a flat sequence of
// top-level statements.
type Program struct {
	Statements []Statement
	SourceSpan diag.Span
}

func (p *Program) Span() diag.Span { return p.SourceSpan }
