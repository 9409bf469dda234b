package typecheck

import (
	"luma/ast"
	"luma/diag"
	"luma/token"
)

// Checker implements ast.ExpressionVisitor and ast.StatementVisitor,
// returning a *Type for every expression it visits (nil for statements),
// and accumulating diagnostics instead of failing on the first mistake.
type Checker struct {
	file          string
	scopes        *scopeStack
	namedTypes    map[string]*Type
	returnStack   []*Type
	diagnostics   []diag.Diagnostic
}

// New constructs a Checker. Host globals (functions exposed by the stdlib
// package, such as "print" or "len") should be declared via Declare before
// Check runs, mirroring how the host installs natives before execution at
// the VM layer.
func New(file string) *Checker {
	return &Checker{
		file:       file,
		scopes:     newScopeStack(),
		namedTypes: map[string]*Type{},
	}
}

// Declare registers a pre-existing global binding, used for host-provided
// globals the compiler and VM both consume.
func (c *Checker) Declare(name string, t *Type) {
	c.scopes.declare(name, binding{typ: t, mutable: false, annotated: true})
}

// Check type-checks an entire program, returning every diagnostic found.
func (c *Checker) Check(program *ast.Program) []diag.Diagnostic {
	for _, stmt := range program.Statements {
		c.checkStatement(stmt)
	}
	return c.diagnostics
}

func (c *Checker) errorf(span diag.Span, format string, args ...any) {
	c.diagnostics = append(c.diagnostics, diag.Errorf(diag.KindType, span, c.file, format, args...))
}

func (c *Checker) checkStatement(s ast.Statement) {
	s.Accept(c)
}

func (c *Checker) checkExpr(e ast.Expression) *Type {
	t, _ := e.Accept(c).(*Type)
	if t == nil {
		return Unknown
	}
	return t
}

// resolveType converts surface type-annotation syntax into the checker's
// internal Type representation.
func (c *Checker) resolveType(t ast.TypeAnnotation) *Type {
	switch ty := t.(type) {
	case nil:
		return Any
	case *ast.AnyType:
		return Any
	case *ast.NamedType:
		switch ty.Name {
		case "Number":
			return Number
		case "String":
			return String
		case "Boolean":
			return Boolean
		case "Null":
			return Null
		}
		if named, ok := c.namedTypes[ty.Name]; ok {
			return named
		}
		c.errorf(ty.SourceSpan, "unknown type %q", ty.Name)
		return Unknown
	case *ast.GenericType:
		if ty.Name == "List" && len(ty.Arguments) == 1 {
			return ListOf(c.resolveType(ty.Arguments[0]))
		}
		c.errorf(ty.SourceSpan, "unknown generic type %q", ty.Name)
		return Unknown
	case *ast.FunctionType:
		params := make([]*Type, len(ty.Params))
		for i, p := range ty.Params {
			params[i] = c.resolveType(p)
		}
		return FunctionOf(params, c.resolveType(ty.Return), false)
	default:
		return Unknown
	}
}

// --- StatementVisitor ---

func (c *Checker) VisitLetStatement(s *ast.LetStatement) any {
	// A let binding a bare identifier to a function literal may call itself
	// by that name (e.g. "let fact = fn(n) ... fact(n-1) end"); pre-declare
	// the name with its signature before checking the body so the
	// self-reference resolves instead of reading as undefined.
	if ident, ok := s.Target.(*ast.IdentifierPattern); ok {
		if fn, ok := s.Value.(*ast.FunctionLiteral); ok {
			c.scopes.declare(ident.Name, binding{typ: c.functionSignature(fn)})
			valueType := c.checkExpr(s.Value)
			declared := valueType
			if s.Type != nil {
				declared = c.resolveType(s.Type)
				if !Compatible(declared, valueType) {
					c.errorf(s.Value.Span(), "cannot bind value of type %s to declared type %s", valueType, declared)
				}
			}
			c.scopes.declare(ident.Name, binding{typ: declared})
			return nil
		}
	}

	valueType := c.checkExpr(s.Value)
	declared := valueType
	if s.Type != nil {
		declared = c.resolveType(s.Type)
		if !Compatible(declared, valueType) {
			c.errorf(s.Value.Span(), "cannot bind value of type %s to declared type %s", valueType, declared)
		}
	}
	c.bindPattern(s.Target, declared, false)
	return nil
}

// functionSignature computes a function literal's parameter/return types
// without checking its body, used to forward-declare a let-bound name for
// self-recursive calls before VisitFunctionLiteral runs the real check.
func (c *Checker) functionSignature(e *ast.FunctionLiteral) *Type {
	params := make([]*Type, len(e.Params))
	for i, p := range e.Params {
		pt := Any
		if p.Type != nil {
			pt = c.resolveType(p.Type)
		}
		params[i] = pt
	}
	ret := Any
	if e.ReturnType != nil {
		ret = c.resolveType(e.ReturnType)
	}
	return FunctionOf(params, ret, false)
}

func (c *Checker) VisitVarStatement(s *ast.VarStatement) any {
	valueType := c.checkExpr(s.Value)
	declared := valueType
	if s.Type != nil {
		declared = c.resolveType(s.Type)
		if !Compatible(declared, valueType) {
			c.errorf(s.Value.Span(), "cannot bind value of type %s to declared type %s", valueType, declared)
		}
	}
	c.scopes.declare(s.Name, binding{typ: declared, mutable: true, annotated: s.Type != nil})
	return nil
}

func (c *Checker) bindPattern(p ast.Pattern, t *Type, mutable bool) {
	switch pat := p.(type) {
	case *ast.IdentifierPattern:
		c.scopes.declare(pat.Name, binding{typ: t, mutable: mutable})
	case *ast.WildcardPattern:
		// binds nothing
	case *ast.LiteralPattern:
		// a literal pattern in a let binding can never fail to bind a name;
		// nothing to declare, the value is only checked structurally.
	case *ast.ListPattern:
		elem := Any
		if t.Kind == KindList {
			elem = t.Elem
		}
		for _, el := range pat.Elements {
			c.bindPattern(el, elem, mutable)
		}
		if pat.Rest != "" {
			c.scopes.declare(pat.Rest, binding{typ: ListOf(elem), mutable: mutable})
		}
	case *ast.TablePattern:
		for _, f := range pat.Fields {
			fieldType := Any
			if t.Fields != nil {
				if ft, ok := t.Fields[f.Name]; ok {
					fieldType = ft
				}
			}
			if f.Binding != nil {
				c.bindPattern(f.Binding, fieldType, mutable)
			} else {
				c.scopes.declare(f.Name, binding{typ: fieldType, mutable: mutable})
			}
		}
	}
}

func (c *Checker) VisitExpressionStatement(s *ast.ExpressionStatement) any {
	c.checkExpr(s.Expression)
	return nil
}

func (c *Checker) VisitWhileStatement(s *ast.WhileStatement) any {
	c.checkExpr(s.Condition)
	c.checkBlock(s.Body)
	return nil
}

func (c *Checker) VisitForInStatement(s *ast.ForInStatement) any {
	iterType := c.checkExpr(s.Iterable)
	elem := Any
	if iterType.Kind == KindList {
		elem = iterType.Elem
	}
	c.scopes.push()
	c.scopes.declare(s.Name, binding{typ: elem})
	for _, stmt := range s.Body.Statements {
		c.checkStatement(stmt)
	}
	if s.Body.Tail != nil {
		c.checkExpr(s.Body.Tail)
	}
	c.scopes.pop()
	return nil
}

func (c *Checker) VisitBreakStatement(s *ast.BreakStatement) any    { return nil }
func (c *Checker) VisitContinueStatement(s *ast.ContinueStatement) any { return nil }

func (c *Checker) VisitReturnStatement(s *ast.ReturnStatement) any {
	var t *Type = Null
	if s.Value != nil {
		t = c.checkExpr(s.Value)
	}
	if len(c.returnStack) > 0 {
		expected := c.returnStack[len(c.returnStack)-1]
		if !Compatible(expected, t) {
			c.errorf(s.Span(), "return type %s incompatible with declared return type %s", t, expected)
		}
	}
	return nil
}

func (c *Checker) VisitTypeDeclStatement(s *ast.TypeDeclStatement) any {
	if s.Alias != nil {
		c.namedTypes[s.Name] = c.resolveType(s.Alias)
		return nil
	}
	fields := map[string]*Type{}
	for _, f := range s.Fields {
		fields[f.Name] = c.resolveType(f.Type)
	}
	c.namedTypes[s.Name] = &Type{Kind: KindRecord, Name: s.Name, Fields: fields}
	// A record declaration also compiles to a runtime TypeDescriptor bound
	// to its name (compiler/statements.go), so it must be declared as a
	// value too, so expressions like "cast(p, Point)" type-check. Any is
	// used rather than a dedicated kind since the declared name denotes
	// the type descriptor value, not an instance of the record itself.
	c.scopes.declare(s.Name, binding{typ: Any, mutable: false, annotated: true})
	return nil
}

// checkBlock type-checks a block's statements and tail expression without
// producing a usable value type (used by statement positions that discard
// the block's value, e.g. while bodies).
func (c *Checker) checkBlock(b *ast.Block) *Type {
	c.scopes.push()
	defer c.scopes.pop()
	for _, stmt := range b.Statements {
		c.checkStatement(stmt)
	}
	if b.Tail != nil {
		return c.checkExpr(b.Tail)
	}
	return Null
}

// --- ExpressionVisitor ---

func (c *Checker) VisitLiteral(e *ast.Literal) any {
	switch e.Value.(type) {
	case float64:
		return Number
	case string:
		return String
	case bool:
		return Boolean
	case nil:
		return Null
	default:
		return Unknown
	}
}

func (c *Checker) VisitIdentifier(e *ast.Identifier) any {
	b, ok := c.scopes.resolve(e.Name)
	if !ok {
		c.errorf(e.SourceSpan, "undefined name %q", e.Name)
		return Unknown
	}
	return b.typ
}

func (c *Checker) VisitBinary(e *ast.Binary) any {
	left := c.checkExpr(e.Left)
	right := c.checkExpr(e.Right)
	switch e.Operator.Type {
	case token.PLUS:
		if left.Kind == KindString && right.Kind == KindString {
			return String
		}
		if Compatible(Number, left) && Compatible(Number, right) {
			return Number
		}
		c.errorf(e.SourceSpan, "'+' requires two numbers or two strings, got %s and %s", left, right)
		return Unknown
	case token.MINUS, token.STAR, token.SLASH, token.PERCENT:
		if !Compatible(Number, left) || !Compatible(Number, right) {
			c.errorf(e.SourceSpan, "%q requires numeric operands, got %s and %s", e.Operator.Lexeme, left, right)
			return Unknown
		}
		return Number
	case token.EQUAL_EQUAL, token.NOT_EQUAL:
		return Boolean
	case token.LESS, token.LESS_EQUAL, token.GREATER, token.GREATER_EQUAL:
		if !Compatible(left, right) {
			c.errorf(e.SourceSpan, "cannot compare %s with %s", left, right)
		}
		return Boolean
	default:
		return Unknown
	}
}

func (c *Checker) VisitUnary(e *ast.Unary) any {
	operand := c.checkExpr(e.Operand)
	switch e.Operator.Type {
	case token.MINUS:
		if !Compatible(Number, operand) {
			c.errorf(e.SourceSpan, "unary '-' requires a number, got %s", operand)
		}
		return Number
	case token.BANG:
		return Boolean
	default:
		return Unknown
	}
}

func (c *Checker) VisitCall(e *ast.Call) any {
	calleeType := c.checkExpr(e.Callee)
	argTypes := make([]*Type, len(e.Arguments))
	for i, a := range e.Arguments {
		argTypes[i] = c.checkExpr(a)
	}
	if calleeType.Kind == KindAny || calleeType.Kind == KindUnknown {
		return Any
	}
	if calleeType.Kind != KindFunction {
		c.errorf(e.SourceSpan, "cannot call value of type %s", calleeType)
		return Unknown
	}
	fixed := len(calleeType.Params)
	if calleeType.Variadic {
		fixed--
	}
	if calleeType.Variadic {
		if len(argTypes) < fixed {
			c.errorf(e.SourceSpan, "expected at least %d arguments, got %d", fixed, len(argTypes))
		}
	} else if len(argTypes) != fixed {
		c.errorf(e.SourceSpan, "expected %d arguments, got %d", fixed, len(argTypes))
	}
	for i := 0; i < fixed && i < len(argTypes); i++ {
		if !Compatible(calleeType.Params[i], argTypes[i]) {
			c.errorf(e.Arguments[i].Span(), "argument %d: expected %s, got %s", i+1, calleeType.Params[i], argTypes[i])
		}
	}
	return calleeType.Return
}

func (c *Checker) VisitIndex(e *ast.Index) any {
	recv := c.checkExpr(e.Receiver)
	key := c.checkExpr(e.Key)
	switch recv.Kind {
	case KindList:
		if !Compatible(Number, key) {
			c.errorf(e.Key.Span(), "list index must be a Number, got %s", key)
		}
		return recv.Elem
	case KindTable, KindTableWithFields, KindRecord:
		if !Compatible(String, key) {
			c.errorf(e.Key.Span(), "table index must be a String, got %s", key)
		}
		return Any
	case KindAny, KindUnknown:
		return Any
	default:
		c.errorf(e.SourceSpan, "cannot index value of type %s", recv)
		return Unknown
	}
}

func (c *Checker) VisitField(e *ast.Field) any {
	recv := c.checkExpr(e.Receiver)
	switch recv.Kind {
	case KindTableWithFields, KindRecord:
		if ft, ok := recv.Fields[e.Name]; ok {
			return ft
		}
		c.errorf(e.SourceSpan, "type %s has no field %q", recv, e.Name)
		return Unknown
	case KindTable, KindAny, KindUnknown:
		return Any
	default:
		c.errorf(e.SourceSpan, "cannot access field %q on type %s", e.Name, recv)
		return Unknown
	}
}

func (c *Checker) VisitListLiteral(e *ast.ListLiteral) any {
	if len(e.Elements) == 0 {
		return ListOf(Any)
	}
	elem := c.checkExpr(e.Elements[0])
	for _, el := range e.Elements[1:] {
		t := c.checkExpr(el)
		if !Compatible(elem, t) {
			elem = Any
		}
	}
	return ListOf(elem)
}

func (c *Checker) VisitTableLiteral(e *ast.TableLiteral) any {
	fields := map[string]*Type{}
	for _, f := range e.Fields {
		fields[f.Name] = c.checkExpr(f.Value)
	}
	return TableWithFields(fields)
}

func (c *Checker) VisitFunctionLiteral(e *ast.FunctionLiteral) any {
	c.scopes.push()
	params := make([]*Type, len(e.Params))
	for i, p := range e.Params {
		pt := Any
		if p.Type != nil {
			pt = c.resolveType(p.Type)
		}
		if p.Default != nil {
			defType := c.checkExpr(p.Default)
			if !Compatible(pt, defType) {
				c.errorf(p.Default.Span(), "default value type %s incompatible with parameter type %s", defType, pt)
			}
		}
		params[i] = pt
		c.scopes.declare(p.Name, binding{typ: pt})
	}
	ret := Any
	if e.ReturnType != nil {
		ret = c.resolveType(e.ReturnType)
	}
	c.returnStack = append(c.returnStack, ret)
	bodyType := c.checkBlockNoPush(e.Body)
	if e.ReturnType != nil && !Compatible(ret, bodyType) {
		c.errorf(e.Body.Span(), "function body type %s incompatible with declared return type %s", bodyType, ret)
	}
	c.returnStack = c.returnStack[:len(c.returnStack)-1]
	c.scopes.pop()
	return FunctionOf(params, ret, false)
}

// checkBlockNoPush checks a block's statements in the current (already
// pushed) scope, used for function bodies where the parameter scope and
// body scope are the same level.
func (c *Checker) checkBlockNoPush(b *ast.Block) *Type {
	for _, stmt := range b.Statements {
		c.checkStatement(stmt)
	}
	if b.Tail != nil {
		return c.checkExpr(b.Tail)
	}
	return Null
}

func (c *Checker) VisitIf(e *ast.If) any {
	c.checkExpr(e.Condition)
	result := c.checkBlock(e.Then)
	for _, el := range e.Elifs {
		c.checkExpr(el.Condition)
		t := c.checkBlock(el.Body)
		if !Compatible(result, t) {
			result = Any
		}
	}
	if e.Else != nil {
		t := c.checkBlock(e.Else)
		if !Compatible(result, t) {
			result = Any
		}
	} else {
		result = Any
	}
	return result
}

func (c *Checker) VisitBlock(e *ast.Block) any {
	return c.checkBlock(e)
}

func (c *Checker) VisitMatch(e *ast.Match) any {
	subject := c.checkExpr(e.Subject)
	var result *Type
	for _, arm := range e.Arms {
		c.scopes.push()
		c.bindMatchPattern(arm.Pattern, subject)
		if arm.Guard != nil {
			c.checkExpr(arm.Guard)
		}
		t := c.checkExpr(arm.Body)
		c.scopes.pop()
		if result == nil {
			result = t
		} else if !Compatible(result, t) {
			result = Any
		}
	}
	if result == nil {
		return Any
	}
	return result
}

func (c *Checker) bindMatchPattern(p ast.Pattern, subject *Type) {
	c.bindPattern(p, subject, false)
}

func (c *Checker) VisitAssign(e *ast.Assign) any {
	valueType := c.checkExpr(e.Value)
	switch target := e.Target.(type) {
	case *ast.Identifier:
		b, ok := c.scopes.resolve(target.Name)
		if !ok {
			c.errorf(target.SourceSpan, "undefined name %q", target.Name)
			return valueType
		}
		if !b.mutable {
			c.errorf(e.SourceSpan, "cannot assign to immutable binding %q", target.Name)
		}
		if !Compatible(b.typ, valueType) {
			c.errorf(e.SourceSpan, "cannot assign value of type %s to %q of type %s", valueType, target.Name, b.typ)
		}
	case *ast.Index:
		c.checkExpr(target)
	case *ast.Field:
		c.checkExpr(target)
	}
	return valueType
}
