package compiler

import (
	"github.com/pkg/errors"

	"luma/ast"
	"luma/diag"
	"luma/token"
)

// local tracks one declared local variable's stack slot and lexical depth,
// plus an isCaptured flag so scope exit can decide between CloseUpvalue and
// Pop for that slot.
type local struct {
	name       string
	depth      int
	slot       int
	isCaptured bool
}

type loopFrame struct {
	start     int
	localBase int
	breaks    []int
	continues []int
}

// funcState holds the per-function compilation context: the chunk being
// built, its locals, its upvalue descriptors, and its loop stack. One
// funcState exists per nested function literal, chained through enclosing
// so that resolveUpvalue can walk outward to find a variable declared in a
// surrounding function.
type funcState struct {
	enclosing  *funcState
	chunk      *Chunk
	locals     []local
	scopeDepth int
	upvalues   []UpvalueDesc
	loops      []*loopFrame
	name       string
	variadic   bool
}

// Compiler lowers a type-checked ast.Program into bytecode. Compile errors
// are fatal on the first occurrence, unlike the parser and type checker,
// which accumulate diagnostics and keep going.
type Compiler struct {
	file    string
	current *funcState
	err     error
}

// New constructs a Compiler attributing compile errors to file.
func New(file string) *Compiler {
	return &Compiler{file: file}
}

// compileError constructs a diag.Diagnostic wrapped with pkg/errors, so
// callers can use errors.Cause to recover the structured diagnostic while
// satisfying the ordinary Go error interface.
func (c *Compiler) compileError(span diag.Span, format string, args ...any) error {
	d := diag.Errorf(diag.KindCompile, span, c.file, format, args...)
	return errors.WithStack(d)
}

// Compile compiles an entire program into a top-level FunctionProto acting
// as the script's implicit main function (no parameters, arity 0).
func (c *Compiler) Compile(program *ast.Program) (*FunctionProto, error) {
	c.current = &funcState{chunk: NewChunk(), name: "<script>"}
	for _, stmt := range program.Statements {
		if err := c.compileStatement(stmt); err != nil {
			return nil, err
		}
	}
	c.emit(program.SourceSpan, MakeInstruction(OpHalt))
	return &FunctionProto{
		Name: "<script>", Arity: 0, NumLocals: len(c.current.locals), Chunk: c.current.chunk,
	}, nil
}

func (c *Compiler) emit(span diag.Span, bytes []byte) int {
	return c.current.chunk.Emit(span, bytes)
}

func (c *Compiler) beginScope() { c.current.scopeDepth++ }

// endScope pops every local declared in the scope being exited. Captured
// locals first get CloseUpvalue so their value outlives the stack frame
// through the shared upvalue cell; every local is then discarded with Pop.
func (c *Compiler) endScope(span diag.Span) {
	c.current.scopeDepth--
	fs := c.current
	for len(fs.locals) > 0 && fs.locals[len(fs.locals)-1].depth > fs.scopeDepth {
		l := fs.locals[len(fs.locals)-1]
		if l.isCaptured {
			c.emit(span, MakeInstruction(OpCloseUpvalue, l.slot))
		}
		c.emit(span, MakeInstruction(OpPop))
		fs.locals = fs.locals[:len(fs.locals)-1]
	}
}

func (c *Compiler) declareLocal(name string) int {
	fs := c.current
	slot := len(fs.locals)
	fs.locals = append(fs.locals, local{name: name, depth: fs.scopeDepth, slot: slot})
	return slot
}

// resolveLocal looks up name in fs's own locals, innermost declaration
// first.
func resolveLocal(fs *funcState, name string) (int, bool) {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i].name == name {
			return fs.locals[i].slot, true
		}
	}
	return 0, false
}

// resolveUpvalue walks outward through enclosing function contexts,
// marking the defining local as captured and threading an upvalue
// descriptor chain through every intermediate frame.
func resolveUpvalue(fs *funcState, name string) (int, bool) {
	if fs.enclosing == nil {
		return 0, false
	}
	if slot, ok := resolveLocal(fs.enclosing, name); ok {
		for i := range fs.enclosing.locals {
			if fs.enclosing.locals[i].slot == slot {
				fs.enclosing.locals[i].isCaptured = true
			}
		}
		return addUpvalue(fs, slot, true), true
	}
	if idx, ok := resolveUpvalue(fs.enclosing, name); ok {
		return addUpvalue(fs, idx, false), true
	}
	return 0, false
}

func addUpvalue(fs *funcState, index int, isLocal bool) int {
	for i, uv := range fs.upvalues {
		if uv.Index == index && uv.IsLocal == isLocal {
			return i
		}
	}
	fs.upvalues = append(fs.upvalues, UpvalueDesc{Index: index, IsLocal: isLocal})
	return len(fs.upvalues) - 1
}

// nameConstant interns name as a string constant, used for GetGlobal,
// GetField and similar name-keyed opcodes.
func (c *Compiler) nameConstant(name string) int {
	return c.current.chunk.AddConstant(name)
}

func binaryOpcode(tt token.TokenType) (Opcode, bool) {
	switch tt {
	case token.PLUS:
		return OpAdd, true
	case token.MINUS:
		return OpSub, true
	case token.STAR:
		return OpMul, true
	case token.SLASH:
		return OpDiv, true
	case token.PERCENT:
		return OpMod, true
	case token.EQUAL_EQUAL:
		return OpEq, true
	case token.NOT_EQUAL:
		return OpNe, true
	case token.LESS:
		return OpLt, true
	case token.LESS_EQUAL:
		return OpLe, true
	case token.GREATER:
		return OpGt, true
	case token.GREATER_EQUAL:
		return OpGe, true
	default:
		return 0, false
	}
}

// --- ExpressionVisitor ---
//
// Every Visit method returns nil; a failing one records its error in c.err
// through fail (which keeps the first error) instead of through the
// visitor's `any` return, since ast.Expression's Accept signature carries
// no error channel of its own. compileExpr recovers the error by checking
// c.err after Accept returns.

func (c *Compiler) compileExpr(e ast.Expression) error {
	c.err = nil
	e.Accept(c)
	return c.err
}

// compileStatement is the StatementVisitor counterpart of compileExpr.
func (c *Compiler) compileStatement(s ast.Statement) error {
	c.err = nil
	s.Accept(c)
	return c.err
}

func (c *Compiler) fail(err error) any {
	if c.err == nil {
		c.err = err
	}
	return nil
}

// emitLoopExit is shared by break and continue: it is a compile error
// outside of any loop, otherwise it unwinds every local declared since the
// nearest enclosing loop began and emits a placeholder Jump whose target
// the caller patches once the loop's extent is known.
func (c *Compiler) emitLoopExit(span diag.Span, what string) (int, error) {
	if len(c.current.loops) == 0 {
		return 0, c.compileError(span, "%s outside of a loop", what)
	}
	frame := c.current.loops[len(c.current.loops)-1]
	fs := c.current
	for i := len(fs.locals) - 1; i >= frame.localBase; i-- {
		if fs.locals[i].isCaptured {
			c.emit(span, MakeInstruction(OpCloseUpvalue, fs.locals[i].slot))
		}
		c.emit(span, MakeInstruction(OpPop))
	}
	return c.emit(span, MakeInstruction(OpJump, 0)), nil
}

func (c *Compiler) VisitLiteral(e *ast.Literal) any {
	switch e.Value.(type) {
	case nil:
		c.emit(e.SourceSpan, MakeInstruction(OpNull))
	case bool:
		if e.Value.(bool) {
			c.emit(e.SourceSpan, MakeInstruction(OpTrue))
		} else {
			c.emit(e.SourceSpan, MakeInstruction(OpFalse))
		}
	default:
		idx := c.current.chunk.AddConstant(e.Value)
		c.emit(e.SourceSpan, MakeInstruction(OpConst, idx))
	}
	return nil
}

func (c *Compiler) VisitIdentifier(e *ast.Identifier) any {
	if slot, ok := resolveLocal(c.current, e.Name); ok {
		c.emit(e.SourceSpan, MakeInstruction(OpGetLocal, slot))
		return nil
	}
	if idx, ok := resolveUpvalue(c.current, e.Name); ok {
		c.emit(e.SourceSpan, MakeInstruction(OpGetUpvalue, idx))
		return nil
	}
	idx := c.nameConstant(e.Name)
	c.emit(e.SourceSpan, MakeInstruction(OpGetGlobal, idx))
	return nil
}

func (c *Compiler) VisitBinary(e *ast.Binary) any {
	if err := c.compileExpr(e.Left); err != nil {
		return c.fail(err)
	}
	if err := c.compileExpr(e.Right); err != nil {
		return c.fail(err)
	}
	op, ok := binaryOpcode(e.Operator.Type)
	if !ok {
		return c.fail(c.compileError(e.SourceSpan, "unsupported binary operator %q", e.Operator.Lexeme))
	}
	c.emit(e.SourceSpan, MakeInstruction(op))
	return nil
}

func (c *Compiler) VisitUnary(e *ast.Unary) any {
	if err := c.compileExpr(e.Operand); err != nil {
		return c.fail(err)
	}
	switch e.Operator.Type {
	case token.MINUS:
		c.emit(e.SourceSpan, MakeInstruction(OpNeg))
	case token.BANG:
		c.emit(e.SourceSpan, MakeInstruction(OpNot))
	default:
		return c.fail(c.compileError(e.SourceSpan, "unsupported unary operator %q", e.Operator.Lexeme))
	}
	return nil
}

func (c *Compiler) VisitCall(e *ast.Call) any {
	if err := c.compileExpr(e.Callee); err != nil {
		return c.fail(err)
	}
	for _, a := range e.Arguments {
		if err := c.compileExpr(a); err != nil {
			return c.fail(err)
		}
	}
	c.emit(e.SourceSpan, MakeInstruction(OpCall, len(e.Arguments)))
	return nil
}

func (c *Compiler) VisitIndex(e *ast.Index) any {
	if err := c.compileExpr(e.Receiver); err != nil {
		return c.fail(err)
	}
	if err := c.compileExpr(e.Key); err != nil {
		return c.fail(err)
	}
	c.emit(e.SourceSpan, MakeInstruction(OpIndex))
	return nil
}

func (c *Compiler) VisitField(e *ast.Field) any {
	if err := c.compileExpr(e.Receiver); err != nil {
		return c.fail(err)
	}
	idx := c.nameConstant(e.Name)
	c.emit(e.SourceSpan, MakeInstruction(OpGetField, idx))
	return nil
}

func (c *Compiler) VisitListLiteral(e *ast.ListLiteral) any {
	for _, el := range e.Elements {
		if err := c.compileExpr(el); err != nil {
			return c.fail(err)
		}
	}
	c.emit(e.SourceSpan, MakeInstruction(OpMakeList, len(e.Elements)))
	return nil
}

func (c *Compiler) VisitTableLiteral(e *ast.TableLiteral) any {
	for _, f := range e.Fields {
		idx := c.nameConstant(f.Name)
		c.emit(e.SourceSpan, MakeInstruction(OpConst, idx))
		if err := c.compileExpr(f.Value); err != nil {
			return c.fail(err)
		}
	}
	c.emit(e.SourceSpan, MakeInstruction(OpMakeTable, len(e.Fields)))
	return nil
}

func (c *Compiler) VisitFunctionLiteral(e *ast.FunctionLiteral) any {
	proto, err := c.compileFunction("<anonymous>", e.Params, e.Body, e.SourceSpan)
	if err != nil {
		return c.fail(err)
	}
	protoIdx := c.current.chunk.AddConstant(proto)
	c.emit(e.SourceSpan, EmitClosure(protoIdx, proto.Upvalues))
	return nil
}

// compileFunction compiles params+body into a new FunctionProto, pushing a
// fresh funcState chained to the current one via enclosing so
// resolveUpvalue can walk outward.
func (c *Compiler) compileFunction(name string, params []ast.Param, body *ast.Block, span diag.Span) (*FunctionProto, error) {
	fs := &funcState{enclosing: c.current, chunk: NewChunk(), name: name}
	c.current = fs
	c.beginScope()
	for _, p := range params {
		c.declareLocal(p.Name)
	}
	if err := c.compileBlockBody(body); err != nil {
		c.current = fs.enclosing
		return nil, err
	}
	// implicit return of the block's value (Null if none)
	c.emit(body.SourceSpan, MakeInstruction(OpReturn))
	proto := &FunctionProto{
		Name: name, Arity: len(params), NumLocals: len(fs.locals),
		Upvalues: fs.upvalues, Chunk: fs.chunk,
	}
	c.current = fs.enclosing
	return proto, nil
}

// compileBlockBody compiles a block's statements and, if present, its tail
// expression, leaving the tail's value (or Null) on the stack uncleaned by
// endScope — the caller decides whether to keep or discard it.
func (c *Compiler) compileBlockBody(b *ast.Block) error {
	for _, stmt := range b.Statements {
		if err := c.compileStatement(stmt); err != nil {
			return err
		}
	}
	if b.Tail != nil {
		if err := c.compileExpr(b.Tail); err != nil {
			return err
		}
	} else {
		c.emit(b.SourceSpan, MakeInstruction(OpNull))
	}
	return nil
}

// compileValueBlock compiles a nested do/end block used as an expression:
// push a scope, compile its body (leaving one value on the stack), then
// close the scope without disturbing that value.
func (c *Compiler) compileValueBlock(b *ast.Block) error {
	c.beginScope()
	if err := c.compileBlockBody(b); err != nil {
		return err
	}
	c.closeScopeKeepTop(b.SourceSpan)
	return nil
}

// closeScopeKeepTop exits the current scope like endScope, but preserves
// the value on top of the stack (a block's tail expression, an if's
// branch result, a match arm's body): a local is never actually on top of
// the stack once that result has been pushed above it, so each local is
// bubbled out from beneath the result with Swap before being discarded,
// rather than popped directly.
func (c *Compiler) closeScopeKeepTop(span diag.Span) {
	c.current.scopeDepth--
	fs := c.current
	for len(fs.locals) > 0 && fs.locals[len(fs.locals)-1].depth > fs.scopeDepth {
		l := fs.locals[len(fs.locals)-1]
		if l.isCaptured {
			c.emit(span, MakeInstruction(OpCloseUpvalue, l.slot))
		}
		c.emit(span, MakeInstruction(OpSwap))
		c.emit(span, MakeInstruction(OpPop))
		fs.locals = fs.locals[:len(fs.locals)-1]
	}
}

// emitScopeCleanup discards the locals declared at the current scope
// depth via plain Pop/CloseUpvalue, without touching scope bookkeeping.
// Used on a match arm's guard-failure path, which must tear down that
// arm's pattern bindings before falling through to the next arm's test,
// while the real endScope/closeScopeKeepTop call for the arm still runs
// later on the guard-success path to keep the compiler's own bookkeeping
// in sync for whatever follows.
func (c *Compiler) emitScopeCleanup(span diag.Span) {
	fs := c.current
	for i := len(fs.locals) - 1; i >= 0 && fs.locals[i].depth == fs.scopeDepth; i-- {
		if fs.locals[i].isCaptured {
			c.emit(span, MakeInstruction(OpCloseUpvalue, fs.locals[i].slot))
		}
		c.emit(span, MakeInstruction(OpPop))
	}
}

func (c *Compiler) VisitIf(e *ast.If) any {
	if err := c.compileExpr(e.Condition); err != nil {
		return c.fail(err)
	}
	elseJump := c.emit(e.SourceSpan, MakeInstruction(OpJumpIfFalse, 0))
	if err := c.compileValueBlock(e.Then); err != nil {
		return c.fail(err)
	}
	endJumps := []int{c.emit(e.SourceSpan, MakeInstruction(OpJump, 0))}
	c.current.chunk.PatchJump(elseJump, len(c.current.chunk.Code))

	for _, el := range e.Elifs {
		if err := c.compileExpr(el.Condition); err != nil {
			return c.fail(err)
		}
		nextJump := c.emit(el.Condition.Span(), MakeInstruction(OpJumpIfFalse, 0))
		if err := c.compileValueBlock(el.Body); err != nil {
			return c.fail(err)
		}
		endJumps = append(endJumps, c.emit(el.Body.SourceSpan, MakeInstruction(OpJump, 0)))
		c.current.chunk.PatchJump(nextJump, len(c.current.chunk.Code))
	}

	if e.Else != nil {
		if err := c.compileValueBlock(e.Else); err != nil {
			return c.fail(err)
		}
	} else {
		c.emit(e.SourceSpan, MakeInstruction(OpNull))
	}

	end := len(c.current.chunk.Code)
	for _, j := range endJumps {
		c.current.chunk.PatchJump(j, end)
	}
	return nil
}

func (c *Compiler) VisitBlock(e *ast.Block) any {
	if err := c.compileValueBlock(e); err != nil {
		return c.fail(err)
	}
	return nil
}

func (c *Compiler) VisitAssign(e *ast.Assign) any {
	switch target := e.Target.(type) {
	case *ast.Identifier:
		if err := c.compileExpr(e.Value); err != nil {
			return c.fail(err)
		}
		c.emit(e.SourceSpan, MakeInstruction(OpDup))
		if slot, ok := resolveLocal(c.current, target.Name); ok {
			c.emit(e.SourceSpan, MakeInstruction(OpSetLocal, slot))
			return nil
		}
		if idx, ok := resolveUpvalue(c.current, target.Name); ok {
			c.emit(e.SourceSpan, MakeInstruction(OpSetUpvalue, idx))
			return nil
		}
		idx := c.nameConstant(target.Name)
		c.emit(e.SourceSpan, MakeInstruction(OpSetGlobal, idx))
		return nil
	case *ast.Index:
		if err := c.compileExpr(target.Receiver); err != nil {
			return c.fail(err)
		}
		if err := c.compileExpr(target.Key); err != nil {
			return c.fail(err)
		}
		if err := c.compileExpr(e.Value); err != nil {
			return c.fail(err)
		}
		c.emit(e.SourceSpan, MakeInstruction(OpSetIndex))
		return nil
	case *ast.Field:
		if err := c.compileExpr(target.Receiver); err != nil {
			return c.fail(err)
		}
		if err := c.compileExpr(e.Value); err != nil {
			return c.fail(err)
		}
		idx := c.nameConstant(target.Name)
		c.emit(e.SourceSpan, MakeInstruction(OpSetField, idx))
		return nil
	default:
		return c.fail(c.compileError(e.SourceSpan, "unsupported assignment target %T", target))
	}
}
