package compiler

import "luma/ast"

// --- StatementVisitor ---

func (c *Compiler) VisitLetStatement(s *ast.LetStatement) any {
	isGlobal := c.current.enclosing == nil && c.current.scopeDepth == 0

	// A local let binding a bare identifier to a function literal may call
	// itself by that name. Globals already resolve this way (OpGetGlobal
	// reads the name lazily, after OpDefineGlobal has run), but a local slot
	// must be reserved before compiling the closure body so the recursive
	// reference captures it as an upvalue instead of misreading it as an
	// undefined global.
	if !isGlobal {
		if ident, ok := s.Target.(*ast.IdentifierPattern); ok {
			if _, ok := s.Value.(*ast.FunctionLiteral); ok {
				c.declareLocal(ident.Name)
				if err := c.compileExpr(s.Value); err != nil {
					return c.fail(err)
				}
				return nil
			}
		}
	}

	if err := c.compileExpr(s.Value); err != nil {
		return c.fail(err)
	}
	if err := c.bindPatternValue(s.Target, isGlobal); err != nil {
		return c.fail(err)
	}
	return nil
}

func (c *Compiler) VisitVarStatement(s *ast.VarStatement) any {
	if err := c.compileExpr(s.Value); err != nil {
		return c.fail(err)
	}
	if c.current.enclosing == nil && c.current.scopeDepth == 0 {
		idx := c.nameConstant(s.Name)
		c.emit(s.SourceSpan, MakeInstruction(OpDefineGlobal, idx))
	} else {
		c.declareLocal(s.Name)
	}
	return nil
}

func (c *Compiler) VisitExpressionStatement(s *ast.ExpressionStatement) any {
	if err := c.compileExpr(s.Expression); err != nil {
		return c.fail(err)
	}
	c.emit(s.SourceSpan, MakeInstruction(OpPop))
	return nil
}

func (c *Compiler) VisitWhileStatement(s *ast.WhileStatement) any {
	start := len(c.current.chunk.Code)
	frame := &loopFrame{start: start, localBase: len(c.current.locals)}
	c.current.loops = append(c.current.loops, frame)

	if err := c.compileExpr(s.Condition); err != nil {
		return c.failLoop(err)
	}
	exitJump := c.emit(s.Condition.Span(), MakeInstruction(OpJumpIfFalse, 0))

	c.beginScope()
	if err := c.compileBlockBody(s.Body); err != nil {
		return c.failLoop(err)
	}
	c.emit(s.Body.SourceSpan, MakeInstruction(OpPop))
	c.endScope(s.Body.SourceSpan)

	backJump := c.emit(s.SourceSpan, MakeInstruction(OpJump, 0))
	c.current.chunk.PatchJump(backJump, start)

	loopEnd := len(c.current.chunk.Code)
	c.current.chunk.PatchJump(exitJump, loopEnd)
	for _, b := range frame.breaks {
		c.current.chunk.PatchJump(b, loopEnd)
	}
	for _, cont := range frame.continues {
		c.current.chunk.PatchJump(cont, start)
	}
	c.current.loops = c.current.loops[:len(c.current.loops)-1]
	return nil
}

func (c *Compiler) failLoop(err error) any {
	c.current.loops = c.current.loops[:len(c.current.loops)-1]
	return c.fail(err)
}

// VisitForInStatement desugars "for x in e do B end" onto the
// host-provided iterator protocol (stdlib.Iter): call the global "iter"
// function on e, then repeatedly call its "next" field, reading a
// {value, done} step table, until done is true.
func (c *Compiler) VisitForInStatement(s *ast.ForInStatement) any {
	c.beginScope()
	iterIdx := c.nameConstant("iter")
	c.emit(s.SourceSpan, MakeInstruction(OpGetGlobal, iterIdx))
	if err := c.compileExpr(s.Iterable); err != nil {
		c.endScope(s.SourceSpan)
		return c.fail(err)
	}
	c.emit(s.SourceSpan, MakeInstruction(OpCall, 1))
	iterSlot := c.declareLocal("__iter")

	start := len(c.current.chunk.Code)
	frame := &loopFrame{start: start, localBase: len(c.current.locals)}
	c.current.loops = append(c.current.loops, frame)

	nextIdx := c.nameConstant("next")
	c.emit(s.SourceSpan, MakeInstruction(OpGetLocal, iterSlot))
	c.emit(s.SourceSpan, MakeInstruction(OpGetField, nextIdx))
	c.emit(s.SourceSpan, MakeInstruction(OpCall, 0))
	stepSlot := c.declareLocal("__step")

	doneIdx := c.nameConstant("done")
	c.emit(s.SourceSpan, MakeInstruction(OpGetLocal, stepSlot))
	c.emit(s.SourceSpan, MakeInstruction(OpGetField, doneIdx))
	keepGoing := c.emit(s.SourceSpan, MakeInstruction(OpJumpIfFalse, 0))
	// done == true: unwind __step (the only local live past localBase here)
	// and fall out of the loop exactly like an explicit break.
	c.emit(s.SourceSpan, MakeInstruction(OpPop))
	doneExit := c.emit(s.SourceSpan, MakeInstruction(OpJump, 0))
	frame.breaks = append(frame.breaks, doneExit)
	c.current.chunk.PatchJump(keepGoing, len(c.current.chunk.Code))

	valueIdx := c.nameConstant("value")
	c.emit(s.SourceSpan, MakeInstruction(OpGetLocal, stepSlot))
	c.emit(s.SourceSpan, MakeInstruction(OpGetField, valueIdx))
	c.beginScope()
	c.declareLocal(s.Name)

	if err := c.compileBlockBody(s.Body); err != nil {
		c.current.loops = c.current.loops[:len(c.current.loops)-1]
		return c.fail(err)
	}
	c.emit(s.Body.SourceSpan, MakeInstruction(OpPop))
	c.endScope(s.Body.SourceSpan)

	c.emit(s.SourceSpan, MakeInstruction(OpPop)) // drop __step before re-looping
	c.current.locals = c.current.locals[:len(c.current.locals)-1]

	backJump := c.emit(s.SourceSpan, MakeInstruction(OpJump, 0))
	c.current.chunk.PatchJump(backJump, start)

	loopEnd := len(c.current.chunk.Code)
	for _, b := range frame.breaks {
		c.current.chunk.PatchJump(b, loopEnd)
	}
	for _, cont := range frame.continues {
		c.current.chunk.PatchJump(cont, start)
	}
	c.current.loops = c.current.loops[:len(c.current.loops)-1]

	c.endScope(s.SourceSpan) // pops __iter
	return nil
}

func (c *Compiler) VisitBreakStatement(s *ast.BreakStatement) any {
	offset, err := c.emitLoopExit(s.SourceSpan, "break")
	if err != nil {
		return c.fail(err)
	}
	frame := c.current.loops[len(c.current.loops)-1]
	frame.breaks = append(frame.breaks, offset)
	return nil
}

func (c *Compiler) VisitContinueStatement(s *ast.ContinueStatement) any {
	offset, err := c.emitLoopExit(s.SourceSpan, "continue")
	if err != nil {
		return c.fail(err)
	}
	frame := c.current.loops[len(c.current.loops)-1]
	frame.continues = append(frame.continues, offset)
	return nil
}

func (c *Compiler) VisitReturnStatement(s *ast.ReturnStatement) any {
	if s.Value != nil {
		if err := c.compileExpr(s.Value); err != nil {
			return c.fail(err)
		}
	} else {
		c.emit(s.SourceSpan, MakeInstruction(OpNull))
	}
	c.emit(s.SourceSpan, MakeInstruction(OpReturn))
	return nil
}

// VisitTypeDeclStatement compiles "type Name = { field: T, ... }" into a
// runtime TypeDescriptor bound to Name, usable by the host's cast/
// isInstanceOf natives for structural checks. A pure alias ("type Id =
// Number") only shapes typecheck.Checker's named-type table and has no
// runtime value, since it carries no field list to check against.
func (c *Compiler) VisitTypeDeclStatement(s *ast.TypeDeclStatement) any {
	if s.Alias != nil {
		return nil
	}
	fields := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		fields[i] = f.Name
	}
	idx := c.current.chunk.AddConstant(&TypeDescriptor{Name: s.Name, Fields: fields})
	c.emit(s.SourceSpan, MakeInstruction(OpConst, idx))
	if c.current.enclosing == nil && c.current.scopeDepth == 0 {
		nameIdx := c.nameConstant(s.Name)
		c.emit(s.SourceSpan, MakeInstruction(OpDefineGlobal, nameIdx))
	} else {
		c.declareLocal(s.Name)
	}
	return nil
}

// VisitMatch compiles "match subject do arm* end". The subject is
// evaluated once into a hidden local; each arm runs a structural test
// against it, then (on success) binds the arm's pattern in its own scope,
// checks an optional guard, and evaluates the arm's body. A trailing Panic
// traps an inexhaustive match at runtime.
func (c *Compiler) VisitMatch(e *ast.Match) any {
	if err := c.compileExpr(e.Subject); err != nil {
		return c.fail(err)
	}
	c.beginScope()
	matchSlot := c.declareLocal("__match_val")

	var matchEndJumps []int
	for _, arm := range e.Arms {
		failJumps, err := c.compilePatternTest(arm.Pattern, matchSlot)
		if err != nil {
			c.endScope(e.SourceSpan)
			return c.fail(err)
		}

		c.beginScope()
		if err := c.compilePatternBind(arm.Pattern, matchSlot); err != nil {
			return c.fail(err)
		}

		if arm.Guard != nil {
			if err := c.compileExpr(arm.Guard); err != nil {
				return c.fail(err)
			}
			guardPass := c.emit(arm.Guard.Span(), MakeInstruction(OpJumpIfTrue, 0))
			c.emitScopeCleanup(arm.Guard.Span())
			guardFail := c.emit(arm.Guard.Span(), MakeInstruction(OpJump, 0))
			failJumps = append(failJumps, guardFail)
			c.current.chunk.PatchJump(guardPass, len(c.current.chunk.Code))
		}

		if err := c.compileExpr(arm.Body); err != nil {
			return c.fail(err)
		}
		c.closeScopeKeepTop(arm.Body.Span())
		matchEndJumps = append(matchEndJumps, c.emit(arm.Body.Span(), MakeInstruction(OpJump, 0)))

		nextArm := len(c.current.chunk.Code)
		for _, j := range failJumps {
			c.current.chunk.PatchJump(j, nextArm)
		}
	}

	msgIdx := c.current.chunk.AddConstant("no match arm matched the subject value")
	c.emit(e.SourceSpan, MakeInstruction(OpPanic, msgIdx))

	matchEnd := len(c.current.chunk.Code)
	for _, j := range matchEndJumps {
		c.current.chunk.PatchJump(j, matchEnd)
	}
	c.closeScopeKeepTop(e.SourceSpan)
	return nil
}
