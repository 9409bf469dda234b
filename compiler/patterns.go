package compiler

import (
	"luma/ast"
	"luma/diag"
)

// bindPatternValue binds a pattern to a value already sitting on top of
// the stack, declaring a local (or, at script top level, a global) for
// every name the pattern introduces. Used both by "let" (the bound value
// is the let's right-hand side) and by match arms (the bound value is a
// field or element extracted from the subject), which is why it takes no
// ast.LetStatement directly.
func (c *Compiler) bindPatternValue(pat ast.Pattern, isGlobal bool) error {
	switch p := pat.(type) {
	case *ast.IdentifierPattern:
		if isGlobal {
			idx := c.nameConstant(p.Name)
			c.emit(p.SourceSpan, MakeInstruction(OpDefineGlobal, idx))
		} else {
			c.declareLocal(p.Name)
		}
		return nil

	case *ast.WildcardPattern:
		c.emit(p.SourceSpan, MakeInstruction(OpPop))
		return nil

	case *ast.LiteralPattern:
		// Binds nothing; equality was already checked by the caller when
		// used as a match-arm pattern, or is nonsensical as a let target.
		c.emit(p.SourceSpan, MakeInstruction(OpPop))
		return nil

	case *ast.ListPattern:
		slot := c.declareLocal("__destructure_val")
		for i, el := range p.Elements {
			c.emit(p.SourceSpan, MakeInstruction(OpGetLocal, slot))
			idx := c.current.chunk.AddConstant(float64(i))
			c.emit(p.SourceSpan, MakeInstruction(OpConst, idx))
			c.emit(p.SourceSpan, MakeInstruction(OpIndex))
			if err := c.bindPatternValue(el, isGlobal); err != nil {
				return err
			}
		}
		if p.Rest != "" {
			c.emit(p.SourceSpan, MakeInstruction(OpGetLocal, slot))
			idx := c.current.chunk.AddConstant(float64(len(p.Elements)))
			c.emit(p.SourceSpan, MakeInstruction(OpConst, idx))
			restIdx := c.nameConstant("list_rest")
			c.emit(p.SourceSpan, MakeInstruction(OpNativeCall, restIdx, 2))
			if isGlobal {
				nameIdx := c.nameConstant(p.Rest)
				c.emit(p.SourceSpan, MakeInstruction(OpDefineGlobal, nameIdx))
			} else {
				c.declareLocal(p.Rest)
			}
		}
		c.dropTempIfGlobal(p.SourceSpan, isGlobal)
		return nil

	case *ast.TablePattern:
		slot := c.declareLocal("__destructure_val")
		for _, f := range p.Fields {
			c.emit(p.SourceSpan, MakeInstruction(OpGetLocal, slot))
			idx := c.nameConstant(f.Name)
			c.emit(p.SourceSpan, MakeInstruction(OpGetField, idx))
			binding := f.Binding
			if binding == nil {
				binding = &ast.IdentifierPattern{Name: f.Name, SourceSpan: p.SourceSpan}
			}
			if err := c.bindPatternValue(binding, isGlobal); err != nil {
				return err
			}
		}
		c.dropTempIfGlobal(p.SourceSpan, isGlobal)
		return nil

	default:
		return c.compileError(pat.Span(), "unsupported pattern %T", p)
	}
}

// dropTempIfGlobal discards the "__destructure_val" temp local introduced
// by bindPatternValue's compound cases when every leaf binds as a global:
// there is no enclosing scope exit to reclaim it later, since top-level
// declarations never push a lexical scope.
func (c *Compiler) dropTempIfGlobal(span diag.Span, isGlobal bool) {
	if !isGlobal {
		return
	}
	c.emit(span, MakeInstruction(OpPop))
	c.current.locals = c.current.locals[:len(c.current.locals)-1]
}

// compilePatternTest emits the boolean test sequence for a match-arm
// pattern against the value held in sourceSlot, WITHOUT binding any
// names. It returns the offsets of placeholder Jump/JumpIfFalse
// instructions the caller must patch to "try the next arm" on failure.
// Irrefutable patterns (identifier, wildcard) return no jumps at all.
func (c *Compiler) compilePatternTest(pat ast.Pattern, sourceSlot int) ([]int, error) {
	switch p := pat.(type) {
	case *ast.IdentifierPattern, *ast.WildcardPattern:
		return nil, nil

	case *ast.LiteralPattern:
		c.emit(p.SourceSpan, MakeInstruction(OpGetLocal, sourceSlot))
		idx := c.current.chunk.AddConstant(p.Value)
		c.emit(p.SourceSpan, MakeInstruction(OpConst, idx))
		c.emit(p.SourceSpan, MakeInstruction(OpEq))
		fail := c.emit(p.SourceSpan, MakeInstruction(OpJumpIfFalse, 0))
		return []int{fail}, nil

	case *ast.ListPattern:
		var fails []int
		c.emit(p.SourceSpan, MakeInstruction(OpGetLocal, sourceSlot))
		lenIdx := c.nameConstant("list_len")
		c.emit(p.SourceSpan, MakeInstruction(OpNativeCall, lenIdx, 1))
		countIdx := c.current.chunk.AddConstant(float64(len(p.Elements)))
		c.emit(p.SourceSpan, MakeInstruction(OpConst, countIdx))
		if p.Rest != "" {
			c.emit(p.SourceSpan, MakeInstruction(OpGe))
		} else {
			c.emit(p.SourceSpan, MakeInstruction(OpEq))
		}
		fails = append(fails, c.emit(p.SourceSpan, MakeInstruction(OpJumpIfFalse, 0)))

		for i, el := range p.Elements {
			if isIrrefutable(el) {
				continue
			}
			c.emit(p.SourceSpan, MakeInstruction(OpGetLocal, sourceSlot))
			idx := c.current.chunk.AddConstant(float64(i))
			c.emit(p.SourceSpan, MakeInstruction(OpConst, idx))
			c.emit(p.SourceSpan, MakeInstruction(OpIndex))
			elemSlot := c.declareLocal("__match_elem")
			sub, err := c.compilePatternTest(el, elemSlot)
			if err != nil {
				return nil, err
			}
			fails = append(fails, sub...)
			c.emit(p.SourceSpan, MakeInstruction(OpPop))
			c.current.locals = c.current.locals[:len(c.current.locals)-1]
		}
		return fails, nil

	case *ast.TablePattern:
		var fails []int
		for _, f := range p.Fields {
			c.emit(p.SourceSpan, MakeInstruction(OpGetLocal, sourceSlot))
			nameIdx := c.current.chunk.AddConstant(f.Name)
			c.emit(p.SourceSpan, MakeInstruction(OpConst, nameIdx))
			hasFieldIdx := c.nameConstant("has_field")
			c.emit(p.SourceSpan, MakeInstruction(OpNativeCall, hasFieldIdx, 2))
			fails = append(fails, c.emit(p.SourceSpan, MakeInstruction(OpJumpIfFalse, 0)))

			if f.Binding == nil || isIrrefutable(f.Binding) {
				continue
			}
			c.emit(p.SourceSpan, MakeInstruction(OpGetLocal, sourceSlot))
			idx := c.nameConstant(f.Name)
			c.emit(p.SourceSpan, MakeInstruction(OpGetField, idx))
			fieldSlot := c.declareLocal("__match_field")
			sub, err := c.compilePatternTest(f.Binding, fieldSlot)
			if err != nil {
				return nil, err
			}
			fails = append(fails, sub...)
			c.emit(p.SourceSpan, MakeInstruction(OpPop))
			c.current.locals = c.current.locals[:len(c.current.locals)-1]
		}
		return fails, nil

	default:
		return nil, c.compileError(pat.Span(), "unsupported pattern %T", p)
	}
}

// compilePatternBind binds every name a match-arm pattern introduces,
// reading the already-tested value out of sourceSlot.
func (c *Compiler) compilePatternBind(pat ast.Pattern, sourceSlot int) error {
	c.emit(pat.Span(), MakeInstruction(OpGetLocal, sourceSlot))
	return c.bindPatternValue(pat, false)
}

// isIrrefutable reports whether a pattern always matches, letting pattern
// test compilation skip generating a test (and a temp local) for it.
func isIrrefutable(pat ast.Pattern) bool {
	switch pat.(type) {
	case *ast.IdentifierPattern, *ast.WildcardPattern:
		return true
	default:
		return false
	}
}
