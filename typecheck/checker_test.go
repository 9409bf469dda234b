package typecheck

import (
	"testing"

	"luma/diag"
	"luma/lexer"
	"luma/parser"
)

func checkSource(t *testing.T, source string) []diag.Diagnostic {
	t.Helper()
	tokens, lexDiags := lexer.New(source, "<test>").Scan()
	if len(lexDiags) != 0 {
		t.Fatalf("unexpected lexer diagnostics: %v", lexDiags)
	}
	program, parseDiags := parser.New(tokens, "<test>").Parse()
	if len(parseDiags) != 0 {
		t.Fatalf("unexpected parser diagnostics: %v", parseDiags)
	}
	checker := New("<test>")
	return checker.Check(program)
}

func TestCheckArithmeticRequiresNumbers(t *testing.T) {
	diags := checkSource(t, `let x = 1 + "a"`)
	if len(diags) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d: %v", len(diags), diags)
	}
	if diags[0].Kind != diag.KindType {
		t.Errorf("expected a type diagnostic, got %v", diags[0].Kind)
	}
}

func TestCheckStringConcatenation(t *testing.T) {
	diags := checkSource(t, `let x = "a" + "b"`)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
}

func TestCheckUndefinedName(t *testing.T) {
	diags := checkSource(t, `let x = y`)
	if len(diags) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d: %v", len(diags), diags)
	}
}

func TestCheckAssignToImmutableBinding(t *testing.T) {
	diags := checkSource(t, `
		let x = 1
		x = 2
	`)
	if len(diags) != 1 {
		t.Fatalf("expected 1 diagnostic for assigning to a let binding, got %d: %v", len(diags), diags)
	}
}

func TestCheckVarAssignmentAllowed(t *testing.T) {
	diags := checkSource(t, `
		var x = 1
		x = 2
	`)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
}

func TestCheckFunctionCallArity(t *testing.T) {
	diags := checkSource(t, `
		let add = fn(a: Number, b: Number) => Number do a + b end
		add(1)
	`)
	if len(diags) != 1 {
		t.Fatalf("expected 1 diagnostic for arity mismatch, got %d: %v", len(diags), diags)
	}
}

func TestCheckFunctionCallArgumentType(t *testing.T) {
	diags := checkSource(t, `
		let add = fn(a: Number, b: Number) => Number do a + b end
		add(1, "two")
	`)
	if len(diags) != 1 {
		t.Fatalf("expected 1 diagnostic for argument type mismatch, got %d: %v", len(diags), diags)
	}
}

func TestCheckReturnTypeMismatch(t *testing.T) {
	diags := checkSource(t, `let f = fn() => Number do "not a number" end`)
	if len(diags) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d: %v", len(diags), diags)
	}
}

func TestCheckListLiteralElementTypesUnify(t *testing.T) {
	diags := checkSource(t, `let xs = [1, 2, 3]`)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
}

func TestCheckDeclareRegistersHostGlobal(t *testing.T) {
	checker := New("<test>")
	checker.Declare("print", FunctionOf(nil, Null, true))
	tokens, _ := lexer.New(`print("hello")`, "<test>").Scan()
	program, _ := parser.New(tokens, "<test>").Parse()
	diags := checker.Check(program)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
}

func TestCheckLetBoundFunctionMayCallItself(t *testing.T) {
	diags := checkSource(t, `let fact = fn(n: Number): Number do return if n <= 1 do 1 else do n * fact(n - 1) end end`)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics for a self-recursive let binding: %v", diags)
	}
}

func TestCheckRecordTypeDeclarationIsUsableAsAValue(t *testing.T) {
	checker := New("<test>")
	checker.Declare("isInstanceOf", FunctionOf([]*Type{Any, Any}, Boolean, false))
	tokens, _ := lexer.New(`
		type Point = { x: Number, y: Number }
		let p = { x: 1, y: 2 }
		isInstanceOf(p, Point)
	`, "<test>").Scan()
	program, _ := parser.New(tokens, "<test>").Parse()
	diags := checker.Check(program)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
}

func TestCompatibleAnyShortCircuits(t *testing.T) {
	if !Compatible(Any, Number) || !Compatible(Number, Any) {
		t.Errorf("Any should be compatible with every type in either direction")
	}
	if Compatible(Number, String) {
		t.Errorf("Number should not be compatible with String")
	}
}
