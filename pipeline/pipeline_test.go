package pipeline_test

import (
	"bufio"
	"strings"
	"testing"

	"luma/pipeline"
	"luma/typecheck"
)

func TestRunAllExecutesASimpleScript(t *testing.T) {
	var buf strings.Builder
	out := bufio.NewWriter(&buf)
	result, p, err := pipeline.RunAll("<test>", "1 + 2", out)
	if err != nil {
		t.Fatalf("unexpected error: %v (%v)", err, p.Diagnostics)
	}
	if result != 3.0 {
		t.Errorf("got %v, want 3", result)
	}
}

func TestRunAllReportsLexerDiagnostics(t *testing.T) {
	var buf strings.Builder
	out := bufio.NewWriter(&buf)
	_, p, err := pipeline.RunAll("<test>", "@", out)
	if err == nil {
		t.Fatalf("expected an error for an unexpected character")
	}
	if len(p.Diagnostics) == 0 {
		t.Fatalf("expected at least one diagnostic")
	}
}

func TestRunAllReportsParserDiagnostics(t *testing.T) {
	var buf strings.Builder
	out := bufio.NewWriter(&buf)
	_, p, err := pipeline.RunAll("<test>", "let = 1", out)
	if err == nil {
		t.Fatalf("expected an error for a malformed let statement")
	}
	if len(p.Diagnostics) == 0 {
		t.Fatalf("expected at least one diagnostic")
	}
}

func TestRunAllReportsTypeDiagnostics(t *testing.T) {
	var buf strings.Builder
	out := bufio.NewWriter(&buf)
	_, p, err := pipeline.RunAll("<test>", `1 + "a"`, out)
	if err == nil {
		t.Fatalf("expected a type error for 1 + \"a\"")
	}
	if len(p.Diagnostics) == 0 {
		t.Fatalf("expected at least one diagnostic")
	}
}

func TestRunAllReportsRuntimeDiagnostics(t *testing.T) {
	var buf strings.Builder
	out := bufio.NewWriter(&buf)
	_, p, err := pipeline.RunAll("<test>", "1 / 0", out)
	if err == nil {
		t.Fatalf("expected a runtime error for division by zero")
	}
	_ = p
}

func TestLexReturnsTokensWithoutParsing(t *testing.T) {
	p := pipeline.New("<test>", "let x = 1")
	tokens, err := p.Lex()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tokens) == 0 {
		t.Fatalf("expected at least one token")
	}
}

func TestParseAccumulatesDiagnosticsButStillReturnsAProgram(t *testing.T) {
	p := pipeline.New("<test>", "let = \n let y = 2")
	program, err := p.Parse()
	if err == nil {
		t.Fatalf("expected a parse error")
	}
	if program == nil {
		t.Fatalf("expected a partial program even after a parse error")
	}
}

func TestTypecheckDeclaresHostDecls(t *testing.T) {
	source := `let greeted = greet("world")`

	withoutHost := pipeline.New("<test>", source)
	_, _, err := withoutHost.Typecheck(nil)
	if err == nil {
		t.Fatalf("expected an undefined-name error for greet with no host decls")
	}

	withHost := pipeline.New("<test>", source)
	_, _, err = withHost.Typecheck(func(c *typecheck.Checker) {
		c.Declare("greet", typecheck.FunctionOf([]*typecheck.Type{typecheck.String}, typecheck.String, false))
	})
	if err != nil {
		t.Fatalf("unexpected error once greet is declared: %v", err)
	}
}

func TestCompileProducesRunnableBytecode(t *testing.T) {
	p := pipeline.New("<test>", "let x = 1 + 2")
	proto, err := p.Compile()
	if err != nil {
		t.Fatalf("unexpected compile error: %v (%v)", err, p.Diagnostics)
	}
	if proto == nil || len(proto.Chunk.Code) == 0 {
		t.Fatalf("expected non-empty compiled bytecode")
	}
}

func TestExecuteRunsAFreshVMPerCall(t *testing.T) {
	w := bufio.NewWriter(&strings.Builder{})

	p1 := pipeline.New("<test>", "let x = 1")
	proto1, err := p1.Compile()
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	if _, err := p1.Execute(proto1, w); err != nil {
		t.Fatalf("unexpected execute error: %v", err)
	}

	// A second, independently compiled script referencing "x" fails to
	// typecheck: Execute creates a fresh VM every call, and Typecheck
	// starts from a fresh Checker, so nothing from p1 is visible here.
	p2 := pipeline.New("<test>", "x")
	if _, err := p2.Compile(); err == nil {
		t.Fatalf("expected referencing an undeclared name across separate Pipelines to fail to typecheck")
	}
}
