package vm_test

import (
	"bufio"
	"strings"
	"testing"

	"luma/pipeline"
	"luma/vm"
)

// run lexes, parses, type-checks, compiles and executes source against a
// freshly-installed stdlib, returning the script's final value.
func run(t *testing.T, source string) any {
	t.Helper()
	var buf strings.Builder
	out := bufio.NewWriter(&buf)
	result, p, err := pipeline.RunAll("<test>", source, out)
	if err != nil {
		t.Fatalf("unexpected error running %q: %v (%v)", source, err, p.Diagnostics)
	}
	return result
}

func runErr(t *testing.T, source string) error {
	t.Helper()
	var buf strings.Builder
	out := bufio.NewWriter(&buf)
	_, _, err := pipeline.RunAll("<test>", source, out)
	if err == nil {
		t.Fatalf("expected an error running %q", source)
	}
	return err
}

func captureStdout(t *testing.T, source string) string {
	t.Helper()
	var buf strings.Builder
	out := bufio.NewWriter(&buf)
	_, p, err := pipeline.RunAll("<test>", source, out)
	if err != nil {
		t.Fatalf("unexpected error running %q: %v (%v)", source, err, p.Diagnostics)
	}
	out.Flush()
	return buf.String()
}

func TestRunArithmetic(t *testing.T) {
	if got := run(t, "1 + 2 * 3"); got != 7.0 {
		t.Errorf("got %v, want 7", got)
	}
}

func TestRunDivisionByZeroIsRuntimeError(t *testing.T) {
	err := runErr(t, "1 / 0")
	if !strings.Contains(err.Error(), "division by zero") {
		t.Errorf("expected division by zero error, got %v", err)
	}
}

func TestRunModIsFmodStyle(t *testing.T) {
	if got := run(t, "-5 % 3"); got != vm.Mod(-5, 3) {
		t.Errorf("got %v, want %v", got, vm.Mod(-5, 3))
	}
}

func TestRunStringConcatenation(t *testing.T) {
	if got := run(t, `"a" + "b"`); got != "ab" {
		t.Errorf("got %v, want ab", got)
	}
}

func TestRunGlobalLetAndVarReassignment(t *testing.T) {
	got := run(t, `
		var x = 1
		x = x + 1
		x
	`)
	if got != 2.0 {
		t.Errorf("got %v, want 2", got)
	}
}

func TestRunIfExpressionValue(t *testing.T) {
	got := run(t, `if 1 > 0 do "yes" else "no" end`)
	if got != "yes" {
		t.Errorf("got %v, want yes", got)
	}
}

func TestRunWhileLoopWithBreak(t *testing.T) {
	got := run(t, `
		var i = 0
		while true do
			i = i + 1
			if i >= 3 do break end
		end
		i
	`)
	if got != 3.0 {
		t.Errorf("got %v, want 3", got)
	}
}

func TestRunFunctionClosureCapturesEnclosingLocal(t *testing.T) {
	got := run(t, `
		let makeAdder = fn(n) do
			fn(x) do x + n end
		end
		let addFive = makeAdder(5)
		addFive(10)
	`)
	if got != 15.0 {
		t.Errorf("got %v, want 15", got)
	}
}

func TestRunRecursiveFunction(t *testing.T) {
	got := run(t, `
		let fact = fn(n) do
			if n <= 1 do 1 else n * fact(n - 1) end
		end
		fact(5)
	`)
	if got != 120.0 {
		t.Errorf("got %v, want 120", got)
	}
}

func TestRunLocallyBoundRecursiveFunction(t *testing.T) {
	got := run(t, `
		let makeFact = fn() do
			let fact = fn(n) do
				if n <= 1 do 1 else n * fact(n - 1) end
			end
			fact
		end
		let fact = makeFact()
		fact(6)
	`)
	if got != 720.0 {
		t.Errorf("got %v, want 720", got)
	}
}

func TestRunListIndexAndAssignment(t *testing.T) {
	got := run(t, `
		var xs = [1, 2, 3]
		xs[1] = 20
		xs[1]
	`)
	if got != 20.0 {
		t.Errorf("got %v, want 20", got)
	}
}

func TestRunListIndexOutOfBoundsIsRuntimeError(t *testing.T) {
	err := runErr(t, `
		let xs = [1, 2]
		xs[5]
	`)
	if !strings.Contains(err.Error(), "out of bounds") {
		t.Errorf("expected out-of-bounds error, got %v", err)
	}
}

func TestRunListIndexNegativeIsRuntimeError(t *testing.T) {
	err := runErr(t, `
		let xs = [1, 2]
		xs[-1]
	`)
	if !strings.Contains(err.Error(), "negative") {
		t.Errorf("expected negative-index error, got %v", err)
	}
}

func TestRunTableFieldAccessAndAssignment(t *testing.T) {
	got := run(t, `
		var t = { x: 1, y: 2 }
		t.x = 10
		t.x
	`)
	if got != 10.0 {
		t.Errorf("got %v, want 10", got)
	}
}

func TestRunForInIteratesList(t *testing.T) {
	got := run(t, `
		var total = 0
		for x in [1, 2, 3] do
			total = total + x
		end
		total
	`)
	if got != 6.0 {
		t.Errorf("got %v, want 6", got)
	}
}

func TestRunMatchExpressionSelectsArm(t *testing.T) {
	got := run(t, `
		let describe = fn(n) do
			match n do
				0 => "zero",
				n with n > 0 => "positive",
				_ => "negative"
			end
		end
		describe(5)
	`)
	if got != "positive" {
		t.Errorf("got %v, want positive", got)
	}
}

func TestRunMatchListDestructuring(t *testing.T) {
	got := run(t, `
		let head = fn(xs) do
			match xs do
				[] => "empty",
				[first, ...rest] => first
			end
		end
		head([1, 2, 3])
	`)
	if got != 1.0 {
		t.Errorf("got %v, want 1", got)
	}
}

func TestRunInexhaustiveMatchPanics(t *testing.T) {
	err := runErr(t, `
		match 5 do
			0 => "zero"
		end
	`)
	if err == nil {
		t.Fatalf("expected a runtime error for an inexhaustive match")
	}
}

func TestRunListDestructuringLet(t *testing.T) {
	got := run(t, `
		let [a, b, ...rest] = [1, 2, 3, 4]
		rest[0]
	`)
	if got != 3.0 {
		t.Errorf("got %v, want 3", got)
	}
}

func TestRunPrintWritesToOutput(t *testing.T) {
	output := captureStdout(t, `print("hello")`)
	if !strings.Contains(output, "hello") {
		t.Errorf("expected output to contain hello, got %q", output)
	}
}

func TestTruthyAndEqualSemantics(t *testing.T) {
	if vm.Truthy(nil) || vm.Truthy(false) {
		t.Errorf("nil and false should be falsy")
	}
	if !vm.Truthy(0.0) || !vm.Truthy("") {
		t.Errorf("0 and empty string should be truthy")
	}
	a := &vm.List{Elements: []any{1.0}}
	b := &vm.List{Elements: []any{1.0}}
	if vm.Equal(a, b) {
		t.Errorf("distinct List allocations with equal contents should not be Equal")
	}
	if !vm.Equal(a, a) {
		t.Errorf("a List should be Equal to itself")
	}
}

func TestStringifyFormatsValues(t *testing.T) {
	if vm.Stringify(3.0) != "3" {
		t.Errorf("got %q, want 3", vm.Stringify(3.0))
	}
	if vm.Stringify(3.5) != "3.5" {
		t.Errorf("got %q, want 3.5", vm.Stringify(3.5))
	}
	if vm.Stringify(nil) != "null" {
		t.Errorf("got %q, want null", vm.Stringify(nil))
	}
}

func TestRunUndefinedGlobalIsRuntimeError(t *testing.T) {
	err := runErr(t, "y")
	if err == nil {
		t.Fatalf("expected a runtime error for an undefined global")
	}
}

func TestRunCallStackOverflowOnUnboundedRecursion(t *testing.T) {
	err := runErr(t, `
		let loop = fn(n) do loop(n + 1) end
		loop(0)
	`)
	if !strings.Contains(err.Error(), "overflow") {
		t.Errorf("expected a call stack overflow error, got %v", err)
	}
}

func TestRunTypeDeclProducesRuntimeTypeDescriptor(t *testing.T) {
	got := run(t, `
		type Point = { x: Number, y: Number }
		type_of(Point)
	`)
	if got != "Type" {
		t.Errorf("type_of(Point) = %v, want %q", got, "Type")
	}
}

func TestRunIsInstanceOfAgainstDeclaredType(t *testing.T) {
	got := run(t, `
		type Point = { x: Number, y: Number }
		let p = { x: 1, y: 2 }
		isInstanceOf(p, Point)
	`)
	if got != true {
		t.Errorf("isInstanceOf(p, Point) = %v, want true", got)
	}
}

func TestRunCastFillsMissingFields(t *testing.T) {
	got := run(t, `
		type Point = { x: Number, y: Number }
		let p = { x: 1 }
		let q = cast(p, Point)
		q["y"]
	`)
	if got != nil {
		t.Errorf("cast-filled field y = %v, want null", got)
	}
}
