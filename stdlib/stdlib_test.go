package stdlib_test

import (
	"bufio"
	"strings"
	"testing"

	"luma/compiler"
	"luma/lexer"
	"luma/parser"
	"luma/stdlib"
	"luma/typecheck"
	"luma/vm"
)

func newMachine(out *bufio.Writer) *vm.VM {
	m := vm.New("<test>")
	stdlib.Install(m, out)
	return m
}

func callGlobal(t *testing.T, m *vm.VM, name string, args ...any) any {
	t.Helper()
	fn, ok := m.Globals()[name].(*vm.NativeFunction)
	if !ok {
		t.Fatalf("expected global %q to be a *vm.NativeFunction, got %#v", name, m.Globals()[name])
	}
	result, err := fn.Fn(m, args)
	if err != nil {
		t.Fatalf("unexpected error calling %q: %v", name, err)
	}
	return result
}

func TestInstallRegistersCoreGlobals(t *testing.T) {
	var buf strings.Builder
	out := bufio.NewWriter(&buf)
	m := newMachine(out)
	for _, name := range []string{"print", "len", "type_of", "iter", "cast", "isInstanceOf", "External"} {
		if _, ok := m.Globals()[name]; !ok {
			t.Errorf("expected Install to register global %q", name)
		}
	}
}

func TestPrintWritesSpaceSeparatedArgsAndNewline(t *testing.T) {
	var buf strings.Builder
	out := bufio.NewWriter(&buf)
	m := newMachine(out)
	callGlobal(t, m, "print", "a", 1.0, true)
	out.Flush()
	if buf.String() != "a 1 true\n" {
		t.Errorf("got %q, want %q", buf.String(), "a 1 true\n")
	}
}

func TestLenSupportsListsStringsAndTables(t *testing.T) {
	var buf strings.Builder
	out := bufio.NewWriter(&buf)
	m := newMachine(out)

	if got := callGlobal(t, m, "len", &vm.List{Elements: []any{1.0, 2.0}}); got != 2.0 {
		t.Errorf("got %v, want 2", got)
	}
	if got := callGlobal(t, m, "len", "hello"); got != 5.0 {
		t.Errorf("got %v, want 5", got)
	}
	tbl := vm.NewTable()
	tbl.Fields["a"] = 1.0
	tbl.Fields["b"] = 2.0
	if got := callGlobal(t, m, "len", tbl); got != 2.0 {
		t.Errorf("got %v, want 2", got)
	}
}

func TestLenRejectsUnsupportedType(t *testing.T) {
	var buf strings.Builder
	out := bufio.NewWriter(&buf)
	m := newMachine(out)
	fn := m.Globals()["len"].(*vm.NativeFunction)
	if _, err := fn.Fn(m, []any{true}); err == nil {
		t.Fatalf("expected an error calling len on a Boolean")
	}
}

func TestTypeOfNamesEveryRuntimeKind(t *testing.T) {
	var buf strings.Builder
	out := bufio.NewWriter(&buf)
	m := newMachine(out)
	cases := []struct {
		value any
		want  string
	}{
		{nil, "Null"},
		{1.0, "Number"},
		{"s", "String"},
		{true, "Boolean"},
		{&vm.List{}, "List"},
		{vm.NewTable(), "Table"},
	}
	for _, c := range cases {
		if got := callGlobal(t, m, "type_of", c.value); got != c.want {
			t.Errorf("type_of(%#v) = %v, want %v", c.value, got, c.want)
		}
	}
}

func TestIterOverListYieldsElementsThenDone(t *testing.T) {
	var buf strings.Builder
	out := bufio.NewWriter(&buf)
	m := newMachine(out)
	list := &vm.List{Elements: []any{"a", "b"}}
	it := callGlobal(t, m, "iter", list).(*vm.Table)
	next := it.Fields["next"].(*vm.NativeFunction)

	step1, err := next.Fn(m, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s1 := step1.(*vm.Table)
	if s1.Fields["value"] != "a" || s1.Fields["done"] != false {
		t.Errorf("unexpected first step: %#v", s1.Fields)
	}

	step2, _ := next.Fn(m, nil)
	s2 := step2.(*vm.Table)
	if s2.Fields["value"] != "b" || s2.Fields["done"] != false {
		t.Errorf("unexpected second step: %#v", s2.Fields)
	}

	step3, _ := next.Fn(m, nil)
	s3 := step3.(*vm.Table)
	if s3.Fields["done"] != true {
		t.Errorf("expected iterator to report done after exhausting the list, got %#v", s3.Fields)
	}
}

func TestIterOverTableYieldsFieldNames(t *testing.T) {
	var buf strings.Builder
	out := bufio.NewWriter(&buf)
	m := newMachine(out)
	tbl := vm.NewTable()
	tbl.Fields["only"] = 1.0
	it := callGlobal(t, m, "iter", tbl).(*vm.Table)
	next := it.Fields["next"].(*vm.NativeFunction)

	step, err := next.Fn(m, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := step.(*vm.Table)
	if s.Fields["value"] != "only" || s.Fields["done"] != false {
		t.Errorf("unexpected step: %#v", s.Fields)
	}
}

func TestIterOnUnsupportedTypeErrors(t *testing.T) {
	var buf strings.Builder
	out := bufio.NewWriter(&buf)
	m := newMachine(out)
	fn := m.Globals()["iter"].(*vm.NativeFunction)
	if _, err := fn.Fn(m, []any{1.0}); err == nil {
		t.Fatalf("expected an error iterating a Number")
	}
}

func TestDeclareHostTypesRegistersEveryNativeSignature(t *testing.T) {
	tokens, lexDiags := lexer.New(`
		print("hi")
		let n = len([1, 2])
		let k = type_of(n)
		let it = iter([1, 2])
	`, "<test>").Scan()
	if len(lexDiags) != 0 {
		t.Fatalf("unexpected lexer diagnostics: %v", lexDiags)
	}
	program, parseDiags := parser.New(tokens, "<test>").Parse()
	if len(parseDiags) != 0 {
		t.Fatalf("unexpected parser diagnostics: %v", parseDiags)
	}
	checker := typecheck.New("<test>")
	stdlib.DeclareHostTypes(checker)
	diags := checker.Check(program)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
}

func TestCastFillsMissingFieldsWithNull(t *testing.T) {
	var buf strings.Builder
	out := bufio.NewWriter(&buf)
	m := newMachine(out)
	point := &compiler.TypeDescriptor{Name: "Point", Fields: []string{"x", "y"}}
	tbl := vm.NewTable()
	tbl.Fields["x"] = 1.0

	got := callGlobal(t, m, "cast", tbl, point).(*vm.Table)
	if got.Fields["x"] != 1.0 {
		t.Errorf("cast clobbered an existing field: %#v", got.Fields)
	}
	if v, ok := got.Fields["y"]; !ok || v != nil {
		t.Errorf("expected cast to fill missing field y with null, got %#v", got.Fields)
	}
}

func TestCastRejectsNonTypeTarget(t *testing.T) {
	var buf strings.Builder
	out := bufio.NewWriter(&buf)
	m := newMachine(out)
	fn := m.Globals()["cast"].(*vm.NativeFunction)
	if _, err := fn.Fn(m, []any{vm.NewTable(), "not a type"}); err == nil {
		t.Fatalf("expected an error casting against a non-Type target")
	}
}

func TestIsInstanceOfChecksFieldPresence(t *testing.T) {
	var buf strings.Builder
	out := bufio.NewWriter(&buf)
	m := newMachine(out)
	point := &compiler.TypeDescriptor{Name: "Point", Fields: []string{"x", "y"}}

	complete := vm.NewTable()
	complete.Fields["x"] = 1.0
	complete.Fields["y"] = 2.0
	if got := callGlobal(t, m, "isInstanceOf", complete, point); got != true {
		t.Errorf("isInstanceOf(complete, Point) = %v, want true", got)
	}

	partial := vm.NewTable()
	partial.Fields["x"] = 1.0
	if got := callGlobal(t, m, "isInstanceOf", partial, point); got != false {
		t.Errorf("isInstanceOf(partial, Point) = %v, want false", got)
	}
}

func TestIsInstanceOfSkipsDunderFields(t *testing.T) {
	var buf strings.Builder
	out := bufio.NewWriter(&buf)
	m := newMachine(out)
	child := &compiler.TypeDescriptor{Name: "Child", Fields: []string{"x", "__parent"}}
	tbl := vm.NewTable()
	tbl.Fields["x"] = 1.0
	if got := callGlobal(t, m, "isInstanceOf", tbl, child); got != true {
		t.Errorf("isInstanceOf should skip __-prefixed fields, got %v", got)
	}
}

func TestInstallRegistersExternalTypeMarker(t *testing.T) {
	var buf strings.Builder
	out := bufio.NewWriter(&buf)
	m := newMachine(out)
	ext, ok := m.Globals()["External"].(*vm.External)
	if !ok {
		t.Fatalf("expected External global to be a *vm.External, got %#v", m.Globals()["External"])
	}
	if ext.TypeName != "External" {
		t.Errorf("got type name %q, want %q", ext.TypeName, "External")
	}
	if vm.TypeName(ext) != "External" {
		t.Errorf("vm.TypeName(External marker) = %q, want %q", vm.TypeName(ext), "External")
	}
}
