// Package stdlib installs Luma's host-provided globals: the print, len,
// type_of, cast and isInstanceOf natives, an External type marker, and
// the iterator protocol the compiler's for-in lowering
// (compiler/statements.go) relies on.
package stdlib

import (
	"bufio"
	"fmt"
	"strings"

	"luma/compiler"
	"luma/typecheck"
	"luma/vm"
)

// Install registers every stdlib global into a freshly-created VM's
// environment. Called once by the pipeline before running compiled code.
func Install(machine *vm.VM, out *bufio.Writer) {
	g := machine.Globals()
	g["print"] = native("print", func(_ *vm.VM, args []any) (any, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = vm.Stringify(a)
		}
		for i, p := range parts {
			if i > 0 {
				out.WriteByte(' ')
			}
			out.WriteString(p)
		}
		out.WriteByte('\n')
		out.Flush()
		return nil, nil
	})
	g["len"] = native("len", func(_ *vm.VM, args []any) (any, error) {
		switch v := args[0].(type) {
		case *vm.List:
			return float64(len(v.Elements)), nil
		case string:
			return float64(len(v)), nil
		case *vm.Table:
			return float64(len(v.Fields)), nil
		default:
			return nil, fmt.Errorf("len: unsupported value of type %s", vm.TypeName(v))
		}
	})
	g["type_of"] = native("type_of", func(_ *vm.VM, args []any) (any, error) {
		return vm.TypeName(args[0]), nil
	})
	g["iter"] = native("iter", func(m *vm.VM, args []any) (any, error) {
		return newIterator(args[0])
	})
	g["cast"] = native("cast", func(_ *vm.VM, args []any) (any, error) {
		return cast(args[0], args[1])
	})
	g["isInstanceOf"] = native("isInstanceOf", func(_ *vm.VM, args []any) (any, error) {
		return isInstanceOf(args[0], args[1]), nil
	})
	g["External"] = &vm.External{Handle: 0, TypeName: "External"}
}

// cast coerces a Table onto a record type's field shape: any field named
// by the TypeDescriptor that the table is missing is filled in as null.
// Unlike isInstanceOf, a cast never fails on missing fields.
func cast(value, target any) (any, error) {
	desc, ok := target.(*compiler.TypeDescriptor)
	if !ok {
		return nil, fmt.Errorf("cast: second argument must be a Type, got %s", vm.TypeName(target))
	}
	table, ok := value.(*vm.Table)
	if !ok {
		return nil, fmt.Errorf("cast: value of type %s is not castable", vm.TypeName(value))
	}
	for _, field := range desc.Fields {
		if _, present := table.Fields[field]; !present {
			table.Fields[field] = nil
		}
	}
	return table, nil
}

// isInstanceOf is a structural check: value matches target's shape when
// it is a Table carrying every non-"__"-prefixed field target declares.
// It does not recurse into field types, and "__"-prefixed fields (an
// inheritance-style "__parent" link) are skipped rather than required.
func isInstanceOf(value, target any) bool {
	desc, ok := target.(*compiler.TypeDescriptor)
	if !ok {
		return false
	}
	table, ok := value.(*vm.Table)
	if !ok {
		return false
	}
	for _, field := range desc.Fields {
		if strings.HasPrefix(field, "__") {
			continue
		}
		if _, present := table.Fields[field]; !present {
			return false
		}
	}
	return true
}

func native(name string, fn func(*vm.VM, []any) (any, error)) *vm.NativeFunction {
	return &vm.NativeFunction{Name: name, Fn: fn}
}

// newIterator builds the {next: fn() => {value, done}} iterator table
// the for-in desugaring calls: iterating a List walks its elements,
// iterating a Table walks its field names, and anything else is a type
// error raised at the iter() call site.
func newIterator(subject any) (any, error) {
	switch v := subject.(type) {
	case *vm.List:
		i := 0
		step := &vm.NativeFunction{Name: "next", Fn: func(_ *vm.VM, _ []any) (any, error) {
			if i >= len(v.Elements) {
				return doneStep(), nil
			}
			val := v.Elements[i]
			i++
			return valueStep(val), nil
		}}
		return iteratorTable(step), nil
	case *vm.Table:
		names := make([]string, 0, len(v.Fields))
		for k := range v.Fields {
			names = append(names, k)
		}
		i := 0
		step := &vm.NativeFunction{Name: "next", Fn: func(_ *vm.VM, _ []any) (any, error) {
			if i >= len(names) {
				return doneStep(), nil
			}
			name := names[i]
			i++
			return valueStep(name), nil
		}}
		return iteratorTable(step), nil
	default:
		return nil, fmt.Errorf("iter: value of type %s is not iterable", vm.TypeName(subject))
	}
}

func iteratorTable(next *vm.NativeFunction) *vm.Table {
	t := vm.NewTable()
	t.Fields["next"] = next
	return t
}

func doneStep() *vm.Table {
	t := vm.NewTable()
	t.Fields["value"] = nil
	t.Fields["done"] = true
	return t
}

func valueStep(v any) *vm.Table {
	t := vm.NewTable()
	t.Fields["value"] = v
	t.Fields["done"] = false
	return t
}

// DeclareHostTypes registers print/len/type_of/iter/cast/isInstanceOf's
// signatures with a type checker so "let x = len(xs)" type-checks before
// compilation, the same way a host embedding Luma would declare its own
// native functions.
func DeclareHostTypes(checker *typecheck.Checker) {
	checker.Declare("print", typecheck.FunctionOf(nil, typecheck.Null, true))
	checker.Declare("len", typecheck.FunctionOf([]*typecheck.Type{typecheck.Any}, typecheck.Number, false))
	checker.Declare("type_of", typecheck.FunctionOf([]*typecheck.Type{typecheck.Any}, typecheck.String, false))
	checker.Declare("iter", typecheck.FunctionOf([]*typecheck.Type{typecheck.Any}, typecheck.TableWithFields(map[string]*typecheck.Type{
		"next": typecheck.FunctionOf(nil, typecheck.TableWithFields(map[string]*typecheck.Type{
			"value": typecheck.Any,
			"done":  typecheck.Boolean,
		}), false),
	}), false))
	checker.Declare("cast", typecheck.FunctionOf([]*typecheck.Type{typecheck.Any, typecheck.Any}, typecheck.Any, false))
	checker.Declare("isInstanceOf", typecheck.FunctionOf([]*typecheck.Type{typecheck.Any, typecheck.Any}, typecheck.Boolean, false))
}
