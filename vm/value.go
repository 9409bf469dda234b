// Package vm is the stack-based virtual machine that executes bytecode
// produced by the compiler package. Values are shared via ordinary Go
// pointers rather than hand-rolled reference counting, since Go's tracing
// garbage collector already reclaims cyclic structures (Lists/Tables that
// reference themselves) that a naive refcounting scheme would leak.
package vm

import (
	"fmt"
	"math"
	"strings"

	"luma/compiler"
)

// List is a mutable, reference-sharing sequence. Two Lists are equal only
// when they are the same allocation (handle identity, not deep equality).
type List struct {
	Elements []any
}

// Table is a mutable string-keyed map with reference-sharing semantics,
// equal only to itself by handle identity.
type Table struct {
	Fields map[string]any
}

// NewTable returns an empty Table ready for field assignment.
func NewTable() *Table {
	return &Table{Fields: map[string]any{}}
}

// Closure pairs a compiled FunctionProto with the upvalue cells it
// captured at creation time.
type Closure struct {
	Proto    *compiler.FunctionProto
	Upvalues []*Upvalue
}

// Upvalue is a shared, possibly-still-open reference to a local variable.
// While open, Location points at a live stack slot; Close copies that
// slot's value into Closed and repoints Location at it, so every closure
// sharing the upvalue keeps observing the same cell after the frame that
// declared the local returns.
type Upvalue struct {
	Location *any
	Closed   any
}

func (u *Upvalue) Close() {
	u.Closed = *u.Location
	u.Location = &u.Closed
}

// NativeFunction is a host-provided builtin, registered by the stdlib
// package into the VM's globals table.
type NativeFunction struct {
	Name string
	Fn   func(vm *VM, args []any) (any, error)
}

// External is an opaque host handle: a foreign resource identified by an
// integer handle and tagged with a string type name. The language core
// never interprets the handle itself; it exists so a host embedding Luma
// can hand out references to its own resources without exposing their
// representation. Concrete C-ABI bindings that would mint real handles
// are out of scope here, but the value shape itself is not: stdlib
// exposes one as the "External" global, mirroring a host type marker.
type External struct {
	Handle   int64
	TypeName string
}

// Truthy implements Luma's truthiness rule: null and false are falsy,
// everything else (including 0 and "") is truthy.
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	default:
		return true
	}
}

// Equal implements Luma's "==" semantics: value equality for numbers,
// strings, booleans and null; handle identity for Lists, Tables, and
// Closures.
func Equal(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case *List:
		bv, ok := b.(*List)
		return ok && av == bv
	case *Table:
		bv, ok := b.(*Table)
		return ok && av == bv
	case *Closure:
		bv, ok := b.(*Closure)
		return ok && av == bv
	case *NativeFunction:
		bv, ok := b.(*NativeFunction)
		return ok && av == bv
	case *compiler.TypeDescriptor:
		bv, ok := b.(*compiler.TypeDescriptor)
		return ok && av == bv
	case *External:
		bv, ok := b.(*External)
		return ok && av == bv
	default:
		return a == b
	}
}

// Mod implements "%" as fmod-style truncated remainder (math.Mod), rather
// than the floor/Euclidean remainder some languages use: every Luma number
// is a float64 and there is no separate integer type to motivate a floor-mod.
func Mod(a, b float64) float64 {
	return math.Mod(a, b)
}

// TypeName returns the runtime type name used by type_of and in runtime
// error messages.
func TypeName(v any) string {
	switch v.(type) {
	case nil:
		return "Null"
	case float64:
		return "Number"
	case string:
		return "String"
	case bool:
		return "Boolean"
	case *List:
		return "List"
	case *Table:
		return "Table"
	case *Closure, *NativeFunction:
		return "Function"
	case *compiler.TypeDescriptor:
		return "Type"
	case *External:
		return "External"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Stringify renders a value the way print and string concatenation do.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case float64:
		return formatNumber(val)
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	case *List:
		parts := make([]string, len(val.Elements))
		for i, e := range val.Elements {
			parts[i] = Stringify(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Table:
		parts := make([]string, 0, len(val.Fields))
		for k, v := range val.Fields {
			parts = append(parts, fmt.Sprintf("%s: %s", k, Stringify(v)))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *Closure:
		return fmt.Sprintf("<function %s>", val.Proto.Name)
	case *NativeFunction:
		return fmt.Sprintf("<native %s>", val.Name)
	case *compiler.TypeDescriptor:
		return fmt.Sprintf("<type %s>", val.Name)
	case *External:
		return fmt.Sprintf("<external %s>", val.TypeName)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) && !math.IsInf(f, 0) {
		return fmt.Sprintf("%.0f", f)
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", f), "0"), ".")
}
