package vm

import (
	"github.com/pkg/errors"

	"luma/compiler"
	"luma/diag"
)

const (
	stackMax  = 1 << 16
	framesMax = 1 << 10
)

// VM is a stack-based bytecode interpreter for compiled Luma programs.
// The value stack is a fixed-size array rather than a growable slice:
// Upvalue cells hold raw *any pointers into live stack slots, which a
// growable slice would invalidate on reallocation the moment it had to
// grow.
type VM struct {
	stack  [stackMax]any
	sp     int
	frames []*frame
	file   string

	globals  map[string]any
	builtins map[string]func(args []any) (any, error)
	openUpvalues []*openUpvalue
}

type openUpvalue struct {
	slotIndex int
	value     *Upvalue
}

// New constructs a VM with an empty global environment. Callers (the
// pipeline façade, stdlib.Install) populate Globals before running.
func New(file string) *VM {
	v := &VM{file: file, globals: map[string]any{}}
	v.builtins = map[string]func(args []any) (any, error){
		"list_len":  nativeListLen,
		"has_field": nativeHasField,
		"list_rest": nativeListRest,
	}
	return v
}

// Globals exposes the VM's global environment so stdlib.Install and the
// REPL can define host functions and inspect top-level bindings.
func (vm *VM) Globals() map[string]any { return vm.globals }

func (vm *VM) push(v any) {
	vm.stack[vm.sp] = v
	vm.sp++
}

func (vm *VM) pop() any {
	vm.sp--
	v := vm.stack[vm.sp]
	vm.stack[vm.sp] = nil
	return v
}

func (vm *VM) runtimeError(span diag.Span, format string, args ...any) error {
	d := diag.Errorf(diag.KindRuntime, span, vm.file, format, args...)
	return errors.WithStack(d)
}

// Run executes a closure over proto (the top-level script, or any
// function prepared by the pipeline) to completion, returning its final
// value: whatever is on top of the stack when OpHalt or the outermost
// OpReturn is reached.
func (vm *VM) Run(proto *compiler.FunctionProto) (any, error) {
	vm.frames = []*frame{{closure: &Closure{Proto: proto}, stackTop: vm.sp}}

	for {
		f := vm.frames[len(vm.frames)-1]
		code := f.chunk().Code
		if f.ip >= len(code) {
			return nil, vm.runtimeError(diag.NoSpan, "instruction pointer ran off the end of the chunk")
		}
		op := compiler.Opcode(code[f.ip])
		span := f.chunk().SpanAt(f.ip)

		switch op {
		case compiler.OpConst:
			idx := compiler.ReadUint16(code, f.ip+1)
			vm.push(f.chunk().Constants[idx])
			f.ip += 3

		case compiler.OpTrue:
			vm.push(true)
			f.ip++
		case compiler.OpFalse:
			vm.push(false)
			f.ip++
		case compiler.OpNull:
			vm.push(nil)
			f.ip++

		case compiler.OpAdd, compiler.OpSub, compiler.OpMul, compiler.OpDiv, compiler.OpMod:
			if err := vm.binaryArith(op, span); err != nil {
				return nil, err
			}
			f.ip++
		case compiler.OpEq:
			b, a := vm.pop(), vm.pop()
			vm.push(Equal(a, b))
			f.ip++
		case compiler.OpNe:
			b, a := vm.pop(), vm.pop()
			vm.push(!Equal(a, b))
			f.ip++
		case compiler.OpLt, compiler.OpLe, compiler.OpGt, compiler.OpGe:
			if err := vm.binaryCompare(op, span); err != nil {
				return nil, err
			}
			f.ip++
		case compiler.OpNeg:
			v := vm.pop()
			n, ok := v.(float64)
			if !ok {
				return nil, vm.runtimeError(span, "cannot negate a %s", TypeName(v))
			}
			vm.push(-n)
			f.ip++
		case compiler.OpNot:
			vm.push(!Truthy(vm.pop()))
			f.ip++

		case compiler.OpGetLocal:
			slot := compiler.ReadUint16(code, f.ip+1)
			vm.push(vm.stack[f.stackTop+slot])
			f.ip += 3
		case compiler.OpSetLocal:
			slot := compiler.ReadUint16(code, f.ip+1)
			vm.stack[f.stackTop+slot] = vm.peek()
			f.ip += 3

		case compiler.OpGetUpvalue:
			idx := compiler.ReadUint16(code, f.ip+1)
			vm.push(*f.closure.Upvalues[idx].Location)
			f.ip += 3
		case compiler.OpSetUpvalue:
			idx := compiler.ReadUint16(code, f.ip+1)
			*f.closure.Upvalues[idx].Location = vm.peek()
			f.ip += 3
		case compiler.OpCloseUpvalue:
			slot := compiler.ReadUint16(code, f.ip+1)
			vm.closeUpvalue(f.stackTop + slot)
			f.ip += 3

		case compiler.OpGetGlobal:
			name := f.chunk().Constants[compiler.ReadUint16(code, f.ip+1)].(string)
			v, ok := vm.globals[name]
			if !ok {
				return nil, vm.runtimeError(span, "undefined global %q", name)
			}
			vm.push(v)
			f.ip += 3
		case compiler.OpSetGlobal:
			name := f.chunk().Constants[compiler.ReadUint16(code, f.ip+1)].(string)
			if _, ok := vm.globals[name]; !ok {
				return nil, vm.runtimeError(span, "undefined global %q", name)
			}
			vm.globals[name] = vm.peek()
			f.ip += 3
		case compiler.OpDefineGlobal:
			name := f.chunk().Constants[compiler.ReadUint16(code, f.ip+1)].(string)
			vm.globals[name] = vm.pop()
			f.ip += 3

		case compiler.OpMakeList:
			n := compiler.ReadUint16(code, f.ip+1)
			elems := append([]any{}, vm.stack[vm.sp-n:vm.sp]...)
			vm.sp -= n
			vm.push(&List{Elements: elems})
			f.ip += 3
		case compiler.OpMakeTable:
			n := compiler.ReadUint16(code, f.ip+1)
			pairs := vm.stack[vm.sp-2*n : vm.sp]
			table := NewTable()
			for i := 0; i < 2*n; i += 2 {
				table.Fields[pairs[i].(string)] = pairs[i+1]
			}
			vm.sp -= 2 * n
			vm.push(table)
			f.ip += 3

		case compiler.OpIndex:
			key, recv := vm.pop(), vm.pop()
			v, err := vm.index(recv, key, span)
			if err != nil {
				return nil, err
			}
			vm.push(v)
			f.ip++
		case compiler.OpSetIndex:
			value, key, recv := vm.pop(), vm.pop(), vm.pop()
			if err := vm.setIndex(recv, key, value, span); err != nil {
				return nil, err
			}
			vm.push(value)
			f.ip++
		case compiler.OpGetField:
			name := f.chunk().Constants[compiler.ReadUint16(code, f.ip+1)].(string)
			recv := vm.pop()
			v, err := vm.index(recv, name, span)
			if err != nil {
				return nil, err
			}
			vm.push(v)
			f.ip += 3
		case compiler.OpSetField:
			name := f.chunk().Constants[compiler.ReadUint16(code, f.ip+1)].(string)
			value, recv := vm.pop(), vm.pop()
			if err := vm.setIndex(recv, name, value, span); err != nil {
				return nil, err
			}
			vm.push(value)
			f.ip += 3

		case compiler.OpJump:
			f.ip = f.ip + 3 + relativeOffset(code, f.ip)
		case compiler.OpJumpIfFalse:
			off := relativeOffset(code, f.ip)
			cond := vm.pop()
			if !Truthy(cond) {
				f.ip = f.ip + 3 + off
			} else {
				f.ip += 3
			}
		case compiler.OpJumpIfTrue:
			off := relativeOffset(code, f.ip)
			cond := vm.pop()
			if Truthy(cond) {
				f.ip = f.ip + 3 + off
			} else {
				f.ip += 3
			}

		case compiler.OpCall:
			argc := int(code[f.ip+1])
			f.ip += 2
			if err := vm.call(argc, span); err != nil {
				return nil, err
			}
		case compiler.OpTailCall:
			argc := int(code[f.ip+1])
			f.ip += 2
			if err := vm.call(argc, span); err != nil {
				return nil, err
			}
		case compiler.OpReturn:
			result := vm.pop()
			done, err := vm.doReturn(result)
			if err != nil {
				return nil, err
			}
			if done {
				return result, nil
			}

		case compiler.OpClosure:
			protoIdx, upvalues, next := compiler.ReadClosureOperands(code, f.ip)
			proto := f.chunk().Constants[protoIdx].(*compiler.FunctionProto)
			closure := &Closure{Proto: proto, Upvalues: make([]*Upvalue, len(upvalues))}
			for i, uv := range upvalues {
				if uv.IsLocal {
					closure.Upvalues[i] = vm.captureUpvalue(f.stackTop + uv.Index)
				} else {
					closure.Upvalues[i] = f.closure.Upvalues[uv.Index]
				}
			}
			vm.push(closure)
			f.ip = next

		case compiler.OpPop:
			vm.pop()
			f.ip++
		case compiler.OpDup:
			vm.push(vm.peek())
			f.ip++
		case compiler.OpSwap:
			vm.stack[vm.sp-1], vm.stack[vm.sp-2] = vm.stack[vm.sp-2], vm.stack[vm.sp-1]
			f.ip++

		case compiler.OpNativeCall:
			nameIdx := compiler.ReadUint16(code, f.ip+1)
			argc := int(code[f.ip+3])
			name := f.chunk().Constants[nameIdx].(string)
			fn, ok := vm.builtins[name]
			if !ok {
				return nil, vm.runtimeError(span, "unknown internal native %q", name)
			}
			args := append([]any{}, vm.stack[vm.sp-argc:vm.sp]...)
			vm.sp -= argc
			result, err := fn(args)
			if err != nil {
				return nil, vm.runtimeError(span, "%s", err)
			}
			vm.push(result)
			f.ip += 4

		case compiler.OpPanic:
			idx := compiler.ReadUint16(code, f.ip+1)
			msg := f.chunk().Constants[idx]
			return nil, vm.runtimeError(span, "%s", Stringify(msg))

		case compiler.OpHalt:
			if vm.sp > 0 {
				return vm.stack[vm.sp-1], nil
			}
			return nil, nil

		default:
			return nil, vm.runtimeError(span, "unimplemented opcode %d", op)
		}
	}
}

func (vm *VM) peek() any { return vm.stack[vm.sp-1] }

func relativeOffset(code []byte, ip int) int {
	return int(int16(compiler.ReadUint16(code, ip+1)))
}

func (vm *VM) binaryArith(op compiler.Opcode, span diag.Span) error {
	b, a := vm.pop(), vm.pop()
	if op == compiler.OpAdd {
		if as, ok := a.(string); ok {
			if bs, ok := b.(string); ok {
				vm.push(as + bs)
				return nil
			}
		}
	}
	an, aok := a.(float64)
	bn, bok := b.(float64)
	if !aok || !bok {
		return vm.runtimeError(span, "cannot apply operator to %s and %s", TypeName(a), TypeName(b))
	}
	switch op {
	case compiler.OpAdd:
		vm.push(an + bn)
	case compiler.OpSub:
		vm.push(an - bn)
	case compiler.OpMul:
		vm.push(an * bn)
	case compiler.OpDiv:
		if bn == 0 {
			return vm.runtimeError(span, "division by zero")
		}
		vm.push(an / bn)
	case compiler.OpMod:
		if bn == 0 {
			return vm.runtimeError(span, "division by zero")
		}
		vm.push(Mod(an, bn))
	}
	return nil
}

func (vm *VM) binaryCompare(op compiler.Opcode, span diag.Span) error {
	b, a := vm.pop(), vm.pop()
	an, aok := a.(float64)
	bn, bok := b.(float64)
	if !aok || !bok {
		return vm.runtimeError(span, "cannot compare %s and %s", TypeName(a), TypeName(b))
	}
	switch op {
	case compiler.OpLt:
		vm.push(an < bn)
	case compiler.OpLe:
		vm.push(an <= bn)
	case compiler.OpGt:
		vm.push(an > bn)
	case compiler.OpGe:
		vm.push(an >= bn)
	}
	return nil
}

func (vm *VM) index(recv, key any, span diag.Span) (any, error) {
	switch r := recv.(type) {
	case *List:
		n, ok := key.(float64)
		if !ok {
			return nil, vm.runtimeError(span, "list index must be a Number, got %s", TypeName(key))
		}
		i := int(n)
		if i < 0 {
			return nil, vm.runtimeError(span, "list index %d is negative", i)
		}
		if i >= len(r.Elements) {
			return nil, vm.runtimeError(span, "list index %d out of bounds (length %d)", i, len(r.Elements))
		}
		return r.Elements[i], nil
	case *Table:
		k, ok := key.(string)
		if !ok {
			return nil, vm.runtimeError(span, "table key must be a String, got %s", TypeName(key))
		}
		return r.Fields[k], nil
	default:
		return nil, vm.runtimeError(span, "cannot index into a %s", TypeName(recv))
	}
}

func (vm *VM) setIndex(recv, key, value any, span diag.Span) error {
	switch r := recv.(type) {
	case *List:
		n, ok := key.(float64)
		if !ok {
			return vm.runtimeError(span, "list index must be a Number, got %s", TypeName(key))
		}
		i := int(n)
		if i < 0 {
			return vm.runtimeError(span, "list index %d is negative", i)
		}
		if i >= len(r.Elements) {
			return vm.runtimeError(span, "list index %d out of bounds (length %d)", i, len(r.Elements))
		}
		r.Elements[i] = value
		return nil
	case *Table:
		k, ok := key.(string)
		if !ok {
			return vm.runtimeError(span, "table key must be a String, got %s", TypeName(key))
		}
		r.Fields[k] = value
		return nil
	default:
		return vm.runtimeError(span, "cannot index into a %s", TypeName(recv))
	}
}

// call dispatches OpCall/OpTailCall: pushes a new frame for a Closure, or
// invokes a *NativeFunction inline. TailCall is compiled
// identically to Call (proper tail-call elimination is an optimization,
// not an observable-behavior requirement), so both share this
// implementation.
func (vm *VM) call(argc int, span diag.Span) error {
	calleeIdx := vm.sp - argc - 1
	callee := vm.stack[calleeIdx]
	switch fn := callee.(type) {
	case *Closure:
		if len(vm.frames) >= framesMax {
			return vm.runtimeError(span, "call stack overflow")
		}
		if fn.Proto.Arity != argc && !fn.Proto.Variadic {
			return vm.runtimeError(span, "%s expects %d arguments, got %d", fn.Proto.Name, fn.Proto.Arity, argc)
		}
		vm.frames = append(vm.frames, &frame{closure: fn, stackTop: calleeIdx + 1})
		return nil
	case *NativeFunction:
		args := append([]any{}, vm.stack[calleeIdx+1:vm.sp]...)
		result, err := fn.Fn(vm, args)
		if err != nil {
			return vm.runtimeError(span, "%s", err)
		}
		vm.sp = calleeIdx
		vm.push(result)
		return nil
	default:
		return vm.runtimeError(span, "value of type %s is not callable", TypeName(callee))
	}
}

// doReturn pops the current frame, closes its upvalues, and restores the
// caller's stack height with the return value on top. It reports done =
// true when the popped frame was the outermost one (a function called
// directly by the host, rather than from other Luma code), since there is
// no caller frame left to resume.
func (vm *VM) doReturn(result any) (done bool, err error) {
	f := vm.frames[len(vm.frames)-1]
	vm.closeUpvaluesFrom(f.stackTop)
	vm.frames = vm.frames[:len(vm.frames)-1]
	if len(vm.frames) == 0 {
		return true, nil
	}
	vm.sp = f.stackTop - 1
	vm.push(result)
	return false, nil
}

func (vm *VM) captureUpvalue(slotIndex int) *Upvalue {
	for _, o := range vm.openUpvalues {
		if o.slotIndex == slotIndex {
			return o.value
		}
	}
	uv := &Upvalue{Location: &vm.stack[slotIndex]}
	vm.openUpvalues = append(vm.openUpvalues, &openUpvalue{slotIndex: slotIndex, value: uv})
	return uv
}

func (vm *VM) closeUpvalue(slotIndex int) {
	for i, o := range vm.openUpvalues {
		if o.slotIndex == slotIndex {
			o.value.Close()
			vm.openUpvalues = append(vm.openUpvalues[:i], vm.openUpvalues[i+1:]...)
			return
		}
	}
}

func (vm *VM) closeUpvaluesFrom(base int) {
	remaining := vm.openUpvalues[:0]
	for _, o := range vm.openUpvalues {
		if o.slotIndex >= base {
			o.value.Close()
		} else {
			remaining = append(remaining, o)
		}
	}
	vm.openUpvalues = remaining
}
