package vm

import "luma/compiler"

// frame is one activation record on the VM's call stack: the closure
// being executed, its instruction pointer, and the base index into the
// VM's value stack where its locals begin.
type frame struct {
	closure  *Closure
	ip       int
	stackTop int
}

func (f *frame) chunk() *compiler.Chunk {
	return f.closure.Proto.Chunk
}
