package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"luma/compiler"
	"luma/diag"
	"luma/pipeline"
)

// emitCmd compiles a source file and dumps its disassembled bytecode to
// stdout for inspection; it never writes the compiled bytecode to a file.
type emitCmd struct{}

func (*emitCmd) Name() string     { return "emit" }
func (*emitCmd) Synopsis() string { return "compile a source file and print its disassembled bytecode" }
func (*emitCmd) Usage() string {
	return "emit <file.luma>: lex, parse, type-check and compile a file, then print the bytecode.\n"
}
func (*emitCmd) SetFlags(f *flag.FlagSet) {}

func (*emitCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "emit: missing source file")
		return subcommands.ExitUsageError
	}
	filename := args[0]
	data, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "emit: failed to read %s: %v\n", filename, err)
		return subcommands.ExitFailure
	}

	p := pipeline.New(filename, string(data))
	proto, err := p.Compile()
	if err != nil {
		for _, d := range p.Diagnostics {
			fmt.Fprintln(os.Stderr, diag.Format(d, string(data)))
		}
		return subcommands.ExitFailure
	}

	printProto(proto, map[*compiler.FunctionProto]bool{})
	return subcommands.ExitSuccess
}

// printProto disassembles proto, then recurses into every nested
// FunctionProto found in its constants pool (closures created inside it),
// guarding against printing the same proto twice.
func printProto(proto *compiler.FunctionProto, seen map[*compiler.FunctionProto]bool) {
	if proto == nil || seen[proto] {
		return
	}
	seen[proto] = true

	name := proto.Name
	if name == "" {
		name = "<script>"
	}
	fmt.Println(compiler.Disassemble(name, proto.Chunk))

	for _, c := range proto.Chunk.Constants {
		if nested, ok := c.(*compiler.FunctionProto); ok {
			fmt.Println()
			printProto(nested, seen)
		}
	}
}
