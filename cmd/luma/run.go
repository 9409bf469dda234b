package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"luma/diag"
	"luma/pipeline"
)

// runCmd executes a Luma source file start to finish: read the file, run
// the whole toolchain, print diagnostics on failure.
type runCmd struct{}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "execute a Luma source file" }
func (*runCmd) Usage() string {
	return "run <file.luma>: lex, parse, type-check, compile and execute a source file.\n"
}
func (*runCmd) SetFlags(f *flag.FlagSet) {}

func (r *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "run: missing source file")
		return subcommands.ExitUsageError
	}
	filename := args[0]
	data, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "run: failed to read %s: %v\n", filename, err)
		return subcommands.ExitFailure
	}

	out := bufio.NewWriter(os.Stdout)
	_, p, err := pipeline.RunAll(filename, string(data), out)
	out.Flush()
	if err != nil {
		reportDiagnostics(p.Diagnostics, string(data))
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func reportDiagnostics(diagnostics []diag.Diagnostic, source string) {
	for _, d := range diagnostics {
		fmt.Fprintln(os.Stderr, diag.Format(d, source))
	}
}
