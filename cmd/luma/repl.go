package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/subcommands"

	"luma/diag"
	"luma/lexer"
	"luma/parser"
	"luma/pipeline"
	"luma/stdlib"
	"luma/token"
	"luma/vm"
)

// replCmd is an interactive Luma session, using github.com/chzyer/readline
// for line editing and a do/end balance check (Luma blocks are
// do...end delimited) to decide when a multi-line entry is ready to run.
//
// Every entry runs on the same *vm.VM, so globals an entry defines (let/var
// at script top level compile to OpDefineGlobal, compiler/statements.go)
// stay in the VM's environment. Each entry is type-checked on its own by
// pipeline.Compile, though, so an entry that names a binding defined by an
// earlier entry is rejected by the checker as an undefined name.
type replCmd struct{}

func (*replCmd) Name() string     { return "repl" }
func (*replCmd) Synopsis() string { return "start an interactive Luma session" }
func (*replCmd) Usage() string {
	return "repl: read-eval-print loop; type \"exit\" to quit.\n"
}
func (*replCmd) SetFlags(f *flag.FlagSet) {}

func (*replCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	rl, err := readline.New("luma> ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "repl: failed to start line editor: %v\n", err)
		return subcommands.ExitFailure
	}
	defer rl.Close()

	fmt.Println("Luma REPL. Type \"exit\" to quit.")

	out := bufio.NewWriter(os.Stdout)
	machine := vm.New("<repl>")
	stdlib.Install(machine, out)

	var buffer strings.Builder
	for {
		if buffer.Len() == 0 {
			rl.SetPrompt("luma> ")
		} else {
			rl.SetPrompt("   .. ")
		}

		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				buffer.Reset()
				continue
			}
			if err == io.EOF {
				return subcommands.ExitSuccess
			}
			fmt.Fprintf(os.Stderr, "repl: %v\n", err)
			return subcommands.ExitFailure
		}

		if strings.TrimSpace(line) == "exit" && buffer.Len() == 0 {
			return subcommands.ExitSuccess
		}

		if buffer.Len() > 0 {
			buffer.WriteString("\n")
		}
		buffer.WriteString(line)
		source := buffer.String()

		lx := lexer.New(source, "<repl>")
		tokens, lexDiags := lx.Scan()
		if hasError(lexDiags) {
			printDiags(lexDiags, source)
			buffer.Reset()
			continue
		}

		if !isInputReady(tokens) {
			continue
		}

		p := parser.New(tokens, "<repl>")
		_, parseDiags := p.Parse()
		if hasError(parseDiags) {
			if allAtEOF(parseDiags, tokens) {
				continue
			}
			printDiags(parseDiags, source)
			buffer.Reset()
			continue
		}

		pl := pipeline.New("<repl>", source)
		proto, err := pl.Compile()
		if err != nil {
			printDiags(pl.Diagnostics, source)
			buffer.Reset()
			continue
		}

		result, err := machine.Run(proto)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			buffer.Reset()
			continue
		}
		out.Flush()
		if result != nil {
			fmt.Println(vm.Stringify(result))
		}
		buffer.Reset()
	}
}

func hasError(ds []diag.Diagnostic) bool {
	for _, d := range ds {
		if d.Severity == diag.SeverityError {
			return true
		}
	}
	return false
}

func printDiags(ds []diag.Diagnostic, source string) {
	for _, d := range ds {
		fmt.Fprintln(os.Stderr, diag.Format(d, source))
	}
}

// allAtEOF reports whether every diagnostic sits at the position of the
// final EOF token, meaning the user most likely just hasn't finished
// typing a multi-line construct yet.
func allAtEOF(ds []diag.Diagnostic, tokens []token.Token) bool {
	if len(ds) == 0 || len(tokens) == 0 {
		return false
	}
	eof := tokens[len(tokens)-1]
	for _, d := range ds {
		if d.Span.None || d.Span.Start != eof.Span.Start {
			return false
		}
	}
	return true
}

// isInputReady checks do/end balance and whether the last non-EOF token
// is an operator, keyword or opener that clearly expects more input.
func isInputReady(tokens []token.Token) bool {
	balance := 0
	for _, tok := range tokens {
		switch tok.Type {
		case token.DO:
			balance++
		case token.END:
			balance--
		}
	}
	if balance > 0 {
		return false
	}

	last := lastNonEOF(tokens)
	if last == nil {
		return true
	}

	switch last.Type {
	case token.ASSIGN,
		token.PLUS,
		token.MINUS,
		token.STAR,
		token.SLASH,
		token.BANG,
		token.EQUAL_EQUAL,
		token.NOT_EQUAL,
		token.LESS,
		token.LESS_EQUAL,
		token.GREATER,
		token.GREATER_EQUAL,
		token.AND,
		token.OR,
		token.COMMA,
		token.LPAREN,
		token.DO,
		token.IF,
		token.ELIF,
		token.ELSE,
		token.WHILE,
		token.FOR,
		token.MATCH,
		token.RETURN,
		token.LET,
		token.VAR:
		return false
	}
	return true
}

func lastNonEOF(tokens []token.Token) *token.Token {
	for i := len(tokens) - 1; i >= 0; i-- {
		if tokens[i].Type != token.EOF {
			return &tokens[i]
		}
	}
	return nil
}
