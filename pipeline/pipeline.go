// Package pipeline is the thin façade gluing the lexer, parser, type
// checker, compiler and VM into the handful of operations cmd/luma needs:
// Parse, Typecheck, Compile, Execute, and RunAll.
package pipeline

import (
	"bufio"

	"github.com/pkg/errors"

	"luma/ast"
	"luma/compiler"
	"luma/diag"
	"luma/lexer"
	"luma/parser"
	"luma/stdlib"
	"luma/token"
	"luma/typecheck"
	"luma/vm"
)

// Pipeline runs the stages against a single named source buffer,
// accumulating diagnostics from every stage it reaches.
type Pipeline struct {
	File        string
	Source      string
	Diagnostics []diag.Diagnostic
}

// New returns a Pipeline over source, attributing diagnostics to file
// (used only for display; REPL callers may pass "<repl>").
func New(file, source string) *Pipeline {
	return &Pipeline{File: file, Source: source}
}

func (p *Pipeline) addAll(ds []diag.Diagnostic) {
	p.Diagnostics = append(p.Diagnostics, ds...)
}

func (p *Pipeline) hasErrors() bool {
	for _, d := range p.Diagnostics {
		if d.Severity == diag.SeverityError {
			return true
		}
	}
	return false
}

// Lex runs the lexer stage alone, useful for tooling that only wants a
// token stream (e.g. a syntax-highlighting frontend).
func (p *Pipeline) Lex() ([]token.Token, error) {
	l := lexer.New(p.Source, p.File)
	tokens, ds := l.Scan()
	p.addAll(ds)
	if p.hasErrors() {
		return nil, p.firstError()
	}
	return tokens, nil
}

func (p *Pipeline) firstError() error {
	for _, d := range p.Diagnostics {
		if d.Severity == diag.SeverityError {
			return errors.WithStack(d)
		}
	}
	return nil
}

// Parse runs the lexer and parser stages, returning the resulting AST.
// Parser errors do not necessarily stop at the first one (syntax errors
// accumulate via recovery), so callers should check p.Diagnostics even
// when Parse returns a non-nil program.
func (p *Pipeline) Parse() (*ast.Program, error) {
	l := lexer.New(p.Source, p.File)
	tokens, lexDiags := l.Scan()
	p.addAll(lexDiags)

	ps := parser.New(tokens, p.File)
	program, parseDiags := ps.Parse()
	p.addAll(parseDiags)

	if p.hasErrors() {
		return program, p.firstError()
	}
	return program, nil
}

// Typecheck runs Parse, then the type checker, declaring hostDecls (the
// stdlib's natives, plus anything else the embedder wants visible) before
// checking.
func (p *Pipeline) Typecheck(hostDecls func(*typecheck.Checker)) (*ast.Program, *typecheck.Checker, error) {
	program, err := p.Parse()
	if err != nil {
		return nil, nil, err
	}
	checker := typecheck.New(p.File)
	if hostDecls != nil {
		hostDecls(checker)
	}
	typeDiags := checker.Check(program)
	p.addAll(typeDiags)
	if p.hasErrors() {
		return program, checker, p.firstError()
	}
	return program, checker, nil
}

// Compile runs Typecheck, then lowers the checked program to bytecode.
func (p *Pipeline) Compile() (*compiler.FunctionProto, error) {
	program, _, err := p.Typecheck(stdlib.DeclareHostTypes)
	if err != nil {
		return nil, err
	}
	c := compiler.New(p.File)
	proto, err := c.Compile(program)
	if err != nil {
		d, ok := errors.Cause(err).(diag.Diagnostic)
		if ok {
			p.Diagnostics = append(p.Diagnostics, d)
		}
		return nil, err
	}
	return proto, nil
}

// Execute runs proto on a freshly-prepared VM (stdlib installed) and
// returns its final value.
func (p *Pipeline) Execute(proto *compiler.FunctionProto, out *bufio.Writer) (any, error) {
	machine := vm.New(p.File)
	stdlib.Install(machine, out)
	result, err := machine.Run(proto)
	if err != nil {
		if d, ok := errors.Cause(err).(diag.Diagnostic); ok {
			p.Diagnostics = append(p.Diagnostics, d)
		}
		return nil, err
	}
	return result, nil
}

// RunAll drives every stage in sequence: lex, parse, type-check, compile,
// execute. It is what a "luma run file.luma" subcommand calls.
func RunAll(file, source string, out *bufio.Writer) (any, *Pipeline, error) {
	p := New(file, source)
	proto, err := p.Compile()
	if err != nil {
		return nil, p, err
	}
	result, err := p.Execute(proto, out)
	if err != nil {
		return nil, p, err
	}
	return result, p, nil
}
