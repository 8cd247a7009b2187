// Package compiler wires the stages together: lexing, parsing, semantic
// analysis, then either bytecode generation for the virtual machine or
// native lowering through LLVM.
package compiler

import (
	"fmt"
	"io"
	"os"

	"github.com/kievzenit/minic/internal/ast"
	"github.com/kievzenit/minic/internal/bytecode"
	"github.com/kievzenit/minic/internal/codegen"
	"github.com/kievzenit/minic/internal/compiler_errors"
	"github.com/kievzenit/minic/internal/headers"
	"github.com/kievzenit/minic/internal/lexer"
	"github.com/kievzenit/minic/internal/parser"
	"github.com/kievzenit/minic/internal/semantic_analyzer"
	"github.com/kievzenit/minic/internal/symbols"
	"github.com/kievzenit/minic/internal/vm"
)

type Options struct {
	FileName string

	// Entry names the function Run starts in.
	Entry string

	// Output receives printf output of the running program.
	Output io.Writer

	// MaxCallDepth limits nested calls in the virtual machine when positive.
	MaxCallDepth int

	// Trace, when set, receives one line per finished stage.
	Trace io.Writer

	// Headers resolves #include directives. NewRegistry is used when nil.
	Headers *headers.Registry
}

func DefaultOptions() Options {
	return Options{
		FileName: "<source>",
		Entry:    "main",
		Output:   os.Stdout,
		Headers:  headers.NewRegistry(),
	}
}

func (o *Options) withDefaults() Options {
	options := *o
	defaults := DefaultOptions()
	if options.FileName == "" {
		options.FileName = defaults.FileName
	}
	if options.Entry == "" {
		options.Entry = defaults.Entry
	}
	if options.Output == nil {
		options.Output = defaults.Output
	}
	if options.Headers == nil {
		options.Headers = defaults.Headers
	}
	return options
}

func (o *Options) tracef(format string, args ...any) {
	if o.Trace != nil {
		fmt.Fprintf(o.Trace, format+"\n", args...)
	}
}

// Unit is an analyzed translation unit: the annotated tree and the global
// symbol table.
type Unit struct {
	Program *ast.Program
	Symbols *symbols.SymbolTable
}

func Tokens(src []byte, options Options) ([]lexer.Token, error) {
	options = options.withDefaults()

	tokens, err := lexer.NewLexer(options.FileName, src).Tokenize()
	if err != nil {
		return nil, err
	}
	options.tracef("lexed %d tokens", len(tokens))
	return tokens, nil
}

// Parse lexes and parses src without analyzing it.
func Parse(src []byte, options Options) (*ast.Program, error) {
	options = options.withDefaults()

	tokens, err := Tokens(src, options)
	if err != nil {
		return nil, err
	}

	program, err := parser.NewParser(options.FileName, lexer.NewTokenScanner(tokens)).Parse()
	if err != nil {
		return nil, err
	}
	options.tracef("parsed %d declarations", len(program.Decls))
	return program, nil
}

// Check runs the front end and returns the analyzed unit.
func Check(src []byte, options Options) (*Unit, error) {
	options = options.withDefaults()

	program, err := Parse(src, options)
	if err != nil {
		return nil, err
	}

	table, err := semantic_analyzer.NewSemanticAnalyzer(program, options.Headers).Analyze()
	if err != nil {
		return nil, err
	}
	options.tracef("analyzed %d functions", len(program.Functions()))
	return &Unit{Program: program, Symbols: table}, nil
}

// Compile turns src into a bytecode program whose entry is options.Entry.
func Compile(src []byte, options Options) (*bytecode.Program, error) {
	options = options.withDefaults()

	unit, err := Check(src, options)
	if err != nil {
		return nil, err
	}

	program, err := codegen.NewCodeGenerator(unit.Program, unit.Symbols).Generate()
	if err != nil {
		return nil, err
	}

	program.Entry = -1
	if index, ok := program.FunctionIndex(options.Entry); ok {
		program.Entry = index
	}

	instructions := 0
	for _, fn := range program.Functions {
		instructions += len(fn.Code)
	}
	options.tracef("generated %d instructions in %d functions", instructions, len(program.Functions))

	return program, nil
}

// Run compiles src and executes it in a fresh virtual machine. Compile
// errors and run time faults both come back as the error; their kinds tell
// them apart.
func Run(src []byte, options Options) (int64, error) {
	options = options.withDefaults()

	program, err := Compile(src, options)
	if err != nil {
		return 0, err
	}

	machine := vm.New(program, vm.Options{
		Output:       options.Output,
		MaxCallDepth: options.MaxCallDepth,
	})
	result, err := machine.Run()
	options.tracef("vm %s", machine.State())
	return result, err
}

// Report writes err the way the command line does and returns how many
// errors were written.
func Report(w io.Writer, err error) int {
	errorHandler := compiler_errors.NewErrorHandler(w)

	if compilerError, ok := err.(compiler_errors.CompilerError); ok {
		errorHandler.AddError(compilerError)
	} else {
		errorHandler.AddError(compiler_errors.New(compiler_errors.InternalError, err.Error()))
	}
	return errorHandler.Report()
}
