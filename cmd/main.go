package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/kievzenit/minic/internal/compiler"
	"github.com/kievzenit/minic/internal/compiler_errors"
)

const usage = `minic - a compiler for a small subset of C

Usage:
    minic <command> [flags] <file>

Commands:
    run <file>       Compile and execute a .c file in the virtual machine
    build <file>     Compile a .c file to a native executable through clang
    emit-ir <file>   Print the LLVM IR of a .c file
    eval <code>      Compile and execute inline source
    check <file>     Parse and type-check a .c file
    tokens <file>    Print the tokens of a .c file
    ast <file>       Print the syntax tree of a .c file
    bytecode <file>  Print the bytecode of a .c file
    help             Show this help message

Use "minic <command> -h" for more information about a command.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type command struct {
	name        string
	description string
	run         func(ctx context.Context, c *cli) int
}

var commands = []command{
	{"run", "Compile and execute a .c file in the virtual machine", runCommand},
	{"build", "Compile a .c file to a native executable through clang", buildCommand},
	{"emit-ir", "Print the LLVM IR of a .c file", emitIRCommand},
	{"eval", "Compile and execute inline source", evalCommand},
	{"check", "Parse and type-check a .c file", checkCommand},
	{"tokens", "Print the tokens of a .c file", tokensCommand},
	{"ast", "Print the syntax tree of a .c file", astCommand},
	{"bytecode", "Print the bytecode of a .c file", bytecodeCommand},
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	name := args[0]
	if name == "help" || name == "-h" || name == "--help" {
		fmt.Fprint(stdout, usage)
		return 0
	}

	for _, cmd := range commands {
		if cmd.name != name {
			continue
		}

		c := newCLI(cmd, stdout, stderr)
		if code, ok := c.parse(args[1:]); !ok {
			return code
		}
		return cmd.run(ctx, c)
	}

	fmt.Fprintf(stderr, "Error: unknown command %q\n\n", name)
	fmt.Fprint(stderr, usage)
	return 2
}

// cli holds the flags shared by every command and the parsed argument.
type cli struct {
	fs *flag.FlagSet

	verbose      *bool
	dump         *bool
	output       *string
	maxCallDepth *int
	entry        *string

	stdout io.Writer
	stderr io.Writer
}

func newCLI(cmd command, stdout, stderr io.Writer) *cli {
	fs := flag.NewFlagSet(cmd.name, flag.ContinueOnError)
	fs.SetOutput(stderr)

	c := &cli{
		fs:      fs,
		verbose: fs.Bool("v", false, "Trace compilation stages to stderr"),
		stdout:  stdout,
		stderr:  stderr,
	}

	switch cmd.name {
	case "run", "eval":
		c.maxCallDepth = fs.Int("max-depth", 0, "Fault when calls nest deeper than this (0 means unlimited)")
		c.entry = fs.String("entry", "main", "Function to start execution in")
		c.dump = fs.Bool("dump", false, "Print the syntax tree before running")
	case "build":
		c.output = fs.String("o", "", "Output executable path (default: <file without .c>.out)")
	case "emit-ir":
		c.output = fs.String("o", "", "Write IR to this file instead of stdout")
	}

	argName := "file"
	if cmd.name == "eval" {
		argName = "code"
	}
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: minic %s [flags] <%s>\n", cmd.name, argName)
		fmt.Fprintf(stderr, "%s\n\n", cmd.description)
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
	}

	return c
}

func (c *cli) parse(args []string) (int, bool) {
	if err := c.fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0, false
		}
		return 2, false
	}

	if c.fs.NArg() != 1 {
		fmt.Fprintf(c.stderr, "Error: expected exactly one argument\n")
		c.fs.Usage()
		return 2, false
	}
	return 0, true
}

func (c *cli) arg() string {
	return c.fs.Arg(0)
}

func (c *cli) options(fileName string) compiler.Options {
	options := compiler.DefaultOptions()
	options.FileName = fileName
	options.Output = c.stdout
	if *c.verbose {
		options.Trace = c.stderr
	}
	if c.maxCallDepth != nil {
		options.MaxCallDepth = *c.maxCallDepth
	}
	if c.entry != nil {
		options.Entry = *c.entry
	}
	return options
}

func (c *cli) readSource() ([]byte, bool) {
	src, err := os.ReadFile(c.arg())
	if err != nil {
		fmt.Fprintf(c.stderr, "Error reading file %s: %v\n", c.arg(), err)
		return nil, false
	}
	return src, true
}

// fail reports err and returns the exit code for it: 1 for compile errors
// and failed tools, 3 for run time faults.
func (c *cli) fail(err error) int {
	compiler.Report(c.stderr, err)
	if kind, ok := compiler_errors.KindOf(err); ok && kind.IsFault() {
		return 3
	}
	return 1
}

func runCommand(_ context.Context, c *cli) int {
	src, ok := c.readSource()
	if !ok {
		return 1
	}
	return execute(c, src, c.arg())
}

func evalCommand(_ context.Context, c *cli) int {
	return execute(c, []byte(c.arg()), "<eval>")
}

// execute runs src in the virtual machine. The exit code is the low byte of
// the entry function's result, like a process returning from main.
func execute(c *cli, src []byte, fileName string) int {
	options := c.options(fileName)

	if *c.dump {
		program, err := compiler.Parse(src, options)
		if err != nil {
			return c.fail(err)
		}
		if err := compiler.DumpAST(c.stderr, program); err != nil {
			return c.fail(err)
		}
	}

	result, err := compiler.Run(src, options)
	if err != nil {
		return c.fail(err)
	}
	if *c.verbose {
		fmt.Fprintf(c.stderr, "%s returned %d\n", options.Entry, result)
	}
	return int(uint8(result))
}

func buildCommand(ctx context.Context, c *cli) int {
	src, ok := c.readSource()
	if !ok {
		return 1
	}

	output := *c.output
	if output == "" {
		output = compiler.OutputName(c.arg())
	}

	if err := compiler.BuildExecutable(ctx, src, output, c.options(c.arg())); err != nil {
		return c.fail(err)
	}
	fmt.Fprintf(c.stdout, "Generated %s\n", output)
	return 0
}

func emitIRCommand(_ context.Context, c *cli) int {
	src, ok := c.readSource()
	if !ok {
		return 1
	}

	ir, err := compiler.EmitNative(src, c.options(c.arg()))
	if err != nil {
		return c.fail(err)
	}

	if *c.output == "" {
		fmt.Fprint(c.stdout, ir)
		return 0
	}
	if err := os.WriteFile(*c.output, []byte(ir), 0o644); err != nil {
		fmt.Fprintf(c.stderr, "Error writing %s: %v\n", *c.output, err)
		return 1
	}
	return 0
}

func checkCommand(_ context.Context, c *cli) int {
	src, ok := c.readSource()
	if !ok {
		return 1
	}

	unit, err := compiler.Check(src, c.options(c.arg()))
	if err != nil {
		return c.fail(err)
	}
	fmt.Fprint(c.stdout, unit.Symbols.String())
	return 0
}

func tokensCommand(_ context.Context, c *cli) int {
	src, ok := c.readSource()
	if !ok {
		return 1
	}

	tokens, err := compiler.Tokens(src, c.options(c.arg()))
	if err != nil {
		return c.fail(err)
	}
	for _, token := range tokens {
		fmt.Fprintf(c.stdout, "%d:%d\t%s\n", token.Metadata.Line, token.Metadata.Column, token.String())
	}
	return 0
}

func astCommand(_ context.Context, c *cli) int {
	src, ok := c.readSource()
	if !ok {
		return 1
	}

	program, err := compiler.Parse(src, c.options(c.arg()))
	if err != nil {
		return c.fail(err)
	}
	if err := compiler.DumpAST(c.stdout, program); err != nil {
		return c.fail(err)
	}
	return 0
}

func bytecodeCommand(_ context.Context, c *cli) int {
	src, ok := c.readSource()
	if !ok {
		return 1
	}

	program, err := compiler.Compile(src, c.options(c.arg()))
	if err != nil {
		return c.fail(err)
	}
	fmt.Fprint(c.stdout, program.String())
	return 0
}
