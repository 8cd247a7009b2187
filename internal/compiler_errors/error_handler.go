package compiler_errors

import (
	"errors"
	"fmt"
	"io"
)

type Kind int

const (
	LexError Kind = iota
	SyntaxError
	DuplicateSymbol
	UnknownSymbol
	TypeMismatch
	ArityMismatch
	VoidValueUsed
	InternalError

	DivideByZero
	StackUnderflow
	InvalidSlot
	InvalidJump
	UnknownFunction
	MissingEntry
	CallDepthExceeded
	TypeFault
)

func (k Kind) String() string {
	switch k {
	case LexError:
		return "LexError"
	case SyntaxError:
		return "SyntaxError"
	case DuplicateSymbol:
		return "DuplicateSymbol"
	case UnknownSymbol:
		return "UnknownSymbol"
	case TypeMismatch:
		return "TypeMismatch"
	case ArityMismatch:
		return "ArityMismatch"
	case VoidValueUsed:
		return "VoidValueUsed"
	case InternalError:
		return "InternalError"
	case DivideByZero:
		return "DivideByZero"
	case StackUnderflow:
		return "StackUnderflow"
	case InvalidSlot:
		return "InvalidSlot"
	case InvalidJump:
		return "InvalidJump"
	case UnknownFunction:
		return "UnknownFunction"
	case MissingEntry:
		return "MissingEntry"
	case CallDepthExceeded:
		return "CallDepthExceeded"
	case TypeFault:
		return "TypeFault"
	default:
		panic(fmt.Sprintf("Kind.String(): received illegal error kind: %d", k))
	}
}

// IsFault reports whether the kind is raised at run time by the virtual machine.
func (k Kind) IsFault() bool {
	return k >= DivideByZero
}

func KindFromString(s string) (Kind, bool) {
	for k := LexError; k <= TypeFault; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

type CompilerError interface {
	GetMessage() string
	GetKind() Kind
}

type LocatedError interface {
	CompilerError
	GetFileName() string
	GetLine() int
	GetColumn() int
}

// Error is the single error value produced by the compilation stages.
// Line is zero when the error has no source position.
type Error struct {
	Kind    Kind
	Message string

	FileName string
	Line     int
	Column   int
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) At(fileName string, line, column int) *Error {
	e.FileName = fileName
	e.Line = line
	e.Column = column
	return e
}

func (e *Error) GetMessage() string  { return e.Message }
func (e *Error) GetKind() Kind       { return e.Kind }
func (e *Error) GetFileName() string { return e.FileName }
func (e *Error) GetLine() int        { return e.Line }
func (e *Error) GetColumn() int      { return e.Column }

func (e *Error) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}

	if e.FileName == "" {
		return fmt.Sprintf("%d:%d: %s: %s", e.Line, e.Column, e.Kind, e.Message)
	}

	return fmt.Sprintf("%s:%d:%d: %s: %s", e.FileName, e.Line, e.Column, e.Kind, e.Message)
}

// KindOf extracts the kind of any compiler or VM error.
func KindOf(err error) (Kind, bool) {
	var ce CompilerError
	if errors.As(err, &ce) {
		return ce.GetKind(), true
	}
	return 0, false
}

type ErrorHandler interface {
	AddError(err CompilerError)
	Report() int
}

type CompilerErrorHandler struct {
	errors []CompilerError
	writer io.Writer
}

func NewErrorHandler(outputWriter io.Writer) ErrorHandler {
	return &CompilerErrorHandler{
		errors: make([]CompilerError, 0),
		writer: outputWriter,
	}
}

func (eh *CompilerErrorHandler) AddError(err CompilerError) {
	eh.errors = append(eh.errors, err)
}

// Report writes every collected error and returns how many were written.
func (eh *CompilerErrorHandler) Report() int {
	if len(eh.errors) == 0 {
		return 0
	}

	fmt.Fprintln(eh.writer, "Build failed with errors:")

	for _, err := range eh.errors {
		located, ok := err.(LocatedError)
		if !ok || located.GetLine() == 0 {
			fmt.Fprintf(eh.writer, "ERROR: %s: %s\n", err.GetKind(), err.GetMessage())
			continue
		}

		fileName := located.GetFileName()
		if fileName == "" {
			fileName = "<source>"
		}

		fmt.Fprintf(
			eh.writer,
			"ERROR: %s:%d:%d: %s: %s\n",
			fileName,
			located.GetLine(),
			located.GetColumn(),
			err.GetKind(),
			err.GetMessage(),
		)
	}

	return len(eh.errors)
}
