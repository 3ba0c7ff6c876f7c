// vm.go: the collaborator-runtime boundary.
//
// The launcher does not parse, compile, or interpret anything itself. It
// drives a VirtualMachine, which is whatever runtime the binary wires in
// (internal/minipy for the bundled build, fakes in tests). Everything the
// launcher needs from a runtime is collected here: compilation with a
// three-way outcome (code / incomplete input / syntax error), code
// execution against a scope, module execution by name, search-path
// mutation, and a dynamic sys-attribute lookup for the REPL prompts.
//
// Exception types live here too so that the runtime, the session loop, and
// the reporter all speak one error shape.
package rustpython

import (
	"errors"
	"fmt"
	"strings"
)

// CompileMode selects how a source chunk is compiled. Exec is used for
// scripts and -c commands; Single is the REPL's statement-at-a-time mode
// (expression results are displayed and returned).
type CompileMode int

const (
	ModeExec CompileMode = iota
	ModeSingle
)

// Object is an opaque runtime value. The launcher only ever stores these
// back into a Scope or asks the VM whether one is the None sentinel.
type Object interface{}

// CompiledCode is an opaque compiled unit produced by Compile and consumed
// by Run. SourceName reports the name the unit was compiled under (a file
// path or "<stdin>") for error reporting.
type CompiledCode interface {
	SourceName() string
}

// Scope is a variable-binding environment. The session scope persists for
// the lifetime of an interactive session; script and command execution get
// a fresh one from the VM.
type Scope interface {
	Define(name string, value Object)
	Lookup(name string) (Object, bool)
}

// VirtualMachine is the external runtime collaborator.
//
// Compile returns ErrIncompleteInput (possibly wrapped) when the source is
// a valid prefix of a larger statement, a *SyntaxError for any other
// compile failure, and otherwise a runnable unit. Run returns the unit's
// result value (the VM's None sentinel for plain statements) or a
// *Exception. RunModule resolves and executes a module as a main program;
// ImportModule imports one for its side effects only.
type VirtualMachine interface {
	Compile(source, sourceName string, mode CompileMode) (CompiledCode, error)
	Run(code CompiledCode, scope Scope) (Object, error)
	RunModule(name string) error
	ImportModule(name string) error
	NewScope() Scope
	PrependPath(dir string)
	SysAttr(name string) (string, bool)
	IsNone(obj Object) bool
}

// ErrIncompleteInput is the compile outcome meaning "valid prefix of a
// larger statement". It is an internal control signal for the REPL and is
// never shown to the user.
var ErrIncompleteInput = errors.New("incomplete input")

// Frame is one entry of an exception traceback, innermost last.
type Frame struct {
	File string
	Line int
	Name string
}

// Exception is an unrecovered runtime failure in the launcher's uniform
// reporting shape. Runtimes return it from Run/RunModule; the launcher
// synthesizes one for keyboard interrupts and converts syntax errors into
// it so there is exactly one rendering path.
type Exception struct {
	TypeName string
	Message  string
	Frames   []Frame

	rendered string // pre-rendered report body, used for converted syntax errors
}

func (e *Exception) Error() string {
	if e.Message == "" {
		return e.TypeName
	}
	return e.TypeName + ": " + e.Message
}

// Traceback renders the exception the way the interpreter would print an
// uncaught one.
func (e *Exception) Traceback() string {
	if e.rendered != "" {
		return e.rendered
	}
	var b strings.Builder
	if len(e.Frames) > 0 {
		b.WriteString("Traceback (most recent call last):\n")
		for _, fr := range e.Frames {
			name := fr.Name
			if name == "" {
				name = "<module>"
			}
			fmt.Fprintf(&b, "  File %q, line %d, in %s\n", fr.File, fr.Line, name)
		}
	}
	b.WriteString(e.Error())
	return b.String()
}

// NewKeyboardInterrupt builds the standard interrupted condition reported
// when a blocking read is cancelled.
func NewKeyboardInterrupt() *Exception {
	return &Exception{TypeName: "KeyboardInterrupt"}
}

// SyntaxError is a compile failure other than incomplete input.
type SyntaxError struct {
	File string
	Line int
	Col  int
	Text string // offending source line, may be empty
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid syntax at %s:%d:%d: %s", e.File, e.Line, e.Col, e.Msg)
}

// AsException converts a syntax error into the uniform reporting shape.
func (e *SyntaxError) AsException() *Exception {
	var b strings.Builder
	fmt.Fprintf(&b, "  File %q, line %d\n", e.File, e.Line)
	if e.Text != "" {
		fmt.Fprintf(&b, "    %s\n", e.Text)
		if e.Col > 0 {
			fmt.Fprintf(&b, "    %s^\n", strings.Repeat(" ", e.Col-1))
		}
	}
	b.WriteString("SyntaxError: " + e.Msg)
	return &Exception{TypeName: "SyntaxError", Message: e.Msg, rendered: b.String()}
}
