// dispatch.go: execution-mode selection and the four launch strategies.
//
// The dispatcher never recovers: every failure either is a *LaunchError
// (fatal, distinct message, exit 1) or propagates untouched from the
// runtime to the top-level reporter. The one piece of process-wide mutable
// state, the module search path, is owned here and mutated exactly once,
// by script dispatch.
package rustpython

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// MainFileName is the entry-point file executed when a directory is given
// as the script argument.
const MainFileName = "__main__.py"

// stdinName is the synthetic source name bound to -c commands and REPL
// input, distinct from any real file name.
const stdinName = "<stdin>"

// buildTimePath optionally carries extra search-path entries baked into
// the binary, set via
//
//	-ldflags "-X github.com/ourobouros/RustPython.buildTimePath=..."
//
// Entries are prepended, in order, ahead of environment-derived ones.
var buildTimePath string

// ExecKind tags the four mutually exclusive execution strategies.
type ExecKind int

const (
	KindInteractive ExecKind = iota
	KindCommand
	KindModule
	KindScript
)

// ExecutionMode is the selected strategy plus its input: the command text,
// the module name, or the script path. Empty for interactive.
type ExecutionMode struct {
	Kind    ExecKind
	Payload string
}

// SelectMode picks exactly one strategy with fixed precedence:
// -c > -m > positional script > interactive.
func SelectMode(fl *Flags) ExecutionMode {
	switch {
	case fl.Command != "":
		return ExecutionMode{Kind: KindCommand, Payload: fl.Command}
	case fl.Module != "":
		return ExecutionMode{Kind: KindModule, Payload: fl.Module}
	case len(fl.Script) > 0:
		return ExecutionMode{Kind: KindScript, Payload: fl.Script[0]}
	default:
		return ExecutionMode{Kind: KindInteractive}
	}
}

// LaunchErrorKind distinguishes the fatal pre-execution failures.
type LaunchErrorKind int

const (
	LaunchNoSuchFile LaunchErrorKind = iota
	LaunchNoEntryPoint
	LaunchReadFailed
)

// LaunchError is a fatal dispatch failure: the script path does not
// resolve, or its contents cannot be read.
type LaunchError struct {
	Kind LaunchErrorKind
	Msg  string
}

func (e *LaunchError) Error() string { return e.Msg }

// Launcher threads the runtime, the resolved settings, and the I/O streams
// through every strategy. There is no hidden global: whatever a strategy
// mutates, it mutates through the VM it was handed.
type Launcher struct {
	VM       VirtualMachine
	Settings *Settings

	// Reader drives the interactive session; nil outside interactive mode.
	Reader LineReader
	// HistoryPath overrides the default REPL history location; used by
	// tests. Empty means DefaultHistoryPath().
	HistoryPath string

	Stdout io.Writer
	Stderr io.Writer
}

// Execute runs the selected strategy to completion and returns its
// unrecovered failure, if any. It never exits the process.
func (l *Launcher) Execute(mode ExecutionMode) error {
	if buildTimePath != "" {
		entries := filepath.SplitList(buildTimePath)
		for i := len(entries) - 1; i >= 0; i-- {
			l.VM.PrependPath(entries[i])
		}
	}

	scope := l.VM.NewScope()

	if !l.Settings.NoSite {
		if err := l.VM.ImportModule("site"); err != nil {
			slog.Warn("failed to import site, consider adding the Lib directory to your RUSTPYTHONPATH environment variable", "error", err)
		}
	}

	switch mode.Kind {
	case KindCommand:
		slog.Debug("running command", "command", mode.Payload)
		return l.runString(scope, mode.Payload, stdinName)
	case KindModule:
		slog.Debug("running module", "module", mode.Payload)
		return l.VM.RunModule(mode.Payload)
	case KindScript:
		return l.runScript(scope, mode.Payload)
	default:
		return l.runShell(scope)
	}
}

// runString compiles a whole chunk, binds __file__, and runs it. Shared by
// command and script dispatch.
func (l *Launcher) runString(scope Scope, source, sourcePath string) error {
	code, err := l.VM.Compile(source, sourcePath, ModeExec)
	if err != nil {
		return err
	}
	scope.Define("__file__", sourcePath)
	_, err = l.VM.Run(code, scope)
	return err
}

// runScript resolves the script path (file, or directory containing
// __main__.py), prepends the containing directory to the module search
// path, and executes the file's contents.
func (l *Launcher) runScript(scope Scope, path string) error {
	resolved := path
	st, err := os.Stat(path)
	switch {
	case err == nil && st.Mode().IsRegular():
		// use as given
	case err == nil && st.IsDir():
		mainPath := filepath.Join(path, MainFileName)
		mst, merr := os.Stat(mainPath)
		if merr != nil || !mst.Mode().IsRegular() {
			return &LaunchError{
				Kind: LaunchNoEntryPoint,
				Msg:  fmt.Sprintf("can't find '__main__' module in '%s'", path),
			}
		}
		resolved = mainPath
	default:
		return &LaunchError{
			Kind: LaunchNoSuchFile,
			Msg:  fmt.Sprintf("can't open file '%s': No such file or directory", path),
		}
	}

	// Imports resolve relative to the script for the rest of the process.
	l.VM.PrependPath(filepath.Dir(resolved))

	src, err := os.ReadFile(resolved)
	if err != nil {
		return &LaunchError{
			Kind: LaunchReadFailed,
			Msg:  fmt.Sprintf("failed reading file '%s': %v", resolved, err),
		}
	}
	slog.Debug("running file", "path", resolved)
	return l.runString(scope, string(src), resolved)
}

// runShell starts an interactive session on the launcher's reader.
func (l *Launcher) runShell(scope Scope) error {
	if !l.Settings.Quiet {
		fmt.Fprintln(l.Stdout, Banner())
	}
	histPath := l.HistoryPath
	if histPath == "" {
		histPath = DefaultHistoryPath()
	}
	session := NewReplSession(l.VM, scope, l.Reader, l.Stderr)
	if err := session.Run(histPath); err != nil {
		slog.Warn("could not save REPL history", "path", histPath, "error", err)
	}
	return nil
}
