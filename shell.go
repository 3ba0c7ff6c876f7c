// shell.go: the interactive session state machine.
//
// Two states: Fresh (no pending partial input) and Continuation (the
// buffer holds an incomplete statement). Lines accumulate in the buffer
// until the incremental compiler produces either a runnable unit or a real
// syntax error; an empty line while continuing forces a compile attempt.
// Every exception ends exactly one iteration's buffer — the loop itself
// only terminates on end-of-input or an unrecoverable read failure.
package rustpython

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"unicode"
)

// ReplSession drives one interactive session against a persistent scope.
type ReplSession struct {
	vm     VirtualMachine
	scope  Scope
	reader LineReader
	errOut io.Writer

	input      string
	continuing bool
}

// NewReplSession wires a session; errOut receives per-iteration exception
// reports.
func NewReplSession(vm VirtualMachine, scope Scope, reader LineReader, errOut io.Writer) *ReplSession {
	return &ReplSession{vm: vm, scope: scope, reader: reader, errOut: errOut}
}

type execOutcome int

const (
	execOK execOutcome = iota
	execContinue
	execErr
)

// shellExec submits the accumulated buffer to the incremental compiler and,
// on success, runs it in the session scope. The three-way outcome mirrors
// the compiler's tagged result; no message inspection anywhere.
func (s *ReplSession) shellExec() (execOutcome, error) {
	code, err := s.vm.Compile(s.input, stdinName, ModeSingle)
	if errors.Is(err, ErrIncompleteInput) {
		return execContinue, nil
	}
	if err != nil {
		var syn *SyntaxError
		if errors.As(err, &syn) {
			return execErr, syn.AsException()
		}
		return execErr, err
	}

	value, err := s.vm.Run(code, s.scope)
	if err != nil {
		return execErr, err
	}
	// Save non-None values as "_".
	if value != nil && !s.vm.IsNone(value) {
		s.scope.Define("_", value)
	}
	return execOK, nil
}

// handleLine applies one successfully read line to the state machine and
// returns the exception to report for this iteration, if any.
func (s *ReplSession) handleLine(line string) error {
	s.reader.AppendHistory(strings.TrimRightFunc(line, unicode.IsSpace))

	stopContinuing := line == ""
	s.input += line + "\n"

	if s.continuing {
		if stopContinuing {
			s.continuing = false
		} else {
			return nil
		}
	}

	outcome, err := s.shellExec()
	switch outcome {
	case execOK:
		s.input = ""
	case execContinue:
		s.continuing = true
	case execErr:
		s.input = ""
	}
	return err
}

// prompt fetches the current prompt from the runtime's mutable sys
// attributes on every iteration; absence means an empty prompt.
func (s *ReplSession) prompt() string {
	name := "ps1"
	if s.continuing {
		name = "ps2"
	}
	p, ok := s.vm.SysAttr(name)
	if !ok {
		return ""
	}
	return p
}

// Run executes the read-eval loop until end-of-input or an unrecoverable
// read failure, then persists history to historyPath. The returned error
// is the history-save failure, if any; it is non-fatal and the caller
// decides how loudly to surface it.
func (s *ReplSession) Run(historyPath string) error {
	if err := s.reader.LoadHistory(historyPath); err != nil {
		slog.Info("no previous history", "path", historyPath, "error", err)
	}

loop:
	for {
		res := s.reader.ReadLine(s.prompt())
		switch res.Kind {
		case ReadOK:
			slog.Debug("line entered", "line", res.Line)
			if err := s.handleLine(res.Line); err != nil {
				Report(s.errOut, err)
			}
		case ReadInterrupted:
			s.continuing = false
			s.input = ""
			Report(s.errOut, NewKeyboardInterrupt())
		case ReadEOF:
			break loop
		case ReadFailed:
			slog.Error("readline error", "error", res.Err)
			break loop
		}
	}

	return s.reader.SaveHistory(historyPath)
}
