package rustpython

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// scriptedReader feeds a fixed sequence of read outcomes to the session
// and keeps history in memory, backed by a real file for load/save so the
// persistence contract stays observable.
type scriptedReader struct {
	events  []ReadResult
	pos     int
	prompts []string

	history   []string
	loadErr   error
	saveErr   error
	saveCalls int
	savedTo   string
}

func lineEvents(lines ...string) []ReadResult {
	var evs []ReadResult
	for _, l := range lines {
		evs = append(evs, ReadResult{Kind: ReadOK, Line: l})
	}
	return evs
}

func (r *scriptedReader) ReadLine(prompt string) ReadResult {
	r.prompts = append(r.prompts, prompt)
	if r.pos >= len(r.events) {
		return ReadResult{Kind: ReadEOF}
	}
	ev := r.events[r.pos]
	r.pos++
	return ev
}

func (r *scriptedReader) AppendHistory(line string) { r.history = append(r.history, line) }

func (r *scriptedReader) LoadHistory(path string) error {
	if r.loadErr != nil {
		return r.loadErr
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	for _, l := range strings.Split(strings.TrimSuffix(string(data), "\n"), "\n") {
		r.history = append(r.history, l)
	}
	return nil
}

func (r *scriptedReader) SaveHistory(path string) error {
	r.saveCalls++
	r.savedTo = path
	if r.saveErr != nil {
		return r.saveErr
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strings.Join(r.history, "\n")+"\n"), 0o644)
}

func (r *scriptedReader) Close() error { return nil }

// incrementalFakeVM compiles successfully only when the buffer ends with a
// blank line or holds a simple statement, mimicking the runtime's
// incremental compiler closely enough to drive the state machine.
func incrementalVM(result Object) *fakeVM {
	vm := &fakeVM{sysAttrs: map[string]string{"ps1": ">>> ", "ps2": "... "}}
	vm.compile = func(source, name string, mode CompileMode) (CompiledCode, error) {
		trimmed := strings.TrimSuffix(source, "\n")
		if strings.HasSuffix(trimmed, ":") {
			return nil, ErrIncompleteInput
		}
		return &fakeCode{src: source, name: name, mode: mode}, nil
	}
	vm.run = func(code CompiledCode, sc Scope) (Object, error) {
		return result, nil
	}
	return vm
}

func runSession(t *testing.T, vm *fakeVM, reader *scriptedReader) (*fakeScope, *bytes.Buffer, *ReplSession) {
	t.Helper()
	scope := newFakeScope()
	var errOut bytes.Buffer
	s := NewReplSession(vm, scope, reader, &errOut)
	if err := s.Run(filepath.Join(t.TempDir(), "hist.txt")); err != nil {
		t.Fatalf("session run: %v", err)
	}
	return scope, &errOut, s
}

func Test_Repl_SimpleExpression_BindsLastResult(t *testing.T) {
	vm := incrementalVM(Object(int64(2)))
	reader := &scriptedReader{events: lineEvents("1 + 1", "")}
	scope, errOut, s := runSession(t, vm, reader)

	if v, ok := scope.Lookup("_"); !ok || v != int64(2) {
		t.Fatalf("want _ bound to 2, got %v (%v)", v, ok)
	}
	if s.continuing {
		t.Fatalf("session must end Fresh")
	}
	if errOut.Len() != 0 {
		t.Fatalf("unexpected report: %s", errOut.String())
	}
}

func Test_Repl_NoneResult_DoesNotBindUnderscore(t *testing.T) {
	vm := incrementalVM(nil)
	reader := &scriptedReader{events: lineEvents("x = 1")}
	scope, _, _ := runSession(t, vm, reader)
	if _, ok := scope.Lookup("_"); ok {
		t.Fatalf("None result must not bind _")
	}
}

func Test_Repl_BlockHeader_EntersContinuation_EmptyLineForcesCompile(t *testing.T) {
	vm := incrementalVM(nil)
	var compiles []string
	inner := vm.compile
	vm.compile = func(source, name string, mode CompileMode) (CompiledCode, error) {
		compiles = append(compiles, source)
		return inner(source, name, mode)
	}

	reader := &scriptedReader{events: lineEvents("if True:", "    pass", "")}
	_, _, s := runSession(t, vm, reader)

	// Header compiles once (incomplete); the indented line is buffered
	// without a compile attempt; the empty line forces the second attempt.
	if len(compiles) != 2 {
		t.Fatalf("want 2 compile attempts, got %d: %q", len(compiles), compiles)
	}
	if compiles[0] != "if True:\n" {
		t.Fatalf("first attempt %q", compiles[0])
	}
	if compiles[1] != "if True:\n    pass\n\n" {
		t.Fatalf("second attempt %q", compiles[1])
	}
	if s.continuing || s.input != "" {
		t.Fatalf("session must end Fresh with an empty buffer")
	}
}

func Test_Repl_Prompts_FollowStateAndSysAttrs(t *testing.T) {
	vm := incrementalVM(nil)
	reader := &scriptedReader{events: lineEvents("if True:", "    pass", "")}
	runSession(t, vm, reader)

	want := []string{">>> ", "... ", "... ", ">>> "}
	if len(reader.prompts) != len(want) {
		t.Fatalf("got prompts %q", reader.prompts)
	}
	for i := range want {
		if reader.prompts[i] != want[i] {
			t.Fatalf("prompt %d: want %q, got %q", i, want[i], reader.prompts[i])
		}
	}
}

func Test_Repl_MissingPromptAttrs_MeanEmptyPrompt(t *testing.T) {
	vm := incrementalVM(nil)
	vm.sysAttrs = nil
	reader := &scriptedReader{events: lineEvents("1")}
	runSession(t, vm, reader)
	for _, p := range reader.prompts {
		if p != "" {
			t.Fatalf("want empty prompts, got %q", reader.prompts)
		}
	}
}

func Test_Repl_SyntaxError_Reported_BufferCleared_LoopContinues(t *testing.T) {
	vm := incrementalVM(Object(int64(4)))
	inner := vm.compile
	vm.compile = func(source, name string, mode CompileMode) (CompiledCode, error) {
		if strings.HasPrefix(source, "1 +") {
			return nil, &SyntaxError{File: name, Line: 1, Col: 4, Msg: "invalid syntax"}
		}
		return inner(source, name, mode)
	}

	reader := &scriptedReader{events: lineEvents("1 +", "2 + 2")}
	scope, errOut, s := runSession(t, vm, reader)

	if !strings.Contains(errOut.String(), "SyntaxError") {
		t.Fatalf("syntax error not reported: %s", errOut.String())
	}
	if s.continuing || s.input != "" {
		t.Fatalf("buffer must be cleared after a syntax error")
	}
	if v, ok := scope.Lookup("_"); !ok || v != int64(4) {
		t.Fatalf("loop must continue after the error, _ = %v", v)
	}
}

func Test_Repl_RuntimeException_EndsIterationOnly(t *testing.T) {
	vm := incrementalVM(nil)
	calls := 0
	vm.run = func(CompiledCode, Scope) (Object, error) {
		calls++
		if calls == 1 {
			return nil, &Exception{TypeName: "ZeroDivisionError", Message: "division by zero"}
		}
		return nil, nil
	}

	reader := &scriptedReader{events: lineEvents("1/0", "ok")}
	_, errOut, s := runSession(t, vm, reader)

	if !strings.Contains(errOut.String(), "ZeroDivisionError") {
		t.Fatalf("exception not reported: %s", errOut.String())
	}
	if calls != 2 {
		t.Fatalf("loop must keep going, run called %d times", calls)
	}
	if s.input != "" {
		t.Fatalf("buffer not cleared")
	}
}

func Test_Repl_Interrupt_ClearsBufferAndReports_WithoutEndingSession(t *testing.T) {
	vm := incrementalVM(nil)
	events := lineEvents("if True:")
	events = append(events, ReadResult{Kind: ReadInterrupted})
	events = append(events, lineEvents("1")...)
	reader := &scriptedReader{events: events}

	_, errOut, s := runSession(t, vm, reader)

	if !strings.Contains(errOut.String(), "KeyboardInterrupt") {
		t.Fatalf("interrupt not reported: %s", errOut.String())
	}
	if s.continuing || s.input != "" {
		t.Fatalf("interrupt must reset to Fresh with an empty buffer")
	}
	// The prompt after the interrupt must be primary again.
	if got := reader.prompts[2]; got != ">>> " {
		t.Fatalf("post-interrupt prompt %q", got)
	}
}

func Test_Repl_ReadFailure_EndsSessionAndStillSavesHistory(t *testing.T) {
	vm := incrementalVM(nil)
	reader := &scriptedReader{events: []ReadResult{{Kind: ReadFailed, Err: errors.New("tty gone")}}}
	runSession(t, vm, reader)
	if reader.saveCalls != 1 {
		t.Fatalf("history must be flushed, saves = %d", reader.saveCalls)
	}
}

func Test_Repl_HistoryLine_TrimsTrailingWhitespace(t *testing.T) {
	vm := incrementalVM(nil)
	reader := &scriptedReader{events: lineEvents("x = 1   \t")}
	runSession(t, vm, reader)
	if len(reader.history) != 1 || reader.history[0] != "x = 1" {
		t.Fatalf("got history %q", reader.history)
	}
}

func Test_Repl_HistorySaveFailure_IsObservable(t *testing.T) {
	vm := incrementalVM(nil)
	saveErr := errors.New("disk full")
	reader := &scriptedReader{saveErr: saveErr}
	s := NewReplSession(vm, newFakeScope(), reader, new(bytes.Buffer))
	if err := s.Run(filepath.Join(t.TempDir(), "h.txt")); !errors.Is(err, saveErr) {
		t.Fatalf("save failure must surface, got %v", err)
	}
}

func Test_Repl_HistoryPersistsAcrossSessions(t *testing.T) {
	vm := incrementalVM(nil)
	histPath := filepath.Join(t.TempDir(), "cfg", "repl_history.txt")

	first := &scriptedReader{events: lineEvents("a = 1", "b = 2")}
	s1 := NewReplSession(vm, newFakeScope(), first, new(bytes.Buffer))
	if err := s1.Run(histPath); err != nil {
		t.Fatalf("session 1: %v", err)
	}

	second := &scriptedReader{}
	s2 := NewReplSession(vm, newFakeScope(), second, new(bytes.Buffer))
	if err := s2.Run(histPath); err != nil {
		t.Fatalf("session 2: %v", err)
	}

	if len(second.history) < 2 || second.history[0] != "a = 1" || second.history[1] != "b = 2" {
		t.Fatalf("session 2 loaded history %q", second.history)
	}
}
