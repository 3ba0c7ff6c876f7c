package minipy

import (
	"errors"
	"testing"

	rustpython "github.com/ourobouros/RustPython"
)

func compileSingle(t *testing.T, src string) (rustpython.CompiledCode, error) {
	t.Helper()
	return New(Options{}).Compile(src, "<stdin>", rustpython.ModeSingle)
}

func mustBeIncomplete(t *testing.T, src string) {
	t.Helper()
	_, err := compileSingle(t, src)
	if !errors.Is(err, rustpython.ErrIncompleteInput) {
		t.Fatalf("want incomplete input for %q, got %v", src, err)
	}
}

func mustBeSyntaxError(t *testing.T, src string, mode rustpython.CompileMode) *rustpython.SyntaxError {
	t.Helper()
	_, err := New(Options{}).Compile(src, "<stdin>", mode)
	var syn *rustpython.SyntaxError
	if !errors.As(err, &syn) {
		t.Fatalf("want syntax error for %q, got %v", src, err)
	}
	return syn
}

func Test_Compile_SimpleStatement_CompletesImmediately(t *testing.T) {
	code, err := compileSingle(t, "1 + 1\n")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if code.SourceName() != "<stdin>" {
		t.Fatalf("source name %q", code.SourceName())
	}
}

func Test_Compile_BlockHeader_IsIncompleteInSingleMode(t *testing.T) {
	mustBeIncomplete(t, "if True:\n")
	mustBeIncomplete(t, "while x > 0:\n")
}

func Test_Compile_BlockWithBody_StaysIncompleteUntilBlankLine(t *testing.T) {
	mustBeIncomplete(t, "if True:\n    x = 1\n")

	code, err := compileSingle(t, "if True:\n    x = 1\n\n")
	if err != nil {
		t.Fatalf("blank line must complete the block: %v", err)
	}
	if code == nil {
		t.Fatalf("no code returned")
	}
}

func Test_Compile_DanglingElse_IsIncomplete(t *testing.T) {
	mustBeIncomplete(t, "if True:\n    pass\nelse:\n")
}

func Test_Compile_OpenBracket_IsIncompleteInSingleMode(t *testing.T) {
	mustBeIncomplete(t, "x = (1 +\n")
	mustBeIncomplete(t, "x = [1, 2,\n")
}

func Test_Compile_UnexpectedEOF_IsSyntaxErrorInExecMode(t *testing.T) {
	syn := mustBeSyntaxError(t, "if True:\n", rustpython.ModeExec)
	if syn.Msg != "unexpected EOF while parsing" {
		t.Fatalf("got %q", syn.Msg)
	}
}

func Test_Compile_GenuineSyntaxError_InBothModes(t *testing.T) {
	for _, mode := range []rustpython.CompileMode{rustpython.ModeSingle, rustpython.ModeExec} {
		syn := mustBeSyntaxError(t, "1 +\n", mode)
		if syn.Line != 1 {
			t.Fatalf("want line 1, got %d", syn.Line)
		}
	}
}

func Test_Compile_UnterminatedString_IsSyntaxErrorNotIncomplete(t *testing.T) {
	mustBeSyntaxError(t, "x = 'abc\n", rustpython.ModeSingle)
}

func Test_Compile_BadDedent_IsSyntaxError(t *testing.T) {
	syn := mustBeSyntaxError(t, "if True:\n        x = 1\n    y = 2\n\n", rustpython.ModeSingle)
	if syn.Msg != "unindent does not match any outer indentation level" {
		t.Fatalf("got %q", syn.Msg)
	}
}

func Test_Compile_SyntaxError_CarriesSourceLine(t *testing.T) {
	syn := mustBeSyntaxError(t, "x = 1\n1 ? 2\n", rustpython.ModeExec)
	if syn.Line != 2 || syn.Text != "1 ? 2" {
		t.Fatalf("got line %d text %q", syn.Line, syn.Text)
	}
}

func Test_Compile_CommentsAndBlankLines_Ignored(t *testing.T) {
	_, err := compileSingle(t, "# comment\n\nx = 1  # trailing\n")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
}
