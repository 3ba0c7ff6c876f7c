// reader.go: the line-editing collaborator boundary and its liner-backed
// implementation.
//
// The session core only sees LineReader, so tests drive it with a scripted
// reader and an in-memory history sink. The production reader wraps
// github.com/peterh/liner and translates its error values into the tagged
// read outcome the state machine matches on.
package rustpython

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/peterh/liner"
)

// ReadKind tags the outcome of one blocking read.
type ReadKind int

const (
	ReadOK ReadKind = iota
	ReadInterrupted
	ReadEOF
	ReadFailed
)

// ReadResult is one read outcome. Line is set for ReadOK, Err for
// ReadFailed.
type ReadResult struct {
	Kind ReadKind
	Line string
	Err  error
}

// LineReader is the launcher's view of the line-editing/history library.
type LineReader interface {
	ReadLine(prompt string) ReadResult
	AppendHistory(line string)
	LoadHistory(path string) error
	SaveHistory(path string) error
	Close() error
}

// DefaultHistoryPath is the per-user REPL history location, with a
// cwd-relative fallback when no config directory can be determined.
func DefaultHistoryPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".repl_history.txt"
	}
	return filepath.Join(dir, "rustpython", "repl_history.txt")
}

type linerReader struct {
	state *liner.State
}

// NewLinerReader opens the terminal line editor. Ctrl-C aborts the pending
// prompt instead of killing the process, surfacing as ReadInterrupted.
func NewLinerReader() LineReader {
	st := liner.NewLiner()
	st.SetCtrlCAborts(true)
	return &linerReader{state: st}
}

func (r *linerReader) ReadLine(prompt string) ReadResult {
	line, err := r.state.Prompt(prompt)
	switch {
	case err == nil:
		return ReadResult{Kind: ReadOK, Line: line}
	case errors.Is(err, liner.ErrPromptAborted):
		return ReadResult{Kind: ReadInterrupted}
	case errors.Is(err, io.EOF):
		return ReadResult{Kind: ReadEOF}
	default:
		return ReadResult{Kind: ReadFailed, Err: err}
	}
}

func (r *linerReader) AppendHistory(line string) {
	r.state.AppendHistory(line)
}

func (r *linerReader) LoadHistory(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = r.state.ReadHistory(f)
	return err
}

func (r *linerReader) SaveHistory(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := r.state.WriteHistory(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (r *linerReader) Close() error {
	return r.state.Close()
}
