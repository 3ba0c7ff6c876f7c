// report.go: the single rendering path for unrecovered failures.
//
// Exactly one call site at the top of the process consumes the
// dispatcher's result and decides the exit status; the interactive loop
// calls Report per iteration with the same rendering but without exiting.
package rustpython

import (
	"errors"
	"fmt"
	"io"
)

// Report renders an unrecovered failure to w in traceback form. Syntax
// errors are converted into the exception shape first so that every
// failure prints the same way. A nil error renders nothing.
func Report(w io.Writer, err error) {
	if err == nil {
		return
	}
	var syn *SyntaxError
	if errors.As(err, &syn) {
		fmt.Fprintln(w, syn.AsException().Traceback())
		return
	}
	var exc *Exception
	if errors.As(err, &exc) {
		fmt.Fprintln(w, exc.Traceback())
		return
	}
	fmt.Fprintln(w, err.Error())
}

// ExitCode maps a dispatch result to the process exit status: 0 on
// success, 1 on any fatal condition.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
