// args.go: the CLI argument grammar, delegated to cobra.
//
// Python's launcher grammar has two quirks the flag layer must reproduce:
// the first positional argument ends flag parsing (so "script.py -c x"
// passes "-c x" to the script), and -O/-v are counted repetitions. Both
// map directly onto pflag: SetInterspersed(false) and CountVarP.
package rustpython

import (
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// Flags is the raw parse result handed to ResolveSettings and SelectMode.
// Positional arguments land in exactly one of Script, CommandArgs, or
// ModuleArgs depending on which execution source was given.
type Flags struct {
	Command     string
	CommandArgs []string
	Module      string
	ModuleArgs  []string
	Script      []string // script path first, then its arguments

	Optimize int
	Verbose  int

	Debug             bool
	Quiet             bool
	Inspect           bool
	NoUserSite        bool
	NoSite            bool
	DontWriteBytecode bool
	IgnoreEnvironment bool
}

// ParseArgs parses a raw argument vector. A nil *Flags with a nil error
// means the parser fully handled the invocation itself (--help or
// --version); the caller should exit 0 without dispatching.
func ParseArgs(argv []string, stdout, stderr io.Writer) (*Flags, error) {
	fl := &Flags{}
	ran := false
	var positional []string

	// Everything after "-c CMD" or "-m MODULE" belongs to the program, even
	// when it looks like a flag. pflag has no trailing-var-arg notion, so
	// split the vector before handing it over.
	head, tail := splitTrailing(argv)

	cmd := &cobra.Command{
		Use:     "rustpython [OPTIONS] [-c CMD | -m MODULE | FILE] [PYARGS]...",
		Short:   "Rust implementation of the Python language",
		Version: Version,
		Args:    cobra.ArbitraryArgs,
		RunE: func(_ *cobra.Command, args []string) error {
			ran = true
			positional = args
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(head)

	f := cmd.Flags()
	f.SetInterspersed(false)
	f.StringVarP(&fl.Command, "cmd", "c", "", "run the given string as a program")
	f.StringVarP(&fl.Module, "module", "m", "", "run library module as script")
	f.CountVarP(&fl.Optimize, "optimize", "O", "optimize; set __debug__ to false, remove debug statements")
	f.CountVarP(&fl.Verbose, "verbose", "v", "give the verbosity (can be applied multiple times)")
	f.BoolVarP(&fl.Debug, "debug", "d", false, "debug the parser")
	f.BoolVarP(&fl.Quiet, "quiet", "q", false, "be quiet at startup")
	f.BoolVarP(&fl.Inspect, "inspect", "i", false, "inspect interactively after running the script")
	f.BoolVarP(&fl.NoUserSite, "no-user-site", "s", false, "don't add user site directory to sys.path")
	f.BoolVarP(&fl.NoSite, "no-site", "S", false, "don't imply 'import site' on initialization")
	f.BoolVarP(&fl.DontWriteBytecode, "dont-write-bytecode", "B", false, "don't write .pyc files on import")
	f.BoolVarP(&fl.IgnoreEnvironment, "ignore-environment", "E", false, "ignore environment variables PYTHON* such as PYTHONPATH")

	if err := cmd.Execute(); err != nil {
		return nil, err
	}
	if !ran {
		// --help or --version short-circuited the run.
		return nil, nil
	}
	positional = append(positional, tail...)

	switch {
	case fl.Command != "":
		fl.CommandArgs = positional
	case fl.Module != "":
		fl.ModuleArgs = positional
	default:
		fl.Script = positional
	}
	return fl, nil
}

// splitTrailing cuts argv right after the value of the first -c/-m flag;
// the remainder bypasses flag parsing entirely. The scan stops at the
// first positional argument, where pflag's non-interspersed mode already
// does the right thing.
func splitTrailing(argv []string) (head, tail []string) {
	for i := 0; i < len(argv); i++ {
		a := argv[i]
		switch a {
		case "-c", "--cmd", "-m", "--module":
			if i+1 < len(argv) {
				return argv[:i+2], argv[i+2:]
			}
			return argv, nil
		case "--":
			return argv, nil
		}
		if !strings.HasPrefix(a, "-") {
			return argv, nil
		}
	}
	return argv, nil
}
