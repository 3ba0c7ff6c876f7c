// settings.go: resolution of launcher settings from CLI flags and the
// environment.
//
// Resolution order for every knob: explicit CLI flag wins; otherwise, when
// the environment is not ignored (-E), the corresponding PYTHON* variable;
// otherwise the default. Two policies here are contracts, not accidents:
// boolean variables count as set when merely *present*, even with an empty
// value, and a malformed integer variable resolves to 1 rather than
// failing. Both are covered by tests.
package rustpython

import (
	"fmt"
	"path/filepath"
	"strconv"
	"unicode/utf8"
)

// Placeholder is argv[0] for -m invocations. The runtime replaces it with
// the resolved module path when it sets up the main module.
const Placeholder = "PLACEHOLDER"

// Environ looks up one environment variable, reporting presence separately
// from the value so that empty-but-set variables are distinguishable.
// Production code passes os.LookupEnv; tests pass a snapshot map.
type Environ func(name string) (string, bool)

// EnvironFromMap adapts a fixed snapshot, for tests.
func EnvironFromMap(m map[string]string) Environ {
	return func(name string) (string, bool) {
		v, ok := m[name]
		return v, ok
	}
}

// Settings is the resolved launcher configuration. Constructed once by
// ResolveSettings and never mutated afterwards.
type Settings struct {
	IgnoreEnvironment bool

	// PathList is the initial module search path, highest priority first.
	// The first entry is always "" (the current directory).
	PathList []string

	Debug             bool
	Inspect           bool
	NoSite            bool
	NoUserSite        bool
	Quiet             bool
	DontWriteBytecode bool

	OptimizeLevel int
	VerboseLevel  int

	// Argv is what the runtime exposes as sys.argv: the script path and
	// its arguments, "-c" plus trailing arguments, the module placeholder
	// plus trailing arguments, or empty for an interactive session.
	Argv []string
}

// ConfigError is a fatal configuration failure detected before any
// execution, such as a non-UTF-8 path-list segment.
type ConfigError struct {
	Var string
	Msg string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s %s", e.Var, e.Msg)
}

// ResolveSettings turns parsed flags and an environment snapshot into a
// Settings value. It reads the environment and nothing else; every fatal
// path is returned as a *ConfigError rather than exiting.
func ResolveSettings(fl *Flags, env Environ) (*Settings, error) {
	s := &Settings{IgnoreEnvironment: fl.IgnoreEnvironment}

	// Current directory first, then env-derived entries in fixed order.
	s.PathList = append(s.PathList, "")
	if !s.IgnoreEnvironment {
		for _, name := range []string{"RUSTPYTHONPATH", "PYTHONPATH"} {
			entries, err := envPaths(env, name)
			if err != nil {
				return nil, err
			}
			s.PathList = append(s.PathList, entries...)
		}
	}

	s.Debug = fl.Debug || s.envPresent(env, "PYTHONDEBUG")
	s.Inspect = fl.Inspect || s.envPresent(env, "PYTHONINSPECT")
	s.NoUserSite = fl.NoUserSite || s.envPresent(env, "PYTHONNOUSERSITE")
	s.DontWriteBytecode = fl.DontWriteBytecode || s.envPresent(env, "PYTHONDONTWRITEBYTECODE")

	// CLI-only flags, no environment fallback.
	s.NoSite = fl.NoSite
	s.Quiet = fl.Quiet

	s.OptimizeLevel = s.envCountOverride(env, fl.Optimize, "PYTHONOPTIMIZE")
	s.VerboseLevel = s.envCountOverride(env, fl.Verbose, "PYTHONVERBOSE")

	switch {
	case len(fl.Script) > 0:
		s.Argv = append(s.Argv, fl.Script...)
	case fl.Module != "":
		s.Argv = append(s.Argv, Placeholder)
		s.Argv = append(s.Argv, fl.ModuleArgs...)
	case fl.Command != "":
		s.Argv = append(s.Argv, "-c")
		s.Argv = append(s.Argv, fl.CommandArgs...)
	}

	return s, nil
}

func (s *Settings) envPresent(env Environ, name string) bool {
	if s.IgnoreEnvironment {
		return false
	}
	_, ok := env(name)
	return ok
}

// envCountOverride resolves a repeatable counting flag: the CLI count wins
// when the flag was given at all; otherwise the variable's value parsed as
// an unsigned integer, with malformed values tolerated as 1.
func (s *Settings) envCountOverride(env Environ, cliCount int, name string) int {
	if cliCount > 0 {
		return cliCount
	}
	if s.IgnoreEnvironment {
		return 0
	}
	raw, ok := env(name)
	if !ok {
		return 0
	}
	n, err := strconv.ParseUint(raw, 10, 8)
	if err != nil {
		return 1
	}
	return int(n)
}

// envPaths splits a path-list variable on the platform separator. Every
// segment must be valid text; an undecodable one aborts configuration.
func envPaths(env Environ, name string) ([]string, error) {
	raw, ok := env(name)
	if !ok {
		return nil, nil
	}
	entries := filepath.SplitList(raw)
	for _, e := range entries {
		if !utf8.ValidString(e) {
			return nil, &ConfigError{Var: name, Msg: "isn't valid unicode"}
		}
	}
	return entries, nil
}
