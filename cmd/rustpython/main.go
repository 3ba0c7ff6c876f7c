package main

import (
	"log/slog"
	"os"

	"github.com/davecgh/go-spew/spew"

	rustpython "github.com/ourobouros/RustPython"
	"github.com/ourobouros/RustPython/internal/minipy"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run computes the process exit code; main applies it. Keeping os.Exit out
// of everything below this point means the whole launch path stays
// testable.
func run(argv []string) int {
	fl, err := rustpython.ParseArgs(argv, os.Stdout, os.Stderr)
	if err != nil {
		rustpython.Report(os.Stderr, err)
		return 2
	}
	if fl == nil {
		// --help or --version already printed.
		return 0
	}

	settings, err := rustpython.ResolveSettings(fl, os.LookupEnv)
	if err != nil {
		rustpython.Report(os.Stderr, err)
		return 1
	}

	setupLogging(settings)
	if settings.Debug {
		slog.Debug("resolved settings", "settings", spew.Sdump(settings))
	}

	vm := minipy.New(minipy.Options{
		Argv:   settings.Argv,
		Path:   settings.PathList,
		Stdout: os.Stdout,
	})

	mode := rustpython.SelectMode(fl)
	launcher := &rustpython.Launcher{
		VM:       vm,
		Settings: settings,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	}
	if mode.Kind == rustpython.KindInteractive {
		reader := rustpython.NewLinerReader()
		defer reader.Close()
		launcher.Reader = reader
	}

	err = launcher.Execute(mode)
	rustpython.Report(os.Stderr, err)
	return rustpython.ExitCode(err)
}

func setupLogging(settings *rustpython.Settings) {
	level := slog.LevelWarn
	if settings.Debug || settings.VerboseLevel > 0 {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
