package rustpython

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// --- fakes ------------------------------------------------------------------

type fakeScope struct {
	vars map[string]Object
}

func newFakeScope() *fakeScope { return &fakeScope{vars: map[string]Object{}} }

func (s *fakeScope) Define(name string, value Object) { s.vars[name] = value }

func (s *fakeScope) Lookup(name string) (Object, bool) {
	v, ok := s.vars[name]
	return v, ok
}

type fakeCode struct {
	src  string
	name string
	mode CompileMode
}

func (c *fakeCode) SourceName() string { return c.name }

// fakeVM records every interaction; compile and run behavior is overridden
// per test through the function fields.
type fakeVM struct {
	compile func(source, name string, mode CompileMode) (CompiledCode, error)
	run     func(code CompiledCode, sc Scope) (Object, error)

	compiled  []*fakeCode
	prepended []string
	modules   []string
	imported  []string
	sysAttrs  map[string]string
	lastScope *fakeScope
}

func (v *fakeVM) Compile(source, name string, mode CompileMode) (CompiledCode, error) {
	if v.compile != nil {
		code, err := v.compile(source, name, mode)
		if fc, ok := code.(*fakeCode); ok && err == nil {
			v.compiled = append(v.compiled, fc)
		}
		return code, err
	}
	fc := &fakeCode{src: source, name: name, mode: mode}
	v.compiled = append(v.compiled, fc)
	return fc, nil
}

func (v *fakeVM) Run(code CompiledCode, sc Scope) (Object, error) {
	if v.run != nil {
		return v.run(code, sc)
	}
	return nil, nil
}

func (v *fakeVM) RunModule(name string) error {
	v.modules = append(v.modules, name)
	return nil
}

func (v *fakeVM) ImportModule(name string) error {
	v.imported = append(v.imported, name)
	return nil
}

func (v *fakeVM) NewScope() Scope {
	v.lastScope = newFakeScope()
	return v.lastScope
}

func (v *fakeVM) PrependPath(dir string) { v.prepended = append(v.prepended, dir) }

func (v *fakeVM) SysAttr(name string) (string, bool) {
	s, ok := v.sysAttrs[name]
	return s, ok
}

func (v *fakeVM) IsNone(obj Object) bool { return obj == nil }

func newLauncher(vm *fakeVM) *Launcher {
	return &Launcher{
		VM:       vm,
		Settings: &Settings{NoSite: true},
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}
}

// --- mode selection ---------------------------------------------------------

func Test_SelectMode_Precedence_CommandBeatsModuleBeatsScript(t *testing.T) {
	fl := &Flags{Command: "c", Module: "m", Script: []string{"s.py"}}
	if m := SelectMode(fl); m.Kind != KindCommand || m.Payload != "c" {
		t.Fatalf("got %+v", m)
	}
	fl.Command = ""
	if m := SelectMode(fl); m.Kind != KindModule || m.Payload != "m" {
		t.Fatalf("got %+v", m)
	}
	fl.Module = ""
	if m := SelectMode(fl); m.Kind != KindScript || m.Payload != "s.py" {
		t.Fatalf("got %+v", m)
	}
	fl.Script = nil
	if m := SelectMode(fl); m.Kind != KindInteractive {
		t.Fatalf("got %+v", m)
	}
}

// --- strategies -------------------------------------------------------------

func Test_Dispatch_Command_CompilesUnderStdinName(t *testing.T) {
	vm := &fakeVM{}
	l := newLauncher(vm)
	if err := l.Execute(ExecutionMode{Kind: KindCommand, Payload: "x = 1"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(vm.compiled) != 1 {
		t.Fatalf("want one compile, got %d", len(vm.compiled))
	}
	c := vm.compiled[0]
	if c.src != "x = 1" || c.name != "<stdin>" || c.mode != ModeExec {
		t.Fatalf("got compile %+v", c)
	}
	if v, ok := vm.lastScope.Lookup("__file__"); !ok || v != "<stdin>" {
		t.Fatalf("__file__ not bound, got %v", v)
	}
}

func Test_Dispatch_Module_DelegatesToRuntime(t *testing.T) {
	vm := &fakeVM{}
	if err := newLauncher(vm).Execute(ExecutionMode{Kind: KindModule, Payload: "json.tool"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(vm.modules) != 1 || vm.modules[0] != "json.tool" {
		t.Fatalf("got modules %q", vm.modules)
	}
	if len(vm.compiled) != 0 {
		t.Fatalf("module mode must not compile locally")
	}
}

func Test_Dispatch_Script_File_PrependsDirAndBindsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.py")
	if err := os.WriteFile(path, []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	vm := &fakeVM{}
	if err := newLauncher(vm).Execute(ExecutionMode{Kind: KindScript, Payload: path}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(vm.prepended) != 1 || vm.prepended[0] != dir {
		t.Fatalf("want %q prepended once, got %q", dir, vm.prepended)
	}
	c := vm.compiled[0]
	if c.src != "x = 1\n" || c.name != path {
		t.Fatalf("got compile %+v", c)
	}
	if v, _ := vm.lastScope.Lookup("__file__"); v != path {
		t.Fatalf("__file__ = %v", v)
	}
}

func Test_Dispatch_Script_Directory_UsesEntryPointFile(t *testing.T) {
	dir := t.TempDir()
	main := filepath.Join(dir, MainFileName)
	if err := os.WriteFile(main, []byte("y = 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	vm := &fakeVM{}
	if err := newLauncher(vm).Execute(ExecutionMode{Kind: KindScript, Payload: dir}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if vm.compiled[0].name != main {
		t.Fatalf("want entry point %q, got %q", main, vm.compiled[0].name)
	}
	if vm.prepended[0] != dir {
		t.Fatalf("want %q prepended, got %q", dir, vm.prepended)
	}
}

func Test_Dispatch_Script_DirectoryWithoutEntryPoint_DistinctError(t *testing.T) {
	dir := t.TempDir()
	err := newLauncher(&fakeVM{}).Execute(ExecutionMode{Kind: KindScript, Payload: dir})
	var le *LaunchError
	if !errors.As(err, &le) || le.Kind != LaunchNoEntryPoint {
		t.Fatalf("want no-entry-point launch error, got %v", err)
	}
	if !strings.Contains(le.Msg, "__main__") {
		t.Fatalf("message should name the entry point: %q", le.Msg)
	}
}

func Test_Dispatch_Script_MissingPath_DistinctError(t *testing.T) {
	err := newLauncher(&fakeVM{}).Execute(ExecutionMode{Kind: KindScript, Payload: "/no/such/file.py"})
	var le *LaunchError
	if !errors.As(err, &le) || le.Kind != LaunchNoSuchFile {
		t.Fatalf("want no-such-file launch error, got %v", err)
	}
	if !strings.Contains(le.Msg, "No such file or directory") {
		t.Fatalf("got message %q", le.Msg)
	}
}

func Test_Dispatch_ErrorMessages_AreDistinguishable(t *testing.T) {
	dir := t.TempDir()
	l := newLauncher(&fakeVM{})
	errDir := l.Execute(ExecutionMode{Kind: KindScript, Payload: dir})
	errMissing := l.Execute(ExecutionMode{Kind: KindScript, Payload: filepath.Join(dir, "gone.py")})
	if errDir.Error() == errMissing.Error() {
		t.Fatalf("errors must be distinguishable, both %q", errDir)
	}
	if ExitCode(errDir) != 1 || ExitCode(errMissing) != 1 {
		t.Fatalf("both must exit 1")
	}
}

func Test_Dispatch_SiteImport_HonorsNoSite(t *testing.T) {
	vm := &fakeVM{}
	l := newLauncher(vm)
	l.Settings = &Settings{}
	if err := l.Execute(ExecutionMode{Kind: KindCommand, Payload: "1"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(vm.imported) != 1 || vm.imported[0] != "site" {
		t.Fatalf("want site imported, got %q", vm.imported)
	}

	vm = &fakeVM{}
	l = newLauncher(vm) // NoSite: true
	if err := l.Execute(ExecutionMode{Kind: KindCommand, Payload: "1"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(vm.imported) != 0 {
		t.Fatalf("-S must suppress the site import, got %q", vm.imported)
	}
}

func Test_Dispatch_RuntimeException_PropagatesUnmodified(t *testing.T) {
	exc := &Exception{TypeName: "ValueError", Message: "boom"}
	vm := &fakeVM{
		run: func(CompiledCode, Scope) (Object, error) { return nil, exc },
	}
	err := newLauncher(vm).Execute(ExecutionMode{Kind: KindCommand, Payload: "boom()"})
	if err != exc {
		t.Fatalf("want the exception passed through, got %v", err)
	}
}
