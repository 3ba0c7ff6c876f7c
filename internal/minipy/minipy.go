// Package minipy is the bundled reference runtime behind the launcher's
// VirtualMachine boundary: a small tree-walking evaluator for a Python
// subset (literals, arithmetic, comparisons, assignment, if/while blocks,
// attribute access, calls, lists, imports). It exists so the binary runs
// end to end and so integration tests can exercise real incomplete-input
// behavior; it makes no attempt at full language coverage.
package minipy

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	rustpython "github.com/ourobouros/RustPython"
)

// None is the runtime's "no value" sentinel.
var None rustpython.Object = &noneVal{}

type noneVal struct{}

// List is a mutable sequence value.
type List struct {
	Items []rustpython.Object
}

// Module is a named attribute namespace.
type Module struct {
	Name  string
	Attrs map[string]rustpython.Object
}

type builtin struct {
	name string
	fn   func(vm *VM, args []rustpython.Object) (rustpython.Object, error)
}

// Options configures a new VM.
type Options struct {
	Argv   []string
	Path   []string
	Stdout io.Writer
}

// VM implements rustpython.VirtualMachine.
type VM struct {
	stdout   io.Writer
	sys      *Module
	path     *List
	modules  map[string]*Module
	builtins map[string]rustpython.Object
}

// New builds a runtime with sys.argv and sys.path populated from the
// resolved launcher settings.
func New(opts Options) *VM {
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	path := &List{}
	for _, p := range opts.Path {
		path.Items = append(path.Items, p)
	}
	argv := &List{}
	for _, a := range opts.Argv {
		argv.Items = append(argv.Items, a)
	}

	vm := &VM{
		stdout:  stdout,
		path:    path,
		modules: map[string]*Module{},
	}
	vm.sys = &Module{Name: "sys", Attrs: map[string]rustpython.Object{
		"argv":    argv,
		"path":    path,
		"version": rustpython.Version,
	}}
	vm.modules["sys"] = vm.sys
	vm.builtins = map[string]rustpython.Object{
		"print": &builtin{name: "print", fn: builtinPrint},
		"len":   &builtin{name: "len", fn: builtinLen},
		"repr":  &builtin{name: "repr", fn: builtinRepr},
		"abs":   &builtin{name: "abs", fn: builtinAbs},
		"str":   &builtin{name: "str", fn: builtinStr},
		"int":   &builtin{name: "int", fn: builtinInt},
	}
	return vm
}

type scope struct {
	vars map[string]rustpython.Object
}

func (s *scope) Define(name string, value rustpython.Object) { s.vars[name] = value }

func (s *scope) Lookup(name string) (rustpython.Object, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// NewScope returns a fresh, empty binding environment.
func (vm *VM) NewScope() rustpython.Scope {
	return &scope{vars: map[string]rustpython.Object{}}
}

// PrependPath puts dir at the front of the module search path. The sys
// module exposes the same list, so the mutation is visible to user code.
func (vm *VM) PrependPath(dir string) {
	vm.path.Items = append([]rustpython.Object{dir}, vm.path.Items...)
}

// SysAttr reads a sys attribute as text, for the REPL prompt lookup.
func (vm *VM) SysAttr(name string) (string, bool) {
	v, ok := vm.sys.Attrs[name]
	if !ok {
		return "", false
	}
	return Str(v), true
}

// IsNone reports whether obj is the None sentinel.
func (vm *VM) IsNone(obj rustpython.Object) bool {
	return obj == nil || obj == None
}

// ImportModule imports a module for its side effects.
func (vm *VM) ImportModule(name string) error {
	_, err := vm.importModule(name)
	return err
}

func (vm *VM) importModule(name string) (*Module, error) {
	if m, ok := vm.modules[name]; ok {
		return m, nil
	}
	switch name {
	case "site":
		// Interactive prompt defaults live here; -S leaves them unset.
		if _, ok := vm.sys.Attrs["ps1"]; !ok {
			vm.sys.Attrs["ps1"] = ">>> "
			vm.sys.Attrs["ps2"] = "... "
		}
		m := &Module{Name: "site", Attrs: map[string]rustpython.Object{}}
		vm.modules[name] = m
		return m, nil
	case "math":
		m := &Module{Name: "math", Attrs: map[string]rustpython.Object{
			"pi": 3.141592653589793,
			"e":  2.718281828459045,
		}}
		vm.modules[name] = m
		return m, nil
	}
	return vm.importFile(name)
}

// importFile searches the module path for name.py and executes it in a
// fresh namespace that becomes the module's attributes.
func (vm *VM) importFile(name string) (*Module, error) {
	resolved, ok := vm.findModule(name)
	if !ok {
		return nil, newExc("ModuleNotFoundError", fmt.Sprintf("No module named '%s'", name))
	}
	src, err := os.ReadFile(resolved)
	if err != nil {
		return nil, newExc("ImportError", err.Error())
	}
	code, err := vm.Compile(string(src), resolved, rustpython.ModeExec)
	if err != nil {
		return nil, err
	}
	sc := &scope{vars: map[string]rustpython.Object{}}
	sc.Define("__file__", resolved)
	if _, err := vm.Run(code, sc); err != nil {
		return nil, err
	}
	m := &Module{Name: name, Attrs: sc.vars}
	vm.modules[name] = m
	return m, nil
}

// RunModule resolves name against the search path and executes it as a
// main program, fixing up the argv placeholder with the resolved path.
func (vm *VM) RunModule(name string) error {
	resolved, ok := vm.findModule(name)
	if !ok {
		return newExc("ModuleNotFoundError", fmt.Sprintf("No module named %s", name))
	}
	src, err := os.ReadFile(resolved)
	if err != nil {
		return newExc("ImportError", err.Error())
	}
	if items := vm.argvItems(); len(items) > 0 {
		if s, ok := items[0].(string); ok && s == rustpython.Placeholder {
			items[0] = resolved
		}
	}
	code, err := vm.Compile(string(src), resolved, rustpython.ModeExec)
	if err != nil {
		return err
	}
	sc := vm.NewScope()
	sc.Define("__file__", resolved)
	_, err = vm.Run(code, sc)
	return err
}

func (vm *VM) argvItems() []rustpython.Object {
	if l, ok := vm.sys.Attrs["argv"].(*List); ok {
		return l.Items
	}
	return nil
}

func (vm *VM) findModule(name string) (string, bool) {
	rel := filepath.FromSlash(strings.ReplaceAll(name, ".", "/"))
	for _, entry := range vm.path.Items {
		dir, ok := entry.(string)
		if !ok {
			continue
		}
		if dir == "" {
			dir = "."
		}
		for _, cand := range []string{
			filepath.Join(dir, rel+".py"),
			filepath.Join(dir, rel, "__main__.py"),
		} {
			if st, err := os.Stat(cand); err == nil && st.Mode().IsRegular() {
				return cand, true
			}
		}
	}
	return "", false
}

func newExc(typeName, msg string) *rustpython.Exception {
	return &rustpython.Exception{TypeName: typeName, Message: msg}
}

// Repr renders a value the way the interactive interpreter displays it.
func Repr(v rustpython.Object) string {
	switch x := v.(type) {
	case nil, *noneVal:
		return "None"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		s := strconv.FormatFloat(x, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	case string:
		return "'" + strings.NewReplacer(`\`, `\\`, "'", `\'`, "\n", `\n`).Replace(x) + "'"
	case *List:
		parts := make([]string, 0, len(x.Items))
		for _, it := range x.Items {
			parts = append(parts, Repr(it))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Module:
		return fmt.Sprintf("<module '%s'>", x.Name)
	case *builtin:
		return fmt.Sprintf("<built-in function %s>", x.name)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Str renders a value for print: strings bare, everything else as Repr.
func Str(v rustpython.Object) string {
	if s, ok := v.(string); ok {
		return s
	}
	return Repr(v)
}

func builtinPrint(vm *VM, args []rustpython.Object) (rustpython.Object, error) {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		parts = append(parts, Str(a))
	}
	fmt.Fprintln(vm.stdout, strings.Join(parts, " "))
	return None, nil
}

func builtinLen(_ *VM, args []rustpython.Object) (rustpython.Object, error) {
	if len(args) != 1 {
		return nil, newExc("TypeError", fmt.Sprintf("len() takes exactly one argument (%d given)", len(args)))
	}
	switch x := args[0].(type) {
	case string:
		return int64(len([]rune(x))), nil
	case *List:
		return int64(len(x.Items)), nil
	}
	return nil, newExc("TypeError", fmt.Sprintf("object of type '%s' has no len()", typeName(args[0])))
}

func builtinRepr(_ *VM, args []rustpython.Object) (rustpython.Object, error) {
	if len(args) != 1 {
		return nil, newExc("TypeError", "repr() takes exactly one argument")
	}
	return Repr(args[0]), nil
}

func builtinAbs(_ *VM, args []rustpython.Object) (rustpython.Object, error) {
	if len(args) != 1 {
		return nil, newExc("TypeError", "abs() takes exactly one argument")
	}
	switch x := args[0].(type) {
	case int64:
		if x < 0 {
			return -x, nil
		}
		return x, nil
	case float64:
		if x < 0 {
			return -x, nil
		}
		return x, nil
	}
	return nil, newExc("TypeError", fmt.Sprintf("bad operand type for abs(): '%s'", typeName(args[0])))
}

func builtinStr(_ *VM, args []rustpython.Object) (rustpython.Object, error) {
	if len(args) != 1 {
		return nil, newExc("TypeError", "str() takes exactly one argument")
	}
	return Str(args[0]), nil
}

func builtinInt(_ *VM, args []rustpython.Object) (rustpython.Object, error) {
	if len(args) != 1 {
		return nil, newExc("TypeError", "int() takes exactly one argument")
	}
	switch x := args[0].(type) {
	case int64:
		return x, nil
	case bool:
		if x {
			return int64(1), nil
		}
		return int64(0), nil
	case float64:
		return int64(x), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return nil, newExc("ValueError", fmt.Sprintf("invalid literal for int() with base 10: %s", Repr(x)))
		}
		return n, nil
	}
	return nil, newExc("TypeError", fmt.Sprintf("int() argument must be a string or a number, not '%s'", typeName(args[0])))
}

func typeName(v rustpython.Object) string {
	switch v.(type) {
	case nil, *noneVal:
		return "NoneType"
	case bool:
		return "bool"
	case int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "str"
	case *List:
		return "list"
	case *Module:
		return "module"
	case *builtin:
		return "builtin_function_or_method"
	default:
		return fmt.Sprintf("%T", v)
	}
}
