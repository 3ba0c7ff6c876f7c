// eval.go: tree-walking execution of compiled units. All failures surface
// as *rustpython.Exception values carrying the source name and line, so
// the launcher's reporter renders them without special cases.
package minipy

import (
	"fmt"
	"math"

	rustpython "github.com/ourobouros/RustPython"
)

// Run executes a compiled unit against sc. In single (REPL) mode the value
// of each expression statement is displayed and the last one is returned
// for the "_" convention; in exec mode the result is always None.
func (vm *VM) Run(code rustpython.CompiledCode, sc rustpython.Scope) (rustpython.Object, error) {
	c, ok := code.(*Code)
	if !ok {
		return nil, newExc("TypeError", "code object is not from this runtime")
	}
	last := None
	for _, st := range c.body {
		v, err := vm.execStmt(c, st, sc)
		if err != nil {
			return nil, err
		}
		if v != nil {
			if c.mode == rustpython.ModeSingle && !vm.IsNone(v) {
				fmt.Fprintln(vm.stdout, Repr(v))
			}
			last = v
		}
	}
	if c.mode == rustpython.ModeSingle {
		return last, nil
	}
	return None, nil
}

// execStmt returns a non-nil value only for expression statements.
func (vm *VM) execStmt(c *Code, st stmt, sc rustpython.Scope) (rustpython.Object, error) {
	switch s := st.(type) {
	case *passStmt:
		return nil, nil
	case *exprStmt:
		v, err := vm.evalExpr(c, s.e, sc)
		if err != nil {
			return nil, err
		}
		return v, nil
	case *assignStmt:
		v, err := vm.evalExpr(c, s.value, sc)
		if err != nil {
			return nil, err
		}
		return nil, vm.assign(c, s.target, v, sc)
	case *importStmt:
		mod, err := vm.importModule(s.name)
		if err != nil {
			return nil, vm.withFrame(err, c, s.line)
		}
		sc.Define(s.name, mod)
		return nil, nil
	case *ifStmt:
		for _, cb := range s.conds {
			cond, err := vm.evalExpr(c, cb.cond, sc)
			if err != nil {
				return nil, err
			}
			if truthy(cond) {
				return nil, vm.execBody(c, cb.body, sc)
			}
		}
		return nil, vm.execBody(c, s.elseBody, sc)
	case *whileStmt:
		for {
			cond, err := vm.evalExpr(c, s.cond, sc)
			if err != nil {
				return nil, err
			}
			if !truthy(cond) {
				return nil, nil
			}
			if err := vm.execBody(c, s.body, sc); err != nil {
				return nil, err
			}
		}
	}
	return nil, newExc("SystemError", "unknown statement node")
}

func (vm *VM) execBody(c *Code, body []stmt, sc rustpython.Scope) error {
	for _, st := range body {
		if _, err := vm.execStmt(c, st, sc); err != nil {
			return err
		}
	}
	return nil
}

func (vm *VM) assign(c *Code, target expr, v rustpython.Object, sc rustpython.Scope) error {
	switch t := target.(type) {
	case *nameExpr:
		sc.Define(t.name, v)
		return nil
	case *attrExpr:
		x, err := vm.evalExpr(c, t.x, sc)
		if err != nil {
			return err
		}
		mod, ok := x.(*Module)
		if !ok {
			return vm.raise(c, t.line, "AttributeError", fmt.Sprintf("'%s' object has no settable attributes", typeName(x)))
		}
		mod.Attrs[t.name] = v
		return nil
	case *indexExpr:
		x, err := vm.evalExpr(c, t.x, sc)
		if err != nil {
			return err
		}
		idx, err := vm.evalExpr(c, t.idx, sc)
		if err != nil {
			return err
		}
		l, ok := x.(*List)
		if !ok {
			return vm.raise(c, t.line, "TypeError", fmt.Sprintf("'%s' object does not support item assignment", typeName(x)))
		}
		i, ok := normalizeIndex(idx, len(l.Items))
		if !ok {
			return vm.raise(c, t.line, "IndexError", "list assignment index out of range")
		}
		l.Items[i] = v
		return nil
	}
	return newExc("SystemError", "bad assignment target")
}

func (vm *VM) evalExpr(c *Code, e expr, sc rustpython.Scope) (rustpython.Object, error) {
	switch x := e.(type) {
	case *lit:
		return x.v, nil
	case *nameExpr:
		if v, ok := sc.Lookup(x.name); ok {
			return v, nil
		}
		if v, ok := vm.builtins[x.name]; ok {
			return v, nil
		}
		return nil, vm.raise(c, x.line, "NameError", fmt.Sprintf("name '%s' is not defined", x.name))
	case *listExpr:
		l := &List{}
		for _, item := range x.items {
			v, err := vm.evalExpr(c, item, sc)
			if err != nil {
				return nil, err
			}
			l.Items = append(l.Items, v)
		}
		return l, nil
	case *unop:
		v, err := vm.evalExpr(c, x.x, sc)
		if err != nil {
			return nil, err
		}
		return vm.applyUnary(c, x, v)
	case *boolop:
		l, err := vm.evalExpr(c, x.l, sc)
		if err != nil {
			return nil, err
		}
		if x.op == "and" {
			if !truthy(l) {
				return l, nil
			}
		} else if truthy(l) {
			return l, nil
		}
		return vm.evalExpr(c, x.r, sc)
	case *binop:
		l, err := vm.evalExpr(c, x.l, sc)
		if err != nil {
			return nil, err
		}
		r, err := vm.evalExpr(c, x.r, sc)
		if err != nil {
			return nil, err
		}
		return vm.applyBinary(c, x, l, r)
	case *attrExpr:
		v, err := vm.evalExpr(c, x.x, sc)
		if err != nil {
			return nil, err
		}
		mod, ok := v.(*Module)
		if !ok {
			return nil, vm.raise(c, x.line, "AttributeError", fmt.Sprintf("'%s' object has no attribute '%s'", typeName(v), x.name))
		}
		attr, ok := mod.Attrs[x.name]
		if !ok {
			return nil, vm.raise(c, x.line, "AttributeError", fmt.Sprintf("module '%s' has no attribute '%s'", mod.Name, x.name))
		}
		return attr, nil
	case *indexExpr:
		v, err := vm.evalExpr(c, x.x, sc)
		if err != nil {
			return nil, err
		}
		idx, err := vm.evalExpr(c, x.idx, sc)
		if err != nil {
			return nil, err
		}
		return vm.applyIndex(c, x, v, idx)
	case *callExpr:
		fn, err := vm.evalExpr(c, x.fn, sc)
		if err != nil {
			return nil, err
		}
		args := make([]rustpython.Object, 0, len(x.args))
		for _, a := range x.args {
			v, err := vm.evalExpr(c, a, sc)
			if err != nil {
				return nil, err
			}
			args = append(args, v)
		}
		b, ok := fn.(*builtin)
		if !ok {
			return nil, vm.raise(c, x.line, "TypeError", fmt.Sprintf("'%s' object is not callable", typeName(fn)))
		}
		v, err := b.fn(vm, args)
		if err != nil {
			return nil, vm.withFrame(err, c, x.line)
		}
		return v, nil
	}
	return nil, newExc("SystemError", "unknown expression node")
}

func (vm *VM) applyUnary(c *Code, x *unop, v rustpython.Object) (rustpython.Object, error) {
	switch x.op {
	case "not":
		return !truthy(v), nil
	case "-":
		switch n := v.(type) {
		case int64:
			return -n, nil
		case float64:
			return -n, nil
		}
	case "+":
		switch v.(type) {
		case int64, float64:
			return v, nil
		}
	}
	return nil, vm.raise(c, x.line, "TypeError", fmt.Sprintf("bad operand type for unary %s: '%s'", x.op, typeName(v)))
}

func (vm *VM) applyBinary(c *Code, x *binop, l, r rustpython.Object) (rustpython.Object, error) {
	if compareOps[x.op] {
		return vm.compare(c, x, l, r)
	}

	if ls, ok := l.(string); ok {
		if rs, ok := r.(string); ok && x.op == "+" {
			return ls + rs, nil
		}
	}
	if ll, ok := l.(*List); ok {
		if rl, ok := r.(*List); ok && x.op == "+" {
			out := &List{Items: append(append([]rustpython.Object{}, ll.Items...), rl.Items...)}
			return out, nil
		}
	}

	lf, lIsFloat, lNum := asNumber(l)
	rf, rIsFloat, rNum := asNumber(r)
	if !lNum || !rNum {
		return nil, vm.raise(c, x.line, "TypeError",
			fmt.Sprintf("unsupported operand type(s) for %s: '%s' and '%s'", x.op, typeName(l), typeName(r)))
	}

	if lIsFloat || rIsFloat || x.op == "/" || x.op == "**" {
		if (x.op == "/" || x.op == "//" || x.op == "%") && rf == 0 {
			return nil, vm.raise(c, x.line, "ZeroDivisionError", "division by zero")
		}
		switch x.op {
		case "+":
			return lf + rf, nil
		case "-":
			return lf - rf, nil
		case "*":
			return lf * rf, nil
		case "/":
			return lf / rf, nil
		case "//":
			return math.Floor(lf / rf), nil
		case "%":
			return math.Mod(math.Mod(lf, rf)+rf, rf), nil
		case "**":
			res := math.Pow(lf, rf)
			if !lIsFloat && !rIsFloat && rf >= 0 {
				return int64(res), nil
			}
			return res, nil
		}
	}

	li := int64(lf)
	ri := int64(rf)
	switch x.op {
	case "+":
		return li + ri, nil
	case "-":
		return li - ri, nil
	case "*":
		return li * ri, nil
	case "//":
		if ri == 0 {
			return nil, vm.raise(c, x.line, "ZeroDivisionError", "integer division or modulo by zero")
		}
		q := li / ri
		if (li%ri != 0) && ((li < 0) != (ri < 0)) {
			q--
		}
		return q, nil
	case "%":
		if ri == 0 {
			return nil, vm.raise(c, x.line, "ZeroDivisionError", "integer division or modulo by zero")
		}
		return ((li % ri) + ri) % ri, nil
	}
	return nil, vm.raise(c, x.line, "SystemError", "unknown operator "+x.op)
}

func (vm *VM) compare(c *Code, x *binop, l, r rustpython.Object) (rustpython.Object, error) {
	if x.op == "==" || x.op == "!=" {
		eq := valueEqual(l, r)
		if x.op == "!=" {
			eq = !eq
		}
		return eq, nil
	}

	if ls, ok := l.(string); ok {
		if rs, ok := r.(string); ok {
			return orderResult(x.op, ls < rs, ls == rs), nil
		}
	}
	lf, _, lNum := asNumber(l)
	rf, _, rNum := asNumber(r)
	if lNum && rNum {
		return orderResult(x.op, lf < rf, lf == rf), nil
	}
	return nil, vm.raise(c, x.line, "TypeError",
		fmt.Sprintf("'%s' not supported between instances of '%s' and '%s'", x.op, typeName(l), typeName(r)))
}

func orderResult(op string, less, equal bool) bool {
	switch op {
	case "<":
		return less
	case "<=":
		return less || equal
	case ">":
		return !less && !equal
	default: // ">="
		return !less
	}
}

func valueEqual(l, r rustpython.Object) bool {
	lf, _, lNum := asNumber(l)
	rf, _, rNum := asNumber(r)
	if lNum && rNum {
		return lf == rf
	}
	if ll, ok := l.(*List); ok {
		rl, ok := r.(*List)
		if !ok || len(ll.Items) != len(rl.Items) {
			return false
		}
		for i := range ll.Items {
			if !valueEqual(ll.Items[i], rl.Items[i]) {
				return false
			}
		}
		return true
	}
	return l == r
}

func (vm *VM) applyIndex(c *Code, x *indexExpr, v, idx rustpython.Object) (rustpython.Object, error) {
	switch seq := v.(type) {
	case *List:
		i, ok := normalizeIndex(idx, len(seq.Items))
		if !ok {
			return nil, vm.raise(c, x.line, "IndexError", "list index out of range")
		}
		return seq.Items[i], nil
	case string:
		runes := []rune(seq)
		i, ok := normalizeIndex(idx, len(runes))
		if !ok {
			return nil, vm.raise(c, x.line, "IndexError", "string index out of range")
		}
		return string(runes[i]), nil
	}
	return nil, vm.raise(c, x.line, "TypeError", fmt.Sprintf("'%s' object is not subscriptable", typeName(v)))
}

func normalizeIndex(idx rustpython.Object, length int) (int, bool) {
	n, ok := idx.(int64)
	if !ok {
		return 0, false
	}
	i := int(n)
	if i < 0 {
		i += length
	}
	if i < 0 || i >= length {
		return 0, false
	}
	return i, true
}

// asNumber widens ints and bools to float64 for mixed arithmetic,
// reporting whether the original value was a float.
func asNumber(v rustpython.Object) (f float64, isFloat, isNum bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), false, true
	case float64:
		return n, true, true
	case bool:
		if n {
			return 1, false, true
		}
		return 0, false, true
	}
	return 0, false, false
}

func truthy(v rustpython.Object) bool {
	switch x := v.(type) {
	case nil, *noneVal:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0
	case string:
		return x != ""
	case *List:
		return len(x.Items) > 0
	}
	return true
}

// raise builds an exception with one traceback frame for this unit.
func (vm *VM) raise(c *Code, line int, typeName, msg string) error {
	return &rustpython.Exception{
		TypeName: typeName,
		Message:  msg,
		Frames:   []rustpython.Frame{{File: c.name, Line: line}},
	}
}

// withFrame attaches location to an exception that lacks one.
func (vm *VM) withFrame(err error, c *Code, line int) error {
	if exc, ok := err.(*rustpython.Exception); ok && len(exc.Frames) == 0 {
		exc.Frames = []rustpython.Frame{{File: c.name, Line: line}}
	}
	return err
}
