// Package rustpython is the command-line launcher and interactive session
// controller for a Python-like runtime. It resolves Settings from flags and
// environment, dispatches exactly one execution strategy (command string,
// module, script, or REPL), and funnels every unrecovered failure through
// one reporter with one exit-code contract. The runtime itself is a
// collaborator behind the VirtualMachine boundary in vm.go.
package rustpython

import "fmt"

// Version of the launcher.
const Version = "0.1.2"

// Banner printed when an interactive session starts, unless -q was given.
func Banner() string {
	return fmt.Sprintf("Welcome to the magnificent Rust Python %s interpreter \U0001f631 \U0001f596", Version)
}
