// The main package for the larue executable.
package main

import (
	"github.com/laruecivic/civic-intel/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
