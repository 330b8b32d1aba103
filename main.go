// The main package for the leadsite executable.
package main

import (
	"github.com/JakeFAU/hvac-leadsite/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
