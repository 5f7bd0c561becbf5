// Command stepflow is a thin CLI wrapping the stepflow library: run a
// state machine against a mock/test file, validate a mock/test file
// against a state machine, or drive the generator retry manager over an
// external command.
package main

import (
	"fmt"
	"os"

	"github.com/stepflow/stepflow/cmd/stepflow/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
