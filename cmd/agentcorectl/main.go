// Command agentcorectl is the CLI client: a single-shot "run" for one
// message against a fresh local session, and a "serve" subcommand standing
// up the same HTTP host agentcored does. Grounded on go-opencode's
// cmd/opencode/main.go, which is this thin.
package main

import (
	"fmt"
	"os"

	"github.com/vibeworks/agentcore/cmd/agentcorectl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
