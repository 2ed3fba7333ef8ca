// Command traild runs the trail registry daemon.
package main

import (
	"os"

	"github.com/concave-dev/trail/cmd/traild/commands"
)

func main() {
	commands.SetupCommands()
	if err := commands.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
