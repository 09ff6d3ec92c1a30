// Command paymentsengine processes payment transaction streams, in
// either one-shot CLI mode (read a file, write the account snapshot to
// stdout) or TCP server mode (spec.md §6), following the urfave/cli/v2
// App/Command layout the teacher uses for its own node binaries
// (cmd/evm-node/main.go's app.Commands + app.Before pattern).
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "paymentsengine",
		Usage: "process payment transaction streams",
	}
	app.Commands = []*cli.Command{
		cliCommand(),
		serverCommand(),
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
