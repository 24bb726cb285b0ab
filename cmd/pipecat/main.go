package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kbukum/pipecat/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "pipecat:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
