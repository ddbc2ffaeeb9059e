package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "ruleflow-worker",
		EnableShellCompletion: true,
		Usage:                 "Create and execute rule jobs for incoming events",
		Commands: []*cli.Command{
			NewRunCommand(),
			NewValidateCommand(),
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
