package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ecosyste-ms/ecosystems-cli/internal/cli"
	"github.com/joho/godotenv"
)

var (
	executeCmd  = cli.Execute
	mapExitCode = cli.ExitCode
	terminate   = os.Exit
)

func run(args []string) int {
	// ECOSYSTEMS_* overrides may live in a local .env file.
	_ = godotenv.Load()

	if err := executeCmd(context.Background(), args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return mapExitCode(err)
	}
	return 0
}

func main() {
	terminate(run(os.Args[1:]))
}
