package main

import (
	"os"

	"github.com/aegis/copilot/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
