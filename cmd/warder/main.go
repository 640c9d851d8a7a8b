package main

import (
	"os"

	"github.com/project-atrium/warder/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
