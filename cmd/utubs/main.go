package main

import (
	"os"

	"github.com/mikepea/utubs/pkg/utubs/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
