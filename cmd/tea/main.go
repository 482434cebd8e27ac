package main

import (
	"os"

	"github.com/trustvibe/tea/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
