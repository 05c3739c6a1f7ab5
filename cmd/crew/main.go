package main

import (
	"os"

	"github.com/imkarma/crew/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
