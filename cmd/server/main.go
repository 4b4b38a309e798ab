package main

import (
	"os"

	"github.com/ga-insights/core/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
