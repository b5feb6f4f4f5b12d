package main

import (
	"os"

	"github.com/smallbiznis/workforce/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
