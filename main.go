package main

import (
	"os"

	"github.com/srnarasim/dataprism-tooling/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
