package main

import (
	"os"

	"github.com/chachabrian/mooveit-dispatch/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
