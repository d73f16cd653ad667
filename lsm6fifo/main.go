package main

import (
	"os"

	"github.com/runner1010/lsm6fifo/internal/cmd"
)

func main() {
	if err := cmd.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
