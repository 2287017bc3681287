package main

import (
	"os"

	"github.com/automaprint/automaprint/cmd/automaprint/command"
)

func main() {
	if err := command.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
