package main

import (
	"os"

	"github.com/spherical/pdf2jpeg/cmd/pdf2jpeg/commands"
	"github.com/spherical/pdf2jpeg/cmd/pdf2jpeg/ui"
)

func main() {
	if err := commands.Execute(); err != nil {
		ui.Error("%s", commands.Describe(err))
		os.Exit(1)
	}
}
