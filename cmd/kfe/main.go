// Package main is the entry point for the kfe CLI.
package main

import (
	"os"

	"github.com/Fl0k3n/kfe/cmd/kfe/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
