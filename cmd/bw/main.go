// Package main is the entry point for the bw CLI.
package main

import (
	"os"

	"github.com/dasien/bwcli/cmd/bw/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(app.ExitCode(err))
	}
}
