// Package main is the entry point for the forge CLI binary.
package main

import (
	"os"

	cli "asset-forge/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
