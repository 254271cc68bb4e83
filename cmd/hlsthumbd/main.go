// Package main is the entry point for hlsthumbd.
package main

import (
	"os"

	"github.com/jmylchreest/hlsthumb/cmd/hlsthumbd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
