// Package main is the entry point for smoothstreamd.
package main

import (
	"os"
	"smoothstreamd/cmd/server/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
