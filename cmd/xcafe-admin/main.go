// Package main provides the xcafe-admin CLI tool for managing an xcafe server.
package main

import (
	"os"

	"github.com/andreval74/xcafe/cmd/xcafe-admin/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
