// Package main provides the entry point for the qanoon CLI.
package main

import (
	"os"

	"github.com/qanoon-search/qanoon/cmd/qanoon/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
