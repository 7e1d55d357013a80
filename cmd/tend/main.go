// Package main provides the entry point for the tend CLI.
package main

import (
	"os"
)

func main() {
	os.Exit(Execute())
}
