package main

import (
	"os"

	"github.com/cdlprep/cdlprep/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
