package main

import (
	"os"

	"github.com/harvestplan/harvestplan/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
