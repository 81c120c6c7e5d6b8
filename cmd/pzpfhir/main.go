package main

import (
	"os"

	"github.com/IKNL/PZP-FHIR-STU3/internal/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
