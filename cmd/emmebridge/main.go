package main

import (
	"os"

	"github.com/TravelModellingGroup/emmebridge/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
