package main

import (
	"os"

	"github.com/rkiskaupas/roadrisk/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
