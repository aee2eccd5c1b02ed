package main

import (
	"os"

	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/cmd/surface-mask/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
