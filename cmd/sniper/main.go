package main

import (
	"os"

	"sniperflow/cmd/sniper/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
