package main

import (
	"os"

	"github.com/bohanco/hpimage/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
