package main

import (
	"os"

	"github.com/resumix/cv-ranker/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
