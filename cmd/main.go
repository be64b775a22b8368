package main

import (
	"os"

	"github.com/andyyulianto77/kuis3/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
