package main

import (
	"os"

	"scout-agent/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
