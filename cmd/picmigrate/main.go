package main

import (
	"os"

	"github.com/picmigrate/picmigrate/internal/cli"
)

func main() {
	cli.Initialize()
	os.Exit(cli.ExecuteWithErrorCode(os.Args[1:]))
}
