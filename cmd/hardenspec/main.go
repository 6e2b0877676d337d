package main

import (
	"os"

	"github.com/girste/hardenspec/internal/cli"
)

var version = "1.0.0"

func main() {
	os.Exit(cli.Execute(version, os.Args[1:], os.Stdout, os.Stderr))
}
