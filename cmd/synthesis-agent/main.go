package main

import (
	"os"

	"github.com/synthesishq/synthesis-agent/internal/cli"
)

func main() {
	cli.InitRoot()
	os.Exit(cli.ExecuteWithErrorCode(os.Args[1:]))
}
