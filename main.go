// Command requester issues HTTP requests from the command line.
package main

import (
	"context"
	"os"

	"github.com/luizaranda/requester/pkg/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
