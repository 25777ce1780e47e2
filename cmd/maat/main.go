// Command maat maintains precomputed rankings of entities in a relational
// store.
package main

import (
	"context"
	"os"

	"github.com/roach88/maat/internal/cli"
)

func main() {
	os.Exit(cli.Run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
