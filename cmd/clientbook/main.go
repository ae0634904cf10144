// Package main provides clientbook, a local store for customer records,
// appointments, images and drawn notes.
package main

import (
	"context"
	"os"

	"github.com/roach88/clientbook/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
