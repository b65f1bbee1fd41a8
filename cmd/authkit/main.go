// Package main is the entry point for the authkit CLI.
package main

import (
	"os"

	"github.com/lanternhq/authkit/cmd/authkit/app"
	"github.com/lanternhq/authkit/pkg/logger"
)

func main() {
	logger.Initialize()

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
