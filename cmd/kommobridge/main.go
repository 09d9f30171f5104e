package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/tillberg/autorestart"

	"github.com/wirasena/kommobridge/internal/cli"
)

func main() {
	// Credentials are commonly kept in a local .env during development.
	_ = godotenv.Load()

	go autorestart.RestartOnChange()

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}
