package main

import (
	"os"

	_ "github.com/joho/godotenv/autoload"

	"prizebot/internal/cli"
)

func main() {
	// .env is auto-loaded if present; real environment variables win.
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
