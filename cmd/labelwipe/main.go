package main

import (
	"github.com/joho/godotenv"

	"github.com/BilalWohlig/labelwipe/cmd/labelwipe/cmd"
)

func main() {
	// Load a .env file when present; real env vars win.
	_ = godotenv.Load()

	cmd.Execute()
}
