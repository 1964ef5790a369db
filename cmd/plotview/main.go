package main

import (
	"github.com/joho/godotenv"

	"github.com/plotview/plotview/cmd/plotview/commands"
)

func main() {
	// Optional: PLOTVIEW_* settings can also come from a local .env file.
	_ = godotenv.Load()
	commands.Execute()
}
