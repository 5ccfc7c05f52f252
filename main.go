package main

import (
	"log"

	"go-agency-billing/cmd"

	"github.com/joho/godotenv"
)

func main() {
	// Environment variables from .env override nothing already exported
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	cmd.Execute()
}
