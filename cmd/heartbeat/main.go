package main

import (
	"log"

	"github.com/MrSnakeDoc/heartbeat/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ heartbeat failed to start: %v", err)
	}
}
