package main

import (
	"flag"
	"log"

	"github.com/phamduclong/aerogo/internal/tool/app"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "configPath", "", "Path to configuration file")
	flag.Parse()

	application, err := app.New(configPath)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if err := application.Run(flag.Args()); err != nil {
		log.Fatalf("Command failed: %v", err)
	}
}
