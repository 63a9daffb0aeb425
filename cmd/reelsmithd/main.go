package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"reelsmith/internal/config"
	"reelsmith/internal/daemonrun"
)

func main() {
	configFlag := flag.String("config", "", "configuration file path")
	logLevelFlag := flag.String("log-level", "", "override configured log level")
	flag.Parse()

	// Secrets (API keys, upload credentials) may live in a .env file next to
	// the working directory instead of the config file.
	_ = godotenv.Load()

	cfg, path, exists, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if !exists {
		fmt.Fprintf(os.Stderr, "no config file at %s, using defaults\n", path)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{LogLevel: *logLevelFlag}); err != nil {
		log.Fatalf("reelsmithd: %v", err)
	}
}
