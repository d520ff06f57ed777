package main

import (
	"context"
	"flag"
	"log"

	"podcache/internal/config"
	"podcache/internal/daemon"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	logLevel := flag.String("log-level", "", "override the configured log level")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	level := *logLevel
	if level == "" {
		level = cfg.Logging.Level
	}

	if err := daemon.Run(context.Background(), cfg, daemon.Options{LogLevel: level}); err != nil {
		log.Fatalf("podcached: %v", err)
	}
}
