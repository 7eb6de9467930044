package main

import (
	"os"

	"github.com/dunamismax/mediaproc/internal/telemetry"
)

func main() {
	logger, err := telemetry.NewLogger(telemetry.LogConfig{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: "console",
		Output: os.Stderr,
	}, "mediaproc-transform")
	if err != nil {
		os.Exit(2)
	}

	if err := newRootCommand(logger).Execute(); err != nil {
		os.Exit(1)
	}
}
