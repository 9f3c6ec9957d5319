package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"hed/internal/di"
	"hed/internal/structures"
)

const defaultConfigPath = "config/config.yaml"

func main() {
	flags := &structures.CliFlags{ConfigPath: os.Getenv("HED_CONFIG")}
	if flags.ConfigPath == "" {
		flags.ConfigPath = defaultConfigPath
	}

	exporter, cleanup, err := di.InitExporter(flags)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = exporter.Run(ctx, os.Stdout, os.Stderr)
	stop()
	cleanup()
	if err != nil {
		os.Exit(1)
	}
}
