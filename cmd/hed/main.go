package main

import (
	"flag"
	"log"

	"hed/internal/di"
	"hed/internal/structures"
)

func main() {
	flags := &structures.CliFlags{}
	flag.StringVar(&flags.ConfigPath, "config", "config/config.yaml", "path to the YAML configuration file")
	flag.BoolVar(&flags.DebugMode, "debug", false, "mirror logs to the console")
	flag.Parse()

	_, cleanup, err := di.InitApp(flags)
	if err != nil {
		log.Fatalf("%v", err)
	}
	cleanup()
}
