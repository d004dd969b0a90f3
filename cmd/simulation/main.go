package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/lao-tseu-is-alive/go-flock-events/pkg/simulation"
)

func main() {
	configFile := flag.String("config", "", "settings file, .json or .toml")
	envFile := flag.String("env", ".env", "optional .env file")
	flag.Parse()

	settings, err := simulation.Load(*configFile, *envFile)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sim, err := simulation.Start(ctx, settings)
	if err != nil {
		log.Fatal(err)
	}
	if err := sim.Run(ctx); err != nil {
		log.Printf("simulation stopped: %v", err)
	}
	if err := sim.Stop(context.Background()); err != nil {
		log.Fatal(err)
	}
}
