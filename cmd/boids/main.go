package main

import (
	"context"
	"flag"
	"log"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/lao-tseu-is-alive/go-flock-events/pkg/render"
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
	ctx := context.Background()

	sim, err := simulation.Start(ctx, settings, simulation.WithSnapshots(10))
	if err != nil {
		log.Fatal(err)
	}
	defer sim.Stop(ctx)

	width, height := int(settings.Flock.Width), int(settings.Flock.Height)
	ebiten.SetWindowSize(width, height)
	ebiten.SetWindowTitle("Boids")
	ebiten.SetTPS(settings.Flock.TicksPerSecond())

	game := render.NewGame(ctx, sim, sim.Snapshots, width, height)
	if err := ebiten.RunGame(game); err != nil {
		log.Fatal(err)
	}
}
