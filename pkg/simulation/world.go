package simulation

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/lao-tseu-is-alive/go-flock-events/pkg/eventsink"
	"github.com/lao-tseu-is-alive/go-flock-events/pkg/flock"
	"github.com/tochemey/goakt/v3/actor"
	"github.com/tochemey/goakt/v3/goaktpb"
	"google.golang.org/protobuf/types/known/durationpb"
)

// SinkActorName is the name of the sink spawned under the world.
const SinkActorName = "sink"

// WorldActor owns the flock engine. Its mailbox serializes ticks, so the engine is never
// touched by two goroutines. Each tick message carries the elapsed simulated time.
type WorldActor struct {
	cfg       flock.Config
	transport eventsink.Transport
	rng       *rand.Rand

	engine  *flock.Engine
	sinkPID *actor.PID

	// Communication with UI
	snapshotCh chan<- *flock.Snapshot

	// --- Benchmark Stats ---
	skipped     int
	lastStats   flock.Stats
	lastLogTime time.Time
}

var _ actor.Actor = (*WorldActor)(nil)

// NewWorldActor creates the world logic unit. snapshotCh may be nil when nobody draws.
func NewWorldActor(cfg flock.Config, transport eventsink.Transport, snapshotCh chan<- *flock.Snapshot, rng *rand.Rand) *WorldActor {
	return &WorldActor{
		cfg:         cfg,
		transport:   transport,
		rng:         rng,
		snapshotCh:  snapshotCh,
		lastLogTime: time.Now(),
	}
}

func (w *WorldActor) PreStart(ctx *actor.Context) error {
	ctx.ActorSystem().Logger().Info("World is preparing the flock...")
	return w.cfg.Validate()
}

func (w *WorldActor) Receive(ctx *actor.ReceiveContext) {
	switch msg := ctx.Message().(type) {

	case *goaktpb.PostStart:
		ctx.Logger().Info("World Started. Spawning the flock and its sink...")
		w.spawnFlock(ctx)

	// The Main Simulation Step (Driven by Game Loop or Runner)
	case *durationpb.Duration:
		if w.engine == nil {
			w.skipped++
			return
		}
		if _, err := w.engine.Step(msg.AsDuration()); err != nil {
			if !errors.Is(err, flock.ErrTerminated) {
				ctx.Logger().Warnf("tick failed: %v", err)
			}
			return
		}
		w.logBenchmarks(ctx)
		w.pushSnapshot()

	default:
		ctx.Unhandled()
	}
}

func (w *WorldActor) spawnFlock(ctx *actor.ReceiveContext) {
	w.sinkPID = ctx.Spawn(SinkActorName, eventsink.NewSinkActor(SinkActorName, w.transport))

	engine, err := flock.NewEngine(w.cfg, eventsink.NewActorPublisher(context.Background(), w.sinkPID), ctx.Logger(), w.rng)
	if err != nil {
		ctx.Err(err)
		return
	}
	w.engine = engine
	w.pushSnapshot()
}

func (w *WorldActor) logBenchmarks(ctx *actor.ReceiveContext) {
	if time.Since(w.lastLogTime) < time.Second {
		return
	}
	s := w.engine.Stats()
	ctx.Logger().Infof("📊 TICK RATE: %d/sec | Positions: %d/sec | Interactions: %d/sec | Publish failures: %d | Agents: %d",
		s.Ticks-w.lastStats.Ticks,
		s.PositionRecords-w.lastStats.PositionRecords,
		s.Interactions-w.lastStats.Interactions,
		s.PublishFailures-w.lastStats.PublishFailures,
		w.cfg.Population)
	w.lastStats = s
	w.lastLogTime = time.Now()
}

func (w *WorldActor) pushSnapshot() {
	if w.snapshotCh == nil {
		return
	}
	select {
	case w.snapshotCh <- w.engine.Snapshot():
	default:
		// UI busy, skip frame
	}
}

func (w *WorldActor) PostStop(ctx *actor.Context) error {
	if w.engine != nil {
		w.engine.Stop()
	}
	if w.skipped > 0 {
		ctx.ActorSystem().Logger().Warnf("World dropped %d ticks received before the flock existed", w.skipped)
	}
	ctx.ActorSystem().Logger().Info("World is shutdown...")
	return nil
}
