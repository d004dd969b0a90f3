package simulation

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net"
	"os"
	"time"

	"github.com/lao-tseu-is-alive/go-flock-events/pkg/eventsink"
	"github.com/lao-tseu-is-alive/go-flock-events/pkg/flock"
	"github.com/tochemey/goakt/v3/actor"
	"github.com/tochemey/goakt/v3/log"
	"google.golang.org/protobuf/types/known/durationpb"
)

// WorldActorName is the name of the world actor in the system.
const WorldActorName = "world"

// Simulation is a running actor system hosting one world and its sink.
type Simulation struct {
	System    actor.ActorSystem
	World     *actor.PID
	Snapshots <-chan *flock.Snapshot

	// Memory is set for the memory sink, Hub for the websocket sink.
	Memory *eventsink.MemoryTransport
	Hub    *eventsink.Hub

	settings  Settings
	logger    log.Logger
	stopHub   context.CancelFunc
	hubErr    chan error
	hubAddr   net.Addr
	tickEvery time.Duration
}

type options struct {
	logger         log.Logger
	rng            *rand.Rand
	snapshotBuffer int
}

type Option func(*options)

// WithLogger replaces the logger built from Settings.LogLevel.
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRand makes the initial placement reproducible.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) { o.rng = rng }
}

// WithSnapshots enables the snapshot channel with the given buffer.
func WithSnapshots(buffer int) Option {
	return func(o *options) { o.snapshotBuffer = buffer }
}

// Start validates settings, boots the actor system and spawns the world.
func Start(ctx context.Context, settings Settings, opts ...Option) (*Simulation, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		level, _ := ParseLevel(settings.LogLevel)
		o.logger = log.New(level, os.Stdout)
	}

	s := &Simulation{
		settings:  settings,
		logger:    o.logger,
		tickEvery: time.Duration(float64(time.Second) / settings.Flock.TickRate),
	}
	transport := s.newTransport()

	var listener net.Listener
	if s.Hub != nil {
		l, err := eventsink.Listen(settings.Sink.ListenAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to start websocket sink: %w", err)
		}
		listener = l
		s.hubAddr = l.Addr()
	}

	system, err := actor.NewActorSystem("FlockWorld",
		actor.WithLogger(o.logger),
		actor.WithActorInitMaxRetries(3))
	if err != nil {
		if listener != nil {
			_ = listener.Close()
		}
		return nil, fmt.Errorf("failed to create actor system: %w", err)
	}
	if err := system.Start(ctx); err != nil {
		if listener != nil {
			_ = listener.Close()
		}
		return nil, fmt.Errorf("failed to start actor system: %w", err)
	}
	s.System = system

	if listener != nil {
		hubCtx, cancel := context.WithCancel(context.Background())
		s.stopHub = cancel
		s.hubErr = make(chan error, 1)
		go func() {
			s.hubErr <- s.Hub.Serve(hubCtx, listener)
		}()
	}

	var snapshotCh chan *flock.Snapshot
	if o.snapshotBuffer > 0 {
		snapshotCh = make(chan *flock.Snapshot, o.snapshotBuffer)
		s.Snapshots = snapshotCh
	}
	world := NewWorldActor(settings.Flock, transport, snapshotCh, o.rng)
	pid, err := system.Spawn(ctx, WorldActorName, world)
	if err != nil {
		_ = s.Stop(ctx)
		return nil, fmt.Errorf("failed to spawn world: %w", err)
	}
	s.World = pid
	return s, nil
}

func (s *Simulation) newTransport() eventsink.Transport {
	switch s.settings.Sink.Kind {
	case SinkWebsocket:
		s.Hub = eventsink.NewHub(s.logger, s.settings.Sink.Buffer)
		return s.Hub
	case SinkMemory:
		s.Memory = eventsink.NewMemoryTransport()
		return s.Memory
	case SinkNone:
		return eventsink.NopTransport{}
	default:
		return eventsink.LogTransport{Logger: s.logger}
	}
}

// HubAddr is the address the websocket sink listens on, nil for other sinks.
func (s *Simulation) HubAddr() net.Addr { return s.hubAddr }

// TickInterval is the wall-clock period matching the configured tick rate.
func (s *Simulation) TickInterval() time.Duration { return s.tickEvery }

// Tick asks the world to advance by dt. It does not wait for the step to happen.
func (s *Simulation) Tick(ctx context.Context, dt time.Duration) error {
	return actor.Tell(ctx, s.World, durationpb.New(dt))
}

// Run ticks the world at the configured rate until ctx is done. Every tick carries the
// nominal interval as its elapsed time.
func (s *Simulation) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tickEvery)
	defer ticker.Stop()
	s.logger.Infof("running %d agents at %g ticks/sec", s.settings.Flock.Population, s.settings.Flock.TickRate)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Tick(ctx, s.tickEvery); err != nil {
				return fmt.Errorf("tick failed: %w", err)
			}
		}
	}
}

// Stop shuts the actor system down, which stops the engine and closes the sink, then
// stops the websocket hub.
func (s *Simulation) Stop(ctx context.Context) error {
	err := s.System.Stop(ctx)
	if s.stopHub != nil {
		s.stopHub()
		if hubErr := <-s.hubErr; hubErr != nil && err == nil {
			err = hubErr
		}
		s.stopHub = nil
	}
	return err
}
