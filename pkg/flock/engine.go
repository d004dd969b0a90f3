package flock

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/lao-tseu-is-alive/go-flock-events/pkg/geometry"
	"github.com/tochemey/goakt/v3/log"
)

// spawnMargin keeps initial positions away from the arena edges.
const spawnMargin = 50

var (
	ErrTerminated = errors.New("flock engine terminated")
	ErrNotIdle    = errors.New("flock engine already running")
)

// State is the lifecycle phase of an Engine.
type State int

const (
	StateInitializing State = iota
	StateRunning
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Stats are cumulative counters since the engine was created.
type Stats struct {
	Ticks           uint64
	PositionRecords uint64
	Interactions    uint64
	Notices         uint64
	Duplicates      uint64 // interactions collapsed by DedupInteractions
	PublishFailures uint64
}

// TickReport describes what one Step produced.
type TickReport struct {
	Tick         uint64
	GameTime     int64 // milliseconds of simulated time
	Interactions []InteractionEvent
	Positions    int
}

// AgentView is what a renderer needs to draw one agent.
type AgentView struct {
	ID      int
	Pos     geometry.Vector2D
	Heading float64
	Bounds  geometry.Rect
	Cheater bool
}

type Snapshot struct {
	Tick     uint64
	GameTime int64
	Width    float64
	Height   float64
	Agents   []AgentView
}

// Engine owns the agents and the world state and advances them one tick at a time.
// It is not safe for concurrent use: callers serialize Step, Snapshot and Stop.
type Engine struct {
	cfg    Config
	pub    Publisher
	logger log.Logger
	newID  func() string

	world  *WorldState
	prev   *WorldState // read buffer when cfg.DoubleBuffer is set
	agents []*Agent

	query    NeighborQuery
	steering SteeringPolicy
	boundary BoundaryPolicy
	detector CollisionDetector

	state    State
	tick     uint64
	clock    time.Duration
	recordID int64
	stats    Stats
}

// NewEngine validates cfg and spawns the population at random poses inside the spawn margin.
// A nil publisher discards records, a nil logger discards logs and a nil rng is seeded randomly.
func NewEngine(cfg Config, pub Publisher, logger log.Logger, rng *rand.Rand) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if pub == nil {
		pub = NopPublisher{}
	}
	if logger == nil {
		logger = log.DiscardLogger
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	e := &Engine{
		cfg:      cfg,
		pub:      pub,
		logger:   logger,
		newID:    uuid.NewString,
		world:    NewWorldState(cfg.Population),
		agents:   make([]*Agent, cfg.Population),
		steering: SteeringPolicy{BaseSpeed: cfg.Speed},
		boundary: BoundaryPolicy{Mode: cfg.Boundary, Width: cfg.Width, Height: cfg.Height},
		state:    StateInitializing,
	}
	if cfg.DoubleBuffer {
		e.prev = NewWorldState(cfg.Population)
	}

	for id := range e.agents {
		kind := KindNormal
		if id < cfg.Cheaters {
			kind = KindCheater
		}
		pos := geometry.Vector2D{X: spawnCoord(rng, cfg.Width), Y: spawnCoord(rng, cfg.Height)}
		a := newAgent(id, kind, cfg.Extent, pos, float64(rng.IntN(361)))
		e.agents[id] = a
		e.world.Set(id, a.Pos, a.Heading)
	}

	logger.Infof("flock ready: %d agents (%d cheating) in %gx%g, boundary=%s, game=%d",
		cfg.Population, cfg.Cheaters, cfg.Width, cfg.Height, cfg.Boundary, cfg.GameID)
	return e, nil
}

func spawnCoord(rng *rand.Rand, size float64) float64 {
	span := int(size) - 2*spawnMargin
	if span < 0 {
		return size / 2
	}
	return float64(spawnMargin + rng.IntN(span+1))
}

// Place overrides the initial pose of agent id. It is only allowed before the first Step.
func (e *Engine) Place(id int, pos geometry.Vector2D, heading float64) error {
	if e.state != StateInitializing {
		return ErrNotIdle
	}
	if id < 0 || id >= len(e.agents) {
		return fmt.Errorf("agent %d out of range [0, %d)", id, len(e.agents))
	}
	a := newAgent(id, e.agents[id].Kind, e.cfg.Extent, pos, heading)
	e.agents[id] = a
	e.world.Set(id, a.Pos, a.Heading)
	return nil
}

func (e *Engine) Config() Config { return e.cfg }
func (e *Engine) State() State   { return e.state }
func (e *Engine) Tick() uint64   { return e.tick }
func (e *Engine) Stats() Stats   { return e.stats }

// Step advances the simulation by dt: every agent moves in ascending id order, then
// collisions are detected and the tick's records are published.
func (e *Engine) Step(dt time.Duration) (TickReport, error) {
	if e.state == StateTerminated {
		return TickReport{}, ErrTerminated
	}
	e.state = StateRunning
	e.tick++
	e.clock += dt
	e.stats.Ticks++

	read := e.world
	if e.prev != nil {
		e.world.CopyInto(e.prev)
		read = e.prev
	}
	seconds := dt.Seconds()
	for _, a := range e.agents {
		a.Update(read, e.world, &e.query, e.steering, e.boundary, seconds)
	}

	report := TickReport{Tick: e.tick, GameTime: e.clock.Milliseconds()}
	report.Interactions = e.emitInteractions(e.detector.Detect(e.agents), report.GameTime)
	if EmitPositions(e.tick) {
		report.Positions = e.emitPositions(report.GameTime)
	}
	return report, nil
}

// Stop terminates the engine. Later calls to Step return ErrTerminated.
func (e *Engine) Stop() {
	if e.state == StateTerminated {
		return
	}
	e.state = StateTerminated
	e.logger.Infof("flock stopped after %d ticks: %d positions, %d interactions, %d publish failures",
		e.stats.Ticks, e.stats.PositionRecords, e.stats.Interactions, e.stats.PublishFailures)
}

// Snapshot copies the current pose of every agent.
func (e *Engine) Snapshot() *Snapshot {
	s := &Snapshot{
		Tick:     e.tick,
		GameTime: e.clock.Milliseconds(),
		Width:    e.cfg.Width,
		Height:   e.cfg.Height,
		Agents:   make([]AgentView, len(e.agents)),
	}
	for i, a := range e.agents {
		s.Agents[i] = AgentView{
			ID:      a.ID,
			Pos:     a.Pos,
			Heading: a.Heading,
			Bounds:  a.Bounds(),
			Cheater: a.IsCheater(),
		}
	}
	return s
}

func (e *Engine) emitInteractions(collisions []Collision, gameTime int64) []InteractionEvent {
	if len(collisions) == 0 {
		return nil
	}
	events := make([]InteractionEvent, 0, len(collisions))
	var seen map[string]struct{}

	for _, c := range collisions {
		var id string
		if e.cfg.DedupInteractions {
			id = canonicalInteractionID(e.cfg.GameID, e.tick, c)
			if _, dup := seen[id]; dup {
				e.stats.Duplicates++
				continue
			}
			if seen == nil {
				seen = make(map[string]struct{})
			}
			seen[id] = struct{}{}
		} else {
			id = e.newID()
		}

		ev := InteractionEvent{
			InteractionID:  id,
			GameID:         e.cfg.GameID,
			GameTime:       gameTime,
			SourcePlayerID: playerID(c.Source),
			Player1ID:      playerID(c.First),
			Player2ID:      playerID(c.Second),
		}
		events = append(events, ev)
		if e.publish(TopicInteractions, id, ev) {
			e.stats.Interactions++
		}

		if !e.cfg.ParticipantNotices {
			continue
		}
		for _, p := range [...]int{c.Source, c.First, c.Second} {
			n := CollisionNotice{
				InteractionID: e.newID(),
				GameID:        e.cfg.GameID,
				GameTime:      gameTime,
				PlayerID:      playerID(p),
			}
			if e.publish(TopicInteractions, n.InteractionID, n) {
				e.stats.Notices++
			}
		}
	}
	return events
}

func (e *Engine) emitPositions(gameTime int64) int {
	sent := 0
	for _, a := range e.agents {
		top, left := a.Bounds().Pixel()
		rec := PositionRecord{
			RecordID: e.recordID,
			GameID:   e.cfg.GameID,
			PlayerID: a.ID,
			GameTime: gameTime,
			Top:      top,
			Left:     left,
		}
		e.recordID++
		if e.publish(TopicPositions, playerID(a.ID), rec) {
			e.stats.PositionRecords++
			sent++
		}
	}
	return sent
}

// publish never fails the tick: rejected records are counted and dropped.
func (e *Engine) publish(topic, key string, record any) bool {
	value, err := json.Marshal(record)
	if err == nil {
		err = e.pub.Publish(topic, key, value)
	}
	if err != nil {
		e.stats.PublishFailures++
		e.logger.Debugf("dropped %s record %s: %v", topic, key, err)
		return false
	}
	return true
}
