package flock

import (
	"encoding/json"
	"errors"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/lao-tseu-is-alive/go-flock-events/pkg/geometry"
)

// recordingPublisher collects every record handed to it.
type recordingPublisher struct {
	records []published
	err     error
}

type published struct {
	topic, key string
	value      []byte
}

func (p *recordingPublisher) Publish(topic, key string, value []byte) error {
	if p.err != nil {
		return p.err
	}
	p.records = append(p.records, published{topic: topic, key: key, value: value})
	return nil
}

func (p *recordingPublisher) topic(name string) []published {
	var out []published
	for _, r := range p.records {
		if r.topic == name {
			out = append(out, r)
		}
	}
	return out
}

func testConfig(population int) Config {
	cfg := DefaultConfig()
	cfg.Population = population
	cfg.Cheaters = 0
	return cfg
}

func newTestEngine(t *testing.T, cfg Config, pub Publisher) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, pub, nil, rand.New(rand.NewPCG(1, 2)))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"wrap", func(c *Config) { c.Boundary = BoundaryWrap }, true},
		{"zero population", func(c *Config) { c.Population = 0 }, false},
		{"negative width", func(c *Config) { c.Width = -1 }, false},
		{"zero height", func(c *Config) { c.Height = 0 }, false},
		{"unknown boundary", func(c *Config) { c.Boundary = "bounce" }, false},
		{"zero speed", func(c *Config) { c.Speed = 0 }, false},
		{"zero tick rate", func(c *Config) { c.TickRate = 0 }, false},
		{"zero extent", func(c *Config) { c.Extent = 0 }, false},
		{"too many cheaters", func(c *Config) { c.Cheaters = c.Population + 1 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("expected valid config, got %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}

	if _, err := NewEngine(Config{}, nil, nil, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("NewEngine with zero config: expected ErrInvalidConfig, got %v", err)
	}
}

func TestConfig_TicksPerSecond(t *testing.T) {
	tests := []struct {
		rate float64
		want int
	}{
		{60, 60},
		{29.6, 30},
		{1, 1},
		{0.4, 1},
		{0.01, 1},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.TickRate = tt.rate
		if err := cfg.Validate(); err != nil {
			t.Fatalf("tick rate %g should be valid: %v", tt.rate, err)
		}
		if got := cfg.TicksPerSecond(); got != tt.want {
			t.Errorf("TicksPerSecond() at %g = %d; want %d", tt.rate, got, tt.want)
		}
	}
}

func TestEngine_Initialization(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cheaters = 2
	e := newTestEngine(t, cfg, nil)

	if e.State() != StateInitializing {
		t.Errorf("expected %s, got %s", StateInitializing, e.State())
	}
	if e.world.Len() != cfg.Population || len(e.agents) != cfg.Population {
		t.Fatalf("expected %d agents, got %d rows / %d agents", cfg.Population, e.world.Len(), len(e.agents))
	}
	for i, a := range e.agents {
		if a.ID != i {
			t.Errorf("agent %d has id %d", i, a.ID)
		}
		if a.IsCheater() != (i < 2) {
			t.Errorf("agent %d: cheater=%v", i, a.IsCheater())
		}
		if a.Pos.X < spawnMargin || a.Pos.X > cfg.Width-spawnMargin ||
			a.Pos.Y < spawnMargin || a.Pos.Y > cfg.Height-spawnMargin {
			t.Errorf("agent %d spawned outside the margin at %v", i, a.Pos)
		}
		if r := e.world.Row(i); r.X != a.Pos.X || r.Y != a.Pos.Y || r.Heading != a.Heading {
			t.Errorf("row %d does not match agent pose", i)
		}
	}
}

func TestEngine_Invariants(t *testing.T) {
	for _, mode := range []BoundaryMode{BoundaryAvoid, BoundaryWrap} {
		for _, double := range []bool{false, true} {
			cfg := DefaultConfig()
			cfg.Population = 40
			cfg.Cheaters = 3
			cfg.Boundary = mode
			cfg.DoubleBuffer = double
			e := newTestEngine(t, cfg, nil)

			for tick := 0; tick < 600; tick++ {
				if _, err := e.Step(16 * time.Millisecond); err != nil {
					t.Fatalf("Step: %v", err)
				}
				if e.world.Len() != cfg.Population {
					t.Fatalf("%s: world has %d rows at tick %d", mode, e.world.Len(), e.Tick())
				}
				for _, a := range e.agents {
					if a.Heading < 0 || a.Heading >= 360 {
						t.Fatalf("%s: agent %d heading %v out of range", mode, a.ID, a.Heading)
					}
					if math.Abs(a.Dir.Len()-1) > 1e-9 {
						t.Fatalf("%s: agent %d heading vector %v is not unit", mode, a.ID, a.Dir)
					}
				}
			}
			if e.State() != StateRunning {
				t.Errorf("expected %s, got %s", StateRunning, e.State())
			}
		}
	}
}

func TestEngine_PositionCadence(t *testing.T) {
	pub := &recordingPublisher{}
	e := newTestEngine(t, testConfig(1), pub)

	emitted := map[uint64]bool{3: true, 4: true, 6: true, 8: true, 9: true, 12: true}
	for tick := uint64(1); tick <= 12; tick++ {
		before := len(pub.topic(TopicPositions))
		report, err := e.Step(16 * time.Millisecond)
		if err != nil {
			t.Fatalf("Step: %v", err)
		}
		if report.Tick != tick {
			t.Fatalf("expected tick %d, got %d", tick, report.Tick)
		}
		got := len(pub.topic(TopicPositions)) - before
		if emitted[tick] && got != 1 {
			t.Errorf("tick %d: expected a position record, got %d", tick, got)
		}
		if !emitted[tick] && got != 0 {
			t.Errorf("tick %d: expected no position record, got %d", tick, got)
		}
	}

	records := pub.topic(TopicPositions)
	for i, r := range records {
		var rec PositionRecord
		if err := json.Unmarshal(r.value, &rec); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if rec.RecordID != int64(i) {
			t.Errorf("record %d: expected recordId %d, got %d", i, i, rec.RecordID)
		}
		if rec.GameID != 13 || rec.PlayerID != 0 || r.key != "0" {
			t.Errorf("record %d: unexpected identity %+v key=%q", i, rec, r.key)
		}
	}
	if last := records[len(records)-1]; !json.Valid(last.value) {
		t.Errorf("invalid json %s", last.value)
	}
}

func TestEngine_PositionRecordShape(t *testing.T) {
	pub := &recordingPublisher{}
	e := newTestEngine(t, testConfig(1), pub)
	if err := e.Place(0, geometry.Vector2D{X: 300.4, Y: 200.6}, 0); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if _, err := e.Step(0); err != nil {
			t.Fatal(err)
		}
	}

	records := pub.topic(TopicPositions)
	if len(records) != 1 {
		t.Fatalf("expected one record on tick 3, got %d", len(records))
	}
	var raw map[string]any
	if err := json.Unmarshal(records[0].value, &raw); err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{"recordId", "gameId", "playerId", "gameTime", "topCoordinate", "leftCoordinate"} {
		if _, ok := raw[field]; !ok {
			t.Errorf("missing field %q in %s", field, records[0].value)
		}
	}
	if raw["topCoordinate"] != float64(188) || raw["leftCoordinate"] != float64(288) {
		t.Errorf("unexpected bounding corner in %s", records[0].value)
	}
}

func TestEngine_InteractionScenario(t *testing.T) {
	t.Run("two overlapping agents emit nothing", func(t *testing.T) {
		pub := &recordingPublisher{}
		e := newTestEngine(t, testConfig(3), pub)
		place(t, e, 400, 410, 800)

		report, err := e.Step(0)
		if err != nil {
			t.Fatal(err)
		}
		if len(report.Interactions) != 0 || len(pub.topic(TopicInteractions)) != 0 {
			t.Errorf("expected no interaction, got %+v", report.Interactions)
		}
	})

	t.Run("a fourth overlapping agent emits one interaction", func(t *testing.T) {
		pub := &recordingPublisher{}
		e := newTestEngine(t, testConfig(4), pub)
		e.newID = func() string { return "fixed-id" }
		place(t, e, 400, 380, 800, 420)

		report, err := e.Step(0)
		if err != nil {
			t.Fatal(err)
		}
		sent := pub.topic(TopicInteractions)
		if len(report.Interactions) != 1 || len(sent) != 1 {
			t.Fatalf("expected exactly one interaction, got %+v", report.Interactions)
		}

		var ev InteractionEvent
		if err := json.Unmarshal(sent[0].value, &ev); err != nil {
			t.Fatal(err)
		}
		want := InteractionEvent{
			InteractionID:  "fixed-id",
			GameID:         13,
			GameTime:       0,
			SourcePlayerID: "0",
			Player1ID:      "1",
			Player2ID:      "3",
		}
		if ev != want {
			t.Errorf("expected %+v, got %+v", want, ev)
		}
		if sent[0].key != "fixed-id" {
			t.Errorf("expected the interaction id as key, got %q", sent[0].key)
		}
	})

	t.Run("fresh ids per emission", func(t *testing.T) {
		pub := &recordingPublisher{}
		e := newTestEngine(t, testConfig(3), pub)
		place(t, e, 400, 405, 410)

		report, _ := e.Step(0)
		if len(report.Interactions) != 3 {
			t.Fatalf("expected one interaction per member, got %d", len(report.Interactions))
		}
		ids := map[string]bool{}
		for _, ev := range report.Interactions {
			ids[ev.InteractionID] = true
		}
		if len(ids) != 3 {
			t.Errorf("expected 3 distinct ids, got %v", ids)
		}
	})

	t.Run("dedup collapses one group to one event", func(t *testing.T) {
		cfg := testConfig(3)
		cfg.DedupInteractions = true
		pub := &recordingPublisher{}
		e := newTestEngine(t, cfg, pub)
		place(t, e, 400, 405, 410)

		report, _ := e.Step(0)
		if len(report.Interactions) != 1 || e.Stats().Duplicates != 2 {
			t.Fatalf("expected 1 event and 2 duplicates, got %d / %d", len(report.Interactions), e.Stats().Duplicates)
		}
		again := canonicalInteractionID(cfg.GameID, 1, Collision{Source: 2, First: 1, Second: 0})
		if report.Interactions[0].InteractionID != again {
			t.Errorf("expected a canonical id, got %s", report.Interactions[0].InteractionID)
		}
	})

	t.Run("participant notices", func(t *testing.T) {
		cfg := testConfig(4)
		cfg.ParticipantNotices = true
		pub := &recordingPublisher{}
		e := newTestEngine(t, cfg, pub)
		place(t, e, 400, 380, 800, 420)

		if _, err := e.Step(0); err != nil {
			t.Fatal(err)
		}
		sent := pub.topic(TopicInteractions)
		if len(sent) != 4 {
			t.Fatalf("expected 1 interaction and 3 notices, got %d records", len(sent))
		}
		players := map[string]bool{}
		for _, r := range sent[1:] {
			var n CollisionNotice
			if err := json.Unmarshal(r.value, &n); err != nil {
				t.Fatal(err)
			}
			players[n.PlayerID] = true
		}
		for _, id := range []string{"0", "1", "3"} {
			if !players[id] {
				t.Errorf("missing notice for player %s", id)
			}
		}
		if s := e.Stats(); s.Interactions != 1 || s.Notices != 3 {
			t.Errorf("unexpected stats %+v", s)
		}
	})
}

func place(t *testing.T, e *Engine, xs ...float64) {
	t.Helper()
	for id, x := range xs {
		if err := e.Place(id, geometry.Vector2D{X: x, Y: 400}, 0); err != nil {
			t.Fatalf("Place(%d): %v", id, err)
		}
	}
}

func TestEngine_PublishFailuresAreSwallowed(t *testing.T) {
	failing := &recordingPublisher{err: errors.New("sink down")}
	working := &recordingPublisher{}

	a := newTestEngine(t, testConfig(20), failing)
	b := newTestEngine(t, testConfig(20), working)
	for i := 0; i < 24; i++ {
		if _, err := a.Step(16 * time.Millisecond); err != nil {
			t.Fatalf("Step with failing sink: %v", err)
		}
		if _, err := b.Step(16 * time.Millisecond); err != nil {
			t.Fatal(err)
		}
	}

	if a.Stats().PublishFailures == 0 {
		t.Error("expected failures to be counted")
	}
	if a.Stats().PositionRecords != 0 {
		t.Errorf("expected no accepted records, got %d", a.Stats().PositionRecords)
	}
	for i := range a.agents {
		if !a.agents[i].Pos.Eq(b.agents[i].Pos) || a.agents[i].Heading != b.agents[i].Heading {
			t.Fatalf("agent %d diverged because of publish failures", i)
		}
	}
}

func TestEngine_DoubleBufferReadsPreviousTick(t *testing.T) {
	cfg := testConfig(5)
	cfg.DoubleBuffer = true
	e := newTestEngine(t, cfg, nil)

	before := make([]Row, e.world.Len())
	for i := range before {
		before[i] = e.world.Row(i)
	}
	if _, err := e.Step(16 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	for i := range before {
		if e.prev.Row(i) != before[i] {
			t.Errorf("read buffer row %d = %+v; want pre-tick %+v", i, e.prev.Row(i), before[i])
		}
		if r := e.world.Row(i); r.X != e.agents[i].Pos.X || r.Y != e.agents[i].Pos.Y {
			t.Errorf("world row %d does not hold the new pose", i)
		}
	}
}

func TestEngine_InPlaceReadsMovedNeighbors(t *testing.T) {
	// Agent 0 starts just outside agent 1's perception radius and moves into it during the
	// tick. Only an agent reading the live state sees it and turns toward it.
	run := func(doubleBuffer bool) *Agent {
		cfg := testConfig(2)
		cfg.DoubleBuffer = doubleBuffer
		e := newTestEngine(t, cfg, nil)
		radius := cfg.Extent * PerceptionFactor
		if err := e.Place(0, geometry.Vector2D{X: 400, Y: 400}, 0); err != nil {
			t.Fatal(err)
		}
		if err := e.Place(1, geometry.Vector2D{X: 400 + radius + 2, Y: 400}, 0); err != nil {
			t.Fatal(err)
		}
		if _, err := e.Step(100 * time.Millisecond); err != nil {
			t.Fatal(err)
		}
		return e.agents[1]
	}

	inPlace := run(false)
	if want := TurnRate * 0.1; math.Abs(inPlace.Heading-want) > 1e-9 {
		t.Errorf("in-place heading = %v; want %v after seeing the moved neighbor", inPlace.Heading, want)
	}

	buffered := run(true)
	if buffered.Heading != 0 {
		t.Errorf("double-buffered heading = %v; want 0, the neighbor was out of range last tick", buffered.Heading)
	}
	if inPlace.Pos.Eq(buffered.Pos) {
		t.Errorf("both modes ended at %v", inPlace.Pos)
	}
}

func TestEngine_Lifecycle(t *testing.T) {
	e := newTestEngine(t, testConfig(2), nil)

	if _, err := e.Step(time.Second / 60); err != nil {
		t.Fatal(err)
	}
	if err := e.Place(0, geometry.Vector2D{}, 0); !errors.Is(err, ErrNotIdle) {
		t.Errorf("expected ErrNotIdle after the first tick, got %v", err)
	}

	snap := e.Snapshot()
	if snap.Tick != 1 || len(snap.Agents) != 2 || snap.Width != 1200 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if snap.Agents[1].Bounds != e.agents[1].Bounds() {
		t.Errorf("snapshot bounds do not match the agent")
	}

	e.Stop()
	e.Stop()
	if e.State() != StateTerminated {
		t.Errorf("expected %s, got %s", StateTerminated, e.State())
	}
	if _, err := e.Step(time.Second / 60); !errors.Is(err, ErrTerminated) {
		t.Errorf("expected ErrTerminated, got %v", err)
	}
	if e.Stats().Ticks != 1 {
		t.Errorf("expected 1 tick, got %d", e.Stats().Ticks)
	}
}

func TestEngine_GameTime(t *testing.T) {
	e := newTestEngine(t, testConfig(1), nil)
	var report TickReport
	for i := 0; i < 4; i++ {
		report, _ = e.Step(250 * time.Millisecond)
	}
	if report.GameTime != 1000 {
		t.Errorf("expected 1000ms of game time, got %d", report.GameTime)
	}
}

func BenchmarkEngine_Step(b *testing.B) {
	e, err := NewEngine(DefaultConfig(), nil, nil, rand.New(rand.NewPCG(1, 2)))
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Step(16 * time.Millisecond)
	}
}
