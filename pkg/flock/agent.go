package flock

import (
	"github.com/lao-tseu-is-alive/go-flock-events/pkg/geometry"
)

// Kind distinguishes regular agents from cheaters.
type Kind int

const (
	KindNormal Kind = iota
	KindCheater
)

func (k Kind) String() string {
	if k == KindCheater {
		return "cheater"
	}
	return "normal"
}

// Agent is one boid. Only its own Update mutates it.
type Agent struct {
	ID      int
	Kind    Kind
	Extent  float64
	Heading float64 // degrees in [0, 360)
	Pos     geometry.Vector2D
	Dir     geometry.Vector2D // unit vector along Heading
}

func newAgent(id int, kind Kind, extent float64, pos geometry.Vector2D, heading float64) *Agent {
	heading = geometry.NormalizeDegrees(heading)
	return &Agent{
		ID:      id,
		Kind:    kind,
		Extent:  extent,
		Heading: heading,
		Pos:     pos,
		Dir:     geometry.FromHeading(heading),
	}
}

func (a *Agent) IsCheater() bool { return a.Kind == KindCheater }

// SpeedFactor is the multiplier applied to the base speed.
func (a *Agent) SpeedFactor() float64 {
	if a.IsCheater() {
		return CheaterSpeedFactor
	}
	return 1
}

// Bounds is the collision box, a square of side Extent centred on Pos.
func (a *Agent) Bounds() geometry.Rect {
	return geometry.RectAround(a.Pos, a.Extent)
}

// Update runs one tick for the agent: it reads neighbors from read, steers, handles the
// arena edges, moves, and writes its new pose into its own row of write.
// read and write are the same state unless the engine double-buffers.
func (a *Agent) Update(read, write *WorldState, q *NeighborQuery, steering SteeringPolicy, boundary BoundaryPolicy, dt float64) SteeringContext {
	neighbors := q.Nearest(read, a.ID, a.Extent)

	sc := steering.Steer(a, neighbors, dt)
	boundary.Avoid(a, &sc)

	a.Heading = steering.Turn(a.Heading, sc)
	a.Dir = geometry.FromHeading(a.Heading)
	a.Pos = a.Pos.Add(a.Dir.Mul(dt * steering.Speed(a.SpeedFactor(), len(neighbors))))
	boundary.Wrap(a)

	write.Set(a.ID, a.Pos, a.Heading)
	return sc
}
