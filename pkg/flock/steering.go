package flock

import (
	"math"

	"github.com/lao-tseu-is-alive/go-flock-events/pkg/geometry"
)

const (
	// TurnRate is the normal turn budget in degrees per second.
	TurnRate = 120.0
	// DeadBand is the smallest heading error, in degrees, that triggers a turn.
	DeadBand = 1.2
	// AlignFactor times the extent is the target distance under which agents match the
	// neighbors' mean heading instead of seeking their position.
	AlignFactor = 6
	// CheaterSpeedFactor multiplies the base speed of cheating agents.
	CheaterSpeedFactor = 3.0
	// SparseBoost is the extra speed per missing neighbor below MaxNeighbors.
	SparseBoost = 2.0
)

// SteeringContext is the per-agent, per-tick result of the steering rules.
type SteeringContext struct {
	Neighbors []Neighbor

	MeanHeading float64
	MeanPos     geometry.Vector2D

	Target         geometry.Vector2D
	TargetDistance float64
	DesiredHeading float64

	// Separating is set when the nearest neighbor is inside the agent's extent and replaced
	// the cohesion target.
	Separating bool
	// AvoidingEdge is set when the boundary policy overrode the desired heading.
	AvoidingEdge bool

	// Turn carries the wrapped heading error; only its sign is applied. Zero means no turn.
	Turn float64
	// TurnRate is the turn budget in degrees for this tick.
	TurnRate float64
}

// SteeringPolicy implements separation, cohesion and alignment for every agent kind.
// Cheaters run the same rules with a speed multiplier.
type SteeringPolicy struct {
	BaseSpeed float64
}

// Steer computes the desired turn of agent a for this tick from its neighbors.
func (p SteeringPolicy) Steer(a *Agent, neighbors []Neighbor, dt float64) SteeringContext {
	sc := SteeringContext{
		Neighbors:      neighbors,
		DesiredHeading: a.Heading,
		TurnRate:       TurnRate * dt,
	}
	if len(neighbors) == 0 {
		return sc
	}

	headings := make([]float64, len(neighbors))
	var sum geometry.Vector2D
	for i, n := range neighbors {
		headings[i] = n.Heading
		sum = sum.Add(n.Pos)
	}
	sc.MeanHeading = geometry.MeanHeading(headings)
	sc.MeanPos = sum.Mul(1 / float64(len(neighbors)))

	// separation wins over cohesion
	sc.Target = sc.MeanPos
	if nearest := neighbors[0]; nearest.Dist < a.Extent {
		sc.Target = nearest.Pos
		sc.Separating = true
	}

	var bearing float64
	sc.TargetDistance, bearing = sc.Target.Sub(a.Pos).AsPolar()
	sc.DesiredHeading = bearing
	if sc.TargetDistance < a.Extent*AlignFactor {
		sc.DesiredHeading = sc.MeanHeading
	}

	if delta := geometry.WrapDegrees(sc.DesiredHeading - a.Heading); math.Abs(delta) > DeadBand {
		sc.Turn = delta
	}
	if sc.Separating {
		sc.Turn = -sc.Turn
	}
	return sc
}

// Turn returns the new heading after applying the turn budget in the direction of sc.Turn,
// normalized to [0, 360).
func (p SteeringPolicy) Turn(heading float64, sc SteeringContext) float64 {
	switch {
	case sc.Turn > 0:
		heading += sc.TurnRate
	case sc.Turn < 0:
		heading -= sc.TurnRate
	}
	return geometry.NormalizeDegrees(heading)
}

// Speed returns the distance per second travelled by an agent with the given speed factor
// and neighbor count. Sparse neighborhoods get a small boost.
func (p SteeringPolicy) Speed(factor float64, neighborCount int) float64 {
	return p.BaseSpeed*factor + float64(MaxNeighbors-neighborCount)*SparseBoost
}
