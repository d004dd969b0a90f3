package flock

import (
	"math"

	"github.com/lao-tseu-is-alive/go-flock-events/pkg/geometry"
)

const (
	// EdgeMargin is the distance from an edge under which avoidance kicks in.
	EdgeMargin = 42.0
	// MaxEdgeTurn is the turn budget in degrees per tick reached at the edge itself.
	MaxEdgeTurn = 20.0
)

// BoundaryPolicy keeps agents inside the arena according to one mode per run.
type BoundaryPolicy struct {
	Mode          BoundaryMode
	Width, Height float64
}

// edgeDistance is the distance from pos to the closest arena edge. It is negative outside.
func (b BoundaryPolicy) edgeDistance(pos geometry.Vector2D) float64 {
	return min(pos.X, pos.Y, b.Width-pos.X, b.Height-pos.Y)
}

// Avoid overrides the steering result of an agent inside the edge margin so that it turns
// toward the inward normal, and raises its turn budget as it gets closer to the edge.
// It does nothing in wrap mode.
func (b BoundaryPolicy) Avoid(a *Agent, sc *SteeringContext) {
	if b.Mode != BoundaryAvoid {
		return
	}
	edge := b.edgeDistance(a.Pos)
	if edge >= EdgeMargin {
		return
	}

	var target float64
	if a.Pos.X < EdgeMargin {
		target = 0
	} else if a.Pos.X > b.Width-EdgeMargin {
		target = 180
	}
	// top and bottom edges win in corners
	if a.Pos.Y < EdgeMargin {
		target = 90
	} else if a.Pos.Y > b.Height-EdgeMargin {
		target = 270
	}

	sc.AvoidingEdge = true
	sc.DesiredHeading = target
	sc.Turn = geometry.WrapDegrees(target - a.Heading)

	closeness := 1 - math.Max(edge, 0)/EdgeMargin
	sc.TurnRate += closeness * (MaxEdgeTurn - sc.TurnRate)
}

// Wrap teleports an agent whose bounding box fully left the arena to the opposite edge,
// independently per axis. It does nothing in avoid mode.
func (b BoundaryPolicy) Wrap(a *Agent) {
	if b.Mode != BoundaryWrap {
		return
	}
	box := a.Bounds()
	if box.Bottom() < 0 {
		a.Pos.Y = b.Height
	} else if box.Top > b.Height {
		a.Pos.Y = 0
	}
	if box.Right() < 0 {
		a.Pos.X = b.Width
	} else if box.Left > b.Width {
		a.Pos.X = 0
	}
}
