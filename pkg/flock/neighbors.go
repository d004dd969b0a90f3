package flock

import (
	"cmp"
	"math"
	"slices"

	"github.com/lao-tseu-is-alive/go-flock-events/pkg/geometry"
)

const (
	// MaxNeighbors caps how many nearest agents take part in steering.
	MaxNeighbors = 7
	// PerceptionFactor times the agent extent is the perception radius.
	PerceptionFactor = 12
)

// Neighbor is a copy of another agent's row plus its distance to the querying agent.
type Neighbor struct {
	ID      int
	Pos     geometry.Vector2D
	Heading float64
	Dist    float64
}

// NeighborQuery finds the nearest agents with a full scan of the world state.
// It keeps its buffer between calls, so it is not safe for concurrent use.
type NeighborQuery struct {
	buf []Neighbor
}

// Nearest returns up to MaxNeighbors rows nearest to agent id, closest first, keeping only
// those strictly inside the perception radius of an agent of the given extent.
// The returned slice is reused by the next call.
func (q *NeighborQuery) Nearest(ws *WorldState, id int, extent float64) []Neighbor {
	self := ws.rows[id]
	q.buf = q.buf[:0]
	for j, r := range ws.rows {
		if j == id {
			continue
		}
		pos := r.Pos()
		q.buf = append(q.buf, Neighbor{
			ID:      j,
			Pos:     pos,
			Heading: r.Heading,
			Dist:    self.Pos().DistanceSquaredTo(pos), // squared until the cut below
		})
	}

	slices.SortStableFunc(q.buf, func(a, b Neighbor) int { return cmp.Compare(a.Dist, b.Dist) })
	if len(q.buf) > MaxNeighbors {
		q.buf = q.buf[:MaxNeighbors]
	}

	radius := extent * PerceptionFactor
	kept := q.buf[:0]
	for _, n := range q.buf {
		n.Dist = math.Sqrt(n.Dist)
		if n.Dist < radius {
			kept = append(kept, n)
		}
	}
	q.buf = kept
	return kept
}
