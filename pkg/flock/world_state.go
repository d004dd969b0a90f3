package flock

import "github.com/lao-tseu-is-alive/go-flock-events/pkg/geometry"

// Row is one agent's published pose.
type Row struct {
	X, Y    float64
	Heading float64
}

// Pos returns the row position as a vector.
func (r Row) Pos() geometry.Vector2D {
	return geometry.Vector2D{X: r.X, Y: r.Y}
}

// WorldState holds one row per agent, indexed by agent id. Its length is fixed at creation.
type WorldState struct {
	rows []Row
}

func NewWorldState(n int) *WorldState {
	return &WorldState{rows: make([]Row, n)}
}

func (w *WorldState) Len() int { return len(w.rows) }

func (w *WorldState) Row(id int) Row { return w.rows[id] }

// Set writes the pose of agent id. Each agent only ever writes its own row.
func (w *WorldState) Set(id int, pos geometry.Vector2D, heading float64) {
	w.rows[id] = Row{X: pos.X, Y: pos.Y, Heading: heading}
}

// CopyInto overwrites dst with the rows of w. Both states must have the same length.
func (w *WorldState) CopyInto(dst *WorldState) {
	copy(dst.rows, w.rows)
}
