package flock

// Collision is a group overlap seen from Source: Source's box overlaps at least two other
// boxes, First and Second being the lowest ids among them.
type Collision struct {
	Source, First, Second int
}

// CollisionDetector scans all pairs of bounding boxes after every agent has moved.
type CollisionDetector struct {
	found []Collision
}

// Detect returns one Collision per agent overlapping two or more others, in agent id order.
// The same physical group is reported once from each member that sees two others.
// The returned slice is reused by the next call.
func (d *CollisionDetector) Detect(agents []*Agent) []Collision {
	d.found = d.found[:0]
	for _, probe := range agents {
		box := probe.Bounds()
		first, second := -1, -1
		for _, other := range agents {
			if other.ID == probe.ID || !box.Overlaps(other.Bounds()) {
				continue
			}
			if first < 0 {
				first = other.ID
				continue
			}
			second = other.ID
			break
		}
		if second >= 0 {
			d.found = append(d.found, Collision{Source: probe.ID, First: first, Second: second})
		}
	}
	return d.found
}
