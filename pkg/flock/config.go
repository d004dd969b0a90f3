package flock

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig is wrapped by every error returned from Config.Validate.
var ErrInvalidConfig = errors.New("invalid flock config")

// BoundaryMode selects how agents handle the arena edges for a whole run.
type BoundaryMode string

const (
	// BoundaryAvoid steers agents away from the edges inside a fixed margin.
	BoundaryAvoid BoundaryMode = "avoid"
	// BoundaryWrap teleports agents that fully left the arena to the opposite side.
	BoundaryWrap BoundaryMode = "wrap"
)

type Config struct {
	// Arena
	Width    float64      `json:"width"`
	Height   float64      `json:"height"`
	Boundary BoundaryMode `json:"boundary"`

	// Population
	Population int     `json:"population"`
	Cheaters   int     `json:"cheaters"` // ids 0..Cheaters-1 move at CheaterSpeedFactor
	Extent     float64 `json:"extent"`   // bounding box side, also the unit of every steering radius

	// Movement
	Speed    float64 `json:"speed"`    // base speed in pixels per second
	TickRate float64 `json:"tickRate"` // ticks per second

	// Events
	GameID             int  `json:"gameId"`
	DedupInteractions  bool `json:"dedupInteractions"`
	ParticipantNotices bool `json:"participantNotices"`

	// Read neighbors from the previous tick instead of the live, partially updated state.
	DoubleBuffer bool `json:"doubleBuffer"`
}

func DefaultConfig() Config {
	return Config{
		Width:      1200,
		Height:     800,
		Boundary:   BoundaryAvoid,
		Population: 100,
		Cheaters:   1,
		Extent:     25,
		Speed:      100,
		TickRate:   60,
		GameID:     13,
	}
}

// TicksPerSecond is TickRate rounded for frame-driven loops. It is never below 1.
func (c Config) TicksPerSecond() int {
	return max(1, int(math.Round(c.TickRate)))
}

// Validate rejects configurations the engine cannot start with.
func (c Config) Validate() error {
	switch {
	case c.Population <= 0:
		return fmt.Errorf("%w: population must be > 0, got %d", ErrInvalidConfig, c.Population)
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("%w: arena must be positive, got %gx%g", ErrInvalidConfig, c.Width, c.Height)
	case c.Boundary != BoundaryAvoid && c.Boundary != BoundaryWrap:
		return fmt.Errorf("%w: unknown boundary mode %q", ErrInvalidConfig, c.Boundary)
	case c.Speed <= 0:
		return fmt.Errorf("%w: speed must be > 0, got %g", ErrInvalidConfig, c.Speed)
	case c.TickRate <= 0:
		return fmt.Errorf("%w: tick rate must be > 0, got %g", ErrInvalidConfig, c.TickRate)
	case c.Extent <= 0:
		return fmt.Errorf("%w: extent must be > 0, got %g", ErrInvalidConfig, c.Extent)
	case c.Cheaters < 0 || c.Cheaters > c.Population:
		return fmt.Errorf("%w: cheaters must be within [0, %d], got %d", ErrInvalidConfig, c.Population, c.Cheaters)
	}
	return nil
}
