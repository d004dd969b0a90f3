package flock

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/google/uuid"
)

// Topics used for publication.
const (
	TopicInteractions = "interactions"
	TopicPositions    = "player-position"
)

// Publisher hands a serialized record to the event sink. Implementations must not block
// the caller on transport; a returned error means the record was not accepted and it is
// dropped.
type Publisher interface {
	Publish(topic, key string, value []byte) error
}

// NopPublisher discards every record.
type NopPublisher struct{}

func (NopPublisher) Publish(string, string, []byte) error { return nil }

// PositionRecord is published for every agent on position ticks.
type PositionRecord struct {
	RecordID int64 `json:"recordId"`
	GameID   int   `json:"gameId"`
	PlayerID int   `json:"playerId"`
	GameTime int64 `json:"gameTime"`
	Top      int   `json:"topCoordinate"`
	Left     int   `json:"leftCoordinate"`
}

// InteractionEvent reports that Source overlaps at least two other agents.
type InteractionEvent struct {
	InteractionID  string `json:"interactionId"`
	GameID         int    `json:"gameId"`
	GameTime       int64  `json:"gameTime"`
	SourcePlayerID string `json:"sourcePlayerId"`
	Player1ID      string `json:"player1Id"`
	Player2ID      string `json:"player2Id"`
}

// CollisionNotice is the single-participant form of an interaction.
type CollisionNotice struct {
	InteractionID string `json:"interactionId"`
	GameID        int    `json:"gameId"`
	GameTime      int64  `json:"gameTime"`
	PlayerID      string `json:"playerId"`
}

// EmitPositions reports whether position records are published on the given tick.
func EmitPositions(tick uint64) bool {
	return tick%3 == 0 || tick%4 == 0
}

var interactionNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:go-flock-events:interaction"))

// canonicalInteractionID derives the same id for the same participant set on the same tick,
// whichever member reported it.
func canonicalInteractionID(gameID int, tick uint64, c Collision) string {
	ids := []int{c.Source, c.First, c.Second}
	slices.Sort(ids)
	key := fmt.Sprintf("%d/%d/%d-%d-%d", gameID, tick, ids[0], ids[1], ids[2])
	return uuid.NewSHA1(interactionNamespace, []byte(key)).String()
}

func playerID(id int) string { return strconv.Itoa(id) }
