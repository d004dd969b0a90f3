package eventsink

import (
	"context"
	"errors"

	"github.com/tochemey/goakt/v3/actor"
)

var ErrNoSink = errors.New("no sink actor to publish to")

// ActorPublisher hands records to a SinkActor's mailbox. Publish returns as soon as the
// message is enqueued, so a slow transport never holds up the caller.
type ActorPublisher struct {
	ctx  context.Context
	sink *actor.PID
}

func NewActorPublisher(ctx context.Context, sink *actor.PID) *ActorPublisher {
	return &ActorPublisher{ctx: ctx, sink: sink}
}

func (p *ActorPublisher) Publish(topic, key string, value []byte) error {
	if p.sink == nil {
		return ErrNoSink
	}
	env := Envelope{Topic: topic, Key: key, Value: value}
	return actor.Tell(p.ctx, p.sink, env.ToProto())
}
