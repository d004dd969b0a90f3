package eventsink

import (
	"time"

	"github.com/tochemey/goakt/v3/actor"
	"github.com/tochemey/goakt/v3/goaktpb"
	"google.golang.org/protobuf/types/known/structpb"
)

// SinkActor owns a Transport and feeds it the envelopes found in its mailbox, one at a time.
type SinkActor struct {
	transport Transport
	name      string

	sent    uint64
	failed  uint64
	invalid uint64

	// per second counters for the benchmark line
	windowSent   int
	windowFailed int
	lastLogTime  time.Time
}

var _ actor.Actor = (*SinkActor)(nil)

// NewSinkActor returns an actor that forwards to transport. name only shows up in logs.
func NewSinkActor(name string, transport Transport) *SinkActor {
	if transport == nil {
		transport = NopTransport{}
	}
	return &SinkActor{transport: transport, name: name, lastLogTime: time.Now()}
}

func (s *SinkActor) PreStart(ctx *actor.Context) error {
	ctx.ActorSystem().Logger().Infof("event sink %s starting", s.name)
	return nil
}

func (s *SinkActor) Receive(ctx *actor.ReceiveContext) {
	switch msg := ctx.Message().(type) {
	case *goaktpb.PostStart:
		ctx.Logger().Infof("event sink %s ready", s.name)

	case *structpb.Struct:
		env, err := EnvelopeFromProto(msg)
		if err != nil {
			s.invalid++
			ctx.Logger().Warnf("event sink %s: %v", s.name, err)
			return
		}
		s.deliver(ctx, env)
		s.logBenchmarks(ctx)

	default:
		ctx.Unhandled()
	}
}

func (s *SinkActor) deliver(ctx *actor.ReceiveContext, env Envelope) {
	if err := s.transport.Send(ctx.Context(), env); err != nil {
		s.failed++
		s.windowFailed++
		ctx.Logger().Warnf("event sink %s: %s record %s not delivered: %v", s.name, env.Topic, env.Key, err)
		return
	}
	s.sent++
	s.windowSent++
}

func (s *SinkActor) logBenchmarks(ctx *actor.ReceiveContext) {
	if time.Since(s.lastLogTime) >= time.Second {
		ctx.Logger().Infof("📨 SINK %s: %d records/sec (failed: %d)", s.name, s.windowSent, s.windowFailed)
		s.windowSent = 0
		s.windowFailed = 0
		s.lastLogTime = time.Now()
	}
}

func (s *SinkActor) PostStop(ctx *actor.Context) error {
	ctx.ActorSystem().Logger().Infof("event sink %s stopped: %d delivered, %d failed, %d malformed",
		s.name, s.sent, s.failed, s.invalid)
	return s.transport.Close()
}
