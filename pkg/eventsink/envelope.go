package eventsink

import (
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

var ErrMalformedEnvelope = errors.New("malformed sink envelope")

// Envelope is one published record on its way to a transport.
type Envelope struct {
	Topic string          `json:"topic"`
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// ToProto packs the envelope into a struct message so it can travel through an actor mailbox.
// The value keeps its exact bytes as a string field.
func (e Envelope) ToProto() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"topic": structpb.NewStringValue(e.Topic),
		"key":   structpb.NewStringValue(e.Key),
		"value": structpb.NewStringValue(string(e.Value)),
	}}
}

// EnvelopeFromProto is the inverse of ToProto.
func EnvelopeFromProto(s *structpb.Struct) (Envelope, error) {
	fields := s.GetFields()
	topic, ok := fields["topic"]
	if !ok || topic.GetStringValue() == "" {
		return Envelope{}, fmt.Errorf("%w: missing topic", ErrMalformedEnvelope)
	}
	value, ok := fields["value"]
	if !ok {
		return Envelope{}, fmt.Errorf("%w: missing value on topic %s", ErrMalformedEnvelope, topic.GetStringValue())
	}
	return Envelope{
		Topic: topic.GetStringValue(),
		Key:   fields["key"].GetStringValue(),
		Value: json.RawMessage(value.GetStringValue()),
	}, nil
}
