package event

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/Gopher0727/ChatCore/internal/domain"
)

// Envelope is the wire form of a domain event leaving the process. It is
// serialized as a protobuf Struct so consumers need no generated code.
type Envelope struct {
	ID          string
	Type        string
	AggregateID string
	OccurredOn  time.Time
	Payload     map[string]any
}

func NewEnvelope(e domain.Event) (*Envelope, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event %s: %w", e.EventType(), err)
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to flatten event %s: %w", e.EventType(), err)
	}
	// The envelope header already carries these.
	delete(payload, "event_id")
	delete(payload, "aggregate_id")
	delete(payload, "occurred_on")

	return &Envelope{
		ID:          e.EventID(),
		Type:        e.EventType(),
		AggregateID: e.AggregateID(),
		OccurredOn:  e.OccurredOn(),
		Payload:     payload,
	}, nil
}

// Marshal encodes the envelope. OccurredOn travels as the seconds/nanos pair of
// google.protobuf.Timestamp.
func (env *Envelope) Marshal() ([]byte, error) {
	ts := timestamppb.New(env.OccurredOn)
	payload, err := structpb.NewStruct(env.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to build payload struct: %w", err)
	}
	msg := &structpb.Struct{Fields: map[string]*structpb.Value{
		"id":           structpb.NewStringValue(env.ID),
		"type":         structpb.NewStringValue(env.Type),
		"aggregate_id": structpb.NewStringValue(env.AggregateID),
		"occurred_on": structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"seconds": structpb.NewNumberValue(float64(ts.GetSeconds())),
			"nanos":   structpb.NewNumberValue(float64(ts.GetNanos())),
		}}),
		"payload": structpb.NewStructValue(payload),
	}}
	return proto.Marshal(msg)
}

func UnmarshalEnvelope(data []byte) (*Envelope, error) {
	var msg structpb.Struct
	if err := proto.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	f := msg.GetFields()
	if f["type"].GetStringValue() == "" {
		return nil, fmt.Errorf("envelope has no event type")
	}

	at := f["occurred_on"].GetStructValue().GetFields()
	ts := &timestamppb.Timestamp{
		Seconds: int64(at["seconds"].GetNumberValue()),
		Nanos:   int32(at["nanos"].GetNumberValue()),
	}
	if err := ts.CheckValid(); err != nil {
		return nil, fmt.Errorf("invalid envelope timestamp: %w", err)
	}

	return &Envelope{
		ID:          f["id"].GetStringValue(),
		Type:        f["type"].GetStringValue(),
		AggregateID: f["aggregate_id"].GetStringValue(),
		OccurredOn:  ts.AsTime(),
		Payload:     f["payload"].GetStructValue().AsMap(),
	}, nil
}

// Encode is NewEnvelope followed by Marshal.
func Encode(e domain.Event) ([]byte, error) {
	env, err := NewEnvelope(e)
	if err != nil {
		return nil, err
	}
	return env.Marshal()
}
