package events

import "context"

// NoopPublisher is a Publisher that does nothing (used when NATS is not configured).
type NoopPublisher struct{}

func (n *NoopPublisher) Publish(ctx context.Context, topic string, event any) error {
	return nil
}

func (n *NoopPublisher) Close() error {
	return nil
}

// RecordingPublisher keeps every published event in memory, in order.
// It is used by tests of components that publish.
type RecordingPublisher struct {
	Events []Recorded
}

// Recorded is one event captured by a RecordingPublisher.
type Recorded struct {
	Topic string
	Event any
}

func (r *RecordingPublisher) Publish(ctx context.Context, topic string, event any) error {
	r.Events = append(r.Events, Recorded{Topic: topic, Event: event})
	return nil
}

func (r *RecordingPublisher) Close() error {
	return nil
}

// Topics returns the topics of the recorded events, in publish order.
func (r *RecordingPublisher) Topics() []string {
	topics := make([]string, len(r.Events))
	for i, e := range r.Events {
		topics[i] = e.Topic
	}
	return topics
}
