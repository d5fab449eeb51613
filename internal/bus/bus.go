package bus

import "main/internal/schema"

// Event is the unit passed through the in-memory bus.
type Event struct {
	Topic   string
	Payload schema.Value
	Source  string
}

// Publisher is the single capability the scenario engine consumes.
// Implementations deliver the event downstream; decorators (chaos,
// recording) wrap another Publisher and forward to it.
type Publisher interface {
	Publish(topic string, payload schema.Value, source string) error
}

// PublisherFunc adapts a plain function to the Publisher interface.
type PublisherFunc func(topic string, payload schema.Value, source string) error

// Publish calls the wrapped function.
func (f PublisherFunc) Publish(topic string, payload schema.Value, source string) error {
	return f(topic, payload, source)
}

// Discard drops every event. Useful for dry runs and tests.
var Discard Publisher = PublisherFunc(func(string, schema.Value, string) error {
	return nil
})
