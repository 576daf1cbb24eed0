package broker

import "context"

// Transport is the backing pub/sub fabric the broker rides on.
// Connection failures surface as errors the broker catches; they are
// expected, not fatal.
type Transport interface {
	// Ping probes the transport at connect time.
	Ping(ctx context.Context) error
	// Publish fans a serialized message out to one topic.
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe opens a per-topic stream of raw messages.
	Subscribe(ctx context.Context, topic string) (Stream, error)
}

// Stream yields raw messages for one topic until closed.
type Stream interface {
	// Next blocks until a message arrives, the context is canceled,
	// or the stream is closed.
	Next(ctx context.Context) ([]byte, error)
	// Close releases the stream and unblocks pending Next calls.
	Close() error
}
