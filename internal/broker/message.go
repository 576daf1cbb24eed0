package broker

import (
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
)

// Reserved envelope keys injected beside the caller's fields on the wire.
const (
	keyTimestamp = "timestamp"
	keyTopic     = "topic"
	keySource    = "source"
)

// Message is the immutable envelope delivered to subscribers: injected
// metadata plus the caller-supplied fields.
type Message struct {
	Timestamp string
	Topic     string
	Source    string
	Fields    map[string]any
}

func newMessage(topic, source string, fields map[string]any) Message {
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return Message{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Topic:     topic,
		Source:    source,
		Fields:    copied,
	}
}

// Field returns a caller-supplied field by key.
func (m Message) Field(key string) (any, bool) {
	v, ok := m.Fields[key]
	return v, ok
}

// MarshalJSON flattens the caller fields beside the envelope metadata,
// producing a single self-describing object.
func (m Message) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(m.Fields)+3)
	for k, v := range m.Fields {
		flat[k] = v
	}
	flat[keyTimestamp] = m.Timestamp
	flat[keyTopic] = m.Topic
	if m.Source != "" {
		flat[keySource] = m.Source
	}
	return sonic.ConfigFastest.Marshal(flat)
}

// UnmarshalJSON splits envelope metadata back out of a flattened object.
func (m *Message) UnmarshalJSON(data []byte) error {
	flat := make(map[string]any)
	if err := sonic.ConfigFastest.Unmarshal(data, &flat); err != nil {
		return errors.Wrap(err, "unmarshal envelope")
	}
	if ts, ok := flat[keyTimestamp].(string); ok {
		m.Timestamp = ts
		delete(flat, keyTimestamp)
	}
	if topic, ok := flat[keyTopic].(string); ok {
		m.Topic = topic
		delete(flat, keyTopic)
	}
	if source, ok := flat[keySource].(string); ok {
		m.Source = source
		delete(flat, keySource)
	}
	m.Fields = flat
	return nil
}

func encodeMessage(m Message) ([]byte, error) {
	return m.MarshalJSON()
}

func decodeMessage(data []byte) (Message, error) {
	var m Message
	if err := m.UnmarshalJSON(data); err != nil {
		return Message{}, err
	}
	return m, nil
}
