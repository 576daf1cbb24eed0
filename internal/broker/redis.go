package broker

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/yanun0323/errors"

	"main/pkg/exception"
)

// RedisTransport backs the broker with Redis pub/sub.
type RedisTransport struct {
	rdb *redis.Client
}

// NewRedisTransport wraps a Redis client as a broker transport.
// A nil client is allowed and fails every operation, which the broker
// treats as an unreachable transport.
func NewRedisTransport(rdb *redis.Client) *RedisTransport {
	return &RedisTransport{rdb: rdb}
}

func (t *RedisTransport) Ping(ctx context.Context) error {
	if t == nil || t.rdb == nil {
		return exception.ErrBrokerTransportUnavailable
	}
	return t.rdb.Ping(ctx).Err()
}

func (t *RedisTransport) Publish(ctx context.Context, topic string, payload []byte) error {
	if t == nil || t.rdb == nil {
		return exception.ErrBrokerTransportUnavailable
	}
	if err := t.rdb.Publish(ctx, topic, payload).Err(); err != nil {
		return errors.Wrap(err, "redis publish").With("topic", topic)
	}
	return nil
}

func (t *RedisTransport) Subscribe(ctx context.Context, topic string) (Stream, error) {
	if t == nil || t.rdb == nil {
		return nil, exception.ErrBrokerTransportUnavailable
	}
	ps := t.rdb.Subscribe(ctx, topic)
	// Force the SUBSCRIBE round-trip so a dead connection fails here
	// instead of inside the listener loop.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, errors.Wrap(err, "redis subscribe").With("topic", topic)
	}
	return &redisStream{ps: ps}, nil
}

type redisStream struct {
	ps *redis.PubSub
}

func (s *redisStream) Next(ctx context.Context) ([]byte, error) {
	m, err := s.ps.ReceiveMessage(ctx)
	if err != nil {
		return nil, err
	}
	return []byte(m.Payload), nil
}

func (s *redisStream) Close() error {
	return s.ps.Close()
}
