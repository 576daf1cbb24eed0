package broker

import (
	"context"
	"strings"
	"sync"

	"main/internal/obs"

	"github.com/yanun0323/logs"
)

const defaultFallbackDepth = 100

// Handler consumes one delivered message. Panics inside a handler are
// recovered by the broker and never reach the publisher.
type Handler func(Message)

// Config tunes a broker instance.
type Config struct {
	// Source is stamped into every published envelope. Optional.
	Source string
	// FallbackDepth is the per-topic ring capacity in fallback mode.
	// Defaults to 100.
	FallbackDepth int
}

// Broker is a topic-addressed pub/sub bus. With a reachable transport it
// fans messages out remotely; without one it degrades to synchronous
// in-process delivery. The mode is decided once by Connect and never
// re-evaluated.
type Broker struct {
	cfg       Config
	transport Transport
	metrics   *obs.Metrics

	backed bool

	mu     sync.RWMutex
	topics map[string]*topicState
	nextID uint64
}

type topicState struct {
	mu   sync.Mutex
	subs []fallbackSub
	ring *ring
}

type fallbackSub struct {
	id uint64
	fn Handler
}

// New creates a broker over the given transport. A nil transport is
// allowed and forces fallback mode. Metrics may be nil.
func New(transport Transport, cfg Config, metrics *obs.Metrics) *Broker {
	if cfg.FallbackDepth <= 0 {
		cfg.FallbackDepth = defaultFallbackDepth
	}
	return &Broker{
		cfg:       cfg,
		transport: transport,
		metrics:   metrics,
		topics:    make(map[string]*topicState),
	}
}

// Connect probes the transport and fixes the broker mode. An unreachable
// transport is expected, not fatal: the broker simply stays in fallback
// mode. Call once at startup before subscribing.
func (b *Broker) Connect(ctx context.Context) {
	if b.transport == nil {
		logs.Warn("broker: no transport configured, using in-memory fallback")
		return
	}
	if err := b.transport.Ping(ctx); err != nil {
		logs.Warnf("broker: transport unreachable, using in-memory fallback, err: %+v", err)
		return
	}
	b.backed = true
	logs.Info("broker: connected to transport")
}

// Fallback reports whether the broker delivers in-process only.
func (b *Broker) Fallback() bool {
	return !b.backed
}

// Publish stamps the caller fields with envelope metadata and delivers
// them to every current subscriber of the topic. It never panics or
// returns an error; failures are logged and reported as false.
func (b *Broker) Publish(ctx context.Context, topic string, fields map[string]any) bool {
	if strings.TrimSpace(topic) == "" {
		logs.Warn("broker: publish with empty topic dropped")
		b.metrics.ObservePublish(false)
		return false
	}

	msg := newMessage(topic, b.cfg.Source, fields)
	payload, err := encodeMessage(msg)
	if err != nil {
		logs.Errorf("broker: encode message for %s, err: %+v", topic, err)
		b.metrics.ObservePublish(false)
		return false
	}

	if b.backed {
		if err := b.transport.Publish(ctx, topic, payload); err != nil {
			// A single failed publish degrades only this call; the
			// broker stays in backed mode.
			logs.Errorf("broker: publish to %s, err: %+v", topic, err)
			b.metrics.ObservePublish(false)
			return false
		}
		b.metrics.ObservePublish(true)
		return true
	}

	state := b.topicState(topic)
	state.mu.Lock()
	if state.ring.Push(msg) {
		b.metrics.ObserveEviction()
	}
	subs := make([]fallbackSub, len(state.subs))
	copy(subs, state.subs)
	state.mu.Unlock()

	for _, sub := range subs {
		b.invoke(topic, sub.fn, msg)
	}
	b.metrics.ObservePublish(true)
	return true
}

// Subscribe registers a handler for a topic and returns a stoppable
// handle. Failures are logged and reported as a nil handle.
func (b *Broker) Subscribe(ctx context.Context, topic string, handler Handler) *Subscription {
	if strings.TrimSpace(topic) == "" {
		logs.Warn("broker: subscribe with empty topic dropped")
		return nil
	}
	if handler == nil {
		logs.Warnf("broker: subscribe to %s with nil handler dropped", topic)
		return nil
	}

	if b.backed {
		return b.subscribeBacked(ctx, topic, handler)
	}
	return b.subscribeFallback(ctx, topic, handler)
}

// Buffered returns the messages retained for a fallback-mode topic,
// oldest first. Backed mode keeps no buffer.
func (b *Broker) Buffered(topic string) []Message {
	b.mu.RLock()
	state := b.topics[topic]
	b.mu.RUnlock()
	if state == nil {
		return nil
	}
	return state.ring.Snapshot()
}

func (b *Broker) subscribeFallback(ctx context.Context, topic string, handler Handler) *Subscription {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.mu.Unlock()

	state := b.topicState(topic)
	state.mu.Lock()
	state.subs = append(state.subs, fallbackSub{id: id, fn: handler})
	state.mu.Unlock()

	sub := newSubscription(topic)

	// Delivery happens synchronously inside Publish; this worker only
	// keeps the handle stoppable and deregisters on exit.
	go func() {
		defer close(sub.done)
		select {
		case <-sub.stop:
		case <-ctx.Done():
		}
		b.removeFallbackSub(topic, id)
	}()

	logs.Infof("broker: subscribed to %s (fallback)", topic)
	return sub
}

func (b *Broker) subscribeBacked(ctx context.Context, topic string, handler Handler) *Subscription {
	stream, err := b.transport.Subscribe(ctx, topic)
	if err != nil {
		logs.Errorf("broker: subscribe to %s, err: %+v", topic, err)
		return nil
	}

	sub := newSubscription(topic)

	// Closing the stream unblocks the listener so Stop never leaks it.
	go func() {
		select {
		case <-sub.stop:
			_ = stream.Close()
		case <-ctx.Done():
			_ = stream.Close()
		case <-sub.done:
		}
	}()

	go func() {
		defer close(sub.done)
		defer stream.Close()
		for {
			payload, err := stream.Next(ctx)
			if err != nil {
				if ctx.Err() == nil && !stopped(sub) {
					logs.Warnf("broker: listener for %s stopped, err: %+v", topic, err)
				}
				return
			}
			msg, err := decodeMessage(payload)
			if err != nil {
				logs.Errorf("broker: malformed message on %s dropped, err: %+v", topic, err)
				b.metrics.ObserveMalformed()
				continue
			}
			b.invoke(topic, handler, msg)
		}
	}()

	logs.Infof("broker: subscribed to %s", topic)
	return sub
}

func (b *Broker) invoke(topic string, fn Handler, m Message) {
	defer func() {
		if r := recover(); r != nil {
			logs.Errorf("broker: subscriber panic on %s, err: %+v", topic, r)
			b.metrics.ObserveCallbackPanic()
		}
	}()
	fn(m)
	b.metrics.ObserveDelivery()
}

func (b *Broker) topicState(topic string) *topicState {
	b.mu.RLock()
	state := b.topics[topic]
	b.mu.RUnlock()
	if state != nil {
		return state
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if state = b.topics[topic]; state == nil {
		state = &topicState{ring: newRing(b.cfg.FallbackDepth)}
		b.topics[topic] = state
	}
	return state
}

func (b *Broker) removeFallbackSub(topic string, id uint64) {
	b.mu.RLock()
	state := b.topics[topic]
	b.mu.RUnlock()
	if state == nil {
		return
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	for i, sub := range state.subs {
		if sub.id == id {
			state.subs = append(state.subs[:i], state.subs[i+1:]...)
			return
		}
	}
}

func stopped(s *Subscription) bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}
