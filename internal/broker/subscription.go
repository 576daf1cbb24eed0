package broker

import "sync"

// Subscription tracks one topic listener. Backed mode runs a dedicated
// worker blocking on the transport stream; fallback mode runs an inert
// keep-alive worker so handles behave identically in both modes.
type Subscription struct {
	topic string
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func newSubscription(topic string) *Subscription {
	return &Subscription{
		topic: topic,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Topic returns the subscribed topic.
func (s *Subscription) Topic() string {
	if s == nil {
		return ""
	}
	return s.topic
}

// Stop signals the worker to exit. Safe to call more than once.
func (s *Subscription) Stop() {
	if s == nil {
		return
	}
	s.once.Do(func() { close(s.stop) })
}

// Done closes once the worker has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}
